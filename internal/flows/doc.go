// Package flows contains pure-function orchestrators for every auth endpoint
// the Client consumes.
//
// Each flow function (RunLogin, RunRegister, RunRefresh, RunLogout, RunMe)
// accepts a typed dependency struct and returns decoded results. Flows do not
// touch the session store or the scheduler; the Client applies their results.
//
// # Architecture boundaries
//
// Flow functions build requests, send them through the HTTP client handed in
// by the caller, and decode the {success, message, data} envelope. Which
// client that is (the request pipeline or the bare base transport) is decided
// by the Client.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import goAuthClient (to avoid import cycles).
//   - Mutate session state: every result is returned to the caller.
package flows
