// Package goAuthClient manages the authenticated session of a single-page
// application client: acquiring a token at login, persisting it, renewing it
// before expiry, recovering from rejected credentials, and gating navigation by
// authentication and role state.
//
// A [Client] is built once through [Builder.Build] and is safe to use from
// multiple goroutines afterwards.
//
// # Architecture boundaries
//
// goAuthClient is the public surface. It exposes [Client], [Builder], [Config],
// and value types (MetricsSnapshot, AuditEvent). The building blocks live in
// their own packages: session (persisted state), refresh (the proactive
// renewal timer), transport (the request pipeline), and router (the route
// guard). Auth endpoint calls and audit dispatch live under internal/.
//
// # What this package must NOT do
//
//   - Hold package-level mutable state: every timer and store belongs to a Client.
//   - Retry a request more than once after an authentication failure.
//   - Import any sub-package that re-imports goAuthClient (no import cycles).
//
// # Concurrency contract
//
// Proactive renewal (the scheduler) and reactive renewal (the pipeline) are
// independent. Unless [RenewalConfig.Serialize] is set, both may call the
// refresh endpoint and both may write the store; the last write wins.
package goAuthClient
