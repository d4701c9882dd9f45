// Package router decides, before each navigation, whether the target route is
// allowed or must redirect, based only on the locally stored session.
//
// # Components
//
//   - [Decide]: the pure decision table over route [Meta] and [AuthState].
//   - [Table]: route registry with nested children and a catch-all redirect home.
//   - [Guard]: reads a session store synchronously and applies [Decide].
//   - [Navigator] / [History]: where redirects are delivered.
//
// # What this package must NOT do
//
//   - Perform network I/O. A decision never waits on the server.
//   - Mutate the session store.
package router
