// Package refresh renews the access token before it expires.
//
// # Scheduler
//
// A [Scheduler] owns at most one pending timer. [Scheduler.Schedule] cancels any
// pending timer and arms a new one at max(expiresIn - lead, 0). When it fires the
// scheduler renews with the stored token, stores the new grant, and schedules
// itself again from the new lifetime, so one login yields an unbounded chain of
// renewals. A failed renewal clears the store and navigates to the login entry point.
//
// Each armed timer carries a generation. Cancel and Schedule bump it, so a timer
// that was superseded, or a renewal still in flight when the session was
// cancelled, cannot write the store.
//
// # Architecture boundaries
//
// This package owns the timer handle and the renewal chain. The network call is
// delegated to a [Renewer]; persistence to a session.Store; navigation to a
// router.Navigator.
//
// # What this package must NOT do
//
//   - Hold package-level timers or state.
//   - Retry a failed renewal. A failure ends the session.
//   - Serialize with reactive renewals; callers that want that wrap the [Renewer].
package refresh
