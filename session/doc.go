// Package session provides client-side persistence of the authenticated session:
// the access token, the user record, the session-tracking id, and the derived expiry.
//
// # Backends
//
//   - [MemoryStore]: process-local map guarded by a mutex. Default and test double.
//   - [RedisStore]: key/value persistence in Redis, token and user written in one MULTI/EXEC.
//   - [FileStore]: single JSON document replaced atomically on every write.
//
// # Invariants
//
// Token and user are written together and cleared together; no reader observes one
// updated and the other stale. The tracking id is created at most once and survives
// token renewals until [Store.Clear].
//
// # Architecture boundaries
//
// This package owns persisted state only. It does NOT issue network calls, schedule
// renewals, or decide navigation; those belong to refresh, transport, and router.
//
// # What this package must NOT do
//
//   - Import goAuthClient, refresh, transport, or router (no upward imports).
//   - Encrypt or otherwise transform credentials.
//   - Interpret token contents.
package session
