// Package transport implements the client request pipeline as an http.RoundTripper.
//
// # Outbound
//
// Every request is cloned and tagged with the bearer credential (when a token is
// stored) and the session-tracking header (always; created on first use).
//
// # Inbound
//
// A 401 response triggers one renewal with the stored token. On success the
// original request is re-issued through the pipeline with the new token and its
// response is returned in place of the 401. On failure the session is cleared, the
// client is sent to the login entry point, and the renewal error is returned.
// Every other response, and every transport error, passes through unchanged.
//
// The retry marker lives on the request context, so recovery runs at most once
// per original request no matter how the retried request ends.
//
// # What this package must NOT do
//
//   - Retry more than once, or retry anything but an authentication failure.
//   - Route the renewal call itself through the pipeline.
//   - Interpret non-401 error statuses.
package transport
