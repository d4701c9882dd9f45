// Package jwt inspects access tokens on the client side to derive their expiry
// when the server response does not state one.
//
// Tokens are parsed WITHOUT signature verification: the client cannot verify them
// and only uses the exp claim to schedule renewal. Nothing here is an
// authorization decision.
package jwt
