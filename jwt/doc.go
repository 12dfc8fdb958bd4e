// Package jwt signs and verifies access and refresh tokens with an asymmetric keypair
// (Ed25519 by default, RS256 optional) and strict parser options.
//
// # Architecture boundaries
//
// This package owns the token wire payload: subject, type tag, issued-at, expiry,
// embedded attributes and the signing algorithm header. It does NOT consult any
// store; exclusion and rotation policy belong to internal/flows.
//
// # What this package must NOT do
//
//   - Import credlife, session, or internal packages.
//   - Return claims before the signature has been verified.
package jwt
