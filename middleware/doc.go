// Package middleware provides net/http guards that verify credlife tokens.
//
//   - [RequireAccess] reads a bearer access token.
//   - [RequireRefresh] reads a refresh token from a cookie.
//   - [Guard] takes any [Extractor] and token type.
//
// The verified token is available to handlers through [TokenFromContext].
package middleware
