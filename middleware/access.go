package middleware

import (
	"net/http"

	"github.com/MrEthical07/credlife"
)

// RequireAccess guards a handler with a bearer access token.
func RequireAccess(verifier TokenVerifier) func(http.Handler) http.Handler {
	return Guard(verifier, credlife.TokenAccess, BearerToken)
}
