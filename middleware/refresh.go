package middleware

import (
	"net/http"

	"github.com/MrEthical07/credlife"
)

// DefaultRefreshCookie is the cookie read by RequireRefresh when no name is given.
const DefaultRefreshCookie = "refresh_token"

// RequireRefresh guards a handler, typically the refresh endpoint, with a refresh
// token carried in a cookie.
func RequireRefresh(verifier TokenVerifier, cookieName string) func(http.Handler) http.Handler {
	if cookieName == "" {
		cookieName = DefaultRefreshCookie
	}
	return Guard(verifier, credlife.TokenRefresh, CookieToken(cookieName))
}
