package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/MrEthical07/credlife"
	"github.com/MrEthical07/credlife/internal/log"
)

// TokenVerifier is satisfied by *credlife.Engine.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string, expected credlife.TokenType) (*credlife.Token, error)
}

// Extractor pulls the raw token out of a request.
type Extractor func(r *http.Request) (string, bool)

type tokenContextKey struct{}

// TokenFromContext returns the token verified by a guard further up the chain.
func TokenFromContext(ctx context.Context) (*credlife.Token, bool) {
	tok, ok := ctx.Value(tokenContextKey{}).(*credlife.Token)
	return tok, ok
}

// Guard admits requests carrying a valid token of type typ. Credential failures get
// 401 without detail; a store failure gets 503 so the token is never accepted
// unchecked.
func Guard(verifier TokenVerifier, typ credlife.TokenType, extract Extractor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if verifier == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			raw, ok := extract(r)
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			tok, err := verifier.VerifyToken(r.Context(), raw, typ)
			if err != nil {
				if errors.Is(err, credlife.ErrStoreUnavailable) {
					log.From(r.Context()).Error("guard_store_unavailable",
						slog.String("op", "middleware.Guard"),
						slog.String("path", r.URL.Path),
						slog.Any("err", err),
					)
					http.Error(w, "service unavailable", http.StatusServiceUnavailable)
					return
				}
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), tokenContextKey{}, tok)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken reads "Authorization: Bearer <token>".
func BearerToken(r *http.Request) (string, bool) {
	const bearer = "Bearer "
	value := r.Header.Get("Authorization")
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}
	token := strings.TrimSpace(value[len(bearer):])
	return token, token != ""
}

// CookieToken reads the named cookie.
func CookieToken(name string) Extractor {
	return func(r *http.Request) (string, bool) {
		c, err := r.Cookie(name)
		if err != nil || c.Value == "" {
			return "", false
		}
		return c.Value, true
	}
}
