package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/panoplay/geoguess/internal/game"
)

// identity is what the identity provider asserts about a player: a stable
// subject and a display name.
type identity struct {
	UserID      string
	DisplayName string
}

var errNoSession = errors.New("no valid session")

type ctxKey int

const ctxKeyIdentity ctxKey = iota

type assertionClaims struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}

// verifyAssertion checks an identity-provider JWT. The engine never issues
// these, only consumes them.
func verifyAssertion(secret, token string) (identity, error) {
	var claims assertionClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return identity{}, fmt.Errorf("%w: %s", errNoSession, err)
	}
	if claims.Subject == "" {
		return identity{}, errNoSession
	}
	return identity{UserID: claims.Subject, DisplayName: claims.Name}, nil
}

// authMiddleware resolves the Bearer assertion and registers the user on
// first sight.
func authMiddleware(secret string, engine *game.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			token, found := strings.CutPrefix(auth, "Bearer ")
			if !found || token == "" {
				writeError(w, http.StatusUnauthorized, "invalid or missing bearer token")
				return
			}

			id, err := verifyAssertion(secret, token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid or missing bearer token")
				return
			}

			if err := engine.EnsureUser(r.Context(), id.UserID, id.DisplayName, time.Now()); err != nil {
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeyIdentity, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func identityFrom(r *http.Request) identity {
	return r.Context().Value(ctxKeyIdentity).(identity)
}
