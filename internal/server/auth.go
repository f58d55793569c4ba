package server

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/quizmind/mcqa-go/internal/logging"
)

// authMiddleware guards a handler with static Bearer token auth. An empty
// key disables the guard entirely; New logs that once at startup.
//
// Clients authenticate with:
//
//	Authorization: Bearer <apiKey>
//
// Rejections carry a WWW-Authenticate challenge and a JSON error body. The
// presented token never reaches the log, only whether one was present.
func authMiddleware(apiKey string, next http.Handler) http.Handler {
	if apiKey == "" {
		return next
	}

	key := []byte(apiKey)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, found := bearerToken(r)
		if found && subtle.ConstantTimeCompare([]byte(token), key) == 1 {
			next.ServeHTTP(w, r)
			return
		}

		challenge := `Bearer realm="mcqa"`
		msg := "authorization required"
		if found {
			challenge = `Bearer realm="mcqa" error="invalid_token"`
			msg = "invalid token"
		}

		logging.FromContext(r.Context()).Warn("unauthorized request",
			slog.String("path", r.URL.Path),
			slog.Bool("token_present", found),
		)
		w.Header().Set("WWW-Authenticate", challenge)
		writeJSONError(w, msg, http.StatusUnauthorized)
	})
}

// bearerToken pulls the credential out of the Authorization header. The
// second return is false when the header is absent or not Bearer-shaped.
func bearerToken(r *http.Request) (string, bool) {
	scheme, rest, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(rest)
	return token, token != ""
}
