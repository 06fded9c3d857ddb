package chi

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"go.uber.org/zap"

	logpkg "github.com/kailas-cloud/tutorbot/internal/logger"
)

// exemptPaths are routes that bypass authentication (health, metrics).
var exemptPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

const (
	bearerPrefix    = "Bearer "
	bearerChallenge = `Bearer realm="tutorbot"`
)

// BearerAuthMiddleware guards the user and admin API with static API keys.
// If apiKeys holds no non-empty key, authentication is disabled (pass-through).
func BearerAuthMiddleware(apiKeys []string) func(http.Handler) http.Handler {
	keys := make([][]byte, 0, len(apiKeys))
	for _, k := range apiKeys {
		if k != "" {
			keys = append(keys, []byte(k))
		}
	}

	return func(next http.Handler) http.Handler {
		if len(keys) == 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exemptPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			token, problem := bearerToken(r)
			if problem == "" && !matchKey(keys, token) {
				problem = "invalid api key"
			}
			if problem != "" {
				w.Header().Set("WWW-Authenticate", bearerChallenge)
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, problem)
				return
			}

			// Tag the request log with a key fingerprint, never the key itself.
			log := logpkg.FromContext(r.Context()).With(zap.String("api_key", fingerprint(token)))
			next.ServeHTTP(w, r.WithContext(logpkg.ContextWithLogger(r.Context(), log)))
		})
	}
}

// bearerToken extracts the token or returns a client-facing reason it is missing.
func bearerToken(r *http.Request) (string, string) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return "", "missing authorization header"
	}
	if !strings.HasPrefix(auth, bearerPrefix) {
		return "", "authorization header must use Bearer scheme"
	}
	token := strings.TrimSpace(auth[len(bearerPrefix):])
	if token == "" {
		return "", "empty bearer token"
	}
	return token, ""
}

// matchKey compares against every key in constant time.
func matchKey(keys [][]byte, token string) bool {
	t := []byte(token)
	matched := 0
	for _, k := range keys {
		matched |= subtle.ConstantTimeCompare(k, t)
	}
	return matched == 1
}

func fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:4])
}
