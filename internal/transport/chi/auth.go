package chi

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/openprogramia/propuestas/internal/logger"
)

// Probes and scrapes stay open when auth is on.
var publicPaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

type apiKey struct {
	digest [sha256.Size]byte
	id     string
}

// BearerAuthMiddleware requires "Authorization: Bearer <key>" on every API
// route. With no non-blank keys configured it is a pass-through. Accepted
// requests get the key's short fingerprint on the context logger.
func BearerAuthMiddleware(apiKeys []string) func(http.Handler) http.Handler {
	var keys []apiKey
	for _, k := range apiKeys {
		if k == "" {
			continue
		}
		d := sha256.Sum256([]byte(k))
		keys = append(keys, apiKey{digest: d, id: hex.EncodeToString(d[:4])})
	}

	return func(next http.Handler) http.Handler {
		if len(keys) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if publicPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			if header == "" {
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, "missing authorization header")
				return
			}
			scheme, token, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") {
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, "authorization header must use Bearer scheme")
				return
			}

			id, ok := matchKey(keys, strings.TrimSpace(token))
			if !ok {
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, "invalid api key")
				return
			}
			next.ServeHTTP(w, r.WithContext(logger.With(r.Context(), zap.String("api_key_id", id))))
		})
	}
}

// matchKey compares digests in constant time against every configured key.
func matchKey(keys []apiKey, token string) (string, bool) {
	d := sha256.Sum256([]byte(token))
	var found string
	for _, k := range keys {
		if subtle.ConstantTimeCompare(d[:], k.digest[:]) == 1 {
			found = k.id
		}
	}
	return found, found != ""
}
