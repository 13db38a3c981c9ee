package auth

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/stefando/pdf2img/internal/log"
)

const bearerPrefix = "bearer "

// Middleware requires a valid bearer token on every request and stores the
// caller identity in the request context.
func Middleware(verifier TokenVerifier, logger log.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = log.Noop
	}
	logger = logger.WithValues(log.Kv{"svc": "auth.Middleware"})

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				unauthorized(w)
				return
			}

			id, err := verifier.Verify(r.Context(), token)
			if err != nil {
				logger.WithCtxValues(r.Context()).Warningf("rejected token: %s", err)
				unauthorized(w)
				return
			}

			ctx := WithIdentity(r.Context(), id)
			ctx = logger.SetValuesOnCtx(ctx, log.Kv{"subject": id.Subject})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken strips the case insensitive "Bearer " prefix.
func bearerToken(header string) (string, bool) {
	if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}

	token := strings.TrimSpace(header[len(bearerPrefix):])
	return token, token != ""
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": "Not authenticated"})
}
