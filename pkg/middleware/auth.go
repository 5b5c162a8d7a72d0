package middleware

import (
	"net/http"
	"strings"

	"carrental/pkg/auth"
	"carrental/pkg/logger"
)

type TokenVerifier interface {
	Verify(token string) (auth.Principal, error)
}

// Authenticate requires a valid bearer token and stores the resulting
// principal in the request context.
func Authenticate(verifier TokenVerifier, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, `{"error":"Missing or malformed Authorization header","code":"UNAUTHORIZED"}`)
				return
			}

			principal, err := verifier.Verify(token)
			if err != nil {
				log.Warn("Rejected bearer token",
					"request_id", RequestIDFrom(r.Context()),
					"path", r.URL.Path,
					"error", err,
				)
				writeJSONError(w, http.StatusUnauthorized, `{"error":"Invalid or expired token","code":"UNAUTHORIZED"}`)
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), principal)))
		})
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
