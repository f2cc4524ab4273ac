package middleware

import (
	"net/http"
	"strings"

	"mindmoney/internal/auth"
	"mindmoney/internal/httputil"
)

// Auth resolves the caller's identity from an optional Bearer token.
//
// Identity is optional by contract: requests without a token proceed as
// anonymous, and when verifier is nil (no identity provider configured)
// every request is anonymous. A token that is present but invalid is
// rejected rather than silently downgraded to anonymous, so a caller can
// never lose access to its own records through an expired token.
func Auth(verifier auth.TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" || verifier == nil {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				httputil.RespondError(w, http.StatusUnauthorized, "malformed Authorization header")
				return
			}

			claims, err := verifier.VerifyToken(token)
			if err != nil {
				httputil.RespondError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			next.ServeHTTP(w, httputil.WithUserID(r, claims.GetUserID()))
		})
	}
}
