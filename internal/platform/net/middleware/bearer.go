package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	perr "newswire/internal/platform/errors"
	pnet "newswire/internal/platform/net"
)

// Bearer guards a route group with a shared-secret bearer token.
// secret is read once at construction; an empty secret means the server side
// is misconfigured and every request is rejected with a 500, never silently open.
// write is the transport's envelope writer (kept as a seam so this package
// does not depend on the http respond helpers)
func Bearer(secret string, write func(w http.ResponseWriter, status int, body any)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := pnet.RequestID(r.Context())
			if secret == "" {
				status, body := pnet.Error(perr.Internalf("reconcile token not configured"), reqID)
				write(w, status, body)
				return
			}

			auth := r.Header.Get("Authorization")
			tok, ok := strings.CutPrefix(auth, "Bearer ")
			if !ok || tok == "" {
				status, body := pnet.Error(perr.Unauthorizedf("missing bearer token"), reqID)
				write(w, status, body)
				return
			}
			if subtle.ConstantTimeCompare([]byte(tok), []byte(secret)) != 1 {
				status, body := pnet.Error(perr.Unauthorizedf("invalid bearer token"), reqID)
				write(w, status, body)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
