package presence

import (
	"net/http"

	"github.com/marquee-ott/marquee/internal/shared"
)

// Middleware records activity for every request that carries an active
// principal. It must be installed after the session gate.
func Middleware(t *Tracker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if p := shared.PrincipalFromContext(r.Context()); p != nil && t != nil {
				t.RecordActivity(r.Context(), p.ID)
			}
			next.ServeHTTP(w, r)
		})
	}
}
