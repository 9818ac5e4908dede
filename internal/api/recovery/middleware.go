// Package recovery guards HTTP handlers against panics.
package recovery

import (
	"net/http"
	"runtime/debug"

	"github.com/rs/zerolog/log"

	"github.com/kikilabs/kiki-reminders/internal/api/respond"
)

// Middleware turns a panic in a downstream handler into a logged 500. The
// fulfillment handler otherwise answers 200 no matter what, so anything that
// reaches here is a bug worth the stack dump.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error().
					Interface("panic", rec).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Bytes("stack", debug.Stack()).
					Msg("panic recovered")
				respond.WriteInternalError(w, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
