package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/sirupsen/logrus"

	"github.com/canteen42/canteen42-backend/internal/httpx"
)

// Recover turns a handler panic into the standard 500 error body. It replaces
// chi's Recoverer, which writes a bare status.
func Recover(resp *httpx.Responder, log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rvr := recover()
				if rvr == nil {
					return
				}
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}
				log.WithFields(logrus.Fields{
					"path":  r.URL.Path,
					"panic": rvr,
					"stack": string(debug.Stack()),
				}).Error("handler panicked")
				resp.Error(w, r, httpx.Upstream("Internal server error", fmt.Errorf("panic: %v", rvr)))
			}()
			next.ServeHTTP(w, r)
		})
	}
}
