package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/flicket/backend/libs/middlewares"
	"github.com/go-chi/chi/v5"
)

// Middleware records request count and latency labelled by the matched chi route pattern
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := middlewares.NewStatusRecorder(w)

		next.ServeHTTP(recorder, r)

		endpoint := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				endpoint = pattern
			}
		}
		RecordRequest(r.Method, endpoint, strconv.Itoa(recorder.Status()), time.Since(start).Seconds())
	})
}
