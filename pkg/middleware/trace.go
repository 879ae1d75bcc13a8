package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/pkg/tracing"
)

// Trace opens a root span per request, keyed by the request id, and logs the
// span tree of requests slower than slow. Install it inside RequestID.
func Trace(slow time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		log := slog.Default().With("component", "trace")
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracing.StartSpan(r.Context(), r.Method+" "+r.URL.Path, logger.RequestID(r.Context()))
			next.ServeHTTP(w, r.WithContext(ctx))
			span.End()
			if span.Duration >= slow {
				span.Log(log)
			}
		})
	}
}
