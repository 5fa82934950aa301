package api

import (
	"net/http"
	"time"

	"flightscout-service/pkg/logger"

	"github.com/go-chi/chi/v5/middleware"
)

// RequestLogger logs every request with its status and latency
func RequestLogger(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			log.Info("HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"requestId", middleware.GetReqID(r.Context()),
				"elapsed", time.Since(start))
		})
	}
}
