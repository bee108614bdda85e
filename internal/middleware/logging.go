// Package middleware provides HTTP middleware for the stub backend server.
package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rohtheroos-84/Quality-Assurance-Assistant/pkg/logger"
	"github.com/rohtheroos-84/Quality-Assurance-Assistant/pkg/metrics"
)

type contextKey string

// CorrelationIDKey carries the request correlation id in the context.
const CorrelationIDKey contextKey = "correlation_id"

// CorrelationHeader is echoed back on every response.
const CorrelationHeader = "X-Correlation-ID"

// statusRecorder captures what the handler wrote.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += int64(n)
	return n, err
}

// Logging logs one line per request and records request metrics labeled by
// route pattern.
func Logging(log *logger.Logger) func(http.Handler) http.Handler {
	log = log.Named("http")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			id := r.Header.Get(CorrelationHeader)
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set(CorrelationHeader, id)

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			r = r.WithContext(context.WithValue(r.Context(), CorrelationIDKey, id))

			next.ServeHTTP(rec, r)

			elapsed := time.Since(start)
			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}

			log.Info("request",
				zap.String("correlation_id", id),
				zap.String("method", r.Method),
				zap.String("route", route),
				zap.Int("status", rec.status),
				zap.Int64("bytes", rec.bytes),
				zap.Duration("duration", elapsed),
			)
			metrics.RecordRequest(r.Method, route, strconv.Itoa(rec.status), elapsed.Seconds())
		})
	}
}

// GetCorrelationID returns the correlation id stored by Logging.
func GetCorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(CorrelationIDKey).(string)
	return id
}
