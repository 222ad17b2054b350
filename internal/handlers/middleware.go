package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
)

// RequestIDHeader carries the request id on every response.
const RequestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// RequestID returns the id assigned to the request carried by ctx.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.size += n
	return n, err
}

// WithRequestID assigns each request an id, echoes it in the response
// header and logs the request once it completes. A caller-supplied id is kept.
func WithRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		w.Header().Set(RequestIDHeader, requestID)
		r = r.WithContext(context.WithValue(r.Context(), requestIDKey{}, requestID))

		logCtx := slog.With("requestId", requestID, "method", r.Method, "path", r.URL.Path)
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		logCtx.Info("Request completed.",
			"status", rec.status,
			"size", rec.size,
			"duration", time.Since(start).String(),
		)
	})
}

// Recover turns a panic into a generic 500 response.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				slog.Error("Panic recovered.",
					"requestId", RequestID(r.Context()),
					"error", err,
					"stack", string(debug.Stack()),
				)
				writeJSON(w, http.StatusInternalServerError, internalError(r))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// Wrap applies the standard middleware chain to h.
func Wrap(h http.Handler) http.Handler {
	return WithRequestID(Recover(h))
}
