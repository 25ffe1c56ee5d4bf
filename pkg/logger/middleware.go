package logger

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

// CorrelationIDMiddleware propagates a correlation ID into the request
// context and echoes it in the response headers. It must run after chi's
// RequestID middleware.
func CorrelationIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		correlationID := r.Header.Get(CorrelationIDHeader)
		if correlationID == "" {
			correlationID = middleware.GetReqID(r.Context())
		}
		if correlationID == "" {
			correlationID = "unknown"
		}

		ctx := WithCorrelationID(r.Context(), correlationID)
		w.Header().Set(CorrelationIDHeader, correlationID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
