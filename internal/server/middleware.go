package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

const headerRequestID = "X-Request-Id"

// statusRecorder captures the status code written by a handler so the access
// log can report it.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// withRequestID tags each request and its response with a fresh UUID, unless
// the caller already supplied one.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(headerRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		w.Header().Set(headerRequestID, requestID)
		next.ServeHTTP(w, r)
	})
}

// withAccessLog logs one line per completed request.
func (s *Server) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		started := time.Now()

		next.ServeHTTP(recorder, r)

		s.log.Info(
			"%s %s -> %d (%s) request_id=%s",
			r.Method,
			r.URL.Path,
			recorder.status,
			time.Since(started),
			recorder.Header().Get(headerRequestID),
		)
	})
}

// withRecovery converts a handler panic into a 500 instead of tearing down
// the connection.
func (s *Server) withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			recovered := recover()
			if recovered != nil {
				s.log.Error("Panic while handling %s %s: %v", r.Method, r.URL.Path, recovered)
				s.writeError(w, http.StatusInternalServerError, "internal server error", codeProviderError)
			}
		}()

		next.ServeHTTP(w, r)
	})
}
