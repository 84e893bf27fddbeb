// Package middleware holds the HTTP middleware of the operational endpoints.
package middleware

import (
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// remoteIP is the peer address of the request. The metrics listener is
// scraped directly, so forwarding headers are not trusted.
func remoteIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// LoggingMiddleware logs every request to the operational listener.
// Successful requests log at debug level since scrapes arrive every few
// seconds; failed ones at warn or error so a broken health check shows up.
func LoggingMiddleware(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			ev := logger.Debug()
			if rec.status >= 500 {
				ev = logger.Error()
			} else if rec.status >= 400 {
				ev = logger.Warn()
			}
			ev.Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", rec.status).
				Dur("duration", time.Since(start)).
				Str("remote_ip", remoteIP(r)).
				Int64("bytes_written", rec.written).
				Msg("ops: request served")
		})
	}
}

// statusRecorder keeps the first status code and the body size.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	written     int64
	wroteHeader bool
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.wroteHeader {
		return
	}
	s.status = code
	s.wroteHeader = true
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if !s.wroteHeader {
		s.WriteHeader(http.StatusOK)
	}
	n, err := s.ResponseWriter.Write(b)
	s.written += int64(n)
	return n, err
}
