package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/darmiel/linkgate/internal/api/presenter"
)

// quietPaths are only logged when they fail.
var quietPaths = map[string]struct{}{
	"/healthz": {},
}

// LoggingMiddleware attaches a request logger to the context and logs the
// outcome of every request. 5xx responses are logged as errors, 4xx as warnings.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		l := log.With().
			Str("correlation_id", CorrelationCtx(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote", r.RemoteAddr).
			Logger()

		sw := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(sw, r.WithContext(l.WithContext(r.Context())))

		if _, quiet := quietPaths[r.URL.Path]; quiet && sw.statusCode < http.StatusBadRequest {
			return
		}

		level := zerolog.InfoLevel
		switch {
		case sw.statusCode >= http.StatusInternalServerError:
			level = zerolog.ErrorLevel
		case sw.statusCode >= http.StatusBadRequest:
			level = zerolog.WarnLevel
		}
		l.WithLevel(level).
			Int("status", sw.statusCode).
			Int("bytes", sw.written).
			Dur("duration", time.Since(start)).
			Msg("request.handled")
	})
}

// RecoverMiddleware turns a panicking handler into a 500 response.
func RecoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.Ctx(r.Context()).Error().
					Interface("panic", rec).
					Bytes("stack", debug.Stack()).
					Msg("panic.recovered")
				presenter.Error(w, r, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusWriter struct {
	http.ResponseWriter
	statusCode int
	written    int
}

func (w *statusWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.written += n
	return n, err
}
