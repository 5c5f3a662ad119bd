package httpx

import (
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// IdempotentReplayedHeader marks a response served from the idempotency replay cache.
const IdempotentReplayedHeader = "Idempotent-Replayed"

type accessRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (w *accessRecorder) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *accessRecorder) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(p)
	w.bytes += int64(n)
	return n, err
}

// statusOrOK covers handlers that return without writing anything.
func (w *accessRecorder) statusOrOK() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

// AccessLogOptions tunes WithAccessLog. Paths listed in Quiet (health and readiness checks)
// are logged at debug level unless they fail.
type AccessLogOptions struct {
	Quiet []string
}

// WithAccessLog writes one line per request. Client errors log at warn and server errors at
// error; responses replayed from an idempotency key are flagged.
func WithAccessLog(logger *slog.Logger, opts ...AccessLogOptions) Middleware {
	quiet := map[string]bool{}
	for _, o := range opts {
		for _, p := range o.Quiet {
			quiet[strings.TrimSpace(p)] = true
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &accessRecorder{ResponseWriter: w}

			next.ServeHTTP(rec, r)

			status := rec.statusOrOK()
			attrs := []any{
				"request_id", RequestIDFromContext(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", rec.bytes,
				"duration_ms", time.Since(start).Milliseconds(),
			}
			if r.Header.Get("Idempotency-Key") != "" {
				attrs = append(attrs, "idempotency_key", true,
					"replayed", rec.Header().Get(IdempotentReplayedHeader) == "true")
			}
			logger.Log(r.Context(), accessLevel(status, quiet[r.URL.Path]), "http request", attrs...)
		})
	}
}

func accessLevel(status int, quiet bool) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	case quiet:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}
