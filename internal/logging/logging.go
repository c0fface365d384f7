package logging

import (
	"io"
	"net/http"
	"os"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

func Setup(level string) *logrus.Logger {
	return New(os.Stdout, level)
}

func New(out io.Writer, level string) *logrus.Logger {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	return &logrus.Logger{
		Formatter: &logrus.JSONFormatter{
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyLevel: "loglevel",
			},
		},
		Out:   out,
		Hooks: make(logrus.LevelHooks),
		Level: parsed,
	}
}

// Discard is used by tests and callers that do not want ledger logs.
func Discard() *logrus.Logger {
	return New(io.Discard, "panic")
}

func RequestLogger(log *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				entry := log.WithFields(logrus.Fields{
					"method":      r.Method,
					"path":        r.URL.Path,
					"status":      ww.Status(),
					"bytes":       ww.BytesWritten(),
					"duration_ms": time.Since(start).Milliseconds(),
					"request_id":  chimiddleware.GetReqID(r.Context()),
				})
				switch {
				case ww.Status() >= http.StatusInternalServerError:
					entry.Error("Request.Complete")
				case ww.Status() >= http.StatusBadRequest:
					entry.Warn("Request.Complete")
				default:
					entry.Info("Request.Complete")
				}
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
