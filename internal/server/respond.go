package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/ieee0824/speechtext"
	"github.com/ieee0824/speechtext/internal/gate"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

const contentTypeMsgpack = "application/msgpack"

type errorResponse struct {
	Detail string `json:"detail" msgpack:"detail"`
}

// write encodes v as msgpack when the client asks for it and JSON otherwise.
func (s *Server) write(w http.ResponseWriter, r *http.Request, status int, v any) {
	if strings.Contains(r.Header.Get("Accept"), contentTypeMsgpack) {
		data, err := msgpack.Marshal(v)
		if err == nil {
			w.Header().Set("Content-Type", contentTypeMsgpack)
			w.WriteHeader(status)
			w.Write(data)
			return
		}
		loggerFrom(r.Context(), s.logger).Error("encode msgpack response", "err", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		loggerFrom(r.Context(), s.logger).Error("encode response", "err", err)
	}
}

// writeError maps err to a caller-fault or server-fault response. Server
// faults are logged in full and answered with a generic message.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	logger := loggerFrom(r.Context(), s.logger)
	status, detail := classify(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "err", err)
	} else {
		logger.Warn("request rejected", "status", status, "err", err)
	}
	s.write(w, r, status, errorResponse{Detail: detail})
}

func classify(err error) (int, string) {
	switch {
	case gate.IsRejection(err), speechtext.IsClientError(err):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, speechtext.ErrNotReady):
		return http.StatusServiceUnavailable, "model is not loaded yet"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "transcription timed out"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

type ctxKey struct{}

func loggerFrom(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return l
	}
	return fallback
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// withRequestID tags each request with an ID, echoes it back and logs the
// outcome.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		logger := s.logger.With("request_id", id)
		ctx := context.WithValue(r.Context(), ctxKey{}, logger)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r.WithContext(ctx))
		logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"elapsed", time.Since(start))
	})
}
