// Package server exposes the transcription service over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/ieee0824/speechtext"
	"github.com/ieee0824/speechtext/internal/gate"
	"github.com/ieee0824/speechtext/internal/tempfiles"
	"github.com/ieee0824/speechtext/internal/worker"
)

// AliveMessage is the body of GET /.
const AliveMessage = "Hello, I'm alive :)"

// Transcriber is the part of speechtext.Service the server uses.
type Transcriber interface {
	Transcribe(ctx context.Context, inputs [][]byte, normalize bool) ([]string, error)
	Ready() bool
}

// Deferred is a Transcriber whose service is installed after startup, so
// the server can answer health checks while the model loads.
type Deferred struct {
	svc atomic.Pointer[speechtext.Service]
}

// Set installs the loaded service.
func (d *Deferred) Set(s *speechtext.Service) { d.svc.Store(s) }

// Ready reports whether a loaded service is installed.
func (d *Deferred) Ready() bool { return d.svc.Load().Ready() }

// Transcribe delegates to the installed service.
func (d *Deferred) Transcribe(ctx context.Context, inputs [][]byte, normalize bool) ([]string, error) {
	return d.svc.Load().Transcribe(ctx, inputs, normalize)
}

// Config wires the server's collaborators.
type Config struct {
	Limits         gate.Limits
	RequestTimeout time.Duration
	Pool           *worker.Pool     // runs transcriptions off the request goroutine
	Store          *tempfiles.Store // optional; uploads are persisted when set
	Logger         *slog.Logger
}

// Server routes HTTP requests to a Transcriber.
type Server struct {
	t      Transcriber
	cfg    Config
	logger *slog.Logger
	mux    *http.ServeMux
}

// New creates a Server. cfg.Pool is required.
func New(t Transcriber, cfg Config) (*Server, error) {
	if t == nil || cfg.Pool == nil {
		return nil, errors.New("server: transcriber and worker pool are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		t:      t,
		cfg:    cfg,
		logger: cfg.Logger.With("component", "server"),
		mux:    http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /{$}", s.handleAlive)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /get_text", s.handleGetText)
	s.mux.HandleFunc("GET /audio/{name}", s.handleAudio)
	return s, nil
}

// Handler returns the root handler with request-ID and access logging.
func (s *Server) Handler() http.Handler {
	return s.withRequestID(s.mux)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully, waiting up to grace for in-flight requests.
func (s *Server) ListenAndServe(ctx context.Context, addr string, grace time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleAlive(w http.ResponseWriter, r *http.Request) {
	s.write(w, r, http.StatusOK, AliveMessage)
}

type healthResponse struct {
	Status string `json:"status" msgpack:"status"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !s.t.Ready() {
		s.write(w, r, http.StatusServiceUnavailable, healthResponse{Status: "loading"})
		return
	}
	s.write(w, r, http.StatusOK, healthResponse{Status: "all green"})
}

type textResponse struct {
	Result []string `json:"result" msgpack:"result"`
}

func (s *Server) handleGetText(w http.ResponseWriter, r *http.Request) {
	logger := loggerFrom(r.Context(), s.logger)

	normalize := false
	if v := r.URL.Query().Get("normalize"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			s.writeError(w, r, fmt.Errorf("%w: normalize must be a boolean", gate.ErrInvalidUpload))
			return
		}
		normalize = b
	}

	limits := s.cfg.Limits
	r.Body = http.MaxBytesReader(w, r.Body, int64(limits.MaxFiles)*limits.MaxFileSize+1<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			s.writeError(w, r, fmt.Errorf("%w: request body too large", speechtext.ErrCapacity))
			return
		}
		s.writeError(w, r, fmt.Errorf("%w: %v", gate.ErrInvalidUpload, err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	uploads := make([]gate.Upload, len(headers))
	for i, fh := range headers {
		uploads[i] = gate.Upload{Name: fh.Filename, Size: fh.Size}
	}
	logger.Debug("uploaded files", "count", len(headers), "normalize", normalize)
	if err := limits.Validate(uploads); err != nil {
		s.writeError(w, r, err)
		return
	}

	inputs := make([][]byte, len(headers))
	for i, fh := range headers {
		data, err := readPart(fh)
		if err != nil {
			s.writeError(w, r, fmt.Errorf("read %s: %w", fh.Filename, err))
			return
		}
		inputs[i] = data
		if s.cfg.Store != nil {
			stored, err := s.cfg.Store.Save(fh.Filename, data)
			if err != nil {
				logger.Warn("persist upload failed", "file", fh.Filename, "err", err)
			} else {
				logger.Debug("upload stored", "file", stored)
			}
		}
	}

	ctx := r.Context()
	if s.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
	}
	start := time.Now()
	results, err := worker.Do(ctx, s.cfg.Pool, func(ctx context.Context) ([]string, error) {
		return s.t.Transcribe(ctx, inputs, normalize)
	})
	if err != nil {
		s.writeError(w, r, describeItem(err, headers))
		return
	}
	logger.Info("transcribed", "files", len(results), "elapsed", time.Since(start))
	s.write(w, r, http.StatusOK, textResponse{Result: results})
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// describeItem names the offending upload in per-item errors.
func describeItem(err error, headers []*multipart.FileHeader) error {
	var se *speechtext.Error
	if errors.As(err, &se) && se.Index >= 0 && se.Index < len(headers) {
		return fmt.Errorf("%s: %w", headers[se.Index].Filename, err)
	}
	return err
}

func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Store == nil {
		http.NotFound(w, r)
		return
	}
	path, err := s.cfg.Store.Path(r.PathValue("name"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, path)
}
