package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ieee0824/speechtext"
	"github.com/ieee0824/speechtext/internal/config"
	"github.com/ieee0824/speechtext/internal/logging"
	"github.com/ieee0824/speechtext/internal/server"
	"github.com/ieee0824/speechtext/internal/tempfiles"
	"github.com/ieee0824/speechtext/internal/worker"
)

var (
	serveHost  string
	servePort  int
	serveGrace time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP transcription API",
	Long: `Start the HTTP API. The listener comes up immediately and answers
/health with 503 until the model has finished loading.

Routes:
  GET  /              liveness message
  GET  /health        readiness
  POST /get_text      multipart upload (field "files"), ?normalize=true|false
  GET  /audio/{name}  stored upload (only when upload_dir is set)`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "listen host (overrides config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (overrides config)")
	serveCmd.Flags().DurationVar(&serveGrace, "grace", 10*time.Second, "shutdown grace period")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := getConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("host") {
		cfg.Host = serveHost
	}
	if cmd.Flags().Changed("port") {
		cfg.Port = servePort
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool := worker.NewPool(cfg.Workers, logging.Component(baseLogger, logging.ComponentWorker))
	defer pool.Close()

	var store *tempfiles.Store
	if cfg.UploadDir != "" {
		if store, err = tempfiles.NewStore(cfg.UploadDir); err != nil {
			return err
		}
	}

	svc := &server.Deferred{}
	srv, err := server.New(svc, server.Config{
		Limits:         cfg.Limits,
		RequestTimeout: cfg.RequestTimeout(),
		Pool:           pool,
		Store:          store,
		Logger:         baseLogger,
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := srv.ListenAndServe(gctx, cfg.Addr(), serveGrace)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		s, err := loadService(cfg, cfg.Workers)
		if err != nil {
			return err
		}
		svc.Set(s)
		logger.Info("model ready", "dir", cfg.ModelDir, "symbols", s.Vocabulary().Size())
		return nil
	})
	if store != nil {
		reaper := &tempfiles.Reaper{
			Dir:      store.Dir(),
			TTL:      cfg.FileLifetime(),
			Interval: cfg.ReapInterval(),
			Logger:   logging.Component(baseLogger, logging.ComponentReaper),
		}
		g.Go(func() error { return reaper.Run(gctx) })
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("server stopped")
	return nil
}

// loadService loads the model directory named by cfg.
func loadService(cfg *config.Config, parallelism int) (*speechtext.Service, error) {
	start := time.Now()
	s, err := speechtext.New(cfg.ModelDir,
		speechtext.WithFeatureConfig(cfg.FeatureConfig()),
		speechtext.WithAudioConfig(cfg.AudioConfig()),
		speechtext.WithLogger(baseLogger),
		speechtext.WithParallelism(parallelism),
	)
	if err != nil {
		return nil, fmt.Errorf("load model from %s: %w", cfg.ModelDir, err)
	}
	logger.Debug("model loaded", "dir", cfg.ModelDir, "elapsed", time.Since(start))
	return s, nil
}
