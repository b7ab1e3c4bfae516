package tempfiles

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Stats counts the outcome of one sweep.
type Stats struct {
	Deleted int
	Failed  int
	Skipped int // names without a timestamp prefix
}

// Sweep deletes regular files in dir whose name timestamp is more than ttl
// before now. A file removed by someone else mid-sweep is not a failure.
func Sweep(dir string, ttl time.Duration, now time.Time) (Stats, error) {
	var st Stats
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return st, nil
		}
		return st, fmt.Errorf("read upload dir: %w", err)
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		created, ok := ParseTimestamp(e.Name())
		if !ok {
			st.Skipped++
			continue
		}
		if now.Sub(created) <= ttl {
			continue
		}
		err := os.Remove(filepath.Join(dir, e.Name()))
		switch {
		case err == nil:
			st.Deleted++
		case errors.Is(err, fs.ErrNotExist):
		default:
			st.Failed++
		}
	}
	return st, nil
}

// Reaper sweeps a directory on a fixed interval.
type Reaper struct {
	Dir      string
	TTL      time.Duration
	Interval time.Duration
	Logger   *slog.Logger

	now func() time.Time
}

// Run sweeps immediately and then every Interval until ctx is done.
func (r *Reaper) Run(ctx context.Context) error {
	if r.Interval <= 0 {
		return fmt.Errorf("reaper interval must be positive, got %v", r.Interval)
	}
	logger := r.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	now := r.now
	if now == nil {
		now = time.Now
	}

	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()
	for {
		st, err := Sweep(r.Dir, r.TTL, now())
		if err != nil {
			logger.Error("sweep failed", "dir", r.Dir, "err", err)
		} else if st.Deleted > 0 || st.Failed > 0 {
			logger.Info("sweep done", "deleted", st.Deleted, "failed", st.Failed, "skipped", st.Skipped)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
