// Package tempfiles stores uploads under timestamp-prefixed names and
// deletes them once they expire.
package tempfiles

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ErrBadName is returned for names that would escape the store directory.
var ErrBadName = errors.New("tempfiles: invalid file name")

// Store persists uploaded files as "<unix seconds>_<original name>".
type Store struct {
	dir string
	now func() time.Time
}

// NewStore creates dir if needed and returns a Store rooted there.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Store{dir: dir, now: time.Now}, nil
}

// Dir returns the store directory.
func (s *Store) Dir() string { return s.dir }

// Save writes data under a timestamped form of name's base name and
// returns the stored file name. Same-second collisions get a counter
// after the timestamp.
func (s *Store) Save(name string, data []byte) (string, error) {
	base := filepath.Base(name)
	if base == "." || base == ".." || base == string(filepath.Separator) {
		return "", fmt.Errorf("%w: %q", ErrBadName, name)
	}
	ts := s.now().Unix()

	stored := fmt.Sprintf("%d_%s", ts, base)
	for i := 1; ; i++ {
		f, err := os.OpenFile(filepath.Join(s.dir, stored), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if errors.Is(err, fs.ErrExist) {
			stored = fmt.Sprintf("%d_%d_%s", ts, i, base)
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create %s: %w", stored, err)
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			return "", fmt.Errorf("write %s: %w", stored, err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("close %s: %w", stored, err)
		}
		return stored, nil
	}
}

// Path returns the full path of a stored file name, rejecting anything
// that is not a plain name inside the store.
func (s *Store) Path(stored string) (string, error) {
	if stored == "" || stored != filepath.Base(stored) || stored == "." || stored == ".." {
		return "", fmt.Errorf("%w: %q", ErrBadName, stored)
	}
	return filepath.Join(s.dir, stored), nil
}

// ParseTimestamp extracts the creation time from a stored file name.
func ParseTimestamp(name string) (time.Time, bool) {
	prefix, _, ok := strings.Cut(name, "_")
	if !ok {
		return time.Time{}, false
	}
	sec, err := strconv.ParseInt(prefix, 10, 64)
	if err != nil || sec < 0 {
		return time.Time{}, false
	}
	return time.Unix(sec, 0), true
}
