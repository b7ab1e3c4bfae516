// Package gate validates the shape of an upload request before any
// transcription work starts.
package gate

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/ieee0824/speechtext"
)

// ErrInvalidUpload marks uploads rejected for their name or content.
var ErrInvalidUpload = errors.New("invalid upload")

// Upload describes one received file.
type Upload struct {
	Name string
	Size int64
}

// Limits bounds a single request.
type Limits struct {
	MaxFiles          int      `yaml:"max_files"`
	MaxFileSize       int64    `yaml:"max_file_size"` // bytes
	AllowedExtensions []string `yaml:"allowed_extensions"`
}

// DefaultLimits returns 10 files of at most 50 MiB in the supported formats.
func DefaultLimits() Limits {
	return Limits{
		MaxFiles:          10,
		MaxFileSize:       50 << 20,
		AllowedExtensions: []string{"wav", "mp3", "ogg", "flac", "m4a"},
	}
}

// Allowed reports whether name carries one of the allowed extensions,
// compared case-insensitively.
func (l Limits) Allowed(name string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	return ext != "" && slices.ContainsFunc(l.AllowedExtensions, func(a string) bool {
		return strings.EqualFold(strings.TrimPrefix(a, "."), ext)
	})
}

// CheckCount rejects an empty request or one with too many files.
func (l Limits) CheckCount(n int) error {
	if n == 0 {
		return fmt.Errorf("%w: no files uploaded", ErrInvalidUpload)
	}
	if n > l.MaxFiles {
		return fmt.Errorf("%w: max number of files is %d", speechtext.ErrCapacity, l.MaxFiles)
	}
	return nil
}

// CheckFile rejects a single file by extension, emptiness or size.
func (l Limits) CheckFile(u Upload) error {
	if !l.Allowed(u.Name) {
		return fmt.Errorf("%w: not allowed file format: %q, allowed: %s",
			ErrInvalidUpload, filepath.Ext(u.Name), strings.Join(l.AllowedExtensions, ", "))
	}
	if u.Size == 0 {
		return fmt.Errorf("%w: empty file: %s", ErrInvalidUpload, u.Name)
	}
	if u.Size > l.MaxFileSize {
		return fmt.Errorf("%w: file %s is too big, max size is %d bytes",
			speechtext.ErrCapacity, u.Name, l.MaxFileSize)
	}
	return nil
}

// Validate checks every extension first, then the file count, then each
// file's content size.
func (l Limits) Validate(uploads []Upload) error {
	for _, u := range uploads {
		if !l.Allowed(u.Name) {
			return l.CheckFile(u)
		}
	}
	if err := l.CheckCount(len(uploads)); err != nil {
		return err
	}
	for _, u := range uploads {
		if err := l.CheckFile(u); err != nil {
			return err
		}
	}
	return nil
}

// IsRejection reports whether err came from this package's checks.
func IsRejection(err error) bool {
	return errors.Is(err, ErrInvalidUpload) || errors.Is(err, speechtext.ErrCapacity)
}
