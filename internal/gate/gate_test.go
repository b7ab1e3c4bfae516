package gate

import (
	"errors"
	"testing"

	"github.com/ieee0824/speechtext"
)

func TestAllowed(t *testing.T) {
	l := DefaultLimits()
	tests := []struct {
		name string
		want bool
	}{
		{"a.wav", true},
		{"A.WAV", true},
		{"song.final.mp3", true},
		{"x.flac", true},
		{"x.m4a", true},
		{"x.ogg", true},
		{"x.txt", false},
		{"noext", false},
		{"wav", false},
	}
	for _, tt := range tests {
		if got := l.Allowed(tt.name); got != tt.want {
			t.Errorf("Allowed(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestValidate(t *testing.T) {
	l := Limits{MaxFiles: 2, MaxFileSize: 100, AllowedExtensions: []string{"wav", ".mp3"}}

	tests := []struct {
		name     string
		uploads  []Upload
		wantKind error
	}{
		{"ok", []Upload{{"a.wav", 10}, {"b.mp3", 100}}, nil},
		{"none", nil, ErrInvalidUpload},
		{"bad_ext", []Upload{{"a.txt", 10}}, ErrInvalidUpload},
		{"empty_file", []Upload{{"a.wav", 0}}, ErrInvalidUpload},
		{"too_big", []Upload{{"a.wav", 101}}, speechtext.ErrCapacity},
		{"too_many", []Upload{{"a.wav", 1}, {"b.wav", 1}, {"c.wav", 1}}, speechtext.ErrCapacity},
		// extension problems are reported before the count
		{"too_many_bad_ext", []Upload{{"a.wav", 1}, {"b.wav", 1}, {"c.exe", 1}}, ErrInvalidUpload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := l.Validate(tt.uploads)
			if tt.wantKind == nil {
				if err != nil {
					t.Fatalf("Validate = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantKind) {
				t.Fatalf("Validate = %v, want %v", err, tt.wantKind)
			}
			if !IsRejection(err) {
				t.Errorf("IsRejection(%v) = false", err)
			}
		})
	}
}

func TestCapacityIsClientError(t *testing.T) {
	err := DefaultLimits().CheckCount(11)
	if !speechtext.IsClientError(err) {
		t.Errorf("IsClientError(%v) = false, want true", err)
	}
}
