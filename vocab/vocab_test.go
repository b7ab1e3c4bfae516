package vocab

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestLoad(t *testing.T) {
	input := "[UNK]\na\nb\n<space>\n'\n"
	v, err := Load(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if v.Size() != 5 {
		t.Fatalf("Size() = %d, want 5", v.Size())
	}
	if v.Blank() != 5 || v.NumClasses() != 6 {
		t.Errorf("Blank, NumClasses = %d, %d, want 5, 6", v.Blank(), v.NumClasses())
	}

	tests := []struct {
		idx  int
		want string
	}{
		{0, ""},
		{1, "a"},
		{2, "b"},
		{3, " "},
		{4, "'"},
	}
	for _, tt := range tests {
		got, err := v.Symbol(tt.idx)
		if err != nil {
			t.Fatalf("Symbol(%d): %v", tt.idx, err)
		}
		if got != tt.want {
			t.Errorf("Symbol(%d) = %q, want %q", tt.idx, got, tt.want)
		}
	}

	if i, ok := v.Index(" "); !ok || i != 3 {
		t.Errorf("Index(\" \") = %d, %v, want 3, true", i, ok)
	}
	if _, ok := v.Index("z"); ok {
		t.Error("Index(\"z\") found a missing symbol")
	}
}

func TestLoad_CRLF(t *testing.T) {
	v, err := Load(strings.NewReader("x\r\ny\r\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s, _ := v.Symbol(1); s != "y" {
		t.Errorf("Symbol(1) = %q, want %q", s, "y")
	}
}

func TestLoad_Empty(t *testing.T) {
	if _, err := Load(strings.NewReader("")); err == nil {
		t.Error("expected error for empty vocabulary")
	}
}

func TestSymbol_OutOfRange(t *testing.T) {
	v, err := New([]string{"a", "b"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for _, i := range []int{-1, 2, 3} {
		if _, err := v.Symbol(i); !errors.Is(err, ErrIndexRange) {
			t.Errorf("Symbol(%d) err = %v, want ErrIndexRange", i, err)
		}
	}
}

func TestNew_Immutable(t *testing.T) {
	symbols := []string{"a", "b"}
	v, _ := New(symbols)
	symbols[0] = "z"
	if s, _ := v.Symbol(0); s != "a" {
		t.Errorf("Symbol(0) = %q after caller mutation, want %q", s, "a")
	}
	v.Symbols()[1] = "z"
	if s, _ := v.Symbol(1); s != "b" {
		t.Errorf("Symbol(1) = %q after Symbols() mutation, want %q", s, "b")
	}
}

func TestSaveLoad(t *testing.T) {
	v, _ := New([]string{"", "a", " ", "b"})
	var buf bytes.Buffer
	if err := v.Save(&buf); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if got, want := buf.String(), "[UNK]\na\n<space>\nb\n"; got != want {
		t.Fatalf("Save wrote %q, want %q", got, want)
	}
	v2, err := Load(&buf)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	for i := range v.Size() {
		a, _ := v.Symbol(i)
		b, _ := v2.Symbol(i)
		if a != b {
			t.Errorf("symbol %d: %q vs %q", i, a, b)
		}
	}
}
