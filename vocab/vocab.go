// Package vocab maps model output indices to text symbols.
package vocab

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Reserved tokens in vocabulary files.
const (
	SpaceToken   = "<space>"
	UnknownToken = "[UNK]"
)

// ErrIndexRange is returned for indices outside [0, Size()).
var ErrIndexRange = errors.New("vocab: index out of range")

// Vocabulary is an immutable index-to-symbol table. The CTC blank is the
// index just past the last symbol.
type Vocabulary struct {
	symbols []string
	index   map[string]int
}

// New builds a vocabulary from symbols in index order.
func New(symbols []string) (*Vocabulary, error) {
	if len(symbols) == 0 {
		return nil, errors.New("vocab: no symbols")
	}
	v := &Vocabulary{
		symbols: make([]string, len(symbols)),
		index:   make(map[string]int, len(symbols)),
	}
	copy(v.symbols, symbols)
	for i, s := range v.symbols {
		// first occurrence wins for reverse lookup
		if _, ok := v.index[s]; !ok {
			v.index[s] = i
		}
	}
	return v, nil
}

// Load reads one symbol per line; line i is index i.
// "<space>" stands for a single space, and "[UNK]" or an empty line is the
// out-of-vocabulary slot, which renders as nothing.
func Load(r io.Reader) (*Vocabulary, error) {
	var symbols []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		switch line {
		case SpaceToken:
			line = " "
		case UnknownToken:
			line = ""
		}
		symbols = append(symbols, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read vocabulary: %w", err)
	}
	return New(symbols)
}

// LoadFile is a convenience wrapper that opens a file path.
func LoadFile(path string) (*Vocabulary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

// Size returns the number of symbols, excluding the blank.
func (v *Vocabulary) Size() int { return len(v.symbols) }

// Blank returns the reserved CTC blank index.
func (v *Vocabulary) Blank() int { return len(v.symbols) }

// NumClasses returns the model output width: every symbol plus the blank.
func (v *Vocabulary) NumClasses() int { return len(v.symbols) + 1 }

// Symbol returns the text for index i.
func (v *Vocabulary) Symbol(i int) (string, error) {
	if i < 0 || i >= len(v.symbols) {
		return "", fmt.Errorf("%w: %d not in [0, %d)", ErrIndexRange, i, len(v.symbols))
	}
	return v.symbols[i], nil
}

// Index returns the index of symbol s.
func (v *Vocabulary) Index(s string) (int, bool) {
	i, ok := v.index[s]
	return i, ok
}

// Symbols returns a copy of the symbol table.
func (v *Vocabulary) Symbols() []string {
	out := make([]string, len(v.symbols))
	copy(out, v.symbols)
	return out
}

// Save writes v in the format read by Load.
func (v *Vocabulary) Save(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, s := range v.symbols {
		switch s {
		case " ":
			s = SpaceToken
		case "":
			s = UnknownToken
		}
		if _, err := fmt.Fprintln(bw, s); err != nil {
			return fmt.Errorf("write vocabulary: %w", err)
		}
	}
	return bw.Flush()
}
