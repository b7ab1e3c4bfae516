package eval

import "strings"

// Counts accumulates edit operations over reference units.
type Counts struct {
	Errors    int
	RefLength int
}

// Rate returns Errors / RefLength, or 0 when there is no reference.
func (c Counts) Rate() float64 {
	if c.RefLength == 0 {
		return 0
	}
	return float64(c.Errors) / float64(c.RefLength)
}

// CharCounts compares ref and hyp rune by rune.
func CharCounts(ref, hyp string) Counts {
	r := []rune(ref)
	return Counts{Errors: EditDistance(r, []rune(hyp)), RefLength: len(r)}
}

// WordCounts compares the whitespace-separated words of ref and hyp.
func WordCounts(ref, hyp string) Counts {
	r := strings.Fields(ref)
	return Counts{Errors: EditDistance(r, strings.Fields(hyp)), RefLength: len(r)}
}

// CER returns the character error rate of hyp against ref.
func CER(ref, hyp string) float64 { return CharCounts(ref, hyp).Rate() }

// WER returns the word error rate of hyp against ref.
func WER(ref, hyp string) float64 { return WordCounts(ref, hyp).Rate() }

// Score aggregates error counts over many utterances. The zero value is
// ready to use.
type Score struct {
	Utterances int
	Exact      int // hypotheses identical to their reference
	Chars      Counts
	Words      Counts
}

// Add records one reference/hypothesis pair.
func (s *Score) Add(ref, hyp string) {
	s.Utterances++
	if ref == hyp {
		s.Exact++
	}
	c := CharCounts(ref, hyp)
	s.Chars.Errors += c.Errors
	s.Chars.RefLength += c.RefLength
	w := WordCounts(ref, hyp)
	s.Words.Errors += w.Errors
	s.Words.RefLength += w.RefLength
}

// CER returns the corpus-level character error rate.
func (s *Score) CER() float64 { return s.Chars.Rate() }

// WER returns the corpus-level word error rate.
func (s *Score) WER() float64 { return s.Words.Rate() }
