package decoder

// Result holds the recognition output for one utterance.
type Result struct {
	Text     string   // recognized text
	Symbols  []Symbol // per-symbol details, blanks excluded
	LogScore float64  // log probability of the greedy path
}

// Symbol holds the output-step span and confidence of one emitted symbol.
type Symbol struct {
	Text      string
	Index     int
	StartStep int     // first step of the run
	EndStep   int     // last step of the run, inclusive
	Prob      float64 // highest step probability within the run
}
