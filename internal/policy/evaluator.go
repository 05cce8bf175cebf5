// Package policy decides whether a decoded command may spawn a process.
//
// The decision is a coarse keyword filter: Block when the command text
// contains any blacklisted keyword. There is no shell parsing and no notion
// of which token is the program being run.
package policy

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

// Decision is the outcome of evaluating one command.
type Decision int

const (
	Allow Decision = iota
	Block
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Block:
		return "block"
	default:
		return "decision(?)"
	}
}

// Evaluator holds a compiled keyword set. It is immutable and safe for
// concurrent use.
type Evaluator struct {
	cfg      Config
	keywords []string // as configured, deduplicated
	needles  []string // folded unless case sensitive
}

// New compiles cfg.
func New(cfg Config) (*Evaluator, error) {
	if cfg.MatchMode == "" {
		cfg.MatchMode = MatchSubstring
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Evaluator{cfg: cfg}
	seen := make(map[string]bool, len(cfg.Keywords))
	for _, k := range cfg.Keywords {
		needle := e.fold(k)
		if seen[needle] {
			continue
		}
		seen[needle] = true
		e.keywords = append(e.keywords, k)
		e.needles = append(e.needles, needle)
	}
	return e, nil
}

// MustNew is New for known-good configs.
func MustNew(cfg Config) *Evaluator {
	e, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return e
}

// fold applies Unicode case folding. A Caser carries state, so each call
// gets its own.
func (e *Evaluator) fold(s string) string {
	if e.cfg.CaseSensitive {
		return s
	}
	return cases.Fold().String(s)
}

// Config returns the configuration the evaluator was built from.
func (e *Evaluator) Config() Config {
	return e.cfg
}

// Keywords returns the effective keyword set in configuration order.
func (e *Evaluator) Keywords() []string {
	return append([]string(nil), e.keywords...)
}

// Evaluate returns Block if text contains any keyword. Empty text is Allow:
// there is nothing to match.
func (e *Evaluator) Evaluate(text string) Decision {
	if _, ok := e.Match(text); ok {
		return Block
	}
	return Allow
}

// Match returns the first keyword found in text.
func (e *Evaluator) Match(text string) (string, bool) {
	if text == "" {
		return "", false
	}
	hay := e.fold(text)
	for i, needle := range e.needles {
		if e.contains(hay, needle) {
			return e.keywords[i], true
		}
	}
	return "", false
}

func (e *Evaluator) contains(hay, needle string) bool {
	if e.cfg.MatchMode != MatchWord {
		return strings.Contains(hay, needle)
	}
	for off := 0; off <= len(hay)-len(needle); {
		i := strings.Index(hay[off:], needle)
		if i < 0 {
			return false
		}
		start := off + i
		end := start + len(needle)
		if boundaryBefore(hay, start) && boundaryAfter(hay, end) {
			return true
		}
		_, size := utf8.DecodeRuneInString(hay[start:])
		off = start + size
	}
	return false
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

func boundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return !isWordRune(r)
}

func boundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return !isWordRune(r)
}
