// Package token turns one IEC 61131-3 Structured Text source unit into a
// flat token stream.
//
// Four token classes are recognised, tried in order at every position:
//
//	ADDRESS     %I0.0, %QX1.3, %MW100 — memory-reference literals
//	SYMBOL      := <= >= <> .. and the single-character operators/punctuation
//	IDENTIFIER  plain, dotted property (PLS1.IN) and bit-selector (IN.3) forms
//	NUMBER      integer or decimal
//
// Whitespace, comments and characters matching no class are skipped without
// emitting a token. That permissiveness is load-bearing: generated sources
// carry metadata comment lines and editor artifacts that must not derail
// tokenization.
package token

import "regexp"

// Kind classifies a token.
type Kind int

const (
	Address Kind = iota
	Symbol
	Identifier
	Number
)

func (k Kind) String() string {
	switch k {
	case Address:
		return "ADDRESS"
	case Symbol:
		return "SYMBOL"
	case Identifier:
		return "IDENTIFIER"
	case Number:
		return "NUMBER"
	default:
		return "UNKNOWN"
	}
}

// Token is one lexeme of a Structured Text source unit.
type Token struct {
	Kind Kind
	Text string
}

// classes are tried in declaration order; within the SYMBOL class the
// two-character operators come first so ":=" never splits into ":" "=".
var classes = []struct {
	kind Kind
	re   *regexp.Regexp
}{
	{Address, regexp.MustCompile(`^%[IQM][XBWDL]?[0-9]+(?:\.[0-9]+)?`)},
	{Symbol, regexp.MustCompile(`^(?::=|<=|>=|<>|\.\.|[-+*/();=<>,:#\[\]])`)},
	{Identifier, regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z0-9_]+)*`)},
	{Number, regexp.MustCompile(`^[0-9]+(?:\.[0-9]+)?`)},
}

// Tokenize scans src and returns the ordered token sequence. It never fails;
// unmatched input is dropped.
func Tokenize(src string) []Token {
	var toks []Token
	i := 0
	for i < len(src) {
		c := src[i]
		if c == ' ' || c == '\t' || c == '\r' || c == '\n' {
			i++
			continue
		}
		// Line comments (including the sidecar //-metadata lines) and
		// (* ... *) block comments produce no tokens.
		if c == '/' && i+1 < len(src) && src[i+1] == '/' {
			for i < len(src) && src[i] != '\n' {
				i++
			}
			continue
		}
		if c == '(' && i+1 < len(src) && src[i+1] == '*' {
			end := i + 2
			for end+1 < len(src) && !(src[end] == '*' && src[end+1] == ')') {
				end++
			}
			if end+1 < len(src) {
				i = end + 2
			} else {
				i = len(src)
			}
			continue
		}

		matched := false
		for _, cl := range classes {
			if m := cl.re.FindString(src[i:]); m != "" {
				toks = append(toks, Token{Kind: cl.kind, Text: m})
				i += len(m)
				matched = true
				break
			}
		}
		if !matched {
			i++ // silently skip
		}
	}
	return toks
}

// Join renders a token run back to text with single spaces between tokens.
// Tokenize(Join(Tokenize(s))) is identical to Tokenize(s).
func Join(toks []Token) string {
	n := 0
	for _, t := range toks {
		n += len(t.Text) + 1
	}
	b := make([]byte, 0, n)
	for i, t := range toks {
		if i > 0 {
			b = append(b, ' ')
		}
		b = append(b, t.Text...)
	}
	return string(b)
}
