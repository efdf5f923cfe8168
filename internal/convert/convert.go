// Package convert rewrites raw Structured Text token runs into backend
// expression syntax.
//
// It is shared by the parser's condition handling and the code generators:
// control-language operators become backend operators, address literals
// become typed read calls selected by width tag, dotted bit selectors become
// bit-read calls, and bare references to function-block fields gain the
// backend's self-qualifier. Tokens that are already function calls, literals
// or rewritten address/bit expressions pass through unchanged.
package convert

import (
	"strings"

	"github.com/damischa1/plcgen/internal/token"
)

// Target selects the backend expression dialect.
type Target int

const (
	Cpp Target = iota
	JS
)

type ops struct {
	and, or, not, xor  string
	mod, div           string
	eq, ne, assign     string
	boolTrue, boolFals string
	self               string // qualifier for function-block fields
	runtime            string // prefix for runtime helper calls
}

var opsFor = map[Target]ops{
	Cpp: {and: "&&", or: "||", not: "!", xor: "^", mod: "%", div: "/",
		eq: "==", ne: "!=", assign: "=", boolTrue: "true", boolFals: "false",
		self: "", runtime: ""},
	JS: {and: "&&", or: "||", not: "!", xor: "^", mod: "%", div: "/",
		eq: "==", ne: "!=", assign: "=", boolTrue: "true", boolFals: "false",
		self: "this.", runtime: "PLC."},
}

// Context carries the declaration facts the converter needs.
type Context struct {
	Target          Target
	InFunctionBlock bool
	// FBFields are the declared fields of the enclosing function block;
	// bare references to them receive the dialect's self-qualifier.
	FBFields map[string]bool
	// Instances are the known local function-block instance names.
	Instances map[string]bool
	// Addresses maps address-bound variable names to their bound address;
	// reads of those names become typed read calls.
	Addresses map[string]string
}

// Text re-tokenizes pre-joined text and converts it.
func (c *Context) Text(s string) string {
	return c.Expr(token.Tokenize(s))
}

// Expr converts one token run to backend syntax.
func (c *Context) Expr(toks []token.Token) string {
	o := opsFor[c.Target]

	var b strings.Builder
	prevOpen := false
	first := true
	emit := func(text string, glueLeft bool) {
		if !first && !glueLeft && !prevOpen {
			b.WriteByte(' ')
		}
		b.WriteString(text)
		prevOpen = text == "("
		first = false
	}

	for i := 0; i < len(toks); i++ {
		t := toks[i]
		switch t.Kind {
		case token.Address:
			emit(c.Read(t.Text), false)

		case token.Number:
			emit(t.Text, false)

		case token.Symbol:
			switch t.Text {
			case ":=":
				emit(o.assign, false)
			case "<>":
				emit(o.ne, false)
			case "=":
				// Statement-position '=' is split off by the parser as an
				// assignment target; by the time a run reaches the converter
				// it is an expression, so '=' is always equality here.
				emit(o.eq, false)
			case ")", ",", ";":
				emit(t.Text, true)
			default:
				emit(t.Text, false)
			}

		case token.Identifier:
			switch strings.ToUpper(t.Text) {
			case "AND":
				emit(o.and, false)
				continue
			case "OR":
				emit(o.or, false)
				continue
			case "NOT":
				emit(o.not, false)
				continue
			case "XOR":
				emit(o.xor, false)
				continue
			case "MOD":
				emit(o.mod, false)
				continue
			case "DIV":
				emit(o.div, false)
				continue
			case "TRUE":
				emit(o.boolTrue, false)
				continue
			case "FALSE":
				emit(o.boolFals, false)
				continue
			}
			// An identifier directly followed by '(' is a call. Runtime
			// accessor calls are already rewritten, so they pass through to
			// the matching ')' untouched; for any other call only the name
			// passes through and the arguments convert normally.
			if i+1 < len(toks) && toks[i+1].Kind == token.Symbol && toks[i+1].Text == "(" {
				if isRuntimeCall(t.Text) {
					emit(t.Text, false)
					depth := 0
					for i++; i < len(toks); i++ {
						a := toks[i]
						glue := a.Kind == token.Symbol && (a.Text == ")" || a.Text == ",")
						if a.Kind == token.Symbol && a.Text == "(" {
							depth++
							emit(a.Text, true)
							continue
						}
						if a.Kind == token.Symbol && a.Text == ")" {
							depth--
							emit(a.Text, true)
							if depth == 0 {
								break
							}
							continue
						}
						emit(a.Text, glue)
					}
					continue
				}
				emit(t.Text, false)
				i++
				emit("(", true)
				continue
			}
			emit(c.reference(t.Text), false)
		}
	}
	return b.String()
}

// reference rewrites one identifier: bit selectors become bit reads,
// address-bound names become typed reads, function-block fields gain the
// self-qualifier.
func (c *Context) reference(name string) string {
	o := opsFor[c.Target]
	parts := strings.Split(name, ".")
	last := parts[len(parts)-1]
	if len(parts) > 1 && allDigits(last) {
		base := strings.Join(parts[:len(parts)-1], ".")
		return o.runtime + "getBit(" + c.reference(base) + ", " + last + ")"
	}
	if addr, ok := c.Addresses[name]; ok {
		return c.Read(addr)
	}
	if c.InFunctionBlock && c.FBFields[parts[0]] && o.self != "" {
		return o.self + name
	}
	return name
}

// Read renders the typed read call for one address literal, selected by the
// address's width tag.
func (c *Context) Read(addr string) string {
	o := opsFor[c.Target]
	return o.runtime + readFunc(addr) + "(\"" + addr + "\")"
}

// Write renders the typed write call assigning val to one address literal.
func (c *Context) Write(addr, val string) string {
	o := opsFor[c.Target]
	f := strings.Replace(readFunc(addr), "read", "write", 1)
	return o.runtime + f + "(\"" + addr + "\", " + val + ")"
}

// readFunc maps a width tag to its runtime accessor. Addresses without a
// width tag go through the untyped whole-variable accessor, bit offset or
// not.
func readFunc(addr string) string {
	if len(addr) < 3 {
		return "readAddress"
	}
	switch addr[2] {
	case 'X':
		return "readBit"
	case 'B':
		return "readByte"
	case 'W':
		return "readWord"
	case 'D':
		return "readDWord"
	case 'L':
		return "readLWord"
	}
	return "readAddress"
}

// runtimeCalls are the accessor names the converter itself produces; runs
// containing them are re-conversions and must stay stable.
var runtimeCalls = map[string]bool{
	"getBit": true, "setBit": true,
	"readBit": true, "readByte": true, "readWord": true,
	"readDWord": true, "readLWord": true, "readAddress": true,
	"writeBit": true, "writeByte": true, "writeWord": true,
	"writeDWord": true, "writeLWord": true, "writeAddress": true,
}

func isRuntimeCall(name string) bool {
	return runtimeCalls[strings.TrimPrefix(name, "PLC.")]
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
