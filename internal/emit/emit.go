// Package emit walks the Structured Text AST and produces one
// backend-specific source unit.
//
// Two backend profiles exist: a statically typed native profile (C++) and a
// dynamic scripting profile (JavaScript). Both consume the same AST and the
// same expression-converter output; they differ in declaration syntax and in
// how function-block instances are named and retained.
package emit

import (
	"fmt"
	"strings"

	"github.com/damischa1/plcgen/internal/ast"
	"github.com/damischa1/plcgen/internal/convert"
	"github.com/damischa1/plcgen/internal/token"
)

// Generator renders one source unit for its backend.
type Generator interface {
	Unit(u *ast.Unit) (string, error)
}

// For returns the generator for a target name.
func For(target string) (Generator, error) {
	switch strings.ToLower(target) {
	case "cpp", "c++", "native":
		return Cpp{}, nil
	case "js", "javascript", "script":
		return JS{}, nil
	default:
		return nil, fmt.Errorf("unknown target %q", target)
	}
}

// ── Indented line writer ─────────────────────────────────────────────────────

type buf struct {
	b      strings.Builder
	indent int
}

func (w *buf) line(format string, a ...any) {
	for i := 0; i < w.indent; i++ {
		w.b.WriteString("  ")
	}
	if len(a) == 0 {
		w.b.WriteString(format)
	} else {
		fmt.Fprintf(&w.b, format, a...)
	}
	w.b.WriteByte('\n')
}

func (w *buf) String() string { return w.b.String() }

// ── Unit-wide facts ──────────────────────────────────────────────────────────

// unitGlobals collects the address bindings and plain names declared in the
// unit's VAR_GLOBAL blocks.
func unitGlobals(u *ast.Unit) map[string]string {
	addrs := map[string]string{}
	for _, b := range u.Blocks {
		gv, ok := b.(ast.GlobalVars)
		if !ok {
			continue
		}
		for _, v := range gv.Vars {
			if v.Address != "" {
				addrs[v.Name] = v.Address
			}
		}
	}
	return addrs
}

// localFacts splits a POU's sections into address bindings and function-block
// instance names, merged over the unit-wide globals.
func localFacts(globals map[string]string, sections []ast.VarSection) (addrs map[string]string, instances map[string]bool) {
	addrs = map[string]string{}
	for k, v := range globals {
		addrs[k] = v
	}
	instances = map[string]bool{}
	for _, sec := range sections {
		for _, v := range sec.Vars {
			if v.Address != "" {
				addrs[v.Name] = v.Address
			}
			if !ast.IsElementary(v.Type) {
				instances[v.Name] = true
			}
		}
	}
	return addrs, instances
}

// ── Statement translation ────────────────────────────────────────────────────

// translator renders statements for one POU body. The two backends share the
// control-flow syntax; the hooks cover the places they differ.
type translator struct {
	ctx      *convert.Context
	w        *buf
	selfName string // function name, for self-assignment → return rewriting
	instCall func(name string) string
	setBit   func(base, bit, val string) string
}

// stmts translates a statement list. A statement the translator cannot
// handle is rendered as an inline comment marker carrying its serialized
// form, and translation continues with the next statement.
func (tr *translator) stmts(list []ast.Stmt) {
	for _, s := range list {
		if err := tr.stmt(s); err != nil {
			tr.w.line("// [unsupported] %s", describe(s))
		}
	}
}

func (tr *translator) stmt(s ast.Stmt) error {
	switch v := s.(type) {
	case ast.Assign:
		return tr.assign(v)

	case ast.If:
		tr.w.line("if (%s) {", tr.ctx.Expr(v.Cond))
		tr.w.indent++
		tr.stmts(v.Then)
		tr.w.indent--
		for _, e := range v.Elsifs {
			tr.w.line("} else if (%s) {", tr.ctx.Expr(e.Cond))
			tr.w.indent++
			tr.stmts(e.Then)
			tr.w.indent--
		}
		if len(v.Else) > 0 {
			tr.w.line("} else {")
			tr.w.indent++
			tr.stmts(v.Else)
			tr.w.indent--
		}
		tr.w.line("}")
		return nil

	case ast.While:
		tr.w.line("while (%s) {", tr.ctx.Expr(v.Cond))
		tr.w.indent++
		tr.stmts(v.Body)
		tr.w.indent--
		tr.w.line("}")
		return nil

	case ast.For:
		name := tr.ctx.Text(v.Var)
		step := "1"
		if v.Step != nil {
			step = tr.ctx.Expr(v.Step)
		}
		tr.w.line("for (%s = %s; %s <= %s; %s += %s) {",
			name, tr.ctx.Expr(v.From), name, tr.ctx.Expr(v.To), name, step)
		tr.w.indent++
		tr.stmts(v.Body)
		tr.w.indent--
		tr.w.line("}")
		return nil

	case ast.Repeat:
		tr.w.line("do {")
		tr.w.indent++
		tr.stmts(v.Body)
		tr.w.indent--
		tr.w.line("} while (!(%s));", tr.ctx.Expr(v.Until))
		return nil

	case ast.Case:
		return tr.caseStmt(v)

	case ast.Call:
		if v.Hoisted || tr.ctx.Instances[v.Name] {
			tr.w.line("%s;", tr.instCall(v.Name))
			return nil
		}
		tr.w.line("%s(%s);", v.Name, tr.ctx.Expr(v.Args))
		return nil

	default:
		return fmt.Errorf("unhandled statement %T", s)
	}
}

func (tr *translator) assign(v ast.Assign) error {
	if len(v.Value) == 0 {
		return fmt.Errorf("assignment to %s with empty right-hand side", v.Target.Text)
	}
	rhs := tr.ctx.Expr(v.Value)
	tgt := v.Target

	if tr.selfName != "" && strings.EqualFold(tgt.Text, tr.selfName) {
		tr.w.line("return %s;", rhs)
		return nil
	}
	if tgt.Kind == token.Address {
		tr.w.line("%s;", tr.ctx.Write(tgt.Text, rhs))
		return nil
	}
	if addr, ok := tr.ctx.Addresses[tgt.Text]; ok {
		tr.w.line("%s;", tr.ctx.Write(addr, rhs))
		return nil
	}
	// Dotted bit selector on the left: name.N sets bit N.
	parts := strings.Split(tgt.Text, ".")
	last := parts[len(parts)-1]
	if len(parts) > 1 && isDigits(last) {
		base := strings.Join(parts[:len(parts)-1], ".")
		if addr, ok := tr.ctx.Addresses[base]; ok {
			tr.w.line("%s;", tr.ctx.Write(addr+"."+last, rhs))
			return nil
		}
		tr.w.line("%s;", tr.setBit(tr.ctx.Text(base), last, rhs))
		return nil
	}
	tr.w.line("%s = %s;", tr.ctx.Text(tgt.Text), rhs)
	return nil
}

// caseStmt lowers CASE/OF to an if/else-if chain; labels may be single
// values, comma lists and lo..hi ranges.
func (tr *translator) caseStmt(v ast.Case) error {
	sel := tr.ctx.Expr(v.Selector)
	first := true
	for _, br := range v.Branches {
		cond, err := labelCond(sel, br.Labels, tr.ctx)
		if err != nil {
			return err
		}
		if first {
			tr.w.line("if (%s) {", cond)
			first = false
		} else {
			tr.w.line("} else if (%s) {", cond)
		}
		tr.w.indent++
		tr.stmts(br.Body)
		tr.w.indent--
	}
	if len(v.Else) > 0 {
		if first {
			// CASE with only an ELSE arm.
			tr.stmts(v.Else)
			return nil
		}
		tr.w.line("} else {")
		tr.w.indent++
		tr.stmts(v.Else)
		tr.w.indent--
	}
	if !first {
		tr.w.line("}")
	}
	return nil
}

func labelCond(sel string, labels ast.Expr, ctx *convert.Context) (string, error) {
	var alts []string
	i := 0
	for i < len(labels) {
		lo := labels[i]
		if lo.Kind != token.Number && lo.Kind != token.Identifier {
			return "", fmt.Errorf("bad case label %q", labels.Text())
		}
		i++
		if i+1 < len(labels) && labels[i].Kind == token.Symbol && labels[i].Text == ".." {
			hi := labels[i+1]
			alts = append(alts, fmt.Sprintf("(%s >= %s && %s <= %s)",
				sel, ctx.Text(lo.Text), sel, ctx.Text(hi.Text)))
			i += 2
		} else {
			alts = append(alts, fmt.Sprintf("%s == %s", sel, ctx.Text(lo.Text)))
		}
		if i < len(labels) && labels[i].Kind == token.Symbol && labels[i].Text == "," {
			i++
		}
	}
	if len(alts) == 0 {
		return "", fmt.Errorf("empty case label")
	}
	return strings.Join(alts, " || "), nil
}

func describe(s ast.Stmt) string {
	switch v := s.(type) {
	case ast.Assign:
		return fmt.Sprintf("%s := %s", v.Target.Text, v.Value.Text())
	case ast.Call:
		return fmt.Sprintf("%s(%s)", v.Name, v.Args.Text())
	default:
		return fmt.Sprintf("%T", s)
	}
}

func isDigits(s string) bool {
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
