// Package parser consumes a Structured Text token stream and produces the
// block-structured AST.
//
// Parsing is single-pass recursive descent with one token of lookahead.
// Unrecognized tokens at the top level are skipped, matching the tokenizer's
// permissiveness; a missing block terminator is a hard failure.
package parser

import (
	"fmt"
	"strings"

	"github.com/damischa1/plcgen/internal/ast"
	"github.com/damischa1/plcgen/internal/token"
)

type parser struct {
	toks []token.Token
	pos  int
}

// Parse builds the AST for one source unit.
func Parse(toks []token.Token) (*ast.Unit, error) {
	p := &parser{toks: toks}
	unit := &ast.Unit{}
	for p.pos < len(p.toks) {
		t := p.toks[p.pos]
		switch {
		case isKw(t, "VAR_GLOBAL"):
			p.pos++
			vars, err := p.varList(0)
			if err != nil {
				return nil, err
			}
			unit.Blocks = append(unit.Blocks, ast.GlobalVars{Vars: vars})

		case isKw(t, "PROGRAM"):
			p.pos++
			name, err := p.ident("program name")
			if err != nil {
				return nil, err
			}
			vars, stmts, err := p.pouBody("END_PROGRAM")
			if err != nil {
				return nil, err
			}
			unit.Blocks = append(unit.Blocks, ast.ProgramDecl{Name: name, Vars: vars, Stmts: stmts})

		case isKw(t, "FUNCTION_BLOCK"):
			p.pos++
			name, err := p.ident("function block name")
			if err != nil {
				return nil, err
			}
			vars, stmts, err := p.pouBody("END_FUNCTION_BLOCK")
			if err != nil {
				return nil, err
			}
			unit.Blocks = append(unit.Blocks, ast.FunctionBlockDecl{Name: name, Vars: vars, Stmts: stmts})

		case isKw(t, "FUNCTION"):
			p.pos++
			name, err := p.ident("function name")
			if err != nil {
				return nil, err
			}
			if err := p.expectSymbol(":"); err != nil {
				return nil, err
			}
			ret, err := p.ident("function return type")
			if err != nil {
				return nil, err
			}
			vars, stmts, err := p.pouBody("END_FUNCTION")
			if err != nil {
				return nil, err
			}
			unit.Blocks = append(unit.Blocks, ast.FunctionDecl{Name: name, Returns: ret, Vars: vars, Stmts: stmts})

		default:
			p.pos++ // unrecognized top-level token: skip
		}
	}
	return unit, nil
}

// ── Lookahead helpers ────────────────────────────────────────────────────────

func isKw(t token.Token, kw string) bool {
	return t.Kind == token.Identifier && strings.EqualFold(t.Text, kw)
}

func (p *parser) peek() (token.Token, bool) {
	if p.pos >= len(p.toks) {
		return token.Token{}, false
	}
	return p.toks[p.pos], true
}

func (p *parser) ident(what string) (string, error) {
	t, ok := p.peek()
	if !ok {
		return "", fmt.Errorf("unexpected end of input: expected %s", what)
	}
	if t.Kind != token.Identifier {
		return "", fmt.Errorf("expected %s, got %q", what, t.Text)
	}
	p.pos++
	return t.Text, nil
}

func (p *parser) expectSymbol(sym string) error {
	t, ok := p.peek()
	if !ok {
		return fmt.Errorf("unexpected end of input: expected %q", sym)
	}
	if t.Kind != token.Symbol || t.Text != sym {
		return fmt.Errorf("expected %q, got %q", sym, t.Text)
	}
	p.pos++
	return nil
}

func (p *parser) acceptSymbol(sym string) {
	if t, ok := p.peek(); ok && t.Kind == token.Symbol && t.Text == sym {
		p.pos++
	}
}

// collectUntilKeyword captures tokens up to one of the stop keywords, consumes
// the keyword and reports which one ended the run.
func (p *parser) collectUntilKeyword(stops ...string) (ast.Expr, string, error) {
	var run ast.Expr
	for {
		t, ok := p.peek()
		if !ok {
			return nil, "", fmt.Errorf("unexpected end of input: expected %s", strings.Join(stops, " or "))
		}
		for _, kw := range stops {
			if isKw(t, kw) {
				p.pos++
				return run, strings.ToUpper(kw), nil
			}
		}
		run = append(run, t)
		p.pos++
	}
}

// collectUntilSymbol captures tokens up to sym without consuming it.
func (p *parser) collectUntilSymbol(sym string) (ast.Expr, error) {
	var run ast.Expr
	for {
		t, ok := p.peek()
		if !ok {
			return nil, fmt.Errorf("unexpected end of input: expected %q", sym)
		}
		if t.Kind == token.Symbol && t.Text == sym {
			return run, nil
		}
		run = append(run, t)
		p.pos++
	}
}

// ── Declarations ─────────────────────────────────────────────────────────────

// varList parses declarations up to END_VAR (consumed).
func (p *parser) varList(startOrder int) ([]ast.VarDecl, error) {
	var out []ast.VarDecl
	order := startOrder
	for {
		t, ok := p.peek()
		if !ok {
			return nil, fmt.Errorf("unexpected end of input: expected END_VAR")
		}
		if isKw(t, "END_VAR") {
			p.pos++
			return out, nil
		}
		if t.Kind != token.Identifier {
			p.pos++ // stray punctuation or retained attribute pragma
			continue
		}
		d := ast.VarDecl{Name: t.Text, Order: order}
		p.pos++
		if nt, ok := p.peek(); ok && isKw(nt, "AT") {
			p.pos++
			at, ok := p.peek()
			if !ok || at.Kind != token.Address {
				return nil, fmt.Errorf("expected address after AT for variable %s", d.Name)
			}
			d.Address = at.Text
			p.pos++
		}
		if err := p.expectSymbol(":"); err != nil {
			return nil, fmt.Errorf("variable %s: %w", d.Name, err)
		}
		typ, err := p.ident("type name")
		if err != nil {
			return nil, fmt.Errorf("variable %s: %w", d.Name, err)
		}
		d.Type = typ
		if nt, ok := p.peek(); ok && nt.Kind == token.Symbol && nt.Text == ":=" {
			p.pos++
			run, err := p.collectUntilSymbol(";")
			if err != nil {
				return nil, err
			}
			d.Init = token.Join(run)
		}
		if err := p.expectSymbol(";"); err != nil {
			return nil, fmt.Errorf("variable %s: %w", d.Name, err)
		}
		out = append(out, d)
		order++
	}
}

// pouBody parses interleaved variable sections and statements up to the end
// keyword, then hoists an implicit CALL for every function-block instance
// variable so instances are updated before their outputs are read.
func (p *parser) pouBody(end string) ([]ast.VarSection, []ast.Stmt, error) {
	var sections []ast.VarSection
	var stmts []ast.Stmt
	order := 0
	for {
		t, ok := p.peek()
		if !ok {
			return nil, nil, fmt.Errorf("unexpected end of input: expected %s", end)
		}
		if isKw(t, end) {
			p.pos++
			p.acceptSymbol(";")
			break
		}
		var kind ast.SectionKind
		isSection := true
		switch {
		case isKw(t, "VAR_INPUT"):
			kind = ast.SectionInput
		case isKw(t, "VAR_OUTPUT"):
			kind = ast.SectionOutput
		case isKw(t, "VAR_GLOBAL"):
			kind = ast.SectionGlobal
		case isKw(t, "VAR"):
			kind = ast.SectionLocal
		default:
			isSection = false
		}
		if isSection {
			p.pos++
			vars, err := p.varList(order)
			if err != nil {
				return nil, nil, err
			}
			order += len(vars)
			sections = append(sections, ast.VarSection{Kind: kind, Vars: vars})
			continue
		}
		st, err := p.statement()
		if err != nil {
			return nil, nil, err
		}
		if st != nil {
			stmts = append(stmts, st)
		}
	}

	var hoisted []ast.Stmt
	for _, sec := range sections {
		for _, v := range sec.Vars {
			if !ast.IsElementary(v.Type) {
				hoisted = append(hoisted, ast.Call{Name: v.Name, Hoisted: true})
			}
		}
	}
	return sections, append(hoisted, stmts...), nil
}

// ── Statements ───────────────────────────────────────────────────────────────

func (p *parser) statement() (ast.Stmt, error) {
	t, ok := p.peek()
	if !ok {
		return nil, fmt.Errorf("unexpected end of input in statement position")
	}
	switch {
	case isKw(t, "IF"):
		return p.ifStmt()
	case isKw(t, "WHILE"):
		return p.whileStmt()
	case isKw(t, "FOR"):
		return p.forStmt()
	case isKw(t, "REPEAT"):
		return p.repeatStmt()
	case isKw(t, "CASE"):
		return p.caseStmt()
	case t.Kind == token.Identifier || t.Kind == token.Address:
		return p.simpleStmt()
	default:
		p.pos++ // stray token between statements
		return nil, nil
	}
}

// stmtsUntil parses statements up to one of the terminator keywords, consumes
// the terminator and reports which one was hit.
func (p *parser) stmtsUntil(terms ...string) ([]ast.Stmt, string, error) {
	var out []ast.Stmt
	for {
		t, ok := p.peek()
		if !ok {
			return nil, "", fmt.Errorf("unexpected end of input: expected %s", strings.Join(terms, " or "))
		}
		for _, kw := range terms {
			if isKw(t, kw) {
				p.pos++
				return out, strings.ToUpper(kw), nil
			}
		}
		st, err := p.statement()
		if err != nil {
			return nil, "", err
		}
		if st != nil {
			out = append(out, st)
		}
	}
}

func (p *parser) simpleStmt() (ast.Stmt, error) {
	t, _ := p.peek()
	p.pos++
	nt, ok := p.peek()
	// Bare '=' directly after the leading reference is positional
	// assignment; inside the captured run it stays equality.
	if ok && nt.Kind == token.Symbol && (nt.Text == ":=" || nt.Text == "=") {
		p.pos++
		run, err := p.collectUntilSymbol(";")
		if err != nil {
			return nil, err
		}
		p.pos++ // ';'
		return ast.Assign{Target: t, Value: run}, nil
	}
	if ok && nt.Kind == token.Symbol && nt.Text == "(" {
		p.pos++
		args, err := p.balancedArgs()
		if err != nil {
			return nil, fmt.Errorf("call %s: %w", t.Text, err)
		}
		if err := p.expectSymbol(";"); err != nil {
			return nil, fmt.Errorf("call %s: %w", t.Text, err)
		}
		return ast.Call{Name: t.Text, Args: args}, nil
	}
	// Lone identifier with neither ':=' nor '(': drop it and carry on.
	return nil, nil
}

// balancedArgs captures the argument run after '(' up to the matching ')'.
func (p *parser) balancedArgs() (ast.Expr, error) {
	var run ast.Expr
	depth := 1
	for {
		t, ok := p.peek()
		if !ok {
			return nil, fmt.Errorf("unexpected end of input: expected %q", ")")
		}
		if t.Kind == token.Symbol {
			switch t.Text {
			case "(":
				depth++
			case ")":
				depth--
				if depth == 0 {
					p.pos++
					return run, nil
				}
			}
		}
		run = append(run, t)
		p.pos++
	}
}

func (p *parser) ifStmt() (ast.Stmt, error) {
	p.pos++ // IF
	cond, _, err := p.collectUntilKeyword("THEN")
	if err != nil {
		return nil, err
	}
	node := ast.If{Cond: cond}
	body, term, err := p.stmtsUntil("ELSIF", "ELSE", "END_IF")
	if err != nil {
		return nil, err
	}
	node.Then = body
	for term == "ELSIF" {
		c, _, err := p.collectUntilKeyword("THEN")
		if err != nil {
			return nil, err
		}
		b, t2, err := p.stmtsUntil("ELSIF", "ELSE", "END_IF")
		if err != nil {
			return nil, err
		}
		node.Elsifs = append(node.Elsifs, ast.Elsif{Cond: c, Then: b})
		term = t2
	}
	if term == "ELSE" {
		b, _, err := p.stmtsUntil("END_IF")
		if err != nil {
			return nil, err
		}
		node.Else = b
	}
	p.acceptSymbol(";")
	return node, nil
}

func (p *parser) whileStmt() (ast.Stmt, error) {
	p.pos++ // WHILE
	cond, _, err := p.collectUntilKeyword("DO")
	if err != nil {
		return nil, err
	}
	body, _, err := p.stmtsUntil("END_WHILE")
	if err != nil {
		return nil, err
	}
	p.acceptSymbol(";")
	return ast.While{Cond: cond, Body: body}, nil
}

func (p *parser) forStmt() (ast.Stmt, error) {
	p.pos++ // FOR
	v, err := p.ident("loop variable")
	if err != nil {
		return nil, err
	}
	if err := p.expectSymbol(":="); err != nil {
		return nil, fmt.Errorf("FOR %s: %w", v, err)
	}
	from, _, err := p.collectUntilKeyword("TO")
	if err != nil {
		return nil, err
	}
	to, term, err := p.collectUntilKeyword("BY", "DO")
	if err != nil {
		return nil, err
	}
	var step ast.Expr
	if term == "BY" {
		step, _, err = p.collectUntilKeyword("DO")
		if err != nil {
			return nil, err
		}
	}
	body, _, err := p.stmtsUntil("END_FOR")
	if err != nil {
		return nil, err
	}
	p.acceptSymbol(";")
	return ast.For{Var: v, From: from, To: to, Step: step, Body: body}, nil
}

func (p *parser) repeatStmt() (ast.Stmt, error) {
	p.pos++ // REPEAT
	body, _, err := p.stmtsUntil("UNTIL")
	if err != nil {
		return nil, err
	}
	cond, _, err := p.collectUntilKeyword("END_REPEAT")
	if err != nil {
		return nil, err
	}
	p.acceptSymbol(";")
	return ast.Repeat{Body: body, Until: cond}, nil
}

func (p *parser) caseStmt() (ast.Stmt, error) {
	p.pos++ // CASE
	sel, _, err := p.collectUntilKeyword("OF")
	if err != nil {
		return nil, err
	}
	node := ast.Case{Selector: sel}
	for {
		t, ok := p.peek()
		if !ok {
			return nil, fmt.Errorf("unexpected end of input: expected END_CASE")
		}
		if isKw(t, "END_CASE") {
			p.pos++
			p.acceptSymbol(";")
			return node, nil
		}
		if isKw(t, "ELSE") {
			p.pos++
			body, _, err := p.stmtsUntil("END_CASE")
			if err != nil {
				return nil, err
			}
			node.Else = body
			p.acceptSymbol(";")
			return node, nil
		}
		labels, err := p.collectUntilSymbol(":")
		if err != nil {
			return nil, err
		}
		p.pos++ // ':'
		var body []ast.Stmt
		for {
			nt, ok := p.peek()
			if !ok {
				return nil, fmt.Errorf("unexpected end of input: expected END_CASE")
			}
			if isKw(nt, "END_CASE") || isKw(nt, "ELSE") || p.atCaseLabel() {
				break
			}
			st, err := p.statement()
			if err != nil {
				return nil, err
			}
			if st != nil {
				body = append(body, st)
			}
		}
		node.Branches = append(node.Branches, ast.CaseBranch{Labels: labels, Body: body})
	}
}

// atCaseLabel reports whether the upcoming tokens form a branch label: a run
// of numbers, identifiers, ',' and '..' followed by a bare ':'.
func (p *parser) atCaseLabel() bool {
	j := p.pos
	for j < len(p.toks) {
		t := p.toks[j]
		switch {
		case t.Kind == token.Identifier &&
			(isKw(t, "IF") || isKw(t, "WHILE") || isKw(t, "FOR") ||
				isKw(t, "REPEAT") || isKw(t, "CASE")):
			return false
		case t.Kind == token.Number || t.Kind == token.Identifier:
			j++
		case t.Kind == token.Symbol && (t.Text == "," || t.Text == ".."):
			j++
		case t.Kind == token.Symbol && t.Text == ":":
			return j > p.pos
		default:
			return false
		}
	}
	return false
}
