// Package ast defines the block-structured tree produced by the Structured
// Text parser and consumed by the code generators.
//
// Expressions are not decomposed: condition and right-hand-side positions
// hold the raw token run as captured, and the expression converter rewrites
// them into backend syntax at generation time.
package ast

import (
	"strings"

	"github.com/damischa1/plcgen/internal/token"
)

// Expr is a raw token run captured by the parser.
type Expr []token.Token

// Text renders the run with single spaces, mainly for error markers.
func (e Expr) Text() string { return token.Join(e) }

// Unit is one parsed source unit: an ordered list of top-level blocks.
type Unit struct {
	Blocks []Block
}

// Block is one of GlobalVars, ProgramDecl, FunctionDecl, FunctionBlockDecl.
type Block interface{ block() }

type GlobalVars struct {
	Vars []VarDecl
}

type ProgramDecl struct {
	Name  string
	Vars  []VarSection
	Stmts []Stmt
}

type FunctionDecl struct {
	Name    string
	Returns string
	Vars    []VarSection
	Stmts   []Stmt
}

type FunctionBlockDecl struct {
	Name  string
	Vars  []VarSection
	Stmts []Stmt
}

func (GlobalVars) block()        {}
func (ProgramDecl) block()       {}
func (FunctionDecl) block()      {}
func (FunctionBlockDecl) block() {}

// SectionKind tags a variable section with its declaration keyword.
type SectionKind int

const (
	SectionLocal SectionKind = iota
	SectionInput
	SectionOutput
	SectionGlobal
)

type VarSection struct {
	Kind SectionKind
	Vars []VarDecl
}

// VarDecl is a single variable declaration. Order is the position within the
// owning declaration; it is significant for input/output parameter binding.
type VarDecl struct {
	Name    string
	Type    string
	Init    string
	Address string
	Order   int
}

// Stmt is one of Assign, If, While, For, Repeat, Case, Call.
type Stmt interface{ stmt() }

type Assign struct {
	Target token.Token
	Value  Expr
}

type Elsif struct {
	Cond Expr
	Then []Stmt
}

type If struct {
	Cond   Expr
	Then   []Stmt
	Elsifs []Elsif
	Else   []Stmt
}

type While struct {
	Cond Expr
	Body []Stmt
}

type For struct {
	Var  string
	From Expr
	To   Expr
	Step Expr // nil when no BY clause
	Body []Stmt
}

type Repeat struct {
	Body  []Stmt
	Until Expr
}

type CaseBranch struct {
	Labels Expr
	Body   []Stmt
}

type Case struct {
	Selector Expr
	Branches []CaseBranch
	Else     []Stmt
}

// Call is a bare function or function-block invocation statement. Synthetic
// calls hoisted for instance variables carry no Args and Hoisted=true.
type Call struct {
	Name    string
	Args    Expr
	Hoisted bool
}

func (Assign) stmt() {}
func (If) stmt()     {}
func (While) stmt()  {}
func (For) stmt()    {}
func (Repeat) stmt() {}
func (Case) stmt()   {}
func (Call) stmt()   {}

// elementary is the set of built-in scalar type names. A declared type
// outside this set is treated as a function-block instance declaration.
var elementary = map[string]bool{
	"BOOL": true, "BYTE": true, "WORD": true, "DWORD": true, "LWORD": true,
	"SINT": true, "INT": true, "DINT": true, "LINT": true,
	"USINT": true, "UINT": true, "UDINT": true, "ULINT": true,
	"REAL": true, "LREAL": true,
	"TIME": true, "STRING": true,
}

// IsElementary reports whether name (case-insensitive) is a built-in scalar
// type of the control-language type system.
func IsElementary(name string) bool {
	return elementary[strings.ToUpper(strings.TrimSpace(name))]
}
