// Package project is the in-memory model of a control project: the type
// namespace with its programs and function blocks, the deployment side with
// configurations, resources, tasks and program instances, and the graphical
// bodies whose connection graphs the resolver lowers to Structured Text.
package project

import "github.com/damischa1/plcgen/internal/sidecar"

// Project is one loaded document. Types and instances are separate trees;
// instances refer to types by name only.
type Project struct {
	Namespaces     []Namespace
	Configurations []Configuration
}

// Namespace groups program and function-block declarations.
type Namespace struct {
	Name           string
	Programs       []Program
	FunctionBlocks []FunctionBlock
}

// Program is a top-level POU type. It only runs when a resource
// instantiates it.
type Program struct {
	Name string
	Vars []Variable
	Body Body
}

// FunctionBlock is an instantiable POU type.
type FunctionBlock struct {
	Name string
	Vars []Variable
	Body Body
}

// Variable is one declaration row. Address is nil for plain variables.
type Variable struct {
	Name    string
	Type    string
	Init    string
	Address *Address
}

// Configuration is one deployment target.
type Configuration struct {
	Name      string
	Resources []Resource
}

// Resource is one execution unit: its tasks, the program instances bound to
// them, its global variables and its remote-I/O map.
type Resource struct {
	Name       string
	Tasks      []Task
	Instances  []ProgramInstance
	GlobalVars []Variable
	Maps       []sidecar.Map
}

// Task is a cyclic schedule. Interval is in milliseconds.
type Task struct {
	Name     string
	Interval int
	Priority int
}

// ProgramInstance binds a named instance of a program type to a task. An
// empty TaskName means the instance runs every scan.
type ProgramInstance struct {
	Name     string
	TypeName string
	TaskName string
}

// ── POU bodies ───────────────────────────────────────────────────────────────

type BodyKind int

const (
	BodyST BodyKind = iota
	BodyLadder
	BodyFBD
)

// Body is one POU implementation. Exactly one of ST, Rungs or Networks is
// meaningful, selected by Kind.
type Body struct {
	Kind     BodyKind
	ST       string
	Rungs    []Rung
	Networks []Network
}

// Rung is one ladder rung. Objects keeps document order, which is also the
// tie-break order for parallel branches.
type Rung struct {
	EvaluationOrder int
	Objects         []Object
}

// Network is one function-block-diagram network. Only blocks, data sources
// and data sinks participate; rail-style objects have no meaning here.
type Network struct {
	EvaluationOrder int
	Objects         []Object
}

// ── Graph objects ────────────────────────────────────────────────────────────

// Connection names one producer output pin by its document-wide identifier.
type Connection struct {
	RefID string
}

// ConnectionPointIn is a consumer pin. Multiple connections mean the
// producers are alternatives (OR).
type ConnectionPointIn struct {
	Connections []Connection
}

// ConnectionPointOut is a producer pin.
type ConnectionPointOut struct {
	ID string
}

// Object is any element placed on a rung or network.
type Object interface {
	Local() string // document-local identifier, used in diagnostics
}

// LeftPowerRail is the boolean-true origin of a rung.
type LeftPowerRail struct {
	LocalID string
	Out     ConnectionPointOut
}

// RightPowerRail terminates a rung; it consumes and produces nothing.
type RightPowerRail struct {
	LocalID string
	In      ConnectionPointIn
}

// Contact reads a boolean variable in series with its input condition.
type Contact struct {
	LocalID  string
	Variable string
	Negated  bool
	In       ConnectionPointIn
	Out      ConnectionPointOut
}

// CompareContact conducts when Left <op> Right holds.
type CompareContact struct {
	LocalID string
	Op      string // one of =, <>, <, <=, >, >=
	Left    string
	Right   string
	In      ConnectionPointIn
	Out     ConnectionPointOut
}

type LatchKind int

const (
	LatchNone LatchKind = iota
	LatchSet
	LatchReset
)

// Coil writes its input condition to a boolean variable. Set and reset
// latches only act when the condition is true.
type Coil struct {
	LocalID  string
	Variable string
	Negated  bool
	Latch    LatchKind
	In       ConnectionPointIn
	Out      ConnectionPointOut
}

// BlockVariable is one formal pin of a Block.
type BlockVariable struct {
	Name string
	In   ConnectionPointIn  // input pins
	Out  ConnectionPointOut // output pins
}

// Block is a function-block invocation placed on the graph.
type Block struct {
	LocalID      string
	TypeName     string
	InstanceName string
	Inputs       []BlockVariable
	Outputs      []BlockVariable
}

// DataSource feeds a literal or variable expression into the graph.
type DataSource struct {
	LocalID    string
	Expression string
	Out        ConnectionPointOut
}

// DataSink assigns whatever drives it to a variable.
type DataSink struct {
	LocalID    string
	Expression string
	In         ConnectionPointIn
}

func (o *LeftPowerRail) Local() string  { return o.LocalID }
func (o *RightPowerRail) Local() string { return o.LocalID }
func (o *Contact) Local() string        { return o.LocalID }
func (o *CompareContact) Local() string { return o.LocalID }
func (o *Coil) Local() string           { return o.LocalID }
func (o *Block) Local() string          { return o.LocalID }
func (o *DataSource) Local() string     { return o.LocalID }
func (o *DataSink) Local() string       { return o.LocalID }

// ── Lookups ──────────────────────────────────────────────────────────────────

// Program finds a program type by name across all namespaces.
func (p *Project) Program(name string) *Program {
	for ni := range p.Namespaces {
		for pi := range p.Namespaces[ni].Programs {
			if p.Namespaces[ni].Programs[pi].Name == name {
				return &p.Namespaces[ni].Programs[pi]
			}
		}
	}
	return nil
}

// FunctionBlock finds a function-block type by name across all namespaces.
func (p *Project) FunctionBlock(name string) *FunctionBlock {
	for ni := range p.Namespaces {
		for fi := range p.Namespaces[ni].FunctionBlocks {
			if p.Namespaces[ni].FunctionBlocks[fi].Name == name {
				return &p.Namespaces[ni].FunctionBlocks[fi]
			}
		}
	}
	return nil
}

// AllFunctionBlocks returns every function-block type in declaration order.
func (p *Project) AllFunctionBlocks() []*FunctionBlock {
	var out []*FunctionBlock
	for ni := range p.Namespaces {
		for fi := range p.Namespaces[ni].FunctionBlocks {
			out = append(out, &p.Namespaces[ni].FunctionBlocks[fi])
		}
	}
	return out
}
