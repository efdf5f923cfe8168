package project

import (
	"fmt"
	"sort"
	"strings"

	"github.com/damischa1/plcgen/internal/sidecar"
)

// DefaultMaxDepth bounds backward recursion when cycle detection is off.
const DefaultMaxDepth = 64

// Resolver lowers graphical bodies to Structured Text and renders whole
// resources as one source unit.
//
// With DetectCycles set, a wiring cycle is reported as an error naming the
// object it runs through. With it clear, recursion is instead bounded by
// MaxDepth (DefaultMaxDepth when zero), which turns a cycle into a depth
// error once the bound is hit.
type Resolver struct {
	DetectCycles bool
	MaxDepth     int
}

func (r *Resolver) maxDepth() int {
	if r.MaxDepth > 0 {
		return r.MaxDepth
	}
	return DefaultMaxDepth
}

// ── Resource rendering ───────────────────────────────────────────────────────

// ResourceText renders one resource as a Structured Text source unit:
// scheduling and mapping metadata comments, the VAR_GLOBAL section, every
// declared function block, then every program type the resource's instances
// reach.
func (r *Resolver) ResourceText(p *Project, res *Resource) (string, error) {
	var sb strings.Builder

	for _, t := range res.Tasks {
		sb.WriteString(sidecar.TaskComment(sidecar.Task{
			Name: t.Name, Interval: t.Interval, Priority: t.Priority,
		}))
		sb.WriteByte('\n')
	}
	for _, inst := range res.Instances {
		sb.WriteString(sidecar.InstanceComment(sidecar.Instance{
			TypeName: inst.TypeName, Name: inst.Name, AssociatedTaskName: inst.TaskName,
		}))
		sb.WriteByte('\n')
	}
	for _, m := range res.Maps {
		sb.WriteString(sidecar.MapComment(m))
		sb.WriteByte('\n')
	}

	sb.WriteString("VAR_GLOBAL\n")
	for _, v := range res.GlobalVars {
		sb.WriteString("    " + declLine(v))
		if v.Address != nil {
			sb.WriteString(" " + sidecar.GlobalComment(sidecar.Global{
				Name: v.Name, Address: v.Address.String(),
			}))
		}
		sb.WriteByte('\n')
	}
	sb.WriteString("END_VAR\n\n")

	for _, fb := range p.AllFunctionBlocks() {
		text, err := r.pouText("FUNCTION_BLOCK", fb.Name, fb.Vars, fb.Body)
		if err != nil {
			return "", fmt.Errorf("function block %s: %w", fb.Name, err)
		}
		sb.WriteString(text)
		sb.WriteByte('\n')
	}

	seen := map[string]bool{}
	for _, inst := range res.Instances {
		if seen[inst.TypeName] {
			continue
		}
		seen[inst.TypeName] = true
		prog := p.Program(inst.TypeName)
		if prog == nil {
			return "", fmt.Errorf("instance %s: no program type %q", inst.Name, inst.TypeName)
		}
		text, err := r.pouText("PROGRAM", prog.Name, prog.Vars, prog.Body)
		if err != nil {
			return "", fmt.Errorf("program %s: %w", prog.Name, err)
		}
		sb.WriteString(text)
		sb.WriteByte('\n')
	}

	return sb.String(), nil
}

func declLine(v Variable) string {
	s := v.Name
	if v.Address != nil {
		s += " AT " + v.Address.String()
	}
	s += " : " + v.Type
	if v.Init != "" {
		s += " := " + v.Init
	}
	return s + ";"
}

func (r *Resolver) pouText(kind, name string, vars []Variable, body Body) (string, error) {
	var sb strings.Builder
	sb.WriteString(kind + " " + name + "\n")
	sb.WriteString("VAR\n")
	declared := map[string]bool{}
	for _, v := range vars {
		declared[v.Name] = true
		sb.WriteString("    " + declLine(v) + "\n")
	}
	// Block invocations placed on the graph need instance storage even when
	// the interface never declared them.
	for _, b := range bodyBlocks(body) {
		if b.InstanceName == "" || declared[b.InstanceName] {
			continue
		}
		declared[b.InstanceName] = true
		sb.WriteString("    " + b.InstanceName + " : " + b.TypeName + ";\n")
	}
	sb.WriteString("END_VAR\n")

	switch body.Kind {
	case BodyST:
		text := strings.TrimRight(body.ST, "\n")
		if text != "" {
			sb.WriteString(text + "\n")
		}
	case BodyLadder:
		rungs := append([]Rung(nil), body.Rungs...)
		sort.SliceStable(rungs, func(i, j int) bool {
			return rungs[i].EvaluationOrder < rungs[j].EvaluationOrder
		})
		for _, rung := range rungs {
			stmts, err := r.statements(rung.Objects, true)
			if err != nil {
				return "", err
			}
			for _, s := range stmts {
				sb.WriteString("    " + s + "\n")
			}
		}
	case BodyFBD:
		nets := append([]Network(nil), body.Networks...)
		sort.SliceStable(nets, func(i, j int) bool {
			return nets[i].EvaluationOrder < nets[j].EvaluationOrder
		})
		for _, net := range nets {
			stmts, err := r.statements(net.Objects, false)
			if err != nil {
				return "", err
			}
			for _, s := range stmts {
				sb.WriteString("    " + s + "\n")
			}
		}
	}

	sb.WriteString("END_" + kind + "\n")
	return sb.String(), nil
}

func bodyBlocks(body Body) []*Block {
	var out []*Block
	collect := func(objs []Object) {
		for _, o := range objs {
			if b, ok := o.(*Block); ok {
				out = append(out, b)
			}
		}
	}
	for _, rung := range body.Rungs {
		collect(rung.Objects)
	}
	for _, net := range body.Networks {
		collect(net.Objects)
	}
	return out
}

// RungText resolves one rung to its statement list. Exposed for callers that
// lower a body piecemeal.
func (r *Resolver) RungText(rung Rung) ([]string, error) {
	return r.statements(rung.Objects, true)
}

// ── Graph lowering ───────────────────────────────────────────────────────────

// statements lowers one object container. Blocks and sinks come first in
// container order, then coils (ladder only).
func (r *Resolver) statements(objs []Object, ladder bool) ([]string, error) {
	var out []string

	for _, obj := range objs {
		b, ok := obj.(*Block)
		if !ok {
			continue
		}
		if !blockConnected(b) {
			continue
		}
		for _, in := range b.Inputs {
			if len(in.In.Connections) == 0 {
				continue
			}
			prods := producersFor(objs, in.In)
			if len(prods) == 1 {
				if ds, ok := prods[0].obj.(*DataSource); ok {
					out = append(out, fmt.Sprintf("%s.%s := %s;", b.InstanceName, in.Name, ds.Expression))
					continue
				}
			}
			expr, err := r.joined(objs, prods, map[string]bool{}, 0)
			if err != nil {
				return nil, err
			}
			if expr == "" {
				continue
			}
			out = append(out, fmt.Sprintf("%s.%s := %s;", b.InstanceName, in.Name, expr))
		}
		for _, o := range b.Outputs {
			for _, sink := range sinksOf(objs, o.Out.ID) {
				out = append(out, fmt.Sprintf("%s := %s.%s;", sink.Expression, b.InstanceName, o.Name))
			}
		}
	}

	if !ladder {
		return out, nil
	}

	for _, obj := range objs {
		c, ok := obj.(*Coil)
		if !ok {
			continue
		}
		prods := producersFor(objs, c.In)
		expr, err := r.joined(objs, prods, map[string]bool{}, 0)
		if err != nil {
			return nil, err
		}
		if expr == "" {
			continue
		}
		switch c.Latch {
		case LatchSet:
			out = append(out, fmt.Sprintf("IF %s THEN", expr),
				fmt.Sprintf("    %s := 1;", c.Variable), "END_IF;")
		case LatchReset:
			out = append(out, fmt.Sprintf("IF %s THEN", expr),
				fmt.Sprintf("    %s := 0;", c.Variable), "END_IF;")
		default:
			if c.Negated {
				out = append(out, fmt.Sprintf("%s := NOT (%s);", c.Variable, expr))
			} else {
				out = append(out, fmt.Sprintf("%s := %s;", c.Variable, expr))
			}
		}
	}
	return out, nil
}

func blockConnected(b *Block) bool {
	for _, in := range b.Inputs {
		if len(in.In.Connections) > 0 {
			return true
		}
	}
	return false
}

func sinksOf(objs []Object, outID string) []*DataSink {
	var out []*DataSink
	for _, obj := range objs {
		s, ok := obj.(*DataSink)
		if !ok {
			continue
		}
		for _, conn := range s.In.Connections {
			if conn.RefID == outID {
				out = append(out, s)
				break
			}
		}
	}
	return out
}

// producer is one resolved feeding object; pin names the block output when
// the producer is a block.
type producer struct {
	obj Object
	pin string
}

type outPin struct {
	id  string
	pin string
}

func outPinsOf(obj Object) []outPin {
	switch o := obj.(type) {
	case *LeftPowerRail:
		return []outPin{{o.Out.ID, ""}}
	case *Contact:
		return []outPin{{o.Out.ID, ""}}
	case *CompareContact:
		return []outPin{{o.Out.ID, ""}}
	case *Coil:
		return []outPin{{o.Out.ID, ""}}
	case *DataSource:
		return []outPin{{o.Out.ID, ""}}
	case *Block:
		pins := make([]outPin, 0, len(o.Outputs))
		for _, ov := range o.Outputs {
			pins = append(pins, outPin{ov.Out.ID, ov.Name})
		}
		return pins
	default:
		return nil
	}
}

// producersFor resolves a consumer pin to its feeding objects, in container
// order, deduplicated for this call. An unresolved reference contributes
// nothing.
func producersFor(objs []Object, in ConnectionPointIn) []producer {
	refs := map[string]bool{}
	for _, c := range in.Connections {
		if c.RefID != "" {
			refs[c.RefID] = true
		}
	}
	var out []producer
	seen := map[string]bool{}
	for _, obj := range objs {
		for _, pin := range outPinsOf(obj) {
			if !refs[pin.id] {
				continue
			}
			key := obj.Local() + "\x00" + pin.pin
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, producer{obj: obj, pin: pin.pin})
		}
	}
	return out
}

// joined OR-combines the contributions of a producer list. Empty
// contributions are dropped; an all-empty list yields the empty string.
func (r *Resolver) joined(objs []Object, prods []producer, path map[string]bool, depth int) (string, error) {
	var parts []string
	for _, p := range prods {
		c, err := r.contribution(objs, p, path, depth)
		if err != nil {
			return "", err
		}
		if c != "" {
			parts = append(parts, c)
		}
	}
	return strings.Join(parts, " OR "), nil
}

func (r *Resolver) contribution(objs []Object, p producer, path map[string]bool, depth int) (string, error) {
	switch o := p.obj.(type) {
	case *LeftPowerRail:
		return "", nil
	case *DataSource:
		return o.Expression, nil
	case *Block:
		// Block outputs contribute their qualified reference; recursion does
		// not continue through the block.
		return o.InstanceName + "." + p.pin, nil
	}
	expr, err := r.condition(objs, p.obj, path, depth)
	if err != nil {
		return "", err
	}
	if expr == "" {
		return "", nil
	}
	return "(" + expr + ")", nil
}

// condition builds the backward expression for a conducting object: its own
// term AND-combined with the OR of its producers' contributions.
func (r *Resolver) condition(objs []Object, obj Object, path map[string]bool, depth int) (string, error) {
	id := obj.Local()
	if r.DetectCycles {
		if path[id] {
			return "", fmt.Errorf("wiring cycle through object %q", id)
		}
		path[id] = true
		defer delete(path, id)
	} else if depth > r.maxDepth() {
		return "", fmt.Errorf("resolution depth exceeded at object %q", id)
	}

	var own string
	var in ConnectionPointIn
	switch o := obj.(type) {
	case *Contact:
		own = o.Variable
		if o.Negated {
			own = "NOT " + o.Variable
		}
		in = o.In
	case *CompareContact:
		own = "(" + o.Left + " " + o.Op + " " + o.Right + ")"
		in = o.In
	case *Coil:
		// A coil passes its condition through without a self-term.
		in = o.In
	default:
		return "", fmt.Errorf("object %q cannot drive a condition", id)
	}

	upstream, err := r.joined(objs, producersFor(objs, in), path, depth+1)
	if err != nil {
		return "", err
	}
	switch {
	case own == "":
		return upstream, nil
	case upstream == "":
		return own, nil
	default:
		return own + " AND " + upstream, nil
	}
}

// ── Validation ───────────────────────────────────────────────────────────────

// Validate checks the container invariants: output identifiers are unique
// and every connection resolves inside the same container.
func validateObjects(objs []Object) error {
	outs := map[string]bool{}
	for _, obj := range objs {
		for _, pin := range outPinsOf(obj) {
			if pin.id == "" {
				continue
			}
			if outs[pin.id] {
				return fmt.Errorf("duplicate output identifier %q", pin.id)
			}
			outs[pin.id] = true
		}
	}
	check := func(owner string, in ConnectionPointIn) error {
		for _, c := range in.Connections {
			if c.RefID == "" || !outs[c.RefID] {
				return fmt.Errorf("object %q: dangling reference %q", owner, c.RefID)
			}
		}
		return nil
	}
	for _, obj := range objs {
		var err error
		switch o := obj.(type) {
		case *RightPowerRail:
			err = check(o.LocalID, o.In)
		case *Contact:
			err = check(o.LocalID, o.In)
		case *CompareContact:
			err = check(o.LocalID, o.In)
		case *Coil:
			err = check(o.LocalID, o.In)
		case *DataSink:
			err = check(o.LocalID, o.In)
		case *Block:
			for _, in := range o.Inputs {
				if err = check(o.LocalID, in.In); err != nil {
					break
				}
			}
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Validate reports rung wiring that violates the document invariants.
// Resolution itself stays tolerant of dangling references; this is the
// strict check for loaders and editors.
func (rung Rung) Validate() error {
	return validateObjects(rung.Objects)
}

// Validate reports network wiring that violates the document invariants.
func (n Network) Validate() error {
	return validateObjects(n.Objects)
}
