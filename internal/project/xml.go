package project

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/damischa1/plcgen/internal/sidecar"
)

// ── Generic XML node tree ─────────────────────────────────────────────────────
// The document is parsed into a generic tree first, then the model is built
// from known paths. This avoids needing exact struct definitions for the
// full document schema, and missing sub-elements degrade to empty model
// fields instead of load failures.

type xmlNode struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Content  string     `xml:",chardata"`
	Children []*xmlNode `xml:",any"`
}

func (n *xmlNode) attr(name string) string {
	for _, a := range n.Attrs {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

func (n *xmlNode) child(localName string) *xmlNode {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.XMLName.Local == localName {
			return c
		}
	}
	return nil
}

func (n *xmlNode) allChildren(localName string) []*xmlNode {
	if n == nil {
		return nil
	}
	var out []*xmlNode
	for _, c := range n.Children {
		if c.XMLName.Local == localName {
			out = append(out, c)
		}
	}
	return out
}

// textDeep recursively collects all text content within the node.
func (n *xmlNode) textDeep() string {
	if n == nil {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(n.Content)
	for _, c := range n.Children {
		sb.WriteString(c.textDeep())
	}
	return sb.String()
}

// ── Loading ──────────────────────────────────────────────────────────────────

// LoadFile reads and builds a project document from a file.
func LoadFile(path string) (*Project, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	p, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Load builds a project document from XML.
func Load(r io.Reader) (*Project, error) {
	var root xmlNode
	if err := xml.NewDecoder(r).Decode(&root); err != nil {
		return nil, fmt.Errorf("parse project document: %w", err)
	}
	p := &Project{}
	for _, ns := range root.child("types").allChildren("namespace") {
		p.Namespaces = append(p.Namespaces, loadNamespace(ns))
	}
	// POUs outside any namespace land in an unnamed one.
	if pous := root.child("types").allChildren("pou"); len(pous) > 0 {
		var ns Namespace
		for _, pn := range pous {
			addPOU(&ns, pn)
		}
		p.Namespaces = append(p.Namespaces, ns)
	}
	for _, cn := range root.child("instances").allChildren("configuration") {
		p.Configurations = append(p.Configurations, loadConfiguration(cn))
	}
	return p, nil
}

func loadNamespace(n *xmlNode) Namespace {
	ns := Namespace{Name: n.attr("name")}
	for _, pn := range n.allChildren("pou") {
		addPOU(&ns, pn)
	}
	return ns
}

func addPOU(ns *Namespace, n *xmlNode) {
	name := n.attr("name")
	vars := loadInterface(n.child("interface"))
	body := loadBody(n.child("body"))
	if strings.EqualFold(n.attr("pouType"), "functionBlock") {
		ns.FunctionBlocks = append(ns.FunctionBlocks, FunctionBlock{Name: name, Vars: vars, Body: body})
		return
	}
	ns.Programs = append(ns.Programs, Program{Name: name, Vars: vars, Body: body})
}

func loadInterface(n *xmlNode) []Variable {
	var out []Variable
	for _, section := range []string{"inputVars", "outputVars", "localVars"} {
		for _, sn := range n.allChildren(section) {
			for _, vn := range sn.allChildren("variable") {
				out = append(out, loadVariable(vn))
			}
		}
	}
	return out
}

func loadVariable(n *xmlNode) Variable {
	v := Variable{Name: n.attr("name")}
	if tn := n.child("type"); tn != nil && len(tn.Children) > 0 {
		// The type is encoded as an element named after the type itself;
		// derived types carry the name in an attribute.
		tc := tn.Children[0]
		v.Type = tc.XMLName.Local
		if v.Type == "derived" {
			v.Type = tc.attr("name")
		}
	}
	if iv := n.child("initialValue"); iv != nil {
		if sv := iv.child("simpleValue"); sv != nil {
			v.Init = sv.attr("value")
		}
	}
	if s := n.attr("address"); s != "" {
		if a, err := ParseAddress(s); err == nil {
			v.Address = &a
		}
	}
	return v
}

func loadBody(n *xmlNode) Body {
	if ld := n.child("LD"); ld != nil {
		b := Body{Kind: BodyLadder}
		for _, rn := range ld.allChildren("rung") {
			b.Rungs = append(b.Rungs, Rung{
				EvaluationOrder: atoi(rn.attr("evaluationOrder")),
				Objects:         loadObjects(rn),
			})
		}
		return b
	}
	if fbd := n.child("FBD"); fbd != nil {
		b := Body{Kind: BodyFBD}
		for _, nn := range fbd.allChildren("network") {
			b.Networks = append(b.Networks, Network{
				EvaluationOrder: atoi(nn.attr("evaluationOrder")),
				Objects:         loadObjects(nn),
			})
		}
		return b
	}
	return Body{Kind: BodyST, ST: strings.TrimSpace(n.child("ST").textDeep())}
}

func loadObjects(n *xmlNode) []Object {
	var out []Object
	for _, c := range n.Children {
		switch c.XMLName.Local {
		case "leftPowerRail":
			out = append(out, &LeftPowerRail{LocalID: c.attr("localId"), Out: loadOut(c)})
		case "rightPowerRail":
			out = append(out, &RightPowerRail{LocalID: c.attr("localId"), In: loadIn(c)})
		case "contact":
			out = append(out, &Contact{
				LocalID:  c.attr("localId"),
				Variable: objectVariable(c),
				Negated:  isTrue(c.attr("negated")),
				In:       loadIn(c),
				Out:      loadOut(c),
			})
		case "compareContact":
			out = append(out, &CompareContact{
				LocalID: c.attr("localId"),
				Op:      c.attr("operator"),
				Left:    c.attr("left"),
				Right:   c.attr("right"),
				In:      loadIn(c),
				Out:     loadOut(c),
			})
		case "coil":
			out = append(out, &Coil{
				LocalID:  c.attr("localId"),
				Variable: objectVariable(c),
				Negated:  isTrue(c.attr("negated")),
				Latch:    latchKind(c.attr("storage")),
				In:       loadIn(c),
				Out:      loadOut(c),
			})
		case "block":
			out = append(out, loadBlock(c))
		case "inVariable":
			out = append(out, &DataSource{
				LocalID:    c.attr("localId"),
				Expression: objectExpression(c),
				Out:        loadOut(c),
			})
		case "outVariable":
			out = append(out, &DataSink{
				LocalID:    c.attr("localId"),
				Expression: objectExpression(c),
				In:         loadIn(c),
			})
		}
	}
	return out
}

func loadBlock(n *xmlNode) *Block {
	b := &Block{
		LocalID:      n.attr("localId"),
		TypeName:     n.attr("typeName"),
		InstanceName: n.attr("instanceName"),
	}
	for _, vn := range n.child("inputVariables").allChildren("variable") {
		b.Inputs = append(b.Inputs, BlockVariable{
			Name: vn.attr("formalParameter"),
			In:   loadIn(vn),
		})
	}
	for _, vn := range n.child("outputVariables").allChildren("variable") {
		b.Outputs = append(b.Outputs, BlockVariable{
			Name: vn.attr("formalParameter"),
			Out:  loadOut(vn),
		})
	}
	return b
}

func loadIn(n *xmlNode) ConnectionPointIn {
	var in ConnectionPointIn
	for _, cn := range n.child("connectionPointIn").allChildren("connection") {
		ref := cn.attr("refLocalId")
		if ref == "" {
			ref = cn.attr("refId")
		}
		in.Connections = append(in.Connections, Connection{RefID: ref})
	}
	return in
}

func loadOut(n *xmlNode) ConnectionPointOut {
	if cp := n.child("connectionPointOut"); cp != nil {
		return ConnectionPointOut{ID: cp.attr("id")}
	}
	return ConnectionPointOut{}
}

func objectVariable(n *xmlNode) string {
	if s := n.attr("variable"); s != "" {
		return s
	}
	return strings.TrimSpace(n.child("variable").textDeep())
}

func objectExpression(n *xmlNode) string {
	if s := n.attr("expression"); s != "" {
		return s
	}
	return strings.TrimSpace(n.child("expression").textDeep())
}

func latchKind(storage string) LatchKind {
	switch strings.ToLower(storage) {
	case "set":
		return LatchSet
	case "reset":
		return LatchReset
	default:
		return LatchNone
	}
}

// ── Deployment side ──────────────────────────────────────────────────────────

func loadConfiguration(n *xmlNode) Configuration {
	cfg := Configuration{Name: n.attr("name")}
	for _, rn := range n.allChildren("resource") {
		cfg.Resources = append(cfg.Resources, loadResource(rn))
	}
	return cfg
}

func loadResource(n *xmlNode) Resource {
	res := Resource{Name: n.attr("name")}
	for _, tn := range n.allChildren("task") {
		res.Tasks = append(res.Tasks, Task{
			Name:     tn.attr("name"),
			Interval: parseInterval(tn.attr("interval")),
			Priority: atoi(tn.attr("priority")),
		})
		// Instances may nest under their task instead of naming it.
		for _, in := range tn.allChildren("pouInstance") {
			res.Instances = append(res.Instances, ProgramInstance{
				Name:     in.attr("name"),
				TypeName: in.attr("typeName"),
				TaskName: tn.attr("name"),
			})
		}
	}
	for _, in := range n.allChildren("pouInstance") {
		res.Instances = append(res.Instances, ProgramInstance{
			Name:     in.attr("name"),
			TypeName: in.attr("typeName"),
			TaskName: in.attr("taskName"),
		})
	}
	for _, gn := range n.allChildren("globalVars") {
		for _, vn := range gn.allChildren("variable") {
			res.GlobalVars = append(res.GlobalVars, loadVariable(vn))
		}
	}
	for _, mn := range n.allChildren("map") {
		res.Maps = append(res.Maps, sidecar.Map{
			ModuleID:        mn.attr("moduleId"),
			ModulePort:      mn.attr("modulePort"),
			InternalAddress: mn.attr("internalAddress"),
			RemoteAddress:   mn.attr("remoteAddress"),
			RemoteSize:      mn.attr("remoteSize"),
			PollTime:        mn.attr("pollTime"),
			Protocol:        mn.attr("protocol"),
		})
	}
	return res
}

var digitsRe = regexp.MustCompile(`[0-9]+`)

// parseInterval accepts a plain millisecond count as well as duration
// literal forms like "t#100ms" or "PT100MS"; the first digit run is the
// millisecond count.
func parseInterval(s string) int {
	m := digitsRe.FindString(s)
	if m == "" {
		return 0
	}
	n, _ := strconv.Atoi(m)
	return n
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func isTrue(s string) bool {
	return strings.EqualFold(s, "true") || s == "1"
}
