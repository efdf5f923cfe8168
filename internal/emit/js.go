package emit

import (
	"strings"

	"github.com/damischa1/plcgen/internal/ast"
	"github.com/damischa1/plcgen/internal/convert"
)

// JS is the dynamic scripting backend profile. Declarations are implicitly
// typed, function blocks become reference-semantics classes with a named
// exec operation, and instances are obtained from the runtime's keyed cache
// so that every qualified name maps to exactly one instance for the life of
// the program.
type JS struct{}

func (JS) Unit(u *ast.Unit) (string, error) {
	globals := unitGlobals(u)
	w := &buf{}
	for _, b := range u.Blocks {
		switch blk := b.(type) {
		case ast.GlobalVars:
			jsGlobals(w, blk, globals)
		case ast.FunctionBlockDecl:
			jsFunctionBlock(w, blk, globals)
		case ast.ProgramDecl:
			jsProgram(w, blk, globals)
		case ast.FunctionDecl:
			jsFunction(w, blk, globals)
		}
	}
	return w.String(), nil
}

// jsZero picks the implicit initial value for an elementary type.
func jsZero(iec string) string {
	switch strings.ToUpper(strings.TrimSpace(iec)) {
	case "BOOL":
		return "false"
	case "STRING":
		return "''"
	default:
		return "0"
	}
}

func jsTranslator(w *buf, ctx *convert.Context) *translator {
	return &translator{
		ctx:      ctx,
		w:        w,
		instCall: func(name string) string { return ctx.Text(name) + ".exec()" },
		setBit: func(base, bit, val string) string {
			return "PLC.setBit(" + base + ", " + bit + ", " + val + ")"
		},
	}
}

func jsGlobals(w *buf, gv ast.GlobalVars, globals map[string]string) {
	ctx := &convert.Context{Target: convert.JS, Addresses: globals}
	w.line("// Global variable declarations")
	for _, v := range gv.Vars {
		if v.Address != "" {
			continue
		}
		init := jsZero(v.Type)
		if v.Init != "" {
			init = ctx.Text(v.Init)
		}
		w.line("let %s = %s;", v.Name, init)
	}
	w.line("")
}

func jsFunctionBlock(w *buf, blk ast.FunctionBlockDecl, globals map[string]string) {
	addrs, instances := localFacts(globals, blk.Vars)
	fields := map[string]bool{}
	for _, sec := range blk.Vars {
		for _, v := range sec.Vars {
			fields[v.Name] = true
		}
	}
	ctx := &convert.Context{
		Target:          convert.JS,
		InFunctionBlock: true,
		FBFields:        fields,
		Instances:       instances,
		Addresses:       addrs,
	}
	w.line("class %s {//FUNCTION_BLOCK:%s", blk.Name, blk.Name)
	w.line("  constructor() {")
	w.indent += 2
	for _, sec := range blk.Vars {
		for _, v := range sec.Vars {
			if v.Address != "" {
				continue
			}
			if !ast.IsElementary(v.Type) {
				// Shared singleton, mirroring the native backend's static
				// class member.
				w.line("this.%s = PLC.instance(%q, () => new %s());",
					v.Name, blk.Name+"."+v.Name, v.Type)
				continue
			}
			init := jsZero(v.Type)
			if v.Init != "" {
				init = ctx.Text(v.Init)
			}
			w.line("this.%s = %s;", v.Name, init)
		}
	}
	w.indent -= 2
	w.line("  }")
	w.line("  exec() {")
	w.indent += 2
	tr := jsTranslator(w, ctx)
	tr.stmts(blk.Stmts)
	w.indent -= 2
	w.line("  }")
	w.line("}")
	w.line("")
}

func jsProgram(w *buf, blk ast.ProgramDecl, globals map[string]string) {
	addrs, instances := localFacts(globals, blk.Vars)
	ctx := &convert.Context{Target: convert.JS, Instances: instances, Addresses: addrs}
	w.line("function %s() { //PROGRAM:%s", blk.Name, blk.Name)
	w.indent++
	jsLocals(w, blk.Name, blk.Vars, ctx)
	tr := jsTranslator(w, ctx)
	tr.stmts(blk.Stmts)
	w.indent--
	w.line("}")
	w.line("")
}

func jsLocals(w *buf, owner string, sections []ast.VarSection, ctx *convert.Context) {
	for _, sec := range sections {
		for _, v := range sec.Vars {
			if v.Address != "" {
				continue
			}
			if !ast.IsElementary(v.Type) {
				// First caller constructs, later callers reuse.
				w.line("const %s = PLC.instance(%q, () => new %s());",
					v.Name, owner+"."+v.Name, v.Type)
				continue
			}
			init := jsZero(v.Type)
			if v.Init != "" {
				init = ctx.Text(v.Init)
			}
			w.line("let %s = %s;", v.Name, init)
		}
	}
}

func jsFunction(w *buf, blk ast.FunctionDecl, globals map[string]string) {
	addrs, instances := localFacts(globals, blk.Vars)
	ctx := &convert.Context{Target: convert.JS, Instances: instances, Addresses: addrs}

	var params []string
	var locals []ast.VarSection
	for _, sec := range blk.Vars {
		if sec.Kind == ast.SectionInput {
			for _, v := range sec.Vars {
				params = append(params, v.Name)
			}
			continue
		}
		locals = append(locals, sec)
	}

	w.line("function %s(%s) { //FUNCTION:%s", blk.Name, strings.Join(params, ", "), blk.Name)
	w.indent++
	jsLocals(w, blk.Name, locals, ctx)
	tr := jsTranslator(w, ctx)
	tr.selfName = blk.Name
	tr.stmts(blk.Stmts)
	w.indent--
	w.line("}")
	w.line("")
}
