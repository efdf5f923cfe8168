package emit

import (
	"strings"

	"github.com/damischa1/plcgen/internal/ast"
	"github.com/damischa1/plcgen/internal/convert"
)

// Cpp is the statically-typed native backend profile. Function blocks become
// value-semantics classes with an invocation operator; programs become free
// functions holding their instances as function statics, which is what gives
// one instance per declared name for the program's lifetime.
type Cpp struct{}

// cppType maps an elementary type to the backend primitive. Types with no
// native equivalent fall back to the inferred marker instead of failing.
func cppType(iec string) string {
	switch strings.ToUpper(strings.TrimSpace(iec)) {
	case "BOOL":
		return "bool"
	case "SINT":
		return "int8_t"
	case "INT":
		return "int16_t"
	case "DINT":
		return "int32_t"
	case "LINT":
		return "int64_t"
	case "USINT", "BYTE":
		return "uint8_t"
	case "UINT", "WORD":
		return "uint16_t"
	case "UDINT", "DWORD":
		return "uint32_t"
	case "ULINT", "LWORD", "TIME":
		return "uint64_t"
	case "REAL":
		return "float"
	case "LREAL":
		return "double"
	case "STRING":
		return "std::string"
	default:
		return "auto"
	}
}

func (Cpp) Unit(u *ast.Unit) (string, error) {
	globals := unitGlobals(u)
	w := &buf{}
	for _, b := range u.Blocks {
		switch blk := b.(type) {
		case ast.GlobalVars:
			cppGlobals(w, blk, globals)
		case ast.FunctionBlockDecl:
			cppFunctionBlock(w, blk, globals)
		case ast.ProgramDecl:
			cppProgram(w, blk, globals)
		case ast.FunctionDecl:
			cppFunction(w, blk, globals)
		}
	}
	return w.String(), nil
}

func cppGlobals(w *buf, gv ast.GlobalVars, globals map[string]string) {
	ctx := &convert.Context{Target: convert.Cpp, Addresses: globals}
	w.line("// Global variable declarations")
	for _, v := range gv.Vars {
		if v.Address != "" {
			// Address-bound: reads and writes go through the memory map,
			// no storage is declared.
			continue
		}
		if v.Init != "" {
			w.line("%s %s = %s;", cppType(v.Type), v.Name, ctx.Text(v.Init))
		} else {
			w.line("%s %s;", cppType(v.Type), v.Name)
		}
	}
	w.line("")
}

func cppFields(w *buf, sections []ast.VarSection, ctx *convert.Context) {
	for _, sec := range sections {
		for _, v := range sec.Vars {
			if v.Address != "" {
				continue
			}
			if !ast.IsElementary(v.Type) {
				w.line("static %s %s;", v.Type, v.Name)
				continue
			}
			if v.Init != "" {
				w.line("%s %s = %s;", cppType(v.Type), v.Name, ctx.Text(v.Init))
			} else {
				w.line("%s %s;", cppType(v.Type), v.Name)
			}
		}
	}
}

func cppTranslator(w *buf, ctx *convert.Context) *translator {
	return &translator{
		ctx:      ctx,
		w:        w,
		instCall: func(name string) string { return name + "()" },
		setBit: func(base, bit, val string) string {
			return "setBit(&" + base + ", " + bit + ", " + val + ")"
		},
	}
}

func cppFunctionBlock(w *buf, blk ast.FunctionBlockDecl, globals map[string]string) {
	addrs, instances := localFacts(globals, blk.Vars)
	fields := map[string]bool{}
	for _, sec := range blk.Vars {
		for _, v := range sec.Vars {
			fields[v.Name] = true
		}
	}
	ctx := &convert.Context{
		Target:          convert.Cpp,
		InFunctionBlock: true,
		FBFields:        fields,
		Instances:       instances,
		Addresses:       addrs,
	}
	w.line("class %s {//FUNCTION_BLOCK:%s", blk.Name, blk.Name)
	w.line("public:")
	cppFields(w, blk.Vars, ctx)
	w.line("  void operator()() {")
	w.indent += 2
	tr := cppTranslator(w, ctx)
	tr.stmts(blk.Stmts)
	w.indent -= 2
	w.line("  }")
	w.line("};")
	w.line("")
}

func cppProgram(w *buf, blk ast.ProgramDecl, globals map[string]string) {
	addrs, instances := localFacts(globals, blk.Vars)
	ctx := &convert.Context{Target: convert.Cpp, Instances: instances, Addresses: addrs}
	w.line("void %s() { //PROGRAM:%s", blk.Name, blk.Name)
	cppLocals(w, blk.Vars, ctx)
	tr := cppTranslator(w, ctx)
	tr.stmts(blk.Stmts)
	w.line("}")
	w.line("")
}

func cppLocals(w *buf, sections []ast.VarSection, ctx *convert.Context) {
	for _, sec := range sections {
		for _, v := range sec.Vars {
			if v.Address != "" {
				continue
			}
			if !ast.IsElementary(v.Type) {
				// One static instance per declared name, for the lifetime
				// of the generated program.
				w.line("static %s %s;", v.Type, v.Name)
				continue
			}
			if v.Init != "" {
				w.line("%s %s = %s;", cppType(v.Type), v.Name, ctx.Text(v.Init))
			} else {
				w.line("%s %s;", cppType(v.Type), v.Name)
			}
		}
	}
}

func cppFunction(w *buf, blk ast.FunctionDecl, globals map[string]string) {
	addrs, instances := localFacts(globals, blk.Vars)
	ctx := &convert.Context{Target: convert.Cpp, Instances: instances, Addresses: addrs}

	var params []string
	var locals []ast.VarSection
	for _, sec := range blk.Vars {
		if sec.Kind == ast.SectionInput {
			for _, v := range sec.Vars {
				params = append(params, cppType(v.Type)+" "+v.Name)
			}
			continue
		}
		locals = append(locals, sec)
	}

	w.line("%s %s(%s) { //FUNCTION:%s", cppType(blk.Returns), blk.Name, strings.Join(params, ", "), blk.Name)
	cppLocals(w, locals, ctx)
	tr := cppTranslator(w, ctx)
	tr.selfName = blk.Name
	tr.stmts(blk.Stmts)
	w.line("}")
	w.line("")
}
