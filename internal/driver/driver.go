// Package driver runs the whole pipeline: resolve a resource to Structured
// Text, re-extract the sidecar metadata, compile the text through the
// tokenizer, parser and code generator, then wrap the result in the
// backend's scan-loop scaffold with task-interval scheduling.
package driver

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/damischa1/plcgen/internal/emit"
	"github.com/damischa1/plcgen/internal/parser"
	"github.com/damischa1/plcgen/internal/project"
	"github.com/damischa1/plcgen/internal/sidecar"
	"github.com/damischa1/plcgen/internal/token"
)

// Options configures one compilation.
type Options struct {
	Target       string // "cpp" or "js"
	DetectCycles bool
	MaxDepth     int
	Logger       *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Compile lowers every resource of the project and compiles each into one
// backend source unit, keyed "configuration/resource".
func Compile(p *project.Project, opts Options) (map[string]string, error) {
	r := &project.Resolver{DetectCycles: opts.DetectCycles, MaxDepth: opts.MaxDepth}
	out := map[string]string{}
	for ci := range p.Configurations {
		cfg := &p.Configurations[ci]
		for ri := range cfg.Resources {
			res := &cfg.Resources[ri]
			src, err := r.ResourceText(p, res)
			if err != nil {
				return nil, fmt.Errorf("resource %s/%s: %w", cfg.Name, res.Name, err)
			}
			unit, err := CompileSource(src, opts)
			if err != nil {
				return nil, fmt.Errorf("resource %s/%s: %w", cfg.Name, res.Name, err)
			}
			out[cfg.Name+"/"+res.Name] = unit
		}
	}
	return out, nil
}

// CompileSource compiles one Structured Text source unit to a complete
// backend source file, scan loop included.
func CompileSource(src string, opts Options) (string, error) {
	log := opts.logger()

	meta, err := sidecar.Scan(src)
	if err != nil {
		return "", fmt.Errorf("scan metadata: %w", err)
	}
	log.Debug("metadata scanned",
		"tasks", len(meta.Tasks), "instances", len(meta.Instances), "maps", len(meta.Maps))

	toks := token.Tokenize(src)
	unit, err := parser.Parse(toks)
	if err != nil {
		return "", fmt.Errorf("parse: %w", err)
	}
	log.Debug("parsed", "tokens", len(toks), "blocks", len(unit.Blocks))

	gen, err := emit.For(opts.Target)
	if err != nil {
		return "", err
	}
	body, err := gen.Unit(unit)
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}

	switch gen.(type) {
	case emit.Cpp:
		return cppUnit(body, meta), nil
	default:
		return jsUnit(body, meta), nil
	}
}

// schedule splits instances into the unscheduled set and per-task groups,
// preserving task declaration order.
type group struct {
	task      sidecar.Task
	instances []sidecar.Instance
}

func schedule(meta *sidecar.Meta) (unscheduled []sidecar.Instance, groups []group) {
	byTask := map[string]int{}
	for _, t := range meta.Tasks {
		byTask[t.Name] = len(groups)
		groups = append(groups, group{task: t})
	}
	for _, inst := range meta.Instances {
		if meta.TaskFor(inst) == nil {
			unscheduled = append(unscheduled, inst)
			continue
		}
		gi := byTask[inst.AssociatedTaskName]
		groups[gi].instances = append(groups[gi].instances, inst)
	}
	return unscheduled, groups
}

// ── Native scaffold ──────────────────────────────────────────────────────────

func cppUnit(body string, meta *sidecar.Meta) string {
	var sb strings.Builder
	sb.WriteString("#include \"imperium.h\"\n")
	sb.WriteString("#include \"modbus.h\"\n")
	sb.WriteString("#include <chrono>\n")
	sb.WriteString("#include <thread>\n")
	sb.WriteString("#include <cstdint>\n")
	sb.WriteString("#include <limits>\n")
	sb.WriteString(body)
	sb.WriteString("\n")

	unscheduled, groups := schedule(meta)

	sb.WriteString("int main() {\n")
	for _, m := range meta.Maps {
		sb.WriteString("  mapIO(" + strconv.Quote(mapJSON(m)) + ");\n")
	}
	sb.WriteString("  while (true) {\n")
	sb.WriteString("    gatherInputs();\n")
	for _, inst := range unscheduled {
		sb.WriteString("    " + inst.TypeName + "();\n")
	}
	for _, g := range groups {
		if len(g.instances) == 0 {
			continue
		}
		// One scan-loop iteration is one millisecond, so the interval is
		// the modulus directly.
		fmt.Fprintf(&sb, "    if(PROGRAM_COUNT %% %d == 0){\n", g.task.Interval)
		for _, inst := range g.instances {
			sb.WriteString("        " + inst.TypeName + "();\n")
		}
		sb.WriteString("    }\n")
	}
	sb.WriteString("    handleOutputs();\n")
	sb.WriteString("    std::this_thread::sleep_for(std::chrono::milliseconds(1));\n")
	sb.WriteString("    PROGRAM_COUNT++;\n")
	sb.WriteString("    if(PROGRAM_COUNT >= std::numeric_limits<uint64_t>::max()){\n")
	sb.WriteString("        PROGRAM_COUNT = 0;\n")
	sb.WriteString("    }\n")
	sb.WriteString("  }\n")
	sb.WriteString("  return 0;\n")
	sb.WriteString("}\n")
	return sb.String()
}

// ── Scripting scaffold ───────────────────────────────────────────────────────

func jsUnit(body string, meta *sidecar.Meta) string {
	var sb strings.Builder
	sb.WriteString("\"use strict\";\n")
	sb.WriteString("const PLC = require('./plc_runtime');\n\n")
	sb.WriteString(body)
	sb.WriteString("\n")

	unscheduled, groups := schedule(meta)

	for _, m := range meta.Maps {
		sb.WriteString("PLC.mapIO(" + strconv.Quote(mapJSON(m)) + ");\n")
	}
	sb.WriteString("PLC.cycle(() => {\n")
	sb.WriteString("  PLC.gatherInputs();\n")
	for _, inst := range unscheduled {
		sb.WriteString("  " + inst.TypeName + "();\n")
	}
	for _, g := range groups {
		if len(g.instances) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "  if (PLC.count %% %d === 0) {\n", g.task.Interval)
		for _, inst := range g.instances {
			sb.WriteString("    " + inst.TypeName + "();\n")
		}
		sb.WriteString("  }\n")
	}
	sb.WriteString("  PLC.handleOutputs();\n")
	sb.WriteString("});\n")
	return sb.String()
}

func mapJSON(m sidecar.Map) string {
	b, _ := json.Marshal(m)
	return string(b)
}
