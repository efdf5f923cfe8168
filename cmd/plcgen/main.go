// plcgen — control-project compiler
//
// Compiles a project document (configurations, resources, ladder/FBD and
// Structured Text POUs) into runnable backend sources: native C++ or
// JavaScript, one unit per resource, with task scheduling and remote-I/O
// mapping carried through the generated code.
//
// Usage:
//
//	plcgen resolve -in <project.xml> [-out <dir>] [-cycles]
//	plcgen build   -in <project.xml> [-out <dir>] [-target cpp|js] [-cycles]
//	plcgen compile -in <unit.st>     [-out <dir>] [-target cpp|js]
//
// resolve writes the Structured Text form of each resource; build compiles
// each resource all the way to a backend source unit; compile takes an
// already-resolved .st unit.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/kardianos/task"

	"github.com/damischa1/plcgen/internal/driver"
	"github.com/damischa1/plcgen/internal/project"
)

func main() {
	fIn := &task.Flag{Name: "in", Type: task.FlagString, Default: "", Usage: "Input project XML (or .st unit for compile)."}
	fOut := &task.Flag{Name: "out", Type: task.FlagString, Default: "out", Usage: "Output directory."}
	fTarget := &task.Flag{Name: "target", Type: task.FlagString, Default: "cpp", Usage: "Backend target: cpp or js."}
	fCycles := &task.Flag{Name: "cycles", Type: task.FlagBool, Default: false, Usage: "Fail fast on wiring cycles instead of bounding recursion depth."}
	fVerbose := &task.Flag{Name: "v", Type: task.FlagBool, Default: false, Usage: "Verbose pipeline logging."}

	cmd := &task.Command{
		Usage: `Control-project compiler.

Lowers ladder and FBD bodies to Structured Text, then compiles whole
resources to backend source units.`,
		Flags: []*task.Flag{fVerbose},
		Commands: []*task.Command{
			{
				Name:  "resolve",
				Usage: "Write the Structured Text form of each resource.",
				Flags: []*task.Flag{fIn, fOut, fCycles},
				Action: task.ActionFunc(func(ctx context.Context, st *task.State, sc task.Script) error {
					return resolve(st.Default(fIn.Name, "").(string),
						st.Default(fOut.Name, "out").(string),
						st.Default(fCycles.Name, false).(bool))
				}),
			},
			{
				Name:  "build",
				Usage: "Compile each resource to a backend source unit.",
				Flags: []*task.Flag{fIn, fOut, fTarget, fCycles},
				Action: task.ActionFunc(func(ctx context.Context, st *task.State, sc task.Script) error {
					return build(st.Default(fIn.Name, "").(string),
						st.Default(fOut.Name, "out").(string),
						st.Default(fTarget.Name, "cpp").(string),
						st.Default(fCycles.Name, false).(bool),
						logger(st.Default(fVerbose.Name, false).(bool)))
				}),
			},
			{
				Name:  "compile",
				Usage: "Compile one already-resolved .st unit.",
				Flags: []*task.Flag{fIn, fOut, fTarget},
				Action: task.ActionFunc(func(ctx context.Context, st *task.State, sc task.Script) error {
					return compile(st.Default(fIn.Name, "").(string),
						st.Default(fOut.Name, "out").(string),
						st.Default(fTarget.Name, "cpp").(string),
						logger(st.Default(fVerbose.Name, false).(bool)))
				}),
			},
		},
	}

	err := cmd.Exec(os.Args[1:]).Run(context.Background(), task.DefaultState(), nil)
	if err != nil {
		log.Fatal(err)
	}
}

func logger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func resolve(in, out string, cycles bool) error {
	if in == "" {
		return fmt.Errorf("missing -in")
	}
	p, err := project.LoadFile(in)
	if err != nil {
		return err
	}
	r := &project.Resolver{DetectCycles: cycles}
	for ci := range p.Configurations {
		cfg := &p.Configurations[ci]
		for ri := range cfg.Resources {
			res := &cfg.Resources[ri]
			text, err := r.ResourceText(p, res)
			if err != nil {
				return err
			}
			if err := write(out, unitName(cfg.Name, res.Name)+".st", text); err != nil {
				return err
			}
		}
	}
	return nil
}

func build(in, out, target string, cycles bool, log *slog.Logger) error {
	if in == "" {
		return fmt.Errorf("missing -in")
	}
	p, err := project.LoadFile(in)
	if err != nil {
		return err
	}
	units, err := driver.Compile(p, driver.Options{Target: target, DetectCycles: cycles, Logger: log})
	if err != nil {
		return err
	}
	for name, src := range units {
		file := strings.ReplaceAll(name, "/", "_") + ext(target)
		if err := write(out, file, src); err != nil {
			return err
		}
		log.Info("unit written", "resource", name, "file", file)
	}
	return nil
}

func compile(in, out, target string, log *slog.Logger) error {
	if in == "" {
		return fmt.Errorf("missing -in")
	}
	src, err := os.ReadFile(in)
	if err != nil {
		return err
	}
	unit, err := driver.CompileSource(string(src), driver.Options{Target: target, Logger: log})
	if err != nil {
		return err
	}
	base := strings.TrimSuffix(filepath.Base(in), filepath.Ext(in))
	return write(out, base+ext(target), unit)
}

func ext(target string) string {
	if strings.HasPrefix(strings.ToLower(target), "j") {
		return ".js"
	}
	return ".cpp"
}

func unitName(cfg, res string) string {
	if cfg == "" {
		return res
	}
	return cfg + "_" + res
}

func write(dir, name, content string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644)
}
