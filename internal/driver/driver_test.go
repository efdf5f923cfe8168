package driver

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/damischa1/plcgen/internal/project"
	"github.com/damischa1/plcgen/internal/sidecar"
)

const scheduledSource = `//Task={"Name":"T1","Interval":100,"Priority":1}
//Instance={"TypeName":"P1","Name":"P1","AssociatedTaskName":"T1"}
//Instance={"TypeName":"P0","Name":"P0","AssociatedTaskName":""}
VAR_GLOBAL
    SW1 AT %IX0.0 : BOOL; //Global={"Name":"SW1","Address":"%IX0.0"}
END_VAR
PROGRAM P0
VAR
    X : INT;
END_VAR
X := X + 1;
END_PROGRAM
PROGRAM P1
LD1 := SW1;
END_PROGRAM
`

func TestCompileSourceCppScheduling(t *testing.T) {
	out, err := CompileSource(scheduledSource, Options{Target: "cpp"})
	require.NoError(t, err)

	require.Contains(t, out, `#include "imperium.h"`)
	require.Contains(t, out, "int main() {")
	require.Contains(t, out, "gatherInputs();")
	require.Contains(t, out, "handleOutputs();")
	require.Contains(t, out, "PROGRAM_COUNT++;")

	// The task-bound instance runs only inside its interval block; the
	// unbound one runs every scan.
	block := strings.Index(out, "if(PROGRAM_COUNT % 100 == 0){")
	require.Greater(t, block, -1)
	require.Equal(t, 2, strings.Count(out, "P1()"),
		"one definition comment aside, P1 must be invoked exactly once")
	require.Greater(t, strings.Index(out, "        P1();"), block)

	unscheduled := strings.Index(out, "    P0();")
	require.Greater(t, unscheduled, -1)
	require.Less(t, unscheduled, block)
}

func TestCompileSourceJSScheduling(t *testing.T) {
	out, err := CompileSource(scheduledSource, Options{Target: "js"})
	require.NoError(t, err)

	require.Contains(t, out, `"use strict";`)
	require.Contains(t, out, "const PLC = require('./plc_runtime');")
	require.Contains(t, out, "PLC.cycle(() => {")
	require.Contains(t, out, "PLC.gatherInputs();")
	require.Contains(t, out, "if (PLC.count % 100 === 0) {")
	require.Contains(t, out, "    P1();")
	require.Contains(t, out, "  P0();")
}

func TestCompileSourceRejectsUnknownTarget(t *testing.T) {
	_, err := CompileSource(scheduledSource, Options{Target: "rust"})
	require.Error(t, err)
}

func TestCompileSourceRejectsBadMetadata(t *testing.T) {
	_, err := CompileSource("//Task={broken\n", Options{Target: "cpp"})
	require.ErrorContains(t, err, "scan metadata")
}

func TestCompileProjectEndToEnd(t *testing.T) {
	p := &project.Project{
		Namespaces: []project.Namespace{{
			Name: "Main",
			Programs: []project.Program{{
				Name: "PLC_LD",
				Body: project.Body{Kind: project.BodyLadder, Rungs: []project.Rung{{
					EvaluationOrder: 1,
					Objects: []project.Object{
						&project.LeftPowerRail{LocalID: "lr", Out: project.ConnectionPointOut{ID: "w0"}},
						&project.Contact{
							LocalID: "c1", Variable: "SW1",
							In:  project.ConnectionPointIn{Connections: []project.Connection{{RefID: "w0"}}},
							Out: project.ConnectionPointOut{ID: "w1"},
						},
						&project.Coil{
							LocalID: "co", Variable: "LD1",
							In: project.ConnectionPointIn{Connections: []project.Connection{{RefID: "w1"}}},
						},
					},
				}}},
			}},
		}},
		Configurations: []project.Configuration{{
			Name: "Cfg",
			Resources: []project.Resource{{
				Name:  "Res",
				Tasks: []project.Task{{Name: "T1", Interval: 100, Priority: 1}},
				Instances: []project.ProgramInstance{
					{Name: "P1", TypeName: "PLC_LD", TaskName: "T1"},
				},
				GlobalVars: []project.Variable{
					{Name: "SW1", Type: "BOOL", Address: &project.Address{Space: 'I', Width: 'X', Index: "0", Bit: "0"}},
					{Name: "LD1", Type: "BOOL", Address: &project.Address{Space: 'Q', Width: 'X', Index: "0", Bit: "0"}},
				},
				Maps: []sidecar.Map{{
					ModuleID: "M1", ModulePort: "502", InternalAddress: "%IW0",
					RemoteAddress: "40001", RemoteSize: "16", PollTime: "100", Protocol: "modbus",
				}},
			}},
		}},
	}

	units, err := Compile(p, Options{Target: "cpp"})
	require.NoError(t, err)
	require.Len(t, units, 1)
	out, ok := units["Cfg/Res"]
	require.True(t, ok)

	// Ladder rung lowered, then compiled against the address bindings.
	require.Contains(t, out, "void PLC_LD() { //PROGRAM:PLC_LD")
	require.Contains(t, out, `writeBit("%QX0.0", (readBit("%IX0.0")));`)

	// Scheduling and mapping carried through the sidecar channel.
	require.Contains(t, out, "if(PROGRAM_COUNT % 100 == 0){")
	require.Contains(t, out, "        PLC_LD();")
	require.Contains(t, out, "mapIO(")
	require.Contains(t, out, `\"Protocol\":\"modbus\"`)
}
