package parser

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/damischa1/plcgen/internal/ast"
	"github.com/damischa1/plcgen/internal/token"
)

func parse(t *testing.T, src string) *ast.Unit {
	t.Helper()
	unit, err := Parse(token.Tokenize(src))
	require.NoError(t, err)
	return unit
}

func TestParseGlobalVars(t *testing.T) {
	unit := parse(t, `
VAR_GLOBAL
    SW1 AT %IX0.0 : BOOL;
    Cnt : INT := 0;
END_VAR`)
	require.Len(t, unit.Blocks, 1)
	gv, ok := unit.Blocks[0].(ast.GlobalVars)
	require.True(t, ok)
	require.Len(t, gv.Vars, 2)
	require.Equal(t, "SW1", gv.Vars[0].Name)
	require.Equal(t, "%IX0.0", gv.Vars[0].Address)
	require.Equal(t, "BOOL", gv.Vars[0].Type)
	require.Equal(t, "0", gv.Vars[1].Init)
}

func TestParseProgramWithSectionsAndStatements(t *testing.T) {
	unit := parse(t, `
PROGRAM Main
VAR
    X : INT;
END_VAR
X := X + 1;
END_PROGRAM`)
	require.Len(t, unit.Blocks, 1)
	prog, ok := unit.Blocks[0].(ast.ProgramDecl)
	require.True(t, ok)
	require.Equal(t, "Main", prog.Name)
	require.Len(t, prog.Vars, 1)
	require.Equal(t, ast.SectionLocal, prog.Vars[0].Kind)
	require.Len(t, prog.Stmts, 1)
	as, ok := prog.Stmts[0].(ast.Assign)
	require.True(t, ok)
	require.Equal(t, "X", as.Target.Text)
	require.Equal(t, "X + 1", as.Value.Text())
}

func TestInstanceCallHoisting(t *testing.T) {
	unit := parse(t, `
PROGRAM Main
VAR
    PLS1 : PLS;
    X : INT;
END_VAR
PLS1.IN := SW1;
END_PROGRAM`)
	prog := unit.Blocks[0].(ast.ProgramDecl)
	require.GreaterOrEqual(t, len(prog.Stmts), 2)

	// The instance update call is synthesized ahead of the written statements.
	call, ok := prog.Stmts[0].(ast.Call)
	require.True(t, ok)
	require.Equal(t, "PLS1", call.Name)
	require.True(t, call.Hoisted)
	_, ok = prog.Stmts[1].(ast.Assign)
	require.True(t, ok)
}

func TestBareEqualsAssignsAtStatementHead(t *testing.T) {
	unit := parse(t, `
PROGRAM Main
X = 5;
Y := A = B;
END_PROGRAM`)
	prog := unit.Blocks[0].(ast.ProgramDecl)
	require.Len(t, prog.Stmts, 2)

	// '=' directly after the leading reference is positional assignment.
	as := prog.Stmts[0].(ast.Assign)
	require.Equal(t, "X", as.Target.Text)
	require.Equal(t, "5", as.Value.Text())

	// '=' inside a captured run stays in the run as equality.
	as = prog.Stmts[1].(ast.Assign)
	require.Equal(t, "Y", as.Target.Text)
	require.Equal(t, "A = B", as.Value.Text())
}

func TestParseFunction(t *testing.T) {
	unit := parse(t, `
FUNCTION Add : INT
VAR_INPUT
    A : INT;
    B : INT;
END_VAR
Add := A + B;
END_FUNCTION`)
	fn, ok := unit.Blocks[0].(ast.FunctionDecl)
	require.True(t, ok)
	require.Equal(t, "Add", fn.Name)
	require.Equal(t, "INT", fn.Returns)
	require.Equal(t, ast.SectionInput, fn.Vars[0].Kind)
	require.Len(t, fn.Vars[0].Vars, 2)
}

func TestParseControlFlow(t *testing.T) {
	unit := parse(t, `
PROGRAM Main
IF A > 1 THEN
    X := 1;
ELSIF A > 0 THEN
    X := 2;
ELSE
    X := 3;
END_IF;
WHILE X > 0 DO
    X := X - 1;
END_WHILE;
FOR i := 1 TO 10 BY 2 DO
    S := S + i;
END_FOR;
REPEAT
    X := X + 1;
UNTIL X > 5
END_REPEAT;
CASE n OF
1, 3..5:
    Y := 1;
ELSE
    Y := 0;
END_CASE;
END_PROGRAM`)
	prog := unit.Blocks[0].(ast.ProgramDecl)
	require.Len(t, prog.Stmts, 5)

	ifs := prog.Stmts[0].(ast.If)
	require.Equal(t, "A > 1", ifs.Cond.Text())
	require.Len(t, ifs.Elsifs, 1)
	require.Len(t, ifs.Else, 1)

	_, ok := prog.Stmts[1].(ast.While)
	require.True(t, ok)

	f := prog.Stmts[2].(ast.For)
	require.Equal(t, "i", f.Var)
	require.Equal(t, "2", f.Step.Text())

	rep := prog.Stmts[3].(ast.Repeat)
	require.Equal(t, "X > 5", rep.Until.Text())

	cs := prog.Stmts[4].(ast.Case)
	require.Equal(t, "n", cs.Selector.Text())
	require.Len(t, cs.Branches, 1)
	require.Equal(t, "1 , 3 .. 5", cs.Branches[0].Labels.Text())
	require.Len(t, cs.Else, 1)
}

func TestParseNestedCase(t *testing.T) {
	unit := parse(t, `
PROGRAM Main
CASE n OF
1:
    CASE m OF
    2:
        X := 1;
    END_CASE;
END_CASE;
END_PROGRAM`)
	prog := unit.Blocks[0].(ast.ProgramDecl)
	outer := prog.Stmts[0].(ast.Case)
	require.Len(t, outer.Branches, 1)
	inner, ok := outer.Branches[0].Body[0].(ast.Case)
	require.True(t, ok)
	require.Len(t, inner.Branches, 1)
}

func TestParseBareCall(t *testing.T) {
	unit := parse(t, `
PROGRAM Main
Reset(X, 1);
END_PROGRAM`)
	prog := unit.Blocks[0].(ast.ProgramDecl)
	call := prog.Stmts[0].(ast.Call)
	require.Equal(t, "Reset", call.Name)
	require.Equal(t, "X , 1", call.Args.Text())
	require.False(t, call.Hoisted)
}

func TestMissingTerminatorIsHardFailure(t *testing.T) {
	_, err := Parse(token.Tokenize("PROGRAM Main\nX := 1;"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "END_PROGRAM")

	_, err = Parse(token.Tokenize("VAR_GLOBAL\nX : INT;"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "END_VAR")

	_, err = Parse(token.Tokenize("PROGRAM Main\nIF A THEN X := 1;\nEND_PROGRAM"))
	require.Error(t, err)
}

func TestUnrecognizedTopLevelTokensSkipped(t *testing.T) {
	unit := parse(t, `
TYPE Color : INT END_TYPE
PROGRAM Main
END_PROGRAM`)
	require.Len(t, unit.Blocks, 1)
	_, ok := unit.Blocks[0].(ast.ProgramDecl)
	require.True(t, ok)
}
