package project

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func pin(refs ...string) ConnectionPointIn {
	var cp ConnectionPointIn
	for _, r := range refs {
		cp.Connections = append(cp.Connections, Connection{RefID: r})
	}
	return cp
}

func pout(id string) ConnectionPointOut { return ConnectionPointOut{ID: id} }

func rungOf(objs ...Object) Rung { return Rung{EvaluationOrder: 1, Objects: objs} }

func TestRungSingleContact(t *testing.T) {
	r := &Resolver{}
	rung := rungOf(
		&LeftPowerRail{LocalID: "lr", Out: pout("w0")},
		&Contact{LocalID: "c1", Variable: "SW1", In: pin("w0"), Out: pout("w1")},
		&Coil{LocalID: "co", Variable: "LD1", In: pin("w1")},
	)
	got, err := r.RungText(rung)
	require.NoError(t, err)
	require.Equal(t, []string{"LD1 := (SW1);"}, got)
}

func TestRungNegation(t *testing.T) {
	r := &Resolver{}

	rung := rungOf(
		&LeftPowerRail{LocalID: "lr", Out: pout("w0")},
		&Contact{LocalID: "c1", Variable: "SW1", Negated: true, In: pin("w0"), Out: pout("w1")},
		&Coil{LocalID: "co", Variable: "LD1", In: pin("w1")},
	)
	got, err := r.RungText(rung)
	require.NoError(t, err)
	require.Equal(t, []string{"LD1 := (NOT SW1);"}, got)

	rung = rungOf(
		&LeftPowerRail{LocalID: "lr", Out: pout("w0")},
		&Contact{LocalID: "c1", Variable: "SW1", In: pin("w0"), Out: pout("w1")},
		&Coil{LocalID: "co", Variable: "LD1", Negated: true, In: pin("w1")},
	)
	got, err = r.RungText(rung)
	require.NoError(t, err)
	require.Equal(t, []string{"LD1 := NOT ((SW1));"}, got)
}

func TestRungParallelContacts(t *testing.T) {
	r := &Resolver{}
	rung := rungOf(
		&LeftPowerRail{LocalID: "lr", Out: pout("w0")},
		&Contact{LocalID: "c1", Variable: "contact1", In: pin("w0"), Out: pout("w1")},
		&Contact{LocalID: "c2", Variable: "contact2", In: pin("w0"), Out: pout("w2")},
		&Coil{LocalID: "co", Variable: "coil", In: pin("w1", "w2")},
	)
	got, err := r.RungText(rung)
	require.NoError(t, err)
	require.Equal(t, []string{"coil := (contact1) OR (contact2);"}, got)
}

func TestRungSeriesContacts(t *testing.T) {
	r := &Resolver{}
	rung := rungOf(
		&LeftPowerRail{LocalID: "lr", Out: pout("w0")},
		&Contact{LocalID: "c1", Variable: "SW1", In: pin("w0"), Out: pout("w1")},
		&Contact{LocalID: "c2", Variable: "SW2", In: pin("w1"), Out: pout("w2")},
		&Coil{LocalID: "co", Variable: "LD1", In: pin("w2")},
	)
	got, err := r.RungText(rung)
	require.NoError(t, err)
	require.Equal(t, []string{"LD1 := (SW2 AND (SW1));"}, got)
}

func TestRungCompareContact(t *testing.T) {
	r := &Resolver{}
	rung := rungOf(
		&LeftPowerRail{LocalID: "lr", Out: pout("w0")},
		&CompareContact{LocalID: "cc", Op: "<>", Left: "A", Right: "B", In: pin("w0"), Out: pout("w1")},
		&Coil{LocalID: "co", Variable: "LD1", In: pin("w1")},
	)
	got, err := r.RungText(rung)
	require.NoError(t, err)
	require.Equal(t, []string{"LD1 := ((A <> B));"}, got)
}

func TestRungLatches(t *testing.T) {
	r := &Resolver{}
	build := func(latch LatchKind) Rung {
		return rungOf(
			&LeftPowerRail{LocalID: "lr", Out: pout("w0")},
			&Contact{LocalID: "c1", Variable: "SW1", In: pin("w0"), Out: pout("w1")},
			&Coil{LocalID: "co", Variable: "LD1", Latch: latch, In: pin("w1")},
		)
	}

	got, err := r.RungText(build(LatchSet))
	require.NoError(t, err)
	require.Equal(t, []string{"IF (SW1) THEN", "    LD1 := 1;", "END_IF;"}, got)

	got, err = r.RungText(build(LatchReset))
	require.NoError(t, err)
	require.Equal(t, []string{"IF (SW1) THEN", "    LD1 := 0;", "END_IF;"}, got)
}

func TestRungBlockWiring(t *testing.T) {
	r := &Resolver{}
	rung := rungOf(
		&LeftPowerRail{LocalID: "lr", Out: pout("w0")},
		&Contact{LocalID: "c1", Variable: "SW1", In: pin("w0"), Out: pout("w1")},
		&DataSource{LocalID: "s1", Expression: "1000", Out: pout("w2")},
		&Block{
			LocalID: "b1", TypeName: "TP", InstanceName: "TP1",
			Inputs: []BlockVariable{
				{Name: "IN", In: pin("w1")},
				{Name: "PT", In: pin("w2")},
			},
			Outputs: []BlockVariable{
				{Name: "Q", Out: pout("w3")},
				{Name: "ET", Out: pout("w4")},
			},
		},
		&DataSink{LocalID: "o1", Expression: "Time", In: pin("w4")},
		&Coil{LocalID: "co", Variable: "LD1", In: pin("w3")},
	)
	got, err := r.RungText(rung)
	require.NoError(t, err)
	want := []string{
		"TP1.IN := (SW1);",
		"TP1.PT := 1000;",
		"Time := TP1.ET;",
		"LD1 := TP1.Q;",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("statement mismatch (-want +got):\n%s", diff)
	}
}

func TestRungDanglingReferenceYieldsNoText(t *testing.T) {
	r := &Resolver{}
	rung := rungOf(
		&Coil{LocalID: "co", Variable: "LD1", In: pin("nowhere")},
	)
	got, err := r.RungText(rung)
	require.NoError(t, err)
	require.Empty(t, got)
}

func cyclicRung() Rung {
	return rungOf(
		&Contact{LocalID: "c1", Variable: "A", In: pin("w2"), Out: pout("w1")},
		&Contact{LocalID: "c2", Variable: "B", In: pin("w1"), Out: pout("w2")},
		&Coil{LocalID: "co", Variable: "LD1", In: pin("w1")},
	)
}

func TestRungCycleDetection(t *testing.T) {
	r := &Resolver{DetectCycles: true}
	_, err := r.RungText(cyclicRung())
	require.Error(t, err)
	require.Contains(t, err.Error(), "cycle")
}

func TestRungDepthBound(t *testing.T) {
	r := &Resolver{MaxDepth: 8}
	_, err := r.RungText(cyclicRung())
	require.Error(t, err)
	require.Contains(t, err.Error(), "depth")
}

func TestValidateWiring(t *testing.T) {
	dup := rungOf(
		&LeftPowerRail{LocalID: "lr", Out: pout("w0")},
		&Contact{LocalID: "c1", Variable: "A", In: pin("w0"), Out: pout("w0")},
	)
	require.ErrorContains(t, dup.Validate(), "duplicate")

	dangling := rungOf(
		&LeftPowerRail{LocalID: "lr", Out: pout("w0")},
		&Coil{LocalID: "co", Variable: "LD1", In: pin("gone")},
	)
	require.ErrorContains(t, dangling.Validate(), "dangling")

	ok := rungOf(
		&LeftPowerRail{LocalID: "lr", Out: pout("w0")},
		&Coil{LocalID: "co", Variable: "LD1", In: pin("w0")},
	)
	require.NoError(t, ok.Validate())
}

func TestResourceText(t *testing.T) {
	p := &Project{
		Namespaces: []Namespace{{
			Name: "Main",
			FunctionBlocks: []FunctionBlock{{
				Name: "PLS",
				Vars: []Variable{{Name: "Q", Type: "BOOL"}},
				Body: Body{Kind: BodyST, ST: "Q := TRUE;"},
			}},
			Programs: []Program{{
				Name: "PLC_LD",
				Body: Body{Kind: BodyLadder, Rungs: []Rung{
					{EvaluationOrder: 2, Objects: []Object{
						&LeftPowerRail{LocalID: "lr2", Out: pout("x0")},
						&Contact{LocalID: "c2", Variable: "SW2", In: pin("x0"), Out: pout("x1")},
						&Coil{LocalID: "co2", Variable: "LD2", In: pin("x1")},
					}},
					{EvaluationOrder: 1, Objects: []Object{
						&LeftPowerRail{LocalID: "lr1", Out: pout("w0")},
						&Contact{LocalID: "c1", Variable: "SW1", In: pin("w0"), Out: pout("w1")},
						&Block{
							LocalID: "b1", TypeName: "PLS", InstanceName: "PLS1",
							Inputs:  []BlockVariable{{Name: "EN", In: pin("w1")}},
							Outputs: []BlockVariable{{Name: "Q", Out: pout("w2")}},
						},
						&Coil{LocalID: "co1", Variable: "LD1", In: pin("w2")},
					}},
				}},
			}},
		}},
	}
	res := &Resource{
		Name:  "Res",
		Tasks: []Task{{Name: "T1", Interval: 100, Priority: 1}},
		Instances: []ProgramInstance{
			{Name: "P1", TypeName: "PLC_LD", TaskName: "T1"},
		},
		GlobalVars: []Variable{
			{Name: "SW1", Type: "BOOL", Address: &Address{Space: 'I', Width: 'X', Index: "0", Bit: "0"}},
			{Name: "Cnt", Type: "INT", Init: "0"},
		},
	}

	r := &Resolver{}
	text, err := r.ResourceText(p, res)
	require.NoError(t, err)

	require.Contains(t, text, `//Task={"Name":"T1","Interval":100,"Priority":1}`)
	require.Contains(t, text, `//Instance={"TypeName":"PLC_LD","Name":"P1","AssociatedTaskName":"T1"}`)
	require.Contains(t, text, `SW1 AT %IX0.0 : BOOL; //Global={"Name":"SW1","Address":"%IX0.0"}`)
	require.Contains(t, text, "Cnt : INT := 0;")
	require.Contains(t, text, "FUNCTION_BLOCK PLS")
	require.Contains(t, text, "PROGRAM PLC_LD")
	require.Contains(t, text, "PLS1 : PLS;")

	// Rungs render sorted by evaluation order, not declaration order.
	first := strings.Index(text, "PLS1.EN := (SW1);")
	second := strings.Index(text, "LD2 := (SW2);")
	require.Greater(t, first, -1)
	require.Greater(t, second, first)
}

func TestResourceTextUnknownProgramType(t *testing.T) {
	p := &Project{}
	res := &Resource{
		Name:      "Res",
		Instances: []ProgramInstance{{Name: "P1", TypeName: "Missing"}},
	}
	r := &Resolver{}
	_, err := r.ResourceText(p, res)
	require.ErrorContains(t, err, "Missing")
}
