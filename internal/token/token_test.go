package token

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestTokenizeClasses(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []Token
	}{
		{
			name: "address literals",
			src:  "%IX0.0 %QW10 %MD5 %I3.2 %QL7",
			want: []Token{
				{Address, "%IX0.0"}, {Address, "%QW10"}, {Address, "%MD5"},
				{Address, "%I3.2"}, {Address, "%QL7"},
			},
		},
		{
			name: "compound symbols stay whole",
			src:  "X := A <> B; C <= D",
			want: []Token{
				{Identifier, "X"}, {Symbol, ":="}, {Identifier, "A"},
				{Symbol, "<>"}, {Identifier, "B"}, {Symbol, ";"},
				{Identifier, "C"}, {Symbol, "<="}, {Identifier, "D"},
			},
		},
		{
			name: "dotted identifiers and bit selectors",
			src:  "PLS1.IN IL0001.0",
			want: []Token{{Identifier, "PLS1.IN"}, {Identifier, "IL0001.0"}},
		},
		{
			name: "numbers and ranges",
			src:  "1..5 3.14",
			want: []Token{
				{Number, "1"}, {Symbol, ".."}, {Number, "5"}, {Number, "3.14"},
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Tokenize(tc.src)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("token mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTokenizeSkipsCommentsAndNoise(t *testing.T) {
	src := "//Task={\"Name\":\"T1\"}\nA := 1; (* mid\ncomment *) B := 2; @ $"
	got := Tokenize(src)
	want := []Token{
		{Identifier, "A"}, {Symbol, ":="}, {Number, "1"}, {Symbol, ";"},
		{Identifier, "B"}, {Symbol, ":="}, {Number, "2"}, {Symbol, ";"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("token mismatch (-want +got):\n%s", diff)
	}
}

func TestTokenizeUnterminatedBlockComment(t *testing.T) {
	require.Empty(t, Tokenize("(* never closed"))
}

func TestJoinRetokenizeIdempotent(t *testing.T) {
	sources := []string{
		"IF %IX0.0 AND NOT B THEN X := 1; END_IF;",
		"PLS1.IN := SW1; PLS1.PT := 1000;",
		"FOR i := 1 TO 10 BY 2 DO s := s + i; END_FOR;",
		"CASE n OF 1, 3..5: y := TRUE; END_CASE;",
		"Q := ( A <> B ) OR ( C >= 2.5 );",
	}
	for _, src := range sources {
		first := Tokenize(src)
		second := Tokenize(Join(first))
		if diff := cmp.Diff(first, second); diff != "" {
			t.Errorf("%q not stable under rejoin (-first +second):\n%s", src, diff)
		}
	}
}
