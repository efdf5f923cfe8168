package project

import (
	"fmt"
	"regexp"
)

// Address is a parsed memory-reference literal:
//
//	% <space I|Q|M> <width X|B|W|D|L, optional> <index> [. <bit>]
//
// The bit offset is only valid when the width tag is omitted or X. Index and
// Bit keep their digits exactly as written so zero padding survives the
// parse→reformat round trip (generated sources address "%I0001.0" style).
type Address struct {
	Space byte   // 'I', 'Q' or 'M'
	Width byte   // 'X','B','W','D','L'; 0 when omitted
	Index string // digit run, padding preserved
	Bit   string // digit run of the bit offset; empty when absent
}

var addressRe = regexp.MustCompile(`^%([IQM])([XBWDL])?([0-9]+)(?:\.([0-9]+))?$`)

// ParseAddress parses one address literal. Parse then String is the
// identity for every valid literal.
func ParseAddress(s string) (Address, error) {
	m := addressRe.FindStringSubmatch(s)
	if m == nil {
		return Address{}, fmt.Errorf("invalid address %q", s)
	}
	var a Address
	a.Space = m[1][0]
	if m[2] != "" {
		a.Width = m[2][0]
	}
	a.Index = m[3]
	if m[4] != "" {
		if a.Width != 0 && a.Width != 'X' {
			return Address{}, fmt.Errorf("invalid address %q: bit offset requires bit width", s)
		}
		a.Bit = m[4]
	}
	return a, nil
}

func (a Address) String() string {
	s := "%" + string(a.Space)
	if a.Width != 0 {
		s += string(a.Width)
	}
	s += a.Index
	if a.Bit != "" {
		s += "." + a.Bit
	}
	return s
}

// BitWidth returns the referenced width in bits.
func (a Address) BitWidth() int {
	switch a.Width {
	case 'B', 'W':
		return 16
	case 'D':
		return 32
	case 'L':
		return 64
	default:
		return 1
	}
}
