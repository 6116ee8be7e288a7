/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package registry holds the in-memory UPS table: variable maps, command
// sets, tracking rings, login counters and staleness, as described by the
// data model. It is the single source of truth mutated by the driver
// connectors and read by client sessions; every exported method of Registry
// and UPS locks its own state, so callers never need an external mutex
// (a Ring on its own is not locked; see Ring).
package registry

import "strconv"

// VarType is the declared type of a variable's value.
type VarType uint8

const (
	TypeString VarType = iota
	TypeNumber
	TypeEnum
	TypeRange
)

func (t VarType) String() string {
	switch t {
	case TypeNumber:
		return "NUMBER"
	case TypeEnum:
		return "ENUM"
	case TypeRange:
		return "RANGE"
	default:
		return "STRING"
	}
}

// Mutability marks whether a client may SET a variable.
type Mutability uint8

const (
	ReadOnly Mutability = iota
	ReadWrite
)

// NumRange is one permitted numeric interval for a RANGE variable.
type NumRange struct {
	Min float64
	Max float64
}

// Variable is one entry of a UPS's variable map (§3 "variable descriptor").
type Variable struct {
	Name       string
	Value      string
	Desc       string
	Type       VarType
	Mutability Mutability
	DisplayLen int
	Flags      []string
	Enum       []string
	Ranges     []NumRange

	// Aux holds sub-variables addressable by a dotted suffix of Name
	// (e.g. "battery.charge.low" as an aux of "battery.charge").
	Aux map[string]string
}

func newVariable(name string) *Variable {
	return &Variable{Name: name, Type: TypeString, Mutability: ReadOnly}
}

func (v *Variable) clone() *Variable {
	c := *v
	c.Flags = append([]string(nil), v.Flags...)
	c.Enum = append([]string(nil), v.Enum...)
	c.Ranges = append([]NumRange(nil), v.Ranges...)
	if v.Aux != nil {
		c.Aux = make(map[string]string, len(v.Aux))
		for k, val := range v.Aux {
			c.Aux[k] = val
		}
	}
	return &c
}

// Accepts reports whether value satisfies v's declared type: membership in
// Enum for TypeEnum, interval membership in Ranges for TypeRange, parses as
// a number for TypeNumber, anything for TypeString. An ENUM with no values
// accepts anything, and a RANGE with no intervals accepts any number.
func (v *Variable) Accepts(value string) bool {
	switch v.Type {
	case TypeEnum:
		for _, e := range v.Enum {
			if e == value {
				return true
			}
		}
		return len(v.Enum) == 0
	case TypeRange:
		f, ok := parseFloat(value)
		if !ok {
			return false
		}
		if len(v.Ranges) == 0 {
			return true
		}
		for _, r := range v.Ranges {
			if f >= r.Min && f <= r.Max {
				return true
			}
		}
		return false
	case TypeNumber:
		_, ok := parseFloat(value)
		return ok
	default:
		return true
	}
}

func parseFloat(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
