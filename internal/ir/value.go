package ir

import (
	"math"
	"strconv"
	"strings"
)

// Kind identifies the concrete type of a constant Value.
type Kind int

// Value kinds, ordered as they sort.
const (
	KindBool Kind = iota + 1
	KindInt
	KindFloat
	KindDouble
	KindString
	KindIRI
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindDouble:
		return "double"
	case KindString:
		return "string"
	case KindIRI:
		return "iri"
	default:
		return "unknown"
	}
}

// Value is the payload of a Constant term.
// This is a sealed interface - only types in this package implement it.
type Value interface {
	value() // unexported marker
	Kind() Kind
	String() string
}

// String is a string constant.
type String string

// Int is a 64-bit integer constant.
type Int int64

// Float is a single precision floating point constant.
type Float float32

// Double is a double precision floating point constant.
type Double float64

// Bool is a boolean constant.
type Bool bool

// IRI is an identifier constant, kept apart from plain strings.
type IRI string

func (String) value() {}
func (Int) value()    {}
func (Float) value()  {}
func (Double) value() {}
func (Bool) value()   {}
func (IRI) value()    {}

func (String) Kind() Kind { return KindString }
func (Int) Kind() Kind    { return KindInt }
func (Float) Kind() Kind  { return KindFloat }
func (Double) Kind() Kind { return KindDouble }
func (Bool) Kind() Kind   { return KindBool }
func (IRI) Kind() Kind    { return KindIRI }

func (v String) String() string {
	return "'" + strings.ReplaceAll(string(v), "'", `\'`) + "'"
}

func (v Int) String() string { return strconv.FormatInt(int64(v), 10) }

func (v Float) String() string { return formatFloat(float64(v), 32) + "f" }

func (v Double) String() string { return formatFloat(float64(v), 64) }

func (v Bool) String() string { return strconv.FormatBool(bool(v)) }

func (v IRI) String() string { return `_"` + string(v) + `"` }

// formatFloat keeps a decimal point so doubles never print like integers.
func formatFloat(f float64, bits int) string {
	s := strconv.FormatFloat(f, 'g', -1, bits)
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return s
	}
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

// Numeric returns the value as float64 when it is a number.
func Numeric(v Value) (float64, bool) {
	switch n := v.(type) {
	case Int:
		return float64(n), true
	case Float:
		return float64(n), true
	case Double:
		return float64(n), true
	default:
		return 0, false
	}
}

// IsNumeric reports whether v is an Int, Float or Double.
func IsNumeric(v Value) bool {
	_, ok := Numeric(v)
	return ok
}

// CompareValues orders values first by kind, then by payload.
// It defines a total order used for deterministic output, not numeric comparison.
func CompareValues(a, b Value) int {
	if a.Kind() != b.Kind() {
		return compareInts(int(a.Kind()), int(b.Kind()))
	}
	switch x := a.(type) {
	case Bool:
		y := b.(Bool)
		switch {
		case x == y:
			return 0
		case !bool(x):
			return -1
		default:
			return 1
		}
	case Int:
		return compareInts(int64(x), int64(b.(Int)))
	case Float:
		return compareFloats(float64(x), float64(b.(Float)))
	case Double:
		return compareFloats(float64(x), float64(b.(Double)))
	case String:
		return strings.Compare(string(x), string(b.(String)))
	case IRI:
		return strings.Compare(string(x), string(b.(IRI)))
	}
	return 0
}

func compareInts[T int | int64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareFloats(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
