package engine

import (
	"errors"
	"fmt"
	"math"

	"cuelang.org/go/cue"
)

var errNilValue = errors.New("nil variable reference")

// Value is a script variable extracted after execution.
// The conversions never coerce across kinds, except that an integer may be
// read as a double.
type Value struct {
	name string
	v    cue.Value
}

// Kind names the CUE kind of the variable.
func (x *Value) Kind() string {
	if x == nil {
		return "null"
	}
	return x.v.IncompleteKind().String()
}

func (x *Value) mismatch(want string) error {
	return fmt.Errorf("variable %q is %s, not %s", x.name, x.v.IncompleteKind(), want)
}

func (x *Value) Int64() (int64, error) {
	if x == nil {
		return 0, errNilValue
	}
	if x.v.Kind() != cue.IntKind {
		return 0, x.mismatch("int")
	}
	n, err := x.v.Int64()
	if err != nil {
		return 0, fmt.Errorf("variable %q: %w", x.name, err)
	}
	return n, nil
}

func (x *Value) Int() (int, error) {
	n, err := x.Int64()
	if err != nil {
		return 0, err
	}
	if n < math.MinInt || n > math.MaxInt {
		return 0, fmt.Errorf("variable %q: %d overflows int", x.name, n)
	}
	return int(n), nil
}

func (x *Value) Bool() (bool, error) {
	if x == nil {
		return false, errNilValue
	}
	if x.v.Kind() != cue.BoolKind {
		return false, x.mismatch("bool")
	}
	return x.v.Bool()
}

func (x *Value) Float64() (float64, error) {
	if x == nil {
		return 0, errNilValue
	}
	switch x.v.Kind() {
	case cue.IntKind:
		n, err := x.v.Int64()
		if err != nil {
			return 0, fmt.Errorf("variable %q: %w", x.name, err)
		}
		return float64(n), nil
	case cue.FloatKind:
		f, err := x.v.Float64()
		if err != nil {
			return 0, fmt.Errorf("variable %q: %w", x.name, err)
		}
		return f, nil
	default:
		return 0, x.mismatch("number")
	}
}

// Text returns string and bytes variables as text.
func (x *Value) Text() (string, error) {
	if x == nil {
		return "", errNilValue
	}
	switch x.v.Kind() {
	case cue.StringKind:
		return x.v.String()
	case cue.BytesKind:
		b, err := x.v.Bytes()
		if err != nil {
			return "", err
		}
		return string(b), nil
	default:
		return "", x.mismatch("string")
	}
}
