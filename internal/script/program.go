package script

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// Reserved top-level field names.
const (
	FieldOutput = "output"
	FieldStore  = "store"
	FieldDelete = "delete"
)

// Program is a compiled script. It is immutable; evaluations never
// modify it.
type Program struct {
	name  string
	value cue.Value
}

// Record is a key/value pair a script asks to store.
type Record struct {
	Key   []byte
	Value []byte
}

// Result is one evaluation of a Program.
type Result struct {
	value cue.Value

	// Output holds the items of the output field, in order.
	Output [][]byte

	// Store holds the records of the store field, in field order.
	Store []Record

	// Delete holds the keys of the delete field, in order.
	Delete [][]byte
}

// Compile parses src as a CUE document. name is used in error positions.
func Compile(name, src string) (*Program, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src, cue.Filename(name))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return &Program{name: name, value: v}, nil
}

// CompileFile reads and compiles the script at path.
func CompileFile(path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &CompileError{Message: fmt.Sprintf("read script: %v", err)}
	}
	return Compile(filepath.Base(path), string(data))
}

// Name returns the name the program was compiled under.
func (p *Program) Name() string {
	return p.name
}

// Eval fills bindings into the program and evaluates it.
// Binding names are CUE paths; values are any Go value the CUE SDK can
// encode.
func (p *Program) Eval(bindings map[string]any) (*Result, error) {
	v := p.value
	for name, val := range bindings {
		path := cue.ParsePath(name)
		if err := path.Err(); err != nil {
			return nil, &EvalError{Field: name, Message: fmt.Sprintf("invalid variable name: %v", err)}
		}
		v = v.FillPath(path, val)
	}

	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, &EvalError{Message: formatCUEError(err).Error()}
	}

	res := &Result{value: v}
	var err error
	if res.Output, err = collectBytes(v, FieldOutput); err != nil {
		return nil, err
	}
	if res.Delete, err = collectBytes(v, FieldDelete); err != nil {
		return nil, err
	}
	if res.Store, err = collectRecords(v); err != nil {
		return nil, err
	}
	return res, nil
}

// Lookup returns the variable called name. ok is false when the name is
// not a valid path or the field does not exist.
func (r *Result) Lookup(name string) (v cue.Value, ok bool) {
	if name == "" {
		return cue.Value{}, false
	}
	path := cue.ParsePath(name)
	if path.Err() != nil {
		return cue.Value{}, false
	}
	v = r.value.LookupPath(path)
	if !v.Exists() {
		return cue.Value{}, false
	}
	return v, true
}

// collectBytes reads field as a single string/bytes value or a list of
// them. A missing field yields nil.
func collectBytes(v cue.Value, field string) ([][]byte, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return nil, nil
	}

	if fv.Kind() == cue.ListKind {
		iter, err := fv.List()
		if err != nil {
			return nil, &EvalError{Field: field, Message: err.Error()}
		}
		var out [][]byte
		for iter.Next() {
			b, err := asBytes(iter.Value())
			if err != nil {
				return nil, &EvalError{Field: fmt.Sprintf("%s[%d]", field, len(out)), Message: err.Error()}
			}
			out = append(out, b)
		}
		return out, nil
	}

	b, err := asBytes(fv)
	if err != nil {
		return nil, &EvalError{Field: field, Message: err.Error()}
	}
	return [][]byte{b}, nil
}

// collectRecords reads the store field as a struct of string/bytes values.
func collectRecords(v cue.Value) ([]Record, error) {
	sv := v.LookupPath(cue.ParsePath(FieldStore))
	if !sv.Exists() {
		return nil, nil
	}
	if sv.Kind() != cue.StructKind {
		return nil, &EvalError{Field: FieldStore, Message: "must be a struct"}
	}

	iter, err := sv.Fields()
	if err != nil {
		return nil, &EvalError{Field: FieldStore, Message: err.Error()}
	}
	var records []Record
	for iter.Next() {
		label := iter.Selector().Unquoted()
		b, err := asBytes(iter.Value())
		if err != nil {
			return nil, &EvalError{Field: FieldStore + "." + label, Message: err.Error()}
		}
		records = append(records, Record{Key: []byte(label), Value: b})
	}
	return records, nil
}

func asBytes(v cue.Value) ([]byte, error) {
	switch v.Kind() {
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, err
		}
		return []byte(s), nil
	case cue.BytesKind:
		b, err := v.Bytes()
		if err != nil {
			return nil, err
		}
		if b == nil {
			b = []byte{}
		}
		return b, nil
	default:
		return nil, fmt.Errorf("want string or bytes, got %v", v.Kind())
	}
}
