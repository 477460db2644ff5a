package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/kvbridge/internal/engine"
)

// Scenario is a scripted sequence of bridge operations with expectations.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// Source is the default data source for connect steps. Defaults to the
	// in-memory engine.
	Source string `yaml:"source,omitempty"`

	// MaxBuffer and MaxCallbackDepth override the bridge limits when set.
	MaxBuffer        int64 `yaml:"max_buffer,omitempty"`
	MaxCallbackDepth int   `yaml:"max_callback_depth,omitempty"`

	Steps      []Step      `yaml:"steps"`
	Assertions []Assertion `yaml:"assertions,omitempty"`

	// baseDir resolves relative script file paths.
	baseDir string
}

// Step is a single bridge operation.
type Step struct {
	Op string `yaml:"op"`

	// On names the handle the operation applies to.
	On string `yaml:"on,omitempty"`

	// As binds the handle created by connect, create_cursor, compile or
	// compile_file to a name.
	As string `yaml:"as,omitempty"`

	Source string `yaml:"source,omitempty"`
	Key    string `yaml:"key,omitempty"`
	Value  string `yaml:"value,omitempty"`

	// Mode is a seek mode name, or an integer to pass a raw mode through.
	Mode string `yaml:"mode,omitempty"`

	Script string `yaml:"script,omitempty"`
	File   string `yaml:"file,omitempty"`

	// Bind is the value for vm_bind; Key names the variable.
	Bind any `yaml:"bind,omitempty"`

	// Callback selects the host callback: none, record, fail, panic or
	// close (attempt to close the owning handle from inside the callback).
	Callback string `yaml:"callback,omitempty"`

	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect is a subset match against a step outcome. A step without an
// expect clause must succeed.
type Expect struct {
	Result any     `yaml:"result,omitempty"`
	Error  string  `yaml:"error,omitempty"`
	Found  *bool   `yaml:"found,omitempty"`
	Value  *string `yaml:"value,omitempty"`
}

// Assertion validates the trace or the final store contents.
type Assertion struct {
	Type string `yaml:"type"`

	// Op and On are used by trace_contains and trace_count.
	Op string `yaml:"op,omitempty"`
	On string `yaml:"on,omitempty"`

	// Ops is the expected order (trace_order).
	Ops []string `yaml:"ops,omitempty"`

	Count int `yaml:"count,omitempty"`

	// Key and Value are used by final_state. A nil Value asserts the key
	// is absent.
	Key   string  `yaml:"key,omitempty"`
	Value *string `yaml:"value,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// Callback modes.
const (
	CallbackNone   = "none"
	CallbackRecord = "record"
	CallbackFail   = "fail"
	CallbackPanic  = "panic"
	CallbackClose  = "close"
)

// stepOps lists every supported op and whether it needs a handle.
var stepOps = map[string]bool{
	"connect":            false,
	"env_close":          false,
	"sweep":              false,
	"close":              true,
	"commit":             true,
	"rollback":           true,
	"kv_store":           true,
	"kv_append":          true,
	"kv_fetch":           true,
	"kv_delete":          true,
	"kv_fetch_callback":  true,
	"create_cursor":      true,
	"compile":            true,
	"compile_file":       true,
	"cursor_seek":        true,
	"cursor_first_entry": true,
	"cursor_last_entry":  true,
	"cursor_next_entry":  true,
	"cursor_prev_entry":  true,
	"cursor_is_valid":    true,
	"cursor_key":         true,
	"cursor_data":        true,
	"cursor_delete":      true,
	"release":            true,
	"vm_exec":            true,
	"vm_reset":           true,
	"vm_bind":            true,
	"vm_output_callback": true,
	"vm_get_int":         true,
	"vm_get_int64":       true,
	"vm_get_bool":        true,
	"vm_get_double":      true,
	"vm_get_string":      true,
}

var callbackModes = map[string]bool{
	"":             true,
	CallbackNone:   true,
	CallbackRecord: true,
	CallbackFail:   true,
	CallbackPanic:  true,
	CallbackClose:  true,
}

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected so typos surface as errors.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	sc, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	sc.baseDir = filepath.Dir(path)
	return sc, nil
}

// ParseScenario decodes and validates a scenario document.
func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&sc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&sc); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &sc, nil
}

func (s *Scenario) source() string {
	if s.Source == "" {
		return engine.MemorySource
	}
	return s.Source
}

func (s *Scenario) resolve(path string) string {
	if filepath.IsAbs(path) || s.baseDir == "" {
		return path
	}
	return filepath.Join(s.baseDir, path)
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if s.MaxBuffer < 0 || s.MaxCallbackDepth < 0 {
		return fmt.Errorf("limits must be non-negative")
	}

	for i, step := range s.Steps {
		needsOn, ok := stepOps[step.Op]
		if !ok {
			return fmt.Errorf("steps[%d]: unknown op %q", i, step.Op)
		}
		if needsOn && step.On == "" {
			return fmt.Errorf("steps[%d]: %s requires on", i, step.Op)
		}
		if !callbackModes[step.Callback] {
			return fmt.Errorf("steps[%d]: unknown callback mode %q", i, step.Callback)
		}
		switch step.Op {
		case "compile":
			if step.Script == "" {
				return fmt.Errorf("steps[%d]: compile requires script", i)
			}
		case "compile_file":
			if step.File == "" {
				return fmt.Errorf("steps[%d]: compile_file requires file", i)
			}
		case "vm_bind":
			if step.Bind == nil {
				return fmt.Errorf("steps[%d]: vm_bind requires bind", i)
			}
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertTraceContains:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Ops) == 0 {
			return fmt.Errorf("assertions[%d]: ops list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.On == "" || a.Key == "" {
			return fmt.Errorf("assertions[%d]: on and key are required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
