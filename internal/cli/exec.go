package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/kvbridge/internal/bridge"
)

// ExecOptions holds flags for the exec command.
type ExecOptions struct {
	*RootOptions
	Vars []string // name=value bindings
	Get  []string // variables to print after execution
}

// ExecResult is the JSON payload of the exec command.
type ExecResult struct {
	Output    []string       `json:"output"`
	Variables map[string]any `json:"variables,omitempty"`
}

// NewExecCommand creates the exec command.
func NewExecCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExecOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "exec <script.cue>",
		Short: "Compile and run a CUE script against the store",
		Long: `Compile and run a CUE script against the store.

The script's output field is printed as it is produced. Its store and
delete fields are applied to the connection. Variables named with --get
are printed after execution.`,
		Example: `  kvbridge exec report.cue --var limit=10 --get total
  kvbridge exec migrate.cue --db ./data.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, func(s *session, out *OutputFormatter) error {
				return execScript(s, out, opts, args[0])
			})
		},
	}

	cmd.Flags().StringArrayVar(&opts.Vars, "var", nil, "bind a script variable (name=value, repeatable)")
	cmd.Flags().StringArrayVar(&opts.Get, "get", nil, "print a variable after execution (repeatable)")

	return cmd
}

func execScript(s *session, out *OutputFormatter, opts *ExecOptions, path string) error {
	vm, err := s.conn.CompileFile(path)
	if err != nil {
		return out.BridgeError("exec", err)
	}
	defer vm.Release()

	for _, kv := range opts.Vars {
		name, raw, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			return NewExitError(ExitCommandError, fmt.Sprintf("invalid --var %q: want name=value", kv))
		}
		if _, err := vm.Bind(name, parseVar(raw)); err != nil {
			return out.BridgeError("exec", err)
		}
	}

	result := ExecResult{Output: []string{}}
	_, err = vm.SetOutputCallback(func(data []byte, _ int, _ any) error {
		result.Output = append(result.Output, string(data))
		if out.Format == "json" {
			return nil
		}
		_, err := fmt.Fprintln(out.Writer, string(data))
		return err
	}, nil)
	if err != nil {
		return out.BridgeError("exec", err)
	}

	if _, err := vm.Exec(); err != nil {
		return out.BridgeError("exec", err)
	}
	if err := vm.CallbackErr(); err != nil {
		s.log.Warn("output was not fully written", "error", err)
	}
	out.VerboseLog("executed %s (%d output items)", path, len(result.Output))

	if len(opts.Get) > 0 {
		result.Variables = make(map[string]any, len(opts.Get))
	}
	for _, name := range opts.Get {
		v, err := variable(vm, name)
		if err != nil {
			return out.BridgeError("exec", err)
		}
		result.Variables[name] = v
		if out.Format != "json" {
			fmt.Fprintf(out.Writer, "%s=%v\n", name, v)
		}
	}

	if out.Format == "json" {
		return out.Success(result)
	}
	return nil
}

// parseVar interprets a --var value as an int, float or bool before
// falling back to a string.
func parseVar(raw string) any {
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	return raw
}

// variable reads a script variable with the getter matching its kind.
func variable(vm *bridge.VM, name string) (any, error) {
	x, err := vm.ExtractVariable(name)
	if err != nil {
		return nil, err
	}
	switch x.Kind() {
	case "int":
		return vm.Int64(name)
	case "float", "number":
		return vm.Double(name)
	case "bool":
		return vm.Bool(name)
	case "string", "bytes":
		return vm.StringVar(name)
	default:
		return nil, fmt.Errorf("variable %q is %s, which cannot be printed", name, x.Kind())
	}
}
