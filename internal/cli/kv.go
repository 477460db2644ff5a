package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/kvbridge/internal/bridge"
)

// Entry is a key/value pair in command output.
type Entry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (e Entry) String() string {
	return e.Key + "\t" + e.Value
}

// withSession opens a session, runs fn and closes the session. A close
// failure is reported only when fn succeeded.
func withSession(opts *RootOptions, cmd *cobra.Command, fn func(*session, *OutputFormatter) error) (err error) {
	s, err := opts.openSession(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := s.close(); err == nil {
			err = closeErr
		}
	}()
	return fn(s, opts.formatter(cmd))
}

// NewPutCommand creates the put command.
func NewPutCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "put <key> <value>",
		Short: "Store a value, replacing any existing one",
		Example: `  kvbridge put greeting hello
  kvbridge --db :mem: put k v`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, func(s *session, out *OutputFormatter) error {
				if _, err := s.conn.KVStore([]byte(args[0]), []byte(args[1])); err != nil {
					return out.BridgeError("put", err)
				}
				return out.Success(Entry{Key: args[0], Value: args[1]})
			})
		},
	}
}

// NewAppendCommand creates the append command.
func NewAppendCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "append <key> <value>",
		Short:         "Append to a value, creating the key if absent",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, func(s *session, out *OutputFormatter) error {
				key := []byte(args[0])
				if _, err := s.conn.KVAppend(key, []byte(args[1])); err != nil {
					return out.BridgeError("append", err)
				}
				_, v, err := s.conn.KVFetch(key)
				if err != nil {
					return out.BridgeError("append", err)
				}
				return out.Success(Entry{Key: args[0], Value: string(v)})
			})
		},
	}
}

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print the value stored under a key",
		Long: `Print the value stored under a key.

Exit codes:
  0 - key found
  1 - key not found, or the fetch failed
  2 - command error`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, func(s *session, out *OutputFormatter) error {
				found, v, err := s.conn.KVFetch([]byte(args[0]))
				if err != nil {
					return out.BridgeError("get", err)
				}
				if !found {
					if err := out.Error("E_NOT_FOUND", fmt.Sprintf("key %q not found", args[0]), nil); err != nil {
						return err
					}
					return NewExitError(ExitFailure, fmt.Sprintf("key %q not found", args[0]))
				}
				if out.Format == "json" {
					return out.Success(Entry{Key: args[0], Value: string(v)})
				}
				return out.Success(string(v))
			})
		},
	}
}

// NewDelCommand creates the del command.
func NewDelCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "del <key>",
		Short:         "Delete a key; deleting an absent key succeeds",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, func(s *session, out *OutputFormatter) error {
				if _, err := s.conn.KVDelete([]byte(args[0])); err != nil {
					return out.BridgeError("del", err)
				}
				if out.Format == "json" {
					return out.Success(map[string]string{"deleted": args[0]})
				}
				return out.Success("deleted " + args[0])
			})
		},
	}
}

// ScanOptions holds flags for the scan command.
type ScanOptions struct {
	*RootOptions
	From    string
	Mode    seekModeValue
	Limit   int
	Reverse bool
}

// NewScanCommand creates the scan command.
func NewScanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScanOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "List entries in key order using a cursor",
		Long: `List entries in key order using a cursor.

Without --from the scan starts at the first key (the last key with
--reverse). With --from the cursor seeks to that key using --mode:
exact, le (greatest key <= from) or ge (smallest key >= from).`,
		Example: `  kvbridge scan
  kvbridge scan --from user/ --mode ge --limit 10
  kvbridge scan --reverse`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, func(s *session, out *OutputFormatter) error {
				entries, err := scan(s.conn, opts)
				if err != nil {
					return out.BridgeError("scan", err)
				}
				if out.Format == "json" {
					return out.Success(entries)
				}
				for _, e := range entries {
					if err := out.Success(e); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&opts.From, "from", "", "key to seek to before listing")
	cmd.Flags().Var(&opts.Mode, "mode", "seek mode for --from (exact|le|ge)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of entries (0 = no limit)")
	cmd.Flags().BoolVar(&opts.Reverse, "reverse", false, "walk keys in descending order")

	return cmd
}

// scan walks a cursor and collects entries. Running off either end of the
// store ends the scan; any other failure is returned, as is a failure to
// release the cursor.
func scan(conn *bridge.Connection, opts *ScanOptions) (_ []Entry, err error) {
	cur, err := conn.CreateCursor()
	if err != nil {
		return nil, err
	}
	defer func() {
		if _, relErr := cur.Release(); relErr != nil && err == nil {
			err = relErr
		}
	}()

	var ok bool
	switch {
	case opts.From != "":
		ok, err = cur.Seek([]byte(opts.From), opts.Mode.mode)
	case opts.Reverse:
		ok, err = cur.LastEntry()
	default:
		ok, err = cur.FirstEntry()
	}
	if bridge.IsNoEntry(err) {
		return []Entry{}, nil
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return []Entry{}, nil
	}

	entries := []Entry{}
	for cur.IsValidEntry() {
		if opts.Limit > 0 && len(entries) >= opts.Limit {
			break
		}
		k, err := cur.Key()
		if err != nil {
			return nil, err
		}
		v, err := cur.Data()
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Key: string(k), Value: string(v)})

		if opts.Reverse {
			_, err = cur.PrevEntry()
		} else {
			_, err = cur.NextEntry()
		}
		if bridge.IsNoEntry(err) {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	return entries, nil
}
