package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/kvbridge/internal/bridge"
	"github.com/roach88/kvbridge/internal/config"
	"github.com/roach88/kvbridge/internal/engine"
	"github.com/roach88/kvbridge/internal/logging"
)

// Version is stamped into log records. Overridden at link time.
var Version = "dev"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Source     string
	Codec      codecValue
	Verbose    bool
	Format     string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the kvbridge CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "kvbridge",
		Short: "kvbridge - handle bridge over an embedded key/value and script engine",
		Long: `kvbridge opens connections to an embedded key/value store, walks it
with cursors and runs CUE scripts against it through the handle bridge.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to YAML config file")
	cmd.PersistentFlags().StringVar(&opts.Source, "db", "", "database path, or :mem: for an in-memory store (overrides config)")
	cmd.PersistentFlags().Var(&opts.Codec, "codec", "value codec for new databases (none|snappy|zstd|lz4)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewPutCommand(opts))
	cmd.AddCommand(NewAppendCommand(opts))
	cmd.AddCommand(NewGetCommand(opts))
	cmd.AddCommand(NewDelCommand(opts))
	cmd.AddCommand(NewScanCommand(opts))
	cmd.AddCommand(NewExecCommand(opts))
	cmd.AddCommand(NewScenarioCommand(opts))

	return cmd
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// loadConfig resolves the configuration file, environment overrides and
// command-line flags, in that order.
func (o *RootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if o.Source != "" {
		cfg.Storage.Source = o.Source
	}
	if o.Codec.name != "" {
		cfg.Storage.Codec = o.Codec.name
	}
	if o.Verbose {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

// session is an environment with one open connection.
type session struct {
	env  *bridge.Environment
	conn *bridge.Connection
	log  *logging.Logger
}

// openSession connects to the configured source. The caller must call
// close, which commits and reclaims every handle.
func (o *RootOptions) openSession(cmd *cobra.Command) (*session, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}

	log := logging.NewWithWriter(cfg.Logging, Version, cmd.ErrOrStderr())
	env := bridge.New(bridge.Options{
		Storage: engine.Config{
			Codec:       cfg.Storage.Codec,
			BusyTimeout: cfg.Storage.BusyTimeout,
			DisableWAL:  !cfg.Storage.WAL,
		},
		MaxBuffer:        cfg.Bridge.MaxBuffer,
		MaxCallbackDepth: cfg.Bridge.MaxCallbackDepth,
		Logger:           log.Logger,
	})

	conn, err := env.Connect(cfg.Storage.Source)
	if err != nil {
		return nil, WrapExitError(ExitCommandError,
			fmt.Sprintf("failed to open %s", cfg.Storage.Source), err)
	}
	log.Debug("connected", "source", cfg.Storage.Source, "handle", conn.ID())
	return &session{env: env, conn: conn, log: log}, nil
}

// close reclaims every handle still open, the connection last.
func (s *session) close() error {
	if err := s.env.Sweep(); err != nil {
		return WrapExitError(ExitFailure, "failed to close connection", err)
	}
	s.env.Close()
	return nil
}
