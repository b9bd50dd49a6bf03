package terminal

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/de-tools/account-review/pkg/app"
	"github.com/de-tools/account-review/pkg/config"
	"github.com/de-tools/account-review/pkg/runtime/terminal/commands"
	"github.com/de-tools/account-review/pkg/runtime/terminal/export"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// CLI represents the command-line interface
type CLI struct {
	runtime *commands.Runtime
	logOut  io.Writer
	rootCmd *cobra.Command

	configPath string
	verbose    bool
	pretty     bool
}

// Options contain configuration for the CLI
type Options struct {
	Output io.Writer
	// LogOutput receives log events. Defaults to stderr.
	LogOutput io.Writer
	Open      func(ctx context.Context, settings *config.Settings) (*app.App, error)
	Now       func() time.Time
}

// NewCLI creates a new CLI instance
func NewCLI(opts Options) *CLI {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.LogOutput == nil {
		opts.LogOutput = os.Stderr
	}

	cli := &CLI{
		runtime: &commands.Runtime{
			Reporter: export.NewReporter(opts.Output),
			Open:     opts.Open,
			Now:      opts.Now,
		},
		logOut: opts.LogOutput,
	}

	cli.rootCmd = cli.newRootCmd()
	cli.rootCmd.SetOut(opts.Output)
	return cli
}

func (cli *CLI) Execute(ctx context.Context) error {
	return cli.rootCmd.ExecuteContext(ctx)
}

// SetArgs overrides the command line arguments.
func (cli *CLI) SetArgs(args []string) {
	cli.rootCmd.SetArgs(args)
}

func (cli *CLI) newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "ars",
		Short:             "Account review analytics",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: cli.setup,
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&cli.configPath, "config", "c", "", "Path to the settings file (ars.yaml)")
	flags.BoolVarP(&cli.verbose, "verbose", "v", false, "Log at debug level")
	flags.BoolVar(&cli.pretty, "pretty", false, "Human readable log output")

	cmd.AddCommand(commands.NewRunCmd(cli.runtime))
	cmd.AddCommand(commands.NewBatchCmd(cli.runtime))
	cmd.AddCommand(commands.NewModulesCmd(cli.runtime.Reporter))
	cmd.AddCommand(commands.NewRunsCmd(cli.runtime))

	return cmd
}

// setup loads settings and attaches the configured logger to the command
// context.
func (cli *CLI) setup(cmd *cobra.Command, _ []string) error {
	settings, err := config.Load(cli.configPath)
	if err != nil {
		return err
	}
	cli.runtime.Settings = settings

	level := settings.Logging.Level
	if cli.verbose {
		level = "debug"
	}
	logger := NewLogger(cli.logOut, level, cli.pretty || settings.Logging.Pretty)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(logger.WithContext(ctx))
	return nil
}

// NewLogger builds the process logger. Unknown levels fall back to info.
func NewLogger(w io.Writer, level string, pretty bool) zerolog.Logger {
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}
