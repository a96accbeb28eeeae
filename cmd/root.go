/*
Copyright © 2025 3 Leaps <info@3leaps.com>
*/
package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fulmenhq/cratemeta/pkg/buildinfo"
	"github.com/fulmenhq/cratemeta/pkg/config"
	"github.com/fulmenhq/cratemeta/pkg/cratemeta"
	"github.com/fulmenhq/cratemeta/pkg/exitcode"
	"github.com/fulmenhq/cratemeta/pkg/logger"
)

// app carries state shared by the command tree of one invocation
type app struct {
	v   *viper.Viper
	cfg *config.Config
	// runner replaces the process layer in tests; nil means os/exec
	runner cratemeta.Runner
}

// newRootCommand creates a fresh root command instance.
// This factory pattern allows tests to create isolated command trees without shared state.
func newRootCommand(a *app) *cobra.Command {
	if a.v == nil {
		a.v = viper.New()
	}

	cmd := &cobra.Command{
		Use:   "cratemeta",
		Short: "Inspect the cargo metadata a build script would see",
		Long: `Cratemeta runs 'cargo metadata --offline --locked --frozen --no-deps --format-version=1'
and prints the decoded result, the same way the cratemeta Go library does for code
generators running inside a cargo build.

Examples:
   cratemeta workspace --manifest-path ./Cargo.toml         # every workspace member
   cratemeta crate --manifest-path ./gen/Cargo.toml --name gen
   cratemeta crate --env-file build.env --format yaml        # simulate build-script variables
   cratemeta workspace --format table --filter 'gen-*'`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.initialize(cmd)
		},
	}

	// Add global flags
	pf := cmd.PersistentFlags()
	pf.String("log-level", "info", "Set log level (trace|debug|info|warn|error)")
	pf.Bool("json", false, "Output logs in JSON format")
	pf.Bool("no-color", false, "Disable colored output")
	pf.String("config", "", "Config file (default .cratemeta.yaml in the working or home directory)")
	pf.String("cargo", "", "Build tool executable (default $CARGO, then cargo)")
	pf.Bool("strict", false, "Fail when cargo exits non-zero even if it printed metadata")
	pf.String("env-file", "", "Dotenv file overlaying the environment (CARGO_MANIFEST_DIR, CARGO_PKG_NAME, CARGO)")
	pf.StringP("format", "o", "json", "Output format (json|yaml|toml|table|raw)")

	for key, flag := range map[string]string{
		"log_level": "log-level",
		"cargo":     "cargo",
		"strict":    "strict",
		"env_file":  "env-file",
		"format":    "format",
	} {
		_ = a.v.BindPFlag(key, pf.Lookup(flag))
	}

	cmd.Version = buildinfo.Version()
	cmd.SetVersionTemplate("cratemeta {{.Version}}\n")

	registerSubcommands(cmd, a)
	return cmd
}

// registerSubcommands adds all subcommands to the root command.
func registerSubcommands(cmd *cobra.Command, a *app) {
	cmd.AddCommand(newWorkspaceCommand(a))
	cmd.AddCommand(newCrateCommand(a))
	cmd.AddCommand(newVersionCommand())
}

// initialize loads configuration and sets up the logger based on command flags
func (a *app) initialize(cmd *cobra.Command) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(a.v, configFile)
	if err != nil {
		return exitcode.WithCode(exitcode.ConfigError, err)
	}
	a.cfg = cfg

	jsonLogs, _ := cmd.Flags().GetBool("json")
	noColor, _ := cmd.Flags().GetBool("no-color")
	level, known := logger.ParseLevel(cfg.LogLevel)

	if err := logger.Initialize(logger.Config{
		Level:     level,
		UseColor:  !noColor,
		JSON:      jsonLogs,
		Component: "cratemeta",
	}); err != nil {
		return exitcode.WithCode(exitcode.ConfigError, err)
	}
	logger.SetOutput(cmd.ErrOrStderr())
	if !known {
		logger.Warn("unknown log level, using info", logger.String("log_level", cfg.LogLevel))
	}
	return nil
}

// gateway builds a cratemeta.Gateway from the loaded configuration
func (a *app) gateway() (*cratemeta.Gateway, error) {
	lookup, err := a.cfg.LookupEnv()
	if err != nil {
		return nil, exitcode.WithCode(exitcode.ConfigError, err)
	}
	opts := []cratemeta.Option{
		cratemeta.WithLookupEnv(lookup),
		cratemeta.WithStrictExit(a.cfg.Strict),
		cratemeta.WithRunner(a.runner),
	}
	if a.cfg.Cargo != "" {
		opts = append(opts, cratemeta.WithProgram(a.cfg.Cargo))
	}
	return cratemeta.New(opts...), nil
}

// Execute runs the command tree and exits with a code derived from the error.
// This is called by main.main().
func Execute() {
	root := newRootCommand(&app{})
	if err := root.ExecuteContext(context.Background()); err != nil {
		logger.Error("Command execution failed", logger.Err(err))
		if !logger.Enabled(logger.ErrorLevel) {
			_, _ = os.Stderr.WriteString("cratemeta: " + err.Error() + "\n")
		}
		os.Exit(exitcode.ForError(err))
	}
}
