// Package cli implements the molmatch command line: single matches, batch
// runs over multi-document target files and the HTTP server.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/turtacn/molmatch/internal/application/matching"
	"github.com/turtacn/molmatch/internal/config"
	"github.com/turtacn/molmatch/internal/domain/molecule"
	"github.com/turtacn/molmatch/internal/infrastructure/monitoring/logging"
	apperrors "github.com/turtacn/molmatch/pkg/errors"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

type cliContextKey struct{}

// RootOptions holds global CLI flags.
type RootOptions struct {
	ConfigPath   string
	LogLevel     string
	OutputFormat string
	Verbose      bool
	NoColor      bool
}

// CLIContext carries initialised dependencies through the command tree.
type CLIContext struct {
	Config *config.Config

	// ConfigFile is the file the configuration was read from, or "".
	ConfigFile string

	Logger       logging.Logger
	Options      matching.Options
	Service      matching.Service
	OutputFormat string
	Verbose      bool
	NoColor      bool
}

// NewRootCommand creates the root command with its global flags and
// subcommands.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:     "molmatch",
		Short:   "Substructure search over molecule and reaction graphs",
		Long:    "molmatch finds every mapping of a query graph into target molecules or reactions,\neither for one target, for a stream of targets or over HTTP.",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return persistentPreRun(cmd, opts)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.ConfigPath, "config", "c", "", "config file path (default: search ., ~/.molmatch, /etc/molmatch)")
	pf.StringVar(&opts.LogLevel, "log-level", "", "log level (debug, info, warn, error); overrides the config file")
	pf.StringVarP(&opts.OutputFormat, "output", "o", outputText, "output format (text, json, yaml, table)")
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "enable debug logging")
	pf.BoolVar(&opts.NoColor, "no-color", false, "disable colored output")

	cmd.AddCommand(NewMatchCmd(), NewBatchCmd(), NewServeCmd())
	return cmd
}

func persistentPreRun(cmd *cobra.Command, opts *RootOptions) error {
	if !validOutput(opts.OutputFormat) {
		return apperrors.InvalidParam("unknown output format").WithDetailf("output=%q", opts.OutputFormat)
	}
	if opts.NoColor {
		color.NoColor = true
	}

	cfg, path, err := initConfig(cmd, opts)
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	logger, err := initLogger(cfg, opts)
	if err != nil {
		return fmt.Errorf("logger initialization failed: %w", err)
	}
	if path != "" {
		logger.Debug("configuration loaded", logging.String("path", path))
	}

	svcOpts := ServiceOptions(cfg)
	cliCtx := &CLIContext{
		Config:       cfg,
		ConfigFile:   path,
		Logger:       logger,
		Options:      svcOpts,
		Service:      matching.NewService(svcOpts, nil, logger),
		OutputFormat: opts.OutputFormat,
		Verbose:      opts.Verbose,
		NoColor:      opts.NoColor,
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(context.WithValue(ctx, cliContextKey{}, cliCtx))
	return nil
}

// initConfig loads configuration with priority: flags > env > file >
// defaults.  Without --config the default locations are searched and a
// missing file falls back to defaults.
func initConfig(cmd *cobra.Command, opts *RootOptions) (*config.Config, string, error) {
	var overrides map[string]interface{}
	if opts.LogLevel != "" {
		overrides = map[string]interface{}{"log.level": opts.LogLevel}
	}

	path := opts.ConfigPath
	if path == "" {
		dirs := []string{"."}
		if home, err := os.UserHomeDir(); err == nil {
			dirs = append(dirs, filepath.Join(home, ".molmatch"))
		}
		dirs = append(dirs, "/etc/molmatch")

		found, err := config.FindConfigFile(dirs...)
		if err != nil {
			if !errors.Is(err, config.ErrConfigFileNotFound) {
				return nil, "", err
			}
			if opts.Verbose {
				fmt.Fprintln(cmd.ErrOrStderr(), "Warning: no config file found, using defaults")
			}
			cfg, err := config.Load(config.WithOverrides(overrides))
			return cfg, "", err
		}
		path = found
	}

	cfg, err := config.Load(config.WithConfigPath(path), config.WithOverrides(overrides))
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// initLogger creates the console logger used by the CLI.  Logs go to
// stderr so that stdout carries only results.
func initLogger(cfg *config.Config, opts *RootOptions) (logging.Logger, error) {
	level := cfg.Log.Level
	if opts.Verbose {
		level = logging.LevelDebug
	}
	return logging.NewLogger(logging.LogConfig{
		Level:            level,
		Format:           "console",
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	})
}

// ServiceOptions maps configuration onto matching service defaults.
func ServiceOptions(cfg *config.Config) matching.Options {
	return matching.Options{
		MaxMappings:     cfg.Search.MaxMappings,
		UniqueOnly:      cfg.Search.UniqueOnly,
		ExistsOnly:      cfg.Search.ExistsOnly,
		ForwardChecking: cfg.Search.ForwardChecking,
		Roles:           cfg.Search.EnabledRoles,
		Match: molecule.MatchOptions{
			Charge:   cfg.Search.CheckCharge,
			Isotope:  cfg.Search.CheckIsotope,
			Aromatic: cfg.Search.CheckAromatic,
			AtomMaps: cfg.Search.CheckAtomMaps,
		},
		Timeout:  cfg.Search.Timeout,
		Workers:  cfg.Batch.Workers,
		FailFast: cfg.Batch.FailFast,
	}
}

// GetCLIContext extracts the CLIContext stored by the root command.
func GetCLIContext(cmd *cobra.Command) (*CLIContext, error) {
	ctx := cmd.Context()
	if ctx == nil {
		return nil, apperrors.Internal("command context is nil")
	}
	cliCtx, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok || cliCtx == nil {
		return nil, apperrors.Internal("cli context not initialised")
	}
	return cliCtx, nil
}

// Execute runs the root command and reports a failure on stderr.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		PrintError(rootCmd, err)
		return err
	}
	return nil
}

// PrintError writes a formatted error message to stderr.
func PrintError(cmd *cobra.Command, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", color.RedString("Error:"), err.Error())
}
