package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/turtacn/molmatch/internal/application/matching"
	"github.com/turtacn/molmatch/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molmatch/internal/infrastructure/storage/molfile"
	"github.com/turtacn/molmatch/pkg/errors"
)

// NewBatchCmd matches one query against every document of a target stream.
func NewBatchCmd() *cobra.Command {
	var (
		queryPath   string
		targetsPath string
		workers     int
		failFast    bool
		flags       searchFlags
	)

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Match a query against a multi-document target file",
		Long: "batch streams the targets of a multi-document YAML file (or stdin with --targets -)\n" +
			"through a pool of workers and writes one result per target as it completes.\n" +
			"SIGINT and SIGTERM stop the run at the next cooperative check.",
		Example: `  molmatch batch -q query.yaml --targets library.yaml -o json > results.jsonl
  cat library.yaml | molmatch batch -q query.yaml --targets - --workers 8`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			query, err := molfile.ReadOne(queryPath)
			if err != nil {
				return err
			}

			var source matching.TargetSource
			if targetsPath == "-" {
				source = molfile.NewDecoder(cmd.InOrStdin())
			} else {
				f, dec, err := molfile.Open(targetsPath)
				if err != nil {
					return err
				}
				defer f.Close()
				source = dec
			}

			opts := cliCtx.Options
			if cmd.Flags().Changed("workers") {
				if workers < 1 {
					return errors.InvalidParam("workers must be at least 1").WithDetailf("workers=%d", workers)
				}
				opts.Workers = workers
			}
			if cmd.Flags().Changed("fail-fast") {
				opts.FailFast = failFast
			}
			svc := matching.NewService(opts, nil, cliCtx.Logger)

			out := newBatchWriter(cmd.OutOrStdout(), cliCtx.OutputFormat)
			summary, runErr := svc.Batch(ctx, &matching.BatchRequest{
				Query:   query,
				Targets: source,
				Options: flags.options(cmd),
			}, out)
			if err := out.Close(); err != nil && runErr == nil {
				runErr = err
			}
			printSummary(cmd.ErrOrStderr(), summary)

			if runErr != nil {
				cliCtx.Logger.Warn("batch stopped early", logging.Err(runErr))
				return errors.Wrap(runErr, errors.CodeUnknown, "batch failed")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&queryPath, "query", "q", "", "query molecule file (YAML or JSON)")
	cmd.Flags().StringVar(&targetsPath, "targets", "", "multi-document target file, or - for stdin")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "concurrent workers (default from config)")
	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "stop at the first invalid target")
	_ = cmd.MarkFlagRequired("query")
	_ = cmd.MarkFlagRequired("targets")
	flags.register(cmd)
	return cmd
}
