package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lobstr-tools/squidctl/internal/artifact"
	"github.com/lobstr-tools/squidctl/internal/config"
	"github.com/lobstr-tools/squidctl/internal/lobstr"
	"github.com/lobstr-tools/squidctl/internal/logging"
	"github.com/lobstr-tools/squidctl/internal/orchestrator"
)

// newRunCmd creates the 'run' subcommand, which executes one full squid
// lifecycle pass.
func newRunCmd() *cobra.Command {
	var (
		concurrency    int
		annonceDetails bool
		tasksFile      string
		maxPages       int
		output         string
		verbose        bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Create, configure and execute a squid, then download its results",
		Long: `Creates a squid from the configured crawler template, applies the run
parameters, uploads the task file, starts a run and polls it to completion,
then downloads the exported dataset.

Without --tasks-file the squid is deleted again and no run is started.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load(viper.New())
			cfg.Concurrency = concurrency
			cfg.AnnonceDetails = annonceDetails
			cfg.TasksFile = tasksFile
			cfg.MaxPages = maxPages
			cfg.OutputFile = output

			if err := cfg.Validate(); err != nil {
				return err
			}

			logger, err := logging.New(verbose)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer func() { _ = logger.Sync() }()

			client := lobstr.NewClient(cfg.BaseURL, cfg.APIKey, cfg.HTTPTimeout(), logger)
			sink, err := artifact.NewSink(cfg.OutputFile, logger)
			if err != nil {
				return fmt.Errorf("init result sink: %w", err)
			}

			orc := orchestrator.New(
				client,
				sink,
				orchestrator.Params{
					Crawler:        cfg.Crawler,
					Concurrency:    cfg.Concurrency,
					MaxPages:       cfg.MaxPages,
					AnnonceDetails: cfg.AnnonceDetails,
					TasksFile:      cfg.TasksFile,
				},
				orchestrator.DefaultTiming(),
				cmd.OutOrStdout(),
				logger,
			)
			return orc.Run(cmd.Context())
		},
	}

	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", 1, "concurrency level for the run")
	cmd.Flags().BoolVarP(&annonceDetails, "annonce-details", "a", false, "fetch detailed listing information per result")
	cmd.Flags().StringVarP(&tasksFile, "tasks-file", "l", "", "path to a CSV/TSV file with search tasks to upload")
	cmd.Flags().IntVarP(&maxPages, "max-pages", "p", 2, "maximum pages crawled per task")
	cmd.Flags().StringVarP(&output, "output", "o", "run_results.csv", "path for the downloaded results file")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "enable debug logging")

	return cmd
}
