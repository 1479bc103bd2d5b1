package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"normalizer/internal/contenthash"
	"normalizer/internal/logging"
	"normalizer/internal/orchestrator"
	"normalizer/internal/services"
	"normalizer/internal/tools"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var formats formatFlags
	var target targetFlags
	var dryRun, noDB, skipAnalysis bool

	cmd := &cobra.Command{
		Use:   "run <input>",
		Short: "Normalize a FLAC file or every FLAC file in a folder",
		Long: "Measure the integrated loudness of each input, derive the gain that " +
			"brings it to the target, and encode one normalized copy per format. " +
			"Measured gains are cached next to the inputs.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger(cmd)
			if err != nil {
				return err
			}
			targetLUFS, gain, err := target.resolve(cmd, cfg)
			if err != nil {
				return err
			}
			selected := formats.selected(cfg, logger)

			plan, err := orchestrator.BuildPlan(args[0], selected, orchestrator.PlanOptions{
				TargetLUFS: targetLUFS,
				Gain:       gain,
				Logger:     logger,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(plan.Jobs) == 0 {
				fmt.Fprintln(out, "Nothing to do!")
				return nil
			}

			cache, err := openCache(cfg, plan.Dir, dryRun, noDB, logger)
			if err != nil {
				return err
			}
			bins, err := checkTools(cmd.Context(), cfg, selected, cacheDirFor(cfg, plan.Dir, dryRun, noDB), logger)
			if err != nil {
				return err
			}
			hasher, err := contenthash.New(cfg.Cache.Hash)
			if err != nil {
				return err
			}

			runCtx := services.WithBatchID(cmd.Context(), uuid.NewString())
			runner := tools.NewRunner(cfg, bins,
				tools.WithLogger(logger),
				tools.WithObservers(observerFactory(cmd.ErrOrStderr(), logger)),
			)
			orch := orchestrator.New(runner, cache, hasher, orchestrator.Options{
				DryRun:       dryRun,
				SkipAnalysis: dryRun && skipAnalysis,
				Logger:       logger,
			})
			logger.Info("starting batch",
				logging.Int("job_count", len(plan.Jobs)),
				logging.Int("skipped_count", len(plan.SkippedJobs)),
				logging.Float64("target_lufs", targetLUFS),
			)
			report, runErr := orch.Run(runCtx, plan.Jobs)
			if len(report.Outcomes) > 0 {
				fmt.Fprintln(out, renderTransformReport(report))
			}
			if runErr != nil {
				return runErr
			}
			fmt.Fprintln(out, summaryLine(report))
			return nil
		},
	}

	formats.register(cmd)
	target.register(cmd)
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "Plan and report without encoding or writing the cache")
	cmd.Flags().BoolVar(&noDB, "no-db", false, "Do not read or write the gain cache")
	cmd.Flags().BoolVar(&skipAnalysis, "skip-analysis", false, "With --dry-run, do not analyze inputs missing from the cache")
	return cmd
}
