package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"normalizer/internal/contenthash"
	"normalizer/internal/orchestrator"
	"normalizer/internal/services"
	"normalizer/internal/tools"
)

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	var target targetFlags
	var noDB bool

	cmd := &cobra.Command{
		Use:   "analyze <input>",
		Short: "Measure loudness and report the gain without encoding",
		Args:  cobra.ExactArgs(1),
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
			plan, err := orchestrator.AnalysisPlan(args[0], orchestrator.PlanOptions{
				TargetLUFS: targetLUFS,
				Gain:       gain,
				Logger:     logger,
			})
			if err != nil {
				return err
			}

			cache, err := openCache(cfg, plan.Dir, false, noDB, logger)
			if err != nil {
				return err
			}
			bins, err := checkTools(cmd.Context(), cfg, nil, cacheDirFor(cfg, plan.Dir, false, noDB), logger)
			if err != nil {
				return err
			}
			hasher, err := contenthash.New(cfg.Cache.Hash)
			if err != nil {
				return err
			}

			runner := tools.NewRunner(cfg, bins,
				tools.WithLogger(logger),
				tools.WithObservers(observerFactory(cmd.ErrOrStderr(), logger)),
			)
			orch := orchestrator.New(runner, cache, hasher, orchestrator.Options{Logger: logger})
			report, runErr := orch.Run(services.WithBatchID(cmd.Context(), uuid.NewString()), plan.Jobs)
			out := cmd.OutOrStdout()
			if len(report.Outcomes) > 0 {
				fmt.Fprintln(out, renderAnalysisReport(report))
			}
			if runErr != nil {
				return runErr
			}
			fmt.Fprintf(out, "Target: %.1f LUFS\n", targetLUFS)
			return nil
		},
	}

	target.register(cmd)
	cmd.Flags().BoolVar(&noDB, "no-db", false, "Do not read or write the gain cache")
	return cmd
}
