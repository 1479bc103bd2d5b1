package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"normalizer/internal/deps"
	"normalizer/internal/preflight"
	"normalizer/internal/tools"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	var formats formatFlags
	var skipProbe bool

	cmd := &cobra.Command{
		Use:   "deps",
		Short: "Check the external tools",
		Long: "Resolve ffmpeg, qaac and lame, then run each available binary's " +
			"self-test. A binary is required when the selected formats need it.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger(cmd)
			if err != nil {
				return err
			}
			statuses := preflight.CheckSystemDeps(cfg, formats.selected(cfg, logger))
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderStatuses(statuses))

			var errs []error
			if _, err := preflight.Binaries(statuses); err != nil {
				errs = append(errs, err)
			}
			if !skipProbe {
				results := preflight.RunAll(cmd.Context(), cfg, availableBinaries(statuses), "", logger)
				if len(results) > 0 {
					rows := make([][]string, 0, len(results))
					for _, r := range results {
						rows = append(rows, []string{r.Name, passFail(r.Passed), r.Detail})
					}
					fmt.Fprintln(out, renderTable([]string{"Check", "Result", "Detail"}, rows, nil))
				}
				if err := preflight.Failed(results); err != nil {
					errs = append(errs, err)
				}
			}
			if len(errs) > 0 {
				return errors.Join(errs...)
			}
			fmt.Fprintln(out, "All required tools are available")
			return nil
		},
	}

	formats.register(cmd)
	cmd.Flags().BoolVar(&skipProbe, "no-probe", false, "Only resolve binaries; skip the self-tests")
	return cmd
}

func renderStatuses(statuses []deps.Status) string {
	rows := make([][]string, 0, len(statuses))
	for _, s := range statuses {
		required := "required"
		if s.Optional {
			required = "optional"
		}
		location := s.Path
		if !s.Available {
			location = s.Detail
		}
		rows = append(rows, []string{
			s.Name,
			titleCaser.String(required),
			yesNo(s.Available),
			location,
		})
	}
	return renderTable([]string{"Tool", "Need", "Found", "Location"}, rows, nil)
}

// availableBinaries probes every binary that resolved, optional or not.
func availableBinaries(statuses []deps.Status) tools.Binaries {
	var bins tools.Binaries
	for _, s := range statuses {
		if !s.Available {
			continue
		}
		switch s.Name {
		case preflight.NameFFmpeg:
			bins.FFmpeg = s.Path
		case preflight.NameQaac:
			bins.Qaac = s.Path
		case preflight.NameLame:
			bins.Lame = s.Path
		}
	}
	return bins
}

func passFail(ok bool) string {
	if ok {
		return "pass"
	}
	return "FAIL"
}
