package orchestrator

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"normalizer/internal/config"
	"normalizer/internal/fileutil"
	"normalizer/internal/logging"
	"normalizer/internal/services"
)

const inputExt = ".flac"

// PlanOptions carries the parameters copied into every planned job.
type PlanOptions struct {
	TargetLUFS float64
	Gain       *float64
	Logger     *slog.Logger
}

// Plan is the job list for one input path.
type Plan struct {
	Jobs []Job
	// Dir is where the inputs live; the per-batch cache document sits here.
	Dir         string
	SingleFile  bool
	Inputs      []string
	SkippedJobs []Job
}

// Inputs resolves input to the FLAC files it names. A file must itself be a
// FLAC file; a directory contributes every *.flac directly inside it.
func Inputs(input string) (files []string, dir string, single bool, err error) {
	abs, err := filepath.Abs(input)
	if err != nil {
		return nil, "", false, services.Wrap(services.ErrValidation, "plan", "inputs", input, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, "", false, services.Wrap(services.ErrValidation, "plan", "inputs", fmt.Sprintf("%s does not exist", abs), err)
	}
	if !info.IsDir() {
		if !strings.EqualFold(filepath.Ext(abs), inputExt) {
			return nil, "", false, services.Wrap(services.ErrValidation, "plan", "inputs", fmt.Sprintf("%s is not a FLAC file", filepath.Base(abs)), nil)
		}
		return []string{abs}, filepath.Dir(abs), true, nil
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, "", false, services.Wrap(services.ErrValidation, "plan", "inputs", abs, err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), inputExt) {
			continue
		}
		files = append(files, filepath.Join(abs, entry.Name()))
	}
	if len(files) == 0 {
		return nil, "", false, services.Wrap(services.ErrValidation, "plan", "inputs", fmt.Sprintf("no FLAC files found in %s", filepath.Base(abs)), nil)
	}
	slices.Sort(files)
	return files, abs, false, nil
}

// OutputPath returns where input is written in format. Single files get
// siblings (<stem>_aac.m4a, <stem>.mp3, ...); folder batches get one
// subdirectory per format (<dir>/aac/<stem>.m4a).
func OutputPath(input, dir, format string, single bool) (string, error) {
	stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	if single {
		parent := filepath.Dir(input)
		switch format {
		case config.FormatAAC:
			return filepath.Join(parent, stem+"_aac.m4a"), nil
		case config.FormatALAC:
			return filepath.Join(parent, stem+"_alac.m4a"), nil
		case config.FormatMP3:
			return filepath.Join(parent, stem+".mp3"), nil
		case config.FormatAC3:
			return filepath.Join(parent, stem+".ac3"), nil
		case config.FormatFLAC:
			return filepath.Join(parent, stem+"_normalized.flac"), nil
		}
	} else {
		switch format {
		case config.FormatAAC, config.FormatALAC:
			return filepath.Join(dir, format, stem+".m4a"), nil
		case config.FormatMP3, config.FormatFLAC:
			return filepath.Join(dir, format, stem+"."+format), nil
		case config.FormatAC3:
			return "", services.Wrap(services.ErrValidation, "plan", "output", "ac3 output is only available for single files", nil)
		}
	}
	return "", services.Wrap(services.ErrValidation, "plan", "output", fmt.Sprintf("unsupported format %q", format), nil)
}

// BuildPlan builds transform jobs for input, grouped by format in
// config.KnownFormats order. Outputs that already exist are skipped.
func BuildPlan(input string, formats []string, opts PlanOptions) (Plan, error) {
	logger := logging.NewComponentLogger(opts.Logger, "plan")
	files, dir, single, err := Inputs(input)
	if err != nil {
		return Plan{}, err
	}
	if len(formats) == 0 {
		return Plan{}, services.Wrap(services.ErrValidation, "plan", "formats", "no output format selected", nil)
	}
	plan := Plan{Dir: dir, SingleFile: single, Inputs: files}
	params := Params{TargetLUFS: opts.TargetLUFS, Gain: opts.Gain}
	for _, format := range config.KnownFormats {
		if !slices.Contains(formats, format) {
			continue
		}
		for _, file := range files {
			output, err := OutputPath(file, dir, format, single)
			if err != nil {
				return Plan{}, err
			}
			job := Job{Input: file, Output: output, Kind: KindTransform, Format: format, Params: params}
			if fileutil.Exists(output) {
				logger.Info(fmt.Sprintf("%s already exists. Skipping...", output))
				plan.SkippedJobs = append(plan.SkippedJobs, job)
				continue
			}
			plan.Jobs = append(plan.Jobs, job)
		}
	}
	return plan, nil
}

// AnalysisPlan builds one analyze job per input file.
func AnalysisPlan(input string, opts PlanOptions) (Plan, error) {
	files, dir, single, err := Inputs(input)
	if err != nil {
		return Plan{}, err
	}
	plan := Plan{Dir: dir, SingleFile: single, Inputs: files}
	for _, file := range files {
		plan.Jobs = append(plan.Jobs, Job{
			Input:  file,
			Kind:   KindAnalyze,
			Params: Params{TargetLUFS: opts.TargetLUFS, Gain: opts.Gain},
		})
	}
	return plan, nil
}
