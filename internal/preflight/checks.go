package preflight

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"normalizer/internal/config"
	"normalizer/internal/deps"
	"normalizer/internal/services"
	"normalizer/internal/tools"
)

// Requirement names, also used as table labels.
const (
	NameFFmpeg = "FFmpeg"
	NameQaac   = "qaac"
	NameLame   = "LAME"
)

// Requirements lists the binaries needed to produce formats. FFmpeg is always
// required because it decodes every input and runs the loudness analysis.
func Requirements(cfg *config.Config, formats []string) []deps.Requirement {
	requirements := []deps.Requirement{
		{
			Name:        NameFFmpeg,
			Command:     cfg.Tools.FFmpeg,
			Description: "Required for analysis and decoding",
		},
	}
	needQaac, needLame := false, false
	for _, format := range formats {
		switch format {
		case config.FormatAAC, config.FormatALAC:
			needQaac = true
		case config.FormatMP3:
			needLame = cfg.Normalize.MP3Encoder == config.MP3EncoderLame
		}
	}
	requirements = append(requirements, deps.Requirement{
		Name:        NameQaac,
		Command:     cfg.Tools.Qaac,
		Description: "Required for aac and alac output",
		Optional:    !needQaac,
	}, deps.Requirement{
		Name:        NameLame,
		Command:     cfg.Tools.Lame,
		Description: "Required for mp3 output with the lame encoder",
		Optional:    !needLame,
	})
	return requirements
}

// CheckSystemDeps evaluates the requirements for formats. Both the run and
// deps commands use it so the requirement list lives in one place.
func CheckSystemDeps(cfg *config.Config, formats []string) []deps.Status {
	return deps.CheckBinaries(Requirements(cfg, formats))
}

// Binaries maps available statuses onto tool paths. A missing required
// binary is reported with services.ErrBinaryNotFound; optional binaries are
// left empty so their self-tests are skipped.
func Binaries(statuses []deps.Status) (tools.Binaries, error) {
	var bins tools.Binaries
	var missing []string
	for _, status := range statuses {
		if !status.Available {
			if !status.Optional {
				missing = append(missing, fmt.Sprintf("%s (%s)", status.Name, status.Detail))
			}
			continue
		}
		if status.Optional {
			continue
		}
		switch status.Name {
		case NameFFmpeg:
			bins.FFmpeg = status.Path
		case NameQaac:
			bins.Qaac = status.Path
		case NameLame:
			bins.Lame = status.Path
		}
	}
	if len(missing) > 0 {
		return bins, services.Wrap(services.ErrBinaryNotFound, "preflight", "binaries", strings.Join(missing, "; "), nil)
	}
	return bins, nil
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}
