package deps

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"normalizer/internal/logging"
	"normalizer/internal/services"
	"normalizer/internal/supervisor"
)

var (
	// ErrMissingLibrary marks an ffmpeg build lacking a required library.
	ErrMissingLibrary = errors.New("ffmpeg library missing")
	// ErrProbeFailed marks a binary that did not answer its self-test.
	ErrProbeFailed = errors.New("binary self-test failed")
)

const (
	ffmpegHelpLine = "Use -h to get full help or, even better, run 'man ffmpeg'"

	SupportedQaacVersion      = "2.45"
	SupportedCoreAudioVersion = "7.9.9.4"
	SupportedLameVersion      = "3.99.5"
	probeTimeout              = 10 * time.Second
	probeGracePeriod          = time.Second
	ffmpegConfigurationPrefix = "configuration:"
	lameVersionMarker         = "LAME"
	qaacExpectedExitCode      = 0
	lameExpectedExitCode      = 1
)

var (
	qaacVersionPattern = regexp.MustCompile(`qaac\s(\S+),\sCoreAudioToolbox\s(\S+)`)
	lameVersionPattern = regexp.MustCompile(`LAME\s.*version\s(\S+)`)
)

type probeResult struct {
	lines    []string
	exitCode int
}

func (r probeResult) find(match func(string) bool) (string, bool) {
	for _, line := range r.lines {
		if match(line) {
			return line, true
		}
	}
	return "", false
}

// probe runs binary once through the supervisor and collects its stderr.
func probe(ctx context.Context, binary string, logger *slog.Logger, args ...string) (probeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	proc, err := supervisor.Start(ctx, supervisor.Spec{
		Producer:         supervisor.Stage{Binary: binary, Args: args},
		Delimiters:       "\r\n",
		GracePeriod:      probeGracePeriod,
		AllowNonZeroExit: true,
		Logger:           logger,
	})
	if err != nil {
		return probeResult{}, err
	}
	var result probeResult
	for {
		read := proc.Next()
		if read.Kind != supervisor.ReadLine {
			if read.Kind == supervisor.ReadFailure {
				_ = proc.Close()
				return result, read.Err
			}
			break
		}
		result.lines = append(result.lines, read.Line)
	}
	if err := proc.Close(); err != nil {
		return result, err
	}
	result.exitCode = proc.ExitCodes()[0]
	return result, nil
}

// CheckFFmpeg runs ffmpeg without arguments; a working build prints its
// usage hint and exits non-zero.
func CheckFFmpeg(ctx context.Context, ffmpeg string, logger *slog.Logger) error {
	logger = logging.NewComponentLogger(logger, "deps")
	res, err := probe(ctx, ffmpeg, logger)
	if err != nil {
		return err
	}
	_, ok := res.find(func(line string) bool { return line == ffmpegHelpLine })
	if res.exitCode == 0 || !ok {
		return services.Wrap(services.ErrConfiguration, "deps", "ffmpeg self-test",
			fmt.Sprintf("%s did not exit as expected (exit %d)", ffmpeg, res.exitCode), ErrProbeFailed)
	}
	logger.Debug("ffmpeg self-test passed", logging.String("binary", ffmpeg))
	return nil
}

// CheckFFmpegLibraries verifies the ffmpeg build configuration line names
// every library in libs.
func CheckFFmpegLibraries(ctx context.Context, ffmpeg string, libs []string, logger *slog.Logger) error {
	if len(libs) == 0 {
		return nil
	}
	logger = logging.NewComponentLogger(logger, "deps")
	res, err := probe(ctx, ffmpeg, logger)
	if err != nil {
		return err
	}
	line, ok := res.find(func(line string) bool { return strings.HasPrefix(line, ffmpegConfigurationPrefix) })
	if !ok {
		return services.Wrap(services.ErrConfiguration, "deps", "ffmpeg libraries", "no configuration line reported", ErrMissingLibrary)
	}
	logger.Debug("ffmpeg configuration", logging.String("line", line))
	var missing []string
	for _, lib := range libs {
		if !strings.Contains(line, lib) {
			missing = append(missing, lib)
		}
	}
	if len(missing) > 0 {
		return services.Wrap(services.ErrConfiguration, "deps", "ffmpeg libraries", strings.Join(missing, ", "), ErrMissingLibrary)
	}
	return nil
}

// CheckQaac runs qaac --check. Versions other than the tested ones only warn.
func CheckQaac(ctx context.Context, qaac string, logger *slog.Logger) error {
	logger = logging.NewComponentLogger(logger, "deps")
	res, err := probe(ctx, qaac, logger, "--check")
	if err != nil {
		return err
	}
	if res.exitCode != qaacExpectedExitCode {
		return services.Wrap(services.ErrConfiguration, "deps", "qaac self-test",
			fmt.Sprintf("%s exited with %d", qaac, res.exitCode), ErrProbeFailed)
	}
	var qaacVersion, coreAudio string
	for _, line := range res.lines {
		if m := qaacVersionPattern.FindStringSubmatch(line); m != nil {
			qaacVersion, coreAudio = m[1], m[2]
			break
		}
	}
	if qaacVersion != SupportedQaacVersion || coreAudio != SupportedCoreAudioVersion {
		logging.WarnWithContext(logger, "untested qaac version", "qaac_version_untested",
			logging.String("qaac_version", qaacVersion),
			logging.String("coreaudio_version", coreAudio),
			logging.String(logging.FieldErrorHint, fmt.Sprintf("qaac %s with CoreAudioToolbox %s is known to work", SupportedQaacVersion, SupportedCoreAudioVersion)),
			logging.String(logging.FieldImpact, "aac and alac encodes may fail"),
		)
	}
	return nil
}

// CheckLame runs lame without arguments; a working build prints its banner
// and exits 1.
func CheckLame(ctx context.Context, lame string, logger *slog.Logger) error {
	logger = logging.NewComponentLogger(logger, "deps")
	res, err := probe(ctx, lame, logger)
	if err != nil {
		return err
	}
	banner, ok := res.find(func(line string) bool { return strings.Contains(line, lameVersionMarker) })
	if res.exitCode != lameExpectedExitCode || !ok {
		return services.Wrap(services.ErrConfiguration, "deps", "lame self-test",
			fmt.Sprintf("%s did not exit as expected (exit %d)", lame, res.exitCode), ErrProbeFailed)
	}
	if m := lameVersionPattern.FindStringSubmatch(banner); m == nil || m[1] != SupportedLameVersion {
		logging.WarnWithContext(logger, "untested lame version", "lame_version_untested",
			logging.String("banner", banner),
			logging.String(logging.FieldErrorHint, "lame "+SupportedLameVersion+" is known to work"),
			logging.String(logging.FieldImpact, "mp3 encodes may fail"),
		)
	}
	return nil
}
