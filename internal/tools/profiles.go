package tools

import (
	"fmt"
	"os"
	"regexp"
	"strconv"

	"normalizer/internal/config"
	"normalizer/internal/progress"
	"normalizer/internal/services"
	"normalizer/internal/supervisor"
)

// ffmpeg separates stats updates with \r and header lines with \n.
const lineDelimiters = "\r\n"

var (
	durationPattern = regexp.MustCompile(`^Duration:\s+([^,\s]+)`)
	timePattern     = regexp.MustCompile(`time=(\S+)`)
	ebur128Time     = regexp.MustCompile(`\bt:\s*(\S+)`)
	integratedLUFS  = regexp.MustCompile(`^I:\s+(\S+)\s+LUFS`)
	peakDBFS        = regexp.MustCompile(`^Peak:\s+(\S+)\s+dBFS`)
	// Tag lines under an input's Metadata: block, "title           : value",
	// and their continuation lines ": value".
	metadataTag = regexp.MustCompile(`^(?:\w[^:]*\s)?:\s`)
)

// ErrorMarker is the substring that marks a fatal diagnostic line.
const ErrorMarker = "Error"

// TransformPatterns recognises ffmpeg's encode progress.
var TransformPatterns = progress.PatternSet{
	Duration:    durationPattern,
	Elapsed:     timePattern,
	ErrorMarker: ErrorMarker,
	NotError:    metadataTag,
}

// AnalysisPatterns recognises the ebur128 filter's per-frame and summary output.
var AnalysisPatterns = progress.PatternSet{
	Duration: durationPattern,
	Elapsed:  ebur128Time,
	Metrics: map[string]*regexp.Regexp{
		progress.MetricIntegratedLUFS: integratedLUFS,
		progress.MetricPeakDBFS:       peakDBFS,
	},
	ErrorMarker: ErrorMarker,
	NotError:    metadataTag,
}

// Binaries are the resolved executables profiles launch.
type Binaries struct {
	FFmpeg string
	Qaac   string
	Lame   string
}

// Profile is one supervised tool invocation.
type Profile struct {
	Name     string
	Spec     supervisor.Spec
	Patterns progress.PatternSet
}

// AnalysisProfile measures integrated loudness and true peak of input.
func AnalysisProfile(bins Binaries, input string) Profile {
	return Profile{
		Name: "analyze",
		Spec: supervisor.Spec{
			Producer: supervisor.Stage{
				Binary: bins.FFmpeg,
				Args: []string{
					"-hide_banner", "-nostats",
					"-i", input,
					"-vn", "-filter:a", "ebur128=peak=true",
					"-f", "null", os.DevNull,
				},
			},
			Delimiters: lineDelimiters,
		},
		Patterns: AnalysisPatterns,
	}
}

// TransformProfile encodes input to output in format, applying gain dB.
// mp3Encoder selects between the lame pipeline and ffmpeg's libmp3lame.
func TransformProfile(bins Binaries, format, mp3Encoder, input, output string, gain float64) (Profile, error) {
	volume := volumeFilter(gain)
	switch format {
	case config.FormatAAC:
		return pipeline(format, bins.FFmpeg, input, volume, supervisor.Stage{
			Binary: bins.Qaac,
			Args: []string{
				"--tvbr", "127", "--quality", "2",
				"--native-resampler=bats,127",
				"-", "-o", output,
			},
		}), nil
	case config.FormatALAC:
		return pipeline(format, bins.FFmpeg, input, volume, supervisor.Stage{
			Binary: bins.Qaac,
			Args: []string{
				"--alac",
				"--native-resampler=bats,127",
				"--bits-per-sample", "24",
				"-", "-o", output,
			},
		}), nil
	case config.FormatMP3:
		if mp3Encoder == config.MP3EncoderFFmpeg {
			return single(format, bins.FFmpeg,
				"-hide_banner", "-i", input,
				"-vn", "-c:a", "libmp3lame", "-qscale:a", "0",
				"-compression_level", "0",
				"-filter:a", volume,
				"-f", "mp3", "-y", output,
			), nil
		}
		return pipeline(format, bins.FFmpeg, input, volume, supervisor.Stage{
			Binary: bins.Lame,
			Args: []string{
				"-b", "64", "-V", "0", "-q", "0",
				"-p", "--noreplaygain",
				"--add-id3v2", "--pad-id3v2",
				"-", output,
			},
		}), nil
	case config.FormatAC3:
		return single(format, bins.FFmpeg,
			"-hide_banner", "-i", input,
			"-vn", "-c:a", "ac3", "-b:a", "640k",
			"-filter:a", "aresample=48000:out_sample_fmt=fltp:resampler=soxr:precision=28,"+volume,
			"-f", "ac3", "-y", output,
		), nil
	case config.FormatFLAC:
		return single(format, bins.FFmpeg,
			"-hide_banner", "-i", input,
			"-vn", "-c:a", "flac",
			"-filter:a", volume,
			"-f", "flac", "-y", output,
		), nil
	default:
		return Profile{}, services.Wrap(services.ErrValidation, "tools", "profile", fmt.Sprintf("unsupported format %q", format), nil)
	}
}

func single(name, ffmpeg string, args ...string) Profile {
	return Profile{
		Name: name,
		Spec: supervisor.Spec{
			Producer:   supervisor.Stage{Binary: ffmpeg, Args: args},
			Delimiters: lineDelimiters,
		},
		Patterns: TransformPatterns,
	}
}

// pipeline decodes input to WAV on stdout and feeds it to encoder.
func pipeline(name, ffmpeg, input, volume string, encoder supervisor.Stage) Profile {
	return Profile{
		Name: name,
		Spec: supervisor.Spec{
			Producer: supervisor.Stage{
				Binary: ffmpeg,
				Args: []string{
					"-hide_banner", "-i", input,
					"-vn", "-filter:a", volume,
					"-f", "wav", "-y", "-",
				},
			},
			Consumer:   &encoder,
			Delimiters: lineDelimiters,
		},
		Patterns: TransformPatterns,
	}
}

func volumeFilter(gain float64) string {
	return "volume=" + strconv.FormatFloat(gain, 'f', -1, 64) + "dB"
}
