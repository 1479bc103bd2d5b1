package testsupport

import (
	"fmt"
	"testing"
)

// FakeFFmpegOptions shapes the output of the ffmpeg stub.
type FakeFFmpegOptions struct {
	// IntegratedLUFS is printed in the ebur128 summary; defaults to -20.0.
	IntegratedLUFS string
	// FailTransform writes part of the output and then reports an error.
	FailTransform bool
	// Title adds a Metadata: block with a title tag to the input header.
	// It must not contain single quotes.
	Title string
}

// FakeFFmpeg writes an ffmpeg stand-in that speaks the stderr protocol.
// Analysis runs print an ebur128 summary. Transform runs print progress and
// copy the input to the last argument, or to stdout when that is "-".
// Run without arguments it answers the self-test with a usage hint and a
// configuration line naming libmp3lame and libsoxr. Every other invocation
// appends its arguments to <dir>/ffmpeg.calls.
func FakeFFmpeg(t testing.TB, dir string, opts FakeFFmpegOptions) string {
	t.Helper()
	lufs := opts.IntegratedLUFS
	if lufs == "" {
		lufs = "-20.0"
	}
	failure := ""
	if opts.FailTransform {
		failure = `  if [ "$out" = "-" ]; then printf 'partial'; else printf 'partial' > "$out"; fi
  printf 'Error: disk full\n' >&2
  exit 1
`
	}
	metadata := ""
	if opts.Title != "" {
		metadata = fmt.Sprintf("printf '  Metadata:\\n    title           : %%s\\n' '%s' >&2\n", opts.Title)
	}
	body := fmt.Sprintf(`if [ $# -eq 0 ]; then
  printf 'ffmpeg version 6.1 Copyright (c) 2000-2023 the FFmpeg developers\n' >&2
  printf '  configuration: --enable-libmp3lame --enable-libsoxr\n' >&2
  printf "Use -h to get full help or, even better, run 'man ffmpeg'\n" >&2
  exit 1
fi
echo "$*" >> "$(dirname "$0")/ffmpeg.calls"
input=""
prev=""
for arg; do
  if [ "$prev" = "-i" ]; then input="$arg"; fi
  prev="$arg"
done
out="$arg"
printf 'Input #0, flac, from input:\n' >&2
%sprintf '  Duration: 00:00:03.00, start: 0.000000, bitrate: 1000 kb/s\n' >&2
case "$*" in
*ebur128*)
  printf '[Parsed_ebur128_0 @ 0x1] t: 1.0  TARGET:-23 LUFS  M: -20.0 S: -20.0  I: -20.0 LUFS\n' >&2
  printf '[Parsed_ebur128_0 @ 0x1] t: 2.99  TARGET:-23 LUFS  M: -20.0 S: -20.0  I: -20.0 LUFS\n' >&2
  printf '  Integrated loudness:\n    I:         %s LUFS\n    Threshold: -30.0 LUFS\n\n' >&2
  printf '  True peak:\n    Peak:       -1.04 dBFS\n' >&2
  ;;
*)
%s  printf 'size=1kB time=00:00:01.00 bitrate=1kbits/s\r' >&2
  printf 'size=2kB time=00:00:03.00 bitrate=1kbits/s\r' >&2
  if [ "$out" = "-" ]; then cat "$input"; else cat "$input" > "$out"; fi
  ;;
esac
`, metadata, lufs, failure)
	return WriteScript(t, dir, "ffmpeg", body)
}

// FakeEncoder writes a qaac/lame stand-in that copies stdin to its last
// argument. It also answers the self-tests: "--check" prints a qaac version
// line and exits 0, no arguments prints a LAME banner and exits 1.
func FakeEncoder(t testing.TB, dir, name string) string {
	t.Helper()
	return WriteScript(t, dir, name, `if [ "$1" = "--check" ]; then
  printf 'qaac 2.45, CoreAudioToolbox 7.9.9.4\n' >&2
  exit 0
fi
if [ $# -eq 0 ]; then
  printf 'LAME 64bits version 3.99.5 (http://lame.sf.net)\n' >&2
  exit 1
fi
for arg; do :; done
cat > "$arg"
`)
}
