package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"normalizer/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with a unique temp directory per test:
// the cache document lives under it and the grace period is shortened so
// teardown tests stay fast.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Cache.Path = filepath.Join(base, "cache", "volumes.db")
	cfgVal.Process.GracePeriodSeconds = 1
	cfgVal.Process.PollIntervalMS = 10

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithInputCache clears cache.path so the cache sits next to the inputs.
func WithInputCache() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Cache.Path = ""
	}
}

// WithTools points the tool binaries at the given paths; empty values keep the default.
func WithTools(ffmpeg, qaac, lame string) ConfigOption {
	return func(b *configBuilder) {
		if ffmpeg != "" {
			b.cfg.Tools.FFmpeg = ffmpeg
		}
		if qaac != "" {
			b.cfg.Tools.Qaac = qaac
		}
		if lame != "" {
			b.cfg.Tools.Lame = lame
		}
	}
}

// WithStubbedBinaries writes stub executables that exit 0 for the provided
// names and prepends their directory to PATH.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "qaac", "lame"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		for _, name := range names {
			WriteScript(b.t, binDir, name, "exit 0\n")
		}
		b.t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}
