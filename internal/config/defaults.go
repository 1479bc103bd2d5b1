package config

const (
	defaultFFmpegBinary           = "ffmpeg"
	defaultQaacBinary             = "qaac"
	defaultLameBinary             = "lame"
	defaultTargetLUFS             = -16.0
	defaultMP3Encoder             = MP3EncoderLame
	defaultCacheFileName          = "volumes.db"
	defaultCacheHash              = HashBlake3
	defaultGracePeriodSeconds     = 5
	defaultPollIntervalMS         = 100
	defaultQueueSize              = 256
	defaultShutdownTimeoutSeconds = 7
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
)

// Accepted values for enumerated settings.
const (
	MP3EncoderLame   = "lame"
	MP3EncoderFFmpeg = "ffmpeg"
	HashBlake3       = "blake3"
	HashMD5          = "md5"
)

// Output formats understood by the tool profiles.
const (
	FormatAAC  = "aac"
	FormatALAC = "alac"
	FormatMP3  = "mp3"
	FormatAC3  = "ac3"
	FormatFLAC = "flac"
)

// TargetLevels lists the loudness targets (LUFS) a batch may normalize to.
var TargetLevels = []float64{-23, -19, -16}

// KnownFormats lists every output format in planning order.
var KnownFormats = []string{FormatAAC, FormatALAC, FormatMP3, FormatAC3, FormatFLAC}

func defaultRequiredLibs() []string {
	return []string{"libmp3lame", "libsoxr"}
}

func defaultFormats() []string {
	return []string{FormatAAC, FormatALAC}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Tools: Tools{
			FFmpeg:             defaultFFmpegBinary,
			Qaac:               defaultQaacBinary,
			Lame:               defaultLameBinary,
			FFmpegRequiredLibs: defaultRequiredLibs(),
		},
		Normalize: Normalize{
			TargetLUFS: defaultTargetLUFS,
			Formats:    defaultFormats(),
			MP3Encoder: defaultMP3Encoder,
		},
		Cache: Cache{
			Enabled:  true,
			FileName: defaultCacheFileName,
			Hash:     defaultCacheHash,
		},
		Process: Process{
			GracePeriodSeconds:     defaultGracePeriodSeconds,
			PollIntervalMS:         defaultPollIntervalMS,
			QueueSize:              defaultQueueSize,
			ShutdownTimeoutSeconds: defaultShutdownTimeoutSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
