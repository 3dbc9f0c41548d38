package config

const (
	defaultConfigPath        = "~/.config/shelver/config.toml"
	defaultInputDir          = "/data/input"
	defaultOutputDir         = "/data/output"
	defaultStateDirName      = ".shelver"
	defaultDiscFolderPattern = `(?i)^(disc|disk|cd|part)[\s._-]*\d+\b`
	defaultMinConfidence     = "high"
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultParallelism       = 4
)

var (
	defaultMediaExtensions = []string{".mp3", ".m4a", ".m4b", ".flac", ".ogg", ".opus", ".aac", ".wav", ".wma"}
	defaultRequiredFields  = []string{"title", "author"}
	defaultFailureStatuses = []string{"ai_failed", "failed", "error"}
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			InputDir:  defaultInputDir,
			OutputDir: defaultOutputDir,
		},
		Scanner: Scanner{
			MediaExtensions:   append([]string(nil), defaultMediaExtensions...),
			DiscFolderPattern: defaultDiscFolderPattern,
			SkipHidden:        true,
		},
		Enrichment: Enrichment{
			RequiredFields:  append([]string(nil), defaultRequiredFields...),
			MinConfidence:   defaultMinConfidence,
			FailureStatuses: append([]string(nil), defaultFailureStatuses...),
		},
		Organizer: Organizer{
			Parallelism:  defaultParallelism,
			VerifyCopies: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
