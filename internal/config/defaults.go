package config

const (
	defaultDataDir             = "~/.local/share/mediasuite"
	defaultLogDir              = "~/.local/share/mediasuite/logs"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultWorkers             = 1
	defaultAgentTimeoutSeconds = 300
	defaultFFprobeBinary       = "ffprobe"
	defaultMinVideoBytes       = 1_000_000
	defaultMinStoryboardBytes  = 20_000
	defaultStoryboardKeyFrames = 24
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Pipeline: Pipeline{
			Workers:             defaultWorkers,
			AgentTimeoutSeconds: defaultAgentTimeoutSeconds,
		},
		Validation: Validation{
			ProbeMedia:         true,
			FFprobeBinary:      defaultFFprobeBinary,
			MinVideoBytes:      defaultMinVideoBytes,
			MinStoryboardBytes: defaultMinStoryboardBytes,
		},
		Storyboard: Storyboard{
			KeyFrames: defaultStoryboardKeyFrames,
		},
	}
}
