package config

const (
	defaultConfigPath          = "~/.config/spool/config.toml"
	defaultStateDir            = "~/.local/share/spool"
	defaultLogDir              = "~/.local/share/spool/logs"
	defaultHistoryPath         = "~/.local/share/spool/history.db"
	defaultAPIBind             = "127.0.0.1:7611"
	defaultFFmpegBinary        = "ffmpeg"
	defaultFFprobeBinary       = "ffprobe"
	defaultProbeTimeoutSeconds = 30
	defaultKillGraceSeconds    = 10
	defaultDrainTimeoutSeconds = 600
	defaultSubscriberBuffer    = 1000
	defaultProgressIntervalMS  = 500
	defaultNotifyTimeout       = 10
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"

	// StopPolicyCancel cancels in-flight jobs when the pool stops.
	StopPolicyCancel = "cancel"
	// StopPolicyDrain lets in-flight jobs finish, bounded by drain_timeout_seconds.
	StopPolicyDrain = "drain"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
			APIBind:  defaultAPIBind,
		},
		Tools: Tools{
			FFmpeg:              defaultFFmpegBinary,
			FFprobe:             defaultFFprobeBinary,
			ProbeTimeoutSeconds: defaultProbeTimeoutSeconds,
		},
		Workers: Workers{
			Autostart:           true,
			KillGraceSeconds:    defaultKillGraceSeconds,
			StopPolicy:          StopPolicyCancel,
			DrainTimeoutSeconds: defaultDrainTimeoutSeconds,
		},
		Events: Events{
			SubscriberBuffer:   defaultSubscriberBuffer,
			ProgressIntervalMS: defaultProgressIntervalMS,
		},
		History: History{
			Enabled: true,
			Path:    defaultHistoryPath,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNotifyTimeout,
			NotifyCompleted:       true,
			NotifyFailed:          true,
			NotifyQueueIdle:       true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
