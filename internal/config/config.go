// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load() layers defaults, an optional YAML file and environment variables.
// - External errors must be wrapped via this package's error helpers.
package config

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the dashboard HTTP listen address, e.g. ":3000".
	Addr string `koanf:"addr"`

	// PollIntervalMS is the correlation cycle cadence in milliseconds.
	PollIntervalMS int `koanf:"poll_interval_ms"`

	// VoiceTimeoutMS bounds the voice roster fetch within one cycle.
	VoiceTimeoutMS int `koanf:"voice_timeout_ms"`

	// RequestTimeoutMS bounds every single gateway HTTP call.
	RequestTimeoutMS int `koanf:"request_timeout_ms"`

	// LockfilePath overrides the discovered game client lockfile location.
	LockfilePath string `koanf:"lockfile_path"`

	// ClientLogPath overrides the game log scanned for the remote host.
	ClientLogPath string `koanf:"client_log_path"`

	// RemoteHost forces the regional remote base URL, bypassing both the
	// log-discovered host and the shard-derived default.
	RemoteHost string `koanf:"remote_host"`

	// AssetsURL is the public reference endpoint for character icon data.
	AssetsURL string `koanf:"assets_url"`

	// VersionURL is the public reference endpoint for the client version.
	VersionURL string `koanf:"version_url"`

	// DataDir overrides the settings directory (mapping and credentials).
	DataDir string `koanf:"data_dir"`

	// SpeakingQueueSize bounds the speaking-event queue between the voice
	// client and the broadcast sink.
	SpeakingQueueSize int `koanf:"speaking_queue_size"`
}

// Default cadence and timeout values mirror the reference overlay behavior.
const (
	defaultPollIntervalMS    = 1000
	defaultVoiceTimeoutMS    = 2000
	defaultRequestTimeoutMS  = 5000
	defaultSpeakingQueueSize = 256
)

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		Addr:              ":3000",
		PollIntervalMS:    defaultPollIntervalMS,
		VoiceTimeoutMS:    defaultVoiceTimeoutMS,
		RequestTimeoutMS:  defaultRequestTimeoutMS,
		AssetsURL:         "https://valorant-api.com/v1/agents",
		VersionURL:        "https://valorant-api.com/v1/version",
		SpeakingQueueSize: defaultSpeakingQueueSize,
	}
}
