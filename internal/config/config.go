package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"transcode-patrol/internal/mediaserver"
	"transcode-patrol/internal/policy"
)

// Resolution policy selectors accepted in config.
const (
	ResolutionFourK  = "4k"
	ResolutionFullHD = "1080p"
	ResolutionAll    = "all"
)

// ServerEntry is one media server record from the config file.
type ServerEntry struct {
	Name    string `mapstructure:"name"`
	Type    string `mapstructure:"type"`
	URL     string `mapstructure:"url"`
	APIKey  string `mapstructure:"api_key"`
	Enabled bool   `mapstructure:"enabled"`
}

// MessageSettings is the template for the popup shown before termination.
type MessageSettings struct {
	Header           string `mapstructure:"header"`
	Body             string `mapstructure:"body"`
	DisplayTimeoutMs int    `mapstructure:"display_timeout_ms"`
}

// Config holds all the settings for the patrol daemon.
type Config struct {
	CheckIntervalSeconds  int    `mapstructure:"check_interval_seconds"`
	RequestTimeoutSeconds int    `mapstructure:"request_timeout_seconds"`
	LogLevel              string `mapstructure:"log_level"`

	ResolutionPolicy            string   `mapstructure:"resolution_policy"`
	CheckAudio                  bool     `mapstructure:"check_audio"`
	AllowContainerChanges       bool     `mapstructure:"allow_container_changes"`
	IgnoreStrmFiles             bool     `mapstructure:"ignore_strm_files"`
	AssumeWorstOnMissingReasons bool     `mapstructure:"assume_worst_on_missing_reasons"`
	KillStreams                 bool     `mapstructure:"kill_streams"`
	WhitelistedUsers            []string `mapstructure:"whitelisted_users"`
	VideoTriggerReasons         []string `mapstructure:"video_trigger_reasons"`
	AudioTriggerReasons         []string `mapstructure:"audio_trigger_reasons"`

	Message MessageSettings `mapstructure:"message"`
	Servers []ServerEntry   `mapstructure:"servers"`
}

// LoadConfig initializes Viper and merges all config sources.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// 1. Set Defaults
	v.SetDefault("check_interval_seconds", 30)
	v.SetDefault("request_timeout_seconds", 10)
	v.SetDefault("log_level", "info")
	v.SetDefault("resolution_policy", ResolutionFourK)
	v.SetDefault("check_audio", false)
	v.SetDefault("allow_container_changes", false)
	v.SetDefault("ignore_strm_files", false)
	v.SetDefault("assume_worst_on_missing_reasons", true)
	v.SetDefault("kill_streams", true)
	v.SetDefault("video_trigger_reasons", policy.DefaultVideoTriggerReasons)
	v.SetDefault("audio_trigger_reasons", policy.DefaultAudioTriggerReasons)
	v.SetDefault("message.header", "Playback Terminated")
	v.SetDefault("message.body", "Your transcoded session is being terminated due to server policy. Please adjust your quality settings for future playback.")
	v.SetDefault("message.display_timeout_ms", 7000)

	// 2. Read from File
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		// It's okay if the config file is missing; we might use Env vars.
	}

	v.SetEnvPrefix("PATROL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// Validate rejects configurations the daemon cannot run with.
func (c *Config) Validate() error {
	if c.CheckIntervalSeconds <= 0 {
		return fmt.Errorf("check_interval_seconds must be positive, got %d", c.CheckIntervalSeconds)
	}
	if c.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("request_timeout_seconds must be positive, got %d", c.RequestTimeoutSeconds)
	}
	switch strings.ToLower(c.ResolutionPolicy) {
	case ResolutionFourK, ResolutionFullHD, ResolutionAll:
	default:
		return fmt.Errorf("unknown resolution_policy %q (want %s, %s or %s)",
			c.ResolutionPolicy, ResolutionFourK, ResolutionFullHD, ResolutionAll)
	}
	for i, s := range c.Servers {
		if s.Name == "" {
			return fmt.Errorf("servers[%d] has no name", i)
		}
		if s.Enabled && s.URL == "" {
			return fmt.Errorf("server %q is enabled but has no url", s.Name)
		}
	}
	return nil
}

// Policy converts the configuration into the immutable policy value the
// decision engine consumes.
func (c *Config) Policy() (policy.Policy, error) {
	var minW, minH int
	switch strings.ToLower(c.ResolutionPolicy) {
	case ResolutionFourK:
		minW, minH = 3840, 2160
	case ResolutionFullHD:
		minW, minH = 1920, 1080
	case ResolutionAll:
		minW, minH = 0, 0
	default:
		return policy.Policy{}, fmt.Errorf("unknown resolution_policy %q", c.ResolutionPolicy)
	}

	return policy.Policy{
		MinWidth:                    minW,
		MinHeight:                   minH,
		CheckAudio:                  c.CheckAudio,
		AllowContainerChanges:       c.AllowContainerChanges,
		IgnoreStrmFiles:             c.IgnoreStrmFiles,
		AssumeWorstOnMissingReasons: c.AssumeWorstOnMissingReasons,
		WhitelistedUsers:            c.WhitelistedUsers,
		VideoTriggerReasons:         c.VideoTriggerReasons,
		AudioTriggerReasons:         c.AudioTriggerReasons,
		KillStreams:                 c.KillStreams,
		Message: policy.Message{
			Header:         c.Message.Header,
			Body:           c.Message.Body,
			DisplayTimeout: time.Duration(c.Message.DisplayTimeoutMs) * time.Millisecond,
		},
	}, nil
}

// CheckInterval returns the polling interval as a duration.
func (c *Config) CheckInterval() time.Duration {
	return time.Duration(c.CheckIntervalSeconds) * time.Second
}

// RequestTimeout returns the per-remote-call timeout as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// EnabledServers returns the servers the patrol should actually poll.
func (c *Config) EnabledServers() []mediaserver.ServerConfig {
	var servers []mediaserver.ServerConfig
	for _, s := range c.Servers {
		if !s.Enabled {
			continue
		}
		servers = append(servers, mediaserver.ServerConfig{
			Name:    s.Name,
			Type:    s.Type,
			URL:     s.URL,
			APIKey:  s.APIKey,
			Enabled: s.Enabled,
		})
	}
	return servers
}
