// Package config loads and validates the chroma-cam configuration.
//
// Configuration is read from a YAML file with environment overrides
// under the CHROMACAM_ prefix (e.g. CHROMACAM_MQTT_BROKER).
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the complete chroma-cam configuration.
type Config struct {
	InstanceID string        `mapstructure:"instance_id"`
	LogLevel   string        `mapstructure:"log_level"`
	Capture    CaptureConfig `mapstructure:"capture"`
	LUT        LUTConfig     `mapstructure:"lut"`
	Preview    PreviewConfig `mapstructure:"preview"`
	Lock       LockConfig    `mapstructure:"lock"`
	MQTT       MQTTConfig    `mapstructure:"mqtt"`
}

// CaptureConfig contains camera device settings.
type CaptureConfig struct {
	Device         string  `mapstructure:"device"`          // "/dev/video0" or "auto"
	Resolution     string  `mapstructure:"resolution"`      // 480p, 720p, 1080p
	FPS            float64 `mapstructure:"fps"`             // target fps
	WarmupSeconds  int     `mapstructure:"warmup_seconds"`  // warm-up duration; 0 disables
	RestartRetries int     `mapstructure:"restart_retries"` // max pipeline restart attempts
}

// LUTConfig contains color filter settings.
type LUTConfig struct {
	Dir    string `mapstructure:"dir"`    // directory of .cube files
	Active string `mapstructure:"active"` // filter selected at startup; "" means none
	Watch  bool   `mapstructure:"watch"`  // hot-reload the directory
}

// PreviewConfig contains preview surface settings.
type PreviewConfig struct {
	Width        int `mapstructure:"width"`
	Height       int `mapstructure:"height"`
	CornerRadius int `mapstructure:"corner_radius"`
	InsetTop     int `mapstructure:"inset_top"`
	InsetLeft    int `mapstructure:"inset_left"`
	InsetBottom  int `mapstructure:"inset_bottom"`
	InsetRight   int `mapstructure:"inset_right"`
}

// LockConfig contains orientation lock timing.
type LockConfig struct {
	WindowMS int `mapstructure:"window_ms"` // enforcement window after lock
	TickMS   int `mapstructure:"tick_ms"`   // re-assertion interval within the window
}

// MQTTConfig contains broker settings for telemetry and control.
type MQTTConfig struct {
	Enabled  bool       `mapstructure:"enabled"`
	Broker   string     `mapstructure:"broker"`
	Topics   MQTTTopics `mapstructure:"topics"`
	StatsInt int        `mapstructure:"stats_interval_s"` // stats publish interval in seconds
}

// MQTTTopics contains topic templates.
type MQTTTopics struct {
	Control string `mapstructure:"control"`
	Stats   string `mapstructure:"stats"`
	Events  string `mapstructure:"events"`
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("instance_id", "chroma-cam")
	v.SetDefault("log_level", "info")

	v.SetDefault("capture.device", "auto")
	v.SetDefault("capture.resolution", "720p")
	v.SetDefault("capture.fps", 30.0)
	v.SetDefault("capture.warmup_seconds", 3)
	v.SetDefault("capture.restart_retries", 5)

	v.SetDefault("lut.dir", "./luts")
	v.SetDefault("lut.active", "")
	v.SetDefault("lut.watch", true)

	v.SetDefault("preview.width", 1080)
	v.SetDefault("preview.height", 1920)
	v.SetDefault("preview.corner_radius", 0)

	v.SetDefault("lock.window_ms", 2000)
	v.SetDefault("lock.tick_ms", 100)

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.stats_interval_s", 10)

	v.SetEnvPrefix("CHROMACAM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config: invalid configuration: %w", err)
	}
	return &cfg, nil
}
