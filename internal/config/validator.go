package config

import (
	"fmt"
	"regexp"
)

var instanceIDPattern = regexp.MustCompile(`^[a-z0-9\-]+$`)

var validResolutions = map[string]bool{
	"480p":  true,
	"720p":  true,
	"1080p": true,
}

// Validate checks the configuration and fills defaulted topic templates.
func Validate(cfg *Config) error {
	if cfg.InstanceID == "" {
		return fmt.Errorf("instance_id is required")
	}
	if !instanceIDPattern.MatchString(cfg.InstanceID) {
		return fmt.Errorf("instance_id must match pattern [a-z0-9-]+")
	}

	if !validResolutions[cfg.Capture.Resolution] {
		return fmt.Errorf("capture.resolution must be one of 480p/720p/1080p, got %q", cfg.Capture.Resolution)
	}
	if cfg.Capture.FPS < 0.1 || cfg.Capture.FPS > 60 {
		return fmt.Errorf("capture.fps must be 0.1-60, got %.2f", cfg.Capture.FPS)
	}
	if cfg.Capture.WarmupSeconds < 0 {
		return fmt.Errorf("capture.warmup_seconds must be >= 0")
	}

	if cfg.Preview.Width <= 0 || cfg.Preview.Height <= 0 {
		return fmt.Errorf("preview dimensions must be positive, got %dx%d", cfg.Preview.Width, cfg.Preview.Height)
	}
	if cfg.Preview.CornerRadius < 0 {
		return fmt.Errorf("preview.corner_radius must be >= 0")
	}

	if cfg.Lock.WindowMS <= 0 {
		cfg.Lock.WindowMS = 2000
	}
	if cfg.Lock.TickMS <= 0 {
		cfg.Lock.TickMS = 100
	}
	if cfg.Lock.TickMS > cfg.Lock.WindowMS {
		return fmt.Errorf("lock.tick_ms (%d) must not exceed lock.window_ms (%d)", cfg.Lock.TickMS, cfg.Lock.WindowMS)
	}

	if cfg.MQTT.Enabled {
		if cfg.MQTT.Broker == "" {
			return fmt.Errorf("mqtt.broker is required when mqtt.enabled")
		}
		if cfg.MQTT.Topics.Control == "" {
			cfg.MQTT.Topics.Control = fmt.Sprintf("cam/control/%s", cfg.InstanceID)
		}
		if cfg.MQTT.Topics.Stats == "" {
			cfg.MQTT.Topics.Stats = fmt.Sprintf("cam/stats/%s", cfg.InstanceID)
		}
		if cfg.MQTT.Topics.Events == "" {
			cfg.MQTT.Topics.Events = fmt.Sprintf("cam/events/%s", cfg.InstanceID)
		}
		if cfg.MQTT.StatsInt <= 0 {
			cfg.MQTT.StatsInt = 10
		}
	}

	return nil
}
