package emitter_test

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/e7canasta/chroma-cam/internal/config"
	"github.com/e7canasta/chroma-cam/internal/emitter"
)

// TestPublishRequiresConnection validates publishes on a disconnected
// emitter fail fast and are counted as errors.
func TestPublishRequiresConnection(t *testing.T) {
	cfg := &config.Config{
		InstanceID: "test",
		MQTT: config.MQTTConfig{
			Broker: "localhost:1883",
			Topics: config.MQTTTopics{Stats: "cam/stats/test"},
		},
	}
	e := emitter.New(cfg, zerolog.Nop())

	if err := e.PublishStats(emitter.StatsSnapshot{InstanceID: "test"}); err == nil {
		t.Error("PublishStats() on disconnected emitter succeeded, want error")
	}
	if err := e.PublishEvent(map[string]string{"k": "v"}); err == nil {
		t.Error("PublishEvent() on disconnected emitter succeeded, want error")
	}
	if err := e.SubscribeControl(func(emitter.Command) {}); err == nil {
		t.Error("SubscribeControl() before Connect succeeded, want error")
	}

	published, errors := e.Stats()
	if published != 0 {
		t.Errorf("published=%d, want 0", published)
	}
	if errors != 2 {
		t.Errorf("errors=%d, want 2", errors)
	}

	// Disconnect on a never-connected emitter is a no-op.
	e.Disconnect()
}
