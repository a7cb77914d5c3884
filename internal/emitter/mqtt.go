// Package emitter publishes telemetry snapshots and receives control
// commands over MQTT.
package emitter

import (
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/e7canasta/chroma-cam/internal/config"
)

// StatsSnapshot is the periodic telemetry payload, msgpack-encoded on the
// wire.
type StatsSnapshot struct {
	InstanceID   string    `msgpack:"instance_id"`
	Timestamp    time.Time `msgpack:"ts"`
	UptimeS      float64   `msgpack:"uptime_s"`
	CaptureFPS   float64   `msgpack:"capture_fps"`
	FramesTotal  uint64    `msgpack:"frames_total"`
	FramesDrop   uint64    `msgpack:"frames_dropped"`
	Transformed  uint64    `msgpack:"transformed"`
	ActiveFilter string    `msgpack:"active_filter"`
	LockState    string    `msgpack:"lock_state"`
	Restarts     uint32    `msgpack:"restarts"`
}

// Command is a control-plane message received on the control topic.
type Command struct {
	Action string `msgpack:"action" json:"action"` // set_filter, lock_portrait, force_update, report_orientation, set_fps
	Filter string `msgpack:"filter,omitempty" json:"filter,omitempty"`
	Value  string `msgpack:"value,omitempty" json:"value,omitempty"`
	FPS    float64 `msgpack:"fps,omitempty" json:"fps,omitempty"`
}

// CommandHandler is invoked for every decoded control command.
type CommandHandler func(cmd Command)

// MQTTEmitter maintains the broker connection and topic plumbing.
type MQTTEmitter struct {
	cfg    *config.Config
	client mqtt.Client
	log    zerolog.Logger

	mu        sync.RWMutex
	connected bool
	published uint64
	errors    uint64
}

// New creates an emitter. Call Connect before publishing.
func New(cfg *config.Config, log zerolog.Logger) *MQTTEmitter {
	return &MQTTEmitter{cfg: cfg, log: log}
}

// Connect establishes the broker connection with auto-reconnect.
func (e *MQTTEmitter) Connect() error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", e.cfg.MQTT.Broker))
	opts.SetClientID(e.cfg.InstanceID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		e.mu.Lock()
		e.connected = true
		e.mu.Unlock()
		e.log.Info().Str("broker", e.cfg.MQTT.Broker).Str("client_id", e.cfg.InstanceID).Msg("mqtt connected")
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		e.mu.Lock()
		e.connected = false
		e.mu.Unlock()
		e.log.Warn().Err(err).Str("broker", e.cfg.MQTT.Broker).Msg("mqtt connection lost, auto-reconnecting")
	}

	e.client = mqtt.NewClient(opts)

	token := e.client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("emitter: mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("emitter: mqtt connection failed: %w", err)
	}
	return nil
}

// PublishStats publishes a telemetry snapshot on the stats topic.
func (e *MQTTEmitter) PublishStats(snap StatsSnapshot) error {
	if !e.isConnected() {
		e.countError()
		return fmt.Errorf("emitter: mqtt not connected")
	}

	payload, err := msgpack.Marshal(snap)
	if err != nil {
		e.countError()
		return fmt.Errorf("emitter: failed to encode stats: %w", err)
	}

	token := e.client.Publish(e.cfg.MQTT.Topics.Stats, 0, false, payload)
	if !token.WaitTimeout(2 * time.Second) {
		e.countError()
		return fmt.Errorf("emitter: publish timeout")
	}
	if err := token.Error(); err != nil {
		e.countError()
		return fmt.Errorf("emitter: publish failed: %w", err)
	}

	e.mu.Lock()
	e.published++
	e.mu.Unlock()

	e.log.Debug().Str("topic", e.cfg.MQTT.Topics.Stats).Int("size", len(payload)).Msg("stats published")
	return nil
}

// PublishEvent publishes a msgpack-encoded event payload on the events
// topic with QoS 1.
func (e *MQTTEmitter) PublishEvent(event any) error {
	if !e.isConnected() {
		e.countError()
		return fmt.Errorf("emitter: mqtt not connected")
	}
	payload, err := msgpack.Marshal(event)
	if err != nil {
		e.countError()
		return fmt.Errorf("emitter: failed to encode event: %w", err)
	}
	token := e.client.Publish(e.cfg.MQTT.Topics.Events, 1, false, payload)
	if !token.WaitTimeout(2 * time.Second) {
		e.countError()
		return fmt.Errorf("emitter: publish timeout")
	}
	return token.Error()
}

// SubscribeControl registers a handler for control commands. Malformed
// payloads are counted and dropped.
func (e *MQTTEmitter) SubscribeControl(handler CommandHandler) error {
	if e.client == nil {
		return fmt.Errorf("emitter: not connected")
	}
	topic := e.cfg.MQTT.Topics.Control
	token := e.client.Subscribe(topic, 1, func(c mqtt.Client, msg mqtt.Message) {
		var cmd Command
		if err := msgpack.Unmarshal(msg.Payload(), &cmd); err != nil {
			e.countError()
			e.log.Warn().Err(err).Str("topic", msg.Topic()).Msg("malformed control command dropped")
			return
		}
		e.log.Info().Str("action", cmd.Action).Msg("control command received")
		handler(cmd)
	})
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("emitter: subscribe timeout on %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("emitter: subscribe failed: %w", err)
	}
	e.log.Info().Str("topic", topic).Msg("control topic subscribed")
	return nil
}

// Disconnect closes the connection with a short grace period.
func (e *MQTTEmitter) Disconnect() {
	if e.client != nil && e.client.IsConnected() {
		e.client.Disconnect(250)
		e.log.Info().Msg("mqtt disconnected")
	}
	e.mu.Lock()
	e.connected = false
	e.mu.Unlock()
}

// Stats returns publish/error counters.
func (e *MQTTEmitter) Stats() (published, errors uint64) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.published, e.errors
}

func (e *MQTTEmitter) isConnected() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.connected
}

func (e *MQTTEmitter) countError() {
	e.mu.Lock()
	e.errors++
	e.mu.Unlock()
}
