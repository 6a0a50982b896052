// Package hub binds the VEN to its broker channels.
package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/autopeer-io/vensim/internal/pkg/metrics"
	"github.com/autopeer-io/vensim/internal/pkg/mqtt/paths"
	"github.com/autopeer-io/vensim/internal/ven/command"
	"github.com/autopeer-io/vensim/internal/ven/device"
	"github.com/autopeer-io/vensim/internal/ven/shadow"
	"github.com/autopeer-io/vensim/internal/ven/telemetry"
	"github.com/autopeer-io/vensim/pkg/log"
	"github.com/autopeer-io/vensim/pkg/mqtt"
	mqtttopic "github.com/autopeer-io/vensim/pkg/mqtt/topic"
)

// DefaultPublishTimeout bounds a single publish when none is configured.
const DefaultPublishTimeout = 5 * time.Second

// Channel labels used in metrics and logs.
const (
	channelShadowGet = "shadow_get"
	channelShadow    = "shadow"
)

// Presence values published on the status channel.
const (
	PresenceOnline  = "online"
	PresenceOffline = "offline"
)

// Presence is the retained status document.
type Presence struct {
	Status string `json:"ven"`
	VenID  string `json:"venId"`
	TS     int64  `json:"ts,omitempty"`
}

// OfflinePresence is the will payload. It carries no timestamp since the
// broker may deliver it long after it was registered.
func OfflinePresence(venID string) []byte {
	payload, _ := json.Marshal(Presence{Status: PresenceOffline, VenID: venID})
	return payload
}

// Router handles inbound messages.
type Router interface {
	HandleCommand(ctx context.Context, topic string, payload []byte)
	HandleDelta(ctx context.Context, topic string, payload []byte)
}

type Hub struct {
	venID string
	thing string

	mc      mqtt.Client
	topics  *mqtttopic.Builder
	shadows *mqtttopic.ShadowBuilder

	timeout time.Duration
	now     func() time.Time
}

var (
	_ command.Sender      = (*Hub)(nil)
	_ telemetry.Publisher = (*Hub)(nil)
)

// Option configures a Hub.
type Option func(*Hub)

// WithThingName sets the shadow thing name. It defaults to the VEN id.
func WithThingName(thing string) Option {
	return func(h *Hub) {
		if thing != "" {
			h.thing = thing
		}
	}
}

// WithPublishTimeout bounds each publish.
func WithPublishTimeout(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.timeout = d
		}
	}
}

// WithShadowBuilder replaces the default $aws/things shadow topics.
func WithShadowBuilder(b *mqtttopic.ShadowBuilder) Option {
	return func(h *Hub) { h.shadows = b }
}

// WithClock replaces time.Now for document timestamps.
func WithClock(now func() time.Time) Option {
	return func(h *Hub) { h.now = now }
}

func New(venID string, client mqtt.Client, topics *mqtttopic.Builder, opts ...Option) *Hub {
	h := &Hub{
		venID:   venID,
		thing:   venID,
		mc:      client,
		topics:  topics,
		shadows: mqtttopic.NewShadowBuilder(""),
		timeout: DefaultPublishTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Start registers the inbound routes and starts connecting. It does not wait
// for the broker; subscriptions are sent on every connection up.
func (h *Hub) Start(ctx context.Context, r Router) error {
	routes := map[string]mqtt.MessageHandler{
		h.topics.Build(paths.Command, h.venID): r.HandleCommand,
		h.shadows.UpdateDelta(h.thing):         r.HandleDelta,
		h.shadows.GetAccepted(h.thing):         r.HandleDelta,
	}
	for topic, handler := range routes {
		if err := h.mc.Subscribe(ctx, topic, 1, handler); err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
	}

	h.mc.OnConnect(h.onConnect)

	return h.mc.Start(ctx)
}

// Stop announces the VEN offline and disconnects from the broker.
func (h *Hub) Stop() {
	log.Info("Disconnecting MQTT client...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if h.mc.IsConnected() {
		if err := h.publishRetained(ctx, paths.Status, h.topics.Build(paths.Status, h.venID), OfflinePresence(h.venID)); err != nil {
			log.Warn("Failed to announce offline status", "error", err)
		}
	}
	h.mc.Disconnect(ctx)
}

func (h *Hub) IsConnected() bool {
	return h.mc.IsConnected()
}

func (h *Hub) onConnect(ctx context.Context) {
	online, _ := json.Marshal(Presence{Status: PresenceOnline, VenID: h.venID, TS: h.now().Unix()})
	if err := h.publishRetained(ctx, paths.Status, h.topics.Build(paths.Status, h.venID), online); err != nil {
		log.Warn("Failed to announce online status", "error", err)
	}
	h.requestShadow(ctx)
}

// requestShadow asks the mirror for the full document so the desired state
// set while the VEN was offline is applied.
func (h *Hub) requestShadow(ctx context.Context) {
	if err := h.publish(ctx, channelShadowGet, h.shadows.Get(h.thing), []byte("{}")); err != nil {
		log.Warn("Failed to request shadow document", "thing", h.thing, "error", err)
		return
	}
	log.Debug("Requested shadow document", "thing", h.thing)
}

func (h *Hub) SendAck(ctx context.Context, ack command.Ack) error {
	return h.sendJSON(ctx, paths.Ack, h.topics.Build(paths.Ack, h.venID), ack)
}

func (h *Hub) SendTelemetry(ctx context.Context, msg telemetry.Message) error {
	return h.sendJSON(ctx, paths.Telemetry, h.topics.Build(paths.Telemetry, h.venID), msg)
}

func (h *Hub) SendLoads(ctx context.Context, loads telemetry.Loads) error {
	return h.sendJSON(ctx, paths.Loads, h.topics.Build(paths.Loads, h.venID), loads)
}

func (h *Hub) SendEventReport(ctx context.Context, report command.EventReport) error {
	return h.sendJSON(ctx, paths.Events, h.topics.Build(paths.Events, h.venID), report)
}

// SendReported publishes snap as the reported section of the shadow.
func (h *Hub) SendReported(ctx context.Context, snap device.Snapshot) error {
	doc := shadow.ReportedDocument(snap, h.now())
	return h.sendJSON(ctx, channelShadow, h.shadows.Update(h.thing), doc)
}

func (h *Hub) sendJSON(ctx context.Context, channel, topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s message: %w", channel, err)
	}
	return h.publish(ctx, channel, topic, payload)
}

func (h *Hub) publish(ctx context.Context, channel, topic string, payload []byte) error {
	return h.send(ctx, channel, topic, false, payload)
}

func (h *Hub) publishRetained(ctx context.Context, channel, topic string, payload []byte) error {
	return h.send(ctx, channel, topic, true, payload)
}

func (h *Hub) send(ctx context.Context, channel, topic string, retain bool, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	start := time.Now()
	err := h.mc.Publish(ctx, topic, 1, retain, payload)
	if err != nil {
		metrics.PublishTotal.WithLabelValues(channel, "failed").Inc()
		return err
	}

	metrics.PublishLatency.WithLabelValues(channel).Observe(time.Since(start).Seconds())
	metrics.PublishTotal.WithLabelValues(channel, "success").Inc()
	log.Debug("Published message", "channel", channel, "topic", topic, "bytes", len(payload))
	return nil
}
