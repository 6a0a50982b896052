package mqtt

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"github.com/autopeer-io/vensim/pkg/log"
)

type pahoClient struct {
	cfg *ClientConfig

	// cm is set by Start and again by onConnectionUp, which may run before
	// NewConnection returns.
	cm    atomic.Pointer[autopaho.ConnectionManager]
	state *connState

	// ctx is the Start context, handed to message handlers and hooks.
	ctx context.Context

	// subscriptions maps a topic filter to its subscriptionEntry.
	subscriptions sync.Map

	hooksMu sync.Mutex
	hooks   []ConnectHook
}

type subscriptionEntry struct {
	topic   string
	qos     int
	handler MessageHandler
}

// Option configures optional client behavior.
type Option func(*pahoClient)

// WithStateListener registers a listener for connection state changes.
func WithStateListener(l StateListener) Option {
	return func(c *pahoClient) {
		c.state = newConnState(l)
	}
}

// NewClient creates a Client backed by autopaho.
func NewClient(cfg *ClientConfig, opts ...Option) (Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("mqtt config is required")
	}

	setDefaultConfig(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid mqtt config: %w", err)
	}

	c := &pahoClient{
		cfg: cfg,
		ctx: context.Background(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.state == nil {
		c.state = newConnState(nil)
	}
	return c, nil
}

func (c *pahoClient) Start(ctx context.Context) error {
	brokerURL, _ := url.Parse(c.cfg.BrokerURL) // Already validated

	tlsCfg, err := c.cfg.buildTLS()
	if err != nil {
		return err
	}

	pahoCfg := autopaho.ClientConfig{
		ServerUrls:                    []*url.URL{brokerURL},
		KeepAlive:                     c.cfg.KeepAlive,
		CleanStartOnInitialConnection: c.cfg.CleanStart,
		SessionExpiryInterval:         c.cfg.SessionExpiry,
		ReconnectBackoff:              autopaho.NewConstantBackoff(c.cfg.ReconnectBackoff),
		ConnectTimeout:                c.cfg.ConnectTimeout,
		ConnectUsername:               c.cfg.Username,
		ConnectPassword:               []byte(c.cfg.Password),
		TlsCfg:                        tlsCfg,
		WillMessage:                   c.willMessage(),
		Errors:                        log.NewPahoLogger("autopaho", true),
		PahoErrors:                    log.NewPahoLogger("paho", true),
		ClientConfig: paho.ClientConfig{
			ClientID:           c.cfg.ClientID,
			OnClientError:      c.onClientError,
			OnServerDisconnect: c.onServerDisconnect,
			OnPublishReceived: []func(paho.PublishReceived) (bool, error){
				c.router,
			},
		},
		OnConnectionUp: c.onConnectionUp,
		OnConnectError: c.onConnectError,
	}
	if c.cfg.Debug {
		pahoCfg.Debug = log.NewPahoLogger("autopaho", false)
		pahoCfg.PahoDebug = log.NewPahoLogger("paho", false)
	}

	log.Info("Starting MQTT client", "broker", c.cfg.BrokerURL, "clientID", c.cfg.ClientID)

	c.ctx = ctx
	c.state.fire(eventDial)

	cm, err := autopaho.NewConnection(ctx, pahoCfg)
	if err != nil {
		c.state.fire(eventDrop)
		return err
	}
	c.cm.CompareAndSwap(nil, cm)
	return nil
}

func (c *pahoClient) Disconnect(ctx context.Context) {
	cm := c.cm.Load()
	if cm == nil {
		return
	}
	if err := cm.Disconnect(ctx); err != nil {
		log.Warn("MQTT disconnect did not complete cleanly", "error", err)
	}
	c.state.fire(eventDrop)
	log.Info("MQTT client disconnected")
}

func (c *pahoClient) Publish(ctx context.Context, topic string, qos int, retain bool, payload []byte) error {
	cm := c.cm.Load()
	if cm == nil {
		return ErrNotStarted
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	_, err := cm.Publish(ctx, &paho.Publish{
		Topic:   topic,
		QoS:     byte(qos),
		Retain:  retain,
		Payload: payload,
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

func (c *pahoClient) Subscribe(ctx context.Context, topic string, qos int, handler MessageHandler) error {
	c.subscriptions.Store(topic, subscriptionEntry{
		topic:   topic,
		qos:     qos,
		handler: handler,
	})

	cm := c.cm.Load()
	if cm == nil || !c.IsConnected() {
		log.Debug("Subscription deferred until connection up", "topic", topic)
		return nil
	}

	if _, err := cm.Subscribe(ctx, &paho.Subscribe{
		Subscriptions: []paho.SubscribeOptions{
			{Topic: topic, QoS: byte(qos)},
		},
	}); err != nil {
		return fmt.Errorf("failed to send subscription packet: %w", err)
	}

	log.Info("Subscribed to topic", "topic", topic)
	return nil
}

func (c *pahoClient) Unsubscribe(ctx context.Context, topic string) error {
	c.subscriptions.Delete(topic)
	cm := c.cm.Load()
	if cm == nil || !c.IsConnected() {
		return nil
	}

	_, err := cm.Unsubscribe(ctx, &paho.Unsubscribe{
		Topics: []string{topic},
	})
	return err
}

func (c *pahoClient) OnConnect(hook ConnectHook) {
	c.hooksMu.Lock()
	defer c.hooksMu.Unlock()
	c.hooks = append(c.hooks, hook)
}

func (c *pahoClient) AwaitConnection(ctx context.Context) error {
	cm := c.cm.Load()
	if cm == nil {
		return ErrNotStarted
	}
	return cm.AwaitConnection(ctx)
}

func (c *pahoClient) IsConnected() bool {
	return c.state.is(StateConnected)
}

func (c *pahoClient) State() string {
	return c.state.current()
}

func (c *pahoClient) onConnectionUp(cm *autopaho.ConnectionManager, _ *paho.Connack) {
	c.cm.Store(cm)
	c.state.fire(eventUp)

	var subs []paho.SubscribeOptions
	c.subscriptions.Range(func(_, value any) bool {
		entry := value.(subscriptionEntry)
		subs = append(subs, paho.SubscribeOptions{Topic: entry.topic, QoS: byte(entry.qos)})
		return true
	})

	if len(subs) > 0 {
		ctx, cancel := context.WithTimeout(c.ctx, c.cfg.ConnectTimeout)
		if _, err := cm.Subscribe(ctx, &paho.Subscribe{Subscriptions: subs}); err != nil {
			log.Error(err, "Failed to subscribe after connection up", "topics", len(subs))
		} else {
			for _, s := range subs {
				log.Info("Subscribed to topic", "topic", s.Topic)
			}
		}
		cancel()
	}

	c.hooksMu.Lock()
	hooks := append([]ConnectHook(nil), c.hooks...)
	c.hooksMu.Unlock()

	for _, hook := range hooks {
		go hook(c.ctx)
	}
}

func (c *pahoClient) onConnectError(err error) {
	log.Error(err, "MQTT connection attempt failed, retrying", "backoff", c.cfg.ReconnectBackoff)
	c.state.fire(eventDrop)
	c.state.fire(eventDial)
}

func (c *pahoClient) onClientError(err error) {
	log.Error(err, "MQTT connection lost")
	c.state.fire(eventDrop)
	c.state.fire(eventDial)
}

func (c *pahoClient) onServerDisconnect(d *paho.Disconnect) {
	reason := ""
	if d.Properties != nil {
		reason = d.Properties.ReasonString
	}
	log.Warn("MQTT server requested disconnect", "code", d.ReasonCode, "reason", reason)
	c.state.fire(eventDrop)
	c.state.fire(eventDial)
}

// router dispatches a received message to every matching subscription.
// Handlers run on their own goroutine so a slow handler cannot stall the
// paho read loop.
func (c *pahoClient) router(p paho.PublishReceived) (bool, error) {
	topic := p.Packet.Topic
	payload := p.Packet.Payload

	matched := false
	c.subscriptions.Range(func(_, value any) bool {
		entry := value.(subscriptionEntry)
		if topicsMatch(topicFilter(entry.topic), topic) {
			go entry.handler(c.ctx, topic, payload)
			matched = true
		}
		return true
	})

	if !matched {
		log.Debug("Received message on unhandled topic", "topic", topic)
	}

	return true, nil
}

func (c *pahoClient) willMessage() *paho.WillMessage {
	if c.cfg.WillTopic == "" {
		return nil
	}
	return &paho.WillMessage{
		Topic:   c.cfg.WillTopic,
		Payload: c.cfg.WillPayload,
		QoS:     c.cfg.WillQoS,
		Retain:  c.cfg.WillRetain,
	}
}

// topicsMatch reports whether topic matches filter, honoring + and #.
// Topics starting with $ only match filters that also start with $.
func topicsMatch(filter, topic string) bool {
	if filter == topic {
		return true
	}
	if !strings.ContainsAny(filter, "+#") {
		return false
	}
	if strings.HasPrefix(topic, "$") && !strings.HasPrefix(filter, "$") {
		return false
	}

	filterParts := strings.Split(filter, "/")
	topicParts := strings.Split(topic, "/")

	for i, part := range filterParts {
		if part == "#" {
			return true
		}
		if i >= len(topicParts) {
			return false
		}
		if part != "+" && part != topicParts[i] {
			return false
		}
	}

	return len(filterParts) == len(topicParts)
}

// topicFilter strips the $share/<group>/ prefix of a shared subscription.
func topicFilter(filter string) string {
	if strings.HasPrefix(filter, "$share/") {
		parts := strings.SplitN(filter, "/", 3)
		if len(parts) == 3 {
			return parts[2]
		}
	}
	return filter
}

var _ Client = (*pahoClient)(nil)
