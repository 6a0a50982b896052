package mqtt

import (
	"context"
	"errors"
)

// ErrNotConnected is returned by Publish while the broker connection is down.
var ErrNotConnected = errors.New("mqtt: not connected")

// ErrNotStarted is returned by calls that need a connection manager before Start.
var ErrNotStarted = errors.New("mqtt: client not started")

// MessageHandler processes one received message.
type MessageHandler func(ctx context.Context, topic string, payload []byte)

// ConnectHook runs after every successful (re)connection, once subscriptions
// have been re-sent.
type ConnectHook func(ctx context.Context)

// Client is a broker client that survives connection loss.
type Client interface {
	// Start begins connecting in the background and returns immediately.
	Start(ctx context.Context) error

	// Disconnect closes the connection and stops reconnecting.
	Disconnect(ctx context.Context)

	// Publish sends payload to topic. It fails fast with ErrNotConnected when
	// the connection is down instead of waiting for a reconnect.
	Publish(ctx context.Context, topic string, qos int, retain bool, payload []byte) error

	// Subscribe registers handler for a topic filter. The subscription is
	// (re)sent on every connection up, so it may be called before connecting.
	Subscribe(ctx context.Context, topic string, qos int, handler MessageHandler) error

	// Unsubscribe removes the handler and sends an UNSUBSCRIBE packet.
	Unsubscribe(ctx context.Context, topic string) error

	// OnConnect registers a hook run after each connection up.
	OnConnect(hook ConnectHook)

	// AwaitConnection blocks until connected or ctx is done.
	AwaitConnection(ctx context.Context) error

	// IsConnected reports whether the connection state machine is in the
	// connected state.
	IsConnected() bool

	// State returns the current connection state name.
	State() string
}
