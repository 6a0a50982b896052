package mqtt

import (
	"context"
	"testing"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopicsMatch(t *testing.T) {
	tests := []struct {
		name   string
		filter string
		topic  string
		want   bool
	}{
		{"exact", "ven/cmd/ven-1", "ven/cmd/ven-1", true},
		{"exact mismatch", "ven/cmd/ven-1", "ven/cmd/ven-2", false},
		{"single level", "ven/telemetry/+", "ven/telemetry/ven-1", true},
		{"single level too deep", "ven/telemetry/+", "ven/telemetry/ven-1/extra", false},
		{"single level too short", "ven/telemetry/+", "ven/telemetry", false},
		{"multi level", "ven/#", "ven/ack/ven-1", true},
		{"multi level matches parent", "ven/ack/#", "ven/ack", true},
		{"shadow delta", "$aws/things/+/shadow/update/delta", "$aws/things/ven-1/shadow/update/delta", true},
		{"dollar topic vs wildcard root", "#", "$aws/things/ven-1/shadow/update", false},
		{"dollar topic vs plus root", "+/things/ven-1", "$aws/things/ven-1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, topicsMatch(tt.filter, tt.topic))
		})
	}
}

func TestTopicFilter(t *testing.T) {
	assert.Equal(t, "ven/telemetry/+", topicFilter("$share/recorders/ven/telemetry/+"))
	assert.Equal(t, "ven/telemetry/+", topicFilter("ven/telemetry/+"))
	assert.Equal(t, "$share/broken", topicFilter("$share/broken"))
}

func TestCallsBeforeStart(t *testing.T) {
	client, err := NewClient(&ClientConfig{BrokerURL: "tcp://localhost:1883", ClientID: "ven-1"})
	require.NoError(t, err)
	ctx := context.Background()

	assert.ErrorIs(t, client.Publish(ctx, "ven/ack/ven-1", 1, false, []byte("{}")), ErrNotStarted)
	assert.ErrorIs(t, client.AwaitConnection(ctx), ErrNotStarted)
	assert.NoError(t, client.Subscribe(ctx, "ven/cmd/ven-1", 1, func(context.Context, string, []byte) {}))
	client.Disconnect(ctx)
}

func TestConnectHooksSeeManager(t *testing.T) {
	client, err := NewClient(&ClientConfig{BrokerURL: "tcp://localhost:1883", ClientID: "ven-1"})
	require.NoError(t, err)
	c := client.(*pahoClient)

	seen := make(chan *autopaho.ConnectionManager, 1)
	c.OnConnect(func(context.Context) {
		seen <- c.cm.Load()
	})

	// The connection can come up before NewConnection has returned to Start.
	cm := &autopaho.ConnectionManager{}
	c.onConnectionUp(cm, &paho.Connack{})

	select {
	case got := <-seen:
		assert.Same(t, cm, got)
	case <-time.After(time.Second):
		t.Fatal("connect hook did not run")
	}
	assert.True(t, c.IsConnected())
}
