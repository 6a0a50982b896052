package topic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuilder(t *testing.T) {
	tests := []struct {
		name    string
		root    string
		segment string
		id      string
		want    string
	}{
		{"default root", "ven", "cmd", "ven-1", "ven/cmd/ven-1"},
		{"nested root", "site-a/ven/", "telemetry", "ven-1", "site-a/ven/telemetry/ven-1"},
		{"empty root", "", "ack", "ven-1", "ack/ven-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewBuilder(tt.root).Build(tt.segment, tt.id))
		})
	}

	assert.Equal(t, "ven/telemetry/+", NewBuilder("ven").Wildcard("telemetry"))
}

func TestSharedBuilder(t *testing.T) {
	b := NewBuilder("ven")
	shared := b.Shared("recorders")

	assert.Equal(t, "$share/recorders/ven/ack/+", shared.Wildcard("ack"))
	assert.Equal(t, "ven/ack/ven-1", shared.Build("ack", "ven-1"))
	assert.Equal(t, "ven/ack/+", b.Wildcard("ack"))
	assert.Same(t, b, b.Shared(""))
}

func TestShadowBuilder(t *testing.T) {
	b := NewShadowBuilder("")
	assert.Equal(t, "$aws/things/ven-1/shadow/update", b.Update("ven-1"))
	assert.Equal(t, "$aws/things/ven-1/shadow/update/delta", b.UpdateDelta("ven-1"))
	assert.Equal(t, "$aws/things/ven-1/shadow/get", b.Get("ven-1"))
	assert.Equal(t, "$aws/things/ven-1/shadow/get/accepted", b.GetAccepted("ven-1"))

	local := NewShadowBuilder("mirror/things/")
	assert.Equal(t, "mirror/things/ven-1/shadow/update/rejected", local.UpdateRejected("ven-1"))
	assert.Equal(t, "mirror/things/ven-1/shadow/get/rejected", local.GetRejected("ven-1"))
}
