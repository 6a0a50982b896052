package ven

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/vensim/internal/ven/device"
	"github.com/autopeer-io/vensim/pkg/options"
)

func TestVenOptionsDefaults(t *testing.T) {
	o := NewVenOptions()
	assert.Empty(t, o.Validate())
	assert.Equal(t, "ven-local", o.Thing())
	assert.InDelta(t, 10.0, o.InitialBaseKW(), 1e-9)

	roster, err := o.Roster()
	require.NoError(t, err)
	assert.Equal(t, device.DefaultCircuits(), roster)

	cfg := o.TelemetryConfig()
	assert.Equal(t, 5*time.Second, cfg.Interval)
	assert.Equal(t, 6, cfg.ShadowEvery)

	rc := o.RuntimeConfig()
	assert.InDelta(t, 5.0, rc.TelemetryIntervalSec, 1e-9)
	assert.InDelta(t, 12.0, rc.BaseMaxKW, 1e-9)
}

func TestVenOptionsValidate(t *testing.T) {
	o := NewVenOptions()
	o.ID = ""
	o.TelemetryInterval = 0
	o.BaseMinKW, o.BaseMaxKW = 12, 8
	assert.Len(t, o.Validate(), 3)
}

func TestRosterFromConfig(t *testing.T) {
	off := false
	o := NewVenOptions()
	o.Circuits = []CircuitOptions{
		{ID: "ac", RatedKW: 4, Critical: true},
		{ID: "pool", Name: "Pool Pump", RatedKW: 1.2, PriorityClass: "Sheddable"},
		{ID: "spare", RatedKW: 2, Enabled: &off},
	}

	roster, err := o.Roster()
	require.NoError(t, err)
	require.Len(t, roster, 3)

	assert.Equal(t, device.ClassCritical, roster[0].Class)
	assert.Equal(t, "ac", roster[0].Name)
	assert.True(t, roster[0].Enabled)
	assert.Equal(t, device.ClassSheddable, roster[1].Class)
	assert.Equal(t, device.ClassGeneral, roster[2].Class)
	assert.False(t, roster[2].Enabled)
}

func TestRosterRejectsBadEntries(t *testing.T) {
	tests := []struct {
		name    string
		circuit CircuitOptions
	}{
		{"unknown class", CircuitOptions{ID: "x", RatedKW: 1, PriorityClass: "optional"}},
		{"critical outside critical class", CircuitOptions{ID: "x", RatedKW: 1, Critical: true, PriorityClass: "general"}},
		{"negative rating", CircuitOptions{ID: "x", RatedKW: -1}},
		{"missing id", CircuitOptions{RatedKW: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := NewVenOptions()
			o.Circuits = []CircuitOptions{tt.circuit}
			_, err := o.Roster()
			assert.Error(t, err)
			assert.NotEmpty(t, o.Validate())
		})
	}
}

func TestClientID(t *testing.T) {
	assert.Equal(t, "ven-1-1700000000123", clientID("ven-1", time.UnixMilli(1700000000123)))
}

func TestNewAgent(t *testing.T) {
	cfg := &Config{
		VenOptions:  NewVenOptions(),
		MqttOptions: options.NewMqttOptions(),
		HttpOptions: options.NewHttpOptions(),
	}

	agent, err := cfg.NewAgent()
	require.NoError(t, err)
	assert.Equal(t, "ven-local", agent.venID)
	assert.False(t, agent.hub.IsConnected())
	assert.InDelta(t, 10.0, agent.store.Snapshot().BasePowerKW, 1e-9)
}

func TestNewAgentRejectsDuplicateCircuits(t *testing.T) {
	vo := NewVenOptions()
	vo.Circuits = []CircuitOptions{{ID: "a", RatedKW: 1}, {ID: "a", RatedKW: 2}}

	cfg := &Config{VenOptions: vo, MqttOptions: options.NewMqttOptions(), HttpOptions: options.NewHttpOptions()}
	_, err := cfg.NewAgent()
	assert.Error(t, err)
}
