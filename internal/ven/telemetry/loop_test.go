package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/vensim/internal/ven/command"
	"github.com/autopeer-io/vensim/internal/ven/curtail"
	"github.com/autopeer-io/vensim/internal/ven/device"
)

type fakePublisher struct {
	mu        sync.Mutex
	telemetry []Message
	loads     []Loads
	reported  []device.Snapshot
	reports   []command.EventReport
	err       error
}

func (f *fakePublisher) SendTelemetry(_ context.Context, msg Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.telemetry = append(f.telemetry, msg)
	return f.err
}

func (f *fakePublisher) SendLoads(_ context.Context, loads Loads) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads = append(f.loads, loads)
	return f.err
}

func (f *fakePublisher) SendReported(_ context.Context, snap device.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reported = append(f.reported, snap)
	return f.err
}

func (f *fakePublisher) SendEventReport(_ context.Context, report command.EventReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, report)
	return f.err
}

type fixture struct {
	loop  *Loop
	store *device.Store
	pub   *fakePublisher
	now   time.Time
}

func defaultConfig() Config {
	return Config{
		Interval:    5 * time.Second,
		JitterKW:    0.5,
		MinKW:       8,
		MaxKW:       12,
		ShadowEvery: 6,
	}
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	st, err := device.NewState("ven-test", device.DefaultCircuits(), 10)
	require.NoError(t, err)

	f := &fixture{
		store: device.NewStore(st),
		pub:   &fakePublisher{},
		now:   time.Date(2026, 7, 14, 17, 0, 0, 0, time.UTC),
	}
	f.loop, err = New(cfg, f.store, f.pub,
		WithRand(rand.New(rand.NewPCG(1, 2))),
		WithClock(func() time.Time { return f.now }),
	)
	require.NoError(t, err)
	return f
}

func (f *fixture) step(n int) {
	for range n {
		f.now = f.now.Add(f.loop.cfg.Interval)
		f.loop.Step(context.Background())
	}
}

func (f *fixture) startEvent(t *testing.T, shed float64, d time.Duration) {
	t.Helper()
	require.NoError(t, f.store.Update(func(st *device.State) error {
		_, err := curtail.ApplyEvent(st, curtail.Request{EventID: "evt-1", ShedKW: shed, Duration: d}, f.now)
		return err
	}))
}

func TestNewValidatesConfig(t *testing.T) {
	st, err := device.NewState("ven-test", device.DefaultCircuits(), 10)
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero interval", func(c *Config) { c.Interval = 0 }},
		{"negative jitter", func(c *Config) { c.JitterKW = -1 }},
		{"inverted range", func(c *Config) { c.MinKW, c.MaxKW = 12, 8 }},
		{"zero shadow cadence", func(c *Config) { c.ShadowEvery = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(&cfg)
			_, err := New(cfg, device.NewStore(st), &fakePublisher{})
			assert.Error(t, err)
		})
	}
}

func TestStepCadence(t *testing.T) {
	f := newFixture(t, defaultConfig())

	f.step(5)
	assert.Len(t, f.pub.telemetry, 5)
	assert.Empty(t, f.pub.reported)
	assert.Empty(t, f.pub.loads)

	f.step(1)
	assert.Len(t, f.pub.telemetry, 6)
	assert.Len(t, f.pub.reported, 1)
	require.Len(t, f.pub.loads, 1)
	assert.Len(t, f.pub.loads[0].Loads, len(device.DefaultCircuits()))

	for i, msg := range f.pub.telemetry {
		assert.Equal(t, uint64(i+1), msg.MessageNum)
		assert.Equal(t, "ven-test", msg.VenID)
	}
	assert.Equal(t, f.now.Unix(), f.store.Snapshot().LastTelemetry.Unix())
}

func TestBaseLoadStaysInRange(t *testing.T) {
	f := newFixture(t, defaultConfig())

	// The default roster has 10 kW of enabled capacity, below the 12 kW max.
	for range 500 {
		f.step(1)
		snap := f.store.Snapshot()
		assert.GreaterOrEqual(t, snap.BasePowerKW, 8.0-device.Epsilon)
		assert.LessOrEqual(t, snap.BasePowerKW, 10.0+device.Epsilon)
		assert.InDelta(t, snap.BasePowerKW, snap.PowerKW, 1e-9)
	}
}

func TestWalkStepIsBounded(t *testing.T) {
	cfg := defaultConfig()
	cfg.MinKW, cfg.MaxKW = 0, 100
	f := newFixture(t, cfg)

	prev := f.store.Snapshot().TargetBaseKW
	for range 200 {
		f.step(1)
		cur := f.store.Snapshot().TargetBaseKW
		assert.LessOrEqual(t, cur-prev, cfg.JitterKW+1e-9)
		assert.GreaterOrEqual(t, cur-prev, -cfg.JitterKW-1e-9)
		prev = cur
	}
}

func TestEventHeldAcrossTicks(t *testing.T) {
	f := newFixture(t, defaultConfig())
	f.startEvent(t, 2, time.Hour)

	for range 20 {
		f.step(1)
		snap := f.store.Snapshot()
		require.NotNil(t, snap.ActiveEvent)
		assert.InDelta(t, 2.0, snap.ShedKW, 1e-9)
		assert.InDelta(t, snap.BasePowerKW-2.0, snap.PowerKW, 1e-9)
	}

	last := f.pub.telemetry[len(f.pub.telemetry)-1]
	require.NotNil(t, last.EventID)
	assert.Equal(t, "evt-1", *last.EventID)
	assert.True(t, last.ActiveEvent)
	assert.InDelta(t, 2.0, last.RequestedReductionKW, 1e-9)
}

func TestDeliveredEnergyAccrues(t *testing.T) {
	f := newFixture(t, defaultConfig())
	f.startEvent(t, 2, time.Hour)

	f.step(3)
	snap := f.store.Snapshot()
	require.NotNil(t, snap.ActiveEvent)
	// Three intervals of five seconds at 2 kW.
	assert.InDelta(t, 2.0*15/3600, snap.ActiveEvent.DeliveredKWh, 1e-9)
}

func TestEventExpires(t *testing.T) {
	f := newFixture(t, defaultConfig())
	f.startEvent(t, 2, 10*time.Second)

	f.step(1)
	assert.NotNil(t, f.store.Snapshot().ActiveEvent)
	assert.Empty(t, f.pub.reports)

	f.step(1)
	snap := f.store.Snapshot()
	assert.Nil(t, snap.ActiveEvent)
	assert.InDelta(t, snap.BasePowerKW, snap.PowerKW, 1e-9)
	assert.False(t, snap.Circuits[1].Curtailed())

	require.Len(t, f.pub.reports, 1)
	assert.Equal(t, curtail.ReasonExpired, f.pub.reports[0].Reason)
	assert.Equal(t, "evt-1", f.pub.reports[0].EventID)
	// The state change is mirrored straight away, not on the next cadence.
	assert.Len(t, f.pub.reported, 1)

	last := f.pub.telemetry[len(f.pub.telemetry)-1]
	assert.Nil(t, last.EventID)
	assert.Zero(t, last.ShedKW)
}

func TestPublishFailureKeepsRunning(t *testing.T) {
	f := newFixture(t, defaultConfig())
	f.pub.err = errors.New("not connected")

	f.step(6)
	assert.Equal(t, uint64(6), f.store.Snapshot().MessageNum)
	assert.Len(t, f.pub.telemetry, 6)
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := defaultConfig()
	cfg.Interval = time.Millisecond
	f := newFixture(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.loop.Run(ctx) }()

	require.Eventually(t, func() bool {
		return f.store.Snapshot().MessageNum >= 3
	}, time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}
}

func TestMessageJSON(t *testing.T) {
	st, err := device.NewState("ven-test", device.DefaultCircuits(), 10)
	require.NoError(t, err)
	now := time.Unix(1700000000, 0)

	data, err := json.Marshal(NewMessage(st.Snapshot(), now))
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	for _, key := range []string{
		"venId", "ts", "timestamp", "power_kw", "shed_kw", "base_power_kw",
		"baseline_power_kw", "requested_reduction_kw", "event_id", "message_num",
		"circuits", "active_event",
	} {
		assert.Contains(t, doc, key)
	}
	assert.Nil(t, doc["event_id"])
	assert.Equal(t, 10.0, doc["power_kw"])
	assert.Equal(t, float64(1700000000), doc["ts"])
}

func TestNewLoads(t *testing.T) {
	st, err := device.NewState("ven-test", device.DefaultCircuits(), 10)
	require.NoError(t, err)

	loads := NewLoads(st.Snapshot(), time.Unix(0, 0))
	require.Len(t, loads.Loads, 7)

	heater := loads.Loads[1]
	assert.Equal(t, "heater1", heater.ID)
	assert.Equal(t, "sheddable", heater.PriorityClass)
	assert.InDelta(t, 1.5, heater.ShedCapabilityKW, 1e-9)

	hvac := loads.Loads[0]
	assert.InDelta(t, 0.7, hvac.ShedCapabilityKW, 1e-9)

	ev := loads.Loads[2]
	assert.False(t, ev.Enabled)
	assert.Zero(t, ev.ShedCapabilityKW)
}
