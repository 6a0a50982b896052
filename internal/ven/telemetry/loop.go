// Package telemetry runs the simulation loop: it moves the base load, expires
// and re-applies DR events and publishes metering on a fixed cadence.
package telemetry

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/autopeer-io/vensim/internal/pkg/metrics"
	"github.com/autopeer-io/vensim/internal/ven/command"
	"github.com/autopeer-io/vensim/internal/ven/curtail"
	"github.com/autopeer-io/vensim/internal/ven/device"
	"github.com/autopeer-io/vensim/pkg/log"
)

// Publisher sends what the loop produces.
type Publisher interface {
	SendTelemetry(ctx context.Context, msg Message) error
	SendLoads(ctx context.Context, loads Loads) error
	SendReported(ctx context.Context, snap device.Snapshot) error
	SendEventReport(ctx context.Context, report command.EventReport) error
}

// Config tunes the simulation.
type Config struct {
	Interval time.Duration

	// JitterKW bounds each random walk step of the base load.
	JitterKW float64
	MinKW    float64
	MaxKW    float64

	// ShadowEvery publishes the reported state and the loads snapshot every
	// ShadowEvery ticks.
	ShadowEvery int
}

func (c Config) validate() error {
	var errs []error
	if c.Interval <= 0 {
		errs = append(errs, errors.New("telemetry interval must be positive"))
	}
	if c.JitterKW < 0 {
		errs = append(errs, errors.New("base jitter must not be negative"))
	}
	if c.MinKW < 0 || c.MaxKW < c.MinKW {
		errs = append(errs, errors.New("base load range must satisfy 0 <= min <= max"))
	}
	if c.ShadowEvery <= 0 {
		errs = append(errs, errors.New("shadow cadence must be positive"))
	}
	return utilerrors.NewAggregate(errs)
}

// Loop is the simulation loop. It is driven by Run, or one step at a time
// with Step.
type Loop struct {
	cfg   Config
	store *device.Store
	pub   Publisher

	rng *rand.Rand
	now func() time.Time
	log log.Logger

	ticks uint64
}

// Option configures a Loop.
type Option func(*Loop)

// WithRand replaces the random source of the base load walk.
func WithRand(r *rand.Rand) Option {
	return func(l *Loop) { l.rng = r }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Loop) { l.now = now }
}

// New returns a Loop over store.
func New(cfg Config, store *device.Store, pub Publisher, opts ...Option) (*Loop, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	l := &Loop{
		cfg:   cfg,
		store: store,
		pub:   pub,
		rng:   rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		now:   time.Now,
		log:   log.WithName("telemetry"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Run steps the loop on every tick until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	l.log.Info("Starting telemetry loop", "interval", l.cfg.Interval, "shadowEvery", l.cfg.ShadowEvery)

	ticker := time.NewTicker(l.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.log.Info("Telemetry loop stopped")
			return nil
		case <-ticker.C:
			l.Step(ctx)
		}
	}
}

// Step advances the simulation by one tick and publishes the results.
func (l *Loop) Step(ctx context.Context) {
	now := l.now()

	var (
		snap  device.Snapshot
		ended *curtail.Summary
	)
	_ = l.store.Update(func(st *device.State) error {
		elapsed := l.cfg.Interval
		if !st.LastTelemetry.IsZero() {
			elapsed = now.Sub(st.LastTelemetry)
		}
		// Energy is credited for the interval that just passed, at the shed
		// held during it.
		curtail.Accrue(st, elapsed)

		target := l.walk(st.TargetBaseKW, st.EnabledCapacityKW())
		ended = curtail.Tick(st, now)
		st.Distribute(target)
		if sum := curtail.Reapply(st, now); sum != nil {
			ended = sum
		}

		st.RecordBase(st.BasePowerKW)
		st.MessageNum++
		st.LastTelemetry = now
		snap = st.Snapshot()
		return nil
	})
	l.ticks++

	metrics.ObservePower(snap.PowerKW, snap.BasePowerKW, snap.ShedKW, snap.ActiveEvent != nil)

	if err := l.pub.SendTelemetry(ctx, NewMessage(snap, now)); err != nil {
		l.log.Warn("Failed to publish telemetry", "messageNum", snap.MessageNum, "error", err)
	}

	if ended != nil {
		l.log.Info("DR event ended", "eventID", ended.EventID, "reason", ended.Reason, "deliveredKWh", ended.DeliveredKWh)
		if err := l.pub.SendEventReport(ctx, command.NewEventReport(snap.VenID, ended)); err != nil {
			l.log.Warn("Failed to publish event report", "eventID", ended.EventID, "error", err)
		}
	}

	if ended != nil || l.ticks%uint64(l.cfg.ShadowEvery) == 0 {
		if err := l.pub.SendReported(ctx, snap); err != nil {
			l.log.Warn("Failed to publish reported state", "error", err)
		}
	}
	if l.ticks%uint64(l.cfg.ShadowEvery) == 0 {
		if err := l.pub.SendLoads(ctx, NewLoads(snap, now)); err != nil {
			l.log.Warn("Failed to publish loads", "error", err)
		}
	}
}

// walk moves target by at most JitterKW and clamps it to the configured
// range, itself capped at the enabled capacity.
func (l *Loop) walk(target, capacity float64) float64 {
	next := target + (l.rng.Float64()*2-1)*l.cfg.JitterKW

	hi := math.Min(l.cfg.MaxKW, capacity)
	lo := math.Min(l.cfg.MinKW, hi)
	return math.Max(lo, math.Min(hi, next))
}
