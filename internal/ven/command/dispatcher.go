package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/autopeer-io/vensim/internal/pkg/metrics"
	"github.com/autopeer-io/vensim/internal/ven/curtail"
	"github.com/autopeer-io/vensim/internal/ven/device"
	"github.com/autopeer-io/vensim/internal/ven/shadow"
	"github.com/autopeer-io/vensim/pkg/log"
)

// Sender publishes the messages produced while handling commands.
type Sender interface {
	SendAck(ctx context.Context, ack Ack) error
	SendReported(ctx context.Context, snap device.Snapshot) error
	SendEventReport(ctx context.Context, report EventReport) error
}

// Dispatcher applies commands and shadow deltas to the device. Every origin,
// the broker or the local control surface, goes through the same methods.
type Dispatcher struct {
	venID  string
	store  *device.Store
	sender Sender
	now    func() time.Time
	log    log.Logger

	config *RuntimeConfig
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		d.now = now
	}
}

// WithRuntimeConfig sets the configuration answered to config queries.
func WithRuntimeConfig(cfg RuntimeConfig) Option {
	return func(d *Dispatcher) {
		d.config = &cfg
	}
}

// NewDispatcher returns a Dispatcher mutating store and publishing through sender.
func NewDispatcher(venID string, store *device.Store, sender Sender, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		venID:  venID,
		store:  store,
		sender: sender,
		now:    time.Now,
		log:    log.WithName("dispatcher"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// HandleCommand decodes and executes one command payload and publishes its
// acknowledgment. It has the signature of an mqtt.MessageHandler.
func (d *Dispatcher) HandleCommand(ctx context.Context, topic string, payload []byte) {
	var ack Ack

	cmd, err := Decode(payload)
	if err != nil {
		var de *DecodeError
		corrID, op := "", ""
		if errors.As(err, &de) {
			corrID, op = de.CorrID, de.Op
		}
		d.log.Warn("Rejected command", "topic", topic, "corrID", corrID, "error", err)
		ack = d.errorAck(corrID, op, err)
		metrics.CommandsTotal.WithLabelValues("invalid", StatusError).Inc()
	} else {
		ack = d.Execute(ctx, cmd)
	}

	if err := d.sender.SendAck(ctx, ack); err != nil {
		d.log.Error(err, "Failed to publish acknowledgment", "corrID", ack.CorrID, "op", ack.Op)
	}
}

// Execute runs cmd against the device and returns its acknowledgment.
// Publishing of the acknowledgment is left to the caller.
func (d *Dispatcher) Execute(ctx context.Context, cmd Command) Ack {
	var ack Ack
	switch c := cmd.(type) {
	case Ping:
		ack = d.okAck(c.CorrID, OpPing)
	case Event:
		ack = d.startEvent(ctx, c)
	case Restore:
		ack = d.restore(ctx, c)
	case Status:
		ack = d.status(c)
	case SetLoad:
		ack = d.setLoad(ctx, c)
	default:
		ack = d.errorAck(cmd.CorrelationID(), string(cmd.Op()), ErrUnknownOp)
	}

	metrics.CommandsTotal.WithLabelValues(string(cmd.Op()), ack.Status).Inc()
	return ack
}

func (d *Dispatcher) status(c Status) Ack {
	snap := d.store.Snapshot()
	switch c.What {
	case "", string(OpStatus):
		ack := d.okAck(c.CorrID, OpStatus)
		ack.State = shadow.NewReported(snap, d.now())
		return ack
	case StatusConfig:
		if d.config == nil {
			return d.errorAck(c.CorrID, string(OpStatus), errors.New("runtime configuration not available"))
		}
		cfg := *d.config
		cfg.TargetBaseKW = device.Round3(snap.TargetBaseKW)
		ack := d.okAck(c.CorrID, OpStatus)
		ack.Config = &cfg
		return ack
	default:
		return d.errorAck(c.CorrID, string(OpStatus), fmt.Errorf("unknown status target %q", c.What))
	}
}

func (d *Dispatcher) setLoad(ctx context.Context, c SetLoad) Ack {
	if c.LoadID == "" || c.Enabled == nil {
		return d.errorAck(c.CorrID, string(OpSetLoad), errors.New("data.loadId and data.enabled are required"))
	}
	if err := d.SetCircuit(ctx, c.LoadID, *c.Enabled); err != nil {
		return d.errorAck(c.CorrID, string(OpSetLoad), err)
	}
	ack := d.okAck(c.CorrID, OpSetLoad)
	ack.State = shadow.NewReported(d.store.Snapshot(), d.now())
	return ack
}

func (d *Dispatcher) startEvent(ctx context.Context, c Event) Ack {
	now := d.now()
	req := curtail.Request{EventID: c.EventID, ShedKW: c.ShedKW, Duration: c.Duration}
	if req.EventID == "" {
		req.EventID = fmt.Sprintf("evt-%d", now.Unix())
	}

	var (
		out  curtail.Outcome
		snap device.Snapshot
	)
	err := d.store.Update(func(st *device.State) error {
		var err error
		if out, err = curtail.ApplyEvent(st, req, now); err != nil {
			return err
		}
		snap = st.Snapshot()
		return nil
	})
	if err != nil {
		d.log.Warn("Rejected event", "corrID", c.CorrID, "eventID", req.EventID, "error", err)
		ack := d.errorAck(c.CorrID, string(OpEvent), err)
		ack.EventID = req.EventID
		return ack
	}

	d.log.Info("Applied DR event",
		"eventID", req.EventID,
		"requestedKW", req.ShedKW,
		"actualKW", out.ActualShedKW,
		"partial", out.Partial(),
		"end", out.End,
	)

	ack := d.okAck(c.CorrID, OpEvent)
	ack.EventID = req.EventID
	ack.RequestedShedKW = kw(out.RequestedShedKW)
	ack.ActualShedKW = kw(out.ActualShedKW)
	ack.Partial = out.Partial()
	ack.Circuits = curtailments(out.Allocations)
	if out.Active {
		ack.EndTS = out.End.Unix()
	}

	if out.Replaced != nil {
		report := NewEventReport(d.venID, out.Replaced)
		ack.Replaced = &report
		d.publishReport(ctx, report)
	}
	d.publishReported(ctx, snap)
	return ack
}

func (d *Dispatcher) restore(ctx context.Context, c Restore) Ack {
	var (
		sum  *curtail.Summary
		snap device.Snapshot
	)
	_ = d.store.Update(func(st *device.State) error {
		sum = curtail.Restore(st, d.now())
		snap = st.Snapshot()
		return nil
	})

	ack := d.okAck(c.CorrID, OpRestore)
	if sum == nil {
		d.log.Debug("Restore requested with no active event", "corrID", c.CorrID)
		return ack
	}

	d.log.Info("Restored DR event", "eventID", sum.EventID, "deliveredKWh", sum.DeliveredKWh)
	ack.EventID = sum.EventID
	d.publishReport(ctx, NewEventReport(d.venID, sum))
	d.publishReported(ctx, snap)
	return ack
}

// DeltaResult lists what a desired-state delta changed.
type DeltaResult struct {
	Applied []string
	Unknown []string
}

// HandleDelta applies a remote desired-state document. It has the signature
// of an mqtt.MessageHandler.
func (d *Dispatcher) HandleDelta(ctx context.Context, topic string, payload []byte) {
	desires, err := shadow.ParseDesired(payload)
	if err != nil {
		if errors.Is(err, shadow.ErrNoCircuits) {
			d.log.Debug("Shadow document without circuit changes", "topic", topic)
			return
		}
		d.log.Warn("Ignoring malformed shadow document", "topic", topic, "error", err)
		return
	}
	d.ApplyDesired(ctx, desires)
}

// ApplyDesired switches the listed circuits. Unknown ids are skipped with a
// warning. The reported state is published when anything changed.
func (d *Dispatcher) ApplyDesired(ctx context.Context, desires []shadow.CircuitDesire) DeltaResult {
	var (
		res  DeltaResult
		sum  *curtail.Summary
		snap device.Snapshot
	)

	_ = d.store.Update(func(st *device.State) error {
		for _, want := range desires {
			if want.Enabled == nil {
				continue
			}
			changed, err := st.SetEnabled(want.ID, *want.Enabled)
			if err != nil {
				res.Unknown = append(res.Unknown, want.ID)
				continue
			}
			if changed {
				res.Applied = append(res.Applied, want.ID)
			}
		}
		if len(res.Applied) > 0 {
			st.Redistribute()
			sum = curtail.Reapply(st, d.now())
		}
		snap = st.Snapshot()
		return nil
	})

	for _, id := range res.Unknown {
		d.log.Warn("Ignoring desired state for unknown circuit", "circuitID", id)
	}
	if len(res.Applied) == 0 {
		return res
	}

	d.log.Info("Applied desired circuit state", "circuits", res.Applied)
	if sum != nil {
		d.publishReport(ctx, NewEventReport(d.venID, sum))
	}
	d.publishReported(ctx, snap)
	return res
}

// SetCircuit switches one circuit, as a local operator would.
func (d *Dispatcher) SetCircuit(ctx context.Context, id string, enabled bool) error {
	res := d.ApplyDesired(ctx, []shadow.CircuitDesire{{ID: id, Enabled: &enabled}})
	if len(res.Unknown) > 0 {
		return fmt.Errorf("%w: %s", device.ErrUnknownCircuit, id)
	}
	return nil
}

func (d *Dispatcher) publishReported(ctx context.Context, snap device.Snapshot) {
	if err := d.sender.SendReported(ctx, snap); err != nil {
		d.log.Error(err, "Failed to publish reported state")
	}
}

func (d *Dispatcher) publishReport(ctx context.Context, report EventReport) {
	if err := d.sender.SendEventReport(ctx, report); err != nil {
		d.log.Error(err, "Failed to publish event report", "eventID", report.EventID)
	}
}

func (d *Dispatcher) okAck(corrID string, op Op) Ack {
	return Ack{
		VenID:  d.venID,
		CorrID: corrID,
		Op:     string(op),
		Status: StatusOK,
		TS:     d.now().Unix(),
	}
}

func (d *Dispatcher) errorAck(corrID, op string, err error) Ack {
	return Ack{
		VenID:  d.venID,
		CorrID: corrID,
		Op:     op,
		Status: StatusError,
		Error:  err.Error(),
		TS:     d.now().Unix(),
	}
}
