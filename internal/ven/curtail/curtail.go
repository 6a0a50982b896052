// Package curtail implements priority-ordered load shedding over a device.State.
//
// Every function expects the caller to hold the device.Store lock and
// performs no I/O.
package curtail

import (
	"errors"
	"math"
	"sort"
	"time"

	"github.com/autopeer-io/vensim/internal/ven/device"
)

var (
	// ErrInvalidShed rejects a requested shed that is not a positive number.
	ErrInvalidShed = errors.New("shed_kw must be greater than zero")

	// ErrInvalidDuration rejects a non-positive event duration.
	ErrInvalidDuration = errors.New("duration_sec must be greater than zero")
)

// Reasons an event ends.
const (
	ReasonRestored = "restored"
	ReasonExpired  = "expired"
	ReasonReplaced = "replaced"
	// ReasonExhausted ends an event once no circuit has anything left to shed.
	ReasonExhausted = "exhausted"
)

// Request asks the device to shed ShedKW for Duration.
type Request struct {
	EventID  string
	ShedKW   float64
	Duration time.Duration
}

// Allocation is the curtailment applied to one circuit.
type Allocation struct {
	CircuitID string
	Name      string
	Class     device.PriorityClass
	BeforeKW  float64
	AfterKW   float64
	ShedKW    float64
}

// Outcome describes the result of ApplyEvent.
type Outcome struct {
	EventID         string
	RequestedShedKW float64
	ActualShedKW    float64
	End             time.Time
	Allocations     []Allocation

	// Active is false when nothing could be shed and no event was recorded.
	Active bool

	// Replaced summarizes the event that was active before this one, if any.
	Replaced *Summary
}

// Partial reports whether less than the requested amount could be shed.
func (o Outcome) Partial() bool {
	return o.ActualShedKW < o.RequestedShedKW-device.Epsilon
}

// Summary reports a finished event.
type Summary struct {
	EventID         string
	RequestedShedKW float64
	ActualShedKW    float64
	Start           time.Time
	ScheduledEnd    time.Time
	End             time.Time
	DeliveredKWh    float64
	Reason          string
}

// ApplyEvent curtails circuits in priority order until req.ShedKW is met or
// every class cap is exhausted. An event already in progress is ended first.
// Shedding less than requested is not an error; see Outcome.Partial.
func ApplyEvent(st *device.State, req Request, now time.Time) (Outcome, error) {
	if !(req.ShedKW > 0) || math.IsInf(req.ShedKW, 0) {
		return Outcome{}, ErrInvalidShed
	}
	if req.Duration <= 0 {
		return Outcome{}, ErrInvalidDuration
	}

	var replaced *Summary
	if st.ActiveEvent != nil {
		replaced = end(st, now, ReasonReplaced)
	}

	actual, allocations := allocate(st, req.ShedKW)

	out := Outcome{
		EventID:         req.EventID,
		RequestedShedKW: req.ShedKW,
		ActualShedKW:    actual,
		End:             now.Add(req.Duration),
		Allocations:     allocations,
		Replaced:        replaced,
	}

	if actual > device.Epsilon {
		st.ActiveEvent = &device.Event{
			ID:              req.EventID,
			RequestedShedKW: req.ShedKW,
			ActualShedKW:    actual,
			Start:           now,
			End:             out.End,
		}
		out.Active = true
	} else {
		resetToBaseline(st)
	}

	return out, nil
}

// Restore returns every circuit to its baseline and clears the active event.
// It returns the summary of the ended event, or nil when none was active.
// Calling it again is a no-op.
func Restore(st *device.State, now time.Time) *Summary {
	return end(st, now, ReasonRestored)
}

// Tick ends the active event once now has reached its end time.
func Tick(st *device.State, now time.Time) *Summary {
	if st.ActiveEvent == nil || now.Before(st.ActiveEvent.End) {
		return nil
	}
	return end(st, now, ReasonExpired)
}

// Reapply recomputes the allocation of the active event against the current
// baselines, typically after the base load moved. If nothing can be shed any
// more the event is ended.
func Reapply(st *device.State, now time.Time) *Summary {
	ev := st.ActiveEvent
	if ev == nil {
		return nil
	}

	actual, _ := allocate(st, ev.RequestedShedKW)
	ev.ActualShedKW = actual
	if actual <= device.Epsilon {
		return end(st, now, ReasonExhausted)
	}
	return nil
}

// Accrue adds the energy delivered by the active event over d.
func Accrue(st *device.State, d time.Duration) {
	if st.ActiveEvent == nil || d <= 0 {
		return
	}
	st.ActiveEvent.DeliveredKWh += st.ActiveEvent.ActualShedKW * d.Hours()
}

// Order returns circuit indexes in curtailment order: priority class first,
// roster position within a class.
func Order(circuits []device.Circuit) []int {
	order := make([]int, len(circuits))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return circuits[order[a]].Class < circuits[order[b]].Class
	})
	return order
}

func allocate(st *device.State, target float64) (float64, []Allocation) {
	resetToBaseline(st)

	var (
		actual      float64
		remaining   = target
		allocations []Allocation
	)

	for _, i := range Order(st.Circuits) {
		if remaining <= device.Epsilon {
			break
		}

		c := &st.Circuits[i]
		if !c.Enabled || c.CurrentKW <= 0 {
			continue
		}

		shed := math.Min(remaining, c.CurrentKW*c.Class.ShedFraction())
		if shed <= 0 {
			continue
		}

		before := c.CurrentKW
		c.CurrentKW = math.Max(0, before-shed)
		actual += shed
		remaining -= shed

		allocations = append(allocations, Allocation{
			CircuitID: c.ID,
			Name:      c.Name,
			Class:     c.Class,
			BeforeKW:  before,
			AfterKW:   c.CurrentKW,
			ShedKW:    shed,
		})
	}

	return actual, allocations
}

func end(st *device.State, now time.Time, reason string) *Summary {
	resetToBaseline(st)

	ev := st.ActiveEvent
	if ev == nil {
		return nil
	}
	st.ActiveEvent = nil

	return &Summary{
		EventID:         ev.ID,
		RequestedShedKW: ev.RequestedShedKW,
		ActualShedKW:    ev.ActualShedKW,
		Start:           ev.Start,
		ScheduledEnd:    ev.End,
		End:             now,
		DeliveredKWh:    ev.DeliveredKWh,
		Reason:          reason,
	}
}

func resetToBaseline(st *device.State) {
	for i := range st.Circuits {
		st.Circuits[i].CurrentKW = st.Circuits[i].BaselineKW
	}
}
