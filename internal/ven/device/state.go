package device

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrUnknownCircuit is returned for circuit ids that are not in the roster.
var ErrUnknownCircuit = errors.New("unknown circuit")

const (
	// HistorySize is how many base load samples are retained.
	HistorySize = 360
	// BaselineWindow is how many recent samples make up the reported baseline.
	BaselineWindow = 60
)

// Event is the DR event currently being executed.
type Event struct {
	ID              string
	RequestedShedKW float64
	ActualShedKW    float64
	Start           time.Time
	End             time.Time
	DeliveredKWh    float64
}

// State is the simulated device. It is not safe for concurrent use; share it
// through a Store.
type State struct {
	VenID string

	// Circuits keeps roster order, which breaks ties within a priority class.
	Circuits []Circuit
	index    map[string]int

	// TargetBaseKW is the simulated base load before it is capped at the
	// enabled capacity.
	TargetBaseKW float64

	// BasePowerKW is the uncurtailed aggregate draw.
	BasePowerKW float64

	ActiveEvent *Event

	LastTelemetry time.Time
	MessageNum    uint64

	history []float64
}

// NewState validates the roster and spreads basePowerKW over the enabled circuits.
func NewState(venID string, circuits []Circuit, basePowerKW float64) (*State, error) {
	if venID == "" {
		return nil, errors.New("ven id is required")
	}
	if len(circuits) == 0 {
		return nil, errors.New("at least one circuit is required")
	}

	s := &State{
		VenID:    venID,
		Circuits: make([]Circuit, len(circuits)),
		index:    make(map[string]int, len(circuits)),
	}
	for i, c := range circuits {
		if err := c.Validate(); err != nil {
			return nil, err
		}
		if _, dup := s.index[c.ID]; dup {
			return nil, fmt.Errorf("duplicate circuit id %q", c.ID)
		}
		s.index[c.ID] = i
		s.Circuits[i] = c
	}

	s.Distribute(basePowerKW)
	return s, nil
}

// Circuit returns the circuit with id.
func (s *State) Circuit(id string) (*Circuit, bool) {
	i, ok := s.index[id]
	if !ok {
		return nil, false
	}
	return &s.Circuits[i], true
}

// CurrentPowerKW is the sum of all circuit draws.
func (s *State) CurrentPowerKW() float64 {
	var sum float64
	for i := range s.Circuits {
		sum += s.Circuits[i].CurrentKW
	}
	return sum
}

// ShedKW is the shed achieved by the active event, or zero.
func (s *State) ShedKW() float64 {
	if s.ActiveEvent == nil {
		return 0
	}
	return s.ActiveEvent.ActualShedKW
}

// EnabledCapacityKW is the rated capacity of the enabled circuits.
func (s *State) EnabledCapacityKW() float64 {
	var sum float64
	for i := range s.Circuits {
		if s.Circuits[i].Enabled {
			sum += s.Circuits[i].RatedKW
		}
	}
	return sum
}

// AnyCurtailed reports whether some circuit draws less than its baseline.
func (s *State) AnyCurtailed() bool {
	for i := range s.Circuits {
		if s.Circuits[i].Curtailed() {
			return true
		}
	}
	return false
}

// Distribute sets the target base load and splits it, capped at the enabled
// capacity, over the enabled circuits in proportion to their rated capacity.
// Every circuit's draw is reset to its new baseline; an active event has to be
// re-applied by the caller. It returns the effective base load.
func (s *State) Distribute(targetKW float64) float64 {
	if math.IsNaN(targetKW) || targetKW < 0 {
		targetKW = 0
	}
	s.TargetBaseKW = targetKW

	capacity := s.EnabledCapacityKW()
	base := math.Min(targetKW, capacity)

	for i := range s.Circuits {
		c := &s.Circuits[i]
		if !c.Enabled || capacity <= 0 {
			c.BaselineKW = 0
		} else {
			c.BaselineKW = math.Min(c.RatedKW, base*c.RatedKW/capacity)
		}
		c.CurrentKW = c.BaselineKW
	}

	s.BasePowerKW = base
	return base
}

// Redistribute spreads the current target base load again, for example after
// a circuit was switched.
func (s *State) Redistribute() float64 {
	return s.Distribute(s.TargetBaseKW)
}

// SetEnabled flips the operator switch of a circuit. It reports whether the
// value changed. Callers Redistribute afterwards.
func (s *State) SetEnabled(id string, enabled bool) (bool, error) {
	c, ok := s.Circuit(id)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownCircuit, id)
	}
	if c.Enabled == enabled {
		return false, nil
	}
	c.Enabled = enabled
	return true, nil
}

// RecordBase appends a base load sample to the bounded history.
func (s *State) RecordBase(kw float64) {
	s.history = append(s.history, kw)
	if len(s.history) > HistorySize {
		s.history = s.history[len(s.history)-HistorySize:]
	}
}

// BaselinePowerKW is the mean of the most recent base load samples, or the
// current base load when no sample has been recorded yet.
func (s *State) BaselinePowerKW() float64 {
	n := len(s.history)
	if n == 0 {
		return s.BasePowerKW
	}
	window := s.history[max(0, n-BaselineWindow):]
	var sum float64
	for _, v := range window {
		sum += v
	}
	return sum / float64(len(window))
}

// clone returns a deep copy sharing nothing with s.
func (s *State) clone() *State {
	c := *s
	c.Circuits = append([]Circuit(nil), s.Circuits...)
	c.index = make(map[string]int, len(s.index))
	for k, v := range s.index {
		c.index[k] = v
	}
	if s.ActiveEvent != nil {
		ev := *s.ActiveEvent
		c.ActiveEvent = &ev
	}
	c.history = append([]float64(nil), s.history...)
	return &c
}

// Snapshot copies the reportable parts of the state.
func (s *State) Snapshot() Snapshot {
	snap := Snapshot{
		VenID:           s.VenID,
		TargetBaseKW:    s.TargetBaseKW,
		BasePowerKW:     s.BasePowerKW,
		PowerKW:         s.CurrentPowerKW(),
		ShedKW:          s.ShedKW(),
		BaselinePowerKW: s.BaselinePowerKW(),
		Circuits:        append([]Circuit(nil), s.Circuits...),
		LastTelemetry:   s.LastTelemetry,
		MessageNum:      s.MessageNum,
	}
	if s.ActiveEvent != nil {
		ev := *s.ActiveEvent
		snap.ActiveEvent = &ev
	}
	return snap
}

// Snapshot is a point-in-time copy of a State, safe to use without the lock.
type Snapshot struct {
	VenID           string
	TargetBaseKW    float64
	BasePowerKW     float64
	PowerKW         float64
	ShedKW          float64
	BaselinePowerKW float64
	Circuits        []Circuit
	ActiveEvent     *Event
	LastTelemetry   time.Time
	MessageNum      uint64
}

// RequestedShedKW is the shed requested by the active event, or zero.
func (s Snapshot) RequestedShedKW() float64 {
	if s.ActiveEvent == nil {
		return 0
	}
	return s.ActiveEvent.RequestedShedKW
}

// EventID is the id of the active event, or empty.
func (s Snapshot) EventID() string {
	if s.ActiveEvent == nil {
		return ""
	}
	return s.ActiveEvent.ID
}
