// Package shadow defines the device-shadow documents exchanged with the remote
// state mirror.
package shadow

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/autopeer-io/vensim/internal/ven/device"
)

// ErrNoCircuits is returned for a delta document without a circuit list.
var ErrNoCircuits = errors.New("shadow document carries no circuits")

// Document is the envelope of every shadow update.
type Document struct {
	State State `json:"state"`
}

type State struct {
	Reported *Reported `json:"reported,omitempty"`
	Desired  *Desired  `json:"desired,omitempty"`
}

// Reported is the device's view of itself.
type Reported struct {
	PowerKW     float64           `json:"power_kw"`
	ShedKW      float64           `json:"shed_kw"`
	BasePowerKW float64           `json:"base_power_kw"`
	Circuits    []ReportedCircuit `json:"circuits"`
	ActiveEvent *ReportedEvent    `json:"active_event"`
	Timestamp   int64             `json:"timestamp"`
}

type ReportedCircuit struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Enabled   bool    `json:"enabled"`
	CurrentKW float64 `json:"current_kw"`
	Critical  bool    `json:"critical"`
}

type ReportedEvent struct {
	EventID         string  `json:"event_id"`
	ShedKW          float64 `json:"shed_kw"`
	RequestedShedKW float64 `json:"requested_shed_kw"`
	EndTS           int64   `json:"end_ts"`
}

// Desired is the operator's requested configuration.
type Desired struct {
	Circuits []CircuitDesire `json:"circuits,omitempty"`
}

// CircuitDesire requests a circuit be switched on or off. A nil Enabled
// leaves the circuit untouched.
type CircuitDesire struct {
	ID      string `json:"id"`
	Enabled *bool  `json:"enabled,omitempty"`
}

// NewReported builds the reported section from a snapshot.
func NewReported(snap device.Snapshot, now time.Time) *Reported {
	r := &Reported{
		PowerKW:     device.Round3(snap.PowerKW),
		ShedKW:      device.Round3(snap.ShedKW),
		BasePowerKW: device.Round3(snap.BasePowerKW),
		Circuits:    make([]ReportedCircuit, 0, len(snap.Circuits)),
		Timestamp:   now.Unix(),
	}
	for i := range snap.Circuits {
		c := &snap.Circuits[i]
		r.Circuits = append(r.Circuits, ReportedCircuit{
			ID:        c.ID,
			Name:      c.Name,
			Enabled:   c.Active(),
			CurrentKW: device.Round3(c.CurrentKW),
			Critical:  c.Critical,
		})
	}
	if ev := snap.ActiveEvent; ev != nil {
		r.ActiveEvent = &ReportedEvent{
			EventID:         ev.ID,
			ShedKW:          device.Round3(ev.ActualShedKW),
			RequestedShedKW: device.Round3(ev.RequestedShedKW),
			EndTS:           ev.End.Unix(),
		}
	}
	return r
}

// ReportedDocument wraps NewReported in an update envelope.
func ReportedDocument(snap device.Snapshot, now time.Time) Document {
	return Document{State: State{Reported: NewReported(snap, now)}}
}

// ParseDesired extracts circuit desires from any of the shapes the mirror
// sends: an update document with state.desired, an AWS delta where the
// difference sits directly under state, or a get/accepted document.
func ParseDesired(payload []byte) ([]CircuitDesire, error) {
	var raw struct {
		State struct {
			Desired  *Desired        `json:"desired"`
			Circuits []CircuitDesire `json:"circuits"`
		} `json:"state"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("decode shadow document: %w", err)
	}

	circuits := raw.State.Circuits
	if raw.State.Desired != nil && len(raw.State.Desired.Circuits) > 0 {
		circuits = raw.State.Desired.Circuits
	}
	if len(circuits) == 0 {
		return nil, ErrNoCircuits
	}
	return circuits, nil
}
