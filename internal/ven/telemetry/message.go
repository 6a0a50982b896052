package telemetry

import (
	"time"

	"github.com/autopeer-io/vensim/internal/ven/device"
)

// Message is the periodic metering document.
type Message struct {
	VenID                string        `json:"venId"`
	TS                   int64         `json:"ts"`
	Timestamp            int64         `json:"timestamp"`
	PowerKW              float64       `json:"power_kw"`
	ShedKW               float64       `json:"shed_kw"`
	BasePowerKW          float64       `json:"base_power_kw"`
	BaselinePowerKW      float64       `json:"baseline_power_kw"`
	RequestedReductionKW float64       `json:"requested_reduction_kw"`
	EventID              *string       `json:"event_id"`
	MessageNum           uint64        `json:"message_num"`
	Circuits             []CircuitDraw `json:"circuits"`
	ActiveEvent          bool          `json:"active_event"`
}

// CircuitDraw is the draw of one circuit at sampling time.
type CircuitDraw struct {
	ID        string  `json:"id"`
	CurrentKW float64 `json:"current_kw"`
}

// NewMessage builds the metering document for snap.
func NewMessage(snap device.Snapshot, now time.Time) Message {
	m := Message{
		VenID:                snap.VenID,
		TS:                   now.Unix(),
		Timestamp:            now.Unix(),
		PowerKW:              device.Round3(snap.PowerKW),
		ShedKW:               device.Round3(snap.ShedKW),
		BasePowerKW:          device.Round3(snap.BasePowerKW),
		BaselinePowerKW:      device.Round3(snap.BaselinePowerKW),
		RequestedReductionKW: device.Round3(snap.RequestedShedKW()),
		MessageNum:           snap.MessageNum,
		Circuits:             make([]CircuitDraw, 0, len(snap.Circuits)),
		ActiveEvent:          snap.ActiveEvent != nil,
	}
	if id := snap.EventID(); id != "" {
		m.EventID = &id
	}
	for i := range snap.Circuits {
		m.Circuits = append(m.Circuits, CircuitDraw{
			ID:        snap.Circuits[i].ID,
			CurrentKW: device.Round3(snap.Circuits[i].CurrentKW),
		})
	}
	return m
}

// Loads is the richer per-circuit snapshot published less often than metering.
type Loads struct {
	VenID     string `json:"venId"`
	Timestamp int64  `json:"timestamp"`
	Loads     []Load `json:"loads"`
}

type Load struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	Type             string  `json:"type,omitempty"`
	Enabled          bool    `json:"enabled"`
	Critical         bool    `json:"critical"`
	PriorityClass    string  `json:"priority_class"`
	RatedKW          float64 `json:"rated_kw"`
	BaselineKW       float64 `json:"baseline_kw"`
	CurrentKW        float64 `json:"current_kw"`
	ShedCapabilityKW float64 `json:"shed_capability_kw"`
}

// NewLoads builds the loads snapshot for snap.
func NewLoads(snap device.Snapshot, now time.Time) Loads {
	l := Loads{
		VenID:     snap.VenID,
		Timestamp: now.Unix(),
		Loads:     make([]Load, 0, len(snap.Circuits)),
	}
	for i := range snap.Circuits {
		c := &snap.Circuits[i]
		l.Loads = append(l.Loads, Load{
			ID:               c.ID,
			Name:             c.Name,
			Type:             c.Type,
			Enabled:          c.Active(),
			Critical:         c.Critical,
			PriorityClass:    c.Class.String(),
			RatedKW:          device.Round3(c.RatedKW),
			BaselineKW:       device.Round3(c.BaselineKW),
			CurrentKW:        device.Round3(c.CurrentKW),
			ShedCapabilityKW: device.Round3(c.ShedCapabilityKW()),
		})
	}
	return l
}
