package http

import (
	"github.com/autopeer-io/vensim/internal/ven/device"
)

// StateView is the /api/state document.
type StateView struct {
	VenID           string        `json:"ven_id"`
	PowerKW         float64       `json:"power_kw"`
	BasePowerKW     float64       `json:"base_power_kw"`
	BaselinePowerKW float64       `json:"baseline_power_kw"`
	ShedKW          float64       `json:"shed_kw"`
	MessageNum      uint64        `json:"message_num"`
	LastTelemetry   int64         `json:"last_telemetry,omitempty"`
	Connected       bool          `json:"connected"`
	ActiveEvent     *EventView    `json:"active_event"`
	Circuits        []CircuitView `json:"circuits"`
}

type EventView struct {
	EventID         string  `json:"event_id"`
	RequestedShedKW float64 `json:"requested_shed_kw"`
	ActualShedKW    float64 `json:"actual_shed_kw"`
	StartTS         int64   `json:"start_ts"`
	EndTS           int64   `json:"end_ts"`
	DeliveredKWh    float64 `json:"delivered_kwh"`
}

// CircuitView shows both the operator switch (Enabled) and whether the
// circuit is drawing power (Active).
type CircuitView struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	Type             string  `json:"type,omitempty"`
	Enabled          bool    `json:"enabled"`
	Active           bool    `json:"active"`
	Critical         bool    `json:"critical"`
	PriorityClass    string  `json:"priority_class"`
	RatedKW          float64 `json:"rated_kw"`
	BaselineKW       float64 `json:"baseline_kw"`
	CurrentKW        float64 `json:"current_kw"`
	ShedCapabilityKW float64 `json:"shed_capability_kw"`
}

func newStateView(snap device.Snapshot, connected bool) StateView {
	v := StateView{
		VenID:           snap.VenID,
		PowerKW:         device.Round3(snap.PowerKW),
		BasePowerKW:     device.Round3(snap.BasePowerKW),
		BaselinePowerKW: device.Round3(snap.BaselinePowerKW),
		ShedKW:          device.Round3(snap.ShedKW),
		MessageNum:      snap.MessageNum,
		Connected:       connected,
		Circuits:        newCircuitViews(snap.Circuits),
	}
	if !snap.LastTelemetry.IsZero() {
		v.LastTelemetry = snap.LastTelemetry.Unix()
	}
	if ev := snap.ActiveEvent; ev != nil {
		v.ActiveEvent = &EventView{
			EventID:         ev.ID,
			RequestedShedKW: device.Round3(ev.RequestedShedKW),
			ActualShedKW:    device.Round3(ev.ActualShedKW),
			StartTS:         ev.Start.Unix(),
			EndTS:           ev.End.Unix(),
			DeliveredKWh:    device.Round3(ev.DeliveredKWh),
		}
	}
	return v
}

func newCircuitViews(circuits []device.Circuit) []CircuitView {
	out := make([]CircuitView, 0, len(circuits))
	for i := range circuits {
		out = append(out, newCircuitView(&circuits[i]))
	}
	return out
}

func newCircuitView(c *device.Circuit) CircuitView {
	return CircuitView{
		ID:               c.ID,
		Name:             c.Name,
		Type:             c.Type,
		Enabled:          c.Enabled,
		Active:           c.Active(),
		Critical:         c.Critical,
		PriorityClass:    c.Class.String(),
		RatedKW:          device.Round3(c.RatedKW),
		BaselineKW:       device.Round3(c.BaselineKW),
		CurrentKW:        device.Round3(c.CurrentKW),
		ShedCapabilityKW: device.Round3(c.ShedCapabilityKW()),
	}
}
