package command

import (
	"github.com/autopeer-io/vensim/internal/ven/curtail"
	"github.com/autopeer-io/vensim/internal/ven/device"
	"github.com/autopeer-io/vensim/internal/ven/shadow"
)

// Acknowledgment statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Ack answers exactly one command.
type Ack struct {
	VenID           string               `json:"ven_id"`
	CorrID          string               `json:"corr_id"`
	Op              string               `json:"op,omitempty"`
	Status          string               `json:"status"`
	Error           string               `json:"error,omitempty"`
	EventID         string               `json:"event_id,omitempty"`
	RequestedShedKW *float64             `json:"requested_shed_kw,omitempty"`
	ActualShedKW    *float64             `json:"actual_shed_kw,omitempty"`
	Partial         bool                 `json:"partial,omitempty"`
	EndTS           int64                `json:"end_ts,omitempty"`
	Circuits        []CircuitCurtailment `json:"circuits,omitempty"`
	State           *shadow.Reported     `json:"state,omitempty"`
	Config          *RuntimeConfig       `json:"config,omitempty"`
	Replaced        *EventReport         `json:"replaced,omitempty"`
	TS              int64                `json:"ts"`
}

// OK reports whether the command succeeded.
func (a Ack) OK() bool {
	return a.Status == StatusOK
}

// RuntimeConfig is the simulation configuration reported by a config query.
type RuntimeConfig struct {
	TelemetryIntervalSec float64 `json:"telemetry_interval_sec"`
	ShadowEvery          int     `json:"shadow_every"`
	BaseJitterKW         float64 `json:"base_jitter_kw"`
	BaseMinKW            float64 `json:"base_min_kw"`
	BaseMaxKW            float64 `json:"base_max_kw"`
	TargetBaseKW         float64 `json:"target_base_kw"`
}

// CircuitCurtailment is the per-circuit detail of an event acknowledgment.
type CircuitCurtailment struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	PriorityClass string  `json:"priority_class"`
	BeforeKW      float64 `json:"before_kw"`
	AfterKW       float64 `json:"after_kw"`
	ShedKW        float64 `json:"shed_kw"`
}

// EventReport summarizes a finished DR event.
type EventReport struct {
	VenID           string  `json:"ven_id"`
	EventID         string  `json:"event_id"`
	Reason          string  `json:"reason"`
	RequestedShedKW float64 `json:"requested_shed_kw"`
	ActualShedKW    float64 `json:"actual_shed_kw"`
	DeliveredKWh    float64 `json:"delivered_kwh"`
	StartTS         int64   `json:"start_ts"`
	ScheduledEndTS  int64   `json:"scheduled_end_ts"`
	EndTS           int64   `json:"end_ts"`
}

// NewEventReport converts an engine summary into its wire form.
func NewEventReport(venID string, sum *curtail.Summary) EventReport {
	return EventReport{
		VenID:           venID,
		EventID:         sum.EventID,
		Reason:          sum.Reason,
		RequestedShedKW: device.Round3(sum.RequestedShedKW),
		ActualShedKW:    device.Round3(sum.ActualShedKW),
		DeliveredKWh:    device.Round3(sum.DeliveredKWh),
		StartTS:         sum.Start.Unix(),
		ScheduledEndTS:  sum.ScheduledEnd.Unix(),
		EndTS:           sum.End.Unix(),
	}
}

func curtailments(allocs []curtail.Allocation) []CircuitCurtailment {
	out := make([]CircuitCurtailment, 0, len(allocs))
	for _, a := range allocs {
		out = append(out, CircuitCurtailment{
			ID:            a.CircuitID,
			Name:          a.Name,
			PriorityClass: a.Class.String(),
			BeforeKW:      device.Round3(a.BeforeKW),
			AfterKW:       device.Round3(a.AfterKW),
			ShedKW:        device.Round3(a.ShedKW),
		})
	}
	return out
}

func kw(v float64) *float64 {
	r := device.Round3(v)
	return &r
}
