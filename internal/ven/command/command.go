// Package command decodes direct commands and remote-state deltas and applies
// them to the device.
package command

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Op names a command kind.
type Op string

const (
	OpPing    Op = "ping"
	OpEvent   Op = "event"
	OpRestore Op = "restore"
	OpStatus  Op = "status"
	OpSetLoad Op = "setLoad"
)

// StatusConfig is the Status target returning the runtime configuration
// instead of the reported state.
const StatusConfig = "config"

// DefaultEventDuration applies when an event command carries no duration.
const DefaultEventDuration = time.Hour

var (
	// ErrMalformed rejects payloads that are not a JSON command object.
	ErrMalformed = errors.New("malformed command")

	// ErrUnknownOp rejects operations outside the supported set.
	ErrUnknownOp = errors.New("unknown operation")
)

// opAliases maps accepted wire names to command kinds.
var opAliases = map[string]Op{
	"ping":      OpPing,
	"event":     OpEvent,
	"shed":      OpEvent,
	"shedpanel": OpEvent,
	"restore":   OpRestore,
	"status":    OpStatus,
	"get":       OpStatus,
	"setload":   OpSetLoad,
}

// Command is one of Ping, Event, Restore, Status or SetLoad.
type Command interface {
	Op() Op
	CorrelationID() string
}

type Ping struct {
	CorrID string
}

// Event starts a DR event.
type Event struct {
	CorrID   string
	EventID  string
	ShedKW   float64
	Duration time.Duration
}

type Restore struct {
	CorrID string
}

// Status asks for the reported state without changing it. What selects
// StatusConfig instead.
type Status struct {
	CorrID string
	What   string
}

// SetLoad switches one circuit from the command channel.
type SetLoad struct {
	CorrID  string
	LoadID  string
	Enabled *bool
}

func (Ping) Op() Op    { return OpPing }
func (Event) Op() Op   { return OpEvent }
func (Restore) Op() Op { return OpRestore }
func (Status) Op() Op  { return OpStatus }
func (SetLoad) Op() Op { return OpSetLoad }

func (c Ping) CorrelationID() string    { return c.CorrID }
func (c Event) CorrelationID() string   { return c.CorrID }
func (c Restore) CorrelationID() string { return c.CorrID }
func (c Status) CorrelationID() string  { return c.CorrID }
func (c SetLoad) CorrelationID() string { return c.CorrID }

// DecodeError carries whatever could be recovered from a rejected payload so
// the acknowledgment can still be correlated.
type DecodeError struct {
	CorrID string
	Op     string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

type envelope struct {
	Op            string     `json:"op"`
	CorrID        string     `json:"corr_id"`
	CorrelationID string     `json:"correlationId"`
	EventID       string     `json:"event_id"`
	ShedKW        *float64   `json:"shed_kw"`
	DurationSec   *float64   `json:"duration_sec"`
	What          string     `json:"what"`
	Data          *eventData `json:"data"`
}

// eventData is the nested form used by some operator tools.
type eventData struct {
	EventID              string   `json:"event_id"`
	ShedKW               *float64 `json:"shed_kw"`
	RequestedReductionKW *float64 `json:"requestedReductionKw"`
	DurationSec          *float64 `json:"duration_sec"`
	DurationS            *float64 `json:"duration_s"`
	DurationSCamel       *float64 `json:"durationS"`

	LoadID  string `json:"loadId"`
	Enabled *bool  `json:"enabled"`
}

// Decode parses a command payload. Field values are not range checked here;
// the curtailment engine rejects non-positive shed and duration.
func Decode(payload []byte) (Command, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		// Recover the correlation id from a payload that is at least an object.
		var partial map[string]any
		_ = json.Unmarshal(payload, &partial)
		return nil, &DecodeError{
			CorrID: correlation(stringField(partial, "corr_id"), stringField(partial, "correlationId")),
			Op:     stringField(partial, "op"),
			Err:    fmt.Errorf("%w: %v", ErrMalformed, err),
		}
	}

	corrID := correlation(env.CorrID, env.CorrelationID)

	name := strings.ToLower(strings.TrimSpace(env.Op))
	op, ok := opAliases[name]
	if !ok {
		return nil, &DecodeError{CorrID: corrID, Op: env.Op, Err: fmt.Errorf("%w %q", ErrUnknownOp, env.Op)}
	}

	switch op {
	case OpPing:
		return Ping{CorrID: corrID}, nil
	case OpRestore:
		return Restore{CorrID: corrID}, nil
	case OpStatus:
		return Status{CorrID: corrID, What: strings.ToLower(env.What)}, nil
	case OpSetLoad:
		cmd := SetLoad{CorrID: corrID}
		if env.Data != nil {
			cmd.LoadID, cmd.Enabled = env.Data.LoadID, env.Data.Enabled
		}
		return cmd, nil
	}

	ev := Event{CorrID: corrID, EventID: env.EventID, Duration: DefaultEventDuration}
	shed, duration := env.ShedKW, env.DurationSec
	if d := env.Data; d != nil {
		if ev.EventID == "" {
			ev.EventID = d.EventID
		}
		shed = firstSet(shed, d.ShedKW, d.RequestedReductionKW)
		duration = firstSet(duration, d.DurationSec, d.DurationS, d.DurationSCamel)
	}
	if shed != nil {
		ev.ShedKW = *shed
	}
	switch {
	case duration != nil:
		ev.Duration = DurationFromSeconds(*duration)
	case name == "shedpanel":
		// A panel shed names its own window; without one it is rejected.
		ev.Duration = 0
	}
	return ev, nil
}

// DurationFromSeconds converts a wire duration. Non-positive and NaN values
// yield zero, which the curtailment engine rejects.
func DurationFromSeconds(v float64) time.Duration {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v > math.MaxInt64/float64(time.Second) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(v * float64(time.Second))
}

func firstSet(vals ...*float64) *float64 {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

func correlation(ids ...string) string {
	for _, id := range ids {
		if id != "" {
			return id
		}
	}
	return ""
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}
