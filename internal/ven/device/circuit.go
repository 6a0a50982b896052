package device

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Epsilon absorbs floating point noise when comparing power figures.
const Epsilon = 1e-9

// CriticalFloor is the fraction of its baseline a critical circuit keeps during an event.
const CriticalFloor = 0.8

// PriorityClass orders circuits for curtailment. Lower classes shed first.
type PriorityClass int

const (
	// ClassSheddable loads can be switched off entirely (water heating, EV charging).
	ClassSheddable PriorityClass = iota
	// ClassFlexible loads can be dimmed (lighting).
	ClassFlexible
	// ClassGeneral covers miscellaneous household draw.
	ClassGeneral
	// ClassCritical loads keep CriticalFloor of their draw (climate, refrigeration).
	ClassCritical
)

var classNames = [...]string{"sheddable", "flexible", "general", "critical"}

func (p PriorityClass) String() string {
	if p < ClassSheddable || p > ClassCritical {
		return fmt.Sprintf("PriorityClass(%d)", int(p))
	}
	return classNames[p]
}

// ShedFraction is the largest share of a circuit's current draw that may be shed.
func (p PriorityClass) ShedFraction() float64 {
	switch p {
	case ClassSheddable:
		return 1.0
	case ClassFlexible:
		return 0.7
	case ClassGeneral:
		return 0.6
	case ClassCritical:
		return 1 - CriticalFloor
	default:
		return 0
	}
}

func (p PriorityClass) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *PriorityClass) UnmarshalText(text []byte) error {
	parsed, err := ParsePriorityClass(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParsePriorityClass parses a class name, case-insensitively.
func ParsePriorityClass(s string) (PriorityClass, error) {
	for i, name := range classNames {
		if strings.EqualFold(s, name) {
			return PriorityClass(i), nil
		}
	}
	return 0, fmt.Errorf("unknown priority class %q", s)
}

// Circuit is one controllable load of the device.
type Circuit struct {
	ID   string
	Name string
	// Type is a display classification such as heating or lighting. It plays
	// no part in curtailment order; Class does.
	Type    string
	RatedKW float64

	CurrentKW float64

	// BaselineKW is the event-free draw for the current base load.
	BaselineKW float64

	Critical bool

	// Enabled is the operator or remote-mirror switch.
	Enabled bool

	Class PriorityClass
}

// Validate checks the static description of the circuit.
func (c *Circuit) Validate() error {
	if c.ID == "" {
		return errors.New("circuit id is required")
	}
	if math.IsNaN(c.RatedKW) || c.RatedKW < 0 {
		return fmt.Errorf("circuit %s: rated capacity must be >= 0", c.ID)
	}
	if c.Class < ClassSheddable || c.Class > ClassCritical {
		return fmt.Errorf("circuit %s: invalid priority class %d", c.ID, c.Class)
	}
	if c.Critical && c.Class != ClassCritical {
		return fmt.Errorf("circuit %s: critical circuits must use the critical priority class", c.ID)
	}
	return nil
}

// Curtailed reports whether the circuit draws less than its baseline.
func (c *Circuit) Curtailed() bool {
	return c.CurrentKW < c.BaselineKW-Epsilon
}

// Active is the reported on/off state: switched on and not curtailed to zero.
func (c *Circuit) Active() bool {
	if !c.Enabled {
		return false
	}
	return !(c.Curtailed() && c.CurrentKW <= Epsilon)
}

// ShedCapabilityKW is how much more the circuit could shed under its class cap.
func (c *Circuit) ShedCapabilityKW() float64 {
	if !c.Enabled {
		return 0
	}
	already := c.BaselineKW - c.CurrentKW
	return math.Max(0, c.BaselineKW*c.Class.ShedFraction()-already)
}
