package ven

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/autopeer-io/vensim/internal/ven/command"
	"github.com/autopeer-io/vensim/internal/ven/device"
	"github.com/autopeer-io/vensim/internal/ven/telemetry"
	"github.com/autopeer-io/vensim/pkg/options"
)

var _ options.IOptions = (*VenOptions)(nil)

// VenOptions describes the simulated device.
type VenOptions struct {
	ID        string `json:"id" mapstructure:"id"`
	ThingName string `json:"thing-name" mapstructure:"thing-name"`

	TelemetryInterval time.Duration `json:"telemetry-interval" mapstructure:"telemetry-interval"`
	ShadowEvery       int           `json:"shadow-every" mapstructure:"shadow-every"`
	PublishTimeout    time.Duration `json:"publish-timeout" mapstructure:"publish-timeout"`

	// The base load walks randomly within [BaseMinKW, BaseMaxKW].
	BaseJitterKW float64 `json:"base-jitter-kw" mapstructure:"base-jitter-kw"`
	BaseMinKW    float64 `json:"base-min-kw" mapstructure:"base-min-kw"`
	BaseMaxKW    float64 `json:"base-max-kw" mapstructure:"base-max-kw"`

	// Circuits replaces the default roster. Config file only.
	Circuits []CircuitOptions `json:"circuits" mapstructure:"circuits"`
}

// CircuitOptions is one roster entry of the config file.
type CircuitOptions struct {
	ID       string  `json:"id" mapstructure:"id"`
	Name     string  `json:"name" mapstructure:"name"`
	Type     string  `json:"type" mapstructure:"type"`
	RatedKW  float64 `json:"rated-kw" mapstructure:"rated-kw"`
	Critical bool    `json:"critical" mapstructure:"critical"`

	// Enabled defaults to true.
	Enabled *bool `json:"enabled" mapstructure:"enabled"`

	// PriorityClass defaults to critical for critical circuits and general otherwise.
	PriorityClass string `json:"priority-class" mapstructure:"priority-class"`
}

func NewVenOptions() *VenOptions {
	return &VenOptions{
		ID:                "ven-local",
		TelemetryInterval: 5 * time.Second,
		ShadowEvery:       6,
		PublishTimeout:    5 * time.Second,
		BaseJitterKW:      0.5,
		BaseMinKW:         8,
		BaseMaxKW:         12,
	}
}

func (o *VenOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errs := []error{}
	if o.ID == "" {
		errs = append(errs, errors.New("--ven.id is required"))
	}
	if o.TelemetryInterval <= 0 {
		errs = append(errs, errors.New("--ven.telemetry-interval must be positive"))
	}
	if o.ShadowEvery <= 0 {
		errs = append(errs, errors.New("--ven.shadow-every must be positive"))
	}
	if o.PublishTimeout <= 0 {
		errs = append(errs, errors.New("--ven.publish-timeout must be positive"))
	}
	if o.BaseJitterKW < 0 {
		errs = append(errs, errors.New("--ven.base-jitter-kw must not be negative"))
	}
	if o.BaseMinKW < 0 || o.BaseMaxKW < o.BaseMinKW {
		errs = append(errs, fmt.Errorf("base load range [%g, %g] kW is invalid", o.BaseMinKW, o.BaseMaxKW))
	}
	if _, err := o.Roster(); err != nil {
		errs = append(errs, err)
	}
	return errs
}

func (o *VenOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.ID, "ven.id", o.ID, "Identifier of the VEN, used in every topic.")
	fs.StringVar(&o.ThingName, "ven.thing-name", o.ThingName, "Device shadow thing name. Defaults to the VEN id.")
	fs.DurationVar(&o.TelemetryInterval, "ven.telemetry-interval", o.TelemetryInterval, "Interval between telemetry messages.")
	fs.IntVar(&o.ShadowEvery, "ven.shadow-every", o.ShadowEvery, "Publish the reported shadow and loads every N telemetry ticks.")
	fs.DurationVar(&o.PublishTimeout, "ven.publish-timeout", o.PublishTimeout, "Upper bound for a single publish.")
	fs.Float64Var(&o.BaseJitterKW, "ven.base-jitter-kw", o.BaseJitterKW, "Largest base load change per tick in kW.")
	fs.Float64Var(&o.BaseMinKW, "ven.base-min-kw", o.BaseMinKW, "Lower bound of the simulated base load in kW.")
	fs.Float64Var(&o.BaseMaxKW, "ven.base-max-kw", o.BaseMaxKW, "Upper bound of the simulated base load in kW.")
}

// Thing returns the shadow thing name.
func (o *VenOptions) Thing() string {
	if o.ThingName != "" {
		return o.ThingName
	}
	return o.ID
}

// Roster returns the configured circuits, or the default roster.
func (o *VenOptions) Roster() ([]device.Circuit, error) {
	if len(o.Circuits) == 0 {
		return device.DefaultCircuits(), nil
	}

	circuits := make([]device.Circuit, 0, len(o.Circuits))
	for _, co := range o.Circuits {
		c := device.Circuit{
			ID:       co.ID,
			Name:     co.Name,
			Type:     co.Type,
			RatedKW:  co.RatedKW,
			Critical: co.Critical,
			Enabled:  co.Enabled == nil || *co.Enabled,
			Class:    device.ClassGeneral,
		}
		if c.Name == "" {
			c.Name = c.ID
		}
		switch {
		case co.PriorityClass != "":
			class, err := device.ParsePriorityClass(co.PriorityClass)
			if err != nil {
				return nil, fmt.Errorf("circuit %s: %w", co.ID, err)
			}
			c.Class = class
		case co.Critical:
			c.Class = device.ClassCritical
		}
		if err := c.Validate(); err != nil {
			return nil, err
		}
		circuits = append(circuits, c)
	}
	return circuits, nil
}

// InitialBaseKW is the midpoint of the base load range.
func (o *VenOptions) InitialBaseKW() float64 {
	return (o.BaseMinKW + o.BaseMaxKW) / 2
}

// RuntimeConfig is the configuration answered to a config query.
func (o *VenOptions) RuntimeConfig() command.RuntimeConfig {
	return command.RuntimeConfig{
		TelemetryIntervalSec: o.TelemetryInterval.Seconds(),
		ShadowEvery:          o.ShadowEvery,
		BaseJitterKW:         o.BaseJitterKW,
		BaseMinKW:            o.BaseMinKW,
		BaseMaxKW:            o.BaseMaxKW,
	}
}

// TelemetryConfig converts the options for the simulation loop.
func (o *VenOptions) TelemetryConfig() telemetry.Config {
	return telemetry.Config{
		Interval:    o.TelemetryInterval,
		JitterKW:    o.BaseJitterKW,
		MinKW:       o.BaseMinKW,
		MaxKW:       o.BaseMaxKW,
		ShadowEvery: o.ShadowEvery,
	}
}
