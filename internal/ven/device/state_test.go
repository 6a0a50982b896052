package device

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDefaultState(t *testing.T, base float64) *State {
	t.Helper()
	st, err := NewState("ven-test", DefaultCircuits(), base)
	require.NoError(t, err)
	return st
}

func TestNewStateValidation(t *testing.T) {
	tests := []struct {
		name     string
		venID    string
		circuits []Circuit
		wantErr  string
	}{
		{"missing ven id", "", DefaultCircuits(), "ven id is required"},
		{"empty roster", "ven-1", nil, "at least one circuit"},
		{"duplicate id", "ven-1", []Circuit{{ID: "a", RatedKW: 1}, {ID: "a", RatedKW: 2}}, "duplicate circuit id"},
		{"missing id", "ven-1", []Circuit{{RatedKW: 1}}, "circuit id is required"},
		{"negative rating", "ven-1", []Circuit{{ID: "a", RatedKW: -1}}, "rated capacity"},
		{"critical outside class", "ven-1", []Circuit{{ID: "a", RatedKW: 1, Critical: true, Class: ClassGeneral}}, "critical priority class"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewState(tt.venID, tt.circuits, 5)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestDistribute(t *testing.T) {
	st := newDefaultState(t, 10)

	assert.InDelta(t, 10.0, st.EnabledCapacityKW(), 1e-9)
	assert.InDelta(t, 10.0, st.BasePowerKW, 1e-9)
	assert.InDelta(t, 10.0, st.CurrentPowerKW(), 1e-9)

	for _, c := range st.Circuits {
		if !c.Enabled {
			assert.Zero(t, c.CurrentKW, c.ID)
			continue
		}
		assert.InDelta(t, c.RatedKW, c.CurrentKW, 1e-9, c.ID)
		assert.InDelta(t, c.BaselineKW, c.CurrentKW, 1e-9, c.ID)
	}

	t.Run("half load is proportional", func(t *testing.T) {
		st.Distribute(5)
		hvac, _ := st.Circuit("hvac1")
		assert.InDelta(t, 1.75, hvac.CurrentKW, 1e-9)
		assert.InDelta(t, 5.0, st.CurrentPowerKW(), 1e-9)
	})

	t.Run("capped at enabled capacity", func(t *testing.T) {
		got := st.Distribute(50)
		assert.InDelta(t, 10.0, got, 1e-9)
		assert.InDelta(t, 50.0, st.TargetBaseKW, 1e-9)
		for _, c := range st.Circuits {
			assert.LessOrEqual(t, c.CurrentKW, c.RatedKW+Epsilon, c.ID)
		}
	})

	t.Run("all circuits disabled", func(t *testing.T) {
		empty, err := NewState("ven-x", []Circuit{{ID: "a", RatedKW: 2}}, 1)
		require.NoError(t, err)
		assert.Zero(t, empty.BasePowerKW)
		assert.Zero(t, empty.CurrentPowerKW())
	})
}

func TestSetEnabled(t *testing.T) {
	st := newDefaultState(t, 10)

	changed, err := st.SetEnabled("heater1", false)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = st.SetEnabled("heater1", false)
	require.NoError(t, err)
	assert.False(t, changed)

	_, err = st.SetEnabled("pool-pump", true)
	assert.True(t, errors.Is(err, ErrUnknownCircuit))

	st.Redistribute()
	heater, _ := st.Circuit("heater1")
	assert.Zero(t, heater.CurrentKW)
	assert.InDelta(t, 8.5, st.CurrentPowerKW(), 1e-9)

	// Switching it back on restores the full target base load.
	_, err = st.SetEnabled("heater1", true)
	require.NoError(t, err)
	st.Redistribute()
	assert.InDelta(t, 10.0, st.BasePowerKW, 1e-9)
	assert.InDelta(t, 10.0, st.TargetBaseKW, 1e-9)
}

func TestBaselinePowerKW(t *testing.T) {
	st := newDefaultState(t, 10)
	assert.InDelta(t, 10.0, st.BaselinePowerKW(), 1e-9)

	for i := 0; i < HistorySize+40; i++ {
		st.RecordBase(float64(i % 2 * 2))
	}
	assert.Len(t, st.history, HistorySize)
	assert.InDelta(t, 1.0, st.BaselinePowerKW(), 1e-9)
}

func TestCircuitDerived(t *testing.T) {
	c := Circuit{ID: "lights1", RatedKW: 0.4, BaselineKW: 0.4, CurrentKW: 0.4, Enabled: true, Class: ClassFlexible}
	assert.InDelta(t, 0.28, c.ShedCapabilityKW(), 1e-9)
	assert.False(t, c.Curtailed())
	assert.True(t, c.Active())

	c.CurrentKW = 0.12
	assert.True(t, c.Curtailed())
	assert.InDelta(t, 0.0, c.ShedCapabilityKW(), 1e-9)
	assert.True(t, c.Active())

	heater := Circuit{ID: "heater1", RatedKW: 1.5, BaselineKW: 1.5, CurrentKW: 0, Enabled: true, Class: ClassSheddable}
	assert.False(t, heater.Active())

	heater.Enabled = false
	assert.Zero(t, heater.ShedCapabilityKW())
}

func TestPriorityClass(t *testing.T) {
	tests := []struct {
		name     string
		want     PriorityClass
		fraction float64
	}{
		{"sheddable", ClassSheddable, 1.0},
		{"Flexible", ClassFlexible, 0.7},
		{"GENERAL", ClassGeneral, 0.6},
		{"critical", ClassCritical, 0.2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ParsePriorityClass(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p)
			assert.InDelta(t, tt.fraction, p.ShedFraction(), 1e-9)
			assert.Equal(t, strings.ToLower(tt.name), p.String())
		})
	}

	_, err := ParsePriorityClass("optional")
	assert.Error(t, err)
	assert.Equal(t, "PriorityClass(9)", PriorityClass(9).String())
}
