package command

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    Command
	}{
		{"ping", `{"op":"ping","corr_id":"c-1"}`, Ping{CorrID: "c-1"}},
		{"restore", `{"op":"restore","corr_id":"c-2"}`, Restore{CorrID: "c-2"}},
		{"status alias", `{"op":"get","correlationId":"c-3"}`, Status{CorrID: "c-3"}},
		{
			"event",
			`{"op":"event","corr_id":"c-4","shed_kw":2,"duration_sec":300,"event_id":"evt-9"}`,
			Event{CorrID: "c-4", EventID: "evt-9", ShedKW: 2, Duration: 300 * time.Second},
		},
		{
			"event default duration",
			`{"op":"event","corr_id":"c-5","shed_kw":1.5}`,
			Event{CorrID: "c-5", ShedKW: 1.5, Duration: DefaultEventDuration},
		},
		{
			"shedPanel alias with nested data",
			`{"op":"shedPanel","correlationId":"c-6","data":{"requestedReductionKw":3,"duration_s":60,"event_id":"evt-n"}}`,
			Event{CorrID: "c-6", EventID: "evt-n", ShedKW: 3, Duration: time.Minute},
		},
		{
			"shedPanel camel case duration",
			`{"op":"shedPanel","data":{"requestedReductionKw":2,"durationS":300}}`,
			Event{ShedKW: 2, Duration: 5 * time.Minute},
		},
		{
			"shedPanel without a window",
			`{"op":"shedPanel","data":{"requestedReductionKw":2}}`,
			Event{ShedKW: 2},
		},
		{"config query", `{"op":"get","what":"Config","corr_id":"c-9"}`, Status{CorrID: "c-9", What: StatusConfig}},
		{
			"setLoad",
			`{"op":"setLoad","correlationId":"c-10","data":{"loadId":"heater1","enabled":false}}`,
			SetLoad{CorrID: "c-10", LoadID: "heater1", Enabled: boolPtr(false)},
		},
		{"setLoad without data", `{"op":"setLoad","corr_id":"c-11"}`, SetLoad{CorrID: "c-11"}},
		{
			"top level wins over data",
			`{"op":"event","corr_id":"c-7","shed_kw":1,"data":{"shed_kw":5}}`,
			Event{CorrID: "c-7", ShedKW: 1, Duration: DefaultEventDuration},
		},
		{
			"negative values are kept for the engine to reject",
			`{"op":"event","corr_id":"c-8","shed_kw":-1,"duration_sec":-5}`,
			Event{CorrID: "c-8", ShedKW: -1, Duration: 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.payload))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name       string
		payload    string
		wantErr    error
		wantCorrID string
	}{
		{"unknown op", `{"op":"reboot","corr_id":"c-1"}`, ErrUnknownOp, "c-1"},
		{"missing op", `{"corr_id":"c-2"}`, ErrUnknownOp, "c-2"},
		{"not json", `ping`, ErrMalformed, ""},
		{"wrong field type", `{"op":"event","corr_id":"c-3","shed_kw":"two"}`, ErrMalformed, "c-3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.payload))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)

			var de *DecodeError
			require.True(t, errors.As(err, &de))
			assert.Equal(t, tt.wantCorrID, de.CorrID)
		})
	}
}
