package shadow

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/vensim/internal/ven/device"
)

func TestParseDesired(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    []string
		wantErr bool
	}{
		{
			name:    "update document",
			payload: `{"state":{"desired":{"circuits":[{"id":"heater1","enabled":false},{"id":"ev1","enabled":true}]}}}`,
			want:    []string{"heater1", "ev1"},
		},
		{
			name:    "aws delta",
			payload: `{"version":12,"timestamp":1752512400,"state":{"circuits":[{"id":"lights1","enabled":false}]}}`,
			want:    []string{"lights1"},
		},
		{
			name:    "get accepted",
			payload: `{"state":{"desired":{"circuits":[{"id":"plug1","enabled":true}]},"reported":{"power_kw":9.8}}}`,
			want:    []string{"plug1"},
		},
		{name: "no circuits", payload: `{"state":{"desired":{"mode":"eco"}}}`, wantErr: true},
		{name: "not json", payload: `circuits`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDesired([]byte(tt.payload))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			ids := make([]string, len(got))
			for i, d := range got {
				ids[i] = d.ID
				require.NotNil(t, d.Enabled)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestReportedDocument(t *testing.T) {
	st, err := device.NewState("ven-1", device.DefaultCircuits(), 10)
	require.NoError(t, err)

	heater, _ := st.Circuit("heater1")
	heater.CurrentKW = 0
	end := time.Unix(1752513000, 0)
	st.ActiveEvent = &device.Event{ID: "evt-1", RequestedShedKW: 2, ActualShedKW: 1.5, End: end}

	now := time.Unix(1752512400, 0)
	doc := ReportedDocument(st.Snapshot(), now)

	data, err := json.Marshal(doc)
	require.NoError(t, err)

	var decoded map[string]map[string]map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	reported := decoded["state"]["reported"]

	assert.EqualValues(t, 1752512400, reported["timestamp"])
	assert.InDelta(t, 8.5, reported["power_kw"], 1e-9)
	assert.InDelta(t, 1.5, reported["shed_kw"], 1e-9)
	assert.InDelta(t, 10.0, reported["base_power_kw"], 1e-9)

	event := reported["active_event"].(map[string]any)
	assert.Equal(t, "evt-1", event["event_id"])
	assert.EqualValues(t, 1752513000, event["end_ts"])

	circuits := reported["circuits"].([]any)
	require.Len(t, circuits, len(device.DefaultCircuits()))
	heaterDoc := circuits[1].(map[string]any)
	assert.Equal(t, "heater1", heaterDoc["id"])
	assert.Equal(t, false, heaterDoc["enabled"])
	assert.NotContains(t, decoded["state"], "desired")
}

func TestReportedIdleEventIsNull(t *testing.T) {
	st, err := device.NewState("ven-1", device.DefaultCircuits(), 10)
	require.NoError(t, err)

	data, err := json.Marshal(ReportedDocument(st.Snapshot(), time.Unix(0, 0)))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"active_event":null`)
}
