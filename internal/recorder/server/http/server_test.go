package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/vensim/internal/recorder/store"
	"github.com/autopeer-io/vensim/pkg/options"
)

type fakeHistory struct {
	latest    *store.TelemetryRow
	events    []store.EventRow
	err       error
	lastLimit int
}

func (f *fakeHistory) LatestTelemetry(_ context.Context, venID string) (*store.TelemetryRow, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.latest == nil || f.latest.VenID != venID {
		return nil, store.ErrNotFound
	}
	return f.latest, nil
}

func (f *fakeHistory) ListEvents(_ context.Context, _ string, limit int) ([]store.EventRow, error) {
	f.lastLimit = limit
	return f.events, f.err
}

func serve(t *testing.T, h History, connected bool, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	s := NewServer(options.NewHttpOptions(), h, func() bool { return connected })
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestProbes(t *testing.T) {
	h := &fakeHistory{}
	assert.Equal(t, http.StatusOK, serve(t, h, false, http.MethodGet, "/healthz").Code)
	assert.Equal(t, http.StatusServiceUnavailable, serve(t, h, false, http.MethodGet, "/readyz").Code)
	assert.Equal(t, http.StatusOK, serve(t, h, true, http.MethodGet, "/readyz").Code)
	assert.Equal(t, http.StatusOK, serve(t, h, true, http.MethodGet, "/metrics").Code)
}

func TestLatestTelemetry(t *testing.T) {
	h := &fakeHistory{latest: &store.TelemetryRow{
		VenID:      "ven-1",
		ReceivedAt: time.Unix(1700000000, 0),
		TS:         1700000000,
		MessageNum: 7,
		PowerKW:    8,
		BaseKW:     10,
		ShedKW:     2,
		EventID:    "evt-1",
	}}

	rec := serve(t, h, true, http.MethodGet, "/api/vens/ven-1/telemetry/latest")
	require.Equal(t, http.StatusOK, rec.Code)
	var got TelemetryView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, uint64(7), got.MessageNum)
	assert.Equal(t, 2.0, got.ShedKW)
	assert.Equal(t, int64(1700000000), got.ReceivedAt)

	assert.Equal(t, http.StatusNotFound, serve(t, h, true, http.MethodGet, "/api/vens/ven-2/telemetry/latest").Code)

	h.err = errors.New("disk I/O error")
	assert.Equal(t, http.StatusInternalServerError, serve(t, h, true, http.MethodGet, "/api/vens/ven-1/telemetry/latest").Code)
}

func TestListEvents(t *testing.T) {
	h := &fakeHistory{events: []store.EventRow{
		{EventID: "evt-2", Reason: "expired", ActualShedKW: 1.5},
		{EventID: "evt-1", Reason: "restored", DeliveredKWh: 0.25},
	}}

	rec := serve(t, h, true, http.MethodGet, "/api/vens/ven-1/events?limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	var got []EventView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "evt-2", got[0].EventID)
	assert.Equal(t, 0.25, got[1].DeliveredKWh)
	assert.Equal(t, 5, h.lastLimit)

	h.events = nil
	rec = serve(t, h, true, http.MethodGet, "/api/vens/ven-1/events")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	for _, bad := range []string{"0", "-1", "x"} {
		rec = serve(t, h, true, http.MethodGet, "/api/vens/ven-1/events?limit="+bad)
		assert.Equal(t, http.StatusBadRequest, rec.Code, bad)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h := &fakeHistory{}
	for _, path := range []string{"/api/vens/ven-1/telemetry/latest", "/api/vens/ven-1/events"} {
		t.Run(path, func(t *testing.T) {
			assert.Equal(t, http.StatusMethodNotAllowed, serve(t, h, true, http.MethodPost, path).Code)
		})
	}
}
