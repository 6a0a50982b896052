// Package http serves probes, metrics and read-only queries over the
// recorded history.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/autopeer-io/vensim/internal/pkg/metrics"
	"github.com/autopeer-io/vensim/internal/recorder/store"
	"github.com/autopeer-io/vensim/pkg/log"
	"github.com/autopeer-io/vensim/pkg/options"
)

// History is the read side of the recorder database.
type History interface {
	LatestTelemetry(ctx context.Context, venID string) (*store.TelemetryRow, error)
	ListEvents(ctx context.Context, venID string, limit int) ([]store.EventRow, error)
}

type Server struct {
	server    *http.Server
	options   *options.HttpOptions
	history   History
	connected func() bool
}

func NewServer(opts *options.HttpOptions, history History, connected func() bool) *Server {
	s := &Server{options: opts, history: history, connected: connected}
	s.server = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: opts.Timeout,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if !s.connected() {
			http.Error(w, "mqtt not connected", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	// Routes stay on the root router so a wrong method answers 405, not 404.
	r.HandleFunc("/api/vens/{id}/telemetry/latest", s.latestTelemetry).Methods(http.MethodGet)
	r.HandleFunc("/api/vens/{id}/events", s.listEvents).Methods(http.MethodGet)

	return r
}

func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen(s.options.Network, s.options.Addr)
	if err != nil {
		return err
	}
	log.Info("Starting HTTP Server", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	}
}

// TelemetryView is the JSON form of a recorded telemetry sample.
type TelemetryView struct {
	VenID      string  `json:"ven_id"`
	ReceivedAt int64   `json:"received_at"`
	TS         int64   `json:"ts"`
	MessageNum uint64  `json:"message_num"`
	PowerKW    float64 `json:"power_kw"`
	BaseKW     float64 `json:"base_power_kw"`
	ShedKW     float64 `json:"shed_kw"`
	EventID    string  `json:"event_id,omitempty"`
}

// EventView is the JSON form of a recorded event report.
type EventView struct {
	EventID         string  `json:"event_id"`
	Reason          string  `json:"reason"`
	RequestedShedKW float64 `json:"requested_shed_kw"`
	ActualShedKW    float64 `json:"actual_shed_kw"`
	DeliveredKWh    float64 `json:"delivered_kwh"`
	StartTS         int64   `json:"start_ts"`
	EndTS           int64   `json:"end_ts"`
}

func (s *Server) latestTelemetry(w http.ResponseWriter, r *http.Request) {
	venID := mux.Vars(r)["id"]
	row, err := s.history.LatestTelemetry(r.Context(), venID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no telemetry recorded for "+venID)
		return
	}
	if err != nil {
		log.Error(err, "Failed to query telemetry", "venID", venID)
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	writeJSON(w, http.StatusOK, TelemetryView{
		VenID:      row.VenID,
		ReceivedAt: row.ReceivedAt.Unix(),
		TS:         row.TS,
		MessageNum: row.MessageNum,
		PowerKW:    row.PowerKW,
		BaseKW:     row.BaseKW,
		ShedKW:     row.ShedKW,
		EventID:    row.EventID,
	})
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	venID := mux.Vars(r)["id"]

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	rows, err := s.history.ListEvents(r.Context(), venID, limit)
	if err != nil {
		log.Error(err, "Failed to query events", "venID", venID)
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	views := make([]EventView, 0, len(rows))
	for _, e := range rows {
		views = append(views, EventView{
			EventID:         e.EventID,
			Reason:          e.Reason,
			RequestedShedKW: e.RequestedShedKW,
			ActualShedKW:    e.ActualShedKW,
			DeliveredKWh:    e.DeliveredKWh,
			StartTS:         e.StartTS,
			EndTS:           e.EndTS,
		})
	}
	writeJSON(w, http.StatusOK, views)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn("Failed to write response", "error", err)
	}
}
