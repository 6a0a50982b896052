// Package http serves the local control surface of the VEN.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/autopeer-io/vensim/internal/pkg/metrics"
	"github.com/autopeer-io/vensim/internal/ven/command"
	"github.com/autopeer-io/vensim/internal/ven/device"
	"github.com/autopeer-io/vensim/pkg/log"
	"github.com/autopeer-io/vensim/pkg/options"
)

// Dispatcher executes operator intents. *command.Dispatcher implements it.
type Dispatcher interface {
	Execute(ctx context.Context, cmd command.Command) command.Ack
	SetCircuit(ctx context.Context, id string, enabled bool) error
}

// StateSource provides point-in-time copies of the device. *device.Store
// implements it.
type StateSource interface {
	Snapshot() device.Snapshot
}

type Server struct {
	server  *http.Server
	options *options.HttpOptions

	dispatcher Dispatcher
	state      StateSource
	connected  func() bool
}

// NewServer builds the control surface. connected reports the broker link
// and drives /readyz.
func NewServer(opts *options.HttpOptions, d Dispatcher, state StateSource, connected func() bool) *Server {
	s := &Server{
		options:    opts,
		dispatcher: d,
		state:      state,
		connected:  connected,
	}
	s.server = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: opts.Timeout,
	}
	return s
}

// Handler returns the router. It is exposed for tests.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.readyz).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	// Routes stay on the root router so a wrong method answers 405, not 404.
	r.HandleFunc("/api/state", s.getState).Methods(http.MethodGet)
	r.HandleFunc("/api/circuits", s.listCircuits).Methods(http.MethodGet)
	r.HandleFunc("/api/circuits/{id}", s.getCircuit).Methods(http.MethodGet)
	r.HandleFunc("/api/circuit/toggle", s.toggleCircuit).Methods(http.MethodPost)
	r.HandleFunc("/api/event/trigger", s.triggerEvent).Methods(http.MethodPost)
	r.HandleFunc("/api/event/restore", s.restoreEvent).Methods(http.MethodPost)

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

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	if !s.connected() {
		http.Error(w, "broker disconnected", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) getState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, newStateView(s.state.Snapshot(), s.connected()))
}

func (s *Server) listCircuits(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, newCircuitViews(s.state.Snapshot().Circuits))
}

func (s *Server) getCircuit(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	c, ok := findCircuit(s.state.Snapshot(), id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown circuit: "+id)
		return
	}
	writeJSON(w, http.StatusOK, newCircuitView(c))
}

type toggleRequest struct {
	CircuitID string `json:"circuit_id"`
	Enabled   *bool  `json:"enabled"`
}

func (s *Server) toggleCircuit(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.CircuitID == "" || req.Enabled == nil {
		writeError(w, http.StatusBadRequest, "circuit_id and enabled are required")
		return
	}

	if err := s.dispatcher.SetCircuit(r.Context(), req.CircuitID, *req.Enabled); err != nil {
		if errors.Is(err, device.ErrUnknownCircuit) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	c, _ := findCircuit(s.state.Snapshot(), req.CircuitID)
	writeJSON(w, http.StatusOK, newCircuitView(c))
}

type triggerRequest struct {
	EventID     string   `json:"event_id"`
	ShedKW      float64  `json:"shed_kw"`
	DurationSec *float64 `json:"duration_sec"`
}

func (s *Server) triggerEvent(w http.ResponseWriter, r *http.Request) {
	var req triggerRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ev := command.Event{
		CorrID:   uuid.NewString(),
		EventID:  req.EventID,
		ShedKW:   req.ShedKW,
		Duration: command.DefaultEventDuration,
	}
	if ev.EventID == "" {
		ev.EventID = "ui-evt-" + uuid.NewString()
	}
	if req.DurationSec != nil {
		ev.Duration = command.DurationFromSeconds(*req.DurationSec)
	}

	writeAck(w, s.dispatcher.Execute(r.Context(), ev))
}

func (s *Server) restoreEvent(w http.ResponseWriter, r *http.Request) {
	writeAck(w, s.dispatcher.Execute(r.Context(), command.Restore{CorrID: uuid.NewString()}))
}

func findCircuit(snap device.Snapshot, id string) (*device.Circuit, bool) {
	for i := range snap.Circuits {
		if snap.Circuits[i].ID == id {
			return &snap.Circuits[i], true
		}
	}
	return nil, false
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	return dec.Decode(v)
}

func writeAck(w http.ResponseWriter, ack command.Ack) {
	status := http.StatusOK
	if !ack.OK() {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, ack)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn("Failed to write response", "error", err)
	}
}
