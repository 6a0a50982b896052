// Package ven assembles the Virtual End Node: device model, broker channels,
// simulation loop and local control surface.
package ven

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/autopeer-io/vensim/internal/ven/command"
	"github.com/autopeer-io/vensim/internal/ven/device"
	"github.com/autopeer-io/vensim/internal/ven/hub"
	vhttp "github.com/autopeer-io/vensim/internal/ven/server/http"
	"github.com/autopeer-io/vensim/internal/ven/telemetry"
	"github.com/autopeer-io/vensim/pkg/log"
)

type Agent struct {
	venID string
	store *device.Store

	hub        *hub.Hub
	dispatcher *command.Dispatcher
	loop       *telemetry.Loop
	http       *vhttp.Server
}

// Run connects to the broker and serves until ctx is done or a component
// fails.
func (a *Agent) Run(ctx context.Context) error {
	snap := a.store.Snapshot()
	log.Info("Starting ven-agent", "venID", a.venID, "circuits", len(snap.Circuits), "basePowerKW", snap.BasePowerKW)

	// The connection outlives ctx so that Stop can still announce the VEN
	// offline and send a clean DISCONNECT.
	connCtx, stopConn := context.WithCancel(context.WithoutCancel(ctx))
	defer stopConn()

	if err := a.hub.Start(connCtx, a.dispatcher); err != nil {
		return err
	}
	defer a.hub.Stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.loop.Run(ctx)
	})
	g.Go(func() error {
		return a.http.Start(ctx)
	})

	err := g.Wait()
	log.Info("Agent shutting down...")
	return err
}
