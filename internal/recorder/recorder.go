// Package recorder consumes what VENs publish and persists it to SQLite.
package recorder

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/autopeer-io/vensim/internal/pkg/metrics"
	"github.com/autopeer-io/vensim/internal/pkg/mqtt/paths"
	"github.com/autopeer-io/vensim/internal/recorder/store"
	"github.com/autopeer-io/vensim/internal/ven/hub"
	"github.com/autopeer-io/vensim/pkg/log"
	pkgmqtt "github.com/autopeer-io/vensim/pkg/mqtt"
	"github.com/autopeer-io/vensim/pkg/mqtt/topic"
)

const subscribeQoS = 1

type Recorder struct {
	client pkgmqtt.Client
	topics *topic.Builder
	db     *store.DB

	retention    time.Duration
	purgeEvery   time.Duration
	writeTimeout time.Duration

	servers []Server
	now     func() time.Time
	log     log.Logger
}

// Server is a side server run for the recorder's lifetime.
type Server interface {
	Start(ctx context.Context) error
}

// New returns a Recorder storing into db what client receives on the VEN
// topics of topics.
func New(client pkgmqtt.Client, topics *topic.Builder, db *store.DB, retention time.Duration, opts *RecorderOptions) *Recorder {
	return &Recorder{
		client:       client,
		topics:       topics.Shared(opts.ShareGroup),
		db:           db,
		retention:    retention,
		purgeEvery:   opts.PurgeInterval,
		writeTimeout: opts.WriteTimeout,
		now:          time.Now,
		log:          log.WithName("recorder"),
	}
}

// AddServer runs s alongside the consumer.
func (r *Recorder) AddServer(s Server) {
	r.servers = append(r.servers, s)
}

// Run subscribes, connects and records until ctx is done. The database is
// closed on return.
func (r *Recorder) Run(ctx context.Context) error {
	defer func() {
		if err := r.db.Close(); err != nil {
			r.log.Error(err, "Failed to close database")
		}
	}()

	if err := r.subscribe(ctx); err != nil {
		return err
	}
	if err := r.client.Start(ctx); err != nil {
		return fmt.Errorf("failed to start mqtt client: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		r.client.Disconnect(shutdownCtx)
	}()

	r.log.Info("Recorder started", "db", r.db.Path(), "retention", r.retention)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r.purgeLoop(gctx)
		return nil
	})
	for _, s := range r.servers {
		g.Go(func() error {
			return s.Start(gctx)
		})
	}
	return g.Wait()
}

func (r *Recorder) subscribe(ctx context.Context) error {
	subscriptions := map[string]pkgmqtt.MessageHandler{
		paths.Telemetry: jsonHandler(r, store.TableTelemetry, r.db.InsertTelemetry),
		paths.Loads:     jsonHandler(r, store.TableLoads, r.db.InsertLoads),
		paths.Ack:       jsonHandler(r, store.TableAcks, r.db.InsertAck),
		paths.Events:    jsonHandler(r, store.TableEvents, r.db.InsertEventReport),
		paths.Status:    r.handlePresence,
	}

	for segment, handler := range subscriptions {
		filter := r.topics.Wildcard(segment)
		if err := r.client.Subscribe(ctx, filter, subscribeQoS, handler); err != nil {
			return fmt.Errorf("failed to subscribe to topic: %s, err: %w", filter, err)
		}
	}
	return nil
}

// jsonHandler decodes each payload as T and stores it with insert.
func jsonHandler[T any](r *Recorder, table store.Table, insert func(context.Context, store.Envelope, T) (string, error)) pkgmqtt.MessageHandler {
	return func(ctx context.Context, t string, payload []byte) {
		env := store.Envelope{
			VenID:      venIDFromTopic(t),
			Topic:      t,
			ReceivedAt: r.now(),
			Payload:    payload,
		}

		var msg T
		if err := json.Unmarshal(payload, &msg); err != nil {
			r.log.Warn("Dropping undecodable message", "topic", t, "error", err)
			metrics.RecordedTotal.WithLabelValues(string(table), "invalid").Inc()
			return
		}

		wctx, cancel := context.WithTimeout(ctx, r.writeTimeout)
		defer cancel()
		id, err := insert(wctx, env, msg)
		if err != nil {
			r.log.Error(err, "Failed to record message", "topic", t, "table", table)
			metrics.RecordedTotal.WithLabelValues(string(table), "failed").Inc()
			return
		}
		r.log.Debug("Recorded message", "table", table, "venID", env.VenID, "id", id)
		metrics.RecordedTotal.WithLabelValues(string(table), "stored").Inc()
	}
}

func (r *Recorder) handlePresence(_ context.Context, t string, payload []byte) {
	var p hub.Presence
	if err := json.Unmarshal(payload, &p); err != nil {
		r.log.Warn("Ignoring malformed presence", "topic", t, "error", err)
		return
	}
	r.log.Info("VEN presence", "venID", venIDFromTopic(t), "status", p.Status)
}

func (r *Recorder) purgeLoop(ctx context.Context) {
	if r.retention <= 0 {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(r.purgeEvery)
	defer ticker.Stop()

	for {
		r.purge(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (r *Recorder) purge(ctx context.Context) {
	cutoff := r.now().Add(-r.retention)
	n, err := r.db.Purge(ctx, cutoff)
	if err != nil {
		if ctx.Err() == nil {
			r.log.Error(err, "Failed to purge expired rows", "cutoff", cutoff)
		}
		return
	}
	metrics.PurgedRows.Add(float64(n))
	if n > 0 {
		r.log.Info("Purged expired rows", "rows", n, "cutoff", cutoff)
	}
}

// venIDFromTopic returns the last level of a {root}/{segment}/{venID} topic.
func venIDFromTopic(t string) string {
	return t[strings.LastIndex(t, "/")+1:]
}
