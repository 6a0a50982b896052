package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/autopeer-io/vensim/internal/ven/command"
	"github.com/autopeer-io/vensim/internal/ven/telemetry"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("not found")

// Envelope carries what the broker told us about a message.
type Envelope struct {
	VenID      string
	Topic      string
	ReceivedAt time.Time
	Payload    []byte
}

// InsertTelemetry stores one telemetry message and returns its row id.
func (db *DB) InsertTelemetry(ctx context.Context, env Envelope, msg telemetry.Message) (string, error) {
	id := uuid.NewString()
	eventID := ""
	if msg.EventID != nil {
		eventID = *msg.EventID
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO telemetry (id, ven_id, topic, received_at, ts, message_num, power_kw, base_kw, shed_kw, event_id, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, env.VenID, env.Topic, env.ReceivedAt.UnixMilli(), msg.TS, msg.MessageNum,
		msg.PowerKW, msg.BasePowerKW, msg.ShedKW, eventID, string(env.Payload))
	if err != nil {
		return "", err
	}
	return id, nil
}

// InsertLoads stores one load snapshot.
func (db *DB) InsertLoads(ctx context.Context, env Envelope, loads telemetry.Loads) (string, error) {
	var capability float64
	for _, l := range loads.Loads {
		capability += l.ShedCapabilityKW
	}

	id := uuid.NewString()
	_, err := db.ExecContext(ctx, `
		INSERT INTO loads (id, ven_id, topic, received_at, ts, circuits, shed_capability_kw, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, env.VenID, env.Topic, env.ReceivedAt.UnixMilli(), loads.Timestamp,
		len(loads.Loads), capability, string(env.Payload))
	if err != nil {
		return "", err
	}
	return id, nil
}

// InsertAck stores one command acknowledgment.
func (db *DB) InsertAck(ctx context.Context, env Envelope, ack command.Ack) (string, error) {
	id := uuid.NewString()
	_, err := db.ExecContext(ctx, `
		INSERT INTO acks (id, ven_id, topic, received_at, ts, corr_id, op, status, error, event_id, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, env.VenID, env.Topic, env.ReceivedAt.UnixMilli(), ack.TS, ack.CorrID,
		ack.Op, ack.Status, ack.Error, ack.EventID, string(env.Payload))
	if err != nil {
		return "", err
	}
	return id, nil
}

// InsertEventReport stores the report of a finished event.
func (db *DB) InsertEventReport(ctx context.Context, env Envelope, r command.EventReport) (string, error) {
	id := uuid.NewString()
	_, err := db.ExecContext(ctx, `
		INSERT INTO events (id, ven_id, topic, received_at, event_id, reason, requested_shed_kw, actual_shed_kw, delivered_kwh, start_ts, end_ts, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, env.VenID, env.Topic, env.ReceivedAt.UnixMilli(), r.EventID, r.Reason,
		r.RequestedShedKW, r.ActualShedKW, r.DeliveredKWh, r.StartTS, r.EndTS, string(env.Payload))
	if err != nil {
		return "", err
	}
	return id, nil
}

// TelemetryRow is a recorded telemetry sample.
type TelemetryRow struct {
	ID         string
	VenID      string
	ReceivedAt time.Time
	TS         int64
	MessageNum uint64
	PowerKW    float64
	BaseKW     float64
	ShedKW     float64
	EventID    string
}

// LatestTelemetry returns the most recently received sample of a VEN.
func (db *DB) LatestTelemetry(ctx context.Context, venID string) (*TelemetryRow, error) {
	var (
		row TelemetryRow
		ms  int64
	)
	err := db.QueryRowContext(ctx, `
		SELECT id, ven_id, received_at, ts, message_num, power_kw, base_kw, shed_kw, event_id
		FROM telemetry WHERE ven_id = ?
		ORDER BY received_at DESC, message_num DESC LIMIT 1`, venID).
		Scan(&row.ID, &row.VenID, &ms, &row.TS, &row.MessageNum, &row.PowerKW, &row.BaseKW, &row.ShedKW, &row.EventID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	row.ReceivedAt = time.UnixMilli(ms)
	return &row, nil
}

// EventRow is a recorded event report.
type EventRow struct {
	ID              string
	VenID           string
	EventID         string
	Reason          string
	RequestedShedKW float64
	ActualShedKW    float64
	DeliveredKWh    float64
	StartTS         int64
	EndTS           int64
}

// ListEvents returns the event reports of a VEN, newest first.
func (db *DB) ListEvents(ctx context.Context, venID string, limit int) ([]EventRow, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.QueryContext(ctx, `
		SELECT id, ven_id, event_id, reason, requested_shed_kw, actual_shed_kw, delivered_kwh, start_ts, end_ts
		FROM events WHERE ven_id = ?
		ORDER BY received_at DESC LIMIT ?`, venID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EventRow
	for rows.Next() {
		var e EventRow
		if err := rows.Scan(&e.ID, &e.VenID, &e.EventID, &e.Reason, &e.RequestedShedKW,
			&e.ActualShedKW, &e.DeliveredKWh, &e.StartTS, &e.EndTS); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
