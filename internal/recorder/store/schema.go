package store

// Each table keeps the raw payload next to the columns the recorder queries.
// received_at is the broker delivery time in unix milliseconds.
const schema = `
CREATE TABLE IF NOT EXISTS telemetry (
    id           TEXT PRIMARY KEY,
    ven_id       TEXT NOT NULL,
    topic        TEXT NOT NULL,
    received_at  INTEGER NOT NULL,
    ts           INTEGER NOT NULL,
    message_num  INTEGER NOT NULL DEFAULT 0,
    power_kw     REAL NOT NULL DEFAULT 0,
    base_kw      REAL NOT NULL DEFAULT 0,
    shed_kw      REAL NOT NULL DEFAULT 0,
    event_id     TEXT NOT NULL DEFAULT '',
    payload      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_telemetry_ven ON telemetry(ven_id, received_at);

CREATE TABLE IF NOT EXISTS loads (
    id           TEXT PRIMARY KEY,
    ven_id       TEXT NOT NULL,
    topic        TEXT NOT NULL,
    received_at  INTEGER NOT NULL,
    ts           INTEGER NOT NULL,
    circuits     INTEGER NOT NULL DEFAULT 0,
    shed_capability_kw REAL NOT NULL DEFAULT 0,
    payload      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_loads_ven ON loads(ven_id, received_at);

CREATE TABLE IF NOT EXISTS acks (
    id           TEXT PRIMARY KEY,
    ven_id       TEXT NOT NULL,
    topic        TEXT NOT NULL,
    received_at  INTEGER NOT NULL,
    ts           INTEGER NOT NULL,
    corr_id      TEXT NOT NULL DEFAULT '',
    op           TEXT NOT NULL DEFAULT '',
    status       TEXT NOT NULL DEFAULT '',
    error        TEXT NOT NULL DEFAULT '',
    event_id     TEXT NOT NULL DEFAULT '',
    payload      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_acks_corr ON acks(corr_id);

CREATE TABLE IF NOT EXISTS events (
    id               TEXT PRIMARY KEY,
    ven_id           TEXT NOT NULL,
    topic            TEXT NOT NULL,
    received_at      INTEGER NOT NULL,
    event_id         TEXT NOT NULL,
    reason           TEXT NOT NULL DEFAULT '',
    requested_shed_kw REAL NOT NULL DEFAULT 0,
    actual_shed_kw   REAL NOT NULL DEFAULT 0,
    delivered_kwh    REAL NOT NULL DEFAULT 0,
    start_ts         INTEGER NOT NULL DEFAULT 0,
    end_ts           INTEGER NOT NULL DEFAULT 0,
    payload          TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_ven ON events(ven_id, received_at);
`
