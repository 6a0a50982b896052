package paths

// Topic segments of the VEN messaging contract. Each is combined as
// {root}/{segment}/{venID}; see pkg/mqtt/topic.Builder.

// Downstream: operator -> VEN
const (
	// Command carries direct commands (ping, event, restore, status).
	// Payload: {"op":"event","corr_id":"...","shed_kw":2,"duration_sec":300}
	Command = "cmd"
)

// Upstream: VEN -> operator
const (
	// Ack carries exactly one acknowledgment per received command.
	Ack = "ack"

	// Telemetry is published every telemetry interval.
	Telemetry = "telemetry"

	// Loads carries the per-circuit snapshot with shed capability.
	Loads = "loads"

	// Events carries the report of a finished DR event.
	Events = "events"

	// Status carries the retained online/offline presence. The offline
	// variant is registered as the will message.
	Status = "status"
)
