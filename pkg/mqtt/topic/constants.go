package topic

// Wildcard matches exactly one level: ven/telemetry/+ matches
// ven/telemetry/ven-1 but not ven/telemetry/ven-1/raw.
const Wildcard = "+"

// SharePrefix starts a shared subscription filter: $share/{group}/{filter}.
// The broker delivers each message to one member of the group.
const SharePrefix = "$share"
