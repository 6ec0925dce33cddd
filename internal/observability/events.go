package observability

import "time"

const eventSchemaVersion = 1

// EventEnvelope is the body of every lifecycle event published to the bus.
type EventEnvelope struct {
	SchemaVersion int    `json:"schema_version"`
	EventType     string `json:"event_type"`
	EventName     string `json:"event_name"`
	OccurredAt    string `json:"occurred_at"`
	Service       string `json:"service"`
	Payload       any    `json:"payload"`
}

// NewEvent stamps an envelope with the schema version and current time.
func NewEvent(eventType, name string, payload any) EventEnvelope {
	return EventEnvelope{
		SchemaVersion: eventSchemaVersion,
		EventType:     eventType,
		EventName:     name,
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
		Service:       serviceName,
		Payload:       payload,
	}
}

// Headers returns the AMQP headers correlating an event with its request
// and trace. Empty values are omitted.
func (m RequestMeta) Headers(traceID string) map[string]string {
	headers := map[string]string{}
	if m.RequestID != "" {
		headers["x-request-id"] = m.RequestID
	}
	if traceID != "" {
		headers["trace_id"] = traceID
	}
	return headers
}
