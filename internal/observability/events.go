package observability

type EventEnvelope struct {
	EventType string      `json:"event_type"`
	EventName string      `json:"event_name"`
	Payload   interface{} `json:"payload"`
}

// WSEventPayload describes one websocket lifecycle event.
type WSEventPayload struct {
	RoomID     string `json:"room_id"`
	Event      string `json:"event"`
	ConnID     string `json:"conn_id"`
	DurationMS int64  `json:"duration_ms"`
	Reason     string `json:"reason"`
}

// IdentityPayload carries what is known about the peer of a connection.
type IdentityPayload struct {
	UserID   string `json:"user_id,omitempty"`
	DeviceID string `json:"device_id,omitempty"`
	IP       string `json:"ip"`
}

// WSEnvelope wraps a lifecycle event for the ws_events exchange topic.
func WSEnvelope(ws WSEventPayload, identity IdentityPayload) EventEnvelope {
	return EventEnvelope{
		EventType: "ws_events",
		EventName: ws.Event,
		Payload: map[string]interface{}{
			"ws":       ws,
			"identity": identity,
		},
	}
}

func BuildHeaders(requestID, traceID string) map[string]string {
	headers := map[string]string{}
	if requestID != "" {
		headers["x-request-id"] = requestID
	}
	if traceID != "" {
		headers["trace_id"] = traceID
	}
	return headers
}
