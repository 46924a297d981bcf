package ws

import (
	"context"
	"time"

	"github.com/google/uuid"

	"broadcast-room/internal/observability"
)

const routingKey = "ws_events.rooms"

func newConnID() string {
	return uuid.NewString()
}

// publishWSEvent counts a lifecycle event and ships it to the event bus.
func publishWSEvent(ctx context.Context, info ConnInfo, event, reason string) {
	observability.IncWSEvent(event)

	var duration int64
	if event != "ws_connect" {
		duration = time.Since(info.ConnectedAt).Milliseconds()
	}
	envelope := observability.WSEnvelope(observability.WSEventPayload{
		RoomID:     info.RoomID,
		Event:      event,
		ConnID:     info.ConnID,
		DurationMS: duration,
		Reason:     reason,
	}, observability.IdentityPayload{
		DeviceID: info.DeviceID,
		IP:       info.IP,
	})
	_ = observability.PublishEvent(ctx, routingKey, envelope, observability.BuildHeaders(info.RequestID, info.TraceID))
}
