package websocket

import (
	"log/slog"
)

// Dispatcher fans a frame out to registry-held connections. Delivery is best
// effort: a failing connection is logged and skipped, never aborting the
// remaining recipients.
type Dispatcher struct {
	registry *Registry
}

func NewDispatcher(registry *Registry) *Dispatcher {
	return &Dispatcher{registry: registry}
}

// BroadcastToRoom pushes frame to every connection registered in the room.
func (d *Dispatcher) BroadcastToRoom(roomID string, frame *OutboundFrame) {
	for _, entry := range d.registry.Connections(roomID) {
		if err := entry.Conn.SendFrame(frame); err != nil {
			slog.Error("Broadcast delivery failed", "roomID", roomID, "userID", entry.UserID, "error", err)
		}
	}
}

// BroadcastToRoomExcept is BroadcastToRoom minus one user, used for typing
// notifications where the sender already knows.
func (d *Dispatcher) BroadcastToRoomExcept(roomID string, exceptUserID uint, frame *OutboundFrame) {
	for _, entry := range d.registry.Connections(roomID) {
		if entry.UserID == exceptUserID {
			continue
		}
		if err := entry.Conn.SendFrame(frame); err != nil {
			slog.Debug("Broadcast delivery skipped", "roomID", roomID, "userID", entry.UserID, "error", err)
		}
	}
}

// BroadcastToUsers pushes frame to every live connection of each target
// user, covering all of their devices.
func (d *Dispatcher) BroadcastToUsers(userIDs []uint, frame *OutboundFrame) {
	for _, conn := range d.registry.UserConnections(userIDs) {
		if err := conn.SendFrame(frame); err != nil {
			slog.Error("Broadcast delivery failed", "userID", conn.UserID(), "error", err)
		}
	}
}
