package bus

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Broadcast topics. dashboard_update fires every fast cycle; the change
// topics fire only when they carry something.
const (
	EventDashboardUpdate = "dashboard_update"
	EventJobStatusChange = "job_status_change"
	EventNewJobs         = "new_jobs"
	EventQueueUpdate     = "queue_update"
	EventStatsUpdate     = "stats_update"
	EventMonitorError    = "monitor_error"
	EventAlert           = "alert"

	EventRoomJoined = "room_joined"
	EventRoomLeft   = "room_left"
	EventPong       = "pong"
	EventError      = "error"
)

// RoomForBackend names the room that scopes queue updates of one device.
func RoomForBackend(backend string) string {
	return "backend:" + backend
}

// ErrInvalidRoom rejects malformed room names on join and leave.
var ErrInvalidRoom = errors.New("invalid room name")

// Envelope is the wire frame delivered to every subscriber.
type Envelope struct {
	Event string    `json:"event"`
	Data  any       `json:"data,omitempty"`
	TS    time.Time `json:"ts"`
}

// validateRoom normalizes a room name and rejects empty or oversized ones.
// The returned name is the canonical form used as the membership key.
func validateRoom(room string, maxLen int) (string, error) {
	room = strings.TrimSpace(room)
	if room == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidRoom)
	}
	if len(room) > maxLen {
		return "", fmt.Errorf("%w: longer than %d characters", ErrInvalidRoom, maxLen)
	}
	return room, nil
}
