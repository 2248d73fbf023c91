package lobby

import "errors"

var (
	// ErrRoomNotFound is returned when a join references a room id the
	// directory does not hold.
	ErrRoomNotFound = errors.New("lobby: room not found")
	// ErrNotAdmin is returned when a non-admin member tries to close a room.
	ErrNotAdmin = errors.New("lobby: not the room admin")
	// ErrNotAMember is returned for room scoped commands from a session that
	// is not in any room.
	ErrNotAMember = errors.New("lobby: not a member of any room")
	// ErrSendFailed is returned by Session.Send once the session is closed.
	ErrSendFailed = errors.New("lobby: session closed")
	// ErrQueueFull is returned by Session.Send when the outbound queue is
	// saturated and the message was dropped.
	ErrQueueFull = errors.New("lobby: send queue full")
)
