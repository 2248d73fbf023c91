package lobby

import (
	"fmt"
	"slices"
	"strconv"
	"time"
)

// RoomID identifies a room for the lifetime of a directory.
type RoomID int64

func (id RoomID) String() string { return strconv.FormatInt(int64(id), 10) }

// ParseRoomID parses the decimal form used on the wire.
func ParseRoomID(s string) (RoomID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse room id %q: %w", s, err)
	}
	return RoomID(n), nil
}

// Room is a named group of sessions. Its fields are owned by the Directory
// and only touched with the directory lock held.
type Room struct {
	id           RoomID
	name         string
	members      []*Session
	admin        string
	createdAt    time.Time
	lastActivity time.Time
}

func (r *Room) indexOf(s *Session) int {
	return slices.IndexFunc(r.members, func(m *Session) bool { return m.id == s.id })
}

// touch moves lastActivity forward; it never goes back.
func (r *Room) touch(now time.Time) {
	if now.After(r.lastActivity) {
		r.lastActivity = now
	}
}

// remove drops s from the member list, keeping the order of the others,
// and promotes the next member when s was the admin.
func (r *Room) remove(s *Session) bool {
	i := r.indexOf(s)
	if i < 0 {
		return false
	}
	r.members = slices.Delete(r.members, i, i+1)

	if r.admin == s.id {
		r.admin = ""
		if len(r.members) > 0 {
			r.admin = r.members[0].id
		}
	}
	return true
}

func (r *Room) memberInfos() []MemberInfo {
	out := make([]MemberInfo, len(r.members))
	for i, m := range r.members {
		latency, measured := m.Latency()
		out[i] = MemberInfo{
			Index:     i,
			SessionID: m.id,
			Nickname:  m.Nickname(),
			Latency:   latency,
			Measured:  measured,
			Admin:     m.id == r.admin,
		}
	}
	return out
}

func (r *Room) info() RoomInfo {
	return RoomInfo{
		ID:           r.id,
		Name:         r.name,
		Admin:        r.admin,
		Members:      r.memberInfos(),
		CreatedAt:    r.createdAt,
		LastActivity: r.lastActivity,
	}
}

// RoomEntry is one element of the room listing sent to clients.
type RoomEntry struct {
	Name string
	ID   RoomID
}

// MemberInfo describes one member at snapshot time. Index is dense
// (0..n-1) and only meaningful within that snapshot.
type MemberInfo struct {
	Index     int
	SessionID string
	Nickname  string
	Latency   time.Duration
	Measured  bool
	Admin     bool
}

// RoomInfo is a copy of a room's state taken under the directory lock.
type RoomInfo struct {
	ID           RoomID
	Name         string
	Admin        string
	Members      []MemberInfo
	CreatedAt    time.Time
	LastActivity time.Time
}

// HasMember reports whether the session with the given id was a member.
func (ri RoomInfo) HasMember(sessionID string) bool {
	return slices.ContainsFunc(ri.Members, func(m MemberInfo) bool { return m.SessionID == sessionID })
}
