package lobby

import (
	"log/slog"
	"math"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/Tyrowin/lobby-relay/internal/metrics"
)

// Reasons a room leaves the directory.
const (
	RemovedClosed = "closed"
	RemovedIdle   = "idle"
	RemovedEmpty  = "empty"
)

// Room ids start between roomIDStart and twice that, then grow by a random
// step of at most roomIDStep. That keeps them within the 32-bit range
// existing clients parse for the first few million rooms.
const (
	roomIDStart = 1 << 20
	roomIDStep  = 1000
)

// Directory is the authoritative table of rooms. A session belongs to at
// most one room: creating or joining another room moves it out of the
// current one first.
//
// When an admin leaves, the next member in join order becomes admin. A room
// left with no members has no admin and is reclaimed by the next sweep; a
// session joining it before then becomes its admin.
type Directory struct {
	mu       sync.Mutex
	rooms    []*Room
	byID     map[RoomID]*Room
	byMember map[string]*Room
	lastID   RoomID
	rng      *rand.Rand

	relay   *Relay
	clock   func() time.Time
	log     *slog.Logger
	metrics *metrics.Lobby
}

// NewDirectory creates an empty directory that fans out through relay.
func NewDirectory(relay *Relay, opts Options) *Directory {
	opts = opts.withDefaults()
	if relay == nil {
		relay = NewRelay(opts)
	}
	seed := uint64(opts.Clock().UnixNano())
	rng := rand.New(rand.NewPCG(seed, seed>>7|1))
	return &Directory{
		byID:     make(map[RoomID]*Room),
		byMember: make(map[string]*Room),
		lastID:   RoomID(roomIDStart + rng.Int64N(roomIDStart)),
		rng:      rng,
		relay:    relay,
		clock:    opts.Clock,
		log:      opts.Logger,
		metrics:  opts.Metrics,
	}
}

// nextIDLocked advances the last issued id by a random step, so ids are
// strictly increasing and never repeat.
func (d *Directory) nextIDLocked() RoomID {
	prev := d.lastID
	d.lastID += 1 + RoomID(d.rng.Int64N(roomIDStep))
	if prev <= math.MaxInt32 && d.lastID > math.MaxInt32 {
		d.log.Warn("room ids exceed the 32-bit range", "id", d.lastID)
	}
	return d.lastID
}

// CreateRoom creates a room named name with s as its admin and only member.
func (d *Directory) CreateRoom(s *Session, name string) RoomID {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.clock()
	d.leaveLocked(s, now)

	room := &Room{
		id:           d.nextIDLocked(),
		name:         sanitizeField(name),
		members:      []*Session{s},
		admin:        s.id,
		createdAt:    now,
		lastActivity: now,
	}
	d.rooms = append(d.rooms, room)
	d.byID[room.id] = room
	d.byMember[s.id] = room
	d.metrics.RoomCreated()

	d.log.Info("room created", "room", room.id, "name", room.name, "admin", s.addr, "rooms", len(d.rooms))
	return room.id
}

// FindRoomByMember returns a snapshot of the room s is in.
func (d *Directory) FindRoomByMember(s *Session) (RoomInfo, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	room, ok := d.byMember[s.id]
	if !ok {
		return RoomInfo{}, false
	}
	return room.info(), true
}

// FindRoomByID returns a snapshot of the room with the given id.
func (d *Directory) FindRoomByID(id RoomID) (RoomInfo, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	room, ok := d.byID[id]
	if !ok {
		return RoomInfo{}, false
	}
	return room.info(), true
}

// JoinRoom adds s to the room with the given id, leaving its current room
// first, and queues #CONNECTED for s ahead of any traffic from the room.
// Joining the room s is already in changes nothing but the reply. A session
// joining a room that has no admin becomes its admin.
func (d *Directory) JoinRoom(id RoomID, s *Session) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	room, ok := d.byID[id]
	if !ok {
		return ErrRoomNotFound
	}
	now := d.clock()
	if current := d.byMember[s.id]; current == room {
		room.touch(now)
		d.relay.SendDirect(s, ReplyConnected)
		return nil
	}

	d.leaveLocked(s, now)
	room.members = append(room.members, s)
	d.byMember[s.id] = room
	room.touch(now)
	if room.admin == "" {
		room.admin = s.id
		d.log.Info("room admin adopted", "room", room.id, "admin", s.addr)
	}

	d.log.Info("client joined room", "addr", s.addr, "room", room.id, "members", len(room.members))
	d.relay.SendDirect(s, ReplyConnected)
	return nil
}

// LeaveRoom removes s from its room and sends the updated member list to
// the members that remain.
func (d *Directory) LeaveRoom(s *Session) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.leaveLocked(s, d.clock()) {
		return ErrNotAMember
	}
	return nil
}

// Disconnect removes a session that is going away from whatever room it
// is in.
func (d *Directory) Disconnect(s *Session) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.leaveLocked(s, d.clock())
}

func (d *Directory) leaveLocked(s *Session, now time.Time) bool {
	room, ok := d.byMember[s.id]
	if !ok {
		return false
	}
	delete(d.byMember, s.id)
	wasAdmin := room.admin == s.id
	room.remove(s)
	room.touch(now)

	d.log.Info("client left room", "addr", s.addr, "room", room.id, "members", len(room.members))
	if wasAdmin && room.admin != "" {
		d.log.Info("room admin promoted", "room", room.id, "admin", room.members[0].addr)
	}
	if len(room.members) > 0 {
		d.relay.Broadcast(room.members, ReplyPlayers+SerializeMembers(room.memberInfos()), nil)
	}
	return true
}

// CloseRoom closes the room administered by s. Every member, s included,
// receives the closure notice before the room is removed.
func (d *Directory) CloseRoom(s *Session) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	room, ok := d.byMember[s.id]
	if !ok {
		return ErrNotAMember
	}
	if room.admin != s.id {
		return ErrNotAdmin
	}

	d.relay.Broadcast(room.members, ReplyClosed, nil)
	d.removeLocked(map[RoomID]string{room.id: RemovedClosed})
	return nil
}

// UpdateNickname renames s and sends the member list to the whole room.
func (d *Directory) UpdateNickname(s *Session, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	room, ok := d.byMember[s.id]
	if !ok {
		return ErrNotAMember
	}
	s.setNickname(sanitizeField(name))
	room.touch(d.clock())

	d.relay.Broadcast(room.members, ReplyPlayers+SerializeMembers(room.memberInfos()), nil)
	return nil
}

// RelayFrom sends msg to every other member of the room s is in and counts
// as activity for that room.
func (d *Directory) RelayFrom(s *Session, msg string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	room, ok := d.byMember[s.id]
	if !ok {
		return ErrNotAMember
	}
	room.touch(d.clock())
	d.relay.Broadcast(room.members, msg, s)
	return nil
}

// ListRooms returns the rooms in creation order.
func (d *Directory) ListRooms() []RoomEntry {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]RoomEntry, len(d.rooms))
	for i, r := range d.rooms {
		out[i] = RoomEntry{Name: r.name, ID: r.id}
	}
	return out
}

// Members returns the member list of a room with indexes assigned densely.
func (d *Directory) Members(id RoomID) ([]MemberInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	room, ok := d.byID[id]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return room.memberInfos(), nil
}

// Snapshot copies every room, in creation order.
func (d *Directory) Snapshot() []RoomInfo {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]RoomInfo, len(d.rooms))
	for i, r := range d.rooms {
		out[i] = r.info()
	}
	return out
}

// Len returns the number of rooms.
func (d *Directory) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.rooms)
}

// Sweep evicts rooms that have no members or have been idle for at least
// idle as of now. Members of an evicted room get the closure notice first.
// It returns the evicted ids.
func (d *Directory) Sweep(now time.Time, idle time.Duration) []RoomID {
	d.mu.Lock()
	defer d.mu.Unlock()

	evict := make(map[RoomID]string)
	for _, r := range d.rooms {
		switch {
		case len(r.members) == 0:
			evict[r.id] = RemovedEmpty
		case now.Sub(r.lastActivity) >= idle:
			evict[r.id] = RemovedIdle
		}
	}
	if len(evict) == 0 {
		return nil
	}

	ids := make([]RoomID, 0, len(evict))
	for _, r := range d.rooms {
		if _, ok := evict[r.id]; !ok {
			continue
		}
		if len(r.members) > 0 {
			d.relay.Broadcast(r.members, ReplyClosed, nil)
		}
		ids = append(ids, r.id)
	}
	d.removeLocked(evict)
	return ids
}

// removeLocked drops the given rooms and their memberships. The room list
// is compacted in one pass after all candidates are known.
func (d *Directory) removeLocked(evict map[RoomID]string) {
	for id, reason := range evict {
		room, ok := d.byID[id]
		if !ok {
			continue
		}
		for _, m := range room.members {
			delete(d.byMember, m.id)
		}
		delete(d.byID, id)
		d.metrics.RoomRemoved(reason)
		d.log.Info("room removed", "room", id, "name", room.name, "reason", reason, "members", len(room.members))
	}
	d.rooms = slices.DeleteFunc(d.rooms, func(r *Room) bool {
		_, gone := evict[r.id]
		return gone
	})
}
