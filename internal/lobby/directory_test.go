package lobby

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"
)

// TestCreateRoomIDsAreUnique verifies that ids never repeat, even when many
// rooms are created at the same instant, and that they fit the 32-bit ids
// clients parse.
func TestCreateRoomIDsAreUnique(t *testing.T) {
	l := newTestLobby(t)
	seen := make(map[RoomID]bool)
	var last RoomID

	for i := 0; i < 5000; i++ {
		s := NewSession(fmt.Sprintf("client-%d", i), 4)
		id := l.dir.CreateRoom(s, "room")
		if seen[id] {
			t.Fatalf("Room id %d issued twice", id)
		}
		if id <= last {
			t.Fatalf("Room id %d issued after %d", id, last)
		}
		if id <= 0 || id > math.MaxInt32 {
			t.Fatalf("Room id %d outside the 32-bit range", id)
		}
		seen[id] = true
		last = id
	}
}

// TestCreateRoomMakesCallerAdmin verifies the initial state of a new room.
func TestCreateRoomMakesCallerAdmin(t *testing.T) {
	l := newTestLobby(t)
	a := NewSession("a", 4)

	id := l.dir.CreateRoom(a, "Arena1")
	room, ok := l.dir.FindRoomByID(id)
	if !ok {
		t.Fatal("Created room not found")
	}
	if room.Name != "Arena1" {
		t.Errorf("Expected name Arena1, got %q", room.Name)
	}
	if room.Admin != a.ID() {
		t.Errorf("Expected admin %s, got %s", a.ID(), room.Admin)
	}
	if len(room.Members) != 1 || !room.HasMember(a.ID()) {
		t.Errorf("Expected the creator as sole member, got %+v", room.Members)
	}
	if !room.CreatedAt.Equal(l.clock.Now()) || !room.LastActivity.Equal(l.clock.Now()) {
		t.Error("Expected creation and activity timestamps to be now")
	}

	byMember, ok := l.dir.FindRoomByMember(a)
	if !ok || byMember.ID != id {
		t.Errorf("FindRoomByMember returned %v, %v", byMember.ID, ok)
	}
}

// TestJoinRoom verifies membership after valid and invalid joins.
func TestJoinRoom(t *testing.T) {
	l := newTestLobby(t)
	a := NewSession("a", 4)
	b := NewSession("b", 4)
	id := l.dir.CreateRoom(a, "Arena1")

	if err := l.dir.JoinRoom(id+1, b); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("Expected ErrRoomNotFound, got %v", err)
	}
	if _, ok := l.dir.FindRoomByMember(b); ok {
		t.Error("Failed join changed membership")
	}

	for i := 0; i < 2; i++ {
		if err := l.dir.JoinRoom(id, b); err != nil {
			t.Fatalf("JoinRoom failed: %v", err)
		}
	}
	members, err := l.dir.Members(id)
	if err != nil {
		t.Fatalf("Members failed: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("Expected 2 members after repeated join, got %d", len(members))
	}
	if members[1].SessionID != b.ID() || members[1].Index != 1 {
		t.Errorf("Expected b at index 1, got %+v", members[1])
	}
	expectMessages(t, b, ReplyConnected, ReplyConnected)
}

// TestJoinEmptiedRoomAdoptsAdmin verifies that a room whose members all left
// gets an admin again from the next joiner, who can then close it.
func TestJoinEmptiedRoomAdoptsAdmin(t *testing.T) {
	l := newTestLobby(t)
	a := NewSession("a", 4)
	b := NewSession("b", 4)
	id := l.dir.CreateRoom(a, "room")
	if err := l.dir.LeaveRoom(a); err != nil {
		t.Fatalf("LeaveRoom failed: %v", err)
	}

	if err := l.dir.JoinRoom(id, b); err != nil {
		t.Fatalf("JoinRoom failed: %v", err)
	}
	room, _ := l.dir.FindRoomByID(id)
	if room.Admin != b.ID() {
		t.Fatalf("Expected joiner to become admin, admin is %q", room.Admin)
	}
	drain(b)

	l.send(t, b, "close_room")
	expectMessages(t, b, ReplyClosed)
	if _, ok := l.dir.FindRoomByID(id); ok {
		t.Error("Room still present after close by adopted admin")
	}
}

// TestJoinRoomMovesBetweenRooms verifies that a session is never in two
// rooms at once.
func TestJoinRoomMovesBetweenRooms(t *testing.T) {
	l := newTestLobby(t)
	a := NewSession("a", 4)
	b := NewSession("b", 4)
	c := NewSession("c", 4)
	first := l.dir.CreateRoom(a, "first")
	second := l.dir.CreateRoom(b, "second")

	if err := l.dir.JoinRoom(first, c); err != nil {
		t.Fatalf("JoinRoom first failed: %v", err)
	}
	if err := l.dir.JoinRoom(second, c); err != nil {
		t.Fatalf("JoinRoom second failed: %v", err)
	}

	firstRoom, _ := l.dir.FindRoomByID(first)
	if firstRoom.HasMember(c.ID()) {
		t.Error("Session still listed in the room it moved out of")
	}
	current, ok := l.dir.FindRoomByMember(c)
	if !ok || current.ID != second {
		t.Errorf("Expected session in room %d, got %d (%v)", second, current.ID, ok)
	}
	expectMessages(t, a, ReplyPlayers+"0,,0,0")
}

// TestLeaveRoomPreservesOtherMembers verifies that leaving removes exactly
// the caller and tells the others.
func TestLeaveRoomPreservesOtherMembers(t *testing.T) {
	l := newTestLobby(t)
	a := NewSession("a", 4)
	b := NewSession("b", 4)
	c := NewSession("c", 4)
	id := l.dir.CreateRoom(a, "room")
	_ = l.dir.JoinRoom(id, b)
	_ = l.dir.JoinRoom(id, c)
	_ = l.dir.UpdateNickname(a, "anna")
	_ = l.dir.UpdateNickname(c, "carl")
	drain(a)
	drain(b)
	drain(c)

	l.clock.Advance(time.Second)
	if err := l.dir.LeaveRoom(b); err != nil {
		t.Fatalf("LeaveRoom failed: %v", err)
	}

	members, _ := l.dir.Members(id)
	if len(members) != 2 || members[0].SessionID != a.ID() || members[1].SessionID != c.ID() {
		t.Fatalf("Unexpected members after leave: %+v", members)
	}
	if members[0].Nickname != "anna" || members[1].Nickname != "carl" {
		t.Errorf("Member data changed after leave: %+v", members)
	}

	want := ReplyPlayers + "0,anna,0,0;1,carl,0,0"
	expectMessages(t, a, want)
	expectMessages(t, c, want)
	expectNoMessage(t, b)

	room, _ := l.dir.FindRoomByID(id)
	if !room.LastActivity.Equal(l.clock.Now()) {
		t.Error("Leaving did not refresh room activity")
	}
	if err := l.dir.LeaveRoom(b); !errors.Is(err, ErrNotAMember) {
		t.Errorf("Expected ErrNotAMember on second leave, got %v", err)
	}
}

// TestAdminLeavePromotesNextMember verifies the admin hand-off policy.
func TestAdminLeavePromotesNextMember(t *testing.T) {
	l := newTestLobby(t)
	a := NewSession("a", 4)
	b := NewSession("b", 4)
	c := NewSession("c", 4)
	id := l.dir.CreateRoom(a, "room")
	_ = l.dir.JoinRoom(id, b)
	_ = l.dir.JoinRoom(id, c)

	l.dir.Disconnect(a)

	room, _ := l.dir.FindRoomByID(id)
	if room.Admin != b.ID() {
		t.Errorf("Expected b to be promoted, admin is %q", room.Admin)
	}
	if err := l.dir.CloseRoom(c); !errors.Is(err, ErrNotAdmin) {
		t.Errorf("Expected ErrNotAdmin for c, got %v", err)
	}
	if err := l.dir.CloseRoom(b); err != nil {
		t.Errorf("Promoted admin could not close: %v", err)
	}
}

// TestCloseRoomRequiresAdmin verifies that only the admin can close and that
// a rejected close leaves the room as it was.
func TestCloseRoomRequiresAdmin(t *testing.T) {
	l := newTestLobby(t)
	a := NewSession("a", 4)
	b := NewSession("b", 4)
	outsider := NewSession("x", 4)
	id := l.dir.CreateRoom(a, "room")
	_ = l.dir.JoinRoom(id, b)
	expectMessages(t, b, ReplyConnected)

	if err := l.dir.CloseRoom(b); !errors.Is(err, ErrNotAdmin) {
		t.Errorf("Expected ErrNotAdmin, got %v", err)
	}
	if err := l.dir.CloseRoom(outsider); !errors.Is(err, ErrNotAMember) {
		t.Errorf("Expected ErrNotAMember, got %v", err)
	}
	if room, ok := l.dir.FindRoomByID(id); !ok || len(room.Members) != 2 {
		t.Fatal("Rejected close modified the room")
	}

	if err := l.dir.CloseRoom(a); err != nil {
		t.Fatalf("Admin close failed: %v", err)
	}
	if _, ok := l.dir.FindRoomByID(id); ok {
		t.Error("Room still present after close")
	}
	if _, ok := l.dir.FindRoomByMember(b); ok {
		t.Error("Member still mapped to a closed room")
	}
	expectMessages(t, a, ReplyClosed)
	expectMessages(t, b, ReplyClosed)
}

// TestListRoomsInsertionOrder verifies that the listing follows creation
// order and skips removed rooms.
func TestListRoomsInsertionOrder(t *testing.T) {
	l := newTestLobby(t)
	names := []string{"one", "two", "three"}
	sessions := make([]*Session, len(names))
	for i, name := range names {
		sessions[i] = NewSession(name, 4)
		l.dir.CreateRoom(sessions[i], name)
	}
	_ = l.dir.CloseRoom(sessions[1])

	rooms := l.dir.ListRooms()
	if len(rooms) != 2 || rooms[0].Name != "one" || rooms[1].Name != "three" {
		t.Errorf("Unexpected listing: %+v", rooms)
	}
}

// TestLastActivityNeverMovesBack verifies that a clock going backwards does
// not rewind room activity.
func TestLastActivityNeverMovesBack(t *testing.T) {
	l := newTestLobby(t)
	a := NewSession("a", 4)
	id := l.dir.CreateRoom(a, "room")
	before, _ := l.dir.FindRoomByID(id)

	l.clock.Advance(-time.Minute)
	_ = l.dir.RelayFrom(a, "x")

	after, _ := l.dir.FindRoomByID(id)
	if after.LastActivity.Before(before.LastActivity) {
		t.Errorf("Activity moved back from %v to %v", before.LastActivity, after.LastActivity)
	}
}

// TestConcurrentDirectoryAccess exercises commands and sweeps from many
// goroutines at once; run with -race.
func TestConcurrentDirectoryAccess(t *testing.T) {
	l := newTestLobby(t)
	host := NewSession("host", 1024)
	id := l.dir.CreateRoom(host, "shared")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			s := NewSession(fmt.Sprintf("client-%d", n), 1024)
			for j := 0; j < 50; j++ {
				l.send(t, s, "join_room:"+id.String())
				l.send(t, s, "CHAT:hi")
				l.send(t, s, "updating_nickname:n")
				l.send(t, s, "get_rooms")
				l.send(t, s, "leave_room")
			}
			l.dispatcher.Disconnect(s)
		}(i)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 100; j++ {
			l.reaper.Sweep()
		}
	}()
	wg.Wait()

	if room, ok := l.dir.FindRoomByID(id); ok && len(room.Members) != 1 {
		t.Errorf("Expected only the host to remain, got %d members", len(room.Members))
	}
}
