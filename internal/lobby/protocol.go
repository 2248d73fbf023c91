package lobby

import (
	"fmt"
	"strconv"
	"strings"
)

// Outbound message prefixes.
const (
	ReplyRooms     = "#ROOMS:"
	ReplyConnected = "#CONNECTED"
	ReplyClosed    = "#SERVER:CLOSED_CONNECTION"
	ReplyPlayers   = "#CLASS.PLAYERS_VECTOR:"
	ReplyPing      = "#PING"
	ReplyChat      = "#CHAT:"
	ReplyError     = "#ERROR:"
)

// Error replies sent back to the caller.
const (
	ReplyRoomNotFound = ReplyError + "ROOM_NOT_FOUND"
	ReplyNotAdmin     = ReplyError + "NOT_ADMIN"
	ReplyNotAMember   = ReplyError + "NOT_A_MEMBER"
)

// legacyPrefix namespaces commands sent by older clients ("c.s:get_rooms").
const legacyPrefix = "c.s:"

// emptyListing is what an empty room or member list serializes to.
const emptyListing = " "

// CommandKind enumerates the inbound commands.
type CommandKind int

const (
	CmdRelay CommandKind = iota
	CmdEmpty
	CmdCreateRoom
	CmdJoinRoom
	CmdCloseRoom
	CmdGetRooms
	CmdLeaveRoom
	CmdUpdateNickname
	CmdPing
	CmdPong
	CmdChat
)

var commandNames = map[CommandKind]string{
	CmdRelay:          "relay",
	CmdEmpty:          "empty",
	CmdCreateRoom:     "create_room",
	CmdJoinRoom:       "join_room",
	CmdCloseRoom:      "close_room",
	CmdGetRooms:       "get_rooms",
	CmdLeaveRoom:      "leave_room",
	CmdUpdateNickname: "updating_nickname",
	CmdPing:           "go_ping_me",
	CmdPong:           "pong",
	CmdChat:           "chat",
}

func (k CommandKind) String() string {
	if name, ok := commandNames[k]; ok {
		return name
	}
	return "unknown"
}

// Command is a parsed inbound line. Arg holds the text after the command
// prefix; for CmdRelay it holds the whole line.
type Command struct {
	Kind CommandKind
	Arg  string
}

var exactCommands = map[string]CommandKind{
	"get_rooms":  CmdGetRooms,
	"close_room": CmdCloseRoom,
	"leave_room": CmdLeaveRoom,
	"go_ping_me": CmdPing,
	"PONG":       CmdPong,
}

var prefixCommands = []struct {
	prefix string
	kind   CommandKind
}{
	{"create_room:", CmdCreateRoom},
	{"join_room:", CmdJoinRoom},
	{"updating_nickname:", CmdUpdateNickname},
	{"CHAT:", CmdChat},
}

// ParseCommand classifies one inbound line. Commands only match at the
// start of the line, so command text inside a payload is relayed as is.
func ParseCommand(line string) Command {
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return Command{Kind: CmdEmpty}
	}

	body := strings.TrimPrefix(line, legacyPrefix)
	if kind, ok := exactCommands[body]; ok {
		return Command{Kind: kind}
	}
	for _, pc := range prefixCommands {
		if rest, ok := strings.CutPrefix(body, pc.prefix); ok {
			return Command{Kind: pc.kind, Arg: rest}
		}
	}
	return Command{Kind: CmdRelay, Arg: line}
}

var listingReplacer = strings.NewReplacer(",", "_", ";", "_", "\n", "_", "\r", "_")

// sanitizeField replaces the listing separators so names round-trip.
func sanitizeField(s string) string {
	return listingReplacer.Replace(s)
}

// SerializeRooms renders the listing as "name,id;name,id". An empty
// listing is a single space.
func SerializeRooms(rooms []RoomEntry) string {
	if len(rooms) == 0 {
		return emptyListing
	}
	var b strings.Builder
	for i, r := range rooms {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(r.Name)
		b.WriteByte(',')
		b.WriteString(r.ID.String())
	}
	return b.String()
}

// ParseRooms is the inverse of SerializeRooms.
func ParseRooms(s string) ([]RoomEntry, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ";")
	out := make([]RoomEntry, 0, len(parts))
	for _, part := range parts {
		i := strings.LastIndexByte(part, ',')
		if i < 0 {
			return nil, fmt.Errorf("parse room entry %q: missing id", part)
		}
		id, err := ParseRoomID(part[i+1:])
		if err != nil {
			return nil, err
		}
		out = append(out, RoomEntry{Name: part[:i], ID: id})
	}
	return out, nil
}

// SerializeMembers renders "index,nickname,0,0;..." The two trailing zero
// fields are reserved slots kept for client compatibility.
func SerializeMembers(members []MemberInfo) string {
	if len(members) == 0 {
		return emptyListing
	}
	var b strings.Builder
	for i, m := range members {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(strconv.Itoa(m.Index))
		b.WriteByte(',')
		b.WriteString(m.Nickname)
		b.WriteString(",0,0")
	}
	return b.String()
}
