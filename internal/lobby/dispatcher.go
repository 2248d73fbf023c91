package lobby

import (
	"errors"
	"log/slog"
	"time"

	"github.com/Tyrowin/lobby-relay/internal/metrics"
)

// Dispatcher applies inbound lines to the directory and sends the replies.
// Every command error ends here as a reply to the caller.
type Dispatcher struct {
	dir     *Directory
	relay   *Relay
	clock   func() time.Time
	log     *slog.Logger
	metrics *metrics.Lobby
}

// NewDispatcher creates a dispatcher over dir.
func NewDispatcher(dir *Directory, relay *Relay, opts Options) *Dispatcher {
	opts = opts.withDefaults()
	return &Dispatcher{
		dir:     dir,
		relay:   relay,
		clock:   opts.Clock,
		log:     opts.Logger,
		metrics: opts.Metrics,
	}
}

// Handle processes one line from s. The returned error has already been
// reported to the client; transports only log it.
func (d *Dispatcher) Handle(s *Session, line string) error {
	cmd := ParseCommand(line)
	d.metrics.Command(cmd.Kind.String())

	err := d.apply(s, cmd)
	if err != nil {
		d.reject(s, cmd, err)
	}
	return err
}

func (d *Dispatcher) apply(s *Session, cmd Command) error {
	switch cmd.Kind {
	case CmdEmpty:
		return nil

	case CmdCreateRoom:
		d.dir.CreateRoom(s, cmd.Arg)
		d.relay.SendDirect(s, ReplyRooms+SerializeRooms(d.dir.ListRooms()))
		d.relay.SendDirect(s, ReplyConnected)
		return nil

	case CmdJoinRoom:
		id, err := ParseRoomID(cmd.Arg)
		if err != nil {
			return ErrRoomNotFound
		}
		return d.dir.JoinRoom(id, s)

	case CmdCloseRoom:
		return d.dir.CloseRoom(s)

	case CmdGetRooms:
		d.relay.SendDirect(s, ReplyRooms+SerializeRooms(d.dir.ListRooms()))
		return nil

	case CmdLeaveRoom:
		return d.dir.LeaveRoom(s)

	case CmdUpdateNickname:
		return d.dir.UpdateNickname(s, cmd.Arg)

	case CmdPing:
		s.beginPing(d.clock())
		d.relay.SendDirect(s, ReplyPing)
		return nil

	case CmdPong:
		if rtt, ok := s.completePing(d.clock()); ok {
			d.metrics.PingObserved(rtt.Seconds())
			d.log.Debug("ping measured", "addr", s.addr, "rtt", rtt)
		}
		return nil

	case CmdChat:
		return d.dir.RelayFrom(s, ReplyChat+cmd.Arg)

	default:
		return d.dir.RelayFrom(s, cmd.Arg)
	}
}

func (d *Dispatcher) reject(s *Session, cmd Command, err error) {
	var reply string
	switch {
	case errors.Is(err, ErrRoomNotFound):
		reply = ReplyRoomNotFound
	case errors.Is(err, ErrNotAdmin):
		reply = ReplyNotAdmin
	case errors.Is(err, ErrNotAMember):
		reply = ReplyNotAMember
	default:
		d.log.Error("command failed", "addr", s.addr, "command", cmd.Kind, "err", err)
		return
	}
	d.log.Debug("command rejected", "addr", s.addr, "command", cmd.Kind, "err", err)
	d.relay.SendDirect(s, reply)
}

// Disconnect removes s from the directory and closes its outbound queue.
func (d *Dispatcher) Disconnect(s *Session) {
	d.dir.Disconnect(s)
	s.Close()
}
