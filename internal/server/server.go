// Package server implements the directory server: the authoritative
// registration table and group registry, frame dispatch, the
// table-broadcast discipline, and liveness-driven eviction.
//
// It generalizes the teacher's node.go handler() select-loop (a single
// goroutine consuming commands/inboxChan/ping and mutating peers/groups
// state) to this domain's server role: one mutator goroutine drains an
// inbox fed by the listener and is the only writer of Table/Groups.
package server

import (
	"context"
	"fmt"
	"net"

	"github.com/prometheus/common/log"
	"golang.org/x/sync/errgroup"

	"github.com/zeromq/udpchat/internal/listener"
	"github.com/zeromq/udpchat/internal/reliable"
	"github.com/zeromq/udpchat/internal/wire"
)

// Server is the directory server's runtime state.
type Server struct {
	conn   *net.UDPConn
	port   int
	table  *Table
	groups *Groups
	slot   *reliable.Slot
	self   wire.Metadata
}

// New creates a server bound to conn, which must already be listening
// on the configured port.
func New(conn *net.UDPConn, port int) *Server {
	return &Server{
		conn:   conn,
		port:   port,
		table:  NewTable(),
		groups: NewGroups(),
		slot:   reliable.NewSlot(),
		self:   wire.Metadata{Name: "server"},
	}
}

// Run drives the listener and mutator goroutines until ctx is
// cancelled, then waits for both to return. This is the "coordinated
// shutdown of multiple concurrent listeners" §1 calls out, expressed
// through golang.org/x/sync/errgroup (§2.2) rather than the teacher's
// hand-rolled quit-channel/WaitGroup pair.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	inbox := make(chan listener.Incoming, 256)

	lp := listener.New(s.conn, s.slot)
	g.Go(func() error { return lp.Run(ctx, inbox) })
	g.Go(func() error { return s.mutate(ctx, inbox) })

	fmt.Printf("[Server started on port %d.]\n", s.port)

	return g.Wait()
}

func (s *Server) mutate(ctx context.Context, inbox <-chan listener.Incoming) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case in := <-inbox:
			s.handle(ctx, in.Frame, in.From)
		}
	}
}

func (s *Server) handle(ctx context.Context, f wire.Frame, from *net.UDPAddr) {
	switch m := f.(type) {
	case *wire.Register:
		s.handleRegister(m, from)
	case *wire.Dereg:
		s.handleDereg(m, from)
	case *wire.CreateGroup:
		s.handleCreateGroup(m, from)
	case *wire.ListGroups:
		s.handleListGroups(m, from)
	case *wire.JoinGroup:
		s.handleJoinGroup(m, from)
	case *wire.LeaveGroup:
		s.handleLeaveGroup(m, from)
	case *wire.ListMembers:
		s.handleListMembers(m, from)
	case *wire.SendGroup:
		s.handleSendGroup(ctx, m, from)
	default:
		log.Warnf("server: no handler for frame kind %s from %s", f.Kind(), from)
	}
}

// reply writes a frame directly to addr without expecting an ACK back
// — used for every server response except table broadcasts and group
// fan-outs, which are the only server-initiated exchanges that need
// reliable-send (§4.2).
func (s *Server) reply(f wire.Frame, addr *net.UDPAddr) {
	data, err := wire.Encode(f)
	if err != nil {
		log.Errorf("server: encode %s: %v", f.Kind(), err)
		return
	}
	if _, err := s.conn.WriteToUDP(data, addr); err != nil {
		log.Warnf("server: write to %s: %v", addr, err)
	}
}

func (s *Server) handleRegister(m *wire.Register, from *net.UDPAddr) {
	meta := m.Meta()
	ok, reason := s.table.Register(meta.Name, meta.IP, meta.Port)

	ack := &wire.RegisterAck{OK: ok, Reason: reason}
	ack.SetMeta(wire.EchoMeta(s.self, meta))
	s.reply(ack, from)

	if ok {
		log.Infof("server: registered %s (%s:%d)", meta.Name, meta.IP, meta.Port)
		s.broadcastTable()
	}
}

func (s *Server) handleDereg(m *wire.Dereg, from *net.UDPAddr) {
	meta := m.Meta()
	changed := s.table.MarkOffline(m.Name)
	s.groups.RemoveEverywhere(m.Name)

	ack := &wire.DeregAck{}
	ack.SetMeta(wire.EchoMeta(s.self, meta))
	s.reply(ack, from)

	if changed {
		log.Infof("server: deregistered %s", m.Name)
		s.broadcastTable()
	}
}

func (s *Server) handleCreateGroup(m *wire.CreateGroup, from *net.UDPAddr) {
	created := s.groups.Create(m.Group)
	r := &wire.Reply{OK: created}
	if created {
		r.Text = "created"
	} else {
		r.Text = "already exists"
	}
	r.SetMeta(wire.EchoMeta(s.self, m.Meta()))
	s.reply(r, from)
}

func (s *Server) handleListGroups(m *wire.ListGroups, from *net.UDPAddr) {
	r := &wire.Reply{OK: true, Groups: s.groups.Names()}
	r.SetMeta(wire.EchoMeta(s.self, m.Meta()))
	s.reply(r, from)
}

func (s *Server) handleJoinGroup(m *wire.JoinGroup, from *net.UDPAddr) {
	meta := m.Meta()
	exists := s.groups.Join(m.Group, meta.Name)
	r := &wire.Reply{OK: exists}
	if exists {
		r.Text = "entered"
	} else {
		r.Text = "does not exist"
	}
	r.SetMeta(wire.EchoMeta(s.self, meta))
	s.reply(r, from)
}

func (s *Server) handleLeaveGroup(m *wire.LeaveGroup, from *net.UDPAddr) {
	meta := m.Meta()
	s.groups.Leave(m.Group, meta.Name)
	r := &wire.Reply{OK: true, Text: "left"}
	r.SetMeta(wire.EchoMeta(s.self, meta))
	s.reply(r, from)
}

func (s *Server) handleListMembers(m *wire.ListMembers, from *net.UDPAddr) {
	members, exists := s.groups.Members(m.Group)
	r := &wire.Reply{OK: exists, Members: members}
	if !exists {
		r.Text = "does not exist"
	}
	r.SetMeta(wire.EchoMeta(s.self, m.Meta()))
	s.reply(r, from)
}

func (s *Server) handleSendGroup(ctx context.Context, m *wire.SendGroup, from *net.UDPAddr) {
	meta := m.Meta()
	members, exists := s.groups.Members(m.Group)
	if !exists {
		r := &wire.Reply{OK: false, Text: "does not exist"}
		r.SetMeta(wire.EchoMeta(s.self, meta))
		s.reply(r, from)
		return
	}

	for _, member := range members {
		if member == meta.Name {
			continue
		}
		s.deliverGroupMsg(ctx, m.Group, meta.Name, m.Text, member)
	}

	r := &wire.Reply{OK: true, Text: "received by Server"}
	r.SetMeta(wire.EchoMeta(s.self, meta))
	s.reply(r, from)
}

// deliverGroupMsg reliably delivers one group message to one member.
// A member that times out is removed from the group and, if still
// listed online, downgraded to offline with a table broadcast (§4.3
// send_group handler).
func (s *Server) deliverGroupMsg(ctx context.Context, group, from, text, member string) {
	rec, ok := s.table.Get(member)
	if !ok || rec.Status == Offline {
		return
	}
	addr := &net.UDPAddr{IP: net.ParseIP(rec.IP), Port: int(rec.Port)}

	seq := s.slot.NextSeq()
	frame := &wire.GroupMsg{Group: group, From: from, Text: text}
	frame.SetMeta(wire.Metadata{Name: s.self.Name, Seq: seq})

	outcome, _, err := s.slot.Send(ctx, s.writeTo(addr), frame, func(f wire.Frame) bool {
		ack, ok := f.(*wire.GroupMsgAck)
		return ok && ack.Meta().Seq == seq && ack.Group == group
	})
	if err != nil {
		log.Errorf("server: send group_msg to %s: %v", member, err)
		return
	}
	if outcome == reliable.TimedOut {
		s.groups.Leave(group, member)
		if s.table.MarkOffline(member) {
			s.groups.RemoveEverywhere(member)
			s.broadcastTable()
		}
	}
}

func (s *Server) writeTo(addr *net.UDPAddr) func([]byte) error {
	return func(b []byte) error {
		_, err := s.conn.WriteToUDP(b, addr)
		return err
	}
}

// broadcastTable sends the full table to every online client via
// reliable-send. A recipient that times out is downgraded to offline
// and removed from every group, which changes the table again, so the
// whole cycle repeats against the now-smaller online set — this is
// guaranteed to terminate because each cycle either leaves the online
// set unchanged (and returns) or strictly shrinks it (§4.3, §9
// Broadcast convergence).
func (s *Server) broadcastTable() {
	for {
		online := s.table.OnlineNames()
		if len(online) == 0 {
			return
		}

		evicted := false
		for _, name := range online {
			rec, ok := s.table.Get(name)
			if !ok || rec.Status == Offline {
				continue
			}
			if s.sendTableTo(rec) == reliable.TimedOut {
				s.table.MarkOffline(rec.Name)
				s.groups.RemoveEverywhere(rec.Name)
				evicted = true
			}
		}
		if !evicted {
			return
		}
		log.Infof("server: broadcast eviction occurred, converging on a smaller online set")
	}
}

func (s *Server) sendTableTo(rec Record) reliable.Outcome {
	addr := &net.UDPAddr{IP: net.ParseIP(rec.IP), Port: int(rec.Port)}

	snapshot := s.table.Snapshot()
	records := make([]wire.Record, len(snapshot))
	for i, r := range snapshot {
		records[i] = wire.Record{Name: r.Name, IP: r.IP, Port: r.Port, Online: r.Status == Online}
	}

	seq := s.slot.NextSeq()
	frame := &wire.Table{Records: records}
	frame.SetMeta(wire.Metadata{Name: s.self.Name, Seq: seq})

	outcome, _, err := s.slot.Send(context.Background(), s.writeTo(addr), frame, func(f wire.Frame) bool {
		ack, ok := f.(*wire.TableAck)
		return ok && ack.Meta().Seq == seq
	})
	if err != nil {
		log.Errorf("server: broadcast to %s: %v", rec.Name, err)
		return reliable.TimedOut
	}
	return outcome
}
