package client

import (
	"context"
	"fmt"
	"strings"

	"github.com/prometheus/common/log"

	"github.com/zeromq/udpchat/internal/reliable"
	"github.com/zeromq/udpchat/internal/wire"
)

// dispatchCommand parses one terminal line and runs it, or prints the
// invalid-command diagnostic if the verb isn't allowed in the current
// mode (§4.4 command grammar).
func (c *Client) dispatchCommand(ctx context.Context, line string, cancel context.CancelFunc) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}
	verb, rest := fields[0], fields[1:]

	c.mu.Lock()
	mode := c.mode
	c.mu.Unlock()

	switch verb {
	case "send":
		if mode != Free || len(rest) < 2 {
			c.invalid(line)
			return
		}
		c.cmdSend(ctx, rest[0], strings.Join(rest[1:], " "))
	case "dereg":
		if mode != Free || len(rest) != 1 {
			c.invalid(line)
			return
		}
		c.cmdDereg(ctx, rest[0], cancel)
	case "create_group":
		if mode != Free || len(rest) != 1 {
			c.invalid(line)
			return
		}
		c.cmdCreateGroup(ctx, rest[0], cancel)
	case "list_groups":
		if mode != Free || len(rest) != 0 {
			c.invalid(line)
			return
		}
		c.cmdListGroups(ctx, cancel)
	case "join_group":
		if mode != Free || len(rest) != 1 {
			c.invalid(line)
			return
		}
		c.cmdJoinGroup(ctx, rest[0], cancel)
	case "send_group":
		if mode != InGroup || len(rest) < 1 {
			c.invalid(line)
			return
		}
		c.cmdSendGroup(ctx, strings.Join(rest, " "), cancel)
	case "list_members":
		if mode != InGroup || len(rest) != 0 {
			c.invalid(line)
			return
		}
		c.cmdListMembers(ctx, cancel)
	case "leave_group":
		if mode != InGroup || len(rest) != 0 {
			c.invalid(line)
			return
		}
		c.cmdLeaveGroup(ctx, cancel)
	default:
		c.invalid(line)
	}
}

func (c *Client) invalid(line string) {
	fmt.Printf("[Invalid command: %s]\n", line)
}

// serverRequest runs one server-addressed reliable-send and routes a
// terminal timeout to the shared "server unresponsive" shutdown path
// (§4.2, §4.6). It returns the matched reply frame, or nil if the
// request timed out (the client is then shutting down) or failed.
func (c *Client) serverRequest(ctx context.Context, frame wire.Frame, seq uint16, matchKind func(wire.Frame) bool, cancel context.CancelFunc) wire.Frame {
	outcome, got, err := c.slot.Send(ctx, c.writeToServer, frame, func(f wire.Frame) bool {
		return matchKind(f) && f.Meta().Seq == seq
	})
	if err != nil {
		if err != context.Canceled {
			log.Errorf("client: server request %s: %v", frame.Kind(), err)
		}
		return nil
	}
	if outcome == reliable.TimedOut {
		fmt.Println("[Server not responding]")
		fmt.Println("[Exiting]")
		c.stop(cancel)
		return nil
	}
	return got
}

func (c *Client) cmdSend(ctx context.Context, peer, text string) {
	rec, ok := c.lookupPeer(peer)
	if !ok {
		fmt.Printf("[Unknown peer: %s]\n", peer)
		return
	}
	addr := c.peerAddrFromMeta(wire.Metadata{IP: rec.IP, Port: rec.Port})

	seq := c.slot.NextSeq()
	frame := &wire.Msg{Text: text}
	frame.SetMeta(wire.Metadata{Name: c.self.Name, IP: c.self.IP, Port: c.self.Port, Seq: seq})

	outcome, _, err := c.slot.Send(ctx, func(b []byte) error {
		_, err := c.conn.WriteToUDP(b, addr)
		return err
	}, frame, func(f wire.Frame) bool {
		ack, ok := f.(*wire.MsgAck)
		return ok && ack.Meta().Seq == seq
	})
	if err != nil {
		log.Errorf("client: send to %s: %v", peer, err)
		return
	}
	if outcome == reliable.TimedOut {
		fmt.Printf("[No ACK from %s, message not delivered]\n", peer)
		c.requestPeerDereg(peer)
		return
	}
	fmt.Printf("[Message received by %s]\n", peer)
}

// requestPeerDereg best-effort notifies the server that peer appears
// unreachable, without waiting for the result (§4.2: "asks the server
// to de-register that peer (best-effort)").
func (c *Client) requestPeerDereg(peer string) {
	frame := &wire.Dereg{Name: peer}
	frame.SetMeta(wire.Metadata{Name: c.self.Name, IP: c.self.IP, Port: c.self.Port})
	data, err := wire.Encode(frame)
	if err != nil {
		return
	}
	c.conn.WriteToUDP(data, c.serverAddr)
}

func (c *Client) cmdDereg(ctx context.Context, name string, cancel context.CancelFunc) {
	if name != c.self.Name {
		fmt.Println("[You can only deregister yourself.]")
		return
	}

	seq := c.slot.NextSeq()
	frame := &wire.Dereg{Name: name}
	frame.SetMeta(wire.Metadata{Name: c.self.Name, IP: c.self.IP, Port: c.self.Port, Seq: seq})

	reply := c.serverRequest(ctx, frame, seq, func(f wire.Frame) bool {
		_, ok := f.(*wire.DeregAck)
		return ok
	}, cancel)
	if reply == nil {
		return
	}

	fmt.Println("[You are Offline. Bye.]")
	c.stop(cancel)
}

func (c *Client) cmdCreateGroup(ctx context.Context, group string, cancel context.CancelFunc) {
	seq := c.slot.NextSeq()
	frame := &wire.CreateGroup{Group: group}
	frame.SetMeta(wire.Metadata{Name: c.self.Name, Seq: seq})

	reply := c.serverRequest(ctx, frame, seq, isReply, cancel)
	if reply == nil {
		return
	}
	r := reply.(*wire.Reply)
	if r.OK {
		fmt.Printf("[Group %s created by Server.]\n", group)
	} else {
		fmt.Printf("[Group %s already exists.]\n", group)
	}
}

func (c *Client) cmdListGroups(ctx context.Context, cancel context.CancelFunc) {
	seq := c.slot.NextSeq()
	frame := &wire.ListGroups{}
	frame.SetMeta(wire.Metadata{Name: c.self.Name, Seq: seq})

	reply := c.serverRequest(ctx, frame, seq, isReply, cancel)
	if reply == nil {
		return
	}
	r := reply.(*wire.Reply)
	if len(r.Groups) == 0 {
		fmt.Println("[No groups exist.]")
		return
	}
	fmt.Printf("[Groups: %s]\n", strings.Join(r.Groups, ", "))
}

func (c *Client) cmdJoinGroup(ctx context.Context, group string, cancel context.CancelFunc) {
	seq := c.slot.NextSeq()
	frame := &wire.JoinGroup{Group: group}
	frame.SetMeta(wire.Metadata{Name: c.self.Name, Seq: seq})

	reply := c.serverRequest(ctx, frame, seq, isReply, cancel)
	if reply == nil {
		return
	}
	r := reply.(*wire.Reply)
	if !r.OK {
		fmt.Printf("[Group %s does not exist.]\n", group)
		return
	}

	c.mu.Lock()
	c.mode = InGroup
	c.group = group
	c.mu.Unlock()
	fmt.Printf("[Entered group %s successfully!]\n", group)
}

func (c *Client) cmdSendGroup(ctx context.Context, text string, cancel context.CancelFunc) {
	c.mu.Lock()
	group := c.group
	c.mu.Unlock()

	seq := c.slot.NextSeq()
	frame := &wire.SendGroup{Group: group, Text: text}
	frame.SetMeta(wire.Metadata{Name: c.self.Name, Seq: seq})

	reply := c.serverRequest(ctx, frame, seq, isReply, cancel)
	if reply == nil {
		return
	}
	r := reply.(*wire.Reply)
	if r.OK {
		fmt.Println("[Message received by Server.]")
	} else {
		fmt.Printf("[%s]\n", r.Text)
	}
}

func (c *Client) cmdListMembers(ctx context.Context, cancel context.CancelFunc) {
	c.mu.Lock()
	group := c.group
	c.mu.Unlock()

	seq := c.slot.NextSeq()
	frame := &wire.ListMembers{Group: group}
	frame.SetMeta(wire.Metadata{Name: c.self.Name, Seq: seq})

	reply := c.serverRequest(ctx, frame, seq, isReply, cancel)
	if reply == nil {
		return
	}
	r := reply.(*wire.Reply)
	fmt.Printf("[Members in the group %s:]\n", group)
	for _, m := range r.Members {
		fmt.Printf("  %s\n", m)
	}
}

func (c *Client) cmdLeaveGroup(ctx context.Context, cancel context.CancelFunc) {
	c.mu.Lock()
	group := c.group
	c.mu.Unlock()

	seq := c.slot.NextSeq()
	frame := &wire.LeaveGroup{Group: group}
	frame.SetMeta(wire.Metadata{Name: c.self.Name, Seq: seq})

	reply := c.serverRequest(ctx, frame, seq, isReply, cancel)
	if reply == nil {
		return
	}

	c.mu.Lock()
	c.mode = Free
	c.group = ""
	drained := c.inbox
	c.inbox = nil
	c.mu.Unlock()

	fmt.Printf("[Leave group chat %s]\n", group)
	for _, entry := range drained {
		fmt.Printf("[>>> %s]\n", entry)
	}
}

func isReply(f wire.Frame) bool {
	_, ok := f.(*wire.Reply)
	return ok
}
