// Package client implements the peer role: startup registration, the
// free/in-group mode state machine, the offline inbox, and the
// listener/driver goroutine pair that mirror the server's.
//
// It generalizes the teacher's node.go peer-facing half: a blocking
// receive loop feeding a dispatch switch, plus a command-driven driver
// reading from the terminal, coordinated through context cancellation
// rather than the teacher's quit channel.
package client

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"

	"github.com/prometheus/common/log"
	"golang.org/x/sync/errgroup"

	"github.com/zeromq/udpchat/internal/listener"
	"github.com/zeromq/udpchat/internal/reliable"
	"github.com/zeromq/udpchat/internal/wire"
)

// Mode is the client's state (§4.4): free or bound to exactly one
// group. The group's name is held separately in Client.group, so the
// type does not rule out InGroup with an empty name; the commands that
// change mode set both fields together under Client.mu.
type Mode int

const (
	Free Mode = iota
	InGroup
)

// Config collects the validated startup arguments (`-c <name> <ip>
// <sport> <cport>`, §6).
type Config struct {
	Name       string
	ServerIP   string
	ServerPort uint16
	ClientPort uint16
}

// Client is the peer role's runtime state.
type Client struct {
	conn       *net.UDPConn
	serverAddr *net.UDPAddr
	slot       *reliable.Slot
	self       wire.Metadata

	mu      sync.Mutex
	mirror  []wire.Record
	mode    Mode
	group   string
	inbox   []string

	shuttingDown atomic.Bool
}

// New binds a UDP socket on cfg.ClientPort and resolves the server
// address. It does not register; call Run to do that.
func New(cfg Config) (*Client, error) {
	serverAddr := &net.UDPAddr{IP: net.ParseIP(cfg.ServerIP), Port: int(cfg.ServerPort)}

	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: int(cfg.ClientPort)})
	if err != nil {
		return nil, fmt.Errorf("client: listen on port %d: %w", cfg.ClientPort, err)
	}

	localIP, err := outboundIP(serverAddr)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("client: determine local address: %w", err)
	}

	return &Client{
		conn:       conn,
		serverAddr: serverAddr,
		slot:       reliable.NewSlot(),
		self:       wire.Metadata{Name: cfg.Name, IP: localIP, Port: cfg.ClientPort},
		mode:       Free,
	}, nil
}

// outboundIP discovers which local address the kernel would route
// through to reach dest, without sending any traffic (UDP dial does
// not touch the network until a write).
func outboundIP(dest *net.UDPAddr) (string, error) {
	c, err := net.DialUDP("udp", nil, dest)
	if err != nil {
		return "", err
	}
	defer c.Close()
	return c.LocalAddr().(*net.UDPAddr).IP.String(), nil
}

// Run registers with the server, then drives the listener and the
// terminal command loop until ctx is cancelled or the client shuts
// itself down (name collision, server unresponsive, notified leave).
func (c *Client) Run(ctx context.Context) error {
	defer c.conn.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	inbox := make(chan listener.Incoming, 256)

	lp := listener.New(c.conn, c.slot)
	g.Go(func() error { return lp.Run(ctx, inbox) })

	// The listener must already be reading the socket before register
	// sends: it is what delivers the matching register_ack into the
	// slot's rendezvous. Registering before starting it would make
	// every registration attempt time out with nothing to blame.
	if !c.register(ctx) {
		cancel()
		g.Wait()
		return nil
	}

	g.Go(func() error { return c.dispatchLoop(ctx, inbox, cancel) })
	g.Go(func() error { return c.inputLoop(ctx, cancel) })

	return g.Wait()
}

func (c *Client) register(ctx context.Context) bool {
	seq := c.slot.NextSeq()
	frame := &wire.Register{}
	frame.SetMeta(wire.Metadata{Name: c.self.Name, IP: c.self.IP, Port: c.self.Port, Seq: seq})

	outcome, got, err := c.slot.Send(ctx, c.writeToServer, frame, func(f wire.Frame) bool {
		ack, ok := f.(*wire.RegisterAck)
		return ok && ack.Meta().Seq == seq
	})
	if err != nil {
		log.Errorf("client: register: %v", err)
		return false
	}
	if outcome == reliable.TimedOut {
		fmt.Println("[Server not responding]")
		fmt.Println("[Exiting]")
		return false
	}

	ack := got.(*wire.RegisterAck)
	if !ack.OK {
		fmt.Printf("[`%s` already exists!]\n", c.self.Name)
		return false
	}

	fmt.Println("[Welcome, You are registered.]")
	return true
}

func (c *Client) writeToServer(b []byte) error {
	_, err := c.conn.WriteToUDP(b, c.serverAddr)
	return err
}

func (c *Client) dispatchLoop(ctx context.Context, inbox <-chan listener.Incoming, cancel context.CancelFunc) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case in := <-inbox:
			c.handleInbound(in.Frame)
		}
	}
}

func (c *Client) handleInbound(f wire.Frame) {
	switch m := f.(type) {
	case *wire.Msg:
		c.handleMsg(m)
	case *wire.GroupMsg:
		c.handleGroupMsg(m)
	case *wire.Table:
		c.handleTable(m)
	default:
		log.Warnf("client: no handler for frame kind %s", f.Kind())
	}
}

func (c *Client) handleMsg(m *wire.Msg) {
	from := m.Meta().Name

	ack := &wire.MsgAck{}
	ack.SetMeta(wire.EchoMeta(c.self, m.Meta()))
	data, err := wire.Encode(ack)
	if err == nil {
		c.conn.WriteToUDP(data, c.peerAddrFromMeta(m.Meta()))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode == Free {
		fmt.Printf("[%s: %s]\n", from, m.Text)
	} else {
		c.inbox = append(c.inbox, fmt.Sprintf("%s: %s", from, m.Text))
	}
}

func (c *Client) peerAddrFromMeta(m wire.Metadata) *net.UDPAddr {
	return &net.UDPAddr{IP: net.ParseIP(m.IP), Port: int(m.Port)}
}

func (c *Client) handleGroupMsg(m *wire.GroupMsg) {
	ack := &wire.GroupMsgAck{Group: m.Group}
	ack.SetMeta(wire.EchoMeta(c.self, m.Meta()))
	data, err := wire.Encode(ack)
	if err == nil {
		c.conn.WriteToUDP(data, c.serverAddr)
	}

	c.mu.Lock()
	inGroup := c.mode == InGroup && c.group == m.Group
	c.mu.Unlock()
	if inGroup {
		fmt.Printf("Group_Message %s: %s\n", m.From, m.Text)
	}
}

func (c *Client) handleTable(m *wire.Table) {
	c.mu.Lock()
	c.mirror = m.Records
	c.mu.Unlock()

	ack := &wire.TableAck{}
	ack.SetMeta(wire.EchoMeta(c.self, m.Meta()))
	data, err := wire.Encode(ack)
	if err == nil {
		c.conn.WriteToUDP(data, c.serverAddr)
	}

	fmt.Println("[Client table updated.]")
}

// lookupPeer resolves name to an online endpoint via the local table
// mirror (§4.4 send resolves via local mirror).
func (c *Client) lookupPeer(name string) (wire.Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range c.mirror {
		if r.Name == name && r.Online {
			return r, true
		}
	}
	return wire.Record{}, false
}

func (c *Client) prompt() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode == InGroup {
		return fmt.Sprintf(">>> (%s) ", c.group)
	}
	return ">>> "
}

// inputLoop reads one command per terminal line until ctx is
// cancelled or stdin closes.
func (c *Client) inputLoop(ctx context.Context, cancel context.CancelFunc) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		fmt.Print(c.prompt())
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if c.shuttingDown.Load() {
				continue
			}
			c.dispatchCommand(ctx, line, cancel)
		}
	}
}

// stop marks the client as shutting down and cancels ctx exactly
// once; a later call (e.g. a second notified-leave race) is a no-op,
// matching the "second ^C absorbed silently" requirement (§4.6)
// extended to any shutdown trigger.
func (c *Client) stop(cancel context.CancelFunc) {
	if c.shuttingDown.CompareAndSwap(false, true) {
		cancel()
	}
}
