// Package listener implements the datagram receive loop shared by the
// directory server and its clients: bind once, read with a short
// deadline so a cooperative stop is responsive, decode, and either
// feed a waiting reliable-send rendezvous or hand the frame to the
// owning goroutine for synchronous handling.
//
// This generalizes the teacher's beacon background-goroutine shape
// (bind once, loop until silenced) to a plain net.UDPConn receive loop,
// since spec.md requires raw UDP rather than a 0MQ-mediated socket.
package listener

import (
	"context"
	"net"
	"time"

	"github.com/prometheus/common/log"

	"github.com/zeromq/udpchat/internal/reliable"
	"github.com/zeromq/udpchat/internal/wire"
)

// readDeadline bounds a single blocking read so Run can notice ctx
// cancellation between receives without a separate interrupt pipe.
const readDeadline = 200 * time.Millisecond

const maxDatagram = 65507

// Incoming is one decoded frame alongside the address it arrived from.
type Incoming struct {
	Frame wire.Frame
	From  *net.UDPAddr
}

// Loop is a per-role receive loop. A Loop's Slot, if non-nil, gets the
// first look at every decoded frame; frames it doesn't consume as a
// matching ACK are pushed onto the caller-owned inbox channel.
type Loop struct {
	conn *net.UDPConn
	slot *reliable.Slot
}

// New creates a receive loop bound to conn. slot may be nil for a role
// that never originates a reliable-send on this socket.
func New(conn *net.UDPConn, slot *reliable.Slot) *Loop {
	return &Loop{conn: conn, slot: slot}
}

// Run blocks until ctx is cancelled or the socket errors unrecoverably.
// inbox must be serviced promptly by the caller; Run never invokes
// handler logic itself. Matching ACKs go to the slot without touching
// inbox, but once inbox is full Run blocks on it and stops reading the
// socket, ACKs included, until the consumer takes a frame.
func (l *Loop) Run(ctx context.Context, inbox chan<- Incoming) error {
	buf := make([]byte, maxDatagram)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := l.conn.SetReadDeadline(time.Now().Add(readDeadline)); err != nil {
			return err
		}

		n, addr, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			log.Warnf("listener: read error: %v", err)
			continue
		}

		frame, err := wire.Decode(buf[:n])
		if err != nil {
			log.Warnf("listener: dropping datagram from %s: %v", addr, err)
			continue
		}

		if l.slot != nil && l.slot.Offer(frame) {
			continue
		}

		select {
		case inbox <- Incoming{Frame: frame, From: addr}:
		case <-ctx.Done():
			return nil
		}
	}
}
