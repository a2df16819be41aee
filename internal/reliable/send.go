// Package reliable implements the single reliability mechanism used by
// both client and server: an ACK-gated, bounded-retry send over an
// unreliable datagram transport. It is parameterised by an ACK
// predicate rather than wired per call site, the way the upstream
// library's retry behavior was a cross-cutting decorator over many
// operations — here it collapses to one function.
package reliable

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/common/log"

	"github.com/zeromq/udpchat/internal/wire"
)

// AckTimeout bounds a single attempt's wait for a matching reply.
const AckTimeout = 500 * time.Millisecond

// MaxAttempts bounds the total number of transmissions of one frame.
const MaxAttempts = 5

// Outcome reports how a Send concluded.
type Outcome int

const (
	Delivered Outcome = iota
	TimedOut
)

// ErrBusy is returned when Send is called while a previous Send on the
// same Slot has not yet concluded. Spec requires at most one
// reliable-send in flight per originator.
var ErrBusy = errors.New("reliable: a send is already in flight")

// AckPredicate reports whether an inbound frame satisfies the send
// currently waiting on a Slot — matching type and, where applicable,
// a correlating key such as group name.
type AckPredicate func(wire.Frame) bool

// Slot is a single-slot ACK rendezvous: at most one outstanding wait at
// a time, fed by the listener goroutine and drained by the goroutine
// running Send.
type Slot struct {
	state slotState
}

type slotState struct {
	mu   sync.Mutex
	busy bool
	pred AckPredicate
	ch   chan wire.Frame
	seq  uint16
}

// NewSlot creates an idle rendezvous.
func NewSlot() *Slot {
	return &Slot{}
}

// NextSeq hands out the next sequence number for this originator. A
// caller about to start a reliable-send stamps it onto the outbound
// frame's Metadata.Seq and builds an AckPredicate that checks for the
// same value echoed back, so a straggling ACK from an earlier,
// already-concluded Send cannot be mistaken for the current one.
func (s *Slot) NextSeq() uint16 {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	s.state.seq++
	return s.state.seq
}

// Offer is called by the listener loop for every decoded inbound
// frame. It returns true if the frame matched the currently-awaited
// predicate and was handed to the waiting Send call; false means the
// caller should dispatch the frame to its regular handler instead.
func (s *Slot) Offer(f wire.Frame) bool {
	s.state.mu.Lock()
	pred, ch := s.state.pred, s.state.ch
	s.state.mu.Unlock()

	if pred == nil || ch == nil || !pred(f) {
		return false
	}
	select {
	case ch <- f:
		return true
	default:
		// A previous candidate is still sitting unread; this is at
		// most a retransmitted duplicate ACK. It is not handed to Send,
		// so the caller dispatches it like any other frame.
		return false
	}
}

// Send transmits frame via writeFn, waits up to AckTimeout for a frame
// satisfying pred (delivered through Offer), and retransmits on
// timeout, transmitting at most MaxAttempts times in all. It returns Delivered with the
// matching frame, or TimedOut with a nil frame after the final
// attempt. ctx cancellation aborts an in-progress wait early.
func (s *Slot) Send(ctx context.Context, writeFn func([]byte) error, frame wire.Frame, pred AckPredicate) (Outcome, wire.Frame, error) {
	s.state.mu.Lock()
	if s.state.busy {
		s.state.mu.Unlock()
		return 0, nil, ErrBusy
	}
	s.state.busy = true
	ch := make(chan wire.Frame, 1)
	s.state.pred = pred
	s.state.ch = ch
	s.state.mu.Unlock()

	defer func() {
		s.state.mu.Lock()
		s.state.busy = false
		s.state.pred = nil
		s.state.ch = nil
		s.state.mu.Unlock()
	}()

	data, err := wire.Encode(frame)
	if err != nil {
		return 0, nil, err
	}

	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		if err := writeFn(data); err != nil {
			return 0, nil, err
		}

		timer := time.NewTimer(AckTimeout)
		select {
		case <-ctx.Done():
			timer.Stop()
			return 0, nil, ctx.Err()
		case got := <-ch:
			timer.Stop()
			return Delivered, got, nil
		case <-timer.C:
			log.Warnf("reliable: attempt %d/%d for %s timed out", attempt, MaxAttempts, frame.Kind())
		}
	}

	log.Errorf("reliable: %s exhausted %d attempts, giving up", frame.Kind(), MaxAttempts)
	return TimedOut, nil, nil
}

// Busy reports whether a Send is currently in flight on this slot.
func (s *Slot) Busy() bool {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	return s.state.busy
}
