package reliable

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zeromq/udpchat/internal/wire"
)

func ackAll(wire.Frame) bool { return true }

func TestSendDeliveredOnFirstAttempt(t *testing.T) {
	slot := NewSlot()
	var writes int32

	ack := &wire.MsgAck{}
	go func() {
		time.Sleep(10 * time.Millisecond)
		slot.Offer(ack)
	}()

	outcome, got, err := slot.Send(context.Background(), func(_ []byte) error {
		atomic.AddInt32(&writes, 1)
		return nil
	}, &wire.Msg{Text: "hi"}, ackAll)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != Delivered {
		t.Fatalf("expected Delivered, got %v", outcome)
	}
	if got != ack {
		t.Fatalf("expected the offered ack frame back")
	}
	if atomic.LoadInt32(&writes) != 1 {
		t.Fatalf("expected exactly one write, got %d", writes)
	}
}

func TestSendRetriesThenDelivers(t *testing.T) {
	slot := NewSlot()
	var writes int32

	go func() {
		// Let two attempts time out, then answer on the third.
		time.Sleep(AckTimeout*2 + 50*time.Millisecond)
		slot.Offer(&wire.MsgAck{})
	}()

	outcome, _, err := slot.Send(context.Background(), func(_ []byte) error {
		atomic.AddInt32(&writes, 1)
		return nil
	}, &wire.Msg{Text: "hi"}, ackAll)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != Delivered {
		t.Fatalf("expected Delivered, got %v", outcome)
	}
	if atomic.LoadInt32(&writes) < 3 {
		t.Fatalf("expected at least 3 transmissions, got %d", writes)
	}
}

func TestSendTimesOutAfterMaxAttempts(t *testing.T) {
	slot := NewSlot()
	var writes int32

	outcome, got, err := slot.Send(context.Background(), func(_ []byte) error {
		atomic.AddInt32(&writes, 1)
		return nil
	}, &wire.Msg{Text: "hi"}, ackAll)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != TimedOut {
		t.Fatalf("expected TimedOut, got %v", outcome)
	}
	if got != nil {
		t.Fatalf("expected no frame on timeout")
	}
	if atomic.LoadInt32(&writes) != MaxAttempts {
		t.Fatalf("expected %d attempts, got %d", MaxAttempts, writes)
	}
}

func TestSendRejectsConcurrentSend(t *testing.T) {
	slot := NewSlot()
	started := make(chan struct{})
	release := make(chan struct{})

	go func() {
		slot.Send(context.Background(), func(_ []byte) error {
			close(started)
			<-release
			return nil
		}, &wire.Msg{Text: "hi"}, ackAll)
	}()

	<-started
	_, _, err := slot.Send(context.Background(), func(_ []byte) error { return nil }, &wire.Msg{Text: "bye"}, ackAll)
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	close(release)
}

func TestSendPredicateFiltersNonMatchingFrames(t *testing.T) {
	slot := NewSlot()

	onlyTableAck := func(f wire.Frame) bool {
		_, ok := f.(*wire.TableAck)
		return ok
	}

	go func() {
		time.Sleep(10 * time.Millisecond)
		slot.Offer(&wire.MsgAck{}) // wrong type, must be ignored
		time.Sleep(10 * time.Millisecond)
		slot.Offer(&wire.TableAck{})
	}()

	outcome, got, err := slot.Send(context.Background(), func(_ []byte) error { return nil }, &wire.Table{}, onlyTableAck)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != Delivered {
		t.Fatalf("expected Delivered, got %v", outcome)
	}
	if _, ok := got.(*wire.TableAck); !ok {
		t.Fatalf("expected a TableAck frame, got %T", got)
	}
}

func TestSendContextCancellation(t *testing.T) {
	slot := NewSlot()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, _, err := slot.Send(ctx, func(_ []byte) error { return nil }, &wire.Msg{Text: "hi"}, ackAll)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
