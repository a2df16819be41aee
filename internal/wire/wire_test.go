package wire

import (
	"reflect"
	"testing"
)

func meta() Metadata {
	return Metadata{Name: "c1", IP: "127.0.0.1", Port: 5555, Seq: 7}
}

// roundTrip encodes f, decodes the result, and returns the decoded
// frame for the caller to inspect further.
func roundTrip(t *testing.T, f Frame) Frame {
	t.Helper()

	data, err := Encode(f)
	if err != nil {
		t.Fatalf("encode %s: %v", f.Kind(), err)
	}

	got, err := Decode(data)
	if err != nil {
		t.Fatalf("decode %s: %v", f.Kind(), err)
	}
	if got.Kind() != f.Kind() {
		t.Fatalf("kind mismatch: want %s got %s", f.Kind(), got.Kind())
	}
	if got.Meta() != f.Meta() {
		t.Fatalf("metadata mismatch: want %+v got %+v", f.Meta(), got.Meta())
	}
	return got
}

func TestRegisterRoundTrip(t *testing.T) {
	f := &Register{}
	f.SetMeta(meta())
	roundTrip(t, f)
}

func TestRegisterAckRoundTrip(t *testing.T) {
	f := &RegisterAck{OK: false, Reason: "exists"}
	f.SetMeta(meta())
	got := roundTrip(t, f).(*RegisterAck)
	if got.OK != f.OK || got.Reason != f.Reason {
		t.Fatalf("got %+v, want %+v", got, f)
	}
}

func TestDeregRoundTrip(t *testing.T) {
	f := &Dereg{Name: "c1"}
	f.SetMeta(meta())
	got := roundTrip(t, f).(*Dereg)
	if got.Name != f.Name {
		t.Fatalf("got %q, want %q", got.Name, f.Name)
	}
}

func TestTableRoundTrip(t *testing.T) {
	f := &Table{Records: []Record{
		{Name: "c1", IP: "127.0.0.1", Port: 5555, Online: true},
		{Name: "c2", IP: "127.0.0.1", Port: 5556, Online: false},
	}}
	f.SetMeta(meta())
	got := roundTrip(t, f).(*Table)
	if !reflect.DeepEqual(got.Records, f.Records) {
		t.Fatalf("got %+v, want %+v", got.Records, f.Records)
	}
}

func TestEmptyTableRoundTrip(t *testing.T) {
	f := &Table{}
	f.SetMeta(meta())
	got := roundTrip(t, f).(*Table)
	if len(got.Records) != 0 {
		t.Fatalf("expected no records, got %+v", got.Records)
	}
}

func TestMsgRoundTrip(t *testing.T) {
	f := &Msg{Text: "hi there"}
	f.SetMeta(meta())
	got := roundTrip(t, f).(*Msg)
	if got.Text != f.Text {
		t.Fatalf("got %q, want %q", got.Text, f.Text)
	}
}

func TestSendGroupRoundTrip(t *testing.T) {
	f := &SendGroup{Group: "GLOBAL", Text: "hey"}
	f.SetMeta(meta())
	got := roundTrip(t, f).(*SendGroup)
	if got.Group != f.Group || got.Text != f.Text {
		t.Fatalf("got %+v, want %+v", got, f)
	}
}

func TestGroupMsgRoundTrip(t *testing.T) {
	f := &GroupMsg{Group: "GLOBAL", From: "c1", Text: "hey"}
	f.SetMeta(meta())
	got := roundTrip(t, f).(*GroupMsg)
	if got.Group != f.Group || got.From != f.From || got.Text != f.Text {
		t.Fatalf("got %+v, want %+v", got, f)
	}
}

func TestReplyRoundTrip(t *testing.T) {
	f := &Reply{OK: true, Text: "entered", Groups: []string{"A", "B"}, Members: []string{"c1", "c2"}}
	f.SetMeta(meta())
	got := roundTrip(t, f).(*Reply)
	if !reflect.DeepEqual(got, f) {
		t.Fatalf("got %+v, want %+v", got, f)
	}
}

func TestDecodeUnknownType(t *testing.T) {
	f := &Register{}
	f.SetMeta(meta())
	data, err := Encode(f)
	if err != nil {
		t.Fatal(err)
	}
	data[2] = 0xFF // corrupt the type byte past the last valid Kind
	if _, err := Decode(data); err != ErrUnknownType {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
}

func TestDecodeBadSignature(t *testing.T) {
	if _, err := Decode([]byte{0, 0, 0}); err != ErrMalformed {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestDecodeTruncated(t *testing.T) {
	if _, err := Decode(nil); err != ErrMalformed {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}
