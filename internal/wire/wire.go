// Package wire implements the self-describing datagram frame used by
// both the directory server and its clients. Every frame begins with a
// fixed signature and a one-byte type id, followed by the sender's
// metadata, followed by the type-specific payload — one frame per UDP
// datagram, BigEndian throughout.
//
// This codec is hand-written, not generated, but follows the layout
// conventions of the ZRE wire protocol it descends from: a 2-byte
// signature, a 1-byte message id, then fixed fields and length-prefixed
// strings.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// Signature is the fixed 2-byte marker every frame starts with. It lets
// Decode reject garbage datagrams before looking at the type byte.
const Signature uint16 = 0xC4A0 | 1

// StringMax bounds a single length-prefixed string field.
const StringMax = 255

// Kind identifies a frame's type.
type Kind uint8

const (
	KindRegister Kind = iota + 1
	KindRegisterAck
	KindDereg
	KindDeregAck
	KindTable
	KindTableAck
	KindMsg
	KindMsgAck
	KindCreateGroup
	KindListGroups
	KindJoinGroup
	KindLeaveGroup
	KindListMembers
	KindSendGroup
	KindGroupMsg
	KindGroupMsgAck
	KindReply
)

func (k Kind) String() string {
	switch k {
	case KindRegister:
		return "register"
	case KindRegisterAck:
		return "register_ack"
	case KindDereg:
		return "dereg"
	case KindDeregAck:
		return "dereg_ack"
	case KindTable:
		return "table"
	case KindTableAck:
		return "table_ack"
	case KindMsg:
		return "msg"
	case KindMsgAck:
		return "msg_ack"
	case KindCreateGroup:
		return "create_group"
	case KindListGroups:
		return "list_groups"
	case KindJoinGroup:
		return "join_group"
	case KindLeaveGroup:
		return "leave_group"
	case KindListMembers:
		return "list_members"
	case KindSendGroup:
		return "send_group"
	case KindGroupMsg:
		return "group_msg"
	case KindGroupMsgAck:
		return "group_msg_ack"
	case KindReply:
		return "reply"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// ErrUnknownType is returned by Decode for a type byte no Frame claims.
var ErrUnknownType = errors.New("wire: unknown frame type")

// ErrMalformed is returned when a datagram's signature or shape is bad.
var ErrMalformed = errors.New("wire: malformed frame")

// Metadata carries the sender's logical identity. It is trusted as-is —
// there is no cryptographic identity in this protocol.
type Metadata struct {
	Name string
	IP   string
	Port uint16
	// Seq is a per-sender, per-pending-send sequence number. A single
	// outstanding reliable-send is enough to need only one in-flight
	// value at a time, but carrying it keeps the rendezvous keyable by
	// (type, seq) if multi-in-flight sends are ever required.
	Seq uint16
}

// Frame is implemented by every frame type.
type Frame interface {
	Kind() Kind
	Meta() Metadata
	SetMeta(Metadata)
	Marshal() ([]byte, error)
	Unmarshal([]byte) error
	String() string
}

// Encode serializes a frame to a single datagram payload.
func Encode(f Frame) ([]byte, error) {
	body, err := f.Marshal()
	if err != nil {
		return nil, fmt.Errorf("wire: marshal %s: %w", f.Kind(), err)
	}

	buf := new(bytes.Buffer)
	binary.Write(buf, binary.BigEndian, Signature)
	binary.Write(buf, binary.BigEndian, uint8(f.Kind()))
	putMetadata(buf, f.Meta())
	buf.Write(body)
	return buf.Bytes(), nil
}

// Decode parses an inbound datagram symmetrically with Encode. Unknown
// type bytes return ErrUnknownType; callers must drop and log, never
// propagate, per the error-handling policy for malformed frames.
func Decode(data []byte) (Frame, error) {
	buf := bytes.NewBuffer(data)

	var signature uint16
	if err := binary.Read(buf, binary.BigEndian, &signature); err != nil {
		return nil, ErrMalformed
	}
	if signature != Signature {
		return nil, ErrMalformed
	}

	var id uint8
	if err := binary.Read(buf, binary.BigEndian, &id); err != nil {
		return nil, ErrMalformed
	}

	meta, err := getMetadata(buf)
	if err != nil {
		return nil, ErrMalformed
	}

	f := newByKind(Kind(id))
	if f == nil {
		return nil, ErrUnknownType
	}
	f.SetMeta(meta)

	if err := f.Unmarshal(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("wire: unmarshal %s: %w", f.Kind(), err)
	}
	return f, nil
}

func newByKind(k Kind) Frame {
	switch k {
	case KindRegister:
		return &Register{}
	case KindRegisterAck:
		return &RegisterAck{}
	case KindDereg:
		return &Dereg{}
	case KindDeregAck:
		return &DeregAck{}
	case KindTable:
		return &Table{}
	case KindTableAck:
		return &TableAck{}
	case KindMsg:
		return &Msg{}
	case KindMsgAck:
		return &MsgAck{}
	case KindCreateGroup:
		return &CreateGroup{}
	case KindListGroups:
		return &ListGroups{}
	case KindJoinGroup:
		return &JoinGroup{}
	case KindLeaveGroup:
		return &LeaveGroup{}
	case KindListMembers:
		return &ListMembers{}
	case KindSendGroup:
		return &SendGroup{}
	case KindGroupMsg:
		return &GroupMsg{}
	case KindGroupMsgAck:
		return &GroupMsgAck{}
	case KindReply:
		return &Reply{}
	default:
		return nil
	}
}

// EchoMeta builds the Metadata for a reply frame: self's own identity,
// carrying forward the sequence number from the request it answers so
// the requester's reliable-send rendezvous can correlate the reply.
func EchoMeta(self Metadata, request Metadata) Metadata {
	self.Seq = request.Seq
	return self
}

// base embeds the common metadata handling every frame type shares.
type base struct {
	meta Metadata
}

func (b *base) Meta() Metadata     { return b.meta }
func (b *base) SetMeta(m Metadata) { b.meta = m }

func putMetadata(buf *bytes.Buffer, m Metadata) {
	putString(buf, m.Name)
	putString(buf, m.IP)
	binary.Write(buf, binary.BigEndian, m.Port)
	binary.Write(buf, binary.BigEndian, m.Seq)
}

func getMetadata(buf *bytes.Buffer) (Metadata, error) {
	m := Metadata{}
	m.Name = getString(buf)
	m.IP = getString(buf)
	if err := binary.Read(buf, binary.BigEndian, &m.Port); err != nil {
		return m, err
	}
	if err := binary.Read(buf, binary.BigEndian, &m.Seq); err != nil {
		return m, err
	}
	return m, nil
}

// putString marshals a length-prefixed string into the buffer.
func putString(buf *bytes.Buffer, s string) {
	if len(s) > StringMax {
		s = s[:StringMax]
	}
	binary.Write(buf, binary.BigEndian, byte(len(s)))
	buf.WriteString(s)
}

// getString unmarshals a length-prefixed string from the buffer.
func getString(buf *bytes.Buffer) string {
	var size byte
	binary.Read(buf, binary.BigEndian, &size)
	b := make([]byte, size)
	buf.Read(b)
	return string(b)
}

// putStrings marshals a list of strings with a one-byte count prefix.
func putStrings(buf *bytes.Buffer, ss []string) {
	binary.Write(buf, binary.BigEndian, byte(len(ss)))
	for _, s := range ss {
		putString(buf, s)
	}
}

// getStrings unmarshals a list of strings with a one-byte count prefix.
func getStrings(buf *bytes.Buffer) []string {
	var count byte
	binary.Read(buf, binary.BigEndian, &count)
	ss := make([]string, 0, count)
	for ; count != 0; count-- {
		ss = append(ss, getString(buf))
	}
	return ss
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	binary.Write(buf, binary.BigEndian, v)
}

func readUint32(buf *bytes.Buffer) uint32 {
	var v uint32
	binary.Read(buf, binary.BigEndian, &v)
	return v
}

func writeUint16(buf *bytes.Buffer, v uint16) {
	binary.Write(buf, binary.BigEndian, v)
}

func readUint16(buf *bytes.Buffer) uint16 {
	var v uint16
	binary.Read(buf, binary.BigEndian, &v)
	return v
}

func putBool(buf *bytes.Buffer, b bool) {
	if b {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
}

func getBool(buf *bytes.Buffer) bool {
	v, _ := buf.ReadByte()
	return v != 0
}
