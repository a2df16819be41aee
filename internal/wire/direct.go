package wire

import "bytes"

// Msg is a direct unicast sent peer-to-peer, outside the server.
type Msg struct {
	base
	Text string
}

func (m *Msg) Kind() Kind     { return KindMsg }
func (m *Msg) String() string { return "MSG" }

func (m *Msg) Marshal() ([]byte, error) {
	buf := new(bytes.Buffer)
	putLongString(buf, m.Text)
	return buf.Bytes(), nil
}

func (m *Msg) Unmarshal(data []byte) error {
	buf := bytes.NewBuffer(data)
	m.Text = getLongString(buf)
	return nil
}

// MsgAck acknowledges a Msg. No payload.
type MsgAck struct {
	base
}

func (m *MsgAck) Kind() Kind     { return KindMsgAck }
func (m *MsgAck) String() string { return "MSG_ACK" }

func (m *MsgAck) Marshal() ([]byte, error) { return nil, nil }

func (m *MsgAck) Unmarshal(_ []byte) error { return nil }

// putLongString marshals a string whose length may exceed StringMax,
// used for free-form chat text rather than protocol identifiers.
func putLongString(buf *bytes.Buffer, s string) {
	writeUint32(buf, uint32(len(s)))
	buf.WriteString(s)
}

func getLongString(buf *bytes.Buffer) string {
	size := readUint32(buf)
	b := make([]byte, size)
	buf.Read(b)
	return string(b)
}
