package wire

import "bytes"

// Register requests to join the directory. The requester's identity
// lives entirely in Metadata; there is no payload.
type Register struct {
	base
}

func (r *Register) Kind() Kind   { return KindRegister }
func (r *Register) String() string { return "REGISTER" }

func (r *Register) Marshal() ([]byte, error) { return nil, nil }

func (r *Register) Unmarshal(_ []byte) error { return nil }

// RegisterAck accepts or rejects a Register request.
type RegisterAck struct {
	base
	OK     bool
	Reason string
}

func (r *RegisterAck) Kind() Kind     { return KindRegisterAck }
func (r *RegisterAck) String() string { return "REGISTER_ACK" }

func (r *RegisterAck) Marshal() ([]byte, error) {
	buf := new(bytes.Buffer)
	putBool(buf, r.OK)
	putString(buf, r.Reason)
	return buf.Bytes(), nil
}

func (r *RegisterAck) Unmarshal(data []byte) error {
	buf := bytes.NewBuffer(data)
	r.OK = getBool(buf)
	r.Reason = getString(buf)
	return nil
}
