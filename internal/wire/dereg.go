package wire

import "bytes"

// Dereg voluntarily removes Name from the directory.
type Dereg struct {
	base
	Name string
}

func (d *Dereg) Kind() Kind     { return KindDereg }
func (d *Dereg) String() string { return "DEREG" }

func (d *Dereg) Marshal() ([]byte, error) {
	buf := new(bytes.Buffer)
	putString(buf, d.Name)
	return buf.Bytes(), nil
}

func (d *Dereg) Unmarshal(data []byte) error {
	buf := bytes.NewBuffer(data)
	d.Name = getString(buf)
	return nil
}

// DeregAck acknowledges a Dereg request. No payload.
type DeregAck struct {
	base
}

func (d *DeregAck) Kind() Kind     { return KindDeregAck }
func (d *DeregAck) String() string { return "DEREG_ACK" }

func (d *DeregAck) Marshal() ([]byte, error) { return nil, nil }

func (d *DeregAck) Unmarshal(_ []byte) error { return nil }
