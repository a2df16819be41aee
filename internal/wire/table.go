package wire

import "bytes"

// Record is one row of the registration table as carried on the wire.
type Record struct {
	Name   string
	IP     string
	Port   uint16
	Online bool
}

// Table is the server's full registration table snapshot, broadcast on
// every membership change. The client mirror is overwritten wholesale
// with each one received — never merged.
type Table struct {
	base
	Records []Record
}

func (t *Table) Kind() Kind     { return KindTable }
func (t *Table) String() string { return "TABLE" }

func (t *Table) Marshal() ([]byte, error) {
	buf := new(bytes.Buffer)
	writeUint16(buf, uint16(len(t.Records)))
	for _, r := range t.Records {
		putString(buf, r.Name)
		putString(buf, r.IP)
		writeUint16(buf, r.Port)
		putBool(buf, r.Online)
	}
	return buf.Bytes(), nil
}

func (t *Table) Unmarshal(data []byte) error {
	buf := bytes.NewBuffer(data)
	count := readUint16(buf)
	t.Records = make([]Record, 0, count)
	for ; count != 0; count-- {
		var r Record
		r.Name = getString(buf)
		r.IP = getString(buf)
		r.Port = readUint16(buf)
		r.Online = getBool(buf)
		t.Records = append(t.Records, r)
	}
	return nil
}

// TableAck acknowledges receipt of a broadcast Table. No payload.
type TableAck struct {
	base
}

func (t *TableAck) Kind() Kind     { return KindTableAck }
func (t *TableAck) String() string { return "TABLE_ACK" }

func (t *TableAck) Marshal() ([]byte, error) { return nil, nil }

func (t *TableAck) Unmarshal(_ []byte) error { return nil }
