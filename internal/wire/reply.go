package wire

import "bytes"

// Reply is the generic server-to-client response to any of
// create_group, list_groups, join_group, leave_group, list_members and
// send_group. Only the fields relevant to the originating request are
// populated; the rest carry their zero value.
type Reply struct {
	base
	OK      bool
	Text    string
	Groups  []string
	Members []string
}

func (r *Reply) Kind() Kind     { return KindReply }
func (r *Reply) String() string { return "REPLY" }

func (r *Reply) Marshal() ([]byte, error) {
	buf := new(bytes.Buffer)
	putBool(buf, r.OK)
	putString(buf, r.Text)
	putStrings(buf, r.Groups)
	putStrings(buf, r.Members)
	return buf.Bytes(), nil
}

func (r *Reply) Unmarshal(data []byte) error {
	buf := bytes.NewBuffer(data)
	r.OK = getBool(buf)
	r.Text = getString(buf)
	r.Groups = getStrings(buf)
	r.Members = getStrings(buf)
	return nil
}
