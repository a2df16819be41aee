package wire

import "bytes"

// CreateGroup asks the server to create an empty group.
type CreateGroup struct {
	base
	Group string
}

func (c *CreateGroup) Kind() Kind     { return KindCreateGroup }
func (c *CreateGroup) String() string { return "CREATE_GROUP" }

func (c *CreateGroup) Marshal() ([]byte, error) {
	buf := new(bytes.Buffer)
	putString(buf, c.Group)
	return buf.Bytes(), nil
}

func (c *CreateGroup) Unmarshal(data []byte) error {
	buf := bytes.NewBuffer(data)
	c.Group = getString(buf)
	return nil
}

// ListGroups asks the server for the current set of group names. No
// payload.
type ListGroups struct {
	base
}

func (l *ListGroups) Kind() Kind     { return KindListGroups }
func (l *ListGroups) String() string { return "LIST_GROUPS" }

func (l *ListGroups) Marshal() ([]byte, error) { return nil, nil }

func (l *ListGroups) Unmarshal(_ []byte) error { return nil }

// JoinGroup asks the server to add the requester to Group.
type JoinGroup struct {
	base
	Group string
}

func (j *JoinGroup) Kind() Kind     { return KindJoinGroup }
func (j *JoinGroup) String() string { return "JOIN_GROUP" }

func (j *JoinGroup) Marshal() ([]byte, error) {
	buf := new(bytes.Buffer)
	putString(buf, j.Group)
	return buf.Bytes(), nil
}

func (j *JoinGroup) Unmarshal(data []byte) error {
	buf := bytes.NewBuffer(data)
	j.Group = getString(buf)
	return nil
}

// LeaveGroup asks the server to remove the requester from Group.
type LeaveGroup struct {
	base
	Group string
}

func (l *LeaveGroup) Kind() Kind     { return KindLeaveGroup }
func (l *LeaveGroup) String() string { return "LEAVE_GROUP" }

func (l *LeaveGroup) Marshal() ([]byte, error) {
	buf := new(bytes.Buffer)
	putString(buf, l.Group)
	return buf.Bytes(), nil
}

func (l *LeaveGroup) Unmarshal(data []byte) error {
	buf := bytes.NewBuffer(data)
	l.Group = getString(buf)
	return nil
}

// ListMembers asks the server for Group's roster.
type ListMembers struct {
	base
	Group string
}

func (l *ListMembers) Kind() Kind     { return KindListMembers }
func (l *ListMembers) String() string { return "LIST_MEMBERS" }

func (l *ListMembers) Marshal() ([]byte, error) {
	buf := new(bytes.Buffer)
	putString(buf, l.Group)
	return buf.Bytes(), nil
}

func (l *ListMembers) Unmarshal(data []byte) error {
	buf := bytes.NewBuffer(data)
	l.Group = getString(buf)
	return nil
}

// SendGroup asks the server to fan Text out to every other member of
// Group.
type SendGroup struct {
	base
	Group string
	Text  string
}

func (s *SendGroup) Kind() Kind     { return KindSendGroup }
func (s *SendGroup) String() string { return "SEND_GROUP" }

func (s *SendGroup) Marshal() ([]byte, error) {
	buf := new(bytes.Buffer)
	putString(buf, s.Group)
	putLongString(buf, s.Text)
	return buf.Bytes(), nil
}

func (s *SendGroup) Unmarshal(data []byte) error {
	buf := bytes.NewBuffer(data)
	s.Group = getString(buf)
	s.Text = getLongString(buf)
	return nil
}

// GroupMsg is the server's fan-out delivery of a group message to one
// member.
type GroupMsg struct {
	base
	Group string
	From  string
	Text  string
}

func (g *GroupMsg) Kind() Kind     { return KindGroupMsg }
func (g *GroupMsg) String() string { return "GROUP_MSG" }

func (g *GroupMsg) Marshal() ([]byte, error) {
	buf := new(bytes.Buffer)
	putString(buf, g.Group)
	putString(buf, g.From)
	putLongString(buf, g.Text)
	return buf.Bytes(), nil
}

func (g *GroupMsg) Unmarshal(data []byte) error {
	buf := bytes.NewBuffer(data)
	g.Group = getString(buf)
	g.From = getString(buf)
	g.Text = getLongString(buf)
	return nil
}

// GroupMsgAck acknowledges a GroupMsg delivery back to the server.
type GroupMsgAck struct {
	base
	Group string
}

func (g *GroupMsgAck) Kind() Kind     { return KindGroupMsgAck }
func (g *GroupMsgAck) String() string { return "GROUP_MSG_ACK" }

func (g *GroupMsgAck) Marshal() ([]byte, error) {
	buf := new(bytes.Buffer)
	putString(buf, g.Group)
	return buf.Bytes(), nil
}

func (g *GroupMsgAck) Unmarshal(data []byte) error {
	buf := bytes.NewBuffer(data)
	g.Group = getString(buf)
	return nil
}
