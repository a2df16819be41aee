package server

import "sync"

// Status is a client endpoint record's liveness state.
type Status int

const (
	Offline Status = iota
	Online
)

func (s Status) String() string {
	if s == Online {
		return "online"
	}
	return "offline"
}

// Record is one row of the registration table: (name, ip, port, status)
// per spec.md §3, name as primary key.
type Record struct {
	Name   string
	IP     string
	Port   uint16
	Status Status
}

// Table is the server's authoritative registration table. It
// generalizes the teacher's shm package (shm/shm.go): a single
// mutex-guarded map from key to value, lazily populated, kept alive for
// the process lifetime — specialized here to one subtree (clients)
// keyed by name, with Props narrowed from arbitrary key/value pairs to
// the fixed ip/port/status fields this domain needs.
type Table struct {
	mu      sync.RWMutex
	records map[string]*Record
	// order preserves first-registration order, used only for a
	// deterministic broadcast/listing order; it is not a spec
	// requirement but keeps tests and logs reproducible.
	order []string
}

// NewTable creates an empty registration table.
func NewTable() *Table {
	return &Table{records: make(map[string]*Record)}
}

// Register inserts an online record for name if none exists yet (I1,
// I3). It returns ok=false with a reason if a record — online or
// offline — already exists, since names are retained forever once
// registered (§9 Open Question, resolved as intentional).
func (t *Table) Register(name, ip string, port uint16) (ok bool, reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.records[name]; exists {
		return false, "exists"
	}
	t.records[name] = &Record{Name: name, IP: ip, Port: port, Status: Online}
	t.order = append(t.order, name)
	return true, ""
}

// MarkOffline downgrades name to offline. It reports whether the table
// actually changed, so callers only broadcast on real content changes
// (§4.3 Broadcast discipline).
func (t *Table) MarkOffline(name string) (changed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.records[name]
	if !ok || r.Status == Offline {
		return false
	}
	r.Status = Offline
	return true
}

// Get returns a copy of name's record.
func (t *Table) Get(name string) (Record, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	r, ok := t.records[name]
	if !ok {
		return Record{}, false
	}
	return *r, true
}

// Snapshot returns a copy of every record in registration order.
func (t *Table) Snapshot() []Record {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Record, 0, len(t.order))
	for _, name := range t.order {
		out = append(out, *t.records[name])
	}
	return out
}

// OnlineNames returns the names currently online, in registration
// order.
func (t *Table) OnlineNames() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]string, 0, len(t.order))
	for _, name := range t.order {
		if t.records[name].Status == Online {
			out = append(out, name)
		}
	}
	return out
}
