package roster

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"go.uber.org/multierr"
)

type member struct {
	out      Outbound
	joinedAt time.Time
}

type InmemoryRegistry struct {
	mu      sync.Mutex
	members map[string]*member

	// doc mirrors members as a JSON document so HTTP consumers can read
	// the membership without another encoding pass.
	doc []byte

	// limit caps the number of members. Zero means unlimited.
	limit int

	// stop will be closed when Close() is called
	stop chan struct{}
}

func NewInmemoryRegistry(limit int) *InmemoryRegistry {
	return &InmemoryRegistry{
		members: make(map[string]*member),
		doc:     []byte(""),
		limit:   limit,
		stop:    make(chan struct{}),
	}
}

func (r *InmemoryRegistry) Close() error {
	if r.isRunning() {
		close(r.stop)
	}

	return nil
}

func (r *InmemoryRegistry) Join(name string, out Outbound) error {
	if !r.isRunning() {
		return ErrClosed
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.limit > 0 && len(r.members) >= r.limit {
		return ErrFull
	}

	if _, taken := r.members[name]; taken {
		return ErrNameTaken
	}

	now := time.Now().UTC()
	r.members[name] = &member{out: out, joinedAt: now}

	return r.docSet(name, now)
}

func (r *InmemoryRegistry) Rename(oldName, newName string) error {
	if !r.isRunning() {
		return ErrClosed
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.members[oldName]
	if !ok {
		return ErrNotFound
	}

	if _, taken := r.members[newName]; taken {
		return ErrNameTaken
	}

	delete(r.members, oldName)
	r.members[newName] = m

	if err := r.docDelete(oldName); err != nil {
		return err
	}

	return r.docSet(newName, m.joinedAt)
}

func (r *InmemoryRegistry) Leave(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[name]; !ok {
		return ErrNotFound
	}

	delete(r.members, name)

	return r.docDelete(name)
}

func (r *InmemoryRegistry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.members))
	for name := range r.members {
		names = append(names, name)
	}

	sort.Strings(names)
	return names
}

func (r *InmemoryRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.members)
}

func (r *InmemoryRegistry) Broadcast(line []byte) error {
	return r.BroadcastExcept("", line)
}

func (r *InmemoryRegistry) BroadcastExcept(name string, line []byte) (err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for memberName, m := range r.members {
		if memberName == name {
			continue
		}

		if serr := m.out.Send(line); serr != nil {
			err = multierr.Append(err, serr)
		}
	}

	return err
}

func (r *InmemoryRegistry) SendTo(name string, line []byte) error {
	r.mu.Lock()
	m, ok := r.members[name]
	r.mu.Unlock()

	if !ok {
		return ErrNotFound
	}

	return m.out.Send(line)
}

func (r *InmemoryRegistry) Snapshot() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.doc) == 0 {
		return []byte("{}"), nil
	}

	snapshot := make([]byte, len(r.doc))
	copy(snapshot, r.doc)

	return snapshot, nil
}

func (r *InmemoryRegistry) MemberInfo(name string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := gjson.GetBytes(r.doc, escapePath(name))
	if !result.Exists() {
		return nil, ErrNotFound
	}

	return []byte(result.Raw), nil
}

func (r *InmemoryRegistry) docSet(name string, joinedAt time.Time) (err error) {
	r.doc, err = sjson.SetBytes(r.doc, escapePath(name)+".joined_at",
		joinedAt.Format(time.RFC3339))
	return err
}

func (r *InmemoryRegistry) docDelete(name string) (err error) {
	r.doc, err = sjson.DeleteBytes(r.doc, escapePath(name))
	return err
}

// isRunning returns true if Close has not been called
func (r *InmemoryRegistry) isRunning() bool {
	select {
	case <-r.stop:
		return false

	default:
		return true
	}
}

// escapePath neutralises the characters gjson/sjson treat as path syntax, so
// a display name is always a single document key.
func escapePath(name string) string {
	return pathEscaper.Replace(name)
}

var pathEscaper = strings.NewReplacer(
	".", `\.`,
	"*", `\*`,
	"?", `\?`,
	"|", `\|`,
	"#", `\#`,
	"@", `\@`,
)

var _ Registry = (*InmemoryRegistry)(nil)
