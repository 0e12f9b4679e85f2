package roster

import "errors"

var (
	ErrNameTaken = errors.New("That name is already in use")
	ErrNotFound  = errors.New("No member with that name is connected")
	ErrFull      = errors.New("The room is at capacity")
	ErrClosed    = errors.New("The registry has been closed")
)

// Outbound is where a member's copy of each delivered line goes. The
// transport registers one per connection; Send must not block indefinitely.
type Outbound interface {
	Send(line []byte) error
}

// Registry tracks who is connected under which display name and routes
// finished wire lines to them. It enforces name uniqueness and room
// capacity; everything about what the lines say is the protocol layer's
// business.
type Registry interface {
	Join(name string, out Outbound) error
	Rename(oldName, newName string) error
	Leave(name string) error

	Names() []string
	Len() int

	Broadcast(line []byte) error
	BroadcastExcept(name string, line []byte) error
	SendTo(name string, line []byte) error

	// Snapshot returns the membership as a JSON document, for HTTP
	// consumers. MemberInfo returns the document fragment for one member.
	Snapshot() ([]byte, error)
	MemberInfo(name string) ([]byte, error)

	Close() error
}
