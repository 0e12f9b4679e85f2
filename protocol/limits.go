package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrBadLimits = errors.New("Limits are malformed")
)

// The limits Parley ships with. NameLen allows 31 byte nicknames (the last
// byte of the budget is reserved, matching the wire-line derivation below).
const (
	DefaultNameLen   = 32
	DefaultMaxMsgLen = 1024
)

// Limits carries the sizing constants that bound every buffer this package
// touches. It is an immutable value: construct it once, hand it to NewCodec,
// and share the Codec freely.
type Limits struct {
	// NameLen bounds nickname storage. Valid names are 1..NameLen-1 bytes.
	NameLen int

	// MaxMsgLen bounds a single message payload, not including any framing.
	// It must be strictly smaller than the I/O buffer the transport reads
	// with, so a full message plus prefix always fits.
	MaxMsgLen int
}

func DefaultLimits() Limits {
	return Limits{
		NameLen:   DefaultNameLen,
		MaxMsgLen: DefaultMaxMsgLen,
	}
}

// MaxWireLine is the longest line the formatters will produce: a name, the
// ": " separator, a full message, and room for a "\r\n" style terminator.
func (l Limits) MaxWireLine() int {
	return l.NameLen + 2 + l.MaxMsgLen + 2
}

// MaxFormattedLine is the worst case any formatter can produce. That is the
// recipient's copy of a private line, which carries two names:
//
//	"[" + from + "->" + to + "] " + body + "\n"
//	= 2*(NameLen-1) + MaxMsgLen + 6
//	= MaxWireLine + NameLen
//
// MaxWireLine alone cannot hold it when both names and the body are at
// their maximums.
func (l Limits) MaxFormattedLine() int {
	return l.MaxWireLine() + l.NameLen
}

func (l Limits) Validate() error {
	if l.NameLen < 3 {
		return fmt.Errorf("NameLen %d is below the minimum of 3: %w", l.NameLen, ErrBadLimits)
	}

	if l.MaxMsgLen < 1 {
		return fmt.Errorf("MaxMsgLen %d leaves no room for messages: %w", l.MaxMsgLen, ErrBadLimits)
	}

	return nil
}

// Codec exposes every parsing and formatting operation of the protocol,
// bounded by the Limits it was constructed with. The zero value is not
// usable; call NewCodec.
type Codec struct {
	limits Limits
}

func NewCodec(limits Limits) (*Codec, error) {
	if err := limits.Validate(); err != nil {
		return nil, err
	}

	return &Codec{limits: limits}, nil
}

func (c *Codec) Limits() Limits {
	return c.limits
}
