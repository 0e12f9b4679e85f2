package protocol

import (
	"errors"
	"fmt"
	"io"
)

var (
	// ErrShortBuffer reports that a formatter's destination cannot hold the
	// complete wire line. Nothing has been written when it is returned.
	ErrShortBuffer = errors.New("Destination buffer is too small for the formatted line")
)

// The literal error lines the server sends back to a misbehaving client,
// already terminated. ErrLineNickInUse is the registry's to send; the other
// three map from parse failures via ErrorLine.
var (
	ErrLineUnknownCommand = []byte("* error: unknown command\n")
	ErrLineInvalidNick    = []byte("* error: invalid nickname\n")
	ErrLineNickInUse      = []byte("* error: nickname already in use\n")
	ErrLineWhisperUsage   = []byte("* error: usage: /whisper <name> <message>\n")
)

// ErrorLine maps a ParseLine/ParseCommand failure to the literal error line
// to send back to the offending client.
func ErrorLine(err error) []byte {
	switch {
	case errors.Is(err, ErrInvalidNick):
		return ErrLineInvalidNick

	case errors.Is(err, ErrWhisperUsage):
		return ErrLineWhisperUsage

	default:
		return ErrLineUnknownCommand
	}
}

// The formatters below render one complete wire line into dst and return the
// byte count written. They never truncate: inputs are assumed to be within
// the bounds the parser established. If the complete line would not fit in
// dst they return ErrShortBuffer and leave dst untouched, so a failure can
// never be mistaken for valid output.

// FormatChat renders a regular chat line: "name: message\n".
func (c *Codec) FormatChat(dst []byte, name, message string) (int, error) {
	return putLine(dst, name, ": ", message)
}

// FormatEmote renders a /me emote: "* name action\n".
func (c *Codec) FormatEmote(dst []byte, name, action string) (int, error) {
	return putLine(dst, "* ", name, " ", action)
}

// FormatSystem renders a server notice: "* text\n".
func (c *Codec) FormatSystem(dst []byte, text string) (int, error) {
	return putLine(dst, "* ", text)
}

// FormatPrivate renders the recipient's copy of a whisper:
// "[from->to] message\n".
func (c *Codec) FormatPrivate(dst []byte, from, to, message string) (int, error) {
	return putLine(dst, "[", from, "->", to, "] ", message)
}

// FormatPrivateEcho renders the sender's confirmation copy of a whisper:
// "[to @to] message\n".
func (c *Codec) FormatPrivateEcho(dst []byte, to, message string) (int, error) {
	return putLine(dst, "[to @", to, "] ", message)
}

// putLine concatenates parts plus a single trailing '\n' into dst, refusing
// up front if the whole line does not fit.
func putLine(dst []byte, parts ...string) (int, error) {
	need := 1
	for _, p := range parts {
		need += len(p)
	}

	if need > len(dst) {
		return 0, fmt.Errorf("Failed to format a %d byte line into a %d byte buffer: %w",
			need, len(dst), ErrShortBuffer)
	}

	n := 0
	for _, p := range parts {
		n += copy(dst[n:], p)
	}
	dst[n] = '\n'

	return n + 1, nil
}

// The Write variants below format into a scratch buffer sized to the codec's
// wire-line limit and hand the result to w. They are what the transport uses
// to reply on a connection.

func (c *Codec) WriteChat(w io.Writer, name, message string) error {
	return c.writeLine(w, func(dst []byte) (int, error) {
		return c.FormatChat(dst, name, message)
	})
}

func (c *Codec) WriteEmote(w io.Writer, name, action string) error {
	return c.writeLine(w, func(dst []byte) (int, error) {
		return c.FormatEmote(dst, name, action)
	})
}

func (c *Codec) WriteSystem(w io.Writer, text string) error {
	return c.writeLine(w, func(dst []byte) (int, error) {
		return c.FormatSystem(dst, text)
	})
}

func (c *Codec) WritePrivate(w io.Writer, from, to, message string) error {
	return c.writeLine(w, func(dst []byte) (int, error) {
		return c.FormatPrivate(dst, from, to, message)
	})
}

func (c *Codec) WritePrivateEcho(w io.Writer, to, message string) error {
	return c.writeLine(w, func(dst []byte) (int, error) {
		return c.FormatPrivateEcho(dst, to, message)
	})
}

func (c *Codec) writeLine(w io.Writer, format func([]byte) (int, error)) error {
	buf := make([]byte, c.limits.MaxFormattedLine())

	n, err := format(buf)
	if err != nil {
		return err
	}

	_, err = w.Write(buf[:n])
	return err
}
