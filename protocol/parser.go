package protocol

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	ErrUnknownCommand = errors.New("Unknown command could not be parsed")
	ErrInvalidNick    = errors.New("Nick command requires exactly one valid name argument")
	ErrWhisperUsage   = errors.New("Whisper command requires a target name and a non-empty message")
)

// ChompLineEnding removes a single trailing "\r\n" or bare "\n" from line
// and returns the shortened slice. A '\r' is only stripped when it sits
// immediately before the stripped '\n'; bytes before the terminator are
// never touched. Applying it twice yields the same result.
func ChompLineEnding(line []byte) []byte {
	n := len(line)
	if n > 0 && line[n-1] == '\n' {
		n--
		if n > 0 && line[n-1] == '\r' {
			n--
		}
	}

	return line[:n]
}

// IsCommand reports whether line would parse as a slash command. It only
// looks at the first byte.
func IsCommand(line []byte) bool {
	return len(line) > 0 && line[0] == '/'
}

// ValidateName reports whether name is usable as a display name: between 1
// and NameLen-1 bytes, printable characters only, and no leading or trailing
// whitespace.
func (c *Codec) ValidateName(name string) bool {
	if len(name) < 1 || len(name) > c.limits.NameLen-1 {
		return false
	}

	for i := 0; i < len(name); {
		r, size := utf8.DecodeRuneInString(name[i:])
		if r == utf8.RuneError && size == 1 {
			// Invalid UTF-8, e.g. a raw C1 control byte
			return false
		}

		// Rejects every control character, tabs and C1 runes included
		if !unicode.IsPrint(r) {
			return false
		}

		i += size
	}

	return name[0] != ' ' && name[len(name)-1] != ' '
}

// ParseLine interprets one inbound line whose terminator has already been
// removed (see ChompLineEnding). Lines starting with '/' parse as commands;
// anything else is chat text, held raw in the record for the caller to
// format once the sender's name is known. Oversize lines are silently
// truncated to fit a wire line, never rejected.
//
// On a command parse failure the returned record is still well formed: kind
// command, original text filled in, Cmd.Type == CmdInvalid.
func (c *Codec) ParseLine(line []byte) (WireMsg, error) {
	text := string(truncate(line, c.limits.MaxWireLine()-1))

	if !IsCommand(line) {
		return ChatMsg(text), nil
	}

	cmd, err := c.ParseCommand(line)
	if err != nil {
		return CommandMsg(text, Command{Type: CmdInvalid}), err
	}

	return CommandMsg(text, cmd), nil
}

// ParseCommand parses a slash command line (terminator already removed) into
// its structured form. Command words are case sensitive. Runs of whitespace
// between fields collapse to a single separator; the trailing free-text
// field is kept verbatim, internal whitespace included.
func (c *Codec) ParseCommand(line []byte) (Command, error) {
	if !IsCommand(line) {
		return Command{Type: CmdInvalid}, fmt.Errorf("Failed to parse '%s': %w",
			string(line), ErrUnknownCommand)
	}

	word, rest := splitWord(string(line[1:]))

	switch word {
	case "nick":
		name, extra := splitWord(rest)
		if name == "" || extra != "" || !c.ValidateName(name) {
			return Command{Type: CmdInvalid}, fmt.Errorf("Failed to parse '%s': %w",
				string(line), ErrInvalidNick)
		}

		return Command{Type: CmdNick, Name: name}, nil

	case "quit":
		// Anything trailing a /quit is ignored, not an error.
		return Command{Type: CmdQuit}, nil

	case "me":
		return Command{Type: CmdMe, Text: truncateString(rest, c.limits.MaxMsgLen)}, nil

	case "whisper", "w":
		target, body := splitWord(rest)
		if target == "" || !c.ValidateName(target) {
			return Command{Type: CmdInvalid}, fmt.Errorf("Failed to parse '%s': %w",
				string(line), ErrWhisperUsage)
		}

		body = truncateString(body, c.limits.MaxMsgLen)
		if strings.TrimSpace(body) == "" {
			// A whisper with nothing to say is a usage error, not an
			// empty delivery.
			return Command{Type: CmdInvalid}, fmt.Errorf("Failed to parse '%s': %w",
				string(line), ErrWhisperUsage)
		}

		return Command{Type: CmdWhisper, Name: target, Text: body}, nil

	default:
		return Command{Type: CmdInvalid}, fmt.Errorf("Failed to parse '%s': %w",
			string(line), ErrUnknownCommand)
	}
}

// ClampMsg bounds free text to the message maximum, the same silent
// truncation the parser applies to command remainders. The transport runs
// chat text through it before formatting.
func (c *Codec) ClampMsg(s string) string {
	return truncateString(s, c.limits.MaxMsgLen)
}

// splitWord splits s at the first run of whitespace, returning the leading
// word and the remainder with its leading whitespace removed.
func splitWord(s string) (string, string) {
	i := strings.IndexFunc(s, unicode.IsSpace)
	if i < 0 {
		return s, ""
	}

	return s[:i], strings.TrimLeftFunc(s[i:], unicode.IsSpace)
}

func truncate(b []byte, max int) []byte {
	if len(b) > max {
		return b[:max]
	}

	return b
}

func truncateString(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}

	return s
}
