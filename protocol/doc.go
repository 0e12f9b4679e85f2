package protocol

// This package implements the parsing and serialising of the line protocol
// that Parley uses to communicate with it's clients.
//
// This protocol aims to be
//
// - easy to implement
// - efficient to parse
// - minimize memory usage
// - be human readable
//
// It is a classic slash-command chat protocol: clients type either plain
// chat text or a command starting with '/'.
//
// - `Limits`  - The sizing constants (name length, message length) that
//               bound every buffer this package touches.
// - `Codec`   - Captures a Limits value and exposes all parsing and
//               formatting operations.
// - `Command` - A parsed slash command.
// - `WireMsg` - A normalized inbound line: its kind plus payload.
//
// === Client Commands
//
// - `/nick <name>`             - request a new display name
// - `/quit`                    - indicates that the client wishes to quit
//                                and that the server can close the connection
// - `/me <action>`             - a third-person emote
// - `/whisper <target> <text>` - a private message (alias `/w`)
//
// === General Syntax
//
// - incoming lines end with '\n' or "\r\n", outgoing lines always end with
//   a single '\n'
// - command words are case sensitive and lowercase
// - command fields are separated by runs of whitespace, which collapse to
//   a single separator
// - any line that does not start with '/' is chat text
//
// === Server output
//
//   ```
//     alice: hello everyone\n      chat
//     * alice waves\n              emote
//     * bob joined\n               system notice
//     [alice->bob] psst\n          private, recipient's copy
//     [to @bob] psst\n             private, sender's copy
//   ```
//
// === Error responses
//
// Malformed commands never kill the connection. The server replies with one
// of a fixed set of literal lines, e.g.
//
//   ```
//     > /frobnicate\n
//     < * error: unknown command\n
//   ```
//
// This package does no I/O and holds no state between calls: every operation
// reads only its arguments and local scratch space, so a single Codec is safe
// to share between every connection goroutine without synchronization.
