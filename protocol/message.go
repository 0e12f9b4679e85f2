package protocol

// Command is the structured form of a slash command line.
type Command struct {
	Type CmdType

	// Name is the name-like token: the requested display name for /nick,
	// the recipient for /whisper. Always shorter than Limits.NameLen.
	Name string

	// Text is the free-text remainder: the action for /me, the message body
	// for /whisper. Never longer than Limits.MaxMsgLen.
	Text string
}

// WireMsg is one normalized inbound line: a message kind plus its payload.
type WireMsg struct {
	Kind MsgKind

	// Text holds display text for the chat, system, and private kinds. For
	// the command kind it holds the original (possibly truncated) line.
	Text string

	// Cmd is only meaningful when Kind == MsgCommand.
	Cmd Command
}

func ChatMsg(text string) WireMsg {
	return WireMsg{Kind: MsgChat, Text: text}
}

func SystemMsg(text string) WireMsg {
	return WireMsg{Kind: MsgSystem, Text: text}
}

func PrivateMsg(text string) WireMsg {
	return WireMsg{Kind: MsgPrivate, Text: text}
}

func CommandMsg(original string, cmd Command) WireMsg {
	return WireMsg{Kind: MsgCommand, Text: original, Cmd: cmd}
}
