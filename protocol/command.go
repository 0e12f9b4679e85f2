package protocol

type CmdType string

const (
	CmdInvalid CmdType = "invalid"
	CmdNick    CmdType = "nick"
	CmdQuit    CmdType = "quit"
	CmdMe      CmdType = "me"
	CmdWhisper CmdType = "whisper"
)

type MsgKind string

const (
	MsgChat    MsgKind = "chat"
	MsgCommand MsgKind = "command"
	MsgSystem  MsgKind = "system"
	MsgPrivate MsgKind = "private"
)
