package transport

import (
	"go.uber.org/zap"

	"github.com/luma/parley/protocol"
	"github.com/luma/parley/roster"
)

type Options struct {
	// Host to listen on
	Host string

	// Port to listen on
	Port int

	// Reuseport controls setting SO_REUSEPORT
	Reuseport bool

	// Trace will log every inbound line. This is only useful in local debugging
	Trace bool

	NumListeners int

	// BufSize is the per-connection read buffer. It must exceed the codec's
	// message maximum so a full message plus prefix always fits; NewTCP
	// raises it if it does not.
	BufSize int

	// AnnounceJoins controls the "* name joined" / "* name left" notices.
	AnnounceJoins bool

	Registry roster.Registry

	Codec *protocol.Codec

	Log *zap.Logger
}
