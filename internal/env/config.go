package env

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"

	"github.com/luma/parley/protocol"
)

type Config struct {
	// DebugHTTP enables gin's debug mode on the HTTP side channel.
	DebugHTTP bool `env:"PARLEY_DEBUG_HTTP"`

	// Debug switches the logger to a human readable development encoding.
	Debug bool `env:"PARLEY_DEBUG"`

	// MaxClients caps concurrent connections. Zero means unlimited.
	MaxClients int `env:"PARLEY_MAX_CLIENTS,default=128"`

	// NameLen and MaxMsgLen feed protocol.Limits; see Limits().
	NameLen   int `env:"PARLEY_NAME_LEN,default=32"`
	MaxMsgLen int `env:"PARLEY_MAX_MSG_LEN,default=1024"`

	// BufSize is the per-connection read buffer. Must exceed MaxMsgLen.
	BufSize int `env:"PARLEY_BUF_SIZE,default=4096"`

	// AnnounceJoins controls the "* name joined" / "* name left" notices.
	AnnounceJoins bool `env:"PARLEY_JOIN_LEAVE_MSGS,default=true"`
}

func LoadConfig(ctx context.Context) (*Config, error) {
	config := Config{}

	if err := godotenv.Load(".env.local"); err != nil {
		if !os.IsNotExist(err) {
			panic(err)
		}
	}

	if err := envconfig.Process(ctx, &config); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) Limits() protocol.Limits {
	return protocol.Limits{
		NameLen:   c.NameLen,
		MaxMsgLen: c.MaxMsgLen,
	}
}
