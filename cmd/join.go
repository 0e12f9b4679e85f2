package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luma/parley/client"
	"github.com/luma/parley/protocol"
)

var (
	// The server to connect to
	joinAddr string

	// The display name to request once connected
	joinNick string
)

func init() {
	flags := JoinCmd.PersistentFlags()

	flags.StringVar(&joinAddr, "addr", "127.0.0.1:5555", "The host:port of the Parley server")
	flags.StringVarP(&joinNick, "nick", "n", "", "A display name to request after connecting")
}

var JoinCmd = &cobra.Command{
	Use:   "join",
	Short: "Connect to a Parley server and chat from the terminal",
	Long: `Connect to a Parley server and chat from the terminal

Type plain text to chat, or slash commands:

	/nick <name>
	/me <action>
	/whisper <target> <text>
	/quit

`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, signalStop := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
		defer signalStop()

		codec, err := protocol.NewCodec(protocol.DefaultLimits())
		if err != nil {
			return err
		}

		conn := client.New(codec, zap.NewNop())
		if err := conn.Connect(ctx, joinAddr); err != nil {
			return err
		}
		defer conn.Disconnect()

		if joinNick != "" {
			if err := conn.Nick(joinNick); err != nil {
				return err
			}
		}

		done := make(chan struct{})

		go func() {
			defer close(done)

			for line := range conn.Lines() {
				fmt.Println(line)
			}
		}()

		go func() {
			scanner := bufio.NewScanner(os.Stdin)
			for scanner.Scan() {
				if err := send(codec, conn, scanner.Text()); err != nil {
					fmt.Println("!", err)
				}
			}

			// Stdin closed, tell the server we're done
			if err := conn.Quit(); err != nil {
				fmt.Println("!", err)
			}
		}()

		select {
		case <-ctx.Done():
		case <-done:
		}

		return nil
	},
}

// send routes one typed line: plain text becomes chat, slash commands go
// through the same parser the server uses so mistakes surface locally.
func send(codec *protocol.Codec, conn *client.Conn, text string) error {
	if !protocol.IsCommand([]byte(text)) {
		if strings.TrimSpace(text) == "" {
			return nil
		}

		return conn.Say(text)
	}

	parsed, err := codec.ParseCommand([]byte(text))
	if err != nil {
		return err
	}

	switch parsed.Type {
	case protocol.CmdNick:
		return conn.Nick(parsed.Name)

	case protocol.CmdQuit:
		return conn.Quit()

	case protocol.CmdMe:
		return conn.Me(parsed.Text)

	case protocol.CmdWhisper:
		return conn.Whisper(parsed.Name, parsed.Text)

	default:
		return nil
	}
}
