package client

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/luma/parley/protocol"
)

var (
	ErrNotConnected = errors.New("The connection has not been established")
	ErrBadName      = errors.New("That name would be rejected by the server")
	ErrHasNewline   = errors.New("Text must not contain a line terminator")
	ErrIsCommand    = errors.New("Chat text must not start with a slash")
	ErrEmptyWhisper = errors.New("A whisper needs a message body")
)

// Conn is a minimal Parley client connection. Incoming lines arrive on
// Lines() already rendered by the server; outgoing chat and commands go
// through the typed methods below, which validate locally with the same
// codec the server parses with.
type Conn struct {
	ctx context.Context

	mu   sync.Mutex
	conn *net.TCPConn

	codec *protocol.Codec

	lines chan string

	log *zap.Logger
}

func New(codec *protocol.Codec, log *zap.Logger) *Conn {
	return &Conn{
		codec: codec,
		lines: make(chan string, 255),
		log:   log,
	}
}

func (c *Conn) Connect(ctx context.Context, addr string) error {
	c.ctx = ctx

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn.(*net.TCPConn)
	c.mu.Unlock()

	go c.readLoop()

	return nil
}

func (c *Conn) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}

	return c.conn.Close()
}

// Lines delivers every line the server sends, terminator stripped. The
// channel closes when the server hangs up.
func (c *Conn) Lines() <-chan string {
	return c.lines
}

// Say sends text as a plain chat line.
func (c *Conn) Say(text string) error {
	if strings.ContainsAny(text, "\r\n") {
		return ErrHasNewline
	}

	// A leading slash would parse as a command server-side.
	if protocol.IsCommand([]byte(text)) {
		return ErrIsCommand
	}

	return c.writeLine(text)
}

// Nick requests a new display name.
func (c *Conn) Nick(name string) error {
	if !c.codec.ValidateName(name) || strings.ContainsRune(name, ' ') {
		return ErrBadName
	}

	return c.writeLine("/nick " + name)
}

// Me sends a third-person emote.
func (c *Conn) Me(action string) error {
	if strings.ContainsAny(action, "\r\n") {
		return ErrHasNewline
	}

	return c.writeLine("/me " + action)
}

// Whisper sends a private message to the named member.
func (c *Conn) Whisper(to, body string) error {
	if !c.codec.ValidateName(to) || strings.ContainsRune(to, ' ') {
		return ErrBadName
	}

	if strings.ContainsAny(body, "\r\n") {
		return ErrHasNewline
	}

	if strings.TrimSpace(body) == "" {
		return ErrEmptyWhisper
	}

	return c.writeLine("/whisper " + to + " " + body)
}

// Quit tells the server we are leaving. The server closes the connection,
// which ends the read loop and closes Lines().
func (c *Conn) Quit() error {
	return c.writeLine("/quit")
}

func (c *Conn) writeLine(line string) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}

	_, err := conn.Write(append([]byte(line), '\n'))
	return err
}

func (c *Conn) readLoop() {
	log := c.log.Named("readLoop")

	defer close(c.lines)

	r := bufio.NewReader(c.conn)

	for {
		select {
		case <-c.ctx.Done():
			log.Info("Context cancelled, exiting...")
			return

		default:
			raw, err := r.ReadBytes('\n')
			if err != nil {
				if !errors.Is(err, io.EOF) {
					log.Warn("Failed to read server line", zap.Error(err))
				}
				return
			}

			c.lines <- string(protocol.ChompLineEnding(raw))
		}
	}
}
