package transport

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	reuseport "github.com/kavu/go_reuseport"
	"go.uber.org/zap"

	"github.com/luma/parley/protocol"
	"github.com/luma/parley/roster"
)

const (
	DefaultBufSize = 4096

	WriteQueueSize = 127
)

var (
	ErrConnClosed = errors.New("Connection is closed")
)

type TCP struct {
	cancel     context.CancelFunc
	stopWaiter sync.WaitGroup

	addr string

	numListeners int
	listeners    []*TCPListener

	registry roster.Registry
	codec    *protocol.Codec

	bufSize       int
	announceJoins bool
	trace         bool

	guestSeq uint64

	log *zap.Logger
}

func NewTCP(options Options) *TCP {
	numListeners := options.NumListeners

	if numListeners < 1 {
		numListeners = runtime.NumCPU()
	}

	bufSize := options.BufSize
	if bufSize == 0 {
		bufSize = DefaultBufSize
	}

	if bufSize <= options.Codec.Limits().MaxMsgLen {
		// A read buffer that cannot hold a full message plus prefix would
		// truncate well-formed input, so refuse to run with one.
		bufSize = options.Codec.Limits().MaxWireLine() + 1

		options.Log.Warn("BufSize below the message maximum, raising it",
			zap.Int("requested", options.BufSize),
			zap.Int("bufSize", bufSize))
	}

	return &TCP{
		addr:          net.JoinHostPort(options.Host, strconv.Itoa(options.Port)),
		numListeners:  numListeners,
		listeners:     make([]*TCPListener, 0, numListeners),
		registry:      options.Registry,
		codec:         options.Codec,
		bufSize:       bufSize,
		announceJoins: options.AnnounceJoins,
		trace:         options.Trace,
		log:           options.Log,
	}
}

func (w *TCP) Start(parentCtx context.Context) error {
	ctx, cancel := context.WithCancel(parentCtx)
	w.cancel = cancel

	w.log.Info("Starting tcp listeners", zap.Int("count", w.numListeners))

	for i := 0; i < w.numListeners; i++ {
		w.startListener(ctx, w.addr)
	}

	return nil
}

func (w *TCP) Registry() roster.Registry {
	return w.registry
}

func (w *TCP) startListener(ctx context.Context, addr string) {
	w.stopWaiter.Add(1)
	listener := NewTCPListener(
		ctx,
		addr,
		w,
		w.log.Named("listener").With(zap.Int("listener", len(w.listeners))),
	)

	w.listeners = append(w.listeners, &listener)

	go func() {
		defer w.stopWaiter.Done()

		if err := listener.Listen(); err != nil {
			w.log.Error("Failed to listen", zap.Error(err))
		}
	}()
}

// Close immediately closes all active listeners and connections.
func (w *TCP) Close() error {
	w.log.Info("Stopping TCP server")

	if w.cancel == nil {
		// Never started, there is nothing to stop
		return nil
	}

	w.cancel()

	// Tell listeners to stop
	for _, listener := range w.listeners {
		listener.Close()
	}

	w.stopWaiter.Wait()
	w.log.Info("Listeners stopped")

	return nil
}

// nextGuestName mints the placeholder name a connection carries until its
// first successful /nick.
func (w *TCP) nextGuestName() string {
	return fmt.Sprintf("guest-%d", atomic.AddUint64(&w.guestSeq, 1))
}

type TCPListener struct {
	ctx context.Context

	addr string
	log  *zap.Logger

	server *TCP

	mu          sync.Mutex
	activeConns map[*TCPConn]struct{}
}

func NewTCPListener(
	ctx context.Context,
	addr string,
	server *TCP,
	log *zap.Logger,
) TCPListener {
	return TCPListener{
		ctx:         ctx,
		activeConns: make(map[*TCPConn]struct{}),
		addr:        addr,
		server:      server,
		log:         log,
	}
}

func (t *TCPListener) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for conn := range t.activeConns {
		conn.Close()
		delete(t.activeConns, conn)
	}

	return nil
}

func (t *TCPListener) Listen() error {
	listener, err := reuseport.Listen("tcp", t.addr)
	if err != nil {
		return err
	}

	defer listener.Close()

	var loopWaiter sync.WaitGroup

	go func() {
		<-t.ctx.Done()

		t.log.Info("Draining reader/writer loops")
		loopWaiter.Wait()

		t.log.Info("Closing listener")
		if err := listener.Close(); err != nil {
			t.log.Warn("TCP Listener did not close cleanly", zap.Error(err))
		}
	}()

	for {
		select {
		case <-t.ctx.Done():
			t.log.Info("Stopped accepting new connections")
			loopWaiter.Wait()

			t.log.Info("Listener stopped")
			return nil

		default:
			conn, err := listener.Accept()
			if err != nil {
				netOpError := new(net.OpError)

				if errors.As(err, &netOpError) && netOpError.Unwrap().Error() == "use of closed network connection" {
					// The connection was closed while we were waiting for new
					// connections, that's fine.
					return nil
				}

				return err
			}

			loopWaiter.Add(1)
			tcpConn := NewTCPConn(t.ctx, conn.(*net.TCPConn), t.server, t.log.Named("conn"))

			t.addConn(tcpConn)

			go func() {
				defer loopWaiter.Done()
				defer t.removeConn(tcpConn)

				tcpConn.Start()
			}()
		}
	}
}

func (t *TCPListener) addConn(conn *TCPConn) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.activeConns[conn] = struct{}{}
}

func (t *TCPListener) removeConn(conn *TCPConn) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.activeConns, conn)
}

type TCPConn struct {
	ctx        context.Context
	cancel     context.CancelFunc
	loopWaiter sync.WaitGroup

	conn   *net.TCPConn
	server *TCP

	// name is the connection's display name in the registry. Only the read
	// loop mutates it.
	name string

	writeQueue chan []byte

	log *zap.Logger
}

func NewTCPConn(
	parentCtx context.Context,
	conn *net.TCPConn,
	server *TCP,
	log *zap.Logger,
) *TCPConn {
	ctx, cancel := context.WithCancel(parentCtx)

	return &TCPConn{
		ctx:        ctx,
		cancel:     cancel,
		conn:       conn,
		server:     server,
		writeQueue: make(chan []byte, WriteQueueSize),
		log:        log,
	}
}

func (t *TCPConn) Close() error {
	if !t.isRunning() {
		// already stopped
		return nil
	}

	t.cancel()

	// Closing the socket unblocks a read in flight so the loops can exit.
	t.conn.Close()

	t.loopWaiter.Wait()

	return nil
}

func (t *TCPConn) Start() {
	if err := t.join(); err != nil {
		t.log.Warn("Rejecting connection", zap.Error(err))
		t.conn.Close()
		t.cancel()
		return
	}

	t.loopWaiter.Add(2)

	go func() {
		defer t.loopWaiter.Done()
		t.ReadLoop()
	}()

	go func() {
		defer t.loopWaiter.Done()
		t.WriteLoop()
	}()

	t.loopWaiter.Wait()
	t.conn.Close()
}

// join registers the connection under a fresh guest name and announces it.
// A guest name can collide when someone previously renamed themselves onto
// one, so mint until an unused one turns up.
func (t *TCPConn) join() error {
	registry := t.server.registry

	for {
		name := t.server.nextGuestName()

		err := registry.Join(name, t)
		if errors.Is(err, roster.ErrNameTaken) {
			continue
		}

		if err != nil {
			return err
		}

		t.name = name
		break
	}

	t.log.Info("Client joined", zap.String("name", t.name))

	if t.server.announceJoins {
		t.announce(t.name + " joined")
	}

	return nil
}

func (t *TCPConn) ReadLoop() {
	log := t.log.Named("readLoop")

	defer func() {
		t.leave()

		// Stop reading, but allow writes to drain
		err := t.conn.CloseRead()
		if err != nil && t.isRunning() && !strings.Contains(err.Error(), "transport endpoint is not connected") {
			log.Warn("Failed to close reads on connection cleanly",
				zap.Error(err))
		}

		t.cancel()
		log.Info("Read loop exited")
	}()

	r := bufio.NewReaderSize(t.conn, t.server.bufSize)

	for {
		select {
		case <-t.ctx.Done():
			log.Info("Context cancelled, exiting...")
			return

		default:
			raw, err := readLine(r)
			if err != nil {
				if !errors.Is(err, io.EOF) && t.isRunning() {
					log.Warn("Failed to read client line", zap.Error(err))
				}
				return
			}

			if t.server.trace {
				log.Debug("Read line", zap.ByteString("line", raw))
			}

			if quit := t.dispatch(protocol.ChompLineEnding(raw)); quit {
				log.Info("Client quit, exiting...")
				return
			}
		}
	}
}

// dispatch runs one terminator-stripped line through the protocol layer and
// acts on the result. It reports whether the client asked to quit.
func (t *TCPConn) dispatch(line []byte) bool {
	if len(line) == 0 {
		// Blank lines carry nothing worth broadcasting.
		return false
	}

	registry := t.server.registry
	codec := t.server.codec

	msg, err := codec.ParseLine(line)
	if err != nil {
		if serr := t.Send(protocol.ErrorLine(err)); serr != nil {
			t.log.Warn("Failed to send error line", zap.Error(serr))
		}
		return false
	}

	switch msg.Kind {
	case protocol.MsgChat:
		out, err := t.render(func(w io.Writer) error {
			return codec.WriteChat(w, t.name, codec.ClampMsg(msg.Text))
		})
		if err != nil {
			t.log.Error("Failed to format chat line", zap.Error(err))
			return false
		}

		if err := registry.Broadcast(out); err != nil {
			t.log.Warn("Chat broadcast did not reach every member", zap.Error(err))
		}

		return false

	case protocol.MsgCommand:
		return t.dispatchCommand(msg.Cmd)

	default:
		// ParseLine only produces chat and command records.
		return false
	}
}

func (t *TCPConn) dispatchCommand(cmd protocol.Command) bool {
	registry := t.server.registry
	codec := t.server.codec

	switch cmd.Type {
	case protocol.CmdNick:
		err := registry.Rename(t.name, cmd.Name)
		if errors.Is(err, roster.ErrNameTaken) {
			if serr := t.Send(protocol.ErrLineNickInUse); serr != nil {
				t.log.Warn("Failed to send error line", zap.Error(serr))
			}
			return false
		}

		if err != nil {
			t.log.Error("Failed to rename client",
				zap.String("name", t.name),
				zap.String("newName", cmd.Name),
				zap.Error(err))
			return false
		}

		oldName := t.name
		t.name = cmd.Name
		t.log.Info("Client renamed",
			zap.String("name", t.name),
			zap.String("oldName", oldName))

		t.announce(oldName + " is now known as " + t.name)
		return false

	case protocol.CmdQuit:
		return true

	case protocol.CmdMe:
		out, err := t.render(func(w io.Writer) error {
			return codec.WriteEmote(w, t.name, cmd.Text)
		})
		if err != nil {
			t.log.Error("Failed to format emote line", zap.Error(err))
			return false
		}

		if err := registry.Broadcast(out); err != nil {
			t.log.Warn("Emote broadcast did not reach every member", zap.Error(err))
		}

		return false

	case protocol.CmdWhisper:
		t.whisper(cmd.Name, cmd.Text)
		return false

	default:
		// The parser rejects everything else before we get here.
		return false
	}
}

func (t *TCPConn) whisper(to, body string) {
	registry := t.server.registry
	codec := t.server.codec

	out, err := t.render(func(w io.Writer) error {
		return codec.WritePrivate(w, t.name, to, body)
	})
	if err != nil {
		t.log.Error("Failed to format private line", zap.Error(err))
		return
	}

	if err := registry.SendTo(to, out); err != nil {
		if !errors.Is(err, roster.ErrNotFound) {
			t.log.Warn("Failed to deliver whisper",
				zap.String("to", to),
				zap.Error(err))
			return
		}

		notice, ferr := t.render(func(w io.Writer) error {
			return codec.WriteSystem(w, "no such user: "+to)
		})
		if ferr != nil {
			t.log.Error("Failed to format notice line", zap.Error(ferr))
			return
		}

		if serr := t.Send(notice); serr != nil {
			t.log.Warn("Failed to send notice", zap.Error(serr))
		}

		return
	}

	echo, err := t.render(func(w io.Writer) error {
		return codec.WritePrivateEcho(w, to, body)
	})
	if err != nil {
		t.log.Error("Failed to format private echo line", zap.Error(err))
		return
	}

	if serr := t.Send(echo); serr != nil {
		t.log.Warn("Failed to echo whisper", zap.Error(serr))
	}
}

// leave deregisters the connection and announces the departure.
func (t *TCPConn) leave() {
	if t.name == "" {
		return
	}

	if err := t.server.registry.Leave(t.name); err != nil {
		t.log.Warn("Failed to deregister client",
			zap.String("name", t.name),
			zap.Error(err))
		return
	}

	t.log.Info("Client left", zap.String("name", t.name))

	if t.server.announceJoins {
		t.announce(t.name + " left")
	}
}

// announce broadcasts a system notice to every member.
func (t *TCPConn) announce(text string) {
	out, err := t.render(func(w io.Writer) error {
		return t.server.codec.WriteSystem(w, text)
	})
	if err != nil {
		t.log.Error("Failed to format notice line", zap.Error(err))
		return
	}

	if err := t.server.registry.Broadcast(out); err != nil {
		t.log.Warn("Notice broadcast did not reach every member", zap.Error(err))
	}
}

func (t *TCPConn) render(write func(w io.Writer) error) ([]byte, error) {
	var buf bytes.Buffer

	if err := write(&buf); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func (t *TCPConn) WriteLoop() {
	log := t.log.Named("writeLoop")

	defer func() {
		err := t.conn.CloseWrite()
		if err != nil && t.isRunning() && !strings.Contains(err.Error(), "transport endpoint is not connected") {
			log.Warn("Failed to close writes on connection cleanly",
				zap.Error(err))
		}

		log.Info("Write loop exited")
	}()

	for {
		select {
		case <-t.ctx.Done():
			return

		case line := <-t.writeQueue:
			if line == nil {
				log.Info("Write loop terminating as write queue has closed")
				return
			}

			if _, err := t.conn.Write(line); err != nil {
				t.log.Error("Failed to write from write queue", zap.Error(err))
				continue
			}
		}
	}
}

// Send queues one finished wire line for the write loop. It is how the
// registry delivers broadcasts and whispers to this connection.
func (t *TCPConn) Send(line []byte) error {
	select {
	case <-t.ctx.Done():
		return ErrConnClosed

	case t.writeQueue <- line:
		return nil
	}
}

// isRunning returns true if Close has not been called
func (t *TCPConn) isRunning() bool {
	select {
	case <-t.ctx.Done():
		// if we can read on this channel then it's been closed
		return false

	default:
		return true
	}
}

// readLine reads one newline-terminated line. A line that overflows the
// read buffer is not fatal: the prefix is kept and the remainder of the
// line is discarded, mirroring the parser's silent truncation.
func readLine(r *bufio.Reader) ([]byte, error) {
	line, err := r.ReadSlice('\n')
	if err != bufio.ErrBufferFull {
		return line, err
	}

	prefix := append([]byte(nil), line...)
	for err == bufio.ErrBufferFull {
		_, err = r.ReadSlice('\n')
	}

	return prefix, err
}

var _ roster.Outbound = (*TCPConn)(nil)
