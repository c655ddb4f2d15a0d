// Package wattbox implements a session-oriented client for SnapAV
// WattBox power distribution units speaking the Integration Protocol
// over Telnet, SSH or a serial console.
//
// All transport I/O runs through a single event loop per Client, which
// keeps the strictly half-duplex request/response protocol honest while
// still delivering unsolicited device notifications. Independent
// Clients are fully independent and may be used concurrently.
package wattbox

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/bballdavis/wattbox-go/protocol"
)

// Client represents one authenticated session with a WattBox device.
// Create it with New, then run Loop in a goroutine before issuing
// commands.
type Client struct {
	// transport is the established byte stream to the device.
	transport Transport
	// config holds the session settings.
	config Config
	// log receives structured session events.
	log *slog.Logger

	// closed flips once and stays set after Close.
	closed atomic.Bool
	// closeOnce makes teardown idempotent.
	closeOnce sync.Once
	// loopRunning guards against a second Loop invocation.
	loopRunning atomic.Bool
	// eventsOnce guards the close of the events channel on shutdown.
	eventsOnce sync.Once

	// tokens carries framed lines from the reader goroutine; it is the
	// only path any protocol data takes out of the transport.
	tokens chan string
	// scanErrs carries a terminal read error from the reader goroutine.
	scanErrs chan error
	// commands queues requests for the Loop to execute.
	commands chan *commandRequest
	// events delivers unsolicited device messages to subscribers.
	events chan protocol.Message

	// loopCtx/loopCancel bound the reader goroutine and the Loop.
	loopCtx    context.Context
	loopCancel context.CancelFunc

	// mu guards the capability record and cached device identity below.
	mu          sync.Mutex
	caps        map[Feature]Support
	model       string
	firmware    string
	outletCount int
}

// commandRequest is one protocol command awaiting execution by the Loop.
type commandRequest struct {
	cmd      protocol.Command
	respChan chan commandResponse
	ctx      context.Context
}

func (r *commandRequest) respond(msg protocol.Message, err error) {
	r.respChan <- commandResponse{msg: msg, err: err}
}

// commandResponse is the outcome of one commandRequest.
type commandResponse struct {
	msg protocol.Message
	err error
}

// New dials the device and drives the login handshake to the
// authenticated state. The returned Client is ready for commands once
// Loop is running. On any failure the transport is torn down and an
// error is returned; authentication failures satisfy
// errors.Is(err, ErrAuthentication).
func New(ctx context.Context, config Config) (*Client, error) {
	if config.dialer == nil {
		return nil, ErrNoDialer
	}
	config.setDefaults()

	transport, err := config.dialer.Dial(ctx)
	if err != nil {
		return nil, err
	}
	if transport == nil {
		return nil, ErrNotConnected
	}

	c := &Client{
		transport: transport,
		config:    config,
		log:       config.logger,
		tokens:    make(chan string, 10),
		scanErrs:  make(chan error, 1),
		commands:  make(chan *commandRequest),
		events:    make(chan protocol.Message, config.eventBuffer),
		caps:      make(map[Feature]Support),
	}
	c.loopCtx, c.loopCancel = context.WithCancel(context.Background())

	go c.readLines()

	loginCtx, cancel := context.WithTimeout(ctx, config.loginTimeout)
	defer cancel()

	if err := c.login(loginCtx); err != nil {
		c.loopCancel()
		transport.Close()
		return nil, err
	}

	return c, nil
}

// readLines is the only reader of the transport. It frames the byte
// stream into lines and prompt tokens and hands them to the login
// handshake and then to the Loop via the tokens channel.
func (c *Client) readLines() {
	defer close(c.tokens)

	prompts := append(append([]string{}, c.config.usernamePrompts...), c.config.passwordPrompts...)
	scanner := bufio.NewScanner(c.transport)
	scanner.Split(protocol.NewFramer(prompts...).Split)

	for scanner.Scan() {
		token := scanner.Text()
		if token == "" {
			continue
		}
		select {
		case c.tokens <- token:
		case <-c.loopCtx.Done():
			return
		}
	}
	if err := scanner.Err(); err != nil {
		select {
		case c.scanErrs <- err:
		case <-c.loopCtx.Done():
		}
	}
}

// login drives the prompt-driven handshake: wait for the username
// prompt, send the username, wait for the password prompt, send the
// password, then wait for either a success indicator or the first
// protocol-framed line. Banner noise before prompts is tolerated.
func (c *Client) login(ctx context.Context) error {
	if err := c.awaitPrompt(ctx, c.config.usernamePrompts); err != nil {
		return fmt.Errorf("awaiting username prompt: %w", err)
	}
	if err := c.writeLine(c.config.username); err != nil {
		return err
	}
	if err := c.awaitPrompt(ctx, c.config.passwordPrompts); err != nil {
		return fmt.Errorf("awaiting password prompt: %w", err)
	}
	if err := c.writeLine(c.config.password); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: no login confirmation: %v", ErrAuthentication, ctx.Err())
		case err := <-c.scanErrs:
			return fmt.Errorf("%w: %v", ErrNotConnected, err)
		case token, ok := <-c.tokens:
			if !ok {
				return fmt.Errorf("%w: connection closed during login", ErrNotConnected)
			}
			switch {
			case containsAnyFold(token, protocol.RejectIndicators) ||
				containsAnyFold(token, c.config.usernamePrompts):
				// The device either said so explicitly or presented the
				// login prompt again.
				return fmt.Errorf("%w: device rejected credentials", ErrAuthentication)
			case containsAnyFold(token, []string{protocol.SuccessIndicator}),
				protocol.Classify(token) != protocol.MsgUnknown:
				c.log.Debug("login complete", "line", token)
				return nil
			default:
				// Banner text, keep reading.
			}
		}
	}
}

// awaitPrompt discards lines until one matches a prompt pattern.
func (c *Client) awaitPrompt(ctx context.Context, prompts []string) error {
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrNotConnected, ctx.Err())
		case err := <-c.scanErrs:
			return fmt.Errorf("%w: %v", ErrNotConnected, err)
		case token, ok := <-c.tokens:
			if !ok {
				return fmt.Errorf("%w: connection closed", ErrNotConnected)
			}
			if containsAnyFold(token, prompts) {
				return nil
			}
			c.log.Debug("skipping banner line", "line", token)
		}
	}
}

func (c *Client) writeLine(s string) error {
	if _, err := c.transport.Write([]byte(s + protocol.Terminator)); err != nil {
		return fmt.Errorf("%w: write: %v", ErrNotConnected, err)
	}
	return nil
}

// Loop is the event loop that executes all commands and dispatches
// unsolicited messages. It must be started exactly once after New,
// typically in its own goroutine, and runs until the context is
// cancelled or the transport fails.
//
// The Loop enforces the half-duplex contract: at most one command is
// outstanding at a time, residual input is drained before each send,
// and every incoming line is classified before it can complete the
// pending request.
//
// When Loop returns the session is dead: queued and future commands
// fail fast with ErrNotConnected (or ErrClosed after Close) and the
// events channel is closed.
func (c *Client) Loop(ctx context.Context) error {
	if !c.loopRunning.CompareAndSwap(false, true) {
		return ErrLoopRunning
	}
	defer c.shutdown()
	defer c.loopRunning.Store(false)

	var (
		current *commandRequest
		// cmdDone fires when the pending request's deadline expires; nil
		// (blocking forever) while no request is pending.
		cmdDone <-chan struct{}
		// accept is nilled out while a request is in flight so a second
		// caller blocks instead of clobbering the pending one.
		accept = c.commands
	)

	finish := func(msg protocol.Message, err error) {
		current.respond(msg, err)
		current = nil
		cmdDone = nil
		accept = c.commands
	}

	for {
		select {
		case <-ctx.Done():
			if current != nil {
				finish(protocol.Message{}, ctx.Err())
			}
			return ctx.Err()

		case req := <-accept:
			c.drainResidual()
			wire := req.cmd.Format() + protocol.Terminator
			if _, err := c.transport.Write([]byte(wire)); err != nil {
				req.respond(protocol.Message{}, fmt.Errorf("%w: write %s: %v", ErrNotConnected, req.cmd.Name, err))
				continue
			}
			c.log.Debug("sent command", "command", req.cmd.Name)
			current = req
			cmdDone = req.ctx.Done()
			accept = nil

		case <-cmdDone:
			err := current.ctx.Err()
			if errors.Is(err, context.DeadlineExceeded) {
				err = fmt.Errorf("%w: %s", ErrTimeout, current.cmd.Name)
			}
			finish(protocol.Message{}, err)

		case token, ok := <-c.tokens:
			if !ok {
				if current != nil {
					finish(protocol.Message{}, fmt.Errorf("%w: connection closed", ErrNotConnected))
				}
				return io.EOF
			}
			if resp, done := c.handleToken(token, current); done {
				finish(resp.msg, resp.err)
			}

		case err := <-c.scanErrs:
			if current != nil {
				finish(protocol.Message{}, fmt.Errorf("%w: read: %v", ErrNotConnected, err))
			}
			return fmt.Errorf("read: %w", err)
		}
	}
}

// handleToken classifies one line against the pending request. The
// returned response is meaningful only when done is true.
func (c *Client) handleToken(token string, current *commandRequest) (resp commandResponse, done bool) {
	msg, err := protocol.Parse(token)
	if err != nil {
		if current == nil {
			c.log.Debug("dropping unclassifiable line", "line", token)
			return commandResponse{}, false
		}
		return commandResponse{err: fmt.Errorf("%w: %q", ErrMalformedResponse, token)}, true
	}

	switch msg.Kind {
	case protocol.MsgUnsolicited:
		// Never a response to the pending request; hand it to
		// subscribers and keep waiting.
		c.dispatchEvent(msg)

	case protocol.MsgError:
		if current == nil {
			c.log.Debug("dropping orphaned error frame", "line", token)
			break
		}
		code := -1
		if len(msg.Fields) > 0 {
			if n, err := strconv.Atoi(msg.Fields[0]); err == nil {
				code = n
			}
		}
		return commandResponse{err: &CommandError{Code: code}}, true

	case protocol.MsgQueryReply, protocol.MsgControlAck:
		if current != nil && msg.Name == current.cmd.Name {
			return commandResponse{msg: msg}, true
		}
		// Cross-talk from a prior exchange; discard and keep waiting,
		// bounded by the pending request's own deadline.
		c.log.Debug("discarding mismatched reply", "line", token)
	}
	return commandResponse{}, false
}

// drainResidual consumes every line already buffered before a new
// command is written, so a stale leftover can never correlate with the
// fresh request. Unsolicited lines are still dispatched.
func (c *Client) drainResidual() {
	for {
		select {
		case token, ok := <-c.tokens:
			if !ok {
				return
			}
			if msg, err := protocol.Parse(token); err == nil && msg.Kind == protocol.MsgUnsolicited {
				c.dispatchEvent(msg)
				continue
			}
			c.log.Debug("dropping stale line", "line", token)
		default:
			return
		}
	}
}

func (c *Client) dispatchEvent(msg protocol.Message) {
	select {
	case c.events <- msg:
	default:
		// Subscriber is not keeping up; dropping beats blocking the loop.
		c.log.Warn("dropping unsolicited message", "command", msg.Name)
	}
}

// shutdown marks the session dead once the event loop stops: commands
// already queued and every later exec fail fast via the loop context,
// and subscribers ranging over Events observe the channel close.
func (c *Client) shutdown() {
	c.loopCancel()
	c.eventsOnce.Do(func() { close(c.events) })
}

// sessionErr reports why the session is unusable, or nil while it is.
func (c *Client) sessionErr() error {
	if c.closed.Load() {
		return ErrClosed
	}
	if c.transport == nil || c.loopCtx.Err() != nil {
		return ErrNotConnected
	}
	return nil
}

// Events returns the channel carrying unsolicited device messages
// (lines with the '~' sigil, such as spontaneous outlet status pushes).
// The channel is buffered; messages are dropped when it is full. It is
// closed when the event loop stops, on transport loss or Close.
func (c *Client) Events() <-chan protocol.Message {
	return c.events
}

// Send executes one command and returns its classified reply, applying
// the per-command timeout from the configuration when ctx carries no
// deadline. Timeouts and malformed responses are retried exactly once;
// everything else surfaces immediately.
func (c *Client) Send(ctx context.Context, cmd protocol.Command) (protocol.Message, error) {
	return sendParsed(ctx, c, cmd, func(msg protocol.Message) (protocol.Message, error) {
		return msg, nil
	})
}

// sendParsed executes cmd and decodes its reply, applying the single
// retry policy uniformly: a timeout, an unclassifiable line, or a reply
// that fails its schema each earn one fresh attempt before the error
// surfaces.
func sendParsed[T any](ctx context.Context, c *Client, cmd protocol.Command, decode func(protocol.Message) (T, error)) (T, error) {
	var zero T
	attempt := func() (T, error) {
		msg, err := c.exec(ctx, cmd)
		if err != nil {
			return zero, err
		}
		v, err := decode(msg)
		if err != nil {
			if errors.Is(err, protocol.ErrMalformed) {
				err = fmt.Errorf("%w: %v", ErrMalformedResponse, err)
			}
			return zero, err
		}
		return v, nil
	}

	v, err := attempt()
	if err != nil && retryable(err) && ctx.Err() == nil {
		c.log.Debug("retrying command", "command", cmd.Name, "error", err)
		v, err = attempt()
	}
	return v, err
}

// exec performs a single command attempt through the Loop.
func (c *Client) exec(ctx context.Context, cmd protocol.Command) (protocol.Message, error) {
	if err := c.sessionErr(); err != nil {
		return protocol.Message{}, err
	}

	if _, ok := ctx.Deadline(); !ok && c.config.commandTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.commandTimeout)
		defer cancel()
	}

	req := &commandRequest{
		cmd:      cmd,
		respChan: make(chan commandResponse, 1), // buffered so the Loop never blocks on it
		ctx:      ctx,
	}

	select {
	case c.commands <- req:
	case <-ctx.Done():
		return protocol.Message{}, execCtxErr(ctx, cmd)
	case <-c.loopCtx.Done():
		return protocol.Message{}, c.sessionErr()
	}

	select {
	case resp := <-req.respChan:
		return resp.msg, resp.err
	case <-c.loopCtx.Done():
		return protocol.Message{}, c.sessionErr()
	}
}

func execCtxErr(ctx context.Context, cmd protocol.Command) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", ErrTimeout, cmd.Name)
	}
	return ctx.Err()
}

// Connected reports whether the session is usable for commands. It
// turns false once the client is closed or the transport is lost.
func (c *Client) Connected() bool {
	return c.sessionErr() == nil
}

// Close tears the session down: it sends a best-effort graceful exit,
// stops the event loop and closes the transport. Close is idempotent;
// repeat calls return nil.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		if c.transport != nil {
			// Best effort; the device drops the session either way.
			c.transport.Write([]byte(protocol.Control(protocol.CmdExit, "").Format() + protocol.Terminator))
		}
		if c.loopCancel != nil {
			c.loopCancel()
		}
		if c.transport != nil {
			err = c.transport.Close()
		}
	})
	return err
}

// containsAnyFold reports whether s contains any of the needles,
// ignoring case.
func containsAnyFold(s string, needles []string) bool {
	lower := strings.ToLower(s)
	for _, n := range needles {
		if n != "" && strings.Contains(lower, strings.ToLower(n)) {
			return true
		}
	}
	return false
}
