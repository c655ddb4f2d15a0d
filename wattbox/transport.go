package wattbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"go.bug.st/serial"
	"golang.org/x/crypto/ssh"
)

//go:generate go tool mockgen -source=transport.go -destination=mock_wattbox.go -package=wattbox

// Transport represents an established, bidirectional byte stream to a
// WattBox device.
//
// A Transport is assumed to be already connected and ready for use. It
// provides the low-level I/O primitives the protocol engine reads lines
// from and writes command lines to. Typical implementations are a raw
// TCP socket (the device's Telnet service), an SSH shell session, or an
// in-memory fake used in tests.
type Transport interface {
	io.ReadWriteCloser
}

// Dialer opens a Transport to a WattBox device.
//
// Dialer abstracts how the connection is created and is used during
// client construction only. Once a Transport is obtained, the Dialer is
// no longer needed.
type Dialer interface {
	// Dial creates and returns a connected Transport. It may block and
	// should respect cancellation and deadlines on the context.
	Dial(ctx context.Context) (Transport, error)
}

// TCPDialer connects to the device's Telnet service over a raw TCP
// socket. WattBox units listen on port 23 by default; the service speaks
// plain text with no Telnet option negotiation.
type TCPDialer struct {
	// Address is the host:port of the device.
	Address string
}

func (d TCPDialer) Dial(ctx context.Context) (Transport, error) {
	if ctx == nil {
		return nil, errors.New("wattbox: context is nil")
	}
	if d.Address == "" {
		return nil, errors.New("wattbox: address is required")
	}
	var nd net.Dialer
	conn, err := nd.DialContext(ctx, "tcp", d.Address)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", d.Address, err)
	}
	return conn, nil
}

// SSHDialer connects to the device's SSH service and opens a shell
// session. The shell speaks the same line protocol as the Telnet
// service, including the textual login banner.
type SSHDialer struct {
	// Address is the host:port of the device's SSH service.
	Address string
	// Username and Password authenticate the SSH layer itself.
	Username string
	Password string
	// HostKeyCallback verifies the device's host key. Defaults to
	// ssh.InsecureIgnoreHostKey, which matches how these appliances are
	// deployed on closed management networks; override it when the host
	// key is known.
	HostKeyCallback ssh.HostKeyCallback
	// Timeout bounds the TCP connect and SSH handshake.
	Timeout time.Duration
}

func (d SSHDialer) Dial(ctx context.Context) (Transport, error) {
	if ctx == nil {
		return nil, errors.New("wattbox: context is nil")
	}
	if d.Address == "" {
		return nil, errors.New("wattbox: address is required")
	}

	hostKey := d.HostKeyCallback
	if hostKey == nil {
		hostKey = ssh.InsecureIgnoreHostKey()
	}
	cfg := &ssh.ClientConfig{
		User:            d.Username,
		Auth:            []ssh.AuthMethod{ssh.Password(d.Password)},
		HostKeyCallback: hostKey,
		Timeout:         d.Timeout,
	}

	client, err := ssh.Dial("tcp", d.Address, cfg)
	if err != nil {
		return nil, fmt.Errorf("ssh dial %s: %w", d.Address, err)
	}
	session, err := client.NewSession()
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("ssh session: %w", err)
	}
	stdin, err := session.StdinPipe()
	if err != nil {
		session.Close()
		client.Close()
		return nil, fmt.Errorf("ssh stdin: %w", err)
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		session.Close()
		client.Close()
		return nil, fmt.Errorf("ssh stdout: %w", err)
	}
	if err := session.Shell(); err != nil {
		session.Close()
		client.Close()
		return nil, fmt.Errorf("ssh shell: %w", err)
	}

	return &sshTransport{
		stdin:   stdin,
		stdout:  stdout,
		session: session,
		client:  client,
	}, nil
}

// sshTransport adapts an SSH shell session's pipes to the Transport
// interface. Close tears down the session and the underlying client and
// is safe to call more than once.
type sshTransport struct {
	stdin     io.WriteCloser
	stdout    io.Reader
	session   *ssh.Session
	client    *ssh.Client
	closeOnce sync.Once
	closeErr  error
}

func (t *sshTransport) Read(p []byte) (int, error)  { return t.stdout.Read(p) }
func (t *sshTransport) Write(p []byte) (int, error) { return t.stdin.Write(p) }

func (t *sshTransport) Close() error {
	t.closeOnce.Do(func() {
		t.stdin.Close()
		t.session.Close()
		t.closeErr = t.client.Close()
	})
	return t.closeErr
}

// SerialDialer opens the line protocol over a serial port. Used for
// units wired to an RS-232 console server instead of the management
// network; the device skips the login prompts on the console line, so
// pair this with empty prompt sets.
type SerialDialer struct {
	// PortName is the serial device path (e.g. "/dev/ttyUSB0").
	PortName string
	// Mode configures baud rate, parity, data and stop bits. Defaults to
	// 115200 8N1 when nil.
	Mode *serial.Mode
}

func (d SerialDialer) Dial(ctx context.Context) (Transport, error) {
	if ctx == nil {
		return nil, errors.New("wattbox: context is nil")
	}
	if d.PortName == "" {
		return nil, errors.New("wattbox: serial port name is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mode := d.Mode
	if mode == nil {
		mode = &serial.Mode{
			BaudRate: 115200,
			Parity:   serial.NoParity,
			DataBits: 8,
			StopBits: serial.OneStopBit,
		}
	}

	port, err := serial.Open(d.PortName, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", d.PortName, err)
	}
	return port, nil
}
