package wattbox

import (
	"context"
	"io"
	"strings"
	"sync"
)

// TestTransport is a test helper that simulates a blocking transport
// using channels. Reads block until data is queued, like a real socket,
// which the reader goroutine depends on. An optional write handler
// turns it into a scripted device: each written line produces the
// responses the handler returns, so responses can never race ahead of
// the commands that cause them.
type TestTransport struct {
	mu       sync.Mutex
	readChan chan []byte
	closed   bool
	writes   []string
	handler  func(line string) []string
}

// NewTestTransport creates a new test transport. Exported for use in
// tests.
func NewTestTransport() *TestTransport {
	return &TestTransport{
		readChan: make(chan []byte, 64),
	}
}

// Handle installs the scripted responder. The handler receives each
// written line (terminator stripped) and returns the raw chunks the
// device answers with, queued in order for subsequent reads.
func (t *TestTransport) Handle(fn func(line string) []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handler = fn
}

func (t *TestTransport) Write(p []byte) (n int, err error) {
	line := strings.TrimRight(string(p), "\r\n")

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return 0, io.ErrClosedPipe
	}
	t.writes = append(t.writes, line)
	handler := t.handler
	t.mu.Unlock()

	if handler != nil {
		for _, resp := range handler(line) {
			t.SendData(resp)
		}
	}
	return len(p), nil
}

func (t *TestTransport) Read(p []byte) (n int, err error) {
	data, ok := <-t.readChan
	if !ok {
		return 0, io.EOF
	}
	return copy(p, data), nil
}

func (t *TestTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	close(t.readChan)
	return nil
}

// SendData queues data to be read from the transport, simulating
// device-initiated output such as banners or unsolicited messages.
func (t *TestTransport) SendData(data string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.readChan <- []byte(data)
	}
}

// Writes returns every line written to the transport so far.
func (t *TestTransport) Writes() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string{}, t.writes...)
}

// Dialer returns a Dialer handing out this transport, for wiring the
// fake into New.
func (t *TestTransport) Dialer() Dialer {
	return testDialer{t}
}

type testDialer struct {
	t *TestTransport
}

func (d testDialer) Dial(ctx context.Context) (Transport, error) {
	return d.t, nil
}
