package stream

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/sentinelmarket/pricestream/internal/connection"
)

var errDialRefused = errors.New("connection refused")

// fakeTransport is an in-memory connection.Client.
type fakeTransport struct {
	dialErr  error
	messages chan connection.TimestampedMessage
	errs     chan error

	mu        sync.Mutex
	connected bool
	closed    bool
	closeCode int
	sent      [][]byte
}

func (f *fakeTransport) Connect(ctx context.Context) error {
	if f.dialErr != nil {
		return f.dialErr
	}
	f.mu.Lock()
	f.connected = true
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) Close() error { return f.CloseWithReason(1000, "") }

func (f *fakeTransport) CloseWithReason(code int, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	f.connected = false
	f.closeCode = code
	return nil
}

func (f *fakeTransport) ForceDisconnect() error {
	select {
	case f.errs <- connection.ErrForcedDisconnect:
	default:
	}
	f.mu.Lock()
	f.connected = false
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return connection.ErrNotConnected
	}
	f.sent = append(f.sent, data)
	return nil
}

func (f *fakeTransport) Messages() <-chan connection.TimestampedMessage { return f.messages }
func (f *fakeTransport) Errors() <-chan error                           { return f.errs }
func (f *fakeTransport) SessionID() string                              { return "fake" }

func (f *fakeTransport) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeTransport) push(data string) {
	f.messages <- connection.TimestampedMessage{Data: []byte(data), ReceivedAt: time.Now()}
}

func (f *fakeTransport) sentFrames() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.sent))
	copy(out, f.sent)
	return out
}

func (f *fakeTransport) closedWith() (bool, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed, f.closeCode
}

// fakeNetwork hands out fakeTransports and decides whether dials succeed.
type fakeNetwork struct {
	mu         sync.Mutex
	fail       bool
	transports []*fakeTransport
}

func (n *fakeNetwork) factory(cfg connection.ClientConfig, logger *slog.Logger) connection.Client {
	n.mu.Lock()
	defer n.mu.Unlock()

	f := &fakeTransport{
		messages: make(chan connection.TimestampedMessage, 64),
		errs:     make(chan error, 1),
	}
	if n.fail {
		f.dialErr = errDialRefused
	}
	n.transports = append(n.transports, f)
	return f
}

func (n *fakeNetwork) setFail(fail bool) {
	n.mu.Lock()
	n.fail = fail
	n.mu.Unlock()
}

func (n *fakeNetwork) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.transports)
}

func (n *fakeNetwork) get(i int) *fakeTransport {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.transports[i]
}

func (n *fakeNetwork) last() *fakeTransport {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.transports[len(n.transports)-1]
}

// waitFor polls cond until it holds or the timeout elapses.
func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
