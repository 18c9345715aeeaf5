package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sentinelmarket/pricestream/internal/connection"
	"github.com/sentinelmarket/pricestream/internal/market"
	"github.com/sentinelmarket/pricestream/internal/model"
	"github.com/sentinelmarket/pricestream/internal/router"
)

// WebSocket close codes sent on teardown.
const (
	closeNormal           = 1000
	closeHeartbeatTimeout = 4000
)

// Client is a resilient price stream consumer.
//
// One goroutine owns the transport, the timers and the state machine.
// Public methods hand commands to that goroutine and wait for the result;
// read accessors use a lock-protected copy of the observable state.
type Client struct {
	cfg          Config
	logger       *slog.Logger
	metrics      Recorder
	newTransport TransportFactory

	store  *market.Store
	router *router.Router

	// Loop-owned state. Only touched by run().
	fsm        *connection.StateMachine
	transport  connection.Client
	heartbeat  *connection.HeartbeatMonitor
	keepalive  *connection.KeepaliveEmitter
	retryTimer *time.Timer
	attempts   model.ReconnectState
	generation uint64
	dialCancel context.CancelFunc
	frameAt    time.Time

	commands    chan command
	dialResults chan dialResult
	done        chan struct{}

	// Set while alert handlers run on the loop.
	inAlert atomic.Bool

	// Observable state
	mu         sync.RWMutex
	status     model.ConnectionStatus
	reconnect  model.ReconnectState
	lastUpdate time.Time
	lastError  string
	started    bool
	disposed   bool

	listeners *listeners
}

// New creates a Client in the connecting state. Call Start to begin dialing.
func New(cfg Config, opts ...Option) *Client {
	c := &Client{
		cfg:          cfg,
		logger:       slog.Default(),
		metrics:      noopRecorder{},
		newTransport: connection.NewClient,
		store:        market.NewStore(),
		fsm:          connection.NewStateMachine(),
		heartbeat:    connection.NewHeartbeatMonitor(cfg.HeartbeatTimeout),
		keepalive:    connection.NewKeepaliveEmitter(cfg.KeepaliveInterval),
		commands:     make(chan command),
		dialResults:  make(chan dialResult),
		done:         make(chan struct{}),
		listeners:    newListeners(cfg.StatusBuffer),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.logger = c.logger.With("component", "stream")
	c.router = router.NewRouter(dispatch{c}, c.logger)
	c.status = c.fsm.Status()
	c.metrics.SetStatus(c.status)

	return c
}

// Start launches the event loop and begins connecting. The loop runs until
// Stop is called or ctx is cancelled; either disposes the client.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.started {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.started = true
	c.mu.Unlock()

	go c.run(ctx)

	c.logger.Info("stream client started", "url", c.cfg.Transport.URL)
	return nil
}

// Connect begins connecting if the client is disconnected. It is a no-op
// while connecting, connected or waiting to reconnect.
func (c *Client) Connect() error {
	return c.send(cmdConnect)
}

// Reconnect drops any connection or pending retry, resets the attempt
// counter and connects immediately.
func (c *Client) Reconnect() error {
	return c.send(cmdReconnect)
}

// Disconnect drops the connection and stops automatic reconnection.
// Prices are kept; Connect or Reconnect resumes streaming.
func (c *Client) Disconnect() error {
	return c.send(cmdDisconnect)
}

// Stop disposes the client: it tears down the connection, clears prices,
// closes status subscriptions and drops alert handlers. Stop is terminal.
func (c *Client) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return nil
	}
	started := c.started
	if !started {
		c.disposed = true
	}
	c.mu.Unlock()

	if !started {
		c.dispose()
		close(c.done)
		return nil
	}

	reply := make(chan error, 1)
	if c.inAlert.Load() {
		c.handOff(command{kind: cmdStop, reply: reply})
		return nil
	}

	select {
	case c.commands <- command{kind: cmdStop, reply: reply}:
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-c.done:
		c.logger.Info("stream client stopped")
		return nil
	case <-ctx.Done():
		c.logger.Warn("stream client stop timed out")
		return ctx.Err()
	}
}

// Done is closed once the client has been disposed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Status returns the current connection status.
func (c *Client) Status() model.ConnectionStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// ReconnectState returns automatic reconnection progress.
func (c *Client) ReconnectState() model.ReconnectState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.reconnect
}

// PriceSnapshot returns an immutable view of the latest prices.
func (c *Client) PriceSnapshot() market.Snapshot {
	return c.store.Snapshot()
}

// LastUpdateTime returns when prices were last applied. Zero if never.
func (c *Client) LastUpdateTime() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastUpdate
}

// LastError returns the most recent error message, or "" if none.
func (c *Client) LastError() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastError
}

// IsStale reports whether the held prices may be out of date: the client
// has data but is not currently connected.
func (c *Client) IsStale() bool {
	return c.Status().State != model.StateConnected && c.store.Len() > 0
}

// RouterStats returns frame dispatch statistics.
func (c *Client) RouterStats() router.RouterStats {
	return c.router.Stats()
}

// OnAlertTriggered registers fn for every triggered alert. The returned
// function removes the registration.
//
// fn runs on the event loop. Connect, Reconnect, Disconnect and Stop
// called while handlers run are queued for the loop and return nil
// without waiting for the result.
func (c *Client) OnAlertTriggered(fn func(model.TriggeredAlertEvent)) (unsubscribe func()) {
	return c.listeners.addAlert(fn)
}

// SubscribeStatus returns a subscription receiving every status change.
// If the subscriber falls behind, the oldest pending status is dropped.
func (c *Client) SubscribeStatus() *StatusSubscription {
	return c.listeners.addStatus()
}

// send delivers a command to the loop and waits for its result.
func (c *Client) send(kind commandKind) error {
	c.mu.RLock()
	started, disposed := c.started, c.disposed
	c.mu.RUnlock()

	if disposed {
		return ErrClosed
	}
	if !started {
		return ErrNotStarted
	}

	reply := make(chan error, 1)
	if c.inAlert.Load() {
		c.handOff(command{kind: kind, reply: reply})
		return nil
	}

	select {
	case c.commands <- command{kind: kind, reply: reply}:
	case <-c.done:
		return ErrClosed
	}

	select {
	case err := <-reply:
		return err
	case <-c.done:
		return ErrClosed
	}
}

// handOff queues cmd without waiting. The loop may be busy running the
// caller, so delivery happens on a separate goroutine.
func (c *Client) handOff(cmd command) {
	go func() {
		select {
		case c.commands <- cmd:
		case <-c.done:
		}
	}()
}

// -----------------------------------------------------------------------------
// Event loop
// -----------------------------------------------------------------------------

func (c *Client) run(ctx context.Context) {
	defer close(c.done)

	c.beginConnect(ctx)

	for {
		var (
			messages <-chan connection.TimestampedMessage
			errs     <-chan error
			retry    <-chan time.Time
		)
		if c.transport != nil {
			messages = c.transport.Messages()
			errs = c.transport.Errors()
		}
		if c.retryTimer != nil {
			retry = c.retryTimer.C
		}

		select {
		case <-ctx.Done():
			c.logger.Info("context cancelled, disposing stream client")
			c.markDisposed()
			c.dispose()
			return

		case cmd := <-c.commands:
			if cmd.kind == cmdStop {
				c.markDisposed()
				c.dispose()
				cmd.reply <- nil
				return
			}
			cmd.reply <- c.handleCommand(ctx, cmd.kind)

		case res := <-c.dialResults:
			c.handleDial(res)

		case msg := <-messages:
			c.handleFrame(msg)

		case err := <-errs:
			c.logger.Warn("connection error", "error", err)
			c.handleDisconnect(err)

		case <-c.heartbeat.C():
			c.logger.Warn("no frames received, connection stale",
				"timeout", c.heartbeat.Timeout(),
			)
			c.metrics.IncHeartbeatTimeout()
			c.handleDisconnect(connection.ErrStaleConnection)

		case now := <-c.keepalive.C():
			if err := c.keepalive.Emit(c.transport, now); err != nil {
				c.logger.Debug("failed to send keepalive", "error", err)
				c.metrics.IncKeepaliveFailure()
			}

		case <-retry:
			c.retryTimer = nil
			c.attempts.LastAttemptAt = time.Now()
			c.fire(connection.EventRetryDue)
			c.logger.Info("attempting reconnection",
				"attempt", c.attempts.AttemptCount,
			)
			c.beginConnect(ctx)
		}
	}
}

// handleCommand applies a caller request.
func (c *Client) handleCommand(ctx context.Context, kind commandKind) error {
	state := c.fsm.Status().State

	switch kind {
	case cmdConnect:
		if state != model.StateDisconnected {
			return nil
		}
		c.resetAttempts()
		c.fire(connection.EventManualConnect)
		c.beginConnect(ctx)

	case cmdReconnect:
		c.logger.Info("manual reconnect requested", "from", c.fsm.Status().String())
		c.teardown()
		c.resetAttempts()
		c.fire(connection.EventManualReconnect)
		c.beginConnect(ctx)

	case cmdDisconnect:
		c.teardown()
		c.fire(connection.EventManualDisconnect)
		c.logger.Info("disconnected by request")
	}

	return nil
}

// beginConnect dials a fresh transport in the background.
func (c *Client) beginConnect(ctx context.Context) {
	c.generation++
	gen := c.generation

	dialCtx, cancel := context.WithCancel(ctx)
	c.dialCancel = cancel

	t := c.newTransport(c.cfg.Transport, c.logger)

	go func() {
		err := t.Connect(dialCtx)
		select {
		case c.dialResults <- dialResult{generation: gen, transport: t, err: err}:
		case <-c.done:
			t.Close()
		}
	}()
}

// handleDial processes the outcome of beginConnect.
func (c *Client) handleDial(res dialResult) {
	if res.generation != c.generation {
		// Superseded by a reconnect, disconnect or stop.
		res.transport.Close()
		return
	}

	c.cancelDial()

	if res.err != nil {
		res.transport.Close()
		c.logger.Warn("connection failed", "error", res.err)
		c.handleDisconnect(res.err)
		return
	}

	c.transport = res.transport
	c.resetAttempts()
	c.fire(connection.EventOpened)
	c.setLastError("")
	c.heartbeat.Start()
	c.keepalive.Start()
	c.metrics.IncConnect()

	c.logger.Info("connected",
		"session", res.transport.SessionID(),
		"url", c.cfg.Transport.URL,
	)
}

// handleFrame resets the heartbeat and dispatches one frame.
func (c *Client) handleFrame(msg connection.TimestampedMessage) {
	c.heartbeat.Reset()

	if msg.Control {
		return
	}

	c.frameAt = msg.ReceivedAt
	typ, err := c.router.Route(msg.Data)
	c.metrics.ObserveFrame(string(typ))
	if err != nil {
		c.metrics.IncParseError()
	}
}

// handleDisconnect tears down the connection and schedules the next attempt.
func (c *Client) handleDisconnect(cause error) {
	if errors.Is(cause, connection.ErrStaleConnection) {
		c.teardownWithReason(closeHeartbeatTimeout, "heartbeat timeout")
	} else {
		c.teardown()
	}
	c.setLastError(cause.Error())
	c.fire(connection.EventClosed)
	c.scheduleRetry(cause)
}

// scheduleRetry arms the backoff timer or gives up at the attempt ceiling.
func (c *Client) scheduleRetry(cause error) {
	policy := c.cfg.Backoff
	attempt := c.attempts.AttemptCount

	if policy.Exhausted(attempt) {
		c.setLastError(fmt.Sprintf("%v: %v", ErrMaxAttempts, cause))
		c.logger.Error("giving up on reconnection",
			"attempts", attempt,
			"error", cause,
		)
		return
	}

	delay := policy.Delay(attempt)
	c.attempts.AttemptCount++
	c.retryTimer = time.NewTimer(delay)
	c.fire(connection.EventRetryScheduled)
	c.metrics.IncReconnect()

	c.logger.Info("reconnect scheduled",
		"attempt", c.attempts.AttemptCount,
		"delay", delay,
	)
}

// teardown cancels the retry timer, heartbeat, keepalive and transport,
// in that order, and abandons any in-flight dial.
func (c *Client) teardown() {
	c.teardownWithReason(closeNormal, "")
}

func (c *Client) teardownWithReason(code int, reason string) {
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
	c.heartbeat.Stop()
	c.keepalive.Stop()
	if c.transport != nil {
		c.transport.CloseWithReason(code, reason)
		c.transport = nil
	}
	c.cancelDial()
	c.generation++
}

func (c *Client) cancelDial() {
	if c.dialCancel != nil {
		c.dialCancel()
		c.dialCancel = nil
	}
}

// dispose performs terminal teardown. Must run on the loop goroutine or
// before the loop was started.
func (c *Client) dispose() {
	c.teardown()
	c.fire(connection.EventDispose)
	c.store.Clear()
	c.listeners.closeAll()
}

func (c *Client) markDisposed() {
	c.mu.Lock()
	c.disposed = true
	c.mu.Unlock()
}

func (c *Client) resetAttempts() {
	c.attempts = model.ReconnectState{}
}

// fire applies a state machine event and publishes the result.
func (c *Client) fire(ev connection.Event) {
	prev := c.fsm.Status()
	next, err := c.fsm.Fire(ev, c.attempts.AttemptCount)
	if err != nil {
		c.logger.Error("rejected state transition", "error", err)
		return
	}

	c.mu.Lock()
	c.status = next
	c.reconnect = c.attempts
	c.mu.Unlock()

	c.metrics.SetStatus(next)

	if next != prev {
		c.logger.Debug("status changed", "from", prev.String(), "to", next.String())
		c.listeners.publishStatus(next)
	}
}

func (c *Client) setLastError(msg string) {
	c.mu.Lock()
	c.lastError = msg
	c.mu.Unlock()
}

// -----------------------------------------------------------------------------
// Dispatch
// -----------------------------------------------------------------------------

// dispatch adapts the Client to router.Handler. It runs on the loop goroutine.
type dispatch struct {
	c *Client
}

func (d dispatch) HandlePrices(kind router.MessageType, records []model.PriceRecord) {
	c := d.c
	applied := c.store.UpsertAll(records)

	at := c.frameAt
	if at.IsZero() {
		at = time.Now()
	}
	c.mu.Lock()
	c.lastUpdate = at
	c.mu.Unlock()

	c.metrics.AddPriceRecords(applied, c.store.Len())

	if kind == router.TypeInitialData {
		c.logger.Info("initial prices received", "symbols", applied)
	}
}

func (d dispatch) HandleAlert(event model.TriggeredAlertEvent) {
	d.c.metrics.IncAlert()
	d.c.logger.Info("alert triggered",
		"id", event.ID,
		"symbol", event.Symbol,
		"condition", event.Condition,
		"target_price", event.TargetPrice.String(),
	)
	d.c.inAlert.Store(true)
	defer d.c.inAlert.Store(false)
	d.c.listeners.publishAlert(event, d.c.logger)
}

func (d dispatch) HandleServerError(message string) {
	d.c.setLastError(message)
}
