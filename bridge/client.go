package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/olbboy/blenderops/observe"
)

// Defaults applied by NewClient when Config leaves a field zero.
const (
	DefaultHost           = "localhost"
	DefaultPort           = 9876
	DefaultConnectTimeout = 5 * time.Second
	DefaultCommandTimeout = 30 * time.Second
	DefaultDialAttempts   = 3
)

// Redial backoff. The delay doubles per attempt with up to 25% jitter.
const (
	redialInitialDelay = 100 * time.Millisecond
	redialMaxDelay     = 2 * time.Second
)

// Config configures a Client.
type Config struct {
	// Host and Port locate the addon's command socket.
	Host string
	Port int

	// ConnectTimeout bounds one dial attempt.
	ConnectTimeout time.Duration

	// CommandTimeout bounds one command round trip. A sooner context
	// deadline takes precedence.
	CommandTimeout time.Duration

	// DialAttempts is how many times a command tries to establish a
	// connection before giving up.
	DialAttempts int

	// Logger receives connection lifecycle events. Nil disables logging.
	Logger observe.Logger
}

// Client is a Commander over one persistent TCP connection.
//
// Commands serialize on the connection because the protocol is strictly
// request/response. A transport failure drops the connection; the next
// command redials. Consecutive transport failures open a circuit breaker
// that fails commands fast until Blender becomes reachable again.
type Client struct {
	cfg  Config
	addr string
	log  observe.Logger
	cb   *gobreaker.CircuitBreaker

	mu     sync.Mutex
	conn   net.Conn
	enc    *json.Encoder
	dec    *json.Decoder
	closed bool
}

var _ Commander = (*Client)(nil)

// NewClient creates a Client, applying defaults for unset Config fields.
// No connection is made until the first command.
func NewClient(cfg Config) *Client {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Port <= 0 {
		cfg.Port = DefaultPort
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = DefaultCommandTimeout
	}
	if cfg.DialAttempts <= 0 {
		cfg.DialAttempts = DefaultDialAttempts
	}
	log := cfg.Logger
	if log == nil {
		log = observe.NopLogger()
	}

	return &Client{
		cfg:  cfg,
		addr: net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		log:  log.WithComponent("bridge"),
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "blender-bridge",
			MaxRequests: 3,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures > 5
			},
			// A caller abandoning its request says nothing about the
			// health of the socket.
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, context.Canceled)
			},
		}),
	}
}

// Execute round-trips one command. Blender-reported failures come back
// as ErrCommandFailed wraps and do not count against the circuit
// breaker; while the breaker is open, Execute fails fast with
// gobreaker.ErrOpenState.
func (c *Client) Execute(ctx context.Context, cmd Command) (json.RawMessage, error) {
	if cmd.Type == "" {
		return nil, ErrEmptyCommand
	}

	raw, err := c.cb.Execute(func() (any, error) {
		return c.roundTrip(ctx, cmd)
	})
	if err != nil {
		return nil, err
	}

	resp := raw.(response)
	if resp.Status == statusError {
		msg := resp.Message
		if msg == "" {
			msg = "unknown error"
		}
		return nil, fmt.Errorf("%w: %s: %s", ErrCommandFailed, cmd.Type, msg)
	}
	return resp.Result, nil
}

// Ping round-trips a ping command to verify the addon is responsive.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Execute(ctx, Command{Type: "ping"})
	return err
}

// Close drops the connection and rejects further commands. Close is
// idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn, c.enc, c.dec = nil, nil, nil
	return err
}

// roundTrip sends one command and reads its reply envelope. It owns the
// wire for the duration: the protocol has no frame IDs, so interleaving
// would mismatch replies.
func (c *Client) roundTrip(ctx context.Context, cmd Command) (response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return response{}, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return response{}, err
	}
	if err := c.connectLocked(ctx); err != nil {
		return response{}, err
	}

	deadline := time.Now().Add(c.cfg.CommandTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	conn := c.conn
	_ = conn.SetDeadline(deadline)

	// Cancellation unblocks in-flight reads by expiring the deadline.
	watcherDone := make(chan struct{})
	defer close(watcherDone)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.SetDeadline(time.Unix(1, 0))
		case <-watcherDone:
		}
	}()

	if err := c.enc.Encode(cmd); err != nil {
		c.dropLocked()
		if ctx.Err() != nil {
			return response{}, ctx.Err()
		}
		return response{}, fmt.Errorf("bridge: send %s: %w", cmd.Type, err)
	}

	var resp response
	if err := c.dec.Decode(&resp); err != nil {
		c.dropLocked()
		if ctx.Err() != nil {
			return response{}, ctx.Err()
		}
		return response{}, fmt.Errorf("bridge: receive %s reply: %w", cmd.Type, err)
	}

	if resp.Status != statusSuccess && resp.Status != statusError {
		// The stream position is unknown after a malformed envelope.
		c.dropLocked()
		return response{}, fmt.Errorf("%w: status %q", ErrInvalidResponse, resp.Status)
	}
	return resp, nil
}

// connectLocked dials the addon if no connection is live, backing off
// between attempts. Caller holds c.mu.
func (c *Client) connectLocked(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}

	var lastErr error
	delay := redialInitialDelay
	for attempt := 1; attempt <= c.cfg.DialAttempts; attempt++ {
		dialer := net.Dialer{Timeout: c.cfg.ConnectTimeout}
		conn, err := dialer.DialContext(ctx, "tcp", c.addr)
		if err == nil {
			c.conn = conn
			c.enc = json.NewEncoder(conn)
			c.dec = json.NewDecoder(conn)
			c.log.Info(ctx, "connected to blender",
				observe.Field{Key: "addr", Value: c.addr},
				observe.Field{Key: "attempt", Value: attempt})
			return nil
		}
		lastErr = err
		c.log.Warn(ctx, "blender connection failed",
			observe.Field{Key: "addr", Value: c.addr},
			observe.Field{Key: "attempt", Value: attempt},
			observe.Field{Key: "error", Value: err.Error()})

		if attempt == c.cfg.DialAttempts {
			break
		}

		// #nosec G404 -- jitter is non-cryptographic timing variance.
		sleep := delay + time.Duration(rand.Int63n(int64(delay/4)+1))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}
		delay *= 2
		if delay > redialMaxDelay {
			delay = redialMaxDelay
		}
	}
	return fmt.Errorf("bridge: connect to %s: %w", c.addr, lastErr)
}

// dropLocked discards the connection so the next command redials.
// Caller holds c.mu.
func (c *Client) dropLocked() {
	if c.conn == nil {
		return
	}
	_ = c.conn.Close()
	c.conn, c.enc, c.dec = nil, nil, nil
	c.log.Debug(context.Background(), "connection dropped")
}
