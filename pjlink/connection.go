package pjlink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultPort is the PJLink TCP port.
	DefaultPort = 4352

	// ReceiveBufferSize is the size of a single socket read.
	ReceiveBufferSize = 1000

	// DefaultSettleDelay is how long a fresh socket must stay up before it is
	// treated as Connected.
	DefaultSettleDelay = 2 * time.Second

	// DefaultRetryDelay is the fixed wait between connection attempts.
	DefaultRetryDelay = 2 * time.Second

	dialTimeout       = 10 * time.Second
	writeTimeout      = 5 * time.Second
	deliveryQueueSize = 16
)

// Dialer opens the transport. *net.Dialer satisfies it; tests substitute fakes.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Delivery is one socket read. Session increases with every new connection
// so consumers can drop partial data left over from a dead socket.
type Delivery struct {
	Data    []byte
	Session uint64
}

// ConnectionConfig configures a ConnectionManager. Zero values take defaults.
type ConnectionConfig struct {
	Dialer      Dialer
	Logger      *zerolog.Logger
	Debug       func(string)
	SettleDelay time.Duration
	RetryDelay  time.Duration
	BufferSize  int
}

// ConnectionManager owns the socket to one projector. Outside of an explicit
// Disconnect it is always either connected or waiting to retry.
//
// State machine:
//
//	Disconnected --Connect--> Connecting
//	Connecting --dial ok + settle delay--> Connected
//	Connecting --dial failed--> Disconnected --retry delay--> Connecting
//	Connected --read error / EOF--> Disconnected --retry delay--> Connecting
//
// All methods are safe for concurrent use.
type ConnectionManager struct {
	dialer      Dialer
	log         zerolog.Logger
	debug       func(string)
	settleDelay time.Duration
	retryDelay  time.Duration
	bufferSize  int

	// lifecycleMu orders Connect against Disconnect so a finished
	// Disconnect never overwrites the state of a newer run
	lifecycleMu sync.Mutex

	mu      sync.Mutex
	state   ConnectionState
	address string
	conn    net.Conn
	cancel  context.CancelFunc
	done    chan struct{}
	session uint64

	// writeMu serializes every write on the socket
	writeMu sync.Mutex

	listenersMu sync.RWMutex
	listeners   []func(ConnectionState)

	deliveries chan Delivery
	attempts   atomic.Uint64
}

// NewConnectionManager creates a manager in the Disconnected state.
func NewConnectionManager(cfg ConnectionConfig) *ConnectionManager {
	c := &ConnectionManager{
		dialer:      cfg.Dialer,
		debug:       cfg.Debug,
		settleDelay: cfg.SettleDelay,
		retryDelay:  cfg.RetryDelay,
		bufferSize:  cfg.BufferSize,
		deliveries:  make(chan Delivery, deliveryQueueSize),
	}
	if c.dialer == nil {
		c.dialer = &net.Dialer{Timeout: dialTimeout}
	}
	if cfg.Logger != nil {
		c.log = *cfg.Logger
	} else {
		c.log = zerolog.Nop()
	}
	if c.debug == nil {
		c.debug = func(string) {}
	}
	if c.settleDelay <= 0 {
		c.settleDelay = DefaultSettleDelay
	}
	if c.retryDelay <= 0 {
		c.retryDelay = DefaultRetryDelay
	}
	if c.bufferSize <= 0 {
		c.bufferSize = ReceiveBufferSize
	}
	return c
}

// Connect starts connecting to address ("host" or "host:port"). It is a
// no-op while a connection is up or being retried.
func (c *ConnectionManager) Connect(address string) {
	addr := normalizeAddress(address)

	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()

	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.cancel = cancel
	c.done = done
	c.address = addr
	c.mu.Unlock()

	go c.run(ctx, addr, done)
}

// Disconnect closes the socket, interrupts any pending retry and waits for
// the receive loop to exit. The manager stays Disconnected until the next
// Connect. Neither Disconnect nor Connect may be called from a state listener.
func (c *ConnectionManager) Disconnect() {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()

	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel = nil
	c.done = nil
	if cancel != nil {
		cancel()
	}
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	<-done
	c.setState(Disconnected)
	c.debug("disconnected")
}

// Send writes p as one unit. It fails with ErrNotConnected, without touching
// the socket, unless the state is Connected. A write failure closes the
// socket so the receive loop reconnects.
func (c *ConnectionManager) Send(p []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	conn, state := c.conn, c.state
	c.mu.Unlock()
	if state != Connected || conn == nil {
		return ErrNotConnected
	}

	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		c.log.Debug().Err(err).Msg("set write deadline failed")
	}
	if _, err := conn.Write(p); err != nil {
		_ = conn.Close()
		return fmt.Errorf("%w: %w", ErrNotConnected, &SocketError{Op: "write", Cause: err})
	}
	return nil
}

func (c *ConnectionManager) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *ConnectionManager) IsConnected() bool {
	return c.State() == Connected
}

// Address returns the last address passed to Connect, port included.
func (c *ConnectionManager) Address() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.address
}

// Attempts counts dial attempts since creation.
func (c *ConnectionManager) Attempts() uint64 {
	return c.attempts.Load()
}

// Deliveries is the raw inbound byte stream.
func (c *ConnectionManager) Deliveries() <-chan Delivery {
	return c.deliveries
}

// OnStateChange registers fn to be called after every state transition.
// Listeners run on the manager's goroutine and must not block.
func (c *ConnectionManager) OnStateChange(fn func(ConnectionState)) {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()
	c.listeners = append(c.listeners, fn)
}

func (c *ConnectionManager) setState(s ConnectionState) {
	c.mu.Lock()
	if c.state == s {
		c.mu.Unlock()
		return
	}
	c.state = s
	c.mu.Unlock()

	c.listenersMu.RLock()
	listeners := slices.Clone(c.listeners)
	c.listenersMu.RUnlock()
	for _, fn := range listeners {
		fn(s)
	}
}

func (c *ConnectionManager) run(ctx context.Context, addr string, done chan struct{}) {
	defer close(done)

	for {
		c.setState(Connecting)
		c.attempts.Add(1)

		conn, err := c.dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Debug().Err(err).Str("address", addr).Msg("connect failed")
			c.debug(fmt.Sprintf("LAN client (%s) reports: connect failed: %v", addr, err))
			c.setState(Disconnected)
			if !sleepContext(ctx, c.retryDelay) {
				return
			}
			c.debug("Attempting to reconnect PJLink projector")
			continue
		}

		// a peer that accepts and immediately resets is caught by the first read
		if !sleepContext(ctx, c.settleDelay) {
			_ = conn.Close()
			return
		}
		session, ok := c.attach(ctx, conn)
		if !ok {
			_ = conn.Close()
			return
		}
		c.setState(Connected)
		c.debug(fmt.Sprintf("LAN client (%s) reports: socket connected", addr))

		err = c.receive(ctx, conn, session)
		c.detach()
		_ = conn.Close()
		if ctx.Err() != nil {
			return
		}

		c.log.Warn().Err(err).Str("address", addr).Msg("projector connection lost")
		c.debug(fmt.Sprintf("LAN client (%s) reports: %v", addr, err))
		c.setState(Disconnected)
		if !sleepContext(ctx, c.retryDelay) {
			return
		}
		c.debug("Attempting to reconnect PJLink projector")
	}
}

func (c *ConnectionManager) attach(ctx context.Context, conn net.Conn) (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	// Disconnect cancels under c.mu, so this check cannot race it
	if ctx.Err() != nil {
		return 0, false
	}
	c.session++
	c.conn = conn
	return c.session, true
}

func (c *ConnectionManager) detach() {
	c.mu.Lock()
	c.conn = nil
	c.mu.Unlock()
}

func (c *ConnectionManager) receive(ctx context.Context, conn net.Conn, session uint64) error {
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	buf := make([]byte, c.bufferSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			data := append([]byte(nil), buf[:n]...)
			select {
			case c.deliveries <- Delivery{Data: data, Session: session}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return &SocketError{Op: "read", Cause: errors.New("closed by peer")}
			}
			return &SocketError{Op: "read", Cause: err}
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// normalizeAddress appends DefaultPort when address has no port.
func normalizeAddress(address string) string {
	if _, _, err := net.SplitHostPort(address); err == nil {
		return address
	}
	host := strings.TrimSuffix(strings.TrimPrefix(address, "["), "]")
	return net.JoinHostPort(host, strconv.Itoa(DefaultPort))
}
