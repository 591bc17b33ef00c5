// Package pjlink controls a single PJLink projector over TCP.
//
// A Client keeps one socket open to the projector (reconnecting on its own
// after failures), polls power, input and lamp hours on fixed intervals and
// keeps the answers in a DeviceState that can be read from any goroutine.
package pjlink

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// DebugSink receives human readable lines about connection events, traffic
// and parse outcomes. The host decides where they go.
type DebugSink func(message string)

// Config configures a Client. Zero values take the documented defaults.
type Config struct {
	Label  string
	Poll   PollConfig
	Debug  bool
	Sink   DebugSink
	Logger *zerolog.Logger

	// Transport overrides, mostly for tests.
	Dialer      Dialer
	SettleDelay time.Duration
	RetryDelay  time.Duration

	// OnCommand is called after every send attempt, successful or not.
	OnCommand func(Command, error)
}

// Client is the public face of the package. All methods are safe for
// concurrent use.
type Client struct {
	log          zerolog.Logger
	sink         DebugSink
	debugEnabled atomic.Bool

	labelMu sync.RWMutex
	label   string

	state   *DeviceState
	conn    *ConnectionManager
	channel *CommandChannel
	poller  *Poller
	parser  *ResponseParser

	handlersMu sync.RWMutex
	onChange   []func(Snapshot)
	onConn     []func(ConnectionState)

	startOnce sync.Once
	closeMu   sync.Mutex
	closed    bool
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// New builds a client. Nothing touches the network until Init.
func New(cfg Config) *Client {
	c := &Client{
		sink:   cfg.Sink,
		label:  cfg.Label,
		state:  NewDeviceState(),
		parser: NewResponseParser(ReceiveBufferSize),
	}
	if cfg.Logger != nil {
		c.log = *cfg.Logger
	} else {
		c.log = zerolog.Nop()
	}
	c.debugEnabled.Store(cfg.Debug)
	c.ctx, c.cancel = context.WithCancel(context.Background())

	c.conn = NewConnectionManager(ConnectionConfig{
		Dialer:      cfg.Dialer,
		Logger:      &c.log,
		Debug:       c.debug,
		SettleDelay: cfg.SettleDelay,
		RetryDelay:  cfg.RetryDelay,
	})
	c.conn.OnStateChange(c.connectionChanged)
	c.channel = NewCommandChannel(c.conn, c.log, c.debug, cfg.OnCommand)
	c.poller = NewPoller(cfg.Poll, c.conn.IsConnected, c.channel.Submit)
	return c
}

// Init starts the receive loop and poll triggers (once per client) and
// connects to address. Calling Init again after Disconnect reconnects; after
// Close it does nothing.
func (c *Client) Init(address string) {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if c.closed {
		c.log.Warn().Str("address", address).Msg("Init on a closed client ignored")
		return
	}
	c.debug("Initialising client for PJLink projector @ " + address)
	c.startOnce.Do(func() {
		c.wg.Add(1)
		go c.dispatch()
		c.poller.Start()
	})
	c.conn.Connect(address)
}

// Disconnect drops the connection and stops retrying. Polls keep ticking but
// send nothing until the next Init.
func (c *Client) Disconnect() {
	c.conn.Disconnect()
}

// Close tears the client down for good.
func (c *Client) Close() {
	c.closeMu.Lock()
	c.closed = true
	c.closeMu.Unlock()
	c.conn.Disconnect()
	c.poller.Stop()
	c.cancel()
	c.wg.Wait()
}

func (c *Client) SetDisplayLabel(name string) {
	c.labelMu.Lock()
	c.label = name
	c.labelMu.Unlock()
}

func (c *Client) DisplayLabel() string {
	c.labelMu.RLock()
	defer c.labelMu.RUnlock()
	return c.label
}

// SetPower turns the projector on or off. The command is dropped with
// ErrNotConnected when the socket is down.
func (c *Client) SetPower(on bool) error {
	return c.channel.Submit(PowerCommand(on))
}

// ChangeInput selects the input with the given PJLink code.
func (c *Client) ChangeInput(code string) error {
	cmd, err := InputCommand(code)
	if err != nil {
		return err
	}
	return c.channel.Submit(cmd)
}

func (c *Client) SetPollingEnabled(enabled bool) {
	c.poller.SetEnabled(enabled)
	if enabled {
		c.debug("Polling Enabled")
	} else {
		c.debug("Polling Disabled")
	}
}

func (c *Client) PollingEnabled() bool {
	return c.poller.Enabled()
}

func (c *Client) PollConfig() PollConfig {
	return c.poller.Config()
}

func (c *Client) SetDebugEnabled(enabled bool) {
	c.debugEnabled.Store(enabled)
}

func (c *Client) DebugEnabled() bool {
	return c.debugEnabled.Load()
}

func (c *Client) IsConnected() bool {
	return c.conn.IsConnected()
}

func (c *Client) ConnectionState() ConnectionState {
	return c.conn.State()
}

// Address is the dialed address, port included.
func (c *Client) Address() string {
	return c.conn.Address()
}

func (c *Client) PowerState() PowerState {
	return c.state.Power()
}

func (c *Client) CurrentSource() (string, bool) {
	return c.state.Source()
}

func (c *Client) LampHours() (uint32, bool) {
	return c.state.LampHours()
}

func (c *Client) Snapshot() Snapshot {
	return c.state.Snapshot()
}

// OnChange registers fn to run after a response changed the device state.
func (c *Client) OnChange(fn func(Snapshot)) {
	c.handlersMu.Lock()
	c.onChange = append(c.onChange, fn)
	c.handlersMu.Unlock()
}

// OnConnectionChange registers fn to run after every connection transition.
func (c *Client) OnConnectionChange(fn func(ConnectionState)) {
	c.handlersMu.Lock()
	c.onConn = append(c.onConn, fn)
	c.handlersMu.Unlock()
}

func (c *Client) dispatch() {
	defer c.wg.Done()
	var session uint64
	for {
		select {
		case <-c.ctx.Done():
			return
		case d := <-c.conn.Deliveries():
			if d.Session != session {
				c.parser.Reset()
				session = d.Session
			}
			c.handle(d.Data)
		}
	}
}

func (c *Client) handle(data []byte) {
	c.debug("data received: " + strconv.Quote(string(data)))
	events, err := c.parser.Feed(data)
	for _, ev := range events {
		c.apply(ev)
	}
	if err != nil {
		c.log.Warn().Err(err).Str("projector", c.DisplayLabel()).Msg("dropping malformed response")
		c.debug("dropping malformed response: " + err.Error())
	}
}

func (c *Client) apply(ev Event) {
	changed := c.state.Apply(ev)
	c.debug(ev.Describe())
	if ev.Kind == EventProtocolError {
		c.log.Warn().Err(ev.Err).Str("projector", c.DisplayLabel()).Msg("projector reported an error")
	}
	if !changed {
		return
	}
	snap := c.state.Snapshot()
	c.handlersMu.RLock()
	handlers := slices.Clone(c.onChange)
	c.handlersMu.RUnlock()
	for _, fn := range handlers {
		fn(snap)
	}
}

func (c *Client) connectionChanged(s ConnectionState) {
	c.handlersMu.RLock()
	handlers := slices.Clone(c.onConn)
	c.handlersMu.RUnlock()
	for _, fn := range handlers {
		fn(s)
	}
}

func (c *Client) debug(msg string) {
	if !c.debugEnabled.Load() || c.sink == nil {
		return
	}
	if label := c.DisplayLabel(); label != "" {
		msg = fmt.Sprintf("[%s] %s", label, msg)
	}
	c.sink(msg)
}
