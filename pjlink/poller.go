package pjlink

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

const (
	DefaultPowerInterval  = 3 * time.Second
	DefaultSourceInterval = 20 * time.Second
	DefaultLampInterval   = 300 * time.Second
)

// PollConfig sets the three poll periods. Enabled is only the initial value;
// later changes go through Poller.SetEnabled.
type PollConfig struct {
	Enabled        bool
	PowerInterval  time.Duration
	SourceInterval time.Duration
	LampInterval   time.Duration
}

// DefaultPollConfig returns 3s / 20s / 300s with polling disabled.
func DefaultPollConfig() PollConfig {
	return PollConfig{
		PowerInterval:  DefaultPowerInterval,
		SourceInterval: DefaultSourceInterval,
		LampInterval:   DefaultLampInterval,
	}
}

func (pc PollConfig) withDefaults() PollConfig {
	def := DefaultPollConfig()
	if pc.PowerInterval <= 0 {
		pc.PowerInterval = def.PowerInterval
	}
	if pc.SourceInterval <= 0 {
		pc.SourceInterval = def.SourceInterval
	}
	if pc.LampInterval <= 0 {
		pc.LampInterval = def.LampInterval
	}
	return pc
}

// Poller runs one ticker per query. Each trigger submits its query only when
// polling is enabled and the connection is up. The triggers never block one
// another and are not recreated on reconnect.
type Poller struct {
	cfg       PollConfig
	enabled   atomic.Bool
	connected func() bool
	submit    func(Command) error

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewPoller(cfg PollConfig, connected func() bool, submit func(Command) error) *Poller {
	p := &Poller{
		cfg:       cfg.withDefaults(),
		connected: connected,
		submit:    submit,
	}
	p.enabled.Store(cfg.Enabled)
	return p
}

// Start launches the triggers. Calling it again while running does nothing.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	p.spawn(ctx, p.cfg.PowerInterval, QueryPowerCommand())
	p.spawn(ctx, p.cfg.SourceInterval, QuerySourceCommand())
	p.spawn(ctx, p.cfg.LampInterval, QueryLampCommand())
}

// Stop cancels all triggers and waits for them. A send already in progress
// is allowed to finish.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	p.wg.Wait()
}

// SetEnabled takes effect from the next tick on.
func (p *Poller) SetEnabled(enabled bool) {
	p.enabled.Store(enabled)
}

func (p *Poller) Enabled() bool {
	return p.enabled.Load()
}

func (p *Poller) Config() PollConfig {
	cfg := p.cfg
	cfg.Enabled = p.Enabled()
	return cfg
}

func (p *Poller) spawn(ctx context.Context, every time.Duration, cmd Command) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.fire(cmd)
			}
		}
	}()
}

func (p *Poller) fire(cmd Command) {
	if !p.enabled.Load() || !p.connected() {
		return
	}
	// errors are already logged by the channel; the next tick retries
	_ = p.submit(cmd)
}
