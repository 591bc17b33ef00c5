package util

import (
	"sync"

	"github.com/elijahnyp/pjlink_controller/pjlink"
	"github.com/elijahnyp/pjlink_controller/state"
)

// ProjectorHandle binds one configured projector to its client.
type ProjectorHandle struct {
	cfg    ProjectorConfig
	client *pjlink.Client
}

func NewProjectorHandle(cfg ProjectorConfig, client *pjlink.Client) *ProjectorHandle {
	return &ProjectorHandle{cfg: cfg, client: client}
}

func (h *ProjectorHandle) Name() string {
	return h.cfg.Name
}

func (h *ProjectorHandle) Config() ProjectorConfig {
	return h.cfg
}

func (h *ProjectorHandle) Client() *pjlink.Client {
	return h.client
}

func (h *ProjectorHandle) Status() state.Status {
	return state.NewStatus(
		h.cfg.Name,
		h.client.DisplayLabel(),
		h.client.Address(),
		h.client.ConnectionState(),
		h.client.PollingEnabled(),
		h.client.Snapshot(),
	)
}

func (h *ProjectorHandle) SetPower(on bool) error {
	return h.client.SetPower(on)
}

func (h *ProjectorHandle) ChangeInput(code string) error {
	return h.client.ChangeInput(code)
}

func (h *ProjectorHandle) SetPollingEnabled(enabled bool) {
	h.client.SetPollingEnabled(enabled)
}

var _ state.Projector = (*ProjectorHandle)(nil)

// ClientFactory builds an unconnected client for a configured projector.
type ClientFactory func(cfg ProjectorConfig) *pjlink.Client

// DefaultClientFactory wires logging, the debug sink and command metrics.
func DefaultClientFactory(cfg ProjectorConfig) *pjlink.Client {
	name := cfg.Name
	return pjlink.New(pjlink.Config{
		Label:  cfg.DisplayLabel(),
		Poll:   cfg.PollConfig(),
		Debug:  cfg.DebugEnabled(),
		Sink:   DebugSink(name),
		Logger: ProjectorLogger(name),
		OnCommand: func(cmd pjlink.Command, err error) {
			RecordCommand(name, cmd, err)
		},
	})
}

// Registry owns the running projector clients. Rebuild replaces all of them
// from a new model.
type Registry struct {
	factory ClientFactory

	mu      sync.RWMutex
	handles map[string]*ProjectorHandle
	order   []string

	listenersMu sync.RWMutex
	listeners   []func(name string)
}

func NewRegistry(factory ClientFactory) *Registry {
	if factory == nil {
		factory = DefaultClientFactory
	}
	return &Registry{factory: factory, handles: make(map[string]*ProjectorHandle)}
}

// OnChange registers fn to be told the name of a projector whose state or
// connection changed. fn runs on the client's goroutines and must not block.
func (r *Registry) OnChange(fn func(name string)) {
	r.listenersMu.Lock()
	r.listeners = append(r.listeners, fn)
	r.listenersMu.Unlock()
}

func (r *Registry) notify(name string) {
	r.listenersMu.RLock()
	defer r.listenersMu.RUnlock()
	for _, fn := range r.listeners {
		fn(name)
	}
}

// Rebuild closes every running client and starts one per entry.
func (r *Registry) Rebuild(projectors []ProjectorConfig) {
	r.mu.Lock()
	old := r.handles
	r.handles = make(map[string]*ProjectorHandle, len(projectors))
	r.order = make([]string, 0, len(projectors))
	for _, cfg := range projectors {
		h := NewProjectorHandle(cfg, r.factory(cfg))
		r.handles[cfg.Name] = h
		r.order = append(r.order, cfg.Name)
	}
	started := make([]*ProjectorHandle, 0, len(r.order))
	for _, name := range r.order {
		started = append(started, r.handles[name])
	}
	r.mu.Unlock()

	for name, h := range old {
		Logger.Debug().Msgf("closing projector %s", name)
		h.client.Close()
		if _, kept := r.Get(name); !kept {
			ForgetProjector(name)
		}
	}

	for _, h := range started {
		name := h.Name()
		h.client.OnChange(func(pjlink.Snapshot) { r.notify(name) })
		h.client.OnConnectionChange(func(s pjlink.ConnectionState) {
			RecordTransition(name, s)
			r.notify(name)
		})
		Logger.Info().Msgf("starting projector %s @ %s", name, h.cfg.Address)
		h.client.Init(h.cfg.Address)
	}
}

func (r *Registry) Get(name string) (*ProjectorHandle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[name]
	return h, ok
}

// Names returns the projector names in model order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

func (r *Registry) All() []*ProjectorHandle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*ProjectorHandle, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.handles[name])
	}
	return out
}

func (r *Registry) Statuses() []state.Status {
	all := r.All()
	out := make([]state.Status, 0, len(all))
	for _, h := range all {
		out = append(out, h.Status())
	}
	return out
}

// Close stops every client.
func (r *Registry) Close() {
	r.mu.Lock()
	old := r.handles
	r.handles = make(map[string]*ProjectorHandle)
	r.order = nil
	r.mu.Unlock()
	for _, h := range old {
		h.client.Close()
	}
}
