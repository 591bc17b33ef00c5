package util

import (
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/elijahnyp/pjlink_controller/state"
)

// StatePublisher republishes projector state on a ticker and on demand.
// A fixed pool of workers drains the queue so a slow broker never stalls the
// projector clients that enqueue updates.
type StatePublisher struct {
	Frequency int64 `mapstructure:"frequency"`
	Workers   int64 `mapstructure:"workers"`
	Enabled   bool  `mapstructure:"enabled"`

	names   func() []string
	publish func(name string)

	mu     sync.Mutex
	queue  chan string
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
}

// MakeStatePublisher loads the state_publisher section and starts the
// workers. names lists every projector; publish handles one of them.
func (sp *StatePublisher) MakeStatePublisher(names func() []string, publish func(name string)) {
	err := Config.UnmarshalKey("state_publisher", sp)
	if err != nil {
		Logger.Error().Msgf("Error loading state_publisher config: %v", err)
	}
	if sp.Workers < 1 {
		sp.Workers = 1
	}
	sp.names = names
	sp.publish = publish

	sp.mu.Lock()
	defer sp.mu.Unlock()
	sp.queue = make(chan string, sp.Workers*4)
	sp.stop = make(chan struct{})
	for i := 0; i < int(sp.Workers); i++ {
		sp.wg.Add(1)
		go sp.worker(sp.queue, sp.stop)
	}
}

// Start begins the periodic republish. Without Enabled only Enqueue
// publishes.
func (sp *StatePublisher) Start() {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	if !sp.Enabled || sp.Frequency <= 0 || sp.ticker != nil || sp.stop == nil {
		return
	}
	sp.ticker = time.NewTicker(time.Duration(sp.Frequency) * time.Second)
	ticker, stop, queue := sp.ticker, sp.stop, sp.queue
	sp.wg.Add(1)
	go func() {
		defer sp.wg.Done()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				for _, name := range sp.names() {
					select {
					case queue <- name:
					case <-stop:
						return
					}
				}
			}
		}
	}()
}

// Enqueue schedules one projector for publishing. It never blocks and
// reports false when the queue is full.
func (sp *StatePublisher) Enqueue(name string) bool {
	sp.mu.Lock()
	queue := sp.queue
	sp.mu.Unlock()
	if queue == nil {
		return false
	}
	select {
	case queue <- name:
		return true
	default:
		Logger.Debug().Msgf("state publisher queue full, dropping update for %s", name)
		return false
	}
}

// Stop halts the ticker and the workers and waits for them.
func (sp *StatePublisher) Stop() {
	sp.mu.Lock()
	if sp.ticker != nil {
		sp.ticker.Stop()
		sp.ticker = nil
	}
	if sp.stop != nil {
		close(sp.stop)
		sp.stop = nil
	}
	sp.queue = nil
	sp.mu.Unlock()
	sp.wg.Wait()
}

func (sp *StatePublisher) worker(jobs <-chan string, stop <-chan struct{}) {
	defer sp.wg.Done()
	for {
		select {
		case <-stop:
			return
		case name := <-jobs:
			sp.publish(name)
		}
	}
}

// PublishProjectorStatus writes the retained state topics of one projector.
// Unknown input and lamp hours are published as empty payloads.
func PublishProjectorStatus(s state.Status) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	var errs []error
	for _, item := range []struct {
		leaf    string
		payload string
	}{
		{LEAF_CONNECTED, strconv.FormatBool(s.Connected)},
		{LEAF_POWER, s.Power},
		{LEAF_INPUT, s.InputPayload()},
		{LEAF_LAMP_HOURS, s.LampHoursPayload()},
		{LEAF_STATE, string(data)},
	} {
		if err := Publish(ProjectorTopic(s.Name, item.leaf), true, item.payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
