package store

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/grovetools/homed/pkg/energy"
	"github.com/grovetools/homed/pkg/models"
	"github.com/sirupsen/logrus"
)

// DefaultBufferSize is the per-subscriber queue length.
const DefaultBufferSize = 64

// Store is the in-memory state store for the daemon.
// Every mutation, the energy recompute and the fan-out to subscribers run
// under one lock, so all subscribers see the same sequence of snapshots.
type Store struct {
	mu          sync.Mutex
	state       models.State
	calc        *energy.Calculator
	seq         uint64
	subscribers map[chan Update]struct{}
	bufferSize  int
	logger      *logrus.Entry
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for mutation and eviction messages.
func WithLogger(logger *logrus.Entry) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithBufferSize sets the per-subscriber queue length.
func WithBufferSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.bufferSize = n
		}
	}
}

// New creates a Store holding a copy of initial, with its energy fields
// computed by calc.
func New(initial models.State, calc *energy.Calculator, opts ...Option) *Store {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	s := &Store{
		state:       initial.Clone(),
		calc:        calc,
		subscribers: make(map[chan Update]struct{}),
		bufferSize:  DefaultBufferSize,
		logger:      logrus.NewEntry(discard),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.state.Devices == nil {
		s.state.Devices = make(map[string]models.Device)
	}
	s.calc.Recompute(&s.state)
	return s
}

// Get returns a copy of the current state.
func (s *Store) Get() models.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Tariff returns the tariff energy costs are computed with.
func (s *Store) Tariff() energy.Tariff {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calc.Tariff
}

// Refresh recomputes the energy fields and returns the resulting state.
// When target is a live subscription, the snapshot is also queued on it,
// and only on it, in order with the broadcasts that subscriber receives.
func (s *Store) Refresh(target chan Update, source string) models.State {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calc.Recompute(&s.state)
	snapshot := s.state.Clone()
	if target != nil {
		if _, ok := s.subscribers[target]; ok {
			s.seq++
			s.deliver(target, Update{Seq: s.seq, Type: UpdateSnapshot, Source: source, State: snapshot})
		}
	}
	return snapshot
}

// ApplyPath resolves a wire path and data against the current state and
// applies the resulting patch. On error the state is unchanged and nothing
// is broadcast.
func (s *Store) ApplyPath(path string, data json.RawMessage, source string) (models.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := ParsePatch(s.state, path, data)
	if err != nil {
		s.logger.WithError(err).WithField("path", path).Debug("Rejected state update")
		return models.State{}, err
	}
	return s.commit(p, source), nil
}

// Apply applies a typed patch and broadcasts the new state.
func (s *Store) Apply(p Patch, source string) (models.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := p.check(s.state); err != nil {
		s.logger.WithError(err).WithField("path", p.Path()).Debug("Rejected state update")
		return models.State{}, err
	}
	return s.commit(p, source), nil
}

// commit merges a checked patch, runs the derived updates and broadcasts.
// Callers hold s.mu.
func (s *Store) commit(p Patch, source string) models.State {
	p.merge(&s.state)

	updateType := UpdateDevice
	switch patch := p.(type) {
	case LightPatch:
		s.calc.Recompute(&s.state)
		if patch.On != nil {
			nudgeClimate(&s.state, *patch.On)
		}
	case ThermostatPatch:
		s.calc.Recompute(&s.state)
	case EnvironmentPatch:
		updateType = UpdateEnvironment
	case SystemPatch:
		updateType = UpdateSystem
	}

	s.logger.WithFields(logrus.Fields{
		"path":        p.Path(),
		"source":      source,
		"energy":      s.state.Environment.Energy.Current,
		"hourly_cost": s.state.Environment.Energy.Costs.Hourly,
		"temperature": s.state.Environment.Temperature,
		"humidity":    s.state.Environment.Humidity,
	}).Debug("State updated")

	return s.broadcast(updateType, source, p.Path())
}

// SetTariff replaces the tariff, recomputes costs and broadcasts.
func (s *Store) SetTariff(t energy.Tariff, source string) models.State {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calc = energy.New(t)
	s.calc.Recompute(&s.state)
	return s.broadcast(UpdateTariff, source, "")
}

// broadcast sends the current state to every subscriber and returns it.
// Callers hold s.mu.
func (s *Store) broadcast(t UpdateType, source, path string) models.State {
	s.seq++
	snapshot := s.state.Clone()
	for ch := range s.subscribers {
		// Each subscriber gets its own copy so no two readers share a map.
		s.deliver(ch, Update{Seq: s.seq, Type: t, Source: source, Path: path, State: snapshot.Clone()})
	}
	return snapshot
}

// deliver queues u on ch without blocking. A subscriber whose queue is full
// has fallen behind; it is dropped and its channel closed so the owner can
// disconnect it instead of leaving it on a stale view. Callers hold s.mu.
func (s *Store) deliver(ch chan Update, u Update) {
	select {
	case ch <- u:
	default:
		delete(s.subscribers, ch)
		close(ch)
		s.logger.WithField("seq", u.Seq).Warn("Dropped slow subscriber")
	}
}

// Subscribe creates a new subscription channel for state updates.
func (s *Store) Subscribe() chan Update {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan Update, s.bufferSize)
	s.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a subscription and closes its channel. It is safe to
// call for a subscription the store already dropped.
func (s *Store) Unsubscribe(ch chan Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subscribers[ch]; !ok {
		return
	}
	delete(s.subscribers, ch)
	close(ch)
}

// SubscriberCount returns the number of live subscriptions.
func (s *Store) SubscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribers)
}
