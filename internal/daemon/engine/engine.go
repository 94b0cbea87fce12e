// Package engine runs the daemon's background collectors and applies the
// changes they emit to the store.
package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/grovetools/homed/internal/daemon/collector"
	"github.com/grovetools/homed/internal/daemon/store"
	"github.com/sirupsen/logrus"
)

// CollectorStatus reports what one collector has done so far.
type CollectorStatus struct {
	Name      string    `json:"name"`
	Running   bool      `json:"running"`
	Applied   int       `json:"applied"`
	Rejected  int       `json:"rejected"`
	LastError string    `json:"last_error,omitempty"`
	LastApply time.Time `json:"last_apply,omitempty"`
}

// Engine owns the collectors of one daemon.
type Engine struct {
	store      *store.Store
	collectors []collector.Collector
	logger     *logrus.Entry

	mu     sync.Mutex
	status map[string]*CollectorStatus
}

// New returns an engine feeding st.
func New(st *store.Store, logger *logrus.Entry) *Engine {
	return &Engine{
		store:  st,
		logger: logger,
		status: make(map[string]*CollectorStatus),
	}
}

// Register adds a collector. It must be called before Start.
func (e *Engine) Register(c collector.Collector) {
	e.collectors = append(e.collectors, c)
	e.mu.Lock()
	e.status[c.Name()] = &CollectorStatus{Name: c.Name()}
	e.mu.Unlock()
}

// Start runs every collector and blocks until ctx is canceled and all of
// them have returned. Changes are applied from a single goroutine in
// arrival order.
func (e *Engine) Start(ctx context.Context) {
	changes := make(chan sourced, 16)
	var wg sync.WaitGroup

	applied := make(chan struct{})
	go func() {
		defer close(applied)
		for {
			select {
			case <-ctx.Done():
				return
			case c := <-changes:
				e.apply(c)
			}
		}
	}()

	for _, c := range e.collectors {
		wg.Add(1)
		go func(col collector.Collector) {
			defer wg.Done()
			e.run(ctx, col, changes)
		}(c)
	}

	wg.Wait()
	<-applied
}

// sourced tags a change with the collector that produced it.
type sourced struct {
	collector string
	change    collector.Change
}

func (e *Engine) run(ctx context.Context, col collector.Collector, out chan<- sourced) {
	name := col.Name()
	log := e.logger.WithField("collector", name)
	e.setRunning(name, true)
	defer e.setRunning(name, false)

	// Each collector writes to its own channel so changes can be tagged.
	own := make(chan collector.Change)
	done := make(chan error, 1)
	go func() { done <- col.Run(ctx, e.store, own) }()

	log.Info("Starting collector")
	for {
		select {
		case c := <-own:
			select {
			case out <- sourced{collector: name, change: c}:
			case <-ctx.Done():
			}
		case err := <-done:
			if err != nil {
				log.WithError(err).Error("Collector failed")
				e.record(name, func(s *CollectorStatus) { s.LastError = err.Error() })
			}
			return
		}
	}
}

func (e *Engine) apply(c sourced) {
	ch := c.change
	var err error
	switch {
	case ch.Tariff != nil:
		e.store.SetTariff(*ch.Tariff, ch.Source)
	case ch.Patch != nil:
		_, err = e.store.Apply(ch.Patch, ch.Source)
	default:
		return
	}

	if err != nil {
		e.logger.WithError(err).WithFields(logrus.Fields{
			"collector": c.collector,
			"source":    ch.Source,
		}).Warn("Collector change rejected")
		e.record(c.collector, func(s *CollectorStatus) {
			s.Rejected++
			s.LastError = err.Error()
		})
		return
	}
	e.record(c.collector, func(s *CollectorStatus) {
		s.Applied++
		s.LastApply = time.Now()
	})
}

func (e *Engine) setRunning(name string, running bool) {
	e.record(name, func(s *CollectorStatus) { s.Running = running })
}

func (e *Engine) record(name string, fn func(*CollectorStatus)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.status[name]
	if !ok {
		s = &CollectorStatus{Name: name}
		e.status[name] = s
	}
	fn(s)
}

// Status returns a snapshot of every registered collector, sorted by name.
func (e *Engine) Status() []CollectorStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]CollectorStatus, 0, len(e.status))
	for _, s := range e.status {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Store returns the store the engine feeds.
func (e *Engine) Store() *store.Store {
	return e.store
}
