package activity

import (
	"io"
	"log/slog"
	"sync"
	"time"
)

// DefaultInterval is the period of the keep-alive ticker.
const DefaultInterval = 5 * time.Minute

// Extender extends the active session and reports whether one existed.
type Extender interface {
	Extend() bool
}

// ExtenderFunc adapts a function to Extender.
type ExtenderFunc func() bool

func (f ExtenderFunc) Extend() bool { return f() }

// Trigger says what caused an extend attempt.
type Trigger string

const (
	TriggerSignal Trigger = "signal"
	TriggerTick   Trigger = "tick"
)

// Observer is told about every extend attempt.
type Observer func(trigger Trigger, extended bool)

// Ticker is the part of time.Ticker the monitor uses.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type stdTicker struct{ t *time.Ticker }

func (s stdTicker) C() <-chan time.Time { return s.t.C }
func (s stdTicker) Stop()               { s.t.Stop() }

func newStdTicker(d time.Duration) Ticker { return stdTicker{t: time.NewTicker(d)} }

// Monitor extends the session on interaction and on a fixed interval.
// Start and Stop are idempotent; a Monitor may be started again after Stop.
type Monitor struct {
	ext       Extender
	src       Source
	interval  time.Duration
	newTicker func(time.Duration) Ticker
	observe   Observer
	logger    *slog.Logger

	mu  sync.Mutex
	run *run
}

// run is the state of one Start..Stop span.
type run struct {
	ticker      Ticker
	unsubscribe func()
	stop        chan struct{}
	done        chan struct{}

	// gate serialises signal-driven extends against Stop so that none
	// can run after Stop has returned.
	gate    sync.RWMutex
	stopped bool
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithInterval overrides DefaultInterval. Non-positive values are ignored.
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithTicker replaces time.NewTicker.
func WithTicker(fn func(time.Duration) Ticker) Option {
	return func(m *Monitor) { m.newTicker = fn }
}

// WithObserver registers a callback for extend attempts.
func WithObserver(fn Observer) Option {
	return func(m *Monitor) { m.observe = fn }
}

// WithLogger sets the monitor's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Monitor) { m.logger = logger.With("component", "activity") }
}

// New returns a stopped Monitor.
func New(ext Extender, src Source, opts ...Option) *Monitor {
	m := &Monitor{
		ext:       ext,
		src:       src,
		interval:  DefaultInterval,
		newTicker: newStdTicker,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start subscribes to the source and starts the ticker. A running monitor is
// stopped first, so at most one ticker is ever live.
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopLocked()

	r := &run{
		ticker: m.newTicker(m.interval),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	r.unsubscribe = m.src.Subscribe(func(s Signal) { m.onSignal(r, s) })
	go m.loop(r)
	m.run = r
	m.logger.Debug("activity tracking started", slog.Duration("interval", m.interval))
}

// Stop removes the subscription and stops the ticker. When Stop returns no
// further Extend calls will be made.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
}

// Running reports whether the monitor is started.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.run != nil
}

func (m *Monitor) stopLocked() {
	r := m.run
	if r == nil {
		return
	}
	m.run = nil

	r.unsubscribe()
	r.gate.Lock()
	r.stopped = true
	r.gate.Unlock()

	close(r.stop)
	<-r.done
	r.ticker.Stop()
	m.logger.Debug("activity tracking stopped")
}

func (m *Monitor) loop(r *run) {
	defer close(r.done)
	for {
		select {
		case <-r.stop:
			return
		case <-r.ticker.C():
			m.extend(TriggerTick)
		}
	}
}

func (m *Monitor) onSignal(r *run, s Signal) {
	if !s.Tracked() {
		return
	}
	r.gate.RLock()
	defer r.gate.RUnlock()
	if r.stopped {
		return
	}
	m.extend(TriggerSignal)
}

func (m *Monitor) extend(trigger Trigger) {
	ok := m.ext.Extend()
	if !ok {
		m.logger.Debug("no session to extend", slog.String("trigger", string(trigger)))
	}
	if m.observe != nil {
		m.observe(trigger, ok)
	}
}
