// MIT License
//
// Copyright (c) 2022-2026 GoAkt Team
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package heartbeat

import (
	"sync"
	"time"
)

// Liveness is the health of a watched key as seen by the Monitor
type Liveness int

const (
	// Alive means a beat was seen within the suspect window
	Alive Liveness = iota
	// Suspected means no beat was seen for longer than the suspect window
	Suspected
	// Dead means no beat was seen for longer than the dead window
	Dead
)

// String returns the string representation of the liveness
func (l Liveness) String() string {
	switch l {
	case Alive:
		return "alive"
	case Suspected:
		return "suspected"
	case Dead:
		return "dead"
	default:
		return "unknown"
	}
}

const (
	// DefaultSuspectAfter is the default silence after which a key is suspected
	DefaultSuspectAfter = 15 * time.Second
	// DefaultDeadAfter is the default silence after which a key is declared dead
	DefaultDeadAfter = 45 * time.Second
	// DefaultCheckInterval is the default period of the liveness evaluation
	DefaultCheckInterval = time.Second
)

// Transition reports a liveness change of a watched key
type Transition struct {
	Key      string
	From     Liveness
	To       Liveness
	LastSeen time.Time
}

// Listener receives liveness transitions.
// It is called outside the Monitor lock and may call back into the Monitor.
type Listener func(Transition)

type entry struct {
	liveness Liveness
	lastSeen time.Time
}

// Monitor tracks when each watched key was last seen and flags keys
// that stay silent as suspected then dead.
type Monitor struct {
	mu      sync.Mutex
	entries map[string]*entry

	suspectAfter  time.Duration
	deadAfter     time.Duration
	checkInterval time.Duration
	listener      Listener
	clock         func() time.Time

	stopOnce sync.Once
	startMu  sync.Mutex
	started  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// Option configures a Monitor
type Option func(*Monitor)

// WithSuspectAfter sets the silence after which a key is suspected
func WithSuspectAfter(d time.Duration) Option {
	return func(m *Monitor) { m.suspectAfter = d }
}

// WithDeadAfter sets the silence after which a key is declared dead
func WithDeadAfter(d time.Duration) Option {
	return func(m *Monitor) { m.deadAfter = d }
}

// WithCheckInterval sets how often liveness is evaluated
func WithCheckInterval(d time.Duration) Option {
	return func(m *Monitor) { m.checkInterval = d }
}

// WithListener sets the transition listener
func WithListener(listener Listener) Option {
	return func(m *Monitor) { m.listener = listener }
}

// WithClock overrides the time source
func WithClock(clock func() time.Time) Option {
	return func(m *Monitor) { m.clock = clock }
}

// NewMonitor creates a Monitor. Call Start to run the periodic evaluation.
func NewMonitor(opts ...Option) *Monitor {
	m := &Monitor{
		entries:       make(map[string]*entry),
		suspectAfter:  DefaultSuspectAfter,
		deadAfter:     DefaultDeadAfter,
		checkInterval: DefaultCheckInterval,
		clock:         time.Now,
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.deadAfter < m.suspectAfter {
		m.deadAfter = m.suspectAfter
	}
	if m.checkInterval <= 0 {
		m.checkInterval = DefaultCheckInterval
	}
	return m
}

// Start runs the periodic evaluation until Stop is called
func (m *Monitor) Start() {
	m.startMu.Lock()
	defer m.startMu.Unlock()
	if m.started {
		return
	}
	m.started = true

	go func() {
		defer close(m.doneCh)
		ticker := time.NewTicker(m.checkInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.Check()
			case <-m.stopCh:
				return
			}
		}
	}()
}

// Stop halts the periodic evaluation
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
		m.startMu.Lock()
		started := m.started
		m.startMu.Unlock()
		if started {
			<-m.doneCh
		}
	})
}

// Watch starts tracking key as alive from now on.
// Watching an already watched key is a no-op.
func (m *Monitor) Watch(key string) {
	m.mu.Lock()
	if _, ok := m.entries[key]; !ok {
		m.entries[key] = &entry{liveness: Alive, lastSeen: m.clock()}
	}
	m.mu.Unlock()
}

// Beat records that key was just seen, watching it if needed
func (m *Monitor) Beat(key string) {
	now := m.clock()

	m.mu.Lock()
	e, ok := m.entries[key]
	if !ok {
		m.entries[key] = &entry{liveness: Alive, lastSeen: now}
		m.mu.Unlock()
		return
	}

	from := e.liveness
	e.lastSeen = now
	e.liveness = Alive
	m.mu.Unlock()

	if from != Alive {
		m.notify(Transition{Key: key, From: from, To: Alive, LastSeen: now})
	}
}

// Unwatch stops tracking key
func (m *Monitor) Unwatch(key string) {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
}

// State returns the liveness of key and whether it is watched
func (m *Monitor) State(key string) (Liveness, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return Dead, false
	}
	return e.liveness, true
}

// LastSeen returns when key was last seen
func (m *Monitor) LastSeen(key string) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return time.Time{}, false
	}
	return e.lastSeen, true
}

// Check evaluates every watched key against the current time
// and reports the resulting transitions.
func (m *Monitor) Check() {
	now := m.clock()
	var transitions []Transition

	m.mu.Lock()
	for key, e := range m.entries {
		silence := now.Sub(e.lastSeen)
		next := Alive
		switch {
		case silence >= m.deadAfter:
			next = Dead
		case silence >= m.suspectAfter:
			next = Suspected
		}

		if next != e.liveness {
			transitions = append(transitions, Transition{Key: key, From: e.liveness, To: next, LastSeen: e.lastSeen})
			e.liveness = next
		}
	}
	m.mu.Unlock()

	for _, transition := range transitions {
		m.notify(transition)
	}
}

func (m *Monitor) notify(transition Transition) {
	if m.listener != nil {
		m.listener(transition)
	}
}
