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

package actor

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	gerrors "github.com/meshakt/meshakt/errors"
	"github.com/meshakt/meshakt/eventstream"
	"github.com/meshakt/meshakt/log"
)

// ActorSystem hosts a tree of actors
type ActorSystem interface {
	// Name returns the actor system name
	Name() string
	// Start starts the actor system
	Start(ctx context.Context) error
	// Stop stops every actor, children first, then the system itself
	Stop(ctx context.Context) error
	// Running returns true when the actor system is running
	Running() bool
	// Spawn creates a top-level actor under the given name.
	// Names are unique within the actor system.
	Spawn(ctx context.Context, name string, actor Actor, opts ...SpawnOption) (*PID, error)
	// LocalActor returns the running actor with the given name
	LocalActor(name string) (*PID, error)
	// Kill stops the actor with the given name
	Kill(ctx context.Context, name string) error
	// Actors returns the running actors
	Actors() []*PID
	// EventStream returns the stream the lifecycle events are published to
	EventStream() eventstream.Stream
	// Logger returns the actor system logger
	Logger() log.Logger
	// AskTimeout returns the default ask timeout
	AskTimeout() time.Duration
}

// actorSystem implements ActorSystem
type actorSystem struct {
	name           string
	logger         log.Logger
	askTimeout     time.Duration
	initMaxRetries int
	initTimeout    time.Duration

	stream     eventstream.Stream
	ownsStream bool

	actorsMu sync.RWMutex
	actors   map[string]*PID

	guardian *PID
	started  atomic.Bool
	done     chan struct{}
	stopOnce sync.Once
}

// enforce compilation error
var _ ActorSystem = (*actorSystem)(nil)

// NewActorSystem creates an instance of ActorSystem
func NewActorSystem(name string, opts ...Option) (ActorSystem, error) {
	if strings.TrimSpace(name) == "" {
		return nil, gerrors.ErrNameRequired
	}

	system := &actorSystem{
		name:           name,
		logger:         log.DefaultLogger,
		askTimeout:     DefaultAskTimeout,
		initMaxRetries: DefaultInitMaxRetries,
		initTimeout:    DefaultInitTimeout,
		stream:         eventstream.New(),
		ownsStream:     true,
		actors:         make(map[string]*PID),
		done:           make(chan struct{}),
	}

	for _, opt := range opts {
		opt.Apply(system)
	}

	if system.askTimeout <= 0 {
		return nil, gerrors.ErrInvalidTimeout
	}
	if system.initTimeout <= 0 {
		system.initTimeout = DefaultInitTimeout
	}
	if system.initMaxRetries <= 0 {
		system.initMaxRetries = 1
	}

	system.logger = system.logger.With("system", name)
	return system, nil
}

// Name returns the actor system name
func (x *actorSystem) Name() string {
	return x.name
}

// Start starts the actor system
func (x *actorSystem) Start(context.Context) error {
	if !x.started.CompareAndSwap(false, true) {
		return nil
	}

	x.guardian = newPID(x, nil, guardianName, new(guardian), newSpawnConfig())
	x.guardian.running.Store(true)
	x.logger.Infof("%s started..:)", x.name)
	return nil
}

// Stop stops every actor, children first, then the system itself
func (x *actorSystem) Stop(ctx context.Context) error {
	if !x.started.Load() {
		return gerrors.ErrActorSystemNotStarted
	}

	var err error
	x.stopOnce.Do(func() {
		close(x.done)
		err = x.guardian.Stop(ctx)
		x.started.Store(false)
		if x.ownsStream {
			x.stream.Close()
		}
		x.logger.Infof("%s stopped", x.name)
	})
	return err
}

// Running returns true when the actor system is running
func (x *actorSystem) Running() bool {
	return x.started.Load()
}

// Spawn creates a top-level actor
func (x *actorSystem) Spawn(ctx context.Context, name string, actor Actor, opts ...SpawnOption) (*PID, error) {
	if !x.started.Load() {
		return nil, gerrors.ErrActorSystemNotStarted
	}
	return x.spawn(ctx, x.guardian, name, actor, opts...)
}

// LocalActor returns the running actor with the given name
func (x *actorSystem) LocalActor(name string) (*PID, error) {
	x.actorsMu.RLock()
	pid, ok := x.actors[name]
	x.actorsMu.RUnlock()
	if !ok || !pid.IsRunning() {
		return nil, gerrors.NewErrActorNotFound(name)
	}
	return pid, nil
}

// Kill stops the actor with the given name
func (x *actorSystem) Kill(ctx context.Context, name string) error {
	pid, err := x.LocalActor(name)
	if err != nil {
		return err
	}
	return pid.Stop(ctx)
}

// Actors returns the running actors
func (x *actorSystem) Actors() []*PID {
	x.actorsMu.RLock()
	defer x.actorsMu.RUnlock()
	pids := make([]*PID, 0, len(x.actors))
	for _, pid := range x.actors {
		if pid.IsRunning() {
			pids = append(pids, pid)
		}
	}
	return pids
}

// EventStream returns the stream the lifecycle events are published to
func (x *actorSystem) EventStream() eventstream.Stream {
	return x.stream
}

// Logger returns the actor system logger
func (x *actorSystem) Logger() log.Logger {
	return x.logger
}

// AskTimeout returns the default ask timeout
func (x *actorSystem) AskTimeout() time.Duration {
	return x.askTimeout
}

func (x *actorSystem) spawn(ctx context.Context, parent *PID, name string, actor Actor, opts ...SpawnOption) (*PID, error) {
	if actor == nil {
		return nil, gerrors.ErrUndefinedActor
	}
	if strings.TrimSpace(name) == "" {
		return nil, gerrors.ErrNameRequired
	}
	if strings.HasPrefix(name, "$") {
		return nil, gerrors.ErrReservedName
	}

	pid := newPID(x, parent, name, actor, newSpawnConfig(opts...))

	x.actorsMu.Lock()
	if _, ok := x.actors[name]; ok {
		x.actorsMu.Unlock()
		return nil, gerrors.NewErrActorAlreadyExists(name)
	}
	x.actors[name] = pid
	x.actorsMu.Unlock()

	if err := pid.init(ctx); err != nil {
		x.unregister(pid)
		return nil, err
	}

	pid.running.Store(true)
	parent.addChild(pid)
	eventstream.Emit(x.stream, &ActorStarted{ActorName: name, StartedAt: time.Now()})
	pid.logger.Debugf("actor=(%s) started", name)
	return pid, nil
}

func (x *actorSystem) unregister(pid *PID) {
	x.actorsMu.Lock()
	if current, ok := x.actors[pid.name]; ok && current.Equals(pid) {
		delete(x.actors, pid.name)
	}
	x.actorsMu.Unlock()
}
