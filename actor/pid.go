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
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/flowchartsman/retry"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	gerrors "github.com/meshakt/meshakt/errors"
	"github.com/meshakt/meshakt/eventstream"
	"github.com/meshakt/meshakt/log"
	"github.com/meshakt/meshakt/supervisor"
)

const (
	idle int32 = iota
	busy
)

// PID is a reference to a running actor.
//
// A PID stays the same across restarts: the mailbox, the name and the
// pending messages are kept, only the actor state is rebuilt.
type PID struct {
	id     string
	name   string
	actor  Actor
	system *actorSystem
	parent *PID
	logger log.Logger

	mailbox    Mailbox
	supervisor *supervisor.Supervisor

	processing atomic.Int32
	running    atomic.Bool
	suspended  atomic.Bool

	// receiveMu serializes Receive with the lifecycle hooks
	receiveMu sync.Mutex
	// lifecycleMu serializes restart and stop
	lifecycleMu sync.Mutex

	fieldsMu sync.RWMutex
	children map[string]*PID
	watchers map[string]*PID
	restarts []time.Time

	restartCount   atomic.Int64
	processedCount atomic.Int64
}

var _ eventstream.Receiver = (*PID)(nil)

func newPID(system *actorSystem, parent *PID, name string, actor Actor, config *spawnConfig) *PID {
	return &PID{
		id:         uuid.NewString(),
		name:       name,
		actor:      actor,
		system:     system,
		parent:     parent,
		logger:     system.logger.With("actor", name),
		mailbox:    config.mailbox,
		supervisor: config.supervisor,
		children:   make(map[string]*PID),
		watchers:   make(map[string]*PID),
	}
}

// ID returns the unique identifier of the actor. It does not change across restarts.
func (pid *PID) ID() string {
	return pid.id
}

// Name returns the actor given name
func (pid *PID) Name() string {
	return pid.name
}

// Parent returns the parent of the actor, nil for top-level actors
func (pid *PID) Parent() *PID {
	if pid.parent == nil || pid.parent == pid.system.guardian {
		return nil
	}
	return pid.parent
}

// ActorSystem returns the actor system the actor belongs to
func (pid *PID) ActorSystem() ActorSystem {
	return pid.system
}

// Actor returns the underlying actor
func (pid *PID) Actor() Actor {
	return pid.actor
}

// Logger returns the actor logger
func (pid *PID) Logger() log.Logger {
	return pid.logger
}

// IsRunning returns true when the actor is alive ready to process messages
func (pid *PID) IsRunning() bool {
	return pid != nil && pid.running.Load()
}

// IsSuspended returns true when the actor failed and waits for its parent's decision
func (pid *PID) IsSuspended() bool {
	return pid.suspended.Load()
}

// RestartCount returns the number of times the actor has been restarted
func (pid *PID) RestartCount() int {
	return int(pid.restartCount.Load())
}

// ProcessedCount returns the number of messages handed to Receive
func (pid *PID) ProcessedCount() int {
	return int(pid.processedCount.Load())
}

// Equals is a convenient method to compare two PIDs
func (pid *PID) Equals(to *PID) bool {
	return pid != nil && to != nil && pid.id == to.id
}

// Children returns the running children of the actor
func (pid *PID) Children() []*PID {
	pid.fieldsMu.RLock()
	defer pid.fieldsMu.RUnlock()
	children := make([]*PID, 0, len(pid.children))
	for _, child := range pid.children {
		if child.IsRunning() {
			children = append(children, child)
		}
	}
	return children
}

// SpawnChild creates a child actor supervised by this actor.
func (pid *PID) SpawnChild(ctx context.Context, name string, actor Actor, opts ...SpawnOption) (*PID, error) {
	if !pid.IsRunning() {
		return nil, gerrors.ErrDead
	}
	return pid.system.spawn(ctx, pid, name, actor, opts...)
}

// Tell sends an asynchronous message to another actor with this actor as sender
func (pid *PID) Tell(ctx context.Context, to *PID, message any) error {
	if !pid.IsRunning() {
		return gerrors.ErrDead
	}
	return tell(ctx, pid, to, message)
}

// Ask sends a synchronous message to another actor with this actor as sender and waits for the reply
func (pid *PID) Ask(ctx context.Context, to *PID, message any, timeout time.Duration) (any, error) {
	if !pid.IsRunning() {
		return nil, gerrors.ErrDead
	}
	return ask(ctx, pid, to, message, timeout)
}

// Deliver enqueues the message without sender. It never blocks.
func (pid *PID) Deliver(message any) error {
	return tell(context.Background(), nil, pid, message)
}

// Watch makes this actor receive a Terminated message once cid stops
func (pid *PID) Watch(cid *PID) {
	if cid == nil || pid.Equals(cid) {
		return
	}
	cid.fieldsMu.Lock()
	cid.watchers[pid.id] = pid
	cid.fieldsMu.Unlock()
}

// UnWatch stops watching cid
func (pid *PID) UnWatch(cid *PID) {
	if cid == nil {
		return
	}
	cid.fieldsMu.Lock()
	delete(cid.watchers, pid.id)
	cid.fieldsMu.Unlock()
}

// Kill fails the actor with the killed cause. Its parent decides what happens next.
func (pid *PID) Kill(context.Context) error {
	if !pid.IsRunning() {
		return gerrors.ErrDead
	}
	pid.Fail(supervisor.KilledCause, gerrors.ErrKilled)
	return nil
}

// Fail suspends the actor and reports the failure to its parent.
// Further failures are ignored until the parent has decided.
func (pid *PID) Fail(cause supervisor.Cause, err error) {
	if !pid.IsRunning() || !pid.suspended.CompareAndSwap(false, true) {
		return
	}

	pid.logger.Warnf("Actor %s failed (cause=%s): %v", pid.name, cause, err)
	eventstream.Emit(pid.system.stream, &ActorSuspended{
		ActorName:   pid.name,
		Cause:       cause,
		Reason:      fmt.Sprint(err),
		SuspendedAt: time.Now(),
	})

	parent := pid.parent
	if parent == nil {
		return
	}
	parent.enqueue(newReceiveContext(context.Background(), nil, parent, &failure{child: pid, cause: cause, err: err}))
}

// Restart restarts the actor in place.
// Pending messages are kept and processed by the fresh instance. The
// ActorRestarted event of a manual restart carries the killed cause.
// An actor that cannot be restarted is stopped.
func (pid *PID) Restart(ctx context.Context) error {
	if !pid.IsRunning() {
		return gerrors.ErrDead
	}
	pid.suspended.Store(true)
	if err := pid.restart(ctx, supervisor.KilledCause); err != nil {
		return errors.Join(err, pid.Stop(ctx))
	}
	return nil
}

// Stop stops the actor and its children.
// The actor finishes the message it is processing and PostStop runs.
// Messages still queued are dropped and the watchers are notified.
func (pid *PID) Stop(ctx context.Context) error {
	pid.lifecycleMu.Lock()
	defer pid.lifecycleMu.Unlock()

	if !pid.running.Load() {
		return nil
	}

	pid.logger.Debugf("Shutdown process has started for actor=(%s)...", pid.name)

	eg, egCtx := errgroup.WithContext(ctx)
	for _, child := range pid.Children() {
		eg.Go(func() error {
			return child.Stop(egCtx)
		})
	}
	childErr := eg.Wait()

	pid.running.Store(false)

	pid.receiveMu.Lock()
	stopErr := pid.actor.PostStop(ctx)
	pid.receiveMu.Unlock()

	pid.system.unregister(pid)
	if pid.parent != nil {
		pid.parent.removeChild(pid)
	}

	pid.fieldsMu.Lock()
	watchers := pid.watchers
	pid.watchers = make(map[string]*PID)
	pid.fieldsMu.Unlock()

	for _, watcher := range watchers {
		if watcher.IsRunning() {
			_ = watcher.Deliver(&Terminated{ActorID: pid.id, ActorName: pid.name})
		}
	}

	eventstream.Emit(pid.system.stream, &ActorStopped{ActorName: pid.name, StoppedAt: time.Now()})
	pid.logger.Debugf("Shutdown process completed for actor=(%s)", pid.name)

	if stopErr != nil {
		return errors.Join(childErr, stopErr)
	}
	return childErr
}

// enqueue pushes the message to the mailbox and schedules processing
func (pid *PID) enqueue(received *ReceiveContext) {
	_ = pid.mailbox.Enqueue(received)
	pid.process()
}

// process drains the mailbox on a single goroutine.
// A suspended actor keeps its messages queued until it is resumed.
func (pid *PID) process() {
	if !pid.processing.CompareAndSwap(idle, busy) {
		return
	}

	go func() {
		for {
			for !pid.suspended.Load() {
				received := pid.mailbox.Dequeue()
				if received == nil {
					break
				}
				pid.dispatch(received)
			}

			pid.processing.Store(idle)

			if pid.suspended.Load() || pid.mailbox.IsEmpty() || !pid.processing.CompareAndSwap(idle, busy) {
				return
			}
		}
	}()
}

func (pid *PID) dispatch(received *ReceiveContext) {
	switch msg := received.Message().(type) {
	case *failure:
		pid.handleFailure(msg)
	case *PoisonPill:
		if err := pid.Stop(received.Context()); err != nil {
			pid.logger.Errorf("failed to stop actor=(%s): %v", pid.name, err)
		}
	default:
		pid.handleReceived(received)
	}
}

func (pid *PID) handleReceived(received *ReceiveContext) {
	pid.receiveMu.Lock()
	defer pid.receiveMu.Unlock()
	defer pid.recovery(received)

	if !pid.running.Load() {
		return
	}

	pid.processedCount.Add(1)
	pid.actor.Receive(received)
}

// recovery turns a panic or an error recorded through ReceiveContext.Err
// into a failure of the actor
func (pid *PID) recovery(received *ReceiveContext) {
	if r := recover(); r != nil {
		var err error
		pc, fn, line, _ := runtime.Caller(2)
		switch e := r.(type) {
		case *gerrors.PanicError:
			err = e
		case error:
			err = gerrors.NewPanicError(fmt.Errorf("%w at %s[%s:%d]", e, runtime.FuncForPC(pc).Name(), fn, line))
		default:
			err = gerrors.NewPanicError(fmt.Errorf("%#v at %s[%s:%d]", r, runtime.FuncForPC(pc).Name(), fn, line))
		}
		received.ResponseError(err)
		pid.Fail(supervisor.PanicCause, err)
		return
	}

	if err := received.err; err != nil {
		received.ResponseError(err)
		pid.Fail(supervisor.PanicCause, err)
	}
}

// handleFailure runs on the parent mailbox loop and applies the child's supervisor
func (pid *PID) handleFailure(f *failure) {
	child := f.child
	if !child.IsRunning() {
		return
	}

	sup := child.supervisor
	decision := sup.Decide(f.cause, child.recentRestarts(sup.Window()))

	targets := []*PID{child}
	if sup.FanOut() == supervisor.AllForOne {
		for _, sibling := range pid.Children() {
			if !sibling.Equals(child) {
				sibling.suspended.Store(true)
				targets = append(targets, sibling)
			}
		}
	}

	pid.logger.Infof("Supervisor of actor=(%s) decided to %s %d actor(s) (cause=%s, fan-out=%s)",
		child.name, decision.Directive, len(targets), f.cause, sup.FanOut())

	go pid.applyDecision(decision, f.cause, targets)
}

func (pid *PID) applyDecision(decision supervisor.Decision, cause supervisor.Cause, targets []*PID) {
	ctx := context.Background()
	if decision.Delay > 0 {
		timer := time.NewTimer(decision.Delay)
		select {
		case <-timer.C:
		case <-pid.system.done:
			timer.Stop()
			return
		}
	}

	eg := new(errgroup.Group)
	for _, target := range targets {
		eg.Go(func() error {
			switch decision.Directive {
			case supervisor.StopDirective:
				return target.Stop(ctx)
			case supervisor.RestartDirective:
				if err := target.restart(ctx, cause); err != nil {
					target.logger.Errorf("failed to restart actor=(%s): %v", target.name, err)
					return target.Stop(ctx)
				}
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		pid.logger.Error(err)
	}
}

// restart rebuilds the actor state on the same PID and resumes processing
func (pid *PID) restart(ctx context.Context, cause supervisor.Cause) error {
	pid.lifecycleMu.Lock()
	defer pid.lifecycleMu.Unlock()

	if !pid.running.Load() {
		return gerrors.ErrDead
	}

	pid.logger.Debugf("Restarting actor=(%s)", pid.name)

	pid.receiveMu.Lock()
	if err := pid.actor.PostStop(ctx); err != nil {
		pid.logger.Warnf("PostStop of actor=(%s) failed during restart: %v", pid.name, err)
	}
	err := pid.init(ctx)
	pid.receiveMu.Unlock()
	if err != nil {
		return err
	}

	count := pid.restartCount.Add(1)
	pid.fieldsMu.Lock()
	pid.restarts = append(pid.restarts, time.Now())
	pid.fieldsMu.Unlock()

	pid.suspended.Store(false)
	eventstream.Emit(pid.system.stream, &ActorRestarted{
		ActorName:    pid.name,
		Cause:        cause,
		RestartCount: int(count),
		RestartedAt:  time.Now(),
	})

	pid.process()
	return nil
}

// init runs PreStart with retries within the configured timeout
func (pid *PID) init(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pid.system.initTimeout)
	defer cancel()

	retrier := retry.NewRetrier(pid.system.initMaxRetries, 100*time.Millisecond, time.Second)
	if err := retrier.RunContext(ctx, pid.actor.PreStart); err != nil {
		return gerrors.NewErrInitFailure(err)
	}
	return nil
}

// recentRestarts counts the restarts within the given window. A zero window counts them all.
func (pid *PID) recentRestarts(window time.Duration) int {
	pid.fieldsMu.Lock()
	defer pid.fieldsMu.Unlock()
	if window <= 0 {
		return len(pid.restarts)
	}

	cutoff := time.Now().Add(-window)
	kept := pid.restarts[:0]
	for _, at := range pid.restarts {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	pid.restarts = kept
	return len(kept)
}

func (pid *PID) addChild(child *PID) {
	pid.fieldsMu.Lock()
	pid.children[child.id] = child
	pid.fieldsMu.Unlock()
}

func (pid *PID) removeChild(child *PID) {
	pid.fieldsMu.Lock()
	delete(pid.children, child.id)
	pid.fieldsMu.Unlock()
}
