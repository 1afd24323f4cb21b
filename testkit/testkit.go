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

// Package testkit helps writing actor tests: a TestKit runs a throwaway actor
// system and hands out probes that record what they receive.
package testkit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meshakt/meshakt/actor"
	"github.com/meshakt/meshakt/log"
)

// TestKit runs an actor system for the duration of a test
type TestKit struct {
	t      *testing.T
	ctx    context.Context
	system actor.ActorSystem
}

// New starts an actor system that is stopped when the test ends.
// The system logs nothing unless a logger option says otherwise.
func New(ctx context.Context, t *testing.T, opts ...actor.Option) *TestKit {
	t.Helper()

	system, err := actor.NewActorSystem("testkit", append([]actor.Option{actor.WithLogger(log.DiscardLogger)}, opts...)...)
	require.NoError(t, err)
	require.NoError(t, system.Start(ctx))
	t.Cleanup(func() { _ = system.Stop(context.WithoutCancel(ctx)) })

	return &TestKit{t: t, ctx: ctx, system: system}
}

// ActorSystem returns the underlying actor system
func (k *TestKit) ActorSystem() actor.ActorSystem {
	return k.system
}

// Spawn creates an actor and fails the test when it cannot start
func (k *TestKit) Spawn(name string, a actor.Actor, opts ...actor.SpawnOption) *actor.PID {
	k.t.Helper()
	pid, err := k.system.Spawn(k.ctx, name, a, opts...)
	require.NoError(k.t, err)
	return pid
}

// NewProbe creates a probe in the test actor system
func (k *TestKit) NewProbe() Probe {
	k.t.Helper()
	probe, err := NewProbe(k.ctx, k.t, k.system)
	require.NoError(k.t, err)
	return probe
}
