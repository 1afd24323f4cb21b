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
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meshakt/meshakt/log"
)

type (
	increment struct{}
	getCount  struct{}
	boom      struct{}
	fail      struct{ err error }
	wait      struct{ d time.Duration }
	reject    struct{}
)

// counter keeps its count in memory and starts from zero on every (re)start
type counter struct {
	count     int
	preStarts atomic.Int32
	postStops atomic.Int32
}

var _ Actor = (*counter)(nil)

func (c *counter) PreStart(context.Context) error {
	c.count = 0
	c.preStarts.Add(1)
	return nil
}

func (c *counter) Receive(ctx *ReceiveContext) {
	switch msg := ctx.Message().(type) {
	case *increment:
		c.count++
	case *getCount:
		ctx.Response(c.count)
	case *boom:
		panic("boom")
	case *fail:
		ctx.Err(msg.err)
	case *wait:
		time.Sleep(msg.d)
		ctx.Response(true)
	case *reject:
		ctx.ResponseError(errors.New("rejected"))
	default:
		ctx.Unhandled()
	}
}

func (c *counter) PostStop(context.Context) error {
	c.postStops.Add(1)
	return nil
}

// failingStart never starts
type failingStart struct{}

func (failingStart) PreStart(context.Context) error { return errors.New("cannot start") }
func (failingStart) Receive(*ReceiveContext)         {}
func (failingStart) PostStop(context.Context) error { return nil }

// recorder forwards whatever it receives to a channel
type recorder struct {
	received chan any
}

func newRecorder() *recorder {
	return &recorder{received: make(chan any, 64)}
}

func (r *recorder) PreStart(context.Context) error { return nil }
func (r *recorder) Receive(ctx *ReceiveContext)    { r.received <- ctx.Message() }
func (r *recorder) PostStop(context.Context) error { return nil }

func newTestSystem(t *testing.T, opts ...Option) ActorSystem {
	t.Helper()
	ctx := context.Background()
	opts = append([]Option{WithLogger(log.DiscardLogger), WithActorInitMaxRetries(1)}, opts...)
	system, err := NewActorSystem("test", opts...)
	require.NoError(t, err)
	require.NoError(t, system.Start(ctx))
	t.Cleanup(func() {
		_ = system.Stop(ctx)
	})
	return system
}

func countOf(t *testing.T, pid *PID) int {
	t.Helper()
	reply, err := Ask(context.Background(), pid, new(getCount), time.Second)
	require.NoError(t, err)
	return reply.(int)
}
