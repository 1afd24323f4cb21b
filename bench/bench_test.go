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

package bench

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meshakt/meshakt/actor"
	"github.com/meshakt/meshakt/address"
	"github.com/meshakt/meshakt/gateway"
	"github.com/meshakt/meshakt/identity"
	"github.com/meshakt/meshakt/log"
	"github.com/meshakt/meshakt/overlay/memnet"
)

const receivingTimeout = 5 * time.Second

func newSystem(tb testing.TB) actor.ActorSystem {
	tb.Helper()
	ctx := context.Background()
	system, err := actor.NewActorSystem("bench",
		actor.WithLogger(log.DiscardLogger),
		actor.WithActorInitMaxRetries(1),
		actor.WithAskTimeout(receivingTimeout))
	require.NoError(tb, err)
	require.NoError(tb, system.Start(ctx))
	tb.Cleanup(func() { _ = system.Stop(ctx) })
	return system
}

// newGateway starts a gateway on the in-process network and waits for its registration
func newGateway(tb testing.TB, network *memnet.Network, system actor.ActorSystem) *gateway.Gateway {
	tb.Helper()
	ctx := context.Background()
	id, err := identity.Generate()
	require.NoError(tb, err)

	endpoint := network.Join(id.PeerID())
	gw, err := gateway.New(system, id, endpoint, endpoint,
		gateway.WithLogger(log.DiscardLogger),
		gateway.WithRequestTimeout(receivingTimeout))
	require.NoError(tb, err)
	require.NoError(tb, gw.Start(ctx))
	tb.Cleanup(func() { _ = gw.Stop(ctx) })

	require.Eventually(tb, func() bool {
		state, err := gw.State(ctx)
		return err == nil && state == gateway.Registered
	}, time.Second, 10*time.Millisecond)
	return gw
}

func BenchmarkActor(b *testing.B) {
	b.Run("tell:single sender", func(b *testing.B) {
		ctx := context.Background()
		system := newSystem(b)
		benchmarker := &Benchmarker{}
		pid, err := system.Spawn(ctx, "bench", benchmarker)
		require.NoError(b, err)

		benchmarker.Wg.Add(b.N)
		b.ResetTimer()
		go func() {
			for i := 0; i < b.N; i++ {
				_ = actor.Tell(ctx, pid, new(BenchTell))
			}
		}()
		benchmarker.Wg.Wait()
	})
	b.Run("tell:multiple senders", func(b *testing.B) {
		ctx := context.Background()
		system := newSystem(b)
		benchmarker := &Benchmarker{}
		pid, err := system.Spawn(ctx, "bench", benchmarker)
		require.NoError(b, err)

		benchmarker.Wg.Add(b.N)
		b.ResetTimer()
		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				_ = actor.Tell(ctx, pid, new(BenchTell))
			}
		})
		benchmarker.Wg.Wait()
	})
	b.Run("ask", func(b *testing.B) {
		ctx := context.Background()
		system := newSystem(b)
		pid, err := system.Spawn(ctx, "bench", &Benchmarker{})
		require.NoError(b, err)

		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			if _, err := actor.Ask(ctx, pid, new(BenchRequest), receivingTimeout); err != nil {
				b.Fatal(err)
			}
		}
	})
}

func BenchmarkGateway(b *testing.B) {
	ctx := context.Background()
	network := memnet.New()

	serverSystem := newSystem(b)
	_, err := serverSystem.Spawn(ctx, "bench", &Benchmarker{})
	require.NoError(b, err)

	server := newGateway(b, network, serverSystem)
	require.NoError(b, server.Advertise(ctx, "bench"))
	client := newGateway(b, network, newSystem(b))

	remote, err := client.Resolve(ctx, "bench")
	require.NoError(b, err)
	require.Equal(b, address.RemoteKind, remote.Kind())

	payload := make([]byte, 256)
	b.Run("remote ask", func(b *testing.B) {
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			if _, err := address.Ask[*BenchResponse](ctx, remote, &BenchRequest{Payload: payload}); err != nil {
				b.Fatal(err)
			}
		}
	})
	b.Run("remote ask:parallel", func(b *testing.B) {
		b.ReportAllocs()
		b.ResetTimer()
		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				if _, err := address.Ask[*BenchResponse](ctx, remote, &BenchRequest{Payload: payload}); err != nil {
					b.Error(err)
					return
				}
			}
		})
	})
}
