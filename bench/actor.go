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

// Package bench measures message throughput of the actor runtime and the
// gateway.
package bench

import (
	"context"
	"sync"

	"github.com/meshakt/meshakt/actor"
	"github.com/meshakt/meshakt/envelope"
)

// BenchTell is a one-way message
type BenchTell struct{}

// BenchRequest asks for a BenchResponse
type BenchRequest struct {
	Payload []byte
}

// BenchResponse answers a BenchRequest
type BenchResponse struct {
	Payload []byte
}

func init() {
	envelope.RegisterTypes(new(BenchTell), new(BenchRequest), new(BenchResponse))
}

// Benchmarker counts down Wg for every BenchTell and echoes every BenchRequest
type Benchmarker struct {
	Wg sync.WaitGroup
}

var _ actor.Actor = (*Benchmarker)(nil)

func (p *Benchmarker) PreStart(context.Context) error {
	return nil
}

func (p *Benchmarker) Receive(ctx *actor.ReceiveContext) {
	switch msg := ctx.Message().(type) {
	case *BenchTell:
		p.Wg.Done()
	case *BenchRequest:
		ctx.Response(&BenchResponse{Payload: msg.Payload})
	default:
		ctx.Unhandled()
	}
}

func (p *Benchmarker) PostStop(context.Context) error {
	return nil
}
