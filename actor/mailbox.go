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
	"sync"
	"sync/atomic"
)

// Mailbox defines the contract for an actor's message queue.
//
// Implementations must be safe for concurrent producers calling Enqueue while
// a single goroutine calls Dequeue. Enqueue never blocks and Dequeue returns
// nil when the mailbox is empty.
type Mailbox interface {
	// Enqueue pushes a message into the mailbox.
	Enqueue(msg *ReceiveContext) error
	// Dequeue fetches a message from the mailbox.
	Dequeue() (msg *ReceiveContext)
	// IsEmpty returns true when the mailbox is empty
	IsEmpty() bool
	// Len returns mailbox length
	Len() int64
}

// mpscNode defines a node for the MPSC queue specialized for *ReceiveContext.
type mpscNode struct {
	next atomic.Pointer[mpscNode]
	data *ReceiveContext
}

var mpscNodePool = sync.Pool{New: func() any { return new(mpscNode) }}

// DefaultMailbox is the default unbounded, lock-free, FIFO mailbox.
//
// Many goroutines may call Enqueue concurrently but exactly one goroutine
// must call Dequeue. IsEmpty is O(1); Len walks the queue and is meant for
// diagnostics.
type DefaultMailbox struct {
	head  atomic.Pointer[mpscNode] // consumer only
	_pad1 [64]byte
	tail  atomic.Pointer[mpscNode] // producers only
	_pad2 [64]byte
}

// enforce compilation error when interface contract changes
var _ Mailbox = (*DefaultMailbox)(nil)

// NewDefaultMailbox creates and initializes a DefaultMailbox instance.
func NewDefaultMailbox() *DefaultMailbox {
	dummy := mpscNodePool.Get().(*mpscNode)
	dummy.next.Store(nil)
	dummy.data = nil
	m := &DefaultMailbox{}
	m.head.Store(dummy)
	m.tail.Store(dummy)
	return m
}

// Enqueue places the given value in the mailbox. Never blocks; always returns nil.
func (m *DefaultMailbox) Enqueue(value *ReceiveContext) error {
	n := mpscNodePool.Get().(*mpscNode)
	n.next.Store(nil)
	n.data = value

	prev := m.tail.Swap(n)
	prev.next.Store(n)
	return nil
}

// Dequeue removes and returns the value at the head of the mailbox.
func (m *DefaultMailbox) Dequeue() *ReceiveContext {
	head := m.head.Load()
	next := head.next.Load()
	if next == nil {
		return nil
	}

	m.head.Store(next)
	value := next.data
	next.data = nil

	head.next.Store(nil)
	mpscNodePool.Put(head)
	return value
}

// Len returns a best-effort snapshot of the number of messages in the mailbox.
func (m *DefaultMailbox) Len() int64 {
	var count int64
	for n := m.head.Load().next.Load(); n != nil; n = n.next.Load() {
		count++
	}
	return count
}

// IsEmpty returns true when the mailbox is empty.
func (m *DefaultMailbox) IsEmpty() bool {
	return m.head.Load().next.Load() == nil
}
