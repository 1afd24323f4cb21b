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

package eventstream

import (
	"sync"
	"sync/atomic"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"
)

// Subscriber defines the subscriber interface.
//
// Note: the unexported methods intentionally prevent external implementations.
// Subscribers are created by a Stream via AddSubscriber or AddReceiver.
type Subscriber interface {
	ID() string
	Active() bool
	Topics() []string
	Iterator() chan *Message
	Shutdown()

	signal(message *Message)
	subscribe(topic string)
	unsubscribe(topic string)
}

// Receiver accepts messages pushed by the stream, typically an actor.
// Deliver must not assume it is called from any particular goroutine.
type Receiver interface {
	Deliver(message any) error
}

// subscriber buffers the messages it is signaled until they are drained
type subscriber struct {
	id     string
	topics mapset.Set[string]
	active atomic.Bool

	mu       sync.Mutex
	messages []*Message
}

var _ Subscriber = (*subscriber)(nil)

func newSubscriber() *subscriber {
	s := &subscriber{
		id:     uuid.NewString(),
		topics: mapset.NewSet[string](),
	}
	s.active.Store(true)
	return s
}

func (s *subscriber) ID() string {
	return s.id
}

func (s *subscriber) Active() bool {
	return s.active.Load()
}

func (s *subscriber) Topics() []string {
	return s.topics.ToSlice()
}

func (s *subscriber) Shutdown() {
	s.active.Store(false)
}

// Iterator drains the messages that are buffered at the time of invocation and
// returns them through a closed channel.
func (s *subscriber) Iterator() chan *Message {
	s.mu.Lock()
	buffered := s.messages
	s.messages = nil
	s.mu.Unlock()

	out := make(chan *Message, len(buffered))
	for _, message := range buffered {
		out <- message
	}
	close(out)
	return out
}

func (s *subscriber) signal(message *Message) {
	if !s.active.Load() {
		return
	}
	s.push(message)
}

func (s *subscriber) push(message *Message) {
	s.mu.Lock()
	s.messages = append(s.messages, message)
	s.mu.Unlock()
}

func (s *subscriber) pop() (*Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.messages) == 0 {
		return nil, false
	}
	message := s.messages[0]
	s.messages[0] = nil
	s.messages = s.messages[1:]
	return message, true
}

func (s *subscriber) isEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages) == 0
}

func (s *subscriber) subscribe(topic string) {
	s.topics.Add(topic)
}

func (s *subscriber) unsubscribe(topic string) {
	s.topics.Remove(topic)
}

const (
	idle int32 = iota
	busy
)

// receiverSubscriber pushes its messages to a Receiver from its own goroutine,
// so that a slow receiver only delays itself.
type receiverSubscriber struct {
	*subscriber
	receiver   Receiver
	processing atomic.Int32
}

var _ Subscriber = (*receiverSubscriber)(nil)

func newReceiverSubscriber(receiver Receiver) *receiverSubscriber {
	return &receiverSubscriber{
		subscriber: newSubscriber(),
		receiver:   receiver,
	}
}

// Iterator returns a closed channel: messages are pushed to the receiver instead
func (s *receiverSubscriber) Iterator() chan *Message {
	out := make(chan *Message)
	close(out)
	return out
}

func (s *receiverSubscriber) signal(message *Message) {
	if !s.active.Load() {
		return
	}
	s.push(message)
	s.drain()
}

func (s *receiverSubscriber) drain() {
	if !s.processing.CompareAndSwap(idle, busy) {
		return
	}

	go func() {
		for {
			for {
				message, ok := s.pop()
				if !ok {
					break
				}
				if s.active.Load() {
					_ = s.receiver.Deliver(message.Payload())
				}
			}

			s.processing.Store(idle)
			if s.isEmpty() || !s.processing.CompareAndSwap(idle, busy) {
				return
			}
		}
	}()
}
