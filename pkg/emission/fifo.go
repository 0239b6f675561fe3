// Copyright (c) 2017 OysterPack, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package emission

import "github.com/oysterpack/sigint.go/pkg/message"

// fifo is a fixed capacity ring of messages. It is not safe for concurrent use.
type fifo struct {
	items []message.Message
	head  int
	size  int
}

func newFIFO(capacity int) *fifo {
	return &fifo{items: make([]message.Message, capacity)}
}

func (a *fifo) Len() int { return a.size }

func (a *fifo) Cap() int { return len(a.items) }

func (a *fifo) Full() bool { return a.size == len(a.items) }

// PushBack appends m. If the fifo is full, the oldest message is evicted and returned.
func (a *fifo) PushBack(m message.Message) (evicted message.Message, ok bool) {
	if a.Full() {
		evicted, ok = a.PopFront()
	}
	a.items[(a.head+a.size)%len(a.items)] = m
	a.size++
	return
}

// PushFront puts m back at the head. It returns false if the fifo is full.
func (a *fifo) PushFront(m message.Message) bool {
	if a.Full() {
		return false
	}
	a.head = (a.head - 1 + len(a.items)) % len(a.items)
	a.items[a.head] = m
	a.size++
	return true
}

// PopFront removes and returns the oldest message
func (a *fifo) PopFront() (message.Message, bool) {
	if a.size == 0 {
		return message.Message{}, false
	}
	m := a.items[a.head]
	a.items[a.head] = message.Message{}
	a.head = (a.head + 1) % len(a.items)
	a.size--
	return m, true
}

// Clear removes all messages and returns how many were removed
func (a *fifo) Clear() int {
	n := a.size
	for i := range a.items {
		a.items[i] = message.Message{}
	}
	a.head, a.size = 0, 0
	return n
}

// Snapshot returns the queued messages oldest first
func (a *fifo) Snapshot() []message.Message {
	snapshot := make([]message.Message, a.size)
	for i := 0; i < a.size; i++ {
		snapshot[i] = a.items[(a.head+i)%len(a.items)]
	}
	return snapshot
}
