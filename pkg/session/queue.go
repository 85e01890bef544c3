// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import (
	"sync"
	"time"
)

// PendingWrite is a register change waiting for the next active cycle
type PendingWrite struct {
	Name   string
	Value  interface{}
	Queued time.Time
}

// WriteQueue hands writes from command sources to the polling loop. It is
// safe for concurrent use.
type WriteQueue struct {
	mu     sync.Mutex
	items  []PendingWrite
	notify chan struct{}
}

// NewWriteQueue creates an empty queue
func NewWriteQueue() *WriteQueue {
	return &WriteQueue{notify: make(chan struct{}, 1)}
}

// Push appends a write and wakes any waiter
func (q *WriteQueue) Push(name string, value interface{}) {
	q.mu.Lock()
	q.items = append(q.items, PendingWrite{Name: name, Value: value, Queued: time.Now()})
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Pop removes the oldest write
func (q *WriteQueue) Pop() (PendingWrite, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return PendingWrite{}, false
	}
	w := q.items[0]
	q.items[0] = PendingWrite{}
	q.items = q.items[1:]
	return w, true
}

// Len returns the number of queued writes
func (q *WriteQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Notify receives a value after every Push. Pushes while nobody is waiting
// coalesce into one notification.
func (q *WriteQueue) Notify() <-chan struct{} {
	return q.notify
}
