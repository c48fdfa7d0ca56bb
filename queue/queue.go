// Package queue implements the bounded singly-linked command/response FIFO
// shared by every board worker (spec.md §4.3): Add (priority or tail
// insert), Remove, Peek (non-destructive, re-signals after cloning the
// head), and Update (collapse-last, used to suppress a status flood so a
// caller only ever observes the latest status for a given command code).
//
// The design is adapted from the DIO24 driver's thread_queue/thread_cmd
// (critical section + counting semaphore + singly linked list,
// original_source/Windows-DLL/dio64_32/Dio24.h) onto Go's idioms: a
// buffered channel stands in for the counting semaphore and a mutex guards
// an explicit linked list so Update can mutate the tail entry in place.
package queue

import (
	"sync"
	"time"

	"dio64board/wire"
)

// Entry is one command or response travelling through a Queue. Data is a
// tagged union in spirit: callers stash either a payload (e.g. a decoded
// wire struct) or an inline 32-bit value, whichever the command needs.
type Entry struct {
	Cmd    wire.Command
	Data   any
	Status error

	next *Entry
}

// Queue is a bounded FIFO guarded by a mutex, with a counting semaphore
// (a buffered channel) kept in lock-step with the list length: at every
// stable point len(sem) == number of queued entries (spec.md §8).
type Queue struct {
	mu   sync.Mutex
	head *Entry
	tail *Entry
	n    int
	cap  int
	sem  chan struct{}
}

// New creates a Queue bounded to capacity entries.
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{cap: capacity, sem: make(chan struct{}, capacity)}
}

// Len reports the current queue length.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.n
}

// Add appends entry at the tail, or prepends it at the head if priority is
// set, and signals the semaphore. It reports false if the queue is already
// at capacity (the entry is not enqueued).
func (q *Queue) Add(entry *Entry, priority bool) bool {
	q.mu.Lock()
	if q.n >= q.cap {
		q.mu.Unlock()
		return false
	}
	entry.next = nil
	if q.head == nil {
		q.head, q.tail = entry, entry
	} else if priority {
		entry.next = q.head
		q.head = entry
	} else {
		q.tail.next = entry
		q.tail = entry
	}
	q.n++
	q.mu.Unlock()

	select {
	case q.sem <- struct{}{}:
	default:
		// Unreachable under the n<cap guard above; kept defensive.
	}
	return true
}

// Remove waits up to timeout for an entry to become available, then
// detaches and returns the head. ok is false on timeout.
func (q *Queue) Remove(timeout time.Duration) (entry *Entry, ok bool) {
	if !q.wait(timeout) {
		return nil, false
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.head == nil {
		return nil, false
	}
	e := q.head
	q.head = e.next
	if q.head == nil {
		q.tail = nil
	}
	q.n--
	e.next = nil
	return e, true
}

// Peek waits up to timeout for an entry to become available, clones the
// head without detaching it, and re-signals the semaphore so the entry
// remains visible to the next Remove/Peek. Intended for status polling
// during RUN without disturbing the queue.
//
// Re-signalling after the read (rather than before) can cause a spurious
// wakeup for a later consumer under unusual scheduling; this is the
// documented behavior (spec.md §4.3, §9 Open Questions) and is kept as
// specified rather than "fixed".
func (q *Queue) Peek(timeout time.Duration) (entry Entry, ok bool) {
	if !q.wait(timeout) {
		return Entry{}, false
	}
	q.mu.Lock()
	if q.head == nil {
		q.mu.Unlock()
		return Entry{}, false
	}
	clone := *q.head
	clone.next = nil
	q.mu.Unlock()

	select {
	case q.sem <- struct{}{}:
	default:
	}
	return clone, true
}

// Update implements collapse-last: if the tail entry carries the same
// command code as entry, it is replaced in place and the evicted entry is
// returned. Otherwise entry is appended at the tail (as Add would) and nil
// is returned. Used by a worker's status-poll loop so a fast producer
// cannot flood the queue with redundant status frames — the caller only
// ever sees the latest one.
func (q *Queue) Update(entry *Entry) *Entry {
	q.mu.Lock()
	if q.tail != nil && q.tail.Cmd == entry.Cmd {
		old := q.tail
		entry.next = nil
		if q.head == old {
			q.head = entry
		} else {
			p := q.head
			for p.next != old {
				p = p.next
			}
			p.next = entry
		}
		q.tail = entry
		q.mu.Unlock()
		old.next = nil
		return old
	}
	q.mu.Unlock()
	q.Add(entry, false)
	return nil
}

func (q *Queue) wait(timeout time.Duration) bool {
	if timeout <= 0 {
		select {
		case <-q.sem:
			return true
		default:
			return false
		}
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-q.sem:
		return true
	case <-t.C:
		return false
	}
}
