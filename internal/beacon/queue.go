package beacon

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
)

// Policy decides which event is lost when the queue is full.
type Policy int

const (
	DropNewest Policy = iota
	DropOldest
)

func (p Policy) String() string {
	switch p {
	case DropNewest:
		return "drop-newest"
	case DropOldest:
		return "drop-oldest"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "drop-newest":
		return DropNewest, nil
	case "drop-oldest":
		return DropOldest, nil
	default:
		return 0, fmt.Errorf("unknown queue policy %q", s)
	}
}

const DefaultQueueSize = 16

// Queue is a bounded FIFO of events safe for many producers and one
// consumer.
type Queue struct {
	policy Policy
	ready  chan struct{}

	mu    sync.Mutex
	buf   []Event
	head  int
	count int

	dropped atomic.Uint64
}

func NewQueue(size int, policy Policy) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Queue{
		policy: policy,
		ready:  make(chan struct{}, 1),
		buf:    make([]Event, size),
	}
}

// Push appends ev. It reports false when ev itself was dropped.
func (q *Queue) Push(ev Event) bool {
	q.mu.Lock()
	accepted := true
	if q.count == len(q.buf) {
		q.dropped.Add(1)
		if q.policy == DropNewest {
			accepted = false
		} else {
			q.buf[q.head] = nil
			q.head = (q.head + 1) % len(q.buf)
			q.count--
		}
	}
	if accepted {
		q.buf[(q.head+q.count)%len(q.buf)] = ev
		q.count++
	}
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
	return accepted
}

func (q *Queue) Pop() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.count == 0 {
		return nil, false
	}
	ev := q.buf[q.head]
	q.buf[q.head] = nil
	q.head = (q.head + 1) % len(q.buf)
	q.count--
	return ev, true
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Ready is signalled after every Push.
func (q *Queue) Ready() <-chan struct{} { return q.ready }

func (q *Queue) Dropped() uint64 { return q.dropped.Load() }
