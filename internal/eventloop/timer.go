package eventloop

import (
	"container/heap"
	"time"
)

// Timer is a task scheduled on a Loop for a future instant.
type Timer struct {
	loop     *Loop
	deadline time.Time
	seq      uint64
	task     func()
	index    int // heap index, -1 when not queued
	fired    bool
}

// Deadline returns when the timer is (or was) due.
func (t *Timer) Deadline() time.Time {
	return t.deadline
}

// Stop prevents the timer from firing. It returns false if the timer
// already fired or was already stopped.
func (t *Timer) Stop() bool {
	if t == nil || t.loop == nil {
		return false
	}

	l := t.loop
	l.mu.Lock()
	defer l.mu.Unlock()

	if t.fired || t.index < 0 {
		return false
	}
	heap.Remove(&l.timers, t.index)
	t.index = -1
	return true
}

// timerHeap orders timers by deadline, then by scheduling order.
type timerHeap []*Timer

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].deadline.Equal(h[j].deadline) {
		return h[i].seq < h[j].seq
	}
	return h[i].deadline.Before(h[j].deadline)
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	t := x.(*Timer)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}
