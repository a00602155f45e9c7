// File: internal/timer/heap.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Min-heap of expiring timers. Owned by a single goroutine.

package timer

import (
	"container/heap"
	"time"
)

// Timer is a handle to a scheduled callback. The zero value is not usable;
// obtain one from Heap.Add.
type Timer struct {
	expire time.Time
	cb     func()
	seq    uint64
	index  int // position in the heap slice, -1 once removed
}

// Expire returns the current expiry instant.
func (t *Timer) Expire() time.Time {
	return t.expire
}

// Armed reports whether the timer is still scheduled.
func (t *Timer) Armed() bool {
	return t != nil && t.index >= 0
}

// timerHeap implements heap.Interface ordered by expiry, then insertion.
type timerHeap []*Timer

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].expire.Equal(h[j].expire) {
		return h[i].seq < h[j].seq
	}
	return h[i].expire.Before(h[j].expire)
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

// Heap schedules callbacks by absolute expiry. It is not safe for
// concurrent use.
type Heap struct {
	items timerHeap
	seq   uint64
}

// New returns an empty heap.
func New() *Heap {
	return &Heap{}
}

// Add schedules cb at expire and returns its handle.
func (h *Heap) Add(expire time.Time, cb func()) *Timer {
	h.seq++
	t := &Timer{expire: expire, cb: cb, seq: h.seq}
	heap.Push(&h.items, t)
	return t
}

// Remove unschedules t. It returns false if t was already removed or fired.
func (h *Heap) Remove(t *Timer) bool {
	if !t.Armed() || t.index >= len(h.items) || h.items[t.index] != t {
		return false
	}
	heap.Remove(&h.items, t.index)
	t.cb = nil
	return true
}

// Reset moves t to a new expiry. A removed timer is scheduled again with
// its original callback only if it still has one.
func (h *Heap) Reset(t *Timer, expire time.Time) {
	cb := t.cb
	if t.Armed() && t.index < len(h.items) && h.items[t.index] == t {
		heap.Remove(&h.items, t.index)
	}
	if cb == nil {
		return
	}
	h.seq++
	t.expire = expire
	t.cb = cb
	t.seq = h.seq
	heap.Push(&h.items, t)
}

// Sweep fires every timer whose expiry is not after now, earliest first,
// and returns the number of callbacks run. Callbacks may remove or reset
// other timers.
func (h *Heap) Sweep(now time.Time) int {
	fired := 0
	for len(h.items) > 0 {
		t := h.items[0]
		if t.expire.After(now) {
			break
		}
		heap.Pop(&h.items)
		cb := t.cb
		t.cb = nil
		if cb != nil {
			cb()
			fired++
		}
	}
	return fired
}

// Len returns the number of scheduled timers.
func (h *Heap) Len() int {
	return len(h.items)
}

// Next returns the earliest expiry, if any timer is scheduled.
func (h *Heap) Next() (time.Time, bool) {
	if len(h.items) == 0 {
		return time.Time{}, false
	}
	return h.items[0].expire, true
}

// Clear drops every timer without firing it.
func (h *Heap) Clear() {
	for _, t := range h.items {
		t.index = -1
		t.cb = nil
	}
	h.items = nil
}
