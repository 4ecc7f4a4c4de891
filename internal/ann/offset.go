package ann

import "sync"

// Offset tracks the next free host id. It is a write-side cache of the
// collection cardinality: reconciled from Count when an adapter is built,
// reset by Index and advanced by successful appends.
type Offset struct {
	mu   sync.Mutex
	next int64
}

// Current returns the next id to assign.
func (o *Offset) Current() int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.next
}

// Advance moves the offset forward by n. Non-positive n is ignored so the
// offset never decreases.
func (o *Offset) Advance(n int) {
	if n <= 0 {
		return
	}
	o.mu.Lock()
	o.next += int64(n)
	o.mu.Unlock()
}

// Reset sets the offset back to 0. Only Index may call it.
func (o *Offset) Reset() {
	o.mu.Lock()
	o.next = 0
	o.mu.Unlock()
}

// Set replaces the offset. Used for reconciliation and checkpoint restore.
func (o *Offset) Set(n int64) {
	if n < 0 {
		n = 0
	}
	o.mu.Lock()
	o.next = n
	o.mu.Unlock()
}

// IDs returns the n ids that the next append of n vectors will receive.
func (o *Offset) IDs(n int) []int64 {
	start := o.Current()
	ids := make([]int64, n)
	for i := range ids {
		ids[i] = start + int64(i)
	}
	return ids
}
