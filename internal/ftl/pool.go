package ftl

import (
	"fmt"

	"github.com/google/btree"
)

// FreeQueue is a FIFO of erased block ids. It is not thread-safe.
type FreeQueue struct {
	ring   []BlockID
	head   int
	size   int
	member []bool
}

func NewFreeQueue(numBlocks int) *FreeQueue {
	return &FreeQueue{
		ring:   make([]BlockID, numBlocks),
		member: make([]bool, numBlocks),
	}
}

func (q *FreeQueue) Len() int {
	return q.size
}

func (q *FreeQueue) Contains(id BlockID) bool {
	return q.member[id]
}

func (q *FreeQueue) Push(id BlockID) error {
	if q.member[id] {
		return fmt.Errorf("%w: block %d already in free queue", ErrBlockState, id)
	}
	// capacity equals the arena size and membership is unique, so this never overflows
	q.ring[(q.head+q.size)%len(q.ring)] = id
	q.size++
	q.member[id] = true
	return nil
}

func (q *FreeQueue) Pop() (BlockID, bool) {
	if q.size == 0 {
		return 0, false
	}
	id := q.ring[q.head]
	q.head = (q.head + 1) % len(q.ring)
	q.size--
	q.member[id] = false
	return id, true
}

// Ascend calls fn for each queued id, oldest first, until fn returns false.
func (q *FreeQueue) Ascend(fn func(id BlockID) bool) {
	for i := 0; i < q.size; i++ {
		if !fn(q.ring[(q.head+i)%len(q.ring)]) {
			return
		}
	}
}

type fullEntry struct {
	valid int
	seq   uint64
	id    BlockID
}

// FullQueue holds written blocks awaiting garbage collection, ordered by the
// configured VictimPolicy. It is not thread-safe.
type FullQueue struct {
	policy  VictimPolicy
	tree    *btree.BTreeG[fullEntry]
	entries []fullEntry
	member  []bool
}

func NewFullQueue(numBlocks int, policy VictimPolicy) *FullQueue {
	less := func(a, b fullEntry) bool { return a.seq < b.seq }
	if policy == VictimGreedy {
		less = func(a, b fullEntry) bool {
			if a.valid != b.valid {
				return a.valid < b.valid
			}
			return a.seq < b.seq
		}
	}
	return &FullQueue{
		policy:  policy,
		tree:    btree.NewG[fullEntry](32, less),
		entries: make([]fullEntry, numBlocks),
		member:  make([]bool, numBlocks),
	}
}

func (q *FullQueue) Len() int {
	return q.tree.Len()
}

func (q *FullQueue) Contains(id BlockID) bool {
	return q.member[id]
}

// Push queues a written block. Its seal sequence must already be assigned.
func (q *FullQueue) Push(b *Block) error {
	if b.state != StateWritten {
		return fmt.Errorf("%w: queue block %d in state %v as full", ErrBlockState, b.id, b.state)
	}
	if q.member[b.id] {
		return fmt.Errorf("%w: block %d already in full queue", ErrBlockState, b.id)
	}
	e := fullEntry{valid: b.valid, seq: b.sealSeq, id: b.id}
	q.tree.ReplaceOrInsert(e)
	q.entries[b.id] = e
	q.member[b.id] = true
	return nil
}

// Pop removes and returns the next victim.
func (q *FullQueue) Pop() (BlockID, bool) {
	e, ok := q.tree.DeleteMin()
	if !ok {
		return 0, false
	}
	q.member[e.id] = false
	return e.id, true
}

// Peek returns the next victim without removing it.
func (q *FullQueue) Peek() (BlockID, bool) {
	e, ok := q.tree.Min()
	return e.id, ok
}

// Update re-sorts a queued block after its valid count changed.
func (q *FullQueue) Update(b *Block) {
	if !q.member[b.id] || q.policy != VictimGreedy {
		return
	}
	q.tree.Delete(q.entries[b.id])
	e := fullEntry{valid: b.valid, seq: b.sealSeq, id: b.id}
	q.tree.ReplaceOrInsert(e)
	q.entries[b.id] = e
}

// Ascend calls fn for each queued id in victim order until fn returns false.
func (q *FullQueue) Ascend(fn func(id BlockID) bool) {
	q.tree.Ascend(func(e fullEntry) bool {
		return fn(e.id)
	})
}
