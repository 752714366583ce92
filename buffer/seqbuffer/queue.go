package seqbuffer

import (
	"time"

	"github.com/relex/frame-agent/base"
)

type entry[T any] struct {
	record       base.Record[T]
	key          int64  // -sequence in realtime mode, +sequence in ordered mode
	order        uint64 // insertion order to break ties
	conflictedAt time.Time
	index        int
}

// entryQueue is a binary heap of entries, to be used with container/heap
type entryQueue[T any] []*entry[T]

func (q entryQueue[T]) Len() int {
	return len(q)
}

func (q entryQueue[T]) Less(i, j int) bool {
	if q[i].key != q[j].key {
		return q[i].key < q[j].key
	}
	return q[i].order < q[j].order
}

func (q entryQueue[T]) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *entryQueue[T]) Push(x any) {
	e := x.(*entry[T])
	e.index = len(*q)
	*q = append(*q, e)
}

func (q *entryQueue[T]) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*q = old[:n-1]
	return e
}

// oldest finds the entry with the lowest sequence, which is the tail in realtime mode
func (q entryQueue[T]) oldest() *entry[T] {
	var found *entry[T]
	for _, e := range q {
		if found == nil || e.record.Sequence < found.record.Sequence ||
			(e.record.Sequence == found.record.Sequence && e.order < found.order) {
			found = e
		}
	}
	return found
}
