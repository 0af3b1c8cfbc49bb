package queue

import (
	"github.com/huandu/skiplist"

	"github.com/romshark/coalesce/clock"
)

// New creates an empty queue.
// Entries are ordered by their initial fire tick using wrapping
// comparison, ties are broken by insertion order.
func New() *Queue {
	return &Queue{
		l: skiplist.New(
			skiplist.GreaterThanFunc(func(a, b interface{}) int {
				k1, k2 := a.(key), b.(key)
				if c := clock.Compare(k1.at, k2.at); c != 0 {
					return c
				}
				if k1.seq > k2.seq {
					return 1
				} else if k1.seq < k2.seq {
					return -1
				}
				return 0
			}),
		),
		index: make(map[uint32]key),
	}
}

// Queue is a sorted list of pending entries.
// Queue is not safe for concurrent use.
type Queue struct {
	l     *skiplist.SkipList
	index map[uint32]key
	seq   uint64
}

// Entry is a pending timer.
type Entry struct {
	ID uint32

	// Initial is the tick the entry is sorted by.
	Initial clock.Tick

	// Effective is the tick the entry must reach before it's invoked.
	// Effective is later than Initial when the entry was postponed.
	Effective clock.Tick

	Fn func()
}

// key is the skiplist sort key.
// seq keeps entries with equal ticks in insertion order.
type key struct {
	at  clock.Tick
	seq uint64
}

// Push inserts e after all entries with an initial tick
// before or equal to e.Initial.
// Any pending entry with the same id is replaced.
func (q *Queue) Push(e Entry) (atFront bool) {
	q.Remove(e.ID)
	q.seq++
	k := key{at: e.Initial, seq: q.seq}
	q.index[e.ID] = k
	return q.l.Set(k, e).Prev() == nil
}

func (q *Queue) Has(id uint32) bool {
	_, ok := q.index[id]
	return ok
}

func (q *Queue) Get(id uint32) (Entry, bool) {
	if k, ok := q.index[id]; ok {
		return q.l.Get(k).Value.(Entry), true
	}
	return Entry{}, false
}

func (q *Queue) Front() (Entry, bool) {
	if e := q.l.Front(); e != nil {
		return e.Value.(Entry), true
	}
	return Entry{}, false
}

// Update sets the effective tick of a pending entry
// without changing its position.
func (q *Queue) Update(id uint32, effective clock.Tick) (ok bool) {
	k, ok := q.index[id]
	if !ok {
		return false
	}
	e := q.l.Get(k)
	v := e.Value.(Entry)
	v.Effective = effective
	e.Value = v
	return true
}

func (q *Queue) Remove(id uint32) (removed bool) {
	k, ok := q.index[id]
	if !ok {
		return false
	}
	delete(q.index, id)
	q.l.Remove(k)
	return true
}

func (q *Queue) Len() int {
	return q.l.Len()
}

// Scan calls fn for every entry after the entry identified by after
// in sort order until fn returns false.
// Starts from the front of the queue if after is zero.
func (q *Queue) Scan(
	after uint32,
	fn func(Entry) bool,
) (afterFound bool) {
	var start *skiplist.Element
	if after != 0 {
		k, ok := q.index[after]
		if !ok {
			return false
		}
		start = q.l.Get(k).Next()
	} else {
		start = q.l.Front()
	}

	for e := start; e != nil; e = e.Next() {
		if !fn(e.Value.(Entry)) {
			return true
		}
	}
	return true
}
