package engine

import "sync"

type SegmentStatus uint8

const (
	SegmentActive SegmentStatus = iota
	SegmentClosed
)

// Segment is one contiguous slice of the remote file, owned by a single
// connection for its whole life. The cursor marks the next byte to claim:
// everything in [start, cursor) has been handed to the owner for writing,
// everything in [cursor, end) is still owed.
type Segment struct {
	start  int64
	end    int64
	cursor int64
	status SegmentStatus
}

func (s *Segment) remaining() int64 { return s.end - s.cursor }

// SegmentStore tracks the fixed set of segments for one download. The
// segment count never changes: finished segments close instead of
// disappearing, and splits move bytes between existing segments.
//
// A single mutex guards every field of every segment. A split has to read
// the donor's cursor and rewrite its end in one step, otherwise two
// connections could end up owning the same bytes.
type SegmentStore struct {
	mu        sync.Mutex
	segments  []*Segment
	active    int
	threshold int64
	done      chan struct{}
}

// NewSegmentStore builds one segment per range. Empty ranges are legal;
// their owners close them on the first Rebalance call.
func NewSegmentStore(ranges []Range, threshold int64) *SegmentStore {
	segs := make([]*Segment, len(ranges))
	for i, r := range ranges {
		segs[i] = &Segment{start: r.Start, end: r.End, cursor: r.Start}
	}

	st := &SegmentStore{
		segments:  segs,
		active:    len(segs),
		threshold: threshold,
		done:      make(chan struct{}),
	}
	if st.active == 0 {
		close(st.done)
	}
	return st
}

// Done is closed once every segment has closed.
func (st *SegmentStore) Done() <-chan struct{} { return st.done }

// Active returns the number of segments not yet closed.
func (st *SegmentStore) Active() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.active
}

// Window returns the byte range segment id still has to fetch.
func (st *SegmentStore) Window(id int) Range {
	st.mu.Lock()
	defer st.mu.Unlock()

	s := st.segments[id]
	return Range{Start: s.cursor, End: s.end}
}

// Claim reserves up to n bytes at the cursor of segment id and returns the
// reserved offset and length. Reserving happens before the disk write: a
// claimed byte can never be donated by a concurrent split, so the owner is
// free to write it outside the lock. A grant shorter than n means a split
// took the rest of the window.
func (st *SegmentStore) Claim(id int, n int64) (offset int64, granted int64) {
	st.mu.Lock()
	defer st.mu.Unlock()

	s := st.segments[id]
	offset = s.cursor
	granted = min(n, s.end-s.cursor)
	s.cursor += granted
	return offset, granted
}

// Rebalance is called by a connection whose segment has no bytes left. It
// either splits the segment with the most remaining bytes, handing its
// upper half to the caller, or closes the caller's segment when no open
// segment is worth splitting. The boolean is false once the caller's
// segment is closed; the caller must stop.
func (st *SegmentStore) Rebalance(id int) (Range, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	me := st.segments[id]
	if me.status == SegmentClosed {
		// Already closed: a second call is a no-op.
		return Range{}, false
	}

	// Busiest open segment; ties go to the earliest.
	var busy *Segment
	for _, s := range st.segments {
		if s.status != SegmentActive || s == me {
			continue
		}
		if busy == nil || s.remaining() > busy.remaining() {
			busy = s
		}
	}

	if busy == nil || busy.remaining() < st.threshold {
		me.status = SegmentClosed
		st.active--
		if st.active == 0 {
			close(st.done)
		}
		return Range{}, false
	}

	// Split at the midpoint of the donor's unread window, rounding down.
	// The donor keeps the lower half; the caller adopts the upper half.
	mid := busy.cursor + busy.remaining()/2
	tail := busy.end
	busy.end = mid

	me.start = mid
	me.cursor = mid
	me.end = tail

	return Range{Start: mid, End: tail}, true
}
