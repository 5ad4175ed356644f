package disruptor

import (
	"math"
	"sync/atomic"

	"github.com/five-vee/disruptor/v2/internal/barrier"
)

// FixedSequenceGroup is an immutable set of sequences read as their minimum.
type FixedSequenceGroup struct {
	sequences []*Sequence
}

// NewFixedSequenceGroup copies seqs into a new group.
func NewFixedSequenceGroup(seqs ...*Sequence) *FixedSequenceGroup {
	return &FixedSequenceGroup{sequences: append([]*Sequence(nil), seqs...)}
}

// Load returns the minimum of the group, or math.MaxInt64 when empty.
func (g *FixedSequenceGroup) Load() int64 {
	return barrier.Minimum(g.sequences, math.MaxInt64)
}

// dependentOf collapses a dependency list into a single reader.
// Don't need the group type if size 0 or 1.
func dependentOf(cursor *Sequence, seqs []*Sequence) SequenceReader {
	switch len(seqs) {
	case 0:
		return cursor
	case 1:
		return seqs[0]
	default:
		return NewFixedSequenceGroup(seqs...)
	}
}

// sequenceSet is a copy-on-write snapshot of sequences. Readers load the
// current slice and never block; writers build a new slice and swap it in.
type sequenceSet struct {
	p atomic.Pointer[[]*Sequence]
}

func (s *sequenceSet) snapshot() []*Sequence {
	if p := s.p.Load(); p != nil {
		return *p
	}
	return nil
}

// add appends seqs, first moving each of them to the cursor so that a
// new gating sequence never holds back the producer behind where it is.
func (s *sequenceSet) add(cursor Cursored, seqs ...*Sequence) {
	for {
		current := s.p.Load()
		var old []*Sequence
		if current != nil {
			old = *current
		}
		updated := make([]*Sequence, 0, len(old)+len(seqs))
		updated = append(updated, old...)
		cursorSequence := cursor.Cursor()
		for _, seq := range seqs {
			seq.Store(cursorSequence)
			updated = append(updated, seq)
		}
		if s.p.CompareAndSwap(current, &updated) {
			break
		}
	}
	// The cursor may have moved while swapping.
	cursorSequence := cursor.Cursor()
	for _, seq := range seqs {
		seq.Store(cursorSequence)
	}
}

// remove drops every occurrence of seq, compared by identity.
func (s *sequenceSet) remove(seq *Sequence) bool {
	for {
		current := s.p.Load()
		if current == nil {
			return false
		}
		old := *current
		updated := make([]*Sequence, 0, len(old))
		for _, existing := range old {
			if existing != seq {
				updated = append(updated, existing)
			}
		}
		if len(updated) == len(old) {
			return false
		}
		if s.p.CompareAndSwap(current, &updated) {
			return true
		}
	}
}

// SequenceGroup is a dynamically sized set of sequences read as their
// minimum. Members may be added and removed while other goroutines read.
type SequenceGroup struct {
	set sequenceSet
}

// NewSequenceGroup returns an empty group.
func NewSequenceGroup() *SequenceGroup {
	return &SequenceGroup{}
}

// Load returns the minimum of the group, or math.MaxInt64 when empty.
func (g *SequenceGroup) Load() int64 {
	return barrier.Minimum(g.set.snapshot(), math.MaxInt64)
}

// Store sets every member of the group to v.
func (g *SequenceGroup) Store(v int64) {
	for _, seq := range g.set.snapshot() {
		seq.Store(v)
	}
}

// Add appends seq without touching its value.
func (g *SequenceGroup) Add(seq *Sequence) {
	for {
		current := g.set.p.Load()
		var old []*Sequence
		if current != nil {
			old = *current
		}
		updated := append(append(make([]*Sequence, 0, len(old)+1), old...), seq)
		if g.set.p.CompareAndSwap(current, &updated) {
			return
		}
	}
}

// Remove drops seq from the group. It reports whether seq was a member.
func (g *SequenceGroup) Remove(seq *Sequence) bool {
	return g.set.remove(seq)
}

// Size returns the number of members.
func (g *SequenceGroup) Size() int {
	return len(g.set.snapshot())
}

// AddWhileRunning adds seq after moving it to the cursor of cursored,
// so a consumer joining a live ring starts from the current position.
func (g *SequenceGroup) AddWhileRunning(cursored Cursored, seq *Sequence) {
	g.set.add(cursored, seq)
}
