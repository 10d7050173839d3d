package graph

import (
	"sort"
	"time"

	"massa-api/models"
	"massa-api/timeslots"
)

// BlockEntry is a block as seen by one snapshot
type BlockEntry struct {
	ID            models.BlockId
	Block         *models.Block
	Timestamp     uint64
	Final         bool
	Stale         bool
	InBlockclique bool
	Cliques       []int
	Operations    []models.OperationId
	Endorsements  []models.EndorsementId
}

func (e *BlockEntry) Slot() models.Slot {
	return e.Block.Header.Content.Slot
}

// OperationRef locates an operation in the blocks of a snapshot
type OperationRef struct {
	Operation *models.Operation
	Blocks    []models.BlockId
	Final     bool
}

// EndorsementRef locates an endorsement in the blocks of a snapshot
type EndorsementRef struct {
	Endorsement *models.Endorsement
	Blocks      []models.BlockId
	Final       bool
}

// Snapshot is an immutable view of the graph at one version. Nothing reachable
// from it is modified after construction, so it is safe for concurrent use.
type Snapshot struct {
	version uint64
	takenAt time.Time
	clock   timeslots.Clock

	entries      map[models.BlockId]*BlockEntry
	ordered      []*BlockEntry
	cliques      []models.Clique
	lastFinal    []*BlockEntry
	bestParents  []models.BlockId
	operations   map[models.OperationId]*OperationRef
	endorsements map[models.EndorsementId]*EndorsementRef
}

func newSnapshot(clock timeslots.Clock, version uint64, takenAt time.Time, nodes []*node, final map[models.BlockId]bool, maxCliques int) *Snapshot {
	snap := &Snapshot{
		version:      version,
		takenAt:      takenAt,
		clock:        clock,
		entries:      make(map[models.BlockId]*BlockEntry, len(nodes)),
		ordered:      make([]*BlockEntry, 0, len(nodes)),
		lastFinal:    make([]*BlockEntry, clock.ThreadCount),
		operations:   make(map[models.OperationId]*OperationRef),
		endorsements: make(map[models.EndorsementId]*EndorsementRef),
	}

	for _, n := range nodes {
		e := &BlockEntry{
			ID:           n.id,
			Block:        n.block,
			Timestamp:    n.timestamp,
			Final:        final[n.id],
			Operations:   n.operations,
			Endorsements: n.endorsements,
		}
		snap.entries[n.id] = e
		snap.ordered = append(snap.ordered, e)
	}
	sort.Slice(snap.ordered, func(i, j int) bool {
		return lessEntry(snap.ordered[i], snap.ordered[j])
	})

	for _, e := range snap.ordered {
		if e.Final {
			snap.lastFinal[e.Slot().Thread] = e
		}
	}

	snap.cliques = computeCliques(snap, maxCliques)
	snap.bestParents = snap.computeBestParents()
	snap.indexContents()
	return snap
}

func lessEntry(a, b *BlockEntry) bool {
	if c := a.Slot().Compare(b.Slot()); c != 0 {
		return c < 0
	}
	return a.ID.Compare(b.ID.Hash) < 0
}

func (s *Snapshot) computeBestParents() []models.BlockId {
	best := make([]*BlockEntry, len(s.lastFinal))
	copy(best, s.lastFinal)
	for _, e := range s.ordered {
		if e.InBlockclique {
			best[e.Slot().Thread] = e
		}
	}
	ids := make([]models.BlockId, 0, len(best))
	for _, e := range best {
		if e != nil {
			ids = append(ids, e.ID)
		}
	}
	return ids
}

func (s *Snapshot) indexContents() {
	for _, e := range s.ordered {
		for i, opID := range e.Operations {
			ref, ok := s.operations[opID]
			if !ok {
				ref = &OperationRef{Operation: &e.Block.Operations[i]}
				s.operations[opID] = ref
			}
			ref.Blocks = append(ref.Blocks, e.ID)
			ref.Final = ref.Final || e.Final
		}
		for i, eID := range e.Endorsements {
			ref, ok := s.endorsements[eID]
			if !ok {
				ref = &EndorsementRef{Endorsement: &e.Block.Header.Content.Endorsements[i]}
				s.endorsements[eID] = ref
			}
			ref.Blocks = append(ref.Blocks, e.ID)
			ref.Final = ref.Final || e.Final
		}
	}
}

// Version is the store version the snapshot was copied from
func (s *Snapshot) Version() uint64 {
	return s.version
}

func (s *Snapshot) Clock() timeslots.Clock {
	return s.clock
}

// Block looks up a block by id
func (s *Snapshot) Block(id models.BlockId) (*BlockEntry, bool) {
	e, ok := s.entries[id]
	return e, ok
}

// Len is the number of blocks in the snapshot
func (s *Snapshot) Len() int {
	return len(s.ordered)
}

// Cliques lists every clique, the blockclique first. The order only depends on
// the snapshot contents.
func (s *Snapshot) Cliques() []models.Clique {
	out := make([]models.Clique, len(s.cliques))
	copy(out, s.cliques)
	return out
}

func (s *Snapshot) CliqueCount() int {
	return len(s.cliques)
}

// LastFinalBlocks returns the newest final block of each thread
func (s *Snapshot) LastFinalBlocks() []*BlockEntry {
	out := make([]*BlockEntry, 0, len(s.lastFinal))
	for _, e := range s.lastFinal {
		if e != nil {
			out = append(out, e)
		}
	}
	return out
}

// BestParents is, per thread, the newest blockclique block or else the last final block
func (s *Snapshot) BestParents() []models.BlockId {
	out := make([]models.BlockId, len(s.bestParents))
	copy(out, s.bestParents)
	return out
}

// NewestSlot is the highest slot of any block, false for an empty graph
func (s *Snapshot) NewestSlot() (models.Slot, bool) {
	if len(s.ordered) == 0 {
		return models.Slot{}, false
	}
	return s.ordered[len(s.ordered)-1].Slot(), true
}

// Range returns the blocks with from <= slot < to ordered by slot then id.
// A nil to means no upper bound.
func (s *Snapshot) Range(from models.Slot, to *models.Slot) []*BlockEntry {
	lo := sort.Search(len(s.ordered), func(i int) bool {
		return !s.ordered[i].Slot().Less(from)
	})
	hi := len(s.ordered)
	if to != nil {
		hi = sort.Search(len(s.ordered), func(i int) bool {
			return !s.ordered[i].Slot().Less(*to)
		})
	}
	if hi <= lo {
		return nil
	}
	out := make([]*BlockEntry, hi-lo)
	copy(out, s.ordered[lo:hi])
	return out
}

// Operation looks up an operation included in a block of the snapshot
func (s *Snapshot) Operation(id models.OperationId) (*OperationRef, bool) {
	ref, ok := s.operations[id]
	return ref, ok
}

// Endorsement looks up an endorsement included in a block header of the snapshot
func (s *Snapshot) Endorsement(id models.EndorsementId) (*EndorsementRef, bool) {
	ref, ok := s.endorsements[id]
	return ref, ok
}
