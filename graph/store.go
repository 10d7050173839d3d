// Package graph holds the block DAG as maintained by consensus and hands out
// immutable point-in-time snapshots of it to readers.
package graph

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jinzhu/copier"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"massa-api/apierr"
	"massa-api/logger"
	"massa-api/metrics"
	"massa-api/models"
	"massa-api/repository"
	"massa-api/timeslots"
)

var (
	ErrBlockExists  = errors.New("block already exists")
	ErrUnknownBlock = errors.New("unknown block")
	ErrInvalidBlock = errors.New("invalid block")
)

// Options tune snapshot production
type Options struct {
	// Staleness is how long a snapshot may keep serving readers after the graph changed
	Staleness time.Duration
	// MaxCliques bounds clique enumeration, zero means unbounded
	MaxCliques int
	// Now is the time source, time.Now when nil
	Now func() time.Time
}

// node is a block as admitted into the store. It is never mutated after admission
// so snapshots share it.
type node struct {
	id           models.BlockId
	block        *models.Block
	timestamp    uint64
	operations   []models.OperationId
	endorsements []models.EndorsementId
}

// Store is the writer side of the graph. Writes are serialized by a mutex that
// readers only hold while copying the graph into a new snapshot.
type Store struct {
	clock timeslots.Clock
	repo  repository.Repository
	opts  Options

	mux     sync.RWMutex
	nodes   map[models.BlockId]*node
	final   map[models.BlockId]bool
	genesis map[uint8]models.BlockId

	version atomic.Uint64
	current atomic.Pointer[Snapshot]
	builds  singleflight.Group
}

// NewStore creates an empty store. repo may be nil for a memory-only graph.
func NewStore(clock timeslots.Clock, repo repository.Repository, opts Options) *Store {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		clock:   clock,
		repo:    repo,
		opts:    opts,
		nodes:   make(map[models.BlockId]*node),
		final:   make(map[models.BlockId]bool),
		genesis: make(map[uint8]models.BlockId),
	}
}

// Load replays the persisted graph
func (s *Store) Load() error {
	if s.repo == nil {
		return nil
	}
	records, err := s.repo.GetAllBlocks()
	if err != nil {
		return fmt.Errorf("load blocks: %w", err)
	}
	sort.Slice(records, func(i, j int) bool {
		si, sj := records[i].Block.Header.Content.Slot, records[j].Block.Header.Content.Slot
		if c := si.Compare(sj); c != 0 {
			return c < 0
		}
		return records[i].ID.Compare(records[j].ID.Hash) < 0
	})

	s.mux.Lock()
	defer s.mux.Unlock()

	for _, rec := range records {
		block := rec.Block
		if !s.clock.InRange(block.Header.Content.Slot) {
			return fmt.Errorf("load block %s: slot out of range", rec.ID)
		}
		n, err := s.newNode(rec.ID, &block)
		if err != nil {
			return fmt.Errorf("load block %s: %w", rec.ID, err)
		}
		s.nodes[rec.ID] = n
		if rec.Final {
			s.final[rec.ID] = true
		}
		if block.Header.Content.Slot.Period == 0 {
			s.genesis[block.Header.Content.Slot.Thread] = rec.ID
		}
	}
	s.version.Add(1)

	logger.Logger.Info("Graph loaded",
		zap.Int("blocks", len(records)),
		zap.Int("genesis_threads", len(s.genesis)))
	return nil
}

func (s *Store) newNode(id models.BlockId, block *models.Block) (*node, error) {
	n := &node{
		id:        id,
		block:     block,
		timestamp: s.clock.TimeOf(block.Header.Content.Slot),
	}
	for i := range block.Operations {
		opID, err := block.Operations[i].ID()
		if err != nil {
			return nil, err
		}
		n.operations = append(n.operations, opID)
	}
	for i := range block.Header.Content.Endorsements {
		eID, err := block.Header.Content.Endorsements[i].ID()
		if err != nil {
			return nil, err
		}
		n.endorsements = append(n.endorsements, eID)
	}
	return n, nil
}

// AddBlock admits a block. Period 0 blocks are the per-thread genesis blocks:
// they carry no parents and are final on admission. Other blocks name one
// existing parent per thread.
func (s *Store) AddBlock(block *models.Block) (models.BlockId, error) {
	var cp models.Block
	if err := copier.CopyWithOption(&cp, block, copier.Option{DeepCopy: true}); err != nil {
		return models.BlockId{}, fmt.Errorf("copy block: %w", err)
	}

	content := &cp.Header.Content
	if !s.clock.InRange(content.Slot) {
		return models.BlockId{}, fmt.Errorf("%w: slot (%d, %d) out of range", ErrInvalidBlock, content.Slot.Period, content.Slot.Thread)
	}
	root, err := models.OperationMerkleRoot(cp.Operations)
	if err != nil {
		return models.BlockId{}, fmt.Errorf("%w: %v", ErrInvalidBlock, err)
	}
	if content.OperationMerkleRoot.IsZero() {
		content.OperationMerkleRoot = root
	} else if content.OperationMerkleRoot != root {
		return models.BlockId{}, fmt.Errorf("%w: operation merkle root mismatch", ErrInvalidBlock)
	}
	id, err := cp.ID()
	if err != nil {
		return models.BlockId{}, fmt.Errorf("%w: %v", ErrInvalidBlock, err)
	}

	s.mux.Lock()
	defer s.mux.Unlock()

	if _, exists := s.nodes[id]; exists {
		return id, ErrBlockExists
	}

	isGenesis := content.Slot.Period == 0
	if isGenesis {
		if len(content.Parents) != 0 {
			return id, fmt.Errorf("%w: genesis block with parents", ErrInvalidBlock)
		}
		if _, ok := s.genesis[content.Slot.Thread]; ok {
			return id, fmt.Errorf("%w: thread %d already has a genesis block", ErrInvalidBlock, content.Slot.Thread)
		}
	} else if err := s.checkParents(&cp); err != nil {
		return id, err
	}

	n, err := s.newNode(id, &cp)
	if err != nil {
		return id, fmt.Errorf("%w: %v", ErrInvalidBlock, err)
	}
	if s.repo != nil {
		if err := s.repo.PutBlocks(&repository.BlockRecord{ID: id, Block: cp, Final: isGenesis}); err != nil {
			return id, fmt.Errorf("persist block: %w", err)
		}
	}

	s.nodes[id] = n
	if isGenesis {
		s.final[id] = true
		s.genesis[content.Slot.Thread] = id
	}
	s.version.Add(1)

	logger.Logger.Debug("Block added",
		zap.String("block_id", id.String()),
		zap.Stringer("slot", content.Slot))
	return id, nil
}

func (s *Store) checkParents(block *models.Block) error {
	content := &block.Header.Content
	if len(content.Parents) != int(s.clock.ThreadCount) {
		return fmt.Errorf("%w: expected %d parents, got %d", ErrInvalidBlock, s.clock.ThreadCount, len(content.Parents))
	}
	for thread, pid := range content.Parents {
		parent, ok := s.nodes[pid]
		if !ok {
			return fmt.Errorf("%w: parent %s", ErrUnknownBlock, pid)
		}
		pslot := parent.block.Header.Content.Slot
		if int(pslot.Thread) != thread {
			return fmt.Errorf("%w: parent %s is not in thread %d", ErrInvalidBlock, pid, thread)
		}
		if !pslot.Less(content.Slot) {
			return fmt.Errorf("%w: parent %s does not precede the block", ErrInvalidBlock, pid)
		}
	}
	return nil
}

// Finalized lists what a MarkFinal call turned final
type Finalized struct {
	Blocks     []models.BlockId
	Operations []models.OperationId
}

// MarkFinal finalizes a block and all of its ancestors. It returns the blocks
// that were not final before along with the operations they include.
func (s *Store) MarkFinal(id models.BlockId) (Finalized, error) {
	s.mux.Lock()
	defer s.mux.Unlock()

	if _, ok := s.nodes[id]; !ok {
		return Finalized{}, fmt.Errorf("%w: %s", ErrUnknownBlock, id)
	}

	var newly []models.BlockId
	seen := map[models.BlockId]bool{id: true}
	stack := []models.BlockId{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if s.final[cur] {
			continue
		}
		newly = append(newly, cur)
		for _, pid := range s.nodes[cur].block.Header.Content.Parents {
			if !seen[pid] {
				seen[pid] = true
				stack = append(stack, pid)
			}
		}
	}
	if len(newly) == 0 {
		return Finalized{}, nil
	}

	if s.repo != nil {
		records := make([]*repository.BlockRecord, 0, len(newly))
		for _, bid := range newly {
			records = append(records, &repository.BlockRecord{ID: bid, Block: *s.nodes[bid].block, Final: true})
		}
		if err := s.repo.PutBlocks(records...); err != nil {
			return Finalized{}, fmt.Errorf("persist finality: %w", err)
		}
	}
	done := Finalized{Blocks: newly}
	for _, bid := range newly {
		s.final[bid] = true
		done.Operations = append(done.Operations, s.nodes[bid].operations...)
	}
	s.version.Add(1)

	logger.Logger.Debug("Blocks finalized",
		zap.String("block_id", id.String()),
		zap.Int("count", len(newly)))
	return done, nil
}

// Bootstrapped reports whether every thread has a genesis block
func (s *Store) Bootstrapped() bool {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return len(s.genesis) == int(s.clock.ThreadCount)
}

// Acquire returns a snapshot of the graph. The cached snapshot is reused when
// the graph has not changed since it was taken, or when it is younger than the
// staleness window. Concurrent callers share a single rebuild.
func (s *Store) Acquire(ctx context.Context) (*Snapshot, error) {
	if !s.Bootstrapped() {
		return nil, apierr.Unavailable("consensus state is not bootstrapped yet")
	}

	if cur := s.current.Load(); cur != nil {
		if cur.version == s.version.Load() || s.opts.Now().Sub(cur.takenAt) < s.opts.Staleness {
			metrics.SnapshotReuses.Inc()
			return cur, nil
		}
	}

	ch := s.builds.DoChan("snapshot", func() (interface{}, error) {
		return s.rebuild(), nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Snapshot), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Store) rebuild() *Snapshot {
	start := time.Now()

	s.mux.RLock()
	version := s.version.Load()
	nodes := make([]*node, 0, len(s.nodes))
	for _, n := range s.nodes {
		nodes = append(nodes, n)
	}
	final := make(map[models.BlockId]bool, len(s.final))
	for id := range s.final {
		final[id] = true
	}
	s.mux.RUnlock()

	snap := newSnapshot(s.clock, version, s.opts.Now(), nodes, final, s.opts.MaxCliques)
	s.current.Store(snap)

	metrics.SnapshotBuilds.Inc()
	metrics.SnapshotBuildDuration.Observe(time.Since(start).Seconds())
	logger.Logger.Debug("Snapshot built",
		zap.Uint64("version", version),
		zap.Int("blocks", len(nodes)),
		zap.Int("cliques", len(snap.cliques)),
		zap.Duration("took", time.Since(start)))
	return snap
}
