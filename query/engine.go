// Package query answers the read endpoints. Every call that needs consensus
// state works on exactly one graph snapshot.
package query

import (
	"context"
	"time"

	"massa-api/apierr"
	"massa-api/graph"
	"massa-api/models"
	"massa-api/timeslots"
)

// SnapshotSource produces consistent views of the block graph
type SnapshotSource interface {
	Acquire(ctx context.Context) (*graph.Snapshot, error)
}

// Pool exposes pending operations and endorsements
type Pool interface {
	Operation(id models.OperationId) (models.Operation, bool)
	Endorsement(id models.EndorsementId) (models.Endorsement, bool)
}

// Rolls exposes the staking distribution of the active cycle
type Rolls interface {
	CurrentRolls() map[models.Address]uint64
}

// PeerCounter is a non-blocking sample of connected peers
type PeerCounter interface {
	PeerCount() (int, bool)
}

type Engine struct {
	snapshots SnapshotSource
	pool      Pool
	rolls     Rolls
	peers     PeerCounter
	now       func() time.Time
}

// NewEngine wires the collaborators. pool, rolls and peers may be nil.
func NewEngine(snapshots SnapshotSource, pool Pool, rolls Rolls, peers PeerCounter) *Engine {
	return &Engine{snapshots: snapshots, pool: pool, rolls: rolls, peers: peers, now: time.Now}
}

// WithNow overrides the wall clock, for tests
func (e *Engine) WithNow(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Status reports the node state. The peer count is sampled after the snapshot
// is taken, so it never predates it.
func (e *Engine) Status(ctx context.Context) (*models.NodeStatus, error) {
	snap, err := e.snapshots.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	connected := 0
	if e.peers != nil {
		if n, ok := e.peers.PeerCount(); ok {
			connected = n
		}
	}

	now := e.now()
	clock := snap.Clock()
	status := &models.NodeStatus{
		CurrentTime:     timeslots.Millis(now),
		LastFinalBlocks: make([]models.FinalBlock, 0, clock.ThreadCount),
		BestParents:     snap.BestParents(),
		CliqueCount:     snap.CliqueCount(),
		ConnectedPeers:  connected,
		SnapshotVersion: snap.Version(),
		Config: models.ConsensusConfig{
			GenesisTimestamp: clock.GenesisTime,
			SlotDuration:     clock.SlotDuration,
			ThreadCount:      clock.ThreadCount,
			PeriodsPerCycle:  clock.PeriodsPerCycle,
		},
	}
	if current, ok := clock.CurrentSlot(now); ok {
		status.CurrentCycle = clock.CycleOf(current)
	}
	next := clock.NextSlotAt(now)
	status.NextSlot = &next

	for _, b := range snap.LastFinalBlocks() {
		status.LastFinalBlocks = append(status.LastFinalBlocks, models.FinalBlock{
			Thread:    b.Slot().Thread,
			ID:        b.ID,
			Slot:      b.Slot(),
			Timestamp: b.Timestamp,
		})
	}
	return status, nil
}

// Cliques lists every clique of one snapshot, the blockclique first
func (e *Engine) Cliques(ctx context.Context) ([]models.Clique, error) {
	snap, err := e.snapshots.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Cliques(), nil
}

// Stakers returns the roll count of every address holding rolls in the current cycle
func (e *Engine) Stakers(ctx context.Context) (map[models.Address]uint64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.rolls == nil {
		return map[models.Address]uint64{}, nil
	}
	return e.rolls.CurrentRolls(), nil
}

// Operations looks up operations in the snapshot and the pool. Unknown ids are
// omitted and repeated ids are answered once.
func (e *Engine) Operations(ctx context.Context, ids []models.OperationId) ([]models.OperationInfo, error) {
	snap, err := e.snapshots.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]models.OperationInfo, 0, len(ids))
	seen := make(map[models.OperationId]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		info := models.OperationInfo{ID: id, InBlocks: []models.BlockId{}}
		found := false
		if ref, ok := snap.Operation(id); ok {
			found = true
			info.Operation = *ref.Operation
			info.InBlocks = append(info.InBlocks, ref.Blocks...)
			info.IsFinal = ref.Final
		}
		if e.pool != nil {
			if op, ok := e.pool.Operation(id); ok {
				if !found {
					info.Operation = op
				}
				found = true
				info.InPool = true
			}
		}
		if found {
			out = append(out, info)
		}
	}
	return out, nil
}

// Endorsements is Operations over endorsements
func (e *Engine) Endorsements(ctx context.Context, ids []models.EndorsementId) ([]models.EndorsementInfo, error) {
	snap, err := e.snapshots.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]models.EndorsementInfo, 0, len(ids))
	seen := make(map[models.EndorsementId]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		info := models.EndorsementInfo{ID: id, InBlocks: []models.BlockId{}}
		found := false
		if ref, ok := snap.Endorsement(id); ok {
			found = true
			info.Endorsement = *ref.Endorsement
			info.InBlocks = append(info.InBlocks, ref.Blocks...)
			info.IsFinal = ref.Final
		}
		if e.pool != nil {
			if end, ok := e.pool.Endorsement(id); ok {
				if !found {
					info.Endorsement = end
				}
				found = true
				info.InPool = true
			}
		}
		if found {
			out = append(out, info)
		}
	}
	return out, nil
}

// Block returns a block with its status in the current snapshot
func (e *Engine) Block(ctx context.Context, id models.BlockId) (*models.BlockInfo, error) {
	snap, err := e.snapshots.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	entry, ok := snap.Block(id)
	if !ok {
		return nil, apierr.NotFound("block %s not found", id)
	}
	return &models.BlockInfo{
		ID:              entry.ID,
		IsFinal:         entry.Final,
		IsStale:         entry.Stale,
		IsInBlockclique: entry.InBlockclique,
		Cliques:         append([]int{}, entry.Cliques...),
		Timestamp:       entry.Timestamp,
		Block:           *entry.Block,
	}, nil
}

// GraphInterval returns the blocks whose slot timestamp t satisfies
// start <= t < end, ordered by slot then id. A nil start means genesis and a
// nil end means no upper bound.
func (e *Engine) GraphInterval(ctx context.Context, start, end *uint64) ([]models.BlockSummary, error) {
	if start != nil && end != nil && *start > *end {
		return nil, apierr.InvalidRange("start %d is after end %d", *start, *end)
	}

	snap, err := e.snapshots.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	clock := snap.Clock()

	var from models.Slot
	if start != nil {
		if from, err = clock.SlotAtOrAfter(*start); err != nil {
			return nil, err
		}
	}
	var to *models.Slot
	if end != nil {
		s, err := clock.SlotAtOrAfter(*end)
		if err != nil {
			return nil, err
		}
		to = &s
	}

	entries := snap.Range(from, to)
	out := make([]models.BlockSummary, 0, len(entries))
	for _, entry := range entries {
		content := entry.Block.Header.Content
		out = append(out, models.BlockSummary{
			ID:              entry.ID,
			IsFinal:         entry.Final,
			IsStale:         entry.Stale,
			IsInBlockclique: entry.InBlockclique,
			Slot:            content.Slot,
			Timestamp:       entry.Timestamp,
			Creator:         content.Creator,
			Parents:         append([]models.BlockId{}, content.Parents...),
		})
	}
	return out, nil
}
