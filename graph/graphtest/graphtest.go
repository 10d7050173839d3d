// Package graphtest builds small block graphs for tests.
package graphtest

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"massa-api/graph"
	"massa-api/models"
	"massa-api/timeslots"
)

// Builder adds blocks to a memory-only store
type Builder struct {
	t       testing.TB
	Store   *graph.Store
	Clock   timeslots.Clock
	Genesis []models.BlockId
}

// NewBuilder creates a store and, when withGenesis is set, one genesis block per thread
func NewBuilder(t testing.TB, clock timeslots.Clock, opts graph.Options, withGenesis bool) *Builder {
	b := &Builder{t: t, Store: graph.NewStore(clock, nil, opts), Clock: clock}
	if withGenesis {
		for thread := uint8(0); thread < clock.ThreadCount; thread++ {
			id, err := b.Store.AddBlock(NewBlock(models.Slot{Thread: thread}, nil, "genesis"))
			require.NoError(t, err)
			b.Genesis = append(b.Genesis, id)
		}
	}
	return b
}

// BlockOption customizes a block built by NewBlock
type BlockOption func(*models.Block)

func WithOperations(ops ...models.Operation) BlockOption {
	return func(b *models.Block) {
		b.Operations = append(b.Operations, ops...)
	}
}

func WithEndorsements(endorsements ...models.Endorsement) BlockOption {
	return func(b *models.Block) {
		b.Header.Content.Endorsements = append(b.Header.Content.Endorsements, endorsements...)
	}
}

// NewBlock returns an unsigned-looking block; creator distinguishes blocks of the same slot
func NewBlock(slot models.Slot, parents []models.BlockId, creator string, opts ...BlockOption) *models.Block {
	b := &models.Block{
		Header: models.BlockHeader{
			Content: models.BlockHeaderContent{
				Creator: models.EncodeBase58([]byte(creator)),
				Slot:    slot,
				Parents: parents,
			},
			Signature: models.EncodeBase58([]byte("sig-" + creator)),
		},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Add admits a block and fails the test on error
func (b *Builder) Add(period uint64, thread uint8, parents []models.BlockId, creator string, opts ...BlockOption) models.BlockId {
	b.t.Helper()
	id, err := b.Store.AddBlock(NewBlock(models.Slot{Period: period, Thread: thread}, parents, creator, opts...))
	require.NoError(b.t, err)
	return id
}

// Final marks a block final and fails the test on error
func (b *Builder) Final(id models.BlockId) {
	b.t.Helper()
	_, err := b.Store.MarkFinal(id)
	require.NoError(b.t, err)
}

// Operation returns a structurally valid roll buy operation
func Operation(seed string, fee uint64) models.Operation {
	return models.Operation{
		Content: models.OperationContent{
			SenderPublicKey: models.EncodeBase58([]byte("pk-" + seed)),
			Fee:             fee,
			ExpirePeriod:    100,
			Op:              models.OperationType{RollBuy: &models.RollBuy{RollCount: 1}},
		},
		Signature: models.EncodeBase58([]byte("sig-" + seed)),
	}
}

// Endorsement returns an endorsement of target at slot
func Endorsement(seed string, slot models.Slot, index uint32, target models.BlockId) models.Endorsement {
	return models.Endorsement{
		Content: models.EndorsementContent{
			SenderPublicKey: models.EncodeBase58([]byte("pk-" + seed)),
			Slot:            slot,
			Index:           index,
			EndorsedBlock:   target,
		},
		Signature: models.EncodeBase58([]byte(fmt.Sprintf("sig-%s-%d", seed, index))),
	}
}
