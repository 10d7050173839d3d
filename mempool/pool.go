// Package mempool keeps operations and endorsements that are waiting for
// inclusion in a block.
package mempool

import (
	"errors"
	"fmt"
	"sync"

	"github.com/jinzhu/copier"
	"go.uber.org/zap"

	"massa-api/logger"
	"massa-api/metrics"
	"massa-api/models"
)

var (
	ErrDuplicate = errors.New("already in pool")
	ErrPoolFull  = errors.New("pool is full")
)

// Pool is safe for concurrent use. Entries are copied on the way in and out so
// callers never share memory with the pool.
type Pool struct {
	maxOperations int

	mux          sync.RWMutex
	operations   map[models.OperationId]*models.Operation
	endorsements map[models.EndorsementId]*models.Endorsement
}

// NewPool creates a pool holding at most maxOperations operations, zero meaning unbounded
func NewPool(maxOperations int) *Pool {
	return &Pool{
		maxOperations: maxOperations,
		operations:    make(map[models.OperationId]*models.Operation),
		endorsements:  make(map[models.EndorsementId]*models.Endorsement),
	}
}

// Submit admits an operation and returns its id. Duplicates are rejected with
// ErrDuplicate alongside the existing id.
func (p *Pool) Submit(op models.Operation) (models.OperationId, error) {
	id, err := op.ID()
	if err != nil {
		return models.OperationId{}, fmt.Errorf("operation id: %w", err)
	}
	cp, err := clone(&op)
	if err != nil {
		return id, err
	}

	p.mux.Lock()
	defer p.mux.Unlock()

	if _, ok := p.operations[id]; ok {
		return id, ErrDuplicate
	}
	if p.maxOperations > 0 && len(p.operations) >= p.maxOperations {
		return id, ErrPoolFull
	}
	p.operations[id] = cp
	metrics.MempoolOperations.Set(float64(len(p.operations)))

	logger.Logger.Debug("Operation pooled",
		zap.String("operation_id", id.String()),
		zap.Uint64("fee", op.Content.Fee))
	return id, nil
}

// Operation returns a copy of a pooled operation
func (p *Pool) Operation(id models.OperationId) (models.Operation, bool) {
	p.mux.RLock()
	op, ok := p.operations[id]
	p.mux.RUnlock()
	if !ok {
		return models.Operation{}, false
	}
	cp, err := clone(op)
	if err != nil {
		return models.Operation{}, false
	}
	return *cp, true
}

// Remove drops operations, typically once they are included in a final block
func (p *Pool) Remove(ids ...models.OperationId) int {
	p.mux.Lock()
	defer p.mux.Unlock()

	removed := 0
	for _, id := range ids {
		if _, ok := p.operations[id]; ok {
			delete(p.operations, id)
			removed++
		}
	}
	metrics.MempoolOperations.Set(float64(len(p.operations)))
	return removed
}

func (p *Pool) Len() int {
	p.mux.RLock()
	defer p.mux.RUnlock()
	return len(p.operations)
}

// AddEndorsement pools an endorsement
func (p *Pool) AddEndorsement(e models.Endorsement) (models.EndorsementId, error) {
	id, err := e.ID()
	if err != nil {
		return models.EndorsementId{}, fmt.Errorf("endorsement id: %w", err)
	}
	var cp models.Endorsement
	if err := copier.CopyWithOption(&cp, &e, copier.Option{DeepCopy: true}); err != nil {
		return id, fmt.Errorf("copy endorsement: %w", err)
	}

	p.mux.Lock()
	defer p.mux.Unlock()
	if _, ok := p.endorsements[id]; ok {
		return id, ErrDuplicate
	}
	p.endorsements[id] = &cp
	return id, nil
}

// Endorsement returns a pooled endorsement
func (p *Pool) Endorsement(id models.EndorsementId) (models.Endorsement, bool) {
	p.mux.RLock()
	defer p.mux.RUnlock()
	e, ok := p.endorsements[id]
	if !ok {
		return models.Endorsement{}, false
	}
	return *e, true
}

func clone(op *models.Operation) (*models.Operation, error) {
	var cp models.Operation
	if err := copier.CopyWithOption(&cp, op, copier.Option{DeepCopy: true}); err != nil {
		return nil, fmt.Errorf("copy operation: %w", err)
	}
	return &cp, nil
}
