// Package submission relays user operations to the pool.
package submission

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"massa-api/apierr"
	"massa-api/logger"
	"massa-api/mempool"
	"massa-api/metrics"
	"massa-api/models"
)

// Submitter accepts operations for relay
type Submitter interface {
	Submit(op models.Operation) (models.OperationId, error)
}

type Gateway struct {
	pool Submitter
}

func NewGateway(pool Submitter) *Gateway {
	return &Gateway{pool: pool}
}

// SendOperations validates each operation and forwards the valid ones. A bad
// operation is skipped without failing the batch, so the result may be shorter
// than the input. Operations already pooled count as accepted.
func (g *Gateway) SendOperations(ctx context.Context, ops []models.Operation) ([]models.OperationId, error) {
	accepted := make([]models.OperationId, 0, len(ops))
	for i := range ops {
		if err := ctx.Err(); err != nil {
			return accepted, err
		}
		id, err := g.Forward(&ops[i])
		if err != nil {
			kind := apierr.KindOf(err)
			metrics.OperationsRejected.WithLabelValues(string(kind)).Inc()
			logger.Logger.Debug("Operation rejected",
				zap.Int("index", i),
				zap.String("kind", string(kind)),
				zap.Error(err))
			continue
		}
		accepted = append(accepted, id)
	}

	logger.Logger.Info("Operations submitted",
		zap.Int("received", len(ops)),
		zap.Int("accepted", len(accepted)))
	return accepted, nil
}

// Forward validates one operation and hands it to the pool. Malformed
// operations fail with a ValidationError, a full pool with Unavailable.
func (g *Gateway) Forward(op *models.Operation) (models.OperationId, error) {
	if err := op.Validate(); err != nil {
		return models.OperationId{}, apierr.Validation(err)
	}
	id, err := g.pool.Submit(*op)
	switch {
	case err == nil, errors.Is(err, mempool.ErrDuplicate):
		return id, nil
	case errors.Is(err, mempool.ErrPoolFull):
		return id, apierr.Unavailable("operation pool is full")
	default:
		return id, apierr.Internal(err)
	}
}
