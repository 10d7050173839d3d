// Package api defines the public endpoint surface of the node, independent of
// any transport.
package api

import (
	"context"

	"massa-api/models"
	"massa-api/query"
	"massa-api/submission"
)

// Public has one method per public endpoint
type Public interface {
	GetStatus(ctx context.Context) (*models.NodeStatus, error)
	GetCliques(ctx context.Context) ([]models.Clique, error)
	GetStakers(ctx context.Context) (map[models.Address]uint64, error)
	GetOperations(ctx context.Context, ids []models.OperationId) ([]models.OperationInfo, error)
	GetEndorsements(ctx context.Context, ids []models.EndorsementId) ([]models.EndorsementInfo, error)
	GetBlock(ctx context.Context, id models.BlockId) (*models.BlockInfo, error)
	GetGraphInterval(ctx context.Context, start, end *uint64) ([]models.BlockSummary, error)
	SendOperations(ctx context.Context, ops []models.Operation) ([]models.OperationId, error)
}

// Service serves reads from the query engine and writes through the submission gateway
type Service struct {
	query  *query.Engine
	submit *submission.Gateway
}

var _ Public = (*Service)(nil)

func NewService(engine *query.Engine, gateway *submission.Gateway) *Service {
	return &Service{query: engine, submit: gateway}
}

func (s *Service) GetStatus(ctx context.Context) (*models.NodeStatus, error) {
	return s.query.Status(ctx)
}

func (s *Service) GetCliques(ctx context.Context) ([]models.Clique, error) {
	return s.query.Cliques(ctx)
}

func (s *Service) GetStakers(ctx context.Context) (map[models.Address]uint64, error) {
	return s.query.Stakers(ctx)
}

func (s *Service) GetOperations(ctx context.Context, ids []models.OperationId) ([]models.OperationInfo, error) {
	return s.query.Operations(ctx, ids)
}

func (s *Service) GetEndorsements(ctx context.Context, ids []models.EndorsementId) ([]models.EndorsementInfo, error) {
	return s.query.Endorsements(ctx, ids)
}

func (s *Service) GetBlock(ctx context.Context, id models.BlockId) (*models.BlockInfo, error) {
	return s.query.Block(ctx, id)
}

func (s *Service) GetGraphInterval(ctx context.Context, start, end *uint64) ([]models.BlockSummary, error) {
	return s.query.GraphInterval(ctx, start, end)
}

func (s *Service) SendOperations(ctx context.Context, ops []models.Operation) ([]models.OperationId, error) {
	return s.submit.SendOperations(ctx, ops)
}
