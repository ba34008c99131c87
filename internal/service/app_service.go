package service

import (
	"context"

	"receipto/internal/dto"
	"receipto/internal/repository"
	"receipto/internal/storage"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// AppService answers liveness and usage questions about the deployment.
type AppService struct {
	db          *pgxpool.Pool
	store       storage.Storage
	userRepo    *repository.UserRepository
	receiptRepo *repository.ReceiptRepository
	logger      *zap.Logger
}

func NewAppService(db *pgxpool.Pool, store storage.Storage, userRepo *repository.UserRepository, receiptRepo *repository.ReceiptRepository, logger *zap.Logger) *AppService {
	return &AppService{
		db:          db,
		store:       store,
		userRepo:    userRepo,
		receiptRepo: receiptRepo,
		logger:      logger,
	}
}

// Status reports healthy only when both the database and the object
// storage backend answer.
func (s *AppService) Status(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return err
	}
	return s.store.Ping(ctx)
}

func (s *AppService) Stats(ctx context.Context) (*dto.StatsResponse, error) {
	users, err := s.userRepo.CountAll(ctx)
	if err != nil {
		return nil, err
	}
	receipts, err := s.receiptRepo.CountAll(ctx)
	if err != nil {
		return nil, err
	}
	return &dto.StatsResponse{Users: users, Receipts: receipts}, nil
}
