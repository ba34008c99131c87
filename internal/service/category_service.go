package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"receipto/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// CategoryStore is the persistence surface the resolver and the receipt
// coordinator need from the category collection.
type CategoryStore interface {
	GetByName(ctx context.Context, userID uuid.UUID, name string) (*models.Category, error)
	// Insert creates the category unless (userID, name) already exists,
	// reporting whether a row was inserted.
	Insert(ctx context.Context, cat *models.Category) (bool, error)
	AddReceipt(ctx context.Context, categoryID, receiptID uuid.UUID) error
	RemoveReceipt(ctx context.Context, categoryID, receiptID uuid.UUID) error
}

// CategoryService resolves a receipt to its category: an explicit name
// wins, else the lowercase of the extracted bill type, else the receipt
// cannot be ingested. Categories are created lazily on first use.
type CategoryService struct {
	store  CategoryStore
	logger *zap.Logger
}

func NewCategoryService(store CategoryStore, logger *zap.Logger) *CategoryService {
	return &CategoryService{
		store:  store,
		logger: logger,
	}
}

// Resolve returns the category keyed by the requested name (used exactly
// as given) or, when absent, by the lowercased extracted bill type.
// Lookup-or-create is idempotent under concurrent calls for the same key:
// the (user_id, name) unique constraint settles the race and the loser
// refetches the winner's row.
func (s *CategoryService) Resolve(ctx context.Context, userID uuid.UUID, requestedName string, fields models.ExtractedFields) (*models.Category, error) {
	key := strings.TrimSpace(requestedName)
	if key == "" && fields.BillType != nil {
		key = strings.ToLower(strings.TrimSpace(*fields.BillType))
	}
	if key == "" {
		return nil, fmt.Errorf("%w: no name given and no bill type extracted", ErrMissingCategory)
	}

	cat, err := s.store.GetByName(ctx, userID, key)
	if err == nil {
		return cat, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	now := time.Now().UTC()
	cat = &models.Category{
		ID:         uuid.New(),
		UserID:     userID,
		Name:       key,
		ReceiptIDs: []uuid.UUID{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	inserted, err := s.store.Insert(ctx, cat)
	if err != nil {
		return nil, err
	}
	if !inserted {
		// Lost a concurrent create race; the winner's row exists now.
		return s.store.GetByName(ctx, userID, key)
	}

	s.logger.Info("category created",
		zap.String("category_id", cat.ID.String()),
		zap.String("name", cat.Name),
	)

	return cat, nil
}
