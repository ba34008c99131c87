package repository

import (
	"context"

	"receipto/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type CategoryRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewCategoryRepository(db *pgxpool.Pool, logger *zap.Logger) *CategoryRepository {
	return &CategoryRepository{
		db:     db,
		logger: logger,
	}
}

// Insert creates the category unless one with the same (user_id, name)
// already exists. It reports whether a row was actually inserted, so a
// caller that loses a concurrent create race can refetch the winner.
func (r *CategoryRepository) Insert(ctx context.Context, cat *models.Category) (bool, error) {
	query := squirrel.Insert("categories").
		Columns("id", "user_id", "name", "receipt_ids", "created_at", "updated_at").
		Values(cat.ID, cat.UserID, cat.Name, cat.ReceiptIDs, cat.CreatedAt, cat.UpdatedAt).
		Suffix("ON CONFLICT (user_id, name) DO NOTHING").
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return false, err
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *CategoryRepository) GetByName(ctx context.Context, userID uuid.UUID, name string) (*models.Category, error) {
	return r.getOne(ctx, squirrel.Eq{"user_id": userID, "name": name})
}

// AddReceipt appends the receipt id to the category's index unless it is
// already present. Adding an id twice is a no-op, never an error.
func (r *CategoryRepository) AddReceipt(ctx context.Context, categoryID, receiptID uuid.UUID) error {
	query := squirrel.Update("categories").
		Set("receipt_ids", squirrel.Expr("array_append(receipt_ids, ?::uuid)", receiptID)).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": categoryID}).
		Where(squirrel.Expr("NOT (receipt_ids @> ARRAY[?::uuid])", receiptID)).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

func (r *CategoryRepository) RemoveReceipt(ctx context.Context, categoryID, receiptID uuid.UUID) error {
	query := squirrel.Update("categories").
		Set("receipt_ids", squirrel.Expr("array_remove(receipt_ids, ?::uuid)", receiptID)).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": categoryID}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

func (r *CategoryRepository) DeleteByUserID(ctx context.Context, userID uuid.UUID) error {
	query := squirrel.Delete("categories").
		Where(squirrel.Eq{"user_id": userID}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

func (r *CategoryRepository) getOne(ctx context.Context, where squirrel.Eq) (*models.Category, error) {
	query := squirrel.Select("id", "user_id", "name", "receipt_ids", "created_at", "updated_at").
		From("categories").
		Where(where).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	var cat models.Category
	err = r.db.QueryRow(ctx, sql, args...).Scan(
		&cat.ID, &cat.UserID, &cat.Name, &cat.ReceiptIDs, &cat.CreatedAt, &cat.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &cat, nil
}
