package repository

import (
	"context"
	"encoding/json"

	"receipto/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type ReceiptRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewReceiptRepository(db *pgxpool.Pool, logger *zap.Logger) *ReceiptRepository {
	return &ReceiptRepository{
		db:     db,
		logger: logger,
	}
}

func (r *ReceiptRepository) Create(ctx context.Context, receipt *models.Receipt) error {
	meta, err := json.Marshal(receipt.Metadata)
	if err != nil {
		return err
	}

	query := squirrel.Insert("receipts").
		Columns("id", "user_id", "category_id", "transaction_date", "file_url", "metadata", "created_at", "updated_at").
		Values(receipt.ID, receipt.UserID, receipt.CategoryID, receipt.TransactionDate, receipt.FileURL, meta, receipt.CreatedAt, receipt.UpdatedAt).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

func (r *ReceiptRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Receipt, error) {
	query := r.selectQuery().Where(squirrel.Eq{"id": id})

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	return scanReceipt(r.db.QueryRow(ctx, sql, args...))
}

func (r *ReceiptRepository) ListByUserID(ctx context.Context, userID uuid.UUID) ([]*models.Receipt, error) {
	return r.list(ctx, squirrel.Eq{"user_id": userID})
}

func (r *ReceiptRepository) ListByCategoryID(ctx context.Context, categoryID uuid.UUID) ([]*models.Receipt, error) {
	return r.list(ctx, squirrel.Eq{"category_id": categoryID})
}

// Delete removes the receipt record and reports whether it existed.
func (r *ReceiptRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	query := squirrel.Delete("receipts").
		Where(squirrel.Eq{"id": id}).
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

func (r *ReceiptRepository) DeleteByUserID(ctx context.Context, userID uuid.UUID) error {
	query := squirrel.Delete("receipts").
		Where(squirrel.Eq{"user_id": userID}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

func (r *ReceiptRepository) CountAll(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM receipts").Scan(&count)
	return count, err
}

func (r *ReceiptRepository) list(ctx context.Context, where squirrel.Eq) ([]*models.Receipt, error) {
	query := r.selectQuery().Where(where).OrderBy("created_at DESC")

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var receipts []*models.Receipt
	for rows.Next() {
		receipt, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		receipts = append(receipts, receipt)
	}

	return receipts, rows.Err()
}

func (r *ReceiptRepository) selectQuery() squirrel.SelectBuilder {
	return squirrel.Select("id", "user_id", "category_id", "transaction_date", "file_url", "metadata", "created_at", "updated_at").
		From("receipts").
		PlaceholderFormat(squirrel.Dollar)
}

func scanReceipt(row pgx.Row) (*models.Receipt, error) {
	var receipt models.Receipt
	var meta []byte
	err := row.Scan(
		&receipt.ID, &receipt.UserID, &receipt.CategoryID, &receipt.TransactionDate,
		&receipt.FileURL, &meta, &receipt.CreatedAt, &receipt.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(meta, &receipt.Metadata); err != nil {
		return nil, err
	}
	return &receipt, nil
}
