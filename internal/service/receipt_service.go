package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"receipto/internal/models"
	"receipto/internal/storage"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// Preprocessor normalizes image bytes for recognition.
type Preprocessor interface {
	Process(data []byte) ([]byte, error)
}

// Recognizer turns an image into plain text.
type Recognizer interface {
	Recognize(ctx context.Context, imageData []byte) (string, error)
}

// FieldExtractor recovers structured fields from recognized text.
type FieldExtractor interface {
	Extract(text string) models.ExtractedFields
}

// CategoryResolver maps a receipt to its category, creating it lazily.
type CategoryResolver interface {
	Resolve(ctx context.Context, userID uuid.UUID, requestedName string, fields models.ExtractedFields) (*models.Category, error)
}

// ReceiptStore is the persistence surface for receipt records.
type ReceiptStore interface {
	Create(ctx context.Context, receipt *models.Receipt) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Receipt, error)
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]*models.Receipt, error)
	ListByCategoryID(ctx context.Context, categoryID uuid.UUID) ([]*models.Receipt, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
}

// FileMeta carries upload facts the handler already knows.
type FileMeta struct {
	FileName    string
	ContentType string
	// SkipPreprocess bypasses the preprocessing chain; the caller sets it
	// for sources known to be high-contrast digital scans.
	SkipPreprocess bool
}

const presignExpiry = 15 * time.Minute

// ReceiptService coordinates ingestion: preprocess, recognize, extract,
// resolve the category, upload the original file, persist the receipt and
// maintain the category's receipt index. Each step's failure aborts all
// later steps; no partial receipt is ever persisted.
type ReceiptService struct {
	receipts     ReceiptStore
	categories   CategoryStore
	resolver     CategoryResolver
	preprocessor Preprocessor
	recognizer   Recognizer
	extractor    FieldExtractor
	store        storage.Storage
	folder       string
	preprocess   bool
	logger       *zap.Logger
}

func NewReceiptService(
	receipts ReceiptStore,
	categories CategoryStore,
	resolver CategoryResolver,
	preprocessor Preprocessor,
	recognizer Recognizer,
	extractor FieldExtractor,
	store storage.Storage,
	folder string,
	preprocess bool,
	logger *zap.Logger,
) *ReceiptService {
	return &ReceiptService{
		receipts:     receipts,
		categories:   categories,
		resolver:     resolver,
		preprocessor: preprocessor,
		recognizer:   recognizer,
		extractor:    extractor,
		store:        store,
		folder:       folder,
		preprocess:   preprocess,
		logger:       logger,
	}
}

// CreateReceipt ingests an uploaded receipt image for the user. Once
// accepted the ingestion runs to completion or failure; there is no
// cancellation primitive for an in-flight ingestion.
func (s *ReceiptService) CreateReceipt(ctx context.Context, userID uuid.UUID, data []byte, meta FileMeta, categoryName string) (*models.Receipt, error) {
	imageData := data
	if s.preprocess && !meta.SkipPreprocess {
		processed, err := s.preprocessor.Process(data)
		if err != nil {
			return nil, err
		}
		imageData = processed
	}

	text, err := s.recognizer.Recognize(ctx, imageData)
	if err != nil {
		return nil, err
	}

	fields := s.extractor.Extract(text)

	category, err := s.resolver.Resolve(ctx, userID, categoryName, fields)
	if err != nil {
		return nil, err
	}

	// The original bytes are stored, not the binarized working copy.
	ext := strings.ToLower(filepath.Ext(meta.FileName))
	key := filepath.ToSlash(filepath.Join(s.folder, uuid.New().String()+ext))
	info, err := s.store.Put(ctx, key, bytes.NewReader(data), storage.PutObjectOptions{
		Size:        int64(len(data)),
		ContentType: meta.ContentType,
		Metadata: map[string]string{
			"original-filename": meta.FileName,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUpload, err)
	}

	now := time.Now().UTC()
	receipt := &models.Receipt{
		ID:              uuid.New(),
		UserID:          userID,
		CategoryID:      category.ID,
		TransactionDate: transactionDate(fields, now),
		FileURL:         info.Key,
		Metadata: models.ReceiptMetadata{
			ContentType: meta.ContentType,
			Size:        info.Size,
			Folder:      s.folder,
			Format:      strings.TrimPrefix(ext, "."),
			FileName:    meta.FileName,
			Fields:      fields,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.receipts.Create(ctx, receipt); err != nil {
		// The object is orphaned otherwise; remove it before failing.
		if delErr := s.store.Delete(ctx, key); delErr != nil {
			return nil, fmt.Errorf("persist receipt: %v; rollback delete failed: %v", err, delErr)
		}
		return nil, fmt.Errorf("persist receipt: %w", err)
	}

	// The index is a cache over category membership, not the source of
	// truth. A failure here is an inconsistency to log, not a reason to
	// roll back the already-persisted receipt.
	if err := s.categories.AddReceipt(ctx, category.ID, receipt.ID); err != nil {
		s.logger.Warn("receipt index update failed",
			zap.String("receipt_id", receipt.ID.String()),
			zap.String("category_id", category.ID.String()),
			zap.Error(err),
		)
	}

	s.logger.Info("receipt ingested",
		zap.String("receipt_id", receipt.ID.String()),
		zap.String("category", category.Name),
		zap.Int64("size", info.Size),
	)

	return receipt, nil
}

// DeleteReceipt removes the receipt and detaches it from its category.
// The index entry goes first: a crash between the two writes then leaves a
// missing-index entry (harmless) rather than an index pointing at a
// deleted receipt.
func (s *ReceiptService) DeleteReceipt(ctx context.Context, userID, receiptID uuid.UUID) error {
	receipt, err := s.getOwned(ctx, userID, receiptID)
	if err != nil {
		return err
	}

	if err := s.categories.RemoveReceipt(ctx, receipt.CategoryID, receipt.ID); err != nil {
		return fmt.Errorf("detach receipt from category: %w", err)
	}

	if _, err := s.receipts.Delete(ctx, receipt.ID); err != nil {
		return fmt.Errorf("delete receipt: %w", err)
	}

	s.logger.Info("receipt deleted", zap.String("receipt_id", receipt.ID.String()))
	return nil
}

// DownloadReceipt streams the stored file for callers that cannot follow
// a presigned URL. The returned reader is the caller's to close.
func (s *ReceiptService) DownloadReceipt(ctx context.Context, userID, receiptID uuid.UUID) (io.ReadCloser, storage.ObjectInfo, error) {
	receipt, err := s.getOwned(ctx, userID, receiptID)
	if err != nil {
		return nil, storage.ObjectInfo{}, err
	}

	rc, info, err := s.store.Get(ctx, receipt.FileURL)
	if err != nil {
		return nil, storage.ObjectInfo{}, fmt.Errorf("fetch stored object: %w", err)
	}
	return rc, info, nil
}

// GetReceipt returns the receipt with a fresh presigned download URL.
func (s *ReceiptService) GetReceipt(ctx context.Context, userID, receiptID uuid.UUID) (*models.Receipt, string, error) {
	receipt, err := s.getOwned(ctx, userID, receiptID)
	if err != nil {
		return nil, "", err
	}

	url, err := s.store.PresignGet(ctx, receipt.FileURL, presignExpiry)
	if err != nil {
		s.logger.Warn("presign failed", zap.String("key", receipt.FileURL), zap.Error(err))
		url = ""
	}

	return receipt, url, nil
}

func (s *ReceiptService) ListReceipts(ctx context.Context, userID uuid.UUID) ([]*models.Receipt, error) {
	return s.receipts.ListByUserID(ctx, userID)
}

// ListByCategory returns the user's receipts in the named category.
// Membership is read from the receipts' own category reference, so index
// entries whose receipt no longer exists are naturally ignored.
func (s *ReceiptService) ListByCategory(ctx context.Context, userID uuid.UUID, categoryName string) (*models.Category, []*models.Receipt, error) {
	category, err := s.categories.GetByName(ctx, userID, categoryName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, fmt.Errorf("%w: category %q", ErrNotFound, categoryName)
		}
		return nil, nil, err
	}

	receipts, err := s.receipts.ListByCategoryID(ctx, category.ID)
	if err != nil {
		return nil, nil, err
	}

	return category, receipts, nil
}

func (s *ReceiptService) getOwned(ctx context.Context, userID, receiptID uuid.UUID) (*models.Receipt, error) {
	receipt, err := s.receipts.GetByID(ctx, receiptID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: receipt %s", ErrNotFound, receiptID)
		}
		return nil, err
	}
	if receipt.UserID != userID {
		return nil, fmt.Errorf("%w: receipt %s", ErrNotFound, receiptID)
	}
	return receipt, nil
}

// transactionDate parses the extracted date when one is present, falling
// back to the ingestion timestamp so the field is never zero.
func transactionDate(fields models.ExtractedFields, now time.Time) time.Time {
	if fields.Date == nil {
		return now
	}
	layouts := []string{
		"2006-01-02",
		"2006/01/02",
		"02/01/2006",
		"01/02/2006",
		"02-01-2006",
		"02.01.2006",
	}
	for _, layout := range layouts {
		if d, err := time.Parse(layout, *fields.Date); err == nil {
			return d
		}
	}
	return now
}
