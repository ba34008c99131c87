package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"receipto/internal/models"
	"receipto/internal/storage"
	storeMocks "receipto/internal/storage/mocks"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakePreprocessor struct {
	out   []byte
	err   error
	calls int
}

func (f *fakePreprocessor) Process(data []byte) ([]byte, error) {
	f.calls++
	return f.out, f.err
}

type fakeRecognizer struct {
	text  string
	err   error
	input []byte
}

func (f *fakeRecognizer) Recognize(ctx context.Context, imageData []byte) (string, error) {
	f.input = imageData
	return f.text, f.err
}

type fakeExtractor struct {
	fields models.ExtractedFields
}

func (f *fakeExtractor) Extract(text string) models.ExtractedFields {
	return f.fields
}

type fakeResolver struct {
	category *models.Category
	err      error
	name     string
}

func (f *fakeResolver) Resolve(ctx context.Context, userID uuid.UUID, requestedName string, fields models.ExtractedFields) (*models.Category, error) {
	f.name = requestedName
	return f.category, f.err
}

type fakeReceiptStore struct {
	created   []*models.Receipt
	createErr error
	byID      map[uuid.UUID]*models.Receipt
	deleted   []uuid.UUID
	deleteErr error
}

func newFakeReceiptStore() *fakeReceiptStore {
	return &fakeReceiptStore{byID: map[uuid.UUID]*models.Receipt{}}
}

func (f *fakeReceiptStore) Create(ctx context.Context, receipt *models.Receipt) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, receipt)
	f.byID[receipt.ID] = receipt
	return nil
}

func (f *fakeReceiptStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Receipt, error) {
	r, ok := f.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return r, nil
}

func (f *fakeReceiptStore) ListByUserID(ctx context.Context, userID uuid.UUID) ([]*models.Receipt, error) {
	var out []*models.Receipt
	for _, r := range f.byID {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeReceiptStore) ListByCategoryID(ctx context.Context, categoryID uuid.UUID) ([]*models.Receipt, error) {
	var out []*models.Receipt
	for _, r := range f.byID {
		if r.CategoryID == categoryID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeReceiptStore) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	if f.deleteErr != nil {
		return false, f.deleteErr
	}
	_, ok := f.byID[id]
	delete(f.byID, id)
	f.deleted = append(f.deleted, id)
	return ok, nil
}

type pipelineFixture struct {
	pre      *fakePreprocessor
	rec      *fakeRecognizer
	ext      *fakeExtractor
	res      *fakeResolver
	receipts *fakeReceiptStore
	cats     *fakeCategoryStore
	store    *storeMocks.MockStorage
	svc      *ReceiptService
	category *models.Category
}

func newPipelineFixture(userID uuid.UUID) *pipelineFixture {
	category := &models.Category{ID: uuid.New(), UserID: userID, Name: "groceries"}
	f := &pipelineFixture{
		pre:      &fakePreprocessor{out: []byte("processed")},
		rec:      &fakeRecognizer{text: "Receipt Total: 42.50"},
		ext:      &fakeExtractor{},
		res:      &fakeResolver{category: category},
		receipts: newFakeReceiptStore(),
		cats:     newFakeCategoryStore(),
		store:    new(storeMocks.MockStorage),
		category: category,
	}
	f.cats.byKey[f.cats.key(userID, category.Name)] = category
	f.svc = NewReceiptService(
		f.receipts, f.cats, f.res, f.pre, f.rec, f.ext,
		f.store, "Receipts", true, zap.NewNop(),
	)
	return f
}

func TestReceiptService_CreateReceipt(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	data := []byte("original image bytes")
	meta := FileMeta{FileName: "shop.jpg", ContentType: "image/jpeg"}

	t.Run("happy path", func(t *testing.T) {
		f := newPipelineFixture(userID)
		f.store.On("Put", ctx, mock.MatchedBy(func(key string) bool {
			return strings.HasPrefix(key, "Receipts/") && strings.HasSuffix(key, ".jpg")
		}), mock.Anything, mock.MatchedBy(func(opt storage.PutObjectOptions) bool {
			return opt.Size == int64(len(data)) && opt.ContentType == "image/jpeg"
		})).Return(func(ctx context.Context, key string, r io.Reader, opt storage.PutObjectOptions) storage.ObjectInfo {
			return storage.ObjectInfo{Key: key, Size: opt.Size}
		}, nil)

		receipt, err := f.svc.CreateReceipt(ctx, userID, data, meta, "groceries")
		require.NoError(t, err)

		assert.Equal(t, userID, receipt.UserID)
		assert.Equal(t, f.category.ID, receipt.CategoryID)
		assert.Equal(t, "jpg", receipt.Metadata.Format)
		assert.Equal(t, "shop.jpg", receipt.Metadata.FileName)
		assert.Equal(t, receipt.FileURL, f.receipts.created[0].FileURL)

		// The recognizer sees the preprocessed bytes, not the originals.
		assert.Equal(t, []byte("processed"), f.rec.input)
		// The category index now carries the new receipt.
		assert.Equal(t, []uuid.UUID{receipt.ID}, f.cats.addCalls)
		f.store.AssertExpectations(t)
	})

	t.Run("preprocess bypass sends originals to the recognizer", func(t *testing.T) {
		f := newPipelineFixture(userID)
		f.store.On("Put", ctx, mock.Anything, mock.Anything, mock.Anything).
			Return(storage.ObjectInfo{Key: "Receipts/x.jpg", Size: 20}, nil)

		bypassed := meta
		bypassed.SkipPreprocess = true
		_, err := f.svc.CreateReceipt(ctx, userID, data, bypassed, "groceries")
		require.NoError(t, err)

		assert.Zero(t, f.pre.calls)
		assert.Equal(t, data, f.rec.input)
	})

	t.Run("preprocess failure aborts before recognition", func(t *testing.T) {
		f := newPipelineFixture(userID)
		f.pre.err = ErrPreprocess

		_, err := f.svc.CreateReceipt(ctx, userID, data, meta, "groceries")
		assert.ErrorIs(t, err, ErrPreprocess)
		assert.Nil(t, f.rec.input)
		assert.Empty(t, f.receipts.created)
		f.store.AssertNotCalled(t, "Put")
	})

	t.Run("recognition failure aborts before upload", func(t *testing.T) {
		f := newPipelineFixture(userID)
		f.rec.err = ErrRecognition

		_, err := f.svc.CreateReceipt(ctx, userID, data, meta, "groceries")
		assert.ErrorIs(t, err, ErrRecognition)
		assert.Empty(t, f.receipts.created)
		f.store.AssertNotCalled(t, "Put")
	})

	t.Run("unresolvable category aborts before upload", func(t *testing.T) {
		f := newPipelineFixture(userID)
		f.res.category = nil
		f.res.err = ErrMissingCategory

		_, err := f.svc.CreateReceipt(ctx, userID, data, meta, "")
		assert.ErrorIs(t, err, ErrMissingCategory)
		f.store.AssertNotCalled(t, "Put")
	})

	t.Run("storage failure persists nothing", func(t *testing.T) {
		f := newPipelineFixture(userID)
		f.store.On("Put", ctx, mock.Anything, mock.Anything, mock.Anything).
			Return(storage.ObjectInfo{}, errors.New("bucket gone"))

		_, err := f.svc.CreateReceipt(ctx, userID, data, meta, "groceries")
		assert.ErrorIs(t, err, ErrStorageUpload)
		assert.Empty(t, f.receipts.created)
	})

	t.Run("persist failure removes the uploaded object", func(t *testing.T) {
		f := newPipelineFixture(userID)
		f.receipts.createErr = errors.New("db down")
		f.store.On("Put", ctx, mock.Anything, mock.Anything, mock.Anything).
			Return(storage.ObjectInfo{Key: "Receipts/x.jpg", Size: 20}, nil)
		f.store.On("Delete", ctx, mock.Anything).Return(nil)

		_, err := f.svc.CreateReceipt(ctx, userID, data, meta, "groceries")
		require.Error(t, err)
		assert.Empty(t, f.cats.addCalls)
		f.store.AssertCalled(t, "Delete", ctx, mock.Anything)
	})

	t.Run("index update failure does not fail ingestion", func(t *testing.T) {
		f := newPipelineFixture(userID)
		f.cats.addErr = errors.New("index write lost")
		f.store.On("Put", ctx, mock.Anything, mock.Anything, mock.Anything).
			Return(storage.ObjectInfo{Key: "Receipts/x.jpg", Size: 20}, nil)

		receipt, err := f.svc.CreateReceipt(ctx, userID, data, meta, "groceries")
		require.NoError(t, err)
		assert.Len(t, f.receipts.created, 1)
		assert.Equal(t, receipt.ID, f.receipts.created[0].ID)
	})

	t.Run("missing date falls back to ingestion time", func(t *testing.T) {
		f := newPipelineFixture(userID)
		f.store.On("Put", ctx, mock.Anything, mock.Anything, mock.Anything).
			Return(storage.ObjectInfo{Key: "Receipts/x.jpg", Size: 20}, nil)

		before := time.Now().UTC()
		receipt, err := f.svc.CreateReceipt(ctx, userID, data, meta, "groceries")
		after := time.Now().UTC()
		require.NoError(t, err)

		assert.False(t, receipt.TransactionDate.Before(before))
		assert.False(t, receipt.TransactionDate.After(after))
	})

	t.Run("extracted date becomes the transaction date", func(t *testing.T) {
		f := newPipelineFixture(userID)
		f.ext.fields = models.ExtractedFields{Date: strPtr("2024-03-15")}
		f.store.On("Put", ctx, mock.Anything, mock.Anything, mock.Anything).
			Return(storage.ObjectInfo{Key: "Receipts/x.jpg", Size: 20}, nil)

		receipt, err := f.svc.CreateReceipt(ctx, userID, data, meta, "groceries")
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), receipt.TransactionDate)
	})
}

func TestReceiptService_DeleteReceipt(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	seed := func(f *pipelineFixture) *models.Receipt {
		r := &models.Receipt{ID: uuid.New(), UserID: userID, CategoryID: f.category.ID}
		f.receipts.byID[r.ID] = r
		f.category.ReceiptIDs = []uuid.UUID{r.ID}
		return r
	}

	t.Run("detaches from category before deleting the record", func(t *testing.T) {
		f := newPipelineFixture(userID)
		r := seed(f)

		require.NoError(t, f.svc.DeleteReceipt(ctx, userID, r.ID))
		assert.Equal(t, []uuid.UUID{r.ID}, f.cats.removeUUID)
		assert.Equal(t, []uuid.UUID{r.ID}, f.receipts.deleted)
		assert.Empty(t, f.category.ReceiptIDs)
	})

	t.Run("missing receipt", func(t *testing.T) {
		f := newPipelineFixture(userID)

		err := f.svc.DeleteReceipt(ctx, userID, uuid.New())
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("another user's receipt is invisible", func(t *testing.T) {
		f := newPipelineFixture(userID)
		r := seed(f)

		err := f.svc.DeleteReceipt(ctx, uuid.New(), r.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Empty(t, f.receipts.deleted)
	})

	t.Run("index detach failure keeps the record", func(t *testing.T) {
		f := newPipelineFixture(userID)
		r := seed(f)
		f.cats.removeErr = errors.New("index gone")

		err := f.svc.DeleteReceipt(ctx, userID, r.ID)
		require.Error(t, err)
		assert.Empty(t, f.receipts.deleted)
		assert.Contains(t, f.receipts.byID, r.ID)
	})
}

func TestReceiptService_GetReceipt(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	t.Run("returns a presigned url", func(t *testing.T) {
		f := newPipelineFixture(userID)
		r := &models.Receipt{ID: uuid.New(), UserID: userID, FileURL: "Receipts/a.jpg"}
		f.receipts.byID[r.ID] = r
		f.store.On("PresignGet", ctx, "Receipts/a.jpg", presignExpiry).
			Return("https://minio.local/signed", nil)

		got, url, err := f.svc.GetReceipt(ctx, userID, r.ID)
		require.NoError(t, err)
		assert.Equal(t, r.ID, got.ID)
		assert.Equal(t, "https://minio.local/signed", url)
	})

	t.Run("presign failure still returns the receipt", func(t *testing.T) {
		f := newPipelineFixture(userID)
		r := &models.Receipt{ID: uuid.New(), UserID: userID, FileURL: "Receipts/a.jpg"}
		f.receipts.byID[r.ID] = r
		f.store.On("PresignGet", ctx, "Receipts/a.jpg", presignExpiry).
			Return("", errors.New("presign down"))

		got, url, err := f.svc.GetReceipt(ctx, userID, r.ID)
		require.NoError(t, err)
		assert.Equal(t, r.ID, got.ID)
		assert.Empty(t, url)
	})

	t.Run("missing receipt", func(t *testing.T) {
		f := newPipelineFixture(userID)

		_, _, err := f.svc.GetReceipt(ctx, userID, uuid.New())
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestReceiptService_DownloadReceipt(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	t.Run("streams the stored object", func(t *testing.T) {
		f := newPipelineFixture(userID)
		r := &models.Receipt{ID: uuid.New(), UserID: userID, FileURL: "Receipts/a.jpg"}
		f.receipts.byID[r.ID] = r
		f.store.On("Get", ctx, "Receipts/a.jpg").Return(
			io.NopCloser(strings.NewReader("file bytes")),
			storage.ObjectInfo{Key: "Receipts/a.jpg", Size: 10, ContentType: "image/jpeg"},
			nil,
		)

		rc, info, err := f.svc.DownloadReceipt(ctx, userID, r.ID)
		require.NoError(t, err)
		defer rc.Close()

		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, "file bytes", string(data))
		assert.Equal(t, int64(10), info.Size)
		assert.Equal(t, "image/jpeg", info.ContentType)
	})

	t.Run("another user's receipt is invisible", func(t *testing.T) {
		f := newPipelineFixture(userID)
		r := &models.Receipt{ID: uuid.New(), UserID: userID, FileURL: "Receipts/a.jpg"}
		f.receipts.byID[r.ID] = r

		_, _, err := f.svc.DownloadReceipt(ctx, uuid.New(), r.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		f.store.AssertNotCalled(t, "Get")
	})

	t.Run("storage failure propagates", func(t *testing.T) {
		f := newPipelineFixture(userID)
		r := &models.Receipt{ID: uuid.New(), UserID: userID, FileURL: "Receipts/a.jpg"}
		f.receipts.byID[r.ID] = r
		f.store.On("Get", ctx, "Receipts/a.jpg").Return(
			nil, storage.ObjectInfo{}, errors.New("object missing"),
		)

		_, _, err := f.svc.DownloadReceipt(ctx, userID, r.ID)
		assert.Error(t, err)
	})
}

func TestReceiptService_ListByCategory(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	t.Run("lists receipts by category reference", func(t *testing.T) {
		f := newPipelineFixture(userID)
		r := &models.Receipt{ID: uuid.New(), UserID: userID, CategoryID: f.category.ID}
		f.receipts.byID[r.ID] = r

		cat, receipts, err := f.svc.ListByCategory(ctx, userID, "groceries")
		require.NoError(t, err)
		assert.Equal(t, f.category.ID, cat.ID)
		require.Len(t, receipts, 1)
		assert.Equal(t, r.ID, receipts[0].ID)
	})

	t.Run("unknown category", func(t *testing.T) {
		f := newPipelineFixture(userID)

		_, _, err := f.svc.ListByCategory(ctx, userID, "no-such")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
