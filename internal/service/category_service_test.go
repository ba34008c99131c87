package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"receipto/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeCategoryStore keeps categories in memory with the same uniqueness
// semantics the database enforces on (user_id, name).
type fakeCategoryStore struct {
	mu         sync.Mutex
	byKey      map[string]*models.Category
	getErr     error
	insertErr  error
	addErr     error
	removeErr  error
	addCalls   []uuid.UUID
	removeUUID []uuid.UUID
}

func newFakeCategoryStore() *fakeCategoryStore {
	return &fakeCategoryStore{byKey: map[string]*models.Category{}}
}

func (f *fakeCategoryStore) key(userID uuid.UUID, name string) string {
	return userID.String() + "/" + name
}

func (f *fakeCategoryStore) GetByName(ctx context.Context, userID uuid.UUID, name string) (*models.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	cat, ok := f.byKey[f.key(userID, name)]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return cat, nil
}

func (f *fakeCategoryStore) Insert(ctx context.Context, cat *models.Category) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return false, f.insertErr
	}
	k := f.key(cat.UserID, cat.Name)
	if _, exists := f.byKey[k]; exists {
		return false, nil
	}
	f.byKey[k] = cat
	return true, nil
}

func (f *fakeCategoryStore) AddReceipt(ctx context.Context, categoryID, receiptID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return f.addErr
	}
	f.addCalls = append(f.addCalls, receiptID)
	for _, cat := range f.byKey {
		if cat.ID != categoryID {
			continue
		}
		for _, id := range cat.ReceiptIDs {
			if id == receiptID {
				return nil
			}
		}
		cat.ReceiptIDs = append(cat.ReceiptIDs, receiptID)
	}
	return nil
}

func (f *fakeCategoryStore) RemoveReceipt(ctx context.Context, categoryID, receiptID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.removeErr != nil {
		return f.removeErr
	}
	f.removeUUID = append(f.removeUUID, receiptID)
	for _, cat := range f.byKey {
		if cat.ID != categoryID {
			continue
		}
		kept := cat.ReceiptIDs[:0]
		for _, id := range cat.ReceiptIDs {
			if id != receiptID {
				kept = append(kept, id)
			}
		}
		cat.ReceiptIDs = kept
	}
	return nil
}

func strPtr(s string) *string { return &s }

func TestCategoryService_Resolve(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	t.Run("requested name wins over bill type", func(t *testing.T) {
		store := newFakeCategoryStore()
		svc := NewCategoryService(store, zap.NewNop())

		cat, err := svc.Resolve(ctx, userID, "Groceries", models.ExtractedFields{BillType: strPtr("Invoice")})
		require.NoError(t, err)
		assert.Equal(t, "Groceries", cat.Name)
	})

	t.Run("requested name is used exactly as given", func(t *testing.T) {
		store := newFakeCategoryStore()
		svc := NewCategoryService(store, zap.NewNop())

		cat, err := svc.Resolve(ctx, userID, "Utilities", models.ExtractedFields{})
		require.NoError(t, err)
		assert.Equal(t, "Utilities", cat.Name)
	})

	t.Run("bill type is lowercased when inferred", func(t *testing.T) {
		store := newFakeCategoryStore()
		svc := NewCategoryService(store, zap.NewNop())

		cat, err := svc.Resolve(ctx, userID, "", models.ExtractedFields{BillType: strPtr("INVOICE")})
		require.NoError(t, err)
		assert.Equal(t, "invoice", cat.Name)
	})

	t.Run("no name and no bill type fails", func(t *testing.T) {
		store := newFakeCategoryStore()
		svc := NewCategoryService(store, zap.NewNop())

		_, err := svc.Resolve(ctx, userID, "", models.ExtractedFields{})
		assert.ErrorIs(t, err, ErrMissingCategory)
	})

	t.Run("existing category is reused", func(t *testing.T) {
		store := newFakeCategoryStore()
		svc := NewCategoryService(store, zap.NewNop())

		first, err := svc.Resolve(ctx, userID, "Travel", models.ExtractedFields{})
		require.NoError(t, err)
		second, err := svc.Resolve(ctx, userID, "Travel", models.ExtractedFields{})
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
	})

	t.Run("lost insert race refetches the winner", func(t *testing.T) {
		store := newFakeCategoryStore()
		winner := &models.Category{ID: uuid.New(), UserID: userID, Name: "Dining"}

		// The winner's row appears between the miss and the insert.
		svc := NewCategoryService(&racingStore{fakeCategoryStore: store, winner: winner}, zap.NewNop())

		cat, err := svc.Resolve(ctx, userID, "Dining", models.ExtractedFields{})
		require.NoError(t, err)
		assert.Equal(t, winner.ID, cat.ID)
	})

	t.Run("store failure propagates", func(t *testing.T) {
		store := newFakeCategoryStore()
		store.getErr = errors.New("connection reset")
		svc := NewCategoryService(store, zap.NewNop())

		_, err := svc.Resolve(ctx, userID, "Travel", models.ExtractedFields{})
		assert.EqualError(t, err, "connection reset")
	})

	t.Run("concurrent resolve converges on one category", func(t *testing.T) {
		store := newFakeCategoryStore()
		svc := NewCategoryService(store, zap.NewNop())

		const n = 16
		results := make([]uuid.UUID, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				cat, err := svc.Resolve(ctx, userID, "Shopping", models.ExtractedFields{})
				if assert.NoError(t, err) {
					results[i] = cat.ID
				}
			}(i)
		}
		wg.Wait()

		for _, id := range results[1:] {
			assert.Equal(t, results[0], id)
		}
		assert.Len(t, store.byKey, 1)
	})
}

// racingStore simulates losing a concurrent create: the first lookup
// misses, the insert conflicts, and the refetch sees the winner's row.
type racingStore struct {
	*fakeCategoryStore
	winner  *models.Category
	fetches int
}

func (r *racingStore) GetByName(ctx context.Context, userID uuid.UUID, name string) (*models.Category, error) {
	r.fetches++
	if r.fetches == 1 {
		return nil, pgx.ErrNoRows
	}
	return r.winner, nil
}

func (r *racingStore) Insert(ctx context.Context, cat *models.Category) (bool, error) {
	return false, nil
}
