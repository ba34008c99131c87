package models

import (
	"time"

	"github.com/google/uuid"
)

// Category groups a user's receipts under a case-preserving name.
// (UserID, Name) is unique. ReceiptIDs is maintained with set semantics:
// a receipt id appears at most once and is removed when the receipt is
// deleted. The set is an index, not the source of truth; readers ignore
// entries whose receipt no longer exists.
type Category struct {
	ID         uuid.UUID   `db:"id"`
	UserID     uuid.UUID   `db:"user_id"`
	Name       string      `db:"name"`
	ReceiptIDs []uuid.UUID `db:"receipt_ids"`
	CreatedAt  time.Time   `db:"created_at"`
	UpdatedAt  time.Time   `db:"updated_at"`
}
