package models

import (
	"time"

	"github.com/google/uuid"
)

// ExtractedFields is the structured output of field extraction over the
// recognized receipt text. A nil field means no rule matched; extraction
// itself never fails. Amount is kept as a cleaned decimal string; numeric
// parsing and currency normalization are left to consumers.
type ExtractedFields struct {
	Name          *string `json:"name,omitempty"`
	BillType      *string `json:"bill_type,omitempty"`
	Date          *string `json:"date,omitempty"`
	Vendor        *string `json:"vendor,omitempty"`
	Amount        *string `json:"amount,omitempty"`
	PaymentMethod *string `json:"payment_method,omitempty"`
}

// ReceiptMetadata is stored verbatim with the receipt for audit/debugging.
// The pipeline records it at ingestion and never interprets it afterwards.
type ReceiptMetadata struct {
	ContentType string          `json:"content_type"`
	Size        int64           `json:"size"`
	Folder      string          `json:"folder"`
	Format      string          `json:"format"`
	FileName    string          `json:"file_name"`
	Fields      ExtractedFields `json:"fields"`
}

type Receipt struct {
	ID              uuid.UUID       `db:"id"`
	UserID          uuid.UUID       `db:"user_id"`
	CategoryID      uuid.UUID       `db:"category_id"`
	TransactionDate time.Time       `db:"transaction_date"`
	FileURL         string          `db:"file_url"`
	Metadata        ReceiptMetadata `db:"metadata"`
	CreatedAt       time.Time       `db:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at"`
}
