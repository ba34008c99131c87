package dto

import "receipto/internal/models"

type ReceiptResponse struct {
	ID              string                 `json:"id"`
	CategoryID      string                 `json:"category_id"`
	Category        string                 `json:"category,omitempty"`
	TransactionDate string                 `json:"transaction_date"`
	FileURL         string                 `json:"file_url,omitempty"`
	ContentType     string                 `json:"content_type"`
	Format          string                 `json:"format"`
	Size            int64                  `json:"size"`
	Fields          models.ExtractedFields `json:"fields"`
	CreatedAt       string                 `json:"created_at"`
}

type CategoryReceiptsResponse struct {
	Category string            `json:"category"`
	Count    int               `json:"count"`
	Receipts []ReceiptResponse `json:"receipts"`
}
