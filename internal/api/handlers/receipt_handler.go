package handlers

import (
	"errors"
	"io"
	"time"

	"receipto/internal/dto"
	"receipto/internal/models"
	"receipto/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ReceiptHandler struct {
	receiptService *service.ReceiptService
	logger         *zap.Logger
}

func NewReceiptHandler(receiptService *service.ReceiptService, logger *zap.Logger) *ReceiptHandler {
	return &ReceiptHandler{
		receiptService: receiptService,
		logger:         logger,
	}
}

// UploadReceipt godoc
// @Summary Upload a receipt image
// @Description Upload a receipt or bill image; fields are extracted via OCR and the receipt is filed under the given or inferred category
// @Tags receipts
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Receipt image"
// @Param category query string false "Category name; inferred from the bill type when omitted"
// @Param raw query bool false "Skip image preprocessing for high-contrast scans"
// @Security Bearer
// @Success 201 {object} dto.ReceiptResponse
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Router /api/receipts [post]
func (h *ReceiptHandler) UploadReceipt(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	file, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "File is required",
		})
	}

	src, err := file.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Failed to open file",
		})
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Failed to read file",
		})
	}

	meta := service.FileMeta{
		FileName:       file.Filename,
		ContentType:    file.Header.Get("Content-Type"),
		SkipPreprocess: c.QueryBool("raw", false),
	}
	categoryName := c.Query("category")
	if categoryName == "" {
		categoryName = c.FormValue("category")
	}

	receipt, err := h.receiptService.CreateReceipt(c.Context(), userID, data, meta, categoryName)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPreprocess):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "File is not a readable image"})
		case errors.Is(err, service.ErrMissingCategory):
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "Category could not be determined; pass ?category="})
		case errors.Is(err, service.ErrRecognition):
			h.logger.Warn("recognition failed", zap.Error(err))
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "Text recognition failed"})
		}
		h.logger.Error("Failed to ingest receipt", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to upload receipt",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(receiptResponse(receipt, "", ""))
}

// ListReceipts godoc
// @Summary List the user's receipts
// @Tags receipts
// @Produce json
// @Security Bearer
// @Success 200 {array} dto.ReceiptResponse
// @Failure 401 {object} map[string]string
// @Router /api/receipts [get]
func (h *ReceiptHandler) ListReceipts(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	receipts, err := h.receiptService.ListReceipts(c.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to list receipts", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list receipts",
		})
	}

	resp := make([]dto.ReceiptResponse, len(receipts))
	for i, receipt := range receipts {
		resp[i] = receiptResponse(receipt, "", "")
	}
	return c.JSON(resp)
}

// GetReceipt godoc
// @Summary Get a single receipt with a download URL
// @Tags receipts
// @Produce json
// @Param id path string true "Receipt ID"
// @Security Bearer
// @Success 200 {object} dto.ReceiptResponse
// @Failure 404 {object} map[string]string
// @Router /api/receipts/{id} [get]
func (h *ReceiptHandler) GetReceipt(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	receiptID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid receipt ID",
		})
	}

	receipt, url, err := h.receiptService.GetReceipt(c.Context(), userID, receiptID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Receipt not found",
			})
		}
		h.logger.Error("Failed to get receipt", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get receipt",
		})
	}

	return c.JSON(receiptResponse(receipt, url, ""))
}

// DownloadReceipt godoc
// @Summary Download the stored receipt file
// @Description Streams the original uploaded file through the API for clients that cannot reach the object storage directly
// @Tags receipts
// @Produce octet-stream
// @Param id path string true "Receipt ID"
// @Security Bearer
// @Success 200 {file} binary
// @Failure 404 {object} map[string]string
// @Router /api/receipts/{id}/download [get]
func (h *ReceiptHandler) DownloadReceipt(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	receiptID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid receipt ID",
		})
	}

	rc, info, err := h.receiptService.DownloadReceipt(c.Context(), userID, receiptID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Receipt not found",
			})
		}
		h.logger.Error("Failed to download receipt", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to download receipt",
		})
	}

	if info.ContentType != "" {
		c.Set(fiber.HeaderContentType, info.ContentType)
	}
	if info.Size > 0 {
		return c.SendStream(rc, int(info.Size))
	}
	return c.SendStream(rc)
}

// GetReceiptsByCategory godoc
// @Summary List the user's receipts in a category
// @Tags receipts
// @Produce json
// @Param name path string true "Category name"
// @Security Bearer
// @Success 200 {object} dto.CategoryReceiptsResponse
// @Failure 404 {object} map[string]string
// @Router /api/receipts/category/{name} [get]
func (h *ReceiptHandler) GetReceiptsByCategory(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	name := c.Params("name")
	if name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Missing category name",
		})
	}

	category, receipts, err := h.receiptService.ListByCategory(c.Context(), userID, name)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Category not found",
			})
		}
		h.logger.Error("Failed to list receipts by category", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list receipts",
		})
	}

	resp := dto.CategoryReceiptsResponse{
		Category: category.Name,
		Count:    len(receipts),
		Receipts: make([]dto.ReceiptResponse, len(receipts)),
	}
	for i, receipt := range receipts {
		resp.Receipts[i] = receiptResponse(receipt, "", category.Name)
	}
	return c.JSON(resp)
}

// DeleteReceipt godoc
// @Summary Delete a receipt
// @Description Removes the receipt from its category's index, then deletes the record
// @Tags receipts
// @Param id path string true "Receipt ID"
// @Security Bearer
// @Success 204
// @Failure 404 {object} map[string]string
// @Router /api/receipts/{id} [delete]
func (h *ReceiptHandler) DeleteReceipt(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	receiptID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid receipt ID",
		})
	}

	if err := h.receiptService.DeleteReceipt(c.Context(), userID, receiptID); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Receipt not found",
			})
		}
		h.logger.Error("Failed to delete receipt", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete receipt",
		})
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func receiptResponse(receipt *models.Receipt, url, categoryName string) dto.ReceiptResponse {
	return dto.ReceiptResponse{
		ID:              receipt.ID.String(),
		CategoryID:      receipt.CategoryID.String(),
		Category:        categoryName,
		TransactionDate: receipt.TransactionDate.Format(time.RFC3339),
		FileURL:         url,
		ContentType:     receipt.Metadata.ContentType,
		Format:          receipt.Metadata.Format,
		Size:            receipt.Metadata.Size,
		Fields:          receipt.Metadata.Fields,
		CreatedAt:       receipt.CreatedAt.Format(time.RFC3339),
	}
}

func getUserID(c *fiber.Ctx) (uuid.UUID, error) {
	userIDStr, ok := c.Locals("userID").(string)
	if !ok {
		return uuid.Nil, fiber.ErrUnauthorized
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return uuid.Nil, err
	}

	return userID, nil
}
