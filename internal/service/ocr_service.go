package service

import (
	"context"
	"fmt"
	"strings"

	"receipto/pkg/config"

	"github.com/otiai10/gosseract/v2"
	"go.uber.org/zap"
)

// OCRService adapts the Tesseract engine. Whitelist, page segmentation
// mode and language are configuration passed through to the engine, not
// behavior the pipeline implements. A failed or empty recognition aborts
// the whole ingestion; garbled partial text is never accepted silently.
type OCRService struct {
	cfg    config.OCRConfig
	logger *zap.Logger
}

func NewOCRService(cfg config.OCRConfig, logger *zap.Logger) *OCRService {
	return &OCRService{
		cfg:    cfg,
		logger: logger,
	}
}

// Recognize extracts plain text from a preprocessed image. A fresh engine
// client is used per call; gosseract clients are not safe for concurrent use.
func (s *OCRService) Recognize(ctx context.Context, imageData []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrRecognition, err)
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(s.cfg.Language); err != nil {
		return "", fmt.Errorf("%w: set language: %v", ErrRecognition, err)
	}
	if s.cfg.Whitelist != "" {
		if err := client.SetWhitelist(s.cfg.Whitelist); err != nil {
			return "", fmt.Errorf("%w: set whitelist: %v", ErrRecognition, err)
		}
	}
	if err := client.SetPageSegMode(gosseract.PageSegMode(s.cfg.PageSegMode)); err != nil {
		return "", fmt.Errorf("%w: set page seg mode: %v", ErrRecognition, err)
	}
	if err := client.SetVariable("preserve_interword_spaces", "1"); err != nil {
		return "", fmt.Errorf("%w: set variable: %v", ErrRecognition, err)
	}

	if err := client.SetImageFromBytes(imageData); err != nil {
		return "", fmt.Errorf("%w: set image: %v", ErrRecognition, err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRecognition, err)
	}

	text = strings.TrimSpace(sanitizeUTF8(text))
	if text == "" {
		return "", fmt.Errorf("%w: no text recognized", ErrRecognition)
	}

	s.logger.Info("OCR recognition completed",
		zap.Int("image_bytes", len(imageData)),
		zap.Int("text_length", len(text)),
	)

	return text, nil
}
