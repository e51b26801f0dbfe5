package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kredia/kredia-backend/internal/domain"
	"github.com/kredia/kredia-backend/internal/repository/storage"
)

const (
	maxReceiptSize  = 5 << 20 // 5 MB
	maxReceiptWidth = 1600
)

var (
	ErrReceiptTooLarge    = errors.New("receipt file exceeds the size limit")
	ErrReceiptInvalidType = errors.New("receipt must be a JPEG or PNG image")
)

// ReceiptService validates, normalizes and stores transfer evidence images
// attached to manual repayment proofs.
type ReceiptService struct {
	receipts storage.ReceiptRepository
	logger   zerolog.Logger
}

// NewReceiptService creates a new ReceiptService
func NewReceiptService(receipts storage.ReceiptRepository, logger zerolog.Logger) *ReceiptService {
	return &ReceiptService{
		receipts: receipts,
		logger:   logger.With().Str("service", "receipt").Logger(),
	}
}

// Upload stores a receipt image and returns its public URL. Oversized
// images are downscaled and re-encoded as JPEG before storage.
func (s *ReceiptService) Upload(ctx context.Context, accountID uuid.UUID, loanID int64, file *multipart.FileHeader) (string, error) {
	if file.Size > maxReceiptSize {
		return "", ErrReceiptTooLarge
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if ext != ".jpg" && ext != ".jpeg" && ext != ".png" {
		return "", ErrReceiptInvalidType
	}

	src, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer src.Close()

	img, err := imaging.Decode(src, imaging.AutoOrientation(true))
	if err != nil {
		return "", ErrReceiptInvalidType
	}

	if img.Bounds().Dx() > maxReceiptWidth {
		img = imaging.Resize(img, maxReceiptWidth, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return "", fmt.Errorf("failed to encode receipt: %w", err)
	}

	objectPath := storage.GenerateObjectPath(accountID, loanID, ".jpg")
	url, err := s.receipts.Upload(ctx, objectPath, &buf, "image/jpeg", int64(buf.Len()))
	if err != nil {
		s.logger.Error().Err(err).Str("object_path", objectPath).Msg("Receipt upload failed")
		return "", domain.ErrInternalError
	}

	s.logger.Info().
		Str("account_id", accountID.String()).
		Int64("loan_id", loanID).
		Str("object_path", objectPath).
		Msg("Receipt uploaded")

	return url, nil
}

// Delete removes a stored receipt by its object path.
func (s *ReceiptService) Delete(ctx context.Context, objectPath string) error {
	return s.receipts.Delete(ctx, objectPath)
}
