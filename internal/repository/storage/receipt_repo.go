package storage

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/google/uuid"
)

// ReceiptRepository defines the interface for receipt evidence storage
type ReceiptRepository interface {
	Upload(ctx context.Context, objectPath string, data io.Reader, contentType string, size int64) (string, error)
	Delete(ctx context.Context, objectPath string) error
	GenerateURL(objectPath string) string
}

// GenerateObjectPath creates a unique object path for a receipt image
func GenerateObjectPath(accountID uuid.UUID, loanID int64, ext string) string {
	filename := fmt.Sprintf("%s%s", uuid.New().String(), ext)
	return path.Join(accountID.String(), "receipts", fmt.Sprintf("%d", loanID), filename)
}
