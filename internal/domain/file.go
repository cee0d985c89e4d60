package domain

import (
	"context"
)

// ScanArchive keeps a copy of processed scan images
type ScanArchive interface {
	// Archive stores the image under the user's prefix and returns its URL
	Archive(ctx context.Context, userID string, image *ProcessedImage) (string, error)
}
