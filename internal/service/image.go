package service

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	"github.com/omar-mostafa205/Planna/internal/domain"
	_ "golang.org/x/image/webp"
)

const (
	processedMediaType = "image/jpeg"

	DefaultTargetHeight = 800
	DefaultQuality      = 80
)

// ImagePreprocessor normalizes uploaded scans into a compact JPEG data URI
type ImagePreprocessor struct {
	maxBytes     int64
	targetHeight int
	quality      int
}

// NewImagePreprocessor creates a preprocessor. Zero values fall back to the defaults.
func NewImagePreprocessor(maxBytes int64, targetHeight, quality int) *ImagePreprocessor {
	if targetHeight <= 0 {
		targetHeight = DefaultTargetHeight
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	return &ImagePreprocessor{
		maxBytes:     maxBytes,
		targetHeight: targetHeight,
		quality:      quality,
	}
}

// Process decodes, shrinks and re-encodes an image.
// The size check runs before any decoding work.
func (p *ImagePreprocessor) Process(data []byte, declaredSize int64) (*domain.ProcessedImage, error) {
	if declaredSize > p.maxBytes || int64(len(data)) > p.maxBytes {
		return nil, domain.ErrPayloadTooLarge
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %v", domain.ErrImageProcessingFailed, err)
	}

	// Height-bound resize, width follows the aspect ratio. Never upscale.
	if src.Bounds().Dy() > p.targetHeight {
		src = imaging.Resize(src, 0, p.targetHeight, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, src, imaging.JPEG, imaging.JPEGQuality(p.quality)); err != nil {
		return nil, fmt.Errorf("%w: encode: %v", domain.ErrImageProcessingFailed, err)
	}

	out := buf.Bytes()
	return &domain.ProcessedImage{
		Data:      out,
		MediaType: processedMediaType,
		DataURI:   fmt.Sprintf("data:%s;base64,%s", processedMediaType, base64.StdEncoding.EncodeToString(out)),
		Width:     src.Bounds().Dx(),
		Height:    src.Bounds().Dy(),
	}, nil
}
