// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"github.com/gabriel-vasile/mimetype"
	"github.com/nfnt/resize"

	"github.com/DadGPT/halloween/models"
)

const (
	ThumbnailSize    = 300
	thumbnailQuality = 85

	// MaxThumbnailPixels caps the decoded size of an image we resize.
	MaxThumbnailPixels = 40_000_000
)

// allowedTypes are the raster formats accepted for upload. Scriptable
// formats such as SVG are never stored.
var allowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// ErrUndecodable means the bytes are an image format we can store but not
// resize; callers keep the original and skip the thumbnail.
var ErrUndecodable = errors.New("image format cannot be decoded")

// Info describes a sniffed upload.
type Info struct {
	ContentType string
	Extension   string
}

// Inspect detects the content type from the bytes themselves. Anything
// that is not a JPEG, PNG, GIF or WebP image is rejected regardless of its
// filename or header.
func Inspect(data []byte) (Info, error) {
	if len(data) == 0 {
		return Info{}, models.ErrNotAnImage.WithMessage("uploaded file is empty")
	}
	mt := mimetype.Detect(data)
	for m := mt; m != nil; m = m.Parent() {
		if allowedTypes[m.String()] {
			return Info{ContentType: m.String(), Extension: m.Extension()}, nil
		}
	}
	return Info{}, models.ErrNotAnImage.WithMessage("only JPEG, PNG, GIF or WebP images are allowed, got %s", mt.String())
}

// Thumbnail scales the image to fit within ThumbnailSize×ThumbnailSize,
// keeping its aspect ratio, and encodes it as JPEG.
// Images larger than MaxThumbnailPixels are reported as ErrUndecodable
// without being decoded.
func Thumbnail(data []byte) ([]byte, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxThumbnailPixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds the thumbnail pixel limit", ErrUndecodable, cfg.Width, cfg.Height)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}

	thumb := resize.Thumbnail(ThumbnailSize, ThumbnailSize, img, resize.Lanczos3)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: thumbnailQuality}); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
