// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package imaging inspects uploaded photos and prepares them for the
// generation backends. Formats are detected by content sniffing, never by
// file name, and oversized photos are downscaled before they leave the
// service.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"net/http"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // registers the WebP decoder
)

var (
	// ErrUnsupportedFormat is returned for content that is not JPEG, PNG or WebP.
	ErrUnsupportedFormat = errors.New("unsupported image format")

	// ErrUndecodable is returned when a photo of a supported format is corrupt.
	ErrUndecodable = errors.New("image could not be decoded")

	// ErrTooManyPixels guards against decompression bombs.
	ErrTooManyPixels = errors.New("image dimensions too large")
)

// MaxPixels caps width*height of accepted photos (16 megapixels).
const MaxPixels = 16_000_000

// allowedTypes is the set of sniffed MIME types accepted as pet photos.
var allowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// Info describes an inspected photo.
type Info struct {
	ContentType string
	Width       int
	Height      int
}

// Inspect sniffs the content type and reads the image header. It does not
// decode the pixel data.
func Inspect(data []byte) (Info, error) {
	ct := http.DetectContentType(data)
	if !allowedTypes[ct] {
		return Info{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ct)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return Info{}, fmt.Errorf("%w: %dx%d", ErrUndecodable, cfg.Width, cfg.Height)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return Info{}, fmt.Errorf("%w: %dx%d", ErrTooManyPixels, cfg.Width, cfg.Height)
	}

	return Info{ContentType: ct, Width: cfg.Width, Height: cfg.Height}, nil
}

// FitWithin decodes the whole photo and returns a version whose longest
// side is at most maxSide pixels. Corrupt pixel data yields ErrUndecodable
// even when the header was readable. Photos already within bounds are
// returned unchanged. JPEG input stays JPEG; PNG and WebP are re-encoded
// as PNG since there is no pure-Go WebP encoder.
func FitWithin(data []byte, info Info, maxSide int) ([]byte, string, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	if maxSide <= 0 || (info.Width <= maxSide && info.Height <= maxSide) {
		return data, info.ContentType, nil
	}

	w, h := scaledSize(info.Width, info.Height, maxSide)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if info.ContentType == "image/jpeg" {
		if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 90}); err != nil {
			return nil, "", fmt.Errorf("encode jpeg: %w", err)
		}
		return buf.Bytes(), "image/jpeg", nil
	}
	if err := png.Encode(&buf, dst); err != nil {
		return nil, "", fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), "image/png", nil
}

// scaledSize keeps the aspect ratio while bounding the longest side.
func scaledSize(w, h, maxSide int) (int, int) {
	if w >= h {
		nh := h * maxSide / w
		if nh < 1 {
			nh = 1
		}
		return maxSide, nh
	}
	nw := w * maxSide / h
	if nw < 1 {
		nw = 1
	}
	return nw, maxSide
}
