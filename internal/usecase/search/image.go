package search

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/halcyon-cloud/pixdex/internal/domain"
)

// maxEdge bounds the longest side shipped to the embedding server. CLIP
// resizes to its own input resolution anyway; capping here keeps request
// payloads small without changing results.
const maxEdge = 768

// DecodeRGB decodes upload bytes and normalizes them to an opaque 3-channel
// RGB image: alpha is flattened onto a white background, palette images are
// expanded. Undecodable or unsupported input fails with ErrValidation. The
// input slice is never modified or retained.
func DecodeRGB(data []byte) (*image.NRGBA, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %v: %w", err, domain.ErrValidation)
	}

	b := src.Bounds()
	if b.Dx() > maxEdge || b.Dy() > maxEdge {
		src = imaging.Fit(src, maxEdge, maxEdge, imaging.Lanczos)
		b = src.Bounds()
	}

	bg := imaging.New(b.Dx(), b.Dy(), color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	return imaging.Overlay(bg, src, image.Point{}, 1.0), nil
}
