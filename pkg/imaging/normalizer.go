// Package imaging turns arbitrary image bytes into bounded, catalog-safe
// cover thumbnails.
package imaging

import (
	"bytes"
	"fmt"

	img "github.com/disintegration/imaging"
)

// Defaults chosen for grid rendering: covers never need to be larger than
// this, and quality 85 keeps blobs small without visible artifacts.
const (
	DefaultMaxWidth  = 400
	DefaultMaxHeight = 600
	DefaultQuality   = 85
)

// Normalizer re-encodes covers as JPEG thumbnails that fit a bounding box.
type Normalizer struct {
	MaxWidth  int
	MaxHeight int
	Quality   int
}

// NewNormalizer builds a Normalizer, substituting defaults for non-positive
// parameters.
func NewNormalizer(maxWidth, maxHeight, quality int) Normalizer {
	if maxWidth <= 0 {
		maxWidth = DefaultMaxWidth
	}
	if maxHeight <= 0 {
		maxHeight = DefaultMaxHeight
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	return Normalizer{MaxWidth: maxWidth, MaxHeight: maxHeight, Quality: quality}
}

// Normalize decodes the input, scales it down to fit the bounding box without
// ever upscaling, and re-encodes it as JPEG at the configured quality. On any
// failure it returns an error and no bytes, never a partial blob.
func (n Normalizer) Normalize(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image data")
	}
	src, err := img.Decode(bytes.NewReader(data), img.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	// Fit preserves aspect ratio and never upscales; it also converts paletted
	// and alpha color modes to NRGBA before the JPEG encoder sees them.
	fitted := img.Fit(src, n.MaxWidth, n.MaxHeight, img.Lanczos)

	var buf bytes.Buffer
	if err := img.Encode(&buf, fitted, img.JPEG, img.JPEGQuality(n.Quality)); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
