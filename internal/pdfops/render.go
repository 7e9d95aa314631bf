package pdfops

import (
	"bytes"
	"fmt"

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/jpegli"
	"github.com/rs/zerolog/log"
)

// renderPageJPEG rasterises one 0-based page of an open document.
// Returns JPEG bytes, width, height.
func renderPageJPEG(doc *fitz.Document, index int, dpi float64, quality int) ([]byte, int, int, error) {
	img, err := doc.ImageDPI(index, dpi)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to render page %d: %w", index+1, err)
	}
	bounds := img.Bounds()

	var buf bytes.Buffer
	if err := jpegli.Encode(&buf, img, &jpegli.EncodingOptions{Quality: quality, OptimizeCoding: true}); err != nil {
		return nil, 0, 0, fmt.Errorf("failed to encode page %d: %w", index+1, err)
	}

	log.Debug().
		Int("page", index+1).
		Int("width", bounds.Dx()).
		Int("height", bounds.Dy()).
		Int("jpeg_size", buf.Len()).
		Float64("dpi", dpi).
		Msg("rendered page to JPEG")
	return buf.Bytes(), bounds.Dx(), bounds.Dy(), nil
}
