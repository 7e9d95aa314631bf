package pdfops

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-pdf/fpdf"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/local/tealpdf/internal/converter"
	"github.com/local/tealpdf/internal/docx"
)

const (
	pageMargin = 72.0
	bodySize   = 11.0
	lineHeight = 14.0
)

var errLegacyDoc = errors.New("legacy .doc files need LibreOffice")

// FromWord converts a .doc or .docx to PDF inside dir. Legacy .doc files can
// only go through LibreOffice.
func (s *Service) FromWord(ctx context.Context, in, dir string) (string, error) {
	chain := []wordConverter{{name: engineOffice, run: s.officeToPDF}}
	if strings.EqualFold(filepath.Ext(in), ".docx") {
		chain = append(chain, wordConverter{name: "fpdf-render", run: func(_ context.Context, in, out string) error {
			c, err := docx.Read(in)
			if err != nil {
				return err
			}
			return renderWord(c, out)
		}})
	} else {
		chain = append(chain, wordConverter{name: "legacy-doc", run: func(context.Context, string, string) error {
			return errLegacyDoc
		}})
	}
	return runChain(ctx, "word-to-pdf", chain, in, filepath.Join(dir, "converted-"+uuid.NewString()+".pdf"))
}

func (s *Service) officeToPDF(ctx context.Context, in, out string) error {
	produced, err := s.runOffice(ctx, in, filepath.Dir(out), converter.TargetPDF, "")
	if err != nil {
		return err
	}
	return moveInto(produced, out)
}

// renderWord lays recovered Word content out on Letter pages: paragraphs in
// Helvetica, then the embedded pictures scaled to the text width.
func renderWord(c *docx.Content, out string) error {
	pdf := fpdf.New("P", "pt", "Letter", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	if c.Title != "" {
		pdf.SetTitle(c.Title, true)
	}
	pdf.SetCreator("tealpdf", true)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "", bodySize)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	for _, p := range c.Paragraphs {
		pdf.MultiCell(0, lineHeight, tr(p), "", "L", false)
		pdf.Ln(lineHeight / 2)
	}

	pageW, pageH := pdf.GetPageSize()
	maxW := pageW - 2*pageMargin
	maxH := pageH - 2*pageMargin
	for i, img := range c.Images {
		typ := fpdfImageType(img.Data)
		if typ == "" {
			log.Debug().Str("image", img.Name).Msg("skipping image in unsupported format")
			continue
		}
		name := fmt.Sprintf("word-image-%d", i)
		opts := fpdf.ImageOptions{ImageType: typ, ReadDpi: true}
		info := pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(img.Data))
		if !pdf.Ok() || info == nil {
			log.Warn().Err(pdf.Error()).Str("image", img.Name).Msg("failed to register image")
			pdf.ClearError()
			continue
		}
		w, h := fitBox(info.Width(), info.Height(), maxW, maxH)
		pdf.ImageOptions(name, pageMargin, -1, w, h, true, opts, 0, "")
	}

	if err := pdf.OutputFileAndClose(out); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// fpdfImageType maps sniffed bytes to the names fpdf accepts.
func fpdfImageType(data []byte) string {
	switch mimetype.Detect(data).String() {
	case "image/jpeg":
		return "JPG"
	case "image/png":
		return "PNG"
	case "image/gif":
		return "GIF"
	}
	return ""
}

// fitBox scales w x h down to fit inside maxW x maxH, keeping the ratio.
func fitBox(w, h, maxW, maxH float64) (float64, float64) {
	if w <= 0 || h <= 0 {
		return maxW, maxW
	}
	scale := 1.0
	if w > maxW {
		scale = maxW / w
	}
	if h*scale > maxH {
		scale = maxH / h
	}
	return w * scale, h * scale
}
