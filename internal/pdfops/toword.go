package pdfops

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/google/uuid"
	lpdf "github.com/ledongthuc/pdf"
	"github.com/rs/zerolog/log"

	"github.com/local/tealpdf/internal/converter"
	"github.com/local/tealpdf/internal/docx"
	"github.com/local/tealpdf/internal/metrics"
)

const (
	// minOfficeDocx guards against LibreOffice "succeeding" with an empty shell.
	minOfficeDocx = 1000
	scanDPI       = 110
	scanQuality   = 80
	convertedHead = "Converted from PDF"
	noTextNotice  = "[No text content could be extracted from this page]"
)

type wordConverter struct {
	name string
	run  func(ctx context.Context, in, out string) error
}

// ToWord converts in to a DOCX inside dir, trying LibreOffice first and the
// library renderers after it. It returns the path of the written document.
func (s *Service) ToWord(ctx context.Context, in, dir string) (string, error) {
	chain := []wordConverter{
		{name: engineOffice, run: s.officeToDocx},
		{name: "fitz-layout", run: func(_ context.Context, in, out string) error { return fitzToDocx(in, out) }},
		{name: "plain-text", run: func(_ context.Context, in, out string) error { return plainToDocx(in, out) }},
	}
	return runChain(ctx, "pdf-to-word", chain, in, filepath.Join(dir, "converted-"+uuid.NewString()+".docx"))
}

// runChain tries each converter in order until one writes out.
func runChain(ctx context.Context, direction string, chain []wordConverter, in, out string) (string, error) {
	var errs []error
	for _, c := range chain {
		err := c.run(ctx, in, out)
		metrics.Conversion(direction, c.name, err == nil)
		if err == nil {
			log.Info().Str("direction", direction).Str("engine", c.name).Msg("conversion succeeded")
			return out, nil
		}
		_ = os.Remove(out)
		errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
		if errors.Is(err, converter.ErrUnavailable) || errors.Is(err, errBreakerOpen) {
			log.Debug().Err(err).Str("engine", c.name).Msg("converter skipped")
			continue
		}
		log.Warn().Err(err).Str("direction", direction).Str("engine", c.name).Msg("converter failed; trying next")
	}
	return "", fmt.Errorf("%s: all converters failed: %w", direction, errors.Join(errs...))
}

func (s *Service) officeToDocx(ctx context.Context, in, out string) error {
	produced, err := s.runOffice(ctx, in, filepath.Dir(out), converter.TargetDOCX, converter.PDFImportFilter)
	if err != nil {
		return err
	}
	size, err := fileSize(produced)
	if err != nil {
		return err
	}
	if size <= minOfficeDocx {
		_ = os.RemoveAll(filepath.Dir(produced))
		return fmt.Errorf("office output too small (%d bytes)", size)
	}
	return moveInto(produced, out)
}

// fitzToDocx rebuilds the document page by page from MuPDF's text layer.
// Pages without text are embedded as rendered pictures.
func fitzToDocx(in, out string) error {
	doc, err := fitz.New(in)
	if err != nil {
		return fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	n := doc.NumPage()
	if n == 0 {
		return errors.New("document has no pages")
	}

	w := docx.New().SetTitle(metaTitle(doc.Metadata()))
	w.Title(convertedHead)
	for i := 0; i < n; i++ {
		if n > 1 {
			w.Heading(fmt.Sprintf("Page %d", i+1), 1)
		}
		text, err := doc.Text(i)
		if err != nil {
			log.Warn().Err(err).Int("page", i+1).Msg("Failed to extract text from page")
		}
		blocks := pageBlocks(text, i+1)
		if len(blocks) == 0 {
			jpg, pw, ph, rerr := renderPageJPEG(doc, i, scanDPI, scanQuality)
			if rerr != nil {
				log.Warn().Err(rerr).Int("page", i+1).Msg("page has no text and could not be rendered")
				w.Paragraph(noTextNotice)
			} else {
				w.Picture(jpg, pw, ph)
			}
		}
		for _, b := range blocks {
			if b.Heading {
				w.Heading(b.Text, 2)
			} else {
				w.Paragraph(b.Text)
			}
		}
		if i < n-1 {
			w.PageBreak()
		}
	}
	return w.Save(out)
}

func metaTitle(meta map[string]string) string {
	if t := strings.TrimSpace(meta["title"]); t != "" {
		return t
	}
	return convertedHead
}

// plainToDocx is the last resort: a pure-Go text reader with no rendering.
func plainToDocx(in, out string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	f, r, err := lpdf.Open(in)
	if err != nil {
		return fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	n := r.NumPage()
	w := docx.New().SetTitle(convertedHead)
	w.Title(convertedHead)

	info := r.Trailer().Key("Info")
	var lines []string
	for _, k := range []string{"Title", "Author", "Subject"} {
		if v := strings.TrimSpace(info.Key(k).Text()); v != "" {
			lines = append(lines, k+": "+v)
		}
	}
	if len(lines) > 0 {
		w.BoldParagraph("Document Information:")
		for _, l := range lines {
			w.Paragraph(l)
		}
		w.Paragraph("")
	}

	for i := 1; i <= n; i++ {
		if n > 1 {
			w.Heading(fmt.Sprintf("Page %d", i), 1)
		}
		page := r.Page(i)
		if page.V.IsNull() {
			w.Paragraph(noTextNotice)
			continue
		}
		text, perr := page.GetPlainText(nil)
		if perr != nil {
			log.Warn().Err(perr).Int("page", i).Msg("plain text extraction failed")
		}
		blocks := pageBlocks(text, i)
		if len(blocks) == 0 {
			w.Paragraph(noTextNotice)
			continue
		}
		for _, b := range blocks {
			if b.Heading {
				w.Heading(b.Text, 2)
			} else {
				w.Paragraph(b.Text)
			}
		}
	}
	return w.Save(out)
}
