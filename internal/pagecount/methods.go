package pagecount

import (
	"errors"
	"fmt"
	"math"
	"os"
	"regexp"
	"strconv"

	"github.com/gen2brain/go-fitz"
	lpdf "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// DefaultMethods lists the readers in priority order: structured readers
// first, raw byte scans after, and pdfcpu's permissive context reader last.
func DefaultMethods() []Method {
	return []Method{
		{Name: "pdfcpu", Count: countPdfcpu},
		{Name: "ledongthuc", Count: countLedongthuc},
		{Name: "fitz", Count: countFitz},
		{Name: "pages-count-scan", Count: ScanPagesCount},
		{Name: "page-object-scan", Count: ScanPageObjects},
		{Name: "pdfcpu-relaxed", Count: countPdfcpuRelaxed},
	}
}

func countPdfcpu(path string) (int, error) {
	return api.PageCountFile(path)
}

func countLedongthuc(path string) (int, error) {
	f, r, err := lpdf.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return r.NumPage(), nil
}

func countFitz(path string) (int, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()
	return doc.NumPage(), nil
}

func countPdfcpuRelaxed(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	ctx, err := api.ReadContext(f, conf)
	if err != nil {
		return 0, err
	}
	return ctx.PageCount, nil
}

var (
	pagesCountRe = regexp.MustCompile(`(?is)/Type\s*/Pages[^}]*?/Count\s+(\d+)`)
	pageObjectRe = regexp.MustCompile(`(?i)/Type\s*/Page`)
)

// ScanPagesCount finds the first /Pages dictionary in the raw bytes and
// returns its /Count entry. A count too large for an int comes back as
// math.MaxInt so the resolver can still use it as a last resort.
func ScanPagesCount(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	m := pagesCountRe.FindSubmatch(data)
	if m == nil {
		return 0, errors.New("no /Pages /Count entry found")
	}
	n, err := strconv.Atoi(string(m[1]))
	if errors.Is(err, strconv.ErrRange) {
		return math.MaxInt, nil
	}
	return n, err
}

// ScanPageObjects counts "/Type /Page" markers, skipping "/Type /Pages" and
// any other name that merely starts with Page.
func ScanPageObjects(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, loc := range pageObjectRe.FindAllIndex(data, -1) {
		if end := loc[1]; end < len(data) && isWordByte(data[end]) {
			continue
		}
		n++
	}
	if n == 0 {
		return 0, errors.New("no page objects found")
	}
	return n, nil
}

func isWordByte(b byte) bool {
	return b == '_' || ('0' <= b && b <= '9') || ('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z')
}
