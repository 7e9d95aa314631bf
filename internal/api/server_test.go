package api

import (
    "bytes"
    "encoding/json"
    "fmt"
    "image"
    "image/color"
    "mime/multipart"
    "net/http"
    "net/http/httptest"
    "os"
    "sort"
    "strings"
    "testing"

    "github.com/disintegration/imaging"
    "github.com/go-pdf/fpdf"
    "github.com/klauspost/compress/zip"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/local/tealpdf/internal/converter"
    "github.com/local/tealpdf/internal/imageops"
    "github.com/local/tealpdf/internal/pdfops"
    "github.com/local/tealpdf/internal/tempfs"
)

type filePart struct {
    field, name string
    data        []byte
}

type fixture struct {
    srv  *Server
    h    http.Handler
    root string
}

func newFixture(t *testing.T) fixture {
    t.Helper()
    root, err := tempfs.NewRoot(t.TempDir())
    require.NoError(t, err)
    svc := pdfops.New(pdfops.Deps{
        Office:      converter.NewLibreOffice(converter.Options{Binary: "no-such-office-binary", ProfileRoot: t.TempDir()}),
        Ghostscript: converter.NewGhostscript("no-such-gs-binary", 0),
    })
    s := New(Deps{Root: root, PDF: svc, Images: imageops.NewSelector(false), MaxUploadMB: 5})
    return fixture{srv: s, h: s.Handler(), root: root.Dir()}
}

func pdfBytes(t *testing.T, pages int) []byte {
    t.Helper()
    pdf := fpdf.New("P", "pt", "Letter", "")
    pdf.SetFont("Helvetica", "", 12)
    for i := 1; i <= pages; i++ {
        pdf.AddPage()
        pdf.MultiCell(0, 14, fmt.Sprintf("Upload body text on sheet %d.", i), "", "L", false)
    }
    var buf bytes.Buffer
    require.NoError(t, pdf.Output(&buf))
    return buf.Bytes()
}

func pngBytes(t *testing.T, w, h int) []byte {
    t.Helper()
    img := image.NewNRGBA(image.Rect(0, 0, w, h))
    for y := 0; y < h; y++ {
        for x := 0; x < w; x++ {
            img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 3), G: uint8(y * 5), B: 90, A: 255})
        }
    }
    var buf bytes.Buffer
    require.NoError(t, imaging.Encode(&buf, img, imaging.PNG))
    return buf.Bytes()
}

func (fx fixture) post(t *testing.T, path string, fields map[string]string, files ...filePart) *httptest.ResponseRecorder {
    t.Helper()
    var body bytes.Buffer
    mw := multipart.NewWriter(&body)
    for k, v := range fields {
        require.NoError(t, mw.WriteField(k, v))
    }
    for _, f := range files {
        fw, err := mw.CreateFormFile(f.field, f.name)
        require.NoError(t, err)
        _, err = fw.Write(f.data)
        require.NoError(t, err)
    }
    require.NoError(t, mw.Close())

    req := httptest.NewRequest(http.MethodPost, path, &body)
    req.Header.Set("Content-Type", mw.FormDataContentType())
    rec := httptest.NewRecorder()
    fx.h.ServeHTTP(rec, req)
    return rec
}

func (fx fixture) get(path string) *httptest.ResponseRecorder {
    rec := httptest.NewRecorder()
    fx.h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
    return rec
}

// assertClean checks that no request workspace outlived its request.
func (fx fixture) assertClean(t *testing.T) {
    t.Helper()
    des, err := os.ReadDir(fx.root)
    require.NoError(t, err)
    assert.Empty(t, des)
}

func detail(t *testing.T, rec *httptest.ResponseRecorder) string {
    t.Helper()
    assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
    var body errorBody
    require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
    return body.Detail
}

func zipNames(t *testing.T, data []byte) []string {
    t.Helper()
    zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
    require.NoError(t, err)
    var names []string
    for _, f := range zr.File {
        names = append(names, f.Name)
    }
    sort.Strings(names)
    return names
}

func TestServiceRoutes(t *testing.T) {
    fx := newFixture(t)

    rec := fx.get("/")
    require.Equal(t, http.StatusOK, rec.Code)
    assert.JSONEq(t, `{"message":"TealPDF API is running!","version":"1.0.0"}`, rec.Body.String())

    rec = fx.get("/health")
    require.Equal(t, http.StatusOK, rec.Code)
    assert.JSONEq(t, `{"status":"healthy","message":"API is operational"}`, rec.Body.String())

    rec = fx.get("/health/details")
    require.Equal(t, http.StatusOK, rec.Code)
    assert.Contains(t, rec.Body.String(), `"mupdf"`)

    assert.Equal(t, http.StatusNotFound, fx.get("/nope").Code)
}

func TestMerge(t *testing.T) {
    fx := newFixture(t)
    rec := fx.post(t, "/merge", nil,
        filePart{"files", "a.pdf", pdfBytes(t, 2)},
        filePart{"files", "b.pdf", pdfBytes(t, 1)},
    )
    require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
    assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
    assert.Equal(t, "attachment; filename=merged_document.pdf", rec.Header().Get("Content-Disposition"))
    assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))
    fx.assertClean(t)
}

func TestMergeValidation(t *testing.T) {
    fx := newFixture(t)

    rec := fx.post(t, "/merge", nil, filePart{"files", "a.pdf", pdfBytes(t, 1)})
    assert.Equal(t, http.StatusBadRequest, rec.Code)
    assert.Equal(t, "At least 2 PDF files are required for merging", detail(t, rec))

    rec = fx.post(t, "/merge", nil,
        filePart{"files", "a.pdf", pdfBytes(t, 1)},
        filePart{"files", "notes.txt", []byte("hello")},
    )
    assert.Equal(t, http.StatusBadRequest, rec.Code)
    assert.Equal(t, "File notes.txt is not a PDF", detail(t, rec))
    fx.assertClean(t)
}

func TestPageCount(t *testing.T) {
    fx := newFixture(t)
    rec := fx.post(t, "/get-page-count", nil, filePart{"file", "report.pdf", pdfBytes(t, 3)})
    require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
    assert.JSONEq(t, `{"page_count":3,"filename":"report.pdf","success":true}`, rec.Body.String())
    fx.assertClean(t)
}

func TestPageCountWithJunkBeforeHeader(t *testing.T) {
    fx := newFixture(t)
    body := "\x00\x00junk\n%PDF-1.4\n" + strings.Repeat("/Type /Page\n", 3)
    rec := fx.post(t, "/get-page-count", nil, filePart{"file", "damaged.pdf", []byte(body)})
    require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
    assert.JSONEq(t, `{"page_count":3,"filename":"damaged.pdf","success":true}`, rec.Body.String())
    fx.assertClean(t)
}

func TestPDFRoutesRejectBadUploads(t *testing.T) {
    fx := newFixture(t)

    rec := fx.post(t, "/get-page-count", nil, filePart{"file", "report.docx", []byte("x")})
    assert.Equal(t, http.StatusBadRequest, rec.Code)
    assert.Equal(t, "File must be a PDF", detail(t, rec))

    rec = fx.post(t, "/compress", nil)
    assert.Equal(t, http.StatusBadRequest, rec.Code)
    assert.Equal(t, "File must be a PDF", detail(t, rec))

    rec = fx.post(t, "/get-page-count", nil, filePart{"file", "fake.pdf", pngBytes(t, 4, 4)})
    assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
    assert.Equal(t, "File content is not a valid PDF", detail(t, rec))
    fx.assertClean(t)
}

func TestSplitCustomPage(t *testing.T) {
    fx := newFixture(t)
    rec := fx.post(t, "/split", map[string]string{"split_mode": "custom-page", "split_page": "1"},
        filePart{"file", "doc.pdf", pdfBytes(t, 3)})
    require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
    assert.Equal(t, "application/zip", rec.Header().Get("Content-Type"))
    assert.Equal(t, "attachment; filename=split_pages.zip", rec.Header().Get("Content-Disposition"))
    assert.Equal(t, []string{"part_1_pages_1-1.pdf", "part_2_pages_2-3.pdf"}, zipNames(t, rec.Body.Bytes()))
    fx.assertClean(t)
}

func TestSplitAllPagesByDefault(t *testing.T) {
    fx := newFixture(t)
    rec := fx.post(t, "/split", nil, filePart{"file", "doc.pdf", pdfBytes(t, 2)})
    require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
    assert.Equal(t, []string{"page_1.pdf", "page_2.pdf"}, zipNames(t, rec.Body.Bytes()))
}

func TestSplitValidation(t *testing.T) {
    fx := newFixture(t)
    cases := []struct {
        fields map[string]string
        msg    string
    }{
        {map[string]string{"split_mode": "halves"}, "Invalid split mode: halves. Must be 'all-pages' or 'custom-page'"},
        {map[string]string{"split_mode": "custom-page"}, "split_page is required when split_mode is 'custom-page'"},
        {map[string]string{"split_mode": "custom-page", "split_page": "abc"}, "split_page must be a positive integer"},
        {map[string]string{"split_mode": "custom-page", "split_page": "0"}, "split_page must be a positive integer"},
        {map[string]string{"split_mode": "custom-page", "split_page": "2"}, "Cannot split at page 2. PDF only has 2 pages. Please choose a page between 1 and 1."},
    }
    for _, tc := range cases {
        rec := fx.post(t, "/split", tc.fields, filePart{"file", "doc.pdf", pdfBytes(t, 2)})
        assert.Equal(t, http.StatusBadRequest, rec.Code, tc.msg)
        assert.Equal(t, tc.msg, detail(t, rec))
    }
    fx.assertClean(t)
}

func TestCompressPDF(t *testing.T) {
    fx := newFixture(t)
    rec := fx.post(t, "/compress", nil, filePart{"file", "doc.pdf", pdfBytes(t, 2)})
    require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
    assert.Equal(t, "attachment; filename=compressed_document.pdf", rec.Header().Get("Content-Disposition"))
    assert.Equal(t, "pdfcpu-optimize", rec.Header().Get("X-Compression-Strategy"))
    assert.NotEmpty(t, rec.Header().Get("X-Original-Size"))
    assert.Equal(t, fmt.Sprint(rec.Body.Len()), rec.Header().Get("X-Compressed-Size"))
    fx.assertClean(t)
}

func TestPDFToWordFallsBackWithoutOffice(t *testing.T) {
    fx := newFixture(t)
    rec := fx.post(t, "/pdf-to-word", nil, filePart{"file", "doc.pdf", pdfBytes(t, 1)})
    require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
    assert.Equal(t, "attachment; filename=converted_document.docx", rec.Header().Get("Content-Disposition"))
    assert.Contains(t, zipNames(t, rec.Body.Bytes()), "word/document.xml")
    fx.assertClean(t)
}

func TestWordToPDF(t *testing.T) {
    fx := newFixture(t)

    rec := fx.post(t, "/word-to-pdf", nil, filePart{"file", "notes.txt", []byte("hello")})
    assert.Equal(t, http.StatusBadRequest, rec.Code)
    assert.Equal(t, "File must be a Word document (.doc or .docx)", detail(t, rec))

    rec = fx.post(t, "/word-to-pdf", nil, filePart{"file", "old.doc", []byte("not really a doc")})
    assert.Equal(t, http.StatusInternalServerError, rec.Code)
    assert.Equal(t, "Error converting Word to PDF", detail(t, rec))
    fx.assertClean(t)
}

func TestImageResize(t *testing.T) {
    fx := newFixture(t)
    rec := fx.post(t, "/image/resize", map[string]string{"width": "32"}, filePart{"file", "photo.png", pngBytes(t, 64, 48)})
    require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
    assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
    assert.Equal(t, "attachment; filename=resized_image.jpg", rec.Header().Get("Content-Disposition"))

    img, err := imaging.Decode(bytes.NewReader(rec.Body.Bytes()))
    require.NoError(t, err)
    assert.Equal(t, image.Pt(32, 24), img.Bounds().Size())
    fx.assertClean(t)
}

func TestImageResizeValidation(t *testing.T) {
    fx := newFixture(t)
    png := pngBytes(t, 8, 8)
    cases := []struct {
        fields map[string]string
        msg    string
    }{
        {map[string]string{"resize_type": "inches"}, "Resize type must be 'pixels' or 'percentage'"},
        {map[string]string{"width": "wide"}, "Field 'width' must be an integer"},
        {map[string]string{"resize_type": "percentage", "percentage": "half"}, "Field 'percentage' must be a number"},
        {map[string]string{"resize_type": "percentage"}, "Percentage must be specified and greater than 0"},
        {map[string]string{"width": "4", "maintain_aspect_ratio": "false"}, "Both width and height are required when aspect ratio is not maintained"},
        {map[string]string{"resize_type": "percentage", "percentage": "1000000"}, "Invalid target dimensions 80000x80000"},
        {map[string]string{"width": "2000000", "height": "2000000", "maintain_aspect_ratio": "false"}, "Invalid target dimensions 2000000x2000000"},
    }
    for _, tc := range cases {
        rec := fx.post(t, "/image/resize", tc.fields, filePart{"file", "p.png", png})
        assert.Equal(t, http.StatusBadRequest, rec.Code, tc.msg)
        assert.Equal(t, tc.msg, detail(t, rec))
    }

    rec := fx.post(t, "/image/resize", nil, filePart{"file", "p.gif", png})
    assert.Equal(t, "File must be a valid image format", detail(t, rec))
    rec = fx.post(t, "/image/resize", nil, filePart{"file", "p.png", []byte("plain text, not pixels")})
    assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
    fx.assertClean(t)
}

func TestImageCompress(t *testing.T) {
    fx := newFixture(t)
    data := pngBytes(t, 48, 32)
    rec := fx.post(t, "/image/compress", map[string]string{"quality": "70"}, filePart{"file", "photo.png", data})
    require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

    h := rec.Header()
    assert.NotEmpty(t, h.Get("X-Compression-Strategy"))
    assert.Equal(t, fmt.Sprint(len(data)), h.Get("X-Original-Size"))
    assert.Equal(t, fmt.Sprint(rec.Body.Len()), h.Get("X-Compressed-Size"))
    assert.True(t, strings.HasSuffix(h.Get("X-Compression-Ratio"), "%"))
    assert.True(t, strings.HasPrefix(h.Get("Content-Disposition"), "attachment; filename=compressed_image."))
    fx.assertClean(t)
}

func TestImageCompressQualityBounds(t *testing.T) {
    fx := newFixture(t)
    for _, q := range []string{"5", "101"} {
        rec := fx.post(t, "/image/compress", map[string]string{"quality": q}, filePart{"file", "p.png", pngBytes(t, 4, 4)})
        assert.Equal(t, http.StatusBadRequest, rec.Code)
        assert.Equal(t, "Quality must be between 10 and 100", detail(t, rec))
    }
    fx.assertClean(t)
}

func TestImageCrop(t *testing.T) {
    fx := newFixture(t)
    fields := map[string]string{"x": "4", "y": "2", "width": "10", "height": "12"}
    rec := fx.post(t, "/image/crop", fields, filePart{"file", "photo.png", pngBytes(t, 40, 30)})
    require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
    assert.Equal(t, "attachment; filename=cropped_image.jpg", rec.Header().Get("Content-Disposition"))

    img, err := imaging.Decode(bytes.NewReader(rec.Body.Bytes()))
    require.NoError(t, err)
    assert.Equal(t, image.Pt(10, 12), img.Bounds().Size())

    rec = fx.post(t, "/image/crop", map[string]string{"x": "0", "width": "1", "height": "1"}, filePart{"file", "photo.png", pngBytes(t, 4, 4)})
    assert.Equal(t, http.StatusBadRequest, rec.Code)
    assert.Equal(t, "Field 'y' is required", detail(t, rec))

    fields = map[string]string{"x": "30", "y": "0", "width": "20", "height": "5"}
    rec = fx.post(t, "/image/crop", fields, filePart{"file", "photo.png", pngBytes(t, 40, 30)})
    assert.Equal(t, "Crop area extends beyond image boundaries", detail(t, rec))
    fx.assertClean(t)
}

func TestSupportedFormats(t *testing.T) {
    rec := newFixture(t).get("/image/supported-formats")
    require.Equal(t, http.StatusOK, rec.Code)
    var body struct {
        Formats []map[string]any `json:"supported_formats"`
        Total   int              `json:"total_count"`
        HEIC    bool             `json:"heic_supported"`
    }
    require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
    assert.Len(t, body.Formats, 5)
    assert.Equal(t, 5, body.Total)
    assert.False(t, body.HEIC)
}

func TestNonMultipartRequest(t *testing.T) {
    fx := newFixture(t)
    req := httptest.NewRequest(http.MethodPost, "/merge", strings.NewReader(`{"files":[]}`))
    req.Header.Set("Content-Type", "application/json")
    rec := httptest.NewRecorder()
    fx.h.ServeHTTP(rec, req)
    assert.Equal(t, http.StatusBadRequest, rec.Code)
    assert.Equal(t, "Request must be multipart/form-data", detail(t, rec))
    fx.assertClean(t)
}

func TestUploadTooLarge(t *testing.T) {
    fx := newFixture(t)
    big := bytes.Repeat([]byte("0"), 6<<20)
    rec := fx.post(t, "/get-page-count", nil, filePart{"file", "big.pdf", big})
    assert.Equal(t, http.StatusBadRequest, rec.Code)
    assert.Equal(t, "Upload exceeds the 5 MB limit", detail(t, rec))
    fx.assertClean(t)
}

func TestPanicBecomesGeneric500(t *testing.T) {
    fx := newFixture(t)
    boom := fx.srv.upload("Error doing things", func(http.ResponseWriter, *http.Request, *tempfs.Workspace) error {
        panic("boom")
    })
    rec := httptest.NewRecorder()
    chain(boom, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/x", nil))

    assert.Equal(t, http.StatusInternalServerError, rec.Code)
    assert.Equal(t, "An internal server error occurred", detail(t, rec))
    fx.assertClean(t)
}

func TestCORSPreflight(t *testing.T) {
    h := chain(http.NotFoundHandler(), []string{"https://app.example.com"})

    req := httptest.NewRequest(http.MethodOptions, "/merge", nil)
    req.Header.Set("Origin", "https://app.example.com")
    req.Header.Set("Access-Control-Request-Method", "POST")
    rec := httptest.NewRecorder()
    h.ServeHTTP(rec, req)
    assert.Equal(t, http.StatusNoContent, rec.Code)
    assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

    req = httptest.NewRequest(http.MethodGet, "/", nil)
    req.Header.Set("Origin", "https://evil.example.com")
    rec = httptest.NewRecorder()
    h.ServeHTTP(rec, req)
    assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestIDHeader(t *testing.T) {
    rec := newFixture(t).get("/health")
    assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}
