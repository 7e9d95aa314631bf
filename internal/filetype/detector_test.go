package filetype

import (
	"bytes"
	"image"
	"image/png"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/tealpdf/internal/apperr"
)

func TestHasExtension(t *testing.T) {
	assert.True(t, HasExtension("Report.PDF", KindPDF))
	assert.False(t, HasExtension("report.pdf.exe", KindPDF))
	assert.False(t, HasExtension("noext", KindPDF))
	assert.True(t, HasExtension("letter.doc", KindWord))
	assert.True(t, HasExtension("photo.JPEG", KindImage))
	assert.True(t, HasExtension("scan.tiff", KindImage))
	assert.False(t, HasExtension("scan.tif", KindImage))
	assert.False(t, HasExtension("anim.gif", KindImage))
}

func TestVerify(t *testing.T) {
	dir := t.TempDir()
	d := New()

	pdfPath := filepath.Join(dir, "a.pdf")
	require.NoError(t, os.WriteFile(pdfPath, []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n1 0 obj\n<<>>\nendobj\n"), 0o600))
	assert.NoError(t, d.Verify(pdfPath, KindPDF))

	pngPath := filepath.Join(dir, "b.png")
	f, err := os.Create(pngPath)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, image.NewRGBA(image.Rect(0, 0, 2, 2))))
	require.NoError(t, f.Close())
	assert.NoError(t, d.Verify(pngPath, KindImage))

	err = d.Verify(pngPath, KindPDF)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnsupportedMediaType, apperr.Status(err))

	err = d.Verify(pdfPath, KindImage)
	assert.Equal(t, "File content is not a valid image", apperr.PublicMessage(err, ""))

	assert.NoError(t, d.Verify(pdfPath, KindWord))
}

func TestVerifyPDFHeaderAfterJunk(t *testing.T) {
	dir := t.TempDir()
	d := New()

	shifted := filepath.Join(dir, "shifted.pdf")
	require.NoError(t, os.WriteFile(shifted, []byte("\x00\x00junk\n%PDF-1.4\n/Type /Page\n"), 0o600))
	assert.NoError(t, d.Verify(shifted, KindPDF))

	late := filepath.Join(dir, "late.pdf")
	body := append(bytes.Repeat([]byte{'x'}, pdfHeaderWindow), []byte("%PDF-1.4\n")...)
	require.NoError(t, os.WriteFile(late, body, 0o600))
	err := d.Verify(late, KindPDF)
	require.Error(t, err)
	assert.Equal(t, "File content is not a valid PDF", apperr.PublicMessage(err, ""))
}

func TestMIMEFor(t *testing.T) {
	assert.Equal(t, "image/webp", MIMEFor("webp"))
	assert.Equal(t, "image/tiff", MIMEFor(".TIFF"))
	assert.Equal(t, "application/zip", MIMEFor(".zip"))
	assert.Equal(t, "application/octet-stream", MIMEFor(".nope-such-ext"))
}
