package converter

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpectedOutputPath(t *testing.T) {
	assert.Equal(t, filepath.Join("/out", "upload-1.docx"), expectedOutputPath("/in/upload-1.pdf", "/out", TargetDOCX))
	assert.Equal(t, filepath.Join("/out", "letter.pdf"), expectedOutputPath("/in/letter.doc", "/out", TargetPDF))
}

func TestConvertFilter(t *testing.T) {
	assert.Equal(t, "pdf", convertFilter(TargetPDF))
	assert.Equal(t, "docx:MS Word 2007 XML", convertFilter(TargetDOCX))
}

func TestUnavailableConverterFailsFast(t *testing.T) {
	l := NewLibreOffice(Options{Binary: "definitely-not-an-office-suite", ProfileRoot: t.TempDir()})
	require.False(t, l.Available())

	in := filepath.Join(t.TempDir(), "a.docx")
	require.NoError(t, os.WriteFile(in, []byte("x"), 0o600))

	res := l.Convert(context.Background(), Job{InputPath: in, OutDir: t.TempDir(), Target: TargetPDF})
	assert.False(t, res.Success)
	assert.ErrorContains(t, res.Err(), "not available")
}

func TestValidateInput(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.doc")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))

	assert.ErrorContains(t, validateInput(empty), "empty")
	assert.ErrorContains(t, validateInput(dir), "directory")
	assert.Error(t, validateInput(filepath.Join(dir, "missing")))
}

func TestGhostscriptUnavailable(t *testing.T) {
	g := NewGhostscript("no-such-gs-binary", 0)
	assert.False(t, g.Available())
	assert.Error(t, g.Rewrite(context.Background(), "in.pdf", "out.pdf"))
}
