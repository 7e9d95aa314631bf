package converter

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"
)

// Ghostscript rewrites PDFs through the pdfwrite device.
type Ghostscript struct {
	bin     string
	timeout time.Duration
}

// NewGhostscript resolves bin on PATH. An unresolved binary leaves the
// rewriter unavailable rather than failing startup.
func NewGhostscript(bin string, timeout time.Duration) *Ghostscript {
	if bin == "" {
		bin = "gs"
	}
	if timeout <= 0 {
		timeout = 180 * time.Second
	}
	path, err := exec.LookPath(bin)
	if err != nil {
		path = ""
	}
	return &Ghostscript{bin: path, timeout: timeout}
}

// Available reports whether the binary was found.
func (g *Ghostscript) Available() bool { return g != nil && g.bin != "" }

// Rewrite writes a recompressed copy of in to out using the /ebook preset:
// 150 dpi image downsampling, subset fonts and compressed streams.
func (g *Ghostscript) Rewrite(ctx context.Context, in, out string) error {
	if !g.Available() {
		return fmt.Errorf("ghostscript not found")
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	args := []string{
		"-sDEVICE=pdfwrite",
		"-dPDFSETTINGS=/ebook",
		"-dCompatibilityLevel=1.5",
		"-dNOPAUSE",
		"-dQUIET",
		"-dBATCH",
		"-dSAFER",
		"-dAutoRotatePages=/None",
		"-dDetectDuplicateImages=true",
		"-dCompressFonts=true",
		"-dSubsetFonts=true",
		"-sOutputFile=" + out,
		in,
	}
	output, err := exec.CommandContext(ctx, g.bin, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("ghostscript failed: %v, output: %s", err, trimOutput(output))
	}
	if _, err := os.Stat(out); err != nil {
		return fmt.Errorf("ghostscript did not create output file: %w", err)
	}
	return nil
}
