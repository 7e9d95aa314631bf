package converter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/local/tealpdf/internal/tempfs"
)

// Target formats understood by Convert.
const (
	TargetPDF  = "pdf"
	TargetDOCX = "docx"
)

// PDFImportFilter makes LibreOffice open a PDF as an editable Writer document.
const PDFImportFilter = "writer_pdf_import"

// ErrUnavailable is returned when the office binary is not installed.
var ErrUnavailable = errors.New("libreoffice not available")

// LibreOffice handles document conversion using LibreOffice
type LibreOffice struct {
	bin         string
	profileRoot string
	timeout     time.Duration
	semaphore   chan struct{}
	available   bool
	version     string
}

// Options configure the LibreOffice converter.
type Options struct {
	Binary      string
	ProfileRoot string
	MaxWorkers  int
	Timeout     time.Duration
}

// Job represents a document conversion job
type Job struct {
	InputPath string
	OutDir    string
	Target    string
	InFilter  string
}

// Result represents the result of a conversion operation
type Result struct {
	Success    bool
	OutputPath string
	Error      string
	Duration   time.Duration
}

// Err converts an unsuccessful result into an error.
func (r Result) Err() error {
	if r.Success {
		return nil
	}
	return errors.New(r.Error)
}

// NewLibreOffice creates a converter and probes the binary once.
func NewLibreOffice(opts Options) *LibreOffice {
	if opts.Binary == "" {
		opts.Binary = "soffice"
	}
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 180 * time.Second
	}
	if opts.ProfileRoot == "" {
		opts.ProfileRoot = os.TempDir()
	}
	l := &LibreOffice{
		bin:         opts.Binary,
		profileRoot: opts.ProfileRoot,
		timeout:     opts.Timeout,
		semaphore:   make(chan struct{}, opts.MaxWorkers),
	}
	if err := l.checkInstallation(); err != nil {
		log.Warn().Err(err).Str("binary", l.bin).Msg("LibreOffice not available; library fallbacks will be used")
	}
	return l
}

// checkInstallation verifies LibreOffice is available
func (l *LibreOffice) checkInstallation() error {
	path, err := exec.LookPath(l.bin)
	if err != nil {
		return fmt.Errorf("LibreOffice not found in PATH: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	out, err := exec.CommandContext(ctx, path, "--version").Output()
	if err != nil {
		return fmt.Errorf("LibreOffice --version failed: %w", err)
	}
	l.bin = path
	l.available = true
	l.version = strings.TrimSpace(string(out))
	log.Info().Str("version", l.version).Msg("LibreOffice found")
	return nil
}

// Available reports whether the binary was found at startup.
func (l *LibreOffice) Available() bool { return l.available }

// Version returns the probed version string.
func (l *LibreOffice) Version() string { return l.version }

// Convert runs one headless conversion. Concurrency is bounded by the
// configured worker count; a job waiting for a slot honours ctx.
func (l *LibreOffice) Convert(ctx context.Context, job Job) Result {
	start := time.Now()
	fail := func(format string, args ...any) Result {
		return Result{Error: fmt.Sprintf(format, args...), Duration: time.Since(start)}
	}

	if !l.available {
		return fail("%v", ErrUnavailable)
	}
	if job.Target != TargetPDF && job.Target != TargetDOCX {
		return fail("unsupported target %q", job.Target)
	}
	if err := validateInput(job.InputPath); err != nil {
		return fail("input validation failed: %v", err)
	}

	select {
	case l.semaphore <- struct{}{}:
		defer func() { <-l.semaphore }()
	case <-ctx.Done():
		return fail("waiting for converter slot: %v", ctx.Err())
	}

	profileDir := filepath.Join(l.profileRoot, tempfs.ProfilePrefix()+uuid.NewString())
	if err := os.MkdirAll(profileDir, 0o755); err != nil {
		return fail("failed to create profile directory: %v", err)
	}
	defer os.RemoveAll(profileDir)

	if err := os.MkdirAll(job.OutDir, 0o755); err != nil {
		return fail("failed to create output directory: %v", err)
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	args := []string{
		"-env:UserInstallation=file://" + filepath.ToSlash(profileDir),
		"--headless",
		"--nologo",
		"--nofirststartwizard",
		"--nolockcheck",
	}
	if job.InFilter != "" {
		args = append(args, "--infilter="+job.InFilter)
	}
	args = append(args, "--convert-to", convertFilter(job.Target), "--outdir", job.OutDir, job.InputPath)

	cmd := exec.CommandContext(ctx, l.bin, args...)
	log.Debug().Str("cmd", strings.Join(cmd.Args, " ")).Msg("LibreOffice command")

	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fail("conversion timeout after %v", l.timeout)
		}
		return fail("conversion failed: %v: %s", err, trimOutput(out))
	}

	output := expectedOutputPath(job.InputPath, job.OutDir, job.Target)
	if _, err := os.Stat(output); err != nil {
		return fail("output file not created: %v", err)
	}

	log.Info().Str("output", filepath.Base(output)).Dur("duration", time.Since(start)).Msg("conversion successful")
	return Result{Success: true, OutputPath: output, Duration: time.Since(start)}
}

func convertFilter(target string) string {
	if target == TargetDOCX {
		return "docx:MS Word 2007 XML"
	}
	return "pdf"
}

// validateInput checks if the input file is readable
func validateInput(filePath string) error {
	info, err := os.Stat(filePath)
	if err != nil {
		return fmt.Errorf("file not found: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("path is a directory, not a file")
	}
	if info.Size() == 0 {
		return fmt.Errorf("file is empty")
	}
	return nil
}

// expectedOutputPath is where LibreOffice writes: the input base name with the
// target extension, inside outDir.
func expectedOutputPath(inputPath, outDir, target string) string {
	base := filepath.Base(inputPath)
	return filepath.Join(outDir, strings.TrimSuffix(base, filepath.Ext(base))+"."+target)
}

func trimOutput(out []byte) string {
	s := strings.TrimSpace(string(out))
	if len(s) > 300 {
		return s[:300]
	}
	return s
}
