// Package pdfops implements the PDF operations behind the HTTP routes:
// merge, split, compress and conversion to and from Word.
package pdfops

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rs/zerolog/log"

	"github.com/local/tealpdf/internal/converter"
	"github.com/local/tealpdf/internal/limiter"
	"github.com/local/tealpdf/internal/metrics"
	"github.com/local/tealpdf/internal/pagecount"
)

const engineOffice = "libreoffice"

var errBreakerOpen = errors.New("converter temporarily disabled after repeated failures")

// Deps are the collaborators a Service needs. Nil fields get working defaults.
type Deps struct {
	Pages       *pagecount.Resolver
	Office      *converter.LibreOffice
	Ghostscript *converter.Ghostscript
	Breaker     limiter.Breaker
}

// Service holds no per-request state and is safe to share.
type Service struct {
	pages   *pagecount.Resolver
	office  *converter.LibreOffice
	gs      *converter.Ghostscript
	breaker limiter.Breaker
}

// New builds a Service. pdfcpu's on-disk config directory is disabled so the
// service never writes outside its temp root.
func New(d Deps) *Service {
	api.DisableConfigDir()
	if d.Pages == nil {
		d.Pages = pagecount.New()
	}
	if d.Breaker == nil {
		d.Breaker = limiter.NewMemory(limiter.Options{})
	}
	return &Service{pages: d.Pages, office: d.Office, gs: d.Ghostscript, breaker: d.Breaker}
}

// PageCount never fails; see pagecount.Resolver.
func (s *Service) PageCount(path string) int {
	return s.pages.Resolve(path)
}

func pdfConf() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// runOffice converts in with LibreOffice into a private directory under dir
// and returns the produced file. The breaker is consulted before and updated
// after the run.
func (s *Service) runOffice(ctx context.Context, in, dir, target, filter string) (string, error) {
	if s.office == nil || !s.office.Available() {
		return "", converter.ErrUnavailable
	}
	if s.breaker.IsOpen(ctx, engineOffice) {
		metrics.BreakerSkipped(engineOffice)
		return "", errBreakerOpen
	}

	outDir := filepath.Join(dir, "office-"+uuid.NewString())
	res := s.office.Convert(ctx, converter.Job{InputPath: in, OutDir: outDir, Target: target, InFilter: filter})
	if !res.Success {
		_ = os.RemoveAll(outDir)
		s.officeFailed(ctx, res.Error)
		return "", res.Err()
	}
	if s.breaker.Close(ctx, engineOffice) {
		metrics.BreakerClosed(engineOffice)
	}
	return res.OutputPath, nil
}

// officeFailed opens the breaker unless the request was cancelled first; a
// client hanging up says nothing about LibreOffice.
func (s *Service) officeFailed(ctx context.Context, reason string) {
	if err := ctx.Err(); err != nil {
		log.Debug().Err(err).Str("error", reason).Msg("LibreOffice run cancelled; breaker unchanged")
		return
	}
	wait := s.breaker.Open(ctx, engineOffice)
	metrics.BreakerOpened(engineOffice)
	log.Warn().Str("error", reason).Dur("backoff", wait).Msg("LibreOffice conversion failed; breaker opened")
}

// moveInto renames src to dst, creating nothing else.
func moveInto(src, dst string) error {
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("move %s: %w", filepath.Base(src), err)
	}
	_ = os.Remove(filepath.Dir(src))
	return nil
}

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
