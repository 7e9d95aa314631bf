package pdfops

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/rs/zerolog/log"

	"github.com/local/tealpdf/internal/bestof"
	"github.com/local/tealpdf/internal/logger"
	"github.com/local/tealpdf/internal/metrics"
)

// goodEnough is the reduction after which later, slower strategies are skipped.
const goodEnough = 0.02

// Compressed describes the winning rewrite.
type Compressed struct {
	Path         string
	Strategy     string
	OriginalSize int64
	Size         int64
}

type pdfStrategy struct {
	name      string
	available func() bool
	run       func(ctx context.Context, in, out string) error
}

func (s *Service) compressStrategies() []pdfStrategy {
	return []pdfStrategy{
		{
			name:      "pdfcpu-optimize",
			available: func() bool { return true },
			run: func(_ context.Context, in, out string) error {
				return api.OptimizeFile(in, out, pdfConf())
			},
		},
		{
			name:      "ghostscript-ebook",
			available: s.gs.Available,
			run:       s.gs.Rewrite,
		},
	}
}

// Compress rewrites in with each available strategy and keeps the smallest
// result in dir. Every other output is removed before it returns.
func (s *Service) Compress(ctx context.Context, in, dir string) (Compressed, error) {
	original, err := fileSize(in)
	if err != nil {
		return Compressed{}, fmt.Errorf("stat input: %w", err)
	}

	var t bestof.Tracker
	for _, st := range s.compressStrategies() {
		if !st.available() {
			log.Debug().Str("strategy", st.name).Msg("compression strategy unavailable")
			continue
		}
		out := filepath.Join(dir, "compress-"+st.name+"-"+uuid.NewString()+".pdf")
		if err := st.run(ctx, in, out); err != nil {
			_ = os.Remove(out)
			t.Fail(st.name, err)
			metrics.StrategyFailed("pdf", st.name)
			log.Warn().Err(err).Str("strategy", st.name).Msg("PDF compression strategy failed")
			continue
		}
		t.OfferFile(st.name, st.name, out)

		if best, err := t.Best(); err == nil && reduction(original, best.Size) > goodEnough {
			log.Debug().Str("strategy", best.Strategy).Msg("reduction good enough; skipping remaining strategies")
			break
		}
	}

	best, err := t.Best()
	if err != nil {
		return Compressed{}, fmt.Errorf("compress PDF: %w", err)
	}
	metrics.StrategyWon("pdf", best.Strategy)
	log.Info().
		Str("strategy", best.Strategy).
		Str("original", logger.Size(original)).
		Str("compressed", logger.Size(best.Size)).
		Float64("reduction", reduction(original, best.Size)).
		Msg("compressed PDF")
	return Compressed{Path: best.Path, Strategy: best.Strategy, OriginalSize: original, Size: best.Size}, nil
}

func reduction(original, size int64) float64 {
	if original <= 0 {
		return 0
	}
	return 1 - float64(size)/float64(original)
}
