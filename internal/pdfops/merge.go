package pdfops

import (
	"fmt"
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/rs/zerolog/log"

	"github.com/local/tealpdf/internal/apperr"
)

// Merge concatenates inputs, in order, into out.
func (s *Service) Merge(inputs []string, out string) error {
	if len(inputs) < 2 {
		return apperr.Validation("At least 2 PDF files are required for merging")
	}
	if err := api.MergeCreateFile(inputs, out, false, pdfConf()); err != nil {
		return fmt.Errorf("merge %d files: %w", len(inputs), err)
	}
	log.Info().Int("inputs", len(inputs)).Str("output", filepath.Base(out)).Msg("merged PDFs")
	return nil
}
