package pdfops

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/rs/zerolog/log"

	"github.com/local/tealpdf/internal/apperr"
	"github.com/local/tealpdf/internal/pagecount"
	"github.com/local/tealpdf/internal/pagerange"
)

// SplitMode selects how /split partitions a document.
type SplitMode int

const (
	SplitAllPages SplitMode = iota
	SplitCustomPage
)

func (m SplitMode) String() string {
	if m == SplitCustomPage {
		return "custom-page"
	}
	return "all-pages"
}

// ParseSplitMode accepts the form value; empty means all-pages.
func ParseSplitMode(s string) (SplitMode, error) {
	switch strings.TrimSpace(s) {
	case "", "all-pages":
		return SplitAllPages, nil
	case "custom-page":
		return SplitCustomPage, nil
	}
	return 0, apperr.Validation("Invalid split mode: %s. Must be 'all-pages' or 'custom-page'", s)
}

// SplitRequest carries the validated /split form.
type SplitRequest struct {
	Mode      SplitMode
	SplitPage int
	Pages     string
}

// Artifact is one produced file and the name it should carry in the archive.
type Artifact struct {
	Name string
	Path string
}

// Split writes the requested parts of in into dir. A fallback page count
// beyond pagecount.MaxPlausible is clamped before any page list is built.
func (s *Service) Split(in, dir string, req SplitRequest) ([]Artifact, error) {
	total := min(s.pages.Resolve(in), pagecount.MaxPlausible)

	switch {
	case req.Mode == SplitCustomPage:
		spans, err := pagerange.SplitAt(total, req.SplitPage)
		if err != nil {
			return nil, err
		}
		arts := make([]Artifact, 0, 2)
		for i, sp := range spans {
			name := fmt.Sprintf("part_%d_pages_%d-%d.pdf", i+1, sp.First, sp.Last)
			a, err := trim(in, dir, name, []string{sp.String()})
			if err != nil {
				return nil, err
			}
			arts = append(arts, a)
		}
		log.Info().Int("split_page", req.SplitPage).Int("total", total).Msg("split PDF in two")
		return arts, nil

	case strings.TrimSpace(req.Pages) != "":
		pages, err := pagerange.Parse(req.Pages, total)
		if err != nil {
			log.Warn().Err(err).Str("pages", req.Pages).Msg("page range rejected; extracting all pages")
			pages = pagerange.All(total)
		}
		a, err := trim(in, dir, "extracted_pages.pdf", pagerange.Compact(pages))
		if err != nil {
			return nil, err
		}
		log.Info().Int("pages", len(pages)).Int("total", total).Msg("extracted pages")
		return []Artifact{a}, nil

	default:
		arts := make([]Artifact, 0, total)
		for p := 1; p <= total; p++ {
			a, err := trim(in, dir, fmt.Sprintf("page_%d.pdf", p), []string{fmt.Sprint(p)})
			if err != nil {
				return nil, err
			}
			arts = append(arts, a)
		}
		log.Info().Int("total", total).Msg("split PDF into single pages")
		return arts, nil
	}
}

// trim keeps the selected pages of in. pdfcpu carries the Info dictionary
// over to the output.
func trim(in, dir, name string, selection []string) (Artifact, error) {
	out := filepath.Join(dir, name)
	if err := api.TrimFile(in, out, selection, pdfConf()); err != nil {
		return Artifact{}, fmt.Errorf("write %s: %w", name, err)
	}
	return Artifact{Name: name, Path: out}, nil
}
