// Package pagerange turns user page selections into concrete page lists.
package pagerange

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/local/tealpdf/internal/apperr"
)

// ErrNoValidPages is returned when an expression selects nothing inside the document.
var ErrNoValidPages = errors.New("no valid pages")

// Parse reads a comma separated list of pages and inclusive ranges, e.g.
// "1-3,5,7-9". The result is sorted, unique and limited to [1, total].
// A reversed range such as "4-2" selects nothing; a malformed token fails the
// whole expression.
func Parse(expr string, total int) ([]int, error) {
	seen := make(map[int]struct{})
	for _, raw := range strings.Split(expr, ",") {
		tok := strings.TrimSpace(raw)
		if strings.Contains(tok, "-") {
			bounds := strings.Split(tok, "-")
			if len(bounds) != 2 {
				return nil, fmt.Errorf("invalid range %q", tok)
			}
			start, err := atoi(bounds[0])
			if err != nil {
				return nil, fmt.Errorf("invalid range %q: %w", tok, err)
			}
			end, err := atoi(bounds[1])
			if err != nil {
				return nil, fmt.Errorf("invalid range %q: %w", tok, err)
			}
			for p := max(start, 1); p <= end && p <= total; p++ {
				seen[p] = struct{}{}
			}
			continue
		}
		p, err := atoi(tok)
		if err != nil {
			return nil, fmt.Errorf("invalid page %q: %w", tok, err)
		}
		if p >= 1 && p <= total {
			seen[p] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return nil, ErrNoValidPages
	}
	pages := make([]int, 0, len(seen))
	for p := range seen {
		pages = append(pages, p)
	}
	sort.Ints(pages)
	return pages, nil
}

// All returns 1..total.
func All(total int) []int {
	pages := make([]int, 0, max(total, 0))
	for p := 1; p <= total; p++ {
		pages = append(pages, p)
	}
	return pages
}

// Span is an inclusive, 1-based page interval.
type Span struct {
	First int
	Last  int
}

// Len is the number of pages in the span.
func (s Span) Len() int { return s.Last - s.First + 1 }

// String renders the span the way pdfcpu page selections expect it.
func (s Span) String() string {
	if s.First == s.Last {
		return strconv.Itoa(s.First)
	}
	return fmt.Sprintf("%d-%d", s.First, s.Last)
}

// SplitAt partitions a document of total pages into [1, at] and [at+1, total].
// Splitting at or past the last page would leave one part, so it is rejected.
func SplitAt(total, at int) ([2]Span, error) {
	if at < 1 {
		return [2]Span{}, apperr.Validation("split_page must be a positive integer")
	}
	if at >= total {
		return [2]Span{}, apperr.Validation(
			"Cannot split at page %d. PDF only has %d pages. Please choose a page between 1 and %d.",
			at, total, total-1)
	}
	return [2]Span{{First: 1, Last: at}, {First: at + 1, Last: total}}, nil
}

// Compact collapses a sorted page list into pdfcpu selection strings,
// e.g. [1 2 3 5] becomes ["1-3", "5"].
func Compact(pages []int) []string {
	var out []string
	for i := 0; i < len(pages); {
		j := i
		for j+1 < len(pages) && pages[j+1] == pages[j]+1 {
			j++
		}
		out = append(out, Span{First: pages[i], Last: pages[j]}.String())
		i = j + 1
	}
	return out
}

func atoi(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}
