// Package bestof keeps the smallest of several file outputs produced by
// competing strategies and deletes the rest as soon as they lose.
package bestof

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
)

// ErrNoCandidate is returned when no strategy produced an output.
var ErrNoCandidate = errors.New("no strategy produced a result")

// Candidate is one strategy's output on disk.
type Candidate struct {
	Strategy string
	Label    string
	Path     string
	Size     int64
}

// Failure records a strategy that errored.
type Failure struct {
	Strategy string
	Err      error
}

// Tracker holds the running minimum. It is not safe for concurrent use;
// collect parallel results first and offer them in strategy order.
type Tracker struct {
	best     *Candidate
	failures []Failure
}

// Offer considers c. Ties keep the earlier candidate. The losing file is
// removed before Offer returns. It reports whether c became the best.
func (t *Tracker) Offer(c Candidate) bool {
	if t.best != nil && c.Size >= t.best.Size {
		discard(c.Path)
		return false
	}
	if t.best != nil {
		discard(t.best.Path)
	}
	cc := c
	t.best = &cc
	return true
}

// OfferFile stats path and offers it. A stat failure is recorded as a failure
// and the file, if any, is removed.
func (t *Tracker) OfferFile(strategy, label, path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		discard(path)
		t.Fail(strategy, fmt.Errorf("stat output: %w", err))
		return false
	}
	return t.Offer(Candidate{Strategy: strategy, Label: label, Path: path, Size: info.Size()})
}

// Fail records a strategy error.
func (t *Tracker) Fail(strategy string, err error) {
	t.failures = append(t.failures, Failure{Strategy: strategy, Err: err})
}

// Best returns the winner. When nothing succeeded the error summarises every
// failure.
func (t *Tracker) Best() (Candidate, error) {
	if t.best == nil {
		return Candidate{}, t.failureErr()
	}
	return *t.best, nil
}

// Failures returns the recorded strategy errors.
func (t *Tracker) Failures() []Failure { return t.failures }

// Discard removes the current winner, for callers that abort after selection.
func (t *Tracker) Discard() {
	if t.best != nil {
		discard(t.best.Path)
		t.best = nil
	}
}

func (t *Tracker) failureErr() error {
	if len(t.failures) == 0 {
		return ErrNoCandidate
	}
	parts := make([]string, 0, len(t.failures))
	for _, f := range t.failures {
		parts = append(parts, fmt.Sprintf("%s: %v", f.Strategy, f.Err))
	}
	return fmt.Errorf("%w (%s)", ErrNoCandidate, strings.Join(parts, "; "))
}

func discard(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("path", path).Msg("failed to remove losing candidate")
	}
}
