// Package pagecount determines how many pages a PDF has, trying several
// readers in turn so that damaged files still get a usable answer.
package pagecount

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/local/tealpdf/internal/metrics"
)

// MaxPlausible is the exclusive upper bound of an accepted count.
const MaxPlausible = 10000

// Method is one way of counting pages.
type Method struct {
	Name  string
	Count func(path string) (int, error)
}

// Attempt records what a method reported.
type Attempt struct {
	Method string
	Count  int
	Err    error
}

// Valid reports whether the attempt produced a plausible count.
func (a Attempt) Valid() bool {
	return a.Err == nil && a.Count > 0 && a.Count < MaxPlausible
}

// Resolver runs Methods in order and stops at the first plausible count.
type Resolver struct {
	methods []Method
}

// New returns a resolver over methods. With none given it uses DefaultMethods.
func New(methods ...Method) *Resolver {
	if len(methods) == 0 {
		methods = DefaultMethods()
	}
	return &Resolver{methods: methods}
}

// Resolve never fails. If no method is plausible it returns the last positive
// count seen, and 1 when there was none.
func (r *Resolver) Resolve(path string) int {
	n, _ := r.ResolveDetailed(path)
	return n
}

// ResolveDetailed is Resolve plus the attempts made.
func (r *Resolver) ResolveDetailed(path string) (int, []Attempt) {
	attempts := make([]Attempt, 0, len(r.methods))
	fallback := 0
	for _, m := range r.methods {
		a := attempt(m, path)
		attempts = append(attempts, a)

		switch {
		case a.Err != nil:
			metrics.PageCountAttempt(m.Name, "failed")
			log.Warn().Err(a.Err).Str("method", m.Name).Str("file", path).Msg("page count method failed")
		case a.Valid():
			metrics.PageCountAttempt(m.Name, "accepted")
			log.Debug().Str("method", m.Name).Int("pages", a.Count).Msg("page count resolved")
			return a.Count, attempts
		default:
			metrics.PageCountAttempt(m.Name, "rejected")
			log.Debug().Str("method", m.Name).Int("pages", a.Count).Msg("page count outside plausible range")
			if a.Count > 0 {
				fallback = a.Count
			}
		}
	}
	if fallback > 0 {
		log.Warn().Int("pages", fallback).Str("file", path).Msg("no plausible page count; using last positive result")
		return fallback, attempts
	}
	log.Warn().Str("file", path).Msg("could not determine page count; assuming 1")
	return 1, attempts
}

func attempt(m Method, path string) (a Attempt) {
	a.Method = m.Name
	defer func() {
		if rec := recover(); rec != nil {
			a.Count = 0
			a.Err = fmt.Errorf("panic: %v", rec)
		}
	}()
	a.Count, a.Err = m.Count(path)
	return a
}
