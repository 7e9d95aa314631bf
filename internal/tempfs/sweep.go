package tempfs

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// profilePrefix names the office-suite profile directories the converter
// creates next to request workspaces.
const profilePrefix = "lo-profile-"

// Sweep removes workspaces and converter profiles under dir older than maxAge.
// These only survive a crash mid-request; normal requests release their own.
func Sweep(dir string, maxAge time.Duration) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Warn().Err(err).Str("dir", dir).Msg("temp sweep: cannot list directory")
		return 0
	}
	now := time.Now()
	removed := 0
	for _, e := range entries {
		name := e.Name()
		if !(strings.HasPrefix(name, workspacePrefix) || strings.HasPrefix(name, profilePrefix)) {
			continue
		}
		info, err := e.Info()
		if err != nil || now.Sub(info.ModTime()) < maxAge {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, name)); err != nil {
			log.Warn().Err(err).Str("entry", name).Msg("temp sweep: remove failed")
			continue
		}
		removed++
	}
	if removed > 0 {
		log.Info().Int("removed", removed).Str("dir", dir).Msg("temp sweep finished")
	}
	return removed
}

// ProfilePrefix is used by the converter so the sweeper recognises its leftovers.
func ProfilePrefix() string { return profilePrefix }

// Sweeper runs Sweep periodically until its context is cancelled.
type Sweeper struct {
	Dir      string
	Interval time.Duration
	MaxAge   time.Duration
	// OnSweep, when set, receives the count removed by each pass.
	OnSweep func(removed int)
}

// Run blocks until ctx is done.
func (s Sweeper) Run(ctx context.Context) {
	interval := s.Interval
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n := Sweep(s.Dir, s.MaxAge)
			if s.OnSweep != nil {
				s.OnSweep(n)
			}
		}
	}
}
