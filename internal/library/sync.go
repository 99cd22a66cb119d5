package library

import (
	"context"
	"fmt"
	"log/slog"
)

// Report summarizes one Sync pass.
type Report struct {
	Scanned  int `json:"scanned"`
	Imported int `json:"imported"`
	Failed   int `json:"failed"`
}

// Sync walks the media folder and brings the registry up to date. New and
// changed files are registered. Files that disappeared from disk keep their
// assets: clips already placed on the timeline still reference them.
func (s *Service) Sync(ctx context.Context) (Report, error) {
	metas, err := s.store.List("")
	if err != nil {
		return Report{}, fmt.Errorf("library: sync: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sums, err := s.reg.AllChecksums()
	if err != nil {
		return Report{}, fmt.Errorf("library: sync: %w", err)
	}

	var rep Report
	for _, m := range metas {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		rep.Scanned++
		_, changed, err := s.register(m, sums[SourceFor(m.Path)])
		if err != nil {
			rep.Failed++
			s.log.Warn("sync: register failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if changed {
			rep.Imported++
			s.log.Debug("sync: registered", slog.String("path", m.Path))
		}
	}

	s.log.Info("sync: done",
		slog.Int("scanned", rep.Scanned),
		slog.Int("imported", rep.Imported),
		slog.Int("failed", rep.Failed))
	return rep, nil
}
