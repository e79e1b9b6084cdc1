// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VidFetch - yt-dlp 下载与限时文件服务

package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ZSC714725/vidfetch/internal/metrics"
)

// ScheduleExpiry records a deletion deadline of now+delay for the artifact
// and returns the deadline in effect. Neither fetches nor a second schedule
// extend it: an earlier pending deadline wins. A non-positive delay uses the
// store default.
func (s *Store) ScheduleExpiry(a Artifact, delay time.Duration) time.Time {
	if delay <= 0 {
		delay = s.expiry
	}
	deadline := s.now().Add(delay)

	s.mu.Lock()
	if existing, ok := s.schedule[a.Name]; ok && existing.Before(deadline) {
		deadline = existing
	}
	s.schedule[a.Name] = deadline
	pending := len(s.schedule)
	s.mu.Unlock()

	metrics.ArtifactsActive.Set(float64(pending))
	s.logger.Debug("artifact %s expires at %s", a.Name, deadline.Format(time.RFC3339))
	return deadline
}

// Pending returns the number of artifacts waiting for deletion
func (s *Store) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.schedule)
}

// Sweep deletes every artifact whose deadline has passed
func (s *Store) Sweep() int {
	return s.SweepAt(s.now())
}

// SweepAt deletes every artifact whose deadline is not after now. Delete
// errors are logged, never returned; the record is dropped either way.
func (s *Store) SweepAt(now time.Time) int {
	s.mu.Lock()
	var due []string
	for name, deadline := range s.schedule {
		if !now.Before(deadline) {
			due = append(due, name)
			delete(s.schedule, name)
		}
	}
	pending := len(s.schedule)
	s.mu.Unlock()

	metrics.ArtifactsActive.Set(float64(pending))

	removed := 0
	for _, name := range due {
		err := os.Remove(filepath.Join(s.dir, name))
		switch {
		case err == nil:
			removed++
			metrics.ArtifactsExpiredTotal.Inc()
			s.logger.Info("artifact %s expired", name)
		case os.IsNotExist(err):
			s.logger.Debug("artifact %s already gone", name)
		default:
			s.logger.Error("delete artifact %s: %v", name, err)
		}
	}
	return removed
}

// Start runs Sweep periodically in the background
func (s *Store) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return nil
	}

	c := cron.New()
	spec := fmt.Sprintf("@every %s", s.sweepInterval)
	if _, err := c.AddFunc(spec, func() { s.Sweep() }); err != nil {
		return fmt.Errorf("schedule sweep %q: %w", spec, err)
	}
	c.Start()
	s.cron = c
	return nil
}

// Stop halts the background sweep and waits for a running sweep to finish
func (s *Store) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
}

// CleanupStale removes files older than maxAge. Deadlines of a previous run
// are only kept in memory, so leftovers are reaped on startup.
func (s *Store) CleanupStale(maxAge time.Duration) int {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.logger.Error("read %s for cleanup: %v", s.dir, err)
		return 0
	}

	now := s.now()
	removed := 0
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) <= maxAge {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.logger.Error("remove stale file %s: %v", path, err)
			continue
		}
		removed++
	}

	if removed > 0 {
		s.logger.Info("removed %d stale files from %s", removed, s.dir)
	}
	return removed
}
