// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VidFetch - yt-dlp 下载与限时文件服务

// Package artifact owns the shared download directory: it resolves freshly
// written files, mints retrieval handles, serves files and deletes them once
// their expiry deadline has passed.
package artifact

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ZSC714725/vidfetch/internal/logger"
)

// Artifact is a downloaded file inside the store directory
type Artifact struct {
	Name    string
	Ext     string
	Size    int64
	ModTime time.Time
	Path    string
}

// Handle is the URL-safe retrieval identifier of an artifact
type Handle string

// Clock returns the current time
type Clock func() time.Time

// Config for a Store
type Config struct {
	Dir           string
	Extensions    []string
	Expiry        time.Duration
	SweepInterval time.Duration
	Clock         Clock
	Logger        logger.Logger
}

// Store is the ephemeral artifact store. The directory has no locking; only
// the expiry schedule is guarded.
type Store struct {
	dir           string
	exts          []string
	expiry        time.Duration
	sweepInterval time.Duration
	now           Clock
	logger        logger.Logger

	mu       sync.Mutex
	schedule map[string]time.Time

	cron *cron.Cron
}

// NewStore creates the directory if needed and returns a Store
func NewStore(config Config) (*Store, error) {
	if config.Dir == "" {
		return nil, fmt.Errorf("empty directory path")
	}
	dir, err := filepath.Abs(config.Dir)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", config.Dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create directory %s: %w", dir, err)
	}

	s := &Store{
		dir:           dir,
		exts:          normalizeExtensions(config.Extensions),
		expiry:        config.Expiry,
		sweepInterval: config.SweepInterval,
		now:           config.Clock,
		logger:        config.Logger,
		schedule:      make(map[string]time.Time),
	}
	if s.expiry <= 0 {
		s.expiry = 10 * time.Minute
	}
	if s.sweepInterval <= 0 {
		s.sweepInterval = 5 * time.Second
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = logger.Nop()
	}
	return s, nil
}

// Dir returns the absolute store directory
func (s *Store) Dir() string { return s.dir }

// Extensions returns the configured allow-list
func (s *Store) Extensions() []string { return append([]string(nil), s.exts...) }

// Expiry returns the default expiry delay
func (s *Store) Expiry() time.Duration { return s.expiry }

// ResolveLatest returns the most recently modified file whose extension is
// in exts (the store allow-list when exts is empty). This is a heuristic:
// with concurrent downloads in one directory it may pick another request's file.
func (s *Store) ResolveLatest(exts []string) (Artifact, error) {
	return s.ResolveLatestPrefix("", exts)
}

// ResolveLatestPrefix is ResolveLatest restricted to names starting with prefix
func (s *Store) ResolveLatestPrefix(prefix string, exts []string) (Artifact, error) {
	allowed := s.exts
	if len(exts) > 0 {
		allowed = normalizeExtensions(exts)
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return Artifact{}, fmt.Errorf("%w: %v", ErrArtifactNotFound, err)
	}

	var best Artifact
	found := false
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		ext := strings.ToLower(filepath.Ext(name))
		if !contains(allowed, ext) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// removed between ReadDir and Info
			continue
		}

		candidate := Artifact{
			Name:    name,
			Ext:     ext,
			Size:    info.Size(),
			ModTime: info.ModTime(),
			Path:    filepath.Join(s.dir, name),
		}
		if !found || newer(candidate, best) {
			best = candidate
			found = true
		}
	}

	if !found {
		return Artifact{}, ErrArtifactNotFound
	}
	return best, nil
}

// ties on modification time go to the lexicographically greater name
func newer(a, b Artifact) bool {
	if a.ModTime.Equal(b.ModTime) {
		return a.Name > b.Name
	}
	return a.ModTime.After(b.ModTime)
}

// MintHandle encodes the artifact name as a URL path segment
func MintHandle(a Artifact) Handle {
	return Handle(url.PathEscape(a.Name))
}

// Fetch resolves a handle to a present, unexpired artifact. Anything that
// does not decode to a plain file name directly inside the directory is
// reported as ErrNotFound.
func (s *Store) Fetch(h Handle) (Artifact, error) {
	name, err := url.PathUnescape(string(h))
	if err != nil || !isPlainName(name) {
		return Artifact{}, ErrNotFound
	}

	path := filepath.Join(s.dir, name)
	rel, err := filepath.Rel(s.dir, path)
	if err != nil || rel != name {
		return Artifact{}, ErrNotFound
	}

	s.mu.Lock()
	deadline, scheduled := s.schedule[name]
	s.mu.Unlock()
	if scheduled && !s.now().Before(deadline) {
		// past due, the sweep just hasn't run yet
		return Artifact{}, ErrNotFound
	}

	info, err := os.Lstat(path)
	if err != nil || !info.Mode().IsRegular() {
		return Artifact{}, ErrNotFound
	}

	return Artifact{
		Name:    name,
		Ext:     strings.ToLower(filepath.Ext(name)),
		Size:    info.Size(),
		ModTime: info.ModTime(),
		Path:    path,
	}, nil
}

func isPlainName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, "/\\\x00")
}

func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, e)
	}
	return out
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
