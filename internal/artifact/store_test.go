// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VidFetch - yt-dlp 下载与限时文件服务

package artifact

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore(t *testing.T, clock *fakeClock) *Store {
	t.Helper()
	s, err := NewStore(Config{
		Dir:        t.TempDir(),
		Extensions: []string{".mp4", "webm", ".M4A"},
		Expiry:     10 * time.Minute,
		Clock:      clock.Now,
	})
	require.NoError(t, err)
	return s
}

func writeFile(t *testing.T, dir, name string, mtime time.Time) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("data:"+name), 0o644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
	return path
}

func TestNewStore(t *testing.T) {
	t.Run("creates directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "downloads", "nested")
		s, err := NewStore(Config{Dir: dir})
		require.NoError(t, err)

		info, err := os.Stat(s.Dir())
		require.NoError(t, err)
		assert.True(t, info.IsDir())
		assert.True(t, filepath.IsAbs(s.Dir()))
		assert.Equal(t, 10*time.Minute, s.Expiry())
	})

	t.Run("rejects empty path", func(t *testing.T) {
		_, err := NewStore(Config{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "empty directory path")
	})

	t.Run("normalizes extensions", func(t *testing.T) {
		s := newTestStore(t, newFakeClock())
		assert.Equal(t, []string{".mp4", ".webm", ".m4a"}, s.Extensions())
	})
}

func TestResolveLatest(t *testing.T) {
	base := time.Now().Add(-time.Hour)

	t.Run("selects newest matching file", func(t *testing.T) {
		s := newTestStore(t, newFakeClock())
		writeFile(t, s.Dir(), "first.mp4", base)
		writeFile(t, s.Dir(), "third.mp4", base.Add(2*time.Minute))
		writeFile(t, s.Dir(), "second.mp4", base.Add(time.Minute))

		a, err := s.ResolveLatest([]string{".mp4"})
		require.NoError(t, err)
		assert.Equal(t, "third.mp4", a.Name)
		assert.Equal(t, ".mp4", a.Ext)
		assert.Equal(t, filepath.Join(s.Dir(), "third.mp4"), a.Path)
		assert.Equal(t, int64(len("data:third.mp4")), a.Size)
	})

	t.Run("ignores other extensions and directories", func(t *testing.T) {
		s := newTestStore(t, newFakeClock())
		writeFile(t, s.Dir(), "old.mp4", base)
		writeFile(t, s.Dir(), "newer.mp4.part", base.Add(time.Minute))
		writeFile(t, s.Dir(), "newest.txt", base.Add(2*time.Minute))
		require.NoError(t, os.Mkdir(filepath.Join(s.Dir(), "dir.mp4"), 0o755))

		a, err := s.ResolveLatest(nil)
		require.NoError(t, err)
		assert.Equal(t, "old.mp4", a.Name)
	})

	t.Run("extension match is case insensitive", func(t *testing.T) {
		s := newTestStore(t, newFakeClock())
		writeFile(t, s.Dir(), "LOUD.MP4", base)

		a, err := s.ResolveLatest([]string{"mp4"})
		require.NoError(t, err)
		assert.Equal(t, "LOUD.MP4", a.Name)
		assert.Equal(t, ".mp4", a.Ext)
	})

	t.Run("ties are broken by name", func(t *testing.T) {
		s := newTestStore(t, newFakeClock())
		writeFile(t, s.Dir(), "a.mp4", base)
		writeFile(t, s.Dir(), "c.mp4", base)
		writeFile(t, s.Dir(), "b.mp4", base)

		for i := 0; i < 3; i++ {
			a, err := s.ResolveLatest(nil)
			require.NoError(t, err)
			assert.Equal(t, "c.mp4", a.Name)
		}
	})

	t.Run("empty directory", func(t *testing.T) {
		s := newTestStore(t, newFakeClock())
		_, err := s.ResolveLatest(nil)
		assert.ErrorIs(t, err, ErrArtifactNotFound)
	})

	t.Run("prefix restricts the scan", func(t *testing.T) {
		s := newTestStore(t, newFakeClock())
		writeFile(t, s.Dir(), "reqA_video.mp4", base)
		writeFile(t, s.Dir(), "reqB_video.mp4", base.Add(time.Minute))

		a, err := s.ResolveLatestPrefix("reqA_", nil)
		require.NoError(t, err)
		assert.Equal(t, "reqA_video.mp4", a.Name)

		_, err = s.ResolveLatestPrefix("reqC_", nil)
		assert.ErrorIs(t, err, ErrArtifactNotFound)
	})

	// Known limitation: in the shared-directory mode two downloads finishing
	// in the same window both resolve to whichever file is newest.
	t.Run("concurrent downloads may share one artifact", func(t *testing.T) {
		s := newTestStore(t, newFakeClock())
		writeFile(t, s.Dir(), "from_url_one.mp4", base)
		writeFile(t, s.Dir(), "from_url_two.mp4", base.Add(time.Second))

		var wg sync.WaitGroup
		names := make([]string, 2)
		for i := range names {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				a, err := s.ResolveLatest(nil)
				if err == nil {
					names[i] = a.Name
				}
			}(i)
		}
		wg.Wait()

		assert.Equal(t, "from_url_two.mp4", names[0])
		assert.Equal(t, names[0], names[1])
	})
}

func TestMintHandleAndFetch(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(t, clock)
	writeFile(t, s.Dir(), "My Video #1.mp4", time.Now())

	a, err := s.ResolveLatest(nil)
	require.NoError(t, err)

	h := MintHandle(a)
	assert.Equal(t, Handle("My%20Video%20%231.mp4"), h)

	got, err := s.Fetch(h)
	require.NoError(t, err)
	assert.Equal(t, a.Name, got.Name)
	assert.Equal(t, a.Path, got.Path)
}

func TestHandleDecodesExactlyOnce(t *testing.T) {
	s := newTestStore(t, newFakeClock())
	writeFile(t, s.Dir(), "aA.mp4", time.Now().Add(-time.Hour))

	for _, name := range []string{"100%_Real.mp4", "a%41.mp4", "a+b.mp4", "50%25.mp4"} {
		t.Run(name, func(t *testing.T) {
			writeFile(t, s.Dir(), name, time.Now())

			got, err := s.Fetch(MintHandle(Artifact{Name: name}))
			require.NoError(t, err)
			assert.Equal(t, name, got.Name)
			assert.Equal(t, filepath.Join(s.Dir(), name), got.Path)
		})
	}
}

func TestFetchRejectsTraversal(t *testing.T) {
	parent := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(parent, "secret.mp4"), []byte("secret"), 0o644))

	s, err := NewStore(Config{Dir: filepath.Join(parent, "downloads")})
	require.NoError(t, err)

	handles := []Handle{
		"../secret.mp4",
		"..%2Fsecret.mp4",
		"%2e%2e%2fsecret.mp4",
		"..%5Csecret.mp4",
		"%2E%2E",
		"..",
		".",
		"",
		"%2Fetc%2Fpasswd",
		"bad%zzescape",
		"nul%00.mp4",
	}
	for _, h := range handles {
		h := h
		t.Run(string(h), func(t *testing.T) {
			_, err := s.Fetch(h)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestFetchMissingAndNonRegular(t *testing.T) {
	s := newTestStore(t, newFakeClock())
	require.NoError(t, os.Mkdir(filepath.Join(s.Dir(), "folder.mp4"), 0o755))

	_, err := s.Fetch("never-existed.mp4")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Fetch("folder.mp4")
	assert.ErrorIs(t, err, ErrNotFound)
}
