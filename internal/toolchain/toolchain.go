// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VidFetch - yt-dlp 下载与限时文件服务

// Package toolchain locates the external binaries and reports their versions.
package toolchain

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/ZSC714725/vidfetch/internal/process"
)

const probeTimeout = 10 * time.Second

// Library is a linked av library reported by ffmpeg
type Library struct {
	Name     string
	Compiled string
	Linked   string
}

// Tool describes one located binary
type Tool struct {
	Name    string
	Path    string
	Version string
}

// FFmpegTool is a Tool plus the build details ffmpeg prints
type FFmpegTool struct {
	Tool
	Configuration string
	Libraries     []Library
}

// Info is what the service knows about its tools
type Info struct {
	YtDlp  Tool
	FFmpeg FFmpegTool
}

// Available reports whether ffmpeg was found; merging needs it
func (i Info) Available() bool {
	return i.FFmpeg.Path != ""
}

var (
	reYtDlpVersion  = regexp.MustCompile(`^\s*([0-9]{4}\.[0-9]{2}\.[0-9]{2}(?:\.[0-9]+)?)`)
	reFFmpegVersion = regexp.MustCompile(`^ffmpeg version n?([0-9]+\.[0-9]+(\.[0-9]+)?)`)
	reConfiguration = regexp.MustCompile(`(?m)^\s*configuration: (.*)$`)
	reLibrary       = regexp.MustCompile(`(?m)^\s*(lib(?:[a-z]+))\s+([0-9]+\.\s*[0-9]+\.\s*[0-9]+) /\s+([0-9]+\.\s*[0-9]+\.\s*[0-9]+)`)
)

// Prepare makes every regular file in binDir executable. A missing
// directory is not an error.
func Prepare(binDir string) error {
	if binDir == "" {
		return nil
	}
	entries, err := os.ReadDir(binDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if err := os.Chmod(filepath.Join(binDir, e.Name()), 0o755); err != nil {
			return fmt.Errorf("chmod %s: %w", e.Name(), err)
		}
	}
	return nil
}

// Resolve returns binDir/name if it exists, else looks name up in PATH.
// Absolute or relative paths are returned as given when they exist.
func Resolve(name, binDir string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("empty binary name")
	}
	if strings.ContainsRune(name, os.PathSeparator) {
		if _, err := os.Stat(name); err != nil {
			return "", err
		}
		return name, nil
	}
	if binDir != "" {
		candidate := filepath.Join(binDir, name)
		if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
			return filepath.Abs(candidate)
		}
	}
	return exec.LookPath(name)
}

// New probes both tools. yt-dlp must answer --version; ffmpeg is optional
// and an empty FFmpeg entry means merged downloads will fail upstream.
func New(ctx context.Context, ytdlp, ffmpeg string) (Info, error) {
	info := Info{}

	out, err := version(ctx, ytdlp, "--version")
	if err != nil {
		return Info{}, fmt.Errorf("can't run yt-dlp: %w", err)
	}
	info.YtDlp = Tool{Name: "yt-dlp", Path: ytdlp, Version: parseYtDlpVersion(out)}
	if info.YtDlp.Version == "" {
		return Info{}, fmt.Errorf("can't parse yt-dlp version")
	}

	if ffmpeg == "" {
		return info, nil
	}
	out, err = version(ctx, ffmpeg, "-version")
	if err != nil {
		return info, nil
	}
	info.FFmpeg = parseFFmpegVersion(out)
	info.FFmpeg.Path = ffmpeg
	return info, nil
}

func version(ctx context.Context, binary, flag string) ([]byte, error) {
	res, err := process.Run(ctx, process.Config{
		Binary:    binary,
		Args:      []string{flag},
		MaxOutput: 1 << 20,
		Timeout:   probeTimeout,
	})
	if err != nil {
		return nil, err
	}
	return res.Stdout, nil
}

func parseYtDlpVersion(data []byte) string {
	if m := reYtDlpVersion.FindSubmatch(data); m != nil {
		return string(m[1])
	}
	return ""
}

func parseFFmpegVersion(data []byte) FFmpegTool {
	f := FFmpegTool{Tool: Tool{Name: "ffmpeg"}}
	if m := reFFmpegVersion.FindSubmatch(data); m != nil {
		f.Version = string(m[1])
		if len(m[2]) == 0 {
			f.Version += ".0"
		}
	}
	if m := reConfiguration.FindSubmatch(data); m != nil {
		f.Configuration = string(m[1])
	}
	for _, m := range reLibrary.FindAllSubmatch(data, -1) {
		f.Libraries = append(f.Libraries, Library{
			Name:     string(m[1]),
			Compiled: string(m[2]),
			Linked:   string(m[3]),
		})
	}
	return f
}
