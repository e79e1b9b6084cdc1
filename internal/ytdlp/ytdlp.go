// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VidFetch - yt-dlp 下载与限时文件服务

// Package ytdlp turns probe and download requests into yt-dlp invocations
// and normalizes their outcome.
package ytdlp

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/lithammer/shortuuid/v4"

	"github.com/ZSC714725/vidfetch/internal/artifact"
	"github.com/ZSC714725/vidfetch/internal/logger"
	"github.com/ZSC714725/vidfetch/internal/metrics"
	"github.com/ZSC714725/vidfetch/internal/process"
	"github.com/ZSC714725/vidfetch/internal/ytdlp/parse"
)

// Invoker probes formats and downloads media
type Invoker interface {
	Probe(ctx context.Context, url string) (*ProbeResult, error)
	Download(ctx context.Context, url, formatID string) (artifact.Artifact, error)
}

// Resolver finds the file a download produced
type Resolver interface {
	Dir() string
	ResolveLatestPrefix(prefix string, exts []string) (artifact.Artifact, error)
}

// Config for the invoker
type Config struct {
	Binary string
	FFmpeg string
	Store  Resolver

	ProbeMaxOutput    int64
	DownloadMaxOutput int64
	Timeout           time.Duration

	// ValidateFormat rejects format ids missing from the probe result.
	// When off, unknown ids are passed to yt-dlp unverified.
	ValidateFormat bool
	// IsolateRequests prefixes every output with a request id so the
	// produced file is found exactly instead of by "newest file wins".
	IsolateRequests bool

	Validator  Validator
	Logger     logger.Logger
	NewSampler func() process.Sampler
	LogLines   int
}

type ytdlp struct {
	binary     string
	ffmpeg     string
	store      Resolver
	probeMax   int64
	downMax    int64
	timeout    time.Duration
	validate   bool
	isolate    bool
	validator  Validator
	logger     logger.Logger
	newSampler func() process.Sampler
	logLines   int
}

// New creates an Invoker
func New(config Config) (Invoker, error) {
	if config.Store == nil {
		return nil, fmt.Errorf("no artifact store given")
	}
	binary, err := exec.LookPath(config.Binary)
	if err != nil {
		return nil, fmt.Errorf("invalid yt-dlp binary: %w", err)
	}

	y := &ytdlp{
		binary:     binary,
		ffmpeg:     config.FFmpeg,
		store:      config.Store,
		probeMax:   config.ProbeMaxOutput,
		downMax:    config.DownloadMaxOutput,
		timeout:    config.Timeout,
		validate:   config.ValidateFormat,
		isolate:    config.IsolateRequests,
		validator:  config.Validator,
		logger:     config.Logger,
		newSampler: config.NewSampler,
		logLines:   config.LogLines,
	}
	if y.validator == nil {
		y.validator, _ = NewValidator(nil, nil)
	}
	if y.logger == nil {
		y.logger = logger.Nop()
	}
	if y.newSampler == nil {
		y.newSampler = process.NewNullSampler
	}
	return y, nil
}

func (y *ytdlp) checkURL(raw string) (string, error) {
	url := strings.TrimSpace(raw)
	if url == "" {
		return "", ErrURLRequired
	}
	if !y.validator.IsValid(url) {
		return "", ErrURLNotAllowed
	}
	return url, nil
}

func (y *ytdlp) Probe(ctx context.Context, rawURL string) (*ProbeResult, error) {
	url, err := y.checkURL(rawURL)
	if err != nil {
		return nil, err
	}

	res, err := y.run(ctx, "probe", ProbeArgs(url), y.probeMax, nil)
	if err != nil {
		return nil, &ToolError{Op: "probe", Details: res.Diagnostic(err.Error()), Err: err}
	}

	in, err := parseInfo(res.Stdout)
	if err != nil {
		return nil, &ToolError{Op: "parse", Details: err.Error(), Err: err}
	}

	result := classify(in)
	if len(result.Formats) == 0 {
		return nil, ErrNoFormats
	}
	y.logger.Debug("probe %q: %d formats", result.Title, len(result.Formats))
	return result, nil
}

func (y *ytdlp) Download(ctx context.Context, rawURL, formatID string) (artifact.Artifact, error) {
	url, err := y.checkURL(rawURL)
	if err != nil {
		return artifact.Artifact{}, err
	}

	formatID = strings.TrimSpace(formatID)
	kind := KindUnknown
	if formatID != "" {
		kind, err = y.formatKind(ctx, url, formatID)
		if err != nil {
			return artifact.Artifact{}, err
		}
	}

	id := shortuuid.New()
	prefix := ""
	if y.isolate {
		prefix = id + "_"
	}

	args := DownloadArgs(DownloadOptions{
		URL:            url,
		FormatID:       formatID,
		Kind:           kind,
		OutputTemplate: filepath.Join(y.store.Dir(), prefix+TitleTemplate),
		FFmpeg:         y.ffmpeg,
	})

	parser := parse.New(parse.Config{LogLines: y.logLines})
	res, err := y.run(ctx, "download", args, y.downMax, parser)
	if err != nil {
		details := res.Diagnostic(parser.LastError())
		if details == "" {
			details = tail(parser.Log(), 5)
		}
		if details == "" {
			details = err.Error()
		}
		return artifact.Artifact{}, &ToolError{Op: "download", Details: details, Err: err}
	}

	a, err := y.store.ResolveLatestPrefix(prefix, nil)
	if err != nil {
		y.logger.Error("download %s finished but no output found (prefix %q)", id, prefix)
		return artifact.Artifact{}, err
	}

	prog := parser.Progress()
	y.logger.Info("download %s: %s (%d bytes, format %q, %s)", id, a.Name, a.Size, formatID, kind)
	y.logger.Debug("download %s: reached %.1f%% of %d bytes at %d B/s into %s",
		id, prog.Percent, prog.TotalBytes, prog.Speed, prog.Destination)
	if prog.MergedInto != "" {
		y.logger.Debug("download %s merged into %s", id, prog.MergedInto)
	}
	return a, nil
}

// tail joins the last n log lines
func tail(lines []process.Line, n int) string {
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		out = append(out, l.Data)
	}
	return strings.Join(out, "\n")
}

// formatKind probes the source to learn whether formatID needs an audio track
func (y *ytdlp) formatKind(ctx context.Context, url, formatID string) (Kind, error) {
	probe, err := y.Probe(ctx, url)
	if err != nil {
		if errors.Is(err, ErrNoFormats) && y.validate {
			return KindUnknown, ErrInvalidFormat
		}
		if errors.Is(err, ErrNoFormats) {
			return KindUnknown, nil
		}
		return KindUnknown, err
	}

	f, ok := probe.Lookup(formatID)
	if !ok {
		if y.validate {
			return KindUnknown, ErrInvalidFormat
		}
		y.logger.Info("format %q not in probe result, passing it through", formatID)
		return KindUnknown, nil
	}
	return f.Kind, nil
}

// run executes yt-dlp detached from the caller's cancellation: a client that
// goes away does not kill a running tool, only the configured timeout does.
func (y *ytdlp) run(ctx context.Context, op string, args []string, maxOutput int64, parser parse.Parser) (*process.Result, error) {
	metrics.ToolRunsInProgress.Inc()
	defer metrics.ToolRunsInProgress.Dec()

	config := process.Config{
		Binary:    y.binary,
		Args:      args,
		MaxOutput: maxOutput,
		Timeout:   y.timeout,
		Logger:    y.logger,
		Sampler:   y.newSampler(),
	}
	if parser != nil {
		config.Parser = parser
		config.ParseStdout = true
	}

	res, err := process.Run(context.WithoutCancel(ctx), config)

	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.ToolRunsTotal.WithLabelValues(op, status).Inc()
	if res != nil {
		metrics.ToolRunDuration.WithLabelValues(op).Observe(res.Duration.Seconds())
		metrics.ToolPeakMemoryBytes.WithLabelValues(op).Set(float64(res.PeakMemory))
		metrics.ToolPeakCPUPercent.WithLabelValues(op).Set(res.PeakCPU)
		y.logger.Debug("%s finished: state=%s exit=%d duration=%s peak_cpu=%.1f%% peak_rss=%d",
			op, res.State, res.ExitCode, res.Duration, res.PeakCPU, res.PeakMemory)
	}
	if err != nil {
		y.logger.Error("%s failed: %v", op, err)
	}
	return res, err
}
