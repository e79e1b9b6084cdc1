// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VidFetch - yt-dlp 下载与限时文件服务
//
// Package process runs an external tool once and collects its outcome.
// Arguments are always passed as an argument vector; no shell is involved.

package process

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrNoBinary    = errors.New("no valid binary given")
	ErrOutputLimit = errors.New("process output exceeds buffer limit")
	ErrTimeout     = errors.New("process timed out")
)

// State is the terminal state of a run
type State string

const (
	StateFinished State = "finished"
	StateFailed   State = "failed"
	StateKilled   State = "killed"
)

// Config for a single run
type Config struct {
	Binary string
	Args   []string
	// Env is passed as is; nil inherits the current environment.
	Env []string
	// MaxOutput caps the bytes kept per stream. Exceeding it kills the process.
	MaxOutput int64
	Timeout   time.Duration
	// ParseStdout also feeds stdout lines to the parser; stderr is always fed.
	ParseStdout    bool
	Parser         Parser
	Logger         Logger
	Sampler        Sampler
	SampleInterval time.Duration
}

// Result of a finished run
type Result struct {
	State      State
	ExitCode   int
	Stdout     []byte
	Stderr     []byte
	Duration   time.Duration
	PeakCPU    float64
	PeakMemory uint64
}

// Diagnostic returns stderr if present, else the given fallback
func (r *Result) Diagnostic(fallback string) string {
	if r != nil && len(r.Stderr) > 0 {
		return string(r.Stderr)
	}
	return fallback
}

// Logger interface
type Logger interface {
	Info(format string, args ...interface{})
	Error(format string, args ...interface{})
	Debug(format string, args ...interface{})
}

// Run starts the binary, waits for it to exit and returns what it produced.
// The returned Result is non-nil whenever the process was started.
func Run(ctx context.Context, config Config) (*Result, error) {
	if len(config.Binary) == 0 {
		return nil, ErrNoBinary
	}

	parser := config.Parser
	if parser == nil {
		parser = &nullParser{}
	}
	log := config.Logger
	if log == nil {
		log = &nopLogger{}
	}
	sampler := config.Sampler
	if sampler == nil {
		sampler = NewNullSampler()
	}
	interval := config.SampleInterval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}

	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if config.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, config.Timeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	var overflow atomic.Bool
	onOverflow := func() {
		if overflow.CompareAndSwap(false, true) {
			log.Error("%s output exceeded %d bytes, killing", config.Binary, config.MaxOutput)
			cancel()
		}
	}

	var parseLock sync.Mutex
	stdout := newCappedBuffer(config.MaxOutput, onOverflow)
	stderr := newCappedBuffer(config.MaxOutput, onOverflow)

	cmd := exec.CommandContext(runCtx, config.Binary, config.Args...)
	cmd.Env = config.Env
	// yt-dlp spawns ffmpeg; don't wait forever on inherited pipes after a kill
	cmd.WaitDelay = 5 * time.Second
	writers := []*lineWriter{newLineWriter(stderr, parser, &parseLock)}
	cmd.Stderr = writers[0]
	if config.ParseStdout {
		w := newLineWriter(stdout, parser, &parseLock)
		writers = append(writers, w)
		cmd.Stdout = w
	} else {
		cmd.Stdout = stdout
	}

	parser.ResetStats()
	parser.ResetLog()

	log.Debug("exec %s %v", config.Binary, config.Args)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		parser.Parse(err.Error())
		return &Result{State: StateFailed, ExitCode: -1}, fmt.Errorf("start %s: %w", config.Binary, err)
	}

	if err := sampler.Start(cmd.Process.Pid); err != nil {
		log.Debug("sampler for pid %d: %v", cmd.Process.Pid, err)
	}
	done := make(chan struct{})
	go sample(sampler, interval, done)

	waitErr := cmd.Wait()
	close(done)
	sampler.Stop()
	for _, w := range writers {
		w.flush()
	}

	res := &Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
	}
	res.PeakCPU, res.PeakMemory = sampler.Peak()
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	switch {
	case overflow.Load():
		res.State = StateKilled
		return res, ErrOutputLimit
	case ctx.Err() != nil:
		res.State = StateKilled
		return res, ctx.Err()
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		res.State = StateKilled
		return res, ErrTimeout
	case waitErr == nil:
		res.State = StateFinished
		return res, nil
	}

	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) && res.ExitCode >= 0 {
		res.State = StateFailed
		return res, fmt.Errorf("%s exited with code %d: %w", config.Binary, res.ExitCode, waitErr)
	}
	res.State = StateKilled
	return res, waitErr
}

func sample(s Sampler, interval time.Duration, done <-chan struct{}) {
	s.Sample()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			s.Sample()
		}
	}
}

type nopLogger struct{}

func (l *nopLogger) Info(format string, args ...interface{})  {}
func (l *nopLogger) Error(format string, args ...interface{}) {}
func (l *nopLogger) Debug(format string, args ...interface{}) {}
