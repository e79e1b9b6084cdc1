// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VidFetch - yt-dlp 下载与限时文件服务

package process

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingParser struct {
	mu    sync.Mutex
	lines []string
}

func (p *recordingParser) Parse(line string) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lines = append(p.lines, line)
	return 1
}
func (p *recordingParser) ResetStats() {}
func (p *recordingParser) ResetLog()   {}
func (p *recordingParser) Log() []Line { return nil }

func (p *recordingParser) Lines() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.lines...)
}

func TestRunRequiresBinary(t *testing.T) {
	res, err := Run(context.Background(), Config{})
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrNoBinary)
}

func TestRunCapturesOutput(t *testing.T) {
	res, err := Run(context.Background(), Config{
		Binary: "/bin/sh",
		Args:   []string{"-c", "echo hello; echo oops 1>&2"},
	})
	require.NoError(t, err)
	assert.Equal(t, StateFinished, res.State)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "hello\n", string(res.Stdout))
	assert.Equal(t, "oops\n", string(res.Stderr))
	assert.Equal(t, "oops\n", res.Diagnostic("fallback"))
}

func TestRunArgumentsAreNotInterpretedByAShell(t *testing.T) {
	res, err := Run(context.Background(), Config{
		Binary: "/bin/echo",
		Args:   []string{"$(id)", "; rm -rf /", "`x`"},
	})
	require.NoError(t, err)
	assert.Equal(t, "$(id) ; rm -rf / `x`\n", string(res.Stdout))
}

func TestRunNonZeroExit(t *testing.T) {
	res, err := Run(context.Background(), Config{
		Binary: "/bin/sh",
		Args:   []string{"-c", "echo broken 1>&2; exit 3"},
	})
	require.Error(t, err)
	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "broken\n", res.Diagnostic("x"))
}

func TestRunStartFailure(t *testing.T) {
	res, err := Run(context.Background(), Config{Binary: "/definitely/not/here"})
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, "fallback", res.Diagnostic("fallback"))
}

func TestRunOutputLimitKillsProcess(t *testing.T) {
	res, err := Run(context.Background(), Config{
		Binary:    "/bin/sh",
		Args:      []string{"-c", "while :; do echo xxxxxxxxxxxxxxxxxxxx; done"},
		MaxOutput: 1024,
	})
	assert.ErrorIs(t, err, ErrOutputLimit)
	assert.Equal(t, StateKilled, res.State)
	assert.Len(t, res.Stdout, 1024)
}

func TestRunTimeout(t *testing.T) {
	start := time.Now()
	res, err := Run(context.Background(), Config{
		Binary:  "sleep",
		Args:    []string{"5"},
		Timeout: 100 * time.Millisecond,
	})
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, StateKilled, res.State)
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestRunParentCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	res, err := Run(ctx, Config{Binary: "sleep", Args: []string{"5"}})
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, StateKilled, res.State)
}

func TestRunFeedsParser(t *testing.T) {
	p := &recordingParser{}
	_, err := Run(context.Background(), Config{
		Binary:      "/bin/sh",
		Args:        []string{"-c", `printf 'a\nb\rc'; printf 'e\n' 1>&2`},
		Parser:      p,
		ParseStdout: true,
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b", "c", "e"}, p.Lines())
}

func TestRunWithoutStdoutParsing(t *testing.T) {
	p := &recordingParser{}
	res, err := Run(context.Background(), Config{
		Binary: "/bin/sh",
		Args:   []string{"-c", `echo '{"a":1}'; echo warn 1>&2`},
		Parser: p,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"warn"}, p.Lines())
	assert.JSONEq(t, `{"a":1}`, string(res.Stdout))
}

func TestRunRecordsPeakUsage(t *testing.T) {
	res, err := Run(context.Background(), Config{
		Binary:         "/bin/sh",
		Args:           []string{"-c", "i=0; while [ $i -lt 20000 ]; do i=$((i+1)); done; sleep 0.3"},
		Sampler:        NewSysSampler(),
		SampleInterval: 50 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.NotZero(t, res.PeakMemory)
	assert.GreaterOrEqual(t, res.PeakCPU, 0.0)
}
