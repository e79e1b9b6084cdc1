// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VidFetch - yt-dlp 下载与限时文件服务

package parse

import (
	"container/ring"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ZSC714725/vidfetch/internal/process"
)

// Progress holds yt-dlp download progress parsed from its output
type Progress struct {
	Percent     float64 `json:"percent"`
	TotalBytes  uint64  `json:"total_bytes"`
	Speed       uint64  `json:"speed_bytes"`
	Destination string  `json:"destination"`
	MergedInto  string  `json:"merged_into"`
}

// Parser implements process.Parser and parses yt-dlp output
type Parser interface {
	process.Parser
	Progress() Progress
	LastError() string
}

type parser struct {
	re struct {
		percent     *regexp.Regexp
		total       *regexp.Regexp
		speed       *regexp.Regexp
		destination *regexp.Regexp
		merger      *regexp.Regexp
	}

	log      *ring.Ring
	logLines int

	progress  Progress
	lastError string
	lock      sync.RWMutex
}

// Config for the parser
type Config struct {
	LogLines int
}

// New creates a Parser
func New(config Config) Parser {
	p := &parser{
		logLines: config.LogLines,
	}
	if p.logLines <= 0 {
		p.logLines = 100
	}
	p.re.percent = regexp.MustCompile(`^\[download\]\s+([0-9.]+)%`)
	p.re.total = regexp.MustCompile(`of\s+~?\s*([0-9.]+)([KMGT]?i?B)`)
	p.re.speed = regexp.MustCompile(`at\s+([0-9.]+)([KMGT]?i?B)/s`)
	p.re.destination = regexp.MustCompile(`^\[download\] Destination: (.+)$`)
	p.re.merger = regexp.MustCompile(`^\[Merger\] Merging formats into "(.+)"$`)

	p.log = ring.New(p.logLines)
	return p
}

func (p *parser) Parse(line string) uint64 {
	now := time.Now()

	p.lock.Lock()
	defer p.lock.Unlock()

	p.log.Value = process.Line{Timestamp: now, Data: line}
	p.log = p.log.Next()

	if strings.HasPrefix(line, "ERROR:") {
		p.lastError = strings.TrimSpace(strings.TrimPrefix(line, "ERROR:"))
		return 0
	}
	if m := p.re.destination.FindStringSubmatch(line); m != nil {
		p.progress.Destination = m[1]
		return 0
	}
	if m := p.re.merger.FindStringSubmatch(line); m != nil {
		p.progress.MergedInto = m[1]
		return 0
	}

	m := p.re.percent.FindStringSubmatch(line)
	if m == nil {
		return 0
	}
	if x, err := strconv.ParseFloat(m[1], 64); err == nil {
		p.progress.Percent = x
	}
	if m := p.re.total.FindStringSubmatch(line); m != nil {
		p.progress.TotalBytes = parseSize(m[1], m[2])
	}
	if m := p.re.speed.FindStringSubmatch(line); m != nil {
		p.progress.Speed = parseSize(m[1], m[2])
	}

	// permille, so that 0.1% still counts as progress
	return uint64(p.progress.Percent*10) + 1
}

var sizeUnits = map[string]float64{
	"B":   1,
	"KiB": 1 << 10,
	"MiB": 1 << 20,
	"GiB": 1 << 30,
	"TiB": 1 << 40,
	"KB":  1e3,
	"MB":  1e6,
	"GB":  1e9,
	"TB":  1e12,
}

func parseSize(value, unit string) uint64 {
	x, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	mul, ok := sizeUnits[unit]
	if !ok {
		return 0
	}
	return uint64(x * mul)
}

func (p *parser) ResetStats() {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.progress = Progress{}
	p.lastError = ""
}

func (p *parser) ResetLog() {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.log = ring.New(p.logLines)
}

func (p *parser) Log() []process.Line {
	var out []process.Line
	p.lock.RLock()
	p.log.Do(func(v interface{}) {
		if v != nil {
			out = append(out, v.(process.Line))
		}
	})
	p.lock.RUnlock()
	return out
}

func (p *parser) Progress() Progress {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return p.progress
}

func (p *parser) LastError() string {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return p.lastError
}
