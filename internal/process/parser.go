// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VidFetch - yt-dlp 下载与限时文件服务

package process

import "time"

// Parser parses process output line by line (e.g. yt-dlp progress)
type Parser interface {
	Parse(line string) uint64
	ResetStats()
	ResetLog()
	Log() []Line
}

// Line is a timestamped log line
type Line struct {
	Timestamp time.Time
	Data      string
}

type nullParser struct{}

func (p *nullParser) Parse(line string) uint64 { return 0 }
func (p *nullParser) ResetStats()              {}
func (p *nullParser) ResetLog()                {}
func (p *nullParser) Log() []Line              { return nil }
