// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VidFetch - yt-dlp 下载与限时文件服务

package ytdlp

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind classifies a stream by the tracks it carries
type Kind int

const (
	KindUnknown Kind = iota
	KindCombined
	KindVideoOnly
	KindAudioOnly
)

func (k Kind) String() string {
	switch k {
	case KindCombined:
		return "combined"
	case KindVideoOnly:
		return "video_only"
	case KindAudioOnly:
		return "audio_only"
	default:
		return "unknown"
	}
}

// Format is one downloadable stream reported by yt-dlp
type Format struct {
	ID       string
	Label    string
	Ext      string
	Filesize int64 // 0 when unknown
	Kind     Kind
}

// ProbeResult holds every usable format plus the same formats split by kind
type ProbeResult struct {
	Title     string
	Formats   []Format
	VideoOnly []Format
	AudioOnly []Format
	Combined  []Format
}

// Lookup finds a format by id
func (r *ProbeResult) Lookup(id string) (Format, bool) {
	for _, f := range r.Formats {
		if f.ID == id {
			return f, true
		}
	}
	return Format{}, false
}

// info is the subset of `yt-dlp -J` output we read. Every field may be absent.
type info struct {
	Title   string      `json:"title"`
	Formats []rawFormat `json:"formats"`
}

type rawFormat struct {
	FormatID       string  `json:"format_id"`
	Format         string  `json:"format"`
	FormatNote     string  `json:"format_note"`
	Ext            string  `json:"ext"`
	VCodec         string  `json:"vcodec"`
	ACodec         string  `json:"acodec"`
	Filesize       float64 `json:"filesize"`
	FilesizeApprox float64 `json:"filesize_approx"`
}

// sizeSources lists the size fields in order of preference
var sizeSources = []func(rawFormat) float64{
	func(f rawFormat) float64 { return f.Filesize },
	func(f rawFormat) float64 { return f.FilesizeApprox },
}

// labelSources lists the fields tried for the human readable label
var labelSources = []func(rawFormat) string{
	func(f rawFormat) string { return f.Format },
	func(f rawFormat) string { return f.FormatNote },
	func(f rawFormat) string { return f.FormatID },
}

// noCodec is what yt-dlp reports for a missing track. An absent codec
// field means "unknown" and is treated as present.
const noCodec = "none"

func parseInfo(data []byte) (*info, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, fmt.Errorf("empty output")
	}
	var in info
	if err := json.Unmarshal([]byte(trimmed), &in); err != nil {
		return nil, err
	}
	return &in, nil
}

func (f rawFormat) kind() Kind {
	video := f.VCodec != noCodec
	audio := f.ACodec != noCodec
	switch {
	case video && audio:
		return KindCombined
	case video:
		return KindVideoOnly
	case audio:
		return KindAudioOnly
	default:
		return KindUnknown
	}
}

func (f rawFormat) size() int64 {
	for _, src := range sizeSources {
		if v := src(f); v > 0 {
			return int64(v)
		}
	}
	return 0
}

func (f rawFormat) label() string {
	name := ""
	for _, src := range labelSources {
		if v := strings.TrimSpace(src(f)); v != "" {
			name = v
			break
		}
	}
	size := "N/A"
	if s := f.size(); s > 0 {
		size = fmt.Sprintf("%.1fMB", float64(s)/1024/1024)
	}
	return fmt.Sprintf("%s (%s)", name, size)
}

// classify drops formats without an id or without any track (storyboards)
// and sorts the rest by kind, keeping yt-dlp's order within each kind.
func classify(in *info) *ProbeResult {
	res := &ProbeResult{Title: in.Title}
	for _, raw := range in.Formats {
		if strings.TrimSpace(raw.FormatID) == "" {
			continue
		}
		kind := raw.kind()
		if kind == KindUnknown {
			continue
		}

		f := Format{
			ID:       raw.FormatID,
			Label:    raw.label(),
			Ext:      raw.Ext,
			Filesize: raw.size(),
			Kind:     kind,
		}
		res.Formats = append(res.Formats, f)

		switch kind {
		case KindCombined:
			res.Combined = append(res.Combined, f)
		case KindVideoOnly:
			res.VideoOnly = append(res.VideoOnly, f)
		case KindAudioOnly:
			res.AudioOnly = append(res.AudioOnly, f)
		}
	}
	return res
}
