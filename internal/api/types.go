// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VidFetch - yt-dlp 下载与限时文件服务

package api

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Itag accepts the format id as a JSON string or number
type Itag string

func (i *Itag) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*i = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*i = Itag(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*i = Itag(n.String())
	return nil
}

// CheckRequest for POST /check
type CheckRequest struct {
	URL string `json:"url"`
}

// DownloadRequest for POST /download
type DownloadRequest struct {
	URL  string `json:"url"`
	Itag Itag   `json:"itag"`
}

// FormatEntry is one downloadable stream
type FormatEntry struct {
	Itag     string `json:"itag"`
	Quality  string `json:"quality"`
	Filesize *int64 `json:"filesize"`
	Ext      string `json:"ext,omitempty"`
}

// CheckResponse lists the formats, all together and by kind
type CheckResponse struct {
	Title     string        `json:"title,omitempty"`
	Formats   []FormatEntry `json:"formats"`
	VideoOnly []FormatEntry `json:"videoOnly"`
	AudioOnly []FormatEntry `json:"audioOnly"`
	Combined  []FormatEntry `json:"combined"`
}

// DownloadResponse points at the produced file
type DownloadResponse struct {
	DownloadURL      string `json:"download_url"`
	ExpiresInMinutes int    `json:"expires_in_minutes"`
}

// ToolResponse for /health
type ToolResponse struct {
	Path    string `json:"path"`
	Version string `json:"version"`
}

// LibraryResponse is an av library linked into ffmpeg
type LibraryResponse struct {
	Name     string `json:"name"`
	Compiled string `json:"compiled"`
	Linked   string `json:"linked"`
}

// FFmpegResponse for /health
type FFmpegResponse struct {
	ToolResponse
	Available     bool              `json:"available"`
	Configuration string            `json:"configuration,omitempty"`
	Libraries     []LibraryResponse `json:"libraries,omitempty"`
}

// HealthResponse for GET /health
type HealthResponse struct {
	Status           string         `json:"status"`
	YtDlp            ToolResponse   `json:"ytdlp"`
	FFmpeg           FFmpegResponse `json:"ffmpeg"`
	Extensions       []string       `json:"extensions"`
	ActiveArtifacts  int            `json:"active_artifacts"`
	ExpiresInMinutes int            `json:"expires_in_minutes"`
}

// ErrorResponse for API errors
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
