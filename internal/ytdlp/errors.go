// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VidFetch - yt-dlp 下载与限时文件服务

package ytdlp

import "errors"

var (
	ErrURLRequired   = errors.New("URL is required")
	ErrURLNotAllowed = errors.New("URL is not allowed")
	ErrNoFormats     = errors.New("no downloadable formats found")
	ErrInvalidFormat = errors.New("invalid itag")
	ErrUpstream      = errors.New("upstream tool failed")
)

// ToolError is returned when yt-dlp fails or its output can't be used.
// Details carries the raw diagnostic text for the caller.
type ToolError struct {
	Op      string
	Details string
	Err     error
}

func (e *ToolError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

// Unwrap makes errors.Is match both ErrUpstream and the cause
func (e *ToolError) Unwrap() []error {
	return []error{ErrUpstream, e.Err}
}
