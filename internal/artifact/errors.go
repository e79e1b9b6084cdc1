// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VidFetch - yt-dlp 下载与限时文件服务

package artifact

import "errors"

var (
	ErrArtifactNotFound = errors.New("no output file found")
	ErrNotFound         = errors.New("file expired or not found")
)
