// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VidFetch - yt-dlp 下载与限时文件服务

package ytdlp

const (
	// BestCombined picks the best single file with both tracks, mp4 first
	BestCombined = "b[ext=mp4]/b"
	// MergeContainer is the fixed container for merged video+audio output
	MergeContainer = "mp4"
	// TitleTemplate names the output after the source title, truncated to 80 bytes
	TitleTemplate = "%(title).80B.%(ext)s"
)

// DownloadOptions describe one download invocation
type DownloadOptions struct {
	URL            string
	FormatID       string
	Kind           Kind
	OutputTemplate string
	FFmpeg         string
}

// ProbeArgs builds the metadata-only invocation
func ProbeArgs(url string) []string {
	return []string{
		"-J",
		"--no-playlist",
		"--no-warnings",
		"--", url,
	}
}

// FormatSelector returns the -f value and whether the output is merged
func FormatSelector(formatID string, kind Kind) (selector string, merge bool) {
	switch {
	case formatID == "":
		return BestCombined, false
	case kind == KindVideoOnly:
		return formatID + "+bestaudio", true
	default:
		return formatID, false
	}
}

// DownloadArgs builds the download invocation. The URL comes last, after
// "--", so it can never be read as an option.
func DownloadArgs(opts DownloadOptions) []string {
	args := []string{
		"--no-playlist",
		"--no-mtime",
		"--no-warnings",
		"--newline",
		"--restrict-filenames",
	}
	if opts.FFmpeg != "" {
		args = append(args, "--ffmpeg-location", opts.FFmpeg)
	}

	selector, merge := FormatSelector(opts.FormatID, opts.Kind)
	args = append(args, "-f", selector)
	if merge {
		args = append(args, "--merge-output-format", MergeContainer)
	}

	args = append(args, "-o", opts.OutputTemplate)
	args = append(args, "--", opts.URL)
	return args
}
