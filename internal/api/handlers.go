// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VidFetch - yt-dlp 下载与限时文件服务

package api

import (
	"errors"
	"io"
	"math"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ZSC714725/vidfetch/internal/artifact"
	"github.com/ZSC714725/vidfetch/internal/logger"
	"github.com/ZSC714725/vidfetch/internal/metrics"
	"github.com/ZSC714725/vidfetch/internal/toolchain"
	"github.com/ZSC714725/vidfetch/internal/ytdlp"
)

const banner = "Video Downloader API is running 🚀"

// Handler holds dependencies
type Handler struct {
	invoker ytdlp.Invoker
	store   *artifact.Store
	tools   toolchain.Info
	logger  logger.Logger
}

// NewHandler creates API handler
func NewHandler(inv ytdlp.Invoker, store *artifact.Store, tools toolchain.Info, log logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{invoker: inv, store: store, tools: tools, logger: log}
}

// Register mounts every route on r
func (h *Handler) Register(r *gin.Engine) {
	r.GET("/", h.Index)
	r.GET("/health", h.Health)
	r.POST("/check", h.Check)
	r.POST("/download", h.Download)
	r.GET("/file/:name", h.File)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.NoRoute(func(c *gin.Context) {
		errResp(c, http.StatusNotFound, "Not found", "")
	})
}

func errResp(c *gin.Context, code int, msg, detail string) {
	c.JSON(code, ErrorResponse{Error: msg, Details: detail})
}

// bindBody decodes the JSON body into req. An empty body is not an error;
// the missing fields are reported by validation.
func bindBody(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil && !errors.Is(err, io.EOF) {
		errResp(c, http.StatusBadRequest, "Invalid JSON", err.Error())
		return false
	}
	return true
}

// Index GET /
func (h *Handler) Index(c *gin.Context) {
	c.String(http.StatusOK, banner)
}

// Health GET /health
func (h *Handler) Health(c *gin.Context) {
	resp := HealthResponse{
		Status: "ok",
		YtDlp: ToolResponse{
			Path:    h.tools.YtDlp.Path,
			Version: h.tools.YtDlp.Version,
		},
		FFmpeg: FFmpegResponse{
			ToolResponse: ToolResponse{
				Path:    h.tools.FFmpeg.Path,
				Version: h.tools.FFmpeg.Version,
			},
			Available:     h.tools.Available(),
			Configuration: h.tools.FFmpeg.Configuration,
		},
		Extensions:       h.store.Extensions(),
		ActiveArtifacts:  h.store.Pending(),
		ExpiresInMinutes: h.expiresInMinutes(),
	}
	for _, lib := range h.tools.FFmpeg.Libraries {
		resp.FFmpeg.Libraries = append(resp.FFmpeg.Libraries, LibraryResponse{
			Name:     lib.Name,
			Compiled: lib.Compiled,
			Linked:   lib.Linked,
		})
	}
	c.JSON(http.StatusOK, resp)
}

// Check POST /check
func (h *Handler) Check(c *gin.Context) {
	var req CheckRequest
	if !bindBody(c, &req) {
		return
	}

	res, err := h.invoker.Probe(c.Request.Context(), req.URL)
	if err != nil {
		var toolErr *ytdlp.ToolError
		switch {
		case errors.Is(err, ytdlp.ErrURLRequired):
			errResp(c, http.StatusBadRequest, "URL is required", "")
		case errors.Is(err, ytdlp.ErrURLNotAllowed):
			errResp(c, http.StatusBadRequest, "URL is not allowed", "")
		case errors.Is(err, ytdlp.ErrNoFormats):
			errResp(c, http.StatusNotFound, "No downloadable formats found", "")
		case errors.As(err, &toolErr) && toolErr.Op == "parse":
			errResp(c, http.StatusInternalServerError, "Failed to parse yt-dlp output", toolErr.Details)
		case errors.As(err, &toolErr):
			errResp(c, http.StatusInternalServerError, "Failed to fetch formats", toolErr.Details)
		default:
			errResp(c, http.StatusInternalServerError, "Failed to fetch formats", err.Error())
		}
		return
	}

	c.JSON(http.StatusOK, CheckResponse{
		Title:     res.Title,
		Formats:   toEntries(res.Formats),
		VideoOnly: toEntries(res.VideoOnly),
		AudioOnly: toEntries(res.AudioOnly),
		Combined:  toEntries(res.Combined),
	})
}

// Download POST /download
func (h *Handler) Download(c *gin.Context) {
	var req DownloadRequest
	if !bindBody(c, &req) {
		return
	}

	a, err := h.invoker.Download(c.Request.Context(), req.URL, string(req.Itag))
	if err != nil {
		var toolErr *ytdlp.ToolError
		switch {
		case errors.Is(err, ytdlp.ErrURLRequired):
			errResp(c, http.StatusBadRequest, "URL is required", "")
		case errors.Is(err, ytdlp.ErrURLNotAllowed):
			errResp(c, http.StatusBadRequest, "URL is not allowed", "")
		case errors.Is(err, ytdlp.ErrInvalidFormat):
			errResp(c, http.StatusBadRequest, "Invalid itag", "")
		case errors.Is(err, artifact.ErrArtifactNotFound):
			errResp(c, http.StatusInternalServerError, "No output file found", "")
		case errors.As(err, &toolErr):
			errResp(c, http.StatusInternalServerError, "Download failed", toolErr.Details)
		default:
			errResp(c, http.StatusInternalServerError, "Download failed", err.Error())
		}
		return
	}

	deadline := h.store.ScheduleExpiry(a, 0)
	metrics.ArtifactsCreatedTotal.Inc()
	h.logger.Info("serving %s (%d bytes) until %s", a.Name, a.Size, deadline.Format("15:04:05"))

	c.JSON(http.StatusOK, DownloadResponse{
		DownloadURL:      "/file/" + string(artifact.MintHandle(a)),
		ExpiresInMinutes: h.expiresInMinutes(),
	})
}

// File GET /file/:name
func (h *Handler) File(c *gin.Context) {
	a, err := h.store.Fetch(escapedParam(c, "/file/"))
	if err != nil {
		metrics.ArtifactFetchesTotal.WithLabelValues("not_found").Inc()
		errResp(c, http.StatusNotFound, "File expired or not found", "")
		return
	}

	metrics.ArtifactFetchesTotal.WithLabelValues("ok").Inc()
	c.FileAttachment(a.Path, a.Name)
}

// escapedParam returns the still-escaped path segment after prefix. gin's
// params are already decoded, and the store decodes handles itself.
func escapedParam(c *gin.Context, prefix string) artifact.Handle {
	return artifact.Handle(strings.TrimPrefix(c.Request.URL.EscapedPath(), prefix))
}

func (h *Handler) expiresInMinutes() int {
	return int(math.Ceil(h.store.Expiry().Minutes()))
}

func toEntries(formats []ytdlp.Format) []FormatEntry {
	out := make([]FormatEntry, 0, len(formats))
	for _, f := range formats {
		e := FormatEntry{Itag: f.ID, Quality: f.Label, Ext: f.Ext}
		if f.Filesize > 0 {
			size := f.Filesize
			e.Filesize = &size
		}
		out = append(out, e)
	}
	return out
}
