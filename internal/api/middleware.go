// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VidFetch - yt-dlp 下载与限时文件服务

package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ZSC714725/vidfetch/internal/logger"
)

// RequestLogger logs one line per request through log
func RequestLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		line := "%s %s -> %d (%s, %s)"
		args := []interface{}{c.Request.Method, c.Request.URL.Path, status, time.Since(start).Round(time.Millisecond), c.ClientIP()}
		switch {
		case status >= 500:
			log.Error(line, args...)
		case status >= 400:
			log.Warn(line, args...)
		default:
			log.Info(line, args...)
		}
	}
}
