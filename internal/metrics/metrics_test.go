// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VidFetch - yt-dlp 下载与限时文件服务

package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMiddlewareRecordsRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware("/metrics"))
	r.GET("/file/:name", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.GET("/metrics", func(c *gin.Context) { c.Status(http.StatusOK) })

	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/file/:name", "404"))

	for _, name := range []string{"a.mp4", "b.mp4"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/file/"+name, nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	}

	after := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/file/:name", "404"))
	assert.Equal(t, 2.0, after-before)

	skippedBefore := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/metrics", "200"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, skippedBefore, testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/metrics", "200")))
	assert.Equal(t, 0.0, testutil.ToFloat64(HTTPRequestsInFlight))
}
