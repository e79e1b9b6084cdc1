// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VidFetch - yt-dlp 下载与限时文件服务

package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"DEBUG ":  zerolog.DebugLevel,
		"warn":    zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"info":    zerolog.InfoLevel,
		"":        zerolog.InfoLevel,
		"bogus":   zerolog.InfoLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestLoggerWritesStructuredLines(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "vidfetch", "info").With("artifact")

	l.Debug("hidden %d", 1)
	l.Info("deleted %s", "a.mp4")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "deleted a.mp4", entry["message"])
	assert.Equal(t, "vidfetch", entry["component"])
	assert.Equal(t, "artifact", entry["module"])
}

func TestNopDiscards(t *testing.T) {
	l := Nop()
	l.Error("nothing %s", "here")
	l.With("x").Warn("still nothing")
}
