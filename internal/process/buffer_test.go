// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VidFetch - yt-dlp 下载与限时文件服务

package process

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCappedBuffer(t *testing.T) {
	fired := 0
	b := newCappedBuffer(5, func() { fired++ })

	n, err := b.Write([]byte("abc"))
	assert.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = b.Write([]byte("defg"))
	assert.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "abcde", string(b.Bytes()))
	assert.Equal(t, 1, fired)

	b.Write([]byte("more"))
	assert.Equal(t, "abcde", string(b.Bytes()))
	assert.Equal(t, 1, fired)
}

func TestCappedBufferUnlimited(t *testing.T) {
	b := newCappedBuffer(0, nil)
	for i := 0; i < 100; i++ {
		b.Write([]byte("0123456789"))
	}
	assert.Len(t, b.Bytes(), 1000)
}

func TestLineWriterSplitsAcrossWrites(t *testing.T) {
	p := &recordingParser{}
	var mu sync.Mutex
	w := newLineWriter(newCappedBuffer(0, nil), p, &mu)

	w.Write([]byte("[download]  1"))
	w.Write([]byte("0.0% of 1MiB\r[download]  20"))
	w.Write([]byte(".0% of 1MiB\n\n"))
	w.Write([]byte("tail"))
	w.flush()

	assert.Equal(t, []string{
		"[download]  10.0% of 1MiB",
		"[download]  20.0% of 1MiB",
		"tail",
	}, p.Lines())
	assert.Equal(t, "[download]  10.0% of 1MiB\r[download]  20.0% of 1MiB\n\ntail", string(w.dst.Bytes()))
}

func TestScanLine(t *testing.T) {
	adv, tok := scanLine([]byte("\n\nabc\ndef"), false)
	assert.Equal(t, 6, adv)
	assert.Equal(t, "abc", string(tok))

	adv, tok = scanLine([]byte("def"), false)
	assert.Equal(t, 0, adv)
	assert.Nil(t, tok)

	adv, tok = scanLine([]byte("def"), true)
	assert.Equal(t, 3, adv)
	assert.Equal(t, "def", string(tok))
}
