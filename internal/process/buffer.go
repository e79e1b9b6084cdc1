// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VidFetch - yt-dlp 下载与限时文件服务

package process

import (
	"bytes"
	"sync"
	"unicode/utf8"
)

// cappedBuffer keeps at most limit bytes. Once the limit is hit the overflow
// callback fires and further writes are discarded, so the writer never blocks.
type cappedBuffer struct {
	mu         sync.Mutex
	buf        bytes.Buffer
	limit      int64
	overflowed bool
	onOverflow func()
}

func newCappedBuffer(limit int64, onOverflow func()) *cappedBuffer {
	return &cappedBuffer{limit: limit, onOverflow: onOverflow}
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	if b.overflowed {
		b.mu.Unlock()
		return len(p), nil
	}
	if b.limit > 0 && int64(b.buf.Len()+len(p)) > b.limit {
		b.buf.Write(p[:b.limit-int64(b.buf.Len())])
		b.overflowed = true
		b.mu.Unlock()
		if b.onOverflow != nil {
			b.onOverflow()
		}
		return len(p), nil
	}
	b.buf.Write(p)
	b.mu.Unlock()
	return len(p), nil
}

func (b *cappedBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.buf.Bytes()...)
}

// lineWriter forwards raw bytes to dst and feeds complete lines to the parser.
type lineWriter struct {
	dst     *cappedBuffer
	parser  Parser
	lock    *sync.Mutex
	pending []byte
}

func newLineWriter(dst *cappedBuffer, parser Parser, lock *sync.Mutex) *lineWriter {
	return &lineWriter{dst: dst, parser: parser, lock: lock}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.dst.Write(p)

	w.pending = append(w.pending, p...)
	for {
		advance, token := scanLine(w.pending, false)
		if token != nil {
			w.parse(string(token))
		}
		if advance == 0 {
			break
		}
		w.pending = w.pending[advance:]
		if token == nil {
			break
		}
	}

	// a single runaway line must not grow without bound
	if w.dst.limit > 0 && int64(len(w.pending)) > w.dst.limit {
		w.pending = w.pending[:0]
	}
	return len(p), nil
}

// flush parses a trailing line that had no terminator
func (w *lineWriter) flush() {
	if _, token := scanLine(w.pending, true); len(token) > 0 {
		w.parse(string(token))
	}
	w.pending = nil
}

func (w *lineWriter) parse(line string) {
	w.lock.Lock()
	defer w.lock.Unlock()
	w.parser.Parse(line)
}

// scanLine splits on \n and \r (progress bars rewrite lines with \r)
func scanLine(data []byte, atEOF bool) (advance int, token []byte) {
	start := 0
	for start < len(data) {
		r, w := utf8.DecodeRune(data[start:])
		if r != '\n' && r != '\r' {
			break
		}
		start += w
	}

	for i := start; i < len(data); {
		r, w := utf8.DecodeRune(data[i:])
		if r == '\n' || r == '\r' {
			return i + w, data[start:i]
		}
		i += w
	}

	if atEOF && len(data) > start {
		return len(data), data[start:]
	}
	return start, nil
}
