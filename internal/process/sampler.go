// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VidFetch - yt-dlp 下载与限时文件服务

package process

// Sampler observes CPU/memory usage of a running pid. NullSampler does nothing.
type Sampler interface {
	Start(pid int) error
	Sample()
	Stop()
	Peak() (cpu float64, memory uint64)
}

type nullSampler struct{}

// NewNullSampler returns a no-op sampler
func NewNullSampler() Sampler {
	return &nullSampler{}
}

func (s *nullSampler) Start(pid int) error     { return nil }
func (s *nullSampler) Sample()                 {}
func (s *nullSampler) Stop()                   {}
func (s *nullSampler) Peak() (float64, uint64) { return 0, 0 }
