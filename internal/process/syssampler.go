// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VidFetch - yt-dlp 下载与限时文件服务

package process

import (
	"sync"

	gopsutilprocess "github.com/shirou/gopsutil/v3/process"
)

// sysSampler 使用 gopsutil 采集进程 CPU 和内存，并记录峰值
type sysSampler struct {
	mu   sync.RWMutex
	proc *gopsutilprocess.Process

	peakCPU    float64
	peakMemory uint64
}

// NewSysSampler creates a gopsutil backed sampler
func NewSysSampler() Sampler {
	return &sysSampler{}
}

func (s *sysSampler) Start(pid int) error {
	proc, err := gopsutilprocess.NewProcess(int32(pid))
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.proc = proc
	s.mu.Unlock()
	return nil
}

func (s *sysSampler) Sample() {
	s.mu.RLock()
	proc := s.proc
	s.mu.RUnlock()
	if proc == nil {
		return
	}

	var cpu float64
	var memory uint64
	if pct, err := proc.CPUPercent(); err == nil {
		cpu = pct
	}
	if info, err := proc.MemoryInfo(); err == nil && info != nil {
		memory = info.RSS
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cpu > s.peakCPU {
		s.peakCPU = cpu
	}
	if memory > s.peakMemory {
		s.peakMemory = memory
	}
}

func (s *sysSampler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.proc = nil
}

func (s *sysSampler) Peak() (float64, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.peakCPU, s.peakMemory
}
