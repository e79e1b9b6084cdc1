// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VidFetch - yt-dlp 下载与限时文件服务

package config

import (
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultPort          = "5000"
	DefaultExpiry        = 10 * time.Minute
	DefaultSweepInterval = 5 * time.Second
	DefaultProbeOutput   = 10 << 20
	DefaultDownloadOut   = 50 << 20
	DefaultToolTimeout   = 15 * time.Minute
)

// Config 应用配置
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Tools   ToolsConfig   `yaml:"tools"`
	Storage StorageConfig `yaml:"storage"`
	Limits  LimitsConfig  `yaml:"limits"`
	Check   CheckConfig   `yaml:"check"`
	Log     LogConfig     `yaml:"log"`
}

// ServerConfig 服务配置
type ServerConfig struct {
	Bind           string   `yaml:"bind"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// ToolsConfig 外部工具配置
type ToolsConfig struct {
	YtDlp  string `yaml:"ytdlp"`
	FFmpeg string `yaml:"ffmpeg"`
	// BinDir holds vendored binaries; they are made executable on startup.
	BinDir string `yaml:"bin_dir"`
}

// StorageConfig 下载目录与过期策略
type StorageConfig struct {
	Dir             string        `yaml:"dir"`
	Expiry          time.Duration `yaml:"expiry"`
	SweepInterval   time.Duration `yaml:"sweep_interval"`
	Extensions      []string      `yaml:"extensions"`
	IsolateRequests bool          `yaml:"isolate_requests"`
}

// LimitsConfig 子进程限制
type LimitsConfig struct {
	ProbeMaxOutput    int64         `yaml:"probe_max_output_bytes"`
	DownloadMaxOutput int64         `yaml:"download_max_output_bytes"`
	Timeout           time.Duration `yaml:"timeout"`
}

// CheckConfig URL 与格式校验
type CheckConfig struct {
	ValidateItag bool     `yaml:"validate_itag"`
	AllowURLs    []string `yaml:"allow_urls"`
	BlockURLs    []string `yaml:"block_urls"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Bind:           ":" + DefaultPort,
			AllowedOrigins: []string{"*"},
		},
		Tools: ToolsConfig{
			YtDlp:  "yt-dlp",
			FFmpeg: "ffmpeg",
			BinDir: "bin",
		},
		Storage: StorageConfig{
			Dir:             "downloads",
			Expiry:          DefaultExpiry,
			SweepInterval:   DefaultSweepInterval,
			Extensions:      []string{".mp4", ".mkv", ".webm", ".m4a", ".mp3", ".opus"},
			IsolateRequests: true,
		},
		Limits: LimitsConfig{
			ProbeMaxOutput:    DefaultProbeOutput,
			DownloadMaxOutput: DefaultDownloadOut,
			Timeout:           DefaultToolTimeout,
		},
		Check: CheckConfig{ValidateItag: true},
		Log:   LogConfig{Level: "info"},
	}
}

// Load 从 YAML 文件加载配置
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg.fill()
	return cfg, nil
}

// ApplyEnv applies environment overrides. PORT selects the listening port.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if port := strings.TrimSpace(getenv("PORT")); port != "" {
		c.Server.Bind = ":" + port
	}
	if level := strings.TrimSpace(getenv("LOG_LEVEL")); level != "" {
		c.Log.Level = level
	}
}

// 填充空值
func (c *Config) fill() {
	def := Default()
	if c.Server.Bind == "" {
		c.Server.Bind = def.Server.Bind
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = def.Server.AllowedOrigins
	}
	if c.Tools.YtDlp == "" {
		c.Tools.YtDlp = def.Tools.YtDlp
	}
	if c.Tools.FFmpeg == "" {
		c.Tools.FFmpeg = def.Tools.FFmpeg
	}
	if c.Storage.Dir == "" {
		c.Storage.Dir = def.Storage.Dir
	}
	if c.Storage.Expiry <= 0 {
		c.Storage.Expiry = def.Storage.Expiry
	}
	if c.Storage.SweepInterval <= 0 {
		c.Storage.SweepInterval = def.Storage.SweepInterval
	}
	if len(c.Storage.Extensions) == 0 {
		c.Storage.Extensions = def.Storage.Extensions
	}
	if c.Limits.ProbeMaxOutput <= 0 {
		c.Limits.ProbeMaxOutput = def.Limits.ProbeMaxOutput
	}
	if c.Limits.DownloadMaxOutput <= 0 {
		c.Limits.DownloadMaxOutput = def.Limits.DownloadMaxOutput
	}
	if c.Limits.Timeout < 0 {
		c.Limits.Timeout = 0
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
}
