// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VidFetch - yt-dlp 下载与限时文件服务

package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/ZSC714725/vidfetch/internal/api"
	"github.com/ZSC714725/vidfetch/internal/artifact"
	"github.com/ZSC714725/vidfetch/internal/config"
	"github.com/ZSC714725/vidfetch/internal/logger"
	"github.com/ZSC714725/vidfetch/internal/metrics"
	"github.com/ZSC714725/vidfetch/internal/process"
	"github.com/ZSC714725/vidfetch/internal/toolchain"
	"github.com/ZSC714725/vidfetch/internal/ytdlp"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	bind := flag.String("bind", "", "Bind address (overrides config and PORT)")
	ytdlpBin := flag.String("ytdlp", "", "yt-dlp binary path (overrides config)")
	ffmpegBin := flag.String("ffmpeg", "", "FFmpeg binary path (overrides config)")
	dir := flag.String("dir", "", "Download directory (overrides config)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("Load config: %v", err)
		}
	}
	cfg.ApplyEnv(os.Getenv)

	if *bind != "" {
		cfg.Server.Bind = *bind
	}
	if *ytdlpBin != "" {
		cfg.Tools.YtDlp = *ytdlpBin
	}
	if *ffmpegBin != "" {
		cfg.Tools.FFmpeg = *ffmpegBin
	}
	if *dir != "" {
		cfg.Storage.Dir = *dir
	}

	logger := logger.New("vidfetch", cfg.Log.Level)

	// 内置 bin/ 目录中的工具需要可执行权限
	if err := toolchain.Prepare(cfg.Tools.BinDir); err != nil {
		logger.Warn("prepare %s: %v", cfg.Tools.BinDir, err)
	}
	ytdlpPath, err := toolchain.Resolve(cfg.Tools.YtDlp, cfg.Tools.BinDir)
	if err != nil {
		log.Fatalf("yt-dlp not found: %v", err)
	}
	ffmpegPath, err := toolchain.Resolve(cfg.Tools.FFmpeg, cfg.Tools.BinDir)
	if err != nil {
		logger.Warn("ffmpeg not found, merged downloads will fail: %v", err)
		ffmpegPath = ""
	}

	tools, err := toolchain.New(context.Background(), ytdlpPath, ffmpegPath)
	if err != nil {
		log.Fatalf("Toolchain: %v", err)
	}
	logger.Info("yt-dlp %s (%s)", tools.YtDlp.Version, tools.YtDlp.Path)
	if tools.Available() {
		logger.Info("ffmpeg %s (%s)", tools.FFmpeg.Version, tools.FFmpeg.Path)
	}

	store, err := artifact.NewStore(artifact.Config{
		Dir:           cfg.Storage.Dir,
		Extensions:    cfg.Storage.Extensions,
		Expiry:        cfg.Storage.Expiry,
		SweepInterval: cfg.Storage.SweepInterval,
		Logger:        logger.With("artifact"),
	})
	if err != nil {
		log.Fatalf("Artifact store: %v", err)
	}
	// 重启后之前的过期计划已丢失
	store.CleanupStale(cfg.Storage.Expiry)
	if err := store.Start(); err != nil {
		log.Fatalf("Expiry sweeper: %v", err)
	}
	defer store.Stop()

	validator, err := ytdlp.NewValidator(cfg.Check.AllowURLs, cfg.Check.BlockURLs)
	if err != nil {
		log.Fatalf("URL filter: %v", err)
	}

	invoker, err := ytdlp.New(ytdlp.Config{
		Binary:            tools.YtDlp.Path,
		FFmpeg:            tools.FFmpeg.Path,
		Store:             store,
		ProbeMaxOutput:    cfg.Limits.ProbeMaxOutput,
		DownloadMaxOutput: cfg.Limits.DownloadMaxOutput,
		Timeout:           cfg.Limits.Timeout,
		ValidateFormat:    cfg.Check.ValidateItag,
		IsolateRequests:   cfg.Storage.IsolateRequests,
		Validator:         validator,
		Logger:            logger.With("ytdlp"),
		NewSampler:        process.NewSysSampler,
		LogLines:          100,
	})
	if err != nil {
		log.Fatalf("yt-dlp init: %v", err)
	}

	handler := api.NewHandler(invoker, store, tools, logger.With("api"))

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	corsConfig := cors.DefaultConfig()
	if len(cfg.Server.AllowedOrigins) == 0 || cfg.Server.AllowedOrigins[0] == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.Server.AllowedOrigins
	}
	r.Use(gin.Recovery(), api.RequestLogger(logger.With("http")), cors.New(corsConfig), metrics.Middleware("/metrics"))
	handler.Register(r)

	srv := &http.Server{
		Addr:              cfg.Server.Bind,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("VidFetch listening on %s (downloads: %s, expiry: %s)", cfg.Server.Bind, store.Dir(), cfg.Storage.Expiry)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown: %v", err)
	}
}
