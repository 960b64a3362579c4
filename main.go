package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"spaceminer/config"
	"spaceminer/server"
)

// SpaceMiner 入口：启动权威游戏状态服务（TCP）与管理端口（HTTP + WebSocket）
func main() {
	var (
		configPath = flag.String("config", "", "path to YAML config file")
		envPath    = flag.String("env", ".env", "path to .env file (optional)")
		host       = flag.String("host", "", "game listen host, overrides config")
		port       = flag.Int("port", 0, "game listen port, overrides config")
		obstacles  = flag.Int("obstacles", 0, "initial obstacle count, overrides config")
		adminAddr  = flag.String("admin", "", "admin/websocket listen address, e.g. localhost:8080")
		logLevel   = flag.String("log-level", "", "log level (debug, info, warn, error)")
		logFile    = flag.String("log-file", "", "rotating log file path")
	)
	flag.Parse()

	if err := config.LoadDotEnv(*envPath); err != nil {
		fmt.Fprintf(os.Stderr, "load env: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	// 只有显式传入的参数才覆盖配置
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "host":
			cfg.Host = *host
		case "port":
			cfg.Port = *port
		case "obstacles":
			cfg.World.ObstacleCount = *obstacles
		case "admin":
			cfg.AdminAddr = *adminAddr
		case "log-level":
			cfg.Log.Level = *logLevel
		case "log-file":
			cfg.Log.File = *logFile
		}
	})

	log, err := server.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer server.SyncLogger(log)

	srv, err := server.New(cfg, log)
	if err != nil {
		log.Fatalf("create server: %v", err)
	}
	if err := srv.Listen(); err != nil {
		log.Fatalf("listen: %v", err)
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve() }()

	// 优雅退出（Ctrl+C）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		log.Infof("received %v, shutting down...", sig)
	case err := <-serveErr:
		if err != nil {
			log.Errorf("serve: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warnf("shutdown: %v", err)
	}
	log.Info("server stopped")
}
