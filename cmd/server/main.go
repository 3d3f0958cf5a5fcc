package main

import (
	"expvar"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/chanakyavasantha/violens/internal/app"
	"github.com/chanakyavasantha/violens/internal/conf"
	"github.com/ixugo/goddd/pkg/system"
)

// 编译时通过 -ldflags 注入
var (
	buildVersion = "dev"
	gitBranch    = "dev"
	gitHash      = "unknown"
)

func main() {
	configPath := flag.String("config", filepath.Join(system.Getwd(), "configs", "config.toml"), "配置文件路径")
	flag.Parse()

	expvar.NewString("git_branch").Set(gitBranch)
	expvar.NewString("git_hash").Set(gitHash)

	bc, err := conf.SetupConfig(*configPath)
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}
	bc.BuildVersion = buildVersion

	level := slog.LevelInfo
	if bc.Server.Debug {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	slog.Info("violens starting", "version", buildVersion, "config", *configPath)

	shutdown, err := app.Run(bc, log)
	if err != nil {
		slog.Error("start server", "err", err)
		os.Exit(1)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	s := <-sig
	slog.Info("received shutdown signal", "signal", s.String())
	shutdown()
}
