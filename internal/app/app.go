package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/chanakyavasantha/violens/internal/conf"
)

// Run 装配依赖并启动 HTTP 服务，返回优雅退出函数
func Run(bc *conf.Bootstrap, log *slog.Logger) (func(), error) {
	handler, cleanup, err := wireApp(bc, log)
	if err != nil {
		return nil, fmt.Errorf("wire app: %w", err)
	}

	srv := http.Server{
		Addr:              fmt.Sprintf(":%d", bc.Server.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("http server started", "port", bc.Server.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http server exited", "err", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			slog.Error("http server shutdown", "err", err)
		}
		cleanup()
	}, nil
}
