package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/micumarket/composer/internal/server"
	"github.com/micumarket/composer/internal/store"
	"github.com/micumarket/composer/shared/config"
	"github.com/micumarket/composer/shared/logger"
)

func main() {
	var configFolder string
	flag.StringVar(&configFolder, "config_folder", "config", "path to folder with configs")
	flag.Parse()

	cfg := config.MustLoad(configFolder)
	logger.Initialize(cfg.Log.Level, cfg.Log.JSON)

	srv := server.New(cfg, store.New())
	httpServer := &http.Server{Addr: cfg.Server.Addr, Handler: srv.Router()}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Log.Info("composerd listening", "addr", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Error("server failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Log.Info("shutting down")

	srv.Hub().CloseAll()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("shutdown failed", "err", err)
	}
}
