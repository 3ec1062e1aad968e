package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.io/infrasutra/maildrop/internal/api"
	"github.io/infrasutra/maildrop/internal/auth"
	"github.io/infrasutra/maildrop/internal/config"
	"github.io/infrasutra/maildrop/internal/dropserver"
	"github.io/infrasutra/maildrop/internal/journal"
	"github.io/infrasutra/maildrop/internal/ratelimit"
	"github.io/infrasutra/maildrop/internal/spool"
	"github.io/infrasutra/maildrop/internal/sse"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	ctx := context.Background()

	store, err := spool.New(cfg.SpoolDir)
	if err != nil {
		logger.Error("open spool", "error", err)
		os.Exit(1)
	}

	jrnl, err := journal.Open(ctx, cfg.JournalPath)
	if err != nil {
		logger.Error("open journal", "error", err)
		os.Exit(1)
	}
	defer jrnl.Close()

	if err := jrnl.EnsureSchema(ctx); err != nil {
		logger.Error("ensure journal schema", "error", err)
		os.Exit(1)
	}
	if cfg.JournalPath == "" {
		logger.Warn("JOURNAL_PATH not set; journal is in-memory and lost on restart")
	}

	authenticator, err := auth.LoadStatic(cfg.UsersPath)
	if err != nil {
		logger.Error("load users", "path", cfg.UsersPath, "error", err)
		os.Exit(1)
	}

	tokens, err := auth.NewTokenManager(cfg.AuthSecret, 24*time.Hour)
	if err != nil {
		logger.Error("init auth tokens", "error", err)
		os.Exit(1)
	}
	if cfg.AuthSecret == "" {
		logger.Warn("AUTH_SECRET not set; admin sessions reset on restart")
	}

	limiter := ratelimit.New(cfg.LoginMaxFails, cfg.LoginLockout)
	hub := sse.NewHub()

	dropAddr := fmt.Sprintf(":%d", cfg.DropPort)
	dropSrv := dropserver.New(dropAddr, store, authenticator, limiter, jrnl, hub, logger)

	apiServer := api.NewServer(store, jrnl, authenticator, tokens, hub, logger)
	httpAddr := fmt.Sprintf(":%d", cfg.HTTPPort)
	httpSrv := &http.Server{
		Addr:    httpAddr,
		Handler: apiServer,
	}

	go func() {
		if err := dropSrv.ListenAndServe(); err != nil {
			logger.Error("drop server stopped", "error", err)
		}
	}()

	go func() {
		logger.Info("http server listening", "addr", httpAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server stopped", "error", err)
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(ctx); err != nil {
		logger.Error("shutdown http", "error", err)
	}
	if err := dropSrv.Close(); err != nil {
		logger.Error("shutdown drop server", "error", err)
	}
}
