package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/mx-space/mdx-core/internal/app"
	"github.com/mx-space/mdx-core/internal/config"
	"github.com/mx-space/mdx-core/internal/modules/auth"
	"github.com/mx-space/mdx-core/internal/pkg/logger"
)

func main() {
	configPath := flag.String("config", config.DefaultConfigPath, "Path to YAML config file")
	hashPassword := flag.Bool("hash-password", false, "Read a password from stdin, print its bcrypt hash and exit")
	flag.Parse()

	if *hashPassword {
		os.Exit(printPasswordHash())
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fallback, _ := zap.NewProduction()
		fallback.Fatal("failed to load config", zap.Error(err))
	}

	log, err := logger.New(logger.Options{
		Dir:   cfg.LogDir(),
		Debug: cfg.IsDev(),
	})
	if err != nil {
		log, _ = zap.NewProduction()
		log.Warn("file logging unavailable, falling back to stdout", zap.Error(err))
	}
	defer log.Sync()

	application, err := app.New(log, cfg)
	if err != nil {
		log.Fatal("failed to initialize app", zap.Error(err))
	}

	srv := &http.Server{
		Addr:    application.Addr(),
		Handler: application.Router(),
	}

	go func() {
		log.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), app.ShutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("forced shutdown", zap.Error(err))
	}
	if err := application.Shutdown(ctx); err != nil {
		log.Error("final flush failed", zap.Error(err))
	}
	log.Info("server exited")
}

func printPasswordHash() int {
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(os.Stderr, "no password on stdin")
		return 1
	}
	hash, err := auth.HashPassword(strings.TrimRight(line, "\r\n"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Println(hash)
	return 0
}
