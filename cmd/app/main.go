package main

import (
	"EdubotKing-Backend/internal/api"
	"EdubotKing-Backend/internal/client"
	"EdubotKing-Backend/internal/config"
	"EdubotKing-Backend/internal/logging"
	"EdubotKing-Backend/internal/router"
	"EdubotKing-Backend/internal/service"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"
)

func main() {
	fs := pflag.NewFlagSet(os.Args[0], pflag.ExitOnError)
	config.Flags(fs)
	_ = fs.Parse(os.Args[1:])

	cfg, err := config.Load(fs)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Log, os.Stdout)
	slog.SetDefault(logger)
	gin.SetMode(gin.ReleaseMode)

	gemini := client.NewGeminiClient(cfg.Gemini, logger)
	studyService := service.NewStudyService(gemini, cfg.Gemini, logger)
	studyHandler := api.NewStudyHandler(studyService, cfg.Server.MaxUploadBytes, logger)

	r := router.SetupRouter(studyHandler, cfg, logger)

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("starting server", "addr", cfg.Server.Port, "text_model", cfg.Gemini.TextModel, "tts_model", cfg.Gemini.TTSModel)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced shutdown", "error", err)
	}
	logger.Info("server stopped")
}
