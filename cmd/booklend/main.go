package main

import (
	"log"
	"log/slog"
	"net/http"
	"time"

	"booklend/internal/app"
	"booklend/internal/config"
	"booklend/internal/server"
	"booklend/internal/usertoken"
	"booklend/internal/util"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	tokenVerifier, err := usertoken.NewVerifier(usertoken.Config{
		Secret:   cfg.TokenSecret,
		Issuer:   cfg.TokenIssuer,
		Audience: cfg.TokenAudience,
	})
	if err != nil {
		log.Fatalf("failed to init token verifier: %v", err)
	}

	appCore, err := app.New(app.Config{
		File: cfg,
		Log:  logger,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	httpServer, err := server.New(server.Config{
		App:            appCore,
		TokenVerifier:  tokenVerifier,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("booklend server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
