package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/25x8/rewards/internal/rewards/config"
	"github.com/25x8/rewards/internal/rewards/server"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

func main() {
	setupLogging()

	// .env is optional
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Failed to read .env")
	}

	cfg, err := config.NewConfig()
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}

	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	// Amounts go over the wire as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	srv, err := server.NewServer(ctx, cfg)
	cancel()
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize server")
	}

	go func() {
		if err := srv.Run(context.Background()); err != nil {
			log.WithError(err).Fatal("Server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.WithField("signal", sig.String()).Info("Shutting down server...")
	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Fatal("Server shutdown error")
	}

	log.Info("Server stopped")
}

func setupLogging() {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	log.SetOutput(os.Stdout)
}
