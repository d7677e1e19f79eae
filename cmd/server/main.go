// Package main is the entry point for the Spillr server.
//
// main() keeps to the usual three jobs: read configuration, build the
// pluggable backends (upload store, mailer), start the server. Everything
// else lives in internal/.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/sakif/spillr/internal/mail"
	"github.com/sakif/spillr/internal/server"
	"github.com/sakif/spillr/internal/storage"
)

func main() {
	// .env is a development convenience; in production the variables come
	// from the real environment and the file simply isn't there.
	_ = godotenv.Load()

	logLevel := slog.LevelInfo
	if os.Getenv("LOG_DEBUG") != "" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))

	cfg, err := loadConfig()
	if err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Make sure the database directory exists before sqlite tries to
	// create the file inside it.
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		logger.Error("failed to create database directory", slog.String("error", err.Error()))
		os.Exit(1)
	}

	uploads, err := buildUploadStore(&cfg, logger)
	if err != nil {
		logger.Error("failed to set up upload storage", slog.String("error", err.Error()))
		os.Exit(1)
	}

	mailer := buildMailer(logger)

	srv, err := server.New(cfg, logger, uploads, mailer)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// loadConfig reads and validates the environment. JWT_SECRET is the one
// hard requirement — generate one with `openssl rand -hex 32`.
func loadConfig() (server.Config, error) {
	cfg := server.Config{
		Port:       8080,
		DBPath:     "data/spillr.db",
		Production: os.Getenv("ENV") == "production",

		JWTSecret: os.Getenv("JWT_SECRET"),

		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		GoogleCallbackURL:  os.Getenv("GOOGLE_CALLBACK_URL"),

		FrontendURL: os.Getenv("FRONTEND_URL"),
	}

	if portStr := os.Getenv("PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return cfg, fmt.Errorf("invalid PORT %q", portStr)
		}
		cfg.Port = port
	}
	if envDB := os.Getenv("DB_PATH"); envDB != "" {
		cfg.DBPath = envDB
	}

	if cfg.JWTSecret == "" {
		return cfg, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.GoogleCallbackURL == "" {
		cfg.GoogleCallbackURL = fmt.Sprintf("http://localhost:%d/api/auth/google/callback", cfg.Port)
	}
	if cfg.FrontendURL == "" {
		cfg.FrontendURL = fmt.Sprintf("http://localhost:%d", cfg.Port)
	}

	return cfg, nil
}

// buildUploadStore picks the profile-picture backend: an S3-compatible
// bucket when S3_BUCKET is set (AWS, Cloudflare R2 or MinIO via
// S3_ENDPOINT), local disk otherwise. The local path is recorded in the
// config so the server registers the /uploads/ static route.
func buildUploadStore(cfg *server.Config, logger *slog.Logger) (storage.UploadStore, error) {
	if bucket := os.Getenv("S3_BUCKET"); bucket != "" {
		s3cfg := storage.S3Config{
			AccessKey:     os.Getenv("S3_ACCESS_KEY"),
			SecretKey:     os.Getenv("S3_SECRET_KEY"),
			Bucket:        bucket,
			Region:        os.Getenv("S3_REGION"),
			Endpoint:      os.Getenv("S3_ENDPOINT"),
			PublicBaseURL: os.Getenv("S3_PUBLIC_URL"),
		}
		if s3cfg.Region == "" {
			s3cfg.Region = "auto"
		}
		logger.Info("uploads: using S3 bucket", slog.String("bucket", bucket))
		return storage.NewS3Store(context.Background(), s3cfg)
	}

	dir := os.Getenv("UPLOAD_DIR")
	if dir == "" {
		dir = "data/uploads"
	}
	store, err := storage.NewLocalStore(dir)
	if err != nil {
		return nil, err
	}
	cfg.LocalUploadDir = dir
	logger.Info("uploads: using local directory", slog.String("dir", dir))
	return store, nil
}

// buildMailer returns an SMTP transport when SMTP_HOST is configured, or
// the log-only mailer so email-dependent flows still work in development.
func buildMailer(logger *slog.Logger) mail.Mailer {
	host := os.Getenv("SMTP_HOST")
	if host == "" {
		logger.Warn("SMTP_HOST not set — emails will be logged, not sent")
		return &mail.LogMailer{Logger: logger}
	}

	port := 465
	if portStr := os.Getenv("SMTP_PORT"); portStr != "" {
		if p, err := strconv.Atoi(portStr); err == nil {
			port = p
		}
	}

	return mail.NewSMTPMailer(mail.SMTPConfig{
		Host:     host,
		Port:     port,
		Username: os.Getenv("SMTP_USERNAME"),
		Password: os.Getenv("SMTP_PASSWORD"),
		From:     os.Getenv("SMTP_FROM"),
	})
}
