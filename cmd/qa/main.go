// Package main is the entry point for the interactive assistant client.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/rohtheroos-84/Quality-Assurance-Assistant/internal/backend"
	"github.com/rohtheroos-84/Quality-Assurance-Assistant/internal/cli"
	"github.com/rohtheroos-84/Quality-Assurance-Assistant/internal/config"
	"github.com/rohtheroos-84/Quality-Assurance-Assistant/internal/ingest"
	"github.com/rohtheroos-84/Quality-Assurance-Assistant/internal/model"
	natsclient "github.com/rohtheroos-84/Quality-Assurance-Assistant/internal/nats"
	"github.com/rohtheroos-84/Quality-Assurance-Assistant/internal/service"
	"github.com/rohtheroos-84/Quality-Assurance-Assistant/pkg/logger"
	"github.com/rohtheroos-84/Quality-Assurance-Assistant/pkg/tracing"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	var log *logger.Logger
	if os.Getenv("ENV") == "development" {
		log, err = logger.NewDevelopment()
	} else {
		log, err = logger.New(cfg.LogLevel)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "qa-client", cfg.Telemetry.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(context.Background(), tp)
		}
	}

	if cfg.Telemetry.MetricsAddr != "" {
		metricsServer := &http.Server{
			Addr:              cfg.Telemetry.MetricsAddr,
			Handler:           promhttp.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warn("metrics listener stopped", zap.Error(err))
			}
		}()
		defer metricsServer.Close()
	}

	var publisher service.EventPublisher
	if cfg.NATS.URL != "" {
		nc, err := natsclient.Connect(natsclient.Config{
			URL:   cfg.NATS.URL,
			Token: cfg.NATS.Token,
			Name:  "qa-client",
		}, log)
		if err != nil {
			log.Warn("NATS unavailable, session events disabled", zap.Error(err))
		} else {
			defer nc.Close()
			publisher = natsclient.NewPublisher(nc, cfg.NATS.SubjectPrefix)
			log.Info("session events enabled",
				zap.String("prefix", cfg.NATS.SubjectPrefix),
				zap.Bool("connected", nc.IsConnected()),
			)
		}
	}

	client := backend.NewClient(cfg.Backend.URL, cfg.Backend.Timeout, log)
	assistant := service.NewAssistantClient(client, cfg.Session.RecipientEmail, log)
	uploader := ingest.NewCoordinator(ingest.NewNormalizer(client), cfg.Session.UploadConcurrency, log)

	session := service.NewSession(assistant, uploader, service.SessionOptions{
		Persona:   model.Persona(cfg.Session.Persona),
		Publisher: publisher,
	}, log)

	log.Info("session started",
		zap.String("session_id", session.ID()),
		zap.String("backend", client.BaseURL()),
	)
	if publisher != nil {
		log.Info("observe this session with a NATS subscription",
			zap.String("subject", natsclient.SessionFilter(cfg.NATS.SubjectPrefix, session.ID())),
		)
	}

	shell := cli.NewShell(session, cfg.Session.ExportDir, os.Stdout, log)
	if err := shell.Run(ctx, os.Stdin); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("shell stopped", zap.Error(err))
		os.Exit(1)
	}
}
