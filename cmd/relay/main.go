package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/devricklin/feishu-request-relay/internal/api"
	"github.com/devricklin/feishu-request-relay/internal/biz/usecase"
	"github.com/devricklin/feishu-request-relay/internal/clock"
	"github.com/devricklin/feishu-request-relay/internal/conf"
	"github.com/devricklin/feishu-request-relay/internal/data"
	"github.com/devricklin/feishu-request-relay/internal/infra/feishu"
	"github.com/devricklin/feishu-request-relay/internal/logging"
	"github.com/devricklin/feishu-request-relay/internal/server"
	"github.com/devricklin/feishu-request-relay/internal/service"
)

const shutdownTimeout = 15 * time.Second

func main() {
	log := logging.NewLoggerWithService("feishu-relay")

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Debug("No .env file found, using environment variables")
	}

	// Load configuration
	cfg := conf.LoadFromEnv()
	if cfg.Debug {
		log.SetLevel(logrus.DebugLevel)
	}
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("Invalid config")
	}

	// Initialize clients and repositories
	feishuClient := feishu.NewClient(cfg.Feishu.AppID, cfg.Feishu.AppSecret, log)
	repos, err := data.NewRepositories(cfg, feishuClient, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to create repositories")
	}
	log.WithFields(logging.Fields{
		"driver": cfg.Store.Driver,
		"filter": repos.Filter != nil,
	}).Info("Link store opened")

	// Initialize service layer
	var filterUC *usecase.FilterUsecase
	if repos.Filter != nil {
		filterUC = usecase.NewFilterUsecase(repos.Filter, log)
	}
	metrics := service.NewMetrics()
	relaySvc := service.NewRelayService(service.RelayOptions{
		StaffChatID:     cfg.Feishu.StaffChatID,
		RequireBudget:   cfg.Relay.RequireBudget,
		TextLimit:       cfg.Relay.TextLimit,
		MinInterval:     cfg.Relay.MinInterval,
		DedupWindow:     cfg.Relay.DedupWindow,
		DedupMaxEntries: cfg.Relay.DedupMaxEntries,
		Album:           cfg.Relay.ToAlbumConfig(),
		Tags:            cfg.Tags.Table(),
		MaxTags:         cfg.Relay.MaxTags,

		CaptionGroupingKey: server.ImageGroupingKey,
	}, repos.Message, repos.Link, filterUC, clock.System(), metrics, log)

	sweeper := service.NewSweeper(relaySvc, cfg.Relay.SweepInterval, log)
	apiServer := api.NewServer(relaySvc, metrics.Registry, cfg.API.Addr, log)
	feishuServer := server.NewFeishuServer(feishuClient, relaySvc, cfg.Feishu.StaffChatID, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// The WebSocket client does not return on cancellation
		errCh := make(chan error, 1)
		go func() { errCh <- feishuServer.Start(gctx) }()
		select {
		case err := <-errCh:
			return err
		case <-gctx.Done():
			return nil
		}
	})
	g.Go(apiServer.Start)
	g.Go(func() error {
		sweeper.Start(gctx)
		<-gctx.Done()
		sweeper.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return apiServer.Stop(shutdownCtx)
	})

	log.WithFields(logging.Fields{
		"staff_chat": cfg.Feishu.StaffChatID,
		"api_addr":   cfg.API.Addr,
	}).Info("Starting Feishu request relay")

	err = g.Wait()

	// Stop dispatching, then flush open albums, before the link store goes away
	feishuServer.Stop()
	relaySvc.Close()
	if cerr := repos.Close(); cerr != nil {
		log.WithError(cerr).Warn("Failed to close link store")
	}

	if err != nil && ctx.Err() == nil {
		log.WithError(err).Error("Relay stopped")
		os.Exit(1)
	}
	log.Info("Relay stopped")
}
