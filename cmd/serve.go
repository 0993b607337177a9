package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "categorybot/docs"
	"categorybot/internal/bot"
	"categorybot/internal/handlers"
	"categorybot/internal/jobs"
	"categorybot/internal/middleware"
	"categorybot/internal/telegram"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	var noBot bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Telegram bot, the HTTP admin API and the snapshot scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, opts, noBot)
		},
	}
	cmd.Flags().BoolVar(&noBot, "no-bot", false, "serve only the HTTP API, without Telegram polling")
	return cmd
}

func serve(ctx context.Context, opts *rootOptions, noBot bool) error {
	cfg, logger := opts.cfg, opts.logger

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", zap.Error(err))
		return err
	}
	defer a.Close()

	scheduler, err := jobs.NewJobScheduler(a.snapshots, cfg.Snapshots.Interval, logger.Named("scheduler"))
	if err != nil {
		return err
	}

	var cachePinger handlers.Pinger
	if cfg.CacheEnabled() {
		cachePinger = a.cache
	}

	// The HTTP router cannot deliver attachments, so it gets no file fetcher
	httpRouter := bot.NewRouter(a.categories, nil, logger.Named("router"))
	server := handlers.NewServer(logger.Named("http"),
		middleware.NewVersionMiddleware("categorybot"),
		handlers.NewCategoryHandlers(a.categories, a.snapshots, logger.Named("http")),
		handlers.NewCommandHandlers(httpRouter),
		handlers.NewHealthHandlers(a.repo, cachePinger, a.storage, cfg.Minio.Bucket, version))

	var poller *telegram.Poller
	switch {
	case noBot:
		logger.Info("telegram polling disabled by flag")
	case cfg.Telegram.Token == "":
		logger.Warn("TELEGRAM_BOT_TOKEN is not set; telegram polling disabled")
	default:
		api, err := telegram.NewAPI(cfg.Telegram.Token, cfg.Telegram.Debug)
		if err != nil {
			return err
		}
		logger.Info("authorized on telegram", zap.String("username", api.Self.UserName))
		chatRouter := bot.NewRouter(a.categories, telegram.NewFileFetcher(api, nil), logger.Named("router"))
		poller = telegram.NewPoller(api, chatRouter, cfg.Telegram.PollTimeout, logger.Named("telegram"))
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("categorybot server starting", zap.String("version", version), zap.String("addr", cfg.Addr()),
			zap.String("store", cfg.Store.Driver))
		if err := server.Start(cfg.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return scheduler.Run(gctx)
	})

	if poller != nil {
		g.Go(func() error {
			return poller.Run(gctx)
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
		return err
	}
	logger.Info("server stopped")
	return nil
}
