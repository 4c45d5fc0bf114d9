package cli

import (
	"alertbot/internal/auth"
	"alertbot/internal/dividend"
	"alertbot/internal/engine"
	"alertbot/internal/exchange/ig"
	"alertbot/internal/logger"
	"alertbot/internal/server"
	"alertbot/internal/stream"
	"alertbot/internal/tickers"
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newServeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Запустить вебхук-сервер и дашборд",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func runServe(parent context.Context, opts *options) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("Некорректная конфигурация: %w", err)
	}

	level := cfg.Runtime.Log.Level
	if opts.debug {
		level = "debug"
	}
	log := logger.New(logger.Config{
		Level:      level,
		Format:     cfg.Runtime.Log.Format,
		Output:     cfg.Runtime.Log.File,
		MaxSize:    cfg.Runtime.Log.MaxSize,
		MaxBackups: cfg.Runtime.Log.MaxBackups,
		MaxAge:     cfg.Runtime.Log.MaxAge,
		Compress:   cfg.Runtime.Log.Compress,
	})
	log.WithFields(logrus.Fields{
		"account_type": cfg.Exchange.AccountType,
		"base_url":     cfg.Exchange.BaseUrl,
	}).Info("Бот запущен.")

	store := tickers.NewStore(cfg.Trading.TickersFile, log)
	if err := store.Load(); err != nil {
		return err
	}

	session := ig.NewSession(cfg.Exchange.BaseUrl, ig.Credentials{
		Identifier: cfg.Exchange.Username,
		Password:   cfg.Exchange.Password,
		ApiKey:     cfg.Exchange.ApiKey,
	}, log)
	client := ig.New(cfg.Exchange.BaseUrl, cfg.Exchange.ApiKey, session, ig.Options{
		Currency: cfg.Exchange.Currency,
		Expiry:   cfg.Exchange.Expiry,
	}, log)
	if !session.EnsureAuthenticated(ctx) {
		log.Warn("Не удалось войти в IG при старте, повторим при первом запросе.")
	}

	eng := engine.New(cfg, client, store, nil, log)

	users, err := auth.OpenUsers(cfg.Server.UsersFile, log)
	if err != nil {
		return err
	}

	hub := stream.NewHub(log)
	defer hub.Close()

	refresher := dividend.NewRefresher(store, dividend.NewYahooFetcher(cfg.Dividend.BaseUrl, log), log)
	if cfg.Dividend.Enabled {
		sched, err := refresher.Schedule(ctx, cfg.Dividend.Cron)
		if err != nil {
			return err
		}
		defer sched.Stop()
	}

	srv := server.New(cfg.Server, server.Deps{
		Engine:    eng,
		Tickers:   store,
		Users:     users,
		Issuer:    auth.NewIssuer(cfg.Server.JWTSecret, cfg.Server.SessionTTL),
		Feed:      hub,
		Dividends: refresher,
	}, log)

	if err := srv.Run(ctx); err != nil {
		log.WithError(err).Error("HTTP сервер завершился с ошибкой.")
		return err
	}
	log.Info("Бот остановлен.")
	return nil
}
