package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"feedback-gateway/internal/adapters/github"
	"feedback-gateway/internal/adapters/telegram"
	"feedback-gateway/internal/domain"
	"feedback-gateway/internal/infra/cache"
	"feedback-gateway/internal/infra/config"
	httpinfra "feedback-gateway/internal/infra/http"
	"feedback-gateway/internal/infra/log"
	"feedback-gateway/internal/infra/metrics"
	"feedback-gateway/internal/usecase/feedback"
)

func main() {
	cfg := config.Load()
	logger := log.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.GitHub.Token == "" {
		logger.Warn().Msg("GITHUB_TOKEN не задан, отзывы будут отклоняться")
	}

	newTracker := func(token string) (domain.IssueTracker, error) {
		return github.New(token,
			github.WithBaseURL(cfg.GitHub.APIURL),
			github.WithTimeout(cfg.GitHub.Timeout),
		)
	}

	var opts []feedback.Option
	if cfg.DedupEnabled() {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis недоступен, повторы будут проверяться по мере восстановления")
		}
		opts = append(opts, feedback.WithDedup(cache.NewRedis(rdb, "feedback:"), cfg.Dedup.TTL))
		logger.Info().Dur("ttl", cfg.Dedup.TTL).Msg("защита от повторных отзывов включена")
	}
	if cfg.NotifyEnabled() {
		botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
		if err != nil {
			logger.Error().Err(err).Msg("не удалось создать бота, уведомления отключены")
		} else {
			notifier := telegram.NewNotifier(botAPI, cfg.Telegram.NotifyChatID, logger.With().Str("component", "telegram").Logger())
			opts = append(opts, feedback.WithNotifier(notifier))
		}
	}

	svc := feedback.NewService(newTracker, cfg.GitHub.Token, cfg.GitHub.Owner, logger.With().Str("component", "feedback").Logger(), opts...)

	server := httpinfra.NewServer(logger.With().Str("component", "http").Logger())
	httpinfra.MountFeedback(server.Router, svc, logger.With().Str("component", "feedback_http").Logger())

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), cfg.MetricsAddr)
	go func() {
		if err := server.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("api: сервер остановлен")
			stop()
		}
	}()
	<-ctx.Done()
	logger.Info().Msg("api: остановка")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("api: ошибка остановки")
	}
}
