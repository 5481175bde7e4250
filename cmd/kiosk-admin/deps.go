package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/redis/go-redis/v9"

	"github.com/pribylovaa/kiosk-admin/internal/config"
	"github.com/pribylovaa/kiosk-admin/internal/events"
	"github.com/pribylovaa/kiosk-admin/internal/notify"
	"github.com/pribylovaa/kiosk-admin/internal/session"
)

// closers — ресурсы, закрываемые в обратном порядке при остановке.
type closers []func()

func (c *closers) add(fn func()) { *c = append(*c, fn) }

func (c closers) run() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
	}
}

// redisClient открывает общий клиент Redis, если он нужен хранилищу или событиям.
func redisClient(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	if cfg.Session.Store != "redis" && cfg.Events.Driver != "redis" {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("redis url: %w", err)
	}

	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return rdb, nil
}

// buildStore выбирает хранилище сессии по session.store.
func buildStore(ctx context.Context, cfg *config.Config, rdb *redis.Client, cl *closers) (session.Store, error) {
	switch cfg.Session.Store {
	case "redis":
		return session.NewRedisStore(rdb, cfg.Session.RedisPrefix, cfg.Session.Profile, cfg.Session.RedisTTL), nil
	case "postgres":
		st, err := session.NewPostgresStore(ctx, cfg.Postgres.URL, cfg.Session.Profile)
		if err != nil {
			return nil, err
		}
		cl.add(st.Close)

		if !cfg.Postgres.SkipMigrate {
			if err := st.EnsureSchema(ctx); err != nil {
				return nil, err
			}
		}
		return st, nil
	default:
		return session.NewMemoryStore(), nil
	}
}

// buildNotifier собирает fan-out: лог всегда, Telegram и история в MongoDB по конфигу.
func buildNotifier(ctx context.Context, cfg *config.Config, log *slog.Logger, cl *closers) (notify.Notifier, error) {
	sinks := notify.Multi{notify.NewLog(log)}

	if cfg.Notify.TelegramToken != "" {
		sinks = append(sinks, notify.NewTelegram(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
			cfg.Notify.TelegramPrefix,
			notify.Severity(cfg.Notify.TelegramMinSev),
		))
		log.Info("notify_telegram_enabled")
	}

	if cfg.Notify.MongoURI != "" {
		h, err := notify.NewHistory(ctx, cfg.Notify.MongoURI, cfg.Notify.MongoRetention)
		if err != nil {
			return nil, err
		}
		cl.add(func() { _ = h.Close(context.Background()) })
		sinks = append(sinks, h)
		log.Info("notify_history_enabled")
	}

	return sinks, nil
}

// buildEvents возвращает publisher/subscriber для топика событий сессии.
func buildEvents(cfg *config.Config, rdb *redis.Client, log *slog.Logger, cl *closers) (message.Publisher, message.Subscriber, error) {
	if cfg.Events.Driver == "redis" {
		pub, sub, err := events.NewRedisStream(rdb, cfg.Events.ConsumerGroup, log)
		if err != nil {
			return nil, nil, err
		}
		cl.add(func() {
			_ = sub.Close()
			_ = pub.Close()
		})
		return pub, sub, nil
	}

	gc := events.NewGoChannel(log)
	cl.add(func() { _ = gc.Close() })
	return gc, gc, nil
}
