package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/PTAIM/backend/internal/config"
	"github.com/PTAIM/backend/internal/platform/cache"
	"github.com/PTAIM/backend/internal/platform/messaging"
)

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stdout)
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}
	return logger.Level(level).With().Timestamp().Str("service", "telemed").Logger()
}

// newCache connects to Redis when REDIS_URL is set. In development an
// unreachable Redis degrades to the in-process cache.
func newCache(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (cache.Cache, error) {
	if cfg.RedisURL == "" {
		return cache.NewMemoryCache(time.Minute), nil
	}
	rc, err := cache.NewRedisCache(ctx, cfg.RedisURL)
	if err == nil {
		logger.Info().Msg("connected to redis")
		return rc, nil
	}
	if !cfg.IsDev() {
		return nil, err
	}
	logger.Warn().Err(err).Msg("redis unavailable, using in-memory cache")
	return cache.NewMemoryCache(time.Minute), nil
}

type brokerDialer func(url string, logger zerolog.Logger) (messaging.Broker, error)

func dialRabbit(url string, logger zerolog.Logger) (messaging.Broker, error) {
	return messaging.DialRabbit(url, logger)
}

// newBroker dials RabbitMQ. In development a failed dial falls back to the
// in-process broker: emails are retained and image analysis times out.
func newBroker(cfg *config.Config, logger zerolog.Logger, dial brokerDialer) (messaging.Broker, error) {
	b, err := dial(cfg.RabbitURL, logger)
	if err == nil {
		logger.Info().Msg("connected to rabbitmq")
		return b, nil
	}
	if !cfg.IsDev() {
		return nil, err
	}
	logger.Warn().Err(err).Msg("rabbitmq unavailable, using in-memory broker")
	return messaging.NewMemoryBroker(), nil
}

// newEventStream writes appointment events to Kafka when brokers are
// configured; otherwise events stay in memory.
func newEventStream(cfg *config.Config) messaging.EventStream {
	if len(cfg.KafkaBrokers) == 0 {
		return messaging.NewMemoryStream()
	}
	return messaging.NewKafkaStream(cfg.KafkaBrokers, cfg.KafkaAppointmentTopic)
}

// signingKey returns the configured JWT secret. Development runs without one
// get a random key, so tokens do not survive a restart.
func signingKey(cfg *config.Config, logger zerolog.Logger) ([]byte, error) {
	if cfg.JWTSecretKey != "" {
		return []byte(cfg.JWTSecretKey), nil
	}
	if !cfg.IsDev() {
		return nil, fmt.Errorf("JWT_SECRET_KEY is required")
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate signing key: %w", err)
	}
	logger.Warn().Msg("JWT_SECRET_KEY not set, using an ephemeral signing key")
	return key, nil
}
