package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tanpawarit/voice-booking-agent/backend/booking"
	"github.com/tanpawarit/voice-booking-agent/backend/weather"
	configx "github.com/tanpawarit/voice-booking-agent/pkg/config"
	"github.com/tanpawarit/voice-booking-agent/pkg/httpserver"
	livekitx "github.com/tanpawarit/voice-booking-agent/pkg/livekit"
	logx "github.com/tanpawarit/voice-booking-agent/pkg/logger"
	_ "github.com/tanpawarit/voice-booking-agent/pkg/logger/autoload"
	"github.com/tanpawarit/voice-booking-agent/pkg/notify"
	qstashx "github.com/tanpawarit/voice-booking-agent/pkg/qstash"
)

type ServerConfig struct {
	Port          string        `envconfig:"PORT" default:"3001"`
	DatabaseURL   string        `envconfig:"DATABASE_URL"`
	WebhookURL    string        `envconfig:"NOTIFY_WEBHOOK_URL"`
	DBConnTimeout time.Duration `envconfig:"DATABASE_CONNECT_TIMEOUT" default:"5s"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := configx.MustNew[ServerConfig]("")
	logger := logx.Component("booking-server")

	store := openStore(ctx, cfg)
	dispatcher := notify.NewDispatcher(notifiers(cfg)...)
	service := booking.NewService(store, booking.WithDispatcher(dispatcher))

	var tokens booking.TokenMinter
	lkCfg := configx.MustNew[livekitx.Config]("LIVEKIT")
	if lkCfg.CanMintTokens() {
		tokens = livekitx.NewTokenGenerator(*lkCfg)
	} else {
		logger.Warn().Msg("livekit keys missing, /api/token disabled")
	}

	weatherSvc := weather.New(*configx.MustNew[weather.Config](""))

	engine := httpserver.NewEngine("booking-server", logger)
	booking.NewHandler(service, weatherSvc, tokens).Register(engine)

	if err := httpserver.Run(ctx, ":"+cfg.Port, engine, logger); err != nil {
		log.Fatal().Err(err).Msg("booking server stopped")
	}
	dispatcher.Wait()
	if closer, ok := store.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
}

// openStore uses Postgres when DATABASE_URL connects and memory otherwise.
func openStore(ctx context.Context, cfg *ServerConfig) booking.Store {
	if cfg.DatabaseURL == "" {
		log.Warn().Msg("DATABASE_URL not set, using in-memory bookings")
		return booking.NewMemoryStore()
	}
	connectCtx, cancel := context.WithTimeout(ctx, cfg.DBConnTimeout)
	defer cancel()

	store, err := booking.OpenBunStore(connectCtx, cfg.DatabaseURL)
	if err != nil {
		log.Error().Err(err).Msg("database connection failed, using in-memory bookings")
		return booking.NewMemoryStore()
	}
	log.Info().Msg("database connected")
	return store
}

func notifiers(cfg *ServerConfig) []notify.Notifier {
	out := []notify.Notifier{
		notify.NewEmail(*configx.MustNew[notify.EmailConfig]("")),
		notify.NewSMS(*configx.MustNew[notify.SMSConfig]("")),
	}

	qCfg := configx.MustNew[qstashx.Config]("QSTASH")
	if cfg.WebhookURL == "" || !qCfg.Configured() {
		return out
	}
	client, err := qstashx.NewClient(*qCfg)
	if err != nil {
		log.Warn().Err(err).Msg("qstash disabled")
		return out
	}
	return append(out, notify.NewWebhook(client, cfg.WebhookURL))
}
