package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/tanpawarit/voice-booking-agent/agent/agents/orchestrator"
	"github.com/tanpawarit/voice-booking-agent/agent/backend"
	"github.com/tanpawarit/voice-booking-agent/agent/bridge"
	contractx "github.com/tanpawarit/voice-booking-agent/agent/contract"
	"github.com/tanpawarit/voice-booking-agent/agent/llm"
	"github.com/tanpawarit/voice-booking-agent/agent/prompt"
	statex "github.com/tanpawarit/voice-booking-agent/agent/state"
	toolx "github.com/tanpawarit/voice-booking-agent/agent/tool"
	configx "github.com/tanpawarit/voice-booking-agent/pkg/config"
	"github.com/tanpawarit/voice-booking-agent/pkg/httpserver"
	livekitx "github.com/tanpawarit/voice-booking-agent/pkg/livekit"
	logx "github.com/tanpawarit/voice-booking-agent/pkg/logger"
	_ "github.com/tanpawarit/voice-booking-agent/pkg/logger/autoload"
	"github.com/tanpawarit/voice-booking-agent/pkg/wsroom"
)

type AgentConfig struct {
	Room                 string        `split_words:"true" default:"restaurant-booking"`
	Identity             string        `split_words:"true" default:"agent-bot"`
	Restaurant           string        `split_words:"true"`
	HTTPAddr             string        `envconfig:"HTTP_ADDR" default:":8090"`
	MaxRoundTrips        int           `split_words:"true" default:"6"`
	HistoryCap           int           `split_words:"true" default:"20"`
	SessionIdleTTL       time.Duration `envconfig:"SESSION_IDLE_TTL" default:"30m"`
	SessionSweepInterval time.Duration `split_words:"true" default:"1m"`
	ModelTimeout         time.Duration `split_words:"true" default:"30s"`
	ToolTimeout          time.Duration `split_words:"true" default:"10s"`
	ToolConcurrency      int           `split_words:"true" default:"4"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	agentCfg := configx.MustNew[AgentConfig]("AGENT")
	logger := logx.Component("agent")

	systemPrompt, err := prompt.System(prompt.Vars{Restaurant: agentCfg.Restaurant})
	if err != nil {
		log.Fatal().Err(err).Msg("render system prompt")
	}

	storeOpts := []statex.DialogueOption{
		statex.WithHistoryCap(agentCfg.HistoryCap),
		statex.WithIdleTTL(agentCfg.SessionIdleTTL),
		statex.WithSweepInterval(agentCfg.SessionSweepInterval),
	}
	redisCfg := configx.MustNew[statex.UpstashRedisConfig]("UPSTASH_REDIS")
	if configx.Configured(redisCfg.URL, redisCfg.Token) {
		snapshots, err := statex.NewUpstashRedisStore(*redisCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("init transcript snapshots")
		}
		storeOpts = append(storeOpts, statex.WithSnapshotStore(snapshots))
		logger.Info().Msg("transcript snapshots enabled")
	}
	dialogues := statex.NewDialogueStore(systemPrompt, storeOpts...)

	llmCfg := configx.MustNew[llm.Config]("OPENAI")
	completion, err := llm.New(ctx, *llmCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("init completion client")
	}

	bookings := backend.New(*configx.MustNew[backend.Config](""))
	tools, err := toolx.NewCatalog(bookings, bookings, toolx.WithTimeout(agentCfg.ToolTimeout))
	if err != nil {
		log.Fatal().Err(err).Msg("register tools")
	}

	engine, err := orchestrator.New(dialogues, completion, tools, orchestrator.Config{
		MaxRoundTrips:   agentCfg.MaxRoundTrips,
		ModelTimeout:    agentCfg.ModelTimeout,
		ToolConcurrency: agentCfg.ToolConcurrency,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("init orchestrator")
	}

	router := httpserver.NewEngine("voice-booking-agent", logger)

	var transport contractx.Transport
	lkCfg := configx.MustNew[livekitx.Config]("LIVEKIT")
	if lkCfg.Configured() {
		room, err := livekitx.Join(*lkCfg, agentCfg.Room, agentCfg.Identity)
		if err != nil {
			log.Fatal().Err(err).Str("room", agentCfg.Room).Msg("join livekit room")
		}
		transport = room
		logger.Info().Str("room", agentCfg.Room).Str("identity", agentCfg.Identity).Msg("joined livekit room")
	} else {
		hub := wsroom.NewHub()
		hub.RegisterRoutes(router)
		transport = hub
		logger.Warn().Str("addr", agentCfg.HTTPAddr).Msg("livekit not configured, serving local websocket room at /ws")
	}
	defer transport.Close()

	replies := bridge.New(engine, transport)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		dialogues.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return replies.Serve(gctx, transport)
	})
	g.Go(func() error {
		return httpserver.Run(gctx, agentCfg.HTTPAddr, router, logger)
	})

	logger.Info().
		Int("tools", len(tools.Specs())).
		Int("history_cap", dialogues.HistoryCap()).
		Bool("offline_model", llmCfg.Offline()).
		Msg("agent ready")

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("agent stopped")
	}
}
