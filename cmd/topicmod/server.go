package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/topicmod/topicmod/examplestore"
	"github.com/topicmod/topicmod/gateway/telegram"
	"github.com/topicmod/topicmod/modconfig"
	"github.com/topicmod/topicmod/moderation"
	"github.com/topicmod/topicmod/persist"
	"github.com/topicmod/topicmod/reviewstore"

	"golang.org/x/sync/errgroup"
)

type Config struct {
	Logger           *slog.Logger
	PersistURL       string
	ConfigURL        string
	RedisURL         string
	MaxDBConnections int
	TrainingGoal     int
	ReviewTTL        time.Duration

	TelegramToken       string
	TelegramAPIEndpoint string
	TelegramRateLimit   float64

	DecisionThreshold      float64
	ReferenceText          string
	MinReferenceSimilarity float64
	SlackWebhookURL        string
}

type Server struct {
	logger  *slog.Logger
	engine  *moderation.Engine
	gateway *telegram.Gateway
	stores  *stores
}

type stores struct {
	config   modconfig.Store
	examples examplestore.ExampleStore
	reviews  reviewstore.ReviewStore
	persist  persist.Store
}

func (s *stores) Close() error {
	if s.persist != nil {
		return s.persist.Close()
	}
	return nil
}

// Opens the configuration, example, review and persistence backends named by the config.
func openStores(ctx context.Context, logger *slog.Logger, config Config) (*stores, error) {
	cfgStore, err := openConfigStore(config.ConfigURL, config.MaxDBConnections, logger)
	if err != nil {
		return nil, err
	}

	ttl := config.ReviewTTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	var examples examplestore.ExampleStore
	var reviews reviewstore.ReviewStore
	if config.RedisURL != "" {
		exs, err := examplestore.NewRedisExampleStore(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("initializing redis example store: %w", err)
		}
		examples = exs
		rvs, err := reviewstore.NewRedisReviewStore(config.RedisURL, ttl)
		if err != nil {
			return nil, fmt.Errorf("initializing redis review store: %w", err)
		}
		reviews = rvs
	} else {
		examples = examplestore.NewMemExampleStore()
		reviews = reviewstore.NewMemReviewStore(50_000, ttl)
	}

	var ps persist.Store
	if config.PersistURL != "" {
		ps, err = persist.Open(ctx, config.PersistURL, logger)
		if err != nil {
			return nil, err
		}
	} else {
		logger.Warn("no persistence configured, state will be lost on restart")
	}

	return &stores{
		config:   cfgStore,
		examples: examples,
		reviews:  reviews,
		persist:  ps,
	}, nil
}

func NewServer(ctx context.Context, config Config) (*Server, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	st, err := openStores(ctx, logger, config)
	if err != nil {
		return nil, err
	}

	gw, err := telegram.NewGateway(telegram.Config{
		Token:       config.TelegramToken,
		APIEndpoint: config.TelegramAPIEndpoint,
		Logger:      logger.With("system", "telegram"),
		RateLimit:   config.TelegramRateLimit,
		PollTimeout: 30,
	})
	if err != nil {
		st.Close()
		return nil, err
	}

	var notifier moderation.Notifier
	if config.SlackWebhookURL != "" {
		logger.Info("configuring slack notifications")
		notifier = &moderation.SlackNotifier{SlackWebhookURL: config.SlackWebhookURL}
	}

	eng := &moderation.Engine{
		Logger:   logger.With("system", "moderation"),
		Gateway:  gw,
		Config:   st.config,
		Examples: st.examples,
		Reviews:  st.reviews,
		Persist:  st.persist,
		Notifier: notifier,
		Policy: moderation.Policy{
			Threshold:              config.DecisionThreshold,
			ReferenceText:          config.ReferenceText,
			MinReferenceSimilarity: config.MinReferenceSimilarity,
		},
		TrainingGoal: config.TrainingGoal,
	}
	if err := eng.Load(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("loading moderation state: %w", err)
	}

	return &Server{
		logger:  logger,
		engine:  eng,
		gateway: gw,
		stores:  st,
	}, nil
}

// Runs the update loop, the persister and the metrics endpoint until the context is cancelled or one of them fails.
func (s *Server) Run(ctx context.Context, metricsListen string) error {
	cfg, err := s.engine.Config.GetConfig(ctx)
	if err != nil {
		return fmt.Errorf("reading moderation config: %w", err)
	}
	if cfg.GroupID == 0 {
		s.logger.Warn("no moderated group configured; use 'topicmod config set-group'")
	}
	s.logger.Info("starting moderation bot", "bot", s.gateway.BotUsername(), "mode", cfg.Mode, "group", cfg.GroupID, "trained", s.engine.State().Trained)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.engine.RunPersister(ctx)
	})
	g.Go(func() error {
		return s.gateway.Run(ctx, s.engine)
	})
	if metricsListen != "" {
		g.Go(func() error {
			return runMetrics(ctx, metricsListen)
		})
	}
	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Server) Close() error {
	return s.stores.Close()
}
