package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/topicmod/topicmod/classifier"
	"github.com/topicmod/topicmod/moderation"
	"github.com/topicmod/topicmod/util/cliutil"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	cli "github.com/urfave/cli/v2"
	_ "go.uber.org/automaxprocs"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "topicmod",
		Usage:   "adaptive topic moderation bot for a chat group",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "persist-url",
			Usage:   "where labeled examples and classifier state are saved (file://, pebble://, sqlite://, postgres://)",
			Value:   "file://data/topicmod",
			EnvVars: []string{"TOPICMOD_PERSIST_URL"},
		},
		&cli.StringFlag{
			Name:    "config-url",
			Usage:   "where moderation config (admin, moderator, group, mode) is stored (file://, sqlite://, postgres://)",
			Value:   "file://data/topicmod/config.json",
			EnvVars: []string{"TOPICMOD_CONFIG_URL"},
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "redis connection for examples and pending reviews (optional, in-process if not set)",
			EnvVars: []string{"TOPICMOD_REDIS_URL", "REDIS_URL"},
		},
		&cli.IntFlag{
			Name:    "training-goal",
			Usage:   "number of labeled examples which triggers classifier training",
			Value:   classifier.DefaultTrainingGoal,
			EnvVars: []string{"TOPICMOD_TRAINING_GOAL"},
		},
		&cli.IntFlag{
			Name:    "max-db-connections",
			EnvVars: []string{"TOPICMOD_MAX_DB_CONNECTIONS"},
			Value:   20,
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "log verbosity level (eg: warn, info, debug)",
			EnvVars: []string{"TOPICMOD_LOG_LEVEL", "GO_LOG_LEVEL", "LOG_LEVEL"},
		},
		&cli.StringFlag{
			Name:    "log-format",
			Usage:   "log output format: text or json",
			EnvVars: []string{"TOPICMOD_LOG_FMT", "LOG_FORMAT"},
		},
	}

	app.Before = func(cctx *cli.Context) error {
		_, err := cliutil.SetupSlog(cliutil.LogOptions{
			LogLevel:  cctx.String("log-level"),
			LogFormat: cctx.String("log-format"),
		})
		return err
	}

	app.Commands = []*cli.Command{
		runCmd,
		configCmd,
		resetCmd,
	}

	return app.Run(args)
}

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "run the moderation bot",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "telegram-token",
			Usage:    "Telegram Bot API token",
			Required: true,
			EnvVars:  []string{"TOPICMOD_TELEGRAM_TOKEN", "BOT_TOKEN"},
		},
		&cli.StringFlag{
			Name:    "telegram-api-endpoint",
			Usage:   "Bot API endpoint format string, for self-hosted API servers",
			EnvVars: []string{"TOPICMOD_TELEGRAM_API_ENDPOINT"},
		},
		&cli.Float64Flag{
			Name:    "telegram-rate-limit",
			Usage:   "max outbound Bot API calls per second",
			Value:   25,
			EnvVars: []string{"TOPICMOD_TELEGRAM_RATE_LIMIT"},
		},
		&cli.Float64Flag{
			Name:    "decision-threshold",
			Usage:   "classifier scores below this are removed",
			Value:   moderation.DefaultDecisionThreshold,
			EnvVars: []string{"TOPICMOD_DECISION_THRESHOLD"},
		},
		&cli.StringFlag{
			Name:    "reference-text",
			Usage:   "example of on-topic text; similarity to it is reported in test mode",
			EnvVars: []string{"TOPICMOD_REFERENCE_TEXT"},
		},
		&cli.Float64Flag{
			Name:    "min-reference-similarity",
			Usage:   "if positive, messages less similar than this to the reference text are removed",
			EnvVars: []string{"TOPICMOD_MIN_REFERENCE_SIMILARITY"},
		},
		&cli.DurationFlag{
			Name:    "review-ttl",
			Usage:   "how long a message waits for a reviewer decision",
			Value:   7 * 24 * time.Hour,
			EnvVars: []string{"TOPICMOD_REVIEW_TTL"},
		},
		&cli.StringFlag{
			Name:    "slack-webhook-url",
			Usage:   "full URL of slack webhook for operator notifications",
			EnvVars: []string{"SLACK_WEBHOOK_URL"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics APIs",
			Value:   ":3989",
			EnvVars: []string{"TOPICMOD_METRICS_LISTEN"},
		},
	},
	Action: func(cctx *cli.Context) error {
		ctx, stop := signal.NotifyContext(cctx.Context, syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		logger := slog.Default()

		shutdownTracing, err := configOTEL(ctx, "topicmod")
		if err != nil {
			return err
		}
		defer shutdownTracing()

		srv, err := NewServer(ctx, Config{
			Logger:                 logger,
			PersistURL:             cctx.String("persist-url"),
			ConfigURL:              cctx.String("config-url"),
			RedisURL:               cctx.String("redis-url"),
			MaxDBConnections:       cctx.Int("max-db-connections"),
			TrainingGoal:           cctx.Int("training-goal"),
			ReviewTTL:              cctx.Duration("review-ttl"),
			TelegramToken:          cctx.String("telegram-token"),
			TelegramAPIEndpoint:    cctx.String("telegram-api-endpoint"),
			TelegramRateLimit:      cctx.Float64("telegram-rate-limit"),
			DecisionThreshold:      cctx.Float64("decision-threshold"),
			ReferenceText:          cctx.String("reference-text"),
			MinReferenceSimilarity: cctx.Float64("min-reference-similarity"),
			SlackWebhookURL:        cctx.String("slack-webhook-url"),
		})
		if err != nil {
			return err
		}
		defer srv.Close()

		if err := srv.Run(ctx, cctx.String("metrics-listen")); err != nil {
			return fmt.Errorf("failed to run moderation service: %w", err)
		}
		return nil
	},
}

var resetCmd = &cli.Command{
	Name:  "reset",
	Usage: "drop all labeled examples and the trained classifier, returning to the review phase",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "yes",
			Usage: "confirm the reset",
		},
	},
	Action: func(cctx *cli.Context) error {
		if !cctx.Bool("yes") {
			return fmt.Errorf("refusing to reset without --yes")
		}
		ctx := context.Background()
		logger := slog.Default()

		st, err := openStores(ctx, logger, Config{
			PersistURL:       cctx.String("persist-url"),
			ConfigURL:        cctx.String("config-url"),
			RedisURL:         cctx.String("redis-url"),
			MaxDBConnections: cctx.Int("max-db-connections"),
			TrainingGoal:     cctx.Int("training-goal"),
		})
		if err != nil {
			return err
		}
		defer st.Close()

		eng := &moderation.Engine{
			Logger:       logger,
			Config:       st.config,
			Examples:     st.examples,
			Reviews:      st.reviews,
			Persist:      st.persist,
			TrainingGoal: cctx.Int("training-goal"),
		}
		if err := eng.Reset(ctx); err != nil {
			return err
		}
		fmt.Println("moderation state reset; the bot will collect labeled examples again")
		return nil
	},
}
