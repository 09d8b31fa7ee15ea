package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/topicmod/topicmod/modconfig"
	"github.com/topicmod/topicmod/util/cliutil"

	cli "github.com/urfave/cli/v2"
)

// Opens a moderation config store by URL: "file://path/to/config.json", or a "sqlite://" / "postgres://" database.
func openConfigStore(url string, maxConnections int, logger *slog.Logger) (modconfig.Writer, error) {
	switch {
	case strings.HasPrefix(url, "file://"):
		return modconfig.NewFileStore(url[len("file://"):]), nil
	case strings.HasPrefix(url, "sqlite://"), strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		db, err := cliutil.SetupDatabase(url, maxConnections, logger)
		if err != nil {
			return nil, fmt.Errorf("opening config database: %w", err)
		}
		return modconfig.NewGormStore(db)
	default:
		return nil, fmt.Errorf("unsupported config URL: %s", url)
	}
}

func configWriter(cctx *cli.Context) (modconfig.Writer, error) {
	return openConfigStore(cctx.String("config-url"), cctx.Int("max-db-connections"), slog.Default())
}

// applies a mutation to the stored config, and prints the result
func updateConfig(cctx *cli.Context, mutate func(cfg *modconfig.ModerationConfig) error) error {
	ctx := context.Background()
	store, err := configWriter(cctx)
	if err != nil {
		return err
	}
	cfg, err := store.GetConfig(ctx)
	if err != nil {
		return err
	}
	if err := mutate(&cfg); err != nil {
		return err
	}
	if err := store.SetConfig(ctx, cfg); err != nil {
		return err
	}
	return printConfig(cfg)
}

func printConfig(cfg modconfig.ModerationConfig) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(cfg)
}

func idArg(cctx *cli.Context) (int64, error) {
	if cctx.Args().Len() != 1 {
		return 0, fmt.Errorf("expected a single numeric ID argument")
	}
	id, err := strconv.ParseInt(cctx.Args().First(), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid ID %q: %w", cctx.Args().First(), err)
	}
	return id, nil
}

var configCmd = &cli.Command{
	Name:  "config",
	Usage: "show or change who moderates which group, and how",
	Subcommands: []*cli.Command{
		&cli.Command{
			Name:  "show",
			Usage: "print current moderation config",
			Action: func(cctx *cli.Context) error {
				store, err := configWriter(cctx)
				if err != nil {
					return err
				}
				cfg, err := store.GetConfig(context.Background())
				if err != nil {
					return err
				}
				return printConfig(cfg)
			},
		},
		&cli.Command{
			Name:  "init",
			Usage: "first-run setup: the admin also becomes the moderator",
			Flags: []cli.Flag{
				&cli.Int64Flag{
					Name:     "admin",
					Usage:    "chat platform user ID of the bot admin",
					Required: true,
				},
			},
			Action: func(cctx *cli.Context) error {
				return updateConfig(cctx, func(cfg *modconfig.ModerationConfig) error {
					if cfg.AdminID != 0 && cfg.AdminID != cctx.Int64("admin") {
						return fmt.Errorf("admin is already set to %d", cfg.AdminID)
					}
					cfg.AdminID = cctx.Int64("admin")
					cfg.ModeratorID = cfg.AdminID
					return nil
				})
			},
		},
		&cli.Command{
			Name:      "set-moderator",
			Usage:     "set the user who reviews messages",
			ArgsUsage: "<user-id>",
			Action: func(cctx *cli.Context) error {
				id, err := idArg(cctx)
				if err != nil {
					return err
				}
				return updateConfig(cctx, func(cfg *modconfig.ModerationConfig) error {
					cfg.ModeratorID = id
					return nil
				})
			},
		},
		&cli.Command{
			Name:      "set-group",
			Usage:     "set the moderated group chat",
			ArgsUsage: "<chat-id>",
			Action: func(cctx *cli.Context) error {
				id, err := idArg(cctx)
				if err != nil {
					return err
				}
				return updateConfig(cctx, func(cfg *modconfig.ModerationConfig) error {
					cfg.GroupID = id
					return nil
				})
			},
		},
		&cli.Command{
			Name:      "set-mode",
			Usage:     "set moderation mode: off, on, or test",
			ArgsUsage: "<mode>",
			Action: func(cctx *cli.Context) error {
				if cctx.Args().Len() != 1 {
					return fmt.Errorf("expected a single mode argument")
				}
				mode, err := modconfig.ParseMode(cctx.Args().First())
				if err != nil {
					return err
				}
				return updateConfig(cctx, func(cfg *modconfig.ModerationConfig) error {
					cfg.Mode = mode
					return nil
				})
			},
		},
	},
}
