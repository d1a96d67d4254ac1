// Command hexfront runs the turn-based strategy game server.
//
// Subcommands:
//
//	serve   run the HTTP/WebSocket server (default)
//	genmap  generate a map for a seed and print its terrain and starts
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/talgya/hexfront/internal/api"
	"github.com/talgya/hexfront/internal/persistence"
	"github.com/talgya/hexfront/internal/session"
	"github.com/talgya/hexfront/internal/world"
)

const version = "0.4.0"

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: loading .env: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := &cli.Command{
		Name:    "hexfront",
		Usage:   "turn-based hex strategy game server",
		Version: version,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "debug", Usage: "enable debug logging", Sources: cli.EnvVars("HEXFRONT_DEBUG")},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			level := slog.LevelInfo
			if cmd.Bool("debug") {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
			return ctx, nil
		},
		DefaultCommand: "serve",
		Commands: []*cli.Command{
			serveCommand(),
			genmapCommand(),
		},
	}

	if err := cmd.Run(ctx, os.Args); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the game server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Value: ":8080", Usage: "listen address", Sources: cli.EnvVars("HEXFRONT_ADDR")},
			&cli.StringFlag{Name: "db", Value: "data/hexfront.db", Usage: "SQLite save database (empty disables saves)", Sources: cli.EnvVars("HEXFRONT_DB")},
			&cli.StringFlag{Name: "admin-key", Usage: "bearer token for restore endpoints", Sources: cli.EnvVars("HEXFRONT_ADMIN_KEY")},
			&cli.StringSliceFlag{Name: "cors-origin", Usage: "extra allowed browser origin", Sources: cli.EnvVars("HEXFRONT_CORS_ORIGINS")},
			&cli.DurationFlag{Name: "checkpoint-interval", Value: 5 * time.Minute, Usage: "periodic checkpoint interval (0 disables)", Sources: cli.EnvVars("HEXFRONT_CHECKPOINT_INTERVAL")},
			&cli.BoolFlag{Name: "checkpoint-every-turn", Usage: "also checkpoint at every turn boundary", Sources: cli.EnvVars("HEXFRONT_CHECKPOINT_EVERY_TURN")},
			&cli.IntFlag{Name: "keep-auto", Value: 5, Usage: "automatic saves kept per game"},
			&cli.DurationFlag{Name: "idle-timeout", Value: 30 * time.Minute, Usage: "close games idle this long", Sources: cli.EnvVars("HEXFRONT_IDLE_TIMEOUT")},
			&cli.DurationFlag{Name: "ai-delay", Value: 500 * time.Millisecond, Usage: "pause between AI actions"},
		},
		Action: serve,
	}
}

func serve(ctx context.Context, cmd *cli.Command) error {
	slog.Info("hexfront starting", "version", version)

	var store *persistence.DB
	var saver session.Saver
	if path := cmd.String("db"); path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
		db, err := persistence.Open(path)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()
		store, saver = db, db

		if last, err := db.GetMeta("last_start"); err == nil {
			slog.Info("database opened", "path", path, "last_start", last)
		} else {
			slog.Info("database opened", "path", path)
		}
		if err := db.SaveMeta("last_start", time.Now().UTC().Format(time.RFC3339)); err != nil {
			slog.Warn("failed to record start", "error", err)
		}
	}

	opts := session.DefaultOptions()
	opts.CheckpointInterval = cmd.Duration("checkpoint-interval")
	opts.CheckpointEveryTurn = cmd.Bool("checkpoint-every-turn")
	opts.IdleTimeout = cmd.Duration("idle-timeout")
	opts.AIActionDelay = cmd.Duration("ai-delay")

	hub := api.NewHub()
	sessions := session.NewManager(hub, saver, opts)
	server := api.NewServer(sessions, hub, store, api.Config{
		AdminKey: cmd.String("admin-key"),
		Origins:  cmd.StringSlice("cors-origin"),
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Run(ctx, cmd.String("addr")) })
	g.Go(func() error { return sessions.Run(ctx) })
	if store != nil {
		g.Go(func() error { return pruneSaves(ctx, store, sessions, cmd.Int("keep-auto")) })
	}

	err := g.Wait()
	slog.Info("hexfront stopped")
	return err
}

// pruneSaves trims each live game's automatic saves to the newest keep.
func pruneSaves(ctx context.Context, store *persistence.DB, sessions *session.Manager, keep int) error {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			for _, id := range sessions.GameIDs() {
				n, err := store.PruneAuto(ctx, id, keep)
				if err != nil {
					slog.Warn("prune failed", "game", id, "error", err)
					continue
				}
				if n > 0 {
					slog.Debug("pruned saves", "game", id, "count", n)
				}
			}
		}
	}
}

func genmapCommand() *cli.Command {
	return &cli.Command{
		Name:  "genmap",
		Usage: "generate a map and print terrain counts and starting positions",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "width", Value: 20},
			&cli.IntFlag{Name: "height", Value: 20},
			&cli.Int64Flag{Name: "seed", Value: 42},
			&cli.IntFlag{Name: "players", Value: 4},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := world.DefaultGenConfig(cmd.Int("width"), cmd.Int("height"), cmd.Int64("seed"), cmd.Int("players"))
			gen := world.Generate(cfg)
			slog.Info("map generated", "grid", gen.Grid, "seed", cfg.Seed)

			counts := gen.Grid.CountTerrain()
			terrains := make([]world.Terrain, 0, len(counts))
			for t := range counts {
				terrains = append(terrains, t)
			}
			sort.Slice(terrains, func(i, j int) bool { return terrains[i] < terrains[j] })
			for _, t := range terrains {
				slog.Info("terrain", "type", t, "count", counts[t])
			}
			for i, c := range gen.Starts {
				slog.Info("start", "player", i+1, "coord", c, "quality", fmt.Sprintf("%.1f", world.StartQuality(gen.Grid, c)))
			}
			if len(gen.Starts) < cfg.Players {
				slog.Warn("map could not fit every player", "placed", len(gen.Starts), "wanted", cfg.Players)
			}
			return nil
		},
	}
}
