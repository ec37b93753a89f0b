package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/tylooteam/tyloo/internal/recovery"
	"github.com/tylooteam/tyloo/internal/repository/file"
	"github.com/tylooteam/tyloo/internal/txmanager"
)

var recoverCmd = &cli.Command{
	Name:  "recover",
	Usage: "Scan a file-backed transaction store and re-drive stuck transactions",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "dir",
			Usage:   "directory holding the TOML transaction records",
			Aliases: []string{"d"},
			Value:   "./data",
		},
		&cli.IntFlag{
			Name:  "max-retries",
			Usage: "quarantine a transaction after this many re-drives",
			Value: 5,
		},
		&cli.DurationFlag{
			Name:  "trying-timeout",
			Usage: "how long a TRYING transaction may sit before being cancelled as abandoned",
			Value: 30 * time.Second,
		},
	},
	Action: func(ctx context.Context, cmd *cli.Command) error {
		handler := slog.Default().Handler()

		repo, err := file.New(cmd.String("dir"), handler)
		if err != nil {
			return cli.Exit(fmt.Errorf("open store: %w", err), 1)
		}

		mgr := txmanager.New(repo, nil, newLogInvoker(slog.Default()), handler)
		recoverer := recovery.New(repo, mgr, cmd.Int("max-retries"), cmd.Duration("trying-timeout"), handler)

		recovered, failed := recoverer.ScanAll(ctx, repo)
		fmt.Printf("recovery pass complete: %d recovered, %d failed\n", recovered, failed)
		if failed > 0 {
			return cli.Exit("one or more transactions failed to recover, see logs", 1)
		}
		return nil
	},
}
