package main

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/urfave/cli/v3"

	"github.com/tylooteam/tyloo/internal/repository/file"
	"github.com/tylooteam/tyloo/internal/style"
)

var inspectCmd = &cli.Command{
	Name:  "inspect",
	Usage: "List the transactions in a file-backed store",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "dir",
			Usage:   "directory holding the TOML transaction records",
			Aliases: []string{"d"},
			Value:   "./data",
		},
	},
	Action: func(ctx context.Context, cmd *cli.Command) error {
		repo, err := file.New(cmd.String("dir"), slog.Default().Handler())
		if err != nil {
			return cli.Exit(fmt.Errorf("open store: %w", err), 1)
		}

		records := repo.All()
		sort.Slice(records, func(i, j int) bool {
			return records[i].LastUpdateAt.Before(records[j].LastUpdateAt)
		})

		fmt.Println(style.Header(fmt.Sprintf("%d transaction(s)", len(records))))
		for _, rec := range records {
			fmt.Println(style.Record(rec))
		}
		return nil
	},
}
