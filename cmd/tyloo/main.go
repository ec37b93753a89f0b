package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

func main() {
	app := &cli.Command{
		Name:    "tyloo",
		Version: Version,
		Usage:   "Try-Confirm-Cancel transaction coordinator",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "trace|debug|info|warn|error",
				Value: "info",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			SetupLogger(cmd.String("log-level"))
			return ctx, nil
		},
		Commands: []*cli.Command{
			versionCmd,
			inspectCmd,
			recoverCmd,
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
