// Command tagindexer creates the search indexes and loads catalog snapshots into them.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	logpkg "github.com/kailas-cloud/tagsearch/internal/logger"
)

const loggerKey = "logger"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "tagindexer:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "tagindexer",
		Usage: "Build and inspect the semantic tag index",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "env",
				Usage:   "Config environment (local, dev, prod)",
				EnvVars: []string{"ENV"},
				Value:   "local",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		After:  syncLogger,
		Commands: []*cli.Command{
			{
				Name:   "create-indexes",
				Usage:  "Create the tag and product indexes if they do not exist",
				Action: createIndexesCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "recreate",
						Usage: "Drop and recreate existing indexes (documents are kept and re-indexed)",
					},
					snapshotFlag(false, "Snapshot whose attribute keys become product index fields"),
				},
			},
			{
				Name:   "index-tags",
				Usage:  "Extract tags from a snapshot and write them to the tag index",
				Action: indexTagsCommand,
				Flags:  []cli.Flag{snapshotFlag(true, "Path to a catalog snapshot (.parquet, .json, .jsonl)")},
			},
			{
				Name:   "load-products",
				Usage:  "Write the products of a snapshot to the product index",
				Action: loadProductsCommand,
				Flags:  []cli.Flag{snapshotFlag(true, "Path to a catalog snapshot (.parquet, .json, .jsonl)")},
			},
			{
				Name:   "last-run",
				Usage:  "Print the last recorded tag indexing run",
				Action: lastRunCommand,
			},
			{
				Name:      "recognize",
				Usage:     "Print the tags recognized in a query",
				ArgsUsage: "<query>",
				Action:    recognizeCommand,
			},
		},
	}
}

func snapshotFlag(required bool, usage string) *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "snapshot",
		Aliases:  []string{"s"},
		Usage:    usage,
		Required: required,
	}
}

// setupLogger builds the zap logger shared by every command.
func setupLogger(c *cli.Context) error {
	logger, err := logpkg.NewLogger(c.String("env"), "tagindexer", c.String("log-level"))
	if err != nil {
		return err
	}
	c.App.Metadata = map[string]any{loggerKey: logger}
	return nil
}

func syncLogger(c *cli.Context) error {
	if l := loggerFrom(c); l != nil {
		_ = l.Sync()
	}
	return nil
}

func loggerFrom(c *cli.Context) *zap.Logger {
	if l, ok := c.App.Metadata[loggerKey].(*zap.Logger); ok {
		return l
	}
	return zap.NewNop()
}
