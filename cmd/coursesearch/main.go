package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/siherrmann/coursesearch"
	"github.com/siherrmann/coursesearch/helper"
	"github.com/siherrmann/coursesearch/ingest"
	"github.com/siherrmann/coursesearch/server"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

var logger = slog.Default()

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "coursesearch",
		Usage: "Semantic search over a course catalog",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Serve the search routes and keep embeddings in sync",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "no-sync",
						Usage: "Only serve requests, another process runs the sync loops",
					},
				},
			},
			{
				Name:   "sync",
				Usage:  "Run one sync iteration for courses and people",
				Action: syncCommand,
			},
			{
				Name:      "ingest",
				Usage:     "Upsert all JSON course documents of a directory",
				ArgsUsage: "<directory>",
				Action:    ingestCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Number of files processed concurrently",
						Value: 4,
					},
					&cli.BoolFlag{
						Name:  "sync",
						Usage: "Run one sync iteration after the import",
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Print the ranked course ids for a query",
				ArgsUsage: "<query...>",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "detailed",
						Usage: "Print the distance of every signal",
					},
				},
			},
		},
	}
}

func serveCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	serviceConfig, err := helper.NewServiceConfiguration()
	if err != nil {
		return err
	}

	searcher, err := coursesearch.NewSearcherFromEnv(logger)
	if err != nil {
		return err
	}
	defer searcher.Close()

	srv := server.NewServer(searcher, logger)
	address := net.JoinHostPort(serviceConfig.ServerAddress, serviceConfig.ServerPort)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return srv.Start(ctx, address)
	})
	if !c.Bool("no-sync") {
		group.Go(func() error {
			return searcher.RunSync(ctx)
		})
	}

	return group.Wait()
}

func syncCommand(c *cli.Context) error {
	searcher, err := coursesearch.NewSearcherFromEnv(logger)
	if err != nil {
		return err
	}
	defer searcher.Close()

	return runSync(c.Context, searcher)
}

func runSync(ctx context.Context, searcher *coursesearch.Searcher) error {
	reports, err := searcher.SyncOnce(ctx)
	for _, report := range reports {
		fmt.Printf("%s: %d stale, %d embedded, %d skipped, %d failed batches\n",
			report.Target, report.Stale, report.Embedded, report.Skipped, report.FailedBatches)
	}
	return err
}

func ingestCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("exactly one directory is required")
	}
	dir := c.Args().First()

	searcher, err := coursesearch.NewSearcherFromEnv(logger)
	if err != nil {
		return err
	}
	defer searcher.Close()

	ingester, err := ingest.NewIngester(searcher, ingest.WithPoolSize(c.Int("workers")), ingest.WithLogger(logger))
	if err != nil {
		return err
	}
	defer ingester.Release()

	report, err := ingester.IngestDir(c.Context, dir)
	if err != nil {
		return err
	}
	fmt.Printf("%d files: %d changed, %d unchanged, %d failed\n", report.Files, report.Changed, report.Unchanged, len(report.Errors))
	for _, fileErr := range report.Errors {
		fmt.Printf("  %v\n", fileErr)
	}

	if c.Bool("sync") {
		return runSync(c.Context, searcher)
	}
	return nil
}

func searchCommand(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("query is required")
	}

	searcher, err := coursesearch.NewSearcherFromEnv(logger)
	if err != nil {
		return err
	}
	defer searcher.Close()

	if !c.Bool("detailed") {
		ids, err := searcher.Search(c.Context, query)
		if err != nil {
			return err
		}
		for i, id := range ids {
			fmt.Printf("%3d. %s\n", i+1, id)
		}
		return nil
	}

	ranked, err := searcher.SearchDetailed(c.Context, query)
	if err != nil {
		return err
	}
	for i, r := range ranked {
		fmt.Printf("%3d. %-16s total=%.4f title=%.4f content=%.4f person=%.4f\n",
			i+1, r.ID, r.TotalDistance, r.TitleDistance, r.ContentDistance, r.PersonDistance)
	}
	return nil
}

func setupLogger(c *cli.Context) error {
	level, err := helper.ParseLogLevel(strings.ToLower(c.String("log-level")))
	if err != nil {
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", c.String("log-level"))
	}

	logger = helper.NewLogger(os.Stderr, level)
	slog.SetDefault(logger)

	return nil
}
