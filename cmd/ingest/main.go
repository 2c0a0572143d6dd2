package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/1145-am/orggraph/internal/clients"
	"github.com/1145-am/orggraph/internal/storage"
	"github.com/1145-am/orggraph/internal/util"
	"github.com/1145-am/orggraph/pkg/embeddings"
	"github.com/1145-am/orggraph/pkg/ingest"
	"github.com/1145-am/orggraph/pkg/leaselock"
	"github.com/1145-am/orggraph/pkg/logger"
	"github.com/1145-am/orggraph/pkg/logger/console"
	"github.com/1145-am/orggraph/pkg/precompute"
)

// Command ingest runs the RDF batch load pipeline once, in the foreground:
// load pending batches, run the merge pipeline, then rebuild the activity
// snapshot. Intended for operators and cron; the worker runs the same
// pipeline off the queue.
func main() {
	dumpDir := flag.String("dump-dir", "", "dump root holding timestamped batch directories (default $RDF_DUMP_DIR)")
	force := flag.Bool("force", false, "re-apply batches at or before the last recorded import timestamp")
	strict := flag.Bool("strict", false, "abort on the first failing batch instead of skipping it")
	skipSnapshot := flag.Bool("skip-snapshot", false, "skip the precompute rebuild after loading")
	flag.Parse()

	util.LoadEnv()

	debug := util.GetEnvBool("DEBUG", false)
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := storage.Migrate(""); err != nil {
		logger.Fatal("Failed to run migrations", "err", err)
	}

	pool, err := storage.NewPool(ctx)
	if err != nil {
		logger.Fatal("Unable to connect to database", "err", err)
	}
	defer pool.Close()

	graph := clients.NewGraphStore(ctx)
	defer graph.Close(context.Background())
	if err := graph.EnsureSchema(ctx); err != nil {
		logger.Fatal("Failed to ensure graph schema", "err", err)
	}

	cacheClient := clients.NewCache()
	defer cacheClient.Close()

	dir := *dumpDir
	if dir == "" {
		dir = util.GetEnvString("RDF_DUMP_DIR", "dump")
	}

	locks := leaselock.New(pool)
	err = locks.WithLease(ctx, "rdf_import", leaselock.Options{TTL: 5 * time.Minute}, func(ctx context.Context) error {
		loader := ingest.NewLoader(
			graph,
			storage.NewDataImportLog(pool),
			storage.NewBatchArchiver(ctx, util.GetEnvString("RDF_ARCHIVE_DIR", "archive")),
			ingest.LoaderParams{
				DumpDir:      dir,
				PidfilePath:  util.GetEnvString("RDF_PIDFILE", "/tmp/orggraph_rdf_import.pid"),
				SleepTime:    time.Duration(util.GetEnvNumeric("RDF_SLEEP_TIME", 0)) * time.Second,
				Force:        *force,
				RaiseOnError: *strict,
			},
		)
		delta, err := loader.Run(ctx)
		if err != nil {
			return err
		}
		logger.Info("Batches applied",
			"touched", len(delta.TouchedDocIDs), "removed", len(delta.RemovedURIs))

		post := ingest.NewPostProcessor(graph, embeddings.NewMaterializer(graph, clients.NewEmbedder()))
		return post.Run(ctx)
	})
	if err != nil {
		logger.Fatal("Ingest failed", "err", err)
	}

	if *skipSnapshot {
		return
	}
	if err := precompute.New(graph, cacheClient).Run(ctx, time.Time{}); err != nil {
		logger.Fatal("Snapshot rebuild failed", "err", err)
	}
	logger.Info("Ingest run complete")
}
