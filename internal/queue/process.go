package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rabbitmq/amqp091-go"

	"github.com/1145-am/orggraph/internal/storage"
	"github.com/1145-am/orggraph/internal/util"
	"github.com/1145-am/orggraph/pkg/ai"
	"github.com/1145-am/orggraph/pkg/cache"
	"github.com/1145-am/orggraph/pkg/embeddings"
	"github.com/1145-am/orggraph/pkg/graphstore"
	"github.com/1145-am/orggraph/pkg/ingest"
	"github.com/1145-am/orggraph/pkg/leaselock"
	"github.com/1145-am/orggraph/pkg/logger"
	"github.com/1145-am/orggraph/pkg/notify"
	"github.com/1145-am/orggraph/pkg/precompute"
	"github.com/1145-am/orggraph/pkg/query"
	"github.com/1145-am/orggraph/pkg/search"
)

const ingestLockKey = "rdf_import"

// Processor executes queued jobs against the shared service handles.
type Processor struct {
	Graph    *graphstore.Store
	Cache    *cache.Cache
	Pool     *pgxpool.Pool
	Embedder ai.EmbeddingClient
	Index    *search.Index
	Ch       *amqp091.Channel
}

// Process dispatches one delivery by its job kind.
func (p *Processor) Process(ctx context.Context, body []byte) error {
	job, err := DecodeJob(body)
	if err != nil {
		return err
	}

	logger.Info("Processing job", "id", job.ID, "kind", job.Kind)
	switch job.Kind {
	case KindIngestBatch:
		return p.processIngest(ctx, job)
	case KindProcessFeedback:
		return p.processFeedback(ctx)
	case KindPrecompute:
		return p.processPrecompute(ctx, job)
	case KindEmbedRefresh:
		return p.processEmbedRefresh(ctx)
	case KindIndexSync:
		return p.processIndexSync(ctx)
	case KindNotifyDigests:
		return p.processNotify(ctx, job)
	default:
		return fmt.Errorf("unknown job kind %q", job.Kind)
	}
}

func (p *Processor) processIngest(ctx context.Context, job *Job) error {
	var payload IngestPayload
	if len(job.Payload) > 0 {
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("decode ingest payload: %w", err)
		}
	}
	dumpDir := payload.DumpDir
	if dumpDir == "" {
		dumpDir = util.GetEnvString("RDF_DUMP_DIR", "dump")
	}

	locks := leaselock.New(p.Pool)
	return locks.WithLease(ctx, ingestLockKey, leaselock.Options{TTL: 5 * time.Minute}, func(ctx context.Context) error {
		loader := ingest.NewLoader(
			p.Graph,
			storage.NewDataImportLog(p.Pool),
			storage.NewBatchArchiver(ctx, util.GetEnvString("RDF_ARCHIVE_DIR", "archive")),
			ingest.LoaderParams{
				DumpDir:     dumpDir,
				PidfilePath: util.GetEnvString("RDF_PIDFILE", "/tmp/orggraph_rdf_import.pid"),
				SleepTime:   time.Duration(util.GetEnvNumeric("RDF_SLEEP_TIME", 0)) * time.Second,
				Force:       payload.Force,
			},
		)
		delta, err := loader.Run(ctx)
		if err != nil {
			return err
		}

		post := ingest.NewPostProcessor(p.Graph, embeddings.NewMaterializer(p.Graph, p.Embedder))
		if err := post.Run(ctx); err != nil {
			return err
		}

		if len(delta.RemovedURIs) > 0 {
			if err := p.Index.Remove(ctx, delta.RemovedURIs); err != nil {
				logger.Warn("Failed to remove deleted docs from index", "err", err)
			}
		}

		logger.Info("Ingest complete",
			"touched", len(delta.TouchedDocIDs), "removed", len(delta.RemovedURIs))
		return p.enqueueFollowups()
	})
}

// enqueueFollowups schedules the snapshot rebuild and index refresh that
// every successful ingest invalidates.
func (p *Processor) enqueueFollowups() error {
	for _, followup := range []struct {
		queueName string
		kind      string
	}{
		{PrecomputeQueue, KindPrecompute},
		{EmbedQueue, KindIndexSync},
	} {
		job, err := NewJob(followup.kind, nil)
		if err != nil {
			return err
		}
		if err := Enqueue(p.Ch, followup.queueName, job); err != nil {
			return err
		}
	}
	return nil
}

// processFeedback removes reported nodes and edges from the graph and
// marks the rows as handled.
func (p *Processor) processFeedback(ctx context.Context) error {
	store := storage.NewFeedbackStore(p.Pool)
	pending, err := store.Unprocessed(ctx, 100)
	if err != nil {
		return err
	}

	for _, fb := range pending {
		switch fb.NodeOrEdge {
		case "node":
			_, err = p.Graph.Write(ctx, `
				MATCH (n:Resource {uri: $uri})
				WHERE n.internalDocId = $docId
				DETACH DELETE n`,
				map[string]any{"uri": fb.SourceNode, "docId": fb.DocID})
		case "edge":
			if fb.TargetNode == nil || fb.Relationship == nil {
				logger.Warn("Skipping malformed edge feedback", "id", fb.ID)
				continue
			}
			_, err = p.Graph.Write(ctx, `
				MATCH (s:Resource {uri: $source})-[r]->(t:Resource {uri: $target})
				WHERE type(r) = $rel
				DELETE r`,
				map[string]any{
					"source": fb.SourceNode,
					"target": *fb.TargetNode,
					"rel":    *fb.Relationship,
				})
		default:
			logger.Warn("Skipping unknown feedback kind", "id", fb.ID, "kind", fb.NodeOrEdge)
			continue
		}
		if err != nil {
			return fmt.Errorf("apply feedback %d: %w", fb.ID, err)
		}
		if err := store.MarkProcessed(ctx, fb.ID); err != nil {
			return err
		}
	}
	return nil
}

func (p *Processor) processPrecompute(ctx context.Context, job *Job) error {
	var payload PrecomputePayload
	if len(job.Payload) > 0 {
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("decode precompute payload: %w", err)
		}
	}

	var maxDate time.Time
	if payload.MaxDate != "" {
		parsed, err := time.Parse("2006-01-02", payload.MaxDate)
		if err != nil {
			return fmt.Errorf("parse max_date: %w", err)
		}
		maxDate = parsed
	}

	return precompute.New(p.Graph, p.Cache).Run(ctx, maxDate)
}

func (p *Processor) processEmbedRefresh(ctx context.Context) error {
	if err := embeddings.NewMaterializer(p.Graph, p.Embedder).Run(ctx); err != nil {
		return err
	}
	return p.processIndexSync(ctx)
}

func (p *Processor) processIndexSync(ctx context.Context) error {
	if err := p.Index.EnsureCollections(ctx); err != nil {
		return err
	}
	return search.NewDocBuilder(p.Graph).SyncAll(ctx, p.Index)
}

func (p *Processor) processNotify(ctx context.Context, job *Job) error {
	var payload NotifyPayload
	if len(job.Payload) > 0 {
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("decode notify payload: %w", err)
		}
	}

	watchStore := storage.NewWatchStore(p.Pool)
	users := []string{payload.User}
	if payload.User == "" {
		all, err := watchStore.UsersWithWatches(ctx)
		if err != nil {
			return err
		}
		users = all
	}

	maxDate, err := precompute.LatestCacheDate(ctx, p.Cache, p.Graph)
	if err != nil {
		return err
	}

	builder := notify.NewBuilder(
		query.NewEngine(p.Graph, p.Cache),
		storage.NewNotificationLog(p.Pool),
		int(util.GetEnvNumeric("NOTIFY_WINDOW_DAYS", 7)),
	)

	for _, user := range users {
		watches, err := watchStore.WatchesForUser(ctx, user)
		if err != nil {
			return err
		}
		digest, err := builder.BuildForUser(ctx, user, watches, maxDate)
		if err != nil {
			return err
		}
		if digest == nil {
			logger.Debug("No new activity for user", "user", user)
			continue
		}
		data, err := json.Marshal(digest)
		if err != nil {
			return err
		}
		if err := PublishTopic(p.Ch, "notifications."+user, data); err != nil {
			return err
		}
		logger.Info("Published digest", "user", user, "activities", digest.NumActivities)
	}
	return nil
}
