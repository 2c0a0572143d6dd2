package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/1145-am/orggraph/pkg/graphstore"
	"github.com/1145-am/orggraph/pkg/logger"
)

// ImportLog persists which batches have been applied; the loader resumes
// from the highest recorded timestamp.
type ImportLog interface {
	LatestImportTimestamp(ctx context.Context) (int64, error)
	RecordImport(ctx context.Context, runAt time.Time, importTS int64, deletions, creations int) error
}

// Archiver moves a fully applied batch directory out of the dump root.
type Archiver interface {
	Archive(ctx context.Context, batchDir string, importTS int64) error
}

// IndexDelta reports which documents the external index must refresh after
// a batch: doc ids touched by insertions and URIs removed by deletions.
type IndexDelta struct {
	TouchedDocIDs []int64
	RemovedURIs   []string
}

// LoaderParams configures a Loader.
type LoaderParams struct {
	DumpDir      string
	PidfilePath  string
	SleepTime    time.Duration
	RaiseOnError bool
	Force        bool
}

// Loader applies RDF dump batches in timestamp order.
type Loader struct {
	store    *graphstore.Store
	log      ImportLog
	archiver Archiver
	params   LoaderParams
}

// NewLoader builds a Loader. The archiver may be nil to leave applied
// batches in place.
func NewLoader(store *graphstore.Store, log ImportLog, archiver Archiver, params LoaderParams) *Loader {
	return &Loader{store: store, log: log, archiver: archiver, params: params}
}

// Run processes every pending batch under the dump root in ascending
// timestamp order and returns the accumulated index delta. The pidfile
// guards against concurrent runs; it is removed on success and on handled
// failure, but left in place when a strict batch aborts so the operator
// sees the stopped state.
func (l *Loader) Run(ctx context.Context) (*IndexDelta, error) {
	if err := l.acquirePidfile(); err != nil {
		return nil, err
	}

	lastTS := int64(0)
	if l.log != nil {
		ts, err := l.log.LatestImportTimestamp(ctx)
		if err != nil {
			l.releasePidfile()
			return nil, fmt.Errorf("failed to read last import timestamp: %w", err)
		}
		lastTS = ts
	}

	batches, err := l.pendingBatches(lastTS)
	if err != nil {
		l.releasePidfile()
		return nil, err
	}
	if len(batches) == 0 {
		logger.Info("[Ingest] No pending batches", "after_ts", lastTS)
		l.releasePidfile()
		return &IndexDelta{}, nil
	}

	delta := &IndexDelta{}
	for _, ts := range batches {
		batchDir := filepath.Join(l.params.DumpDir, strconv.FormatInt(ts, 10))
		logger.Info("[Ingest] Processing batch", "batch_ts", ts, "dir", batchDir)

		deletions, creations, err := l.applyBatch(ctx, batchDir, delta)
		if err != nil {
			if l.params.RaiseOnError {
				// pidfile stays: the operator must inspect before rerunning
				return delta, fmt.Errorf("batch %d aborted: %w", ts, err)
			}
			logger.Error("[Ingest] Batch failed, continuing", "batch_ts", ts, "err", err)
			continue
		}

		if l.log != nil {
			if err := l.log.RecordImport(ctx, time.Now().UTC(), ts, deletions, creations); err != nil {
				l.releasePidfile()
				return delta, fmt.Errorf("failed to record import of batch %d: %w", ts, err)
			}
		}
		if l.archiver != nil {
			if err := l.archiver.Archive(ctx, batchDir, ts); err != nil {
				l.releasePidfile()
				return delta, fmt.Errorf("failed to archive batch %d: %w", ts, err)
			}
		}
		logger.Info("[Ingest] Batch applied", "batch_ts", ts, "deletions", deletions, "creations", creations)
	}

	l.releasePidfile()
	return delta, nil
}

// applyBatch applies one batch directory: deletion files first, then
// insertion files, each category in lexicographic order. Application is
// transactional per file.
func (l *Loader) applyBatch(ctx context.Context, batchDir string, delta *IndexDelta) (deletions, creations int, err error) {
	deletionFiles, err := sortedTurtleFiles(filepath.Join(batchDir, "deletions"))
	if err != nil && !os.IsNotExist(err) {
		return 0, 0, err
	}
	for _, path := range deletionFiles {
		content, err := os.ReadFile(path)
		if err != nil {
			return deletions, creations, fmt.Errorf("failed to read %s: %w", path, err)
		}
		subjects := DeletionSubjects(string(content))
		n, err := ApplyDeletions(ctx, l.store, subjects)
		if err != nil {
			// a failed deletion aborts the batch regardless of strictness;
			// inserting on top of half-deleted state corrupts merges
			return deletions, creations, fmt.Errorf("deletion file %s: %w", path, err)
		}
		deletions += n
		delta.RemovedURIs = append(delta.RemovedURIs, subjects...)
		l.sleep(ctx)
	}

	insertFiles, err := sortedTurtleFiles(batchDir)
	if err != nil {
		return deletions, creations, err
	}
	for _, path := range insertFiles {
		f, err := os.Open(path)
		if err != nil {
			return deletions, creations, fmt.Errorf("failed to open %s: %w", path, err)
		}
		parsed, err := ParseTurtle(f)
		f.Close()
		if err != nil {
			return deletions, creations, fmt.Errorf("malformed input %s: %w", path, err)
		}
		if err := ApplyParsedGraph(ctx, l.store, parsed); err != nil {
			return deletions, creations, fmt.Errorf("import of %s failed: %w", path, err)
		}
		creations += len(parsed.Nodes)
		for _, n := range parsed.Nodes {
			if id, ok := n.Props["internalDocId"].(int64); ok {
				delta.TouchedDocIDs = append(delta.TouchedDocIDs, id)
			}
		}
		logger.Debug("[Ingest] File applied", "file", filepath.Base(path), "nodes", len(parsed.Nodes), "edges", len(parsed.Edges))
		l.sleep(ctx)
	}
	return deletions, creations, nil
}

func (l *Loader) sleep(ctx context.Context) {
	if l.params.SleepTime <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(l.params.SleepTime):
	}
}

// pendingBatches lists batch directories with integer names greater than
// lastTS, ascending.
func (l *Loader) pendingBatches(lastTS int64) ([]int64, error) {
	entries, err := os.ReadDir(l.params.DumpDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list dump dir %s: %w", l.params.DumpDir, err)
	}
	var out []int64
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		ts, err := strconv.ParseInt(e.Name(), 10, 64)
		if err != nil {
			continue
		}
		if ts > lastTS {
			out = append(out, ts)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func sortedTurtleFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".ttl") {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

func (l *Loader) acquirePidfile() error {
	path := l.params.PidfilePath
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err == nil {
		if !l.params.Force {
			return fmt.Errorf("pidfile %s exists; another ingest may be running (use --force to override)", path)
		}
		logger.Warn("[Ingest] Removing stale pidfile", "path", path)
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to remove pidfile: %w", err)
		}
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func (l *Loader) releasePidfile() {
	if l.params.PidfilePath == "" {
		return
	}
	if err := os.Remove(l.params.PidfilePath); err != nil && !os.IsNotExist(err) {
		logger.Warn("[Ingest] Failed to remove pidfile", "path", l.params.PidfilePath, "err", err)
	}
}
