package graphstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/1145-am/orggraph/internal/util"
	"github.com/1145-am/orggraph/pkg/logger"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

const (
	readTimeout    = 60 * time.Second
	maxStoreRetry  = 5
	defaultChunkSz = 1000
)

var (
	// ErrSyntax marks a programmer error in a query; retrying is pointless.
	ErrSyntax = errors.New("graph query syntax error")
	// ErrTransient marks a connection or leader-switch fault worth retrying.
	ErrTransient = errors.New("transient graph store error")
	// ErrConstraint marks a uniqueness or schema constraint violation.
	ErrConstraint = errors.New("graph constraint violation")
)

// Row is a single result record keyed by the query's return aliases.
type Row map[string]any

// Store wraps the graph database driver with typed errors, retry on
// transient faults, and chunked bulk mutations.
type Store struct {
	driver   neo4j.DriverWithContext
	database string
}

// Params contains configuration for connecting to the graph database.
type Params struct {
	URI      string
	User     string
	Password string
	Database string
}

// New connects to the graph database and verifies connectivity.
func New(ctx context.Context, params Params) (*Store, error) {
	driver, err := neo4j.NewDriverWithContext(
		params.URI,
		neo4j.BasicAuth(params.User, params.Password, ""),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create graph driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("failed to reach graph store: %w", err)
	}
	return &Store{driver: driver, database: params.Database}, nil
}

// Close releases the underlying driver.
func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// classify maps a driver error onto the store's error taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var neoErr *neo4j.Neo4jError
	if errors.As(err, &neoErr) {
		code := neoErr.Code
		switch {
		case strings.Contains(code, "SyntaxError"), strings.Contains(code, "ParameterMissing"):
			return fmt.Errorf("%w: %s", ErrSyntax, neoErr.Msg)
		case strings.Contains(code, "ConstraintValidationFailed"), strings.Contains(code, "Schema"):
			return fmt.Errorf("%w: %s", ErrConstraint, neoErr.Msg)
		case neoErr.IsRetriable():
			return fmt.Errorf("%w: %s", ErrTransient, neoErr.Msg)
		}
		return err
	}
	if neo4j.IsConnectivityError(err) {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	return err
}

// Execute runs a read query and collects all rows. The call carries the
// store-level read deadline. Only transient faults are retried.
func (s *Store) Execute(ctx context.Context, query string, params map[string]any) ([]Row, error) {
	rCtx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()
	return s.run(rCtx, neo4j.AccessModeRead, query, params)
}

// Write runs a mutating query in a write session and returns the rows it
// produced, if any.
func (s *Store) Write(ctx context.Context, query string, params map[string]any) ([]Row, error) {
	return s.run(ctx, neo4j.AccessModeWrite, query, params)
}

func (s *Store) run(ctx context.Context, mode neo4j.AccessMode, query string, params map[string]any) ([]Row, error) {
	return retryTransient(ctx, func(c context.Context) ([]Row, error) {
		rows, err := s.runOnce(c, mode, query, params)
		if err != nil {
			return nil, classify(err)
		}
		return rows, nil
	})
}

// retryTransient drives op through util.RetryWithContext with the store's
// attempt budget and linear backoff. Only errors classified as ErrTransient
// are retried; anything else stops the loop on the spot.
func retryTransient(ctx context.Context, op func(context.Context) ([]Row, error)) ([]Row, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var permanent error
	attempt := 0
	rows, err := util.RetryWithContext(runCtx, maxStoreRetry, func(c context.Context) ([]Row, error) {
		if attempt > 0 {
			logger.Warn("[GraphStore] Retrying transient fault", "attempt", attempt+1)
			if err := sleepBackoff(c, attempt); err != nil {
				return nil, err
			}
		}
		attempt++
		rows, err := op(c)
		if err != nil && !errors.Is(err, ErrTransient) {
			permanent = err
			cancel()
		}
		return rows, err
	})
	if permanent != nil {
		return nil, permanent
	}
	return rows, err
}

// backoffUnit is a var so tests can shrink the wait between attempts.
var backoffUnit = 500 * time.Millisecond

func sleepBackoff(ctx context.Context, attempt int) error {
	t := time.NewTimer(time.Duration(attempt) * backoffUnit)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (s *Store) runOnce(ctx context.Context, mode neo4j.AccessMode, query string, params map[string]any) ([]Row, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   mode,
		DatabaseName: s.database,
	})
	defer session.Close(ctx)

	work := func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]Row, 0, len(records))
		for _, rec := range records {
			out = append(out, Row(rec.AsMap()))
		}
		return out, nil
	}

	var rows any
	var err error
	if mode == neo4j.AccessModeRead {
		rows, err = session.ExecuteRead(ctx, work)
	} else {
		rows, err = session.ExecuteWrite(ctx, work)
	}
	if err != nil {
		return nil, err
	}
	return rows.([]Row), nil
}

// InTransaction runs fn inside a single explicit write transaction.
func (s *Store) InTransaction(ctx context.Context, fn func(tx neo4j.ManagedTransaction) error) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: s.database,
	})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return nil, fn(tx)
	})
	return classify(err)
}

// BatchApply runs a mutation once per chunk of rows, binding each chunk to
// the $rows parameter. Long mutations stay out of a single giant
// transaction this way.
func (s *Store) BatchApply(ctx context.Context, query string, rows []map[string]any, chunkSize int) error {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSz
	}
	for start := 0; start < len(rows); start += chunkSize {
		end := min(start+chunkSize, len(rows))
		chunk := rows[start:end]
		if _, err := s.Write(ctx, query, map[string]any{"rows": chunk}); err != nil {
			return fmt.Errorf("batch apply failed at rows %d..%d: %w", start, end, err)
		}
		logger.Debug("[GraphStore] Applied chunk", "from", start, "to", end, "total", len(rows))
	}
	return nil
}
