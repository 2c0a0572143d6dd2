package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DataImportLog records applied RDF batches in the data_import table. It
// backs the ingest loader's resume point.
type DataImportLog struct {
	pool *pgxpool.Pool
}

func NewDataImportLog(pool *pgxpool.Pool) *DataImportLog {
	return &DataImportLog{pool: pool}
}

// LatestImportTimestamp returns the highest applied batch timestamp, or 0
// when nothing has been imported yet.
func (l *DataImportLog) LatestImportTimestamp(ctx context.Context) (int64, error) {
	var ts *int64
	err := l.pool.QueryRow(ctx,
		`SELECT max(import_ts) FROM data_import`).Scan(&ts)
	if err != nil {
		return 0, err
	}
	if ts == nil {
		return 0, nil
	}
	return *ts, nil
}

// RecordImport inserts one batch row. The unique (run_at, import_ts)
// constraint makes accidental double-recording fail loudly.
func (l *DataImportLog) RecordImport(ctx context.Context, runAt time.Time, importTS int64, deletions, creations int) error {
	_, err := l.pool.Exec(ctx, `
		INSERT INTO data_import (run_at, import_ts, deletions, creations)
		VALUES ($1, $2, $3, $4)`,
		runAt, importTS, deletions, creations)
	return err
}

// ImportHistory returns the most recent batches, newest first.
func (l *DataImportLog) ImportHistory(ctx context.Context, limit int) ([]DataImportRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.pool.Query(ctx, `
		SELECT run_at, import_ts, deletions, creations
		FROM data_import
		ORDER BY import_ts DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DataImportRow
	for rows.Next() {
		var row DataImportRow
		if err := rows.Scan(&row.RunAt, &row.ImportTS, &row.Deletions, &row.Creations); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

type DataImportRow struct {
	RunAt     time.Time `json:"run_at"`
	ImportTS  int64     `json:"import_ts"`
	Deletions int       `json:"deletions"`
	Creations int       `json:"creations"`
}
