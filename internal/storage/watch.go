package storage

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/1145-am/orggraph/pkg/notify"
)

// WatchStore persists what each user follows for notification digests.
type WatchStore struct {
	pool *pgxpool.Pool
}

func NewWatchStore(pool *pgxpool.Pool) *WatchStore {
	return &WatchStore{pool: pool}
}

// UsersWithWatches lists every user that follows at least one thing.
func (w *WatchStore) UsersWithWatches(ctx context.Context) ([]string, error) {
	rows, err := w.pool.Query(ctx, `
		SELECT DISTINCT user_id FROM user_watch ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var user string
		if err := rows.Scan(&user); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// WatchesForUser returns one user's follow list.
func (w *WatchStore) WatchesForUser(ctx context.Context, user string) ([]notify.Watch, error) {
	rows, err := w.pool.Query(ctx, `
		SELECT COALESCE(org_uri, ''), COALESCE(industry_topic_id, ''), COALESCE(region, '')
		FROM user_watch
		WHERE user_id = $1
		ORDER BY id`, user)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var watches []notify.Watch
	for rows.Next() {
		var watch notify.Watch
		if err := rows.Scan(&watch.OrgURI, &watch.IndustryTopicID, &watch.Region); err != nil {
			return nil, err
		}
		watches = append(watches, watch)
	}
	return watches, rows.Err()
}

// AddWatch records a new follow.
func (w *WatchStore) AddWatch(ctx context.Context, user string, watch notify.Watch) error {
	_, err := w.pool.Exec(ctx, `
		INSERT INTO user_watch (user_id, org_uri, industry_topic_id, region)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''))`,
		user, watch.OrgURI, watch.IndustryTopicID, watch.Region)
	return err
}
