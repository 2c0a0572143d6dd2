package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NotificationLog persists per-user notification watermarks.
type NotificationLog struct {
	pool *pgxpool.Pool
}

func NewNotificationLog(pool *pgxpool.Pool) *NotificationLog {
	return &NotificationLog{pool: pool}
}

// LastMaxDate returns the max_date of the user's most recent notification.
// A user who was never notified gets the zero time.
func (n *NotificationLog) LastMaxDate(ctx context.Context, user string) (time.Time, error) {
	var maxDate *time.Time
	err := n.pool.QueryRow(ctx, `
		SELECT max(max_date) FROM activity_notification
		WHERE user_id = $1`, user).Scan(&maxDate)
	if err != nil {
		return time.Time{}, err
	}
	if maxDate == nil {
		return time.Time{}, nil
	}
	return *maxDate, nil
}

// Record stamps a sent notification with its watermark and size.
func (n *NotificationLog) Record(ctx context.Context, user string, maxDate time.Time, numActivities int) error {
	_, err := n.pool.Exec(ctx, `
		INSERT INTO activity_notification (user_id, max_date, num_activities, sent_at)
		VALUES ($1, $2, $3, now())`,
		user, maxDate, numActivities)
	return err
}
