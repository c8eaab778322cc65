package store

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/Ali-Naji-3/wallet-notify/internal/domain"
)

// notificationRow is the database shape of a notification.
type notificationRow struct {
	ID        string `db:"id"`
	Type      string `db:"type"`
	Title     string `db:"title"`
	Body      string `db:"body"`
	CreatedAt string `db:"created_at"`
	Seen      bool   `db:"seen"`
}

func (r notificationRow) toDomain() domain.Notification {
	createdAt, err := time.Parse(time.RFC3339Nano, r.CreatedAt)
	if err != nil {
		createdAt = time.Time{}
	}
	return domain.Notification{
		ID:        r.ID,
		Type:      domain.ParseEventType(r.Type),
		Title:     r.Title,
		Body:      r.Body,
		CreatedAt: createdAt,
		IsRead:    r.Seen,
	}
}

// ListRecent returns up to limit of the user's most recent undeleted
// notifications, newest first.
func (s *SQLiteStore) ListRecent(ctx context.Context, user string, limit int) ([]domain.Notification, error) {
	wrapMsg := "unable to list notifications"

	statement, args, err := sq.
		Select("id", "type", "title", "body", "created_at", "seen").
		From("notifications").
		Where(sq.Eq{"username": user}).
		Where(sq.Eq{"deleted": false}).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}

	var rows []notificationRow
	if err := s.db.SelectContext(ctx, &rows, statement, args...); err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}

	notifications := make([]domain.Notification, len(rows))
	for i, row := range rows {
		notifications[i] = row.toDomain()
	}
	return notifications, nil
}

// CountUnread counts the notifications for the user that haven't been marked
// as read.
func (s *SQLiteStore) CountUnread(ctx context.Context, user string) (int, error) {
	wrapMsg := "unable to count unread notifications"

	statement, args, err := sq.
		Select("count(*)").
		From("notifications").
		Where(sq.Eq{"username": user}).
		Where(sq.Eq{"deleted": false}).
		Where(sq.Eq{"seen": false}).
		ToSql()
	if err != nil {
		return 0, errors.Wrap(err, wrapMsg)
	}

	var total int
	if err := s.db.GetContext(ctx, &total, statement, args...); err != nil {
		return 0, errors.Wrap(err, wrapMsg)
	}

	return total, nil
}

// Insert saves a single notification for the user. A missing ID or CreatedAt
// is filled in server-side.
func (s *SQLiteStore) Insert(ctx context.Context, user string, n domain.Notification) error {
	wrapMsg := "unable to save notification"

	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	statement, args, err := sq.
		Insert("notifications").
		Columns("id", "username", "type", "title", "body", "created_at", "seen", "deleted").
		Values(n.ID, user, string(n.Type), n.Title, n.Body, n.CreatedAt.Format(time.RFC3339Nano), n.IsRead, false).
		ToSql()
	if err != nil {
		return errors.Wrap(err, wrapMsg)
	}

	if _, err := s.db.ExecContext(ctx, statement, args...); err != nil {
		return errors.Wrap(err, wrapMsg)
	}

	return nil
}

// MarkRead marks a single notification as read.
func (s *SQLiteStore) MarkRead(ctx context.Context, user, id string) error {
	wrapMsg := "unable to mark notification as read"

	statement, args, err := sq.
		Update("notifications").
		Set("seen", true).
		Where(sq.Eq{"username": user}).
		Where(sq.Eq{"id": id}).
		Where(sq.Eq{"deleted": false}).
		ToSql()
	if err != nil {
		return errors.Wrap(err, wrapMsg)
	}

	result, err := s.db.ExecContext(ctx, statement, args...)
	if err != nil {
		return errors.Wrap(err, wrapMsg)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, wrapMsg)
	}
	if affected == 0 {
		return domain.NewNotificationNotFoundError(id)
	}

	return nil
}

// MarkAllRead marks all of the user's notifications as read.
func (s *SQLiteStore) MarkAllRead(ctx context.Context, user string) error {
	wrapMsg := "unable to mark notifications as read"

	statement, args, err := sq.
		Update("notifications").
		Set("seen", true).
		Where(sq.Eq{"username": user}).
		Where(sq.Eq{"deleted": false}).
		ToSql()
	if err != nil {
		return errors.Wrap(err, wrapMsg)
	}

	if _, err := s.db.ExecContext(ctx, statement, args...); err != nil {
		return errors.Wrap(err, wrapMsg)
	}

	return nil
}

// Delete soft-deletes a single notification. Deleted rows stay in the table
// so identity remains stable for late-arriving stream deltas.
func (s *SQLiteStore) Delete(ctx context.Context, user, id string) error {
	wrapMsg := "unable to delete notification"

	statement, args, err := sq.
		Update("notifications").
		Set("deleted", true).
		Where(sq.Eq{"username": user}).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return errors.Wrap(err, wrapMsg)
	}

	result, err := s.db.ExecContext(ctx, statement, args...)
	if err != nil {
		return errors.Wrap(err, wrapMsg)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, wrapMsg)
	}
	if affected == 0 {
		return domain.NewNotificationNotFoundError(id)
	}

	return nil
}

// Clear soft-deletes all of the user's notifications.
func (s *SQLiteStore) Clear(ctx context.Context, user string) error {
	wrapMsg := "unable to clear notifications"

	statement, args, err := sq.
		Update("notifications").
		Set("deleted", true).
		Where(sq.Eq{"username": user}).
		ToSql()
	if err != nil {
		return errors.Wrap(err, wrapMsg)
	}

	if _, err := s.db.ExecContext(ctx, statement, args...); err != nil {
		return errors.Wrap(err, wrapMsg)
	}

	return nil
}
