package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/desertthunder/jukebox/internal/models"
	"github.com/desertthunder/jukebox/internal/shared"
)

const lazyColumns = `id, type, catalog_id, payload, status, attempts, error_message, created_at, updated_at`

// EnqueueLazyUpdate adds a pending cache write-back. payload may be nil to request a fetch by the scheduler.
func (s *Store) EnqueueLazyUpdate(ctx context.Context, itemType models.QueueItemType, catalogID string, payload []byte) (*models.QueueItem, error) {
	if !itemType.Valid() {
		return nil, fmt.Errorf("%w: unknown lazy update type %q", shared.ErrValidation, itemType)
	}
	if !shared.IsCatalogID(catalogID) {
		return nil, fmt.Errorf("%w: lazy update for %q", shared.ErrInvalidCatalogID, catalogID)
	}

	now := s.now().UTC()
	item := &models.QueueItem{
		ID:        shared.GenerateID(),
		Type:      itemType,
		CatalogID: catalogID,
		Payload:   payload,
		Status:    models.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var rawPayload any
	if len(payload) > 0 {
		rawPayload = string(payload)
	}

	stamp := now.Format(timeLayout)
	if _, err := s.exec(ctx, "enqueue lazy update",
		`INSERT INTO lazy_updates (id, type, catalog_id, payload, status, attempts, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, 0, ?, ?)`,
		item.ID, string(item.Type), item.CatalogID, rawPayload, string(item.Status), stamp, stamp); err != nil {
		return nil, err
	}
	return item, nil
}

// ClaimPending atomically moves up to limit pending items, oldest first, to processing and returns them.
//
// The claim is one UPDATE statement, so two concurrent ticks never claim the same item.
func (s *Store) ClaimPending(ctx context.Context, limit int) ([]models.QueueItem, error) {
	if limit <= 0 {
		return nil, nil
	}

	query := `UPDATE lazy_updates
		SET status = ?, updated_at = ?
		WHERE id IN (
			SELECT id FROM lazy_updates WHERE status = ? ORDER BY created_at ASC, id ASC LIMIT ?
		)
		RETURNING ` + lazyColumns

	var items []models.QueueItem
	err := s.query(ctx, "claim pending", func(rows *sql.Rows) error {
		item, err := scanQueueItem(rows)
		if err != nil {
			return err
		}
		items = append(items, *item)
		return nil
	}, query, string(models.StatusProcessing), s.timestamp(), string(models.StatusPending), limit)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID < items[j].ID
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}

// CompleteItem records a successful attempt.
func (s *Store) CompleteItem(ctx context.Context, id string) error {
	return s.finishItem(ctx, id, models.StatusCompleted, "")
}

// FailItem records a terminal failed attempt with its error message.
func (s *Store) FailItem(ctx context.Context, id, message string) error {
	return s.finishItem(ctx, id, models.StatusFailed, message)
}

// RetryItem records a failed attempt but returns the item to pending for a later tick.
func (s *Store) RetryItem(ctx context.Context, id, message string) error {
	return s.finishItem(ctx, id, models.StatusPending, message)
}

func (s *Store) finishItem(ctx context.Context, id string, status models.QueueStatus, message string) error {
	var errMsg any
	if message != "" {
		errMsg = message
	}
	res, err := s.exec(ctx, "finish lazy update",
		`UPDATE lazy_updates SET status = ?, attempts = attempts + 1, error_message = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		string(status), errMsg, s.timestamp(), id, string(models.StatusProcessing))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: lazy update %s is not processing", shared.ErrNotFound, id)
	}
	return nil
}

// RequeueItems returns claimed-but-unattempted items to pending without counting an attempt.
func (s *Store) RequeueItems(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := append([]any{string(models.StatusPending), s.timestamp()}, stringArgs(ids)...)
	args = append(args, string(models.StatusProcessing))
	res, err := s.exec(ctx, "requeue lazy updates",
		`UPDATE lazy_updates SET status = ?, updated_at = ?
		 WHERE id IN (`+makePlaceholders(len(ids))+`) AND status = ?`, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ReclaimStaleProcessing returns items stuck in processing since before cutoff to pending.
// A tick that crashed between claim and requeue leaves such items behind.
func (s *Store) ReclaimStaleProcessing(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.exec(ctx, "reclaim stale lazy updates",
		`UPDATE lazy_updates SET status = ?, updated_at = ? WHERE status = ? AND updated_at < ?`,
		string(models.StatusPending), s.timestamp(), string(models.StatusProcessing), cutoff.UTC().Format(timeLayout))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// GetQueueItem retrieves a lazy update by ID.
func (s *Store) GetQueueItem(ctx context.Context, id string) (*models.QueueItem, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+lazyColumns+` FROM lazy_updates WHERE id = ?`, id)
	item, err := scanQueueItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: lazy update %s", shared.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get lazy update: %v", shared.ErrPersistence, err)
	}
	return item, nil
}

// QueueStats counts lazy updates per status.
func (s *Store) QueueStats(ctx context.Context) (map[models.QueueStatus]int, error) {
	out := map[models.QueueStatus]int{}
	err := s.query(ctx, "lazy update stats", func(rows *sql.Rows) error {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return err
		}
		out[models.QueueStatus(status)] = n
		return nil
	}, `SELECT status, COUNT(*) FROM lazy_updates GROUP BY status`)
	return out, err
}

// ClearCompleted deletes completed lazy updates older than cutoff.
func (s *Store) ClearCompleted(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.exec(ctx, "clear completed lazy updates",
		`DELETE FROM lazy_updates WHERE status = ? AND updated_at < ?`,
		string(models.StatusCompleted), cutoff.UTC().Format(timeLayout))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanQueueItem(scanner interface{ Scan(dest ...any) error }) (*models.QueueItem, error) {
	var (
		item      models.QueueItem
		itemType  string
		status    string
		payload   sql.NullString
		errMsg    sql.NullString
		createdAt string
		updatedAt string
	)
	if err := scanner.Scan(&item.ID, &itemType, &item.CatalogID, &payload, &status, &item.Attempts, &errMsg, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	item.Type = models.QueueItemType(itemType)
	item.Status = models.QueueStatus(status)
	if payload.Valid {
		item.Payload = []byte(payload.String)
	}
	item.Error = errMsg.String
	item.CreatedAt = parseTime(createdAt)
	item.UpdatedAt = parseTime(updatedAt)
	return &item, nil
}
