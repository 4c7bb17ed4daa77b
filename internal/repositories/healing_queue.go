package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/desertthunder/jukebox/internal/models"
	"github.com/desertthunder/jukebox/internal/shared"
)

// EnqueueHealing stores a corrective action. Enqueuing an action whose (type, entity) is already queued is a no-op and reports false.
func (s *Store) EnqueueHealing(ctx context.Context, action models.HealingAction) (bool, error) {
	if action.Type == "" || action.EntityID == "" {
		return false, fmt.Errorf("%w: healing action needs a type and an entity", shared.ErrValidation)
	}
	if action.Timestamp.IsZero() {
		action.Timestamp = s.now()
	}

	var name any
	if action.EntityName != "" {
		name = action.EntityName
	}

	res, err := s.exec(ctx, "enqueue healing",
		`INSERT INTO healing_actions (id, type, entity_id, entity_name, error_message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(type, entity_id) DO NOTHING`,
		shared.GenerateID(), string(action.Type), action.EntityID, name, action.Error, action.Timestamp.UTC().Format(timeLayout))
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// PopHealing removes and returns up to limit actions, oldest first.
// Removal happens in the same statement as selection, so an action is handed to exactly one caller.
func (s *Store) PopHealing(ctx context.Context, limit int) ([]models.HealingAction, error) {
	if limit <= 0 {
		return nil, nil
	}

	query := `DELETE FROM healing_actions
		WHERE id IN (SELECT id FROM healing_actions ORDER BY created_at ASC, id ASC LIMIT ?)
		RETURNING id, type, entity_id, entity_name, error_message, created_at`

	var actions []models.HealingAction
	err := s.query(ctx, "pop healing", func(rows *sql.Rows) error {
		var (
			a         models.HealingAction
			actionTyp string
			name      sql.NullString
			createdAt string
		)
		if err := rows.Scan(&a.ID, &actionTyp, &a.EntityID, &name, &a.Error, &createdAt); err != nil {
			return err
		}
		a.Type = models.HealingType(actionTyp)
		a.EntityName = name.String
		a.Timestamp = parseTime(createdAt)
		actions = append(actions, a)
		return nil
	}, query, limit)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(actions, func(i, j int) bool {
		return actions[i].Timestamp.Before(actions[j].Timestamp)
	})
	return actions, nil
}

// CountHealing returns the number of queued healing actions.
func (s *Store) CountHealing(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM healing_actions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count healing: %v", shared.ErrPersistence, err)
	}
	return n, nil
}
