package store

import (
	"context"
	"fmt"
)

// Sync log status values; one row is appended per sync invocation in every
// terminal state.
const (
	SyncStatusSuccess = "success"
	SyncStatusPartial = "partial"
	SyncStatusError   = "error"
)

type SyncLogStore struct {
	db DB
}

type syncLogRow struct {
	ID           string  `db:"id"`
	UserID       string  `db:"user_id"`
	AccountID    string  `db:"account_id"`
	DisplayName  *string `db:"display_name"`
	Found        int     `db:"found"`
	Imported     int     `db:"imported"`
	Skipped      int     `db:"skipped"`
	Failed       int     `db:"failed"`
	Status       string  `db:"status"`
	ErrorMessage *string `db:"error_message"`
	DurationMS   int64   `db:"duration_ms"`
	CreatedAt    any     `db:"created_at"`
}

type SyncLogInput struct {
	ID           string
	UserID       string
	AccountID    string
	Found        int
	Imported     int
	Skipped      int
	Failed       int
	Status       string
	ErrorMessage *string
	DurationMS   int64
}

type SyncStats struct {
	TotalRuns     int64 `db:"total_runs"`
	Succeeded     int64 `db:"succeeded"`
	Partial       int64 `db:"partial"`
	Errored       int64 `db:"errored"`
	TotalFound    int64 `db:"total_found"`
	TotalImported int64 `db:"total_imported"`
	TotalSkipped  int64 `db:"total_skipped"`
	TotalFailed   int64 `db:"total_failed"`
	RunsLastDay   int64 `db:"runs_last_day"`
}

func NewSyncLogStore(db DB) *SyncLogStore {
	return &SyncLogStore{db: db}
}

func (s *SyncLogStore) Append(ctx context.Context, tx Execer, input SyncLogInput) error {
	query := `
		INSERT INTO sync_logs (id, user_id, account_id, found, imported, skipped, failed, status, error_message, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := tx.ExecContext(ctx, query,
		input.ID, input.UserID, input.AccountID, input.Found, input.Imported,
		input.Skipped, input.Failed, input.Status, input.ErrorMessage, input.DurationMS,
	)
	return err
}

func (s *SyncLogStore) History(ctx context.Context, userID, accountID string, limit int) ([]map[string]any, error) {
	var rows []syncLogRow
	query := `
		SELECT l.id, l.user_id, l.account_id, a.display_name, l.found, l.imported, l.skipped,
		       l.failed, l.status, l.error_message, l.duration_ms, l.created_at
		FROM sync_logs l
		LEFT JOIN linked_accounts a ON a.id = l.account_id
		WHERE l.user_id = $1
	`
	args := []any{userID}
	if accountID != "" {
		query += " AND l.account_id = $2"
		args = append(args, accountID)
	}
	query += " ORDER BY l.created_at DESC LIMIT $" + itoa(len(args)+1)
	args = append(args, limit)
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	return syncLogRowsToMaps(rows), nil
}

func (s *SyncLogStore) RecentErrors(ctx context.Context, userID string, limit int) ([]map[string]any, error) {
	var rows []syncLogRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT l.id, l.user_id, l.account_id, a.display_name, l.found, l.imported, l.skipped,
		       l.failed, l.status, l.error_message, l.duration_ms, l.created_at
		FROM sync_logs l
		LEFT JOIN linked_accounts a ON a.id = l.account_id
		WHERE l.user_id = $1 AND l.status = 'error'
		ORDER BY l.created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	return syncLogRowsToMaps(rows), nil
}

func (s *SyncLogStore) Statistics(ctx context.Context, userID string) (SyncStats, error) {
	var stats SyncStats
	err := s.db.GetContext(ctx, &stats, `
		SELECT COUNT(*) AS total_runs,
		       COUNT(*) FILTER (WHERE status = 'success') AS succeeded,
		       COUNT(*) FILTER (WHERE status = 'partial') AS partial,
		       COUNT(*) FILTER (WHERE status = 'error') AS errored,
		       COALESCE(SUM(found), 0) AS total_found,
		       COALESCE(SUM(imported), 0) AS total_imported,
		       COALESCE(SUM(skipped), 0) AS total_skipped,
		       COALESCE(SUM(failed), 0) AS total_failed,
		       COUNT(*) FILTER (WHERE created_at >= NOW() - INTERVAL '24 hours') AS runs_last_day
		FROM sync_logs
		WHERE user_id = $1
	`, userID)
	if err != nil {
		return SyncStats{}, err
	}
	return stats, nil
}

func itoa(value int) string {
	return fmt.Sprintf("%d", value)
}

func syncLogRowsToMaps(rows []syncLogRow) []map[string]any {
	maps := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		maps = append(maps, map[string]any{
			"id":            row.ID,
			"user_id":       row.UserID,
			"account_id":    row.AccountID,
			"display_name":  derefStringPtr(row.DisplayName),
			"found":         row.Found,
			"imported":      row.Imported,
			"skipped":       row.Skipped,
			"failed":        row.Failed,
			"status":        row.Status,
			"error_message": derefStringPtr(row.ErrorMessage),
			"duration_ms":   row.DurationMS,
			"created_at":    row.CreatedAt,
		})
	}
	return maps
}

func derefStringPtr(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
