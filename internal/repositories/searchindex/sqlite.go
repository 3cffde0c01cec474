package searchindex

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/travellife/internal/dbx"
	"github.com/dmitrijs2005/travellife/internal/models"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Upsert(ctx context.Context, e *models.SearchIndexEntry) error {
	query := ` INSERT INTO search_index (id, entity_type, entity_id, trip_id, searchable_text, title, subtitle, indexed_at)
			values (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET trip_id = excluded.trip_id,
				searchable_text = excluded.searchable_text,
				title = excluded.title,
				subtitle = excluded.subtitle,
				indexed_at = excluded.indexed_at
	`
	_, err := r.db.ExecContext(ctx, query,
		e.ID, e.EntityType, e.EntityID, e.TripID, e.SearchableText, e.Title, e.Subtitle, e.IndexedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert index entry: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteByEntity(ctx context.Context, t models.EntityType, entityID string) error {
	_, err := r.db.ExecContext(ctx,
		`delete from search_index where entity_type=? and entity_id=?`, t, entityID)
	if err != nil {
		return fmt.Errorf("failed to delete index entry: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) RewriteEntityID(ctx context.Context, t models.EntityType, localID, serverID string) error {
	_, err := r.db.ExecContext(ctx,
		`update search_index set id=?, entity_id=? where entity_type=? and entity_id=?`,
		models.SearchIndexID(t, serverID), serverID, t, localID)
	if err != nil {
		return fmt.Errorf("failed to rewrite index entry id: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) RewriteTripID(ctx context.Context, localID, serverID string) error {
	_, err := r.db.ExecContext(ctx,
		`update search_index set trip_id=? where trip_id=?`, serverID, localID)
	if err != nil {
		return fmt.Errorf("failed to rewrite index trip id: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Search(ctx context.Context, tripID, query string) ([]models.SearchIndexEntry, error) {
	q := `select id, entity_type, entity_id, trip_id, searchable_text, title, subtitle, indexed_at
			from search_index where searchable_text like ?`
	args := []any{"%" + strings.ToLower(query) + "%"}
	if tripID != "" {
		q += ` and trip_id=?`
		args = append(args, tripID)
	}
	q += ` order by entity_type, entity_id`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %w", err)
	}
	defer rows.Close()

	var result []models.SearchIndexEntry
	for rows.Next() {
		var e models.SearchIndexEntry
		if err := rows.Scan(&e.ID, &e.EntityType, &e.EntityID, &e.TripID,
			&e.SearchableText, &e.Title, &e.Subtitle, &e.IndexedAt); err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `delete from search_index`)
	if err != nil {
		return fmt.Errorf("failed to clear index: %w", err)
	}
	return nil
}
