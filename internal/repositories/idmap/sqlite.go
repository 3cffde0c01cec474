package idmap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/travellife/internal/common"
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

func (r *SQLiteRepository) Insert(ctx context.Context, m *models.IdMapping) error {
	createdAt := m.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		`insert into id_mappings (local_id, server_id, entity_type, created_at) values (?, ?, ?, ?)`,
		m.LocalID, m.ServerID, m.EntityType, createdAt)
	if err != nil {
		return fmt.Errorf("failed to insert id mapping: %w", err)
	}
	m.CreatedAt = createdAt
	return nil
}

func (r *SQLiteRepository) GetByLocalID(ctx context.Context, localID string) (*models.IdMapping, error) {
	m := &models.IdMapping{}
	err := r.db.QueryRowContext(ctx,
		`select local_id, server_id, entity_type, created_at from id_mappings where local_id=?`,
		localID).Scan(&m.LocalID, &m.ServerID, &m.EntityType, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select id mapping: %w", err)
	}
	return m, nil
}

func (r *SQLiteRepository) ServerID(ctx context.Context, id string) (string, error) {
	m, err := r.GetByLocalID(ctx, id)
	if errors.Is(err, common.ErrorNotFound) {
		return id, nil
	}
	if err != nil {
		return "", err
	}
	return m.ServerID, nil
}

func (r *SQLiteRepository) All(ctx context.Context) ([]models.IdMapping, error) {
	rows, err := r.db.QueryContext(ctx,
		`select local_id, server_id, entity_type, created_at from id_mappings order by created_at, local_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to select id mappings: %w", err)
	}
	defer rows.Close()

	var result []models.IdMapping
	for rows.Next() {
		var m models.IdMapping
		if err := rows.Scan(&m.LocalID, &m.ServerID, &m.EntityType, &m.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
