package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/intelogroup/searchmatic/db/models"
)

type ExportRepository struct {
	pool *pgxpool.Pool
}

func NewExportRepository(pool *pgxpool.Pool) *ExportRepository {
	return &ExportRepository{pool: pool}
}

func (r *ExportRepository) Insert(ctx context.Context, entry *models.ExportLog) error {
	const query = `
		INSERT INTO export_logs (id, project_id, owner_id, kind, format, row_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.pool.Exec(ctx, query,
		entry.ID,
		entry.ProjectID,
		entry.OwnerID,
		entry.Kind,
		entry.Format,
		entry.RowCount,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert export log: %w", err)
	}
	return nil
}

func (r *ExportRepository) ListByProject(ctx context.Context, ownerID, projectID string) ([]models.ExportLog, error) {
	const query = `
		SELECT id, project_id, owner_id, kind, format, row_count, created_at
		FROM export_logs WHERE project_id = $1 AND owner_id = $2
		ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, projectID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list export logs: %w", err)
	}
	defer rows.Close()

	logs := make([]models.ExportLog, 0)
	for rows.Next() {
		var l models.ExportLog
		if err := rows.Scan(&l.ID, &l.ProjectID, &l.OwnerID, &l.Kind, &l.Format, &l.RowCount, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan export log: %w", err)
		}
		logs = append(logs, l)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("list export logs: %w", rows.Err())
	}
	return logs, nil
}
