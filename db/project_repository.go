package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/intelogroup/searchmatic/db/models"
)

// ProjectRepository issues owner-scoped CRUD against the projects table.
// Every query filters on owner_id so one user can never see another's rows.
type ProjectRepository struct {
	pool *pgxpool.Pool
}

func NewProjectRepository(pool *pgxpool.Pool) *ProjectRepository {
	return &ProjectRepository{pool: pool}
}

const projectColumns = `id, owner_id, title, description, type, status, progress, created_at, updated_at`

func scanProject(row interface{ Scan(dest ...any) error }) (*models.Project, error) {
	var p models.Project
	err := row.Scan(
		&p.ID,
		&p.OwnerID,
		&p.Title,
		&p.Description,
		&p.Type,
		&p.Status,
		&p.Progress,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProjectRepository) Create(ctx context.Context, project *models.Project) error {
	const query = `
		INSERT INTO projects (id, owner_id, title, description, type, status, progress, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.pool.Exec(ctx, query,
		project.ID,
		project.OwnerID,
		project.Title,
		project.Description,
		project.Type,
		project.Status,
		project.Progress,
		project.CreatedAt,
		project.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert project: %w", mapRowError(err))
	}
	return nil
}

func (r *ProjectRepository) List(ctx context.Context, ownerID string) ([]models.Project, error) {
	query := fmt.Sprintf(`SELECT %s FROM projects WHERE owner_id = $1 ORDER BY created_at DESC`, projectColumns)

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	projects := make([]models.Project, 0)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, *p)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("list projects: %w", rows.Err())
	}
	return projects, nil
}

func (r *ProjectRepository) Get(ctx context.Context, ownerID, id string) (*models.Project, error) {
	query := fmt.Sprintf(`SELECT %s FROM projects WHERE id = $1 AND owner_id = $2`, projectColumns)

	p, err := scanProject(r.pool.QueryRow(ctx, query, id, ownerID))
	if err != nil {
		return nil, fmt.Errorf("query project: %w", mapRowError(err))
	}
	return p, nil
}

// Update persists the mutable project fields and bumps updated_at.
func (r *ProjectRepository) Update(ctx context.Context, project *models.Project) error {
	const query = `
		UPDATE projects
		SET title = $3, description = $4, type = $5, status = $6, progress = $7, updated_at = $8
		WHERE id = $1 AND owner_id = $2`

	tag, err := r.pool.Exec(ctx, query,
		project.ID,
		project.OwnerID,
		project.Title,
		project.Description,
		project.Type,
		project.Status,
		project.Progress,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ProjectRepository) Delete(ctx context.Context, ownerID, id string) error {
	const query = `DELETE FROM projects WHERE id = $1 AND owner_id = $2`

	tag, err := r.pool.Exec(ctx, query, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
