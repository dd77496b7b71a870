package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/intelogroup/searchmatic/db/models"
)

type StudyRepository struct {
	pool *pgxpool.Pool
}

func NewStudyRepository(pool *pgxpool.Pool) *StudyRepository {
	return &StudyRepository{pool: pool}
}

const studyColumns = `id, project_id, owner_id, title, authors, journal, year, abstract, doi, screening_status, created_at, updated_at`

func scanStudy(row interface{ Scan(dest ...any) error }) (*models.Study, error) {
	var s models.Study
	err := row.Scan(
		&s.ID,
		&s.ProjectID,
		&s.OwnerID,
		&s.Title,
		&s.Authors,
		&s.Journal,
		&s.Year,
		&s.Abstract,
		&s.DOI,
		&s.ScreeningStatus,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *StudyRepository) Create(ctx context.Context, study *models.Study) error {
	const query = `
		INSERT INTO studies (id, project_id, owner_id, title, authors, journal, year, abstract, doi, screening_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.pool.Exec(ctx, query,
		study.ID,
		study.ProjectID,
		study.OwnerID,
		study.Title,
		study.Authors,
		study.Journal,
		study.Year,
		study.Abstract,
		study.DOI,
		study.ScreeningStatus,
		study.CreatedAt,
		study.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert study: %w", mapRowError(err))
	}
	return nil
}

func (r *StudyRepository) ListByProject(ctx context.Context, ownerID, projectID string) ([]models.Study, error) {
	query := fmt.Sprintf(`SELECT %s FROM studies WHERE project_id = $1 AND owner_id = $2 ORDER BY created_at DESC`, studyColumns)

	rows, err := r.pool.Query(ctx, query, projectID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list studies: %w", err)
	}
	defer rows.Close()

	return collectStudies(rows)
}

// Search matches the query text against title, abstract and authors within
// one project.
func (r *StudyRepository) Search(ctx context.Context, ownerID, projectID, text string) ([]models.Study, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM studies
		WHERE project_id = $1 AND owner_id = $2
		  AND (title ILIKE $3 OR abstract ILIKE $3 OR authors ILIKE $3)
		ORDER BY created_at DESC`, studyColumns)

	pattern := "%" + text + "%"
	rows, err := r.pool.Query(ctx, query, projectID, ownerID, pattern)
	if err != nil {
		return nil, fmt.Errorf("search studies: %w", err)
	}
	defer rows.Close()

	return collectStudies(rows)
}

func (r *StudyRepository) Get(ctx context.Context, ownerID, id string) (*models.Study, error) {
	query := fmt.Sprintf(`SELECT %s FROM studies WHERE id = $1 AND owner_id = $2`, studyColumns)

	s, err := scanStudy(r.pool.QueryRow(ctx, query, id, ownerID))
	if err != nil {
		return nil, fmt.Errorf("query study: %w", mapRowError(err))
	}
	return s, nil
}

func (r *StudyRepository) UpdateScreening(ctx context.Context, ownerID, id, status string) error {
	const query = `
		UPDATE studies SET screening_status = $3, updated_at = $4
		WHERE id = $1 AND owner_id = $2`

	tag, err := r.pool.Exec(ctx, query, id, ownerID, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update study screening: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *StudyRepository) Delete(ctx context.Context, ownerID, id string) error {
	const query = `DELETE FROM studies WHERE id = $1 AND owner_id = $2`

	tag, err := r.pool.Exec(ctx, query, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete study: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func collectStudies(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]models.Study, error) {
	studies := make([]models.Study, 0)
	for rows.Next() {
		s, err := scanStudy(rows)
		if err != nil {
			return nil, fmt.Errorf("scan study: %w", err)
		}
		studies = append(studies, *s)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("collect studies: %w", rows.Err())
	}
	return studies, nil
}
