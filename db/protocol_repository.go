package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/intelogroup/searchmatic/db/models"
)

// ProtocolRepository stores one review protocol per project; Upsert keeps
// that invariant with ON CONFLICT on the project id.
type ProtocolRepository struct {
	pool *pgxpool.Pool
}

func NewProtocolRepository(pool *pgxpool.Pool) *ProtocolRepository {
	return &ProtocolRepository{pool: pool}
}

func (r *ProtocolRepository) Upsert(ctx context.Context, protocol *models.Protocol) error {
	const query = `
		INSERT INTO protocols (id, project_id, owner_id, title, population, intervention, comparison, outcome,
			inclusion_criteria, exclusion_criteria, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (project_id) DO UPDATE SET
			title = EXCLUDED.title,
			population = EXCLUDED.population,
			intervention = EXCLUDED.intervention,
			comparison = EXCLUDED.comparison,
			outcome = EXCLUDED.outcome,
			inclusion_criteria = EXCLUDED.inclusion_criteria,
			exclusion_criteria = EXCLUDED.exclusion_criteria,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at`

	_, err := r.pool.Exec(ctx, query,
		protocol.ID,
		protocol.ProjectID,
		protocol.OwnerID,
		protocol.Title,
		protocol.Population,
		protocol.Intervention,
		protocol.Comparison,
		protocol.Outcome,
		protocol.InclusionCriteria,
		protocol.ExclusionCriteria,
		protocol.Status,
		protocol.CreatedAt,
		protocol.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert protocol: %w", err)
	}
	return nil
}

func (r *ProtocolRepository) GetByProject(ctx context.Context, ownerID, projectID string) (*models.Protocol, error) {
	const query = `
		SELECT id, project_id, owner_id, title, population, intervention, comparison, outcome,
			inclusion_criteria, exclusion_criteria, status, created_at, updated_at
		FROM protocols WHERE project_id = $1 AND owner_id = $2`

	var p models.Protocol
	err := r.pool.QueryRow(ctx, query, projectID, ownerID).Scan(
		&p.ID,
		&p.ProjectID,
		&p.OwnerID,
		&p.Title,
		&p.Population,
		&p.Intervention,
		&p.Comparison,
		&p.Outcome,
		&p.InclusionCriteria,
		&p.ExclusionCriteria,
		&p.Status,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("query protocol: %w", mapRowError(err))
	}
	return &p, nil
}
