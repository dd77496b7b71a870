package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/intelogroup/searchmatic/db/models"
)

type ProfileRepository struct {
	pool *pgxpool.Pool
}

func NewProfileRepository(pool *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{pool: pool}
}

func (r *ProfileRepository) Create(ctx context.Context, profile *models.Profile) error {
	const query = `
		INSERT INTO profiles (id, email, full_name, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.pool.Exec(ctx, query,
		profile.ID,
		strings.ToLower(profile.Email),
		profile.FullName,
		profile.PasswordHash,
		profile.CreatedAt,
		profile.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert profile: %w", mapRowError(err))
	}
	return nil
}

func (r *ProfileRepository) GetByEmail(ctx context.Context, email string) (*models.Profile, error) {
	const query = `
		SELECT id, email, full_name, password_hash, created_at, updated_at
		FROM profiles WHERE email = $1`

	var profile models.Profile
	err := r.pool.QueryRow(ctx, query, strings.ToLower(strings.TrimSpace(email))).Scan(
		&profile.ID,
		&profile.Email,
		&profile.FullName,
		&profile.PasswordHash,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("query profile by email: %w", mapRowError(err))
	}
	return &profile, nil
}

func (r *ProfileRepository) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	const query = `
		SELECT id, email, full_name, password_hash, created_at, updated_at
		FROM profiles WHERE id = $1`

	var profile models.Profile
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&profile.ID,
		&profile.Email,
		&profile.FullName,
		&profile.PasswordHash,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("query profile by id: %w", mapRowError(err))
	}
	return &profile, nil
}

func (r *ProfileRepository) Touch(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE profiles SET updated_at = $2 WHERE id = $1`
	if _, err := r.pool.Exec(ctx, query, id, at); err != nil {
		return fmt.Errorf("touch profile: %w", err)
	}
	return nil
}
