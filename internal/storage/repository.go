package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"alphaminer/internal/config"
	apperrors "alphaminer/internal/errors"
	"alphaminer/internal/miner"
)

// Repository persists accepted factors in PostgreSQL
type Repository struct {
	db *sql.DB
}

// NewRepository opens a database connection and verifies it
func NewRepository(cfg config.PostgresConfig) (*Repository, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, apperrors.WrapError(err, apperrors.ErrCodeDBConnection, "failed to open database")
	}

	if cfg.MaxOpen > 0 {
		db.SetMaxOpenConns(cfg.MaxOpen)
	}
	if cfg.MaxIdle > 0 {
		db.SetMaxIdleConns(cfg.MaxIdle)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, apperrors.WrapError(err, apperrors.ErrCodeDBConnection, "failed to connect to database")
	}

	return &Repository{db: db}, nil
}

// NewRepositoryWithDB wraps an existing connection, used by tests and the
// migration command
func NewRepositoryWithDB(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Accept inserts an accepted factor
func (r *Repository) Accept(ctx context.Context, candidate *miner.FactorCandidate) error {
	query := `
		INSERT INTO factors (id, dataset_id, expression, attempt, alpha_id, sharpe, passed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`

	var alphaID string
	var sharpe float64
	var passed bool
	if candidate.Result != nil {
		alphaID = candidate.Result.AlphaID
		sharpe = candidate.Result.Sharpe
		passed = candidate.Result.Passed
	}

	_, err := r.db.ExecContext(ctx, query,
		candidate.ID, candidate.DatasetID, candidate.Expression,
		candidate.Attempt, alphaID, sharpe, passed, candidate.CreatedAt)
	if err != nil {
		return apperrors.WrapError(err, apperrors.ErrCodeDBQuery, "failed to insert factor")
	}
	return nil
}

// List returns stored factors ordered by acceptance time, newest first
func (r *Repository) List(ctx context.Context, limit int) ([]*miner.FactorCandidate, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, dataset_id, expression, attempt, alpha_id, sharpe, passed, created_at
		FROM factors
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, apperrors.WrapError(err, apperrors.ErrCodeDBQuery, "failed to query factors")
	}
	defer rows.Close()

	var factors []*miner.FactorCandidate
	for rows.Next() {
		candidate := &miner.FactorCandidate{Result: &miner.EvaluationResult{}}
		if err := rows.Scan(
			&candidate.ID, &candidate.DatasetID, &candidate.Expression,
			&candidate.Attempt, &candidate.Result.AlphaID,
			&candidate.Result.Sharpe, &candidate.Result.Passed,
			&candidate.CreatedAt,
		); err != nil {
			return nil, apperrors.WrapError(err, apperrors.ErrCodeDBQuery, "failed to scan factor row")
		}
		factors = append(factors, candidate)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.WrapError(err, apperrors.ErrCodeDBQuery, "failed to read factor rows")
	}
	return factors, nil
}

// Close releases the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}
