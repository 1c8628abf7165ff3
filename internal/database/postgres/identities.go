package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/face-attendance/internal/identity"
)

// IdentityStore is the PostgreSQL implementation of identity.Store. Each
// identity's embedding samples live in identity_samples with a pgvector
// column, so similarity search can run inside the database.
type IdentityStore struct {
	pool *Pool
}

func NewIdentityStore(pool *Pool) *IdentityStore {
	return &IdentityStore{pool: pool}
}

func (s *IdentityStore) Get(ctx context.Context, id string) (*identity.Identity, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT id, image_path, enrolled_at FROM identities WHERE id = $1", id)

	var ident identity.Identity
	err := row.Scan(&ident.ID, &ident.ImagePath, &ident.EnrolledAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan identity: %w", err)
	}

	ident.Samples, err = s.getSamples(ctx, id)
	if err != nil {
		return nil, err
	}
	return &ident, nil
}

func (s *IdentityStore) getSamples(ctx context.Context, id string) ([][]float32, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT embedding FROM identity_samples
		WHERE identity_id = $1 ORDER BY sample_index
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query samples: %w", err)
	}
	defer rows.Close()

	var samples [][]float32
	for rows.Next() {
		var vec pgvector.Vector
		if err := rows.Scan(&vec); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		samples = append(samples, vec.Slice())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate samples: %w", err)
	}
	return samples, nil
}

// Put replaces the identity and its full sample set in one transaction.
func (s *IdentityStore) Put(ctx context.Context, ident identity.Identity) error {
	tx, err := s.pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO identities (id, image_path, enrolled_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET image_path = EXCLUDED.image_path
	`, ident.ID, ident.ImagePath, ident.EnrolledAt)
	if err != nil {
		return fmt.Errorf("upsert identity: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM identity_samples WHERE identity_id = $1", ident.ID); err != nil {
		return fmt.Errorf("delete old samples: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO identity_samples (identity_id, sample_index, embedding)
		VALUES ($1, $2, $3::vector)
	`)
	if err != nil {
		return fmt.Errorf("prepare sample insert: %w", err)
	}
	defer stmt.Close()

	for i, sample := range ident.Samples {
		if _, err := stmt.ExecContext(ctx, ident.ID, i, pgvector.NewVector(sample)); err != nil {
			return fmt.Errorf("insert sample %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit identity: %w", err)
	}
	return nil
}

func (s *IdentityStore) Delete(ctx context.Context, id string) (bool, error) {
	result, err := s.pool.Exec(ctx, "DELETE FROM identities WHERE id = $1", id)
	if err != nil {
		return false, fmt.Errorf("delete identity: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete identity: %w", err)
	}
	return affected > 0, nil
}

func (s *IdentityStore) List(ctx context.Context) ([]identity.Identity, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT id, image_path, enrolled_at FROM identities ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query identities: %w", err)
	}
	defer rows.Close()

	var identities []identity.Identity
	for rows.Next() {
		var ident identity.Identity
		if err := rows.Scan(&ident.ID, &ident.ImagePath, &ident.EnrolledAt); err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		identities = append(identities, ident)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identities: %w", err)
	}

	for i := range identities {
		identities[i].Samples, err = s.getSamples(ctx, identities[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return identities, nil
}

// FindSimilar returns up to limit identities ordered by the cosine distance
// of their closest sample to the query embedding.
func (s *IdentityStore) FindSimilar(
	ctx context.Context, embedding []float32, limit int,
) ([]string, []float64, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT identity_id, MIN(embedding <=> $1::vector) AS distance
		FROM identity_samples
		GROUP BY identity_id
		ORDER BY distance
		LIMIT $2
	`, pgvector.NewVector(embedding), limit)
	if err != nil {
		return nil, nil, fmt.Errorf("query similar identities: %w", err)
	}
	defer rows.Close()

	var ids []string
	var distances []float64
	for rows.Next() {
		var id string
		var dist float64
		if err := rows.Scan(&id, &dist); err != nil {
			return nil, nil, fmt.Errorf("scan similar identity: %w", err)
		}
		ids = append(ids, id)
		distances = append(distances, dist)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate similar identities: %w", err)
	}
	return ids, distances, nil
}

// Verify interface compliance.
var _ identity.Store = (*IdentityStore)(nil)
var _ identity.SimilaritySearcher = (*IdentityStore)(nil)
