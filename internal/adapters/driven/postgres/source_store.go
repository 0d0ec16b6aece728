package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/castn/sourceswitch/internal/core/domain"
	"github.com/castn/sourceswitch/internal/core/ports/driven"
	"github.com/lib/pq"
)

// Verify interface compliance
var _ driven.SourceStore = (*SourceStore)(nil)

const sourceColumns = `id, name, groups, enabled, weight, protocol, base_url, rules, created_at, updated_at`

// SourceStore implements driven.SourceStore using PostgreSQL
type SourceStore struct {
	db *DB
}

// NewSourceStore creates a new SourceStore
func NewSourceStore(db *DB) *SourceStore {
	return &SourceStore{db: db}
}

// Save creates or updates a source. The weight column is only written on
// insert; afterwards it moves through AdjustWeight and SetWeight alone.
func (s *SourceStore) Save(ctx context.Context, source *domain.ContentSource) error {
	rulesJSON, err := json.Marshal(source.Rules)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO sources (id, name, groups, enabled, weight, protocol, base_url, rules, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			groups = EXCLUDED.groups,
			enabled = EXCLUDED.enabled,
			protocol = EXCLUDED.protocol,
			base_url = EXCLUDED.base_url,
			rules = EXCLUDED.rules,
			updated_at = EXCLUDED.updated_at
	`

	_, err = s.db.ExecContext(ctx, query,
		source.ID,
		source.Name,
		pq.Array(groupsOrEmpty(source.Groups)),
		source.Enabled,
		source.Weight,
		string(source.Protocol),
		source.BaseURL,
		rulesJSON,
		source.CreatedAt,
		source.UpdatedAt,
	)
	return err
}

// Get retrieves a source by ID
func (s *SourceStore) Get(ctx context.Context, id string) (*domain.ContentSource, error) {
	query := `SELECT ` + sourceColumns + ` FROM sources WHERE id = $1`

	source, err := scanSource(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return source, nil
}

// List retrieves all sources
func (s *SourceStore) List(ctx context.Context) ([]*domain.ContentSource, error) {
	return s.querySources(ctx, `SELECT `+sourceColumns+` FROM sources ORDER BY id`)
}

// ListEnabled retrieves all enabled sources
func (s *SourceStore) ListEnabled(ctx context.Context) ([]*domain.ContentSource, error) {
	return s.querySources(ctx, `SELECT `+sourceColumns+` FROM sources WHERE enabled = TRUE ORDER BY id`)
}

// AdjustWeight adds delta to the stored weight in a single statement
func (s *SourceStore) AdjustWeight(ctx context.Context, id string, delta int64) (int64, error) {
	var weight int64
	err := s.db.QueryRowContext(ctx,
		`UPDATE sources SET weight = weight + $2, updated_at = NOW() WHERE id = $1 RETURNING weight`,
		id, delta,
	).Scan(&weight)
	if err == sql.ErrNoRows {
		return 0, domain.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("adjust weight: %w", err)
	}
	return weight, nil
}

// SetWeight overwrites the stored weight
func (s *SourceStore) SetWeight(ctx context.Context, id string, weight int64) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE sources SET weight = $2, updated_at = NOW() WHERE id = $1`,
		id, weight,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Ping checks the database is reachable
func (s *SourceStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *SourceStore) querySources(ctx context.Context, query string, args ...interface{}) ([]*domain.ContentSource, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []*domain.ContentSource
	for rows.Next() {
		source, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, source)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sources, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSource(row rowScanner) (*domain.ContentSource, error) {
	var source domain.ContentSource
	var protocol string
	var rulesJSON []byte
	var groups []string

	err := row.Scan(
		&source.ID,
		&source.Name,
		pq.Array(&groups),
		&source.Enabled,
		&source.Weight,
		&protocol,
		&source.BaseURL,
		&rulesJSON,
		&source.CreatedAt,
		&source.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(rulesJSON, &source.Rules); err != nil {
		return nil, fmt.Errorf("decode rules of %s: %w", source.ID, err)
	}
	source.Protocol = domain.SourceProtocol(protocol)
	if len(groups) > 0 {
		source.Groups = groups
	}
	return &source, nil
}

func groupsOrEmpty(groups []string) []string {
	if groups == nil {
		return []string{}
	}
	return groups
}
