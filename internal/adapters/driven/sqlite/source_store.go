package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/castn/sourceswitch/internal/core/domain"
	"github.com/castn/sourceswitch/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.SourceStore = (*SourceStore)(nil)

const sourceColumns = "id, name, groups_json, enabled, weight, protocol, base_url, rules_json, created_at, updated_at"

// SourceStore implements driven.SourceStore on SQLite
type SourceStore struct {
	db *DB
}

// NewSourceStore creates a new SourceStore
func NewSourceStore(db *DB) *SourceStore {
	return &SourceStore{db: db}
}

// Save creates or updates a source. The weight is only written on insert.
func (s *SourceStore) Save(ctx context.Context, source *domain.ContentSource) error {
	groups := source.Groups
	if groups == nil {
		groups = []string{}
	}
	groupsJSON, err := json.Marshal(groups)
	if err != nil {
		return fmt.Errorf("marshal groups: %w", err)
	}
	rulesJSON, err := json.Marshal(source.Rules)
	if err != nil {
		return fmt.Errorf("marshal rules: %w", err)
	}

	_, err = s.db.db.ExecContext(ctx,
		`INSERT INTO sources (`+sourceColumns+`)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT (id) DO UPDATE SET
            name = excluded.name,
            groups_json = excluded.groups_json,
            enabled = excluded.enabled,
            protocol = excluded.protocol,
            base_url = excluded.base_url,
            rules_json = excluded.rules_json,
            updated_at = excluded.updated_at`,
		source.ID,
		source.Name,
		string(groupsJSON),
		boolToInt(source.Enabled),
		source.Weight,
		string(source.Protocol),
		source.BaseURL,
		string(rulesJSON),
		formatTime(source.CreatedAt),
		formatTime(source.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("save source %s: %w", source.ID, err)
	}
	return nil
}

// Get retrieves a source by ID
func (s *SourceStore) Get(ctx context.Context, id string) (*domain.ContentSource, error) {
	row := s.db.db.QueryRowContext(ctx, "SELECT "+sourceColumns+" FROM sources WHERE id = ?", id)
	source, err := scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return source, nil
}

// List retrieves all sources
func (s *SourceStore) List(ctx context.Context) ([]*domain.ContentSource, error) {
	return s.query(ctx, "SELECT "+sourceColumns+" FROM sources ORDER BY id")
}

// ListEnabled retrieves all enabled sources
func (s *SourceStore) ListEnabled(ctx context.Context) ([]*domain.ContentSource, error) {
	return s.query(ctx, "SELECT "+sourceColumns+" FROM sources WHERE enabled = 1 ORDER BY id")
}

// AdjustWeight adds delta to the stored weight in a single statement
func (s *SourceStore) AdjustWeight(ctx context.Context, id string, delta int64) (int64, error) {
	var weight int64
	err := s.db.db.QueryRowContext(ctx,
		"UPDATE sources SET weight = weight + ?, updated_at = ? WHERE id = ? RETURNING weight",
		delta, formatTime(time.Now()), id,
	).Scan(&weight)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("adjust weight: %w", err)
	}
	return weight, nil
}

// SetWeight overwrites the stored weight
func (s *SourceStore) SetWeight(ctx context.Context, id string, weight int64) error {
	res, err := s.db.db.ExecContext(ctx,
		"UPDATE sources SET weight = ?, updated_at = ? WHERE id = ?",
		weight, formatTime(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("set weight: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Ping checks the database is reachable
func (s *SourceStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *SourceStore) query(ctx context.Context, query string, args ...any) ([]*domain.ContentSource, error) {
	rows, err := s.db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
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
	return sources, rows.Err()
}

func scanSource(scanner interface{ Scan(dest ...any) error }) (*domain.ContentSource, error) {
	var (
		source     domain.ContentSource
		groupsRaw  string
		enabled    int64
		protocol   string
		rulesRaw   string
		createdRaw string
		updatedRaw string
	)
	if err := scanner.Scan(
		&source.ID,
		&source.Name,
		&groupsRaw,
		&enabled,
		&source.Weight,
		&protocol,
		&source.BaseURL,
		&rulesRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	var groups []string
	if err := json.Unmarshal([]byte(groupsRaw), &groups); err != nil {
		return nil, fmt.Errorf("decode groups of %s: %w", source.ID, err)
	}
	if len(groups) > 0 {
		source.Groups = groups
	}
	if err := json.Unmarshal([]byte(rulesRaw), &source.Rules); err != nil {
		return nil, fmt.Errorf("decode rules of %s: %w", source.ID, err)
	}
	source.Enabled = enabled != 0
	source.Protocol = domain.SourceProtocol(protocol)
	source.CreatedAt = parseTime(createdRaw)
	source.UpdatedAt = parseTime(updatedRaw)
	return &source, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
