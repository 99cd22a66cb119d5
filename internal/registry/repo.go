package registry

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/starford/fractal/internal/apperr"
	"github.com/starford/fractal/internal/models"
)

const assetColumns = `id, name, kind, source, duration, checksum`

// Upsert inserts a new asset or updates the one registered under the same
// source. A missing id is generated. The stored asset is returned.
func (db *DB) Upsert(a models.Asset) (models.Asset, error) {
	if !a.Kind.Valid() {
		return models.Asset{}, fmt.Errorf("registry: upsert: kind %q: %w", a.Kind, apperr.ErrUnsupportedMedia)
	}
	if a.Source == "" {
		return models.Asset{}, fmt.Errorf("registry: upsert: empty source")
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}

	now := time.Now().UTC()
	err := db.conn.QueryRow(`
		INSERT INTO assets (id, name, kind, source, duration, checksum, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source) DO UPDATE SET
			name       = excluded.name,
			kind       = excluded.kind,
			duration   = excluded.duration,
			checksum   = excluded.checksum,
			updated_at = excluded.updated_at
		RETURNING id
	`, a.ID, a.Name, string(a.Kind), a.Source, a.Duration, a.Checksum, now, now).Scan(&a.ID)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
			return models.Asset{}, fmt.Errorf("registry: upsert %s: %w", a.ID, apperr.ErrAlreadyExists)
		}
		return models.Asset{}, fmt.Errorf("registry: upsert: %w", err)
	}
	return a, nil
}

// Get returns the asset with the given id.
func (db *DB) Get(id string) (models.Asset, error) {
	return db.getOne(`SELECT `+assetColumns+` FROM assets WHERE id = ?`, id)
}

// GetBySource returns the asset registered for source.
func (db *DB) GetBySource(source string) (models.Asset, error) {
	return db.getOne(`SELECT `+assetColumns+` FROM assets WHERE source = ?`, source)
}

// FindByChecksum returns the oldest asset with the given content checksum.
func (db *DB) FindByChecksum(sum string) (models.Asset, error) {
	if sum == "" {
		return models.Asset{}, fmt.Errorf("registry: empty checksum: %w", apperr.ErrNotFound)
	}
	return db.getOne(`SELECT `+assetColumns+` FROM assets WHERE checksum = ? ORDER BY rowid LIMIT 1`, sum)
}

func (db *DB) getOne(query string, arg string) (models.Asset, error) {
	a, err := scanAsset(db.conn.QueryRow(query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Asset{}, fmt.Errorf("registry: %s: %w", arg, apperr.ErrNotFound)
	}
	if err != nil {
		return models.Asset{}, fmt.Errorf("registry: get: %w", err)
	}
	return a, nil
}

// List returns assets in registration order together with the total number
// of matches before paging.
func (db *DB) List(f Filter) ([]models.Asset, int, error) {
	var (
		where []string
		args  []any
	)
	if f.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, string(f.Kind))
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		where = append(where, `name LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(q)+"%")
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM assets`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("registry: count: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = -1
	}
	offset := max(f.Offset, 0)
	rows, err := db.conn.Query(`SELECT `+assetColumns+` FROM assets`+clause+` ORDER BY rowid LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("registry: list: %w", err)
	}
	defer rows.Close()

	out := []models.Asset{}
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("registry: scan: %w", err)
		}
		out = append(out, a)
	}
	return out, total, rows.Err()
}

// AllChecksums returns source → checksum for every registered asset.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT source, checksum FROM assets`)
	if err != nil {
		return nil, fmt.Errorf("registry: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var src, cs string
		if err := rows.Scan(&src, &cs); err != nil {
			return nil, err
		}
		out[src] = cs
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAsset(s scanner) (models.Asset, error) {
	var (
		a    models.Asset
		kind string
	)
	if err := s.Scan(&a.ID, &a.Name, &kind, &a.Source, &a.Duration, &a.Checksum); err != nil {
		return models.Asset{}, err
	}
	a.Kind = models.Kind(kind)
	return a, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
