package kv

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
)

// CredentialEntry is one persisted session field.
type CredentialEntry struct {
	bun.BaseModel `bun:"table:credential_entries,alias:ce"`

	Profile   string    `bun:"profile,pk"`
	Key       string    `bun:"key,pk"`
	Value     string    `bun:"value,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// SQL stores entries in Postgres, namespaced by profile so several portals
// can share one database.
type SQL struct {
	db      *bun.DB
	profile string
}

var _ Store = (*SQL)(nil)

func NewSQL(db *bun.DB, profile string) *SQL {
	return &SQL{db: db, profile: profile}
}

func (s *SQL) Get(ctx context.Context, key string) (string, error) {
	entry := new(CredentialEntry)
	err := s.db.NewSelect().
		Model(entry).
		Where("profile = ?", s.profile).
		Where("key = ?", key).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return entry.Value, nil
}

func (s *SQL) Set(ctx context.Context, key, value string) error {
	entry := &CredentialEntry{
		Profile:   s.profile,
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now().UTC(),
	}
	_, err := s.db.NewInsert().
		Model(entry).
		On("CONFLICT (profile, key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *SQL) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := s.db.NewDelete().
		Model((*CredentialEntry)(nil)).
		Where("profile = ?", s.profile).
		Where("key IN (?)", bun.In(keys)).
		Exec(ctx)
	return err
}

// Close leaves the shared *bun.DB open; its owner closes it.
func (s *SQL) Close() error { return nil }
