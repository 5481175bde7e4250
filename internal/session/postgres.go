package session

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pribylovaa/kiosk-admin/internal/models"
)

//go:embed migrations/1_init_sessions.up.sql
var initSessionsSQL string

// PostgresStore хранит пару в таблице admin_sessions, одна строка на профиль.
type PostgresStore struct {
	db      *pgxpool.Pool
	profile string
}

// NewPostgresStore создаёт пул соединений к PostgreSQL и проверяет его.
func NewPostgresStore(ctx context.Context, dbURL, profile string) (*PostgresStore, error) {
	const op = "session.NewPostgresStore"

	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	db, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if profile == "" {
		profile = "default"
	}

	return &PostgresStore{db: db, profile: profile}, nil
}

// EnsureSchema применяет встроенную миграцию (идемпотентно).
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	const op = "session.PostgresStore.EnsureSchema"

	if _, err := s.db.Exec(ctx, initSessionsSQL); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *PostgresStore) Get(ctx context.Context) (models.TokenPair, bool, error) {
	const op = "session.PostgresStore.Get"

	const q = `
		SELECT access_token, refresh_token, access_expires_at
		FROM admin_sessions
		WHERE profile = $1`

	var (
		pair models.TokenPair
		exp  *time.Time
	)

	err := s.db.QueryRow(ctx, q, s.profile).Scan(&pair.AccessToken, &pair.RefreshToken, &exp)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.TokenPair{}, false, nil
		}

		return models.TokenPair{}, false, fmt.Errorf("%s: %w", op, mapPgErr(err))
	}

	if exp != nil {
		pair.AccessExpiresAt = exp.UTC()
	}

	return pair, !pair.IsZero(), nil
}

func (s *PostgresStore) Set(ctx context.Context, pair models.TokenPair) error {
	const op = "session.PostgresStore.Set"

	const q = `
		INSERT INTO admin_sessions (profile, access_token, refresh_token, access_expires_at, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (profile) DO UPDATE
		SET access_token = EXCLUDED.access_token,
		    refresh_token = EXCLUDED.refresh_token,
		    access_expires_at = EXCLUDED.access_expires_at,
		    updated_at = now()`

	var exp *time.Time
	if !pair.AccessExpiresAt.IsZero() {
		t := pair.AccessExpiresAt.UTC()
		exp = &t
	}

	if _, err := s.db.Exec(ctx, q, s.profile, pair.AccessToken, pair.RefreshToken, exp); err != nil {
		return fmt.Errorf("%s: %w", op, mapPgErr(err))
	}

	return nil
}

func (s *PostgresStore) Clear(ctx context.Context) error {
	const op = "session.PostgresStore.Clear"

	if _, err := s.db.Exec(ctx, `DELETE FROM admin_sessions WHERE profile = $1`, s.profile); err != nil {
		return fmt.Errorf("%s: %w", op, mapPgErr(err))
	}

	return nil
}

// Close закрывает пул соединений.
func (s *PostgresStore) Close() {
	s.db.Close()
}

// mapPgErr отличает «не применена миграция» от прочих отказов БД.
func mapPgErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UndefinedTable {
		return fmt.Errorf("%w: %w", ErrSchemaMissing, err)
	}

	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}

var _ Store = (*PostgresStore)(nil)
