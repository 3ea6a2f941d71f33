package postgres

// Package postgres provides a durable TokenStore for deployments that want
// token survival across Redis restarts. Records are upserted per sid and
// purged once past the grace window.

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	domainauth "github.com/mhnuk2007/oerms-sub002/internal/domain/auth"
	apperrors "github.com/mhnuk2007/oerms-sub002/internal/errors"
	"github.com/mhnuk2007/oerms-sub002/internal/ports"
)

var _ ports.TokenStore = (*TokenStore)(nil)

// TokenStore persists token records in the token_records table.
type TokenStore struct {
	DB    *sql.DB
	grace time.Duration
}

// NewTokenStore creates a Postgres-backed token store. grace keeps a record
// loadable past its access token expiry so the refresh token remains usable.
func NewTokenStore(db *sql.DB, grace time.Duration) *TokenStore {
	return &TokenStore{DB: db, grace: grace}
}

// tokenRow mirrors the token_records columns for pgx struct mapping.
type tokenRow struct {
	AccessToken  string    `db:"access_token"`
	RefreshToken string    `db:"refresh_token"`
	ExpiresAt    time.Time `db:"expires_at"`
}

func (s *TokenStore) Save(ctx context.Context, sid string, rec domainauth.TokenRecord) error {
	if sid == "" {
		return errors.New("sid cannot be empty")
	}
	if time.Until(rec.ExpiresAt)+s.grace <= 0 {
		return errors.New("token record is already past its grace window")
	}

	err := withPgxConn(ctx, s.DB, func(conn *pgx.Conn) error {
		_, execErr := conn.Exec(ctx, `
			INSERT INTO token_records (sid, access_token, refresh_token, expires_at, updated_at)
			VALUES ($1, $2, $3, $4, now())
			ON CONFLICT (sid) DO UPDATE
			SET access_token = EXCLUDED.access_token,
			    refresh_token = EXCLUDED.refresh_token,
			    expires_at = EXCLUDED.expires_at,
			    updated_at = now()
		`, sid, rec.AccessToken, rec.RefreshToken, rec.ExpiresAt)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("save token record: %w", apperrors.MapDBError(err))
	}
	return nil
}

func (s *TokenStore) Load(ctx context.Context, sid string) (*domainauth.TokenRecord, error) {
	if sid == "" {
		return nil, nil
	}

	var row tokenRow
	err := withPgxConn(ctx, s.DB, func(conn *pgx.Conn) error {
		rows, queryErr := conn.Query(ctx, `
			SELECT access_token, refresh_token, expires_at
			FROM token_records
			WHERE sid = $1
		`, sid)
		if queryErr != nil {
			return queryErr
		}
		defer rows.Close()
		row, queryErr = pgx.CollectOneRow(rows, pgx.RowToStructByName[tokenRow])
		return queryErr
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load token record: %w", apperrors.MapDBError(err))
	}

	// Past the grace window the refresh token is useless too; purge.
	if time.Now().After(row.ExpiresAt.Add(s.grace)) {
		if clearErr := s.Clear(ctx, sid); clearErr != nil {
			return nil, fmt.Errorf("purge stale token record: %w", clearErr)
		}
		return nil, nil
	}

	return &domainauth.TokenRecord{
		AccessToken:  row.AccessToken,
		RefreshToken: row.RefreshToken,
		ExpiresAt:    row.ExpiresAt,
	}, nil
}

func (s *TokenStore) Clear(ctx context.Context, sid string) error {
	if sid == "" {
		return nil
	}

	err := withPgxConn(ctx, s.DB, func(conn *pgx.Conn) error {
		_, execErr := conn.Exec(ctx, `DELETE FROM token_records WHERE sid = $1`, sid)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("clear token record: %w", apperrors.MapDBError(err))
	}
	return nil
}
