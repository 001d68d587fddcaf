package sqlite3

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/oklog/ulid/v2"
	"github.com/rakunlabs/pcgate/internal/store"
)

// ─── API Token CRUD ───

func (s *SQLite) ListAPITokens(ctx context.Context) ([]store.APIToken, error) {
	query, _, err := s.goqu.From(s.tableAPITokens).
		Select("id", "name", "token_prefix", "created_at", "last_used_at").
		Order(goqu.I("created_at").Desc()).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list tokens query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	defer rows.Close()

	var result []store.APIToken
	for rows.Next() {
		var t store.APIToken
		if err := rows.Scan(&t.ID, &t.Name, &t.TokenPrefix, &t.CreatedAt, &t.LastUsedAt); err != nil {
			return nil, fmt.Errorf("scan api_token row: %w", err)
		}
		result = append(result, t)
	}

	return result, rows.Err()
}

func (s *SQLite) GetAPITokenByHash(ctx context.Context, hash string) (*store.APIToken, error) {
	query, _, err := s.goqu.From(s.tableAPITokens).
		Select("id", "name", "token_prefix", "created_at", "last_used_at").
		Where(goqu.I("token_hash").Eq(hash)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build get api_token query: %w", err)
	}

	var t store.APIToken
	err = s.db.QueryRowContext(ctx, query).Scan(&t.ID, &t.Name, &t.TokenPrefix, &t.CreatedAt, &t.LastUsedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get api_token by hash: %w", err)
	}

	return &t, nil
}

func (s *SQLite) CreateAPIToken(ctx context.Context, token store.APIToken, tokenHash string) (*store.APIToken, error) {
	id := ulid.Make().String()
	now := time.Now().UTC().Format(time.RFC3339)

	query, _, err := s.goqu.Insert(s.tableAPITokens).Rows(
		goqu.Record{
			"id":           id,
			"name":         token.Name,
			"token_hash":   tokenHash,
			"token_prefix": token.TokenPrefix,
			"created_at":   now,
		},
	).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build insert api_token query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return nil, fmt.Errorf("create api_token: %w", err)
	}

	token.ID = id
	token.CreatedAt = now
	return &token, nil
}

func (s *SQLite) DeleteAPIToken(ctx context.Context, id string) error {
	query, _, err := s.goqu.Delete(s.tableAPITokens).
		Where(goqu.I("id").Eq(id)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build delete api_token query: %w", err)
	}

	_, err = s.db.ExecContext(ctx, query)
	if err != nil {
		return fmt.Errorf("delete api_token %q: %w", id, err)
	}
	return nil
}

func (s *SQLite) UpdateLastUsed(ctx context.Context, id string) error {
	now := time.Now().UTC().Format(time.RFC3339)

	query, _, err := s.goqu.Update(s.tableAPITokens).Set(
		goqu.Record{"last_used_at": now},
	).Where(goqu.I("id").Eq(id)).ToSQL()
	if err != nil {
		return fmt.Errorf("build update last_used query: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query)
	if err != nil {
		return fmt.Errorf("update last_used for %q: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("api token %q not found", id)
	}
	return nil
}
