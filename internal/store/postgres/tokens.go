package postgres

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

type tokenRow struct {
	ID          string       `db:"id"`
	Name        string       `db:"name"`
	TokenPrefix string       `db:"token_prefix"`
	CreatedAt   time.Time    `db:"created_at"`
	LastUsedAt  sql.NullTime `db:"last_used_at"`
}

// ─── API Token CRUD ───

func (p *Postgres) ListAPITokens(ctx context.Context) ([]store.APIToken, error) {
	query, _, err := p.goqu.From(p.tableAPITokens).
		Select("id", "name", "token_prefix", "created_at", "last_used_at").
		Order(goqu.I("created_at").Desc()).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list tokens query: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	defer rows.Close()

	var result []store.APIToken
	for rows.Next() {
		var row tokenRow
		if err := rows.Scan(&row.ID, &row.Name, &row.TokenPrefix, &row.CreatedAt, &row.LastUsedAt); err != nil {
			return nil, fmt.Errorf("scan api_token row: %w", err)
		}
		result = append(result, tokenRowToRecord(row))
	}

	return result, rows.Err()
}

func (p *Postgres) GetAPITokenByHash(ctx context.Context, hash string) (*store.APIToken, error) {
	query, _, err := p.goqu.From(p.tableAPITokens).
		Select("id", "name", "token_prefix", "created_at", "last_used_at").
		Where(goqu.I("token_hash").Eq(hash)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build get api_token query: %w", err)
	}

	var row tokenRow
	err = p.db.QueryRowContext(ctx, query).Scan(&row.ID, &row.Name, &row.TokenPrefix, &row.CreatedAt, &row.LastUsedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get api_token by hash: %w", err)
	}

	rec := tokenRowToRecord(row)
	return &rec, nil
}

func (p *Postgres) CreateAPIToken(ctx context.Context, token store.APIToken, tokenHash string) (*store.APIToken, error) {
	id := ulid.Make().String()
	now := time.Now().UTC()

	query, _, err := p.goqu.Insert(p.tableAPITokens).Rows(
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

	if _, err := p.db.ExecContext(ctx, query); err != nil {
		return nil, fmt.Errorf("create api_token: %w", err)
	}

	token.ID = id
	token.CreatedAt = now.Format(time.RFC3339)
	return &token, nil
}

func (p *Postgres) DeleteAPIToken(ctx context.Context, id string) error {
	query, _, err := p.goqu.Delete(p.tableAPITokens).
		Where(goqu.I("id").Eq(id)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build delete api_token query: %w", err)
	}

	_, err = p.db.ExecContext(ctx, query)
	if err != nil {
		return fmt.Errorf("delete api_token %q: %w", id, err)
	}
	return nil
}

func (p *Postgres) UpdateLastUsed(ctx context.Context, id string) error {
	now := time.Now().UTC()

	query, _, err := p.goqu.Update(p.tableAPITokens).Set(
		goqu.Record{"last_used_at": now},
	).Where(goqu.I("id").Eq(id)).ToSQL()
	if err != nil {
		return fmt.Errorf("build update last_used query: %w", err)
	}

	res, err := p.db.ExecContext(ctx, query)
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

func tokenRowToRecord(row tokenRow) store.APIToken {
	lastUsed := ""
	if row.LastUsedAt.Valid {
		lastUsed = row.LastUsedAt.Time.Format(time.RFC3339)
	}
	return store.APIToken{
		ID:          row.ID,
		Name:        row.Name,
		TokenPrefix: row.TokenPrefix,
		CreatedAt:   row.CreatedAt.Format(time.RFC3339),
		LastUsedAt:  lastUsed,
	}
}
