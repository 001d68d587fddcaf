package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	atcrypto "github.com/rakunlabs/pcgate/internal/crypto"
	"github.com/rakunlabs/pcgate/internal/store"
)

// ─── Channel CRUD ───

type channelRow struct {
	Name      string    `db:"name"`
	Token     string    `db:"token"`
	Allowlist string    `db:"allowlist"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (p *Postgres) ListChannels(ctx context.Context) ([]store.ChannelRecord, error) {
	query, _, err := p.goqu.From(p.tableChannels).
		Select("name", "token", "allowlist", "created_at", "updated_at").
		Order(goqu.I("name").Asc()).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list channels query: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	defer rows.Close()

	p.encKeyMu.RLock()
	encKey := p.encKey
	p.encKeyMu.RUnlock()

	var result []store.ChannelRecord
	for rows.Next() {
		var row channelRow
		if err := rows.Scan(&row.Name, &row.Token, &row.Allowlist, &row.CreatedAt, &row.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan channel row: %w", err)
		}
		rec, err := channelRowToRecord(row, encKey)
		if err != nil {
			return nil, err
		}
		result = append(result, *rec)
	}

	return result, rows.Err()
}

func (p *Postgres) GetChannel(ctx context.Context, name string) (*store.ChannelRecord, error) {
	query, _, err := p.goqu.From(p.tableChannels).
		Select("name", "token", "allowlist", "created_at", "updated_at").
		Where(goqu.I("name").Eq(name)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build get channel query: %w", err)
	}

	var row channelRow
	err = p.db.QueryRowContext(ctx, query).Scan(&row.Name, &row.Token, &row.Allowlist, &row.CreatedAt, &row.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get channel %q: %w", name, err)
	}

	p.encKeyMu.RLock()
	encKey := p.encKey
	p.encKeyMu.RUnlock()

	return channelRowToRecord(row, encKey)
}

func (p *Postgres) UpsertChannel(ctx context.Context, rec store.ChannelRecord) error {
	p.encKeyMu.RLock()
	encKey := p.encKey
	p.encKeyMu.RUnlock()

	token, err := atcrypto.Encrypt(rec.Token, encKey)
	if err != nil {
		return fmt.Errorf("encrypt channel token for %q: %w", rec.Name, err)
	}

	allowlistJSON, err := json.Marshal(rec.Allowlist)
	if err != nil {
		return fmt.Errorf("marshal channel allowlist for %q: %w", rec.Name, err)
	}

	existing, err := p.GetChannel(ctx, rec.Name)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	createdAt := now
	if existing != nil {
		if parsed, err := time.Parse(time.RFC3339, existing.CreatedAt); err == nil {
			createdAt = parsed
		}
	}

	record := goqu.Record{
		"name":       rec.Name,
		"token":      token,
		"allowlist":  string(allowlistJSON),
		"created_at": createdAt,
		"updated_at": now,
	}

	var query string
	if existing == nil {
		query, _, err = p.goqu.Insert(p.tableChannels).Rows(record).ToSQL()
	} else {
		query, _, err = p.goqu.Update(p.tableChannels).Set(record).Where(goqu.I("name").Eq(rec.Name)).ToSQL()
	}
	if err != nil {
		return fmt.Errorf("build upsert channel query: %w", err)
	}

	if _, err := p.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("upsert channel %q: %w", rec.Name, err)
	}
	return nil
}

func (p *Postgres) DeleteChannel(ctx context.Context, name string) error {
	query, _, err := p.goqu.Delete(p.tableChannels).
		Where(goqu.I("name").Eq(name)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build delete channel query: %w", err)
	}

	_, err = p.db.ExecContext(ctx, query)
	if err != nil {
		return fmt.Errorf("delete channel %q: %w", name, err)
	}
	return nil
}

func channelRowToRecord(row channelRow, encKey []byte) (*store.ChannelRecord, error) {
	token, err := atcrypto.Decrypt(row.Token, encKey)
	if err != nil {
		return nil, fmt.Errorf("decrypt channel token for %q: %w", row.Name, err)
	}

	var allowlist []string
	if row.Allowlist != "" {
		if err := json.Unmarshal([]byte(row.Allowlist), &allowlist); err != nil {
			return nil, fmt.Errorf("unmarshal channel allowlist for %q: %w", row.Name, err)
		}
	}

	return &store.ChannelRecord{
		Name:      row.Name,
		Token:     token,
		Allowlist: allowlist,
		CreatedAt: row.CreatedAt.Format(time.RFC3339),
		UpdatedAt: row.UpdatedAt.Format(time.RFC3339),
	}, nil
}

// ─── Key Rotation ───

func (p *Postgres) RotateEncryptionKey(ctx context.Context, newKey []byte) error {
	p.encKeyMu.Lock()
	defer p.encKeyMu.Unlock()

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	selectQuery, _, err := p.goqu.From(p.tableChannels).
		Select("name", "token").
		ForUpdate(exp.Wait).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build select query: %w", err)
	}

	rows, err := tx.QueryContext(ctx, selectQuery)
	if err != nil {
		return fmt.Errorf("list channels for rotation: %w", err)
	}

	type rowData struct {
		name  string
		token string
	}

	var allRows []rowData
	for rows.Next() {
		var r rowData
		if err := rows.Scan(&r.name, &r.token); err != nil {
			rows.Close()
			return fmt.Errorf("scan channel row: %w", err)
		}
		allRows = append(allRows, r)
	}
	rows.Close()

	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate channel rows: %w", err)
	}

	for _, r := range allRows {
		plain, err := atcrypto.Decrypt(r.token, p.encKey)
		if err != nil {
			return fmt.Errorf("decrypt channel token for %q: %w", r.name, err)
		}

		cipher, err := atcrypto.Encrypt(plain, newKey)
		if err != nil {
			return fmt.Errorf("re-encrypt channel token for %q: %w", r.name, err)
		}

		updateQuery, _, err := p.goqu.Update(p.tableChannels).Set(
			goqu.Record{"token": cipher},
		).Where(goqu.I("name").Eq(r.name)).ToSQL()
		if err != nil {
			return fmt.Errorf("build update query for %q: %w", r.name, err)
		}

		if _, err := tx.ExecContext(ctx, updateQuery); err != nil {
			return fmt.Errorf("update channel %q: %w", r.name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	p.encKey = newKey
	return nil
}

func (p *Postgres) SetEncryptionKey(newKey []byte) {
	p.encKeyMu.Lock()
	p.encKey = newKey
	p.encKeyMu.Unlock()
}
