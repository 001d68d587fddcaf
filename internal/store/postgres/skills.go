package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/rakunlabs/pcgate/internal/store"
)

// ─── Skill CRUD ───

type skillRow struct {
	Name        string    `db:"name"`
	Hash        string    `db:"hash"`
	Graph       string    `db:"graph"`
	Builtin     bool      `db:"builtin"`
	Verified    bool      `db:"verified"`
	InstalledAt time.Time `db:"installed_at"`
}

func (p *Postgres) ListSkills(ctx context.Context) ([]store.SkillRecord, error) {
	query, _, err := p.goqu.From(p.tableSkills).
		Select("name", "hash", "graph", "builtin", "verified", "installed_at").
		Order(goqu.I("name").Asc()).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list skills query: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list skills: %w", err)
	}
	defer rows.Close()

	var result []store.SkillRecord
	for rows.Next() {
		var row skillRow
		if err := rows.Scan(&row.Name, &row.Hash, &row.Graph, &row.Builtin, &row.Verified, &row.InstalledAt); err != nil {
			return nil, fmt.Errorf("scan skill row: %w", err)
		}
		result = append(result, skillRowToRecord(row))
	}

	return result, rows.Err()
}

func (p *Postgres) GetSkillByName(ctx context.Context, name string) (*store.SkillRecord, error) {
	query, _, err := p.goqu.From(p.tableSkills).
		Select("name", "hash", "graph", "builtin", "verified", "installed_at").
		Where(goqu.I("name").Eq(name)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build get skill query: %w", err)
	}

	var row skillRow
	err = p.db.QueryRowContext(ctx, query).Scan(&row.Name, &row.Hash, &row.Graph, &row.Builtin, &row.Verified, &row.InstalledAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get skill %q: %w", name, err)
	}

	rec := skillRowToRecord(row)
	return &rec, nil
}

func (p *Postgres) UpsertSkill(ctx context.Context, rec store.SkillRecord) error {
	installedAt := time.Now().UTC()
	if rec.InstalledAt != "" {
		if parsed, err := time.Parse(time.RFC3339, rec.InstalledAt); err == nil {
			installedAt = parsed
		}
	}

	existing, err := p.GetSkillByName(ctx, rec.Name)
	if err != nil {
		return err
	}

	record := goqu.Record{
		"name":         rec.Name,
		"hash":         rec.Hash,
		"graph":        string(rec.Graph),
		"builtin":      rec.Builtin,
		"verified":     rec.Verified,
		"installed_at": installedAt,
	}

	var query string
	if existing == nil {
		query, _, err = p.goqu.Insert(p.tableSkills).Rows(record).ToSQL()
	} else {
		query, _, err = p.goqu.Update(p.tableSkills).Set(record).Where(goqu.I("name").Eq(rec.Name)).ToSQL()
	}
	if err != nil {
		return fmt.Errorf("build upsert skill query: %w", err)
	}

	if _, err := p.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("upsert skill %q: %w", rec.Name, err)
	}
	return nil
}

func (p *Postgres) DeleteSkillByName(ctx context.Context, name string) error {
	query, _, err := p.goqu.Delete(p.tableSkills).
		Where(goqu.I("name").Eq(name)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build delete skill query: %w", err)
	}

	_, err = p.db.ExecContext(ctx, query)
	if err != nil {
		return fmt.Errorf("delete skill %q: %w", name, err)
	}
	return nil
}

func skillRowToRecord(row skillRow) store.SkillRecord {
	return store.SkillRecord{
		Name:        row.Name,
		Hash:        row.Hash,
		Graph:       []byte(row.Graph),
		Builtin:     row.Builtin,
		Verified:    row.Verified,
		InstalledAt: row.InstalledAt.Format(time.RFC3339),
	}
}
