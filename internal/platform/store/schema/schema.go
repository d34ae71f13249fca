// Package schema embeds the DDL for both backends and applies it in order
package schema

import (
	"context"
	"embed"
	"io/fs"
	"path"
	"sort"
	"strings"

	perr "newsroom/internal/platform/errors"
	"newsroom/internal/platform/logger"
	"newsroom/internal/platform/store"
)

//go:embed pg/*.sql ch/*.sql
var files embed.FS

// Step is one embedded migration file
type Step struct {
	Name string
	SQL  string
}

// Steps returns the files of dir ("pg" or "ch") sorted by name
func Steps(dir string) ([]Step, error) {
	ents, err := fs.ReadDir(files, dir)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeConfiguration, "schema: read %s", dir)
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	out := make([]Step, 0, len(names))
	for _, n := range names {
		b, err := fs.ReadFile(files, path.Join(dir, n))
		if err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeConfiguration, "schema: read %s", n)
		}
		out = append(out, Step{Name: n, SQL: string(b)})
	}
	return out, nil
}

const ledger = `CREATE TABLE IF NOT EXISTS schema_migrations (
	name       text PRIMARY KEY,
	applied_at timestamptz NOT NULL DEFAULT now()
)`

// ApplyPG runs every pg step not yet recorded in schema_migrations, each in
// its own transaction. It returns the names applied
func ApplyPG(ctx context.Context, db store.TxRunner) ([]string, error) {
	steps, err := Steps("pg")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(ctx, ledger); err != nil {
		return nil, perr.FromPostgres(err, "schema: create ledger")
	}

	log := logger.Named("schema")
	var applied []string
	for _, st := range steps {
		err := db.Tx(ctx, func(q store.RowQuerier) error {
			tag, err := q.Exec(ctx, `INSERT INTO schema_migrations (name) VALUES ($1) ON CONFLICT DO NOTHING`, st.Name)
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				return nil
			}
			if _, err := q.Exec(ctx, st.SQL); err != nil {
				return err
			}
			applied = append(applied, st.Name)
			return nil
		})
		if err != nil {
			return applied, perr.FromPostgresf(err, "schema: apply %s", st.Name)
		}
	}
	log.Info().Strs("applied", applied).Int("total", len(steps)).Msg("postgres schema up to date")
	return applied, nil
}

// ApplyCH runs every ch step; they are idempotent DDL
func ApplyCH(ctx context.Context, ch store.Clickhouse) error {
	steps, err := Steps("ch")
	if err != nil {
		return err
	}
	for _, st := range steps {
		if err := ch.Exec(ctx, st.SQL); err != nil {
			return perr.Wrapf(err, perr.ErrorCodeDB, "schema: apply %s", st.Name)
		}
	}
	logger.Named("schema").Info().Int("total", len(steps)).Msg("clickhouse schema up to date")
	return nil
}
