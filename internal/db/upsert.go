package db

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// Dialect selects the placeholder style of generated SQL.
type Dialect int

const (
	// Postgres uses numbered $N placeholders.
	Postgres Dialect = iota
	// SQLite uses positional ? placeholders.
	SQLite
)

// UpsertConfig defines the parameters for a multi-row upsert statement.
type UpsertConfig struct {
	Table        string   // target table (e.g., "characters")
	Columns      []string // all columns being inserted
	ConflictKeys []string // columns forming the unique constraint
	UpdateCols   []string // columns to update on conflict; nil = all non-conflict columns
	DoNothing    bool     // ON CONFLICT DO NOTHING instead of DO UPDATE
	Returning    []string // columns to return; empty = no RETURNING clause
	Dialect      Dialect
}

// UpsertSQL builds an INSERT ... VALUES (...), (...) ON CONFLICT statement
// for rows rows. The statement fails on the database if two rows in the
// same call share a conflict key, so callers deduplicate first.
func UpsertSQL(cfg UpsertConfig, rows int) (string, error) {
	if rows <= 0 {
		return "", eris.New("db: upsert: no rows")
	}
	if len(cfg.Columns) == 0 {
		return "", eris.New("db: upsert: no columns specified")
	}
	if len(cfg.ConflictKeys) == 0 {
		return "", eris.New("db: upsert: no conflict keys specified")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", sanitizeTable(cfg.Table), quoteAndJoin(cfg.Columns))

	n := 1
	for r := 0; r < rows; r++ {
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for c := range cfg.Columns {
			if c > 0 {
				b.WriteString(", ")
			}
			b.WriteString(placeholder(cfg.Dialect, n))
			n++
		}
		b.WriteByte(')')
	}

	fmt.Fprintf(&b, " ON CONFLICT (%s) ", quoteAndJoin(cfg.ConflictKeys))

	updateCols := cfg.UpdateCols
	if updateCols == nil && !cfg.DoNothing {
		updateCols = nonConflictColumns(cfg.Columns, cfg.ConflictKeys)
	}
	if cfg.DoNothing || len(updateCols) == 0 {
		b.WriteString("DO NOTHING")
	} else {
		setClauses := make([]string, len(updateCols))
		for i, col := range updateCols {
			id := pgx.Identifier{col}.Sanitize()
			setClauses[i] = fmt.Sprintf("%s = EXCLUDED.%s", id, id)
		}
		b.WriteString("DO UPDATE SET ")
		b.WriteString(strings.Join(setClauses, ", "))
	}

	if len(cfg.Returning) > 0 {
		b.WriteString(" RETURNING ")
		b.WriteString(quoteAndJoin(cfg.Returning))
	}
	return b.String(), nil
}

func nonConflictColumns(cols, keys []string) []string {
	conflictSet := make(map[string]bool, len(keys))
	for _, k := range keys {
		conflictSet[k] = true
	}
	var out []string
	for _, c := range cols {
		if !conflictSet[c] {
			out = append(out, c)
		}
	}
	return out
}

func placeholder(d Dialect, n int) string {
	if d == SQLite {
		return "?"
	}
	return fmt.Sprintf("$%d", n)
}

// sanitizeTable handles schema-qualified table names like "public.characters".
func sanitizeTable(table string) string {
	parts := strings.SplitN(table, ".", 2)
	if len(parts) == 2 {
		return pgx.Identifier{parts[0], parts[1]}.Sanitize()
	}
	return pgx.Identifier{table}.Sanitize()
}

// quoteAndJoin quotes each column name and joins with commas.
func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}

// Chunk splits n rows into [start, end) ranges of at most size rows.
func Chunk(n, size int) [][2]int {
	if n <= 0 {
		return nil
	}
	if size <= 0 {
		size = n
	}
	out := make([][2]int, 0, (n+size-1)/size)
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		out = append(out, [2]int{start, end})
	}
	return out
}
