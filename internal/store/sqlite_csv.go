package store

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Backfill supplies a value for a column the file omits or leaves empty.
// Value wins when set; otherwise Derive computes one from the raw row.
type Backfill struct {
	Column string
	Value  string
	Derive func(row map[string]string) string
}

func (b Backfill) resolve(row map[string]string) string {
	if b.Value != "" {
		return b.Value
	}
	if b.Derive != nil {
		return b.Derive(row)
	}
	return ""
}

// LoadCSV inserts every record of the file at path into table inside one
// transaction. Header names are matched case-insensitively against the
// table's columns; unknown headers are ignored and empty cells load as NULL
// unless a backfill covers them. Returns the number of rows inserted.
func (s *Store) LoadCSV(ctx context.Context, table, path string, backfills []Backfill) (int64, error) {
	if s.db == nil {
		return 0, errNotOpened
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("%s: file has no header row", path)
	}
	if err != nil {
		return 0, fmt.Errorf("%s: read header: %w", path, err)
	}
	for i, h := range header {
		header[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	}

	tableCols, err := s.TableColumns(ctx, table)
	if err != nil {
		return 0, err
	}
	known := make(map[string]bool, len(tableCols))
	for _, c := range tableCols {
		known[c] = true
	}

	var columns []string
	seen := map[string]bool{}
	for _, h := range header {
		if !known[h] {
			s.logger.Debug("ignoring unknown csv column", "table", table, "column", h)
			continue
		}
		if !seen[h] {
			columns = append(columns, h)
			seen[h] = true
		}
	}
	fills := map[string]Backfill{}
	for _, b := range backfills {
		if !known[b.Column] {
			continue
		}
		fills[b.Column] = b
		if !seen[b.Column] {
			columns = append(columns, b.Column)
			seen[b.Column] = true
		}
	}
	if len(columns) == 0 {
		return 0, fmt.Errorf("%s: no columns match table %s", path, table)
	}

	tx, err := s.BeginTx(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	marks := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = quoteIdent(c)
	}
	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO "+quoteIdent(table)+" ("+strings.Join(quoted, ", ")+") VALUES ("+marks+")")
	if err != nil {
		return 0, fmt.Errorf("prepare insert into %s: %w", table, err)
	}
	defer func() { _ = stmt.Close() }()

	var count int64
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("%s: %w", path, err)
		}

		row := make(map[string]string, len(header))
		for i, h := range header {
			row[h] = strings.TrimSpace(record[i])
		}

		args := make([]any, len(columns))
		for i, c := range columns {
			v := row[c]
			if v == "" {
				if b, ok := fills[c]; ok {
					v = b.resolve(row)
				}
			}
			if v == "" {
				args[i] = nil
			} else {
				args[i] = v
			}
		}

		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, fmt.Errorf("%s line %d: %w", path, count+2, err)
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}

	s.logger.Debug("loaded csv", "table", table, "path", path, "rows", count)
	return count, nil
}
