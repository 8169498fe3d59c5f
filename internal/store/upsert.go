package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/couchcryptid/risk-signal-etl/internal/domain"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/mattn/go-sqlite3"
)

// PersistenceError names the record whose write failed. The whole batch was
// rolled back.
type PersistenceError struct {
	Table string
	Index int
	Key   []any
	Err   error
}

func (e *PersistenceError) Error() string {
	msg := fmt.Sprintf("upsert %s[%d] key %v", e.Table, e.Index, e.Key)
	if kind := Classify(e.Err); kind != "" {
		msg += " (" + kind + ")"
	}
	return msg + ": " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Classify names the constraint class of a driver error, or "" when unknown.
func Classify(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			return "unique_violation"
		case pgerrcode.ForeignKeyViolation:
			return "foreign_key_violation"
		case pgerrcode.NotNullViolation:
			return "not_null_violation"
		case pgerrcode.CheckViolation:
			return "check_violation"
		case pgerrcode.UndefinedTable, pgerrcode.UndefinedColumn:
			return "undefined_object"
		}
		if pgerrcode.IsDataException(pgErr.Code) {
			return "data_exception"
		}
		return pgErr.Code
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch liteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return "unique_violation"
		case sqlite3.ErrConstraintForeignKey:
			return "foreign_key_violation"
		case sqlite3.ErrConstraintNotNull:
			return "not_null_violation"
		case sqlite3.ErrConstraintCheck:
			return "check_violation"
		}
		return liteErr.Code.Error()
	}
	return ""
}

// Upsert writes records, all of one table, in a single transaction. Each
// record's columns are inserted or, when its natural key already exists,
// overwrite the stored values; columns the record does not carry are left
// as they are. Duplicate keys within the batch collapse to the last one.
// It returns the number of rows written.
func (s *Store) Upsert(ctx context.Context, records []domain.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	table := records[0].Table()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin upsert %s: %w", table, err)
	}
	defer func() { _ = tx.Rollback() }()

	n, err := s.upsertTx(ctx, tx, records)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit upsert %s: %w", table, err)
	}
	return n, nil
}

func (s *Store) upsertTx(ctx context.Context, tx *sql.Tx, records []domain.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	table := records[0].Table()
	batch, idx := dedupe(records)

	stmts := make(map[string]*sql.Stmt)
	defer func() {
		for _, st := range stmts {
			_ = st.Close()
		}
	}()

	for i, r := range batch {
		fail := func(err error) (int, error) {
			return 0, &PersistenceError{Table: r.Table(), Index: idx[i], Key: domain.KeyValues(r), Err: err}
		}
		if r.Table() != table {
			return fail(fmt.Errorf("batch mixes tables %s and %s", table, r.Table()))
		}
		cols := r.Columns()
		query := s.rebind(upsertSQL(table, r.ConflictKey(), cols))
		st, ok := stmts[query]
		if !ok {
			var err error
			st, err = tx.PrepareContext(ctx, query)
			if err != nil {
				return fail(err)
			}
			stmts[query] = st
		}
		args := make([]any, len(cols))
		for j, c := range cols {
			args[j] = c.Value
		}
		if _, err := st.ExecContext(ctx, args...); err != nil {
			return fail(err)
		}
	}
	return len(batch), nil
}

// dedupe keeps the last record per natural key, in order of first
// appearance, and returns each kept record's index in the input.
func dedupe(records []domain.Record) ([]domain.Record, []int) {
	pos := make(map[string]int, len(records))
	out := make([]domain.Record, 0, len(records))
	idx := make([]int, 0, len(records))
	for i, r := range records {
		k := r.Table() + fmt.Sprint(domain.KeyValues(r))
		if p, ok := pos[k]; ok {
			out[p] = r
			idx[p] = i
			continue
		}
		pos[k] = len(out)
		out = append(out, r)
		idx = append(idx, i)
	}
	return out, idx
}

func upsertSQL(table string, key []string, cols []domain.Column) string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	isKey := make(map[string]bool, len(key))
	for _, k := range key {
		isKey[k] = true
	}
	var set []string
	for _, n := range names {
		if !isKey[n] {
			set = append(set, n+" = excluded."+n)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) ",
		table, strings.Join(names, ", "), placeholders(len(names)), strings.Join(key, ", "))
	if len(set) == 0 {
		b.WriteString("DO NOTHING")
	} else {
		b.WriteString("DO UPDATE SET " + strings.Join(set, ", "))
	}
	return b.String()
}
