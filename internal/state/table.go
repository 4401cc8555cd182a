package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Cond is an equality predicate on one column of a table.
type Cond struct {
	Column string
	Value  any
}

// Eq builds a [Cond] matching rows whose column equals value.
func Eq(column string, value any) Cond { return Cond{Column: column, Value: value} }

// Snapshot is one emission of an [Table.Observe] stream: the full, ordered
// result of the query at the time of emission. A non-nil Err is terminal; the
// stream closes right after delivering it.
type Snapshot[T any] struct {
	Items []T
	Err   error
}

// scanner matches both *sql.Row and *sql.Rows so scan functions can be reused.
type scanner interface {
	Scan(dest ...any) error
}

// codec describes how one entity type maps onto its table.
type codec[T any] struct {
	table string
	// columns lists every column, id first.
	columns []string
	orderBy string
	scan    func(s scanner) (T, error)
	// values returns the column values in columns order, id first.
	values func(item T) []any
}

// Table is the typed local store for one entity type. Obtain one from
// [Store.Appointments], [Store.Professionals], or [Store.Users].
type Table[T any] struct {
	s *Store
	c codec[T]

	selectSQL string
	insertSQL string
}

func newTable[T any](s *Store, c codec[T]) *Table[T] {
	cols := strings.Join(c.columns, ", ")
	marks := make([]string, len(c.columns))
	marks[0] = "NULLIF(?, 0)" // zero id lets SQLite assign one
	for i := 1; i < len(marks); i++ {
		marks[i] = "?"
	}
	return &Table[T]{
		s:         s,
		c:         c,
		selectSQL: fmt.Sprintf("SELECT %s FROM %s", cols, c.table),
		insertSQL: fmt.Sprintf("INSERT OR REPLACE INTO %s (%s) VALUES (%s)", c.table, cols, strings.Join(marks, ", ")),
	}
}

// Name returns the table name.
func (t *Table[T]) Name() string { return t.c.table }

// InsertOrReplace writes item, replacing any row with the same id. A zero id
// gets a fresh store-assigned identifier, which is returned.
func (t *Table[T]) InsertOrReplace(ctx context.Context, item T) (int64, error) {
	res, err := t.s.db.ExecContext(ctx, t.insertSQL, t.c.values(item)...)
	if err != nil {
		return 0, fmt.Errorf("writing %s row: %w", t.c.table, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading %s row id: %w", t.c.table, err)
	}
	t.s.notify(t.c.table)
	return id, nil
}

// InsertAll writes items in one transaction, replacing rows with matching ids.
func (t *Table[T]) InsertAll(ctx context.Context, items []T) error {
	if len(items) == 0 {
		return nil
	}
	err := t.s.withTx(ctx, func(tx *sql.Tx) error {
		return t.insertAll(ctx, tx, items)
	})
	if err != nil {
		return err
	}
	t.s.notify(t.c.table)
	return nil
}

// ReplaceAll deletes every row and inserts items, atomically. Observers are
// notified once after commit and never see the table empty in between.
func (t *Table[T]) ReplaceAll(ctx context.Context, items []T) error {
	err := t.s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+t.c.table); err != nil {
			return fmt.Errorf("clearing %s: %w", t.c.table, err)
		}
		return t.insertAll(ctx, tx, items)
	})
	if err != nil {
		return err
	}
	t.s.notify(t.c.table)
	return nil
}

func (t *Table[T]) insertAll(ctx context.Context, tx *sql.Tx, items []T) error {
	stmt, err := tx.PrepareContext(ctx, t.insertSQL)
	if err != nil {
		return fmt.Errorf("preparing %s insert: %w", t.c.table, err)
	}
	defer func() { _ = stmt.Close() }()

	for _, item := range items {
		if _, err := stmt.ExecContext(ctx, t.c.values(item)...); err != nil {
			return fmt.Errorf("inserting %s row: %w", t.c.table, err)
		}
	}
	return nil
}

// DeleteAll removes every row.
func (t *Table[T]) DeleteAll(ctx context.Context) error {
	if _, err := t.s.db.ExecContext(ctx, "DELETE FROM "+t.c.table); err != nil {
		return fmt.Errorf("clearing %s: %w", t.c.table, err)
	}
	t.s.notify(t.c.table)
	return nil
}

// Delete removes the row with the given id. Deleting a missing row is not an
// error.
func (t *Table[T]) Delete(ctx context.Context, id int64) error {
	q := fmt.Sprintf("DELETE FROM %s WHERE id = ?", t.c.table)
	if _, err := t.s.db.ExecContext(ctx, q, id); err != nil {
		return fmt.Errorf("deleting %s id=%d: %w", t.c.table, id, err)
	}
	t.s.notify(t.c.table)
	return nil
}

// GetByID returns the row with the given id, or (nil, nil) if no such row
// exists.
func (t *Table[T]) GetByID(ctx context.Context, id int64) (*T, error) {
	row := t.s.db.QueryRowContext(ctx, t.selectSQL+" WHERE id = ?", id)
	item, err := t.c.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // intentional: "not found" sentinel
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s id=%d: %w", t.c.table, id, err)
	}
	return &item, nil
}

// List returns every row matching all conds, in the table's natural order.
func (t *Table[T]) List(ctx context.Context, conds ...Cond) ([]T, error) {
	where, args, err := t.where(conds)
	if err != nil {
		return nil, err
	}
	q := t.selectSQL + where + " ORDER BY " + t.c.orderBy
	rows, err := t.s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", t.c.table, err)
	}
	defer func() { _ = rows.Close() }()

	items := []T{}
	for rows.Next() {
		item, err := t.c.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning %s row: %w", t.c.table, err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Count returns the number of rows matching all conds.
func (t *Table[T]) Count(ctx context.Context, conds ...Cond) (int, error) {
	where, args, err := t.where(conds)
	if err != nil {
		return 0, err
	}
	var n int
	if err := t.s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+t.c.table+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting %s: %w", t.c.table, err)
	}
	return n, nil
}

// Observe returns a live stream of the rows matching conds. The current result
// is emitted immediately and again after every committed write to the table.
// Writes that land while the consumer is busy coalesce into one emission.
//
// The stream closes when ctx is done or after a query error, which is
// delivered as the final [Snapshot].
func (t *Table[T]) Observe(ctx context.Context, conds ...Cond) <-chan Snapshot[T] {
	out := make(chan Snapshot[T])

	// Subscribe before the first query so no write can slip between them.
	changes, unsubscribe := t.s.subscribe(t.c.table)

	go func() {
		defer close(out)
		defer unsubscribe()

		for {
			items, err := t.List(ctx, conds...)
			if err != nil && ctx.Err() != nil {
				return
			}
			select {
			case out <- Snapshot[T]{Items: items, Err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}

			select {
			case <-changes:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func (t *Table[T]) where(conds []Cond) (string, []any, error) {
	if len(conds) == 0 {
		return "", nil, nil
	}
	parts := make([]string, 0, len(conds))
	args := make([]any, 0, len(conds))
	for _, c := range conds {
		if !slices.Contains(t.c.columns, c.Column) {
			return "", nil, fmt.Errorf("unknown %s column %q", t.c.table, c.Column)
		}
		parts = append(parts, c.Column+" = ?")
		args = append(args, c.Value)
	}
	return " WHERE " + strings.Join(parts, " AND "), args, nil
}
