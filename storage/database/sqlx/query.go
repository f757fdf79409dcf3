package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/soko/core"
)

// conditions accumulates the AND-ed WHERE clauses of a query. Clauses use ? placeholders and the
// final query is rebound to the driver's bind type.
type conditions struct {
	clauses []string
	args    []interface{}
}

func (c *conditions) add(clause string, args ...interface{}) {
	c.clauses = append(c.clauses, clause)
	c.args = append(c.args, args...)
}

func (c conditions) String() string {
	if len(c.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(c.clauses, " AND ")
}

// selectAll runs query with the conditions and an ORDER BY clause into dest.
func selectAll(ctx context.Context, exec core.DBExecutor, dest interface{}, query string, where conditions, orderBy string) error {
	q := exec.Rebind(query + where.String() + orderBy)
	return sqlx.SelectContext(ctx, exec, dest, q, where.args...)
}

func get(ctx context.Context, exec core.DBExecutor, dest interface{}, query string, args ...interface{}) error {
	return sqlx.GetContext(ctx, exec, dest, exec.Rebind(query), args...)
}

// execAffecting runs a statement and returns errNotFound when it touched no row.
func execAffecting(ctx context.Context, exec core.DBExecutor, errNotFound error, query string, args ...interface{}) error {
	res, err := exec.ExecContext(ctx, exec.Rebind(query), args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errNotFound
	}
	return nil
}

// trapNoRowsErr maps sql.ErrNoRows to errNotFound.
func trapNoRowsErr(err, errNotFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return errNotFound
	}
	return errors.Wrap(err, msg)
}

// wrapExecErr wraps err with msg unless it is errNotFound, which callers compare against.
func wrapExecErr(err, errNotFound error, msg string) error {
	if err == nil || err == errNotFound {
		return err
	}
	return errors.Wrap(err, msg)
}

// utc normalises optional times before they are written. Every stored time is UTC.
func utc(t null.Time) null.Time {
	if !t.Valid {
		return t
	}
	return null.TimeFrom(t.Time.UTC())
}
