// Package sqlxrepos implements the repositories on top of postgres or sqlite through sqlx.
// Queries are written with `?` placeholders and rebound to the driver's bindvar.
package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/evaluo/core"
)

type queryBuilder struct {
	where []string
	args  []interface{}
}

func (qb *queryBuilder) add(cond string, args ...interface{}) {
	qb.where = append(qb.where, cond)
	qb.args = append(qb.args, args...)
}

func (qb *queryBuilder) search(search string, columns ...string) {
	if search == "" {
		return
	}
	val := "%" + strings.ToLower(search) + "%"
	conds := make([]string, 0, len(columns))
	args := make([]interface{}, 0, len(columns))
	for _, col := range columns {
		conds = append(conds, "LOWER("+col+") LIKE ?")
		args = append(args, val)
	}
	qb.add("("+strings.Join(conds, " OR ")+")", args...)
}

func (qb *queryBuilder) String() string {
	if len(qb.where) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(qb.where, " AND ")
}

// orderBy builds an ORDER BY clause from the allowed columns only; unknown fields are ignored.
func orderBy(ordering []core.DBOrdering, allowed map[string]bool, def ...core.DBOrdering) string {
	orderList := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		if allowed[ord.Field] {
			orderList = append(orderList, ord.String())
		}
	}
	if len(orderList) == 0 {
		for _, ord := range def {
			orderList = append(orderList, ord.String())
		}
	}
	if len(orderList) == 0 {
		return ""
	}
	return " ORDER BY " + strings.Join(orderList, ", ")
}

func fieldSet(fields ...string) map[string]bool {
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[f] = true
	}
	return set
}

// trapNoRows maps sql.ErrNoRows to the domain `notFound` error.
func trapNoRows(err error, notFound error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	return errors.Wrap(err, msg)
}

const pqUniqueViolation = "23505"

// isUniqueViolation reports whether err was raised by a UNIQUE constraint, on postgres or sqlite.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pqUniqueViolation
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

// insert runs an INSERT ... RETURNING id built from the named query `q` and `arg`.
func insert(ctx context.Context, exec sqlx.ExtContext, q string, arg interface{}) (int, error) {
	query, args, err := sqlx.Named(q+" RETURNING id", arg)
	if err != nil {
		return 0, err
	}
	var id int
	if err = exec.QueryRowxContext(ctx, exec.Rebind(query), args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// update runs a named UPDATE and returns `notFound` when no row was affected.
func update(ctx context.Context, exec sqlx.ExtContext, q string, arg interface{}, notFound error) error {
	query, args, err := sqlx.Named(q, arg)
	if err != nil {
		return err
	}
	res, err := exec.ExecContext(ctx, exec.Rebind(query), args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func deleteIDs(ctx context.Context, exec sqlx.ExtContext, table string, ids []int) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query, args, err := sqlx.In("DELETE FROM "+table+" WHERE id IN (?)", ids)
	if err != nil {
		return 0, err
	}
	res, err := exec.ExecContext(ctx, exec.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func nullString(s string) null.String {
	return null.NewString(s, s != "")
}

func nullInt(i int) null.Int {
	return null.NewInt(i, i != 0)
}
