package sqlstore

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"slices"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/aretw0/furrow/pkg/core"
)

func (r *Repository[E, ID]) checkColumn(name string) error {
	if !slices.Contains(r.columns, name) {
		return fmt.Errorf("%s.%q: %w", r.table.Name, name, core.ErrUnknownColumn)
	}
	return nil
}

// predicate translates one condition. LIKE is case-insensitive on both drivers.
func (r *Repository[E, ID]) predicate(c core.Cond) (sq.Sqlizer, error) {
	if err := r.checkColumn(c.Field); err != nil {
		return nil, err
	}
	switch c.Op {
	case core.OpEq:
		return sq.Eq{c.Field: c.Value}, nil
	case core.OpNe:
		return sq.NotEq{c.Field: c.Value}, nil
	case core.OpGt:
		return sq.Gt{c.Field: c.Value}, nil
	case core.OpGte:
		return sq.GtOrEq{c.Field: c.Value}, nil
	case core.OpLt:
		return sq.Lt{c.Field: c.Value}, nil
	case core.OpLte:
		return sq.LtOrEq{c.Field: c.Value}, nil
	case core.OpLike:
		if r.ctx.store.driver == DriverPostgres {
			return sq.ILike{c.Field: c.Value}, nil
		}
		return sq.Like{c.Field: c.Value}, nil
	case core.OpIn:
		if v := reflect.ValueOf(c.Value); v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
			return nil, fmt.Errorf("IN on %q expects a slice, got %T", c.Field, c.Value)
		}
		return sq.Eq{c.Field: c.Value}, nil
	}
	return nil, fmt.Errorf("unsupported operator %q", c.Op)
}

func (r *Repository[E, ID]) where(b sq.SelectBuilder, conds []core.Cond) (sq.SelectBuilder, error) {
	for _, c := range conds {
		p, err := r.predicate(c)
		if err != nil {
			return b, err
		}
		b = b.Where(p)
	}
	return b, nil
}

// window applies ordering and paging. Without an explicit order rows come back
// by key so that paging is stable.
func (r *Repository[E, ID]) window(b sq.SelectBuilder, spec core.Spec) (sq.SelectBuilder, error) {
	if len(spec.OrderBy) == 0 {
		b = b.OrderBy(r.table.KeyColumn())
	}
	for _, o := range spec.OrderBy {
		if err := r.checkColumn(o.Field); err != nil {
			return b, err
		}
		if o.Desc {
			b = b.OrderBy(o.Field + " DESC")
		} else {
			b = b.OrderBy(o.Field)
		}
	}
	if spec.Take > 0 {
		b = b.Limit(uint64(spec.Take))
	} else if spec.Skip > 0 {
		// SQLite cannot OFFSET without LIMIT.
		b = b.Limit(math.MaxInt64)
	}
	if spec.Skip > 0 {
		b = b.Offset(uint64(spec.Skip))
	}
	return b, nil
}

// hidePending excludes rows deleted in this context but not yet committed.
func (r *Repository[E, ID]) hidePending(b sq.SelectBuilder) sq.SelectBuilder {
	if ids := r.ctx.tracker.DeletedIDs(reflect.TypeFor[E]()); len(ids) > 0 {
		b = b.Where(sq.NotEq{r.table.KeyColumn(): ids})
	}
	return b
}

// query builds SELECT cols FROM table for spec.
func (r *Repository[E, ID]) query(cols []string, spec core.Spec) (sq.SelectBuilder, error) {
	b := r.ctx.store.builder().Select(cols...).From(r.table.Name)
	b, err := r.where(b, spec.Where)
	if err != nil {
		return b, err
	}
	return r.window(r.hidePending(b), spec)
}

// count builds a COUNT(*) over spec; a windowed spec is counted through a subquery.
func (r *Repository[E, ID]) count(spec core.Spec) (sq.SelectBuilder, error) {
	if spec.Skip == 0 && spec.Take == 0 {
		b := r.ctx.store.builder().Select("COUNT(*)").From(r.table.Name)
		b, err := r.where(b, spec.Where)
		return r.hidePending(b), err
	}
	sub, err := r.query([]string{r.table.KeyColumn()}, spec)
	if err != nil {
		return sub, err
	}
	return r.ctx.store.builder().Select("COUNT(*)").FromSelect(sub, "w"), nil
}

// translate maps driver constraint violations onto core errors.
func translate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", core.ErrDuplicateKey, pgErr.Message)
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			return fmt.Errorf("%w: %v", core.ErrDuplicateKey, liteErr)
		}
	}
	return err
}
