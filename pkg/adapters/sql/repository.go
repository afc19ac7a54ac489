package sqlstore

import (
	"context"
	"fmt"
	"reflect"

	"github.com/georgysavva/scany/v2/sqlscan"
	"github.com/google/uuid"

	"github.com/aretw0/furrow/internal/fields"
	"github.com/aretw0/furrow/pkg/core"
	"github.com/aretw0/furrow/pkg/tracking"
	"github.com/aretw0/furrow/pkg/uow"
)

// Repository is the SQL implementation of core.Repository for one entity type.
// Columns come from the entity's `db` tags; the key column must be one of them.
type Repository[E core.Entity[ID], ID comparable] struct {
	tracking.Set[E, ID]
	ctx     *Context
	table   core.Table
	columns []string
	bind    *rowBinding[E, ID]
}

// NewRepository binds a repository for E to a context.
func NewRepository[E core.Entity[ID], ID comparable](c *Context, table core.Table) (*Repository[E, ID], error) {
	cols, err := fields.Columns(reflect.TypeFor[E]())
	if err != nil {
		return nil, err
	}
	r := &Repository[E, ID]{ctx: c, table: table, columns: cols}
	if err := r.checkColumn(table.KeyColumn()); err != nil {
		return nil, fmt.Errorf("key column: %w", err)
	}
	r.bind = &rowBinding[E, ID]{repo: r}
	r.Set = tracking.Set[E, ID]{Tracker: c.tracker, Binding: r.bind, Name: table.Name, Load: r.Get}
	return r, nil
}

// Register makes E resolvable from units of work over a SQL store.
func Register[E core.Entity[ID], ID comparable](reg *uow.Registry, table core.Table) {
	uow.Register(reg, func(c core.Context) (core.Repository[E, ID], error) {
		sc, ok := c.(*Context)
		if !ok {
			return nil, fmt.Errorf("sqlstore: cannot bind %s to %T", table.Name, c)
		}
		return NewRepository[E, ID](sc, table)
	})
}

// clientKey generates keys the database cannot: UUIDs and strings.
func clientKey[ID comparable]() (ID, bool) {
	var id ID
	if p, ok := any(&id).(*uuid.UUID); ok {
		*p = uuid.New()
		return id, true
	}
	if v := reflect.ValueOf(&id).Elem(); v.Kind() == reflect.String {
		v.SetString(uuid.NewString())
		return id, true
	}
	return id, false
}

type rowBinding[E core.Entity[ID], ID comparable] struct {
	repo *Repository[E, ID]
}

func (b *rowBinding[E, ID]) Key(entity any) (tracking.Key, bool) {
	e, ok := entity.(E)
	if !ok {
		return tracking.Key{}, false
	}
	return tracking.KeyOf[E, ID](e)
}

func (b *rowBinding[E, ID]) Insert(ctx context.Context, entity any) error {
	r := b.repo
	e := entity.(E)
	values, err := fields.Values(e)
	if err != nil {
		return err
	}
	key := r.table.KeyColumn()
	stage := r.ctx.stage

	var zero ID
	if e.GetID() == zero {
		if !r.table.AutoKey {
			return fmt.Errorf("insert into %s: %w", r.table.Name, core.ErrMissingKey)
		}
		if id, ok := clientKey[ID](); ok {
			e.SetID(id)
			values[key] = id
			r.ctx.undo = append(r.ctx.undo, func() { e.SetID(zero) })
		} else {
			delete(values, key)
			query, args, err := r.ctx.store.builder().Insert(r.table.Name).SetMap(values).Suffix("RETURNING " + key).ToSql()
			if err != nil {
				return err
			}
			var id ID
			if err := stage.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
				return fmt.Errorf("insert into %s: %w", r.table.Name, translate(err))
			}
			e.SetID(id)
			r.ctx.undo = append(r.ctx.undo, func() { e.SetID(zero) })
			return nil
		}
	}

	query, args, err := r.ctx.store.builder().Insert(r.table.Name).SetMap(values).ToSql()
	if err != nil {
		return err
	}
	if _, err := stage.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert into %s[%v]: %w", r.table.Name, e.GetID(), translate(err))
	}
	return nil
}

func (b *rowBinding[E, ID]) Update(ctx context.Context, entity any) error {
	r := b.repo
	e := entity.(E)
	values, err := fields.Values(e)
	if err != nil {
		return err
	}
	key := r.table.KeyColumn()
	delete(values, key)
	query, args, err := r.ctx.store.builder().Update(r.table.Name).SetMap(values).Where(map[string]any{key: e.GetID()}).ToSql()
	if err != nil {
		return err
	}
	return r.exec(ctx, "update", e.GetID(), query, args)
}

func (b *rowBinding[E, ID]) Delete(ctx context.Context, entity any) error {
	r := b.repo
	e := entity.(E)
	query, args, err := r.ctx.store.builder().Delete(r.table.Name).Where(map[string]any{r.table.KeyColumn(): e.GetID()}).ToSql()
	if err != nil {
		return err
	}
	return r.exec(ctx, "delete", e.GetID(), query, args)
}

// exec runs a statement that must touch exactly one row.
func (r *Repository[E, ID]) exec(ctx context.Context, verb string, id ID, query string, args []any) error {
	res, err := r.ctx.stage.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s %s[%v]: %w", verb, r.table.Name, id, translate(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s[%v]: %w", verb, r.table.Name, id, core.ErrConcurrency)
	}
	return nil
}

func (r *Repository[E, ID]) notFound(id any) error {
	return fmt.Errorf("%s[%v]: %w", r.table.Name, id, core.ErrNotFound)
}

func newEntity[E any]() E {
	return reflect.New(reflect.TypeFor[E]().Elem()).Interface().(E)
}

// load runs spec and returns untracked rows.
func (r *Repository[E, ID]) load(ctx context.Context, spec core.Spec) ([]E, error) {
	q, err := r.reader(ctx)
	if err != nil {
		return nil, err
	}
	b, err := r.query(r.columns, spec)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", r.table.Name, err)
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	var rows []E
	if err := sqlscan.Select(ctx, q, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("query %s: %w", r.table.Name, err)
	}
	return rows, nil
}

func (r *Repository[E, ID]) reader(ctx context.Context) (querier, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.ctx.reader()
}

func (r *Repository[E, ID]) attach(loaded []E) []E {
	out := make([]E, 0, len(loaded))
	for _, e := range loaded {
		if tracked, ok := r.ctx.tracker.Attach(e, r.bind); ok {
			out = append(out, tracked.(E))
		}
	}
	return out
}

// Get implements core.ReadRepository.
func (r *Repository[E, ID]) Get(ctx context.Context, id ID) (E, error) {
	var zero E
	q, err := r.reader(ctx)
	if err != nil {
		return zero, err
	}
	if tracked, ok := r.ctx.tracker.Lookup(tracking.Key{Type: reflect.TypeFor[E](), ID: id}); ok {
		return tracked.(E), nil
	}
	query, args, err := r.ctx.store.builder().Select(r.columns...).From(r.table.Name).
		Where(map[string]any{r.table.KeyColumn(): id}).ToSql()
	if err != nil {
		return zero, err
	}
	e := newEntity[E]()
	if err := sqlscan.Get(ctx, q, e, query, args...); err != nil {
		if sqlscan.NotFound(err) {
			return zero, r.notFound(id)
		}
		return zero, fmt.Errorf("get %s[%v]: %w", r.table.Name, id, err)
	}
	tracked, ok := r.ctx.tracker.Attach(e, r.bind)
	if !ok {
		return zero, r.notFound(id)
	}
	return tracked.(E), nil
}

// GetSingleBySpec implements core.ReadRepository.
func (r *Repository[E, ID]) GetSingleBySpec(ctx context.Context, spec core.Spec) (E, error) {
	var zero E
	found, err := r.GetBySpec(ctx, spec)
	if err != nil {
		return zero, err
	}
	if len(found) == 0 {
		return zero, fmt.Errorf("%s: %w", r.table.Name, core.ErrNotFound)
	}
	return found[0], nil
}

// GetBySpec implements core.ReadRepository.
func (r *Repository[E, ID]) GetBySpec(ctx context.Context, spec core.Spec) ([]E, error) {
	loaded, err := r.load(ctx, spec)
	if err != nil {
		return nil, err
	}
	return r.attach(loaded), nil
}

// GetAll implements core.ReadRepository.
func (r *Repository[E, ID]) GetAll(ctx context.Context) ([]E, error) {
	return r.GetBySpec(ctx, core.Spec{})
}

// LongCount implements core.ReadRepository.
func (r *Repository[E, ID]) LongCount(ctx context.Context, spec *core.Spec) (int64, error) {
	var s core.Spec
	if spec != nil {
		s = *spec
	}
	q, err := r.reader(ctx)
	if err != nil {
		return 0, err
	}
	b, err := r.count(s)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", r.table.Name, err)
	}
	query, args, err := b.ToSql()
	if err != nil {
		return 0, err
	}
	var n int64
	if err := q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", r.table.Name, err)
	}
	return n, nil
}

// Any implements core.ReadRepository.
func (r *Repository[E, ID]) Any(ctx context.Context, spec core.Spec) (bool, error) {
	n, err := r.LongCount(ctx, &spec)
	return n > 0, err
}

// viewColumns returns the entity columns the view type of dst can receive.
func (r *Repository[E, ID]) viewColumns(dst any, slice bool) ([]string, error) {
	t := reflect.TypeOf(dst)
	if t == nil || t.Kind() != reflect.Pointer {
		return nil, fmt.Errorf("projection destination must be a pointer, got %T", dst)
	}
	t = t.Elem()
	if slice {
		if t.Kind() != reflect.Slice {
			return nil, fmt.Errorf("projection destination must point to a slice, got %T", dst)
		}
		t = t.Elem()
	}
	cols, err := fields.Intersect(t, r.columns)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("%s has no column in common with %s", t, r.table.Name)
	}
	return cols, nil
}

// Project implements core.ReadRepository. Only the columns the view declares are
// selected; rows bypass the tracked set.
func (r *Repository[E, ID]) Project(ctx context.Context, spec core.Spec, dst any) error {
	q, err := r.reader(ctx)
	if err != nil {
		return err
	}
	cols, err := r.viewColumns(dst, true)
	if err != nil {
		return err
	}
	b, err := r.query(cols, spec)
	if err != nil {
		return fmt.Errorf("project %s: %w", r.table.Name, err)
	}
	query, args, err := b.ToSql()
	if err != nil {
		return err
	}
	return sqlscan.Select(ctx, q, dst, query, args...)
}

// ProjectByID implements core.ReadRepository.
func (r *Repository[E, ID]) ProjectByID(ctx context.Context, id ID, dst any) error {
	q, err := r.reader(ctx)
	if err != nil {
		return err
	}
	cols, err := r.viewColumns(dst, false)
	if err != nil {
		return err
	}
	query, args, err := r.ctx.store.builder().Select(cols...).From(r.table.Name).
		Where(map[string]any{r.table.KeyColumn(): id}).ToSql()
	if err != nil {
		return err
	}
	if err := sqlscan.Get(ctx, q, dst, query, args...); err != nil {
		if sqlscan.NotFound(err) {
			return r.notFound(id)
		}
		return err
	}
	return nil
}
