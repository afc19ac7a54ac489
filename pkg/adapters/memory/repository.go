package memory

import (
	"context"
	"fmt"
	"reflect"

	"github.com/google/uuid"
	"github.com/mohae/deepcopy"

	"github.com/aretw0/furrow/pkg/core"
	"github.com/aretw0/furrow/pkg/tracking"
	"github.com/aretw0/furrow/pkg/uow"
)

// Repository is the memory implementation of core.Repository for one entity type.
type Repository[E core.Entity[ID], ID comparable] struct {
	tracking.Set[E, ID]
	ctx   *Context
	table core.Table
	bind  *rowBinding[E, ID]
}

// NewRepository binds a repository for E to a context.
func NewRepository[E core.Entity[ID], ID comparable](c *Context, table core.Table) *Repository[E, ID] {
	r := &Repository[E, ID]{ctx: c, table: table}
	r.bind = &rowBinding[E, ID]{repo: r}
	r.Set = tracking.Set[E, ID]{Tracker: c.tracker, Binding: r.bind, Name: table.Name, Load: r.Get}
	return r
}

// Register makes E resolvable from units of work over a memory store.
func Register[E core.Entity[ID], ID comparable](reg *uow.Registry, table core.Table) {
	uow.Register(reg, func(c core.Context) (core.Repository[E, ID], error) {
		mc, ok := c.(*Context)
		if !ok {
			return nil, fmt.Errorf("memory: cannot bind %s to %T", table.Name, c)
		}
		return NewRepository[E, ID](mc, table), nil
	})
}

func typeOf(v any) reflect.Type { return reflect.TypeOf(v) }

// rowBinding writes tracked entries into the staged tables of a saving context.
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

func (b *rowBinding[E, ID]) Insert(_ context.Context, entity any) error {
	r := b.repo
	e := entity.(E)
	t := r.ctx.stage.table(r.table.Name)
	var zero ID
	id := e.GetID()
	if id == zero {
		if !r.table.AutoKey {
			return fmt.Errorf("insert into %s: %w", r.table.Name, core.ErrMissingKey)
		}
		next, err := nextID[ID](t)
		if err != nil {
			return err
		}
		e.SetID(next)
		r.ctx.undo = append(r.ctx.undo, func() { e.SetID(zero) })
		id = next
	} else {
		bumpSequence(t, id)
	}
	if _, exists := t.get(id); exists {
		return fmt.Errorf("insert into %s[%v]: %w", r.table.Name, id, core.ErrDuplicateKey)
	}
	t.put(id, deepcopy.Copy(e))
	return nil
}

func (b *rowBinding[E, ID]) Update(_ context.Context, entity any) error {
	r := b.repo
	e := entity.(E)
	t := r.ctx.stage.table(r.table.Name)
	id := e.GetID()
	if _, exists := t.get(id); !exists {
		return fmt.Errorf("update %s[%v]: %w", r.table.Name, id, core.ErrConcurrency)
	}
	t.put(id, deepcopy.Copy(e))
	return nil
}

func (b *rowBinding[E, ID]) Delete(_ context.Context, entity any) error {
	r := b.repo
	e := entity.(E)
	t := r.ctx.stage.table(r.table.Name)
	id := e.GetID()
	if _, exists := t.get(id); !exists {
		return fmt.Errorf("delete %s[%v]: %w", r.table.Name, id, core.ErrConcurrency)
	}
	t.remove(id)
	return nil
}

func nextID[ID comparable](t *table) (ID, error) {
	var id ID
	if p, ok := any(&id).(*uuid.UUID); ok {
		*p = uuid.New()
		return id, nil
	}
	v := reflect.ValueOf(&id).Elem()
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		t.seq++
		v.SetInt(t.seq)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		t.seq++
		v.SetUint(uint64(t.seq))
	case reflect.String:
		v.SetString(uuid.NewString())
	default:
		return id, fmt.Errorf("memory: cannot generate keys of type %T", id)
	}
	return id, nil
}

func bumpSequence(t *table, id any) {
	v := reflect.ValueOf(id)
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		t.seq = max(t.seq, v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if n := v.Uint(); n < 1<<62 {
			t.seq = max(t.seq, int64(n))
		}
	}
}

// rows returns deep copies of the committed rows matching spec, ordered and windowed.
// Rows deleted in this context but not yet committed are left out before windowing.
func (r *Repository[E, ID]) rows(ctx context.Context, spec core.Spec) ([]E, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.ctx.isClosed() {
		return nil, core.ErrClosed
	}
	entity := reflect.TypeFor[E]()
	matched, err := filter(entity, r.visible(entity), spec)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", r.table.Name, err)
	}
	out := make([]E, 0, len(matched))
	for _, row := range matched {
		out = append(out, deepcopy.Copy(row).(E))
	}
	return out, nil
}

// visible lists the committed rows minus those pending deletion in this context.
func (r *Repository[E, ID]) visible(entity reflect.Type) []any {
	all := r.ctx.view(r.table.Name).list()
	deleted := r.ctx.tracker.DeletedIDs(entity)
	if len(deleted) == 0 {
		return all
	}
	hidden := make(map[any]struct{}, len(deleted))
	for _, id := range deleted {
		hidden[id] = struct{}{}
	}
	out := make([]any, 0, len(all))
	for _, row := range all {
		if _, gone := hidden[any(row.(E).GetID())]; !gone {
			out = append(out, row)
		}
	}
	return out
}

// attach replaces loaded rows with tracked instances, dropping deleted ones.
func (r *Repository[E, ID]) attach(loaded []E) []E {
	out := make([]E, 0, len(loaded))
	for _, e := range loaded {
		if tracked, ok := r.ctx.tracker.Attach(e, r.bind); ok {
			out = append(out, tracked.(E))
		}
	}
	return out
}

func (r *Repository[E, ID]) notFound(id any) error {
	return fmt.Errorf("%s[%v]: %w", r.table.Name, id, core.ErrNotFound)
}

// Get implements core.ReadRepository.
func (r *Repository[E, ID]) Get(ctx context.Context, id ID) (E, error) {
	var zero E
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	if tracked, ok := r.ctx.tracker.Lookup(tracking.Key{Type: reflect.TypeFor[E](), ID: id}); ok {
		return tracked.(E), nil
	}
	row, ok := r.ctx.view(r.table.Name).get(id)
	if !ok {
		return zero, r.notFound(id)
	}
	tracked, ok := r.ctx.tracker.Attach(deepcopy.Copy(row).(E), r.bind)
	if !ok {
		return zero, r.notFound(id)
	}
	return tracked.(E), nil
}

// GetSingleBySpec implements core.ReadRepository.
func (r *Repository[E, ID]) GetSingleBySpec(ctx context.Context, spec core.Spec) (E, error) {
	var zero E
	loaded, err := r.rows(ctx, spec)
	if err != nil {
		return zero, err
	}
	found := r.attach(loaded)
	if len(found) == 0 {
		return zero, fmt.Errorf("%s: %w", r.table.Name, core.ErrNotFound)
	}
	return found[0], nil
}

// GetBySpec implements core.ReadRepository.
func (r *Repository[E, ID]) GetBySpec(ctx context.Context, spec core.Spec) ([]E, error) {
	loaded, err := r.rows(ctx, spec)
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
	loaded, err := r.rows(ctx, s)
	if err != nil {
		return 0, err
	}
	return int64(len(loaded)), nil
}

// Any implements core.ReadRepository.
func (r *Repository[E, ID]) Any(ctx context.Context, spec core.Spec) (bool, error) {
	n, err := r.LongCount(ctx, &spec)
	return n > 0, err
}

// Project implements core.ReadRepository. Rows are mapped as stored and are not
// attached to the tracked set.
func (r *Repository[E, ID]) Project(ctx context.Context, spec core.Spec, dst any) error {
	loaded, err := r.rows(ctx, spec)
	if err != nil {
		return err
	}
	return r.ctx.store.mapper.Convert(loaded, dst)
}

// ProjectByID implements core.ReadRepository.
func (r *Repository[E, ID]) ProjectByID(ctx context.Context, id ID, dst any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	row, ok := r.ctx.view(r.table.Name).get(id)
	if !ok {
		return r.notFound(id)
	}
	return r.ctx.store.mapper.Convert(row, dst)
}
