// Package memory implements an in-process store with change-tracking contexts.
// Rows are deep copies of entities; commits are applied to copies of the touched
// tables and published in one swap, so a failed commit leaves the store untouched.
package memory

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/aretw0/furrow/pkg/core"
	"github.com/aretw0/furrow/pkg/mapping"
)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger for the store and its contexts.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithReadOnly rejects every commit with core.ErrReadOnly.
func WithReadOnly(readOnly bool) Option {
	return func(s *Store) {
		s.readOnly = readOnly
	}
}

// WithMapper sets the mapper used for projections.
func WithMapper(m mapping.Mapper) Option {
	return func(s *Store) {
		if m != nil {
			s.mapper = m
		}
	}
}

// Store holds committed tables. Published tables are never mutated; writers work
// on clones and swap them in. Writers are serialized, readers never wait on them.
type Store struct {
	mu       sync.RWMutex
	tables   map[string]*table
	writer   chan struct{}
	logger   *slog.Logger
	mapper   mapping.Mapper
	readOnly bool
	open     atomic.Int64
	commits  atomic.Int64
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		tables: make(map[string]*table),
		writer: make(chan struct{}, 1),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		mapper: mapping.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewContext implements core.Store.
func (s *Store) NewContext(ctx context.Context) (core.Context, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return newContext(s), nil
}

// Close implements core.Store. Data stays readable by contexts still open.
func (s *Store) Close() error {
	return nil
}

// Len returns the number of committed rows in a table.
func (s *Store) Len(name string) int {
	return s.snapshot(name).len()
}

func (s *Store) snapshot(name string) *table {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.tables[name]; ok {
		return t
	}
	return emptyTable
}

func (s *Store) publish(tables map[string]*table) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, t := range tables {
		s.tables[name] = t
	}
	s.commits.Add(1)
}

// acquire takes the single writer slot, honoring ctx while waiting.
func (s *Store) acquire(ctx context.Context) error {
	select {
	case s.writer <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) release() {
	<-s.writer
}

// table is an ordered set of rows keyed by entity id.
type table struct {
	rows  map[any]any
	order []any
	seq   int64
}

var emptyTable = &table{rows: map[any]any{}}

func (t *table) clone() *table {
	rows := make(map[any]any, len(t.rows))
	for k, v := range t.rows {
		rows[k] = v
	}
	return &table{rows: rows, order: slices.Clone(t.order), seq: t.seq}
}

func (t *table) len() int { return len(t.order) }

func (t *table) get(id any) (any, bool) {
	v, ok := t.rows[id]
	return v, ok
}

func (t *table) put(id, row any) {
	if _, exists := t.rows[id]; !exists {
		t.order = append(t.order, id)
	}
	t.rows[id] = row
}

func (t *table) remove(id any) {
	delete(t.rows, id)
	if i := slices.Index(t.order, id); i >= 0 {
		t.order = slices.Delete(t.order, i, i+1)
	}
}

// list returns the rows in insertion order.
func (t *table) list() []any {
	out := make([]any, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.rows[id])
	}
	return out
}

// workset lazily clones tables from a base the first time they are touched.
type workset struct {
	base   func(name string) *table
	tables map[string]*table
}

func newWorkset(base func(string) *table) *workset {
	return &workset{base: base, tables: make(map[string]*table)}
}

func (w *workset) table(name string) *table {
	if t, ok := w.tables[name]; ok {
		return t
	}
	t := w.base(name).clone()
	w.tables[name] = t
	return t
}

// peek returns the current version of a table without cloning it.
func (w *workset) peek(name string) *table {
	if t, ok := w.tables[name]; ok {
		return t
	}
	return w.base(name)
}

func (w *workset) merge(other *workset) {
	for name, t := range other.tables {
		w.tables[name] = t
	}
}
