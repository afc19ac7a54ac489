// Package tracking implements the change tracker behind a persistence context:
// an identity map of entries, their states and the pending change set.
package tracking

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/mohae/deepcopy"

	"github.com/aretw0/furrow/pkg/core"
)

// State of a tracked entry.
type State int

const (
	Detached State = iota
	Unchanged
	Added
	Modified
	Deleted
)

func (s State) String() string {
	switch s {
	case Unchanged:
		return "unchanged"
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	default:
		return "detached"
	}
}

// Key identifies an entity inside a context.
type Key struct {
	Type reflect.Type
	ID   any
}

// KeyOf returns the key of e, or false when its ID is still zero.
func KeyOf[E core.Entity[ID], ID comparable](e E) (Key, bool) {
	var zero ID
	id := e.GetID()
	if id == zero {
		return Key{}, false
	}
	return Key{Type: reflect.TypeOf(e), ID: id}, true
}

// Binding connects an entry to the repository that knows how to persist it.
type Binding interface {
	Key(entity any) (Key, bool)
	Insert(ctx context.Context, entity any) error
	Update(ctx context.Context, entity any) error
	Delete(ctx context.Context, entity any) error
}

// Entry is one tracked entity.
type Entry struct {
	Entity   any
	State    State
	binding  Binding
	snapshot any
	key      Key
	keyed    bool
}

// Apply persists the entry through its binding.
func (e *Entry) Apply(ctx context.Context) error {
	switch e.State {
	case Added:
		return e.binding.Insert(ctx, e.Entity)
	case Modified:
		return e.binding.Update(ctx, e.Entity)
	case Deleted:
		return e.binding.Delete(ctx, e.Entity)
	}
	return nil
}

// Tracker holds the entries of one persistence context. A context is used by one
// operation at a time; the mutex only protects the maps themselves.
type Tracker struct {
	mu      sync.Mutex
	byKey   map[Key]*Entry
	byRef   map[any]*Entry
	entries []*Entry
}

// New returns an empty tracker.
func New() *Tracker {
	return &Tracker{
		byKey: make(map[Key]*Entry),
		byRef: make(map[any]*Entry),
	}
}

func (t *Tracker) insert(e *Entry) {
	e.key, e.keyed = e.binding.Key(e.Entity)
	if e.keyed {
		t.byKey[e.key] = e
	}
	t.byRef[e.Entity] = e
	t.entries = append(t.entries, e)
}

func (t *Tracker) remove(e *Entry) {
	if e.keyed && t.byKey[e.key] == e {
		delete(t.byKey, e.key)
	}
	delete(t.byRef, e.Entity)
	for i, x := range t.entries {
		if x == e {
			t.entries = append(t.entries[:i], t.entries[i+1:]...)
			break
		}
	}
	e.State = Detached
}

// Lookup returns the persisted entity tracked under key. Deleted entries and
// unsaved Added entries are skipped.
func (t *Tracker) Lookup(key Key) (any, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.byKey[key]
	if !ok || e.State == Deleted || e.State == Added {
		return nil, false
	}
	return e.Entity, true
}

// StateOf returns the state of a tracked instance.
func (t *Tracker) StateOf(entity any) State {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.byRef[entity]; ok {
		return e.State
	}
	return Detached
}

// Attach tracks a freshly loaded entity as Unchanged and returns the instance
// callers should see: the already tracked one if its key is known. It returns
// false when the key is tracked as Deleted.
func (t *Tracker) Attach(entity any, b Binding) (any, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if key, ok := b.Key(entity); ok {
		if e, tracked := t.byKey[key]; tracked {
			if e.State == Deleted {
				return nil, false
			}
			return e.Entity, true
		}
	}
	t.insert(&Entry{Entity: entity, State: Unchanged, binding: b, snapshot: deepcopy.Copy(entity)})
	return entity, true
}

// Add marks entity as Added. Re-adding a deleted instance restores it as Modified.
func (t *Tracker) Add(entity any, b Binding) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.byRef[entity]; ok {
		switch e.State {
		case Deleted:
			e.State = Modified
			return nil
		case Added:
			return nil
		}
		return fmt.Errorf("add %s: %w", core.EntityName(reflect.TypeOf(entity)), core.ErrAlreadyTracked)
	}
	if key, ok := b.Key(entity); ok {
		if _, dup := t.byKey[key]; dup {
			return fmt.Errorf("add %s[%v]: %w", core.EntityName(key.Type), key.ID, core.ErrDuplicateTracking)
		}
	}
	t.insert(&Entry{Entity: entity, State: Added, binding: b})
	return nil
}

// Update marks entity as Modified. When another instance is tracked under the same
// key, swap replaces it; otherwise ErrDuplicateTracking is returned.
func (t *Tracker) Update(entity any, b Binding, swap bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.byRef[entity]; ok {
		if e.State != Added {
			e.State = Modified
		}
		return nil
	}
	key, ok := b.Key(entity)
	if !ok {
		return fmt.Errorf("update %s: %w", core.EntityName(reflect.TypeOf(entity)), core.ErrMissingKey)
	}
	state := Modified
	if other, tracked := t.byKey[key]; tracked {
		if !swap {
			return fmt.Errorf("update %s[%v]: %w", core.EntityName(key.Type), key.ID, core.ErrDuplicateTracking)
		}
		if other.State == Added {
			state = Added
		}
		t.remove(other)
	}
	t.insert(&Entry{Entity: entity, State: state, binding: b})
	return nil
}

// Remove marks entity as Deleted. An Added entity is simply forgotten. Another
// instance tracked under the same key is replaced by entity.
func (t *Tracker) Remove(entity any, b Binding) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.byRef[entity]; ok {
		if e.State == Added {
			t.remove(e)
			return nil
		}
		e.State = Deleted
		return nil
	}
	key, ok := b.Key(entity)
	if !ok {
		return fmt.Errorf("delete %s: %w", core.EntityName(reflect.TypeOf(entity)), core.ErrMissingKey)
	}
	if other, tracked := t.byKey[key]; tracked {
		wasAdded := other.State == Added
		t.remove(other)
		if wasAdded {
			return nil
		}
	}
	t.insert(&Entry{Entity: entity, State: Deleted, binding: b})
	return nil
}

// Detach stops tracking entity and, recursively, everything it owns. It reports
// whether entity itself was tracked.
func (t *Tracker) Detach(entity any) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.detach(entity, make(map[any]struct{}))
}

func (t *Tracker) detach(entity any, seen map[any]struct{}) bool {
	if _, ok := seen[entity]; ok {
		return false
	}
	seen[entity] = struct{}{}
	e, tracked := t.byRef[entity]
	if tracked {
		t.remove(e)
	}
	if owner, ok := entity.(core.Owner); ok {
		for _, child := range owner.Owned() {
			if child != nil && reflect.TypeOf(child).Comparable() {
				t.detach(child, seen)
			}
		}
	}
	return tracked
}

// DetectChanges promotes Unchanged entries whose values drifted from their
// snapshot to Modified.
func (t *Tracker) DetectChanges() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range t.entries {
		if e.State == Unchanged && !reflect.DeepEqual(e.snapshot, e.Entity) {
			e.State = Modified
		}
	}
}

// Pending returns the entries with changes to persist, in tracking order.
func (t *Tracker) Pending() []*Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []*Entry
	for _, e := range t.entries {
		if e.State == Added || e.State == Modified || e.State == Deleted {
			out = append(out, e)
		}
	}
	return out
}

// DeletedIDs returns the ids of entities of type typ marked Deleted, in tracking
// order. Queries exclude them before windowing.
func (t *Tracker) DeletedIDs(typ reflect.Type) []any {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []any
	for _, e := range t.entries {
		if e.State == Deleted && e.keyed && e.key.Type == typ {
			out = append(out, e.key.ID)
		}
	}
	return out
}

// Stamp applies audit information to pending Auditable entries.
func Stamp(pending []*Entry, actor string, at time.Time) {
	for _, e := range pending {
		a, ok := e.Entity.(core.Auditable)
		if !ok {
			continue
		}
		switch e.State {
		case Added:
			a.StampCreated(actor, at)
		case Modified:
			a.StampUpdated(actor, at)
		}
	}
}

// Accept records that pending entries were persisted: Added and Modified become
// Unchanged with a fresh snapshot, Deleted entries are forgotten.
func (t *Tracker) Accept(pending []*Entry) []core.Change {
	t.mu.Lock()
	defer t.mu.Unlock()
	changes := make([]core.Change, 0, len(pending))
	for _, e := range pending {
		var kind core.EventType
		switch e.State {
		case Added:
			kind = core.EventCreate
		case Modified:
			kind = core.EventModify
		case Deleted:
			kind = core.EventDelete
		default:
			continue
		}
		key, _ := e.binding.Key(e.Entity)
		changes = append(changes, core.Change{Type: kind, Entity: e.Entity, ID: key.ID})
		if e.State == Deleted {
			t.remove(e)
			continue
		}
		if !e.keyed {
			e.key, e.keyed = key, key.Type != nil
			if e.keyed {
				t.byKey[e.key] = e
			}
		}
		e.State = Unchanged
		e.snapshot = deepcopy.Copy(e.Entity)
	}
	return changes
}

// Clear forgets every entry.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range t.entries {
		e.State = Detached
	}
	t.byKey = make(map[Key]*Entry)
	t.byRef = make(map[any]*Entry)
	t.entries = nil
}

// Len returns the number of tracked entries.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Counts returns the number of entries per state.
func (t *Tracker) Counts() map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]int)
	for _, e := range t.entries {
		out[e.State.String()]++
	}
	return out
}
