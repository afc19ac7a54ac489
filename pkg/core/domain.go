// Package core defines the contracts shared by the data services, the unit of work
// and the storage adapters.
package core

import (
	"fmt"
	"reflect"
	"time"
)

// Entity is anything with a comparable identifier. Entities are pointers to structs;
// a zero ID means the store has not assigned one yet.
type Entity[ID comparable] interface {
	GetID() ID
	SetID(id ID)
}

// Disableable entities support soft deletion through an active flag.
type Disableable interface {
	IsActive() bool
	SetActive(active bool)
}

// Auditable entities get stamped with the acting user on audited commits.
type Auditable interface {
	StampCreated(by string, at time.Time)
	StampUpdated(by string, at time.Time)
}

// Owner exposes child entities that are detached together with their owner.
type Owner interface {
	Owned() []any
}

// Table describes where an entity lives in a store.
type Table struct {
	Name string
	// Key is the identifier column. Defaults to "id".
	Key string
	// AutoKey lets the store assign identifiers to entities added with a zero ID.
	AutoKey bool
}

// KeyColumn returns the identifier column, applying the default.
func (t Table) KeyColumn() string {
	if t.Key == "" {
		return "id"
	}
	return t.Key
}

// EventType represents the type of change applied by a commit.
type EventType string

const (
	EventCreate EventType = "CREATE"
	EventModify EventType = "MODIFY"
	EventDelete EventType = "DELETE"
)

// Change is a single persisted mutation reported by a persistence context.
type Change struct {
	Type   EventType
	Entity any
	ID     any
}

// Event represents a committed change, published after the store accepted it.
type Event struct {
	Type      EventType
	Entity    string
	ID        any
	Actor     string
	Timestamp int64 // Unix timestamp
}

func (e Event) String() string {
	if e.Actor != "" {
		return fmt.Sprintf("%s %s[%v] by %s", e.Type, e.Entity, e.ID, e.Actor)
	}
	return fmt.Sprintf("%s %s[%v]", e.Type, e.Entity, e.ID)
}

// EntityName returns the bare type name of an entity, dereferencing pointers.
func EntityName(t reflect.Type) string {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "<nil>"
	}
	return t.Name()
}
