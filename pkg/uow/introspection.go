package uow

import (
	"github.com/aretw0/introspection"
)

// State exposes internal state for observability.
type State struct {
	Closed        bool   `json:"closed"`
	Repositories  int    `json:"repositories"`
	Commits       int    `json:"commits"`
	Changes       int    `json:"changes"`
	InTransaction bool   `json:"in_transaction"`
	Context       string `json:"context"`
	ContextState  any    `json:"context_state,omitempty"`
}

// State implements introspection.Introspectable.
func (u *UnitOfWork) State() any {
	u.mu.Lock()
	s := State{
		Closed:        u.closed,
		Repositories:  len(u.repos),
		Commits:       u.commits,
		Changes:       u.changes,
		InTransaction: u.tx != nil,
		Context:       "context",
	}
	u.mu.Unlock()

	if comp, ok := u.ctx.(introspection.Component); ok {
		s.Context = comp.ComponentType()
	}
	if in, ok := u.ctx.(introspection.Introspectable); ok {
		s.ContextState = in.State()
	}
	return s
}

// ComponentType implements introspection.Component.
func (u *UnitOfWork) ComponentType() string {
	return "unit-of-work"
}

var _ introspection.Introspectable = (*UnitOfWork)(nil)
var _ introspection.Component = (*UnitOfWork)(nil)
