package furrow

import (
	"github.com/aretw0/furrow/internal/platform"
	"github.com/aretw0/furrow/pkg/core"
	"github.com/aretw0/furrow/pkg/service"
)

// Register binds E to table on the engine's backend. Register every entity
// before opening units of work.
func Register[E core.Entity[ID], ID comparable](e *Engine, table core.Table) error {
	return platform.Register[E, ID](e, table)
}

// NewService creates a CRUD service for E scoped to u.
func NewService[E core.Entity[ID], ID comparable](e *Engine, u core.UnitOfWork, opts ...service.Option) *Service[E, ID] {
	return platform.NewService[E, ID](e, u, opts...)
}

// NewReadService creates a read-only service for E scoped to u.
func NewReadService[E core.Entity[ID], ID comparable](e *Engine, u core.UnitOfWork, opts ...service.Option) *ReadService[E, ID] {
	return platform.NewReadService[E, ID](e, u, opts...)
}
