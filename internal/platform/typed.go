package platform

import (
	"fmt"

	"github.com/aretw0/furrow/pkg/adapters/memory"
	sqlstore "github.com/aretw0/furrow/pkg/adapters/sql"
	"github.com/aretw0/furrow/pkg/core"
	"github.com/aretw0/furrow/pkg/service"
)

// Register binds E to table on the engine's backend.
func Register[E core.Entity[ID], ID comparable](e *Engine, table core.Table) error {
	switch e.store.(type) {
	case *memory.Store:
		memory.Register[E, ID](e.registry, table)
	case *sqlstore.Store:
		sqlstore.Register[E, ID](e.registry, table)
	default:
		return fmt.Errorf("no repository binding for store %T", e.store)
	}
	return nil
}

// NewService builds a CRUD service for E over u with the engine's mapper,
// logger and interceptors. Extra options are applied last.
func NewService[E core.Entity[ID], ID comparable](e *Engine, u core.UnitOfWork, opts ...service.Option) *service.Service[E, ID] {
	return service.NewService[E, ID](u, append(e.ServiceOptions(), opts...)...)
}

// NewReadService builds a read-only service for E over u.
func NewReadService[E core.Entity[ID], ID comparable](e *Engine, u core.UnitOfWork, opts ...service.Option) *service.ReadService[E, ID] {
	return service.NewReadService[E, ID](u, append(e.ServiceOptions(), opts...)...)
}
