// Package furrow is the Composition Root for Furrow.
//
// It connects the generic data services with a change-tracking store chosen at
// runtime, using the same Hexagonal layout as the packages below it.
//
// Philosophy:
//
// Every request gets one Unit of Work. Services bound to it share the tracked
// set, so several services can stage changes and commit them together. Nothing
// reaches the store until a commit, and a failed commit changes nothing.
//
// Features:
//
//   - **Generic Services**: ReadService[E, ID] and Service[E, ID] for any entity.
//   - **Uniform Results**: every operation returns a result classified as
//     NotFound, ArgumentNull or Exception.
//   - **Audited Commits**: entities implementing core.Auditable are stamped with the acting user.
//   - **Soft Deletes**: core.Disableable entities can be disabled instead of deleted.
//   - **Interchangeable Backends**: in-memory, SQLite and PostgreSQL.
//
// Usage:
//
//	e, err := furrow.New(ctx, "file:shop.db", furrow.WithBackend(furrow.BackendSQLite))
//	if err := furrow.Register[*Product, int64](e, core.Table{Name: "products", AutoKey: true}); err != nil { ... }
//
//	err = e.Scope(ctx, func(u *furrow.UnitOfWork) error {
//		svc := furrow.NewService[*Product, int64](e, u)
//		return svc.Add(ctx, service.Direct(p), true, "ana").Result().AsError()
//	})
package furrow
