// Package observe provides the dispatcher's observability: the structured
// diagnostic Logger, OpenTelemetry tracing and metrics through Observer and
// Instrument, and the LoggerManager that fans dispatch log lines out to
// configured backends.
//
// Backends are independent. A failing or panicking backend is reported to
// the caller and never keeps a line from the others:
//
//	mgr := observe.NewManager([]observe.NamedBackend{
//		{Name: "main", Backend: observe.NewWriterBackend(os.Stderr)},
//		{Name: "audit", Backend: observe.NewSQLiteBackend("audit.db")},
//	})
//	err := mgr.Log(ctx, "cart not found", observe.CategoryWarning)
package observe
