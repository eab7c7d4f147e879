package health

import "context"

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// IndexChecker reports which of the named search indexes are missing.
type IndexChecker interface {
	Missing(ctx context.Context, names ...string) ([]string, error)
}
