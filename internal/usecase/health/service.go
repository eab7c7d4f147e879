package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
	// Unhealthy indicates total failure.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
	// CheckMissing indicates a search index that has not been created.
	CheckMissing CheckResult = "missing"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	db      DBPinger
	indexes IndexChecker
	names   []string
}

// New creates a Service. indexes can be nil; names are the indexes that must exist.
func New(db DBPinger, indexes IndexChecker, names ...string) *Service {
	return &Service{db: db, indexes: indexes, names: names}
}

// Check runs health checks against all components. An unreachable database is
// Unhealthy; a missing index is Degraded (searches against it would fail).
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	if err := s.db.Ping(ctx); err != nil {
		checks["database"] = CheckError
		return Report{Status: Unhealthy, Checks: checks}
	}
	checks["database"] = CheckOK

	if s.indexes != nil && len(s.names) > 0 {
		missing, err := s.indexes.Missing(ctx, s.names...)
		if err != nil {
			for _, n := range s.names {
				checks["index:"+n] = CheckError
			}
		} else {
			for _, n := range s.names {
				checks["index:"+n] = CheckOK
			}
			for _, n := range missing {
				checks["index:"+n] = CheckMissing
			}
		}
	}

	status := Healthy
	for _, v := range checks {
		if v != CheckOK {
			status = Degraded
			break
		}
	}

	return Report{Status: status, Checks: checks}
}
