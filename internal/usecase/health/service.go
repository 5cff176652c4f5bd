package health

import (
	"context"

	"github.com/kailas-cloud/musedex/internal/domain/catalog"
)

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
)

// Report aggregates health check results.
type Report struct {
	Status  Status
	Checks  map[string]CheckResult
	// Catalog holds record counts per kind; nil when the check is off or failed.
	Catalog map[catalog.Kind]int
}

// Check names.
const (
	CheckDatabase = "database"
	CheckBreaker  = "breaker"
	CheckCatalog  = "catalog"
)

// Service coordinates health checks.
type Service struct {
	db      DBPinger
	breaker BreakerState
	sizer   CatalogSizer
}

// New creates a Service. breaker and sizer can be nil.
func New(db DBPinger, breaker BreakerState, sizer CatalogSizer) *Service {
	return &Service{db: db, breaker: breaker, sizer: sizer}
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	if err := s.db.Ping(ctx); err != nil {
		checks[CheckDatabase] = CheckError
	} else {
		checks[CheckDatabase] = CheckOK
	}

	if s.breaker != nil {
		if s.breaker.Open() {
			checks[CheckBreaker] = CheckError
		} else {
			checks[CheckBreaker] = CheckOK
		}
	}

	var sizes map[catalog.Kind]int
	if s.sizer != nil {
		n, err := s.sizer.Size(ctx)
		if err != nil {
			checks[CheckCatalog] = CheckError
		} else {
			checks[CheckCatalog] = CheckOK
			sizes = n
		}
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}

	return Report{Status: status, Checks: checks, Catalog: sizes}
}
