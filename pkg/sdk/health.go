package musedex

import (
	"context"

	healthuc "github.com/kailas-cloud/musedex/internal/usecase/health"
)

// Health checks the health of all system components.
func (c *Client) Health(ctx context.Context) HealthStatus {
	report := c.healthSvc.Check(ctx)
	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}
	var sizes map[string]int
	if report.Catalog != nil {
		sizes = make(map[string]int, len(report.Catalog))
		for k, n := range report.Catalog {
			sizes[string(k)] = n
		}
	}
	return HealthStatus{
		Status:  string(report.Status),
		Checks:  checks,
		Catalog: sizes,
	}
}

// healthUseCase is the internal interface for health checks.
type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}
