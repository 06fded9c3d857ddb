package health

import (
	"context"
	"sync"
	"time"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates the completion provider is failing but quotas still work.
	Degraded Status = "degraded"
	// Unhealthy indicates the user store is unreachable.
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

// Component names reported in Report.Checks.
const (
	ComponentDatabase   = "database"
	ComponentCompletion = "completion"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// DefaultTimeout bounds a whole Check run.
const DefaultTimeout = 3 * time.Second

// Service probes the user store and the completion provider.
type Service struct {
	db         DBPinger
	completion CompletionChecker
	timeout    time.Duration
}

// New creates a Service. completion can be nil.
func New(db DBPinger, completion CompletionChecker) *Service {
	return &Service{db: db, completion: completion, timeout: DefaultTimeout}
}

// WithTimeout overrides DefaultTimeout.
func (s *Service) WithTimeout(d time.Duration) *Service {
	if d > 0 {
		s.timeout = d
	}
	return s
}

// Check probes all components in parallel. A slow provider counts as failing
// once the timeout passes.
func (s *Service) Check(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var (
		dbErr, completionErr error
		wg                   sync.WaitGroup
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		dbErr = s.db.Ping(ctx)
	}()
	if s.completion != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			completionErr = s.completion.HealthCheck(ctx)
		}()
	}
	wg.Wait()

	checks := map[string]CheckResult{ComponentDatabase: result(dbErr)}
	status := Healthy
	if s.completion != nil {
		checks[ComponentCompletion] = result(completionErr)
		if completionErr != nil {
			status = Degraded
		}
	}
	if dbErr != nil {
		status = Unhealthy
	}
	return Report{Status: status, Checks: checks}
}

func result(err error) CheckResult {
	if err != nil {
		return CheckError
	}
	return CheckOK
}
