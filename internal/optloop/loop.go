// Package optloop orchestrates a single fetch -> normalize -> allocate
// -> apply cycle across every registered platform adapter (spec
// §4.D). Grounded on the teacher's internal/usecase/sync package for
// the fan-out/collect shape and internal/scheduler/scheduler.go for
// the per-account serialization guard it now delegates to the
// Allocator.
package optloop

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/budgetloop/optimizer/internal/allocator"
	"github.com/budgetloop/optimizer/internal/arm"
	"github.com/budgetloop/optimizer/internal/platform"
	"github.com/budgetloop/optimizer/internal/scoring"
	apperrors "github.com/budgetloop/optimizer/pkg/errors"
	"github.com/budgetloop/optimizer/pkg/errortracker"
	"github.com/budgetloop/optimizer/pkg/logger"
	"github.com/budgetloop/optimizer/pkg/metrics"
)

// Status is the cycle-level outcome reported to callers (spec §7).
type Status string

const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
	StatusNoData  Status = "no_data"
	StatusCancelled Status = "cancelled"
)

// ApplyOutcome records the write result for a single arm.
type ApplyOutcome struct {
	ArmID    string
	Platform arm.Platform
	Outcome  platform.Outcome
	Message  string
}

// Report is the structured result of one cycle (spec §4.D step 6).
type Report struct {
	Status        Status
	AccountID     string
	ArmsProcessed int
	Allocations   []allocator.Allocation
	ApplyResults  []ApplyOutcome
	Timestamp     time.Time
	Errors        []string
}

// Request describes one optimization cycle (spec §4.D).
type Request struct {
	AccountID        string
	TotalBudget      decimal.Decimal
	SocialAccountRef string
	SearchAccountRef string
	Window           platform.TimeWindow
	Goal             scoring.Goal
	Strategy         allocator.Strategy
	MinConversions   int64 // default 10
	MaxChangeRatio   float64 // default 0.3
}

const (
	defaultMinConversions = 10
	defaultMaxChangeRatio = 0.3
)

// Loop wires a Registry and an Allocator into the cycle described by
// spec §4.D. Oracle is optional; with a nil Oracle the request's
// Strategy runs (proportional when unset), and an Oracle that errors
// falls back to the proportional deterministic path (spec §7
// AllocatorOracleFailed).
type Loop struct {
	Registry *platform.Registry
	Alloc    *allocator.Allocator
	Oracle   allocator.Oracle
	Log      *logger.Logger
}

// New builds a Loop. log may be nil, in which case logger.Default() is
// used lazily.
func New(registry *platform.Registry, alloc *allocator.Allocator, oracle allocator.Oracle, log *logger.Logger) *Loop {
	if log == nil {
		log = logger.Default()
	}
	return &Loop{Registry: registry, Alloc: alloc, Oracle: oracle, Log: log}
}

// RunCycle executes spec §4.D's six steps for one account. No two
// concurrent calls for the same AccountID may proceed — the second
// caller receives a BusyError (spec §5).
func (l *Loop) RunCycle(ctx context.Context, req Request) (*Report, error) {
	if req.MinConversions == 0 {
		req.MinConversions = defaultMinConversions
	}
	if req.MaxChangeRatio == 0 {
		req.MaxChangeRatio = defaultMaxChangeRatio
	}

	release, err := l.Alloc.TryBeginCycle(req.AccountID)
	if err != nil {
		return nil, err
	}
	defer release()

	m := metrics.Default()
	m.StartCycle(req.AccountID)
	defer m.EndCycle(req.AccountID)
	start := time.Now()

	report := &Report{AccountID: req.AccountID, Timestamp: time.Now()}
	defer func() {
		armsByPlatform := make(map[string]int, 2)
		for _, a := range report.Allocations {
			armsByPlatform[string(a.Platform)]++
		}
		m.RecordCycle(string(report.Status), time.Since(start), armsByPlatform)
		for _, r := range report.ApplyResults {
			m.RecordApplyOutcome(string(r.Platform), string(r.Outcome))
		}
	}()

	arms, fetchErrs := l.fetch(ctx, req)
	report.Errors = append(report.Errors, fetchErrs...)

	if len(arms) == 0 {
		report.Status = StatusNoData
		return report, nil
	}
	report.ArmsProcessed = len(arms)

	allocations, err := l.allocate(ctx, arms, req)
	if err != nil {
		report.Status = StatusNoData
		report.Errors = append(report.Errors, err.Error())
		return report, nil
	}
	report.Allocations = allocations

	results := l.apply(ctx, allocations)
	report.ApplyResults = results

	if ctx.Err() != nil {
		report.Status = StatusCancelled
		return report, nil
	}

	report.Status = deriveStatus(fetchErrs, results)
	return report, nil
}

// fetch launches one task per registered adapter and collects whatever
// arms each could normalize (spec §4.D step 1: a failing platform does
// not abort the cycle).
func (l *Loop) fetch(ctx context.Context, req Request) ([]arm.Arm, []string) {
	adapters := l.Registry.List()

	var (
		mu     sync.Mutex
		arms   []arm.Arm
		errs   []string
		wg     sync.WaitGroup
	)

	for _, a := range adapters {
		a := a
		accountRef := req.accountRefFor(a.Platform())
		if accountRef == "" {
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()

			fetched, err := a.FetchInsights(ctx, platform.FetchInsightsRequest{
				AccountRef: accountRef,
				Window:     req.Window,
				Level:      platform.LevelCampaign,
			})

			mu.Lock()
			defer mu.Unlock()
			arms = append(arms, fetched...)
			if err != nil {
				l.Log.Warn().Str("platform", string(a.Platform())).Err(err).Msg("fetch insights failed for platform")
				errs = append(errs, err.Error())

				var permanent *apperrors.AdapterPermanentError
				if stderrors.As(err, &permanent) {
					errortracker.CaptureWithCategory(ctx, err, errortracker.CategoryPlatform, map[string]interface{}{"platform": string(a.Platform())})
				}
			}
		}()
	}

	wg.Wait()
	return arms, errs
}

func (req Request) accountRefFor(p arm.Platform) string {
	switch p {
	case arm.PlatformSocial:
		return req.SocialAccountRef
	case arm.PlatformSearch:
		return req.SearchAccountRef
	default:
		return ""
	}
}

// allocate tries the configured Oracle first (when set), falling back
// to proportional allocation on any oracle error; without an Oracle it
// runs the request's Strategy (spec §4.D step 4, §7 AllocatorOracleFailed).
func (l *Loop) allocate(ctx context.Context, arms []arm.Arm, req Request) ([]allocator.Allocation, error) {
	if l.Oracle != nil {
		allocations, err := l.Oracle.Allocate(arms, req.TotalBudget, req.Goal, req.MinConversions, req.MaxChangeRatio)
		if err == nil {
			return allocations, nil
		}
		l.Log.Warn().Err(err).Msg("intelligent allocator failed, falling back to proportional allocation")
		req.Strategy = allocator.StrategyProportional
	}

	strategy := req.Strategy
	if strategy == "" {
		strategy = allocator.StrategyProportional
	}

	allocations, err := l.Alloc.AllocateWithStrategy(arms, req.TotalBudget, strategy, req.Goal, allocator.Options{
		MinConversions: req.MinConversions,
		MaxChangeRatio: req.MaxChangeRatio,
	})
	if err != nil {
		return nil, apperrors.NewAllocatorOracleFailedError(err)
	}
	return allocations, nil
}

// apply launches one task per allocation and awaits all of them (spec
// §4.D step 5). A cancelled context stops further dispatch but does
// not undo applies already in flight.
func (l *Loop) apply(ctx context.Context, allocations []allocator.Allocation) []ApplyOutcome {
	results := make([]ApplyOutcome, len(allocations))

	var wg sync.WaitGroup
	for i, a := range allocations {
		i, a := i, a

		adapter, ok := l.Registry.Get(a.Platform)
		if !ok {
			results[i] = ApplyOutcome{ArmID: a.ArmID, Platform: a.Platform, Outcome: platform.OutcomeError, Message: "no adapter registered for platform"}
			continue
		}

		select {
		case <-ctx.Done():
			results[i] = ApplyOutcome{ArmID: a.ArmID, Platform: a.Platform, Outcome: platform.OutcomeError, Message: "cycle cancelled before apply"}
			continue
		default:
		}

		wg.Add(1)
		go func() {
			defer wg.Done()

			res, err := adapter.UpdateBudget(ctx, a.ArmID, a.NewBudget)
			if res == nil {
				res = &platform.UpdateResult{Outcome: platform.OutcomeError, Message: err.Error()}
			}
			var applyFailed *apperrors.ApplyFailedError
			if stderrors.As(err, &applyFailed) {
				errortracker.CaptureWithCategory(ctx, err, errortracker.CategoryPlatform, map[string]interface{}{"arm_id": a.ArmID, "platform": string(a.Platform)})
			}
			results[i] = ApplyOutcome{ArmID: a.ArmID, Platform: a.Platform, Outcome: res.Outcome, Message: res.Message}
		}()
	}
	wg.Wait()

	return results
}

// deriveStatus picks success/partial from the fetch errors and
// per-arm apply outcomes collected during the cycle.
func deriveStatus(fetchErrs []string, results []ApplyOutcome) Status {
	if len(fetchErrs) == 0 {
		allSucceeded := true
		for _, r := range results {
			if r.Outcome != platform.OutcomeSuccess {
				allSucceeded = false
				break
			}
		}
		if allSucceeded {
			return StatusSuccess
		}
	}
	return StatusPartial
}
