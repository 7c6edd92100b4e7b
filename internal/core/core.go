// Package core exposes the optimizer's five RPC-shaped operations as
// plain Go functions (spec.md §6): AllocateBudget, OptimizeOnce,
// FetchArms, AuditROI, GenerateSignals. cmd/api wires these to REST
// handlers that do nothing but marshal/call/marshal; the business
// logic lives entirely in internal/{allocator,optloop,platform,audit,
// signal}.
package core

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/budgetloop/optimizer/internal/allocator"
	"github.com/budgetloop/optimizer/internal/arm"
	"github.com/budgetloop/optimizer/internal/audit"
	"github.com/budgetloop/optimizer/internal/optloop"
	"github.com/budgetloop/optimizer/internal/platform"
	"github.com/budgetloop/optimizer/internal/scoring"
	"github.com/budgetloop/optimizer/internal/signal"
)

// Core wires the Allocator and Optimization Loop into the five
// spec.md §6 operations.
type Core struct {
	Registry *platform.Registry
	Alloc    *allocator.Allocator
	Loop     *optloop.Loop
}

// New builds a Core over an already-wired Registry/Allocator/Loop.
func New(registry *platform.Registry, alloc *allocator.Allocator, loop *optloop.Loop) *Core {
	return &Core{Registry: registry, Alloc: alloc, Loop: loop}
}

// AllocateBudgetRequest is the input to AllocateBudget: a fixed set of
// arms and a total budget to split across them, without fetching or
// applying anything.
type AllocateBudgetRequest struct {
	Arms           []arm.Arm
	TotalBudget    decimal.Decimal
	Strategy       allocator.Strategy
	Goal           scoring.Goal
	MinConversions int64
	MaxChangeRatio float64
}

// AllocateBudgetResponse is AllocateBudget's output.
type AllocateBudgetResponse struct {
	Allocations []allocator.Allocation
}

const (
	defaultMinConversions = 10
	defaultMaxChangeRatio = 0.3
)

// AllocateBudget runs the Allocator over a caller-supplied arm set
// (spec §4.C) without touching any platform.
func (c *Core) AllocateBudget(_ context.Context, req AllocateBudgetRequest) (*AllocateBudgetResponse, error) {
	strategy := req.Strategy
	if strategy == "" {
		strategy = allocator.StrategyProportional
	}
	minConversions := req.MinConversions
	if minConversions == 0 {
		minConversions = defaultMinConversions
	}
	maxChangeRatio := req.MaxChangeRatio
	if maxChangeRatio == 0 {
		maxChangeRatio = defaultMaxChangeRatio
	}

	allocations, err := c.Alloc.AllocateWithStrategy(req.Arms, req.TotalBudget, strategy, req.Goal, allocator.Options{
		MinConversions: minConversions,
		MaxChangeRatio: maxChangeRatio,
	})
	if err != nil {
		return nil, err
	}
	return &AllocateBudgetResponse{Allocations: allocations}, nil
}

// OptimizeOnce runs a full fetch->allocate->apply cycle for one
// account (spec §4.D).
func (c *Core) OptimizeOnce(ctx context.Context, req optloop.Request) (*optloop.Report, error) {
	return c.Loop.RunCycle(ctx, req)
}

// FetchArmsRequest is the input to FetchArms.
type FetchArmsRequest struct {
	SocialAccountRef string
	SearchAccountRef string
	Window           platform.TimeWindow
}

// FetchArms pulls current insights from every registered platform
// without allocating or applying anything.
func (c *Core) FetchArms(ctx context.Context, req FetchArmsRequest) ([]arm.Arm, []string) {
	var arms []arm.Arm
	var errs []string

	for _, p := range c.Registry.List() {
		accountRef := ""
		switch p.Platform() {
		case arm.PlatformSocial:
			accountRef = req.SocialAccountRef
		case arm.PlatformSearch:
			accountRef = req.SearchAccountRef
		}
		if accountRef == "" {
			continue
		}

		fetched, err := p.FetchInsights(ctx, platform.FetchInsightsRequest{
			AccountRef: accountRef,
			Window:     req.Window,
			Level:      platform.LevelCampaign,
		})
		arms = append(arms, fetched...)
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	return arms, errs
}

// AuditROI runs the ROI Audit rule engine over a caller-supplied arm
// set (spec §4.E).
func (c *Core) AuditROI(_ context.Context, req audit.Request) audit.Report {
	return audit.Run(req)
}

// GenerateSignals classifies a batch of raw business events into
// platform-ready conversion signals (spec §4.E).
func (c *Core) GenerateSignals(_ context.Context, req signal.Request) signal.Report {
	return signal.Run(req)
}
