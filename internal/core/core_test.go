package core

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/budgetloop/optimizer/internal/allocator"
	"github.com/budgetloop/optimizer/internal/arm"
	"github.com/budgetloop/optimizer/internal/audit"
	"github.com/budgetloop/optimizer/internal/platform"
	"github.com/budgetloop/optimizer/internal/scoring"
	"github.com/budgetloop/optimizer/internal/signal"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

// fakeAdapter is a minimal platform.PlatformAdapter stub for exercising
// Core.FetchArms without a network call.
type fakeAdapter struct {
	platform arm.Platform
	arms     []arm.Arm
	fetchErr error
}

func (f *fakeAdapter) Platform() arm.Platform { return f.platform }
func (f *fakeAdapter) FetchInsights(ctx context.Context, req platform.FetchInsightsRequest) ([]arm.Arm, error) {
	return f.arms, f.fetchErr
}
func (f *fakeAdapter) UpdateBudget(ctx context.Context, armID string, dailyBudget decimal.Decimal) (*platform.UpdateResult, error) {
	return &platform.UpdateResult{Outcome: platform.OutcomeSuccess}, nil
}
func (f *fakeAdapter) UploadConversion(ctx context.Context, req platform.ConversionRequest) (*platform.UpdateResult, error) {
	return &platform.UpdateResult{Outcome: platform.OutcomeSuccess}, nil
}
func (f *fakeAdapter) HealthCheck(ctx context.Context) error { return nil }

func TestAllocateBudget_AppliesDefaults(t *testing.T) {
	c := New(platform.NewRegistry(), allocator.New(), nil)
	arms := []arm.Arm{
		{ID: "A", Platform: arm.PlatformSocial, Spend: d("0"), Revenue: d("0")},
		{ID: "B", Platform: arm.PlatformSocial, Spend: d("0"), Revenue: d("0")},
	}

	resp, err := c.AllocateBudget(context.Background(), AllocateBudgetRequest{
		Arms:        arms,
		TotalBudget: d("100"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Allocations) != 2 {
		t.Fatalf("expected 2 allocations, got %d", len(resp.Allocations))
	}
}

func TestAllocateBudget_PropagatesAllocatorError(t *testing.T) {
	c := New(platform.NewRegistry(), allocator.New(), nil)
	_, err := c.AllocateBudget(context.Background(), AllocateBudgetRequest{
		Arms:        []arm.Arm{{ID: "A"}},
		TotalBudget: d("0"),
	})
	if err == nil {
		t.Error("expected an error for a non-positive total budget")
	}
}

func TestFetchArms_SkipsUnconfiguredAccounts(t *testing.T) {
	registry := platform.NewRegistry()
	social := &fakeAdapter{platform: arm.PlatformSocial, arms: []arm.Arm{{ID: "s1", Platform: arm.PlatformSocial}}}
	search := &fakeAdapter{platform: arm.PlatformSearch, arms: []arm.Arm{{ID: "q1", Platform: arm.PlatformSearch}}}
	registry.Register(social)
	registry.Register(search)

	c := New(registry, allocator.New(), nil)
	arms, errs := c.FetchArms(context.Background(), FetchArmsRequest{SocialAccountRef: "acct-1"})

	if len(errs) != 0 {
		t.Errorf("unexpected errors: %v", errs)
	}
	if len(arms) != 1 || arms[0].ID != "s1" {
		t.Errorf("expected only the social arm since search account ref was empty, got %+v", arms)
	}
}

func TestFetchArms_CollectsPartialFailures(t *testing.T) {
	registry := platform.NewRegistry()
	social := &fakeAdapter{platform: arm.PlatformSocial, arms: nil, fetchErr: errors.New("boom")}
	registry.Register(social)

	c := New(registry, allocator.New(), nil)
	arms, errs := c.FetchArms(context.Background(), FetchArmsRequest{SocialAccountRef: "acct-1"})

	if len(arms) != 0 {
		t.Errorf("expected no arms, got %+v", arms)
	}
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %d", len(errs))
	}
}

func TestAuditROI_Passthrough(t *testing.T) {
	c := New(platform.NewRegistry(), allocator.New(), nil)
	arms := []arm.Arm{{ID: "A", Spend: d("100"), Revenue: d("0"), Conversions: 0}}
	report := c.AuditROI(context.Background(), audit.Request{Arms: arms, Goal: scoring.GoalROAS})
	if report.HealthScore < 0 || report.HealthScore > 100 {
		t.Errorf("HealthScore out of bounds: %d", report.HealthScore)
	}
}

func TestGenerateSignals_Passthrough(t *testing.T) {
	c := New(platform.NewRegistry(), allocator.New(), nil)
	events := []signal.Event{{EventID: "e1", EventType: signal.EventSignup}}
	report := c.GenerateSignals(context.Background(), signal.Request{Events: events, Target: signal.TargetSocial})
	if len(report.Signals) != 1 {
		t.Errorf("expected 1 signal, got %d", len(report.Signals))
	}
}
