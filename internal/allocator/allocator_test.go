package allocator

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/budgetloop/optimizer/internal/arm"
	"github.com/budgetloop/optimizer/internal/scoring"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func findAllocation(t *testing.T, allocs []Allocation, armID string) Allocation {
	t.Helper()
	for _, a := range allocs {
		if a.ArmID == armID {
			return a
		}
	}
	t.Fatalf("no allocation found for arm %q", armID)
	return Allocation{}
}

// spec.md §8 scenario 1: two-arm equal split, zero history.
func TestProportional_EqualSplitZeroHistory(t *testing.T) {
	al := New()
	arms := []arm.Arm{
		{ID: "A", Platform: arm.PlatformSocial, Spend: d("0"), Revenue: d("0"), Conversions: 0, Impressions: 0},
		{ID: "B", Platform: arm.PlatformSocial, Spend: d("0"), Revenue: d("0"), Conversions: 0, Impressions: 0},
	}

	allocs := al.AllocateProportional(arms, d("100"), scoring.GoalROAS, 10, 0.3)

	a := findAllocation(t, allocs, "A")
	b := findAllocation(t, allocs, "B")
	if !a.NewBudget.Equal(d("50")) || !b.NewBudget.Equal(d("50")) {
		t.Errorf("got A=%v B=%v, want 50/50", a.NewBudget, b.NewBudget)
	}
	if a.Reason != "equal allocation (no performance data)" {
		t.Errorf("unexpected reason: %q", a.Reason)
	}
}

// spec.md §8 scenario 2: exploration floor vs. scored arm, clamped.
func TestProportional_ExplorationFloorClamped(t *testing.T) {
	al := New()
	arms := []arm.Arm{
		{ID: "A", Platform: arm.PlatformSocial, Spend: d("200"), Revenue: d("800"), Conversions: 4, Impressions: 2000},
		{ID: "B", Platform: arm.PlatformSocial, Spend: d("200"), Revenue: d("800"), Conversions: 50, Impressions: 2000},
	}

	allocs := al.AllocateProportional(arms, d("400"), scoring.GoalROAS, 10, 0.3)

	a := findAllocation(t, allocs, "A")
	b := findAllocation(t, allocs, "B")
	if !a.NewBudget.Equal(d("140")) {
		t.Errorf("A.NewBudget = %v, want 140 (clamped)", a.NewBudget)
	}
	if !b.NewBudget.Equal(d("260")) {
		t.Errorf("B.NewBudget = %v, want 260 (clamped)", b.NewBudget)
	}
	total := a.NewBudget.Add(b.NewBudget)
	if total.GreaterThan(d("400")) {
		t.Errorf("total allocated %v exceeds budget 400", total)
	}
}

// spec.md §8 scenario 3: out-of-stock penalty.
func TestProportional_OutOfStockPenalty(t *testing.T) {
	al := New()
	outOfStock := arm.InventoryOutOfStock
	inStock := arm.InventoryInStock
	arms := []arm.Arm{
		{ID: "A", Platform: arm.PlatformSocial, Spend: d("100"), Revenue: d("1000"), Conversions: 20, Impressions: 5000, InventoryStatus: &outOfStock},
		{ID: "B", Platform: arm.PlatformSocial, Spend: d("100"), Revenue: d("1000"), Conversions: 20, Impressions: 5000, InventoryStatus: &inStock},
	}

	// maxChangeRatio=1.0 so the clamp (orthogonal to the scoring rule
	// under test) does not interfere with the worked example's numbers.
	allocs := al.AllocateProportional(arms, d("110"), scoring.GoalROAS, 10, 1.0)

	a := findAllocation(t, allocs, "A")
	b := findAllocation(t, allocs, "B")
	if a.Score != 1.0 {
		t.Errorf("A.Score = %v, want 1.0", a.Score)
	}
	if b.Score != 10.0 {
		t.Errorf("B.Score = %v, want 10.0", b.Score)
	}
	if !a.NewBudget.Equal(d("10")) {
		t.Errorf("A.NewBudget = %v, want 10", a.NewBudget)
	}
	if !b.NewBudget.Equal(d("100")) {
		t.Errorf("B.NewBudget = %v, want 100", b.NewBudget)
	}
}

// spec.md §8 scenario 4: UCB1 cold start, equal split.
func TestUCB1_ColdStartEqualSplit(t *testing.T) {
	al := New()
	arms := []arm.Arm{
		{ID: "A", Platform: arm.PlatformSocial, Spend: d("0"), Revenue: d("0"), Conversions: 0, Impressions: 0},
		{ID: "B", Platform: arm.PlatformSocial, Spend: d("0"), Revenue: d("0"), Conversions: 0, Impressions: 0},
		{ID: "C", Platform: arm.PlatformSocial, Spend: d("0"), Revenue: d("0"), Conversions: 0, Impressions: 0},
	}

	allocs := al.AllocateUCB1(arms, d("300"), scoring.GoalROAS, 2.0)

	for _, id := range []string{"A", "B", "C"} {
		got := findAllocation(t, allocs, id).NewBudget
		if !got.Equal(d("100")) {
			t.Errorf("arm %s NewBudget = %v, want 100", id, got)
		}
	}
}

func TestProportional_ConservationWhenNoClampFires(t *testing.T) {
	al := New()
	arms := []arm.Arm{
		{ID: "A", Platform: arm.PlatformSocial, Spend: d("100"), Revenue: d("500"), Conversions: 20, Impressions: 5000},
		{ID: "B", Platform: arm.PlatformSocial, Spend: d("100"), Revenue: d("300"), Conversions: 20, Impressions: 5000},
	}

	allocs := al.AllocateProportional(arms, d("200"), scoring.GoalROAS, 10, 1.0)

	total := decimal.Zero
	for _, a := range allocs {
		total = total.Add(a.NewBudget)
	}
	if !total.Equal(d("200")) {
		t.Errorf("total allocated = %v, want exactly 200", total)
	}
}

func TestProportional_ClampCorrectness(t *testing.T) {
	al := New()
	arms := []arm.Arm{
		{ID: "A", Platform: arm.PlatformSocial, Spend: d("200"), Revenue: d("5000"), Conversions: 50, Impressions: 10000},
		{ID: "B", Platform: arm.PlatformSocial, Spend: d("200"), Revenue: d("100"), Conversions: 50, Impressions: 10000},
	}
	maxChangeRatio := 0.3

	allocs := al.AllocateProportional(arms, d("400"), scoring.GoalROAS, 10, maxChangeRatio)

	for _, a := range allocs {
		maxChange := a.CurrentBudget.Mul(decimal.NewFromFloat(maxChangeRatio))
		diff := a.NewBudget.Sub(a.CurrentBudget).Abs()
		if diff.GreaterThan(maxChange) {
			t.Errorf("arm %s: |new-current|=%v exceeds maxChangeRatio*current=%v", a.ArmID, diff, maxChange)
		}
	}
}

func TestThompson_DeterministicUnderSeededRNG(t *testing.T) {
	arms := []arm.Arm{
		{ID: "A", Platform: arm.PlatformSocial, Spend: d("100"), Revenue: d("500"), Conversions: 20, Impressions: 5000},
		{ID: "B", Platform: arm.PlatformSocial, Spend: d("100"), Revenue: d("100"), Conversions: 20, Impressions: 5000},
	}

	al1 := New()
	allocs1 := al1.AllocateThompson(arms, d("300"), scoring.GoalROAS, rand.New(rand.NewSource(42)))

	al2 := New()
	allocs2 := al2.AllocateThompson(arms, d("300"), scoring.GoalROAS, rand.New(rand.NewSource(42)))

	for i := range allocs1 {
		if !allocs1[i].NewBudget.Equal(allocs2[i].NewBudget) {
			t.Errorf("same seed produced different allocations: %v vs %v", allocs1[i].NewBudget, allocs2[i].NewBudget)
		}
	}
}

func TestAllocateWithStrategy_RejectsNonPositiveBudget(t *testing.T) {
	al := New()
	arms := []arm.Arm{{ID: "A", Platform: arm.PlatformSocial}}
	_, err := al.AllocateWithStrategy(arms, d("0"), StrategyProportional, scoring.GoalROAS, Options{})
	if err == nil {
		t.Error("expected an error for a non-positive total budget")
	}
}

func TestAllocateWithStrategy_UnknownStrategyFallsBackToUCB1(t *testing.T) {
	al := New()
	arms := []arm.Arm{
		{ID: "A", Platform: arm.PlatformSocial, Spend: d("0"), Revenue: d("0")},
	}
	allocs, err := al.AllocateWithStrategy(arms, d("100"), Strategy("unknown"), scoring.GoalROAS, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(allocs) != 1 {
		t.Fatalf("expected 1 allocation, got %d", len(allocs))
	}
}

func TestTryBeginCycle_RejectsReentrantSameAccount(t *testing.T) {
	al := New()
	release, err := al.TryBeginCycle("acct-1")
	if err != nil {
		t.Fatalf("unexpected error on first begin: %v", err)
	}

	if _, err := al.TryBeginCycle("acct-1"); err == nil {
		t.Error("expected busy error on reentrant TryBeginCycle for the same account")
	}

	release()

	if _, err := al.TryBeginCycle("acct-1"); err != nil {
		t.Errorf("expected TryBeginCycle to succeed after release, got %v", err)
	}
}

func TestTryBeginCycle_DifferentAccountsDoNotBlock(t *testing.T) {
	al := New()
	if _, err := al.TryBeginCycle("acct-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := al.TryBeginCycle("acct-2"); err != nil {
		t.Errorf("a different account must not be blocked: %v", err)
	}
}

func TestUpdatePerformance_EMAAndVariance(t *testing.T) {
	al := New()
	a := arm.Arm{ID: "A", Platform: arm.PlatformSocial, Spend: d("100"), Revenue: d("500")} // ROAS reward = 5

	first := al.UpdatePerformance(a, scoring.GoalROAS)
	if first.MeanReward != 5 || first.Pulls != 1 {
		t.Errorf("first pull: mean=%v pulls=%v, want mean=5 pulls=1", first.MeanReward, first.Pulls)
	}

	a.Revenue = d("1000") // ROAS reward = 10
	second := al.UpdatePerformance(a, scoring.GoalROAS)
	wantMean := 5.0 + 0.1*(10-5.0)
	if second.MeanReward != wantMean {
		t.Errorf("second pull mean = %v, want %v", second.MeanReward, wantMean)
	}
	if second.Pulls != 2 {
		t.Errorf("second pull count = %v, want 2", second.Pulls)
	}
}

func TestGetPerformance_MissingArm(t *testing.T) {
	al := New()
	if _, ok := al.GetPerformance(arm.PlatformSocial, "missing"); ok {
		t.Error("expected ok=false for an arm never observed")
	}
}

func TestResetPerformance_ClearsMap(t *testing.T) {
	al := New()
	a := arm.Arm{ID: "A", Platform: arm.PlatformSocial, Spend: d("100"), Revenue: d("500")}
	al.UpdatePerformance(a, scoring.GoalROAS)

	al.ResetPerformance()

	if _, ok := al.GetPerformance(arm.PlatformSocial, "A"); ok {
		t.Error("expected performance map to be empty after ResetPerformance")
	}
}
