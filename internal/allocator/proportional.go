package allocator

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/budgetloop/optimizer/internal/arm"
	"github.com/budgetloop/optimizer/internal/scoring"
)

// AllocateProportional is the deterministic score-proportional
// fallback (spec §4.C.1). Unlike the bandit strategies it never
// touches ArmPerformance — it scores each arm fresh via the Scoring
// Engine and is the only path that applies the change-ratio clamp.
// Grounded on ad_optimization_agent.py::_allocate_budget_fallback.
func (al *Allocator) AllocateProportional(arms []arm.Arm, totalBudget decimal.Decimal, goal scoring.Goal, minConversions int64, maxChangeRatio float64) []Allocation {
	if len(arms) == 0 {
		return nil
	}

	scores := make(map[string]float64, len(arms))
	totalScore := 0.0
	for _, a := range arms {
		s := scoring.Score(a, goal, minConversions)
		scores[a.ID] = s
		totalScore += s
	}

	out := make([]Allocation, 0, len(arms))

	if totalScore == 0 {
		share := totalBudget.Div(decimal.NewFromInt(int64(len(arms))))
		for _, a := range arms {
			current := a.CurrentBudget()
			out = append(out, Allocation{
				ArmID:            a.ID,
				Platform:         a.Platform,
				CurrentBudget:    current,
				NewBudget:        share,
				ChangePercentage: 0,
				Score:            0,
				Reason:           "equal allocation (no performance data)",
			})
		}
		return out
	}

	for _, a := range arms {
		share := scores[a.ID] / totalScore
		current := a.CurrentBudget()
		// Multiply before dividing so exact ratios (e.g. 1/11 of 110) stay exact.
		newBudget := totalBudget.Mul(decimal.NewFromFloat(scores[a.ID])).Div(decimal.NewFromFloat(totalScore))

		newBudget = clampChangeRatio(newBudget, current, maxChangeRatio)

		changePct := 0.0
		if current.Sign() > 0 {
			changePct, _ = newBudget.Sub(current).Div(current).Mul(decimal.NewFromInt(100)).Float64()
		}

		out = append(out, Allocation{
			ArmID:            a.ID,
			Platform:         a.Platform,
			CurrentBudget:    current,
			NewBudget:        newBudget,
			ChangePercentage: changePct,
			Score:            scores[a.ID],
			Reason:           allocationReason(a, goal, minConversions, share),
		})
	}

	return out
}

// clampChangeRatio enforces |new-current| <= maxChangeRatio*current,
// floored at zero, matching _allocate_budget_fallback's clamp.
func clampChangeRatio(newBudget, current decimal.Decimal, maxChangeRatio float64) decimal.Decimal {
	maxChange := current.Mul(decimal.NewFromFloat(maxChangeRatio))
	diff := newBudget.Sub(current)
	if diff.Abs().GreaterThan(maxChange) {
		if newBudget.GreaterThan(current) {
			return current.Add(maxChange)
		}
		clamped := current.Sub(maxChange)
		if clamped.Sign() < 0 {
			return decimal.Zero
		}
		return clamped
	}
	return newBudget
}

// allocationReason picks a human-readable explanation selected by
// (goal, conversions<minConversions, overlays present), matching
// _allocate_budget_fallback's reason branches exactly.
func allocationReason(a arm.Arm, goal scoring.Goal, minConversions int64, share float64) string {
	switch {
	case a.Conversions < minConversions:
		return fmt.Sprintf("Exploration allocation (%.1f%%) - low conversion volume", share*100)
	case goal == scoring.GoalProfit && a.ProfitMargin != nil:
		return fmt.Sprintf("Profit-optimized allocation (%.1f%%) - profit ROAS: %.2f", share*100, a.ProfitROAS())
	case goal == scoring.GoalLTV && a.LTV != nil:
		return fmt.Sprintf("LTV-optimized allocation (%.1f%%) - LTV ROAS: %.2f", share*100, a.LTVROAS())
	default:
		return fmt.Sprintf("ROAS-based allocation (%.1f%%) - ROAS: %.2f", share*100, a.ROAS())
	}
}
