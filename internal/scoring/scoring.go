// Package scoring computes a single, non-negative real score for an
// Arm. Every function here is pure: no I/O, no shared state. The
// allocator's proportional fallback and the bandit update step both
// call Score with the same goal the caller chose.
package scoring

import (
	"math"

	"github.com/budgetloop/optimizer/internal/arm"
)

// Goal selects which base metric Score optimizes for.
type Goal string

const (
	GoalROAS    Goal = "roas"
	GoalProfit  Goal = "profit"
	GoalLTV     Goal = "ltv"
	GoalCPA     Goal = "cpa"
)

const (
	explorationBonusWithImpressions = 1.5
	explorationBonusNoImpressions   = 1.0

	inventoryOutOfStockMultiplier = 0.1
	inventoryLowStockMultiplier   = 0.7

	profitFallbackMultiplier = 0.8
	ltvFallbackMultiplier    = 1.2
)

// Score implements spec §4.B: an exploration floor for under-sampled
// arms, a goal-selected base metric, inventory/audience modifiers in
// a fixed order, and a final clamp to >= 0.
func Score(a arm.Arm, goal Goal, minConversions int64) float64 {
	if a.Conversions < minConversions {
		if a.Impressions > 0 {
			return explorationBonusWithImpressions
		}
		return explorationBonusNoImpressions
	}

	base := baseScore(a, goal)

	if a.InventoryStatus != nil {
		switch *a.InventoryStatus {
		case arm.InventoryOutOfStock:
			base *= inventoryOutOfStockMultiplier
		case arm.InventoryLowStock:
			base *= inventoryLowStockMultiplier
		}
	}

	if a.AudienceQualityScore != nil {
		base *= 0.5 + *a.AudienceQualityScore
	}

	return math.Max(base, 0)
}

// baseScore picks the metric the goal names; when the profit margin or
// LTV overlay is absent it falls back to profitFallbackMultiplier or
// ltvFallbackMultiplier times ROAS, which Reward does not do (Reward
// and baseScore apply the same goal switch to different ends — scoring
// vs. bandit reward — so they're kept as two small functions rather
// than one shared helper with a bool flag threaded through it).
func baseScore(a arm.Arm, goal Goal) float64 {
	switch goal {
	case GoalProfit:
		if a.ProfitMargin != nil {
			return a.ProfitROAS()
		}
		return profitFallbackMultiplier * a.ROAS()
	case GoalLTV:
		if a.LTV != nil {
			return a.LTVROAS()
		}
		return ltvFallbackMultiplier * a.ROAS()
	case GoalCPA:
		cpa := a.CPA()
		if cpa > 0 && !math.IsInf(cpa, 1) {
			return 1.0 / cpa
		}
		return 0
	case GoalROAS:
		return a.ROAS()
	default:
		return a.ROAS()
	}
}

// Reward computes the bandit update reward for an arm under a goal.
// Unlike Score it never applies the exploration floor or the
// inventory/audience modifiers — it feeds ArmPerformance's running
// mean directly, matching update_arm_performance in the source this
// is grounded on.
func Reward(a arm.Arm, goal Goal) float64 {
	switch goal {
	case GoalProfit:
		return a.ProfitROAS()
	case GoalLTV:
		return a.LTVROAS()
	case GoalCPA:
		cpa := a.CPA()
		if cpa > 0 && !math.IsInf(cpa, 1) {
			return 1.0 / cpa
		}
		return 0
	default:
		return a.ROAS()
	}
}
