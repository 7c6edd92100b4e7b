package allocator

import (
	"math"
	"math/rand"

	"github.com/shopspring/decimal"

	"github.com/budgetloop/optimizer/internal/arm"
	"github.com/budgetloop/optimizer/internal/scoring"
)

// AllocateEpsilonGreedy explores with probability epsilon (uniform
// arm choice, budget/n), otherwise exploits the arm with the highest
// mean reward (full budget). Grounded on
// optimization_strategies.py::epsilon_greedy.
func (al *Allocator) AllocateEpsilonGreedy(arms []arm.Arm, totalBudget decimal.Decimal, goal scoring.Goal, epsilon float64, rng *rand.Rand) []Allocation {
	if len(arms) == 0 {
		return nil
	}

	perf := al.updateAll(arms, goal)

	var budgets map[string]decimal.Decimal
	if rng.Float64() < epsilon {
		selected := arms[rng.Intn(len(arms))]
		budgets = map[string]decimal.Decimal{
			selected.ID: totalBudget.Div(decimal.NewFromInt(int64(len(arms)))),
		}
	} else {
		bestID := arms[0].ID
		bestMean := perf[arms[0].ID].MeanReward
		for _, a := range arms[1:] {
			if perf[a.ID].MeanReward > bestMean {
				bestMean = perf[a.ID].MeanReward
				bestID = a.ID
			}
		}
		budgets = map[string]decimal.Decimal{bestID: totalBudget}
	}

	return banditAllocations(arms, budgets, StrategyEpsilonGreedy)
}

// AllocateUCB1 scores each arm by mean + c*sqrt(ln(N)/pulls), N being
// the sum of arm conversions (or 1 if all zero) — see DESIGN.md Open
// Question 2 for why this, rather than sum(pulls), is load-bearing.
// Budget is allocated proportionally to score; an all-zero score
// total (the all-cold-start case, since a brand new arm's reward and
// exploration bonus are both zero when N=1) falls back to an equal
// split. Grounded on optimization_strategies.py::ucb.
func (al *Allocator) AllocateUCB1(arms []arm.Arm, totalBudget decimal.Decimal, goal scoring.Goal, confidenceLevel float64) []Allocation {
	if len(arms) == 0 {
		return nil
	}

	var totalPulls int64
	for _, a := range arms {
		totalPulls += a.Conversions
	}
	if totalPulls == 0 {
		totalPulls = 1
	}

	perf := al.updateAll(arms, goal)

	scores := make(map[string]float64, len(arms))
	totalScore := 0.0
	for _, a := range arms {
		p := perf[a.ID]
		var s float64
		if p.Pulls == 0 {
			// Unreachable in practice: UpdatePerformance always leaves
			// Pulls >= 1. Kept because the source checks it too.
			s = math.Inf(1)
		} else {
			s = p.MeanReward + confidenceLevel*math.Sqrt(math.Log(float64(totalPulls))/float64(p.Pulls))
		}
		scores[a.ID] = s
		totalScore += s
	}

	var budgets map[string]decimal.Decimal
	if totalScore == 0 {
		budgets = equalSplit(arms, totalBudget)
	} else {
		budgets = make(map[string]decimal.Decimal, len(arms))
		for _, a := range arms {
			share := scores[a.ID] / totalScore
			budgets[a.ID] = totalBudget.Mul(decimal.NewFromFloat(share))
		}
	}

	return banditAllocations(arms, budgets, StrategyUCB1)
}

// AllocateThompson samples a Beta(successes+1, failures+1) posterior
// per arm (uniform[0,1] for never-pulled arms), and allocates budget
// proportionally to the samples. Grounded on
// optimization_strategies.py::thompson_sampling.
func (al *Allocator) AllocateThompson(arms []arm.Arm, totalBudget decimal.Decimal, goal scoring.Goal, rng *rand.Rand) []Allocation {
	if len(arms) == 0 {
		return nil
	}

	perf := al.updateAll(arms, goal)

	samples := make(map[string]float64, len(arms))
	totalSample := 0.0
	for _, a := range arms {
		p := perf[a.ID]
		var s float64
		if p.Pulls == 0 {
			s = rng.Float64()
		} else {
			normalized := math.Min(p.MeanReward/thompsonRewardCap, 1.0)
			successes := int64(normalized * float64(p.Pulls)) // truncates toward zero, matching Python int()
			failures := p.Pulls - successes
			s = sampleBeta(float64(successes+1), float64(failures+1), rng)
		}
		samples[a.ID] = s
		totalSample += s
	}

	var budgets map[string]decimal.Decimal
	if totalSample == 0 {
		budgets = equalSplit(arms, totalBudget)
	} else {
		budgets = make(map[string]decimal.Decimal, len(arms))
		for _, a := range arms {
			share := samples[a.ID] / totalSample
			budgets[a.ID] = totalBudget.Mul(decimal.NewFromFloat(share))
		}
	}

	return banditAllocations(arms, budgets, StrategyThompson)
}

// AllocateAdaptive switches strategy by average observed conversions
// per arm: epsilon-greedy(0.3) below 10, UCB1 below 50, else Thompson.
// Grounded on optimization_strategies.py::adaptive_strategy.
func (al *Allocator) AllocateAdaptive(arms []arm.Arm, totalBudget decimal.Decimal, goal scoring.Goal, rng *rand.Rand) []Allocation {
	if len(arms) == 0 {
		return nil
	}

	var totalConversions int64
	for _, a := range arms {
		totalConversions += a.Conversions
	}
	avg := float64(totalConversions) / float64(len(arms))

	switch {
	case avg < 10:
		return al.AllocateEpsilonGreedy(arms, totalBudget, goal, adaptiveEpsilon, rng)
	case avg < 50:
		return al.AllocateUCB1(arms, totalBudget, goal, defaultConfidenceLevel)
	default:
		return al.AllocateThompson(arms, totalBudget, goal, rng)
	}
}

func (al *Allocator) updateAll(arms []arm.Arm, goal scoring.Goal) map[string]*ArmPerformance {
	perf := make(map[string]*ArmPerformance, len(arms))
	for _, a := range arms {
		perf[a.ID] = al.UpdatePerformance(a, goal)
	}
	return perf
}
