// Package allocator produces a budget vector over a set of Arms: the
// deterministic score-proportional fallback, and the four bandit
// strategies (epsilon-greedy, UCB1, Thompson sampling, adaptive).
// It also owns the only shared mutable state in the core: the
// per-arm ArmPerformance map and the per-account cycle-serialization
// guard (spec §5).
package allocator

import (
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/budgetloop/optimizer/internal/arm"
	"github.com/budgetloop/optimizer/internal/scoring"
	apperrors "github.com/budgetloop/optimizer/pkg/errors"
)

// Strategy selects which allocation algorithm AllocateWithStrategy
// dispatches to.
type Strategy string

const (
	StrategyProportional  Strategy = "proportional"
	StrategyEpsilonGreedy Strategy = "epsilon_greedy"
	StrategyUCB1          Strategy = "ucb1"
	StrategyThompson      Strategy = "thompson"
	StrategyAdaptive      Strategy = "adaptive"
)

const (
	defaultEpsilon         = 0.1
	adaptiveEpsilon        = 0.3
	defaultConfidenceLevel = 2.0
	emaLearningRate        = 0.1
	confidenceZScore       = 1.96
	thompsonRewardCap      = 10.0 // spec §9.3: tuned-or-arbitrary, kept as-is
)

// ArmPerformance is the bandit's running estimate of an arm's reward
// distribution, updated in place each time the arm is observed.
type ArmPerformance struct {
	ArmID              string
	Platform           arm.Platform
	MeanReward         float64
	Variance           float64
	Pulls              int64
	ConfidenceInterval float64
}

// StandardError is sqrt(variance/pulls), or +Inf when the arm has
// never been pulled.
func (p *ArmPerformance) StandardError() float64 {
	if p.Pulls == 0 {
		return math.Inf(1)
	}
	if p.Variance > 0 {
		return math.Sqrt(p.Variance / float64(p.Pulls))
	}
	return 0
}

// Allocation is the output record of any allocation strategy.
type Allocation struct {
	ArmID            string
	Platform         arm.Platform
	CurrentBudget    decimal.Decimal
	NewBudget        decimal.Decimal
	ChangePercentage float64
	Score            float64
	Reason           string
}

// Oracle is the pluggable "intelligent" allocator contract (spec §9).
// No implementation ships in this repo; an oracle error or refusal
// falls back to the proportional deterministic path.
type Oracle interface {
	Allocate(arms []arm.Arm, totalBudget decimal.Decimal, goal scoring.Goal, minConversions int64, maxChangeRatio float64) ([]Allocation, error)
}

// Allocator owns the ArmPerformance map and the per-account
// cycle-serialization guard. Callers should hold a single Allocator
// as an explicit dependency (spec §9) rather than a package global,
// so tests can construct isolated instances.
type Allocator struct {
	perfMu      sync.RWMutex
	performance map[string]*ArmPerformance

	cyclesMu     sync.Mutex
	activeCycles map[string]struct{}
}

// New returns an empty Allocator ready to use.
func New() *Allocator {
	return &Allocator{
		performance:  make(map[string]*ArmPerformance),
		activeCycles: make(map[string]struct{}),
	}
}

// performanceKey guards against id collisions across platforms; the
// original Python keys its performance dict purely by arm.id since it
// only ever ran against one platform's ArmState list at a time.
func performanceKey(platform arm.Platform, armID string) string {
	return string(platform) + "/" + armID
}

// GetPerformance returns a copy of the tracked performance for an arm,
// and whether it exists. Safe for concurrent readers (spec §5).
func (al *Allocator) GetPerformance(platform arm.Platform, armID string) (ArmPerformance, bool) {
	al.perfMu.RLock()
	defer al.perfMu.RUnlock()
	p, ok := al.performance[performanceKey(platform, armID)]
	if !ok {
		return ArmPerformance{}, false
	}
	return *p, true
}

// ResetPerformance clears all tracked arm performance under an
// exclusive writer lock (spec §5).
func (al *Allocator) ResetPerformance() {
	al.perfMu.Lock()
	defer al.perfMu.Unlock()
	al.performance = make(map[string]*ArmPerformance)
}

// UpdatePerformance computes the reward for goal and folds it into
// the arm's running mean/variance via an exponential moving average
// (alpha=0.1), exactly matching optimization_strategies.py's
// update_arm_performance: variance is updated from the *old* mean and
// *old* pulls count before the mean and pulls are advanced, and the
// confidence interval is recomputed only once pulls has passed 1.
func (al *Allocator) UpdatePerformance(a arm.Arm, goal scoring.Goal) *ArmPerformance {
	reward := scoring.Reward(a, goal)

	al.perfMu.Lock()
	defer al.perfMu.Unlock()

	key := performanceKey(a.Platform, a.ID)
	perf, exists := al.performance[key]
	if !exists {
		perf = &ArmPerformance{
			ArmID:      a.ID,
			Platform:   a.Platform,
			MeanReward: reward,
			Variance:   0,
			Pulls:      1,
		}
		al.performance[key] = perf
		return perf
	}

	oldMean := perf.MeanReward
	newMean := oldMean + emaLearningRate*(reward-oldMean)

	if perf.Pulls > 1 {
		varianceUpdate := (reward - oldMean) * (reward - newMean)
		perf.Variance = (perf.Variance*float64(perf.Pulls-1) + varianceUpdate) / float64(perf.Pulls)
	}

	perf.MeanReward = newMean
	perf.Pulls++

	if perf.Pulls > 1 {
		perf.ConfidenceInterval = confidenceZScore * perf.StandardError()
	}

	return perf
}

// TryBeginCycle enforces spec §5's per-account serialization: two
// optimization cycles for the same accountID must not overlap. This
// implementation rejects re-entrant attempts with a busy error rather
// than blocking (spec §9 Open Question 1 — see DESIGN.md). The
// returned release func must be called exactly once when the cycle
// finishes, success or failure.
func (al *Allocator) TryBeginCycle(accountID string) (release func(), err error) {
	al.cyclesMu.Lock()
	defer al.cyclesMu.Unlock()

	if _, busy := al.activeCycles[accountID]; busy {
		return nil, apperrors.NewBusyError(accountID)
	}
	al.activeCycles[accountID] = struct{}{}

	return func() {
		al.cyclesMu.Lock()
		delete(al.activeCycles, accountID)
		al.cyclesMu.Unlock()
	}, nil
}

// Options carries the tunables every AllocateWithStrategy call needs.
type Options struct {
	MinConversions  int64
	MaxChangeRatio  float64
	Epsilon         float64 // epsilon_greedy only; 0 means use the strategy default
	ConfidenceLevel float64 // ucb1 only; 0 means use the strategy default
	RNG             *rand.Rand
}

func (o Options) rng() *rand.Rand {
	if o.RNG != nil {
		return o.RNG
	}
	return rand.New(rand.NewSource(1))
}

// AllocateWithStrategy dispatches to the named strategy, defaulting
// unknown strategies to UCB1 (matching
// optimization_strategies.py::allocate_with_strategy's fallback).
func (al *Allocator) AllocateWithStrategy(arms []arm.Arm, totalBudget decimal.Decimal, strategy Strategy, goal scoring.Goal, opts Options) ([]Allocation, error) {
	if totalBudget.Sign() <= 0 {
		return nil, apperrors.ErrValidation("total budget must be positive")
	}

	switch strategy {
	case StrategyProportional:
		return al.AllocateProportional(arms, totalBudget, goal, opts.MinConversions, opts.MaxChangeRatio), nil
	case StrategyEpsilonGreedy:
		eps := opts.Epsilon
		if eps == 0 {
			eps = defaultEpsilon
		}
		return al.AllocateEpsilonGreedy(arms, totalBudget, goal, eps, opts.rng()), nil
	case StrategyUCB1:
		conf := opts.ConfidenceLevel
		if conf == 0 {
			conf = defaultConfidenceLevel
		}
		return al.AllocateUCB1(arms, totalBudget, goal, conf), nil
	case StrategyThompson:
		return al.AllocateThompson(arms, totalBudget, goal, opts.rng()), nil
	case StrategyAdaptive:
		return al.AllocateAdaptive(arms, totalBudget, goal, opts.rng()), nil
	default:
		return al.AllocateUCB1(arms, totalBudget, goal, defaultConfidenceLevel), nil
	}
}

// banditAllocations converts a sparse arm-id -> budget map (the shape
// every bandit strategy naturally produces) into a dense Allocation
// per arm, matching ad_optimization_agent.py's conversion of the
// bandit dict into BudgetAllocation: every arm gets a record, even
// when its share is zero, and bandit paths never report a score
// (score stays 0; only the proportional fallback scores arms).
func banditAllocations(arms []arm.Arm, budgets map[string]decimal.Decimal, strategy Strategy) []Allocation {
	out := make([]Allocation, 0, len(arms))
	for _, a := range arms {
		newBudget, ok := budgets[a.ID]
		if !ok {
			newBudget = decimal.Zero
		}
		current := a.CurrentBudget()
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
			Score:            0,
			Reason:           fmt.Sprintf("Allocated using %s strategy", strategy),
		})
	}
	return out
}

func equalSplit(arms []arm.Arm, totalBudget decimal.Decimal) map[string]decimal.Decimal {
	budgets := make(map[string]decimal.Decimal, len(arms))
	share := totalBudget.Div(decimal.NewFromInt(int64(len(arms))))
	for _, a := range arms {
		budgets[a.ID] = share
	}
	return budgets
}
