// Package arm implements the optimization unit of the budget optimizer:
// a single campaign or adset, with the derived metrics the allocator
// and scoring engine need to rank it against its peers.
package arm

import (
	"math"

	"github.com/shopspring/decimal"
)

// Platform identifies which ad-delivery platform an Arm belongs to.
type Platform string

const (
	PlatformSocial Platform = "social"
	PlatformSearch Platform = "search"
)

func (p Platform) IsValid() bool {
	switch p {
	case PlatformSocial, PlatformSearch:
		return true
	default:
		return false
	}
}

// InventoryStatus is the optional e-commerce stock overlay on an Arm.
type InventoryStatus string

const (
	InventoryInStock    InventoryStatus = "in_stock"
	InventoryLowStock   InventoryStatus = "low_stock"
	InventoryOutOfStock InventoryStatus = "out_of_stock"
)

// Arm is the unit of optimization: a campaign or adset identified by
// (Platform, ID). It is immutable within a single allocation cycle —
// callers must not mutate an Arm after it has been scored.
type Arm struct {
	Platform     Platform
	ID           string
	CampaignID   string
	CampaignName string
	Date         string

	Spend       decimal.Decimal
	Revenue     decimal.Decimal
	Conversions int64
	Clicks      int64
	Impressions int64

	// Business overlays. All optional; nil means "not supplied".
	LTV                  *decimal.Decimal
	ProfitMargin         *float64
	InventoryStatus      *InventoryStatus
	AudienceQualityScore *float64
	DaysActive           *int
	CurrentDailyBudget   *decimal.Decimal
}

const defaultProfitMargin = 0.2

// ROAS is revenue/spend, 0 when spend is zero.
func (a Arm) ROAS() float64 {
	if a.Spend.Sign() <= 0 {
		return 0
	}
	r, _ := a.Revenue.Div(a.Spend).Float64()
	return r
}

// CPA is spend/conversions, +Inf when there are no conversions.
// Unlike the money fields this is a read-only ratio never written
// back to a platform, so a plain float sentinel is the right tool —
// decimal.Decimal has no infinity.
func (a Arm) CPA() float64 {
	if a.Conversions <= 0 {
		return math.Inf(1)
	}
	spend, _ := a.Spend.Float64()
	return spend / float64(a.Conversions)
}

// CTR is 100*clicks/impressions, 0 when there are no impressions.
func (a Arm) CTR() float64 {
	if a.Impressions <= 0 {
		return 0
	}
	return 100 * float64(a.Clicks) / float64(a.Impressions)
}

// Profit is revenue*margin - spend, using ProfitMargin when present
// else a default 20% margin.
func (a Arm) Profit() decimal.Decimal {
	margin := defaultProfitMargin
	if a.ProfitMargin != nil {
		margin = *a.ProfitMargin
	}
	return a.Revenue.Mul(decimal.NewFromFloat(margin)).Sub(a.Spend)
}

// ProfitROAS is Profit()/spend, 0 when spend is zero.
func (a Arm) ProfitROAS() float64 {
	if a.Spend.Sign() <= 0 {
		return 0
	}
	p, _ := a.Profit().Div(a.Spend).Float64()
	return p
}

// LTVROAS is (ltv*conversions)/spend when LTV is supplied and there
// are conversions and spend; otherwise it falls back to ROAS.
func (a Arm) LTVROAS() float64 {
	if a.LTV != nil && a.Conversions > 0 && a.Spend.Sign() > 0 {
		totalLTV := a.LTV.Mul(decimal.NewFromInt(a.Conversions))
		v, _ := totalLTV.Div(a.Spend).Float64()
		return v
	}
	return a.ROAS()
}

// HasSufficientData reports whether the arm carries enough volume for
// reliable bandit optimization.
func (a Arm) HasSufficientData() bool {
	return a.Conversions >= 10 && a.Impressions >= 1000
}

// CurrentBudget returns CurrentDailyBudget when set, else falls back
// to Spend — the same default the allocator's clamp step uses.
func (a Arm) CurrentBudget() decimal.Decimal {
	if a.CurrentDailyBudget != nil {
		return *a.CurrentDailyBudget
	}
	return a.Spend
}
