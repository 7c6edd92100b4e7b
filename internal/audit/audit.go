// Package audit implements the ROI Audit rule engine (spec §4.E): a
// deterministic pass over a set of arms and account-level platform
// configuration that surfaces tracking and data-quality problems
// before they corrupt an allocation. Grounded on
// original_source/backend/agents/roi_audit_agent.py's
// _audit_fallback rule table.
package audit

import (
	"github.com/budgetloop/optimizer/internal/arm"
	"github.com/budgetloop/optimizer/internal/scoring"
)

// Severity ranks an Issue for the health-score penalty and the order
// recommendations are surfaced in.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Kind names one of the 8 deterministic rules below.
type Kind string

const (
	KindMissingConversions       Kind = "missing_conversions"
	KindLowConversionVolume      Kind = "low_conversion_volume"
	KindNegativeROAS             Kind = "negative_roas"
	KindMissingLTVData           Kind = "missing_ltv_data"
	KindMissingProfitMargin      Kind = "missing_profit_margin"
	KindOutOfStockCampaign       Kind = "out_of_stock_campaign"
	KindMissingCAPI              Kind = "missing_capi"
	KindMissingEnhancedConversions Kind = "missing_enhanced_conversions"
)

// Issue is a single finding from the audit.
type Issue struct {
	Kind            Kind
	Severity        Severity
	Description     string
	AffectedArmID   string // empty for account-level issues (missing_capi, missing_enhanced_conversions)
	Platform        arm.Platform
	Recommendation  string
	EstimatedImpact string
}

// PlatformConfig is the account-level tracking configuration checked
// by the two account-wide rules.
type PlatformConfig struct {
	ConversionsAPIEnabled        bool // facebook.conversions_api_enabled
	EnhancedConversionsEnabled bool // google.enhanced_conversions_enabled
}

// Request is one audit run: the arms to inspect, the optimization
// goal in force (drives the LTV/profit-margin checks), and the
// account's platform tracking configuration.
type Request struct {
	Arms           []arm.Arm
	Goal           scoring.Goal
	PlatformConfig *PlatformConfig
}

// Report is the audit result: every issue found, a 0-100 health
// score, and a deterministic list of recommendations.
type Report struct {
	Issues          []Issue
	HealthScore     int
	Recommendations []string
}

const (
	lowConversionVolumeSpendFloor = 100
	negativeROASSpendFloor        = 500
	negativeROASThreshold         = 0.5
	lowConversionVolumeCeiling    = 10

	criticalPenalty = 20
	highPenalty     = 10
	mediumPenalty   = 5
)

// Run applies the 8 rules to req in the fixed order the original
// rule-based fallback used, then derives the health score and
// recommendations from the resulting issue counts.
func Run(req Request) Report {
	var issues []Issue

	for _, a := range req.Arms {
		spend, _ := a.Spend.Float64()
		revenue, _ := a.Revenue.Float64()

		if spend > 0 && a.Conversions == 0 {
			issues = append(issues, Issue{
				Kind:           KindMissingConversions,
				Severity:       SeverityCritical,
				Description:    "campaign is spending with zero recorded conversions",
				AffectedArmID:  a.ID,
				Platform:       a.Platform,
				Recommendation: "verify conversion tracking is firing for this campaign",
			})
		}

		if a.Conversions > 0 && a.Conversions < lowConversionVolumeCeiling && spend > lowConversionVolumeSpendFloor {
			issues = append(issues, Issue{
				Kind:           KindLowConversionVolume,
				Severity:       SeverityHigh,
				Description:    "conversion volume too low to optimize confidently",
				AffectedArmID:  a.ID,
				Platform:       a.Platform,
				Recommendation: "let this campaign accumulate more conversions before tightening its budget",
			})
		}

		if spend > negativeROASSpendFloor {
			roas := 0.0
			if spend > 0 {
				roas = revenue / spend
			}
			if roas < negativeROASThreshold {
				issues = append(issues, Issue{
					Kind:            KindNegativeROAS,
					Severity:        SeverityHigh,
					Description:     "campaign is running at a significant loss",
					AffectedArmID:   a.ID,
					Platform:        a.Platform,
					Recommendation:  "consider pausing or re-targeting this campaign",
					EstimatedImpact: "reallocating this spend could recover budget for better performers",
				})
			}
		}

		if req.Goal == scoring.GoalLTV && a.LTV == nil {
			issues = append(issues, Issue{
				Kind:           KindMissingLTVData,
				Severity:       SeverityMedium,
				Description:    "LTV optimization goal is set but this arm has no LTV data",
				AffectedArmID:  a.ID,
				Platform:       a.Platform,
				Recommendation: "supply predicted LTV per arm or switch to a ROAS-based goal",
			})
		}

		if req.Goal == scoring.GoalProfit && a.ProfitMargin == nil {
			issues = append(issues, Issue{
				Kind:           KindMissingProfitMargin,
				Severity:       SeverityMedium,
				Description:    "profit optimization goal is set but this arm has no profit margin",
				AffectedArmID:  a.ID,
				Platform:       a.Platform,
				Recommendation: "supply a profit margin per arm or switch to a ROAS-based goal",
			})
		}

		if a.InventoryStatus != nil && *a.InventoryStatus == arm.InventoryOutOfStock && spend > 0 {
			issues = append(issues, Issue{
				Kind:            KindOutOfStockCampaign,
				Severity:        SeverityHigh,
				Description:     "campaign is spending while its product is out of stock",
				AffectedArmID:   a.ID,
				Platform:        a.Platform,
				Recommendation:  "pause this campaign until inventory is replenished",
				EstimatedImpact: "this spend is currently unrecoverable",
			})
		}
	}

	capiEnabled := req.PlatformConfig != nil && req.PlatformConfig.ConversionsAPIEnabled
	if !capiEnabled {
		issues = append(issues, Issue{
			Kind:           KindMissingCAPI,
			Severity:       SeverityHigh,
			Description:    "social platform Conversions API is not enabled for this account",
			Platform:       arm.PlatformSocial,
			Recommendation: "set up Conversions API for better tracking",
		})
	}

	enhancedEnabled := req.PlatformConfig != nil && req.PlatformConfig.EnhancedConversionsEnabled
	if !enhancedEnabled {
		issues = append(issues, Issue{
			Kind:           KindMissingEnhancedConversions,
			Severity:       SeverityHigh,
			Description:    "search platform Enhanced Conversions is not enabled for this account",
			Platform:       arm.PlatformSearch,
			Recommendation: "enable Enhanced Conversions",
		})
	}

	return Report{
		Issues:          issues,
		HealthScore:     healthScore(issues),
		Recommendations: recommendations(issues, capiEnabled, enhancedEnabled),
	}
}

func healthScore(issues []Issue) int {
	var critical, high, medium int
	for _, iss := range issues {
		switch iss.Severity {
		case SeverityCritical:
			critical++
		case SeverityHigh:
			high++
		case SeverityMedium:
			medium++
		}
	}
	score := 100 - (critical*criticalPenalty + high*highPenalty + medium*mediumPenalty)
	if score < 0 {
		score = 0
	}
	return score
}

func recommendations(issues []Issue, capiEnabled, enhancedEnabled bool) []string {
	var critical, high int
	for _, iss := range issues {
		switch iss.Severity {
		case SeverityCritical:
			critical++
		case SeverityHigh:
			high++
		}
	}

	var recs []string
	if critical > 0 {
		recs = append(recs, "fix critical issues immediately")
	}
	if high > 0 {
		recs = append(recs, "address high-priority issues")
	}
	if !capiEnabled {
		recs = append(recs, "set up Conversions API for better tracking")
	}
	if !enhancedEnabled {
		recs = append(recs, "enable Enhanced Conversions")
	}
	return recs
}
