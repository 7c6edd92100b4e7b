// Package handler turns the five internal/core operations into REST
// endpoints. Every handler here is a direct bind/call/respond — no
// allocation, audit, or classification logic lives in this package
// (spec.md §1 keeps the façade's business logic explicitly out of
// scope). Grounded on the teacher's analytics_handler.go bind-validate-
// respond shape, using the same internal/delivery/http/response
// envelope.
package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/budgetloop/optimizer/internal/allocator"
	"github.com/budgetloop/optimizer/internal/arm"
	"github.com/budgetloop/optimizer/internal/audit"
	"github.com/budgetloop/optimizer/internal/core"
	"github.com/budgetloop/optimizer/internal/delivery/http/response"
	"github.com/budgetloop/optimizer/internal/optloop"
	"github.com/budgetloop/optimizer/internal/platform"
	"github.com/budgetloop/optimizer/internal/scoring"
	"github.com/budgetloop/optimizer/internal/signal"
)

// CoreHandler adapts internal/core.Core to gin handlers.
type CoreHandler struct {
	core *core.Core
}

// NewCoreHandler creates a new core handler.
func NewCoreHandler(c *core.Core) *CoreHandler {
	return &CoreHandler{core: c}
}

// armDTO is the wire representation of an arm.Arm. Money fields are
// strings so clients aren't forced to reproduce decimal.Decimal's JSON
// marshaling rules.
type armDTO struct {
	Platform     string  `json:"platform" binding:"required"`
	ID           string  `json:"id" binding:"required"`
	CampaignID   string  `json:"campaign_id"`
	CampaignName string  `json:"campaign_name"`
	Date         string  `json:"date"`
	Spend        string  `json:"spend"`
	Revenue      string  `json:"revenue"`
	Conversions  int64   `json:"conversions"`
	Clicks       int64   `json:"clicks"`
	Impressions  int64   `json:"impressions"`

	LTV                  *string  `json:"ltv,omitempty"`
	ProfitMargin         *float64 `json:"profit_margin,omitempty"`
	InventoryStatus      *string  `json:"inventory_status,omitempty"`
	AudienceQualityScore *float64 `json:"audience_quality_score,omitempty"`
	DaysActive           *int     `json:"days_active,omitempty"`
	CurrentDailyBudget   *string  `json:"current_daily_budget,omitempty"`
}

func (d armDTO) toArm() arm.Arm {
	spend, _ := decimal.NewFromString(d.Spend)
	revenue, _ := decimal.NewFromString(d.Revenue)

	a := arm.Arm{
		Platform:     arm.Platform(d.Platform),
		ID:           d.ID,
		CampaignID:   d.CampaignID,
		CampaignName: d.CampaignName,
		Date:         d.Date,
		Spend:        spend,
		Revenue:      revenue,
		Conversions:  d.Conversions,
		Clicks:       d.Clicks,
		Impressions:  d.Impressions,
	}
	if d.LTV != nil {
		if v, err := decimal.NewFromString(*d.LTV); err == nil {
			a.LTV = &v
		}
	}
	a.ProfitMargin = d.ProfitMargin
	if d.InventoryStatus != nil {
		v := arm.InventoryStatus(*d.InventoryStatus)
		a.InventoryStatus = &v
	}
	a.AudienceQualityScore = d.AudienceQualityScore
	a.DaysActive = d.DaysActive
	if d.CurrentDailyBudget != nil {
		if v, err := decimal.NewFromString(*d.CurrentDailyBudget); err == nil {
			a.CurrentDailyBudget = &v
		}
	}
	return a
}

func allocationDTO(a allocator.Allocation) gin.H {
	return gin.H{
		"arm_id":            a.ArmID,
		"platform":          a.Platform,
		"current_budget":    a.CurrentBudget.String(),
		"new_budget":        a.NewBudget.String(),
		"change_percentage": a.ChangePercentage,
		"score":             a.Score,
		"reason":            a.Reason,
	}
}

// AllocateBudgetRequest is the REST request body for POST /allocate.
type AllocateBudgetRequest struct {
	Arms           []armDTO `json:"arms" binding:"required,min=1"`
	TotalBudget    string   `json:"total_budget" binding:"required"`
	Strategy       string   `json:"strategy"`
	Goal           string   `json:"goal"`
	MinConversions int64    `json:"min_conversions"`
	MaxChangeRatio float64  `json:"max_change_ratio"`
}

// AllocateBudget handles POST /api/v1/allocate.
func (h *CoreHandler) AllocateBudget(c *gin.Context) {
	var req AllocateBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	totalBudget, err := decimal.NewFromString(req.TotalBudget)
	if err != nil {
		response.BadRequest(c, "total_budget must be a decimal string")
		return
	}

	arms := make([]arm.Arm, len(req.Arms))
	for i, a := range req.Arms {
		arms[i] = a.toArm()
	}

	resp, err := h.core.AllocateBudget(c.Request.Context(), core.AllocateBudgetRequest{
		Arms:           arms,
		TotalBudget:    totalBudget,
		Strategy:       allocator.Strategy(req.Strategy),
		Goal:           scoring.Goal(req.Goal),
		MinConversions: req.MinConversions,
		MaxChangeRatio: req.MaxChangeRatio,
	})
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	allocations := make([]gin.H, len(resp.Allocations))
	for i, a := range resp.Allocations {
		allocations[i] = allocationDTO(a)
	}
	response.Success(c, gin.H{"allocations": allocations})
}

// OptimizeOnceRequest is the REST request body for POST /optimize.
type OptimizeOnceRequest struct {
	AccountID        string  `json:"account_id" binding:"required"`
	TotalBudget      string  `json:"total_budget" binding:"required"`
	SocialAccountRef string  `json:"social_account_ref"`
	SearchAccountRef string  `json:"search_account_ref"`
	WindowPreset     string  `json:"window_preset"`
	Goal             string  `json:"goal"`
	Strategy         string  `json:"strategy"`
	MinConversions   int64   `json:"min_conversions"`
	MaxChangeRatio   float64 `json:"max_change_ratio"`
}

// OptimizeOnce handles POST /api/v1/optimize.
func (h *CoreHandler) OptimizeOnce(c *gin.Context) {
	var req OptimizeOnceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	totalBudget, err := decimal.NewFromString(req.TotalBudget)
	if err != nil {
		response.BadRequest(c, "total_budget must be a decimal string")
		return
	}

	report, err := h.core.OptimizeOnce(c.Request.Context(), optloop.Request{
		AccountID:        req.AccountID,
		TotalBudget:      totalBudget,
		SocialAccountRef: req.SocialAccountRef,
		SearchAccountRef: req.SearchAccountRef,
		Window:           platform.TimeWindow{Preset: platform.DatePreset(req.WindowPreset)},
		Goal:             scoring.Goal(req.Goal),
		Strategy:         allocator.Strategy(req.Strategy),
		MinConversions:   req.MinConversions,
		MaxChangeRatio:   req.MaxChangeRatio,
	})
	if err != nil {
		response.Error(c, http.StatusConflict, "CYCLE_BUSY", err.Error())
		return
	}

	applyResults := make([]gin.H, len(report.ApplyResults))
	for i, r := range report.ApplyResults {
		applyResults[i] = gin.H{
			"arm_id":   r.ArmID,
			"platform": r.Platform,
			"outcome":  r.Outcome,
			"message":  r.Message,
		}
	}
	allocations := make([]gin.H, len(report.Allocations))
	for i, a := range report.Allocations {
		allocations[i] = allocationDTO(a)
	}

	response.Success(c, gin.H{
		"status":         report.Status,
		"account_id":     report.AccountID,
		"arms_processed": report.ArmsProcessed,
		"allocations":    allocations,
		"apply_results":  applyResults,
		"errors":         report.Errors,
		"timestamp":      report.Timestamp.Format(time.RFC3339),
	})
}

// FetchArms handles GET /api/v1/arms.
func (h *CoreHandler) FetchArms(c *gin.Context) {
	windowPreset := c.Query("window_preset")
	if windowPreset == "" {
		windowPreset = string(platform.PresetLast7d)
	}

	arms, errs := h.core.FetchArms(c.Request.Context(), core.FetchArmsRequest{
		SocialAccountRef: c.Query("social_account_ref"),
		SearchAccountRef: c.Query("search_account_ref"),
		Window:           platform.TimeWindow{Preset: platform.DatePreset(windowPreset)},
	})

	out := make([]gin.H, len(arms))
	for i, a := range arms {
		out[i] = gin.H{
			"platform":     a.Platform,
			"id":           a.ID,
			"campaign_id":  a.CampaignID,
			"spend":        a.Spend.String(),
			"revenue":      a.Revenue.String(),
			"conversions":  a.Conversions,
			"clicks":       a.Clicks,
			"impressions":  a.Impressions,
		}
	}
	response.Success(c, gin.H{"arms": out, "errors": errs})
}

// AuditROIRequest is the REST request body for POST /audit.
type AuditROIRequest struct {
	Arms                       []armDTO `json:"arms" binding:"required"`
	Goal                       string   `json:"goal"`
	ConversionsAPIEnabled      bool     `json:"conversions_api_enabled"`
	EnhancedConversionsEnabled bool     `json:"enhanced_conversions_enabled"`
}

// AuditROI handles POST /api/v1/audit.
func (h *CoreHandler) AuditROI(c *gin.Context) {
	var req AuditROIRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	arms := make([]arm.Arm, len(req.Arms))
	for i, a := range req.Arms {
		arms[i] = a.toArm()
	}

	report := h.core.AuditROI(c.Request.Context(), audit.Request{
		Arms: arms,
		Goal: scoring.Goal(req.Goal),
		PlatformConfig: &audit.PlatformConfig{
			ConversionsAPIEnabled:      req.ConversionsAPIEnabled,
			EnhancedConversionsEnabled: req.EnhancedConversionsEnabled,
		},
	})

	issues := make([]gin.H, len(report.Issues))
	for i, iss := range report.Issues {
		issues[i] = gin.H{
			"kind":             iss.Kind,
			"severity":         iss.Severity,
			"description":      iss.Description,
			"affected_arm_id":  iss.AffectedArmID,
			"platform":         iss.Platform,
			"recommendation":   iss.Recommendation,
			"estimated_impact": iss.EstimatedImpact,
		}
	}
	response.Success(c, gin.H{
		"issues":          issues,
		"health_score":    report.HealthScore,
		"recommendations": report.Recommendations,
	})
}

// signalEventDTO is the wire representation of a raw business event.
type signalEventDTO struct {
	EventID   string            `json:"event_id" binding:"required"`
	EventType string            `json:"event_type" binding:"required"`
	UserID    string            `json:"user_id"`
	Revenue   *string           `json:"revenue,omitempty"`
	Currency  string            `json:"currency"`
	Timestamp int64             `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Qualified bool              `json:"qualified"`
}

// GenerateSignalsRequest is the REST request body for POST /signals.
type GenerateSignalsRequest struct {
	Events                []signalEventDTO   `json:"events" binding:"required"`
	Target                string             `json:"target"`
	LTVData               map[string]string  `json:"ltv_data,omitempty"`
	ProfitMargins         map[string]float64 `json:"profit_margins,omitempty"`
	HasQualificationRules bool               `json:"has_qualification_rules"`
}

// GenerateSignals handles POST /api/v1/signals.
func (h *CoreHandler) GenerateSignals(c *gin.Context) {
	var req GenerateSignalsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	events := make([]signal.Event, len(req.Events))
	for i, e := range req.Events {
		ev := signal.Event{
			EventID:   e.EventID,
			EventType: signal.EventType(e.EventType),
			UserID:    e.UserID,
			Currency:  e.Currency,
			Timestamp: e.Timestamp,
			Metadata:  e.Metadata,
			Qualified: e.Qualified,
		}
		if e.Revenue != nil {
			if v, err := decimal.NewFromString(*e.Revenue); err == nil {
				ev.Revenue = &v
			}
		}
		events[i] = ev
	}

	ltvData := make([]signal.LTVEntry, 0, len(req.LTVData))
	for userID, v := range req.LTVData {
		if d, err := decimal.NewFromString(v); err == nil {
			ltvData = append(ltvData, signal.LTVEntry{UserID: userID, PredictedLTV: d})
		}
	}

	report := h.core.GenerateSignals(c.Request.Context(), signal.Request{
		Events:                events,
		Target:                signal.Target(req.Target),
		LTVData:               ltvData,
		ProfitMargins:         req.ProfitMargins,
		HasQualificationRules: req.HasQualificationRules,
	})

	signals := make([]gin.H, len(report.Signals))
	for i, s := range report.Signals {
		signals[i] = gin.H{
			"platform":       s.Platform,
			"event_name":     s.EventName,
			"event_id":       s.EventID,
			"value":          s.Value.String(),
			"currency":       s.Currency,
			"timestamp":      s.Timestamp,
			"user_data":      s.UserData,
			"custom_data":    s.CustomData,
			"classification": s.Classification,
			"reasoning":      s.Reasoning,
		}
	}
	response.Success(c, gin.H{
		"signals":             signals,
		"issues_detected":     report.IssuesDetected,
		"recommendations":     report.Recommendations,
		"total_value":         report.TotalValue.String(),
		"signals_by_platform": report.SignalsByPlatform,
	})
}
