// Package social implements the Meta-shaped "social" platform adapter:
// cents-based budgets, action-type aggregation for conversions and
// revenue. Grounded on the teacher's
// internal/infrastructure/platform/meta/connector.go.
package social

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/budgetloop/optimizer/internal/arm"
	"github.com/budgetloop/optimizer/internal/platform"
	"github.com/budgetloop/optimizer/internal/platform/base"
	apperrors "github.com/budgetloop/optimizer/pkg/errors"
)

const apiBase = "https://graph.facebook.com/v18.0"

// purchaseActionTypes and conversionActionTypes are closed sets:
// revenue counts purchase only, conversions count
// purchase/lead/complete_registration only. Other Meta action_type
// values (omni_purchase, fb_pixel_purchase, etc.) never count.
var purchaseActionTypes = map[string]bool{
	"purchase": true,
}

var conversionActionTypes = map[string]bool{
	"purchase":              true,
	"lead":                  true,
	"complete_registration": true,
}

// Config holds social-adapter credentials and tunables.
type Config struct {
	AccessToken     string
	RateLimitCalls  int
	RateLimitWindow time.Duration
	Timeout         time.Duration
	MaxRetries      int
}

// Adapter implements platform.PlatformAdapter for the social platform.
type Adapter struct {
	*base.Connector
	token string
}

// New builds a social Adapter from Config, defaulting unset tunables.
func New(cfg Config) *Adapter {
	if cfg.RateLimitCalls == 0 {
		cfg.RateLimitCalls = 200
	}
	if cfg.RateLimitWindow == 0 {
		cfg.RateLimitWindow = time.Hour
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}

	return &Adapter{
		Connector: base.New(arm.PlatformSocial, &base.Config{
			BaseURL:         apiBase,
			RateLimitCalls:  cfg.RateLimitCalls,
			RateLimitWindow: cfg.RateLimitWindow,
			Timeout:         cfg.Timeout,
			MaxRetries:      cfg.MaxRetries,
		}),
		token: cfg.AccessToken,
	}
}

// Platform returns arm.PlatformSocial.
func (a *Adapter) Platform() arm.Platform { return arm.PlatformSocial }

type insightRecord struct {
	CampaignID   string `json:"campaign_id"`
	CampaignName string `json:"campaign_name"`
	Impressions  string `json:"impressions"`
	Clicks       string `json:"clicks"`
	Spend        string `json:"spend"`
	DateStart    string `json:"date_start"`
	Actions      []struct {
		ActionType string `json:"action_type"`
		Value      string `json:"value"`
	} `json:"actions"`
	ActionValues []struct {
		ActionType string `json:"action_type"`
		Value      string `json:"value"`
	} `json:"action_values"`
}

// FetchInsights pulls the account's insights and normalizes each
// record into an Arm (spec §4.A "Normalization contract"). A malformed
// record is skipped, not fatal to the call.
func (a *Adapter) FetchInsights(ctx context.Context, req platform.FetchInsightsRequest) ([]arm.Arm, error) {
	endpoint := fmt.Sprintf("%s/%s/insights", apiBase, req.AccountRef)

	params := map[string]string{
		"fields":         "campaign_id,campaign_name,impressions,clicks,spend,actions,action_values,date_start",
		"level":          string(req.Level),
		"time_increment": "1",
	}
	if req.Window.IsExplicit() {
		params["time_range"] = fmt.Sprintf(`{"since":"%s","until":"%s"}`,
			req.Window.Start.Format("2006-01-02"), req.Window.End.Format("2006-01-02"))
	} else {
		params["date_preset"] = mapPreset(req.Window.Preset)
	}

	resp, err := a.DoGet(ctx, endpoint, a.BuildAuthHeader(a.token), params)
	if err != nil {
		return nil, err
	}

	var page struct {
		Data []insightRecord `json:"data"`
	}
	if err := a.ParseJSON(resp.Body, &page); err != nil {
		return nil, err
	}

	arms := make([]arm.Arm, 0, len(page.Data))
	for _, rec := range page.Data {
		if rec.CampaignID == "" {
			continue
		}
		arms = append(arms, a.normalize(rec))
	}
	return arms, nil
}

func mapPreset(p platform.DatePreset) string {
	switch p {
	case platform.PresetYesterday:
		return "yesterday"
	case platform.PresetLast30d:
		return "last_30d"
	default:
		return "last_7d"
	}
}

// normalize takes insight spend as whole currency units (no cents
// conversion) and aggregates actions/action_values per spec §4.A.
func (a *Adapter) normalize(rec insightRecord) arm.Arm {
	spendCents, _ := decimal.NewFromString(rec.Spend)
	spend := spendCents // social insights already report spend in whole units, unlike daily_budget writes

	var conversions int64
	for _, act := range rec.Actions {
		if conversionActionTypes[act.ActionType] {
			v, _ := strconv.ParseInt(act.Value, 10, 64)
			conversions += v
		}
	}

	var revenue decimal.Decimal
	for _, av := range rec.ActionValues {
		if purchaseActionTypes[av.ActionType] {
			v, _ := decimal.NewFromString(av.Value)
			revenue = revenue.Add(v)
		}
	}

	impressions, _ := strconv.ParseInt(rec.Impressions, 10, 64)
	clicks, _ := strconv.ParseInt(rec.Clicks, 10, 64)

	return arm.Arm{
		Platform:     arm.PlatformSocial,
		ID:           rec.CampaignID,
		CampaignID:   rec.CampaignID,
		CampaignName: rec.CampaignName,
		Date:         rec.DateStart,
		Spend:        spend,
		Revenue:      revenue,
		Conversions:  conversions,
		Clicks:       clicks,
		Impressions:  impressions,
	}
}

// UpdateBudget writes a new daily budget in cents, per spec §6
// "Social platform budget update".
func (a *Adapter) UpdateBudget(ctx context.Context, armID string, dailyBudget decimal.Decimal) (*platform.UpdateResult, error) {
	endpoint := fmt.Sprintf("%s/%s", apiBase, armID)
	cents := dailyBudget.Mul(decimal.NewFromInt(100)).Round(0)

	_, err := a.Connector.DoPost(ctx, endpoint, a.BuildAuthHeader(a.token), map[string]string{
		"daily_budget": cents.String(),
	})
	if err != nil {
		return &platform.UpdateResult{Outcome: platform.OutcomeError, Err: err}, apperrors.NewApplyFailedError("social", armID, err)
	}
	return &platform.UpdateResult{Outcome: platform.OutcomeSuccess, Message: "budget updated"}, nil
}

// UploadConversion posts a single event to the social platform's CAPI
// endpoint (spec §6 "Social platform CAPI").
func (a *Adapter) UploadConversion(ctx context.Context, req platform.ConversionRequest) (*platform.UpdateResult, error) {
	endpoint := fmt.Sprintf("%s/%s/events", apiBase, req.PixelRef)

	payload := map[string]interface{}{
		"data": []map[string]interface{}{{
			"event_name": req.EventName,
			"event_id":   req.EventID,
			"event_time": time.Now().Unix(),
			"user_data":  req.UserData,
			"custom_data": map[string]interface{}{
				"value":    req.Value.String(),
				"currency": req.Currency,
			},
		}},
	}

	_, err := a.Connector.DoPost(ctx, endpoint, a.BuildAuthHeader(a.token), payload)
	if err != nil {
		return &platform.UpdateResult{Outcome: platform.OutcomeError, Err: err}, apperrors.NewApplyFailedError("social", req.EventID, err)
	}
	return &platform.UpdateResult{Outcome: platform.OutcomeSuccess, Message: "conversion uploaded"}, nil
}

// HealthCheck verifies the adapter can reach the social platform API.
func (a *Adapter) HealthCheck(ctx context.Context) error {
	_, err := a.DoGet(ctx, apiBase+"/me", a.BuildAuthHeader(a.token), nil)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodePlatformUnavailable, "social platform health check failed", http.StatusServiceUnavailable)
	}
	return nil
}

var _ platform.PlatformAdapter = (*Adapter)(nil)
