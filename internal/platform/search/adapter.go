// Package search implements the Google-Ads-shaped "search" platform
// adapter: micros-based budgets, GAQL query construction, and
// pending apply outcomes when a campaign has no known budget
// resource. Grounded on spec.md §6 and the GAQL/offline-conversion
// shapes documented in original_source's google_ads client, built in
// the teacher's base_connector/meta idiom since no example repo ships
// a Google Ads connector verbatim.
package search

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/budgetloop/optimizer/internal/arm"
	"github.com/budgetloop/optimizer/internal/platform"
	"github.com/budgetloop/optimizer/internal/platform/base"
	apperrors "github.com/budgetloop/optimizer/pkg/errors"
)

const apiBase = "https://googleads.googleapis.com/v17"

var micros = decimal.NewFromInt(1_000_000)

// Config holds search-adapter credentials and tunables.
type Config struct {
	DeveloperToken  string
	LoginCustomerID string
	RateLimitCalls  int
	RateLimitWindow time.Duration
	Timeout         time.Duration
	MaxRetries      int
}

// Adapter implements platform.PlatformAdapter for the search platform.
type Adapter struct {
	*base.Connector
	developerToken string

	// budgetIDs maps a campaign id to its CampaignBudget resource name.
	// UpdateBudget reports OutcomePending for any campaign absent here
	// (spec §4.D step 5, §7 ApplyPending) rather than guessing one.
	budgetIDs map[string]string
}

// New builds a search Adapter from Config, defaulting unset tunables.
func New(cfg Config, budgetIDs map[string]string) *Adapter {
	if cfg.RateLimitCalls == 0 {
		cfg.RateLimitCalls = 150
	}
	if cfg.RateLimitWindow == 0 {
		cfg.RateLimitWindow = time.Minute
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if budgetIDs == nil {
		budgetIDs = map[string]string{}
	}

	return &Adapter{
		Connector: base.New(arm.PlatformSearch, &base.Config{
			BaseURL:         apiBase,
			RateLimitCalls:  cfg.RateLimitCalls,
			RateLimitWindow: cfg.RateLimitWindow,
			Timeout:         cfg.Timeout,
			MaxRetries:      cfg.MaxRetries,
		}),
		developerToken: cfg.DeveloperToken,
		budgetIDs:      budgetIDs,
	}
}

// Platform returns arm.PlatformSearch.
func (a *Adapter) Platform() arm.Platform { return arm.PlatformSearch }

func (a *Adapter) authHeaders(customerID string) map[string]string {
	h := a.BuildAuthHeader(a.developerToken)
	h["developer-token"] = a.developerToken
	h["login-customer-id"] = customerID
	return h
}

// buildGAQL constructs the SELECT...FROM campaign query described in
// spec.md §6, switching between a date preset and an explicit range.
func buildGAQL(window platform.TimeWindow) string {
	const fields = "campaign.id, campaign.name, metrics.impressions, metrics.clicks, metrics.cost_micros, metrics.conversions, metrics.conversion_value, segments.date"

	var dateClause string
	if window.IsExplicit() {
		dateClause = fmt.Sprintf("segments.date DURING %s TO %s", window.Start.Format("2006-01-02"), window.End.Format("2006-01-02"))
	} else {
		dateClause = fmt.Sprintf("segments.date DURING %s", mapPreset(window.Preset))
	}

	return fmt.Sprintf("SELECT %s FROM campaign WHERE %s", fields, dateClause)
}

func mapPreset(p platform.DatePreset) string {
	switch p {
	case platform.PresetYesterday:
		return "YESTERDAY"
	case platform.PresetLast30d:
		return "LAST_30_DAYS"
	default:
		return "LAST_7_DAYS"
	}
}

type gaqlRow struct {
	Campaign struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"campaign"`
	Metrics struct {
		Impressions     string `json:"impressions"`
		Clicks          string `json:"clicks"`
		CostMicros      string `json:"costMicros"`
		Conversions     string `json:"conversions"`
		ConversionValue string `json:"conversionValue"`
	} `json:"metrics"`
	Segments struct {
		Date string `json:"date"`
	} `json:"segments"`
}

// FetchInsights runs the GAQL query and normalizes micros to whole
// currency units (spec §4.A).
func (a *Adapter) FetchInsights(ctx context.Context, req platform.FetchInsightsRequest) ([]arm.Arm, error) {
	endpoint := fmt.Sprintf("%s/customers/%s/googleAds:search", apiBase, req.AccountRef)
	query := buildGAQL(req.Window)

	resp, err := a.Connector.DoPost(ctx, endpoint, a.authHeaders(req.AccountRef), map[string]string{"query": query})
	if err != nil {
		return nil, err
	}

	var page struct {
		Results []gaqlRow `json:"results"`
	}
	if err := a.ParseJSON(resp.Body, &page); err != nil {
		return nil, err
	}

	arms := make([]arm.Arm, 0, len(page.Results))
	for _, row := range page.Results {
		if row.Campaign.ID == "" {
			continue
		}
		arms = append(arms, a.normalize(row))
	}
	return arms, nil
}

func (a *Adapter) normalize(row gaqlRow) arm.Arm {
	costMicros, _ := decimal.NewFromString(row.Metrics.CostMicros)
	convValueMicros, _ := decimal.NewFromString(row.Metrics.ConversionValue)
	conversions, _ := decimal.NewFromString(row.Metrics.Conversions)
	impressions, _ := decimal.NewFromString(row.Metrics.Impressions)
	clicks, _ := decimal.NewFromString(row.Metrics.Clicks)

	return arm.Arm{
		Platform:     arm.PlatformSearch,
		ID:           row.Campaign.ID,
		CampaignID:   row.Campaign.ID,
		CampaignName: row.Campaign.Name,
		Date:         row.Segments.Date,
		Spend:        costMicros.Div(micros),
		Revenue:      convValueMicros.Div(micros),
		Conversions:  conversions.IntPart(),
		Clicks:       clicks.IntPart(),
		Impressions:  impressions.IntPart(),
	}
}

// UpdateBudget issues a CampaignBudget.update with amount_micros (spec
// §6). Campaigns with no known budget resource report OutcomePending
// rather than guessing a resource name (spec §7 ApplyPending).
func (a *Adapter) UpdateBudget(ctx context.Context, armID string, dailyBudget decimal.Decimal) (*platform.UpdateResult, error) {
	budgetResource, ok := a.budgetIDs[armID]
	if !ok {
		err := apperrors.NewApplyPendingError("search", armID, "no budget resource mapped for campaign")
		return &platform.UpdateResult{Outcome: platform.OutcomePending, Message: err.Message, Err: err}, nil
	}

	endpoint := fmt.Sprintf("%s/%s:mutate", apiBase, budgetResource)
	amountMicros := dailyBudget.Mul(micros).Round(0)

	_, err := a.Connector.DoPost(ctx, endpoint, a.authHeaders(armID), map[string]interface{}{
		"operations": []map[string]interface{}{{
			"update": map[string]string{
				"resourceName": budgetResource,
				"amountMicros": amountMicros.String(),
			},
			"updateMask": "amount_micros",
		}},
	})
	if err != nil {
		return &platform.UpdateResult{Outcome: platform.OutcomeError, Err: err}, apperrors.NewApplyFailedError("search", armID, err)
	}
	return &platform.UpdateResult{Outcome: platform.OutcomeSuccess, Message: "budget updated"}, nil
}

// UploadConversion uploads an offline conversion keyed by
// (conversion_action_id, gclid) per spec §6.
func (a *Adapter) UploadConversion(ctx context.Context, req platform.ConversionRequest) (*platform.UpdateResult, error) {
	if req.GclidOrClickID == "" {
		err := apperrors.NewApplyPendingError("search", req.EventID, "no gclid available for offline conversion upload")
		return &platform.UpdateResult{Outcome: platform.OutcomePending, Message: err.Message, Err: err}, nil
	}

	endpoint := fmt.Sprintf("%s/customers/%s:uploadClickConversions", apiBase, req.PixelRef)

	payload := map[string]interface{}{
		"conversions": []map[string]interface{}{{
			"gclid":                req.GclidOrClickID,
			"conversionActionId":   req.PixelRef,
			"conversionDateTime":   time.Now().Format("2006-01-02 15:04:05-07:00"),
			"conversionValue":      req.Value.String(),
			"currencyCode":         req.Currency,
		}},
	}

	_, err := a.Connector.DoPost(ctx, endpoint, a.authHeaders(req.PixelRef), payload)
	if err != nil {
		return &platform.UpdateResult{Outcome: platform.OutcomeError, Err: err}, apperrors.NewApplyFailedError("search", req.EventID, err)
	}
	return &platform.UpdateResult{Outcome: platform.OutcomeSuccess, Message: "conversion uploaded"}, nil
}

// HealthCheck verifies the adapter can reach the search platform API.
func (a *Adapter) HealthCheck(ctx context.Context) error {
	_, err := a.DoGet(ctx, apiBase+"/customers:listAccessibleCustomers", a.authHeaders(""), nil)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodePlatformUnavailable, "search platform health check failed", http.StatusServiceUnavailable)
	}
	return nil
}

var _ platform.PlatformAdapter = (*Adapter)(nil)
