package signal

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/budgetloop/optimizer/internal/arm"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func decPtr(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

func TestRun_PurchaseMissingRevenueIsSkipped(t *testing.T) {
	events := []Event{{EventID: "e1", EventType: EventPurchase, Revenue: nil}}
	report := Run(Request{Events: events, Target: TargetSocial})
	if len(report.Signals) != 0 {
		t.Errorf("expected 0 signals, got %d", len(report.Signals))
	}
	if len(report.IssuesDetected) != 1 {
		t.Errorf("expected 1 issue, got %d", len(report.IssuesDetected))
	}
}

func TestRun_HighValuePurchasePromotion(t *testing.T) {
	events := []Event{{EventID: "e1", EventType: EventPurchase, UserID: "u1", Revenue: decPtr("100")}}
	ltv := []LTVEntry{{UserID: "u1", PredictedLTV: d("500")}} // 500 > 1.5*100
	report := Run(Request{Events: events, Target: TargetSocial, LTVData: ltv})

	if len(report.Signals) != 1 {
		t.Fatalf("expected 1 signal, got %d", len(report.Signals))
	}
	sig := report.Signals[0]
	if sig.Classification != ClassHighValuePurchase {
		t.Errorf("Classification = %v, want high_value_purchase", sig.Classification)
	}
	if !sig.Value.Equal(d("500")) {
		t.Errorf("Value = %v, want 500 (predicted LTV)", sig.Value)
	}
}

func TestRun_PurchaseBelowLTVThresholdStaysRegular(t *testing.T) {
	events := []Event{{EventID: "e1", EventType: EventPurchase, UserID: "u1", Revenue: decPtr("100")}}
	// LTV present but below the 1.5x threshold must not promote.
	ltv := []LTVEntry{{UserID: "u1", PredictedLTV: d("120")}}
	report := Run(Request{Events: events, Target: TargetSocial, LTVData: ltv})

	sig := report.Signals[0]
	if sig.Classification != ClassPurchase {
		t.Errorf("Classification = %v, want purchase", sig.Classification)
	}
	if !sig.Value.Equal(d("100")) {
		t.Errorf("Value = %v, want 100 (revenue)", sig.Value)
	}
}

func TestRun_PurchaseWithProfitMargin(t *testing.T) {
	events := []Event{{
		EventID: "e1", EventType: EventPurchase, Revenue: decPtr("100"),
		Metadata: map[string]string{"product_id": "sku-1"},
	}}
	margins := map[string]float64{"sku-1": 0.4}
	report := Run(Request{Events: events, Target: TargetSocial, ProfitMargins: margins})

	sig := report.Signals[0]
	if !sig.Value.Equal(d("40")) {
		t.Errorf("Value = %v, want 40 (100*0.4)", sig.Value)
	}
}

func TestRun_PurchaseWithProfitMarginDefault(t *testing.T) {
	events := []Event{{
		EventID: "e1", EventType: EventPurchase, Revenue: decPtr("100"),
		Metadata: map[string]string{"product_id": "unknown-sku"},
	}}
	report := Run(Request{Events: events, Target: TargetSocial})

	sig := report.Signals[0]
	if !sig.Value.Equal(d("20")) {
		t.Errorf("Value = %v, want 20 (100*0.2 default margin)", sig.Value)
	}
}

func TestRun_QualifiedLead(t *testing.T) {
	events := []Event{{EventID: "e1", EventType: EventLead, Qualified: true}}
	report := Run(Request{Events: events, Target: TargetSocial, HasQualificationRules: true})

	sig := report.Signals[0]
	if sig.Classification != ClassQualifiedLead {
		t.Errorf("Classification = %v, want qualified_lead", sig.Classification)
	}
	if !sig.Value.Equal(d("10")) {
		t.Errorf("Value = %v, want default lead value 10", sig.Value)
	}
}

func TestRun_UnqualifiedLead(t *testing.T) {
	events := []Event{{EventID: "e1", EventType: EventLead, Qualified: false}}
	report := Run(Request{Events: events, Target: TargetSocial})

	sig := report.Signals[0]
	if sig.Classification != ClassLead {
		t.Errorf("Classification = %v, want lead", sig.Classification)
	}
}

func TestRun_SignupAndTrialStart(t *testing.T) {
	events := []Event{
		{EventID: "e1", EventType: EventSignup},
		{EventID: "e2", EventType: EventTrialStart},
	}
	report := Run(Request{Events: events, Target: TargetSocial})
	for _, sig := range report.Signals {
		if sig.Classification != ClassTrialStart {
			t.Errorf("Classification = %v, want trial_start", sig.Classification)
		}
		if sig.EventName != "CompleteRegistration" {
			t.Errorf("EventName = %v, want CompleteRegistration", sig.EventName)
		}
	}
}

func TestRun_PlatformFanOutBoth(t *testing.T) {
	events := []Event{{EventID: "e1", EventType: EventSignup}}
	report := Run(Request{Events: events, Target: TargetBoth})
	if len(report.Signals) != 2 {
		t.Errorf("platform=both should produce exactly 2 signals per valid event, got %d", len(report.Signals))
	}
	if report.SignalsByPlatform[arm.PlatformSocial] != 1 || report.SignalsByPlatform[arm.PlatformSearch] != 1 {
		t.Errorf("expected 1 signal per platform, got %+v", report.SignalsByPlatform)
	}
}

func TestRun_EventIDSuffixedByPlatform(t *testing.T) {
	events := []Event{{EventID: "evt-123", EventType: EventSignup}}
	report := Run(Request{Events: events, Target: TargetBoth})
	seen := map[string]bool{}
	for _, sig := range report.Signals {
		seen[sig.EventID] = true
	}
	if !seen["evt-123_social"] || !seen["evt-123_search"] {
		t.Errorf("expected platform-suffixed event ids, got %+v", seen)
	}
}

func TestRun_UserDataDropsEmptyFields(t *testing.T) {
	events := []Event{{
		EventID: "e1", EventType: EventSignup,
		Metadata: map[string]string{"email": "", "phone": "555-1234"},
	}}
	report := Run(Request{Events: events, Target: TargetSocial})
	sig := report.Signals[0]
	if _, ok := sig.UserData["email"]; ok {
		t.Error("empty email must not appear in user data")
	}
	if sig.UserData["phone"] != "555-1234" {
		t.Errorf("expected phone to be carried through, got %+v", sig.UserData)
	}
}
