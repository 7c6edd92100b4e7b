// Package signal implements the offline-conversion Signal Classifier
// (spec §4.E): it turns a raw business event (purchase, lead, signup)
// into one PlatformSignal per target platform, ready to hand to a
// PlatformAdapter.UploadConversion call. Grounded on
// original_source/backend/agents/signal_generation_agent.py's
// _generate_signals_fallback.
package signal

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/budgetloop/optimizer/internal/arm"
)

// EventType names the kind of raw business event being classified.
type EventType string

const (
	EventPurchase   EventType = "purchase"
	EventLead       EventType = "lead"
	EventSignup     EventType = "signup"
	EventTrialStart EventType = "trial_start"
)

// Classification is the signal classifier's verdict for an event.
type Classification string

const (
	ClassPurchase         Classification = "purchase"
	ClassHighValuePurchase Classification = "high_value_purchase"
	ClassLead             Classification = "lead"
	ClassQualifiedLead     Classification = "qualified_lead"
	ClassTrialStart        Classification = "trial_start"
)

const defaultLeadValue = 10.0
const defaultProfitMargin = 0.2
const highValueLTVMultiple = 1.5

// Target picks which platform(s) a signal fans out to.
type Target string

const (
	TargetSocial Target = "social"
	TargetSearch Target = "search"
	TargetBoth   Target = "both"
)

// Event is one raw business event to classify.
type Event struct {
	EventID   string
	EventType EventType
	UserID    string
	Revenue   *decimal.Decimal
	Currency  string
	Timestamp int64
	Metadata  map[string]string
	Qualified bool // caller-evaluated qualification_rules result for leads
}

// LTVEntry is one user's predicted lifetime value, used to promote a
// purchase to high_value_purchase.
type LTVEntry struct {
	UserID       string
	PredictedLTV decimal.Decimal
}

// Request is one signal-generation run.
type Request struct {
	Events        []Event
	Target        Target
	LTVData       []LTVEntry
	ProfitMargins map[string]float64 // product_id -> margin
	// HasQualificationRules reports whether the caller evaluated
	// lead-qualification rules (Event.Qualified is meaningful only
	// when this is true).
	HasQualificationRules bool
}

// PlatformSignal is one event normalized for one target platform.
type PlatformSignal struct {
	Platform       arm.Platform
	EventName      string
	EventID        string
	Value          decimal.Decimal
	Currency       string
	Timestamp      int64
	UserData       map[string]string
	CustomData     map[string]string
	Classification Classification
	Reasoning      string
}

// Report is the result of classifying a batch of events.
type Report struct {
	Signals           []PlatformSignal
	IssuesDetected    []string
	Recommendations   []string
	TotalValue        decimal.Decimal
	SignalsByPlatform map[arm.Platform]int
}

// Run classifies every event in req and fans each one out to its
// target platform(s) (spec §4.E "Signal Classifier").
func Run(req Request) Report {
	var (
		signals    []PlatformSignal
		issues     []string
		totalValue decimal.Decimal
	)

	ltvByUser := make(map[string]decimal.Decimal, len(req.LTVData))
	for _, l := range req.LTVData {
		ltvByUser[l.UserID] = l.PredictedLTV
	}

	for _, ev := range req.Events {
		class, eventName, value, skip := classify(ev, ltvByUser, req.ProfitMargins)
		if skip != "" {
			issues = append(issues, skip)
			continue
		}

		for _, platform := range targetsFor(req.Target) {
			userData := map[string]string{}
			if email := ev.Metadata["email"]; email != "" {
				userData["email"] = email
			}
			if phone := ev.Metadata["phone"]; phone != "" {
				userData["phone"] = phone
			}

			signals = append(signals, PlatformSignal{
				Platform:       platform,
				EventName:      eventName,
				EventID:        fmt.Sprintf("%s_%s", ev.EventID, platform),
				Value:          value,
				Currency:       ev.Currency,
				Timestamp:      ev.Timestamp,
				UserData:       userData,
				CustomData:     ev.Metadata,
				Classification: class,
				Reasoning:      fmt.Sprintf("classified as %s based on event type and business rules", class),
			})
			totalValue = totalValue.Add(value)
		}
	}

	byPlatform := make(map[arm.Platform]int, 2)
	for _, s := range signals {
		byPlatform[s.Platform]++
	}

	var recs []string
	if len(req.LTVData) == 0 || !req.HasQualificationRules {
		recs = []string{
			"implement LTV prediction for better high-value purchase classification",
			"set up qualification rules for lead classification",
			"add profit margin data for accurate value calculation",
		}
	}

	return Report{
		Signals:           signals,
		IssuesDetected:    issues,
		Recommendations:   recs,
		TotalValue:        totalValue,
		SignalsByPlatform: byPlatform,
	}
}

// classify applies the per-event-type rules and returns the
// classification, the platform event name, the signal value, and a
// non-empty skip reason if the event cannot be classified.
func classify(ev Event, ltvByUser map[string]decimal.Decimal, profitMargins map[string]float64) (Classification, string, decimal.Decimal, string) {
	switch ev.EventType {
	case EventPurchase:
		if ev.Revenue == nil {
			return "", "", decimal.Zero, fmt.Sprintf("purchase event %s missing revenue", ev.EventID)
		}
		value := *ev.Revenue
		class := ClassPurchase

		if ltv, ok := ltvByUser[ev.UserID]; ok {
			threshold := value.Mul(decimal.NewFromFloat(highValueLTVMultiple))
			if ltv.GreaterThan(threshold) {
				class = ClassHighValuePurchase
				value = ltv
			}
		}

		if productID := ev.Metadata["product_id"]; productID != "" {
			margin, ok := profitMargins[productID]
			if !ok {
				margin = defaultProfitMargin
			}
			value = (*ev.Revenue).Mul(decimal.NewFromFloat(margin))
		}

		return class, "Purchase", value, ""

	case EventLead:
		class := ClassLead
		if ev.Qualified {
			class = ClassQualifiedLead
		}
		value := decimal.NewFromFloat(defaultLeadValue)
		if ev.Revenue != nil {
			value = *ev.Revenue
		}
		return class, "Lead", value, ""

	case EventSignup, EventTrialStart:
		value := decimal.Zero
		if ev.Revenue != nil {
			value = *ev.Revenue
		}
		return ClassTrialStart, "CompleteRegistration", value, ""

	default:
		value := decimal.Zero
		if ev.Revenue != nil {
			value = *ev.Revenue
		}
		return Classification(ev.EventType), string(ev.EventType), value, ""
	}
}

func targetsFor(t Target) []arm.Platform {
	if t == TargetBoth {
		return []arm.Platform{arm.PlatformSocial, arm.PlatformSearch}
	}
	if t == TargetSearch {
		return []arm.Platform{arm.PlatformSearch}
	}
	return []arm.Platform{arm.PlatformSocial}
}
