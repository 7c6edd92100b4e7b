// Package platform defines the uniform contract every ad-delivery
// platform adapter implements, plus the request/result types the
// Optimization Loop exchanges with it. Concrete adapters live in
// internal/platform/social and internal/platform/search.
package platform

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/budgetloop/optimizer/internal/arm"
)

// Level is the aggregation granularity of a FetchInsights call.
type Level string

const (
	LevelCampaign Level = "campaign"
	LevelAdSet    Level = "adset"
	LevelAd       Level = "ad"
	LevelAccount  Level = "account"
)

// DatePreset names a rolling reporting window.
type DatePreset string

const (
	PresetYesterday DatePreset = "yesterday"
	PresetLast7d    DatePreset = "last_7d"
	PresetLast30d   DatePreset = "last_30d"
)

// TimeWindow is either an enumerated preset or an explicit date range;
// exactly one of Preset or (Start, End) should be set.
type TimeWindow struct {
	Preset DatePreset
	Start  time.Time
	End    time.Time
}

// IsExplicit reports whether the window is a [Start,End] pair rather
// than a named preset.
func (w TimeWindow) IsExplicit() bool {
	return w.Preset == "" && !w.Start.IsZero() && !w.End.IsZero()
}

// FetchInsightsRequest describes one insight pull against a platform.
type FetchInsightsRequest struct {
	AccountRef string
	Window     TimeWindow
	Level      Level
}

// ConversionRequest carries a single enriched conversion event destined
// for a platform's ingestion endpoint (CAPI, offline conversion upload).
type ConversionRequest struct {
	PixelRef   string // social: pixel id; search: conversion_action_id
	EventName  string
	EventID    string
	Value      decimal.Decimal
	Currency   string
	UserData   map[string]string
	CustomData map[string]string
	// GclidOrClickID carries the search-platform click identifier
	// (gclid); unused by the social adapter.
	GclidOrClickID string
}

// Outcome classifies the result of an UpdateBudget or UploadConversion
// call (spec §4.D step 5, §7).
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomePending Outcome = "pending"
	OutcomeError   Outcome = "error"
)

// UpdateResult is the uniform result of a write call against a
// platform adapter.
type UpdateResult struct {
	Outcome Outcome
	Message string
	Err     error
}

// PlatformAdapter is the contract every platform connector satisfies.
// Adapters never panic or return a bare error upward for per-record
// failures (spec §4.A "Failure semantics") — FetchInsights returns
// whatever arms it could normalize plus an error describing what was
// lost, and the caller (internal/optloop) decides the cycle's fate.
type PlatformAdapter interface {
	Platform() arm.Platform
	FetchInsights(ctx context.Context, req FetchInsightsRequest) ([]arm.Arm, error)
	UpdateBudget(ctx context.Context, armID string, dailyBudget decimal.Decimal) (*UpdateResult, error)
	UploadConversion(ctx context.Context, req ConversionRequest) (*UpdateResult, error)
	HealthCheck(ctx context.Context) error
}
