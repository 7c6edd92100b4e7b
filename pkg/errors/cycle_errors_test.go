package errors

import (
	stderrors "errors"
	"testing"
)

func TestNewBusyError_IsBusyReportsTrue(t *testing.T) {
	err := NewBusyError("acct-1")
	if !IsBusy(err) {
		t.Error("expected IsBusy to report true for a BusyError")
	}
}

func TestIsBusy_FalseForUnrelatedError(t *testing.T) {
	if IsBusy(stderrors.New("some other error")) {
		t.Error("expected IsBusy to report false for an unrelated error")
	}
}

func TestAdapterTransientError_WrapsCauseAndPlatform(t *testing.T) {
	cause := stderrors.New("connection reset")
	err := NewAdapterTransientError("social", cause)

	if err.Platform != "social" {
		t.Errorf("Platform = %q, want social", err.Platform)
	}
	if !stderrors.Is(err.AppError, cause) {
		t.Error("expected the original cause to be reachable via errors.Is")
	}
}

func TestApplyPendingError_CarriesArmAndPlatform(t *testing.T) {
	err := NewApplyPendingError("search", "campaign-42", "no budget resource mapped")
	if err.ArmID != "campaign-42" || err.Platform != "search" {
		t.Errorf("got ArmID=%q Platform=%q", err.ArmID, err.Platform)
	}
	if err.HTTPStatus != 202 {
		t.Errorf("HTTPStatus = %d, want 202 (Accepted — reported, not retried)", err.HTTPStatus)
	}
}

func TestAdapterPermanentError_ExcludesPlatform(t *testing.T) {
	err := NewAdapterPermanentError("social", stderrors.New("invalid token"))
	if err.HTTPStatus != 401 {
		t.Errorf("HTTPStatus = %d, want 401", err.HTTPStatus)
	}
}

func TestAllocatorOracleFailedError_WrapsCause(t *testing.T) {
	cause := stderrors.New("model unavailable")
	err := NewAllocatorOracleFailedError(cause)
	if err.Err != cause {
		t.Errorf("expected the underlying cause to be preserved")
	}
}
