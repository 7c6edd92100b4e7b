package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Error codes for the optimization-cycle error taxonomy (spec §7).
// These extend, rather than replace, the platform/sync taxonomy above.
const (
	ErrCodeAdapterTransient       = "ADAPTER_TRANSIENT"
	ErrCodeAdapterPermanent       = "ADAPTER_PERMANENT"
	ErrCodeNormalizationMalformed = "NORMALIZATION_MALFORMED"
	ErrCodeAllocatorEmpty         = "ALLOCATOR_EMPTY"
	ErrCodeAllocatorOracleFailed  = "ALLOCATOR_ORACLE_FAILED"
	ErrCodeApplyFailed            = "APPLY_FAILED"
	ErrCodeApplyPending           = "APPLY_PENDING"
	ErrCodeCycleCancelled         = "CYCLE_CANCELLED"
	ErrCodeBusy                   = "ACCOUNT_BUSY"
)

// AdapterTransientError: HTTP timeout, 5xx, DNS — logged, counted;
// the cycle continues with partial data (policy lives in optloop).
type AdapterTransientError struct {
	*AppError
	Platform string
}

func NewAdapterTransientError(platform string, cause error) *AdapterTransientError {
	return &AdapterTransientError{
		AppError: Wrap(cause, ErrCodeAdapterTransient,
			fmt.Sprintf("%s: transient adapter error", platform), http.StatusBadGateway),
		Platform: platform,
	}
}

// AdapterPermanentError: 4xx auth/permission — the platform is
// excluded from the rest of the cycle.
type AdapterPermanentError struct {
	*AppError
	Platform string
}

func NewAdapterPermanentError(platform string, cause error) *AdapterPermanentError {
	return &AdapterPermanentError{
		AppError: Wrap(cause, ErrCodeAdapterPermanent,
			fmt.Sprintf("%s: permanent adapter error", platform), http.StatusUnauthorized),
		Platform: platform,
	}
}

// NormalizationMalformedError: a raw insight record is missing a
// mandatory field — skip that record, continue with the rest.
type NormalizationMalformedError struct {
	*AppError
	Platform string
	Field    string
}

func NewNormalizationMalformedError(platform, field string) *NormalizationMalformedError {
	return &NormalizationMalformedError{
		AppError: New(ErrCodeNormalizationMalformed,
			fmt.Sprintf("%s: malformed raw insight, missing %s", platform, field), http.StatusUnprocessableEntity),
		Platform: platform,
		Field:    field,
	}
}

// AllocatorEmptyError: no arms survived the fetch+normalize steps.
// The cycle returns a no_data status and exits cleanly.
type AllocatorEmptyError struct {
	*AppError
	AccountID string
}

func NewAllocatorEmptyError(accountID string) *AllocatorEmptyError {
	return &AllocatorEmptyError{
		AppError:  New(ErrCodeAllocatorEmpty, fmt.Sprintf("no arms to allocate for account %s", accountID), http.StatusOK),
		AccountID: accountID,
	}
}

// AllocatorOracleFailedError: the intelligent allocator refused or
// errored — the caller falls back to the proportional path.
type AllocatorOracleFailedError struct {
	*AppError
}

func NewAllocatorOracleFailedError(cause error) *AllocatorOracleFailedError {
	return &AllocatorOracleFailedError{
		AppError: Wrap(cause, ErrCodeAllocatorOracleFailed, "intelligent allocator failed", http.StatusBadGateway),
	}
}

// ApplyFailedError: the platform rejected a budget write. Recorded
// per-arm in the cycle report; does not undo other applies.
type ApplyFailedError struct {
	*AppError
	Platform string
	ArmID    string
}

func NewApplyFailedError(platform, armID string, cause error) *ApplyFailedError {
	return &ApplyFailedError{
		AppError: Wrap(cause, ErrCodeApplyFailed,
			fmt.Sprintf("%s: budget update rejected for arm %s", platform, armID), http.StatusBadGateway),
		Platform: platform,
		ArmID:    armID,
	}
}

// ApplyPendingError: the update is impossible without an additional
// mapping (e.g. the search platform's budget_id for an arm) — this is
// reported, never retried automatically.
type ApplyPendingError struct {
	*AppError
	Platform string
	ArmID    string
}

func NewApplyPendingError(platform, armID, reason string) *ApplyPendingError {
	return &ApplyPendingError{
		AppError: New(ErrCodeApplyPending,
			fmt.Sprintf("%s: budget update pending for arm %s: %s", platform, armID, reason), http.StatusAccepted),
		Platform: platform,
		ArmID:    armID,
	}
}

// CycleCancelledError: caller cancellation or deadline — the cycle
// returns a partial report of whatever completed beforehand.
type CycleCancelledError struct {
	*AppError
	AccountID string
}

func NewCycleCancelledError(accountID string, cause error) *CycleCancelledError {
	return &CycleCancelledError{
		AppError:  Wrap(cause, ErrCodeCycleCancelled, fmt.Sprintf("cycle cancelled for account %s", accountID), http.StatusRequestTimeout),
		AccountID: accountID,
	}
}

// BusyError: a cycle is already running for this account (spec §5,
// Open Question 1 — resolved as reject-not-block).
type BusyError struct {
	*AppError
	AccountID string
}

func NewBusyError(accountID string) *BusyError {
	return &BusyError{
		AppError:  New(ErrCodeBusy, fmt.Sprintf("a cycle is already running for account %s", accountID), http.StatusConflict),
		AccountID: accountID,
	}
}

// IsBusy reports whether err is a BusyError.
func IsBusy(err error) bool {
	var busyErr *BusyError
	return stderrors.As(err, &busyErr)
}
