package services

import "fmt"

// Error taxonomy of the settlement engine. Validation and reference errors
// are pre-checked before any write. State conflicts are business-expected and
// carry enough detail for the caller to explain them to a user. Consistency
// errors mean the engine itself would break an invariant; they always roll
// the surrounding transaction back.

type ValidationError struct {
	Msg    string
	Fields map[string]string
}

func (e *ValidationError) Error() string { return e.Msg }

// ReferenceNotFoundError aggregates every unresolved reference of one kind so
// the caller gets a single error listing them all.
type ReferenceNotFoundError struct {
	Kind string // family, student, subject, settlement_note, coupon, coupon_series
	IDs  []uint
}

func (e *ReferenceNotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %v", e.Kind, e.IDs)
}

// State conflict codes.
const (
	ConflictNotAvailable    = "coupon_not_available"
	ConflictNotUsed         = "coupon_not_used"
	ConflictSeriesInactive  = "series_inactive"
	ConflictSeriesExpired   = "series_expired"
	ConflictSeriesNotActive = "series_not_active"
)

type StateConflictError struct {
	Code      string
	Current   string // current entity status
	Attempted string // attempted transition
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("%s: cannot %s while %q", e.Code, e.Attempted, e.Current)
}

type ConsistencyError struct {
	Op     string
	Detail string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("consistency violation in %s: %s", e.Op, e.Detail)
}
