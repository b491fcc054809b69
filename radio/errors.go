package radio

import (
	"errors"
	"fmt"
)

var (
	ErrAuthRequired = errors.New("moderator authentication required")
	ErrNotFound     = errors.New("not found")
	ErrNotEligible  = errors.New("not eligible")
	ErrPersistence  = errors.New("persistence failure")
	ErrInvalidInput = errors.New("invalid input")
)

// RejectReason classifies why a submission was not admitted.
type RejectReason string

const (
	RejectBlocked          RejectReason = "blocked"
	RejectDuplicateSlot    RejectReason = "duplicate_slot"
	RejectDuplicateID      RejectReason = "duplicate_id"
	RejectAlreadyRefunded  RejectReason = "already_refunded"
	RejectUnresolvable     RejectReason = "unresolvable"
	RejectDurationExceeded RejectReason = "duration_exceeded"
	RejectBlacklisted      RejectReason = "blacklisted"
)

// Rejection is the expected, user-facing outcome of a failed submission.
type Rejection struct {
	Reason  RejectReason
	Message string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("request rejected (%s): %s", r.Reason, r.Message)
}

func reject(reason RejectReason, format string, args ...interface{}) *Rejection {
	return &Rejection{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// AsRejection unwraps err into a *Rejection if it is one.
func AsRejection(err error) (*Rejection, bool) {
	var rej *Rejection
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}
