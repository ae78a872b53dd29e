package domain

import (
	"math/big"
	"time"
)

// DraftState is the position of an in-flight transfer conversation. Idle is
// the total default: a user with no draft is Idle, never undefined.
type DraftState string

const (
	DraftIdle                 DraftState = "idle"
	DraftAwaitingAmount       DraftState = "awaiting_amount"
	DraftAwaitingAddress      DraftState = "awaiting_address"
	DraftAwaitingConfirmation DraftState = "awaiting_confirmation"
)

// TransferDraft is a not-yet-broadcast transfer request. At most one exists
// per user; it is destroyed on completion, cancellation, or expiry.
type TransferDraft struct {
	UserID    int64
	State     DraftState
	AmountWei *big.Int
	ToAddress string
	UpdatedAt time.Time
}
