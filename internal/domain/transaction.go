package domain

import (
	"math/big"
	"time"
)

// TransactionStatus tracks the last known chain status of a submitted transfer.
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusConfirmed TransactionStatus = "confirmed"
	StatusFailed    TransactionStatus = "failed"
)

// TransactionRecord is an append-only ledger entry for a broadcast transfer.
// Only Status may change after creation.
type TransactionRecord struct {
	ID          string
	UserID      int64
	TxHash      string
	FromAddress string
	ToAddress   string
	AmountWei   *big.Int
	Status      TransactionStatus
	CreatedAt   time.Time
}
