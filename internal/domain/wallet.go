package domain

import "time"

// Wallet holds the single on-chain account owned by a user. KeyHandle is an
// opaque reference into the signing vault, never the key material itself.
type Wallet struct {
	UserID    int64
	Address   string
	KeyHandle string
	CreatedAt time.Time
}
