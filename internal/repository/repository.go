package repository

import (
	"context"

	"github.com/splax/tipline/internal/domain"
)

// UserRepository persists chat users and their security levels.
type UserRepository interface {
	// EnsureUser returns the stored user, creating it at the given default
	// level on first contact.
	EnsureUser(ctx context.Context, id int64, defaultLevel domain.SecurityLevel) (*domain.User, error)
	GetUserByID(ctx context.Context, id int64) (*domain.User, error)
	SetSecurityLevel(ctx context.Context, id int64, level domain.SecurityLevel) error
}

// WalletRepository persists the one-wallet-per-user directory.
type WalletRepository interface {
	// CreateWallet stores a wallet; ErrWalletExists when the user has one.
	CreateWallet(ctx context.Context, wallet *domain.Wallet) error
	GetWalletByUser(ctx context.Context, userID int64) (*domain.Wallet, error)
}

// LedgerRepository is the append-only record of submitted transfers.
type LedgerRepository interface {
	AppendRecord(ctx context.Context, record *domain.TransactionRecord) error
	// ListRecent returns at most limit records, newest first.
	ListRecent(ctx context.Context, userID int64, limit int) ([]domain.TransactionRecord, error)
	UpdateStatus(ctx context.Context, recordID string, status domain.TransactionStatus) error
}
