package memory

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/splax/tipline/internal/domain"
	"github.com/splax/tipline/internal/repository"
)

// Repository keeps users, wallets and the ledger in process memory. It is the
// default store when no DATABASE_URL is configured.
type Repository struct {
	mu      sync.RWMutex
	users   map[int64]domain.User
	wallets map[int64]domain.Wallet
	ledger  map[int64][]domain.TransactionRecord
}

// New constructs an empty Repository.
func New() *Repository {
	return &Repository{
		users:   make(map[int64]domain.User),
		wallets: make(map[int64]domain.Wallet),
		ledger:  make(map[int64][]domain.TransactionRecord),
	}
}

var (
	_ repository.UserRepository   = (*Repository)(nil)
	_ repository.WalletRepository = (*Repository)(nil)
	_ repository.LedgerRepository = (*Repository)(nil)
)

// EnsureUser returns the stored user, registering it on first contact.
func (r *Repository) EnsureUser(_ context.Context, id int64, defaultLevel domain.SecurityLevel) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user, ok := r.users[id]; ok {
		return &user, nil
	}
	user := domain.User{ID: id, SecurityLevel: defaultLevel, CreatedAt: time.Now().UTC()}
	r.users[id] = user
	return &user, nil
}

// GetUserByID fetches a user.
func (r *Repository) GetUserByID(_ context.Context, id int64) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &user, nil
}

// SetSecurityLevel updates a user's tier.
func (r *Repository) SetSecurityLevel(_ context.Context, id int64, level domain.SecurityLevel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.SecurityLevel = level
	r.users[id] = user
	return nil
}

// CreateWallet stores a wallet, rejecting a second wallet for the same user.
func (r *Repository) CreateWallet(_ context.Context, wallet *domain.Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.wallets[wallet.UserID]; ok {
		return repository.ErrWalletExists
	}
	r.wallets[wallet.UserID] = *wallet
	return nil
}

// GetWalletByUser fetches the user's wallet.
func (r *Repository) GetWalletByUser(_ context.Context, userID int64) (*domain.Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	wallet, ok := r.wallets[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &wallet, nil
}

// AppendRecord appends a ledger entry for the user.
func (r *Repository) AppendRecord(_ context.Context, record *domain.TransactionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *record
	if record.AmountWei != nil {
		stored.AmountWei = new(big.Int).Set(record.AmountWei)
	}
	r.ledger[record.UserID] = append(r.ledger[record.UserID], stored)
	return nil
}

// ListRecent returns the newest records first, at most limit of them.
func (r *Repository) ListRecent(_ context.Context, userID int64, limit int) ([]domain.TransactionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	records := r.ledger[userID]
	if limit <= 0 || limit > len(records) {
		limit = len(records)
	}
	out := make([]domain.TransactionRecord, 0, limit)
	for i := len(records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, records[i])
	}
	return out, nil
}

// UpdateStatus mutates the status of a stored record.
func (r *Repository) UpdateStatus(_ context.Context, recordID string, status domain.TransactionStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for userID, records := range r.ledger {
		for i := range records {
			if records[i].ID == recordID {
				records[i].Status = status
				r.ledger[userID] = records
				return nil
			}
		}
	}
	return repository.ErrNotFound
}
