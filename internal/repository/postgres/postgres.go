package postgres

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/splax/tipline/internal/domain"
	"github.com/splax/tipline/internal/repository"
)

// Repository implements persistence interfaces on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New constructs a Repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var (
	_ repository.UserRepository   = (*Repository)(nil)
	_ repository.WalletRepository = (*Repository)(nil)
	_ repository.LedgerRepository = (*Repository)(nil)
)

// EnsureUser returns the stored user, inserting it at the default level on
// first contact.
func (r *Repository) EnsureUser(ctx context.Context, id int64, defaultLevel domain.SecurityLevel) (*domain.User, error) {
	const query = `INSERT INTO users (id, security_level, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET id = EXCLUDED.id
		RETURNING id, security_level, created_at`
	row := r.pool.QueryRow(ctx, query, id, string(defaultLevel), time.Now().UTC())
	var u domain.User
	var level string
	if err := row.Scan(&u.ID, &level, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.SecurityLevel = domain.SecurityLevel(level)
	return &u, nil
}

// GetUserByID retrieves a user by identifier.
func (r *Repository) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	const query = `SELECT id, security_level, created_at FROM users WHERE id = $1`
	row := r.pool.QueryRow(ctx, query, id)
	var u domain.User
	var level string
	if err := row.Scan(&u.ID, &level, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	u.SecurityLevel = domain.SecurityLevel(level)
	return &u, nil
}

// SetSecurityLevel updates a user's tier.
func (r *Repository) SetSecurityLevel(ctx context.Context, id int64, level domain.SecurityLevel) error {
	const query = `UPDATE users SET security_level = $2 WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id, string(level))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// CreateWallet inserts a wallet, one per user.
func (r *Repository) CreateWallet(ctx context.Context, wallet *domain.Wallet) error {
	const query = `INSERT INTO wallets (user_id, address, key_handle, created_at)
		VALUES ($1, $2, $3, $4)`
	_, err := r.pool.Exec(ctx, query, wallet.UserID, wallet.Address, wallet.KeyHandle, wallet.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return repository.ErrWalletExists
		}
		return err
	}
	return nil
}

// GetWalletByUser fetches the wallet owned by the user.
func (r *Repository) GetWalletByUser(ctx context.Context, userID int64) (*domain.Wallet, error) {
	const query = `SELECT user_id, address, key_handle, created_at FROM wallets WHERE user_id = $1`
	row := r.pool.QueryRow(ctx, query, userID)
	var w domain.Wallet
	if err := row.Scan(&w.UserID, &w.Address, &w.KeyHandle, &w.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &w, nil
}

// AppendRecord appends a transaction record to the ledger.
func (r *Repository) AppendRecord(ctx context.Context, record *domain.TransactionRecord) error {
	const query = `INSERT INTO transactions (id, user_id, tx_hash, from_address, to_address, amount_wei, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	amount := "0"
	if record.AmountWei != nil {
		amount = record.AmountWei.String()
	}
	_, err := r.pool.Exec(ctx, query, record.ID, record.UserID, record.TxHash,
		record.FromAddress, record.ToAddress, amount, string(record.Status), record.CreatedAt)
	return err
}

// ListRecent returns the newest records for a user, up to limit.
func (r *Repository) ListRecent(ctx context.Context, userID int64, limit int) ([]domain.TransactionRecord, error) {
	const query = `SELECT id, user_id, tx_hash, from_address, to_address, amount_wei::text, status, created_at
		FROM transactions WHERE user_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2`
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.TransactionRecord
	for rows.Next() {
		var rec domain.TransactionRecord
		var amount, status string
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.TxHash, &rec.FromAddress, &rec.ToAddress, &amount, &status, &rec.CreatedAt); err != nil {
			return nil, err
		}
		wei, ok := new(big.Int).SetString(amount, 10)
		if !ok {
			wei = big.NewInt(0)
		}
		rec.AmountWei = wei
		rec.Status = domain.TransactionStatus(status)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// UpdateStatus mutates the status of a ledger record.
func (r *Repository) UpdateStatus(ctx context.Context, recordID string, status domain.TransactionStatus) error {
	const query = `UPDATE transactions SET status = $2 WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, recordID, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
