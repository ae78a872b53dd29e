package wallet

import (
	"context"
	"fmt"
	"time"

	"log/slog"

	"github.com/splax/tipline/internal/chain"
	"github.com/splax/tipline/internal/domain"
	"github.com/splax/tipline/internal/repository"
)

// Service owns the wallet directory and the transfer ledger.
type Service struct {
	wallets      repository.WalletRepository
	ledger       repository.LedgerRepository
	gateway      chain.Gateway
	logger       *slog.Logger
	chainTimeout time.Duration
}

// New constructs a Service. chainTimeout bounds every gateway call.
func New(wallets repository.WalletRepository, ledger repository.LedgerRepository, gateway chain.Gateway, logger *slog.Logger, chainTimeout time.Duration) *Service {
	if chainTimeout <= 0 {
		chainTimeout = 15 * time.Second
	}
	return &Service{
		wallets:      wallets,
		ledger:       ledger,
		gateway:      gateway,
		logger:       logger,
		chainTimeout: chainTimeout,
	}
}

// Create generates a fresh account and stores the wallet. A user who already
// owns a wallet gets repository.ErrWalletExists; existing wallets are never
// overwritten.
func (s *Service) Create(ctx context.Context, userID int64) (*domain.Wallet, error) {
	if _, err := s.wallets.GetWalletByUser(ctx, userID); err == nil {
		return nil, repository.ErrWalletExists
	}

	callCtx, cancel := context.WithTimeout(ctx, s.chainTimeout)
	defer cancel()
	account, err := s.gateway.CreateAccount(callCtx)
	if err != nil {
		return nil, fmt.Errorf("generate account: %w", err)
	}

	wallet := &domain.Wallet{
		UserID:    userID,
		Address:   account.Address,
		KeyHandle: account.KeyHandle,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.wallets.CreateWallet(ctx, wallet); err != nil {
		return nil, err
	}
	s.logger.Info("wallet created", "user_id", userID, "address", wallet.Address)
	return wallet, nil
}

// Wallet returns the user's wallet or repository.ErrNotFound.
func (s *Service) Wallet(ctx context.Context, userID int64) (*domain.Wallet, error) {
	return s.wallets.GetWalletByUser(ctx, userID)
}

// Balance queries the chain for the user's wallet balance, formatted in ETH.
func (s *Service) Balance(ctx context.Context, userID int64) (string, error) {
	wallet, err := s.wallets.GetWalletByUser(ctx, userID)
	if err != nil {
		return "", err
	}
	callCtx, cancel := context.WithTimeout(ctx, s.chainTimeout)
	defer cancel()
	balance, err := s.gateway.BalanceAt(callCtx, wallet.Address)
	if err != nil {
		return "", err
	}
	return chain.FormatEther(balance), nil
}

// History returns the user's most recent transfers, newest first.
func (s *Service) History(ctx context.Context, userID int64, limit int) ([]domain.TransactionRecord, error) {
	return s.ledger.ListRecent(ctx, userID, limit)
}
