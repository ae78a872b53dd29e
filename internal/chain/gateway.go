package chain

import (
	"context"
	"errors"
	"math/big"
)

// Gateway is the opaque chain capability consumed by the core: balance and
// fee queries, account creation, and a combined sign-and-broadcast step.
// Implementations own any retry policy; callers bound calls with a context.
type Gateway interface {
	BalanceAt(ctx context.Context, address string) (*big.Int, error)
	PendingNonceAt(ctx context.Context, address string) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SignAndBroadcast(ctx context.Context, toAddress string, amountWei *big.Int, keyHandle string) (txHash string, err error)
	CreateAccount(ctx context.Context) (Account, error)
	ValidAddress(s string) bool
}

// Account pairs a fresh address with the vault handle of its key.
type Account struct {
	Address   string
	KeyHandle string
}

var (
	// ErrNetwork marks RPC transport failures, including timeouts.
	ErrNetwork = errors.New("chain: network failure")
	// ErrSigning marks failures producing a signed transaction.
	ErrSigning = errors.New("chain: signing failure")
	// ErrBroadcast marks failures submitting a signed transaction.
	ErrBroadcast = errors.New("chain: broadcast failure")
	// ErrUnknownKeyHandle marks a vault lookup miss.
	ErrUnknownKeyHandle = errors.New("chain: unknown key handle")
)
