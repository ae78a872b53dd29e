package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/google/uuid"
)

// transferGasLimit covers a plain value transfer.
const transferGasLimit = 21000

// EVMClient is the subset of the Ethereum RPC used by the gateway.
type EVMClient interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *gethtypes.Transaction) error
}

// EthereumGateway implements Gateway against an Ethereum JSON-RPC endpoint.
// Generated keys live in an in-memory vault addressed by opaque handles.
type EthereumGateway struct {
	client  EVMClient
	chainID *big.Int
	signer  gethtypes.Signer

	mu   sync.RWMutex
	keys map[string]*ecdsa.PrivateKey
}

// DialEthereum initialises a gateway for the provided RPC endpoint.
func DialEthereum(endpoint string, chainID int64) (*EthereumGateway, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return nil, fmt.Errorf("chain rpc endpoint required")
	}
	client, err := ethclient.Dial(trimmed)
	if err != nil {
		return nil, fmt.Errorf("dial chain rpc: %w", err)
	}
	return NewEthereumGateway(client, chainID), nil
}

// NewEthereumGateway wraps an existing client, mainly for tests.
func NewEthereumGateway(client EVMClient, chainID int64) *EthereumGateway {
	id := big.NewInt(chainID)
	return &EthereumGateway{
		client:  client,
		chainID: id,
		signer:  gethtypes.NewEIP155Signer(id),
		keys:    make(map[string]*ecdsa.PrivateKey),
	}
}

var _ Gateway = (*EthereumGateway)(nil)

// BalanceAt queries the latest balance of an address.
func (g *EthereumGateway) BalanceAt(ctx context.Context, address string) (*big.Int, error) {
	balance, err := g.client.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	return balance, nil
}

// PendingNonceAt returns the next nonce for an address.
func (g *EthereumGateway) PendingNonceAt(ctx context.Context, address string) (uint64, error) {
	nonce, err := g.client.PendingNonceAt(ctx, common.HexToAddress(address))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	return nonce, nil
}

// SuggestGasPrice returns the node's gas price estimate.
func (g *EthereumGateway) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	price, err := g.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	return price, nil
}

// SignAndBroadcast builds, signs and submits a value transfer from the key
// behind keyHandle. Nonce and gas price are fetched fresh per call.
func (g *EthereumGateway) SignAndBroadcast(ctx context.Context, toAddress string, amountWei *big.Int, keyHandle string) (string, error) {
	key, err := g.lookupKey(keyHandle)
	if err != nil {
		return "", err
	}
	if amountWei == nil || amountWei.Sign() <= 0 {
		return "", fmt.Errorf("%w: non-positive amount", ErrSigning)
	}
	if !g.ValidAddress(toAddress) {
		return "", fmt.Errorf("%w: malformed recipient address", ErrSigning)
	}

	from := gethcrypto.PubkeyToAddress(key.PublicKey)
	nonce, err := g.client.PendingNonceAt(ctx, from)
	if err != nil {
		return "", fmt.Errorf("%w: fetch nonce: %v", ErrNetwork, err)
	}
	gasPrice, err := g.client.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: fetch gas price: %v", ErrNetwork, err)
	}

	tx := gethtypes.NewTransaction(nonce, common.HexToAddress(toAddress), amountWei, transferGasLimit, gasPrice, nil)
	signed, err := gethtypes.SignTx(tx, g.signer, key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSigning, err)
	}
	if err := g.client.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBroadcast, err)
	}
	return signed.Hash().Hex(), nil
}

// CreateAccount generates a fresh secp256k1 key and stores it in the vault.
func (g *EthereumGateway) CreateAccount(_ context.Context) (Account, error) {
	key, err := gethcrypto.GenerateKey()
	if err != nil {
		return Account{}, fmt.Errorf("%w: %v", ErrSigning, err)
	}
	handle := uuid.NewString()
	g.mu.Lock()
	g.keys[handle] = key
	g.mu.Unlock()
	return Account{
		Address:   gethcrypto.PubkeyToAddress(key.PublicKey).Hex(),
		KeyHandle: handle,
	}, nil
}

// ValidAddress reports whether s is a well-formed address. Mixed-case input
// must carry a correct EIP-55 checksum; all-lowercase hex is accepted.
func (g *EthereumGateway) ValidAddress(s string) bool {
	return ValidAddress(s)
}

// ValidAddress is the package-level address check used by session validation.
func ValidAddress(s string) bool {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return false
	}
	body := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if body == strings.ToLower(body) {
		return true
	}
	return common.HexToAddress(s).Hex() == s
}

func (g *EthereumGateway) lookupKey(handle string) (*ecdsa.PrivateKey, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	key, ok := g.keys[handle]
	if !ok {
		return nil, ErrUnknownKeyHandle
	}
	return key, nil
}
