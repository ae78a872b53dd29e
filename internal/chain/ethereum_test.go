package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
)

type fakeEVMClient struct {
	mu          sync.Mutex
	balance     *big.Int
	nonce       uint64
	gasPrice    *big.Int
	sent        []*gethtypes.Transaction
	balanceErr  error
	nonceErr    error
	gasPriceErr error
	sendErr     error
}

func (c *fakeEVMClient) BalanceAt(_ context.Context, _ common.Address, _ *big.Int) (*big.Int, error) {
	if c.balanceErr != nil {
		return nil, c.balanceErr
	}
	return c.balance, nil
}

func (c *fakeEVMClient) PendingNonceAt(_ context.Context, _ common.Address) (uint64, error) {
	if c.nonceErr != nil {
		return 0, c.nonceErr
	}
	return c.nonce, nil
}

func (c *fakeEVMClient) SuggestGasPrice(_ context.Context) (*big.Int, error) {
	if c.gasPriceErr != nil {
		return nil, c.gasPriceErr
	}
	return c.gasPrice, nil
}

func (c *fakeEVMClient) SendTransaction(_ context.Context, tx *gethtypes.Transaction) error {
	if c.sendErr != nil {
		return c.sendErr
	}
	c.mu.Lock()
	c.sent = append(c.sent, tx)
	c.mu.Unlock()
	return nil
}

func newTestGateway(client *fakeEVMClient) *EthereumGateway {
	if client.gasPrice == nil {
		client.gasPrice = big.NewInt(1_000_000_000)
	}
	return NewEthereumGateway(client, 84532)
}

func TestValidAddress(t *testing.T) {
	cases := []struct {
		input string
		want  bool
	}{
		{"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", true},  // EIP-55 checksum
		{"0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed", true},  // all lowercase accepted
		{"0x5AAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", false}, // checksum broken
		{"not-an-address", false},
		{"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAe", false}, // too short
		{"", false},
	}
	for _, tc := range cases {
		if got := ValidAddress(tc.input); got != tc.want {
			t.Fatalf("ValidAddress(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}
}

func TestCreateAccountProducesUsableKeyHandle(t *testing.T) {
	gw := newTestGateway(&fakeEVMClient{})
	account, err := gw.CreateAccount(context.Background())
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if !ValidAddress(account.Address) {
		t.Fatalf("generated address %q is not valid", account.Address)
	}
	if account.KeyHandle == "" {
		t.Fatal("expected a non-empty key handle")
	}
	if _, err := gw.lookupKey(account.KeyHandle); err != nil {
		t.Fatalf("lookupKey: %v", err)
	}
}

func TestSignAndBroadcastSubmitsSignedTransfer(t *testing.T) {
	client := &fakeEVMClient{nonce: 7}
	gw := newTestGateway(client)
	account, err := gw.CreateAccount(context.Background())
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	hash, err := gw.SignAndBroadcast(context.Background(), "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", big.NewInt(1000), account.KeyHandle)
	if err != nil {
		t.Fatalf("SignAndBroadcast: %v", err)
	}
	if hash == "" {
		t.Fatal("expected a transaction hash")
	}
	if len(client.sent) != 1 {
		t.Fatalf("expected one submitted transaction, got %d", len(client.sent))
	}
	tx := client.sent[0]
	if tx.Nonce() != 7 {
		t.Fatalf("nonce = %d, want 7", tx.Nonce())
	}
	if tx.Value().Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("value = %s, want 1000", tx.Value())
	}
	if tx.Gas() != transferGasLimit {
		t.Fatalf("gas = %d, want %d", tx.Gas(), transferGasLimit)
	}
}

func TestSignAndBroadcastErrorMapping(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown key handle", func(t *testing.T) {
		gw := newTestGateway(&fakeEVMClient{})
		_, err := gw.SignAndBroadcast(ctx, "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", big.NewInt(1), "missing")
		if !errors.Is(err, ErrUnknownKeyHandle) {
			t.Fatalf("expected ErrUnknownKeyHandle, got %v", err)
		}
	})

	t.Run("nonce failure is network", func(t *testing.T) {
		client := &fakeEVMClient{nonceErr: fmt.Errorf("connection refused")}
		gw := newTestGateway(client)
		account, _ := gw.CreateAccount(ctx)
		_, err := gw.SignAndBroadcast(ctx, "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", big.NewInt(1), account.KeyHandle)
		if !errors.Is(err, ErrNetwork) {
			t.Fatalf("expected ErrNetwork, got %v", err)
		}
	})

	t.Run("send failure is broadcast", func(t *testing.T) {
		client := &fakeEVMClient{sendErr: fmt.Errorf("txpool full")}
		gw := newTestGateway(client)
		account, _ := gw.CreateAccount(ctx)
		_, err := gw.SignAndBroadcast(ctx, "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", big.NewInt(1), account.KeyHandle)
		if !errors.Is(err, ErrBroadcast) {
			t.Fatalf("expected ErrBroadcast, got %v", err)
		}
	})

	t.Run("malformed recipient is signing", func(t *testing.T) {
		gw := newTestGateway(&fakeEVMClient{})
		account, _ := gw.CreateAccount(ctx)
		_, err := gw.SignAndBroadcast(ctx, "nope", big.NewInt(1), account.KeyHandle)
		if !errors.Is(err, ErrSigning) {
			t.Fatalf("expected ErrSigning, got %v", err)
		}
	})
}

func TestBalanceAtWrapsNetworkErrors(t *testing.T) {
	client := &fakeEVMClient{balanceErr: fmt.Errorf("dial tcp: timeout")}
	gw := newTestGateway(client)
	if _, err := gw.BalanceAt(context.Background(), "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"); !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected ErrNetwork, got %v", err)
	}
}
