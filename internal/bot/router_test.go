package bot

import (
	"context"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/splax/tipline/internal/domain"
	"github.com/splax/tipline/internal/repository"
	"github.com/splax/tipline/internal/repository/memory"
)

type fakeSessions struct {
	active      bool
	startCalls  int
	textCalls   int
	confirmed   int
	cancelled   int
	lastText    string
	replyActive domain.Reply
}

func (f *fakeSessions) StartSend(context.Context, int64) domain.Reply {
	f.startCalls++
	return domain.TextReply("how much?")
}

func (f *fakeSessions) HandleText(_ context.Context, _ int64, text string) domain.Reply {
	f.textCalls++
	f.lastText = text
	return f.replyActive
}

func (f *fakeSessions) Confirm(context.Context, int64) domain.Reply {
	f.confirmed++
	return domain.TextReply("sent")
}

func (f *fakeSessions) Cancel(context.Context, int64) domain.Reply {
	f.cancelled++
	return domain.TextReply("Transfer cancelled.")
}

func (f *fakeSessions) Active(int64) bool { return f.active }

type fakeWallets struct {
	wallet     *domain.Wallet
	createErr  error
	balance    string
	balanceErr error
	history    []domain.TransactionRecord
	panicOn    string
}

func (f *fakeWallets) Create(context.Context, int64) (*domain.Wallet, error) {
	if f.panicOn == "create" {
		panic("boom")
	}
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.wallet, nil
}

func (f *fakeWallets) Wallet(context.Context, int64) (*domain.Wallet, error) {
	if f.wallet == nil {
		return nil, repository.ErrNotFound
	}
	return f.wallet, nil
}

func (f *fakeWallets) Balance(context.Context, int64) (string, error) {
	return f.balance, f.balanceErr
}

func (f *fakeWallets) History(context.Context, int64, int) ([]domain.TransactionRecord, error) {
	if f.panicOn == "history" {
		panic("boom")
	}
	return f.history, nil
}

func newTestRouter(t *testing.T, sessions *fakeSessions, wallets *fakeWallets) (*Router, *AccessController) {
	t.Helper()
	access := NewAccessController(memory.New(), testLogger())
	limiter := newMemoryRateLimiter(100, time.Minute, time.Now)
	t.Cleanup(limiter.Close)
	return NewRouter(testLogger(), access, limiter, sessions, wallets, 5), access
}

func TestDispatchRunsCommandAfterGuards(t *testing.T) {
	sessions := &fakeSessions{}
	router, _ := newTestRouter(t, sessions, &fakeWallets{})

	reply := router.Dispatch(context.Background(), 1, "/start")
	if !strings.Contains(reply.Text, "transfer bot") {
		t.Fatalf("unexpected start reply: %q", reply.Text)
	}
}

func TestSendRequiresMediumTier(t *testing.T) {
	sessions := &fakeSessions{}
	router, access := newTestRouter(t, sessions, &fakeWallets{})
	ctx := context.Background()

	reply := router.Dispatch(ctx, 2, "/send")
	if reply.Text != replyNotPermitted {
		t.Fatalf("fresh user should be denied, got %q", reply.Text)
	}
	if sessions.startCalls != 0 {
		t.Fatal("denied command must not invoke the handler")
	}

	if err := access.SetLevel(ctx, 2, domain.LevelMedium); err != nil {
		t.Fatalf("SetLevel: %v", err)
	}
	reply = router.Dispatch(ctx, 2, "/send")
	if sessions.startCalls != 1 {
		t.Fatalf("expected StartSend after elevation, got %d calls", sessions.startCalls)
	}
	if reply.Text != "how much?" {
		t.Fatalf("unexpected send reply: %q", reply.Text)
	}
}

func TestRateLimitedCommandShortCircuits(t *testing.T) {
	sessions := &fakeSessions{}
	access := NewAccessController(memory.New(), testLogger())
	limiter := newMemoryRateLimiter(1, time.Minute, time.Now)
	t.Cleanup(limiter.Close)
	router := NewRouter(testLogger(), access, limiter, sessions, &fakeWallets{}, 5)
	ctx := context.Background()

	router.Dispatch(ctx, 3, "/help")
	reply := router.Dispatch(ctx, 3, "/help")
	if reply.Text != replyRateLimited {
		t.Fatalf("second call should be rate limited, got %q", reply.Text)
	}
}

func TestFreeTextPrefersOpenSession(t *testing.T) {
	sessions := &fakeSessions{active: true, replyActive: domain.TextReply("step handled")}
	router, _ := newTestRouter(t, sessions, &fakeWallets{})

	reply := router.Dispatch(context.Background(), 4, "0.01")
	if reply.Text != "step handled" {
		t.Fatalf("free text should go to the session, got %q", reply.Text)
	}
	if sessions.lastText != "0.01" {
		t.Fatalf("session received %q, want 0.01", sessions.lastText)
	}
}

func TestFreeTextWithoutSessionGetsCannedReply(t *testing.T) {
	sessions := &fakeSessions{active: false}
	router, _ := newTestRouter(t, sessions, &fakeWallets{})

	reply := router.Dispatch(context.Background(), 5, "hello there")
	if !strings.Contains(reply.Text, "Hello") {
		t.Fatalf("expected the hello canned reply, got %q", reply.Text)
	}
	if sessions.textCalls != 0 {
		t.Fatal("responder path must not touch the session")
	}
}

func TestUnknownCommandFallsThroughToSession(t *testing.T) {
	sessions := &fakeSessions{active: true, replyActive: domain.TextReply("step handled")}
	router, _ := newTestRouter(t, sessions, &fakeWallets{})

	reply := router.Dispatch(context.Background(), 6, "/bogus")
	if reply.Text != "step handled" {
		t.Fatalf("unknown command with open session should hit the session, got %q", reply.Text)
	}
}

func TestConfirmButtonPayloadRoutesAsCommand(t *testing.T) {
	sessions := &fakeSessions{}
	router, access := newTestRouter(t, sessions, &fakeWallets{})
	ctx := context.Background()
	if err := access.SetLevel(ctx, 7, domain.LevelMedium); err != nil {
		t.Fatalf("SetLevel: %v", err)
	}

	router.Dispatch(ctx, 7, "/confirm")
	if sessions.confirmed != 1 {
		t.Fatalf("expected Confirm to be invoked once, got %d", sessions.confirmed)
	}
}

func TestCancelAllowedAtLowTier(t *testing.T) {
	sessions := &fakeSessions{}
	router, _ := newTestRouter(t, sessions, &fakeWallets{})

	reply := router.Dispatch(context.Background(), 8, "/cancel")
	if sessions.cancelled != 1 {
		t.Fatalf("expected Cancel to be invoked once, got %d", sessions.cancelled)
	}
	if reply.Text != "Transfer cancelled." {
		t.Fatalf("unexpected cancel reply: %q", reply.Text)
	}
}

func TestHistoryFormatsRecentTransfers(t *testing.T) {
	wallets := &fakeWallets{history: []domain.TransactionRecord{
		{TxHash: "0xbbb", ToAddress: "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", AmountWei: big.NewInt(2_000_000_000_000_000_000), Status: domain.StatusPending},
		{TxHash: "0xaaa", ToAddress: "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", AmountWei: big.NewInt(1_000_000_000_000_000_000), Status: domain.StatusConfirmed},
	}}
	router, _ := newTestRouter(t, &fakeSessions{}, wallets)

	reply := router.Dispatch(context.Background(), 9, "/history")
	if !strings.Contains(reply.Text, "0xbbb") || !strings.Contains(reply.Text, "0xaaa") {
		t.Fatalf("history reply missing hashes: %q", reply.Text)
	}
	if strings.Index(reply.Text, "0xbbb") > strings.Index(reply.Text, "0xaaa") {
		t.Fatal("history must list the newest record first")
	}
}

func TestPanickingHandlerIsIsolated(t *testing.T) {
	wallets := &fakeWallets{panicOn: "history"}
	router, _ := newTestRouter(t, &fakeSessions{}, wallets)
	ctx := context.Background()

	reply := router.Dispatch(ctx, 10, "/history")
	if reply.Text != replyInternal {
		t.Fatalf("panic should surface the generic reply, got %q", reply.Text)
	}

	// The router keeps serving other users afterwards.
	reply = router.Dispatch(ctx, 11, "/start")
	if !strings.Contains(reply.Text, "transfer bot") {
		t.Fatalf("router wedged after panic: %q", reply.Text)
	}
}

func TestWalletCreateFlow(t *testing.T) {
	wallets := &fakeWallets{}
	router, _ := newTestRouter(t, &fakeSessions{}, wallets)
	ctx := context.Background()

	// no wallet yet: prompt with a create affordance
	reply := router.Dispatch(ctx, 12, "/wallet")
	if len(reply.Choices) == 0 || reply.Choices[0].Data != "/wallet create" {
		t.Fatalf("expected a create-wallet choice, got %+v", reply.Choices)
	}

	wallets.wallet = &domain.Wallet{UserID: 12, Address: "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"}
	reply = router.Dispatch(ctx, 12, "/wallet create")
	if !strings.Contains(reply.Text, wallets.wallet.Address) {
		t.Fatalf("create reply missing address: %q", reply.Text)
	}

	wallets.createErr = repository.ErrWalletExists
	reply = router.Dispatch(ctx, 12, "/wallet create")
	if !strings.Contains(reply.Text, "already have a wallet") {
		t.Fatalf("expected the wallet-exists reply, got %q", reply.Text)
	}
}

func TestParseCommandStripsBotMention(t *testing.T) {
	name, args, ok := parseCommand("/send@tipline_bot 0.5")
	if !ok || name != "send" {
		t.Fatalf("parseCommand = %q/%v", name, ok)
	}
	if len(args) != 1 || args[0] != "0.5" {
		t.Fatalf("args = %v", args)
	}
	if _, _, ok := parseCommand("just text"); ok {
		t.Fatal("plain text must not parse as a command")
	}
}
