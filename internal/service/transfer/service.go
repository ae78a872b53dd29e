package transfer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/splax/tipline/internal/chain"
	"github.com/splax/tipline/internal/domain"
	"github.com/splax/tipline/internal/repository"
)

const (
	defaultChainTimeout = 15 * time.Second
	defaultSessionTTL   = 10 * time.Minute
	sweepInterval       = time.Minute
)

// Service drives the per-user transfer conversation: amount, then address,
// then an explicit confirmation before anything reaches the chain. Each user
// has at most one draft; terminal states are represented by its absence.
type Service struct {
	gateway      chain.Gateway
	wallets      repository.WalletRepository
	ledger       repository.LedgerRepository
	logger       *slog.Logger
	chainTimeout time.Duration
	sessionTTL   time.Duration
	clock        func() time.Time

	mu       sync.Mutex
	sessions map[int64]*userSession
}

// userSession serializes draft transitions for one user. Chain I/O happens
// after the draft is detached, outside this lock, so a cancel is never stuck
// behind a slow broadcast.
type userSession struct {
	mu    sync.Mutex
	draft *domain.TransferDraft
}

// New constructs a Service.
func New(gateway chain.Gateway, wallets repository.WalletRepository, ledger repository.LedgerRepository, logger *slog.Logger, chainTimeout, sessionTTL time.Duration) *Service {
	if chainTimeout <= 0 {
		chainTimeout = defaultChainTimeout
	}
	if sessionTTL <= 0 {
		sessionTTL = defaultSessionTTL
	}
	return &Service{
		gateway:      gateway,
		wallets:      wallets,
		ledger:       ledger,
		logger:       logger,
		chainTimeout: chainTimeout,
		sessionTTL:   sessionTTL,
		clock:        time.Now,
		sessions:     make(map[int64]*userSession),
	}
}

// Run sweeps expired drafts until the context is cancelled.
func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-ctx.Done():
			return
		}
	}
}

// StartSend opens a transfer draft for the user. Without a wallet no draft is
// created; an existing draft is discarded and replaced.
func (s *Service) StartSend(ctx context.Context, userID int64) domain.Reply {
	if _, err := s.wallets.GetWalletByUser(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Reply{
				Text: "You need a wallet before you can send. Create one first.",
				Choices: []domain.Choice{
					{Label: "Create wallet", Data: "/wallet create"},
				},
			}
		}
		s.logger.Error("wallet lookup failed", "user_id", userID, "error", err)
		return domain.TextReply("Couldn't start the transfer. Please try again.")
	}

	sess := s.session(userID)
	sess.mu.Lock()
	replaced := s.liveDraft(sess) != nil
	sess.draft = &domain.TransferDraft{
		UserID:    userID,
		State:     domain.DraftAwaitingAmount,
		UpdatedAt: s.clock(),
	}
	sess.mu.Unlock()

	text := "How much ETH would you like to send?"
	if replaced {
		text = "Your previous transfer draft was discarded. " + text
	}
	return domain.TextReply(text)
}

// HandleText advances the draft with one step of free-text input.
func (s *Service) HandleText(ctx context.Context, userID int64, text string) domain.Reply {
	sess := s.session(userID)
	sess.mu.Lock()
	draft := s.liveDraft(sess)
	if draft == nil {
		sess.mu.Unlock()
		return domain.TextReply("No transfer in progress. Use /send to start one.")
	}

	switch draft.State {
	case domain.DraftAwaitingAmount:
		amount, err := chain.ParseEther(text)
		if err != nil {
			sess.mu.Unlock()
			return domain.TextReply("Invalid amount. Please enter a positive number, for example 0.01.")
		}
		draft.AmountWei = amount
		draft.State = domain.DraftAwaitingAddress
		draft.UpdatedAt = s.clock()
		sess.mu.Unlock()
		return domain.TextReply("Got it. Now send the recipient address (0x...).")

	case domain.DraftAwaitingAddress:
		address := normalizeAddressInput(text)
		if !s.gateway.ValidAddress(address) {
			sess.mu.Unlock()
			return domain.TextReply("That doesn't look like a valid address. Please send a 0x address with a correct checksum.")
		}
		draft.ToAddress = address
		draft.State = domain.DraftAwaitingConfirmation
		draft.UpdatedAt = s.clock()
		summary := s.summary(draft)
		sess.mu.Unlock()
		return summary

	case domain.DraftAwaitingConfirmation:
		summary := s.summary(draft)
		sess.mu.Unlock()
		switch normalizeKeyword(text) {
		case "confirm":
			return s.Confirm(ctx, userID)
		case "cancel":
			return s.Cancel(ctx, userID)
		}
		return summary
	}

	// Unknown state means a corrupted draft; drop it rather than wedge the user.
	sess.draft = nil
	sess.mu.Unlock()
	s.logger.Error("draft in unknown state discarded", "user_id", userID, "state", draft.State)
	return domain.TextReply("Your transfer draft was in a bad state and has been discarded. Use /send to start over.")
}

// Confirm broadcasts the drafted transfer. The draft is detached under the
// user lock first, so exactly one of two racing confirms wins and the other
// sees no pending transfer.
func (s *Service) Confirm(ctx context.Context, userID int64) domain.Reply {
	sess := s.session(userID)
	sess.mu.Lock()
	draft := s.liveDraft(sess)
	if draft == nil {
		sess.mu.Unlock()
		return domain.TextReply("You have no pending transfer to confirm. Use /send to start one.")
	}
	if draft.State != domain.DraftAwaitingConfirmation {
		summary := promptForState(draft.State)
		sess.mu.Unlock()
		return summary
	}
	sess.draft = nil
	sess.mu.Unlock()

	wallet, err := s.wallets.GetWalletByUser(ctx, userID)
	if err != nil {
		s.logger.Error("wallet lookup failed at confirm", "user_id", userID, "error", err)
		return domain.TextReply("Your wallet could not be loaded, so the transfer was not sent.")
	}

	callCtx, cancel := context.WithTimeout(ctx, s.chainTimeout)
	defer cancel()
	txHash, err := s.gateway.SignAndBroadcast(callCtx, draft.ToAddress, draft.AmountWei, wallet.KeyHandle)
	if err != nil {
		s.logger.Error("broadcast failed", "user_id", userID, "error", err)
		return failureReply(err)
	}

	record := &domain.TransactionRecord{
		ID:          uuid.NewString(),
		UserID:      userID,
		TxHash:      txHash,
		FromAddress: wallet.Address,
		ToAddress:   draft.ToAddress,
		AmountWei:   draft.AmountWei,
		Status:      domain.StatusPending,
		CreatedAt:   s.clock().UTC(),
	}
	if err := s.ledger.AppendRecord(ctx, record); err != nil {
		// The transfer is already on the wire; losing the ledger entry is
		// logged, not surfaced as a failure.
		s.logger.Error("ledger append failed", "user_id", userID, "tx_hash", txHash, "error", err)
	}
	s.logger.Info("transfer broadcast", "user_id", userID, "tx_hash", txHash,
		"to", draft.ToAddress, "amount_wei", draft.AmountWei.String())
	return domain.TextReply(fmt.Sprintf("Transaction sent! Hash: %s\nIt is now pending confirmation.", txHash))
}

// Cancel destroys any draft and replies the same way whether or not one
// existed.
func (s *Service) Cancel(_ context.Context, userID int64) domain.Reply {
	sess := s.session(userID)
	sess.mu.Lock()
	sess.draft = nil
	sess.mu.Unlock()
	return domain.TextReply("Transfer cancelled.")
}

// Active reports whether the user has a live draft.
func (s *Service) Active(userID int64) bool {
	sess := s.session(userID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return s.liveDraft(sess) != nil
}

// State reports the user's current draft state, DraftIdle when none exists.
func (s *Service) State(userID int64) domain.DraftState {
	sess := s.session(userID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	draft := s.liveDraft(sess)
	if draft == nil {
		return domain.DraftIdle
	}
	return draft.State
}

func (s *Service) session(userID int64) *userSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok {
		sess = &userSession{}
		s.sessions[userID] = sess
	}
	return sess
}

// liveDraft returns the draft, lazily discarding it when expired. Callers
// hold sess.mu.
func (s *Service) liveDraft(sess *userSession) *domain.TransferDraft {
	if sess.draft == nil {
		return nil
	}
	if s.clock().Sub(sess.draft.UpdatedAt) > s.sessionTTL {
		sess.draft = nil
		return nil
	}
	return sess.draft
}

func (s *Service) sweep() {
	s.mu.Lock()
	sessions := make([]*userSession, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.mu.Lock()
		s.liveDraft(sess)
		sess.mu.Unlock()
	}
}

func (s *Service) summary(draft *domain.TransferDraft) domain.Reply {
	return domain.Reply{
		Text: fmt.Sprintf("Send %s ETH to %s?", chain.FormatEther(draft.AmountWei), draft.ToAddress),
		Choices: []domain.Choice{
			{Label: "Confirm", Data: "/confirm"},
			{Label: "Cancel", Data: "/cancel"},
		},
	}
}

func promptForState(state domain.DraftState) domain.Reply {
	switch state {
	case domain.DraftAwaitingAmount:
		return domain.TextReply("Nothing to confirm yet. How much ETH would you like to send?")
	case domain.DraftAwaitingAddress:
		return domain.TextReply("Nothing to confirm yet. Send the recipient address first.")
	}
	return domain.TextReply("Nothing to confirm yet.")
}

func normalizeAddressInput(text string) string {
	return strings.TrimSpace(text)
}

func normalizeKeyword(text string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(text), "/")))
}

// failureReply maps gateway errors to user-facing text without echoing raw
// internals.
func failureReply(err error) domain.Reply {
	switch {
	case errors.Is(err, chain.ErrNetwork):
		return domain.TextReply("The chain is not responding, so your transfer was not sent. Start over with /send when you're ready.")
	case errors.Is(err, chain.ErrSigning):
		return domain.TextReply("Signing the transaction failed, so your transfer was not sent. Start over with /send.")
	case errors.Is(err, chain.ErrBroadcast):
		return domain.TextReply("Broadcasting the transaction failed, so your transfer was not sent. Start over with /send.")
	}
	return domain.TextReply("The transfer failed and was not sent. Start over with /send.")
}
