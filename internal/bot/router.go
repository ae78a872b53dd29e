package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"log/slog"

	"github.com/splax/tipline/internal/chain"
	"github.com/splax/tipline/internal/domain"
	"github.com/splax/tipline/internal/repository"
)

// TransferSessions is the multi-step transfer conversation consumed by the
// router. Free text for a user with an active draft is handed to HandleText
// before any generic text handling.
type TransferSessions interface {
	StartSend(ctx context.Context, userID int64) domain.Reply
	HandleText(ctx context.Context, userID int64, text string) domain.Reply
	Confirm(ctx context.Context, userID int64) domain.Reply
	Cancel(ctx context.Context, userID int64) domain.Reply
	Active(userID int64) bool
}

// WalletOps covers the stateless wallet and ledger commands.
type WalletOps interface {
	Create(ctx context.Context, userID int64) (*domain.Wallet, error)
	Wallet(ctx context.Context, userID int64) (*domain.Wallet, error)
	Balance(ctx context.Context, userID int64) (string, error)
	History(ctx context.Context, userID int64, limit int) ([]domain.TransactionRecord, error)
}

type commandHandler func(ctx context.Context, userID int64, args []string) domain.Reply

type command struct {
	level   domain.SecurityLevel
	handler commandHandler
}

// Router maps inbound chat messages to handlers. Each registered command
// passes the access gate and then the rate limiter before its handler runs;
// either guard short-circuits with its own denial reply.
type Router struct {
	logger       *slog.Logger
	access       *AccessController
	limiter      RateLimiter
	transfers    TransferSessions
	wallets      WalletOps
	historyLimit int
	commands     map[string]command
	metrics      routerMetrics
}

const (
	replyNotPermitted = "You're not permitted to use that command."
	replyRateLimited  = "Rate limited. Please slow down and try again in a minute."
	replyInternal     = "Something went wrong handling that. Please try again."
)

// NewRouter assembles the command table.
func NewRouter(logger *slog.Logger, access *AccessController, limiter RateLimiter, transfers TransferSessions, wallets WalletOps, historyLimit int) *Router {
	if historyLimit <= 0 {
		historyLimit = 5
	}
	r := &Router{
		logger:       logger,
		access:       access,
		limiter:      limiter,
		transfers:    transfers,
		wallets:      wallets,
		historyLimit: historyLimit,
		metrics:      initMetrics(),
	}
	r.commands = map[string]command{
		"start":   {level: domain.LevelLow, handler: r.handleStart},
		"help":    {level: domain.LevelLow, handler: r.handleHelp},
		"menu":    {level: domain.LevelLow, handler: r.handleMenu},
		"wallet":  {level: domain.LevelLow, handler: r.handleWallet},
		"balance": {level: domain.LevelLow, handler: r.handleBalance},
		"history": {level: domain.LevelLow, handler: r.handleHistory},
		"send":    {level: domain.LevelMedium, handler: r.handleSend},
		"confirm": {level: domain.LevelMedium, handler: r.handleConfirm},
		"cancel":  {level: domain.LevelLow, handler: r.handleCancel},
	}
	return r
}

// Dispatch routes one inbound message and returns the reply. A panicking
// handler is contained here so one user's dispatch can never take down the
// router for everyone else.
func (r *Router) Dispatch(ctx context.Context, userID int64, text string) (reply domain.Reply) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("dispatch panicked", "user_id", userID, "panic", rec)
			r.metrics.recordDispatch("panic", "error")
			reply = domain.TextReply(replyInternal)
		}
	}()

	name, args, isCommand := parseCommand(text)
	if isCommand {
		if cmd, ok := r.commands[name]; ok {
			return r.dispatchCommand(ctx, userID, name, cmd, args)
		}
	}
	// Session steps pre-empt generic text handling.
	if r.transfers.Active(userID) {
		r.metrics.recordDispatch("session_step", "ok")
		return r.transfers.HandleText(ctx, userID, text)
	}
	r.metrics.recordDispatch("free_text", "ok")
	return respondFreeText(text)
}

func (r *Router) dispatchCommand(ctx context.Context, userID int64, name string, cmd command, args []string) domain.Reply {
	if !r.access.Authorize(ctx, userID, cmd.level) {
		r.logger.Warn("command denied", "user_id", userID, "command", name)
		r.metrics.recordGuardDenial("access")
		return domain.TextReply(replyNotPermitted)
	}
	if !r.limiter.Allow(ctx, userID) {
		r.logger.Warn("command rate limited", "user_id", userID, "command", name)
		r.metrics.recordGuardDenial("rate_limit")
		return domain.TextReply(replyRateLimited)
	}
	r.metrics.recordDispatch(name, "ok")
	return cmd.handler(ctx, userID, args)
}

// parseCommand splits "/send 0.1" into ("send", ["0.1"], true). A trailing
// @botname suffix on the command is ignored so group mentions still route.
func parseCommand(text string) (string, []string, bool) {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", nil, false
	}
	name := strings.TrimPrefix(fields[0], "/")
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	return strings.ToLower(name), fields[1:], true
}

func (r *Router) handleStart(context.Context, int64, []string) domain.Reply {
	return domain.TextReply("Hello! I'm your transfer bot. How can I assist you today?")
}

func (r *Router) handleHelp(context.Context, int64, []string) domain.Reply {
	return domain.TextReply("Here are the commands you can use:\n" +
		"/start - Start the bot\n" +
		"/help - Show this help\n" +
		"/menu - Show the action menu\n" +
		"/wallet - Show your wallet, /wallet create to make one\n" +
		"/balance - Show your wallet balance\n" +
		"/history - Show your recent transfers\n" +
		"/send - Send ETH, step by step\n" +
		"/cancel - Cancel the current transfer")
}

func (r *Router) handleMenu(context.Context, int64, []string) domain.Reply {
	return domain.Reply{
		Text: "What would you like to do?",
		Choices: []domain.Choice{
			{Label: "Wallet", Data: "/wallet"},
			{Label: "Balance", Data: "/balance"},
			{Label: "Send", Data: "/send"},
			{Label: "History", Data: "/history"},
		},
	}
}

func (r *Router) handleWallet(ctx context.Context, userID int64, args []string) domain.Reply {
	if len(args) > 0 && strings.EqualFold(args[0], "create") {
		wallet, err := r.wallets.Create(ctx, userID)
		switch {
		case errors.Is(err, repository.ErrWalletExists):
			return domain.TextReply("You already have a wallet. Use /wallet to see its address.")
		case err != nil:
			r.logger.Error("wallet creation failed", "user_id", userID, "error", err)
			return domain.TextReply("Couldn't create a wallet right now. Please try again later.")
		}
		return domain.TextReply(fmt.Sprintf("Wallet created. Your address: %s", wallet.Address))
	}

	wallet, err := r.wallets.Wallet(ctx, userID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return walletCreatePrompt()
	case err != nil:
		r.logger.Error("wallet lookup failed", "user_id", userID, "error", err)
		return domain.TextReply(replyInternal)
	}
	return domain.TextReply(fmt.Sprintf("Your wallet address: %s", wallet.Address))
}

func (r *Router) handleBalance(ctx context.Context, userID int64, _ []string) domain.Reply {
	balance, err := r.wallets.Balance(ctx, userID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return walletCreatePrompt()
	case errors.Is(err, chain.ErrNetwork):
		return domain.TextReply("The chain is not responding right now. Please try again later.")
	case err != nil:
		r.logger.Error("balance query failed", "user_id", userID, "error", err)
		return domain.TextReply(replyInternal)
	}
	return domain.TextReply(fmt.Sprintf("Your balance: %s ETH", balance))
}

func (r *Router) handleHistory(ctx context.Context, userID int64, _ []string) domain.Reply {
	records, err := r.wallets.History(ctx, userID, r.historyLimit)
	if err != nil {
		r.logger.Error("history query failed", "user_id", userID, "error", err)
		return domain.TextReply(replyInternal)
	}
	if len(records) == 0 {
		return domain.TextReply("No transfers yet. Start one with /send.")
	}
	var b strings.Builder
	b.WriteString("Your recent transfers:\n")
	for _, rec := range records {
		fmt.Fprintf(&b, "%s ETH to %s [%s] %s\n",
			chain.FormatEther(rec.AmountWei), rec.ToAddress, rec.Status, rec.TxHash)
	}
	return domain.TextReply(strings.TrimRight(b.String(), "\n"))
}

func (r *Router) handleSend(ctx context.Context, userID int64, _ []string) domain.Reply {
	return r.transfers.StartSend(ctx, userID)
}

func (r *Router) handleConfirm(ctx context.Context, userID int64, _ []string) domain.Reply {
	return r.transfers.Confirm(ctx, userID)
}

func (r *Router) handleCancel(ctx context.Context, userID int64, _ []string) domain.Reply {
	return r.transfers.Cancel(ctx, userID)
}

func walletCreatePrompt() domain.Reply {
	return domain.Reply{
		Text: "You don't have a wallet yet. Create one to get started.",
		Choices: []domain.Choice{
			{Label: "Create wallet", Data: "/wallet create"},
		},
	}
}
