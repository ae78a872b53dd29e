package bot

import (
	"context"
	"fmt"

	"log/slog"

	"github.com/splax/tipline/internal/domain"
	"github.com/splax/tipline/internal/repository"
)

// AccessController resolves per-user security levels. First contact lazily
// registers the user at the low tier; elevation happens only through an
// explicit SetLevel call (exposed on the admin API).
type AccessController struct {
	users  repository.UserRepository
	logger *slog.Logger
}

// NewAccessController constructs an AccessController.
func NewAccessController(users repository.UserRepository, logger *slog.Logger) *AccessController {
	return &AccessController{users: users, logger: logger}
}

// Authorize reports whether the user's tier satisfies the required level.
// Lookup failures deny, so a broken store never grants access.
func (a *AccessController) Authorize(ctx context.Context, userID int64, required domain.SecurityLevel) bool {
	user, err := a.users.EnsureUser(ctx, userID, domain.LevelLow)
	if err != nil {
		a.logger.Error("user lookup failed", "user_id", userID, "error", err)
		return false
	}
	return user.SecurityLevel.Meets(required)
}

// SetLevel assigns a security tier to a user, registering the user first if
// needed so elevation works before first chat contact.
func (a *AccessController) SetLevel(ctx context.Context, userID int64, level domain.SecurityLevel) error {
	if !level.Valid() {
		return fmt.Errorf("unknown security level %q", level)
	}
	if _, err := a.users.EnsureUser(ctx, userID, domain.LevelLow); err != nil {
		return err
	}
	if err := a.users.SetSecurityLevel(ctx, userID, level); err != nil {
		return err
	}
	a.logger.Info("security level updated", "user_id", userID, "level", level)
	return nil
}
