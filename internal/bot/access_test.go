package bot

import (
	"context"
	"io"
	"testing"

	"log/slog"

	"github.com/splax/tipline/internal/domain"
	"github.com/splax/tipline/internal/repository/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFreshUserRegistersAtLow(t *testing.T) {
	repo := memory.New()
	ac := NewAccessController(repo, testLogger())
	ctx := context.Background()

	if !ac.Authorize(ctx, 100, domain.LevelLow) {
		t.Fatal("fresh user must pass a low requirement")
	}
	user, err := repo.GetUserByID(ctx, 100)
	if err != nil {
		t.Fatalf("expected user to be registered: %v", err)
	}
	if user.SecurityLevel != domain.LevelLow {
		t.Fatalf("fresh user level = %s, want low", user.SecurityLevel)
	}
}

func TestFreshUserDeniedHigherTiers(t *testing.T) {
	ac := NewAccessController(memory.New(), testLogger())
	ctx := context.Background()

	if ac.Authorize(ctx, 101, domain.LevelMedium) {
		t.Fatal("fresh user must not pass a medium requirement")
	}
	if ac.Authorize(ctx, 101, domain.LevelHigh) {
		t.Fatal("fresh user must not pass a high requirement")
	}
}

func TestElevationChangesOutcome(t *testing.T) {
	ac := NewAccessController(memory.New(), testLogger())
	ctx := context.Background()

	if err := ac.SetLevel(ctx, 102, domain.LevelMedium); err != nil {
		t.Fatalf("SetLevel: %v", err)
	}
	if !ac.Authorize(ctx, 102, domain.LevelMedium) {
		t.Fatal("elevated user must pass a medium requirement")
	}
	if ac.Authorize(ctx, 102, domain.LevelHigh) {
		t.Fatal("medium user must not pass a high requirement")
	}

	if err := ac.SetLevel(ctx, 102, domain.LevelHigh); err != nil {
		t.Fatalf("SetLevel: %v", err)
	}
	if !ac.Authorize(ctx, 102, domain.LevelHigh) {
		t.Fatal("high user must pass a high requirement")
	}
}

func TestSetLevelRejectsUnknownTier(t *testing.T) {
	ac := NewAccessController(memory.New(), testLogger())
	if err := ac.SetLevel(context.Background(), 103, domain.SecurityLevel("root")); err == nil {
		t.Fatal("expected an error for an unknown tier")
	}
}
