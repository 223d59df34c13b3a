package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/alxsaunders/futuremove-shop/internal/domain"
)

type Repository interface {
	EnsureAccount(ctx context.Context, userID string, minBalance int) error
	GetBalance(ctx context.Context, userID string) (int, error)

	ListActiveItems(ctx context.Context) ([]domain.Item, error)
	GetItem(ctx context.Context, itemID int) (*domain.Item, error)
	ListOwnedItems(ctx context.Context, userID string) ([]domain.OwnedItem, error)

	Purchase(ctx context.Context, userID string, itemID int) (int, error)
	ToggleEquip(ctx context.Context, userID string, itemID int) (bool, error)
	AdjustBalance(ctx context.Context, userID string, delta int) (int, error)
}

type Service struct {
	repo Repository
	log  zerolog.Logger
}

func NewService(r Repository, log zerolog.Logger) *Service {
	return &Service{repo: r, log: log}
}

func validUserID(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("user id is required: %w", domain.ErrValidation)
	}
	return nil
}

func validItemID(itemID int) error {
	if itemID <= 0 {
		return fmt.Errorf("item id must be positive: %w", domain.ErrValidation)
	}
	return nil
}

// ensure bootstraps the account before an economy operation. Failures are
// logged and swallowed: a missing balance row is repaired by the next call,
// while failing the whole request here would block all economy access.
func (s *Service) ensure(ctx context.Context, userID string) {
	if err := s.repo.EnsureAccount(ctx, userID, 0); err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("account bootstrap failed")
	}
}

func (s *Service) ListItems(ctx context.Context) ([]domain.Item, error) {
	return s.repo.ListActiveItems(ctx)
}

// GetItem returns the catalog entry or nil when the id is unknown.
func (s *Service) GetItem(ctx context.Context, itemID int) (*domain.Item, error) {
	if err := validItemID(itemID); err != nil {
		return nil, err
	}
	return s.repo.GetItem(ctx, itemID)
}

func (s *Service) ListUserItems(ctx context.Context, userID string) ([]domain.OwnedItem, error) {
	if err := validUserID(userID); err != nil {
		return nil, err
	}
	s.ensure(ctx, userID)
	return s.repo.ListOwnedItems(ctx, userID)
}

func (s *Service) GetCoins(ctx context.Context, userID string) (int, error) {
	if err := validUserID(userID); err != nil {
		return 0, err
	}
	s.ensure(ctx, userID)
	return s.repo.GetBalance(ctx, userID)
}

// AdjustCoins applies a positive or negative delta, e.g. a goal-completion
// reward. A negative delta that would overdraw the balance is rejected.
func (s *Service) AdjustCoins(ctx context.Context, userID string, delta int) (int, error) {
	if err := validUserID(userID); err != nil {
		return 0, err
	}
	s.ensure(ctx, userID)
	return s.repo.AdjustBalance(ctx, userID, delta)
}

// Purchase exchanges FutureCoins for ownership of a catalog item. The debit
// and the ownership grant commit together or not at all.
func (s *Service) Purchase(ctx context.Context, userID string, itemID int) (int, error) {
	if err := validUserID(userID); err != nil {
		return 0, err
	}
	if err := validItemID(itemID); err != nil {
		return 0, err
	}
	s.ensure(ctx, userID)
	return s.repo.Purchase(ctx, userID, itemID)
}

// ToggleEquip flips an owned item's equipped flag, unequipping the rest of
// its category first when the category is exclusive.
func (s *Service) ToggleEquip(ctx context.Context, userID string, itemID int) (bool, error) {
	if err := validUserID(userID); err != nil {
		return false, err
	}
	if err := validItemID(itemID); err != nil {
		return false, err
	}
	s.ensure(ctx, userID)
	return s.repo.ToggleEquip(ctx, userID, itemID)
}
