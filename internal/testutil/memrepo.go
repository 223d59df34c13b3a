// Package testutil holds in-memory test doubles shared by the unit and
// handler tests.
package testutil

import (
	"context"
	"time"

	"github.com/alxsaunders/futuremove-shop/internal/domain"
)

type OwnedState struct {
	Equipped   bool
	AcquiredAt time.Time
}

// MemRepo is an in-memory stand-in for the Postgres repository. It mirrors
// the store's semantics: rejection order, conditional debit, and the
// exclusivity sweep.
type MemRepo struct {
	Users map[string]int
	Items map[int]domain.Item
	Owned map[string]map[int]*OwnedState
}

func NewMemRepo(items ...domain.Item) *MemRepo {
	m := &MemRepo{
		Users: make(map[string]int),
		Items: make(map[int]domain.Item),
		Owned: make(map[string]map[int]*OwnedState),
	}
	for _, it := range items {
		m.Items[it.ID] = it
	}
	return m
}

func (m *MemRepo) EnsureAccount(ctx context.Context, userID string, minBalance int) error {
	if coins, ok := m.Users[userID]; !ok || coins < minBalance {
		m.Users[userID] = minBalance
	}
	return nil
}

func (m *MemRepo) GetBalance(ctx context.Context, userID string) (int, error) {
	return m.Users[userID], nil
}

func (m *MemRepo) ListActiveItems(ctx context.Context) ([]domain.Item, error) {
	var res []domain.Item
	for _, it := range m.Items {
		if it.IsActive {
			res = append(res, it)
		}
	}
	return res, nil
}

func (m *MemRepo) GetItem(ctx context.Context, itemID int) (*domain.Item, error) {
	if it, ok := m.Items[itemID]; ok {
		return &it, nil
	}
	return nil, nil
}

func (m *MemRepo) ListOwnedItems(ctx context.Context, userID string) ([]domain.OwnedItem, error) {
	var res []domain.OwnedItem
	for itemID, st := range m.Owned[userID] {
		res = append(res, domain.OwnedItem{Item: m.Items[itemID], Equipped: st.Equipped, AcquiredAt: st.AcquiredAt})
	}
	return res, nil
}

func (m *MemRepo) Purchase(ctx context.Context, userID string, itemID int) (int, error) {
	if _, ok := m.Owned[userID][itemID]; ok {
		return 0, domain.ErrAlreadyOwned
	}
	it, ok := m.Items[itemID]
	if !ok || !it.IsActive {
		return 0, domain.ErrItemNotFound
	}
	balance := m.Users[userID]
	if balance < it.Price {
		return 0, domain.ErrInsufficientFunds
	}
	m.Users[userID] = balance - it.Price
	if m.Owned[userID] == nil {
		m.Owned[userID] = make(map[int]*OwnedState)
	}
	m.Owned[userID][itemID] = &OwnedState{AcquiredAt: time.Now()}
	return balance - it.Price, nil
}

func (m *MemRepo) ToggleEquip(ctx context.Context, userID string, itemID int) (bool, error) {
	st, ok := m.Owned[userID][itemID]
	if !ok {
		return false, domain.ErrNotOwned
	}
	it, ok := m.Items[itemID]
	if !ok {
		return false, domain.ErrItemNotFound
	}
	next := !st.Equipped
	if next && it.Exclusive {
		for otherID, other := range m.Owned[userID] {
			if otherID != itemID && m.Items[otherID].Category == it.Category {
				other.Equipped = false
			}
		}
	}
	st.Equipped = next
	return next, nil
}

func (m *MemRepo) AdjustBalance(ctx context.Context, userID string, delta int) (int, error) {
	next := m.Users[userID] + delta
	if next < 0 {
		return 0, domain.ErrInsufficientFunds
	}
	m.Users[userID] = next
	return next, nil
}

// EquippedInCategory lists the user's equipped item ids in one category.
func (m *MemRepo) EquippedInCategory(userID, category string) []int {
	var res []int
	for itemID, st := range m.Owned[userID] {
		if st.Equipped && m.Items[itemID].Category == category {
			res = append(res, itemID)
		}
	}
	return res
}
