package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseURL = "http://localhost:8080"

type itemResponse struct {
	ItemID   int    `json:"itemId"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Price    int    `json:"price"`
}

type ownedItemResponse struct {
	itemResponse
	Equipped bool `json:"equipped"`
}

type coinsResponse struct {
	FutureCoins int `json:"futureCoins"`
}

type mutationResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	FutureCoins *int   `json:"futureCoins"`
	Equipped    *bool  `json:"equipped"`
}

func mintToken(t *testing.T, userID string) string {
	t.Helper()
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "mysecret"
	}
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func requireServer(t *testing.T) {
	t.Helper()
	conn, err := net.DialTimeout("tcp", "localhost:8080", time.Second)
	if err != nil {
		t.Skip("shop server is not running on :8080")
	}
	conn.Close()
}

func doJSON(t *testing.T, method, path, token string, body interface{}, out interface{}) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, baseURL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		_ = json.NewDecoder(resp.Body).Decode(out)
	}
	return resp.StatusCode
}

func TestFullScenario(t *testing.T) {
	requireServer(t)

	userID := fmt.Sprintf("e2e_%d", rand.Int31())
	token := mintToken(t, userID)

	// fresh account starts at zero
	var coins coinsResponse
	status := doJSON(t, http.MethodGet, "/items/coins/"+userID, token, nil, &coins)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 0, coins.FutureCoins)

	// grant a reward so the purchases below can succeed
	var grant mutationResponse
	status = doJSON(t, http.MethodPut, "/items/coins/"+userID, token, map[string]int{"amount": 1000}, &grant)
	require.Equal(t, http.StatusOK, status)
	require.True(t, grant.Success)

	var items []itemResponse
	status = doJSON(t, http.MethodGet, "/items", token, nil, &items)
	require.Equal(t, http.StatusOK, status)
	require.NotEmpty(t, items)

	var themes, badges []itemResponse
	for _, it := range items {
		switch it.Category {
		case "theme":
			themes = append(themes, it)
		case "badge":
			badges = append(badges, it)
		}
	}
	require.GreaterOrEqual(t, len(themes), 2, "catalog must seed at least two themes")
	require.GreaterOrEqual(t, len(badges), 2, "catalog must seed at least two badges")

	// buy two themes and two badges
	spent := 0
	for _, it := range []itemResponse{themes[0], themes[1], badges[0], badges[1]} {
		var res mutationResponse
		status = doJSON(t, http.MethodPost, fmt.Sprintf("/items/purchase/%s/%d", userID, it.ItemID), token, nil, &res)
		require.Equal(t, http.StatusOK, status)
		require.True(t, res.Success, "purchase of %s failed: %s", it.Name, res.Message)
		spent += it.Price
	}

	status = doJSON(t, http.MethodGet, "/items/coins/"+userID, token, nil, &coins)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1000-spent, coins.FutureCoins, "debits must add up")

	// re-purchase is rejected
	var rebuy mutationResponse
	status = doJSON(t, http.MethodPost, fmt.Sprintf("/items/purchase/%s/%d", userID, themes[0].ItemID), token, nil, &rebuy)
	assert.Equal(t, http.StatusConflict, status)
	assert.False(t, rebuy.Success)

	// equip theme A, then theme B; only B may stay equipped
	var toggle mutationResponse
	status = doJSON(t, http.MethodPut, fmt.Sprintf("/items/toggle/%s/%d", userID, themes[0].ItemID), token, nil, &toggle)
	require.Equal(t, http.StatusOK, status)
	status = doJSON(t, http.MethodPut, fmt.Sprintf("/items/toggle/%s/%d", userID, themes[1].ItemID), token, nil, &toggle)
	require.Equal(t, http.StatusOK, status)

	// both badges can be equipped at once
	status = doJSON(t, http.MethodPut, fmt.Sprintf("/items/toggle/%s/%d", userID, badges[0].ItemID), token, nil, &toggle)
	require.Equal(t, http.StatusOK, status)
	status = doJSON(t, http.MethodPut, fmt.Sprintf("/items/toggle/%s/%d", userID, badges[1].ItemID), token, nil, &toggle)
	require.Equal(t, http.StatusOK, status)

	var owned []ownedItemResponse
	status = doJSON(t, http.MethodGet, "/items/user/"+userID, token, nil, &owned)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, owned, 4)

	equippedThemes := 0
	equippedBadges := 0
	for _, oi := range owned {
		if !oi.Equipped {
			continue
		}
		switch oi.Category {
		case "theme":
			equippedThemes++
			assert.Equal(t, themes[1].ItemID, oi.ItemID, "only the last equipped theme may remain")
		case "badge":
			equippedBadges++
		}
	}
	assert.Equal(t, 1, equippedThemes)
	assert.Equal(t, 2, equippedBadges)

	// a caller cannot act on another account
	otherToken := mintToken(t, "someone_else")
	status = doJSON(t, http.MethodGet, "/items/coins/"+userID, otherToken, nil, nil)
	assert.Equal(t, http.StatusForbidden, status)
}

func itemsByCategory(t *testing.T, token, category string) []itemResponse {
	t.Helper()
	var items []itemResponse
	status := doJSON(t, http.MethodGet, "/items", token, nil, &items)
	require.Equal(t, http.StatusOK, status)
	var res []itemResponse
	for _, it := range items {
		if it.Category == category {
			res = append(res, it)
		}
	}
	return res
}

// Two purchases whose combined price exceeds the balance are raced against
// each other: the user-row lock must let exactly one of them spend.
func TestConcurrentPurchasesSingleWinner(t *testing.T) {
	requireServer(t)

	userID := fmt.Sprintf("e2e_race_%d", rand.Int31())
	token := mintToken(t, userID)

	badges := itemsByCategory(t, token, "badge")
	require.GreaterOrEqual(t, len(badges), 2)
	a, b := badges[0], badges[1]
	require.Greater(t, a.Price+b.Price, 100, "combined price must exceed the granted balance")
	require.LessOrEqual(t, a.Price, 100)
	require.LessOrEqual(t, b.Price, 100)

	var grant mutationResponse
	status := doJSON(t, http.MethodPut, "/items/coins/"+userID, token, map[string]int{"amount": 100}, &grant)
	require.Equal(t, http.StatusOK, status)
	require.True(t, grant.Success)

	type attempt struct {
		item itemResponse
		res  mutationResponse
	}
	results := make(chan attempt, 2)
	var wg sync.WaitGroup
	for _, it := range []itemResponse{a, b} {
		wg.Add(1)
		go func(it itemResponse) {
			defer wg.Done()
			var res mutationResponse
			doJSON(t, http.MethodPost, fmt.Sprintf("/items/purchase/%s/%d", userID, it.ItemID), token, nil, &res)
			results <- attempt{item: it, res: res}
		}(it)
	}
	wg.Wait()
	close(results)

	var winners []attempt
	for at := range results {
		if at.res.Success {
			winners = append(winners, at)
		} else {
			assert.Contains(t, at.res.Message, "not enough FutureCoins")
		}
	}
	require.Len(t, winners, 1, "exactly one concurrent purchase may succeed")

	var coins coinsResponse
	status = doJSON(t, http.MethodGet, "/items/coins/"+userID, token, nil, &coins)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 100-winners[0].item.Price, coins.FutureCoins, "only the winner's price may be debited")
	assert.GreaterOrEqual(t, coins.FutureCoins, 0)

	var owned []ownedItemResponse
	status = doJSON(t, http.MethodGet, "/items/user/"+userID, token, nil, &owned)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, owned, 1)
}

// Concurrent equips of two items in one exclusive category must serialize
// so that at most one of them stays equipped.
func TestConcurrentEquipExclusivity(t *testing.T) {
	requireServer(t)

	userID := fmt.Sprintf("e2e_equip_race_%d", rand.Int31())
	token := mintToken(t, userID)

	themes := itemsByCategory(t, token, "theme")
	require.GreaterOrEqual(t, len(themes), 2)

	var grant mutationResponse
	status := doJSON(t, http.MethodPut, "/items/coins/"+userID, token, map[string]int{"amount": 1000}, &grant)
	require.Equal(t, http.StatusOK, status)
	require.True(t, grant.Success)

	for _, it := range themes[:2] {
		var res mutationResponse
		status = doJSON(t, http.MethodPost, fmt.Sprintf("/items/purchase/%s/%d", userID, it.ItemID), token, nil, &res)
		require.Equal(t, http.StatusOK, status)
		require.True(t, res.Success)
	}

	var wg sync.WaitGroup
	for _, it := range themes[:2] {
		wg.Add(1)
		go func(itemID int) {
			defer wg.Done()
			var res mutationResponse
			doJSON(t, http.MethodPut, fmt.Sprintf("/items/toggle/%s/%d", userID, itemID), token, nil, &res)
		}(it.ItemID)
	}
	wg.Wait()

	var owned []ownedItemResponse
	status = doJSON(t, http.MethodGet, "/items/user/"+userID, token, nil, &owned)
	require.Equal(t, http.StatusOK, status)

	equippedThemes := 0
	for _, oi := range owned {
		if oi.Category == "theme" && oi.Equipped {
			equippedThemes++
		}
	}
	assert.Equal(t, 1, equippedThemes, "the later equip must sweep the earlier one")
}
