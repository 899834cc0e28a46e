package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/25x8/rewards/internal/rewards/config"
	"github.com/25x8/rewards/internal/rewards/models"
	"github.com/25x8/rewards/internal/rewards/repository"
	"github.com/25x8/rewards/internal/rewards/service"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "handler-secret"

type testAPI struct {
	router http.Handler
	repo   *repository.MemoryRepository
	svc    *service.Service
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	repo := repository.NewMemoryRepository(100)
	cfg := &config.Config{Timezone: "UTC", ReferralCodeAttempts: 5}
	svc, err := service.NewService(repo, cfg,
		service.WithSpinReward(func() decimal.Decimal { return decimal.NewFromInt(250) }),
	)
	require.NoError(t, err)

	r := chi.NewRouter()
	NewHandler(svc, testSecret, time.Hour, time.Hour).Mount(r)
	return &testAPI{router: r, repo: repo, svc: svc}
}

func (a *testAPI) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	decode(t, rec, &body)
	return body.Error
}

func (a *testAPI) signup(t *testing.T, email string) (string, *models.User) {
	t.Helper()

	rec := a.do(t, http.MethodPost, "/api/register", "", map[string]string{
		"name": "Ada", "email": email, "password": "password",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodPost, "/api/login", "", map[string]string{
		"email": email, "password": "password",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Token string `json:"token"`
	}
	decode(t, rec, &body)
	require.NotEmpty(t, body.Token)

	user, err := a.repo.FindByEmail(context.Background(), email)
	require.NoError(t, err)
	require.NotNil(t, user)
	return body.Token, user
}

func (a *testAPI) setEarnings(t *testing.T, id string, v int64) {
	t.Helper()
	_, err := a.repo.Transact(context.Background(), id, func(u *models.User) error {
		u.Earnings = decimal.NewFromInt(v)
		return nil
	})
	require.NoError(t, err)
}

func TestRegisterAndLogin(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/register", "", map[string]string{"email": "ada@example.com"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Name, email, and password are required.", errorOf(t, rec))

	token, _ := api.signup(t, "ada@example.com")

	rec = api.do(t, http.MethodPost, "/api/register", "", map[string]string{
		"name": "Ada", "email": "ada@example.com", "password": "x",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "User already exists.", errorOf(t, rec))

	rec = api.do(t, http.MethodPost, "/api/login", "", map[string]string{
		"email": "ada@example.com", "password": "wrong",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid credentials.", errorOf(t, rec))

	rec = api.do(t, http.MethodGet, "/api/profile", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "passwordHash")

	var body struct {
		Profile struct {
			Email     string          `json:"email"`
			FreeSpins int             `json:"freeSpins"`
			Earnings  decimal.Decimal `json:"earnings"`
		} `json:"profile"`
	}
	decode(t, rec, &body)
	assert.Equal(t, "ada@example.com", body.Profile.Email)
	assert.Equal(t, 2, body.Profile.FreeSpins)
	assert.True(t, body.Profile.Earnings.Equal(decimal.NewFromInt(500)))
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/spin", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/spin", "forged", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Invalid token", errorOf(t, rec))
}

func TestProfileOfDeletedUser(t *testing.T) {
	api := newTestAPI(t)
	token, user := api.signup(t, "ada@example.com")
	require.NoError(t, api.svc.DeleteUser(context.Background(), user.ID))

	rec := api.do(t, http.MethodGet, "/api/profile", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "User not found.", errorOf(t, rec))
}

func TestClaimStreakEndpoint(t *testing.T) {
	api := newTestAPI(t)
	token, _ := api.signup(t, "ada@example.com")

	rec := api.do(t, http.MethodPost, "/api/streak/claim", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Message      string          `json:"message"`
		RewardAmount decimal.Decimal `json:"rewardAmount"`
		NewStreak    int             `json:"newStreak"`
	}
	decode(t, rec, &body)
	assert.Equal(t, "Daily reward claimed!", body.Message)
	assert.True(t, body.RewardAmount.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, 1, body.NewStreak)

	rec = api.do(t, http.MethodPost, "/api/streak/claim", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "You have already claimed your reward today.", errorOf(t, rec))
}

func TestSpinEndpoints(t *testing.T) {
	api := newTestAPI(t)
	token, _ := api.signup(t, "ada@example.com")

	type spinBody struct {
		Message     string          `json:"message"`
		Reward      decimal.Decimal `json:"reward"`
		NewEarnings decimal.Decimal `json:"newEarnings"`
	}

	for i, want := range []int64{750, 1000} {
		rec := api.do(t, http.MethodPost, "/api/spin", token, nil)
		require.Equal(t, http.StatusOK, rec.Code, "spin %d", i)

		var body spinBody
		decode(t, rec, &body)
		assert.Equal(t, "Congratulations! You earned ₦250", body.Message)
		assert.True(t, body.NewEarnings.Equal(decimal.NewFromInt(want)))
	}

	rec := api.do(t, http.MethodPost, "/api/spin", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No more spins available for today. Watch an ad to continue", errorOf(t, rec))

	rec = api.do(t, http.MethodPost, "/api/grantAdSpin", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var granted struct {
		Message string `json:"message"`
		AdSpins int    `json:"adSpins"`
	}
	decode(t, rec, &granted)
	assert.Equal(t, "Extra spin granted!", granted.Message)
	assert.Equal(t, 1, granted.AdSpins)

	rec = api.do(t, http.MethodPost, "/api/spin", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWithdrawalEndpoints(t *testing.T) {
	api := newTestAPI(t)
	token, user := api.signup(t, "ada@example.com")
	api.setEarnings(t, user.ID, 25000)

	details := func(amount interface{}) map[string]interface{} {
		return map[string]interface{}{
			"accountNumber": "0123456789",
			"accountName":   "Ada Lovelace",
			"bankName":      "GTB",
			"amount":        amount,
		}
	}

	tests := []struct {
		name    string
		body    map[string]interface{}
		wantErr string
	}{
		{"missing amount", details(nil), "Account number, name, bank name, and amount are required."},
		{"missing bank", map[string]interface{}{"accountNumber": "1", "accountName": "Ada", "amount": 100}, "Account number, name, bank name, and amount are required."},
		{"zero amount", details(0), "Account number, name, bank name, and amount are required."},
		{"zero string", details("0"), "Invalid amount."},
		{"not a number", details("abc"), "Invalid amount."},
		{"negative", details(-50), "Invalid amount."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(t, http.MethodPost, "/api/withdrawal", token, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.wantErr, errorOf(t, rec))
		})
	}

	rec := api.do(t, http.MethodPost, "/api/withdrawal", token, details("20000"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Message           string                   `json:"message"`
		WithdrawalRequest models.WithdrawalRequest `json:"withdrawalRequest"`
		NewEarnings       decimal.Decimal          `json:"newEarnings"`
	}
	decode(t, rec, &body)
	assert.Equal(t, "Withdrawal request submitted.", body.Message)
	assert.Equal(t, models.StatusPending, body.WithdrawalRequest.Status)
	assert.True(t, body.NewEarnings.Equal(decimal.NewFromInt(5000)))

	rec = api.do(t, http.MethodPost, "/api/withdrawal", token, details(10000))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Insufficient earnings.", errorOf(t, rec))

	rec = api.do(t, http.MethodGet, "/api/withdrawal/history", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var history []models.WithdrawalRequest
	decode(t, rec, &history)
	require.Len(t, history, 1)
	assert.Equal(t, body.WithdrawalRequest.ID, history[0].ID)
}

func TestWithdrawalBelowMinimum(t *testing.T) {
	api := newTestAPI(t)
	token, user := api.signup(t, "ada@example.com")
	api.setEarnings(t, user.ID, 15000)

	rec := api.do(t, http.MethodPost, "/api/withdrawal", token, map[string]interface{}{
		"accountNumber": "1", "accountName": "Ada", "bankName": "GTB", "amount": 1000,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Minimum withdrawal amount is ₦20,000.", errorOf(t, rec))
}

func TestEmptyHistory(t *testing.T) {
	api := newTestAPI(t)
	token, _ := api.signup(t, "ada@example.com")

	rec := api.do(t, http.MethodGet, "/api/withdrawal/history", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestAdminEndpoints(t *testing.T) {
	api := newTestAPI(t)
	ctx := context.Background()
	require.NoError(t, api.svc.EnsureAdmin(ctx, "Admin", "admin@example.com", "secret"))

	userToken, user := api.signup(t, "ada@example.com")
	api.setEarnings(t, user.ID, 30000)

	rec := api.do(t, http.MethodPost, "/api/admin/login", "", map[string]string{
		"email": "admin@example.com", "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/admin/login", "", map[string]string{
		"email": "ada@example.com", "password": "password",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/admin/analytics", userToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Admin access required", errorOf(t, rec))

	rec = api.do(t, http.MethodPost, "/api/admin/login", "", map[string]string{
		"email": "admin@example.com", "password": "secret",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var login struct {
		Token string `json:"token"`
	}
	decode(t, rec, &login)
	adminToken := login.Token

	rec = api.do(t, http.MethodGet, "/api/admin/analytics", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats struct {
		UserCount     int             `json:"userCount"`
		TotalEarnings decimal.Decimal `json:"totalEarnings"`
	}
	decode(t, rec, &stats)
	assert.Equal(t, 1, stats.UserCount)
	assert.True(t, stats.TotalEarnings.Equal(decimal.NewFromInt(30000)))

	rec = api.do(t, http.MethodGet, "/api/admin/users", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var users []userSummary
	decode(t, rec, &users)
	require.Len(t, users, 1)
	assert.Equal(t, user.ID, users[0].UID)
	assert.Equal(t, user.ReferralCode, users[0].ReferralCode)

	rec = api.do(t, http.MethodPost, "/api/withdrawal", userToken, map[string]interface{}{
		"accountNumber": "1", "accountName": "Ada", "bankName": "GTB", "amount": 20000,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/admin/withdrawals/pending", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var pending []struct {
		UID       string `json:"uid"`
		RequestID string `json:"requestId"`
		Status    string `json:"status"`
	}
	decode(t, rec, &pending)
	require.Len(t, pending, 1)
	assert.Equal(t, user.ID, pending[0].UID)
	assert.Equal(t, models.StatusPending, pending[0].Status)

	path := "/api/admin/withdrawals/" + user.ID + "/" + pending[0].RequestID

	rec = api.do(t, http.MethodPut, path, adminToken, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "New status required.", errorOf(t, rec))

	rec = api.do(t, http.MethodPut, "/api/admin/withdrawals/"+user.ID+"/missing", adminToken, map[string]string{"status": "approved"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Withdrawal request not found.", errorOf(t, rec))

	rec = api.do(t, http.MethodPut, path, adminToken, map[string]string{"status": "approved"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Withdrawal request updated.","requestId":"`+pending[0].RequestID+`","newStatus":"approved"}`, rec.Body.String())

	rec = api.do(t, http.MethodGet, "/api/admin/withdrawals/pending", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = api.do(t, http.MethodDelete, "/api/admin/users/"+user.ID, adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(t, http.MethodDelete, "/api/admin/users/"+user.ID, adminToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
