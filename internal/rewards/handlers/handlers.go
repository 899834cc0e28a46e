package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/25x8/rewards/internal/rewards/middleware"
	"github.com/25x8/rewards/internal/rewards/models"
	"github.com/25x8/rewards/internal/rewards/repository"
	"github.com/25x8/rewards/internal/rewards/service"
	"github.com/25x8/rewards/internal/rewards/utils"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// Handler handles all HTTP requests
type Handler struct {
	Svc           *service.Service
	JWTSecret     string
	TokenTTL      time.Duration
	AdminTokenTTL time.Duration
}

// NewHandler creates a new handler
func NewHandler(svc *service.Service, jwtSecret string, tokenTTL, adminTokenTTL time.Duration) *Handler {
	return &Handler{
		Svc:           svc,
		JWTSecret:     jwtSecret,
		TokenTTL:      tokenTTL,
		AdminTokenTTL: adminTokenTTL,
	}
}

type errorMapping struct {
	err    error
	status int
	msg    string
}

var errorTable = []errorMapping{
	{service.ErrMissingFields, http.StatusBadRequest, "Name, email, and password are required."},
	{service.ErrMissingCredentials, http.StatusBadRequest, "Email and password are required."},
	{service.ErrMissingBankDetails, http.StatusBadRequest, "Account number, name, bank name, and amount are required."},
	{service.ErrInvalidAmount, http.StatusBadRequest, "Invalid amount."},
	{utils.ErrInvalidAmount, http.StatusBadRequest, "Invalid amount."},
	{service.ErrMissingStatus, http.StatusBadRequest, "New status required."},
	{service.ErrInvalidStatus, http.StatusBadRequest, "Invalid status."},
	{service.ErrInvalidCredentials, http.StatusBadRequest, "Invalid credentials."},
	{service.ErrNotAdmin, http.StatusForbidden, "Not authorized as an admin"},
	{service.ErrUserExists, http.StatusBadRequest, "User already exists."},
	{service.ErrAlreadyClaimed, http.StatusBadRequest, "You have already claimed your reward today."},
	{service.ErrNoSpins, http.StatusBadRequest, "No more spins available for today. Watch an ad to continue"},
	{service.ErrInsufficientEarnings, http.StatusBadRequest, "Insufficient earnings."},
	{service.ErrBelowMinimum, http.StatusBadRequest, "Minimum withdrawal amount is ₦20,000."},
	{repository.ErrNotFound, http.StatusNotFound, "User not found."},
	{service.ErrWithdrawalNotFound, http.StatusNotFound, "Withdrawal request not found."},
	{repository.ErrTransactionFailed, http.StatusInternalServerError, "Transaction failed. Please try again."},
	{service.ErrReferralCodeExhausted, http.StatusInternalServerError, "Could not generate a referral code. Please try again."},
}

// fail writes the response for err
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range errorTable {
		if errors.Is(err, m.err) {
			if m.status >= http.StatusInternalServerError {
				log.WithError(err).WithField("path", r.URL.Path).Error("Request failed")
			}
			utils.WriteError(w, m.status, m.msg)
			return
		}
	}

	log.WithError(err).WithField("path", r.URL.Path).Error("Unexpected error")
	utils.WriteError(w, http.StatusInternalServerError, "Internal server error")
}

func decodeBody(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// currentUser returns the authenticated user id; the auth middleware guarantees it
func currentUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, "Unauthorized")
	}
	return userID, ok
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterUser handles user registration
func (h *Handler) RegisterUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name         string `json:"name"`
		Email        string `json:"email"`
		Password     string `json:"password"`
		ReferralCode string `json:"referralCode"`
	}
	if err := decodeBody(r, &req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Bad request")
		return
	}

	_, err := h.Svc.Register(r.Context(), service.RegisterInput{
		Name:         req.Name,
		Email:        req.Email,
		Password:     req.Password,
		ReferralCode: req.ReferralCode,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]string{"message": "User registered successfully."})
}

// LoginUser handles user login
func (h *Handler) LoginUser(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeBody(r, &req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Bad request")
		return
	}

	user, err := h.Svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.issueToken(w, r, user, h.TokenTTL)
}

// LoginAdmin handles admin login
func (h *Handler) LoginAdmin(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeBody(r, &req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Bad request")
		return
	}

	user, err := h.Svc.AdminLogin(r.Context(), req.Email, req.Password)
	if errors.Is(err, service.ErrInvalidCredentials) {
		utils.WriteError(w, http.StatusUnauthorized, "Invalid credentials.")
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.issueToken(w, r, user, h.AdminTokenTTL)
}

func (h *Handler) issueToken(w http.ResponseWriter, r *http.Request, user *models.User, ttl time.Duration) {
	token, err := middleware.GenerateToken(user, h.JWTSecret, ttl)
	if err != nil {
		h.fail(w, r, fmt.Errorf("sign token: %w", err))
		return
	}

	middleware.SetAuthCookie(w, token, ttl)
	w.Header().Set("Authorization", "Bearer "+token)
	utils.WriteJSON(w, http.StatusOK, map[string]string{"token": token})
}

// profileView hides the password hash
type profileView struct {
	*models.User
	PasswordHash string `json:"passwordHash,omitempty"`
}

// GetProfile returns the current user's record
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	user, err := h.Svc.Profile(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{"profile": profileView{User: user}})
}

// ClaimStreak pays the daily login reward
func (h *Handler) ClaimStreak(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	reward, streak, err := h.Svc.ClaimStreak(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, struct {
		Message      string          `json:"message"`
		RewardAmount decimal.Decimal `json:"rewardAmount"`
		NewStreak    int             `json:"newStreak"`
	}{"Daily reward claimed!", reward, streak})
}

// Spin spins the wheel
func (h *Handler) Spin(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	reward, earnings, err := h.Svc.Spin(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, struct {
		Message     string          `json:"message"`
		Reward      decimal.Decimal `json:"reward"`
		NewEarnings decimal.Decimal `json:"newEarnings"`
	}{fmt.Sprintf("Congratulations! You earned ₦%s", reward.String()), reward, earnings})
}

// GrantAdSpin grants one extra spin after an ad view
func (h *Handler) GrantAdSpin(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	adSpins, err := h.Svc.GrantAdSpin(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, struct {
		Message string `json:"message"`
		AdSpins int    `json:"adSpins"`
	}{"Extra spin granted!", adSpins})
}

// RequestWithdrawal handles a withdrawal request
func (h *Handler) RequestWithdrawal(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req struct {
		AccountNumber string          `json:"accountNumber"`
		AccountName   string          `json:"accountName"`
		BankName      string          `json:"bankName"`
		Amount        json.RawMessage `json:"amount"`
	}
	if err := decodeBody(r, &req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Bad request")
		return
	}

	amount, err := utils.ParseAmount(req.Amount)
	if req.AccountNumber == "" || req.AccountName == "" || req.BankName == "" || (err == nil && amount.IsZero()) {
		h.fail(w, r, service.ErrMissingBankDetails)
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}

	withdrawal, earnings, err := h.Svc.RequestWithdrawal(r.Context(), userID, service.WithdrawalInput{
		AccountNumber: req.AccountNumber,
		AccountName:   req.AccountName,
		BankName:      req.BankName,
		Amount:        amount,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, struct {
		Message           string                    `json:"message"`
		WithdrawalRequest *models.WithdrawalRequest `json:"withdrawalRequest"`
		NewEarnings       decimal.Decimal           `json:"newEarnings"`
	}{"Withdrawal request submitted.", withdrawal, earnings})
}

// GetWithdrawals returns the user's withdrawal history
func (h *Handler) GetWithdrawals(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	withdrawals, err := h.Svc.WithdrawalHistory(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, withdrawals)
}
