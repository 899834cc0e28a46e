package handlers

import (
	"fmt"
	"net/http"

	"github.com/25x8/rewards/internal/rewards/models"
	"github.com/25x8/rewards/internal/rewards/utils"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// GetAnalytics returns user count and total earnings
func (h *Handler) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Svc.Analytics(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, struct {
		UserCount     int             `json:"userCount"`
		TotalEarnings decimal.Decimal `json:"totalEarnings"`
	}{stats.UserCount, stats.TotalEarnings})
}

type userSummary struct {
	UID          string          `json:"uid"`
	Name         string          `json:"name"`
	Email        string          `json:"email"`
	Earnings     decimal.Decimal `json:"earnings"`
	ReferralCode string          `json:"referralCode"`
}

// ListUsers returns basic info for every user
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Svc.ListUsers(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	response := make([]userSummary, 0, len(users))
	for _, u := range users {
		response = append(response, userSummary{
			UID:          u.ID,
			Name:         u.Name,
			Email:        u.Email,
			Earnings:     u.Earnings,
			ReferralCode: u.ReferralCode,
		})
	}

	utils.WriteJSON(w, http.StatusOK, response)
}

// DeleteUser removes a user
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	if err := h.Svc.DeleteUser(r.Context(), uid); err != nil {
		h.fail(w, r, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("User %s deleted successfully.", uid),
	})
}

type pendingView struct {
	UID       string `json:"uid"`
	RequestID string `json:"requestId"`
	models.WithdrawalRequest
}

// GetPendingWithdrawals lists pending requests across all users
func (h *Handler) GetPendingWithdrawals(w http.ResponseWriter, r *http.Request) {
	pending, err := h.Svc.PendingWithdrawals(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	response := make([]pendingView, 0, len(pending))
	for _, p := range pending {
		response = append(response, pendingView{
			UID:               p.UserID,
			RequestID:         p.ID,
			WithdrawalRequest: p.WithdrawalRequest,
		})
	}

	utils.WriteJSON(w, http.StatusOK, response)
}

// UpdateWithdrawal sets the status of one withdrawal request
func (h *Handler) UpdateWithdrawal(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	requestID := chi.URLParam(r, "requestId")

	var req struct {
		Status string `json:"status"`
	}
	if err := decodeBody(r, &req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Bad request")
		return
	}

	if err := h.Svc.UpdateWithdrawalStatus(r.Context(), uid, requestID, req.Status); err != nil {
		h.fail(w, r, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, struct {
		Message   string `json:"message"`
		RequestID string `json:"requestId"`
		NewStatus string `json:"newStatus"`
	}{"Withdrawal request updated.", requestID, req.Status})
}
