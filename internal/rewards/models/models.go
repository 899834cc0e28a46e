package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Roles
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Withdrawal request statuses
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusSent     = "sent"
	StatusRejected = "rejected"
)

// DateLayout is the day-granularity layout used for LastSpinDate
const DateLayout = "2006-01-02"

// User is the per-user rewards record. It is stored as a single document
// and mutated only through the account store's transactions.
type User struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	PasswordHash string `json:"passwordHash"`
	Role         string `json:"role,omitempty"`

	ReferralCode string `json:"referralCode"`
	Referrer     string `json:"referrer,omitempty"`

	FreeSpins    int    `json:"freeSpins"`
	AdSpins      int    `json:"adSpins"`
	LastSpinDate string `json:"lastSpinDate"`

	LastLoginDate       *time.Time      `json:"lastLoginDate,omitempty"`
	DailyStreak         int             `json:"dailyStreak"`
	TotalStreakEarnings decimal.Decimal `json:"totalStreakEarnings"`

	Earnings decimal.Decimal `json:"earnings"`

	Referrals            map[string]bool `json:"referrals,omitempty"`
	ReferralEarnings     decimal.Decimal `json:"referralEarnings"`
	HasReferredMinUsers  bool            `json:"hasReferredMinUsers"`
	ReferralSpinsGranted bool            `json:"referralSpinsGranted"`

	WithdrawalRequests []WithdrawalRequest `json:"withdrawalRequests,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// IsAdmin reports whether the account carries the admin role
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// ReferralCount returns the number of referred users already paid for
func (u *User) ReferralCount() int {
	return len(u.Referrals)
}

// HasReferral reports whether a bonus was already paid for referredID
func (u *User) HasReferral(referredID string) bool {
	return u.Referrals[referredID]
}

// FindWithdrawal returns the index of the request with the given id, or -1
func (u *User) FindWithdrawal(requestID string) int {
	for i := range u.WithdrawalRequests {
		if u.WithdrawalRequests[i].ID == requestID {
			return i
		}
	}
	return -1
}

// WithdrawalRequest represents a request to cash out earnings to a bank account
type WithdrawalRequest struct {
	ID            string          `json:"id"`
	AccountNumber string          `json:"accountNumber"`
	AccountName   string          `json:"accountName"`
	BankName      string          `json:"bankName"`
	Amount        decimal.Decimal `json:"amount"`
	Status        string          `json:"status"`
	RequestedAt   time.Time       `json:"requestedAt"`
}

// IsValidStatus reports whether status is one of the known withdrawal statuses
func IsValidStatus(status string) bool {
	switch status {
	case StatusPending, StatusApproved, StatusSent, StatusRejected:
		return true
	}
	return false
}
