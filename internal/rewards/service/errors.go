package service

import "errors"

// Validation errors
var (
	ErrMissingFields      = errors.New("name, email, and password are required")
	ErrMissingCredentials = errors.New("email and password are required")
	ErrMissingBankDetails = errors.New("account number, name, bank name, and amount are required")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrMissingStatus      = errors.New("new status required")
	ErrInvalidStatus      = errors.New("unknown withdrawal status")
)

// Auth errors
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotAdmin           = errors.New("admin access required")
)

// Business rule violations
var (
	ErrUserExists           = errors.New("user already exists")
	ErrAlreadyClaimed       = errors.New("you have already claimed your reward today")
	ErrNoSpins              = errors.New("no more spins available for today, watch an ad to continue")
	ErrInsufficientEarnings = errors.New("insufficient earnings")
	ErrBelowMinimum         = errors.New("minimum withdrawal amount is ₦20,000")
)

// Not found
var (
	ErrWithdrawalNotFound = errors.New("withdrawal request not found")
)

// Infrastructure
var (
	ErrReferralCodeExhausted = errors.New("could not generate a unique referral code")
)
