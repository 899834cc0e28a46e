package service

import (
	"context"
	"strings"

	"github.com/25x8/rewards/internal/rewards/models"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// MinWithdrawalBalance is the balance a user must hold to withdraw at all
var MinWithdrawalBalance = decimal.NewFromInt(20000)

// WithdrawalInput is the payload of a withdrawal request
type WithdrawalInput struct {
	AccountNumber string
	AccountName   string
	BankName      string
	Amount        decimal.Decimal
}

func (in WithdrawalInput) validate() error {
	if strings.TrimSpace(in.AccountNumber) == "" ||
		strings.TrimSpace(in.AccountName) == "" ||
		strings.TrimSpace(in.BankName) == "" {
		return ErrMissingBankDetails
	}
	if !in.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

// RequestWithdrawal deducts the amount and records a pending request in one
// commit. Balance checks run inside the transaction.
func (s *Service) RequestWithdrawal(ctx context.Context, userID string, in WithdrawalInput) (*models.WithdrawalRequest, decimal.Decimal, error) {
	if err := in.validate(); err != nil {
		return nil, decimal.Zero, err
	}

	req := models.WithdrawalRequest{
		ID:            s.newID(),
		AccountNumber: in.AccountNumber,
		AccountName:   in.AccountName,
		BankName:      in.BankName,
		Amount:        in.Amount,
		Status:        models.StatusPending,
		RequestedAt:   s.now(),
	}

	user, err := s.repo.Transact(ctx, userID, func(u *models.User) error {
		if in.Amount.GreaterThan(u.Earnings) {
			return ErrInsufficientEarnings
		}
		if u.Earnings.LessThan(MinWithdrawalBalance) {
			return ErrBelowMinimum
		}

		u.Earnings = u.Earnings.Sub(in.Amount)
		u.WithdrawalRequests = append(u.WithdrawalRequests, req)
		return nil
	})
	if err != nil {
		return nil, decimal.Zero, err
	}

	log.WithFields(log.Fields{
		"user_id":    userID,
		"request_id": req.ID,
		"amount":     req.Amount.String(),
	}).Info("Withdrawal requested")

	return &req, user.Earnings, nil
}

// WithdrawalHistory returns the user's requests in creation order
func (s *Service) WithdrawalHistory(ctx context.Context, userID string) ([]models.WithdrawalRequest, error) {
	user, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.WithdrawalRequests == nil {
		return []models.WithdrawalRequest{}, nil
	}
	return user.WithdrawalRequests, nil
}

// UpdateWithdrawalStatus sets the status of a request. Any known status may
// replace any other; the balance is not touched.
func (s *Service) UpdateWithdrawalStatus(ctx context.Context, userID, requestID, status string) error {
	if status == "" {
		return ErrMissingStatus
	}
	if !models.IsValidStatus(status) {
		return ErrInvalidStatus
	}

	var previous string
	_, err := s.repo.Transact(ctx, userID, func(u *models.User) error {
		i := u.FindWithdrawal(requestID)
		if i < 0 {
			return ErrWithdrawalNotFound
		}
		previous = u.WithdrawalRequests[i].Status
		u.WithdrawalRequests[i].Status = status
		return nil
	})
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"user_id":    userID,
		"request_id": requestID,
		"from":       previous,
		"to":         status,
	}).Info("Withdrawal status updated")
	return nil
}
