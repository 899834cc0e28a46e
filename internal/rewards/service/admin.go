package service

import (
	"context"

	"github.com/25x8/rewards/internal/rewards/models"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// Analytics summarises all user accounts
type Analytics struct {
	UserCount     int
	TotalEarnings decimal.Decimal
}

// PendingWithdrawal is a pending request together with its owner
type PendingWithdrawal struct {
	UserID string
	models.WithdrawalRequest
}

// customers returns all non-admin accounts
func (s *Service) customers(ctx context.Context) ([]*models.User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*models.User, 0, len(users))
	for _, u := range users {
		if !u.IsAdmin() {
			out = append(out, u)
		}
	}
	return out, nil
}

// Analytics returns the number of users and their combined earnings
func (s *Service) Analytics(ctx context.Context) (*Analytics, error) {
	users, err := s.customers(ctx)
	if err != nil {
		return nil, err
	}

	total := decimal.Zero
	for _, u := range users {
		total = total.Add(u.Earnings)
	}
	return &Analytics{UserCount: len(users), TotalEarnings: total}, nil
}

// ListUsers returns all non-admin accounts
func (s *Service) ListUsers(ctx context.Context) ([]*models.User, error) {
	return s.customers(ctx)
}

// DeleteUser removes an account permanently
func (s *Service) DeleteUser(ctx context.Context, userID string) error {
	if err := s.repo.Delete(ctx, userID); err != nil {
		return err
	}
	log.WithField("user_id", userID).Warn("User deleted")
	return nil
}

// PendingWithdrawals lists every pending request across users
func (s *Service) PendingWithdrawals(ctx context.Context) ([]PendingWithdrawal, error) {
	users, err := s.customers(ctx)
	if err != nil {
		return nil, err
	}

	pending := []PendingWithdrawal{}
	for _, u := range users {
		for _, req := range u.WithdrawalRequests {
			if req.Status == models.StatusPending {
				pending = append(pending, PendingWithdrawal{UserID: u.ID, WithdrawalRequest: req})
			}
		}
	}
	return pending, nil
}
