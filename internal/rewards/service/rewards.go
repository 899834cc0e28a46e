package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/25x8/rewards/internal/rewards/config"
	"github.com/25x8/rewards/internal/rewards/models"
	"github.com/25x8/rewards/internal/rewards/policy"
	"github.com/25x8/rewards/internal/rewards/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 10

// SignupEarnings is credited to every new account
var SignupEarnings = decimal.NewFromInt(500)

// Service implements the rewards operations on top of the account store.
// Every operation re-reads the user and commits through Transact.
type Service struct {
	repo                 repository.Repository
	loc                  *time.Location
	referralCodeAttempts int

	now             func() time.Time
	spinReward      func() decimal.Decimal
	newID           func() string
	newReferralCode func() string
}

// Option customises a Service
type Option func(*Service)

// WithClock replaces the time source
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithSpinReward replaces the spin reward generator
func WithSpinReward(fn func() decimal.Decimal) Option {
	return func(s *Service) { s.spinReward = fn }
}

// WithReferralCodes replaces the referral code generator
func WithReferralCodes(fn func() string) Option {
	return func(s *Service) { s.newReferralCode = fn }
}

// NewService creates a new rewards service
func NewService(repo repository.Repository, cfg *config.Config, opts ...Option) (*Service, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	s := &Service{
		repo:                 repo,
		loc:                  loc,
		referralCodeAttempts: cfg.ReferralCodeAttempts,
		now:                  time.Now,
		spinReward:           func() decimal.Decimal { return policy.SpinReward(nil) },
		newID:                func() string { return uuid.NewString() },
		newReferralCode:      generateReferralCode,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.referralCodeAttempts <= 0 {
		s.referralCodeAttempts = 10
	}
	return s, nil
}

// RegisterInput is the payload of a registration
type RegisterInput struct {
	Name         string
	Email        string
	Password     string
	ReferralCode string
}

// Register creates a new account and pays the referrer, if any
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Email = strings.TrimSpace(in.Email)
	if in.Name == "" || in.Email == "" || in.Password == "" {
		return nil, ErrMissingFields
	}

	existing, err := s.repo.FindByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	var referrer *models.User
	if in.ReferralCode != "" {
		referrer, err = s.repo.FindByReferralCode(ctx, in.ReferralCode)
		if err != nil {
			log.WithError(err).WithField("referral_code", in.ReferralCode).Warn("Failed to look up referral code")
			referrer = nil
		}
	}

	now := s.now()
	user := &models.User{
		ID:           s.newID(),
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: string(hash),
		Role:         models.RoleUser,
		FreeSpins:    policy.DailyFreeSpins,
		AdSpins:      0,
		LastSpinDate: policy.Today(now, s.loc),
		Earnings:     SignupEarnings,
		CreatedAt:    now,
	}
	if referrer != nil {
		user.Referrer = referrer.ID
	}

	if err := s.create(ctx, user); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"user_id":  user.ID,
		"referrer": user.Referrer,
	}).Info("User registered")

	if referrer != nil {
		if _, err := s.AwardReferralBonus(ctx, referrer.ID, user.ID); err != nil {
			log.WithError(err).WithField("referrer", referrer.ID).Error("Referral bonus not awarded")
		} else if _, err := s.AwardSpinsForReferralTask(ctx, referrer.ID); err != nil {
			log.WithError(err).WithField("referrer", referrer.ID).Error("Referral spins not awarded")
		}
	}

	return user, nil
}

// create inserts user under a fresh unique referral code
func (s *Service) create(ctx context.Context, user *models.User) error {
	for attempt := 0; attempt < s.referralCodeAttempts; attempt++ {
		code := s.newReferralCode()
		taken, err := s.repo.FindByReferralCode(ctx, code)
		if err != nil {
			return err
		}
		if taken != nil {
			continue
		}

		user.ReferralCode = code
		err = s.repo.Create(ctx, user)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, repository.ErrDuplicateReferralCode):
			continue
		case errors.Is(err, repository.ErrDuplicateEmail):
			return ErrUserExists
		default:
			return err
		}
	}

	log.WithField("attempts", s.referralCodeAttempts).Error("Referral code space exhausted")
	return ErrReferralCodeExhausted
}

// Login checks credentials and returns the account
func (s *Service) Login(ctx context.Context, email, password string) (*models.User, error) {
	if email == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	user, err := s.repo.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// AdminLogin is Login restricted to admin accounts
func (s *Service) AdminLogin(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if !user.IsAdmin() {
		return nil, ErrNotAdmin
	}
	return user, nil
}

// EnsureAdmin creates the admin account if it is missing and keeps its password current
func (s *Service) EnsureAdmin(ctx context.Context, name, email, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	existing, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if existing != nil {
		_, err := s.repo.Transact(ctx, existing.ID, func(u *models.User) error {
			u.Role = models.RoleAdmin
			u.PasswordHash = string(hash)
			return nil
		})
		return err
	}

	admin := &models.User{
		ID:           s.newID(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         models.RoleAdmin,
		CreatedAt:    s.now(),
	}
	if err := s.create(ctx, admin); err != nil {
		return err
	}

	log.WithField("email", email).Info("Admin account created")
	return nil
}

// Profile returns the current user record
func (s *Service) Profile(ctx context.Context, userID string) (*models.User, error) {
	return s.repo.Get(ctx, userID)
}

// ClaimStreak pays the daily login reward and advances the streak
func (s *Service) ClaimStreak(ctx context.Context, userID string) (decimal.Decimal, int, error) {
	now := s.now()

	var (
		reward    decimal.Decimal
		newStreak int
	)
	_, err := s.repo.Transact(ctx, userID, func(u *models.User) error {
		streak, outcome := policy.StreakClaim(u.LastLoginDate, u.DailyStreak, now, s.loc)
		if outcome == policy.ClaimAlreadyClaimed {
			return ErrAlreadyClaimed
		}

		amount := policy.StreakReward(streak)
		claimedAt := now
		u.DailyStreak = streak
		u.TotalStreakEarnings = u.TotalStreakEarnings.Add(amount)
		u.Earnings = u.Earnings.Add(amount)
		u.LastLoginDate = &claimedAt

		reward, newStreak = amount, streak
		return nil
	})
	if err != nil {
		return decimal.Zero, 0, err
	}

	return reward, newStreak, nil
}

// Spin consumes one spin and credits a random reward
func (s *Service) Spin(ctx context.Context, userID string) (decimal.Decimal, decimal.Decimal, error) {
	today := policy.Today(s.now(), s.loc)
	reward := s.spinReward()

	user, err := s.repo.Transact(ctx, userID, func(u *models.User) error {
		state, outcome := policy.ResolveSpin(policy.SpinStateOf(u), today)
		if outcome == policy.SpinNoSpins {
			return ErrNoSpins
		}
		state.Apply(u)
		u.Earnings = u.Earnings.Add(reward)
		return nil
	})
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	return reward, user.Earnings, nil
}

// GrantAdSpin adds one ad spin. Verifying the ad view is up to the caller.
func (s *Service) GrantAdSpin(ctx context.Context, userID string) (int, error) {
	user, err := s.repo.Transact(ctx, userID, func(u *models.User) error {
		u.AdSpins++
		return nil
	})
	if err != nil {
		return 0, err
	}
	return user.AdSpins, nil
}
