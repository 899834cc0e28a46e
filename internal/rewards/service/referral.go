package service

import (
	"context"

	"github.com/25x8/rewards/internal/rewards/models"
	"github.com/25x8/rewards/internal/rewards/repository"
	"github.com/dchest/uniuri"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

const (
	referralCodeLength = 10
	// ReferralMilestone is the exact referral count that unlocks bonus spins
	ReferralMilestone = 3
	// ReferralMilestoneSpins are the free spins granted at the milestone
	ReferralMilestoneSpins = 5
	// MinReferredUsers sets HasReferredMinUsers
	MinReferredUsers = 10
)

var (
	// ReferralBonus is paid to the referrer once per referred user
	ReferralBonus = decimal.NewFromInt(500)

	referralAlphabet = []byte("ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789")
)

func generateReferralCode() string {
	return uniuri.NewLenChars(referralCodeLength, referralAlphabet)
}

// grantMilestoneSpins adds the milestone spins once, at exactly
// ReferralMilestone referrals
func grantMilestoneSpins(u *models.User) bool {
	if u.ReferralCount() != ReferralMilestone || u.ReferralSpinsGranted {
		return false
	}
	u.FreeSpins += ReferralMilestoneSpins
	u.ReferralSpinsGranted = true
	return true
}

// AwardReferralBonus credits the referrer for referredID and, in the same
// commit, grants the milestone spins when this referral is the third one.
// Calling it again for the same pair changes nothing. It reports whether a
// bonus was paid.
func (s *Service) AwardReferralBonus(ctx context.Context, referrerID, referredID string) (bool, error) {
	awarded := false
	user, err := s.repo.Transact(ctx, referrerID, func(u *models.User) error {
		awarded = false
		if u.HasReferral(referredID) {
			return repository.ErrNoChange
		}

		if u.Referrals == nil {
			u.Referrals = make(map[string]bool)
		}
		u.Referrals[referredID] = true
		u.Earnings = u.Earnings.Add(ReferralBonus)
		u.ReferralEarnings = u.ReferralEarnings.Add(ReferralBonus)
		u.HasReferredMinUsers = u.ReferralCount() >= MinReferredUsers
		grantMilestoneSpins(u)

		awarded = true
		return nil
	})
	if err != nil {
		return false, err
	}

	if awarded {
		log.WithFields(log.Fields{
			"referrer":  referrerID,
			"referred":  referredID,
			"referrals": user.ReferralCount(),
		}).Info("Referral bonus awarded")
	}
	return awarded, nil
}

// AwardSpinsForReferralTask grants the one-time milestone spins when the
// referrer has exactly ReferralMilestone referrals
func (s *Service) AwardSpinsForReferralTask(ctx context.Context, referrerID string) (bool, error) {
	granted := false
	_, err := s.repo.Transact(ctx, referrerID, func(u *models.User) error {
		granted = grantMilestoneSpins(u)
		if !granted {
			return repository.ErrNoChange
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	if granted {
		log.WithField("referrer", referrerID).Info("Referral milestone spins awarded")
	}
	return granted, nil
}
