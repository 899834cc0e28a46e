package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/25x8/rewards/internal/rewards/models"
)

var (
	// ErrNotFound is returned when no user exists for the given key
	ErrNotFound = errors.New("user not found")
	// ErrDuplicateEmail is returned by Create when the email is already registered
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrDuplicateReferralCode is returned by Create when the referral code is taken
	ErrDuplicateReferralCode = errors.New("referral code already taken")
	// ErrTransactionFailed is returned when Transact keeps losing to concurrent writers
	ErrTransactionFailed = errors.New("transaction failed after retries")
	// ErrNoChange may be returned by a TxFunc to end the transaction without writing
	ErrNoChange = errors.New("no change")
)

// DefaultMaxRetries bounds Transact conflict retries when none is configured
const DefaultMaxRetries = 10

// TxFunc mutates a freshly loaded copy of a user. It may run more than once per
// Transact call and must not perform I/O. A non-nil error aborts the transaction.
type TxFunc func(user *models.User) error

// Repository defines the account store
type Repository interface {
	// Create inserts a new user, enforcing email and referral code uniqueness
	Create(ctx context.Context, user *models.User) error
	Get(ctx context.Context, id string) (*models.User, error)
	// Transact applies fn to the current record and commits only if no other write
	// happened in between, retrying on conflict
	Transact(ctx context.Context, id string, fn TxFunc) (*models.User, error)

	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByReferralCode(ctx context.Context, code string) (*models.User, error)

	List(ctx context.Context) ([]*models.User, error)
	Delete(ctx context.Context, id string) error

	Close() error
}

func encodeUser(user *models.User) ([]byte, error) {
	doc, err := json.Marshal(user)
	if err != nil {
		return nil, fmt.Errorf("encode user %s: %w", user.ID, err)
	}
	return doc, nil
}

func decodeUser(doc []byte) (*models.User, error) {
	var user models.User
	if err := json.Unmarshal(doc, &user); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	return &user, nil
}

// applyTx decodes doc, runs fn on the copy and re-encodes the result.
// changed is false when fn returned ErrNoChange.
func applyTx(doc []byte, fn TxFunc) (user *models.User, newDoc []byte, changed bool, err error) {
	user, err = decodeUser(doc)
	if err != nil {
		return nil, nil, false, err
	}
	id := user.ID
	if err := fn(user); err != nil {
		if errors.Is(err, ErrNoChange) {
			unchanged, decErr := decodeUser(doc)
			if decErr != nil {
				return nil, nil, false, decErr
			}
			return unchanged, nil, false, nil
		}
		return nil, nil, false, err
	}
	user.ID = id
	newDoc, err = encodeUser(user)
	if err != nil {
		return nil, nil, false, err
	}
	return user, newDoc, true, nil
}

// detach keeps a started transaction running after the caller goes away
func detach(ctx context.Context) (context.Context, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return context.WithoutCancel(ctx), nil
}

func maxRetries(n int) int {
	if n <= 0 {
		return DefaultMaxRetries
	}
	return n
}
