package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/25x8/rewards/internal/rewards/models"
	"github.com/redis/go-redis/v9"
)

const (
	redisUserPrefix     = "rewards:user:"
	redisEmailPrefix    = "rewards:email:"
	redisReferralPrefix = "rewards:ref:"
	redisUsersIndex     = "rewards:users"
)

// RedisRepository implements Repository on Redis. Transactions use WATCH on the
// user key, so a commit fails when another client wrote the key after the read.
type RedisRepository struct {
	rdb        *redis.Client
	maxRetries int
}

// NewRedisRepository creates a repository on top of an existing client
func NewRedisRepository(rdb *redis.Client, retries int) *RedisRepository {
	return &RedisRepository{
		rdb:        rdb,
		maxRetries: maxRetries(retries),
	}
}

// Ping checks the connection
func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func userKey(id string) string {
	return redisUserPrefix + id
}

func (r *RedisRepository) Create(ctx context.Context, user *models.User) error {
	doc, err := encodeUser(user)
	if err != nil {
		return err
	}

	emailIdx := redisEmailPrefix + emailKey(user.Email)
	refIdx := redisReferralPrefix + user.ReferralCode

	ok, err := r.rdb.SetNX(ctx, emailIdx, user.ID, 0).Result()
	if err != nil {
		return fmt.Errorf("reserve email: %w", err)
	}
	if !ok {
		return ErrDuplicateEmail
	}

	ok, err = r.rdb.SetNX(ctx, refIdx, user.ID, 0).Result()
	if err != nil || !ok {
		r.rdb.Del(ctx, emailIdx)
		if err != nil {
			return fmt.Errorf("reserve referral code: %w", err)
		}
		return ErrDuplicateReferralCode
	}

	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, userKey(user.ID), doc, 0)
		pipe.ZAdd(ctx, redisUsersIndex, redis.Z{
			Score:  float64(user.CreatedAt.UnixNano()),
			Member: user.ID,
		})
		return nil
	})
	if err != nil {
		r.rdb.Del(ctx, emailIdx, refIdx)
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *RedisRepository) Get(ctx context.Context, id string) (*models.User, error) {
	doc, err := r.rdb.Get(ctx, userKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return decodeUser(doc)
}

func (r *RedisRepository) Transact(ctx context.Context, id string, fn TxFunc) (*models.User, error) {
	ctx, err := detach(ctx)
	if err != nil {
		return nil, err
	}

	key := userKey(id)
	for attempt := 0; attempt < r.maxRetries; attempt++ {
		var result *models.User
		err := r.rdb.Watch(ctx, func(tx *redis.Tx) error {
			doc, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					return ErrNotFound
				}
				return err
			}

			user, newDoc, changed, err := applyTx(doc, fn)
			if err != nil {
				return err
			}
			if changed {
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Set(ctx, key, newDoc, 0)
					return nil
				})
				if err != nil {
					return err
				}
			}
			result = user
			return nil
		}, key)

		if err == nil {
			return result, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, err
	}

	return nil, ErrTransactionFailed
}

func (r *RedisRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findByIndex(ctx, redisEmailPrefix+emailKey(email))
}

func (r *RedisRepository) FindByReferralCode(ctx context.Context, code string) (*models.User, error) {
	return r.findByIndex(ctx, redisReferralPrefix+code)
}

func (r *RedisRepository) findByIndex(ctx context.Context, idx string) (*models.User, error) {
	id, err := r.rdb.Get(ctx, idx).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	user, err := r.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return user, err
}

func (r *RedisRepository) List(ctx context.Context) ([]*models.User, error) {
	ids, err := r.rdb.ZRange(ctx, redisUsersIndex, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = userKey(id)
	}
	docs, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	users := make([]*models.User, 0, len(docs))
	for _, d := range docs {
		s, ok := d.(string)
		if !ok {
			continue
		}
		user, err := decodeUser([]byte(s))
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

func (r *RedisRepository) Delete(ctx context.Context, id string) error {
	user, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx,
			userKey(id),
			redisEmailPrefix+emailKey(user.Email),
			redisReferralPrefix+user.ReferralCode,
		)
		pipe.ZRem(ctx, redisUsersIndex, id)
		return nil
	})
	return err
}

func (r *RedisRepository) Close() error {
	return r.rdb.Close()
}
