package repository

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/25x8/rewards/internal/rewards/models"
)

type memoryRecord struct {
	doc     []byte
	version int64
}

// MemoryRepository keeps user documents in process memory. Writes go through the
// same versioned compare-and-swap as the database backends.
type MemoryRepository struct {
	mu           sync.RWMutex
	records      map[string]memoryRecord
	byEmail      map[string]string
	byReferral   map[string]string
	maxRetries   int
	beforeCommit func(id string)
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository(retries int) *MemoryRepository {
	return &MemoryRepository{
		records:    make(map[string]memoryRecord),
		byEmail:    make(map[string]string),
		byReferral: make(map[string]string),
		maxRetries: maxRetries(retries),
	}
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *MemoryRepository) Create(ctx context.Context, user *models.User) error {
	doc, err := encodeUser(user)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byEmail[emailKey(user.Email)]; ok {
		return ErrDuplicateEmail
	}
	if _, ok := r.byReferral[user.ReferralCode]; ok {
		return ErrDuplicateReferralCode
	}

	r.records[user.ID] = memoryRecord{doc: doc, version: 1}
	r.byEmail[emailKey(user.Email)] = user.ID
	r.byReferral[user.ReferralCode] = user.ID
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, id string) (*models.User, error) {
	rec, err := r.load(id)
	if err != nil {
		return nil, err
	}
	return decodeUser(rec.doc)
}

func (r *MemoryRepository) load(id string) (memoryRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	if !ok {
		return memoryRecord{}, ErrNotFound
	}
	return rec, nil
}

// swap commits doc only if the stored version is still version
func (r *MemoryRepository) swap(id string, version int64, doc []byte) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return false, ErrNotFound
	}
	if rec.version != version {
		return false, nil
	}
	r.records[id] = memoryRecord{doc: doc, version: version + 1}
	return true, nil
}

func (r *MemoryRepository) Transact(ctx context.Context, id string, fn TxFunc) (*models.User, error) {
	if _, err := detach(ctx); err != nil {
		return nil, err
	}

	for attempt := 0; attempt < r.maxRetries; attempt++ {
		rec, err := r.load(id)
		if err != nil {
			return nil, err
		}

		user, newDoc, changed, err := applyTx(rec.doc, fn)
		if err != nil {
			return nil, err
		}
		if !changed {
			return user, nil
		}

		if r.beforeCommit != nil {
			r.beforeCommit(id)
		}

		ok, err := r.swap(id, rec.version, newDoc)
		if err != nil {
			return nil, err
		}
		if ok {
			return user, nil
		}
	}

	return nil, ErrTransactionFailed
}

func (r *MemoryRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	id, ok := r.byEmail[emailKey(email)]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return r.findExisting(id)
}

func (r *MemoryRepository) FindByReferralCode(ctx context.Context, code string) (*models.User, error) {
	r.mu.RLock()
	id, ok := r.byReferral[code]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return r.findExisting(id)
}

func (r *MemoryRepository) findExisting(id string) (*models.User, error) {
	user, err := r.Get(context.Background(), id)
	if err == ErrNotFound {
		return nil, nil
	}
	return user, err
}

func (r *MemoryRepository) List(ctx context.Context) ([]*models.User, error) {
	r.mu.RLock()
	docs := make([][]byte, 0, len(r.records))
	for _, rec := range r.records {
		docs = append(docs, rec.doc)
	}
	r.mu.RUnlock()

	users := make([]*models.User, 0, len(docs))
	for _, doc := range docs {
		user, err := decodeUser(doc)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return ErrNotFound
	}
	user, err := decodeUser(rec.doc)
	if err != nil {
		return err
	}
	delete(r.byEmail, emailKey(user.Email))
	delete(r.byReferral, user.ReferralCode)
	delete(r.records, id)
	return nil
}

func (r *MemoryRepository) Close() error {
	return nil
}
