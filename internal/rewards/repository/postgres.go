package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/25x8/rewards/internal/rewards/models"
	"github.com/jackc/pgconn"
	_ "github.com/jackc/pgx/v4/stdlib"
)

const (
	uniqueViolation        = "23505"
	emailConstraint        = "users_email_unique"
	referralCodeConstraint = "users_referral_code_unique"
	selectUserDoc          = "SELECT doc, version FROM users WHERE id = $1"
)

// PostgresRepository implements Repository on PostgreSQL. Each user is one row
// holding the JSON document and a version counter used for optimistic commits.
type PostgresRepository struct {
	db         *sql.DB
	maxRetries int
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(retries int) *PostgresRepository {
	return &PostgresRepository{
		db:         nil, // Will be initialized in InitDB
		maxRetries: maxRetries(retries),
	}
}

// InitDB initializes the database connection and schema
func (r *PostgresRepository) InitDB(databaseURI string) error {
	db, err := sql.Open("pgx", databaseURI)
	if err != nil {
		return err
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return err
	}

	r.db = db

	if err := r.createTables(); err != nil {
		db.Close()
		return err
	}

	return nil
}

// Close closes the database connection
func (r *PostgresRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// createTables creates the necessary tables if they don't exist
func (r *PostgresRepository) createTables() error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id VARCHAR(64) PRIMARY KEY,
			email VARCHAR(255) NOT NULL,
			referral_code VARCHAR(64) NOT NULL,
			version BIGINT NOT NULL DEFAULT 1,
			doc JSONB NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT ` + emailConstraint + ` UNIQUE (email),
			CONSTRAINT ` + referralCodeConstraint + ` UNIQUE (referral_code)
		)
	`)
	return err
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) error {
	doc, err := encodeUser(user)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(
		ctx,
		"INSERT INTO users (id, email, referral_code, version, doc) VALUES ($1, $2, $3, 1, $4)",
		user.ID, emailKey(user.Email), user.ReferralCode, doc,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			switch pgErr.ConstraintName {
			case emailConstraint:
				return ErrDuplicateEmail
			case referralCodeConstraint:
				return ErrDuplicateReferralCode
			}
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.User, error) {
	doc, _, err := r.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return decodeUser(doc)
}

func (r *PostgresRepository) load(ctx context.Context, id string) ([]byte, int64, error) {
	var (
		doc     []byte
		version int64
	)
	err := r.db.QueryRowContext(ctx, selectUserDoc, id).Scan(&doc, &version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, 0, ErrNotFound
		}
		return nil, 0, err
	}
	return doc, version, nil
}

func (r *PostgresRepository) Transact(ctx context.Context, id string, fn TxFunc) (*models.User, error) {
	ctx, err := detach(ctx)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < r.maxRetries; attempt++ {
		doc, version, err := r.load(ctx, id)
		if err != nil {
			return nil, err
		}

		user, newDoc, changed, err := applyTx(doc, fn)
		if err != nil {
			return nil, err
		}
		if !changed {
			return user, nil
		}

		res, err := r.db.ExecContext(
			ctx,
			"UPDATE users SET doc = $1, version = version + 1 WHERE id = $2 AND version = $3",
			newDoc, id, version,
		)
		if err != nil {
			return nil, fmt.Errorf("commit user %s: %w", id, err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if n == 1 {
			return user, nil
		}
	}

	return nil, ErrTransactionFailed
}

func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, "SELECT doc FROM users WHERE email = $1", emailKey(email))
}

func (r *PostgresRepository) FindByReferralCode(ctx context.Context, code string) (*models.User, error) {
	return r.findOne(ctx, "SELECT doc FROM users WHERE referral_code = $1", code)
}

func (r *PostgresRepository) findOne(ctx context.Context, query string, arg string) (*models.User, error) {
	var doc []byte
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return decodeUser(doc)
}

func (r *PostgresRepository) List(ctx context.Context) ([]*models.User, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT doc FROM users ORDER BY created_at")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		user, err := decodeUser(doc)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return users, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM users WHERE id = $1", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
