package auth

import (
	"context"
	"errors"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eventpass/backend/internal/models"
)

// Repository stores accounts in the accounts table created by the ledger schema.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

// Create inserts a new account.
func (r *Repository) Create(ctx context.Context, acc *models.Account) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO accounts (identity, display_name, password_hash, role, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, string(acc.Identity), acc.DisplayName, acc.PasswordHash, acc.Role, acc.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateIdentity
		}
		return err
	}
	return nil
}

// Upsert inserts acc or overwrites the password hash and role of the
// existing row.
func (r *Repository) Upsert(ctx context.Context, acc *models.Account) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO accounts (identity, display_name, password_hash, role, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (identity) DO UPDATE
		SET password_hash = EXCLUDED.password_hash, role = EXCLUDED.role
	`, string(acc.Identity), acc.DisplayName, acc.PasswordHash, acc.Role, acc.CreatedAt)
	return err
}

// Get returns the account for login. Returns nil if not found.
func (r *Repository) Get(ctx context.Context, id models.Identity) (*models.Account, error) {
	var a models.Account
	var identity string
	row := r.pool.QueryRow(ctx, `
		SELECT identity, display_name, password_hash, role, created_at
		FROM accounts WHERE identity = $1
	`, string(id))
	if err := row.Scan(&identity, &a.DisplayName, &a.PasswordHash, &a.Role, &a.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	a.Identity = models.Identity(identity)
	return &a, nil
}

// MemoryStore keeps accounts in process for the database-less mode and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[models.Identity]models.Account
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accounts: make(map[models.Identity]models.Account)}
}

var _ Store = (*MemoryStore)(nil)

func (m *MemoryStore) Create(_ context.Context, acc *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[acc.Identity]; ok {
		return ErrDuplicateIdentity
	}
	m.accounts[acc.Identity] = *acc
	return nil
}

func (m *MemoryStore) Upsert(_ context.Context, acc *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.accounts[acc.Identity]; ok {
		prev.PasswordHash = acc.PasswordHash
		prev.Role = acc.Role
		m.accounts[acc.Identity] = prev
		return nil
	}
	m.accounts[acc.Identity] = *acc
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id models.Identity) (*models.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}
