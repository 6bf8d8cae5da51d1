package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/eventpass/backend/internal/models"
)

var (
	// ErrDuplicateIdentity is returned when registering an identity that already exists.
	ErrDuplicateIdentity  = errors.New("identity already registered")
	ErrInvalidIdentity    = errors.New("invalid identity")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

// identityPattern accepts handles and hex wallet addresses.
var identityPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.\-]{2,63}$`)

const minPasswordLen = 8

// Store persists accounts. Create returns ErrDuplicateIdentity on conflict;
// Get returns nil, nil when the identity is unknown. Upsert replaces the
// password hash and role of an existing account.
type Store interface {
	Create(ctx context.Context, acc *models.Account) error
	Get(ctx context.Context, id models.Identity) (*models.Account, error)
	Upsert(ctx context.Context, acc *models.Account) error
}

type Service interface {
	Register(ctx context.Context, identity models.Identity, password, displayName string) (*models.Account, error)
	Login(ctx context.Context, identity models.Identity, password string) (string, error)
	ValidateToken(ctx context.Context, token string) (models.Identity, string, error)
}

type service struct {
	store  Store
	secret []byte
	ttl    time.Duration
	admin  models.Identity
	now    func() time.Time
}

// NewService signs HS256 tokens with secret. The admin identity cannot be
// self-registered; its account is provisioned with BootstrapAdmin.
func NewService(store Store, secret string, ttl time.Duration, admin models.Identity) *service {
	return &service{store: store, secret: []byte(secret), ttl: ttl, admin: admin, now: time.Now}
}

// Ensure service implements Service at compile time.
var _ Service = (*service)(nil)

type claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

func (s *service) Register(ctx context.Context, identity models.Identity, password, displayName string) (*models.Account, error) {
	if !identityPattern.MatchString(string(identity)) || identity == models.TreasuryIdentity || identity == s.admin {
		return nil, ErrInvalidIdentity
	}
	if len(password) < minPasswordLen {
		return nil, errors.New("password too short")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	acc := &models.Account{
		Identity:     identity,
		DisplayName:  displayName,
		PasswordHash: string(hash),
		Role:         models.RoleHolder,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.Create(ctx, acc); err != nil {
		return nil, err
	}
	return acc, nil
}

func (s *service) Login(ctx context.Context, identity models.Identity, password string) (string, error) {
	acc, err := s.store.Get(ctx, identity)
	if err != nil {
		return "", err
	}
	if acc == nil {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	role := models.RoleHolder
	if acc.Identity == s.admin && acc.Role == models.RoleAdmin {
		role = models.RoleAdmin
	}
	return s.issueToken(acc.Identity, role)
}

// BootstrapAdmin creates or resets the admin account with a precomputed
// bcrypt hash. An account of the same name registered earlier is taken over.
func (s *service) BootstrapAdmin(ctx context.Context, passwordHash string) error {
	if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
		return fmt.Errorf("admin password hash: %w", err)
	}
	return s.store.Upsert(ctx, &models.Account{
		Identity:     s.admin,
		DisplayName:  string(s.admin),
		PasswordHash: passwordHash,
		Role:         models.RoleAdmin,
		CreatedAt:    s.now().UTC(),
	})
}

func (s *service) issueToken(identity models.Identity, role string) (string, error) {
	now := s.now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(identity),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Role: role,
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return tok.SignedString(s.secret)
}

func (s *service) ValidateToken(_ context.Context, token string) (models.Identity, string, error) {
	tok, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return "", "", errors.Join(ErrInvalidToken, err)
	}
	c, ok := tok.Claims.(*claims)
	if !ok || !tok.Valid || c.Subject == "" {
		return "", "", ErrInvalidToken
	}
	return models.Identity(c.Subject), c.Role, nil
}
