package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/jredh-dev/ewaste/internal/database"
	"github.com/jredh-dev/ewaste/pkg/models"
)

const bcryptCost = 12

// HashPassword hashes a plaintext password with bcrypt.
func HashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword compares a plaintext password against a bcrypt hash.
func CheckPassword(password, hash string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// LocalProvider keeps identities in the SQLite store. It is used for local
// development and tests when no Firebase project is configured.
type LocalProvider struct {
	db   *database.DB
	cost int
}

var _ Provider = (*LocalProvider)(nil)

// NewLocalProvider creates a LocalProvider. A zero cost uses the default.
func NewLocalProvider(db *database.DB, cost int) *LocalProvider {
	if cost == 0 {
		cost = bcryptCost
	}
	return &LocalProvider{db: db, cost: cost}
}

func (p *LocalProvider) CreateIdentity(ctx context.Context, email, password string) (*models.Identity, error) {
	hash, err := HashPassword(password, p.cost)
	if err != nil {
		return nil, err
	}

	rec := &database.IdentityRecord{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    time.Now(),
	}
	if err := p.db.CreateIdentity(ctx, rec); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("create identity: %w", err)
	}
	return &models.Identity{ID: rec.ID, Email: rec.Email}, nil
}

func (p *LocalProvider) Authenticate(ctx context.Context, email, password string) (*models.Identity, error) {
	rec, err := p.db.IdentityByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("lookup identity: %w", err)
	}
	if rec == nil {
		return nil, ErrNotFound
	}
	if err := CheckPassword(password, rec.PasswordHash); err != nil {
		return nil, ErrWrongPassword
	}
	return &models.Identity{ID: rec.ID, Email: rec.Email, Role: rec.Role}, nil
}

// Verify is not available locally: there is no external ID token to check.
func (p *LocalProvider) Verify(context.Context, string) (*models.Identity, error) {
	return nil, ErrUnsupported
}

func (p *LocalProvider) SetRole(ctx context.Context, id string, role models.Role) error {
	if err := p.db.SetIdentityRole(ctx, id, role); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// SignOut is a no-op; local sessions live only in revocable bearer tokens.
func (p *LocalProvider) SignOut(context.Context, string) error {
	return nil
}
