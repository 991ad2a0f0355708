package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/jredh-dev/ewaste/pkg/models"
)

// IdentityRecord is a locally managed sign-in identity. Only the SQLite
// backend stores these; with Firebase the identity service owns them.
type IdentityRecord struct {
	ID           string
	Email        string
	PasswordHash string
	Role         models.Role
	CreatedAt    time.Time
}

// CreateIdentity inserts a new identity. It returns ErrDuplicate when the
// email is already registered.
func (db *DB) CreateIdentity(ctx context.Context, rec *IdentityRecord) error {
	const q = `INSERT INTO identities (id, email, password_hash, role, created_at)
	           VALUES (?, ?, ?, ?, ?)`
	_, err := db.conn.ExecContext(ctx, q,
		rec.ID, rec.Email, rec.PasswordHash, string(rec.Role), rec.CreatedAt,
	)
	if isConstraint(err) {
		return ErrDuplicate
	}
	return err
}

// IdentityByEmail returns (nil, nil) for an unknown email.
func (db *DB) IdentityByEmail(ctx context.Context, email string) (*IdentityRecord, error) {
	const q = `SELECT id, email, password_hash, role, created_at FROM identities WHERE email = ?`
	return scanIdentity(db.conn.QueryRowContext(ctx, q, email))
}

// IdentityByID returns (nil, nil) for an unknown ID.
func (db *DB) IdentityByID(ctx context.Context, id string) (*IdentityRecord, error) {
	const q = `SELECT id, email, password_hash, role, created_at FROM identities WHERE id = ?`
	return scanIdentity(db.conn.QueryRowContext(ctx, q, id))
}

// SetIdentityRole records the role claim for an identity.
func (db *DB) SetIdentityRole(ctx context.Context, id string, role models.Role) error {
	res, err := db.conn.ExecContext(ctx, `UPDATE identities SET role = ? WHERE id = ?`, string(role), id)
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

func scanIdentity(row *sql.Row) (*IdentityRecord, error) {
	rec := &IdentityRecord{}
	var role string
	err := row.Scan(&rec.ID, &rec.Email, &rec.PasswordHash, &role, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec.Role = models.Role(role)
	return rec, nil
}
