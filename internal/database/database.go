package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/jredh-dev/ewaste/pkg/models"
)

// DB is the SQLite-backed Store used for local development and tests. It
// also keeps the local identity table used when Firebase Auth is not
// configured.
type DB struct {
	conn *sql.DB
}

var _ Store = (*DB)(nil)

// New opens (or creates) the SQLite database and runs migrations.
func New(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Single writer, many readers.
	conn.SetMaxOpenConns(1)

	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &DB{conn: conn}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func migrate(conn *sql.DB) error {
	const ddl = `
	CREATE TABLE IF NOT EXISTS identities (
		id            TEXT PRIMARY KEY,
		email         TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		role          TEXT NOT NULL DEFAULT '',
		created_at    DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS user_profiles (
		id         TEXT PRIMARY KEY,
		username   TEXT NOT NULL DEFAULT '',
		mobile     TEXT NOT NULL DEFAULT '',
		email      TEXT NOT NULL DEFAULT '',
		eco_points INTEGER NOT NULL DEFAULT 0,
		user_type  TEXT NOT NULL DEFAULT '',
		created_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS company_profiles (
		id           TEXT PRIMARY KEY,
		company_name TEXT NOT NULL DEFAULT '',
		phone        TEXT NOT NULL DEFAULT '',
		email        TEXT NOT NULL DEFAULT '',
		certificate  TEXT NOT NULL DEFAULT '',
		user_type    TEXT NOT NULL DEFAULT '',
		created_at   DATETIME
	);

	CREATE TABLE IF NOT EXISTS submissions (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL,
		user_name  TEXT NOT NULL DEFAULT '',
		user_email TEXT NOT NULL DEFAULT '',
		name       TEXT NOT NULL DEFAULT '',
		quantity   INTEGER NOT NULL DEFAULT 1,
		weight     REAL NOT NULL DEFAULT 0,
		company_id TEXT NOT NULL,
		image_ref  TEXT NOT NULL DEFAULT '',
		phone      TEXT NOT NULL DEFAULT '',
		address    TEXT NOT NULL DEFAULT '',
		prize      INTEGER NOT NULL DEFAULT 0,
		status     TEXT NOT NULL DEFAULT 'pending',
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_submissions_company_id ON submissions(company_id);
	CREATE INDEX IF NOT EXISTS idx_submissions_user_id ON submissions(user_id);
	`
	_, err := conn.Exec(ddl)
	return err
}

// isConstraint reports whether err is a primary-key or unique violation.
func isConstraint(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return true
	}
	return false
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

// --- User profile operations ---

// PutUserProfile inserts or refreshes a user profile without touching its
// point counter.
func (db *DB) PutUserProfile(ctx context.Context, p *models.UserProfile) error {
	const q = `INSERT INTO user_profiles (id, username, mobile, email, user_type, created_at)
	           VALUES (?, ?, ?, ?, ?, ?)
	           ON CONFLICT(id) DO UPDATE SET
	               username = excluded.username,
	               mobile = excluded.mobile,
	               email = excluded.email,
	               user_type = excluded.user_type,
	               created_at = excluded.created_at`
	_, err := db.conn.ExecContext(ctx, q,
		p.ID, p.Username, p.Mobile, p.Email, string(p.UserType), nullTime(p.CreatedAt),
	)
	return err
}

// GetUserProfile looks up a user profile by identity ID.
func (db *DB) GetUserProfile(ctx context.Context, id string) (*models.UserProfile, error) {
	const q = `SELECT id, username, mobile, email, eco_points, user_type, created_at
	           FROM user_profiles WHERE id = ?`
	p := &models.UserProfile{}
	var userType string
	var created sql.NullTime
	err := db.conn.QueryRowContext(ctx, q, id).Scan(
		&p.ID, &p.Username, &p.Mobile, &p.Email, &p.EcoPoints, &userType, &created,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.UserType = models.Role(userType)
	p.CreatedAt = created.Time
	return p, nil
}

// AddEcoPoints increments the point counter in a single statement so
// concurrent awards for the same user never lose an update.
func (db *DB) AddEcoPoints(ctx context.Context, userID string, delta int64) error {
	const q = `INSERT INTO user_profiles (id, eco_points) VALUES (?, ?)
	           ON CONFLICT(id) DO UPDATE SET eco_points = eco_points + excluded.eco_points`
	_, err := db.conn.ExecContext(ctx, q, userID, delta)
	return err
}

// --- Company profile operations ---

const companyColumns = `id, company_name, phone, email, certificate, user_type, created_at`

func scanCompany(row interface{ Scan(...interface{}) error }) (*models.CompanyProfile, error) {
	c := &models.CompanyProfile{}
	var userType string
	var created sql.NullTime
	err := row.Scan(&c.ID, &c.CompanyName, &c.Phone, &c.Email, &c.Certificate, &userType, &created)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.UserType = models.Role(userType)
	c.CreatedAt = created.Time
	return c, nil
}

// PutCompanyProfile inserts or replaces a company profile.
func (db *DB) PutCompanyProfile(ctx context.Context, p *models.CompanyProfile) error {
	const q = `INSERT INTO company_profiles (id, company_name, phone, email, certificate, user_type, created_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?)
	           ON CONFLICT(id) DO UPDATE SET
	               company_name = excluded.company_name,
	               phone = excluded.phone,
	               email = excluded.email,
	               certificate = excluded.certificate,
	               user_type = excluded.user_type,
	               created_at = excluded.created_at`
	_, err := db.conn.ExecContext(ctx, q,
		p.ID, p.CompanyName, p.Phone, p.Email, p.Certificate, string(p.UserType), nullTime(p.CreatedAt),
	)
	return err
}

// GetCompanyProfile looks up a company profile by identity ID.
func (db *DB) GetCompanyProfile(ctx context.Context, id string) (*models.CompanyProfile, error) {
	q := `SELECT ` + companyColumns + ` FROM company_profiles WHERE id = ?`
	return scanCompany(db.conn.QueryRowContext(ctx, q, id))
}

// ListCompanyProfiles returns every registered company ordered by name.
func (db *DB) ListCompanyProfiles(ctx context.Context) ([]models.CompanyProfile, error) {
	q := `SELECT ` + companyColumns + ` FROM company_profiles`
	rows, err := db.conn.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var companies []models.CompanyProfile
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, err
		}
		companies = append(companies, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortCompanies(companies)
	return companies, nil
}

// UpdateCompanyProfile applies the non-nil fields of u.
func (db *DB) UpdateCompanyProfile(ctx context.Context, id string, u models.CompanyUpdate) error {
	const q = `UPDATE company_profiles SET
	               company_name = COALESCE(?, company_name),
	               phone = COALESCE(?, phone),
	               certificate = COALESCE(?, certificate)
	           WHERE id = ?`
	res, err := db.conn.ExecContext(ctx, q, u.CompanyName, u.Phone, u.Certificate, id)
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

// --- Submission operations ---

const submissionColumns = `id, user_id, user_name, user_email, name, quantity, weight, company_id,
	image_ref, phone, address, prize, status, created_at`

func scanSubmission(row interface{ Scan(...interface{}) error }) (*models.Submission, error) {
	s := &models.Submission{}
	var status string
	err := row.Scan(
		&s.ID, &s.UserID, &s.UserName, &s.UserEmail, &s.ItemName, &s.Quantity, &s.Weight,
		&s.CompanyID, &s.ImageRef, &s.Phone, &s.Address, &s.Prize, &status, &s.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.Status = models.Status(status)
	return s, nil
}

// CreateSubmission inserts a new submission.
func (db *DB) CreateSubmission(ctx context.Context, s *models.Submission) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	const q = `INSERT INTO submissions (` + submissionColumns + `)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := db.conn.ExecContext(ctx, q,
		s.ID, s.UserID, s.UserName, s.UserEmail, s.ItemName, s.Quantity, s.Weight,
		s.CompanyID, s.ImageRef, s.Phone, s.Address, s.Prize, string(s.Status), s.CreatedAt,
	)
	if isConstraint(err) {
		return ErrDuplicate
	}
	return err
}

// GetSubmission returns a submission by ID.
func (db *DB) GetSubmission(ctx context.Context, id string) (*models.Submission, error) {
	q := `SELECT ` + submissionColumns + ` FROM submissions WHERE id = ?`
	return scanSubmission(db.conn.QueryRowContext(ctx, q, id))
}

// SubmissionsByCompany returns every submission targeting a company.
func (db *DB) SubmissionsByCompany(ctx context.Context, companyID string) ([]models.Submission, error) {
	q := `SELECT ` + submissionColumns + ` FROM submissions WHERE company_id = ?`
	return db.querySubmissions(ctx, q, companyID)
}

// SubmissionsByUser returns every submission made by a user.
func (db *DB) SubmissionsByUser(ctx context.Context, userID string) ([]models.Submission, error) {
	q := `SELECT ` + submissionColumns + ` FROM submissions WHERE user_id = ?`
	return db.querySubmissions(ctx, q, userID)
}

// SetSubmissionStatus overwrites a submission's status.
func (db *DB) SetSubmissionStatus(ctx context.Context, id string, status models.Status) error {
	res, err := db.conn.ExecContext(ctx, `UPDATE submissions SET status = ? WHERE id = ?`, string(status), id)
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

func (db *DB) querySubmissions(ctx context.Context, query string, args ...interface{}) ([]models.Submission, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []models.Submission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	newestFirst(subs)
	return subs, nil
}
