// Package repository provides database operations for the per-vendor
// user directories.
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// User is one directory row. The directory is the system of record for
// a person's branch assignment.
type User struct {
	Vendor     string
	Email      string
	FirstName  string
	LastName   string
	Branch     string
	IsActive   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
	LastSeenAt *time.Time
}

// UpsertUser is one branch-bearing row for Upsert. The service layer
// filters branchless rows before they reach the repository.
type UpsertUser struct {
	Email     string
	FirstName string
	LastName  string
	Branch    string
}

// SeenUser refreshes name and last-seen without touching the branch.
type SeenUser struct {
	Email     string
	FirstName string
	LastName  string
}

// Repository provides database operations for directory users.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new directory repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `vendor, email, first_name, last_name, branch, is_active, created_at, updated_at, last_seen_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(
		&u.Vendor,
		&u.Email,
		&u.FirstName,
		&u.LastName,
		&u.Branch,
		&u.IsActive,
		&u.CreatedAt,
		&u.UpdatedAt,
		&u.LastSeenAt,
	)
	return u, err
}

// List returns every directory row for a vendor, ordered by email.
func (r *Repository) List(ctx context.Context, vendor string) ([]User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM directory_users
		WHERE vendor = $1
		ORDER BY email
	`

	rows, err := r.pool.Query(ctx, query, vendor)
	if err != nil {
		return nil, fmt.Errorf("list directory users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan directory user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list directory users: %w", err)
	}
	return users, nil
}

// Upsert writes branch-bearing rows, reactivating and overwriting on
// conflict. Repeating the same payload produces the same stored state;
// only updated_at/last_seen_at move (last-write-wins).
func (r *Repository) Upsert(ctx context.Context, vendor string, users []UpsertUser) error {
	if len(users) == 0 {
		return nil
	}

	query := `
		INSERT INTO directory_users (
			vendor, email, first_name, last_name, branch,
			is_active, created_at, updated_at, last_seen_at
		) VALUES ($1, $2, $3, $4, $5, TRUE, now(), now(), now())
		ON CONFLICT (vendor, email) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			branch = EXCLUDED.branch,
			is_active = TRUE,
			updated_at = now(),
			last_seen_at = now()
	`

	batch := &pgx.Batch{}
	for _, u := range users {
		batch.Queue(query, vendor, u.Email, u.FirstName, u.LastName, u.Branch)
	}
	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upsert directory users: %w", err)
	}
	return nil
}

// TouchSeen refreshes names (only when non-blank) and last-seen for
// existing rows. It never creates rows and never changes a branch.
func (r *Repository) TouchSeen(ctx context.Context, vendor string, users []SeenUser) error {
	if len(users) == 0 {
		return nil
	}

	query := `
		UPDATE directory_users
		SET
			first_name = CASE WHEN $3 <> '' THEN $3 ELSE first_name END,
			last_name = CASE WHEN $4 <> '' THEN $4 ELSE last_name END,
			is_active = TRUE,
			updated_at = now(),
			last_seen_at = now()
		WHERE vendor = $1 AND email = $2
	`

	batch := &pgx.Batch{}
	for _, u := range users {
		batch.Queue(query, vendor, u.Email, u.FirstName, u.LastName)
	}
	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("touch directory users: %w", err)
	}
	return nil
}

// FindMissing returns active rows whose email is absent from the given
// set, ordered by email. An empty set returns every active row.
func (r *Repository) FindMissing(ctx context.Context, vendor string, activeEmails []string) ([]User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM directory_users
		WHERE vendor = $1
		  AND is_active
		  AND NOT (email = ANY($2))
		ORDER BY email
	`

	rows, err := r.pool.Query(ctx, query, vendor, activeEmails)
	if err != nil {
		return nil, fmt.Errorf("find missing directory users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan directory user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find missing directory users: %w", err)
	}
	return users, nil
}

// Deactivate soft-deletes rows by email and reports how many changed.
func (r *Repository) Deactivate(ctx context.Context, vendor string, emails []string) (int64, error) {
	if len(emails) == 0 {
		return 0, nil
	}

	query := `
		UPDATE directory_users
		SET is_active = FALSE, updated_at = now()
		WHERE vendor = $1 AND email = ANY($2) AND is_active
	`

	tag, err := r.pool.Exec(ctx, query, vendor, emails)
	if err != nil {
		return 0, fmt.Errorf("deactivate directory users: %w", err)
	}
	return tag.RowsAffected(), nil
}
