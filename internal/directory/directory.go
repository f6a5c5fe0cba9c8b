// Package directory answers recipient and membership questions about users.
package directory

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const errRepoNotConfigured = "directory repository not configured"

// ErrNoAddress is returned when a user has no usable address for the channel.
var ErrNoAddress = errors.New("recipient has no address")

// RoleAdmin is the organization role that receives reports.
const RoleAdmin = "admin"

// Member is one user of an organization.
type Member struct {
	UserID   uuid.UUID
	Email    string
	FullName string
	Role     string
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// EmailForUser returns the profile email of a member of the organization.
func (r *Repository) EmailForUser(ctx context.Context, organizationID, userID uuid.UUID) (string, error) {
	if r == nil || r.pool == nil {
		return "", errors.New(errRepoNotConfigured)
	}
	var email string
	err := r.pool.QueryRow(ctx,
		`SELECT u.email
		 FROM users u
		 JOIN organization_members m ON m.user_id = u.id
		 WHERE u.id = $1 AND m.organization_id = $2`,
		userID, organizationID,
	).Scan(&email)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNoAddress
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(email) == "" {
		return "", ErrNoAddress
	}
	return email, nil
}

// PhoneForUser returns the phone number the user stored in their preferences.
func (r *Repository) PhoneForUser(ctx context.Context, organizationID, userID uuid.UUID) (string, error) {
	if r == nil || r.pool == nil {
		return "", errors.New(errRepoNotConfigured)
	}
	var phone *string
	err := r.pool.QueryRow(ctx,
		`SELECT phone FROM user_preferences WHERE user_id = $1 AND organization_id = $2`,
		userID, organizationID,
	).Scan(&phone)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && (phone == nil || strings.TrimSpace(*phone) == "")) {
		return "", ErrNoAddress
	}
	if err != nil {
		return "", err
	}
	return *phone, nil
}

// IsMember reports whether the user belongs to the organization.
func (r *Repository) IsMember(ctx context.Context, organizationID, userID uuid.UUID) (bool, error) {
	if r == nil || r.pool == nil {
		return false, errors.New(errRepoNotConfigured)
	}
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM organization_members WHERE organization_id = $1 AND user_id = $2)`,
		organizationID, userID,
	).Scan(&exists)
	return exists, err
}

// Admins lists the organization's admins.
func (r *Repository) Admins(ctx context.Context, organizationID uuid.UUID) ([]Member, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New(errRepoNotConfigured)
	}
	rows, err := r.pool.Query(ctx,
		`SELECT u.id, u.email, u.full_name, m.role
		 FROM organization_members m
		 JOIN users u ON u.id = m.user_id
		 WHERE m.organization_id = $1 AND m.role = $2
		 ORDER BY u.email`,
		organizationID, RoleAdmin,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.UserID, &m.Email, &m.FullName, &m.Role); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// Organizations lists every organization that has at least one member.
func (r *Repository) Organizations(ctx context.Context) ([]uuid.UUID, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New(errRepoNotConfigured)
	}
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT organization_id FROM organization_members ORDER BY organization_id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}

// Profile returns the member record of a user in the organization.
func (r *Repository) Profile(ctx context.Context, organizationID, userID uuid.UUID) (Member, error) {
	if r == nil || r.pool == nil {
		return Member{}, errors.New(errRepoNotConfigured)
	}
	var m Member
	err := r.pool.QueryRow(ctx,
		`SELECT u.id, u.email, u.full_name, m.role
		 FROM users u
		 JOIN organization_members m ON m.user_id = u.id
		 WHERE u.id = $1 AND m.organization_id = $2`,
		userID, organizationID,
	).Scan(&m.UserID, &m.Email, &m.FullName, &m.Role)
	if errors.Is(err, pgx.ErrNoRows) {
		return Member{}, ErrNoAddress
	}
	return m, err
}
