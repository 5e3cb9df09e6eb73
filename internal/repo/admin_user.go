// Package repo provides typed clients over the generic record store.
package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/faucetdb/packetdesk/internal/model"
	"github.com/faucetdb/packetdesk/internal/recordstore"
)

// AdminUsersTable is the table holding admin accounts.
const AdminUsersTable = "admin_users"

// ErrNoRecord is returned by Create when the store accepted the insert but
// handed nothing back.
var ErrNoRecord = errors.New("creation did not return a record")

// AdminUserRepo reads and writes admin_users rows. Store errors are returned
// as-is so their messages reach callers unchanged.
type AdminUserRepo struct {
	store recordstore.Store
	now   func() time.Time
}

// NewAdminUserRepo returns a repository backed by store.
func NewAdminUserRepo(store recordstore.Store) *AdminUserRepo {
	return &AdminUserRepo{store: store, now: time.Now}
}

// NormalizeEmail lower-cases and trims an address. Every lookup and insert
// goes through it so that casing never creates a second account.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create inserts a new active admin with a fresh ULID.
func (r *AdminUserRepo) Create(ctx context.Context, email, passwordHash string) (*model.AdminUser, error) {
	row := recordstore.Row{
		"id":            ulid.Make().String(),
		"email":         NormalizeEmail(email),
		"password_hash": passwordHash,
		"is_active":     true,
		"created_at":    r.now().UTC(),
	}

	created, err := r.store.Insert(ctx, AdminUsersTable, row)
	if err != nil {
		return nil, err
	}
	if created == nil {
		return nil, ErrNoRecord
	}
	return rowToAdmin(created)
}

// FindByEmail returns the admin with the given email, or nil, nil.
func (r *AdminUserRepo) FindByEmail(ctx context.Context, email string) (*model.AdminUser, error) {
	row, err := r.store.SelectByEquality(ctx, AdminUsersTable, "email", NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	return rowToAdmin(row)
}

// TouchLastLogin records a successful login.
func (r *AdminUserRepo) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	return r.store.Update(ctx, AdminUsersTable, recordstore.Row{"last_login": at.UTC()}, "id", id)
}

// UpdatePasswordHash replaces the stored hash for the admin with id.
func (r *AdminUserRepo) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	return r.store.Update(ctx, AdminUsersTable, recordstore.Row{"password_hash": passwordHash}, "id", id)
}

func rowToAdmin(row recordstore.Row) (*model.AdminUser, error) {
	id, err := asString(row["id"])
	if err != nil {
		return nil, fmt.Errorf("admin id: %w", err)
	}
	email, err := asString(row["email"])
	if err != nil {
		return nil, fmt.Errorf("admin email: %w", err)
	}
	hash, err := asString(row["password_hash"])
	if err != nil {
		return nil, fmt.Errorf("admin password_hash: %w", err)
	}
	active, err := asBool(row["is_active"])
	if err != nil {
		return nil, fmt.Errorf("admin is_active: %w", err)
	}

	admin := &model.AdminUser{
		ID:           id,
		Email:        email,
		PasswordHash: hash,
		IsActive:     active,
	}
	if v := row["created_at"]; v != nil {
		t, err := asTime(v)
		if err != nil {
			return nil, fmt.Errorf("admin created_at: %w", err)
		}
		admin.CreatedAt = t
	}
	if v := row["last_login"]; v != nil {
		t, err := asTime(v)
		if err != nil {
			return nil, fmt.Errorf("admin last_login: %w", err)
		}
		admin.LastLogin = &t
	}
	return admin, nil
}
