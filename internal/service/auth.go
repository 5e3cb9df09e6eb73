// Package service implements admin authentication: registration, login,
// logout, session queries and password changes.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"
	"unicode/utf8"

	"github.com/faucetdb/packetdesk/internal/hasher"
	"github.com/faucetdb/packetdesk/internal/model"
	"github.com/faucetdb/packetdesk/internal/repo"
	"github.com/faucetdb/packetdesk/internal/session"
)

// MinPasswordLength is the shortest password accepted on register and
// password change.
const MinPasswordLength = 8

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// AdminRepository is the persistence the service needs. *repo.AdminUserRepo
// implements it.
type AdminRepository interface {
	Create(ctx context.Context, email, passwordHash string) (*model.AdminUser, error)
	FindByEmail(ctx context.Context, email string) (*model.AdminUser, error)
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
	UpdatePasswordHash(ctx context.Context, id, passwordHash string) error
}

// Result is returned by every operation that can fail. Exactly one of User
// (on success, when the operation yields one) or Error is set.
type Result struct {
	Success bool               `json:"success"`
	User    *model.PublicAdmin `json:"user,omitempty"`
	Error   *AuthError         `json:"error,omitempty"`
}

func ok(user *model.PublicAdmin) Result {
	return Result{Success: true, User: user}
}

func fail(err *AuthError) Result {
	return Result{Error: err}
}

// AuthService orchestrates the hasher, admin repository and session store.
// Every external call is made once; there are no retries.
type AuthService struct {
	repo     AdminRepository
	hasher   hasher.Hasher
	sessions *session.Store
	logger   *slog.Logger
	now      func() time.Time
}

// NewAuthService wires the service. A nil logger discards log output.
func NewAuthService(r AdminRepository, h hasher.Hasher, sessions *session.Store, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &AuthService{
		repo:     r,
		hasher:   h,
		sessions: sessions,
		logger:   logger,
		now:      time.Now,
	}
}

// WithRepository returns a copy of the service backed by another admin
// repository.
func (s *AuthService) WithRepository(r AdminRepository) *AuthService {
	c := *s
	c.repo = r
	return &c
}

// WithSession returns a copy of the service bound to another session store.
// The HTTP server uses it to give each request its own throwaway slot.
func (s *AuthService) WithSession(sessions *session.Store) *AuthService {
	c := *s
	c.sessions = sessions
	return &c
}

// RegisterAdmin creates a new active admin account.
func (s *AuthService) RegisterAdmin(ctx context.Context, email, password string) (res Result) {
	defer s.recoverResult("register", &res)

	if !emailPattern.MatchString(email) {
		return fail(newError(InvalidInput, msgInvalidEmail))
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return fail(newError(InvalidInput, msgPasswordTooShort))
	}

	digest, err := s.hasher.Hash(password)
	if err != nil {
		return fail(s.hashError(err))
	}

	admin, err := s.repo.Create(ctx, email, digest)
	if err != nil {
		s.logger.Warn("register admin failed", "email", email, "error", err)
		return fail(storeError(err))
	}
	if admin == nil {
		return fail(storeError(repo.ErrNoRecord))
	}

	s.logger.Info("admin registered", "admin_id", admin.ID, "email", admin.Email)
	return ok(admin.Public())
}

// LoginAdmin verifies credentials, records the login and issues a session.
// Unknown accounts, failed lookups and wrong passwords are reported
// identically.
func (s *AuthService) LoginAdmin(ctx context.Context, email, password string) (res Result) {
	defer s.recoverResult("login", &res)

	admin, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		s.logger.Warn("login failed: lookup error", "email", email, "error", err)
		return fail(newError(InvalidCredentials, msgInvalidCredentials))
	}
	if admin == nil {
		s.logger.Warn("login failed: unknown email", "email", email)
		return fail(newError(InvalidCredentials, msgInvalidCredentials))
	}

	if !admin.IsActive {
		s.logger.Warn("login failed: account inactive", "email", email)
		return fail(newError(AccountInactive, msgAccountInactive))
	}

	match, err := s.hasher.Compare(password, admin.PasswordHash)
	if err != nil {
		s.logger.Error("login failed: stored hash unusable", "admin_id", admin.ID, "error", err)
	}
	if !match {
		s.logger.Warn("login failed: invalid password", "email", email)
		return fail(newError(InvalidCredentials, msgInvalidCredentials))
	}

	now := s.now().UTC()
	if err := s.repo.TouchLastLogin(ctx, admin.ID, now); err != nil {
		s.logger.Error("failed to update last login", "admin_id", admin.ID, "error", err)
	} else {
		admin.LastLogin = &now
	}

	if err := s.sessions.Issue(admin.ID, admin.Email); err != nil {
		s.logger.Error("failed to issue session", "admin_id", admin.ID, "error", err)
		return fail(storeError(err))
	}

	s.logger.Info("admin logged in", "admin_id", admin.ID, "email", admin.Email)
	return ok(admin.Public())
}

// Logout clears the session. It always succeeds.
func (s *AuthService) Logout() {
	if err := s.sessions.Clear(); err != nil {
		s.logger.Warn("failed to clear session", "error", err)
	}
}

// CurrentAdmin returns the identity in the session, or nil.
func (s *AuthService) CurrentAdmin() *session.Current {
	return s.sessions.Read()
}

// IsLoggedIn reports whether a valid session exists.
func (s *AuthService) IsLoggedIn() bool {
	return s.sessions.IsActive()
}

// ChangePassword replaces the password of the admin with email after
// checking oldPassword. A successful result carries no user.
func (s *AuthService) ChangePassword(ctx context.Context, email, oldPassword, newPassword string) (res Result) {
	defer s.recoverResult("change password", &res)

	if utf8.RuneCountInString(newPassword) < MinPasswordLength {
		return fail(newError(InvalidInput, msgPasswordTooShort))
	}

	admin, err := s.repo.FindByEmail(ctx, email)
	if err != nil || admin == nil {
		if err != nil {
			s.logger.Warn("change password: lookup error", "email", email, "error", err)
		}
		return fail(newError(NotFound, msgAdminNotFound))
	}

	match, err := s.hasher.Compare(oldPassword, admin.PasswordHash)
	if err != nil {
		s.logger.Error("change password: stored hash unusable", "admin_id", admin.ID, "error", err)
	}
	if !match {
		return fail(newError(InvalidCredentials, msgInvalidCredentials))
	}

	digest, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fail(s.hashError(err))
	}

	if err := s.repo.UpdatePasswordHash(ctx, admin.ID, digest); err != nil {
		s.logger.Error("change password: update failed", "admin_id", admin.ID, "error", err)
		return fail(storeError(err))
	}

	s.logger.Info("admin password changed", "admin_id", admin.ID)
	return Result{Success: true}
}

func (s *AuthService) hashError(err error) *AuthError {
	if errors.Is(err, hasher.ErrPasswordTooLong) {
		return newError(InvalidInput, err.Error())
	}
	s.logger.Error("hash password failed", "error", err)
	return newError(Internal, msgInternal)
}

// recoverResult turns a panic inside an operation into an Internal result.
func (s *AuthService) recoverResult(op string, res *Result) {
	if r := recover(); r != nil {
		s.logger.Error("recovered panic", "op", op, "panic", fmt.Sprint(r))
		*res = fail(newError(Internal, msgInternal))
	}
}
