package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/faucetdb/packetdesk/internal/hasher"
	"github.com/faucetdb/packetdesk/internal/model"
	"github.com/faucetdb/packetdesk/internal/recordstore"
	"github.com/faucetdb/packetdesk/internal/repo"
	"github.com/faucetdb/packetdesk/internal/session"
)

type testEnv struct {
	auth    *AuthService
	store   *recordstore.SQLStore
	repo    *repo.AdminUserRepo
	storage *session.MemoryStorage
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store, err := recordstore.NewMemoryStore(context.Background())
	if err != nil {
		t.Fatalf("NewMemoryStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	r := repo.NewAdminUserRepo(store)
	storage := session.NewMemoryStorage()
	auth := NewAuthService(r, hasher.NewBcrypt(), session.New(storage), nil)
	return &testEnv{auth: auth, store: store, repo: r, storage: storage}
}

func (e *testEnv) register(t *testing.T, email, password string) *model.PublicAdmin {
	t.Helper()
	res := e.auth.RegisterAdmin(context.Background(), email, password)
	if !res.Success {
		t.Fatalf("RegisterAdmin(%s): %v", email, res.Error)
	}
	return res.User
}

func assertKind(t *testing.T, res Result, want Kind) {
	t.Helper()
	if res.Success {
		t.Fatalf("expected failure of kind %s, got success", want)
	}
	if res.Error == nil {
		t.Fatalf("expected error of kind %s, got nil", want)
	}
	if res.Error.Kind != want {
		t.Fatalf("kind = %s (%q), want %s", res.Error.Kind, res.Error.Message, want)
	}
}

// spyRepo wraps an AdminRepository, counting calls and optionally
// overriding results.
type spyRepo struct {
	AdminRepository
	calls int

	createFn func() (*model.AdminUser, error)
	findFn   func() (*model.AdminUser, error)
	touchErr error
}

func (s *spyRepo) Create(ctx context.Context, email, hash string) (*model.AdminUser, error) {
	s.calls++
	if s.createFn != nil {
		return s.createFn()
	}
	return s.AdminRepository.Create(ctx, email, hash)
}

func (s *spyRepo) FindByEmail(ctx context.Context, email string) (*model.AdminUser, error) {
	s.calls++
	if s.findFn != nil {
		return s.findFn()
	}
	return s.AdminRepository.FindByEmail(ctx, email)
}

func (s *spyRepo) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	s.calls++
	if s.touchErr != nil {
		return s.touchErr
	}
	return s.AdminRepository.TouchLastLogin(ctx, id, at)
}

func (s *spyRepo) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	s.calls++
	return s.AdminRepository.UpdatePasswordHash(ctx, id, hash)
}

func newSpyEnv(t *testing.T) (*testEnv, *spyRepo) {
	t.Helper()
	env := newTestEnv(t)
	spy := &spyRepo{AdminRepository: env.repo}
	env.auth = NewAuthService(spy, hasher.NewBcrypt(), session.New(env.storage), nil)
	return env, spy
}

func TestRegisterRejectsMalformedEmailWithoutStore(t *testing.T) {
	env, spy := newSpyEnv(t)

	bad := []string{
		"",
		"plain",
		"no-at.example.com",
		"a@b",
		"@b.com",
		"a@.com",
		"a b@c.com",
		"a@b c.com",
		"a@@b.com",
		" a@b.com",
	}
	for _, email := range bad {
		res := env.auth.RegisterAdmin(context.Background(), email, "password1")
		assertKind(t, res, InvalidInput)
	}
	if spy.calls != 0 {
		t.Errorf("store contacted %d times for invalid emails", spy.calls)
	}
}

func TestShortPasswordsRejected(t *testing.T) {
	env, spy := newSpyEnv(t)
	ctx := context.Background()

	for _, pw := range []string{"", "a", "1234567", "ÅÅÅÅÅÅÅ"} {
		assertKind(t, env.auth.RegisterAdmin(ctx, "a@b.com", pw), InvalidInput)
		assertKind(t, env.auth.ChangePassword(ctx, "a@b.com", "whatever1", pw), InvalidInput)
	}
	if spy.calls != 0 {
		t.Errorf("store contacted %d times for short passwords", spy.calls)
	}

	// Eight characters is enough.
	env.register(t, "a@b.com", "12345678")
}

func TestOverlongPasswordIsInvalidInput(t *testing.T) {
	env := newTestEnv(t)
	res := env.auth.RegisterAdmin(context.Background(), "a@b.com", strings.Repeat("x", 73))
	assertKind(t, res, InvalidInput)
}

func TestRegisterLoginRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := env.register(t, "a@b.com", "password1")
	if user.Email != "a@b.com" || !user.IsActive {
		t.Errorf("registered user = %+v", user)
	}

	res := env.auth.LoginAdmin(ctx, "a@b.com", "password1")
	if !res.Success {
		t.Fatalf("LoginAdmin: %v", res.Error)
	}
	if res.User == nil || res.User.ID != user.ID {
		t.Fatalf("login user = %+v, want ID %s", res.User, user.ID)
	}
	if res.User.LastLogin == nil {
		t.Error("expected last_login to be set after login")
	}

	b, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if strings.Contains(string(b), "password_hash") || strings.Contains(string(b), "$2a$") {
		t.Errorf("result leaks password hash: %s", b)
	}
}

func TestRegisterDuplicateIsStoreError(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "a@b.com", "password1")

	res := env.auth.RegisterAdmin(context.Background(), "A@B.com", "password2")
	assertKind(t, res, StoreError)
	if !errors.Is(res.Error, recordstore.ErrUniqueViolation) {
		t.Errorf("expected store cause to be reachable, got %v", res.Error)
	}
	if !strings.Contains(strings.ToLower(res.Error.Message), "unique") {
		t.Errorf("message = %q, want the store's message", res.Error.Message)
	}
}

func TestRegisterEmptyCreate(t *testing.T) {
	env, spy := newSpyEnv(t)
	spy.createFn = func() (*model.AdminUser, error) { return nil, nil }

	res := env.auth.RegisterAdmin(context.Background(), "a@b.com", "password1")
	assertKind(t, res, StoreError)
	if res.Error.Message != "creation did not return a record" {
		t.Errorf("message = %q", res.Error.Message)
	}
}

func TestRegisterStoreMessageVerbatim(t *testing.T) {
	env, spy := newSpyEnv(t)
	spy.createFn = func() (*model.AdminUser, error) {
		return nil, errors.New("permission denied for relation admin_users")
	}

	res := env.auth.RegisterAdmin(context.Background(), "a@b.com", "password1")
	assertKind(t, res, StoreError)
	if res.Error.Message != "permission denied for relation admin_users" {
		t.Errorf("message = %q", res.Error.Message)
	}
}

func TestLoginInactiveAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := env.register(t, "a@b.com", "password1")
	if err := env.store.Update(ctx, repo.AdminUsersTable, recordstore.Row{"is_active": false}, "id", user.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	res := env.auth.LoginAdmin(ctx, "a@b.com", "password1")
	assertKind(t, res, AccountInactive)
	if env.auth.IsLoggedIn() {
		t.Error("inactive login must not create a session")
	}
}

func TestLoginFailuresIndistinguishable(t *testing.T) {
	env, spy := newSpyEnv(t)
	ctx := context.Background()
	env.register(t, "a@b.com", "password1")

	unknown := env.auth.LoginAdmin(ctx, "nobody@b.com", "password1")
	wrong := env.auth.LoginAdmin(ctx, "a@b.com", "wrong-password")

	spy.findFn = func() (*model.AdminUser, error) { return nil, errors.New("connection reset") }
	broken := env.auth.LoginAdmin(ctx, "a@b.com", "password1")

	for _, res := range []Result{unknown, wrong, broken} {
		assertKind(t, res, InvalidCredentials)
	}
	if unknown.Error.Message != wrong.Error.Message || wrong.Error.Message != broken.Error.Message {
		t.Errorf("messages differ: %q / %q / %q", unknown.Error.Message, wrong.Error.Message, broken.Error.Message)
	}
	if env.auth.IsLoggedIn() {
		t.Error("failed logins must not create a session")
	}
}

func TestLoginLastLoginFailureIgnored(t *testing.T) {
	env, spy := newSpyEnv(t)
	env.register(t, "a@b.com", "password1")
	spy.touchErr = errors.New("write timeout")

	res := env.auth.LoginAdmin(context.Background(), "a@b.com", "password1")
	if !res.Success {
		t.Fatalf("login should succeed despite last_login failure: %v", res.Error)
	}
	if !env.auth.IsLoggedIn() {
		t.Error("session should be issued")
	}
}

func TestSessionLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.register(t, "a@b.com", "password1")

	if env.auth.IsLoggedIn() || env.auth.CurrentAdmin() != nil {
		t.Fatal("registration must not log in")
	}

	if res := env.auth.LoginAdmin(ctx, "a@b.com", "password1"); !res.Success {
		t.Fatalf("LoginAdmin: %v", res.Error)
	}
	if !env.auth.IsLoggedIn() {
		t.Error("IsLoggedIn should be true after login")
	}
	cur := env.auth.CurrentAdmin()
	if cur == nil || cur.UserID != user.ID || cur.Email != "a@b.com" {
		t.Errorf("CurrentAdmin = %+v", cur)
	}

	env.auth.Logout()
	if env.auth.IsLoggedIn() || env.auth.CurrentAdmin() != nil {
		t.Error("session should be gone after logout")
	}

	// Logging out twice is fine.
	env.auth.Logout()
}

func TestCorruptSessionReadsAsLoggedOut(t *testing.T) {
	env := newTestEnv(t)
	env.storage.Set(session.SlotName, base64.StdEncoding.EncodeToString([]byte("{not json")))

	if env.auth.CurrentAdmin() != nil {
		t.Error("CurrentAdmin should be nil for corrupt token")
	}
	if env.auth.IsLoggedIn() {
		t.Error("IsLoggedIn should be false for corrupt token")
	}
}

func TestChangePasswordFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "a@b.com", "password1")

	res := env.auth.ChangePassword(ctx, "a@b.com", "password1", "password2")
	if !res.Success {
		t.Fatalf("ChangePassword: %v", res.Error)
	}
	if res.User != nil {
		t.Error("ChangePassword success carries no user")
	}

	if res := env.auth.LoginAdmin(ctx, "a@b.com", "password2"); !res.Success {
		t.Errorf("login with new password: %v", res.Error)
	}
	assertKind(t, env.auth.LoginAdmin(ctx, "a@b.com", "password1"), InvalidCredentials)
}

func TestChangePasswordFailures(t *testing.T) {
	env, spy := newSpyEnv(t)
	ctx := context.Background()
	env.register(t, "a@b.com", "password1")

	assertKind(t, env.auth.ChangePassword(ctx, "nobody@b.com", "password1", "password2"), NotFound)
	assertKind(t, env.auth.ChangePassword(ctx, "a@b.com", "not-it-at-all", "password2"), InvalidCredentials)

	spy.findFn = func() (*model.AdminUser, error) { return nil, errors.New("boom") }
	assertKind(t, env.auth.ChangePassword(ctx, "a@b.com", "password1", "password2"), NotFound)
}

type panicRepo struct{ AdminRepository }

func (panicRepo) FindByEmail(context.Context, string) (*model.AdminUser, error) {
	panic("nil map write")
}

func (panicRepo) Create(context.Context, string, string) (*model.AdminUser, error) {
	panic("nil map write")
}

func TestPanicsBecomeInternalErrors(t *testing.T) {
	auth := NewAuthService(panicRepo{}, hasher.NewBcrypt(), session.New(session.NewMemoryStorage()), nil)
	ctx := context.Background()

	for name, res := range map[string]Result{
		"register": auth.RegisterAdmin(ctx, "a@b.com", "password1"),
		"login":    auth.LoginAdmin(ctx, "a@b.com", "password1"),
		"change":   auth.ChangePassword(ctx, "a@b.com", "password1", "password2"),
	} {
		t.Run(name, func(t *testing.T) {
			assertKind(t, res, Internal)
			if strings.Contains(res.Error.Message, "nil map") {
				t.Errorf("panic value leaked into message: %q", res.Error.Message)
			}
		})
	}
}

func TestWithSessionIsolation(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "a@b.com", "password1")

	scoped := env.auth.WithSession(session.New(session.NewMemoryStorage()))
	if res := scoped.LoginAdmin(context.Background(), "a@b.com", "password1"); !res.Success {
		t.Fatalf("LoginAdmin: %v", res.Error)
	}
	if !scoped.IsLoggedIn() {
		t.Error("scoped service should be logged in")
	}
	if env.auth.IsLoggedIn() {
		t.Error("original service session must be untouched")
	}
}

func TestWithRepositoryKeepsSession(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "a@b.com", "password1")

	offline := NewAuthService(panicRepo{}, hasher.NewBcrypt(), session.New(env.storage), nil)
	online := offline.WithRepository(env.repo)
	if res := online.LoginAdmin(context.Background(), "a@b.com", "password1"); !res.Success {
		t.Fatalf("LoginAdmin: %v", res.Error)
	}
	if !offline.IsLoggedIn() {
		t.Error("both copies share the session slot")
	}
	offline.Logout()
	if online.IsLoggedIn() {
		t.Error("logout through the original must clear the shared slot")
	}
}

func TestAuthErrorIs(t *testing.T) {
	err := error(newError(InvalidCredentials, msgInvalidCredentials))
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Error("expected errors.Is(err, ErrInvalidCredentials)")
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("InvalidCredentials must not match ErrNotFound")
	}

	b, _ := json.Marshal(newError(AccountInactive, msgAccountInactive))
	if !strings.Contains(string(b), `"kind":"account_inactive"`) {
		t.Errorf("kind not serialized by name: %s", b)
	}
}
