package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/faucetdb/packetdesk/internal/recordstore"
)

func newTestRepo(t *testing.T) *AdminUserRepo {
	t.Helper()
	store, err := recordstore.NewMemoryStore(context.Background())
	if err != nil {
		t.Fatalf("NewMemoryStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return NewAdminUserRepo(store)
}

// stubStore returns canned results for each operation.
type stubStore struct {
	insertRow recordstore.Row
	insertErr error
	selectRow recordstore.Row
	selectErr error
	updateErr error

	lastField string
	lastValue interface{}
	lastPatch recordstore.Row
}

func (s *stubStore) Insert(_ context.Context, _ string, _ recordstore.Row) (recordstore.Row, error) {
	return s.insertRow, s.insertErr
}

func (s *stubStore) SelectByEquality(_ context.Context, _, field string, value interface{}) (recordstore.Row, error) {
	s.lastField, s.lastValue = field, value
	return s.selectRow, s.selectErr
}

func (s *stubStore) Update(_ context.Context, _ string, patch recordstore.Row, field string, value interface{}) error {
	s.lastPatch, s.lastField, s.lastValue = patch, field, value
	return s.updateErr
}

func (s *stubStore) Ping(context.Context) error { return nil }
func (s *stubStore) Close() error               { return nil }

func TestCreateAndFind(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	created, err := r.Create(ctx, "  Admin@Example.COM ", "$2a$10$hash")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == "" {
		t.Error("expected generated ID")
	}
	if created.Email != "admin@example.com" {
		t.Errorf("Email = %q, want normalized address", created.Email)
	}
	if !created.IsActive {
		t.Error("new admins should be active")
	}
	if created.LastLogin != nil {
		t.Error("new admins should have no last login")
	}
	if created.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}

	found, err := r.FindByEmail(ctx, "ADMIN@example.com")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if found == nil || found.ID != created.ID {
		t.Fatalf("FindByEmail returned %+v, want ID %s", found, created.ID)
	}
	if found.PasswordHash != "$2a$10$hash" {
		t.Errorf("PasswordHash = %q", found.PasswordHash)
	}
}

func TestCreateDuplicateEmail(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	if _, err := r.Create(ctx, "a@b.com", "h1"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	_, err := r.Create(ctx, "A@B.com", "h2")
	if !errors.Is(err, recordstore.ErrUniqueViolation) {
		t.Fatalf("expected ErrUniqueViolation, got %v", err)
	}
}

func TestFindByEmailMissing(t *testing.T) {
	r := newTestRepo(t)
	admin, err := r.FindByEmail(context.Background(), "nobody@example.com")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if admin != nil {
		t.Errorf("expected nil, got %+v", admin)
	}
}

func TestTouchLastLogin(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	created, err := r.Create(ctx, "a@b.com", "h")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if err := r.TouchLastLogin(ctx, created.ID, at); err != nil {
		t.Fatalf("TouchLastLogin: %v", err)
	}

	found, err := r.FindByEmail(ctx, "a@b.com")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if found.LastLogin == nil || !found.LastLogin.Equal(at) {
		t.Errorf("LastLogin = %v, want %v", found.LastLogin, at)
	}
}

func TestUpdatePasswordHash(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	created, err := r.Create(ctx, "a@b.com", "old")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := r.UpdatePasswordHash(ctx, created.ID, "new"); err != nil {
		t.Fatalf("UpdatePasswordHash: %v", err)
	}
	found, _ := r.FindByEmail(ctx, "a@b.com")
	if found.PasswordHash != "new" {
		t.Errorf("PasswordHash = %q, want new", found.PasswordHash)
	}
}

func TestCreateEmptyInsert(t *testing.T) {
	r := NewAdminUserRepo(&stubStore{})
	_, err := r.Create(context.Background(), "a@b.com", "h")
	if !errors.Is(err, ErrNoRecord) {
		t.Fatalf("expected ErrNoRecord, got %v", err)
	}
	if err.Error() != "creation did not return a record" {
		t.Errorf("message = %q", err.Error())
	}
}

func TestStoreErrorsPassThrough(t *testing.T) {
	storeErr := errors.New("permission denied for table admin_users")
	r := NewAdminUserRepo(&stubStore{insertErr: storeErr, selectErr: storeErr, updateErr: storeErr})
	ctx := context.Background()

	if _, err := r.Create(ctx, "a@b.com", "h"); err != storeErr {
		t.Errorf("Create err = %v, want store error unchanged", err)
	}
	if _, err := r.FindByEmail(ctx, "a@b.com"); err != storeErr {
		t.Errorf("FindByEmail err = %v, want store error unchanged", err)
	}
	if err := r.UpdatePasswordHash(ctx, "01A", "h"); err != storeErr {
		t.Errorf("UpdatePasswordHash err = %v, want store error unchanged", err)
	}
}

func TestFindByEmailNormalizesLookup(t *testing.T) {
	stub := &stubStore{}
	r := NewAdminUserRepo(stub)
	r.FindByEmail(context.Background(), " Mixed@Case.ORG ")
	if stub.lastField != "email" || stub.lastValue != "mixed@case.org" {
		t.Errorf("lookup = %s=%v", stub.lastField, stub.lastValue)
	}
}

func TestRowFromRESTShapes(t *testing.T) {
	stub := &stubStore{selectRow: recordstore.Row{
		"id":            "01A",
		"email":         "a@b.com",
		"password_hash": "h",
		"is_active":     float64(0),
		"created_at":    "2025-01-02T03:04:05Z",
		"last_login":    nil,
	}}
	admin, err := NewAdminUserRepo(stub).FindByEmail(context.Background(), "a@b.com")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if admin.IsActive {
		t.Error("is_active 0 should decode as false")
	}
	want := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	if !admin.CreatedAt.Equal(want) {
		t.Errorf("CreatedAt = %v, want %v", admin.CreatedAt, want)
	}
}

func TestRowMissingEmail(t *testing.T) {
	stub := &stubStore{selectRow: recordstore.Row{"id": "01A", "is_active": true}}
	if _, err := NewAdminUserRepo(stub).FindByEmail(context.Background(), "a@b.com"); err == nil {
		t.Error("expected decode error for row without email")
	}
}
