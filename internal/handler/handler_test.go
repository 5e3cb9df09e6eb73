package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/faucetdb/packetdesk/internal/hasher"
	"github.com/faucetdb/packetdesk/internal/model"
	"github.com/faucetdb/packetdesk/internal/recordstore"
	"github.com/faucetdb/packetdesk/internal/repo"
	"github.com/faucetdb/packetdesk/internal/server/middleware"
	"github.com/faucetdb/packetdesk/internal/service"
	"github.com/faucetdb/packetdesk/internal/session"
)

const (
	testJWTSecret = "test-secret-for-handler-tests"
	testEmail     = "admin@example.com"
	testPassword  = "supersecretpassword"
)

// stubBuilder returns a canned packet or error and records the request.
type stubBuilder struct {
	packet *model.Packet
	err    error
	got    *model.PacketRequest
}

func (s *stubBuilder) Build(_ context.Context, req model.PacketRequest) (*model.Packet, error) {
	s.got = &req
	if s.err != nil {
		return nil, s.err
	}
	return s.packet, nil
}

type stubLister []string

func (s stubLister) List(context.Context) ([]string, error) { return s, nil }

// testEnv holds shared state for handler integration tests.
type testEnv struct {
	store   *recordstore.SQLStore
	repo    *repo.AdminUserRepo
	authSvc *service.AuthService
	tokens  *service.TokenIssuer
	builder *stubBuilder
	router  chi.Router
}

// newTestEnv creates a fresh test environment with an in-memory record
// store and a Chi router with the admin and packet routes mounted.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store, err := recordstore.NewMemoryStore(context.Background())
	if err != nil {
		t.Fatalf("recordstore.NewMemoryStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	admins := repo.NewAdminUserRepo(store)
	authSvc := service.NewAuthService(admins, hasher.NewBcrypt(), session.New(session.NewMemoryStorage()), nil)
	tokens := service.NewTokenIssuer(testJWTSecret, time.Hour)
	builder := &stubBuilder{packet: &model.Packet{
		ID:       "01JPACKET",
		Title:    "Board Pack",
		Filename: "board-pack.pdf",
		Data:     []byte("%PDF-1.7\nfake"),
	}}

	adminHandler := NewAdminHandler(authSvc, tokens)
	packetHandler := NewPacketHandler(builder, stubLister{"agenda.pdf", "reports/q1.csv"})

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/admin/register", adminHandler.Register)
		r.Post("/admin/session", adminHandler.Login)
		r.Delete("/admin/session", adminHandler.Logout)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(tokens))
			r.Get("/admin/me", adminHandler.Me)
			r.Put("/admin/password", adminHandler.ChangePassword)
			r.Get("/packets/documents", packetHandler.ListDocuments)
			r.Post("/packets", packetHandler.Build)
		})
	})

	return &testEnv{
		store:   store,
		repo:    admins,
		authSvc: authSvc,
		tokens:  tokens,
		builder: builder,
		router:  r,
	}
}

// seedAdmin registers the default admin account and returns it.
func (e *testEnv) seedAdmin(t *testing.T) *model.PublicAdmin {
	t.Helper()
	res := e.authSvc.RegisterAdmin(context.Background(), testEmail, testPassword)
	if !res.Success {
		t.Fatalf("seedAdmin: %v", res.Error)
	}
	return res.User
}

// bearer returns a valid token for admin.
func (e *testEnv) bearer(t *testing.T, admin *model.PublicAdmin) string {
	t.Helper()
	tok, _, err := e.tokens.Issue(admin)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return tok
}

// do executes an HTTP request against the test router and returns the recorder.
func (e *testEnv) do(t *testing.T, method, path string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	return e.doAuth(t, method, path, "", body)
}

// doAuth is do with an optional bearer token.
func (e *testEnv) doAuth(t *testing.T, method, path, token string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func toJSON(t *testing.T, v interface{}) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(v); err != nil {
		t.Fatalf("toJSON: %v", err)
	}
	return buf
}

func assertStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Errorf("status = %d, want %d; body = %s", rr.Code, want, rr.Body.String())
	}
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decodeJSON: %v; body = %s", err, rr.Body.String())
	}
}

// decodeError decodes the standard error envelope.
func decodeError(t *testing.T, rr *httptest.ResponseRecorder) model.ErrorDetail {
	t.Helper()
	var resp model.ErrorResponse
	decodeJSON(t, rr, &resp)
	return resp.Error
}
