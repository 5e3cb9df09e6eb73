package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/faucetdb/packetdesk/internal/model"
	"github.com/faucetdb/packetdesk/internal/session"
)

type fakeSessions struct{ current *session.Current }

func (f *fakeSessions) IsLoggedIn() bool { return f.current != nil }
func (f *fakeSessions) CurrentAdmin() *session.Current { return f.current }

type fakeBuilder struct {
	got model.PacketRequest
	err error
}

func (f *fakeBuilder) Build(ctx context.Context, req model.PacketRequest) (*model.Packet, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &model.Packet{
		ID:          "01PACKET",
		Title:       req.Title,
		Filename:    "board-pack.pdf",
		Data:        []byte("%PDF-1.7 packet"),
		GeneratedAt: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
	}, nil
}

type fakeDocs []string

func (f fakeDocs) List(context.Context) ([]string, error) { return f, nil }

func loggedIn() *fakeSessions {
	return &fakeSessions{current: &session.Current{UserID: "01ADMIN", Email: "a@example.com", IssuedAt: time.Now()}}
}

func callRequest(args map[string]interface{}) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if res == nil || len(res.Content) == 0 {
		t.Fatal("empty tool result")
	}
	tc, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, want TextContent", res.Content[0])
	}
	return tc.Text
}

func TestBuildRequiresSession(t *testing.T) {
	builder := &fakeBuilder{}
	s := NewMCPServer(Deps{Sessions: &fakeSessions{}, Packets: builder, OutDir: t.TempDir()}, "test", nil)

	res, err := s.handleBuild(context.Background(), callRequest(map[string]interface{}{
		"title": "Board Pack", "documents": []interface{}{"agenda.pdf"},
	}))
	if err != nil {
		t.Fatalf("handleBuild: %v", err)
	}
	if !res.IsError || !strings.Contains(resultText(t, res), "Not logged in") {
		t.Errorf("result = %+v, want not-logged-in error", res)
	}
	if builder.got.Title != "" {
		t.Error("builder must not be called without a session")
	}
}

func TestBuildWritesPacket(t *testing.T) {
	out := t.TempDir()
	builder := &fakeBuilder{}
	s := NewMCPServer(Deps{Sessions: loggedIn(), Packets: builder, OutDir: out}, "test", nil)

	res, err := s.handleBuild(context.Background(), callRequest(map[string]interface{}{
		"title": "Board Pack", "documents": []interface{}{"agenda.pdf", "minutes.txt"},
	}))
	if err != nil {
		t.Fatalf("handleBuild: %v", err)
	}
	if res.IsError {
		t.Fatalf("tool error: %s", resultText(t, res))
	}
	if got := strings.Join(builder.got.Documents, ","); got != "agenda.pdf,minutes.txt" {
		t.Errorf("documents = %s, order must be kept", got)
	}

	var body struct {
		ID   string `json:"id"`
		Path string `json:"path"`
	}
	if err := json.Unmarshal([]byte(resultText(t, res)), &body); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if body.ID != "01PACKET" {
		t.Errorf("id = %q", body.ID)
	}
	if filepath.Dir(body.Path) != out {
		t.Errorf("path = %q, want it under %s", body.Path, out)
	}
	data, err := os.ReadFile(body.Path)
	if err != nil || string(data) != "%PDF-1.7 packet" {
		t.Errorf("written packet = %q, %v", data, err)
	}
}

func TestBuildArgumentErrors(t *testing.T) {
	tests := []struct {
		name    string
		deps    Deps
		args    map[string]interface{}
		wantMsg string
	}{
		{"no worker", Deps{Sessions: loggedIn()}, map[string]interface{}{"title": "x", "documents": []interface{}{"a.pdf"}}, "worker.url"},
		{"no title", Deps{Sessions: loggedIn(), Packets: &fakeBuilder{}}, map[string]interface{}{"documents": []interface{}{"a.pdf"}}, `"title"`},
		{"no documents", Deps{Sessions: loggedIn(), Packets: &fakeBuilder{}}, map[string]interface{}{"title": "x"}, `"documents"`},
		{"build failure", Deps{Sessions: loggedIn(), Packets: &fakeBuilder{err: errors.New("worker down")}}, map[string]interface{}{"title": "x", "documents": []interface{}{"a.pdf"}}, "worker down"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.deps.OutDir = t.TempDir()
			s := NewMCPServer(tt.deps, "test", nil)
			res, err := s.handleBuild(context.Background(), callRequest(tt.args))
			if err != nil {
				t.Fatalf("handleBuild: %v", err)
			}
			if !res.IsError {
				t.Fatal("expected a tool error")
			}
			if msg := resultText(t, res); !strings.Contains(msg, tt.wantMsg) {
				t.Errorf("message = %q, want it to contain %q", msg, tt.wantMsg)
			}
		})
	}
}

func TestAuthStatus(t *testing.T) {
	s := NewMCPServer(Deps{Sessions: &fakeSessions{}}, "test", nil)
	res, _ := s.handleAuthStatus(context.Background(), callRequest(nil))
	if !strings.Contains(resultText(t, res), `"logged_in": false`) {
		t.Errorf("status = %s", resultText(t, res))
	}

	s = NewMCPServer(Deps{Sessions: loggedIn()}, "test", nil)
	res, _ = s.handleAuthStatus(context.Background(), callRequest(nil))
	text := resultText(t, res)
	if !strings.Contains(text, `"logged_in": true`) || !strings.Contains(text, "a@example.com") {
		t.Errorf("status = %s", text)
	}
}

func TestDocsToolAndResource(t *testing.T) {
	s := NewMCPServer(Deps{Sessions: &fakeSessions{}, Documents: fakeDocs{"agenda.pdf", "reports/q1.csv"}}, "test", nil)

	res, err := s.handleDocs(context.Background(), callRequest(nil))
	if err != nil || res.IsError {
		t.Fatalf("handleDocs: %v %+v", err, res)
	}
	if !strings.Contains(resultText(t, res), "reports/q1.csv") {
		t.Errorf("docs = %s", resultText(t, res))
	}

	contents, err := s.handleDocumentsResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatalf("handleDocumentsResource: %v", err)
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok || tc.URI != documentsURI || !strings.Contains(tc.Text, "agenda.pdf") {
		t.Errorf("resource = %+v", contents[0])
	}

	s = NewMCPServer(Deps{Sessions: &fakeSessions{}}, "test", nil)
	if res, _ := s.handleDocs(context.Background(), callRequest(nil)); !res.IsError {
		t.Error("expected an error without a documents directory")
	}
}

func TestAnnotations(t *testing.T) {
	if ann := readOnlyAnnotation(); ann.ReadOnlyHint == nil || !*ann.ReadOnlyHint {
		t.Error("readOnlyAnnotation should set ReadOnlyHint=true")
	}
	if ann := mutatingAnnotation(); ann.ReadOnlyHint == nil || *ann.ReadOnlyHint {
		t.Error("mutatingAnnotation should set ReadOnlyHint=false")
	}
}
