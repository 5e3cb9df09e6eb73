package packet

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/faucetdb/packetdesk/internal/model"
)

func testPacket() *model.Packet {
	return &model.Packet{
		ID:       "01J9ZK3W2C8Q6V5T4R3P2N1M0K",
		Title:    "Board pack",
		Filename: "board-pack.pdf",
		Data:     []byte("%PDF-1.7 body"),
	}
}

func TestFilename(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Board pack", "board-pack.pdf"},
		{"  Q1 / Q2 -- Results!! ", "q1-q2-results.pdf"},
		{"Ünïcödé", "n-c-d.pdf"},
		{"", "packet.pdf"},
		{"!!!", "packet.pdf"},
		{"../../etc/passwd", "etc-passwd.pdf"},
		{strings.Repeat("a", 200), strings.Repeat("a", 80) + ".pdf"},
	}
	for _, tt := range tests {
		if got := Filename(tt.title); got != tt.want {
			t.Errorf("Filename(%q) = %q, want %q", tt.title, got, tt.want)
		}
	}
}

func TestParseDisposition(t *testing.T) {
	for in, want := range map[string]Disposition{
		"":           Inline,
		"inline":     Inline,
		"PREVIEW":    Inline,
		"attachment": Attachment,
		"download":   Attachment,
	} {
		got, err := ParseDisposition(in)
		if err != nil || got != want {
			t.Errorf("ParseDisposition(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseDisposition("print"); err == nil {
		t.Error("expected error for unknown disposition")
	}
}

func TestServe(t *testing.T) {
	tests := []struct {
		d    Disposition
		want string
	}{
		{Inline, `inline; filename=board-pack.pdf`},
		{Attachment, `attachment; filename=board-pack.pdf`},
	}
	for _, tt := range tests {
		t.Run(string(tt.d), func(t *testing.T) {
			rec := httptest.NewRecorder()
			Serve(rec, testPacket(), tt.d)

			if rec.Code != http.StatusOK {
				t.Errorf("status = %d", rec.Code)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
				t.Errorf("Content-Type = %q", ct)
			}
			if cd := rec.Header().Get("Content-Disposition"); cd != tt.want {
				t.Errorf("Content-Disposition = %q, want %q", cd, tt.want)
			}
			if rec.Header().Get("X-Packet-ID") == "" {
				t.Error("missing X-Packet-ID")
			}
			if rec.Body.String() != "%PDF-1.7 body" {
				t.Errorf("body = %q", rec.Body.String())
			}
		})
	}
}

func TestWriteFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	path, err := WriteFile(testPacket(), dir)
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if path != filepath.Join(dir, "board-pack.pdf") {
		t.Errorf("path = %q", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "%PDF-1.7 body" {
		t.Errorf("file contents = %q", data)
	}

	// A hostile file name cannot leave dir.
	p := testPacket()
	p.Filename = "../../escape.pdf"
	path, err = WriteFile(p, dir)
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Errorf("file written outside dir: %s", path)
	}
}

func TestDataURL(t *testing.T) {
	got := DataURL(testPacket())
	prefix := "data:application/pdf;base64,"
	if !strings.HasPrefix(got, prefix) {
		t.Fatalf("DataURL = %q", got)
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(got, prefix))
	if err != nil || string(raw) != "%PDF-1.7 body" {
		t.Errorf("decoded = %q, %v", raw, err)
	}
}
