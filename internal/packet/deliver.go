package packet

import (
	"encoding/base64"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"github.com/faucetdb/packetdesk/internal/model"
)

// Disposition controls whether a browser shows or saves a served packet.
type Disposition string

const (
	Inline     Disposition = "inline"     // preview
	Attachment Disposition = "attachment" // download
)

// ParseDisposition accepts "inline", "attachment", or "" (inline).
func ParseDisposition(s string) (Disposition, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "inline", "preview":
		return Inline, nil
	case "attachment", "download":
		return Attachment, nil
	default:
		return "", fmt.Errorf("invalid disposition %q (want inline or attachment)", s)
	}
}

// Filename derives a safe .pdf file name from a packet title.
func Filename(title string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(title) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	name := strings.TrimRight(b.String(), "-")
	if len(name) > 80 {
		name = strings.TrimRight(name[:80], "-")
	}
	if name == "" {
		name = "packet"
	}
	return name + ".pdf"
}

// WriteFile saves the packet into dir under its file name and returns the
// full path.
func WriteFile(p *model.Packet, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	name := p.Filename
	if name == "" {
		name = Filename(p.Title)
	}
	dest := filepath.Join(dir, filepath.Base(name))
	if err := os.WriteFile(dest, p.Data, 0644); err != nil {
		return "", fmt.Errorf("write packet: %w", err)
	}
	return dest, nil
}

// Serve writes the packet as application/pdf with the given disposition.
func Serve(w http.ResponseWriter, p *model.Packet, d Disposition) {
	if d == "" {
		d = Inline
	}
	name := p.Filename
	if name == "" {
		name = Filename(p.Title)
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Length", strconv.Itoa(len(p.Data)))
	w.Header().Set("Content-Disposition", mime.FormatMediaType(string(d), map[string]string{"filename": name}))
	w.Header().Set("X-Packet-ID", p.ID)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(p.Data)
}

// DataURL returns the packet as a data: URL for embedding in a page.
func DataURL(p *model.Packet) string {
	return "data:application/pdf;base64," + base64.StdEncoding.EncodeToString(p.Data)
}
