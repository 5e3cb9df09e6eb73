package handler

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/faucetdb/packetdesk/internal/model"
	"github.com/faucetdb/packetdesk/internal/packet"
)

// PacketBuilder assembles packets. *packet.Client implements it.
type PacketBuilder interface {
	Build(ctx context.Context, req model.PacketRequest) (*model.Packet, error)
}

// DocumentLister enumerates selectable documents. *packet.DirSource
// implements it.
type DocumentLister interface {
	List(ctx context.Context) ([]string, error)
}

// PacketHandler serves PDF packet generation.
type PacketHandler struct {
	builder  PacketBuilder
	docs     DocumentLister
	validate *validator.Validate
}

// NewPacketHandler creates a new PacketHandler. docs may be nil, in which
// case document listing answers 404.
func NewPacketHandler(builder PacketBuilder, docs DocumentLister) *PacketHandler {
	return &PacketHandler{
		builder:  builder,
		docs:     docs,
		validate: newValidator(),
	}
}

// ListDocuments returns the names of documents that can go into a packet.
// GET /api/v1/packets/documents
func (h *PacketHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	if h.docs == nil {
		writeError(w, http.StatusNotFound, "Document listing is not available")
		return
	}
	names, err := h.docs.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list documents: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"resource": stringsToResources("name", names),
		"meta":     map[string]interface{}{"count": len(names)},
	})
}

// Build generates a packet and streams the PDF back, inline for preview or
// as an attachment for download.
// POST /api/v1/packets?disposition=inline|attachment
func (h *PacketHandler) Build(w http.ResponseWriter, r *http.Request) {
	disposition, err := packet.ParseDisposition(r.URL.Query().Get("disposition"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req model.PacketRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	p, err := h.builder.Build(r.Context(), req)
	if err != nil {
		status, msg := classifyPacketError(err)
		writeError(w, status, msg)
		return
	}

	packet.Serve(w, p, disposition)
}

// classifyPacketError maps packet client errors to an HTTP status and a
// client-facing message.
func classifyPacketError(err error) (int, string) {
	var werr *packet.WorkerError
	var nerr net.Error
	switch {
	case errors.Is(err, packet.ErrDocumentNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, packet.ErrTitleRequired),
		errors.Is(err, packet.ErrInvalidName),
		errors.Is(err, packet.ErrNoDocuments),
		errors.Is(err, packet.ErrDuplicateDocument),
		errors.Is(err, packet.ErrPacketTooLarge):
		return http.StatusBadRequest, err.Error()
	case errors.As(err, &werr):
		return http.StatusBadGateway, "PDF worker error: " + werr.Message
	case errors.Is(err, packet.ErrNotPDF), errors.Is(err, packet.ErrResponseTooLarge):
		return http.StatusBadGateway, err.Error()
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &nerr) && nerr.Timeout():
		return http.StatusGatewayTimeout, "PDF worker timed out"
	default:
		return http.StatusBadGateway, "Failed to generate packet: " + err.Error()
	}
}

// stringsToResources converts a list of strings into the resource array
// format: [{"key": "value1"}, {"key": "value2"}, ...].
func stringsToResources(key string, values []string) []map[string]interface{} {
	out := make([]map[string]interface{}, len(values))
	for i, v := range values {
		out[i] = map[string]interface{}{key: v}
	}
	return out
}
