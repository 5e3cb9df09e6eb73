// Package packet assembles selected documents into a single PDF by handing
// them to a remote document-generation worker, and delivers the result.
package packet

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/faucetdb/packetdesk/internal/model"
)

const (
	DefaultTimeout  = 60 * time.Second
	DefaultMaxBytes = 25 << 20

	maxResponseBytes = 100 << 20
	pdfMagic         = "%PDF-"
	maxWorkerMessage = 512
)

var (
	ErrTitleRequired     = errors.New("title is required")
	ErrNoDocuments       = errors.New("at least one document is required")
	ErrDuplicateDocument = errors.New("duplicate document")
	ErrPacketTooLarge    = errors.New("selected documents exceed the size limit")
	ErrNotPDF            = errors.New("worker response is not a PDF")
	ErrResponseTooLarge  = errors.New("worker response exceeds the size limit")
)

// WorkerError is a non-2xx response from the generation worker.
type WorkerError struct {
	Status  int
	Message string
}

func (e *WorkerError) Error() string {
	return fmt.Sprintf("pdf worker returned %d: %s", e.Status, e.Message)
}

// Config configures a Client.
type Config struct {
	WorkerURL string        // base URL; requests go to <WorkerURL>/generate
	Token     string        // optional bearer token
	Timeout   time.Duration // per request
	MaxBytes  int64         // total raw size of gathered documents
}

// Client gathers documents and calls the worker. One attempt per call.
type Client struct {
	cfg      Config
	endpoint string
	source   Source
	http     *http.Client
	logger   *slog.Logger
	now      func() time.Time
	maxResp  int64

	// RequestID returns the correlation ID sent as X-Request-ID. The
	// default generates a fresh UUID v7.
	RequestID func(ctx context.Context) string
}

// NewClient validates cfg and returns a Client. A nil logger discards output.
func NewClient(cfg Config, source Source, logger *slog.Logger) (*Client, error) {
	if cfg.WorkerURL == "" {
		return nil, fmt.Errorf("worker URL is required")
	}
	u, err := url.Parse(cfg.WorkerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid worker URL %q", cfg.WorkerURL)
	}
	if source == nil {
		return nil, fmt.Errorf("document source is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Client{
		cfg:      cfg,
		endpoint: strings.TrimRight(cfg.WorkerURL, "/") + "/generate",
		source:   source,
		http:     &http.Client{Timeout: cfg.Timeout},
		logger:   logger,
		now:      time.Now,
		maxResp:  maxResponseBytes,
		RequestID: func(context.Context) string {
			return uuid.Must(uuid.NewV7()).String()
		},
	}, nil
}

// Gather fetches the named documents in order. Names must be non-empty,
// unique, and their combined size must fit in MaxBytes.
func (c *Client) Gather(ctx context.Context, names []string) ([]*model.Document, error) {
	if len(names) == 0 {
		return nil, ErrNoDocuments
	}

	seen := make(map[string]bool, len(names))
	docs := make([]*model.Document, 0, len(names))
	var total int64
	for _, name := range names {
		doc, err := c.source.Fetch(ctx, name)
		if err != nil {
			return nil, err
		}
		if seen[doc.Name] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateDocument, doc.Name)
		}
		seen[doc.Name] = true

		total += int64(len(doc.Data))
		if total > c.cfg.MaxBytes {
			return nil, fmt.Errorf("%w (%d bytes)", ErrPacketTooLarge, c.cfg.MaxBytes)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

type generateDocument struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Content     string `json:"content"` // base64
}

type generateRequest struct {
	PacketID  string             `json:"packet_id"`
	Title     string             `json:"title"`
	Documents []generateDocument `json:"documents"`
}

// Build gathers req.Documents, posts them to the worker and returns the PDF.
func (c *Client) Build(ctx context.Context, req model.PacketRequest) (*model.Packet, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, ErrTitleRequired
	}

	docs, err := c.Gather(ctx, req.Documents)
	if err != nil {
		return nil, err
	}

	id := ulid.Make().String()
	payload := generateRequest{
		PacketID:  id,
		Title:     title,
		Documents: make([]generateDocument, len(docs)),
	}
	for i, d := range docs {
		payload.Documents[i] = generateDocument{
			Name:        d.Name,
			ContentType: d.ContentType,
			Content:     base64.StdEncoding.EncodeToString(d.Data),
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode packet request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build worker request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/pdf")
	if c.cfg.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	reqID := c.RequestID(ctx)
	if reqID != "" {
		httpReq.Header.Set("X-Request-ID", reqID)
	}

	start := c.now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call pdf worker: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResp+1))
	if err != nil {
		return nil, fmt.Errorf("read pdf worker response: %w", err)
	}
	if int64(len(data)) > c.maxResp {
		c.logger.Warn("pdf worker response too large",
			"packet_id", id,
			"request_id", reqID,
			"limit", c.maxResp,
		)
		return nil, ErrResponseTooLarge
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		werr := &WorkerError{Status: resp.StatusCode, Message: workerMessage(data, resp.Status)}
		c.logger.Warn("pdf worker failed",
			"packet_id", id,
			"request_id", reqID,
			"status", resp.StatusCode,
			"error", werr.Message,
		)
		return nil, werr
	}
	if !bytes.HasPrefix(data, []byte(pdfMagic)) {
		return nil, ErrNotPDF
	}

	c.logger.Info("packet generated",
		"packet_id", id,
		"request_id", reqID,
		"documents", len(docs),
		"bytes", len(data),
		"duration_ms", float64(c.now().Sub(start).Microseconds())/1000.0,
	)

	return &model.Packet{
		ID:          id,
		Title:       title,
		Filename:    Filename(title),
		Data:        data,
		GeneratedAt: c.now().UTC(),
	}, nil
}

// workerMessage pulls a message out of {"error":"..."} or
// {"error":{"message":"..."}}, falling back to the body text.
func workerMessage(data []byte, status string) string {
	var flat struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &flat); err == nil && flat.Error != "" {
		return flat.Error
	}
	var nested struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &nested); err == nil && nested.Error.Message != "" {
		return nested.Error.Message
	}
	if msg := strings.TrimSpace(string(data)); msg != "" {
		return truncateRunes(msg, maxWorkerMessage)
	}
	return status
}

// truncateRunes cuts s to at most n bytes without splitting a UTF-8
// sequence.
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
