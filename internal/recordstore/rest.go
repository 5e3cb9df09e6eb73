package recordstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/faucetdb/packetdesk/internal/query"
)

const defaultRESTTimeout = 30 * time.Second

// RESTStore implements Store against a faucet-style table API:
//
//	GET   {base}/api/v1/{service}/_table/{table}?filter=...&limit=1
//	POST  {base}/api/v1/{service}/_table/{table}   {"resource":[row]}
//	PATCH {base}/api/v1/{service}/_table/{table}?filter=...
//
// Requests carry the API key in X-API-Key.
type RESTStore struct {
	baseURL string
	service string
	apiKey  string
	client  *http.Client
}

// APIError is a non-2xx response from the table API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("record api: %d: %s", e.Status, e.Message)
}

// NewRESTStore builds a client for cfg.BaseURL and cfg.Service.
func NewRESTStore(cfg Config) (*RESTStore, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if cfg.Service == "" {
		return nil, fmt.Errorf("service name is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultRESTTimeout
	}
	return &RESTStore{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		service: cfg.Service,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

func openREST(_ context.Context, cfg Config) (Store, error) {
	return NewRESTStore(cfg)
}

type resourceEnvelope struct {
	Resource []Row `json:"resource"`
}

// Insert implements Store.
func (s *RESTStore) Insert(ctx context.Context, table string, row Row) (Row, error) {
	endpoint, err := s.tableURL(table, nil)
	if err != nil {
		return nil, err
	}
	var out resourceEnvelope
	if err := s.do(ctx, http.MethodPost, endpoint, resourceEnvelope{Resource: []Row{row}}, &out); err != nil {
		return nil, err
	}
	if len(out.Resource) == 0 {
		return nil, nil
	}
	return out.Resource[0], nil
}

// SelectByEquality implements Store.
func (s *RESTStore) SelectByEquality(ctx context.Context, table, field string, value interface{}) (Row, error) {
	filter, err := query.EqualityFilter(field, value)
	if err != nil {
		return nil, err
	}
	endpoint, err := s.tableURL(table, url.Values{"filter": {filter}, "limit": {"1"}})
	if err != nil {
		return nil, err
	}
	var out resourceEnvelope
	if err := s.do(ctx, http.MethodGet, endpoint, nil, &out); err != nil {
		return nil, err
	}
	if len(out.Resource) == 0 {
		return nil, nil
	}
	return out.Resource[0], nil
}

// Update implements Store.
func (s *RESTStore) Update(ctx context.Context, table string, patch Row, field string, value interface{}) error {
	if len(patch) == 0 {
		return fmt.Errorf("at least one field to update is required")
	}
	filter, err := query.EqualityFilter(field, value)
	if err != nil {
		return err
	}
	endpoint, err := s.tableURL(table, url.Values{"filter": {filter}})
	if err != nil {
		return err
	}
	return s.do(ctx, http.MethodPatch, endpoint, resourceEnvelope{Resource: []Row{patch}}, nil)
}

// Ping implements Store by calling the backend's /healthz.
func (s *RESTStore) Ping(ctx context.Context) error {
	return s.do(ctx, http.MethodGet, s.baseURL+"/healthz", nil, nil)
}

// Close implements Store.
func (s *RESTStore) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func (s *RESTStore) tableURL(table string, params url.Values) (string, error) {
	if err := query.ValidateIdentifier(table); err != nil {
		return "", fmt.Errorf("table: %w", err)
	}
	u := s.baseURL + "/api/v1/" + url.PathEscape(s.service) + "/_table/" + table
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u, nil
}

func (s *RESTStore) do(ctx context.Context, method, endpoint string, body, out interface{}) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, rdr)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("X-API-Key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode, Message: errorMessage(data)}
		if resp.StatusCode == http.StatusConflict {
			return &uniqueError{err: apiErr}
		}
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// errorMessage extracts the message from faucet's error envelope,
// falling back to the raw body.
func errorMessage(data []byte) string {
	var env struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &env); err == nil && env.Error.Message != "" {
		return env.Error.Message
	}
	msg := strings.TrimSpace(string(data))
	if msg == "" {
		return "no response body"
	}
	return msg
}
