// Package backend talks JSON to the remote REST services.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Request describes one call relative to the client's base URL.
type Request struct {
	Method    string
	Path      string
	Query     url.Values
	Body      any            // JSON-encoded when non-nil
	Multipart *MultipartBody // takes precedence over Body
	Timeout   time.Duration  // zero means the transport default
}

// MultipartBody is kept in memory so a request can be replayed after a token
// refresh.
type MultipartBody struct {
	FileField string
	FileName  string
	Content   []byte
	Fields    map[string]string
}

type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Err converts a non-2xx response into a *ServerValidationError.
func (r *Response) Err() error {
	if r.OK() {
		return nil
	}
	return &ServerValidationError{Status: r.StatusCode, Messages: extractMessages(r.Body)}
}

// Decode unmarshals the body into v. Empty bodies are left alone.
func (r *Response) Decode(v any) error {
	if v == nil || len(bytes.TrimSpace(r.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}
	return nil
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient builds a client for baseURL. A zero timeout leaves requests bound
// only by their context.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

func (c *Client) BaseURL() string { return c.baseURL }

// Do performs req, attaching a bearer token when token is non-empty. Any HTTP
// status is returned as a Response; only transport failures produce an error.
func (c *Client) Do(ctx context.Context, req Request, token string) (*Response, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	op := req.Method + " " + req.Path
	httpReq, err := c.newHTTPRequest(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to build request %s: %w", op, err)
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Warn("backend request failed", "op", op, "error", err)
		return nil, &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Op: op, Err: fmt.Errorf("read body: %w", err)}
	}

	c.logger.Debug("backend request", "op", op, "status", resp.StatusCode, "duration", time.Since(start))
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

// DoJSON performs req and decodes a 2xx body into out. Non-2xx responses are
// returned as *ServerValidationError.
func (c *Client) DoJSON(ctx context.Context, req Request, token string, out any) error {
	resp, err := c.Do(ctx, req, token)
	if err != nil {
		return err
	}
	if err := resp.Err(); err != nil {
		return err
	}
	return resp.Decode(out)
}

func (c *Client) newHTTPRequest(ctx context.Context, req Request) (*http.Request, error) {
	target := c.baseURL + "/" + strings.TrimLeft(req.Path, "/")
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var (
		body        io.Reader
		contentType string
	)
	switch {
	case req.Multipart != nil:
		buf, ct, err := req.Multipart.encode()
		if err != nil {
			return nil, err
		}
		body, contentType = buf, ct
	case req.Body != nil:
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		body, contentType = bytes.NewReader(data), "application/json"
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/json")
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	return httpReq, nil
}

func (m *MultipartBody) encode() (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range m.Fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", k, err)
		}
	}
	field := m.FileField
	if field == "" {
		field = "file"
	}
	part, err := w.CreateFormFile(field, m.FileName)
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(m.Content); err != nil {
		return nil, "", fmt.Errorf("write form file: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
