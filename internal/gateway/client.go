// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jeranaias/knowhub/internal/util"
)

// Configuration constants for the knowledge service API.
const (
	// DefaultBaseURL is the API base URL used when none is configured.
	DefaultBaseURL = "http://localhost:8080/api"

	// DefaultTimeout bounds each request.
	DefaultTimeout = 60 * time.Second

	// MaxResponseSize is the maximum allowed response body size.
	// SECURITY: Response size limit prevents memory exhaustion attacks.
	MaxResponseSize = 10 * 1024 * 1024 // 10MB limit

	// DefaultUserAgent identifies knowhub to the service.
	DefaultUserAgent = "knowhub"
)

// =============================================================================
// CREDENTIAL SOURCE
// =============================================================================

// CredentialSource is the gateway's view of the session store. The gateway
// never writes the credential; it only reads it and requests teardown.
type CredentialSource interface {
	// Token returns the current bearer token, if any.
	Token() (string, bool)
	// Invalidate tears the session down if token is still the current one.
	Invalidate(token string)
}

// =============================================================================
// REQUEST / RESPONSE
// =============================================================================

// Request describes one call to the service.
type Request struct {
	Method string
	Path   string // joined to the base URL, e.g. "/docs/list"

	// JSON is marshalled as the body when non-nil.
	JSON any
	// Form is sent as multipart/form-data when non-nil.
	Form *Form

	// Public calls (login, signup) carry no credential and never tear down
	// the session.
	Public bool
}

// Form is a multipart body with ordered text fields and one file part.
type Form struct {
	Fields    []FormField
	FileField string
	FileName  string
	File      io.Reader
}

// FormField is a single text part.
type FormField struct {
	Name  string
	Value string
}

// Response is a successful (2xx) reply.
type Response struct {
	Status int
	Body   []byte
}

// Decode unmarshals the body into v. A body that does not decode is a
// ServerError.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return &Error{Kind: KindServer, Status: r.Status, Message: "malformed response from server", Err: err}
	}
	return nil
}

// =============================================================================
// CLIENT
// =============================================================================

// Options configures a Client.
type Options struct {
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64 // requests per second, 0 = unlimited
	RateBurst int
	UserAgent string

	// HTTPClient overrides the transport (tests).
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client talks to the knowledge service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	userAgent  string
	logger     *slog.Logger

	mu    sync.RWMutex
	creds CredentialSource
}

// New creates a client. Zero options fall back to defaults.
func New(opts Options) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		// PERFORMANCE: Connection pooling reduces TCP handshake overhead.
		httpClient = &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		}
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	logger := opts.Logger
	if logger == nil {
		logger = util.DiscardLogger()
	}

	c := &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		userAgent:  userAgent,
		logger:     logger.With("component", "gateway"),
	}
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return c
}

// SetCredentials attaches the session store.
func (c *Client) SetCredentials(src CredentialSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.creds = src
}

// BaseURL returns the configured API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) credentials() CredentialSource {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.creds
}

// Call performs one request and classifies the outcome. It never retries.
func (c *Client) Call(ctx context.Context, req Request) (*Response, error) {
	var token string
	creds := c.credentials()
	if !req.Public {
		var ok bool
		if creds != nil {
			token, ok = creds.Token()
		}
		if !ok || token == "" {
			// No network I/O without a credential.
			return nil, &Error{Kind: KindUnauthenticated, Message: "not logged in"}
		}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &Error{Kind: KindUnreachable, Message: "request cancelled", Err: err}
		}
	}

	httpReq, err := c.newHTTPRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	// CLOUD: Secure logging - method and path only, never headers or bodies.
	c.logger.Debug("request", "method", httpReq.Method, "path", req.Path)

	resp, err := c.httpClient.Do(httpReq)

	// SECURITY: Clear Authorization header immediately after request to prevent logging
	httpReq.Header.Del("Authorization")

	if err != nil {
		c.logger.Warn("request failed", "method", httpReq.Method, "path", req.Path,
			"duration_ms", time.Since(start).Milliseconds(), "error", err.Error())
		return nil, &Error{Kind: KindUnreachable, Err: err}
	}
	defer resp.Body.Close()

	body, err := readResponse(resp)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, &Error{Kind: KindUnreachable, Err: ctxErr}
		}
		return nil, &Error{Kind: KindServer, Status: resp.StatusCode, Err: err}
	}

	c.logger.Debug("response", "method", httpReq.Method, "path", req.Path,
		"status", resp.StatusCode, "duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return &Response{Status: resp.StatusCode, Body: body}, nil
	}

	gerr := classify(resp.StatusCode, body, req.Public)
	c.logger.Warn("request rejected", "method", httpReq.Method, "path", req.Path,
		"status", resp.StatusCode, "kind", gerr.Kind.String())

	if gerr.Kind == KindUnauthenticated && creds != nil {
		creds.Invalidate(token)
	}
	return nil, gerr
}

func (c *Client) newHTTPRequest(ctx context.Context, req Request) (*http.Request, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var (
		body        io.Reader
		contentType string
	)
	switch {
	case req.Form != nil:
		buf, ct, err := encodeForm(req.Form)
		if err != nil {
			return nil, &Error{Kind: KindValidation, Message: "could not read upload", Err: err}
		}
		body, contentType = buf, ct
	case req.JSON != nil:
		data, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body, contentType = bytes.NewReader(data), "application/json"
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/"+strings.TrimLeft(req.Path, "/"), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)
	return httpReq, nil
}

// encodeForm buffers a multipart body. Uploads are bounded by the
// configured size limit before they reach the gateway.
func encodeForm(f *Form) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if f.File != nil {
		part, err := writer.CreateFormFile(f.FileField, f.FileName)
		if err != nil {
			return nil, "", err
		}
		if _, err := io.Copy(part, f.File); err != nil {
			return nil, "", err
		}
	}
	for _, field := range f.Fields {
		if err := writer.WriteField(field.Name, field.Value); err != nil {
			return nil, "", err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return body, writer.FormDataContentType(), nil
}

// readResponse reads the response body with size limits to prevent memory exhaustion.
//
// SECURITY: Response size limit prevents memory exhaustion attacks.
func readResponse(resp *http.Response) ([]byte, error) {
	limitedReader := io.LimitReader(resp.Body, MaxResponseSize+1)
	body, err := io.ReadAll(limitedReader)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) > MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

// classify maps a non-2xx status to exactly one error kind.
func classify(status int, body []byte, public bool) *Error {
	msg := errorMessage(body)

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		if public {
			return &Error{Kind: KindInvalidCredentials, Status: status, Message: msg}
		}
		return &Error{Kind: KindUnauthenticated, Status: status, Message: msg}
	case status == http.StatusConflict:
		return &Error{Kind: KindConflict, Status: status, Message: msg}
	case status >= 400 && status < 500:
		if msg == "" {
			msg = http.StatusText(status)
		}
		return &Error{Kind: KindValidation, Status: status, Message: msg}
	default:
		return &Error{Kind: KindServer, Status: status, Message: msg}
	}
}

// errorMessage extracts {"error": "..."} (or {"message": "..."}) from a body.
func errorMessage(body []byte) string {
	var errResp struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &errResp); err != nil {
		return ""
	}
	if len(errResp.Error) > 0 {
		var s string
		if err := json.Unmarshal(errResp.Error, &s); err == nil {
			return strings.TrimSpace(s)
		}
		var nested struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(errResp.Error, &nested); err == nil && nested.Message != "" {
			return strings.TrimSpace(nested.Message)
		}
	}
	return strings.TrimSpace(errResp.Message)
}

// IsCancelled reports whether err came from the caller's context.
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
