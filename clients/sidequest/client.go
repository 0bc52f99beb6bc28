// Package sidequest is the HTTP client for the Side Quest API: it builds
// request URLs, merges headers, injects the bearer token, caches GET
// responses, and normalizes every failure into a coded api.Error.
package sidequest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"sideQuest/api"
)

// DefaultTimeout bounds a single request unless overridden per call.
const DefaultTimeout = 30 * time.Second

type ContentType string

const (
	ContentTypeJSON ContentType = "json"
	ContentTypeForm ContentType = "form"
	ContentTypeText ContentType = "text"
)

// TokenSource supplies the bearer credential, when one exists.
type TokenSource interface {
	Get() (string, bool)
}

// Options configures a single request. The zero value means: default
// timeout, JSON body, auth attached.
type Options struct {
	Headers  map[string]string
	Params   map[string]string
	Body     any
	Timeout  time.Duration
	SkipAuth bool
	ContentType ContentType
	// CacheTTL overrides the freshness window for this GET. Zero uses the
	// client default.
	CacheTTL time.Duration
	// NoCache bypasses the response cache for this GET.
	NoCache bool
}

// Response wraps a decoded backend reply.
type Response struct {
	Status    int
	Headers   http.Header
	Body      []byte
	Timestamp time.Time
	// FromCache is set when the response was served without a network call.
	FromCache bool
}

// InvalidationHook maps a mutating request to cache key fragments to evict.
type InvalidationHook func(method, endpoint string) []string

type Client struct {
	http       *resty.Client
	tokens     TokenSource
	cache      *responseCache
	limiter    *rate.Limiter
	invalidate InvalidationHook
	headers    map[string]string
}

type Option func(*Client)

// WithCacheTTL sets the default freshness window for GET responses.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) { c.cache = newResponseCache(ttl) }
}

// WithRateLimit throttles outgoing requests client-side.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(limit, burst) }
}

// WithHeader adds a default header sent on every request.
func WithHeader(key, value string) Option {
	return func(c *Client) { c.headers[key] = value }
}

// WithInvalidationHook replaces the resource-noun cache eviction applied
// after mutating requests.
func WithInvalidationHook(hook InvalidationHook) Option {
	return func(c *Client) { c.invalidate = hook }
}

// New builds a client against baseURL. A base URL is required; there is no
// ambient origin to resolve relative paths against.
func New(baseURL string, tokens TokenSource, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	c := &Client{
		http:       resty.New().SetBaseURL(strings.TrimRight(baseURL, "/")),
		tokens:     tokens,
		cache:      newResponseCache(DefaultCacheTTL),
		invalidate: relatedResources,
		headers:    map[string]string{"Accept": "application/json"},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL reports the configured API base.
func (c *Client) BaseURL() string {
	return c.http.BaseURL
}

// ClearCache drops all cached responses, or only those whose key matches
// pattern when non-nil.
func (c *Client) ClearCache(pattern *regexp.Regexp) {
	c.cache.clear(pattern)
}

// Request performs one API call. On 2xx the body is decoded into out (when
// non-nil); a shape mismatch is an error, not a fallback. GET responses are
// cached; mutating verbs evict related GET entries.
func (c *Client) Request(ctx context.Context, method, endpoint string, opts Options, out any) (*Response, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	headers := c.mergeHeaders(opts)
	cacheKey := cacheKeyFor(method, c.http.BaseURL, endpoint, opts.Params, headers)

	if method == http.MethodGet && !opts.NoCache {
		if cached, ok := c.cache.get(cacheKey); ok {
			if err := decodeInto(cached.Body, cached.Headers, out); err != nil {
				return nil, err
			}
			cached.FromCache = true
			return &cached, nil
		}
	}

	if c.limiter != nil {
		// Wait fails fast when the deadline cannot accommodate the next
		// slot; either way the request never ran within its budget.
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &api.Error{
				Message: fmt.Sprintf("rate limit wait: %s", err),
				Code:    api.CodeTimeout,
			}
		}
	}

	requestID := uuid.NewString()
	headers["X-Request-ID"] = requestID

	r := c.http.R().
		SetContext(ctx).
		SetHeaders(headers)
	if len(opts.Params) > 0 {
		r.SetQueryParams(opts.Params)
	}
	if opts.Body != nil {
		applyBody(r, opts)
	}

	log := slog.With("method", method, "endpoint", endpoint, "request_id", requestID)
	log.Debug("sending API request")

	resp, err := r.Execute(method, endpoint)
	if err != nil {
		log.With("error", err.Error()).Warn("API request failed")
		return nil, c.classifyTransportError(ctx, err, timeout)
	}

	if resp.IsError() {
		apiErr := decodeErrorBody(resp.Body(), resp.StatusCode())
		log.With("status", resp.StatusCode(), "code", apiErr.Code).Warn("API request rejected")
		return nil, apiErr
	}

	result := Response{
		Status:    resp.StatusCode(),
		Headers:   resp.Header(),
		Body:      resp.Body(),
		Timestamp: time.Now(),
	}
	if err := decodeInto(result.Body, result.Headers, out); err != nil {
		return nil, err
	}

	switch method {
	case http.MethodGet:
		if !opts.NoCache {
			c.cache.put(cacheKey, result, opts.CacheTTL)
		}
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		if c.invalidate != nil {
			c.cache.invalidate(c.invalidate(method, endpoint))
		}
	}
	return &result, nil
}

func (c *Client) Get(ctx context.Context, endpoint string, out any, opts Options) (*Response, error) {
	return c.Request(ctx, http.MethodGet, endpoint, opts, out)
}

func (c *Client) Post(ctx context.Context, endpoint string, body, out any, opts Options) (*Response, error) {
	opts.Body = body
	return c.Request(ctx, http.MethodPost, endpoint, opts, out)
}

func (c *Client) Put(ctx context.Context, endpoint string, body, out any, opts Options) (*Response, error) {
	opts.Body = body
	return c.Request(ctx, http.MethodPut, endpoint, opts, out)
}

func (c *Client) Patch(ctx context.Context, endpoint string, body, out any, opts Options) (*Response, error) {
	opts.Body = body
	return c.Request(ctx, http.MethodPatch, endpoint, opts, out)
}

func (c *Client) Delete(ctx context.Context, endpoint string, out any, opts Options) (*Response, error) {
	return c.Request(ctx, http.MethodDelete, endpoint, opts, out)
}

// mergeHeaders layers client defaults, then caller headers, then the auth
// header. A missing token is logged, not an error; the request proceeds
// unauthenticated and the backend decides.
func (c *Client) mergeHeaders(opts Options) map[string]string {
	headers := make(map[string]string, len(c.headers)+len(opts.Headers)+2)
	for k, v := range c.headers {
		headers[k] = v
	}
	for k, v := range opts.Headers {
		headers[k] = v
	}
	if opts.Body != nil {
		switch opts.ContentType {
		case ContentTypeText:
			headers["Content-Type"] = "text/plain"
		case ContentTypeForm:
			headers["Content-Type"] = "application/x-www-form-urlencoded"
		case ContentTypeJSON, "":
			headers["Content-Type"] = "application/json"
		}
	}
	if !opts.SkipAuth {
		if token, ok := c.tokens.Get(); ok {
			headers["Authorization"] = "Bearer " + token
		} else {
			slog.Warn("no auth token available, sending request unauthenticated")
		}
	}
	return headers
}

func applyBody(r *resty.Request, opts Options) {
	switch opts.ContentType {
	case ContentTypeText:
		r.SetBody(fmt.Sprint(opts.Body))
	case ContentTypeForm:
		if form, ok := opts.Body.(map[string]string); ok {
			r.SetFormData(form)
		} else {
			r.SetBody(opts.Body)
		}
	default:
		r.SetBody(opts.Body)
	}
}

func (c *Client) classifyTransportError(ctx context.Context, err error, timeout time.Duration) *api.Error {
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
		return &api.Error{
			Message: fmt.Sprintf("request timed out after %s", timeout),
			Code:    api.CodeTimeout,
		}
	}
	return api.Normalize(err, api.CodeClientError)
}

// decodeInto unmarshals a JSON body into out. The contract is one explicit
// schema per endpoint: a mismatch fails loudly rather than probing
// alternate envelopes.
func decodeInto(body []byte, headers http.Header, out any) error {
	if out == nil {
		return nil
	}
	if ct := headers.Get("Content-Type"); ct != "" && !strings.Contains(ct, "application/json") {
		return &api.Error{
			Message: fmt.Sprintf("expected JSON response, got %s", ct),
			Code:    api.CodeClientError,
		}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &api.Error{
			Message: fmt.Sprintf("response did not match the expected shape: %s", err),
			Code:    api.CodeClientError,
		}
	}
	return nil
}

type errorBody struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	// Older backend revisions reply with {"error": ...} or {"detail": ...}.
	ErrorMessage string `json:"error"`
	Detail       string `json:"detail"`
}

func decodeErrorBody(body []byte, status int) *api.Error {
	var parsed errorBody
	if len(body) == 0 || json.Unmarshal(body, &parsed) != nil {
		return &api.Error{
			Message: "unknown error occurred",
			Code:    api.CodeUnknown,
			Status:  status,
		}
	}
	message := parsed.Message
	if message == "" {
		message = parsed.ErrorMessage
	}
	if message == "" {
		message = parsed.Detail
	}
	if message == "" {
		message = fmt.Sprintf("request failed with status %d", status)
	}
	code := parsed.Code
	if code == "" {
		code = api.HTTPCode(status)
	}
	return &api.Error{Message: message, Code: code, Status: status}
}

func cacheKeyFor(method, base, endpoint string, params, headers map[string]string) string {
	var sb strings.Builder
	sb.WriteString(method)
	sb.WriteString(":")
	sb.WriteString(base)
	sb.WriteString(endpoint)
	if len(params) > 0 {
		keys := make([]string, 0, len(params))
		for k := range params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteString("?")
		for i, k := range keys {
			if i > 0 {
				sb.WriteString("&")
			}
			sb.WriteString(k)
			sb.WriteString("=")
			sb.WriteString(params[k])
		}
	}
	sb.WriteString(":")
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteString("=")
		sb.WriteString(headers[k])
		sb.WriteString(";")
	}
	return sb.String()
}

var resourceNoun = regexp.MustCompile(`^(adventurer|quest|user|auth)s?$`)

// relatedResources is the default invalidation hook: a mutating call evicts
// GET entries for every resource noun in its path, singular or plural, so a
// POST to /api/v1/quest also drops the cached /api/v1/quests/{id} list.
func relatedResources(_, endpoint string) []string {
	if i := strings.IndexByte(endpoint, '?'); i >= 0 {
		endpoint = endpoint[:i]
	}
	seen := map[string]bool{}
	var fragments []string
	for _, segment := range strings.Split(endpoint, "/") {
		m := resourceNoun.FindStringSubmatch(segment)
		if m == nil || seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		fragments = append(fragments, "/"+m[1])
	}
	return fragments
}
