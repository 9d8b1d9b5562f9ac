package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/alagappainfotech/student-registration-app/internal/apperr"
	"github.com/alagappainfotech/student-registration-app/internal/metrics"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/sync/singleflight"
)

const maxBodySize = 4 << 20

// Transport sends requests to the academy backend. It owns the cookie jar,
// so the CSRF cookie set by the backend is replayed on every request.
type Transport struct {
	client  *http.Client
	baseURL *url.URL
	opts    Options
	metrics *metrics.HTTPMetrics
	logger  *slog.Logger
	tracer  trace.Tracer
	csrf    singleflight.Group
}

func NewTransport(opts Options, m *metrics.HTTPMetrics, logger *slog.Logger) (*Transport, error) {
	opts = opts.withDefaults()
	base, err := url.Parse(strings.TrimSuffix(opts.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid api base url %q", opts.BaseURL)
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Transport{
		client: &http.Client{
			Jar:     jar,
			Timeout: opts.Timeout,
		},
		baseURL: base,
		opts:    opts,
		metrics: m,
		logger:  logger,
		tracer:  otel.Tracer("academy-client/apiclient"),
	}, nil
}

func (t *Transport) Options() Options { return t.opts }

// Response is a fully read backend response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (r *Response) Success() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Decode unmarshals the JSON body into v. An empty body leaves v untouched.
func (r *Response) Decode(v any) error {
	if v == nil || len(bytes.TrimSpace(r.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// URL resolves path against the base URL.
func (t *Transport) URL(path string, query url.Values) string {
	u := *t.baseURL
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		if parsed, err := url.Parse(path); err == nil {
			u = *parsed
		}
	} else {
		u.Path = t.baseURL.Path + "/" + strings.TrimPrefix(path, "/")
	}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// CSRFToken returns the CSRF cookie currently held by the jar.
func (t *Transport) CSRFToken() string {
	for _, c := range t.client.Jar.Cookies(t.baseURL) {
		if c.Name == t.opts.CSRFCookieName {
			return c.Value
		}
	}
	return ""
}

// FetchCSRF asks the backend for a fresh CSRF cookie. Concurrent callers
// share one request.
func (t *Transport) FetchCSRF(ctx context.Context) (string, error) {
	ch := t.csrf.DoChan("csrf", func() (any, error) {
		return t.fetchCSRF(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return "", t.contextError(ctx, http.MethodGet, CSRFPath)
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (t *Transport) fetchCSRF(ctx context.Context) (string, error) {
	resp, err := t.Send(ctx, http.MethodGet, CSRFPath, nil, nil, nil)
	t.metrics.RecordCSRFFetch(ctx, err)
	if err != nil {
		return "", fmt.Errorf("%w: %w", apperr.ErrCSRFUnavailable, err)
	}
	if !resp.Success() {
		return "", fmt.Errorf("%w: status %d", apperr.ErrCSRFUnavailable, resp.StatusCode)
	}

	if token := t.CSRFToken(); token != "" {
		t.logger.DebugContext(ctx, "csrf token obtained", "present", true)
		return token, nil
	}

	// Some deployments return the token in the body instead of a cookie.
	var body struct {
		CSRFToken  string `json:"csrfToken"`
		CSRFToken2 string `json:"csrf_token"`
	}
	_ = resp.Decode(&body)
	token := body.CSRFToken
	if token == "" {
		token = body.CSRFToken2
	}
	if token == "" {
		return "", fmt.Errorf("%w: no %s cookie in response", apperr.ErrCSRFUnavailable, t.opts.CSRFCookieName)
	}
	t.client.Jar.SetCookies(t.baseURL, []*http.Cookie{{Name: t.opts.CSRFCookieName, Value: token, Path: "/"}})
	return token, nil
}

// Exchange trades a refresh token for a new access token, and a rotated
// refresh token when the backend issues one. The CSRF cookie must already be
// present.
func (t *Transport) Exchange(ctx context.Context, refreshToken string) (string, string, error) {
	body, err := json.Marshal(map[string]string{"refresh": refreshToken})
	if err != nil {
		return "", "", err
	}
	header := http.Header{}
	if csrf := t.CSRFToken(); csrf != "" {
		header.Set(t.opts.CSRFHeaderName, csrf)
		header.Set("X-Requested-With", "XMLHttpRequest")
	}

	resp, err := t.Send(ctx, http.MethodPost, RefreshPath, nil, body, header)
	if err != nil {
		return "", "", err
	}
	if !resp.Success() {
		return "", "", NewAPIError(resp)
	}

	var tokens struct {
		Access       string `json:"access"`
		Refresh      string `json:"refresh"`
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := resp.Decode(&tokens); err != nil {
		return "", "", err
	}
	access, refresh := tokens.Access, tokens.Refresh
	if access == "" {
		access, refresh = tokens.AccessToken, tokens.RefreshToken
	}
	if access == "" {
		return "", "", errors.New("refresh response carries no access token")
	}
	return access, refresh, nil
}

// Send performs one HTTP round trip. Cancellation surfaces as
// apperr.ErrCanceled and a missing response as *apperr.NetworkError; any
// status code is returned as a Response.
func (t *Transport) Send(ctx context.Context, method, path string, query url.Values, body []byte, header http.Header) (*Response, error) {
	target := t.URL(path, query)

	ctx, span := t.tracer.Start(ctx, method+" "+path,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
		),
	)
	defer span.End()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if req.Header.Get("X-Request-ID") == "" {
		req.Header.Set("X-Request-ID", uuid.NewString())
	}

	start := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		mapped := t.mapError(ctx, method, path, err)
		if apperr.IsCanceled(mapped) {
			t.logger.DebugContext(ctx, "request canceled", "method", method, "path", path)
		} else {
			t.logger.WarnContext(ctx, "request failed", "method", method, "path", path, "error", mapped)
			span.RecordError(mapped)
			span.SetStatus(codes.Error, mapped.Error())
			t.metrics.RecordRequest(ctx, method, path, 0, time.Since(start), mapped)
		}
		return nil, mapped
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		return nil, t.mapError(ctx, method, path, err)
	}
	if len(data) > maxBodySize {
		err := fmt.Errorf("%w: %s %s exceeds %d bytes", apperr.ErrResponseTooLarge, method, path, maxBodySize)
		t.logger.WarnContext(ctx, "response discarded", "method", method, "path", path, "status", resp.StatusCode, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if resp.StatusCode >= 500 {
		span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
	}
	t.metrics.RecordRequest(ctx, method, path, resp.StatusCode, time.Since(start), nil)
	t.logger.DebugContext(ctx, "backend response",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"request_id", req.Header.Get("X-Request-ID"),
	)

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

func (t *Transport) mapError(ctx context.Context, method, path string, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %s %s", apperr.ErrCanceled, method, path)
	}
	timeout := errors.Is(err, context.DeadlineExceeded)
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		timeout = true
	}
	return &apperr.NetworkError{Method: method, URL: path, Timeout: timeout, Err: err}
}

func (t *Transport) contextError(ctx context.Context, method, path string) error {
	return t.mapError(ctx, method, path, ctx.Err())
}

// detailKeys are checked in order for the human readable message.
var detailKeys = []string{"detail", "error", "message"}

// NewAPIError builds the error for a status the session layer does not
// handle, pulling detail and field errors out of the body.
func NewAPIError(resp *Response) *apperr.APIError {
	apiErr := &apperr.APIError{StatusCode: resp.StatusCode, Body: resp.Body}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return apiErr
	}
	for _, key := range detailKeys {
		var s string
		if json.Unmarshal(payload[key], &s) == nil && s != "" {
			apiErr.Detail = s
			break
		}
	}
	for key, raw := range payload {
		if slices.Contains(detailKeys, key) {
			continue
		}
		var list []string
		if json.Unmarshal(raw, &list) == nil {
			if apiErr.Fields == nil {
				apiErr.Fields = make(map[string][]string)
			}
			apiErr.Fields[key] = list
			continue
		}
		var single string
		if json.Unmarshal(raw, &single) == nil {
			if apiErr.Fields == nil {
				apiErr.Fields = make(map[string][]string)
			}
			apiErr.Fields[key] = []string{single}
		}
	}
	return apiErr
}
