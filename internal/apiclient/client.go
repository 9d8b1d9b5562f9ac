package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/alagappainfotech/student-registration-app/internal/apperr"
	"github.com/alagappainfotech/student-registration-app/internal/metrics"
	"github.com/alagappainfotech/student-registration-app/internal/navigation"
	"github.com/alagappainfotech/student-registration-app/internal/session"
)

// Refresher obtains a new access token after a 401. staleToken is the token
// the failed request carried.
type Refresher interface {
	Refresh(ctx context.Context, staleToken string) (string, error)
}

// Client is the request pipeline every authenticated call goes through.
type Client struct {
	transport *Transport
	sessions  *session.Manager
	refresher Refresher
	opts      Options
	metrics   *metrics.HTTPMetrics
	logger    *slog.Logger
}

func New(transport *Transport, sessions *session.Manager, refresher Refresher, m *metrics.HTTPMetrics, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		transport: transport,
		sessions:  sessions,
		refresher: refresher,
		opts:      transport.Options(),
		metrics:   m,
		logger:    logger,
	}
}

func (c *Client) Transport() *Transport { return c.transport }

type Request struct {
	Method string
	Path   string
	Query  url.Values
	// Body is encoded as JSON when non-nil.
	Body   any
	Header http.Header
}

// Do sends req, attaching the access token and CSRF header, and resubmits it
// after a successful refresh when the backend answers 401.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	public := c.opts.IsPublic(req.Path)

	var body []byte
	if req.Body != nil {
		var err error
		if body, err = json.Marshal(req.Body); err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	refreshed := ""
	for attempt := 0; ; attempt++ {
		header := req.Header.Clone()
		if header == nil {
			header = http.Header{}
		}

		token := refreshed
		if !public {
			if token == "" {
				token = c.sessions.AccessToken(ctx)
			}
			if token == "" {
				c.logger.InfoContext(ctx, "no valid access token, request aborted", "path", req.Path)
				navigation.ToLogin(c.sessions.Navigator(ctx))
				return nil, fmt.Errorf("%w: %s %s", apperr.ErrNoAccessToken, req.Method, req.Path)
			}
			header.Set("Authorization", "Bearer "+token)
		}

		csrf, err := c.csrfToken(ctx, public)
		if err != nil {
			return nil, err
		}
		if csrf != "" {
			header.Set(c.opts.CSRFHeaderName, csrf)
			header.Set("X-Requested-With", "XMLHttpRequest")
		}

		resp, err := c.transport.Send(ctx, req.Method, req.Path, req.Query, body, header)
		if err != nil {
			return nil, err
		}

		switch {
		case resp.Success():
			return resp, nil

		case resp.StatusCode == http.StatusUnauthorized && !public && attempt < c.opts.MaxRetries:
			c.logger.InfoContext(ctx, "access token rejected, refreshing", "path", req.Path, "attempt", attempt+1)
			newToken, err := c.refresher.Refresh(ctx, token)
			if err != nil {
				return nil, err
			}
			refreshed = newToken
			c.metrics.RecordRetry(ctx, req.Path)

		case resp.StatusCode == http.StatusForbidden:
			return nil, c.voidSession(ctx, req, resp)

		default:
			return nil, NewAPIError(resp)
		}
	}
}

// csrfToken returns the jar's CSRF token, fetching one first for
// non-public requests when none is held.
func (c *Client) csrfToken(ctx context.Context, public bool) (string, error) {
	if token := c.transport.CSRFToken(); token != "" || public {
		return token, nil
	}
	token, err := c.transport.FetchCSRF(ctx)
	if err != nil && !apperr.IsCanceled(err) {
		c.logger.WarnContext(ctx, "csrf bootstrap failed", "error", err)
	}
	return token, err
}

func (c *Client) voidSession(ctx context.Context, req Request, resp *Response) error {
	apiErr := NewAPIError(resp)
	permErr := &apperr.PermissionError{
		Detail: apiErr.Detail,
		CSRF:   strings.Contains(strings.ToUpper(apiErr.Detail), "CSRF"),
	}
	c.logger.WarnContext(ctx, "backend refused request, clearing session",
		"method", req.Method,
		"path", req.Path,
		"csrf", permErr.CSRF,
	)
	if err := c.sessions.Clear(ctx, session.ReasonPermission); err != nil {
		c.logger.ErrorContext(ctx, "failed to clear session after 403", "error", err)
	}
	return permErr
}

// JSON sends req and decodes a successful body into out.
func (c *Client) JSON(ctx context.Context, req Request, out any) error {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	return resp.Decode(out)
}

func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.JSON(ctx, Request{Method: http.MethodGet, Path: path, Query: query}, out)
}

func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.JSON(ctx, Request{Method: http.MethodPost, Path: path, Body: body}, out)
}

func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.JSON(ctx, Request{Method: http.MethodPut, Path: path, Body: body}, out)
}

func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.JSON(ctx, Request{Method: http.MethodPatch, Path: path, Body: body}, out)
}

func (c *Client) Delete(ctx context.Context, path string) error {
	return c.JSON(ctx, Request{Method: http.MethodDelete, Path: path}, nil)
}
