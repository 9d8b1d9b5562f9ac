package academy

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/alagappainfotech/student-registration-app/internal/apiclient"
	"github.com/alagappainfotech/student-registration-app/internal/apperr"
	"github.com/alagappainfotech/student-registration-app/internal/session"

	"github.com/go-playground/validator/v10"
)

const (
	UserInfoPath             = "/api/user-info/"
	StudentsPath             = "/api/students/"
	FacultyPath              = "/api/faculty/"
	CoursesPath              = "/api/courses/"
	OrganizationsPath        = "/api/organizations/"
	RegistrationRequestsPath = "/api/registration-requests/"
)

// Client wraps the academy endpoints the portal consumes. Every call runs
// through the authenticated request pipeline.
type Client struct {
	api      *apiclient.Client
	validate *validator.Validate
	logger   *slog.Logger
}

func NewClient(api *apiclient.Client, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		api:      api,
		validate: apperr.NewValidator(),
		logger:   logger,
	}
}

func (c *Client) Dashboard(ctx context.Context, role session.Role) (Dashboard, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("no dashboard for role %q", role)
	}
	var d Dashboard
	if err := c.api.Get(ctx, role.DashboardPath(), nil, &d); err != nil {
		return nil, fmt.Errorf("failed to load %s dashboard: %w", role, err)
	}
	return d, nil
}

func (c *Client) UserInfo(ctx context.Context) (UserInfo, error) {
	var info UserInfo
	if err := c.api.Get(ctx, UserInfoPath, nil, &info); err != nil {
		return nil, fmt.Errorf("failed to load user info: %w", err)
	}
	return info, nil
}

func (c *Client) Students(ctx context.Context) ([]Student, error) {
	return list[Student](ctx, c.api, StudentsPath, nil)
}

func (c *Client) Faculty(ctx context.Context) ([]Faculty, error) {
	return list[Faculty](ctx, c.api, FacultyPath, nil)
}

func (c *Client) Courses(ctx context.Context) ([]Course, error) {
	return list[Course](ctx, c.api, CoursesPath, nil)
}

func (c *Client) Organizations(ctx context.Context) ([]Organization, error) {
	return list[Organization](ctx, c.api, OrganizationsPath, nil)
}

// RegistrationRequests lists requests, filtered by status unless status is
// empty or "all".
func (c *Client) RegistrationRequests(ctx context.Context, status string) ([]RegistrationRequest, error) {
	var query url.Values
	if status != "" && status != "all" {
		query = url.Values{"status": {status}}
	}
	return list[RegistrationRequest](ctx, c.api, RegistrationRequestsPath, query)
}

func (c *Client) ApproveRegistration(ctx context.Context, id int) error {
	c.logger.InfoContext(ctx, "approving registration request", "id", id)
	return c.api.Post(ctx, registrationActionPath(id, "approve"), map[string]string{}, nil)
}

func (c *Client) RejectRegistration(ctx context.Context, id int, reason string) error {
	if strings.TrimSpace(reason) == "" {
		reason = "Rejected by admin"
	}
	c.logger.InfoContext(ctx, "rejecting registration request", "id", id)
	return c.api.Post(ctx, registrationActionPath(id, "reject"), map[string]string{"reason": reason}, nil)
}

// SubmitRegistration files a public registration request. No session is
// needed.
func (c *Client) SubmitRegistration(ctx context.Context, reg NewRegistration) (*RegistrationRequest, error) {
	if err := c.validate.Struct(reg); err != nil {
		return nil, apperr.FromValidator(err)
	}
	if c.api.Transport().CSRFToken() == "" {
		if _, err := c.api.Transport().FetchCSRF(ctx); err != nil {
			return nil, err
		}
	}
	var created RegistrationRequest
	if err := c.api.Post(ctx, apiclient.RegistrationRequestPath, reg, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func registrationActionPath(id int, action string) string {
	return RegistrationRequestsPath + strconv.Itoa(id) + "/" + action + "/"
}

// list decodes either a bare JSON array or a paginated {"results": [...]}
// envelope.
func list[T any](ctx context.Context, api *apiclient.Client, path string, query url.Values) ([]T, error) {
	var raw json.RawMessage
	if err := api.Get(ctx, path, query, &raw); err != nil {
		return nil, err
	}
	raw = json.RawMessage(strings.TrimSpace(string(raw)))
	if len(raw) == 0 {
		return nil, nil
	}

	var items []T
	if raw[0] == '[' {
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", path, err)
		}
		return items, nil
	}
	var page struct {
		Results []T `json:"results"`
	}
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return page.Results, nil
}
