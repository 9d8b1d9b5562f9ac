package apiclient

import (
	"net/url"
	"strings"
	"time"

	"github.com/alagappainfotech/student-registration-app/internal/config"
)

const (
	LoginPath               = "/api/login/"
	LogoutPath              = "/api/logout/"
	RefreshPath             = "/api/token/refresh/"
	CSRFPath                = "/api/csrf/"
	RegistrationRequestPath = "/api/registration-request/"
)

type Options struct {
	BaseURL string
	Timeout time.Duration
	// MaxRetries is how many times a request is resubmitted after a
	// successful token refresh.
	MaxRetries      int
	PublicEndpoints []string
	CSRFCookieName  string
	CSRFHeaderName  string
}

func OptionsFromConfig(cfg config.APIConfig) Options {
	return Options{
		BaseURL:         cfg.BaseURL,
		Timeout:         cfg.Timeout(),
		MaxRetries:      cfg.MaxRetries,
		PublicEndpoints: cfg.PublicEndpoints,
		CSRFCookieName:  cfg.CSRFCookieName,
		CSRFHeaderName:  cfg.CSRFHeaderName,
	}
}

func (o Options) withDefaults() Options {
	if o.Timeout == 0 {
		o.Timeout = 30 * time.Second
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.PublicEndpoints == nil {
		o.PublicEndpoints = []string{LoginPath, RefreshPath, RegistrationRequestPath, CSRFPath}
	}
	if o.CSRFCookieName == "" {
		o.CSRFCookieName = "csrftoken"
	}
	if o.CSRFHeaderName == "" {
		o.CSRFHeaderName = "X-CSRFToken"
	}
	return o
}

// IsPublic reports whether target needs no access token. target may be a
// path or a full URL; matching ignores the query and a trailing slash.
func (o Options) IsPublic(target string) bool {
	p := target
	if u, err := url.Parse(target); err == nil {
		p = u.Path
	}
	p = strings.TrimSuffix(p, "/")
	if p == "" {
		return false
	}
	for _, endpoint := range o.PublicEndpoints {
		e := strings.TrimSuffix(endpoint, "/")
		if e == "" {
			continue
		}
		if strings.HasSuffix(p, e) || strings.Contains(p+"/", e+"/") {
			return true
		}
	}
	return false
}
