package guard

import (
	"context"
	"net/http"

	"github.com/alagappainfotech/student-registration-app/internal/session"

	gsessions "github.com/gorilla/sessions"
)

const (
	CookieName  = "academy_portal"
	redirectKey = "redirect_after_login"
	browserKey  = "browser"
)

type ctxKey struct{}

// FromContext returns the decision that admitted the request.
func FromContext(ctx context.Context) (Decision, bool) {
	d, ok := ctx.Value(ctxKey{}).(Decision)
	return d, ok
}

// Middleware gates the wrapped routes. Unauthenticated requests are sent to
// the login route with the attempted location kept both in ?next= and in
// the portal cookie; authenticated users without one of roles are sent to
// their own dashboard.
func (g *Guard) Middleware(cookies gsessions.Store, roles ...session.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			d := g.Evaluate(ctx, r.URL.RequestURI(), roles...)

			switch d.Outcome {
			case Authorized:
				next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, ctxKey{}, d)))
			case RedirectLogin:
				if err := SaveRedirect(cookies, w, r, d.From); err != nil {
					g.logger.WarnContext(ctx, "failed to save redirect cookie", "error", err)
				}
				http.Redirect(w, r, d.Location, http.StatusFound)
			default:
				http.Redirect(w, r, d.Location, http.StatusFound)
			}
		})
	}
}

// SaveRedirect remembers location for after the next login.
func SaveRedirect(cookies gsessions.Store, w http.ResponseWriter, r *http.Request, location string) error {
	if cookies == nil || SafeNext(location) == "" {
		return nil
	}
	sess, err := cookies.Get(r, CookieName)
	if err != nil && sess == nil {
		return err
	}
	sess.Values[redirectKey] = location
	return sess.Save(r, w)
}

// ConsumeRedirect returns and forgets the remembered location.
func ConsumeRedirect(cookies gsessions.Store, w http.ResponseWriter, r *http.Request) string {
	if cookies == nil {
		return ""
	}
	sess, err := cookies.Get(r, CookieName)
	if err != nil && sess == nil {
		return ""
	}
	location := takeRedirect(sess)
	if location == "" {
		return ""
	}
	_ = sess.Save(r, w)
	return location
}

// BrowserID returns the portal session id carried by the request cookie,
// or "" when the browser has none.
func BrowserID(cookies gsessions.Store, r *http.Request) string {
	if cookies == nil {
		return ""
	}
	sess, err := cookies.Get(r, CookieName)
	if err != nil || sess == nil {
		return ""
	}
	id, _ := sess.Values[browserKey].(string)
	return id
}

// Bind ties the cookie to the portal session id and returns the location
// remembered before login. Both land in one cookie write.
func Bind(cookies gsessions.Store, w http.ResponseWriter, r *http.Request, id string) (string, error) {
	sess, err := cookies.Get(r, CookieName)
	if err != nil && sess == nil {
		return "", err
	}
	location := takeRedirect(sess)
	sess.Values[browserKey] = id
	return location, sess.Save(r, w)
}

// Unbind drops the portal session id from the cookie.
func Unbind(cookies gsessions.Store, w http.ResponseWriter, r *http.Request) error {
	sess, err := cookies.Get(r, CookieName)
	if err != nil && sess == nil {
		return err
	}
	if _, ok := sess.Values[browserKey]; !ok {
		return nil
	}
	delete(sess.Values, browserKey)
	return sess.Save(r, w)
}

func takeRedirect(sess *gsessions.Session) string {
	location, _ := sess.Values[redirectKey].(string)
	if location == "" {
		return ""
	}
	delete(sess.Values, redirectKey)
	return SafeNext(location)
}

// NewCookieStore builds the portal cookie store.
func NewCookieStore(secret []byte, secure bool) *gsessions.CookieStore {
	store := gsessions.NewCookieStore(secret)
	store.Options = &gsessions.Options{
		Path:     "/",
		MaxAge:   3600,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}
