package portal

import (
	"context"
	"errors"
	"net/http"

	"github.com/alagappainfotech/student-registration-app/internal/apperr"
	"github.com/alagappainfotech/student-registration-app/internal/guard"
	"github.com/alagappainfotech/student-registration-app/internal/httputil"
	"github.com/alagappainfotech/student-registration-app/internal/navigation"
)

// respondError maps a client stack error to a portal response. When the
// session layer navigated the request's view to login, the user is sent
// there; a canceled request gets no body since nobody is listening.
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	kind := apperr.Classify(err)
	if kind == apperr.KindCanceled {
		h.logger.DebugContext(ctx, "request canceled", "path", r.URL.Path)
		return
	}
	if navigatedToLogin(ctx) {
		h.toLogin(w, r)
		return
	}

	switch kind {
	case apperr.KindSessionExpired, apperr.KindPermission:
		h.toLogin(w, r)
		return

	case apperr.KindAuthentication:
		if errors.Is(err, apperr.ErrInvalidCredentials) {
			httputil.RespondWithError(w, http.StatusUnauthorized, err.Error())
			return
		}
		h.toLogin(w, r)
		return

	case apperr.KindValidation:
		var verr *apperr.ValidationError
		if errors.As(err, &verr) {
			httputil.RespondWithFieldErrors(w, "validation failed", verr.Fields)
			return
		}
		var apiErr *apperr.APIError
		if errors.As(err, &apiErr) {
			fields := make(map[string]string, len(apiErr.Fields))
			for k, v := range apiErr.Fields {
				if len(v) > 0 {
					fields[k] = v[0]
				}
			}
			httputil.RespondWithFieldErrors(w, "validation failed", fields)
			return
		}

	case apperr.KindNetwork:
		h.logger.WarnContext(ctx, "academy backend unreachable", "path", r.URL.Path, "error", err)
		if apperr.IsTimeout(err) {
			httputil.RespondWithError(w, http.StatusGatewayTimeout, "academy backend timed out")
			return
		}
		httputil.RespondWithError(w, http.StatusBadGateway, "academy backend unavailable")
		return
	}

	var apiErr *apperr.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		httputil.RespondWithError(w, http.StatusNotFound, "not found")
		return
	}
	h.logger.ErrorContext(ctx, "request failed", "path", r.URL.Path, "kind", kind, "error", err)
	httputil.RespondWithError(w, http.StatusBadGateway, err.Error())
}

// toLogin redirects to the login route, remembering GET locations for after
// the next login.
func (h *Handler) toLogin(w http.ResponseWriter, r *http.Request) {
	from := ""
	if r.Method == http.MethodGet {
		from = r.URL.RequestURI()
		if err := guard.SaveRedirect(h.cookies, w, r, from); err != nil {
			h.logger.WarnContext(r.Context(), "failed to save redirect cookie", "error", err)
		}
	}
	httputil.Redirect(w, r, guard.LoginURL(from))
}

// track binds a fresh navigator to every request so session side effects
// redirect only the view that caused them.
func track(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := navigation.WithNavigator(r.Context(), navigation.NewRecorder(r.URL.Path))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func navigatedToLogin(ctx context.Context) bool {
	n, ok := navigation.FromContext(ctx)
	if !ok {
		return false
	}
	rec, ok := n.(*navigation.Recorder)
	return ok && len(rec.History()) > 0 && navigation.OnLoginView(rec)
}
