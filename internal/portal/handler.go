package portal

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alagappainfotech/student-registration-app/internal/academy"
	"github.com/alagappainfotech/student-registration-app/internal/auth"
	"github.com/alagappainfotech/student-registration-app/internal/guard"
	"github.com/alagappainfotech/student-registration-app/internal/httputil"
	"github.com/alagappainfotech/student-registration-app/internal/session"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	gsessions "github.com/gorilla/sessions"
)

type Handler struct {
	browsers *browsers
	public   *browser
	cookies  gsessions.Store
	logger   *slog.Logger
}

func NewHandler(bs *browsers, public *browser, cookies gsessions.Store, logger *slog.Logger) *Handler {
	return &Handler{
		browsers: bs,
		public:   public,
		cookies:  cookies,
		logger:   logger,
	}
}

// RegisterRoutes mounts the login flow, the public registration form and
// the role gated views.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/login", h.LoginPage)
	r.Post("/login", h.Login)
	r.Post("/logout", h.Logout)
	r.Post("/register", h.Register)

	r.Group(func(r chi.Router) {
		r.Use(h.require())
		r.Get("/me", h.Me)
	})

	r.Group(func(r chi.Router) {
		r.Use(h.require(session.RoleAdmin))
		r.Get("/admin", h.Dashboard(session.RoleAdmin))
		r.Get("/admin/organizations", h.Organizations)
		r.Get("/admin/registration-requests", h.RegistrationRequests)
		r.Post("/admin/registration-requests/{id}/approve", h.ApproveRegistration)
		r.Post("/admin/registration-requests/{id}/reject", h.RejectRegistration)

		r.Get("/admin/faculty", h.FacultyList)
		r.Post("/admin/faculty", h.CreateFaculty)
		r.Put("/admin/faculty/{id}", h.UpdateFaculty)
		r.Delete("/admin/faculty/{id}", h.DeleteFaculty)

		r.Post("/students", h.CreateStudent)
		r.Put("/students/{id}", h.UpdateStudent)
		r.Patch("/students/{id}/courses", h.UpdateEnrollments)
		r.Delete("/students/{id}", h.DeleteStudent)

		r.Post("/courses", h.CreateCourse)
		r.Put("/courses/{id}", h.UpdateCourse)
		r.Delete("/courses/{id}", h.DeleteCourse)
	})

	r.Group(func(r chi.Router) {
		r.Use(h.require(session.RoleFaculty))
		r.Get("/faculty", h.Dashboard(session.RoleFaculty))
	})

	r.Group(func(r chi.Router) {
		r.Use(h.require(session.RoleStudent))
		r.Get("/student", h.Dashboard(session.RoleStudent))
	})

	r.Group(func(r chi.Router) {
		r.Use(h.require(session.RoleAdmin, session.RoleFaculty))
		r.Get("/students", h.Students)
		r.Get("/courses", h.Courses)
	})
}

type browserCtxKey struct{}

func browserFrom(ctx context.Context) *browser {
	b, _ := ctx.Value(browserCtxKey{}).(*browser)
	return b
}

func academyFrom(r *http.Request) *academy.Client {
	return browserFrom(r.Context()).academy
}

// require resolves the browser bound to the portal cookie and hands the
// request to its guard. A request without a live browser goes to login.
func (h *Handler) require(roles ...session.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			b := h.browsers.open(r.Context(), guard.BrowserID(h.cookies, r))
			if b == nil {
				h.toLogin(w, r)
				return
			}
			ctx := context.WithValue(r.Context(), browserCtxKey{}, b)
			b.guard.Middleware(h.cookies, roles...)(next).ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type loginPageResponse struct {
	Authenticated bool   `json:"authenticated"`
	Next          string `json:"next,omitempty"`
}

// LoginPage sends an authenticated user to their dashboard and otherwise
// describes the pending login.
func (h *Handler) LoginPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if b := h.browsers.open(ctx, guard.BrowserID(h.cookies, r)); b != nil && b.sessions.IsAuthenticated(ctx) {
		if role, err := b.sessions.Role(ctx); err == nil {
			httputil.Redirect(w, r, role.HomePath())
			return
		}
	}
	httputil.RespondWithJSON(w, http.StatusOK, loginPageResponse{
		Next: guard.SafeNext(r.URL.Query().Get("next")),
	})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var creds auth.Credentials
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
			httputil.RespondWithError(w, http.StatusBadRequest, "invalid request")
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			httputil.RespondWithError(w, http.StatusBadRequest, "invalid request")
			return
		}
		creds.Username = r.PostForm.Get("username")
		creds.Password = r.PostForm.Get("password")
	}

	// Every login gets a fresh portal session id so a cookie issued before
	// authentication never carries credentials.
	ctx := r.Context()
	b, err := h.browsers.stack.forID(uuid.NewString())
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to build browser session", "error", err)
		httputil.RespondWithError(w, http.StatusInternalServerError, "login unavailable")
		return
	}
	res, err := b.auth.Login(ctx, creds)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	if previous := guard.BrowserID(h.cookies, r); previous != "" {
		h.end(ctx, previous)
	}
	h.browsers.add(b)

	next, err := guard.Bind(h.cookies, w, r, b.id)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to bind portal session", "error", err)
		httputil.RespondWithError(w, http.StatusInternalServerError, "login unavailable")
		return
	}
	if next == "" {
		next = guard.SafeNext(r.URL.Query().Get("next"))
	}
	if next == "" {
		next = res.Home
	}
	httputil.Redirect(w, r, next)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if id := guard.BrowserID(h.cookies, r); id != "" {
		h.end(ctx, id)
		if err := guard.Unbind(h.cookies, w, r); err != nil {
			h.logger.WarnContext(ctx, "failed to unbind portal session", "error", err)
		}
	}
	httputil.Redirect(w, r, "/login")
}

// end logs the browser out and forgets it.
func (h *Handler) end(ctx context.Context, id string) {
	if b := h.browsers.open(ctx, id); b != nil {
		if err := b.auth.Logout(ctx); err != nil {
			h.logger.ErrorContext(ctx, "logout failed", "error", err)
		}
	}
	h.browsers.remove(id)
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var reg academy.NewRegistration
	if err := json.NewDecoder(r.Body).Decode(&reg); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if reg.Role == "" {
		reg.Role = string(session.RoleStudent)
	}
	created, err := h.public.academy.SubmitRegistration(r.Context(), reg)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusCreated, created)
}

type meResponse struct {
	Role session.Role     `json:"role"`
	User academy.UserInfo `json:"user"`
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	info, err := academyFrom(r).UserInfo(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	d, _ := guard.FromContext(r.Context())
	httputil.RespondWithJSON(w, http.StatusOK, meResponse{Role: d.Role, User: info})
}

type dashboardResponse struct {
	Role      session.Role      `json:"role"`
	User      session.User      `json:"user,omitempty"`
	Dashboard academy.Dashboard `json:"dashboard"`
}

func (h *Handler) Dashboard(role session.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		b := browserFrom(ctx)
		d, err := b.academy.Dashboard(ctx, role)
		if err != nil {
			h.respondError(w, r, err)
			return
		}
		user, _ := b.sessions.User(ctx)
		httputil.RespondWithJSON(w, http.StatusOK, dashboardResponse{Role: role, User: user, Dashboard: d})
	}
}

func (h *Handler) Students(w http.ResponseWriter, r *http.Request) {
	students, err := academyFrom(r).Students(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, students)
}

func (h *Handler) Courses(w http.ResponseWriter, r *http.Request) {
	courses, err := academyFrom(r).Courses(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, courses)
}

func (h *Handler) FacultyList(w http.ResponseWriter, r *http.Request) {
	faculty, err := academyFrom(r).Faculty(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, faculty)
}

func (h *Handler) Organizations(w http.ResponseWriter, r *http.Request) {
	orgs, err := academyFrom(r).Organizations(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, orgs)
}

func (h *Handler) RegistrationRequests(w http.ResponseWriter, r *http.Request) {
	reqs, err := academyFrom(r).RegistrationRequests(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, reqs)
}

func (h *Handler) ApproveRegistration(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "registration request")
	if !ok {
		return
	}
	if err := academyFrom(r).ApproveRegistration(r.Context(), id); err != nil {
		h.respondError(w, r, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "approved"})
}

func (h *Handler) RejectRegistration(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "registration request")
	if !ok {
		return
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if r.ContentLength > 0 {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}
	if err := academyFrom(r).RejectRegistration(r.Context(), id, body.Reason); err != nil {
		h.respondError(w, r, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "rejected"})
}
