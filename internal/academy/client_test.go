package academy_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"testing"

	"github.com/alagappainfotech/student-registration-app/internal/academy"
	"github.com/alagappainfotech/student-registration-app/internal/apiclient"
	"github.com/alagappainfotech/student-registration-app/internal/apperr"
	"github.com/alagappainfotech/student-registration-app/internal/kv"
	"github.com/alagappainfotech/student-registration-app/internal/navigation"
	"github.com/alagappainfotech/student-registration-app/internal/refresh"
	"github.com/alagappainfotech/student-registration-app/internal/session"
	"github.com/alagappainfotech/student-registration-app/testing/testbackend"
	"github.com/alagappainfotech/student-registration-app/testing/testjwt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*academy.Client, *testbackend.Backend, *session.Manager) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	backend := testbackend.New(t)
	sessions := session.NewManager(kv.NewMemory(), navigation.NewRecorder("/admin"), logger)
	transport, err := apiclient.NewTransport(apiclient.Options{BaseURL: backend.URL()}, nil, logger)
	require.NoError(t, err)
	coordinator := refresh.New(sessions, transport, nil, logger)
	api := apiclient.New(transport, sessions, coordinator, nil, logger)

	require.NoError(t, sessions.Begin(context.Background(), session.Session{
		AccessToken:  testjwt.Valid(t, "admin"),
		RefreshToken: "R",
		Role:         session.RoleAdmin,
		User:         session.User{"id": 1},
	}))
	return academy.NewClient(api, logger), backend, sessions
}

func TestClient_Dashboard(t *testing.T) {
	c, backend, _ := setup(t)
	backend.Handle(http.MethodGet, "/api/dashboard/admin/", func(w http.ResponseWriter, r *http.Request) {
		testbackend.WriteJSON(w, http.StatusOK, map[string]any{"users": map[string]int{"students": 12, "faculty": 3}})
	})

	d, err := c.Dashboard(context.Background(), session.RoleAdmin)
	require.NoError(t, err)
	assert.JSONEq(t, `{"students":12,"faculty":3}`, string(d["users"]))
}

func TestClient_ListsAcceptBothEnvelopes(t *testing.T) {
	c, backend, _ := setup(t)
	backend.Handle(http.MethodGet, academy.StudentsPath, func(w http.ResponseWriter, r *http.Request) {
		testbackend.WriteJSON(w, http.StatusOK, []map[string]any{{"id": 1, "name": "Asha"}, {"id": 2, "name": "Ravi"}})
	})
	backend.Handle(http.MethodGet, academy.CoursesPath, func(w http.ResponseWriter, r *http.Request) {
		testbackend.WriteJSON(w, http.StatusOK, map[string]any{
			"count":   1,
			"results": []map[string]any{{"id": 7, "name": "Physics", "credits": 4, "fees": "1500.00", "is_active": true}},
		})
	})

	ctx := context.Background()
	students, err := c.Students(ctx)
	require.NoError(t, err)
	require.Len(t, students, 2)
	assert.Equal(t, "Ravi", students[1].Name)

	courses, err := c.Courses(ctx)
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, "1500.00", courses[0].Fees)
	assert.True(t, courses[0].IsActive)
}

func TestClient_RegistrationRequests(t *testing.T) {
	c, backend, _ := setup(t)
	var gotStatus string
	backend.Handle(http.MethodGet, academy.RegistrationRequestsPath, func(w http.ResponseWriter, r *http.Request) {
		gotStatus = r.URL.Query().Get("status")
		testbackend.WriteJSON(w, http.StatusOK, []map[string]any{{"id": 4, "name": "Meena", "status": "pending", "role": "student"}})
	})
	backend.Handle(http.MethodPost, "/api/registration-requests/4/approve/", func(w http.ResponseWriter, r *http.Request) {
		testbackend.WriteJSON(w, http.StatusOK, map[string]string{"status": "approved"})
	})
	backend.Handle(http.MethodPost, "/api/registration-requests/4/reject/", func(w http.ResponseWriter, r *http.Request) {
		testbackend.WriteJSON(w, http.StatusOK, map[string]string{"status": "rejected"})
	})

	ctx := context.Background()
	reqs, err := c.RegistrationRequests(ctx, academy.StatusPending)
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, "pending", gotStatus)

	require.NoError(t, c.ApproveRegistration(ctx, 4))
	require.NoError(t, c.RejectRegistration(ctx, 4, ""))

	rec, ok := backend.Last(http.MethodPost, "/api/registration-requests/4/reject/")
	require.True(t, ok)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body, &body))
	assert.Equal(t, "Rejected by admin", body["reason"])
	assert.NotEmpty(t, rec.Authorization)
}

func TestClient_SubmitRegistrationIsPublic(t *testing.T) {
	c, backend, sessions := setup(t)
	require.NoError(t, sessions.Clear(context.Background(), session.ReasonLogout))
	backend.Handle(http.MethodPost, apiclient.RegistrationRequestPath, func(w http.ResponseWriter, r *http.Request) {
		testbackend.WriteJSON(w, http.StatusCreated, map[string]any{"id": 9, "name": "Kavya", "status": "pending", "role": "student"})
	})

	created, err := c.SubmitRegistration(context.Background(), academy.NewRegistration{
		Name:  "Kavya",
		Email: "kavya@example.com",
		Phone: "9876543210",
		Role:  "student",
	})
	require.NoError(t, err)
	assert.Equal(t, 9, created.ID)

	rec, ok := backend.Last(http.MethodPost, apiclient.RegistrationRequestPath)
	require.True(t, ok)
	assert.Empty(t, rec.Authorization)
	assert.Equal(t, testbackend.CSRFToken, rec.CSRF)
}

func TestClient_SubmitRegistrationValidation(t *testing.T) {
	c, backend, _ := setup(t)

	_, err := c.SubmitRegistration(context.Background(), academy.NewRegistration{Name: "X", Email: "nope", Role: "admin"})
	var verr *apperr.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "email")
	assert.Contains(t, verr.Fields, "phone")
	assert.Contains(t, verr.Fields, "role")
	assert.Empty(t, backend.Requests())
}

func TestClient_StudentRecords(t *testing.T) {
	c, backend, _ := setup(t)
	backend.Handle(http.MethodPost, academy.StudentsPath, func(w http.ResponseWriter, r *http.Request) {
		testbackend.WriteJSON(w, http.StatusCreated, map[string]any{"id": 11, "name": "Asha", "email": "asha@example.com"})
	})
	backend.Handle(http.MethodPut, "/api/students/11/", func(w http.ResponseWriter, r *http.Request) {
		testbackend.WriteJSON(w, http.StatusOK, map[string]any{"id": 11, "name": "Asha K", "email": "asha@example.com"})
	})
	backend.Handle(http.MethodPatch, "/api/students/11/", func(w http.ResponseWriter, r *http.Request) {
		testbackend.WriteJSON(w, http.StatusOK, map[string]any{"id": 11, "name": "Asha K"})
	})
	backend.Handle(http.MethodDelete, "/api/students/11/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	ctx := context.Background()
	in := academy.StudentInput{
		Name:        "Asha",
		Email:       "asha@example.com",
		Phone:       "+919876543210",
		DateOfBirth: "2004-05-17",
		Address:     "12 Lake Road",
	}
	created, err := c.CreateStudent(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, 11, created.ID)

	rec, ok := backend.Last(http.MethodPost, academy.StudentsPath)
	require.True(t, ok)
	assert.JSONEq(t, `{"name":"Asha","email":"asha@example.com","phone":"+919876543210","date_of_birth":"2004-05-17","address":"12 Lake Road"}`, string(rec.Body))
	assert.Equal(t, testbackend.CSRFToken, rec.CSRF)

	in.Name = "Asha K"
	updated, err := c.UpdateStudent(ctx, 11, in)
	require.NoError(t, err)
	assert.Equal(t, "Asha K", updated.Name)

	_, err = c.UpdateEnrollments(ctx, 11, []int{3, 7})
	require.NoError(t, err)
	rec, ok = backend.Last(http.MethodPatch, "/api/students/11/")
	require.True(t, ok)
	assert.JSONEq(t, `{"courses_ids":[3,7]}`, string(rec.Body))

	_, err = c.UpdateEnrollments(ctx, 11, nil)
	require.NoError(t, err)
	rec, _ = backend.Last(http.MethodPatch, "/api/students/11/")
	assert.JSONEq(t, `{"courses_ids":[]}`, string(rec.Body))

	require.NoError(t, c.DeleteStudent(ctx, 11))
	assert.Equal(t, 1, backend.Calls(http.MethodDelete, "/api/students/11/"))
}

func TestClient_FacultyAndCourseRecords(t *testing.T) {
	c, backend, _ := setup(t)
	backend.Handle(http.MethodPost, academy.FacultyPath, func(w http.ResponseWriter, r *http.Request) {
		testbackend.WriteJSON(w, http.StatusCreated, map[string]any{"id": 4, "name": "Dr. Rao", "email": "rao@example.com", "years_of_experience": 12})
	})
	backend.Handle(http.MethodPut, "/api/faculty/4/", func(w http.ResponseWriter, r *http.Request) {
		testbackend.WriteJSON(w, http.StatusOK, map[string]any{"id": 4, "name": "Dr. Rao", "years_of_experience": 13})
	})
	backend.Handle(http.MethodDelete, "/api/faculty/4/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	backend.Handle(http.MethodPost, academy.CoursesPath, func(w http.ResponseWriter, r *http.Request) {
		testbackend.WriteJSON(w, http.StatusCreated, map[string]any{"id": 8, "name": "Physics", "code": "PHY101", "fees": "1500.00"})
	})
	backend.Handle(http.MethodPut, "/api/courses/8/", func(w http.ResponseWriter, r *http.Request) {
		testbackend.WriteJSON(w, http.StatusOK, map[string]any{"id": 8, "name": "Physics II", "code": "PHY102"})
	})
	backend.Handle(http.MethodDelete, "/api/courses/8/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	ctx := context.Background()
	faculty, err := c.CreateFaculty(ctx, academy.FacultyInput{Name: "Dr. Rao", Email: "rao@example.com", YearsOfExperience: 12})
	require.NoError(t, err)
	assert.Equal(t, 12, faculty.YearsOfExperience)

	faculty, err = c.UpdateFaculty(ctx, 4, academy.FacultyInput{Name: "Dr. Rao", Email: "rao@example.com", YearsOfExperience: 13})
	require.NoError(t, err)
	assert.Equal(t, 13, faculty.YearsOfExperience)
	require.NoError(t, c.DeleteFaculty(ctx, 4))

	lead := 4
	course, err := c.CreateCourse(ctx, academy.CourseInput{Name: "Physics", Code: "PHY101", Fees: 1500, PrimaryFaculty: &lead, DailyDuration: 2, TotalDuration: 90})
	require.NoError(t, err)
	assert.Equal(t, "1500.00", course.Fees)

	rec, ok := backend.Last(http.MethodPost, academy.CoursesPath)
	require.True(t, ok)
	assert.JSONEq(t, `{"name":"Physics","code":"PHY101","fees":1500,"primary_faculty":4,"daily_duration":2,"total_duration":90}`, string(rec.Body))

	course, err = c.UpdateCourse(ctx, 8, academy.CourseInput{Name: "Physics II", Code: "PHY102"})
	require.NoError(t, err)
	assert.Equal(t, "Physics II", course.Name)
	require.NoError(t, c.DeleteCourse(ctx, 8))

	assert.Equal(t, 1, backend.Calls(http.MethodDelete, "/api/faculty/4/"))
	assert.Equal(t, 1, backend.Calls(http.MethodDelete, "/api/courses/8/"))
}

func TestClient_RecordValidation(t *testing.T) {
	c, backend, _ := setup(t)
	ctx := context.Background()

	_, err := c.CreateStudent(ctx, academy.StudentInput{Name: "Asha", Email: "asha@example.com", Phone: "12345", DateOfBirth: "17/05/2004"})
	var verr *apperr.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "must be a valid phone number", verr.Fields["phone"])
	assert.Equal(t, "must be a date in the form 2006-01-02", verr.Fields["date_of_birth"])
	assert.Equal(t, "is required", verr.Fields["address"])

	_, err = c.CreateCourse(ctx, academy.CourseInput{Name: "Physics", Fees: -1})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "is required", verr.Fields["code"])
	assert.Equal(t, "must be 0 or greater", verr.Fields["fees"])

	assert.Empty(t, backend.Requests())
}

func TestClient_RecordServerFieldErrors(t *testing.T) {
	c, backend, sessions := setup(t)
	backend.Handle(http.MethodPost, academy.FacultyPath, func(w http.ResponseWriter, r *http.Request) {
		testbackend.WriteJSON(w, http.StatusBadRequest, map[string]any{"email": []string{"faculty with this email already exists."}})
	})

	_, err := c.CreateFaculty(context.Background(), academy.FacultyInput{Name: "Dr. Rao", Email: "rao@example.com"})
	var apiErr *apperr.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsValidation())
	assert.Equal(t, apperr.KindValidation, apperr.Classify(err))
	assert.True(t, sessions.IsAuthenticated(context.Background()))
}
