package portal

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/alagappainfotech/student-registration-app/internal/academy"
	"github.com/alagappainfotech/student-registration-app/internal/httputil"

	"github.com/go-chi/chi/v5"
)

func pathID(w http.ResponseWriter, r *http.Request, kind string) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		httputil.RespondWithError(w, http.StatusBadRequest, "invalid "+kind+" id")
		return 0, false
	}
	return id, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "invalid request")
		return false
	}
	return true
}

func (h *Handler) CreateStudent(w http.ResponseWriter, r *http.Request) {
	var in academy.StudentInput
	if !decodeJSON(w, r, &in) {
		return
	}
	student, err := academyFrom(r).CreateStudent(r.Context(), in)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusCreated, student)
}

func (h *Handler) UpdateStudent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "student")
	if !ok {
		return
	}
	var in academy.StudentInput
	if !decodeJSON(w, r, &in) {
		return
	}
	student, err := academyFrom(r).UpdateStudent(r.Context(), id, in)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, student)
}

func (h *Handler) UpdateEnrollments(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "student")
	if !ok {
		return
	}
	var in academy.Enrollment
	if !decodeJSON(w, r, &in) {
		return
	}
	student, err := academyFrom(r).UpdateEnrollments(r.Context(), id, in.CourseIDs)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, student)
}

func (h *Handler) DeleteStudent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "student")
	if !ok {
		return
	}
	if err := academyFrom(r).DeleteStudent(r.Context(), id); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) CreateFaculty(w http.ResponseWriter, r *http.Request) {
	var in academy.FacultyInput
	if !decodeJSON(w, r, &in) {
		return
	}
	faculty, err := academyFrom(r).CreateFaculty(r.Context(), in)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusCreated, faculty)
}

func (h *Handler) UpdateFaculty(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "faculty")
	if !ok {
		return
	}
	var in academy.FacultyInput
	if !decodeJSON(w, r, &in) {
		return
	}
	faculty, err := academyFrom(r).UpdateFaculty(r.Context(), id, in)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, faculty)
}

func (h *Handler) DeleteFaculty(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "faculty")
	if !ok {
		return
	}
	if err := academyFrom(r).DeleteFaculty(r.Context(), id); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) CreateCourse(w http.ResponseWriter, r *http.Request) {
	var in academy.CourseInput
	if !decodeJSON(w, r, &in) {
		return
	}
	course, err := academyFrom(r).CreateCourse(r.Context(), in)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusCreated, course)
}

func (h *Handler) UpdateCourse(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "course")
	if !ok {
		return
	}
	var in academy.CourseInput
	if !decodeJSON(w, r, &in) {
		return
	}
	course, err := academyFrom(r).UpdateCourse(r.Context(), id, in)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httputil.RespondWithJSON(w, http.StatusOK, course)
}

func (h *Handler) DeleteCourse(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "course")
	if !ok {
		return
	}
	if err := academyFrom(r).DeleteCourse(r.Context(), id); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
