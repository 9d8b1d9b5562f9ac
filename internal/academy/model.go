package academy

import (
	"encoding/json"
	"time"
)

type Organization struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type Course struct {
	ID             int    `json:"id"`
	Name           string `json:"name"`
	Code           string `json:"code,omitempty"`
	Description    string `json:"description,omitempty"`
	Credits        int    `json:"credits"`
	Fees           string `json:"fees,omitempty"`
	IsActive       bool   `json:"is_active"`
	PrimaryFaculty *int   `json:"primary_faculty,omitempty"`
	DailyDuration  int    `json:"daily_duration,omitempty"`
	TotalDuration  int    `json:"total_duration,omitempty"`
	Organization   int    `json:"organization"`
}

type Faculty struct {
	ID                int           `json:"id"`
	Name              string        `json:"name"`
	Email             string        `json:"email"`
	Phone             string        `json:"phone,omitempty"`
	Qualification     string        `json:"qualification,omitempty"`
	Specialization    string        `json:"specialization,omitempty"`
	YearsOfExperience int           `json:"years_of_experience"`
	Organization      *Organization `json:"organization,omitempty"`
}

type Student struct {
	ID             int           `json:"id"`
	StudentID      string        `json:"student_id,omitempty"`
	RegistrationID string        `json:"registration_id,omitempty"`
	Name           string        `json:"name"`
	Email          string        `json:"email"`
	Phone          string        `json:"phone,omitempty"`
	DateOfBirth    string        `json:"date_of_birth,omitempty"`
	Address        string        `json:"address,omitempty"`
	Organization   *Organization `json:"organization,omitempty"`
}

const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

type RegistrationRequest struct {
	ID              int        `json:"id"`
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	Phone           string     `json:"phone"`
	Role            string     `json:"role"`
	Message         string     `json:"message,omitempty"`
	Status          string     `json:"status"`
	ProcessedByName *string    `json:"processed_by_name,omitempty"`
	ProcessedAt     *time.Time `json:"processed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// StudentInput creates or replaces a student record.
type StudentInput struct {
	Name        string `json:"name" validate:"required,max=100"`
	Email       string `json:"email" validate:"required,email"`
	Phone       string `json:"phone" validate:"required,phone"`
	DateOfBirth string `json:"date_of_birth" validate:"required,datetime=2006-01-02"`
	Address     string `json:"address" validate:"required"`
}

// Enrollment replaces the courses a student is enrolled in.
type Enrollment struct {
	CourseIDs []int `json:"courses_ids"`
}

type FacultyInput struct {
	Name              string `json:"name" validate:"required,max=100"`
	Email             string `json:"email" validate:"required,email"`
	Phone             string `json:"phone,omitempty" validate:"omitempty,phone"`
	Qualification     string `json:"qualification,omitempty"`
	Specialization    string `json:"specialization,omitempty"`
	YearsOfExperience int    `json:"years_of_experience" validate:"gte=0"`
}

type CourseInput struct {
	Name           string  `json:"name" validate:"required,max=100"`
	Code           string  `json:"code" validate:"required,max=20"`
	Description    string  `json:"description,omitempty"`
	Fees           float64 `json:"fees" validate:"gte=0"`
	PrimaryFaculty *int    `json:"primary_faculty,omitempty"`
	DailyDuration  int     `json:"daily_duration" validate:"gte=0"`
	TotalDuration  int     `json:"total_duration" validate:"gte=0"`
}

// NewRegistration is what the public landing page submits.
type NewRegistration struct {
	Name      string `json:"name" validate:"required,max=100"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone" validate:"required,phone"`
	Role      string `json:"role" validate:"required,oneof=student faculty"`
	StudentID string `json:"student_id,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Dashboard is a role dashboard payload. Its layout differs per role, so it
// is kept as raw JSON objects.
type Dashboard map[string]json.RawMessage

// UserInfo is the profile returned by /api/user-info/.
type UserInfo map[string]any
