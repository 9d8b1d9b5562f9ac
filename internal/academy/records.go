package academy

import (
	"context"
	"fmt"
	"strconv"

	"github.com/alagappainfotech/student-registration-app/internal/apperr"
)

func (c *Client) CreateStudent(ctx context.Context, in StudentInput) (*Student, error) {
	return save[Student](c, "create student", in, func(body, out any) error {
		return c.api.Post(ctx, StudentsPath, body, out)
	})
}

// UpdateStudent replaces the student's details. Enrollments are left as
// they are.
func (c *Client) UpdateStudent(ctx context.Context, id int, in StudentInput) (*Student, error) {
	return save[Student](c, "update student", in, func(body, out any) error {
		return c.api.Put(ctx, recordPath(StudentsPath, id), body, out)
	})
}

// UpdateEnrollments replaces the set of courses the student attends.
func (c *Client) UpdateEnrollments(ctx context.Context, id int, courseIDs []int) (*Student, error) {
	if courseIDs == nil {
		courseIDs = []int{}
	}
	var student Student
	if err := c.api.Patch(ctx, recordPath(StudentsPath, id), Enrollment{CourseIDs: courseIDs}, &student); err != nil {
		return nil, fmt.Errorf("failed to update enrollments: %w", err)
	}
	c.logger.InfoContext(ctx, "student enrollments updated", "id", id, "courses", len(courseIDs))
	return &student, nil
}

func (c *Client) DeleteStudent(ctx context.Context, id int) error {
	return c.remove(ctx, "student", StudentsPath, id)
}

func (c *Client) CreateFaculty(ctx context.Context, in FacultyInput) (*Faculty, error) {
	return save[Faculty](c, "create faculty", in, func(body, out any) error {
		return c.api.Post(ctx, FacultyPath, body, out)
	})
}

func (c *Client) UpdateFaculty(ctx context.Context, id int, in FacultyInput) (*Faculty, error) {
	return save[Faculty](c, "update faculty", in, func(body, out any) error {
		return c.api.Put(ctx, recordPath(FacultyPath, id), body, out)
	})
}

func (c *Client) DeleteFaculty(ctx context.Context, id int) error {
	return c.remove(ctx, "faculty", FacultyPath, id)
}

func (c *Client) CreateCourse(ctx context.Context, in CourseInput) (*Course, error) {
	return save[Course](c, "create course", in, func(body, out any) error {
		return c.api.Post(ctx, CoursesPath, body, out)
	})
}

func (c *Client) UpdateCourse(ctx context.Context, id int, in CourseInput) (*Course, error) {
	return save[Course](c, "update course", in, func(body, out any) error {
		return c.api.Put(ctx, recordPath(CoursesPath, id), body, out)
	})
}

func (c *Client) DeleteCourse(ctx context.Context, id int) error {
	return c.remove(ctx, "course", CoursesPath, id)
}

// save validates in and hands it to send. Server side field errors come
// back as *apperr.APIError.
func save[T any](c *Client, op string, in any, send func(body, out any) error) (*T, error) {
	if err := c.validate.Struct(in); err != nil {
		return nil, apperr.FromValidator(err)
	}
	var out T
	if err := send(in, &out); err != nil {
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	return &out, nil
}

func (c *Client) remove(ctx context.Context, kind, collection string, id int) error {
	if err := c.api.Delete(ctx, recordPath(collection, id)); err != nil {
		return fmt.Errorf("failed to delete %s %d: %w", kind, id, err)
	}
	c.logger.InfoContext(ctx, "record deleted", "kind", kind, "id", id)
	return nil
}

func recordPath(collection string, id int) string {
	return collection + strconv.Itoa(id) + "/"
}

