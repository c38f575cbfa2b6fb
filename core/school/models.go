// Package school manages the academic catalogue: students, teachers, courses
// and the teacher-course assignments that students evaluate.
package school

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/evaluo/core"
)

type Student struct {
	ID        int       `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Career    string    `json:"career"`
	UserID    int       `json:"user_id,omitempty"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

type Teacher struct {
	ID         int       `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Department string    `json:"department"`
	UserID     int       `json:"user_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"` // UTC
}

type Course struct {
	ID        int       `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Credits   int       `json:"credits"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

// Assignment pairs a teacher with a course for an academic period (eg. "2024-1").
type Assignment struct {
	ID        int       `json:"id"`
	TeacherID int       `json:"teacher_id"`
	CourseID  int       `json:"course_id"`
	Period    string    `json:"period"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

// NewStudent contains information needed to create a new Student.
type NewStudent struct {
	Code   string `json:"code" validate:"required,max=20,alphanum_"`
	Name   string `json:"name" validate:"required,max=150"`
	Email  string `json:"email" validate:"omitempty,email"`
	Career string `json:"career" validate:"max=150"`
	UserID int    `json:"user_id" validate:"min=0"`
}

func (ns *NewStudent) Validate(ctx context.Context, validate *validator.Validate, svc *Service) error {
	ns.Code = core.CleanString(ns.Code, true /* lower */)
	ns.Name = core.CleanString(ns.Name)
	ns.Email = core.CleanString(ns.Email, true /* lower */)
	ns.Career = core.CleanString(ns.Career)

	if err := validate.Struct(ns); err != nil {
		return err
	}
	return svc.checkStudentUniqueness(ctx, ns.Code, ns.Email, 0)
}

// UpdateStudent defines what information may be provided to modify an existing Student.
// Empty fields keep their current value.
type UpdateStudent struct {
	Code   string `json:"code" validate:"omitempty,max=20,alphanum_"`
	Name   string `json:"name" validate:"max=150"`
	Email  string `json:"email" validate:"omitempty,email"`
	Career string `json:"career" validate:"max=150"`
	UserID *int   `json:"user_id" validate:"omitempty,min=0"`
}

func (us *UpdateStudent) Validate(ctx context.Context, orig Student, validate *validator.Validate, svc *Service) error {
	us.Code = orDefault(core.CleanString(us.Code, true /* lower */), orig.Code)
	us.Name = orDefault(core.CleanString(us.Name), orig.Name)
	us.Email = orDefault(core.CleanString(us.Email, true /* lower */), orig.Email)
	us.Career = orDefault(core.CleanString(us.Career), orig.Career)
	if us.UserID == nil {
		us.UserID = &orig.UserID
	}

	if err := validate.Struct(us); err != nil {
		return err
	}
	return svc.checkStudentUniqueness(ctx, us.Code, us.Email, orig.ID)
}

type NewTeacher struct {
	Name       string `json:"name" validate:"required,max=150"`
	Email      string `json:"email" validate:"required,email"`
	Department string `json:"department" validate:"max=150"`
	UserID     int    `json:"user_id" validate:"min=0"`
}

func (nt *NewTeacher) Validate(ctx context.Context, validate *validator.Validate, svc *Service) error {
	nt.Name = core.CleanString(nt.Name)
	nt.Email = core.CleanString(nt.Email, true /* lower */)
	nt.Department = core.CleanString(nt.Department)

	if err := validate.Struct(nt); err != nil {
		return err
	}
	return svc.checkTeacherUniqueness(ctx, nt.Email, 0)
}

type UpdateTeacher struct {
	Name       string `json:"name" validate:"max=150"`
	Email      string `json:"email" validate:"omitempty,email"`
	Department string `json:"department" validate:"max=150"`
	UserID     *int   `json:"user_id" validate:"omitempty,min=0"`
}

func (ut *UpdateTeacher) Validate(ctx context.Context, orig Teacher, validate *validator.Validate, svc *Service) error {
	ut.Name = orDefault(core.CleanString(ut.Name), orig.Name)
	ut.Email = orDefault(core.CleanString(ut.Email, true /* lower */), orig.Email)
	ut.Department = orDefault(core.CleanString(ut.Department), orig.Department)
	if ut.UserID == nil {
		ut.UserID = &orig.UserID
	}

	if err := validate.Struct(ut); err != nil {
		return err
	}
	return svc.checkTeacherUniqueness(ctx, ut.Email, orig.ID)
}

type NewCourse struct {
	Code    string `json:"code" validate:"required,max=20,alphanum_"`
	Name    string `json:"name" validate:"required,max=150"`
	Credits int    `json:"credits" validate:"min=0,max=30"`
}

func (nc *NewCourse) Validate(ctx context.Context, validate *validator.Validate, svc *Service) error {
	nc.Code = core.CleanString(nc.Code, true /* lower */)
	nc.Name = core.CleanString(nc.Name)

	if err := validate.Struct(nc); err != nil {
		return err
	}
	return svc.checkCourseUniqueness(ctx, nc.Code, 0)
}

type UpdateCourse struct {
	Code    string `json:"code" validate:"omitempty,max=20,alphanum_"`
	Name    string `json:"name" validate:"max=150"`
	Credits *int   `json:"credits" validate:"omitempty,min=0,max=30"`
}

func (uc *UpdateCourse) Validate(ctx context.Context, orig Course, validate *validator.Validate, svc *Service) error {
	uc.Code = orDefault(core.CleanString(uc.Code, true /* lower */), orig.Code)
	uc.Name = orDefault(core.CleanString(uc.Name), orig.Name)
	if uc.Credits == nil {
		uc.Credits = &orig.Credits
	}

	if err := validate.Struct(uc); err != nil {
		return err
	}
	return svc.checkCourseUniqueness(ctx, uc.Code, orig.ID)
}

type NewAssignment struct {
	TeacherID int    `json:"teacher_id" validate:"required,min=1"`
	CourseID  int    `json:"course_id" validate:"required,min=1"`
	Period    string `json:"period" validate:"required,max=20"`
}

func (na *NewAssignment) Validate(ctx context.Context, validate *validator.Validate, svc *Service) error {
	na.Period = core.CleanString(na.Period)

	if err := validate.Struct(na); err != nil {
		return err
	}
	return svc.checkAssignment(ctx, na.TeacherID, na.CourseID, na.Period, 0)
}

type UpdateAssignment struct {
	TeacherID int    `json:"teacher_id" validate:"min=0"`
	CourseID  int    `json:"course_id" validate:"min=0"`
	Period    string `json:"period" validate:"max=20"`
}

func (ua *UpdateAssignment) Validate(ctx context.Context, orig Assignment, validate *validator.Validate, svc *Service) error {
	if ua.TeacherID == 0 {
		ua.TeacherID = orig.TeacherID
	}
	if ua.CourseID == 0 {
		ua.CourseID = orig.CourseID
	}
	ua.Period = orDefault(core.CleanString(ua.Period), orig.Period)

	if err := validate.Struct(ua); err != nil {
		return err
	}
	return svc.checkAssignment(ctx, ua.TeacherID, ua.CourseID, ua.Period, orig.ID)
}

// QueryFilter does a case-insensitive search on names, codes and emails.
type QueryFilter struct {
	Search string `query:"search"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

// AssignmentFilter applies AND operation on its non-zero fields.
type AssignmentFilter struct {
	TeacherID int    `query:"teacher_id"`
	CourseID  int    `query:"course_id"`
	Period    string `query:"period"`
}

func orDefault(val, def string) string {
	if val != "" {
		return val
	}
	return def
}
