package school

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/evaluo/core"
)

var (
	// errors
	ErrStudentNotFound    = core.NewNotFoundError("student")
	ErrTeacherNotFound    = core.NewNotFoundError("teacher")
	ErrCourseNotFound     = core.NewNotFoundError("course")
	ErrAssignmentNotFound = core.NewNotFoundError("assignment")

	ErrStudentCodeExists   = errors.New("a student with this code already exists")
	ErrStudentEmailExists  = errors.New("a student with this email already exists")
	ErrTeacherEmailExists  = errors.New("a teacher with this email already exists")
	ErrCourseCodeExists    = errors.New("a course with this code already exists")
	ErrAssignmentExists    = errors.New("this teacher is already assigned to this course for this period")
	ErrTeacherAssigned     = errors.New("teacher has course assignments")
	ErrCourseAssigned      = errors.New("course has teacher assignments")
	ErrAssignmentEvaluated = errors.New("the teacher and course of an evaluated assignment cannot change")

	nowFunc = time.Now // mockable
)

type (
	StudentRepository interface {
		// CheckStudentUniqueness returns ErrStudentCodeExists or ErrStudentEmailExists; excludeID is ignored when 0.
		CheckStudentUniqueness(ctx context.Context, code, email string, excludeID int) error
		CreateStudent(ctx context.Context, st Student) (Student, error)
		QueryStudents(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]Student, error)
		GetStudent(ctx context.Context, id int) (Student, error)
		GetStudentByUserID(ctx context.Context, userID int) (Student, error)
		UpdateStudent(ctx context.Context, st Student) (Student, error)
		DeleteStudents(ctx context.Context, ids ...int) (int, error)
	}

	TeacherRepository interface {
		CheckTeacherUniqueness(ctx context.Context, email string, excludeID int) error
		CreateTeacher(ctx context.Context, tch Teacher) (Teacher, error)
		QueryTeachers(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]Teacher, error)
		GetTeacher(ctx context.Context, id int) (Teacher, error)
		GetTeacherByUserID(ctx context.Context, userID int) (Teacher, error)
		UpdateTeacher(ctx context.Context, tch Teacher) (Teacher, error)
		DeleteTeachers(ctx context.Context, ids ...int) (int, error)
	}

	CourseRepository interface {
		CheckCourseUniqueness(ctx context.Context, code string, excludeID int) error
		CreateCourse(ctx context.Context, crs Course) (Course, error)
		QueryCourses(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]Course, error)
		GetCourse(ctx context.Context, id int) (Course, error)
		UpdateCourse(ctx context.Context, crs Course) (Course, error)
		DeleteCourses(ctx context.Context, ids ...int) (int, error)
	}

	AssignmentRepository interface {
		CheckAssignmentUniqueness(ctx context.Context, teacherID, courseID int, period string, excludeID int) error
		CreateAssignment(ctx context.Context, asg Assignment) (Assignment, error)
		QueryAssignments(ctx context.Context, filter AssignmentFilter, ordering []core.DBOrdering) ([]Assignment, error)
		GetAssignment(ctx context.Context, id int) (Assignment, error)
		UpdateAssignment(ctx context.Context, asg Assignment) (Assignment, error)
		AssignmentHasEvaluations(ctx context.Context, id int) (bool, error)
		DeleteAssignments(ctx context.Context, ids ...int) (int, error)
	}

	Repository interface {
		StudentRepository
		TeacherRepository
		CourseRepository
		AssignmentRepository
	}

	// AssignmentsChangedFunc receives assignments, as they were, after they were re-paired or deleted.
	AssignmentsChangedFunc func(ctx context.Context, asgs ...Assignment)

	Service struct {
		repo                 Repository
		onAssignmentsChanged AssignmentsChangedFunc
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo, onAssignmentsChanged: func(context.Context, ...Assignment) {}}
}

// OnAssignmentsChanged registers fn to be called after assignments are re-paired or deleted
// (eg. to drop the cached evaluations of their teacher+course pairs).
func (svc *Service) OnAssignmentsChanged(fn AssignmentsChangedFunc) {
	svc.onAssignmentsChanged = fn
}

func uniquenessError(err error, field string) error {
	return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
}

func (svc *Service) checkStudentUniqueness(ctx context.Context, code, email string, excludeID int) error {
	switch err := svc.repo.CheckStudentUniqueness(ctx, code, email, excludeID); err {
	case nil:
		return nil
	case ErrStudentCodeExists:
		return uniquenessError(err, "code")
	case ErrStudentEmailExists:
		return uniquenessError(err, "email")
	default:
		return errors.Wrap(err, "checking student uniqueness")
	}
}

func (svc *Service) checkTeacherUniqueness(ctx context.Context, email string, excludeID int) error {
	switch err := svc.repo.CheckTeacherUniqueness(ctx, email, excludeID); err {
	case nil:
		return nil
	case ErrTeacherEmailExists:
		return uniquenessError(err, "email")
	default:
		return errors.Wrap(err, "checking teacher uniqueness")
	}
}

func (svc *Service) checkCourseUniqueness(ctx context.Context, code string, excludeID int) error {
	switch err := svc.repo.CheckCourseUniqueness(ctx, code, excludeID); err {
	case nil:
		return nil
	case ErrCourseCodeExists:
		return uniquenessError(err, "code")
	default:
		return errors.Wrap(err, "checking course uniqueness")
	}
}

// checkAssignment makes sure both sides of the assignment exist and the pairing is unique for the period.
func (svc *Service) checkAssignment(ctx context.Context, teacherID, courseID int, period string, excludeID int) error {
	var flds []core.FieldError
	if _, err := svc.repo.GetTeacher(ctx, teacherID); err != nil {
		if errors.Cause(err) != ErrTeacherNotFound {
			return errors.Wrap(err, "finding teacher")
		}
		flds = append(flds, core.FieldError{Field: "teacher_id", Error: err.Error()})
	}
	if _, err := svc.repo.GetCourse(ctx, courseID); err != nil {
		if errors.Cause(err) != ErrCourseNotFound {
			return errors.Wrap(err, "finding course")
		}
		flds = append(flds, core.FieldError{Field: "course_id", Error: err.Error()})
	}
	if len(flds) > 0 {
		return core.NewValidationError(nil, flds...)
	}

	switch err := svc.repo.CheckAssignmentUniqueness(ctx, teacherID, courseID, period, excludeID); err {
	case nil:
		return nil
	case ErrAssignmentExists:
		return uniquenessError(err, "period")
	default:
		return errors.Wrap(err, "checking assignment uniqueness")
	}
}

// Students

func (svc *Service) CreateStudent(ctx context.Context, ns NewStudent) (Student, error) {
	return svc.repo.CreateStudent(ctx, Student{
		Code:      ns.Code,
		Name:      ns.Name,
		Email:     ns.Email,
		Career:    ns.Career,
		UserID:    ns.UserID,
		CreatedAt: nowFunc().UTC(),
	})
}

func (svc *Service) QueryStudents(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]Student, error) {
	return svc.repo.QueryStudents(ctx, filter, ordering)
}

func (svc *Service) GetStudent(ctx context.Context, id int) (Student, error) {
	return svc.repo.GetStudent(ctx, id)
}

func (svc *Service) GetStudentByUserID(ctx context.Context, userID int) (Student, error) {
	return svc.repo.GetStudentByUserID(ctx, userID)
}

func (svc *Service) UpdateStudent(ctx context.Context, orig Student, us UpdateStudent) (Student, error) {
	orig.Code = us.Code
	orig.Name = us.Name
	orig.Email = us.Email
	orig.Career = us.Career
	orig.UserID = *us.UserID
	return svc.repo.UpdateStudent(ctx, orig)
}

func (svc *Service) DeleteStudents(ctx context.Context, ids ...int) (int, error) {
	return svc.repo.DeleteStudents(ctx, ids...)
}

// Teachers

func (svc *Service) CreateTeacher(ctx context.Context, nt NewTeacher) (Teacher, error) {
	return svc.repo.CreateTeacher(ctx, Teacher{
		Name:       nt.Name,
		Email:      nt.Email,
		Department: nt.Department,
		UserID:     nt.UserID,
		CreatedAt:  nowFunc().UTC(),
	})
}

func (svc *Service) QueryTeachers(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]Teacher, error) {
	return svc.repo.QueryTeachers(ctx, filter, ordering)
}

func (svc *Service) GetTeacher(ctx context.Context, id int) (Teacher, error) {
	return svc.repo.GetTeacher(ctx, id)
}

func (svc *Service) GetTeacherByUserID(ctx context.Context, userID int) (Teacher, error) {
	return svc.repo.GetTeacherByUserID(ctx, userID)
}

func (svc *Service) UpdateTeacher(ctx context.Context, orig Teacher, ut UpdateTeacher) (Teacher, error) {
	orig.Name = ut.Name
	orig.Email = ut.Email
	orig.Department = ut.Department
	orig.UserID = *ut.UserID
	return svc.repo.UpdateTeacher(ctx, orig)
}

// DeleteTeachers refuses to delete teachers that still have course assignments.
func (svc *Service) DeleteTeachers(ctx context.Context, ids ...int) (int, error) {
	for _, id := range ids {
		asgs, err := svc.repo.QueryAssignments(ctx, AssignmentFilter{TeacherID: id}, nil)
		if err != nil {
			return 0, errors.Wrap(err, "querying teacher assignments")
		}
		if len(asgs) > 0 {
			return 0, core.NewValidationError(ErrTeacherAssigned)
		}
	}
	return svc.repo.DeleteTeachers(ctx, ids...)
}

// Courses

func (svc *Service) CreateCourse(ctx context.Context, nc NewCourse) (Course, error) {
	return svc.repo.CreateCourse(ctx, Course{
		Code:      nc.Code,
		Name:      nc.Name,
		Credits:   nc.Credits,
		CreatedAt: nowFunc().UTC(),
	})
}

func (svc *Service) QueryCourses(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]Course, error) {
	return svc.repo.QueryCourses(ctx, filter, ordering)
}

func (svc *Service) GetCourse(ctx context.Context, id int) (Course, error) {
	return svc.repo.GetCourse(ctx, id)
}

func (svc *Service) UpdateCourse(ctx context.Context, orig Course, uc UpdateCourse) (Course, error) {
	orig.Code = uc.Code
	orig.Name = uc.Name
	orig.Credits = *uc.Credits
	return svc.repo.UpdateCourse(ctx, orig)
}

// DeleteCourses refuses to delete courses that still have teacher assignments.
func (svc *Service) DeleteCourses(ctx context.Context, ids ...int) (int, error) {
	for _, id := range ids {
		asgs, err := svc.repo.QueryAssignments(ctx, AssignmentFilter{CourseID: id}, nil)
		if err != nil {
			return 0, errors.Wrap(err, "querying course assignments")
		}
		if len(asgs) > 0 {
			return 0, core.NewValidationError(ErrCourseAssigned)
		}
	}
	return svc.repo.DeleteCourses(ctx, ids...)
}

// Assignments

func (svc *Service) CreateAssignment(ctx context.Context, na NewAssignment) (Assignment, error) {
	return svc.repo.CreateAssignment(ctx, Assignment{
		TeacherID: na.TeacherID,
		CourseID:  na.CourseID,
		Period:    na.Period,
		CreatedAt: nowFunc().UTC(),
	})
}

func (svc *Service) QueryAssignments(ctx context.Context, filter AssignmentFilter, ordering []core.DBOrdering) ([]Assignment, error) {
	return svc.repo.QueryAssignments(ctx, filter, ordering)
}

func (svc *Service) GetAssignment(ctx context.Context, id int) (Assignment, error) {
	return svc.repo.GetAssignment(ctx, id)
}

// UpdateAssignment refuses to change the teacher or the course of an assignment that has evaluations.
func (svc *Service) UpdateAssignment(ctx context.Context, orig Assignment, ua UpdateAssignment) (Assignment, error) {
	repaired := ua.TeacherID != orig.TeacherID || ua.CourseID != orig.CourseID
	if repaired {
		evaluated, err := svc.repo.AssignmentHasEvaluations(ctx, orig.ID)
		if err != nil {
			return Assignment{}, errors.Wrap(err, "checking assignment evaluations")
		}
		if evaluated {
			return Assignment{}, core.NewValidationError(ErrAssignmentEvaluated)
		}
	}

	asg := orig
	asg.TeacherID = ua.TeacherID
	asg.CourseID = ua.CourseID
	asg.Period = ua.Period
	asg, err := svc.repo.UpdateAssignment(ctx, asg)
	if err != nil {
		return Assignment{}, err
	}
	if repaired {
		svc.onAssignmentsChanged(ctx, orig, asg)
	}
	return asg, nil
}

// DeleteAssignments deletes the assignments along with their evaluations.
func (svc *Service) DeleteAssignments(ctx context.Context, ids ...int) (int, error) {
	asgs := make([]Assignment, 0, len(ids))
	for _, id := range ids {
		asg, err := svc.repo.GetAssignment(ctx, id)
		if core.IsNotFound(err) {
			continue
		}
		if err != nil {
			return 0, errors.Wrap(err, "getting assignment")
		}
		asgs = append(asgs, asg)
	}

	n, err := svc.repo.DeleteAssignments(ctx, ids...)
	if err != nil {
		return 0, err
	}
	if len(asgs) > 0 {
		svc.onAssignmentsChanged(ctx, asgs...)
	}
	return n, nil
}
