package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/evaluo/core"
	"github.com/trezcool/evaluo/core/school"
)

const (
	studentColumns    = "id, code, name, email, career, user_id, created_at"
	teacherColumns    = "id, name, email, department, user_id, created_at"
	courseColumns     = "id, code, name, credits, created_at"
	assignmentColumns = "id, teacher_id, course_id, period, created_at"
)

var (
	studentOrdering    = fieldSet("id", "code", "name", "email", "career", "created_at")
	teacherOrdering    = fieldSet("id", "name", "email", "department", "created_at")
	courseOrdering     = fieldSet("id", "code", "name", "credits", "created_at")
	assignmentOrdering = fieldSet("id", "teacher_id", "course_id", "period", "created_at")
)

type studentRow struct {
	ID        int         `db:"id"`
	Code      string      `db:"code"`
	Name      string      `db:"name"`
	Email     null.String `db:"email"`
	Career    string      `db:"career"`
	UserID    null.Int    `db:"user_id"`
	CreatedAt time.Time   `db:"created_at"`
}

func toStudentRow(st school.Student) studentRow {
	return studentRow{
		ID:        st.ID,
		Code:      st.Code,
		Name:      st.Name,
		Email:     nullString(st.Email),
		Career:    st.Career,
		UserID:    nullInt(st.UserID),
		CreatedAt: st.CreatedAt.UTC(),
	}
}

func (r studentRow) student() school.Student {
	return school.Student{
		ID:        r.ID,
		Code:      r.Code,
		Name:      r.Name,
		Email:     r.Email.String,
		Career:    r.Career,
		UserID:    r.UserID.Int,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

type teacherRow struct {
	ID         int         `db:"id"`
	Name       string      `db:"name"`
	Email      null.String `db:"email"`
	Department string      `db:"department"`
	UserID     null.Int    `db:"user_id"`
	CreatedAt  time.Time   `db:"created_at"`
}

func toTeacherRow(tch school.Teacher) teacherRow {
	return teacherRow{
		ID:         tch.ID,
		Name:       tch.Name,
		Email:      nullString(tch.Email),
		Department: tch.Department,
		UserID:     nullInt(tch.UserID),
		CreatedAt:  tch.CreatedAt.UTC(),
	}
}

func (r teacherRow) teacher() school.Teacher {
	return school.Teacher{
		ID:         r.ID,
		Name:       r.Name,
		Email:      r.Email.String,
		Department: r.Department,
		UserID:     r.UserID.Int,
		CreatedAt:  r.CreatedAt.UTC(),
	}
}

// courses and assignments have no nullable columns and scan straight into the domain types
type courseRow struct {
	ID        int       `db:"id"`
	Code      string    `db:"code"`
	Name      string    `db:"name"`
	Credits   int       `db:"credits"`
	CreatedAt time.Time `db:"created_at"`
}

type assignmentRow struct {
	ID        int       `db:"id"`
	TeacherID int       `db:"teacher_id"`
	CourseID  int       `db:"course_id"`
	Period    string    `db:"period"`
	CreatedAt time.Time `db:"created_at"`
}

type schoolRepository struct {
	db *sqlx.DB
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(db *sqlx.DB) school.Repository {
	return &schoolRepository{db: db}
}

func (repo *schoolRepository) get(ctx context.Context, dest interface{}, notFound error, q string, args ...interface{}) error {
	if err := repo.db.GetContext(ctx, dest, repo.db.Rebind(q), args...); err != nil {
		return trapNoRows(err, notFound, "finding "+notFound.(*core.NotFoundError).Resource)
	}
	return nil
}

func (repo *schoolRepository) exists(ctx context.Context, q string, args ...interface{}) (bool, error) {
	var n int
	if err := repo.db.GetContext(ctx, &n, repo.db.Rebind("SELECT COUNT(*) FROM ("+q+" LIMIT 1) AS t"), args...); err != nil {
		return false, err
	}
	return n > 0, nil
}

func wrapNotFound(err error, notFound error, msg string) error {
	if err == notFound {
		return err
	}
	return errors.Wrap(err, msg)
}

// Students

func (repo *schoolRepository) CheckStudentUniqueness(ctx context.Context, code, email string, excludeID int) error {
	found, err := repo.exists(ctx, "SELECT id FROM students WHERE code = ? AND id <> ?", nullString(code), excludeID)
	if err != nil {
		return errors.Wrap(err, "checking student code")
	}
	if found {
		return school.ErrStudentCodeExists
	}
	found, err = repo.exists(ctx, "SELECT id FROM students WHERE email = ? AND id <> ?", nullString(email), excludeID)
	if err != nil {
		return errors.Wrap(err, "checking student email")
	}
	if found {
		return school.ErrStudentEmailExists
	}
	return nil
}

func (repo *schoolRepository) CreateStudent(ctx context.Context, st school.Student) (school.Student, error) {
	id, err := insert(ctx, repo.db, `INSERT INTO students (code, name, email, career, user_id, created_at)
		VALUES (:code, :name, :email, :career, :user_id, :created_at)`, toStudentRow(st))
	if err != nil {
		return school.Student{}, errors.Wrap(err, "inserting student")
	}
	st.ID = id
	return st, nil
}

func (repo *schoolRepository) QueryStudents(ctx context.Context, filter school.QueryFilter, ordering []core.DBOrdering) ([]school.Student, error) {
	var qb queryBuilder
	qb.search(filter.Search, "code", "name", "email")
	q := "SELECT " + studentColumns + " FROM students" + qb.String() +
		orderBy(ordering, studentOrdering, core.DBOrdering{Field: "name", Ascending: true})

	var rows []studentRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), qb.args...); err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	students := make([]school.Student, 0, len(rows))
	for _, r := range rows {
		students = append(students, r.student())
	}
	return students, nil
}

func (repo *schoolRepository) GetStudent(ctx context.Context, id int) (school.Student, error) {
	var r studentRow
	if err := repo.get(ctx, &r, school.ErrStudentNotFound, "SELECT "+studentColumns+" FROM students WHERE id = ?", id); err != nil {
		return school.Student{}, err
	}
	return r.student(), nil
}

func (repo *schoolRepository) GetStudentByUserID(ctx context.Context, userID int) (school.Student, error) {
	if userID == 0 {
		return school.Student{}, school.ErrStudentNotFound
	}
	var r studentRow
	if err := repo.get(ctx, &r, school.ErrStudentNotFound, "SELECT "+studentColumns+" FROM students WHERE user_id = ? LIMIT 1", userID); err != nil {
		return school.Student{}, err
	}
	return r.student(), nil
}

func (repo *schoolRepository) UpdateStudent(ctx context.Context, st school.Student) (school.Student, error) {
	err := update(ctx, repo.db, `UPDATE students SET code = :code, name = :name, email = :email, career = :career, user_id = :user_id
		WHERE id = :id`, toStudentRow(st), school.ErrStudentNotFound)
	if err != nil {
		return school.Student{}, wrapNotFound(err, school.ErrStudentNotFound, "updating student")
	}
	return st, nil
}

func (repo *schoolRepository) DeleteStudents(ctx context.Context, ids ...int) (int, error) {
	n, err := deleteIDs(ctx, repo.db, "students", ids)
	if err != nil {
		return 0, errors.Wrap(err, "deleting students")
	}
	return n, nil
}

// Teachers

func (repo *schoolRepository) CheckTeacherUniqueness(ctx context.Context, email string, excludeID int) error {
	found, err := repo.exists(ctx, "SELECT id FROM teachers WHERE email = ? AND id <> ?", nullString(email), excludeID)
	if err != nil {
		return errors.Wrap(err, "checking teacher email")
	}
	if found {
		return school.ErrTeacherEmailExists
	}
	return nil
}

func (repo *schoolRepository) CreateTeacher(ctx context.Context, tch school.Teacher) (school.Teacher, error) {
	id, err := insert(ctx, repo.db, `INSERT INTO teachers (name, email, department, user_id, created_at)
		VALUES (:name, :email, :department, :user_id, :created_at)`, toTeacherRow(tch))
	if err != nil {
		return school.Teacher{}, errors.Wrap(err, "inserting teacher")
	}
	tch.ID = id
	return tch, nil
}

func (repo *schoolRepository) QueryTeachers(ctx context.Context, filter school.QueryFilter, ordering []core.DBOrdering) ([]school.Teacher, error) {
	var qb queryBuilder
	qb.search(filter.Search, "name", "email", "department")
	q := "SELECT " + teacherColumns + " FROM teachers" + qb.String() +
		orderBy(ordering, teacherOrdering, core.DBOrdering{Field: "name", Ascending: true})

	var rows []teacherRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), qb.args...); err != nil {
		return nil, errors.Wrap(err, "querying teachers")
	}
	teachers := make([]school.Teacher, 0, len(rows))
	for _, r := range rows {
		teachers = append(teachers, r.teacher())
	}
	return teachers, nil
}

func (repo *schoolRepository) GetTeacher(ctx context.Context, id int) (school.Teacher, error) {
	var r teacherRow
	if err := repo.get(ctx, &r, school.ErrTeacherNotFound, "SELECT "+teacherColumns+" FROM teachers WHERE id = ?", id); err != nil {
		return school.Teacher{}, err
	}
	return r.teacher(), nil
}

func (repo *schoolRepository) GetTeacherByUserID(ctx context.Context, userID int) (school.Teacher, error) {
	if userID == 0 {
		return school.Teacher{}, school.ErrTeacherNotFound
	}
	var r teacherRow
	if err := repo.get(ctx, &r, school.ErrTeacherNotFound, "SELECT "+teacherColumns+" FROM teachers WHERE user_id = ? LIMIT 1", userID); err != nil {
		return school.Teacher{}, err
	}
	return r.teacher(), nil
}

func (repo *schoolRepository) UpdateTeacher(ctx context.Context, tch school.Teacher) (school.Teacher, error) {
	err := update(ctx, repo.db, `UPDATE teachers SET name = :name, email = :email, department = :department, user_id = :user_id
		WHERE id = :id`, toTeacherRow(tch), school.ErrTeacherNotFound)
	if err != nil {
		return school.Teacher{}, wrapNotFound(err, school.ErrTeacherNotFound, "updating teacher")
	}
	return tch, nil
}

func (repo *schoolRepository) DeleteTeachers(ctx context.Context, ids ...int) (int, error) {
	n, err := deleteIDs(ctx, repo.db, "teachers", ids)
	if err != nil {
		return 0, errors.Wrap(err, "deleting teachers")
	}
	return n, nil
}

// Courses

func (repo *schoolRepository) CheckCourseUniqueness(ctx context.Context, code string, excludeID int) error {
	found, err := repo.exists(ctx, "SELECT id FROM courses WHERE code = ? AND id <> ?", nullString(code), excludeID)
	if err != nil {
		return errors.Wrap(err, "checking course code")
	}
	if found {
		return school.ErrCourseCodeExists
	}
	return nil
}

func (repo *schoolRepository) CreateCourse(ctx context.Context, crs school.Course) (school.Course, error) {
	crs.CreatedAt = crs.CreatedAt.UTC()
	id, err := insert(ctx, repo.db, `INSERT INTO courses (code, name, credits, created_at)
		VALUES (:code, :name, :credits, :created_at)`, courseRow(crs))
	if err != nil {
		return school.Course{}, errors.Wrap(err, "inserting course")
	}
	crs.ID = id
	return crs, nil
}

func (repo *schoolRepository) QueryCourses(ctx context.Context, filter school.QueryFilter, ordering []core.DBOrdering) ([]school.Course, error) {
	var qb queryBuilder
	qb.search(filter.Search, "code", "name")
	q := "SELECT " + courseColumns + " FROM courses" + qb.String() +
		orderBy(ordering, courseOrdering, core.DBOrdering{Field: "code", Ascending: true})

	var rows []courseRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), qb.args...); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	courses := make([]school.Course, 0, len(rows))
	for _, r := range rows {
		r.CreatedAt = r.CreatedAt.UTC()
		courses = append(courses, school.Course(r))
	}
	return courses, nil
}

func (repo *schoolRepository) GetCourse(ctx context.Context, id int) (school.Course, error) {
	var r courseRow
	if err := repo.get(ctx, &r, school.ErrCourseNotFound, "SELECT "+courseColumns+" FROM courses WHERE id = ?", id); err != nil {
		return school.Course{}, err
	}
	r.CreatedAt = r.CreatedAt.UTC()
	return school.Course(r), nil
}

func (repo *schoolRepository) UpdateCourse(ctx context.Context, crs school.Course) (school.Course, error) {
	err := update(ctx, repo.db, `UPDATE courses SET code = :code, name = :name, credits = :credits WHERE id = :id`,
		courseRow(crs), school.ErrCourseNotFound)
	if err != nil {
		return school.Course{}, wrapNotFound(err, school.ErrCourseNotFound, "updating course")
	}
	return crs, nil
}

func (repo *schoolRepository) DeleteCourses(ctx context.Context, ids ...int) (int, error) {
	n, err := deleteIDs(ctx, repo.db, "courses", ids)
	if err != nil {
		return 0, errors.Wrap(err, "deleting courses")
	}
	return n, nil
}

// Assignments

func (repo *schoolRepository) CheckAssignmentUniqueness(ctx context.Context, teacherID, courseID int, period string, excludeID int) error {
	found, err := repo.exists(ctx,
		"SELECT id FROM assignments WHERE teacher_id = ? AND course_id = ? AND period = ? AND id <> ?",
		teacherID, courseID, period, excludeID)
	if err != nil {
		return errors.Wrap(err, "checking assignment uniqueness")
	}
	if found {
		return school.ErrAssignmentExists
	}
	return nil
}

func (repo *schoolRepository) CreateAssignment(ctx context.Context, asg school.Assignment) (school.Assignment, error) {
	asg.CreatedAt = asg.CreatedAt.UTC()
	id, err := insert(ctx, repo.db, `INSERT INTO assignments (teacher_id, course_id, period, created_at)
		VALUES (:teacher_id, :course_id, :period, :created_at)`, assignmentRow(asg))
	if err != nil {
		return school.Assignment{}, errors.Wrap(err, "inserting assignment")
	}
	asg.ID = id
	return asg, nil
}

func (repo *schoolRepository) QueryAssignments(ctx context.Context, filter school.AssignmentFilter, ordering []core.DBOrdering) ([]school.Assignment, error) {
	var qb queryBuilder
	if filter.TeacherID != 0 {
		qb.add("teacher_id = ?", filter.TeacherID)
	}
	if filter.CourseID != 0 {
		qb.add("course_id = ?", filter.CourseID)
	}
	if filter.Period != "" {
		qb.add("period = ?", filter.Period)
	}
	q := "SELECT " + assignmentColumns + " FROM assignments" + qb.String() +
		orderBy(ordering, assignmentOrdering, core.DBOrdering{Field: "period"}, core.DBOrdering{Field: "id", Ascending: true})

	var rows []assignmentRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), qb.args...); err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	asgs := make([]school.Assignment, 0, len(rows))
	for _, r := range rows {
		r.CreatedAt = r.CreatedAt.UTC()
		asgs = append(asgs, school.Assignment(r))
	}
	return asgs, nil
}

func (repo *schoolRepository) GetAssignment(ctx context.Context, id int) (school.Assignment, error) {
	var r assignmentRow
	if err := repo.get(ctx, &r, school.ErrAssignmentNotFound, "SELECT "+assignmentColumns+" FROM assignments WHERE id = ?", id); err != nil {
		return school.Assignment{}, err
	}
	r.CreatedAt = r.CreatedAt.UTC()
	return school.Assignment(r), nil
}

func (repo *schoolRepository) UpdateAssignment(ctx context.Context, asg school.Assignment) (school.Assignment, error) {
	err := update(ctx, repo.db, `UPDATE assignments SET teacher_id = :teacher_id, course_id = :course_id, period = :period
		WHERE id = :id`, assignmentRow(asg), school.ErrAssignmentNotFound)
	if err != nil {
		return school.Assignment{}, wrapNotFound(err, school.ErrAssignmentNotFound, "updating assignment")
	}
	return asg, nil
}

func (repo *schoolRepository) AssignmentHasEvaluations(ctx context.Context, id int) (bool, error) {
	found, err := repo.exists(ctx, "SELECT id FROM evaluations WHERE assignment_id = ?", id)
	if err != nil {
		return false, errors.Wrap(err, "checking assignment evaluations")
	}
	return found, nil
}

// DeleteAssignments relies on the schema to cascade to the evaluations.
func (repo *schoolRepository) DeleteAssignments(ctx context.Context, ids ...int) (int, error) {
	n, err := deleteIDs(ctx, repo.db, "assignments", ids)
	if err != nil {
		return 0, errors.Wrap(err, "deleting assignments")
	}
	return n, nil
}
