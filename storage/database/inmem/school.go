package inmemdb

import (
	"context"

	"github.com/trezcool/evaluo/core"
	"github.com/trezcool/evaluo/core/evaluation"
	"github.com/trezcool/evaluo/core/school"
)

var (
	studentFields = map[string]comparator[school.Student]{
		"id":         func(a, b school.Student) int { return cmpInt(a.ID, b.ID) },
		"code":       func(a, b school.Student) int { return cmpString(a.Code, b.Code) },
		"name":       func(a, b school.Student) int { return cmpString(a.Name, b.Name) },
		"email":      func(a, b school.Student) int { return cmpString(a.Email, b.Email) },
		"career":     func(a, b school.Student) int { return cmpString(a.Career, b.Career) },
		"created_at": func(a, b school.Student) int { return cmpTime(a.CreatedAt, b.CreatedAt) },
	}
	teacherFields = map[string]comparator[school.Teacher]{
		"id":         func(a, b school.Teacher) int { return cmpInt(a.ID, b.ID) },
		"name":       func(a, b school.Teacher) int { return cmpString(a.Name, b.Name) },
		"email":      func(a, b school.Teacher) int { return cmpString(a.Email, b.Email) },
		"department": func(a, b school.Teacher) int { return cmpString(a.Department, b.Department) },
		"created_at": func(a, b school.Teacher) int { return cmpTime(a.CreatedAt, b.CreatedAt) },
	}
	courseFields = map[string]comparator[school.Course]{
		"id":         func(a, b school.Course) int { return cmpInt(a.ID, b.ID) },
		"code":       func(a, b school.Course) int { return cmpString(a.Code, b.Code) },
		"name":       func(a, b school.Course) int { return cmpString(a.Name, b.Name) },
		"credits":    func(a, b school.Course) int { return cmpInt(a.Credits, b.Credits) },
		"created_at": func(a, b school.Course) int { return cmpTime(a.CreatedAt, b.CreatedAt) },
	}
	assignmentFields = map[string]comparator[school.Assignment]{
		"id":         func(a, b school.Assignment) int { return cmpInt(a.ID, b.ID) },
		"teacher_id": func(a, b school.Assignment) int { return cmpInt(a.TeacherID, b.TeacherID) },
		"course_id":  func(a, b school.Assignment) int { return cmpInt(a.CourseID, b.CourseID) },
		"period":     func(a, b school.Assignment) int { return cmpString(a.Period, b.Period) },
		"created_at": func(a, b school.Assignment) int { return cmpTime(a.CreatedAt, b.CreatedAt) },
	}
)

type schoolRepository struct {
	student    *table[school.Student]
	teacher    *table[school.Teacher]
	course     *table[school.Course]
	assignment *table[school.Assignment]
	evaluation *table[evaluation.Evaluation]
}

var _ school.Repository = (*schoolRepository)(nil)

func NewSchoolRepository(db *DB) school.Repository {
	return &schoolRepository{
		student:    db.student,
		teacher:    db.teacher,
		course:     db.course,
		assignment: db.assignment,
		evaluation: db.evaluation,
	}
}

// Students

func (repo *schoolRepository) CheckStudentUniqueness(_ context.Context, code, email string, excludeID int) error {
	repo.student.RLock()
	defer repo.student.RUnlock()

	for _, st := range repo.student.all() {
		if st.ID == excludeID {
			continue
		}
		if code != "" && st.Code == code {
			return school.ErrStudentCodeExists
		}
		if email != "" && st.Email == email {
			return school.ErrStudentEmailExists
		}
	}
	return nil
}

func (repo *schoolRepository) CreateStudent(_ context.Context, st school.Student) (school.Student, error) {
	repo.student.Lock()
	defer repo.student.Unlock()

	st.ID = repo.student.nextID()
	repo.student.rows[st.ID] = st
	return st, nil
}

func (repo *schoolRepository) QueryStudents(_ context.Context, filter school.QueryFilter, ordering []core.DBOrdering) ([]school.Student, error) {
	repo.student.RLock()
	defer repo.student.RUnlock()

	students := make([]school.Student, 0, len(repo.student.rows))
	for _, st := range repo.student.all() {
		if filter.Search == "" || containsAny(filter.Search, st.Code, st.Name, st.Email) {
			students = append(students, st)
		}
	}
	orderBy(students, withDefault(ordering, core.DBOrdering{Field: "name", Ascending: true}), studentFields)
	return students, nil
}

func (repo *schoolRepository) GetStudent(_ context.Context, id int) (school.Student, error) {
	repo.student.RLock()
	defer repo.student.RUnlock()

	if st, ok := repo.student.rows[id]; ok {
		return st, nil
	}
	return school.Student{}, school.ErrStudentNotFound
}

func (repo *schoolRepository) GetStudentByUserID(_ context.Context, userID int) (school.Student, error) {
	repo.student.RLock()
	defer repo.student.RUnlock()

	if userID != 0 {
		for _, st := range repo.student.all() {
			if st.UserID == userID {
				return st, nil
			}
		}
	}
	return school.Student{}, school.ErrStudentNotFound
}

func (repo *schoolRepository) UpdateStudent(_ context.Context, st school.Student) (school.Student, error) {
	repo.student.Lock()
	defer repo.student.Unlock()

	if _, ok := repo.student.rows[st.ID]; !ok {
		return school.Student{}, school.ErrStudentNotFound
	}
	repo.student.rows[st.ID] = st
	return st, nil
}

func (repo *schoolRepository) DeleteStudents(_ context.Context, ids ...int) (int, error) {
	repo.student.Lock()
	defer repo.student.Unlock()
	return repo.student.deleteIDs(ids), nil
}

// Teachers

func (repo *schoolRepository) CheckTeacherUniqueness(_ context.Context, email string, excludeID int) error {
	repo.teacher.RLock()
	defer repo.teacher.RUnlock()

	for _, tch := range repo.teacher.all() {
		if tch.ID != excludeID && email != "" && tch.Email == email {
			return school.ErrTeacherEmailExists
		}
	}
	return nil
}

func (repo *schoolRepository) CreateTeacher(_ context.Context, tch school.Teacher) (school.Teacher, error) {
	repo.teacher.Lock()
	defer repo.teacher.Unlock()

	tch.ID = repo.teacher.nextID()
	repo.teacher.rows[tch.ID] = tch
	return tch, nil
}

func (repo *schoolRepository) QueryTeachers(_ context.Context, filter school.QueryFilter, ordering []core.DBOrdering) ([]school.Teacher, error) {
	repo.teacher.RLock()
	defer repo.teacher.RUnlock()

	teachers := make([]school.Teacher, 0, len(repo.teacher.rows))
	for _, tch := range repo.teacher.all() {
		if filter.Search == "" || containsAny(filter.Search, tch.Name, tch.Email, tch.Department) {
			teachers = append(teachers, tch)
		}
	}
	orderBy(teachers, withDefault(ordering, core.DBOrdering{Field: "name", Ascending: true}), teacherFields)
	return teachers, nil
}

func (repo *schoolRepository) GetTeacher(_ context.Context, id int) (school.Teacher, error) {
	repo.teacher.RLock()
	defer repo.teacher.RUnlock()

	if tch, ok := repo.teacher.rows[id]; ok {
		return tch, nil
	}
	return school.Teacher{}, school.ErrTeacherNotFound
}

func (repo *schoolRepository) GetTeacherByUserID(_ context.Context, userID int) (school.Teacher, error) {
	repo.teacher.RLock()
	defer repo.teacher.RUnlock()

	if userID != 0 {
		for _, tch := range repo.teacher.all() {
			if tch.UserID == userID {
				return tch, nil
			}
		}
	}
	return school.Teacher{}, school.ErrTeacherNotFound
}

func (repo *schoolRepository) UpdateTeacher(_ context.Context, tch school.Teacher) (school.Teacher, error) {
	repo.teacher.Lock()
	defer repo.teacher.Unlock()

	if _, ok := repo.teacher.rows[tch.ID]; !ok {
		return school.Teacher{}, school.ErrTeacherNotFound
	}
	repo.teacher.rows[tch.ID] = tch
	return tch, nil
}

func (repo *schoolRepository) DeleteTeachers(_ context.Context, ids ...int) (int, error) {
	repo.teacher.Lock()
	defer repo.teacher.Unlock()
	return repo.teacher.deleteIDs(ids), nil
}

// Courses

func (repo *schoolRepository) CheckCourseUniqueness(_ context.Context, code string, excludeID int) error {
	repo.course.RLock()
	defer repo.course.RUnlock()

	for _, crs := range repo.course.all() {
		if crs.ID != excludeID && code != "" && crs.Code == code {
			return school.ErrCourseCodeExists
		}
	}
	return nil
}

func (repo *schoolRepository) CreateCourse(_ context.Context, crs school.Course) (school.Course, error) {
	repo.course.Lock()
	defer repo.course.Unlock()

	crs.ID = repo.course.nextID()
	repo.course.rows[crs.ID] = crs
	return crs, nil
}

func (repo *schoolRepository) QueryCourses(_ context.Context, filter school.QueryFilter, ordering []core.DBOrdering) ([]school.Course, error) {
	repo.course.RLock()
	defer repo.course.RUnlock()

	courses := make([]school.Course, 0, len(repo.course.rows))
	for _, crs := range repo.course.all() {
		if filter.Search == "" || containsAny(filter.Search, crs.Code, crs.Name) {
			courses = append(courses, crs)
		}
	}
	orderBy(courses, withDefault(ordering, core.DBOrdering{Field: "code", Ascending: true}), courseFields)
	return courses, nil
}

func (repo *schoolRepository) GetCourse(_ context.Context, id int) (school.Course, error) {
	repo.course.RLock()
	defer repo.course.RUnlock()

	if crs, ok := repo.course.rows[id]; ok {
		return crs, nil
	}
	return school.Course{}, school.ErrCourseNotFound
}

func (repo *schoolRepository) UpdateCourse(_ context.Context, crs school.Course) (school.Course, error) {
	repo.course.Lock()
	defer repo.course.Unlock()

	if _, ok := repo.course.rows[crs.ID]; !ok {
		return school.Course{}, school.ErrCourseNotFound
	}
	repo.course.rows[crs.ID] = crs
	return crs, nil
}

func (repo *schoolRepository) DeleteCourses(_ context.Context, ids ...int) (int, error) {
	repo.course.Lock()
	defer repo.course.Unlock()
	return repo.course.deleteIDs(ids), nil
}

// Assignments

func (repo *schoolRepository) CheckAssignmentUniqueness(_ context.Context, teacherID, courseID int, period string, excludeID int) error {
	repo.assignment.RLock()
	defer repo.assignment.RUnlock()

	for _, asg := range repo.assignment.all() {
		if asg.ID != excludeID && asg.TeacherID == teacherID && asg.CourseID == courseID && asg.Period == period {
			return school.ErrAssignmentExists
		}
	}
	return nil
}

func (repo *schoolRepository) CreateAssignment(_ context.Context, asg school.Assignment) (school.Assignment, error) {
	repo.assignment.Lock()
	defer repo.assignment.Unlock()

	asg.ID = repo.assignment.nextID()
	repo.assignment.rows[asg.ID] = asg
	return asg, nil
}

func (repo *schoolRepository) QueryAssignments(_ context.Context, filter school.AssignmentFilter, ordering []core.DBOrdering) ([]school.Assignment, error) {
	repo.assignment.RLock()
	defer repo.assignment.RUnlock()

	asgs := make([]school.Assignment, 0, len(repo.assignment.rows))
	for _, asg := range repo.assignment.all() {
		if filter.TeacherID != 0 && asg.TeacherID != filter.TeacherID {
			continue
		}
		if filter.CourseID != 0 && asg.CourseID != filter.CourseID {
			continue
		}
		if filter.Period != "" && asg.Period != filter.Period {
			continue
		}
		asgs = append(asgs, asg)
	}
	orderBy(asgs, withDefault(ordering, core.DBOrdering{Field: "period"}, core.DBOrdering{Field: "id", Ascending: true}), assignmentFields)
	return asgs, nil
}

func (repo *schoolRepository) GetAssignment(_ context.Context, id int) (school.Assignment, error) {
	repo.assignment.RLock()
	defer repo.assignment.RUnlock()

	if asg, ok := repo.assignment.rows[id]; ok {
		return asg, nil
	}
	return school.Assignment{}, school.ErrAssignmentNotFound
}

func (repo *schoolRepository) UpdateAssignment(_ context.Context, asg school.Assignment) (school.Assignment, error) {
	repo.assignment.Lock()
	defer repo.assignment.Unlock()

	if _, ok := repo.assignment.rows[asg.ID]; !ok {
		return school.Assignment{}, school.ErrAssignmentNotFound
	}
	repo.assignment.rows[asg.ID] = asg
	return asg, nil
}

func (repo *schoolRepository) AssignmentHasEvaluations(_ context.Context, id int) (bool, error) {
	repo.evaluation.RLock()
	defer repo.evaluation.RUnlock()

	for _, ev := range repo.evaluation.rows {
		if ev.AssignmentID == id {
			return true, nil
		}
	}
	return false, nil
}

// DeleteAssignments also deletes their evaluations (ON DELETE CASCADE in the SQL schema).
func (repo *schoolRepository) DeleteAssignments(_ context.Context, ids ...int) (int, error) {
	repo.assignment.Lock()
	defer repo.assignment.Unlock()
	repo.evaluation.Lock()
	defer repo.evaluation.Unlock()

	deleted := make(map[int]bool, len(ids))
	for _, id := range ids {
		deleted[id] = true
	}
	for id, ev := range repo.evaluation.rows {
		if deleted[ev.AssignmentID] {
			delete(repo.evaluation.rows, id)
		}
	}
	return repo.assignment.deleteIDs(ids), nil
}
