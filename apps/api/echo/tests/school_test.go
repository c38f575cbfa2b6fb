package tests

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/evaluo/core/school"
	"github.com/trezcool/evaluo/core/user"
)

func Test_schoolApi_courses(t *testing.T) {
	env := setup(t)
	admin := env.createUser(t, "Admin", "admin", "admin@test.pe", "", []string{user.RoleAdmin}, true)
	student := env.createUser(t, "Luis Soto", "luis", "luis@test.pe", "", []string{user.RoleStudent}, true)
	adminToken := env.getToken(t, admin)
	studentToken := env.getToken(t, student)

	calc := env.createCourse(t, "mat101", "Cálculo I")
	phys := env.createCourse(t, "fis101", "Física I")

	tests := []httpTest{
		{name: "Auth required", method: http.MethodGet, path: "/v1/courses", wantCode: http.StatusUnauthorized},
		{name: "readable by students", method: http.MethodGet, path: "/v1/courses", token: studentToken, wantCode: http.StatusOK, wantData: marshalList(t, phys, calc)},
		{name: "ordering", method: http.MethodGet, path: "/v1/courses?ordering=-code", token: studentToken, wantCode: http.StatusOK, wantData: marshalList(t, calc, phys)},
		{name: "search", method: http.MethodGet, path: "/v1/courses?search=F%C3%8DSICA", token: studentToken, wantCode: http.StatusOK, wantData: marshalList(t, phys)},
		{
			name: "create requires admin", method: http.MethodPost, path: "/v1/courses", token: studentToken,
			body: []byte(`{"code": "qui101", "name": "Química"}`), wantCode: http.StatusForbidden,
		},
		{
			name: "create: validation", method: http.MethodPost, path: "/v1/courses", token: adminToken,
			body:     []byte(`{"code": "qui-101", "credits": 99}`),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{
				"code":    "only alphanumeric characters and underscores are allowed",
				"name":    "this field is required",
				"credits": "credits must be 30 or less",
			}),
		},
		{
			name: "create: unique code", method: http.MethodPost, path: "/v1/courses", token: adminToken,
			body: []byte(`{"code": "MAT101", "name": "Cálculo"}`), wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"code": school.ErrCourseCodeExists.Error()}),
		},
		{name: "retrieve", method: http.MethodGet, path: fmt.Sprintf("/v1/courses/%d", calc.ID), token: studentToken, wantCode: http.StatusOK, wantData: marshalObj(t, calc)},
		{
			name: "retrieve (unknown)", method: http.MethodGet, path: "/v1/courses/999", token: studentToken,
			wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: "course not found"}),
		},
		{name: "retrieve (invalid id)", method: http.MethodGet, path: "/v1/courses/lol", token: studentToken, wantCode: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, env.run(t, tt))
		})
	}

	t.Run("create, update & delete", func(t *testing.T) {
		rec := env.run(t, httpTest{
			method: http.MethodPost, path: "/v1/courses", token: adminToken,
			body: []byte(`{"code": " QUI101 ", "name": "Química", "credits": 3}`),
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var crs school.Course
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &crs))
		assert.Equal(t, "qui101", crs.Code)

		detail := fmt.Sprintf("/v1/courses/%d", crs.ID)
		rec = env.run(t, httpTest{method: http.MethodPut, path: detail, token: adminToken, body: []byte(`{"credits": 0}`)})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &crs))
		assert.Equal(t, "Química", crs.Name)
		assert.Equal(t, 0, crs.Credits)

		rec = env.run(t, httpTest{method: http.MethodDelete, path: detail, token: adminToken})
		assert.Equal(t, http.StatusNoContent, rec.Code)
		rec = env.run(t, httpTest{method: http.MethodGet, path: detail, token: adminToken})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func Test_schoolApi_students(t *testing.T) {
	env := setup(t)
	admin := env.createUser(t, "Admin", "admin", "admin@test.pe", "", []string{user.RoleAdmin}, true)
	teacher := env.createUser(t, "Ana Pérez", "ana", "ana@test.pe", "", []string{user.RoleTeacher}, true)
	adminToken := env.getToken(t, admin)

	luis := env.createStudent(t, "u2024001", "Luis Soto", 0)
	rosa := env.createStudent(t, "u2024002", "Rosa Díaz", 0)

	tests := []httpTest{
		{name: "admin only", method: http.MethodGet, path: "/v1/students", token: env.getToken(t, teacher), wantCode: http.StatusForbidden},
		{name: "query", method: http.MethodGet, path: "/v1/students", token: adminToken, wantCode: http.StatusOK, wantData: marshalList(t, luis, rosa)},
		{
			name: "create: email", method: http.MethodPost, path: "/v1/students", token: adminToken,
			body: []byte(`{"code": "u2024003", "name": "Eva", "email": "lol"}`), wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"email": "email must be a valid email address"}),
		},
		{
			name: "bulk delete", method: http.MethodDelete, path: fmt.Sprintf("/v1/students?id=%d&id=%d", luis.ID, rosa.ID),
			token: adminToken, wantCode: http.StatusNoContent,
		},
		{name: "deleted", method: http.MethodGet, path: "/v1/students", token: adminToken, wantCode: http.StatusOK, wantData: marshalList(t)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, env.run(t, tt))
		})
	}
}

func Test_schoolApi_assignments(t *testing.T) {
	env := setup(t)
	admin := env.createUser(t, "Admin", "admin", "admin@test.pe", "", []string{user.RoleAdmin}, true)
	adminToken := env.getToken(t, admin)

	ana := env.createTeacher(t, "Ana Pérez", "ana@test.pe", 0)
	luis := env.createTeacher(t, "Luis Soto", "luis@test.pe", 0)
	calc := env.createCourse(t, "mat101", "Cálculo I")
	phys := env.createCourse(t, "fis101", "Física I")

	asg1 := env.createAssignment(t, ana.ID, calc.ID, "2024-1")
	asg2 := env.createAssignment(t, ana.ID, phys.ID, "2024-2")
	asg3 := env.createAssignment(t, luis.ID, calc.ID, "2024-2")

	tests := []httpTest{
		{
			name: "query by teacher", method: http.MethodGet, path: fmt.Sprintf("/v1/assignments?teacher_id=%d&ordering=id", ana.ID),
			token: adminToken, wantCode: http.StatusOK, wantData: marshalList(t, asg1, asg2),
		},
		{
			name: "query by course and period", method: http.MethodGet, path: fmt.Sprintf("/v1/assignments?course_id=%d&period=2024-2", calc.ID),
			token: adminToken, wantCode: http.StatusOK, wantData: marshalList(t, asg3),
		},
		{
			name: "create: duplicate", method: http.MethodPost, path: "/v1/assignments", token: adminToken,
			body:     []byte(fmt.Sprintf(`{"teacher_id": %d, "course_id": %d, "period": "2024-1"}`, ana.ID, calc.ID)),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "create: unknown teacher", method: http.MethodPost, path: "/v1/assignments", token: adminToken,
			body:     []byte(fmt.Sprintf(`{"teacher_id": 999, "course_id": %d, "period": "2024-1"}`, calc.ID)),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "teacher with assignments cannot be deleted", method: http.MethodDelete, path: fmt.Sprintf("/v1/teachers/%d", luis.ID),
			token: adminToken, wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Error: school.ErrTeacherAssigned.Error()}),
		},
		{name: "unassign", method: http.MethodDelete, path: fmt.Sprintf("/v1/assignments/%d", asg3.ID), token: adminToken, wantCode: http.StatusNoContent},
		{name: "teacher deleted", method: http.MethodDelete, path: fmt.Sprintf("/v1/teachers/%d", luis.ID), token: adminToken, wantCode: http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, env.run(t, tt))
		})
	}
}
