package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/evaluo/core/school"
)

type schoolApi struct {
	svc      *school.Service
	validate *validator.Validate
}

// registerSchoolAPI registers the catalogue endpoints.
// Students are only visible to admins; teachers, courses and assignments can be read by any authenticated user.
func registerSchoolAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc *school.Service,
	validate *validator.Validate,
) {
	api := schoolApi{
		svc:      svc,
		validate: validate,
	}
	admin := adminMiddleware()

	sg := g.Group("/students", jwt, admin)
	sg.POST("", api.createStudent)
	sg.GET("", api.queryStudents)
	sg.DELETE("", api.destroyStudents)
	sdg := sg.Group("/:id", objectMiddleware(api.loadStudent))
	sdg.GET("", api.retrieve)
	sdg.PUT("", api.updateStudent)
	sdg.DELETE("", api.destroyStudent)

	tg := g.Group("/teachers", jwt)
	tg.POST("", api.createTeacher, admin)
	tg.GET("", api.queryTeachers)
	tg.DELETE("", api.destroyTeachers, admin)
	tdg := tg.Group("/:id", objectMiddleware(api.loadTeacher))
	tdg.GET("", api.retrieve)
	tdg.PUT("", api.updateTeacher, admin)
	tdg.DELETE("", api.destroyTeacher, admin)

	cg := g.Group("/courses", jwt)
	cg.POST("", api.createCourse, admin)
	cg.GET("", api.queryCourses)
	cg.DELETE("", api.destroyCourses, admin)
	cdg := cg.Group("/:id", objectMiddleware(api.loadCourse))
	cdg.GET("", api.retrieve)
	cdg.PUT("", api.updateCourse, admin)
	cdg.DELETE("", api.destroyCourse, admin)

	ag := g.Group("/assignments", jwt)
	ag.POST("", api.createAssignment, admin)
	ag.GET("", api.queryAssignments)
	ag.DELETE("", api.destroyAssignments, admin)
	adg := ag.Group("/:id", objectMiddleware(api.loadAssignment))
	adg.GET("", api.retrieve)
	adg.PUT("", api.updateAssignment, admin)
	adg.DELETE("", api.destroyAssignment, admin)
}

func (api *schoolApi) retrieve(ctx echo.Context) error {
	obj := ctx.Get(contextObjectKey)
	if obj == nil {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, obj)
}

// destroyMultiple deletes the objects whose IDs are given as repeated `?id=` params.
func destroyMultiple(ctx echo.Context, del func(ids ...int) (int, error)) error {
	ids, err := queryIDs(ctx)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return ctx.NoContent(http.StatusNoContent)
	}
	if _, err = del(ids...); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Students

func (api *schoolApi) loadStudent(ctx echo.Context, id int) (interface{}, error) {
	return api.svc.GetStudent(ctx.Request().Context(), id)
}

func (api *schoolApi) createStudent(ctx echo.Context) error {
	var data school.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	reqCtx := ctx.Request().Context()
	if err := data.Validate(reqCtx, api.validate, api.svc); err != nil {
		return err
	}

	st, err := api.svc.CreateStudent(reqCtx, data)
	if err != nil {
		return errors.Wrap(err, "creating student")
	}
	return ctx.JSON(http.StatusCreated, st)
}

func (api *schoolApi) queryStudents(ctx echo.Context) error {
	var filter school.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	filter.Clean()

	students, err := api.svc.QueryStudents(ctx.Request().Context(), filter, queryOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *schoolApi) updateStudent(ctx echo.Context) error {
	st, ok := ctx.Get(contextObjectKey).(school.Student)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving student from context")
	}

	var data school.UpdateStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStudent")
	}
	reqCtx := ctx.Request().Context()
	if err := data.Validate(reqCtx, st, api.validate, api.svc); err != nil {
		return err
	}

	st, err := api.svc.UpdateStudent(reqCtx, st, data)
	if err != nil {
		return errors.Wrap(err, "updating student")
	}
	return ctx.JSON(http.StatusOK, st)
}

func (api *schoolApi) destroyStudent(ctx echo.Context) error {
	st, ok := ctx.Get(contextObjectKey).(school.Student)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving student from context")
	}
	if _, err := api.svc.DeleteStudents(ctx.Request().Context(), st.ID); err != nil {
		return errors.Wrap(err, "deleting student")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *schoolApi) destroyStudents(ctx echo.Context) error {
	return destroyMultiple(ctx, func(ids ...int) (int, error) {
		return api.svc.DeleteStudents(ctx.Request().Context(), ids...)
	})
}

// Teachers

func (api *schoolApi) loadTeacher(ctx echo.Context, id int) (interface{}, error) {
	return api.svc.GetTeacher(ctx.Request().Context(), id)
}

func (api *schoolApi) createTeacher(ctx echo.Context) error {
	var data school.NewTeacher
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTeacher")
	}
	reqCtx := ctx.Request().Context()
	if err := data.Validate(reqCtx, api.validate, api.svc); err != nil {
		return err
	}

	tch, err := api.svc.CreateTeacher(reqCtx, data)
	if err != nil {
		return errors.Wrap(err, "creating teacher")
	}
	return ctx.JSON(http.StatusCreated, tch)
}

func (api *schoolApi) queryTeachers(ctx echo.Context) error {
	var filter school.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	filter.Clean()

	teachers, err := api.svc.QueryTeachers(ctx.Request().Context(), filter, queryOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "querying teachers")
	}
	return ctx.JSON(http.StatusOK, teachers)
}

func (api *schoolApi) updateTeacher(ctx echo.Context) error {
	tch, ok := ctx.Get(contextObjectKey).(school.Teacher)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving teacher from context")
	}

	var data school.UpdateTeacher
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateTeacher")
	}
	reqCtx := ctx.Request().Context()
	if err := data.Validate(reqCtx, tch, api.validate, api.svc); err != nil {
		return err
	}

	tch, err := api.svc.UpdateTeacher(reqCtx, tch, data)
	if err != nil {
		return errors.Wrap(err, "updating teacher")
	}
	return ctx.JSON(http.StatusOK, tch)
}

func (api *schoolApi) destroyTeacher(ctx echo.Context) error {
	tch, ok := ctx.Get(contextObjectKey).(school.Teacher)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving teacher from context")
	}
	if _, err := api.svc.DeleteTeachers(ctx.Request().Context(), tch.ID); err != nil {
		return errors.Wrap(err, "deleting teacher")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *schoolApi) destroyTeachers(ctx echo.Context) error {
	return destroyMultiple(ctx, func(ids ...int) (int, error) {
		return api.svc.DeleteTeachers(ctx.Request().Context(), ids...)
	})
}

// Courses

func (api *schoolApi) loadCourse(ctx echo.Context, id int) (interface{}, error) {
	return api.svc.GetCourse(ctx.Request().Context(), id)
}

func (api *schoolApi) createCourse(ctx echo.Context) error {
	var data school.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	reqCtx := ctx.Request().Context()
	if err := data.Validate(reqCtx, api.validate, api.svc); err != nil {
		return err
	}

	crs, err := api.svc.CreateCourse(reqCtx, data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, crs)
}

func (api *schoolApi) queryCourses(ctx echo.Context) error {
	var filter school.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	filter.Clean()

	courses, err := api.svc.QueryCourses(ctx.Request().Context(), filter, queryOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *schoolApi) updateCourse(ctx echo.Context) error {
	crs, ok := ctx.Get(contextObjectKey).(school.Course)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving course from context")
	}

	var data school.UpdateCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCourse")
	}
	reqCtx := ctx.Request().Context()
	if err := data.Validate(reqCtx, crs, api.validate, api.svc); err != nil {
		return err
	}

	crs, err := api.svc.UpdateCourse(reqCtx, crs, data)
	if err != nil {
		return errors.Wrap(err, "updating course")
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *schoolApi) destroyCourse(ctx echo.Context) error {
	crs, ok := ctx.Get(contextObjectKey).(school.Course)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving course from context")
	}
	if _, err := api.svc.DeleteCourses(ctx.Request().Context(), crs.ID); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *schoolApi) destroyCourses(ctx echo.Context) error {
	return destroyMultiple(ctx, func(ids ...int) (int, error) {
		return api.svc.DeleteCourses(ctx.Request().Context(), ids...)
	})
}

// Assignments

func (api *schoolApi) loadAssignment(ctx echo.Context, id int) (interface{}, error) {
	return api.svc.GetAssignment(ctx.Request().Context(), id)
}

func (api *schoolApi) createAssignment(ctx echo.Context) error {
	var data school.NewAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssignment")
	}
	reqCtx := ctx.Request().Context()
	if err := data.Validate(reqCtx, api.validate, api.svc); err != nil {
		return err
	}

	asg, err := api.svc.CreateAssignment(reqCtx, data)
	if err != nil {
		return errors.Wrap(err, "creating assignment")
	}
	return ctx.JSON(http.StatusCreated, asg)
}

func (api *schoolApi) queryAssignments(ctx echo.Context) error {
	var filter school.AssignmentFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to AssignmentFilter")
	}

	asgs, err := api.svc.QueryAssignments(ctx.Request().Context(), filter, queryOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "querying assignments")
	}
	return ctx.JSON(http.StatusOK, asgs)
}

func (api *schoolApi) updateAssignment(ctx echo.Context) error {
	asg, ok := ctx.Get(contextObjectKey).(school.Assignment)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving assignment from context")
	}

	var data school.UpdateAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateAssignment")
	}
	reqCtx := ctx.Request().Context()
	if err := data.Validate(reqCtx, asg, api.validate, api.svc); err != nil {
		return err
	}

	asg, err := api.svc.UpdateAssignment(reqCtx, asg, data)
	if err != nil {
		return errors.Wrap(err, "updating assignment")
	}
	return ctx.JSON(http.StatusOK, asg)
}

func (api *schoolApi) destroyAssignment(ctx echo.Context) error {
	asg, ok := ctx.Get(contextObjectKey).(school.Assignment)
	if !ok {
		return errors.Wrap(errObjNotFoundInCtx, "retrieving assignment from context")
	}
	if _, err := api.svc.DeleteAssignments(ctx.Request().Context(), asg.ID); err != nil {
		return errors.Wrap(err, "deleting assignment")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *schoolApi) destroyAssignments(ctx echo.Context) error {
	return destroyMultiple(ctx, func(ids ...int) (int, error) {
		return api.svc.DeleteAssignments(ctx.Request().Context(), ids...)
	})
}
