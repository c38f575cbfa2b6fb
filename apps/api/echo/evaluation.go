package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/evaluo/core"
	"github.com/trezcool/evaluo/core/evaluation"
	"github.com/trezcool/evaluo/core/school"
)

var errNoStudentProfile = echo.NewHTTPError(http.StatusForbidden, "user has no student profile")

type evaluationApi struct {
	svc       *evaluation.Service
	schoolSvc *school.Service
	validate  *validator.Validate
}

func registerEvaluationAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc *evaluation.Service,
	schoolSvc *school.Service,
	validate *validator.Validate,
) {
	api := evaluationApi{
		svc:       svc,
		schoolSvc: schoolSvc,
		validate:  validate,
	}

	g.GET("/criteria", api.criteria, jwt)
	g.POST("/assignments/:id/evaluations", api.submit, jwt, studentMiddleware)
	g.GET("/evaluations", api.records, jwt, api.ownerOrAdminMiddleware)
	g.GET("/dashboards", api.dashboard, jwt, api.ownerOrAdminMiddleware)
	g.GET("/reports", api.report, jwt, api.ownerOrAdminMiddleware)
}

type (
	CriteriaResponse struct {
		Criteria []evaluation.Criterion  `json:"criteria"`
		Labels   []string                `json:"labels"`
		Scale    []evaluation.ScaleLevel `json:"scale"`
	}

	// PairQuery identifies the teacher+course pair of the records, dashboards and reports.
	PairQuery struct {
		TeacherID int `query:"teacher_id" json:"teacher_id" validate:"required,min=1"`
		CourseID  int `query:"course_id" json:"course_id" validate:"required,min=1"`
	}

	DashboardQuery struct {
		PairQuery
		evaluation.Selection
	}
)

func (api *evaluationApi) criteria(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, CriteriaResponse{
		Criteria: evaluation.AllCriteria,
		Labels:   evaluation.CriterionLabels(evaluation.AllCriteria),
		Scale:    evaluation.Scale,
	})
}

func (api *evaluationApi) submit(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return errHttpNotFound
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	reqCtx := ctx.Request().Context()
	st, err := api.schoolSvc.GetStudentByUserID(reqCtx, claims.UserID())
	if err != nil {
		if core.IsNotFound(err) {
			return errNoStudentProfile
		}
		return errors.Wrap(err, "finding student by user ID")
	}
	asg, err := api.schoolSvc.GetAssignment(reqCtx, id)
	if err != nil {
		return errors.Wrap(err, "finding assignment")
	}

	var data evaluation.NewEvaluation
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEvaluation")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	ev, err := api.svc.Submit(reqCtx, asg, st.ID, data)
	if err != nil {
		return errors.Wrap(err, "submitting evaluation")
	}
	return ctx.JSON(http.StatusCreated, ev.Record())
}

func (api *evaluationApi) records(ctx echo.Context) error {
	pair := ctx.Get(contextObjectKey).(PairQuery)

	records, err := api.svc.Records(ctx.Request().Context(), pair.TeacherID, pair.CourseID)
	if err != nil {
		return errors.Wrap(err, "loading records")
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api *evaluationApi) bindSelection(ctx echo.Context) (evaluation.Selection, error) {
	var q DashboardQuery
	if err := ctx.Bind(&q); err != nil {
		return evaluation.Selection{}, errors.Wrap(err, "binding to DashboardQuery")
	}
	return q.Selection, nil
}

func (api *evaluationApi) dashboard(ctx echo.Context) error {
	pair := ctx.Get(contextObjectKey).(PairQuery)
	sel, err := api.bindSelection(ctx)
	if err != nil {
		return err
	}

	dash, err := api.svc.Dashboard(ctx.Request().Context(), pair.TeacherID, pair.CourseID, sel)
	if err != nil {
		return errors.Wrap(err, "assembling dashboard")
	}
	return ctx.JSON(http.StatusOK, dash)
}

func (api *evaluationApi) report(ctx echo.Context) error {
	pair := ctx.Get(contextObjectKey).(PairQuery)
	sel, err := api.bindSelection(ctx)
	if err != nil {
		return err
	}

	rpt, err := api.svc.Report(ctx.Request().Context(), pair.TeacherID, pair.CourseID, sel)
	if err != nil {
		return errors.Wrap(err, "building report")
	}
	return ctx.JSON(http.StatusOK, rpt)
}

// ownerOrAdminMiddleware validates the teacher+course pair and lets through admins
// and the teacher the pair belongs to.
func (api *evaluationApi) ownerOrAdminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		var pair PairQuery
		if err := ctx.Bind(&pair); err != nil {
			return errors.Wrap(err, "binding to PairQuery")
		}
		if err := api.validate.Struct(pair); err != nil {
			return err
		}

		claims, err := getContextClaims(ctx)
		if err != nil {
			return errors.Wrap(err, "getting context claims")
		}
		if !claims.IsAdmin {
			if !claims.IsTeacher {
				return errHttpForbidden
			}
			tch, err := api.schoolSvc.GetTeacherByUserID(ctx.Request().Context(), claims.UserID())
			if err != nil {
				if core.IsNotFound(err) {
					return errHttpForbidden
				}
				return errors.Wrap(err, "finding teacher by user ID")
			}
			if tch.ID != pair.TeacherID {
				return errHttpForbidden
			}
		}

		ctx.Set(contextObjectKey, pair)
		return next(ctx)
	}
}
