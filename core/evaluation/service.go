package evaluation

import (
	"context"
	"fmt"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/trezcool/evaluo/core"
	"github.com/trezcool/evaluo/core/school"
)

var (
	// errors
	ErrAlreadyEvaluated = errors.New("this assignment has already been evaluated by the student")
	ErrNoRatings        = errors.New("at least one criterion must be rated")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		// CreateEvaluation returns ErrAlreadyEvaluated when the student already evaluated the assignment.
		CreateEvaluation(ctx context.Context, ev Evaluation) (Evaluation, error)
		// CreateEvaluations stores all the evaluations or none of them.
		CreateEvaluations(ctx context.Context, evs []Evaluation) ([]Evaluation, error)
		HasEvaluation(ctx context.Context, assignmentID, studentID int) (bool, error)
		// QueryRecords returns the records matching the filter in submission order.
		QueryRecords(ctx context.Context, filter RecordFilter) ([]Record, error)
	}

	// Catalog is the part of the school service evaluations depend on.
	Catalog interface {
		GetAssignment(ctx context.Context, id int) (school.Assignment, error)
		GetTeacher(ctx context.Context, id int) (school.Teacher, error)
		GetCourse(ctx context.Context, id int) (school.Course, error)
	}

	// Classifier assigns a sentiment to a free-text comment.
	Classifier interface {
		Classify(ctx context.Context, text string) (Sentiment, error)
	}

	// RecordCache caches the records of a teacher+course pair.
	RecordCache interface {
		GetRecords(ctx context.Context, key string) ([]Record, bool)
		SetRecords(ctx context.Context, key string, records []Record) error
		Invalidate(ctx context.Context, key string) error
	}

	Service struct {
		repo       Repository
		catalog    Catalog
		classifier Classifier
		cache      RecordCache
		validate   *validator.Validate
		translator ut.Translator
		logger     core.Logger
		loads      singleflight.Group
	}

	ServiceDeps struct {
		Repo       Repository
		Catalog    Catalog
		Classifier Classifier
		Cache      RecordCache // optional
		Validate   *validator.Validate
		Translator ut.Translator
		Logger     core.Logger
	}
)

func NewService(deps ServiceDeps) *Service {
	cache := deps.Cache
	if cache == nil {
		cache = NopCache{}
	}
	return &Service{
		repo:       deps.Repo,
		catalog:    deps.Catalog,
		classifier: deps.Classifier,
		cache:      cache,
		validate:   deps.Validate,
		translator: deps.Translator,
		logger:     deps.Logger,
	}
}

// RecordFilter applies AND operation on its non-zero fields.
type RecordFilter struct {
	AssignmentID int
	TeacherID    int
	CourseID     int
	From         time.Time
	To           time.Time
}

// NewEvaluation is what a student submits: qualitative ratings keyed by criterion and
// up to one free-text comment per target.
type NewEvaluation struct {
	Ratings        map[string]string `json:"calificaciones" validate:"required,min=1,dive,keys,criterion,endkeys,scale"`
	TeacherComment string            `json:"comentario_docente" validate:"max=2000"`
	CourseComment  string            `json:"comentario_curso" validate:"max=2000"`
}

func (ne *NewEvaluation) Validate(validate *validator.Validate) error {
	ne.TeacherComment = core.CleanString(ne.TeacherComment)
	ne.CourseComment = core.CleanString(ne.CourseComment)
	if len(ne.Ratings) == 0 {
		return core.NewValidationError(nil, core.FieldError{Field: "calificaciones", Error: ErrNoRatings.Error()})
	}
	return validate.Struct(ne)
}

// Report is a dashboard along with the teacher and course it describes.
type Report struct {
	Teacher   school.Teacher `json:"teacher"`
	Course    school.Course  `json:"course"`
	Dashboard Dashboard      `json:"dashboard"`
}

func recordsKey(teacherID, courseID int) string {
	return fmt.Sprintf("records:%d:%d", teacherID, courseID)
}

// Submit stores the evaluation of an assignment by a student.
// `ne` must have been validated.
func (svc *Service) Submit(ctx context.Context, asg school.Assignment, studentID int, ne NewEvaluation) (Evaluation, error) {
	exists, err := svc.repo.HasEvaluation(ctx, asg.ID, studentID)
	if err != nil {
		return Evaluation{}, errors.Wrap(err, "checking existing evaluation")
	}
	if exists {
		return Evaluation{}, core.NewValidationError(ErrAlreadyEvaluated)
	}

	ev := Evaluation{
		AssignmentID: asg.ID,
		StudentID:    studentID,
		CreatedAt:    nowFunc().UTC(),
	}
	// ratings are stored in dashboard order
	for _, c := range AllCriteria {
		label, ok := ne.Ratings[c.Key]
		if !ok {
			continue
		}
		val, _ := ParseScale(label)
		ev.Ratings = append(ev.Ratings, Rating{Criterion: c.Key, Value: float64(val)})
	}

	for _, cmt := range []struct {
		target Target
		text   string
	}{
		{TargetTeacher, ne.TeacherComment},
		{TargetCourse, ne.CourseComment},
	} {
		if cmt.text == "" {
			continue
		}
		sentiment, err := svc.classifier.Classify(ctx, cmt.text)
		if err != nil {
			return Evaluation{}, errors.Wrap(err, "classifying comment")
		}
		ev.Comments = append(ev.Comments, Comment{Target: cmt.target, Text: cmt.text, Sentiment: sentiment})
	}

	ev, err = svc.repo.CreateEvaluation(ctx, ev)
	if err != nil {
		if errors.Cause(err) == ErrAlreadyEvaluated { // concurrent submission
			return Evaluation{}, core.NewValidationError(ErrAlreadyEvaluated)
		}
		return Evaluation{}, errors.Wrap(err, "creating evaluation")
	}
	svc.invalidate(ctx, asg)
	return ev, nil
}

// Import stores records that follow the front-end contract (eg. exported from a previous system)
// under the given assignment. Records are validated and stored as a whole: nothing is stored if one is invalid
// or if the repository fails.
func (svc *Service) Import(ctx context.Context, assignmentID int, data []byte) (int, error) {
	asg, err := svc.catalog.GetAssignment(ctx, assignmentID)
	if err != nil {
		return 0, errors.Wrap(err, "finding assignment")
	}
	records, err := ParseRecords(data, svc.validate, svc.translator)
	if err != nil {
		return 0, err
	}

	evs := make([]Evaluation, 0, len(records))
	for _, rec := range records {
		evs = append(evs, Evaluation{
			AssignmentID: asg.ID,
			CreatedAt:    rec.Date.UTC(),
			Ratings:      rec.Ratings,
			Comments:     rec.Comments,
		})
	}

	defer svc.invalidate(ctx, asg)
	if _, err = svc.repo.CreateEvaluations(ctx, evs); err != nil {
		return 0, errors.Wrap(err, "creating evaluations")
	}
	return len(evs), nil
}

// ForgetAssignments drops the cached records of the teacher+course pairs of the given assignments.
// It is called when assignments are re-paired or deleted.
func (svc *Service) ForgetAssignments(ctx context.Context, asgs ...school.Assignment) {
	seen := make(map[string]bool, len(asgs))
	for _, asg := range asgs {
		key := recordsKey(asg.TeacherID, asg.CourseID)
		if seen[key] {
			continue
		}
		seen[key] = true
		if err := svc.cache.Invalidate(ctx, key); err != nil {
			svc.logger.Warn(fmt.Sprintf("invalidating records cache: %v", err), err)
		}
	}
}

func (svc *Service) invalidate(ctx context.Context, asg school.Assignment) {
	svc.ForgetAssignments(ctx, asg)
}

// Records returns the evaluations of a teacher for a course, across all periods, in submission order.
func (svc *Service) Records(ctx context.Context, teacherID, courseID int) ([]Record, error) {
	key := recordsKey(teacherID, courseID)
	if records, ok := svc.cache.GetRecords(ctx, key); ok {
		return records, nil
	}

	// concurrent misses on the same pair share one query
	v, err, _ := svc.loads.Do(key, func() (interface{}, error) {
		records, err := svc.repo.QueryRecords(ctx, RecordFilter{TeacherID: teacherID, CourseID: courseID})
		if err != nil {
			return nil, errors.Wrap(err, "querying records")
		}
		if records == nil {
			records = []Record{}
		}
		if err = svc.cache.SetRecords(ctx, key, records); err != nil {
			svc.logger.Warn(fmt.Sprintf("caching records: %v", err), err)
		}
		return records, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Record), nil
}

func (svc *Service) validateSelection(sel Selection) error {
	return svc.validate.Struct(sel)
}

// Dashboard assembles the dashboard of a teacher+course pair.
func (svc *Service) Dashboard(ctx context.Context, teacherID, courseID int, sel Selection) (Dashboard, error) {
	if err := svc.validateSelection(sel); err != nil {
		return Dashboard{}, err
	}
	records, err := svc.Records(ctx, teacherID, courseID)
	if err != nil {
		return Dashboard{}, err
	}
	return Assemble(records, sel), nil
}

// Report loads the teacher, the course and their records concurrently and assembles the dashboard.
func (svc *Service) Report(ctx context.Context, teacherID, courseID int, sel Selection) (Report, error) {
	if err := svc.validateSelection(sel); err != nil {
		return Report{}, err
	}

	var (
		rpt     Report
		records []Record
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		rpt.Teacher, err = svc.catalog.GetTeacher(gctx, teacherID)
		return err
	})
	g.Go(func() (err error) {
		rpt.Course, err = svc.catalog.GetCourse(gctx, courseID)
		return err
	})
	g.Go(func() (err error) {
		records, err = svc.Records(gctx, teacherID, courseID)
		return err
	})
	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	rpt.Dashboard = Assemble(records, sel)
	return rpt, nil
}

// NopCache is used when no cache is configured.
type NopCache struct{}

func (NopCache) GetRecords(context.Context, string) ([]Record, bool) { return nil, false }
func (NopCache) SetRecords(context.Context, string, []Record) error  { return nil }
func (NopCache) Invalidate(context.Context, string) error            { return nil }
