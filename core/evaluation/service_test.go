package evaluation

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/evaluo/core"
	"github.com/trezcool/evaluo/core/school"
)

type fakeRepo struct {
	mu        sync.Mutex
	evals     []Evaluation
	asgs      map[int]school.Assignment
	err       error
	createErr error // returned by the create methods only
}

func (r *fakeRepo) CreateEvaluation(ctx context.Context, ev Evaluation) (Evaluation, error) {
	evs, err := r.CreateEvaluations(ctx, []Evaluation{ev})
	if err != nil {
		return Evaluation{}, err
	}
	return evs[0], nil
}

func (r *fakeRepo) CreateEvaluations(_ context.Context, evs []Evaluation) ([]Evaluation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	if r.createErr != nil {
		return nil, r.createErr
	}
	out := make([]Evaluation, 0, len(evs))
	for i, ev := range evs {
		ev.ID = len(r.evals) + i + 1
		out = append(out, ev)
	}
	r.evals = append(r.evals, out...)
	return out, nil
}

func (r *fakeRepo) HasEvaluation(_ context.Context, assignmentID, studentID int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ev := range r.evals {
		if ev.AssignmentID == assignmentID && ev.StudentID == studentID {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeRepo) QueryRecords(_ context.Context, filter RecordFilter) ([]Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	var records []Record
	for _, ev := range r.evals {
		asg := r.asgs[ev.AssignmentID]
		if asg.TeacherID == filter.TeacherID && asg.CourseID == filter.CourseID {
			records = append(records, ev.Record())
		}
	}
	return records, nil
}

type fakeCatalog struct {
	asgs map[int]school.Assignment
}

func (c fakeCatalog) GetAssignment(_ context.Context, id int) (school.Assignment, error) {
	asg, ok := c.asgs[id]
	if !ok {
		return school.Assignment{}, school.ErrAssignmentNotFound
	}
	return asg, nil
}

func (c fakeCatalog) GetTeacher(_ context.Context, id int) (school.Teacher, error) {
	if id != 7 {
		return school.Teacher{}, school.ErrTeacherNotFound
	}
	return school.Teacher{ID: 7, Name: "Ana Pérez"}, nil
}

func (c fakeCatalog) GetCourse(_ context.Context, id int) (school.Course, error) {
	if id != 3 {
		return school.Course{}, school.ErrCourseNotFound
	}
	return school.Course{ID: 3, Code: "mat101", Name: "Cálculo"}, nil
}

type fakeClassifier struct {
	sentiment Sentiment
	err       error
	calls     []string
}

func (c *fakeClassifier) Classify(_ context.Context, text string) (Sentiment, error) {
	c.calls = append(c.calls, text)
	return c.sentiment, c.err
}

type fakeCache struct {
	mu    sync.Mutex
	data  map[string][]Record
	gets  int
	hits  int
	inval []string
}

func (c *fakeCache) GetRecords(_ context.Context, key string) ([]Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	recs, ok := c.data[key]
	if ok {
		c.hits++
	}
	return recs, ok
}

func (c *fakeCache) SetRecords(_ context.Context, key string, records []Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = records
	return nil
}

func (c *fakeCache) Invalidate(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	c.inval = append(c.inval, key)
	return nil
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

type fixture struct {
	svc        *Service
	repo       *fakeRepo
	classifier *fakeClassifier
	cache      *fakeCache
}

var (
	asg1 = school.Assignment{ID: 1, TeacherID: 7, CourseID: 3, Period: "2024-1"}
	asg2 = school.Assignment{ID: 2, TeacherID: 7, CourseID: 3, Period: "2024-2"}
	asg3 = school.Assignment{ID: 3, TeacherID: 8, CourseID: 3, Period: "2024-1"}
)

func newFixture() fixture {
	asgs := map[int]school.Assignment{asg1.ID: asg1, asg2.ID: asg2, asg3.ID: asg3}
	validate, translator := newValidator()
	f := fixture{
		repo:       &fakeRepo{asgs: asgs},
		classifier: &fakeClassifier{sentiment: Positive},
		cache:      &fakeCache{data: map[string][]Record{}},
	}
	f.svc = NewService(ServiceDeps{
		Repo:       f.repo,
		Catalog:    fakeCatalog{asgs: asgs},
		Classifier: f.classifier,
		Cache:      f.cache,
		Validate:   validate,
		Translator: translator,
		Logger:     nopLogger{},
	})
	return f
}

func TestNewEvaluation_Validate(t *testing.T) {
	validate, _ := newValidator()

	tests := []struct {
		name    string
		ne      NewEvaluation
		wantErr bool
	}{
		{name: "valid", ne: NewEvaluation{Ratings: map[string]string{"metodologia": "Bueno", "respeto": "excelente"}}},
		{name: "accented label", ne: NewEvaluation{Ratings: map[string]string{"claridad": "Pésimo"}}},
		{name: "no ratings", ne: NewEvaluation{TeacherComment: "hola"}, wantErr: true},
		{name: "unknown criterion", ne: NewEvaluation{Ratings: map[string]string{"lol": "bueno"}}, wantErr: true},
		{name: "unknown label", ne: NewEvaluation{Ratings: map[string]string{"metodologia": "genial"}}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ne.Validate(validate)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	t.Run("cleans comments", func(t *testing.T) {
		ne := NewEvaluation{Ratings: map[string]string{"metodologia": "bueno"}, TeacherComment: "  muy bien \n", CourseComment: "   "}
		require.NoError(t, ne.Validate(validate))
		assert.Equal(t, "muy bien", ne.TeacherComment)
		assert.Empty(t, ne.CourseComment)
	})
}

func TestService_Submit(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	nowFunc = func() time.Time { return now }
	defer func() { nowFunc = time.Now }()

	ctx := context.Background()

	t.Run("stores ratings in dashboard order and classifies comments", func(t *testing.T) {
		f := newFixture()
		ne := NewEvaluation{
			Ratings:        map[string]string{"respeto": "excelente", "metodologia": "malo"},
			TeacherComment: "Explica muy bien",
		}

		ev, err := f.svc.Submit(ctx, asg1, 11, ne)

		require.NoError(t, err)
		assert.Equal(t, 1, ev.ID)
		assert.Equal(t, now, ev.CreatedAt)
		assert.Equal(t, []Rating{{"metodologia", 2}, {"respeto", 5}}, ev.Ratings)
		assert.Equal(t, []Comment{{TargetTeacher, "Explica muy bien", Positive}}, ev.Comments)
		assert.Equal(t, []string{"Explica muy bien"}, f.classifier.calls)
		assert.Equal(t, []string{"records:7:3"}, f.cache.inval)
	})

	t.Run("already evaluated", func(t *testing.T) {
		f := newFixture()
		ne := NewEvaluation{Ratings: map[string]string{"respeto": "bueno"}}
		_, err := f.svc.Submit(ctx, asg1, 11, ne)
		require.NoError(t, err)

		_, err = f.svc.Submit(ctx, asg1, 11, ne)

		vErr, ok := errors.Cause(err).(*core.ValidationError)
		require.True(t, ok)
		assert.Equal(t, ErrAlreadyEvaluated, vErr.Err)

		// another period of the same pair is a different assignment
		_, err = f.svc.Submit(ctx, asg2, 11, ne)
		assert.NoError(t, err)
	})

	t.Run("already evaluated by a concurrent submission", func(t *testing.T) {
		f := newFixture()
		f.repo.createErr = errors.Wrap(ErrAlreadyEvaluated, "inserting evaluation")

		_, err := f.svc.Submit(ctx, asg1, 11, NewEvaluation{Ratings: map[string]string{"respeto": "bueno"}})

		vErr, ok := errors.Cause(err).(*core.ValidationError)
		require.True(t, ok, err)
		assert.Equal(t, ErrAlreadyEvaluated, vErr.Err)
		assert.Empty(t, f.cache.inval)
	})

	t.Run("record without comments", func(t *testing.T) {
		f := newFixture()
		ev, err := f.svc.Submit(ctx, asg1, 12, NewEvaluation{Ratings: map[string]string{"metodologia": "bueno"}})
		require.NoError(t, err)

		data, err := json.Marshal(ev.Record())
		require.NoError(t, err)
		assert.Contains(t, string(data), `"comentarios":[]`)
	})

	t.Run("classifier failure", func(t *testing.T) {
		f := newFixture()
		f.classifier.err = errors.New("boom")

		_, err := f.svc.Submit(ctx, asg1, 11, NewEvaluation{
			Ratings:       map[string]string{"respeto": "bueno"},
			CourseComment: "regular",
		})

		assert.Error(t, err)
		assert.Empty(t, f.repo.evals)
	})
}

func TestService_Import(t *testing.T) {
	ctx := context.Background()
	data := []byte(`[
		{"fecha": "2024-03-01", "calificaciones": [{"criterio": "metodologia", "valor": 5}],
		 "comentarios": [{"tipo": "curso", "texto": "bien", "sentimiento": "positivo"}]},
		{"fecha": "2024-03-02", "calificaciones": [], "comentarios": []}
	]`)

	t.Run("valid", func(t *testing.T) {
		f := newFixture()

		n, err := f.svc.Import(ctx, asg1.ID, data)

		require.NoError(t, err)
		assert.Equal(t, 2, n)
		require.Len(t, f.repo.evals, 2)
		assert.Equal(t, asg1.ID, f.repo.evals[0].AssignmentID)
		assert.Zero(t, f.repo.evals[0].StudentID)
		assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), f.repo.evals[0].CreatedAt)
		assert.Empty(t, f.classifier.calls)
		assert.Equal(t, []string{"records:7:3"}, f.cache.inval)
	})

	t.Run("unknown assignment", func(t *testing.T) {
		f := newFixture()
		_, err := f.svc.Import(ctx, 99, data)
		assert.True(t, core.IsNotFound(err))
	})

	t.Run("repository failure stores nothing and still drops the cache", func(t *testing.T) {
		f := newFixture()
		_, err := f.svc.Dashboard(ctx, 7, 3, Selection{})
		require.NoError(t, err)
		require.Contains(t, f.cache.data, "records:7:3")
		f.repo.createErr = errors.New("db down")

		n, err := f.svc.Import(ctx, asg1.ID, data)

		assert.EqualError(t, err, "creating evaluations: db down")
		assert.Zero(t, n)
		assert.Empty(t, f.repo.evals)
		assert.NotContains(t, f.cache.data, "records:7:3")
	})

	t.Run("invalid records are not stored", func(t *testing.T) {
		f := newFixture()
		_, err := f.svc.Import(ctx, asg1.ID, []byte(`[{"fecha": "2024-03-01"}, {"calificaciones": []}]`))
		assert.Error(t, err)
		assert.Empty(t, f.repo.evals)
	})
}

func TestService_Dashboard(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	ne := NewEvaluation{Ratings: map[string]string{"metodologia": "excelente"}, CourseComment: "bien"}
	_, err := f.svc.Submit(ctx, asg1, 11, ne)
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, asg2, 12, NewEvaluation{Ratings: map[string]string{"respeto": "bueno"}})
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, asg3, 11, ne) // other teacher
	require.NoError(t, err)

	t.Run("aggregates every period of the pair", func(t *testing.T) {
		dash, err := f.svc.Dashboard(ctx, 7, 3, Selection{})

		require.NoError(t, err)
		assert.Equal(t, 2, dash.TotalRecords)
		assert.Equal(t, 2.5, dash.CriterionAverages[0])
		assert.Equal(t, SentimentCounts{Positive: 1}, dash.SentimentCounts.Course)
		assert.Equal(t, SentimentCounts{Positive: 50}, dash.SentimentPercentages.Course)
	})

	t.Run("served from cache", func(t *testing.T) {
		hits := f.cache.hits
		_, err := f.svc.Dashboard(ctx, 7, 3, Selection{CourseFilter: Filter(Negative)})
		require.NoError(t, err)
		assert.Equal(t, hits+1, f.cache.hits)
	})

	t.Run("no records", func(t *testing.T) {
		dash, err := f.svc.Dashboard(ctx, 9, 9, Selection{})
		require.NoError(t, err)
		assert.Zero(t, dash.TotalRecords)
		assert.NotNil(t, dash.FilteredComments.Course)
	})

	t.Run("invalid filter", func(t *testing.T) {
		_, err := f.svc.Dashboard(ctx, 7, 3, Selection{TeacherFilter: "feliz"})
		assert.Error(t, err)
	})

	t.Run("repository failure", func(t *testing.T) {
		g := newFixture()
		g.repo.err = errors.New("db down")
		_, err := g.svc.Dashboard(ctx, 7, 3, Selection{})
		assert.Error(t, err)
	})
}

func TestService_Report(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	_, err := f.svc.Submit(ctx, asg1, 11, NewEvaluation{Ratings: map[string]string{"respeto": "bueno"}, TeacherComment: "amable"})
	require.NoError(t, err)

	t.Run("valid", func(t *testing.T) {
		rpt, err := f.svc.Report(ctx, 7, 3, Selection{TeacherFilter: FilterAll})

		require.NoError(t, err)
		assert.Equal(t, "Ana Pérez", rpt.Teacher.Name)
		assert.Equal(t, "mat101", rpt.Course.Code)
		assert.Equal(t, 1, rpt.Dashboard.TotalRecords)
		assert.Equal(t, []CommentView{{"amable", Positive}}, rpt.Dashboard.FilteredComments.Teacher)
	})

	t.Run("unknown teacher", func(t *testing.T) {
		_, err := f.svc.Report(ctx, 8, 3, Selection{})
		assert.True(t, core.IsNotFound(err))
	})

	t.Run("unknown course", func(t *testing.T) {
		_, err := f.svc.Report(ctx, 7, 4, Selection{})
		assert.True(t, core.IsNotFound(err))
	})
}

func TestService_ForgetAssignments(t *testing.T) {
	f := newFixture()
	f.svc.ForgetAssignments(context.Background(), asg1, asg2, asg3)
	assert.Equal(t, []string{"records:7:3", "records:8:3"}, f.cache.inval)
}

func TestEvaluation_Record(t *testing.T) {
	rec := Evaluation{ID: 4, CreatedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)}.Record()
	assert.Equal(t, []Rating{}, rec.Ratings)
	assert.Equal(t, []Comment{}, rec.Comments)

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"calificaciones":[]`)
	assert.Contains(t, string(data), `"comentarios":[]`)
}

func TestNopCache(t *testing.T) {
	svc := NewService(ServiceDeps{Repo: &fakeRepo{}, Logger: nopLogger{}})
	_, ok := svc.cache.GetRecords(context.Background(), "k")
	assert.False(t, ok)
}
