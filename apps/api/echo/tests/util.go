package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/evaluo/apps/api/echo"
	"github.com/trezcool/evaluo/core"
	"github.com/trezcool/evaluo/core/evaluation"
	"github.com/trezcool/evaluo/core/school"
	"github.com/trezcool/evaluo/core/user"
	emailsvc "github.com/trezcool/evaluo/services/email"
	logsvc "github.com/trezcool/evaluo/services/logger"
	inmemdb "github.com/trezcool/evaluo/storage/database/inmem"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

// testEnv is a server backed by in-memory repositories.
type testEnv struct {
	conf      *core.Config
	app       *echoapi.Server
	usrRepo   user.Repository
	schoolSvc *school.Service
}

func setup(t *testing.T) *testEnv {
	t.Helper()

	conf := &core.Config{
		Env:              "TEST",
		TestMode:         true,
		AppName:          "Evaluo",
		SecretKey:        "test-secret",
		FrontendBaseURL:  "http://localhost:3000",
		DefaultFromEmail: mail.Address{Name: "Evaluo", Address: "noreply@evaluo.test"},

		PasswordResetTimeoutDelta: time.Hour,

		Server: core.ServerConfig{
			DisableReqLogs:            true,
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 24 * time.Hour,
		},
	}

	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	logger := logsvc.NewNopLogger()

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	evaluation.InitValidators(validate, translator)

	usrSvc := user.NewService(usrRepo, mailSvc, conf)
	schoolSvc := school.NewService(inmemdb.NewSchoolRepository(db))
	evalSvc := evaluation.NewService(evaluation.ServiceDeps{
		Repo:       inmemdb.NewEvaluationRepository(db),
		Catalog:    schoolSvc,
		Classifier: keywordClassifier{},
		Cache:      &mapCache{data: make(map[string][]evaluation.Record)},
		Validate:   validate,
		Translator: translator,
		Logger:     logger,
	})
	schoolSvc.OnAssignmentsChanged(evalSvc.ForgetAssignments)

	return &testEnv{
		conf: conf,
		app: echoapi.NewServer(echoapi.ServerDeps{
			Conf:          conf,
			Logger:        logger,
			Validate:      validate,
			Translator:    translator,
			UserSvc:       usrSvc,
			SchoolSvc:     schoolSvc,
			EvaluationSvc: evalSvc,
		}),
		usrRepo:   usrRepo,
		schoolSvc: schoolSvc,
	}
}

// mapCache keeps records until they are invalidated.
type mapCache struct {
	mu   sync.Mutex
	data map[string][]evaluation.Record
}

func (c *mapCache) GetRecords(_ context.Context, key string) ([]evaluation.Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	recs, ok := c.data[key]
	return recs, ok
}

func (c *mapCache) SetRecords(_ context.Context, key string, records []evaluation.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = records
	return nil
}

func (c *mapCache) Invalidate(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

// keywordClassifier is negative for comments mentioning lateness, positive for praise and neutral otherwise.
type keywordClassifier struct{}

func (keywordClassifier) Classify(_ context.Context, text string) (evaluation.Sentiment, error) {
	text = strings.ToLower(text)
	switch {
	case strings.Contains(text, "tarde"):
		return evaluation.Negative, nil
	case strings.Contains(text, "bien"), strings.Contains(text, "excelente"):
		return evaluation.Positive, nil
	}
	return evaluation.Neutral, nil
}

func (env *testEnv) createUser(t *testing.T, name, uname, email, pwd string, roles []string, isActive bool) user.User {
	t.Helper()
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		IsActive:  isActive,
		Roles:     roles,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if pwd == "" {
		pwd = "Passw0rd!"
	}
	require.NoError(t, usr.SetPassword(pwd))
	usr, err := env.usrRepo.CreateUser(context.Background(), usr)
	require.NoError(t, err)
	return usr
}

func (env *testEnv) createTeacher(t *testing.T, name, email string, userID int) school.Teacher {
	t.Helper()
	tch, err := env.schoolSvc.CreateTeacher(context.Background(), school.NewTeacher{Name: name, Email: email, UserID: userID})
	require.NoError(t, err)
	return tch
}

func (env *testEnv) createCourse(t *testing.T, code, name string) school.Course {
	t.Helper()
	crs, err := env.schoolSvc.CreateCourse(context.Background(), school.NewCourse{Code: code, Name: name, Credits: 4})
	require.NoError(t, err)
	return crs
}

func (env *testEnv) createStudent(t *testing.T, code, name string, userID int) school.Student {
	t.Helper()
	st, err := env.schoolSvc.CreateStudent(context.Background(), school.NewStudent{Code: code, Name: name, UserID: userID})
	require.NoError(t, err)
	return st
}

func (env *testEnv) createAssignment(t *testing.T, teacherID, courseID int, period string) school.Assignment {
	t.Helper()
	asg, err := env.schoolSvc.CreateAssignment(context.Background(), school.NewAssignment{
		TeacherID: teacherID,
		CourseID:  courseID,
		Period:    period,
	})
	require.NoError(t, err)
	return asg
}

func (env *testEnv) getToken(t *testing.T, usr user.User) string {
	t.Helper()
	token, err := echoapi.GenerateToken(env.conf, echoapi.NewClaims(env.conf, usr))
	require.NoError(t, err)
	return token
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, httptest.NewRecorder()
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func marshalObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	require.NoError(t, err)
	return data
}

func marshalList(t *testing.T, objs ...interface{}) []byte {
	t.Helper()
	if objs == nil {
		objs = []interface{}{}
	}
	return marshalObj(t, objs)
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func (env *testEnv) run(t *testing.T, tt httpTest) *httptest.ResponseRecorder {
	t.Helper()
	req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
	env.app.ServeHTTP(rec, req)
	return rec
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
