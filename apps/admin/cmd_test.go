package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/evaluo/core"
	"github.com/trezcool/evaluo/core/evaluation"
	"github.com/trezcool/evaluo/core/school"
	"github.com/trezcool/evaluo/core/user"
	logsvc "github.com/trezcool/evaluo/services/logger"
	sentimentsvc "github.com/trezcool/evaluo/services/sentiment"
	inmemdb "github.com/trezcool/evaluo/storage/database/inmem"
)

func setup(t *testing.T) (*commandLine, *bytes.Buffer) {
	t.Helper()

	sqlDB, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	evaluation.InitValidators(validate, translator)

	db := inmemdb.Open()
	schoolSvc := school.NewService(inmemdb.NewSchoolRepository(db))
	var out bytes.Buffer
	return &commandLine{
		db:        sqlx.NewDb(sqlDB, "sqlmock"),
		usrRepo:   inmemdb.NewUserRepository(db),
		schoolSvc: schoolSvc,
		evalSvc: evaluation.NewService(evaluation.ServiceDeps{
			Repo:       inmemdb.NewEvaluationRepository(db),
			Catalog:    schoolSvc,
			Classifier: sentimentsvc.StaticClassifier{Sentiment: evaluation.Neutral},
			Validate:   validate,
			Translator: translator,
			Logger:     logsvc.NewNopLogger(),
		}),
		validate: validate,
		out:      &out,
	}, &out
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func mockPassword(t *testing.T, pwd string) {
	t.Helper()
	orig := readPasswordFunc
	readPasswordFunc = func(int) ([]byte, error) { return []byte(pwd), nil }
	t.Cleanup(func() { readPasswordFunc = orig })
}

type cliTest struct {
	name    string
	args    []string // without program name
	wantErr error
}

func Test_commandLine_usage(t *testing.T) {
	cli, out := setup(t)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "migrate: no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "seed: no file", args: []string{"seed"}, wantErr: errHelp},
		{name: "import: no assignment", args: []string{"import", "-file", "records.json"}, wantErr: errHelp},
		{name: "import: unknown flag", args: []string{"import", "-lol"}, wantErr: errHelp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(append([]string{"admin"}, tt.args...))
			assert.Equal(t, tt.wantErr, err)
		})
	}
	assert.Contains(t, out.String(), "Usage:")
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t)

	var gotCommand string
	var gotArgs []string
	orig := migrateFunc
	migrateFunc = func(_ *sqlx.DB, command string, args ...string) error {
		gotCommand, gotArgs = command, args
		if command == "lol" {
			return errors.Errorf("%q: no such command", command)
		}
		return nil
	}
	t.Cleanup(func() { migrateFunc = orig })

	require.NoError(t, cli.run([]string{"admin", "migrate", "up"}))
	assert.Equal(t, "up", gotCommand)
	assert.Empty(t, gotArgs)

	require.NoError(t, cli.run([]string{"admin", "migrate", "up-to", "2"}))
	assert.Equal(t, "up-to", gotCommand)
	assert.Equal(t, []string{"2"}, gotArgs)

	assert.EqualError(t, cli.run([]string{"admin", "migrate", "lol"}), `"lol": no such command`)

	cli.db = nil
	assert.Equal(t, errNoSQLDatabase, cli.run([]string{"admin", "migrate", "up"}))
}

func Test_commandLine_addUser(t *testing.T) {
	cli, out := setup(t)
	ctx := context.Background()

	t.Run("password required", func(t *testing.T) {
		mockPassword(t, "")
		assert.Equal(t, errHelp, cli.run([]string{"admin", "adduser", "-username", "rosa", "-email", "rosa@test.pe"}))
	})

	t.Run("create", func(t *testing.T) {
		mockPassword(t, "Passw0rd!")
		require.NoError(t, cli.run([]string{"admin", "adduser", "-username", "Rosa", "-email", "ROSA@test.pe", "-admin"}))

		usr, err := cli.usrRepo.GetUserByUsernameOrEmail(ctx, "rosa")
		require.NoError(t, err)
		assert.Equal(t, "rosa@test.pe", usr.Email)
		assert.Equal(t, "rosa", usr.Name)
		assert.True(t, usr.IsActive)
		assert.True(t, usr.IsAdmin())
		assert.NoError(t, usr.CheckPassword("Passw0rd!"))
		assert.Contains(t, out.String(), `user "rosa" created`)
	})

	t.Run("update", func(t *testing.T) {
		mockPassword(t, "N3wPassw0rd!")
		require.NoError(t, cli.run([]string{"admin", "adduser", "-username", "rosa", "-email", "rosa.diaz@test.pe", "-name", "Rosa Díaz"}))

		usrs, err := cli.usrRepo.QueryUsers(ctx, user.QueryFilter{}, nil)
		require.NoError(t, err)
		require.Len(t, usrs, 1)
		assert.Equal(t, "Rosa Díaz", usrs[0].Name)
		assert.Equal(t, "rosa.diaz@test.pe", usrs[0].Email)
		assert.True(t, usrs[0].IsAdmin(), "roles are kept")
		assert.NoError(t, usrs[0].CheckPassword("N3wPassw0rd!"))
	})
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli, _ := setup(t)
	ctx := context.Background()

	usr := user.User{Name: "User", Username: "awe", Email: "awe@test.pe", IsActive: true}
	require.NoError(t, usr.SetPassword("mdr"))
	usr, err := cli.usrRepo.CreateUser(ctx, usr)
	require.NoError(t, err)

	tests := []struct {
		cliTest
		pwd string
	}{
		{cliTest: cliTest{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp}},
		{cliTest: cliTest{name: "username but no password", args: []string{"resetpassword", "-username", "lol"}, wantErr: errHelp}},
		{cliTest: cliTest{name: "user not found", args: []string{"resetpassword", "-username", "lol"}, wantErr: user.ErrNotFound}, pwd: "lol"},
		{cliTest: cliTest{name: "reset with username", args: []string{"resetpassword", "-username", usr.Username}}, pwd: "lol"},
		{cliTest: cliTest{name: "reset with email", args: []string{"resetpassword", "-username", usr.Email}}, pwd: "lmao"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockPassword(t, tt.pwd)

			err := cli.run(append([]string{"admin"}, tt.args...))
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, errors.Cause(err))
				return
			}
			require.NoError(t, err)
			refreshed, err := cli.usrRepo.GetUserByID(ctx, usr.ID)
			require.NoError(t, err)
			assert.NoError(t, refreshed.CheckPassword(tt.pwd))
		})
	}
}

const fixturesYAML = `
courses:
  - code: MAT101
    name: Cálculo I
    credits: 4
  - code: fis101
    name: Física I
teachers:
  - name: Ana Pérez
    email: ana@test.pe
    department: Matemáticas
students:
  - code: u2024001
    name: Rosa Díaz
assignments:
  - teacher: ANA@test.pe
    course: mat101
    period: 2024-1
`

func Test_commandLine_seed(t *testing.T) {
	ctx := context.Background()

	t.Run("ok", func(t *testing.T) {
		cli, out := setup(t)
		require.NoError(t, cli.run([]string{"admin", "seed", "-file", writeFile(t, "fixtures.yaml", fixturesYAML)}))
		assert.Contains(t, out.String(), "seeded 2 courses, 1 teachers, 1 students and 1 assignments")

		crss, err := cli.schoolSvc.QueryCourses(ctx, school.QueryFilter{}, nil)
		require.NoError(t, err)
		assert.Len(t, crss, 2)
		asgs, err := cli.schoolSvc.QueryAssignments(ctx, school.AssignmentFilter{Period: "2024-1"}, nil)
		require.NoError(t, err)
		assert.Len(t, asgs, 1)
	})

	t.Run("unknown teacher", func(t *testing.T) {
		cli, _ := setup(t)
		fx := "courses:\n  - {code: mat101, name: Cálculo}\nassignments:\n  - {teacher: luis@test.pe, course: mat101, period: 2024-1}\n"
		err := cli.run([]string{"admin", "seed", "-file", writeFile(t, "fixtures.yaml", fx)})
		assert.EqualError(t, err, `assignments[0]: unknown teacher "luis@test.pe"`)
	})

	t.Run("invalid course", func(t *testing.T) {
		cli, _ := setup(t)
		err := cli.run([]string{"admin", "seed", "-file", writeFile(t, "fixtures.yaml", "courses:\n  - {code: mat101}\n")})
		require.Error(t, err)
		assert.IsType(t, validator.ValidationErrors{}, errors.Cause(err))
	})

	t.Run("missing file", func(t *testing.T) {
		cli, _ := setup(t)
		assert.Error(t, cli.run([]string{"admin", "seed", "-file", filepath.Join(t.TempDir(), "lol.yaml")}))
	})
}

func Test_commandLine_import(t *testing.T) {
	ctx := context.Background()
	cli, out := setup(t)
	require.NoError(t, cli.run([]string{"admin", "seed", "-file", writeFile(t, "fixtures.yaml", fixturesYAML)}))
	asgs, err := cli.schoolSvc.QueryAssignments(ctx, school.AssignmentFilter{}, nil)
	require.NoError(t, err)
	require.Len(t, asgs, 1)
	asg := asgs[0]
	importArgs := func(path string) []string {
		return []string{"admin", "import", "-assignment", "1", "-file", path}
	}

	t.Run("invalid records", func(t *testing.T) {
		records := `[{"fecha": "2024-05-01", "calificaciones": [{"criterio": "lol", "valor": 9}], "comentarios": []}]`
		err := cli.run(importArgs(writeFile(t, "records.json", records)))
		require.Error(t, err)
		assert.Contains(t, out.String(), "[0].calificaciones[0].criterio")
	})

	t.Run("ok", func(t *testing.T) {
		records := `[
			{"fecha": "2024-05-01", "calificaciones": [{"criterio": "claridad", "valor": 4}], "comentarios": [{"tipo": "docente", "texto": "Muy clara", "sentimiento": "positivo"}]},
			{"fecha": "2024-05-02T10:00:00Z", "calificaciones": [{"criterio": "claridad", "valor": 2}], "comentarios": []}
		]`
		require.NoError(t, cli.run(importArgs(writeFile(t, "records.json", records))))
		assert.Contains(t, out.String(), "imported 2 evaluations")

		recs, err := cli.evalSvc.Records(ctx, asg.TeacherID, asg.CourseID)
		require.NoError(t, err)
		require.Len(t, recs, 2)
		assert.Equal(t, 3.0, evaluation.CriterionAverages([]string{"claridad"}, recs)[0])
	})

	t.Run("unknown assignment", func(t *testing.T) {
		err := cli.run([]string{"admin", "import", "-assignment", "99", "-file", writeFile(t, "records.json", "[]")})
		assert.True(t, core.IsNotFound(err))
	})
}
