package user_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/evaluo/core"
	"github.com/trezcool/evaluo/core/user"
	emailsvc "github.com/trezcool/evaluo/services/email"
	inmemdb "github.com/trezcool/evaluo/storage/database/inmem"
)

func setup(t *testing.T) (*user.Service, *validator.Validate) {
	t.Helper()
	conf := &core.Config{
		AppName:                   "Evaluo",
		SecretKey:                 "test-secret",
		FrontendBaseURL:           "http://localhost:3000",
		PasswordResetTimeoutDelta: time.Hour,
	}
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	emailsvc.ResetSentMessages()
	return user.NewService(inmemdb.NewUserRepository(inmemdb.Open()), emailsvc.NewConsoleServiceMock(conf), conf), validate
}

func createUser(t *testing.T, svc *user.Service, validate *validator.Validate, nu user.NewUser) user.User {
	t.Helper()
	require.NoError(t, nu.Validate(context.Background(), validate, svc))
	usr, err := svc.Create(context.Background(), nu)
	require.NoError(t, err)
	return usr
}

func TestService_CreateUpdate(t *testing.T) {
	svc, validate := setup(t)
	ctx := context.Background()

	rosa := createUser(t, svc, validate, user.NewUser{
		Name: " Rosa Díaz ", Username: " Rosa ", Email: "ROSA@test.pe",
		Password: "Ev4lu@cion", PasswordConfirm: "Ev4lu@cion", Roles: []string{user.RoleStudent},
	})
	assert.Equal(t, "Rosa Díaz", rosa.Name)
	assert.Equal(t, "rosa", rosa.Username)
	assert.Equal(t, "rosa@test.pe", rosa.Email)
	assert.True(t, rosa.IsActive)
	assert.NoError(t, rosa.CheckPassword("Ev4lu@cion"))

	t.Run("uniqueness", func(t *testing.T) {
		nu := user.NewUser{Name: "Otra Rosa", Email: "rosa@TEST.pe", Password: "Ev4lu@cion", PasswordConfirm: "Ev4lu@cion"}
		err := nu.Validate(ctx, validate, svc)
		vErr, ok := errors.Cause(err).(*core.ValidationError)
		require.True(t, ok, err)
		assert.Equal(t, user.ErrEmailExists, vErr.Err)
		assert.Equal(t, "email", vErr.Fields[0].Field)
	})

	t.Run("update", func(t *testing.T) {
		inactive := false
		uu := user.UpdateUser{Name: "Rosa María Díaz", IsActive: &inactive}
		require.NoError(t, uu.Validate(ctx, rosa, validate, svc))
		usr, err := svc.Update(ctx, rosa, uu)
		require.NoError(t, err)
		assert.Equal(t, "Rosa María Díaz", usr.Name)
		assert.Equal(t, "rosa", usr.Username)
		assert.False(t, usr.IsActive)
		assert.Equal(t, []string{user.RoleStudent}, usr.Roles)
		assert.NoError(t, usr.CheckPassword("Ev4lu@cion"), "password is kept")
	})

	t.Run("get by username or email", func(t *testing.T) {
		usr, err := svc.GetByUsernameOrEmail(ctx, " ROSA@test.pe")
		require.NoError(t, err)
		assert.Equal(t, rosa.ID, usr.ID)

		_, err = svc.GetByUsernameOrEmail(ctx, "luis")
		assert.True(t, core.IsNotFound(err))
	})
}

func TestService_PasswordReset(t *testing.T) {
	svc, validate := setup(t)
	ctx := context.Background()

	luis := createUser(t, svc, validate, user.NewUser{
		Name: "Luis Soto", Username: "luis", Email: "luis@test.pe", Password: "Ev4lu@cion", PasswordConfirm: "Ev4lu@cion",
	})

	assert.Equal(t, user.ErrNotFound, errors.Cause(svc.RequestPasswordReset(ctx, "lol@test.pe")))
	_, ok := emailsvc.LastSentMessage()
	assert.False(t, ok)

	require.NoError(t, svc.RequestPasswordReset(ctx, "LUIS@test.pe"))
	msg, ok := emailsvc.LastSentMessage()
	require.True(t, ok)
	assert.Equal(t, "luis@test.pe", msg.To[0].Address)
	m := regexp.MustCompile(`http://localhost:3000/password-reset/([^/\s]+)/([^/\s]+)`).FindStringSubmatch(msg.TextContent)
	require.Len(t, m, 3)

	rp := user.ResetUserPassword{UID: m[1], Token: m[2], Password: "N3w-P@ssword", PasswordConfirm: "N3w-P@ssword"}
	require.NoError(t, rp.Validate(validate))

	bad := rp
	bad.UID = "lol"
	vErr, ok := errors.Cause(svc.ResetPassword(ctx, bad)).(*core.ValidationError)
	require.True(t, ok)
	assert.Equal(t, "token", vErr.Fields[0].Field)

	require.NoError(t, svc.ResetPassword(ctx, rp))
	usr, err := svc.GetByID(ctx, luis.ID)
	require.NoError(t, err)
	assert.NoError(t, usr.CheckPassword("N3w-P@ssword"))

	// the token is bound to the old password hash
	_, ok = errors.Cause(svc.ResetPassword(ctx, rp)).(*core.ValidationError)
	assert.True(t, ok)

	t.Run("inactive users cannot reset", func(t *testing.T) {
		inactive := false
		_, err := svc.Update(ctx, usr, user.UpdateUser{Name: usr.Name, Username: usr.Username, Email: usr.Email, IsActive: &inactive})
		require.NoError(t, err)
		assert.Equal(t, user.ErrNotFound, errors.Cause(svc.RequestPasswordReset(ctx, usr.Email)))
	})
}
