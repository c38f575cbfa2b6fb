package user

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/evaluo/core"
)

var (
	// errors
	ErrNotFound       = core.NewNotFoundError("user")
	ErrEmailExists    = errors.New("a user with this email already exists")
	ErrUsernameExists = errors.New("a user with this username already exists")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		// CheckUniqueness returns ErrUsernameExists or ErrEmailExists; empty values never match
		// and excludeID is ignored when 0.
		CheckUniqueness(ctx context.Context, username, email string, excludeID int) error
		CreateUser(ctx context.Context, usr User) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name, User.Username or User.Email.
		QueryUsers(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]User, error)
		GetUserByID(ctx context.Context, id int) (User, error)
		GetUserByEmail(ctx context.Context, email string) (User, error)
		GetUserByUsernameOrEmail(ctx context.Context, username string) (User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		DeleteUsersByID(ctx context.Context, ids ...int) (int, error)
	}

	Service struct {
		repo            Repository
		mailSvc         core.EmailService
		tokens          tokenGenerator
		frontendBaseURL string
	}
)

func NewService(repo Repository, mailSvc core.EmailService, conf *core.Config) *Service {
	return &Service{
		repo:    repo,
		mailSvc: mailSvc,
		tokens: tokenGenerator{
			secretKey: []byte(conf.SecretKey),
			timeout:   conf.PasswordResetTimeoutDelta,
		},
		frontendBaseURL: conf.FrontendBaseURL,
	}
}

func (svc *Service) checkUniqueness(ctx context.Context, uname, email string, excludeID int) error {
	if err := svc.repo.CheckUniqueness(ctx, uname, email, excludeID); err != nil {
		var field string
		switch err {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return errors.Wrap(err, "checking user uniqueness")
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

// Create stores a new active user. `nu` must have been validated.
func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := nowFunc().UTC()
	usr := User{
		Name:      nu.Name,
		Username:  nu.Username,
		Email:     nu.Email,
		IsActive:  true,
		Roles:     nu.Roles,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	return svc.repo.QueryUsers(ctx, filter, ordering)
}

func (svc *Service) GetByID(ctx context.Context, id int) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *Service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUserByUsernameOrEmail(ctx, core.CleanString(uname, true /* lower */))
}

// Update applies `uu` on top of `orig`. `uu` must have been validated against `orig`.
func (svc *Service) Update(ctx context.Context, orig User, uu UpdateUser) (User, error) {
	usr := orig
	usr.Name = uu.Name
	usr.Username = uu.Username
	usr.Email = uu.Email
	if uu.Roles != nil {
		usr.Roles = uu.Roles
	}
	if uu.IsActive != nil {
		usr.IsActive = *uu.IsActive
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, errors.Wrap(err, "setting password")
		}
	}
	usr.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = nowFunc().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) Delete(ctx context.Context, ids ...int) (int, error) {
	return svc.repo.DeleteUsersByID(ctx, ids...)
}

// RequestPasswordReset emails a password reset link to the active user owning `email`.
func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return ErrNotFound
	}

	link := fmt.Sprintf("%s/password-reset/%s/%s", svc.frontendBaseURL, EncodeUID(usr), svc.tokens.makeToken(usr))
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject: "Password reset",
		TextContent: fmt.Sprintf(
			"Hi %s,\r\n\r\nYou requested a password reset. Follow this link to choose a new password:\r\n%s\r\n\r\n"+
				"If you did not make this request, you can ignore this email.\r\n",
			usr.Name, link,
		),
	})
	return nil
}

// ResetPassword sets a new password after checking the reset token. `rp` must have been validated.
func (svc *Service) ResetPassword(ctx context.Context, rp ResetUserPassword) error {
	invalid := func(err error) error {
		return core.NewValidationError(err, core.FieldError{Field: "token", Error: err.Error()})
	}

	id, err := decodeUID(rp.UID)
	if err != nil {
		return invalid(err)
	}
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return invalid(errInvalidUID)
		}
		return errors.Wrap(err, "finding user by ID")
	}
	if err = svc.tokens.verifyToken(usr, rp.Token); err != nil {
		return invalid(err)
	}

	if err = usr.SetPassword(rp.Password); err != nil {
		return errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = nowFunc().UTC()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return err
}
