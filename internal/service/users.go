package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/iliyamo/marina-reservation/internal/booking"
	"github.com/iliyamo/marina-reservation/internal/model"
)

const userNotFound = "user not found"

var validate = validator.New(validator.WithRequiredStructEnabled())

// UserInput is the create/update request for an account.
type UserInput struct {
	Name            string `json:"name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

// validateUser reports blank fields as MissingFields and every other
// rule violation as InvalidUser.
func validateUser(in *UserInput) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return booking.Wrap(booking.InvalidUser, "invalid user", err)
	}
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			return booking.Wrap(booking.MissingFields, "name, email, password and confirmation are required", err)
		}
	}
	switch fe := verrs[0]; fe.Field() {
	case "Email":
		return booking.Wrap(booking.InvalidUser, "email address is not valid", err)
	case "Password":
		return booking.Wrap(booking.InvalidUser, "password must be at least 8 characters", err)
	case "PasswordConfirm":
		return booking.Wrap(booking.InvalidUser, "passwords do not match", err)
	}
	return booking.Wrap(booking.InvalidUser, "invalid user", err)
}

func (s *Service) ListUsers(ctx context.Context) ([]model.User, error) {
	return read(ctx, s, "list users", userNotFound, s.users.List)
}

func (s *Service) GetUser(ctx context.Context, id uint64) (model.User, error) {
	return read(ctx, s, "find user", userNotFound,
		func(ctx context.Context) (model.User, error) { return s.users.GetByID(ctx, id) })
}

// CreateUser registers an account.  Emails are unique regardless of
// case.
func (s *Service) CreateUser(ctx context.Context, in UserInput) (model.User, error) {
	if err := validateUser(&in); err != nil {
		return model.User{}, err
	}
	id, err := s.users.Create(ctx, in.Name, in.Email, in.Password, s.auth.BcryptCost)
	if err != nil {
		return model.User{}, storeErr("create user", userNotFound, err)
	}
	log.Info().Uint64("user_id", id).Msg("user created")
	return s.GetUser(ctx, id)
}

// UpdateUser rewrites an account under the same rules as CreateUser.
// The email may stay the same; it must not belong to another account.
func (s *Service) UpdateUser(ctx context.Context, id uint64, in UserInput) (model.User, error) {
	if err := validateUser(&in); err != nil {
		return model.User{}, err
	}
	if _, err := s.GetUser(ctx, id); err != nil {
		return model.User{}, err
	}
	if err := s.users.Update(ctx, id, in.Name, in.Email, in.Password, s.auth.BcryptCost); err != nil {
		return model.User{}, storeErr("update user", userNotFound, err)
	}
	return s.GetUser(ctx, id)
}

// DeleteUser removes an account and its refresh tokens.
func (s *Service) DeleteUser(ctx context.Context, id uint64) error {
	if err := s.users.Delete(ctx, id); err != nil {
		return storeErr("delete user", userNotFound, err)
	}
	log.Info().Uint64("user_id", id).Msg("user deleted")
	return nil
}
