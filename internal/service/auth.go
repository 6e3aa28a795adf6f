package service

import (
	"context"
	"errors"
	"strings"

	"github.com/iliyamo/marina-reservation/internal/booking"
	"github.com/iliyamo/marina-reservation/internal/model"
	"github.com/iliyamo/marina-reservation/internal/repository"
	"github.com/iliyamo/marina-reservation/internal/utils"
)

// Session is the result of a successful login, registration or refresh.
type Session struct {
	User    model.User
	Access  utils.AccessToken
	Refresh utils.RefreshToken
}

var errInvalidCredentials = booking.Fail(booking.Unauthorized, "invalid credentials")

// Register creates an account and opens a session for it.
func (s *Service) Register(ctx context.Context, in UserInput) (Session, error) {
	u, err := s.CreateUser(ctx, in)
	if err != nil {
		return Session{}, err
	}
	return s.issue(ctx, u)
}

// Authenticate checks an email/password pair.
func (s *Service) Authenticate(ctx context.Context, email, password string) (model.User, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return model.User{}, booking.Fail(booking.MissingFields, "email and password are required")
	}
	u, err := read(ctx, s, "find user by email", userNotFound,
		func(ctx context.Context) (model.User, error) { return s.users.GetByEmail(ctx, email) })
	if err != nil {
		if booking.Is(err, booking.NotFound) {
			return model.User{}, errInvalidCredentials
		}
		return model.User{}, err
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return model.User{}, errInvalidCredentials
	}
	return u, nil
}

// Login authenticates and opens a session.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	u, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return Session{}, err
	}
	return s.issue(ctx, u)
}

// Refresh rotates a refresh token: the presented one is revoked and a
// new pair is issued.
func (s *Service) Refresh(ctx context.Context, raw string) (Session, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Session{}, booking.Fail(booking.MissingFields, "refresh_token is required")
	}
	hash := utils.HashRefreshRaw(raw)
	uid, err := s.tokens.ValidateRefresh(ctx, hash, s.now())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Session{}, booking.Fail(booking.Unauthorized, "invalid refresh token")
		}
		return Session{}, storeErr("validate refresh", userNotFound, err)
	}
	if err := s.tokens.RevokeByHash(ctx, hash); err != nil {
		return Session{}, storeErr("revoke refresh", userNotFound, err)
	}
	u, err := s.GetUser(ctx, uid)
	if err != nil {
		if booking.Is(err, booking.NotFound) {
			return Session{}, booking.Fail(booking.Unauthorized, "invalid refresh token")
		}
		return Session{}, err
	}
	return s.issue(ctx, u)
}

// Logout revokes the given refresh token, or every token of the actor
// on ctx when raw is empty.
func (s *Service) Logout(ctx context.Context, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw != "" {
		hash := utils.HashRefreshRaw(raw)
		if _, err := s.tokens.ValidateRefresh(ctx, hash, s.now()); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return booking.Fail(booking.Unauthorized, "invalid refresh token")
			}
			return storeErr("validate refresh", userNotFound, err)
		}
		return storeErr("revoke refresh", userNotFound, s.tokens.RevokeByHash(ctx, hash))
	}
	uid := ActorFrom(ctx)
	if uid == 0 {
		return booking.Fail(booking.Unauthorized, "refresh_token or bearer token required")
	}
	return storeErr("revoke all refresh", userNotFound, s.tokens.RevokeAllForUser(ctx, uid))
}

func (s *Service) issue(ctx context.Context, u model.User) (Session, error) {
	now := s.now()
	access, err := utils.NewAccessToken(s.auth.JWTSecret, u.ID, u.Email, s.auth.AccessTTLMin, now)
	if err != nil {
		return Session{}, err
	}
	refresh, err := utils.NewRefreshToken(s.auth.RefreshTTLDays, now)
	if err != nil {
		return Session{}, err
	}
	if err := s.tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return Session{}, storeErr("store refresh", userNotFound, err)
	}
	return Session{User: u, Access: access, Refresh: refresh}, nil
}
