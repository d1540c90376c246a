package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/car-maintenance-booking/internal/apperr"
	"github.com/hackgods/car-maintenance-booking/internal/db"
)

type Service struct {
	repo   Repository
	issuer *Issuer
	log    *zap.Logger
}

func NewService(repo Repository, issuer *Issuer, log *zap.Logger) *Service {
	return &Service{repo: repo, issuer: issuer, log: log}
}

type Session struct {
	Token     string
	ExpiresAt time.Time
	UserID    int64
	Role      Role
}

func (s *Service) Login(ctx context.Context, username, password string) (*Session, error) {
	u, err := s.repo.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !CheckPassword(u.PasswordHash, password) {
		s.log.Info("login rejected", zap.String("username", u.Username))
		return nil, ErrInvalidCredentials
	}
	if !u.Active {
		return nil, ErrUserDisabled
	}

	token, exp, err := s.issuer.Issue(u.ID, u.Role)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: exp, UserID: u.ID, Role: u.Role}, nil
}

type RegisterInput struct {
	Username string
	Password string
	Email    *string
	Phone    *string
	RealName *string
	Role     Role
}

// Register creates a customer or shop account. Admin accounts are seeded, never self-registered.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	in.Username = strings.TrimSpace(in.Username)
	if len(in.Username) < 3 {
		return nil, apperr.Validation("username must be at least 3 characters")
	}
	if len(in.Password) < 6 {
		return nil, apperr.Validation("password must be at least 6 characters")
	}
	if in.Role != RoleCustomer && in.Role != RoleShop {
		return nil, apperr.Validation("role must be customer or shop")
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	u, err := s.repo.CreateUser(ctx, User{
		Username:     in.Username,
		PasswordHash: hash,
		Email:        in.Email,
		Phone:        in.Phone,
		RealName:     in.RealName,
		Role:         in.Role,
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("user registered", zap.Int64("user_id", u.ID), zap.String("role", string(u.Role)))
	return u, nil
}

// Authenticate resolves a bearer token into a principal whose account is still active.
func (s *Service) Authenticate(ctx context.Context, token string) (Principal, error) {
	p, err := s.issuer.Parse(token)
	if err != nil {
		return Principal{}, apperr.Unauthorized("invalid or expired token")
	}
	u, err := s.repo.GetUserByID(ctx, p.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return Principal{}, apperr.Unauthorized("account no longer exists")
		}
		return Principal{}, fmt.Errorf("load user: %w", err)
	}
	if !u.Active {
		return Principal{}, ErrUserDisabled
	}
	p.Role = u.Role
	return p, nil
}

func (s *Service) SetUserActive(ctx context.Context, userID int64, active bool) error {
	return s.repo.SetUserActive(ctx, userID, active)
}

func (s *Service) Profile(ctx context.Context, userID int64) (*User, error) {
	return s.repo.GetUserByID(ctx, userID)
}

// ProfileInput carries the contact fields a user may edit. A nil field is left
// unchanged; an empty string clears it.
type ProfileInput struct {
	Email    *string
	Phone    *string
	RealName *string
}

// UpdateProfile edits contact details only. Username, password, role and
// account status are not reachable from here.
func (s *Service) UpdateProfile(ctx context.Context, userID int64, in ProfileInput) (*User, error) {
	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if in.Email != nil {
		email := strings.TrimSpace(*in.Email)
		if email != "" && !strings.Contains(email, "@") {
			return nil, apperr.Validation("email is not valid")
		}
		u.Email = optional(email)
	}
	if in.Phone != nil {
		u.Phone = optional(strings.TrimSpace(*in.Phone))
	}
	if in.RealName != nil {
		u.RealName = optional(strings.TrimSpace(*in.RealName))
	}

	updated, err := s.repo.UpdateProfile(ctx, *u)
	if err != nil {
		return nil, err
	}
	s.log.Debug("profile updated", zap.Int64("user_id", userID))
	return updated, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (s *Service) ListUsers(ctx context.Context, f UserFilter, page db.Page) ([]User, int, error) {
	f.Keyword = strings.TrimSpace(f.Keyword)
	return s.repo.ListUsers(ctx, f, page)
}
