// Package users manages accounts and sessions.
package users

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/nyaruka/phonenumbers"
	"go.uber.org/zap"

	"propertyhub/internal/apperr"
	"propertyhub/internal/approval"
	"propertyhub/internal/auth"
	"propertyhub/internal/models"
)

// Store is the account persistence. Finders return nil when nothing matches.
type Store interface {
	FindUserByID(ctx context.Context, id uint) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	// CreateUser returns apperr.ErrConflict when the email is taken
	CreateUser(ctx context.Context, u *models.User) error
	UpdateUser(ctx context.Context, u *models.User) error
}

// RegisterRequest is a sign-up form
type RegisterRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Password  string `json:"password"`
}

// ProfileUpdate changes contact details; nil fields are kept
type ProfileUpdate struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Phone     *string `json:"phone"`
}

// Session is the result of a successful login
type Session struct {
	Token string       `json:"access_token"`
	User  *models.User `json:"user"`
}

// Service handles account operations
type Service struct {
	store         Store
	issuer        *auth.TokenIssuer
	defaultRegion string
	logger        *zap.Logger
}

// NewService creates a user service. defaultRegion is the ISO country used
// to read phone numbers typed without an international prefix.
func NewService(store Store, issuer *auth.TokenIssuer, defaultRegion string, logger *zap.Logger) *Service {
	if defaultRegion == "" {
		defaultRegion = "AR"
	}
	return &Service{store: store, issuer: issuer, defaultRegion: strings.ToUpper(defaultRegion), logger: logger.Named("users")}
}

// Register creates an account and logs it in
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Session, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if len(req.Password) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters", apperr.ErrValidation)
	}
	phone, err := NormalizePhone(req.Phone, s.defaultRegion)
	if err != nil {
		return nil, err
	}

	existing, err := s.store.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: email already registered", apperr.ErrConflict)
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	user := &models.User{
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Email:        email,
		Phone:        phone,
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	s.logger.Info("user registered", zap.Uint("user_id", user.ID))
	return s.session(user)
}

// Login checks credentials and issues a session token
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.store.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil || !user.IsActive || !auth.CheckPassword(password, user.PasswordHash) {
		return nil, fmt.Errorf("%w: invalid email or password", apperr.ErrUnauthorized)
	}
	return s.session(user)
}

// Profile returns the actor's account
func (s *Service) Profile(ctx context.Context, actor *approval.Actor) (*models.User, error) {
	if actor == nil {
		return nil, apperr.ErrUnauthorized
	}
	return s.find(ctx, actor.UserID)
}

// UpdateProfile changes the actor's contact details
func (s *Service) UpdateProfile(ctx context.Context, actor *approval.Actor, upd ProfileUpdate) (*models.User, error) {
	if actor == nil {
		return nil, apperr.ErrUnauthorized
	}
	user, err := s.find(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	if upd.FirstName != nil {
		user.FirstName = strings.TrimSpace(*upd.FirstName)
	}
	if upd.LastName != nil {
		user.LastName = strings.TrimSpace(*upd.LastName)
	}
	if upd.Phone != nil {
		phone, err := NormalizePhone(*upd.Phone, s.defaultRegion)
		if err != nil {
			return nil, err
		}
		user.Phone = phone
	}
	if err := s.store.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update user %d: %w", user.ID, err)
	}
	return user, nil
}

// MakeAdmin grants the admin flag. Only administrators may.
func (s *Service) MakeAdmin(ctx context.Context, actor *approval.Actor, userID uint) (*models.User, error) {
	if !approval.Decide(actor) {
		return nil, fmt.Errorf("%w: only administrators can grant admin", apperr.ErrForbidden)
	}
	user, err := s.find(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Admin {
		return user, nil
	}
	user.Admin = true
	if err := s.store.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update user %d: %w", user.ID, err)
	}
	s.logger.Info("admin granted", zap.Uint("user_id", user.ID), zap.Uint("granted_by", actor.UserID))
	return user, nil
}

func (s *Service) find(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.store.FindUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load user %d: %w", id, err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %d", apperr.ErrNotFound, id)
	}
	return user, nil
}

func (s *Service) session(user *models.User) (*Session, error) {
	token, err := s.issuer.Issue(user.ID, user.Email, user.Admin)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return &Session{Token: token, User: user}, nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: invalid email %q", apperr.ErrValidation, raw)
	}
	return email, nil
}

// NormalizePhone formats a phone number as E.164. An empty input stays empty.
func NormalizePhone(raw, region string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	num, err := phonenumbers.Parse(raw, region)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return "", fmt.Errorf("%w: invalid phone number %q", apperr.ErrValidation, raw)
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}
