package auth

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"tally/internal/apperr"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

const minPasswordLen = 8

type Service struct {
	DB *gorm.DB
}

type RegisterInput struct {
	Email    string
	Username string
	Password string
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (User, error) {
	email := normalizeEmail(in.Email)
	username := strings.TrimSpace(in.Username)
	if _, err := mail.ParseAddress(email); err != nil {
		return User{}, apperr.Invalid("email %q is not valid", in.Email)
	}
	if username == "" {
		username = strings.SplitN(email, "@", 2)[0]
	}
	if len(in.Password) < minPasswordLen {
		return User{}, apperr.Invalid("password must have at least %d characters", minPasswordLen)
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return User{}, err
	}
	u := User{Email: email, Username: username, PasswordHash: hash}
	if err := s.DB.WithContext(ctx).Create(&u).Error; err != nil {
		return User{}, apperr.FromStore(err, "email")
	}
	return u, nil
}

// Login returns ErrInvalidCredentials for an unknown email or a wrong password.
func (s *Service) Login(ctx context.Context, email, password string) (User, error) {
	var u User
	err := s.DB.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}
	if !ComparePassword(u.PasswordHash, password) {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (User, error) {
	var u User
	err := s.DB.WithContext(ctx).First(&u, "id = ?", id).Error
	return u, apperr.FromStore(err, "user")
}

func normalizeEmail(s string) string {
	return strings.TrimSpace(strings.ToLower(s))
}
