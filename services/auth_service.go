package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"gorm.io/gorm"

	"nutritrack/apperr"
	"nutritrack/models"
	"nutritrack/utils"
)

// AuthService issues bearer tokens for the development login. Production
// deployments sit behind an identity provider that mints the same claims.
type AuthService struct {
	db     *gorm.DB
	secret []byte
	ttl    time.Duration
}

func NewAuthService(db *gorm.DB, secret []byte) *AuthService {
	return &AuthService{db: db, secret: secret, ttl: 72 * time.Hour}
}

type LoginInput struct {
	Email    string `json:"email" binding:"required"`
	FullName string `json:"full_name"`
}

// Login finds or creates the user by email and returns a signed token.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (string, *models.User, error) {
	const op = "auth.login"
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return "", nil, apperr.New(apperr.CodeValidation, op, "invalid email")
	}

	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = models.User{Email: email, FullName: strings.TrimSpace(in.FullName)}
		err = s.db.WithContext(ctx).Create(&user).Error
	}
	if err != nil {
		return "", nil, apperr.Wrap(apperr.CodeStorage, op, err)
	}

	token, err := utils.GenerateJWT(user.ID, user.Email, s.secret, s.ttl)
	if err != nil {
		return "", nil, apperr.Wrap(apperr.CodeInternal, op, err)
	}
	return token, &user, nil
}

func (s *AuthService) Me(ctx context.Context, userID uint) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.New(apperr.CodeNotFound, "auth.me", "user not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeStorage, "auth.me", err)
	}
	return &user, nil
}
