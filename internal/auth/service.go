package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type Service struct {
	repo   Repository
	issuer *TokenIssuer
	log    zerolog.Logger
}

func NewService(repo Repository, issuer *TokenIssuer, log zerolog.Logger) *Service {
	return &Service{repo: repo, issuer: issuer, log: log}
}

// Register creates a PATIENT account. Admin accounts are provisioned out
// of band, never through this endpoint.
func (s *Service) Register(ctx context.Context, name, email, password string, phone *string) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &User{
		Name:         name,
		Email:        email,
		Phone:        phone,
		PasswordHash: string(hash),
		Role:         RolePatient,
	}
	if err := s.repo.CreateUser(ctx, u); err != nil {
		return nil, err
	}

	s.log.Info().Str("user_id", u.ID.String()).Msg("patient registered")
	return u, nil
}

// Login verifies credentials and returns the user with a signed token.
// Unknown email and wrong password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (*User, string, error) {
	u, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("load user: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.issuer.Issue(u.ID, u.Role)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}
