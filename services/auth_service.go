//go:generate go run go.uber.org/mock/mockgen -source=auth_service.go -destination=../mocks/mock_auth_provider.go -package=mocks
package services

import (
	"fmt"

	"roomchat/auth"
	"roomchat/domain"
	"roomchat/errors"
	"roomchat/repositories"
)

// IAuthProvider is the credential capability the rest of the system
// depends on. Callers only ever see user identifiers; hashes stay
// behind this boundary.
type IAuthProvider interface {
	Register(username, email, password string) (domain.UserID, error)
	Verify(username, password string) (domain.UserID, error)
}

type AuthService struct {
	userRepository repositories.IUserRepository
}

func NewAuthService(repo repositories.IUserRepository) IAuthProvider {
	return &AuthService{userRepository: repo}
}

func (s *AuthService) Register(username, email, password string) (domain.UserID, error) {
	valReq := auth.RegisterRequest{
		Username: username,
		Email:    email,
		Password: password,
	}

	// Business rules first, before any expensive cryptographic work.
	if err := auth.ValidateRegister(valReq); err != nil {
		return 0, fmt.Errorf("%w: %v", errors.ErrInvalidPassword, err)
	}

	// Hash in the service layer so the repository never sees a plain password.
	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return 0, fmt.Errorf("hashing failed: %w", err)
	}

	// Propagates ErrUserAlreadyExists when username or email is taken.
	return s.userRepository.CreateUser(username, email, hashedPassword)
}

func (s *AuthService) Verify(username, password string) (domain.UserID, error) {
	user, err := s.userRepository.GetUserByUsername(username)
	if err != nil {
		// Uniform error to prevent user enumeration.
		return 0, errors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil || !match {
		return 0, errors.ErrInvalidCredentials
	}
	return user.ID, nil
}
