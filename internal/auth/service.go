package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/frahmantamala/sangha-registry/internal"
	"github.com/frahmantamala/sangha-registry/internal/authz"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type UserRepository interface {
	// CredentialsByEmail returns internal.ErrUserNotFound when no user matches.
	CredentialsByEmail(ctx context.Context, email string) (*Credentials, error)
	CredentialsByID(ctx context.Context, userID int64) (*Credentials, error)
}

type TokenGenerator interface {
	GenerateAccessToken(userID int64, email, sessionID string) (string, error)
	GenerateRefreshToken(userID int64, email, sessionID string) (string, error)
	ValidateAccessToken(token string) (*Claims, error)
	ValidateRefreshToken(token string) (*Claims, error)
	AccessTTL() time.Duration
}

// AccessProvider resolves what a freshly authenticated user may do.
type AccessProvider interface {
	AccessContext(ctx context.Context, userID int64) (*authz.AccessContext, error)
}

// Service is the main auth service with dependencies
type Service struct {
	userRepo       UserRepository
	tokenGenerator TokenGenerator
	access         AccessProvider
	bcryptCost     int
	logger         *slog.Logger
}

// NewService creates a new auth service
func NewService(userRepo UserRepository, tokenGen TokenGenerator, access AccessProvider, bcryptCost int, logger *slog.Logger) *Service {
	if bcryptCost < bcrypt.MinCost {
		bcryptCost = bcrypt.DefaultCost
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		userRepo:       userRepo,
		tokenGenerator: tokenGen,
		access:         access,
		bcryptCost:     bcryptCost,
		logger:         logger,
	}
}

// Authenticate validates credentials and opens a new session.
func (s *Service) Authenticate(ctx context.Context, dto LoginDTO) (*LoginResult, error) {
	dto.Email = strings.ToLower(strings.TrimSpace(dto.Email))
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	creds, err := s.userRepo.CredentialsByEmail(ctx, dto.Email)
	if err != nil {
		if errors.Is(err, internal.ErrUserNotFound) {
			return nil, internal.ErrInvalidCredentials
		}
		return nil, internal.NewInternalError("failed to load credentials", err)
	}

	if err := VerifyPassword(creds.PasswordHash, dto.Password); err != nil {
		s.logger.WarnContext(ctx, "login rejected: password mismatch", "user_id", creds.UserID)
		return nil, internal.ErrInvalidCredentials
	}
	if !creds.IsActive {
		s.logger.WarnContext(ctx, "login rejected: user inactive", "user_id", creds.UserID)
		return nil, internal.ErrUserInactive
	}

	sessionID := uuid.NewString()
	tokens, err := s.issue(creds, sessionID)
	if err != nil {
		return nil, err
	}

	access, err := s.access.AccessContext(ctx, creds.UserID)
	if err != nil {
		return nil, internal.NewInternalError("failed to resolve access context", err)
	}

	s.logger.InfoContext(ctx, "user logged in", "user_id", creds.UserID, "session_id", sessionID)

	return &LoginResult{
		AuthTokens: tokens,
		SessionID:  sessionID,
		User: Profile{
			ID:    creds.UserID,
			Email: creds.Email,
			Name:  creds.Name,
		},
		Access: access,
	}, nil
}

// RefreshTokens rotates both tokens inside the same session.
func (s *Service) RefreshTokens(ctx context.Context, refreshToken string) (AuthTokens, error) {
	claims, err := s.tokenGenerator.ValidateRefreshToken(refreshToken)
	if err != nil {
		return AuthTokens{}, err
	}

	creds, err := s.userRepo.CredentialsByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, internal.ErrUserNotFound) {
			return AuthTokens{}, internal.ErrInvalidToken
		}
		return AuthTokens{}, internal.NewInternalError("failed to load user", err)
	}
	if !creds.IsActive {
		return AuthTokens{}, internal.ErrUserInactive
	}

	return s.issue(creds, claims.SessionID())
}

// ValidateAccessToken validates access token and returns claims
func (s *Service) ValidateAccessToken(tokenString string) (*Claims, error) {
	return s.tokenGenerator.ValidateAccessToken(tokenString)
}

func (s *Service) HashPassword(password string) (string, error) {
	return HashPassword(password, s.bcryptCost)
}

func (s *Service) issue(creds *Credentials, sessionID string) (AuthTokens, error) {
	accessToken, err := s.tokenGenerator.GenerateAccessToken(creds.UserID, creds.Email, sessionID)
	if err != nil {
		return AuthTokens{}, internal.NewInternalError("failed to issue access token", err)
	}

	refreshToken, err := s.tokenGenerator.GenerateRefreshToken(creds.UserID, creds.Email, sessionID)
	if err != nil {
		return AuthTokens{}, internal.NewInternalError("failed to issue refresh token", err)
	}

	return AuthTokens{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.tokenGenerator.AccessTTL().Seconds()),
	}, nil
}
