// Package tokens issues bearer tokens and keeps them honest against each
// user's active-token set. A token validates only while it is still in that set.
package tokens

import (
	"context"
	"fmt"

	"geoauth/domain/entity"
	"geoauth/pkg/customerrors"

	"github.com/google/uuid"
)

type UserRepo interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (entity.User, error)
	AddToken(ctx context.Context, id uuid.UUID, token string) error
	RemoveToken(ctx context.Context, id uuid.UUID, token string) error
}

type TokenSigner interface {
	NewAccessToken(userID uuid.UUID) (string, error)
	VerifyAccessToken(token string) (uuid.UUID, error)
}

type Service struct {
	repo   UserRepo
	signer TokenSigner
}

func NewService(repo UserRepo, signer TokenSigner) *Service {
	return &Service{repo: repo, signer: signer}
}

// Issue signs a token for user and appends it to the user's active set.
func (s *Service) Issue(ctx context.Context, user entity.User) (string, error) {
	token, err := s.signer.NewAccessToken(user.ID)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	if err := s.repo.AddToken(ctx, user.ID, token); err != nil {
		return "", err
	}
	return token, nil
}

// Validate returns the owner of token. The token must verify and still be active.
func (s *Service) Validate(ctx context.Context, token string) (entity.User, error) {
	if token == "" {
		return entity.User{}, customerrors.ErrUnauthenticated
	}

	userID, err := s.signer.VerifyAccessToken(token)
	if err != nil {
		return entity.User{}, fmt.Errorf("%w: %v", customerrors.ErrMalformedToken, err)
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return entity.User{}, err
	}
	if !user.HasToken(token) {
		return entity.User{}, customerrors.ErrSessionRevoked
	}
	return user, nil
}

// Revoke drops token from the user's active set. Revoking twice is a no-op.
func (s *Service) Revoke(ctx context.Context, userID uuid.UUID, token string) error {
	return s.repo.RemoveToken(ctx, userID, token)
}
