package credentials

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	"geoauth/domain/entity"
	"geoauth/pkg/customerrors"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// MinSecretLength is the shortest secret accepted at registration.
const MinSecretLength = 6

type UserRepo interface {
	CreateUser(ctx context.Context, user entity.User) (entity.User, error)
	GetUserByEmail(ctx context.Context, email string) (entity.User, error)
}

type Store struct {
	repo UserRepo
	cost int
	// dummyHash is compared against when the email is unknown so both
	// failure paths spend the same bcrypt time.
	dummyHash []byte
}

func NewStore(repo UserRepo, cost int) *Store {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("not-a-real-secret"), cost)
	if err != nil {
		panic(fmt.Sprintf("credentials: generate dummy hash: %v", err))
	}
	return &Store{repo: repo, cost: cost, dummyHash: dummy}
}

// NormalizeEmail trims and lowercases an email; the result is the uniqueness key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidEmail accepts a bare addr-spec whose domain has at least one dot.
func ValidEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return false
	}
	at := strings.LastIndexByte(email, '@')
	domain := email[at+1:]
	dot := strings.LastIndexByte(domain, '.')
	return dot > 0 && dot < len(domain)-1
}

// Register validates and stores a new user with a bcrypt hash of secret.
func (s *Store) Register(ctx context.Context, email, secret string) (entity.User, error) {
	email = NormalizeEmail(email)
	if !ValidEmail(email) {
		return entity.User{}, customerrors.ErrInvalidEmailFormat
	}
	if utf8.RuneCountInString(secret) < MinSecretLength {
		return entity.User{}, customerrors.ErrSecretTooShort
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), s.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return entity.User{}, customerrors.ErrSecretTooLong
		}
		return entity.User{}, fmt.Errorf("hash secret: %w", err)
	}

	return s.repo.CreateUser(ctx, entity.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: string(hash),
		Tokens:       []string{},
	})
}

// FindByCredentials returns the user owning email if secret matches. An unknown
// email and a wrong secret fail with the same ErrInvalidCredentials.
func (s *Store) FindByCredentials(ctx context.Context, email, secret string) (entity.User, error) {
	user, err := s.repo.GetUserByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, customerrors.ErrUserNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(secret))
			return entity.User{}, customerrors.ErrInvalidCredentials
		}
		return entity.User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(secret)); err != nil {
		return entity.User{}, customerrors.ErrInvalidCredentials
	}
	return user, nil
}
