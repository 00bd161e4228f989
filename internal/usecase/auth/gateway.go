// Package auth ties credentials, tokens and the login ledger into the
// register/login/logout flow. A session moves Anonymous -> Authenticated -> Revoked
// and never back.
package auth

import (
	"context"
	"log/slog"

	"geoauth/domain/entity"
	"geoauth/internal/metrics"
	"geoauth/internal/usecase/logins"
	"geoauth/pkg/clientip"

	"github.com/google/uuid"
)

type CredentialStore interface {
	Register(ctx context.Context, email, secret string) (entity.User, error)
	FindByCredentials(ctx context.Context, email, secret string) (entity.User, error)
}

type TokenService interface {
	Issue(ctx context.Context, user entity.User) (string, error)
	Validate(ctx context.Context, token string) (entity.User, error)
	Revoke(ctx context.Context, userID uuid.UUID, token string) error
}

type LoginRecorder interface {
	Record(ctx context.Context, in logins.LoginInput) (entity.LoginEvent, error)
}

// Runner runs best-effort work after the request has been answered.
type Runner interface {
	Go(ctx context.Context, name string, fn func(ctx context.Context) error)
}

// ClientInfo is what the transport knows about the caller at login.
type ClientInfo struct {
	Addr      clientip.Context
	UserAgent string
}

type Gateway struct {
	credentials CredentialStore
	tokens      TokenService
	logins      LoginRecorder
	runner      Runner
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

func NewGateway(
	credentials CredentialStore,
	tokens TokenService,
	logins LoginRecorder,
	runner Runner,
	logger *slog.Logger,
	m *metrics.Metrics,
) *Gateway {
	return &Gateway{
		credentials: credentials,
		tokens:      tokens,
		logins:      logins,
		runner:      runner,
		logger:      logger,
		metrics:     m,
	}
}

// Register creates the account and opens its first session.
func (g *Gateway) Register(ctx context.Context, email, secret string) (entity.PublicUser, string, error) {
	user, err := g.credentials.Register(ctx, email, secret)
	if err != nil {
		return entity.PublicUser{}, "", err
	}
	token, err := g.tokens.Issue(ctx, user)
	if err != nil {
		return entity.PublicUser{}, "", err
	}
	g.logger.Info("User registered", slog.String("user_id", user.ID.String()))
	return user.Public(), token, nil
}

// Login checks credentials and opens a new session. Recording the login event
// happens in the background and cannot fail the login.
func (g *Gateway) Login(ctx context.Context, email, secret string, client ClientInfo) (entity.PublicUser, string, error) {
	user, err := g.credentials.FindByCredentials(ctx, email, secret)
	if err != nil {
		g.metrics.CountLogin("invalid_credentials")
		return entity.PublicUser{}, "", err
	}

	token, err := g.tokens.Issue(ctx, user)
	if err != nil {
		g.metrics.CountLogin("error")
		return entity.PublicUser{}, "", err
	}
	g.metrics.CountLogin("success")

	in := logins.LoginInput{
		UserID:    user.ID,
		IP:        clientip.Resolve(client.Addr),
		UserAgent: client.UserAgent,
	}
	g.runner.Go(ctx, "login_record", func(ctx context.Context) error {
		_, err := g.logins.Record(ctx, in)
		return err
	})

	return user.Public(), token, nil
}

// Logout revokes token. It succeeds for any session that validated.
func (g *Gateway) Logout(ctx context.Context, userID uuid.UUID, token string) error {
	return g.tokens.Revoke(ctx, userID, token)
}

// CurrentUser returns the public view of the token's owner.
func (g *Gateway) CurrentUser(ctx context.Context, token string) (entity.PublicUser, error) {
	user, err := g.tokens.Validate(ctx, token)
	if err != nil {
		return entity.PublicUser{}, err
	}
	return user.Public(), nil
}

// VerifyUser validates token for the auth middleware.
func (g *Gateway) VerifyUser(ctx context.Context, token string) (entity.User, error) {
	return g.tokens.Validate(ctx, token)
}
