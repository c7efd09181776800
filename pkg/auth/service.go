package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/middenhq/midden/pkg/mail"
	"github.com/middenhq/midden/pkg/observability"
)

// UserStore is the storage surface the authentication flow needs.
type UserStore interface {
	// FindByUsername returns the user or ErrNotFound.
	FindByUsername(ctx context.Context, username string) (*User, error)
	// LoadIdentity resolves the user joined with its role and aggregated
	// permission slugs. A user whose role carries no permissions yields an
	// empty set, not an error. Returns ErrNotFound if the user is gone.
	LoadIdentity(ctx context.Context, userID int64) (*Identity, error)
}

// CodeStore persists verification codes.
type CodeStore interface {
	Insert(ctx context.Context, userID int64, code string, expiresAt time.Time) error
	// Match reports whether an unexpired code row exists for (userID, code).
	Match(ctx context.Context, userID int64, code string, now time.Time) (bool, error)
	// DeleteForUser removes every code row for the user.
	DeleteForUser(ctx context.Context, userID int64) error
	// DeleteExpired removes rows past their expiry, returning the count.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Service implements credential authentication, verification code issuance,
// and the two-factor verify step. All collaborators are injected; there is no
// ambient global state.
type Service struct {
	users        UserStore
	codes        CodeStore
	mailer       mail.Mailer
	issuer       *TokenIssuer
	hasher       PasswordHasher
	logger       *observability.Logger
	codeTTL      time.Duration
	skipDelivery bool
	now          func() time.Time
}

// ServiceOptions configures a Service.
type ServiceOptions struct {
	Users  UserStore
	Codes  CodeStore
	Mailer mail.Mailer
	Issuer *TokenIssuer
	Hasher PasswordHasher
	Logger *observability.Logger

	// CodeTTL is the verification code lifetime; zero selects 10 minutes.
	CodeTTL time.Duration

	// SkipDelivery bypasses the mailer and exposes the code in the login
	// result, for non-production use.
	SkipDelivery bool
}

// NewService creates an authentication service.
func NewService(opts ServiceOptions) *Service {
	if opts.CodeTTL == 0 {
		opts.CodeTTL = 10 * time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Service{
		users:        opts.Users,
		codes:        opts.Codes,
		mailer:       opts.Mailer,
		issuer:       opts.Issuer,
		hasher:       opts.Hasher,
		logger:       opts.Logger,
		codeTTL:      opts.CodeTTL,
		skipDelivery: opts.SkipDelivery,
		now:          time.Now,
	}
}

// LoginResult is the outcome of a successful first-step login.
type LoginResult struct {
	// Guest is set when the reserved guest identity logged in; Token and
	// Identity are populated and no verification step follows.
	Guest    bool
	Token    string
	Identity *Identity

	// UserID identifies the account awaiting verification (non-guest path).
	UserID int64

	// DevCode carries the verification code when delivery is bypassed.
	DevCode string
}

// Login validates credentials. The reserved guest identity short-circuits to
// an immediate token with no storage access. Otherwise a verification code is
// generated, persisted with its expiry, and handed to the mailer; delivery
// failure never fails the login.
func (s *Service) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	if username == GuestUsername && password == GuestPassword {
		identity := GuestIdentity()
		token, err := s.issuer.Issue(identity)
		if err != nil {
			return nil, fmt.Errorf("failed to issue guest token: %w", err)
		}
		return &LoginResult{Guest: true, Token: token, Identity: identity}, nil
	}

	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if !s.hasher.Compare(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	code, err := GenerateCode()
	if err != nil {
		return nil, err
	}
	expiresAt := s.now().Add(s.codeTTL)

	if err := s.codes.Insert(ctx, user.ID, code, expiresAt); err != nil {
		return nil, fmt.Errorf("failed to store verification code: %w", err)
	}

	result := &LoginResult{UserID: user.ID}

	if s.skipDelivery {
		s.logger.WithFields(map[string]interface{}{
			"email": user.Email,
			"code":  code,
		}).Info("verification code issued (delivery skipped)")
		result.DevCode = code
		return result, nil
	}

	if err := s.mailer.Send(ctx, user.Email, code); err != nil {
		// The user may still receive the code out-of-band; delivery failure
		// never changes the login outcome.
		s.logger.WithError(err).WithField("email", user.Email).Error("verification code delivery failed")
	}

	return result, nil
}

// VerifyResult is the outcome of a successful two-factor verification.
type VerifyResult struct {
	Token    string
	Identity *Identity
}

// Verify validates a submitted code against an unexpired stored row, then
// deletes every code for the user, loads the full identity, and issues a
// token. After a successful verify no valid code remains for that user.
//
// The delete and the identity load are two separate store operations, not a
// transaction; overlapping verify attempts for the same user can race.
func (s *Service) Verify(ctx context.Context, userID int64, code string) (*VerifyResult, error) {
	matched, err := s.codes.Match(ctx, userID, code, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to check verification code: %w", err)
	}
	if !matched {
		return nil, ErrInvalidOrExpiredCode
	}

	if err := s.codes.DeleteForUser(ctx, userID); err != nil {
		return nil, fmt.Errorf("failed to delete verification codes: %w", err)
	}

	identity, err := s.users.LoadIdentity(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// The user row can be deleted between Match and this load.
			return nil, ErrServer
		}
		return nil, fmt.Errorf("failed to load identity: %w", err)
	}

	token, err := s.issuer.Issue(identity)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	return &VerifyResult{Token: token, Identity: identity}, nil
}
