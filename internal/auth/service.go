package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"ms-meals/internal/config"
	"ms-meals/internal/logger"
	"ms-meals/internal/models"
)

var ErrInvalidSession = errors.New("invalid or expired session")

type UserStore interface {
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	UserByID(ctx context.Context, id string) (*models.User, error)
}

// Session is the token pair handed to the browser after a successful
// magic-link exchange.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// Service implements the magic-link session flow: link issuance over email,
// one-time code exchange, token-pair refresh, verification and sign-out.
type Service struct {
	Users  UserStore
	Store  TokenStore
	Mailer Mailer
	Logger *logger.Logger
	Config config.AuthConfig
	Now    func() time.Time
}

func NewService(users UserStore, store TokenStore, mailer Mailer, log *logger.Logger, cfg config.AuthConfig) *Service {
	return &Service{
		Users:  users,
		Store:  store,
		Mailer: mailer,
		Logger: log,
		Config: cfg,
		Now:    time.Now,
	}
}

// RequestLoginLink emails a one-time login link. Unknown addresses return
// success without sending anything, so the endpoint does not leak which
// emails are registered.
func (s *Service) RequestLoginLink(ctx context.Context, email, redirectTo string) error {
	user, err := s.Users.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.Logger.LogAuth("LOGIN_LINK", fmt.Sprintf("no user for %s, skipping send", email))
			return nil
		}
		return fmt.Errorf("failed to look up user: %w", err)
	}

	code := uuid.NewString()
	if err := s.Store.SaveLoginCode(ctx, code, user.ID, s.Config.LinkTTL); err != nil {
		return fmt.Errorf("failed to store login code: %w", err)
	}

	link, err := s.buildLink(redirectTo, code)
	if err != nil {
		return err
	}

	if err := s.Mailer.SendLoginLink(user.Email, link); err != nil {
		return err
	}

	s.Logger.LogAuth("LOGIN_LINK", fmt.Sprintf("sent login link to %s", user.Email))
	return nil
}

// ExchangeCode trades a one-time login code for a session. The code is
// consumed even when the exchange fails later, matching one-time semantics.
func (s *Service) ExchangeCode(ctx context.Context, code string) (*Session, error) {
	userID, err := s.Store.TakeLoginCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return nil, ErrInvalidSession
		}
		return nil, fmt.Errorf("failed to resolve login code: %w", err)
	}
	return s.issueSession(ctx, userID)
}

// Refresh rotates a refresh token into a fresh session. Each refresh token
// works once.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	userID, err := s.Store.TakeRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return nil, ErrInvalidSession
		}
		return nil, fmt.Errorf("failed to resolve refresh token: %w", err)
	}
	return s.issueSession(ctx, userID)
}

// ExchangeTokenPair accepts the access/refresh pair a login link may carry
// in its URL fragment and rotates it into a server-issued session.
func (s *Service) ExchangeTokenPair(ctx context.Context, accessToken, refreshToken string) (*Session, error) {
	if _, _, err := s.parseAccessToken(accessToken); err != nil {
		return nil, ErrInvalidSession
	}
	return s.Refresh(ctx, refreshToken)
}

// Verify validates an access token and returns the user id it belongs to.
func (s *Service) Verify(ctx context.Context, accessToken string) (string, error) {
	userID, jti, err := s.parseAccessToken(accessToken)
	if err != nil {
		return "", ErrInvalidSession
	}

	revoked, err := s.Store.IsRevoked(ctx, jti)
	if err != nil {
		return "", fmt.Errorf("failed to check revocation: %w", err)
	}
	if revoked {
		return "", ErrInvalidSession
	}
	return userID, nil
}

// SignOut revokes the access token for its remaining lifetime.
func (s *Service) SignOut(ctx context.Context, accessToken string) error {
	claims := &jwt.RegisteredClaims{}
	if _, err := s.keyedParse(accessToken, claims); err != nil {
		return ErrInvalidSession
	}

	remaining := time.Duration(0)
	if claims.ExpiresAt != nil {
		remaining = claims.ExpiresAt.Time.Sub(s.Now())
	}
	if err := s.Store.RevokeJTI(ctx, claims.ID, remaining); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}

	s.Logger.LogAuth("SIGN_OUT", fmt.Sprintf("revoked session for user %s", claims.Subject))
	return nil
}

func (s *Service) issueSession(ctx context.Context, userID string) (*Session, error) {
	now := s.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.Config.AccessTTL)),
		ID:        uuid.NewString(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.Config.JWTSecret))
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	refreshToken := uuid.NewString()
	if err := s.Store.SaveRefreshToken(ctx, refreshToken, userID, s.Config.RefreshTTL); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return &Session{
		AccessToken:  signed,
		RefreshToken: refreshToken,
		TokenType:    "bearer",
		ExpiresIn:    int(s.Config.AccessTTL.Seconds()),
	}, nil
}

func (s *Service) parseAccessToken(accessToken string) (userID, jti string, err error) {
	claims := &jwt.RegisteredClaims{}
	if _, err := s.keyedParse(accessToken, claims); err != nil {
		return "", "", err
	}
	if claims.Subject == "" {
		return "", "", errors.New("subject claim missing")
	}
	return claims.Subject, claims.ID, nil
}

func (s *Service) keyedParse(accessToken string, claims jwt.Claims) (*jwt.Token, error) {
	return jwt.ParseWithClaims(accessToken, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(s.Config.JWTSecret), nil
	}, jwt.WithTimeFunc(func() time.Time { return s.Now() }))
}

func (s *Service) buildLink(redirectTo, code string) (string, error) {
	base := redirectTo
	if base == "" {
		base = s.Config.LinkBaseURL
	}

	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid redirect target: %w", err)
	}
	q := u.Query()
	q.Set("code", code)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
