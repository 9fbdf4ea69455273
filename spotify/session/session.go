package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/xeptore/beater/config"
	"github.com/xeptore/beater/redact"
	"github.com/xeptore/beater/spotify/types"
)

// refreshWindow is how long before expiry a stored token is considered
// unusable.
const refreshWindow = 10 * time.Minute

var (
	ErrUnauthorized      = errors.New("unauthorized")
	ErrBadCredentials    = errors.New("bad credentials")
	ErrLoginRequired     = errors.New("login required")
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrTooManyRequests   = errors.New("too many requests")
	ErrAudioKey          = errors.New("audio key request rejected")
	ErrUnexpectedPayload = errors.New("unexpected response payload")
)

type Token struct {
	AccessToken string
	Tier        types.AccountTier
	ExpiresAt   time.Time
}

func (t *Token) usable(now time.Time) bool {
	return nil != t && len(t.AccessToken) > 0 && now.Add(refreshWindow).Before(t.ExpiresAt)
}

// Session is an authenticated connection to the service. It is safe for
// concurrent use.
type Session struct {
	conf    config.SpotifySession
	client  *http.Client
	limiter *rate.Limiter
	storage *Storage
	token   atomic.Pointer[Token]
}

func New(conf config.SpotifySession, storage *Storage) (*Session, error) {
	client, err := newHTTPClient(conf)
	if nil != err {
		return nil, fmt.Errorf("create http client: %v", err)
	}

	limit := rate.Inf
	if conf.RequestsPerSecond > 0 {
		limit = rate.Limit(conf.RequestsPerSecond)
	}

	return &Session{
		conf:    conf,
		client:  client,
		limiter: rate.NewLimiter(limit, max(1, int(conf.RequestsPerSecond))),
		storage: storage,
		token:   atomic.Pointer[Token]{},
	}, nil
}

// Resume loads a previously stored token. It returns ErrLoginRequired when
// there is none or it is about to expire.
func (s *Session) Resume(ctx context.Context, logger zerolog.Logger) error {
	t, err := s.storage.LoadToken(ctx)
	if nil != err {
		logger.Error().Err(err).Msg("Failed to load stored session token")
		return fmt.Errorf("load stored token: %v", err)
	}

	if !t.usable(time.Now()) {
		logger.Debug().Msg("No usable stored session token")
		return ErrLoginRequired
	}

	s.token.Store(t)
	logger.Debug().Time("expires_at", t.ExpiresAt).Str("tier", t.Tier.String()).Msg("Resumed stored session")

	return nil
}

// Connect resumes a stored session or logs in with the given credentials.
// Transient login failures are retried with exponential backoff.
func (s *Session) Connect(ctx context.Context, logger zerolog.Logger, username, password string) error {
	if err := s.Resume(ctx, logger); nil == err {
		return nil
	} else if !errors.Is(err, ErrLoginRequired) {
		return err
	}

	if len(username) == 0 || len(password) == 0 {
		return ErrLoginRequired
	}

	bo := backoff.WithContext(
		backoff.WithMaxRetries(
			backoff.NewExponentialBackOff(
				backoff.WithInitialInterval(time.Second*1),
				backoff.WithMaxInterval(time.Second*30),
				backoff.WithMaxElapsedTime(time.Minute*2),
			),
			5,
		),
		ctx,
	)

	err := backoff.RetryNotify(
		func() error {
			err := s.Login(ctx, logger, username, password)
			if nil == err {
				return nil
			}

			if errors.Is(err, ErrBadCredentials) || errors.Is(err, context.Canceled) {
				return backoff.Permanent(err)
			}

			return err
		},
		bo,
		func(err error, d time.Duration) {
			logger.Warn().Err(err).Dur("retry_in", d).Msg("Login attempt failed")
		},
	)
	if nil != err {
		return fmt.Errorf("login: %w", err)
	}

	return nil
}

func (s *Session) Logout(ctx context.Context) error {
	s.token.Store(nil)
	if err := s.storage.DeleteToken(ctx); nil != err {
		return fmt.Errorf("delete stored token: %v", err)
	}

	return nil
}

func (s *Session) currentToken() (*Token, error) {
	t := s.token.Load()
	if nil == t {
		return nil, ErrLoginRequired
	}

	return t, nil
}

// AccountTier reports the tier of the logged in account. It is free until a
// login succeeds.
func (s *Session) AccountTier() types.AccountTier {
	if t := s.token.Load(); nil != t {
		return t.Tier
	}

	return types.AccountTierFree
}

func (s *Session) ExpiresAt() time.Time {
	if t := s.token.Load(); nil != t {
		return t.ExpiresAt
	}

	return time.Time{}
}

// HTTPClient is the client CDN downloads go through. It shares the
// session's proxy settings.
func (s *Session) HTTPClient() *http.Client {
	return s.client
}

func (t Token) ToDict() *zerolog.Event {
	return zerolog.Dict().
		Str("access_token", redact.String(t.AccessToken)).
		Str("tier", t.Tier.String()).
		Time("expires_at", t.ExpiresAt)
}

func tokenExpiry(accessToken string, expiresIn int64, now time.Time) time.Time {
	claims := jwt.RegisteredClaims{} //nolint:exhaustruct
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, &claims); nil == err && nil != claims.ExpiresAt {
		return claims.ExpiresAt.UTC()
	}

	return now.Add(time.Duration(expiresIn) * time.Second).UTC()
}
