package spotify

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/xeptore/beater/cache"
	"github.com/xeptore/beater/config"
	"github.com/xeptore/beater/result"
	"github.com/xeptore/beater/spotify/auth"
	"github.com/xeptore/beater/spotify/downloader"
	"github.com/xeptore/beater/spotify/fs"
	"github.com/xeptore/beater/spotify/session"
	"github.com/xeptore/beater/spotify/types"
)

var (
	ErrLoginRequired             = errors.New("login required")
	ErrDownloadInProgress        = errors.New("download in progress")
	ErrNotATrack                 = errors.New("link does not refer to a track")
	ErrCredentialsRequired       = auth.ErrCredentialsRequired
	ErrBadCredentials            = session.ErrBadCredentials
	ErrPartialBatch              = downloader.ErrPartialBatch
	ErrAudioKey                  = downloader.ErrAudioKey
	ErrUnsupportedArtistLinkKind = downloader.ErrUnsupportedArtistLinkKind
)

type Client struct {
	conf        config.Spotify
	storage     *session.Storage
	session     *session.Session
	creds       auth.CredentialsFile
	cache       *cache.Cache
	dl          *downloader.Downloader
	downloadSem chan struct{}
}

func NewClient(conf config.Config, opts ...downloader.Option) (*Client, error) {
	storagePath := conf.Spotify.Session.Storage.Path
	if !filepath.IsAbs(storagePath) {
		storagePath = filepath.Join(conf.CredsDir, storagePath)
	}

	storage, err := session.NewStorage(storagePath)
	if nil != err {
		return nil, fmt.Errorf("create session storage: %v", err)
	}

	s, err := session.New(conf.Spotify.Session, storage)
	if nil != err {
		return nil, errors.Join(fmt.Errorf("create session: %v", err), storage.Close())
	}

	c := cache.New(conf.Spotify.Downloader.Cache)

	return &Client{
		conf:        conf.Spotify,
		storage:     storage,
		session:     s,
		creds:       auth.CredentialsFileFrom(conf.CredsDir),
		cache:       c,
		dl:          downloader.New(fs.DownloadDirFrom(conf.DownloadsDir), conf.Spotify.Downloader, s, c, opts...),
		downloadSem: make(chan struct{}, 1),
	}, nil
}

func (c *Client) Close() error {
	c.cache.Stop()
	if err := c.storage.Close(); nil != err {
		return fmt.Errorf("close session storage: %v", err)
	}

	return nil
}

func (c *Client) AccountTier() types.AccountTier {
	return c.session.AccountTier()
}

func (c *Client) DefaultPreferences() (downloader.Preferences, error) {
	return c.dl.DefaultPreferences()
}

func (c *Client) withConfigured(given auth.Credentials) auth.Credentials {
	if len(given.Username) == 0 {
		given.Username = c.conf.Username
	}

	if len(given.Password) == 0 {
		given.Password = c.conf.Password
	}

	return given
}

// credentials returns the stored credentials, falling back to the configured
// ones. Fallback credentials get stored.
func (c *Client) credentials() (*auth.Credentials, error) {
	creds, err := c.creds.Resolve(c.withConfigured(auth.Credentials{})) //nolint:exhaustruct
	if nil != err {
		return nil, fmt.Errorf("resolve credentials: %w", err)
	}

	return creds, nil
}

// Login replaces any stored session. Complete given or configured
// credentials take precedence over stored ones and are stored once the
// login succeeds.
func (c *Client) Login(ctx context.Context, logger zerolog.Logger, given auth.Credentials) error {
	given = c.withConfigured(given)

	creds := &given
	if !given.Complete() {
		stored, err := c.creds.Read()
		if nil != err {
			if errors.Is(err, os.ErrNotExist) {
				return ErrCredentialsRequired
			}

			return fmt.Errorf("read credentials: %v", err)
		}
		creds = stored
	}

	if err := c.session.Logout(ctx); nil != err {
		return fmt.Errorf("forget previous session: %v", err)
	}

	if err := c.session.Connect(ctx, logger, creds.Username, creds.Password); nil != err {
		return fmt.Errorf("connect session: %w", err)
	}

	if given.Complete() {
		if err := c.creds.Write(given); nil != err {
			logger.Error().Err(err).Msg("Failed to store credentials")
			return fmt.Errorf("store credentials: %v", err)
		}
	}

	return nil
}

// Connect resumes the stored session, logging in with stored credentials
// when it is missing or about to expire.
func (c *Client) Connect(ctx context.Context, logger zerolog.Logger) error {
	if err := c.session.Resume(ctx, logger); nil == err {
		return nil
	} else if !errors.Is(err, session.ErrLoginRequired) {
		return fmt.Errorf("resume session: %w", err)
	}

	creds, err := c.credentials()
	if nil != err {
		if errors.Is(err, auth.ErrCredentialsRequired) {
			return ErrLoginRequired
		}

		return err
	}

	if err := c.session.Connect(ctx, logger, creds.Username, creds.Password); nil != err {
		return fmt.Errorf("connect session: %w", err)
	}

	return nil
}

// Logout forgets both the session token and the stored credentials.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.session.Logout(ctx); nil != err {
		return err
	}

	if err := c.creds.Remove(); nil != err {
		return err
	}

	return nil
}

// TryDownloadLink downloads every track of link. Rate limited and timed out
// attempts are retried, and an expired session is renewed once. Only one
// download runs at a time.
func (c *Client) TryDownloadLink(
	ctx context.Context,
	logger zerolog.Logger,
	link types.Link,
	prefs downloader.Preferences,
) ([]result.Of[downloader.TrackResult], error) {
	select {
	case c.downloadSem <- struct{}{}:
		logger.Debug().Msg("Downloading link")
		defer func() { <-c.downloadSem }()
	default:
		logger.Debug().Msg("Another download in progress")
		return nil, ErrDownloadInProgress
	}

	var (
		results  []result.Of[downloader.TrackResult]
		relogged bool
	)
	err := retry.Do(
		ctx,
		retry.WithMaxRetries(5, retry.NewFibonacci(1*time.Second)),
		func(ctx context.Context) error {
			res, err := c.dl.Download(ctx, logger, link, prefs)
			results = res
			if nil == err {
				return nil
			}

			if errors.Is(err, session.ErrTooManyRequests) || errors.Is(err, context.DeadlineExceeded) {
				logger.Warn().Err(err).Msg("Transient download failure, retrying")
				return retry.RetryableError(err)
			}

			if errors.Is(err, session.ErrUnauthorized) || errors.Is(err, session.ErrLoginRequired) {
				if relogged {
					return ErrLoginRequired
				}
				relogged = true

				if err := c.relogin(ctx, logger); nil != err {
					return err
				}

				return retry.RetryableError(err)
			}

			return err
		},
	)
	if nil != err {
		return results, fmt.Errorf("download link: %w", err)
	}

	return results, nil
}

func (c *Client) relogin(ctx context.Context, logger zerolog.Logger) error {
	logger.Info().Msg("Session expired, logging in again")

	creds, err := c.credentials()
	if nil != err {
		if errors.Is(err, auth.ErrCredentialsRequired) {
			return ErrLoginRequired
		}

		return err
	}

	if err := c.session.Login(ctx, logger, creds.Username, creds.Password); nil != err {
		if errors.Is(err, session.ErrBadCredentials) {
			return ErrLoginRequired
		}

		return fmt.Errorf("login again: %w", err)
	}

	return nil
}

// Lyrics returns the LRC text of a track link.
func (c *Client) Lyrics(ctx context.Context, logger zerolog.Logger, link types.Link) (string, error) {
	if link.Kind != types.ItemKindTrack {
		return "", fmt.Errorf("%w: %s", ErrNotATrack, link.Kind)
	}

	return c.dl.Lyrics(ctx, logger, link.ID)
}
