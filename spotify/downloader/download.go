package downloader

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/xeptore/beater/cache"
	"github.com/xeptore/beater/config"
	"github.com/xeptore/beater/ratelimit"
	"github.com/xeptore/beater/result"
	"github.com/xeptore/beater/spotify/fs"
	"github.com/xeptore/beater/spotify/types"
)

var (
	ErrCDNResolutionFailed       = errors.New("cdn resolution failed")
	ErrFetchFailed               = errors.New("cdn fetch failed")
	ErrAudioKey                  = errors.New("decryption key was refused, try a lower quality")
	ErrPartialBatch              = errors.New("some tracks failed to download")
	ErrUnsupportedArtistLinkKind = errors.New("artist link kind is not supported")
	ErrUnsupportedLinkKind       = errors.New("link kind is not supported")
)

// Session is the subset of the service session the downloader needs.
type Session interface {
	AccountTier() types.AccountTier
	TrackMeta(ctx context.Context, logger zerolog.Logger, id string) (*types.TrackMeta, error)
	AlbumTrackIDs(ctx context.Context, logger zerolog.Logger, id string) ([]string, error)
	PlaylistItems(ctx context.Context, logger zerolog.Logger, id string) ([]types.Link, error)
	ResolveCDN(ctx context.Context, logger zerolog.Logger, file types.FileID) ([]string, error)
	RequestKey(ctx context.Context, logger zerolog.Logger, trackID string, file types.FileID) (types.DecryptionKey, error)
	LyricsRaw(ctx context.Context, logger zerolog.Logger, trackID string) ([]byte, error)
	HTTPClient() *http.Client
}

type Downloader struct {
	dir     fs.DownloadDir
	conf    config.SpotifyDownloader
	session Session
	cache   *cache.Cache
	pause   func() time.Duration
}

type Option func(*Downloader)

// WithTrackPause replaces the random pause taken between tracks of a batch.
func WithTrackPause(f func() time.Duration) Option {
	return func(d *Downloader) {
		d.pause = f
	}
}

func New(
	dir fs.DownloadDir,
	conf config.SpotifyDownloader,
	session Session,
	cache *cache.Cache,
	opts ...Option,
) *Downloader {
	d := &Downloader{
		dir:     dir,
		conf:    conf,
		session: session,
		cache:   cache,
		pause:   ratelimit.TrackDownloadSleepMS,
	}
	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Preferences tune a single download request.
type Preferences struct {
	// Format is nil to pick by account tier.
	Format *types.AudioFormat
	Lyrics bool
}

// DefaultPreferences derives preferences from the downloader config.
func (d *Downloader) DefaultPreferences() (Preferences, error) {
	prefs := Preferences{Format: nil, Lyrics: d.conf.LyricsEnabled()}
	if len(d.conf.Format) > 0 {
		f, err := types.ParseAudioFormat(d.conf.Format)
		if nil != err {
			return prefs, err
		}
		prefs.Format = &f
	}

	return prefs, nil
}

type TrackResult struct {
	TrackID string
	Title   string
	Artists []string
	Format  types.AudioFormat
	FileID  types.FileID
	Path    string
	Lyrics  bool
	// Skipped is set when the track was already downloaded.
	Skipped bool
}

// TrackError is the failure of a single track of a download request.
type TrackError struct {
	TrackID string
	Err     error
}

func (e *TrackError) Error() string {
	return fmt.Sprintf("track %s: %v", e.TrackID, e.Err)
}

func (e *TrackError) Unwrap() error {
	return e.Err
}

// Download fetches every track the link refers to. Album and playlist
// tracks are all attempted; when any of them fails the returned error
// matches ErrPartialBatch and each failed track's error.
func (d *Downloader) Download(
	ctx context.Context,
	logger zerolog.Logger,
	link types.Link,
	prefs Preferences,
) ([]result.Of[TrackResult], error) {
	logger = logger.With().Str("link_kind", link.Kind.String()).Str("link_id", link.ID).Logger()

	switch k := link.Kind; k {
	case types.ItemKindTrack:
		r, err := d.track(ctx, logger.With().Str("track_id", link.ID).Logger(), link.ID, prefs)
		if nil != err {
			err = &TrackError{TrackID: link.ID, Err: err}
			return []result.Of[TrackResult]{result.Err[TrackResult](err)}, err
		}

		return []result.Of[TrackResult]{result.Ok(r)}, nil
	case types.ItemKindAlbum:
		return d.album(ctx, logger, link.ID, prefs)
	case types.ItemKindPlaylist:
		return d.playlist(ctx, logger, link.ID, prefs)
	case types.ItemKindArtist:
		return nil, ErrUnsupportedArtistLinkKind
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLinkKind, k)
	}
}
