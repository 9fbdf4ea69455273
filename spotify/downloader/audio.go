package downloader

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/xeptore/beater/cache"
	"github.com/xeptore/beater/spotify/decrypt"
	"github.com/xeptore/beater/spotify/format"
	"github.com/xeptore/beater/spotify/session"
	"github.com/xeptore/beater/spotify/types"
)

// State is a step of a single audio pipeline run.
type State int

const (
	StateResolving State = iota
	StateSelecting
	StateCacheHit
	StateFetching
	StateKeyRequesting
	StateDecrypting
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateResolving:
		return "resolving"
	case StateSelecting:
		return "selecting"
	case StateCacheHit:
		return "cache_hit"
	case StateFetching:
		return "fetching"
	case StateKeyRequesting:
		return "key_requesting"
	case StateDecrypting:
		return "decrypting"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}

	return "unknown"
}

func logState(logger zerolog.Logger, s State) *zerolog.Event {
	lvl := zerolog.DebugLevel
	if s == StateFailed {
		lvl = zerolog.WarnLevel
	}

	return logger.WithLevel(lvl).Str("state", s.String())
}

type Audio struct {
	Meta   *types.TrackMeta
	Format types.AudioFormat
	FileID types.FileID
	// Data is the decrypted container without the file header.
	Data []byte
}

// Audio resolves, fetches and decrypts one track. Decrypted content is
// served from the cache when the selected file was decrypted before.
func (d *Downloader) Audio(
	ctx context.Context,
	logger zerolog.Logger,
	trackID string,
	requested *types.AudioFormat,
) (a *Audio, err error) {
	defer func() {
		if nil != err {
			logState(logger, StateFailed).Err(err).Msg("Audio pipeline failed")
		}
	}()

	logState(logger, StateResolving).Msg("Resolving track metadata")
	meta, err := d.trackMeta(ctx, logger, trackID)
	if nil != err {
		return nil, fmt.Errorf("resolve track metadata: %w", err)
	}

	logState(logger, StateSelecting).Msg("Selecting file format")
	tier := d.session.AccountTier()
	f, fileID, err := format.Select(meta.Files, requested, tier.IsPremium())
	if nil != err {
		return nil, fmt.Errorf("select file format: %w", err)
	}
	logger = logger.With().
		Str("format", f.String()).
		Int("bitrate_kbps", f.Bitrate()).
		Str("file_id", string(fileID)).
		Logger()

	if d.cache.Content.Contains(fileID) {
		logState(logger, StateCacheHit).Msg("Serving decrypted audio from cache")
	}

	data, err := d.cache.Content.Fetch(ctx, fileID, func(ctx context.Context) ([]byte, error) {
		return d.populate(ctx, logger, trackID, fileID)
	})
	if nil != err {
		return nil, err
	}

	logState(logger, StateDone).Int("size", len(data)).Msg("Audio ready")

	return &Audio{Meta: meta, Format: f, FileID: fileID, Data: data}, nil
}

// populate fetches the encrypted file and its key concurrently and decrypts
// once both are available.
func (d *Downloader) populate(
	ctx context.Context,
	logger zerolog.Logger,
	trackID string,
	fileID types.FileID,
) ([]byte, error) {
	var (
		blob      []byte
		key       types.DecryptionKey
		wg, wgctx = errgroup.WithContext(ctx)
	)

	wg.Go(func() (err error) {
		logState(logger, StateFetching).Msg("Fetching encrypted file")
		blob, err = d.fetch(wgctx, logger, fileID)
		return err
	})

	wg.Go(func() (err error) {
		logState(logger, StateKeyRequesting).Msg("Requesting decryption key")
		key, err = d.requestKey(wgctx, logger, trackID, fileID)
		return err
	})

	if err := wg.Wait(); nil != err {
		return nil, err
	}

	logState(logger, StateDecrypting).Int("encrypted_size", len(blob)).Msg("Decrypting file")
	plain, err := decrypt.Decrypt(key, blob)
	if nil != err {
		return nil, fmt.Errorf("decrypt file: %w", err)
	}

	return plain, nil
}

func (d *Downloader) requestKey(
	ctx context.Context,
	logger zerolog.Logger,
	trackID string,
	fileID types.FileID,
) (types.DecryptionKey, error) {
	key, err := d.session.RequestKey(ctx, logger, trackID, fileID)
	if nil != err {
		if errors.Is(err, session.ErrAudioKey) {
			return key, fmt.Errorf("%w: %w", ErrAudioKey, err)
		}

		return key, fmt.Errorf("request decryption key: %w", err)
	}

	return key, nil
}

func (d *Downloader) trackMeta(ctx context.Context, logger zerolog.Logger, id string) (*types.TrackMeta, error) {
	return d.cache.TrackMeta.Fetch(id, cache.DefaultTrackMetaTTL, func() (*types.TrackMeta, error) {
		return d.session.TrackMeta(ctx, logger, id)
	})
}
