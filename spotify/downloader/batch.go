package downloader

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/xeptore/beater/ratelimit"
	"github.com/xeptore/beater/result"
	"github.com/xeptore/beater/spotify/types"
)

func (d *Downloader) album(
	ctx context.Context,
	logger zerolog.Logger,
	id string,
	prefs Preferences,
) ([]result.Of[TrackResult], error) {
	logger.Debug().Msg("Downloading album")

	ids, err := d.session.AlbumTrackIDs(ctx, logger, id)
	if nil != err {
		return nil, fmt.Errorf("get album tracks: %w", err)
	}

	return d.batch(ctx, logger, ids, prefs)
}

func (d *Downloader) playlist(
	ctx context.Context,
	logger zerolog.Logger,
	id string,
	prefs Preferences,
) ([]result.Of[TrackResult], error) {
	logger.Debug().Msg("Downloading playlist")

	items, err := d.session.PlaylistItems(ctx, logger, id)
	if nil != err {
		return nil, fmt.Errorf("get playlist items: %w", err)
	}

	tracks, others := lo.FilterReject(items, func(l types.Link, _ int) bool { return l.Kind == types.ItemKindTrack })
	for _, l := range others {
		logger.Warn().Str("uri", l.URI()).Msg("Skipping playlist item that is not a track")
	}

	return d.batch(ctx, logger, lo.Map(tracks, func(l types.Link, _ int) string { return l.ID }), prefs)
}

// batch runs every track independently. A failed track is logged and the
// rest carry on; failures are reported together once all tracks finished.
func (d *Downloader) batch(
	ctx context.Context,
	logger zerolog.Logger,
	ids []string,
	prefs Preferences,
) ([]result.Of[TrackResult], error) {
	var (
		results = make([]result.Of[TrackResult], len(ids))
		wg      sync.WaitGroup
		slots   = make(chan struct{}, max(1, d.conf.Concurrency.Tracks))
	)

	for i, id := range ids {
		logger := logger.With().Int("track_index", i).Str("track_id", id).Logger()

		slots <- struct{}{}
		wg.Go(func() {
			defer func() { <-slots }()
			results[i] = d.batchTrack(ctx, logger, i, id, prefs)
		})
	}
	wg.Wait()

	errs := lo.FilterMap(results, func(r result.Of[TrackResult], _ int) (error, bool) {
		return r.Err(), nil != r.Err()
	})
	if len(errs) > 0 {
		logger.Warn().Int("failed", len(errs)).Int("total", len(ids)).Msg("Some tracks failed to download")
		return results, errors.Join(append([]error{ErrPartialBatch}, errs...)...)
	}

	logger.Info().Int("total", len(ids)).Msg("All tracks downloaded")

	return results, nil
}

func (d *Downloader) batchTrack(
	ctx context.Context,
	logger zerolog.Logger,
	i int,
	id string,
	prefs Preferences,
) result.Of[TrackResult] {
	if i > 0 {
		if err := ratelimit.Pause(ctx, d.pause()); nil != err {
			return result.Err[TrackResult](&TrackError{TrackID: id, Err: err})
		}
	}

	r, err := d.track(ctx, logger, id, prefs)
	if nil != err {
		logger.Warn().Err(err).Msg("Failed to download track, continuing with the rest")
		return result.Err[TrackResult](&TrackError{TrackID: id, Err: err})
	}

	return result.Ok(r)
}
