package downloader

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/xeptore/beater/spotify/lyrics"
	"github.com/xeptore/beater/spotify/types"
)

// track downloads a single track and its lyrics. Nothing is written unless
// both succeed, and a missing lyrics document is not a failure.
func (d *Downloader) track(
	ctx context.Context,
	logger zerolog.Logger,
	id string,
	prefs Preferences,
) (_ *TrackResult, err error) {
	meta, err := d.trackMeta(ctx, logger, id)
	if nil != err {
		return nil, fmt.Errorf("resolve track metadata: %w", err)
	}

	trackFs := d.dir.Track(meta.OutputName())
	if stored, err := trackFs.Stored(meta.ID); nil != err {
		logger.Error().Err(err).Msg("Failed to check if track was downloaded")
		return nil, fmt.Errorf("check if track was downloaded: %v", err)
	} else if nil != stored {
		logger.Info().Str("path", trackFs.Base).Msg("Track was already downloaded")
		return skippedTrack(meta, stored, trackFs.Base), nil
	}

	var (
		audio     *Audio
		lrc       string
		wg, wgctx = errgroup.WithContext(ctx)
	)

	wg.Go(func() (err error) {
		audio, err = d.Audio(wgctx, logger, id, prefs.Format)
		return err
	})

	if meta.HasLyrics && prefs.Lyrics {
		wg.Go(func() error {
			doc, err := lyrics.Fetch(wgctx, logger, d.session, id)
			if nil != err {
				if errors.Is(err, lyrics.ErrNotFound) {
					logger.Info().Msg("Track has no lyrics")
					return nil
				}

				return fmt.Errorf("fetch lyrics: %w", err)
			}
			lrc = lyrics.ToLRC(*doc)

			return nil
		})
	} else {
		logger.Debug().Bool("has_lyrics", meta.HasLyrics).Bool("lyrics_enabled", prefs.Lyrics).Msg("Skipping lyrics")
	}

	if err := wg.Wait(); nil != err {
		return nil, err
	}

	defer func() {
		if nil != err {
			if removeErr := trackFs.Remove(); nil != removeErr {
				logger.Error().Err(removeErr).Msg("Failed to remove incomplete track files")
				err = errors.Join(err, removeErr)
			}
		}
	}()

	audioPath, err := trackFs.WriteAudio(audio.Data)
	if nil != err {
		logger.Error().Err(err).Msg("Failed to write track audio file")
		return nil, err
	}

	if len(lrc) > 0 {
		if err := trackFs.Lyrics.Write(lrc); nil != err {
			logger.Error().Err(err).Msg("Failed to write track lyrics file")
			return nil, err
		}
	}

	info := types.StoredTrack{
		ID:      meta.ID,
		Title:   meta.Title,
		Artists: meta.Artists,
		Album:   meta.Album,
		Format:  audio.Format.String(),
		FileID:  string(audio.FileID),
		Ext:     audioPath[len(trackFs.Base):],
		Lyrics:  len(lrc) > 0,
	}
	if err := trackFs.InfoFile.Write(info); nil != err {
		logger.Error().Err(err).Msg("Failed to write track info file")
		return nil, err
	}

	logger.Info().Str("path", audioPath).Str("format", audio.Format.String()).Msg("Track downloaded")

	return &TrackResult{
		TrackID: id,
		Title:   meta.Title,
		Artists: meta.Artists,
		Format:  audio.Format,
		FileID:  audio.FileID,
		Path:    audioPath,
		Lyrics:  len(lrc) > 0,
		Skipped: false,
	}, nil
}

func skippedTrack(meta *types.TrackMeta, info *types.StoredTrack, base string) *TrackResult {
	r := &TrackResult{ //nolint:exhaustruct
		TrackID: meta.ID,
		Title:   meta.Title,
		Artists: meta.Artists,
		FileID:  types.FileID(info.FileID),
		Path:    base + info.Ext,
		Lyrics:  info.Lyrics,
		Skipped: true,
	}

	if f, err := types.ParseAudioFormat(info.Format); nil == err {
		r.Format = f
	}

	return r
}

// Lyrics returns the LRC rendering of a track's lyrics. Tracks flagged as
// having no lyrics yield lyrics.ErrNotFound without a lyrics request.
func (d *Downloader) Lyrics(ctx context.Context, logger zerolog.Logger, trackID string) (string, error) {
	meta, err := d.trackMeta(ctx, logger, trackID)
	if nil != err {
		return "", fmt.Errorf("resolve track metadata: %w", err)
	}

	if !meta.HasLyrics {
		return "", lyrics.ErrNotFound
	}

	doc, err := lyrics.Fetch(ctx, logger, d.session, trackID)
	if nil != err {
		return "", err
	}

	return lyrics.ToLRC(*doc), nil
}
