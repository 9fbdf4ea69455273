package lyrics

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/xeptore/beater/spotify/session"
	"github.com/xeptore/beater/spotify/types"
)

var (
	ErrNotFound = errors.New("lyrics not found")
	ErrParse    = errors.New("malformed lyrics payload")
)

// Source returns the raw lyrics payload of a track.
type Source interface {
	LyricsRaw(ctx context.Context, logger zerolog.Logger, trackID string) ([]byte, error)
}

// Fetch retrieves and parses the synced lyrics of a track.
func Fetch(ctx context.Context, logger zerolog.Logger, src Source, trackID string) (*types.LyricsDocument, error) {
	raw, err := src.LyricsRaw(ctx, logger, trackID)
	if nil != err {
		if errors.Is(err, session.ErrNotFound) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("fetch lyrics: %w", err)
	}

	doc, err := Parse(raw)
	if nil != err {
		if errors.Is(err, ErrParse) {
			logger.Error().Err(err).Bytes("payload", raw).Msg("Failed to parse lyrics payload")
		}

		return nil, err
	}

	if len(doc.TrackID) == 0 {
		doc.TrackID = trackID
	}

	return doc, nil
}

type payload struct {
	Lyrics *struct {
		Provider string `json:"provider"`
		Kind     string `json:"kind"`
		TrackID  string `json:"trackId"`
		Lines    []struct {
			Time  uint32 `json:"time"`
			Words []struct {
				String string `json:"string"`
			} `json:"words"`
		} `json:"lines"`
	} `json:"lyrics"`
}

// Parse decodes a lyrics payload. An empty payload, a JSON null, or a null
// lyrics field is reported as ErrNotFound. Any other document without a
// lyrics field is malformed.
func Parse(raw []byte) (*types.LyricsDocument, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil, ErrNotFound
	}

	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("%w: invalid json", ErrParse)
	}

	root := gjson.ParseBytes(raw)
	if root.Type == gjson.Null {
		return nil, ErrNotFound
	}

	if !root.IsObject() {
		return nil, fmt.Errorf("%w: expected an object, got %s", ErrParse, root.Type)
	}

	switch l := root.Get("lyrics"); {
	case !l.Exists():
		return nil, fmt.Errorf("%w: missing lyrics field", ErrParse)
	case l.Type == gjson.Null:
		return nil, ErrNotFound
	}

	var p payload
	if err := json.Unmarshal(raw, &p); nil != err {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	doc := &types.LyricsDocument{
		Provider: p.Lyrics.Provider,
		Kind:     parseKind(p.Lyrics.Kind),
		RawKind:  p.Lyrics.Kind,
		TrackID:  p.Lyrics.TrackID,
		Lines:    make([]types.LyricLine, len(p.Lyrics.Lines)),
	}
	for i, line := range p.Lyrics.Lines {
		words := make([]string, len(line.Words))
		for j, w := range line.Words {
			words[j] = w.String
		}
		doc.Lines[i] = types.LyricLine{TimeMS: line.Time, Words: words}
	}

	return doc, nil
}

func parseKind(s string) types.LyricsKind {
	switch s {
	case "LINE":
		return types.LyricsKindLine
	default:
		return types.LyricsKindUnknown
	}
}
