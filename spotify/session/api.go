package session

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/xeptore/beater/spotify/link"
	"github.com/xeptore/beater/spotify/types"
)

// Login exchanges username and password for an access token and stores it.
func (s *Session) Login(ctx context.Context, logger zerolog.Logger, username, password string) error {
	form := make(url.Values, 3)
	form.Add("username", username)
	form.Add("password", password)
	form.Add("device_id", s.conf.DeviceID)

	respBytes, status, err := s.do(ctx, logger, request{
		method:  http.MethodPost,
		url:     s.conf.Endpoints.Login,
		body:    strings.NewReader(form.Encode()),
		headers: map[string]string{"Content-Type": "application/x-www-form-urlencoded"},
		timeout: s.conf.Timeouts.Login.Duration,
		auth:    false,
	})
	if nil != err {
		if status == http.StatusBadRequest || errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrForbidden) {
			return fmt.Errorf("%w: %v", ErrBadCredentials, err)
		}

		return fmt.Errorf("send login request: %w", err)
	}

	var respBody struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
		Product     string `json:"product"`
	}
	if err := json.Unmarshal(respBytes, &respBody); nil != err {
		logger.Error().Err(err).Msg("Failed to decode login response body")
		return fmt.Errorf("%w: decode login response: %v", ErrUnexpectedPayload, err)
	}

	if len(respBody.AccessToken) == 0 {
		return fmt.Errorf("%w: login response has no access token", ErrUnexpectedPayload)
	}

	t := Token{
		AccessToken: respBody.AccessToken,
		Tier:        tierFromProduct(respBody.Product),
		ExpiresAt:   tokenExpiry(respBody.AccessToken, respBody.ExpiresIn, time.Now()),
	}
	s.token.Store(&t)

	if err := s.storage.StoreToken(ctx, t); nil != err {
		logger.Error().Err(err).Msg("Failed to store session token")
		return fmt.Errorf("store session token: %v", err)
	}

	logger.Info().Dict("token", t.ToDict()).Msg("Logged in")

	return nil
}

func (s *Session) apiURL(elems ...string) (string, error) {
	u, err := url.JoinPath(s.conf.Endpoints.API, elems...)
	if nil != err {
		return "", fmt.Errorf("join api url: %v", err)
	}

	return u, nil
}

// TrackMeta resolves display metadata and the encoded file variants of a
// track. Files of formats that are not modeled are ignored.
func (s *Session) TrackMeta(ctx context.Context, logger zerolog.Logger, id string) (*types.TrackMeta, error) {
	gid, err := types.GIDHex(id)
	if nil != err {
		return nil, err
	}

	reqURL, err := s.apiURL("metadata", "4", "track", gid)
	if nil != err {
		return nil, err
	}

	respBytes, _, err := s.do(ctx, logger, request{
		method:  http.MethodGet,
		url:     reqURL,
		timeout: s.conf.Timeouts.GetMetadata.Duration,
		auth:    true,
	})
	if nil != err {
		return nil, fmt.Errorf("get track metadata: %w", err)
	}

	var respBody struct {
		Name   string `json:"name"`
		Artist []struct {
			Name string `json:"name"`
		} `json:"artist"`
		Album struct {
			Name string `json:"name"`
		} `json:"album"`
		Duration int `json:"duration"`
		File     []struct {
			FileID string `json:"file_id"`
			Format string `json:"format"`
		} `json:"file"`
		HasLyrics bool `json:"has_lyrics"`
	}
	if err := json.Unmarshal(respBytes, &respBody); nil != err {
		logger.Error().Err(err).Bytes("response_body", respBytes).Msg("Failed to decode track metadata")
		return nil, fmt.Errorf("%w: decode track metadata: %v", ErrUnexpectedPayload, err)
	}

	files := make(types.FileVariant, len(respBody.File))
	for _, f := range respBody.File {
		format, err := types.ParseAudioFormat(f.Format)
		if nil != err {
			logger.Trace().Str("format", f.Format).Msg("Skipping unsupported file format")
			continue
		}
		files[format] = types.FileID(f.FileID)
	}

	artists := make([]string, len(respBody.Artist))
	for i, a := range respBody.Artist {
		artists[i] = a.Name
	}

	return &types.TrackMeta{
		ID:        id,
		Title:     respBody.Name,
		Artists:   artists,
		Album:     respBody.Album.Name,
		Duration:  respBody.Duration,
		Files:     files,
		HasLyrics: respBody.HasLyrics,
	}, nil
}

// AlbumTrackIDs lists the track ids of an album in disc order.
func (s *Session) AlbumTrackIDs(ctx context.Context, logger zerolog.Logger, id string) ([]string, error) {
	gid, err := types.GIDHex(id)
	if nil != err {
		return nil, err
	}

	reqURL, err := s.apiURL("metadata", "4", "album", gid)
	if nil != err {
		return nil, err
	}

	respBytes, _, err := s.do(ctx, logger, request{
		method:  http.MethodGet,
		url:     reqURL,
		timeout: s.conf.Timeouts.GetMetadata.Duration,
		auth:    true,
	})
	if nil != err {
		return nil, fmt.Errorf("get album metadata: %w", err)
	}

	var respBody struct {
		Disc []struct {
			Track []struct {
				GID string `json:"gid"`
			} `json:"track"`
		} `json:"disc"`
	}
	if err := json.Unmarshal(respBytes, &respBody); nil != err {
		logger.Error().Err(err).Bytes("response_body", respBytes).Msg("Failed to decode album metadata")
		return nil, fmt.Errorf("%w: decode album metadata: %v", ErrUnexpectedPayload, err)
	}

	var ids []string
	for _, disc := range respBody.Disc {
		for _, track := range disc.Track {
			trackID, err := types.IDFromGIDHex(track.GID)
			if nil != err {
				return nil, fmt.Errorf("%w: album track gid: %v", ErrUnexpectedPayload, err)
			}
			ids = append(ids, trackID)
		}
	}

	return ids, nil
}

// PlaylistItems lists the items of a playlist in order. Items may be of any
// kind.
func (s *Session) PlaylistItems(ctx context.Context, logger zerolog.Logger, id string) ([]types.Link, error) {
	reqURL, err := s.apiURL("playlist", "v2", "playlist", id)
	if nil != err {
		return nil, err
	}

	respBytes, _, err := s.do(ctx, logger, request{
		method:  http.MethodGet,
		url:     reqURL,
		timeout: s.conf.Timeouts.GetMetadata.Duration,
		auth:    true,
	})
	if nil != err {
		return nil, fmt.Errorf("get playlist: %w", err)
	}

	var respBody struct {
		Contents struct {
			Items []struct {
				URI string `json:"uri"`
			} `json:"items"`
		} `json:"contents"`
	}
	if err := json.Unmarshal(respBytes, &respBody); nil != err {
		logger.Error().Err(err).Bytes("response_body", respBytes).Msg("Failed to decode playlist")
		return nil, fmt.Errorf("%w: decode playlist: %v", ErrUnexpectedPayload, err)
	}

	links := make([]types.Link, 0, len(respBody.Contents.Items))
	for _, item := range respBody.Contents.Items {
		l, err := link.Parse(item.URI)
		if nil != err {
			logger.Warn().Err(err).Str("uri", item.URI).Msg("Skipping playlist item with unparsable uri")
			continue
		}
		links = append(links, l)
	}

	return links, nil
}

// ResolveCDN returns the signed CDN URLs of a file.
func (s *Session) ResolveCDN(ctx context.Context, logger zerolog.Logger, file types.FileID) ([]string, error) {
	reqURL, err := s.apiURL("storage-resolve", "files", "audio", "interactive", string(file))
	if nil != err {
		return nil, err
	}

	respBytes, _, err := s.do(ctx, logger, request{
		method:  http.MethodGet,
		url:     reqURL + "?alt=json",
		timeout: s.conf.Timeouts.ResolveCDN.Duration,
		auth:    true,
	})
	if nil != err {
		return nil, fmt.Errorf("resolve storage: %w", err)
	}

	var respBody struct {
		Result string   `json:"result"`
		CDNURL []string `json:"cdnurl"`
	}
	if err := json.Unmarshal(respBytes, &respBody); nil != err {
		logger.Error().Err(err).Bytes("response_body", respBytes).Msg("Failed to decode storage resolve response")
		return nil, fmt.Errorf("%w: decode storage resolve response: %v", ErrUnexpectedPayload, err)
	}

	if respBody.Result != "CDN" {
		return nil, fmt.Errorf("%w: storage resolve result %q", ErrUnexpectedPayload, respBody.Result)
	}

	return respBody.CDNURL, nil
}

// RequestKey asks for the decryption key of one file of one track.
func (s *Session) RequestKey(
	ctx context.Context,
	logger zerolog.Logger,
	trackID string,
	file types.FileID,
) (types.DecryptionKey, error) {
	var key types.DecryptionKey

	gid, err := types.GIDHex(trackID)
	if nil != err {
		return key, err
	}

	reqURL, err := url.JoinPath(s.conf.Endpoints.Key, gid, string(file))
	if nil != err {
		return key, fmt.Errorf("join key url: %v", err)
	}

	respBytes, _, err := s.do(ctx, logger, request{
		method:  http.MethodPost,
		url:     reqURL,
		timeout: s.conf.Timeouts.RequestKey.Duration,
		auth:    true,
	})
	if nil != err {
		if errors.Is(err, ErrForbidden) || errors.Is(err, ErrNotFound) {
			return key, fmt.Errorf("%w: %v", ErrAudioKey, err)
		}

		return key, fmt.Errorf("request audio key: %w", err)
	}

	var respBody struct {
		Key string `json:"key"`
	}
	if err := json.Unmarshal(respBytes, &respBody); nil != err {
		return key, fmt.Errorf("%w: decode audio key response: %v", ErrUnexpectedPayload, err)
	}

	raw, err := base64.StdEncoding.DecodeString(respBody.Key)
	if nil != err {
		return key, fmt.Errorf("%w: decode audio key: %v", ErrAudioKey, err)
	}

	if len(raw) != types.DecryptionKeyLength {
		return key, fmt.Errorf("%w: expected %d bytes key, got %d", ErrAudioKey, types.DecryptionKeyLength, len(raw))
	}
	copy(key[:], raw)

	return key, nil
}

// LyricsRaw returns the raw lyrics payload of a track. A track without
// lyrics yields ErrNotFound or an empty payload.
func (s *Session) LyricsRaw(ctx context.Context, logger zerolog.Logger, trackID string) ([]byte, error) {
	reqURL, err := s.apiURL("color-lyrics", "v2", "track", trackID)
	if nil != err {
		return nil, err
	}

	respBytes, status, err := s.do(ctx, logger, request{
		method:  http.MethodGet,
		url:     reqURL + "?format=json",
		timeout: s.conf.Timeouts.GetLyrics.Duration,
		auth:    true,
	})
	if nil != err {
		return nil, fmt.Errorf("get lyrics: %w", err)
	}

	if status == http.StatusNoContent {
		return nil, nil
	}

	return respBytes, nil
}
