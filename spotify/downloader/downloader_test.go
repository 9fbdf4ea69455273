package downloader_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xeptore/beater/cache"
	"github.com/xeptore/beater/config"
	"github.com/xeptore/beater/spotify/decrypt"
	"github.com/xeptore/beater/spotify/downloader"
	"github.com/xeptore/beater/spotify/format"
	"github.com/xeptore/beater/spotify/fs"
	"github.com/xeptore/beater/spotify/lyrics"
	"github.com/xeptore/beater/spotify/session"
	"github.com/xeptore/beater/spotify/types"
)

var testKey = types.DecryptionKey{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}

// encrypt produces a blob that decrypts to content. The header bytes are
// arbitrary since they are discarded.
func encrypt(t *testing.T, content []byte) []byte {
	t.Helper()

	keystream, err := decrypt.Decrypt(testKey, make([]byte, decrypt.HeaderSize+len(content)))
	require.NoError(t, err)

	blob := bytes.Repeat([]byte{0xff}, decrypt.HeaderSize)
	for i, b := range content {
		blob = append(blob, b^keystream[i])
	}

	return blob
}

func oggContent(size int) []byte {
	b := []byte("OggS\x00\x02\x00\x00\x00\x00\x00\x00\x00\x00")
	b = append(b, make([]byte, 14)...)
	b = append(b, []byte("\x01vorbis")...)
	for len(b) < size {
		b = append(b, byte(len(b)%251))
	}

	return b[:size]
}

type cdn struct {
	*httptest.Server
	hits  atomic.Int32
	blobs map[string][]byte

	delay    atomic.Int64
	inFlight atomic.Int32
	peak     atomic.Int32
}

func newCDN(t *testing.T, ranges bool) *cdn {
	t.Helper()

	c := &cdn{blobs: map[string][]byte{}}
	c.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.hits.Add(1)
		n := c.inFlight.Add(1)
		defer c.inFlight.Add(-1)
		for {
			p := c.peak.Load()
			if n <= p || c.peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(time.Duration(c.delay.Load()))

		blob, ok := c.blobs[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		if !ranges {
			_, _ = w.Write(blob)
			return
		}
		http.ServeContent(w, r, "", time.Time{}, bytes.NewReader(blob))
	}))
	t.Cleanup(c.Close)

	return c
}

func (c *cdn) add(path string, blob []byte) string {
	c.blobs[path] = blob
	return c.URL + path
}

type fakeSession struct {
	client    *http.Client
	tier      types.AccountTier
	tracks    map[string]*types.TrackMeta
	albums    map[string][]string
	playlists map[string][]types.Link
	cdnURLs   map[types.FileID][]string
	keyErr    error
	lyrics    map[string][]byte

	keyCalls    atomic.Int32
	lyricsCalls atomic.Int32
}

func newFakeSession(client *http.Client) *fakeSession {
	return &fakeSession{
		client:    client,
		tier:      types.AccountTierFree,
		tracks:    map[string]*types.TrackMeta{},
		albums:    map[string][]string{},
		playlists: map[string][]types.Link{},
		cdnURLs:   map[types.FileID][]string{},
		keyErr:    nil,
		lyrics:    map[string][]byte{},
	}
}

func (s *fakeSession) AccountTier() types.AccountTier { return s.tier }

func (s *fakeSession) TrackMeta(_ context.Context, _ zerolog.Logger, id string) (*types.TrackMeta, error) {
	m, ok := s.tracks[id]
	if !ok {
		return nil, session.ErrNotFound
	}

	return m, nil
}

func (s *fakeSession) AlbumTrackIDs(_ context.Context, _ zerolog.Logger, id string) ([]string, error) {
	ids, ok := s.albums[id]
	if !ok {
		return nil, session.ErrNotFound
	}

	return ids, nil
}

func (s *fakeSession) PlaylistItems(_ context.Context, _ zerolog.Logger, id string) ([]types.Link, error) {
	items, ok := s.playlists[id]
	if !ok {
		return nil, session.ErrNotFound
	}

	return items, nil
}

func (s *fakeSession) ResolveCDN(_ context.Context, _ zerolog.Logger, file types.FileID) ([]string, error) {
	urls, ok := s.cdnURLs[file]
	if !ok {
		return nil, session.ErrNotFound
	}

	return urls, nil
}

func (s *fakeSession) RequestKey(context.Context, zerolog.Logger, string, types.FileID) (types.DecryptionKey, error) {
	s.keyCalls.Add(1)
	if nil != s.keyErr {
		return types.DecryptionKey{}, s.keyErr
	}

	return testKey, nil
}

func (s *fakeSession) LyricsRaw(_ context.Context, _ zerolog.Logger, id string) ([]byte, error) {
	s.lyricsCalls.Add(1)
	b, ok := s.lyrics[id]
	if !ok {
		return nil, session.ErrNotFound
	}

	return b, nil
}

func (s *fakeSession) HTTPClient() *http.Client { return s.client }

type fixture struct {
	cdn     *cdn
	session *fakeSession
	dir     string
	dl      *downloader.Downloader
}

func newFixture(t *testing.T, ranges bool, opts ...func(*config.SpotifyDownloader)) *fixture {
	t.Helper()

	c := newCDN(t, ranges)
	s := newFakeSession(c.Client())
	ca := cache.New(config.DownloaderCache{}) //nolint:exhaustruct
	t.Cleanup(ca.Stop)

	dir := t.TempDir()
	conf := config.SpotifyDownloader{ //nolint:exhaustruct
		Concurrency: config.DownloaderConcurrency{Tracks: 2, CDNChunks: 2},
	}
	for _, opt := range opts {
		opt(&conf)
	}
	dl := downloader.New(
		fs.DownloadDirFrom(dir),
		conf,
		s,
		ca,
		downloader.WithTrackPause(func() time.Duration { return 0 }),
	)

	return &fixture{cdn: c, session: s, dir: dir, dl: dl}
}

// addTrack registers a track with one 160 kbps file served by the CDN.
func (f *fixture) addTrack(t *testing.T, id, title string, content []byte, hasLyrics bool) types.FileID {
	t.Helper()

	fileID := types.FileID("file-" + id)
	f.session.tracks[id] = &types.TrackMeta{
		ID:        id,
		Title:     title,
		Artists:   []string{"Artist"},
		Album:     "Album",
		Duration:  1000,
		Files:     types.FileVariant{types.AudioFormatOggVorbis160: fileID},
		HasLyrics: hasLyrics,
	}
	f.session.cdnURLs[fileID] = []string{"not a url", f.cdn.add("/"+string(fileID), encrypt(t, content))}

	return fileID
}

func prefs(lyrics bool) downloader.Preferences {
	return downloader.Preferences{Format: nil, Lyrics: lyrics}
}

func TestAudioDecryptsAndCaches(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)
	content := oggContent(4096)
	fileID := f.addTrack(t, "t1", "Song", content, false)

	a, err := f.dl.Audio(context.Background(), zerolog.Nop(), "t1", nil)
	require.NoError(t, err)
	assert.Equal(t, content, a.Data)
	assert.Equal(t, fileID, a.FileID)
	assert.Equal(t, types.AudioFormatOggVorbis160, a.Format)

	hits := f.cdn.hits.Load()
	again, err := f.dl.Audio(context.Background(), zerolog.Nop(), "t1", nil)
	require.NoError(t, err)
	assert.Equal(t, a.Data, again.Data)
	assert.Equal(t, hits, f.cdn.hits.Load())
	assert.Equal(t, int32(1), f.session.keyCalls.Load())
}

func TestAudioConcurrentRequestsPopulateOnce(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)
	content := oggContent(2048)
	f.addTrack(t, "t1", "Song", content, false)

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a, err := f.dl.Audio(context.Background(), zerolog.Nop(), "t1", nil)
			assert.NoError(t, err)
			assert.Equal(t, content, a.Data)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), f.session.keyCalls.Load())
	assert.Equal(t, int32(1), f.cdn.hits.Load())
}

func TestAudioRequestedFormatNotFound(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)
	f.addTrack(t, "t1", "Song", oggContent(512), false)

	requested := types.AudioFormatOggVorbis320
	_, err := f.dl.Audio(context.Background(), zerolog.Nop(), "t1", &requested)
	require.ErrorIs(t, err, format.ErrNotFound)
	assert.Contains(t, err.Error(), "OGG_VORBIS_320")
	assert.Contains(t, err.Error(), "[OGG_VORBIS_160]")
	assert.Zero(t, f.cdn.hits.Load())
	assert.Zero(t, f.session.keyCalls.Load())
}

func TestAudioKeyRefused(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)
	f.addTrack(t, "t1", "Song", oggContent(512), false)
	f.session.keyErr = session.ErrAudioKey

	_, err := f.dl.Audio(context.Background(), zerolog.Nop(), "t1", nil)
	require.ErrorIs(t, err, downloader.ErrAudioKey)
	require.ErrorIs(t, err, session.ErrAudioKey)

	_, err = f.dl.Audio(context.Background(), zerolog.Nop(), "t1", nil)
	require.ErrorIs(t, err, downloader.ErrAudioKey)
	assert.Equal(t, int32(2), f.session.keyCalls.Load())
}

func TestAudioCDNResolutionFailed(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)
	fileID := f.addTrack(t, "t1", "Song", oggContent(512), false)

	f.session.cdnURLs[fileID] = []string{"ftp://cdn.example/file"}
	_, err := f.dl.Audio(context.Background(), zerolog.Nop(), "t1", nil)
	require.ErrorIs(t, err, downloader.ErrCDNResolutionFailed)

	delete(f.session.cdnURLs, fileID)
	_, err = f.dl.Audio(context.Background(), zerolog.Nop(), "t1", nil)
	require.ErrorIs(t, err, downloader.ErrCDNResolutionFailed)
	require.ErrorIs(t, err, session.ErrNotFound)
}

func TestAudioFetchFailed(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)
	fileID := f.addTrack(t, "t1", "Song", oggContent(512), false)
	f.session.cdnURLs[fileID] = []string{f.cdn.URL + "/missing"}

	_, err := f.dl.Audio(context.Background(), zerolog.Nop(), "t1", nil)
	require.ErrorIs(t, err, downloader.ErrFetchFailed)
}

func TestAudioBlobShorterThanHeader(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)
	fileID := f.addTrack(t, "t1", "Song", nil, false)
	f.session.cdnURLs[fileID] = []string{f.cdn.add("/short", make([]byte, decrypt.HeaderSize-1))}

	_, err := f.dl.Audio(context.Background(), zerolog.Nop(), "t1", nil)
	require.ErrorIs(t, err, decrypt.ErrBlobTooShort)
}

func TestAudioFetchesLargeFilesInChunks(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)
	content := oggContent(2*1024*1024 + 1234)
	f.addTrack(t, "t1", "Song", content, false)

	a, err := f.dl.Audio(context.Background(), zerolog.Nop(), "t1", nil)
	require.NoError(t, err)
	assert.Equal(t, content, a.Data)
	assert.Equal(t, int32(3), f.cdn.hits.Load())
}

func TestAudioWithoutRangeSupport(t *testing.T) {
	t.Parallel()

	f := newFixture(t, false)
	content := oggContent(2*1024*1024 + 10)
	f.addTrack(t, "t1", "Song", content, false)

	a, err := f.dl.Audio(context.Background(), zerolog.Nop(), "t1", nil)
	require.NoError(t, err)
	assert.Equal(t, content, a.Data)
	assert.Equal(t, int32(1), f.cdn.hits.Load())
}

func TestAudioRejectsOversizedContentRange(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)
	fileID := f.addTrack(t, "t1", "Song", oggContent(512), false)

	huge := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Range", "bytes 0-1048575/4611686018427387904")
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write(make([]byte, 1024))
	}))
	t.Cleanup(huge.Close)
	f.session.cdnURLs[fileID] = []string{huge.URL + "/file"}

	require.NotPanics(t, func() {
		_, err := f.dl.Audio(context.Background(), zerolog.Nop(), "t1", nil)
		require.ErrorIs(t, err, downloader.ErrFetchFailed)
		assert.Contains(t, err.Error(), "exceeds")
	})
}

func TestAudioRejectsFilesAboveConfiguredMaximum(t *testing.T) {
	t.Parallel()

	for _, ranges := range []bool{true, false} {
		t.Run(fmt.Sprintf("ranges=%t", ranges), func(t *testing.T) {
			t.Parallel()

			f := newFixture(t, ranges, func(c *config.SpotifyDownloader) { c.MaxFileSizeMiB = 1 })
			f.addTrack(t, "small", "Small", oggContent(4096), false)
			f.addTrack(t, "big", "Big", oggContent(1024*1024+1), false)

			_, err := f.dl.Audio(context.Background(), zerolog.Nop(), "small", nil)
			require.NoError(t, err)

			_, err = f.dl.Audio(context.Background(), zerolog.Nop(), "big", nil)
			require.ErrorIs(t, err, downloader.ErrFetchFailed)
		})
	}
}

func TestDownloadTrackWritesAudioAndLyrics(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)
	content := oggContent(1024)
	f.addTrack(t, "t1", "Song", content, true)
	f.session.lyrics["t1"] = []byte(`{"lyrics":{"kind":"LINE","lines":[{"time":65000,"words":[{"string":"hello"},{"string":"world"}]}]}}`)

	results, err := f.dl.Download(context.Background(), zerolog.Nop(), types.Link{Kind: types.ItemKindTrack, ID: "t1"}, prefs(true))
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0].Unwrap()
	assert.Equal(t, filepath.Join(f.dir, "Artist - Song [t1].ogg"), r.Path)
	assert.True(t, r.Lyrics)
	assert.False(t, r.Skipped)

	audio, err := os.ReadFile(r.Path)
	require.NoError(t, err)
	assert.Equal(t, content, audio)

	lrc, err := os.ReadFile(filepath.Join(f.dir, "Artist - Song [t1].lrc"))
	require.NoError(t, err)
	assert.Equal(t, "[01:05]hello\n[01:05]world", string(lrc))

	info, err := fs.DownloadDirFrom(f.dir).Track("Artist - Song [t1]").InfoFile.Read()
	require.NoError(t, err)
	assert.Equal(t, "OGG_VORBIS_160", info.Format)
	assert.Equal(t, ".ogg", info.Ext)
}

func TestDownloadTrackWithoutLyricsFlagSkipsLyricsRequest(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)
	f.addTrack(t, "t1", "Song", oggContent(1024), false)

	results, err := f.dl.Download(context.Background(), zerolog.Nop(), types.Link{Kind: types.ItemKindTrack, ID: "t1"}, prefs(true))
	require.NoError(t, err)
	assert.False(t, results[0].Unwrap().Lyrics)
	assert.Zero(t, f.session.lyricsCalls.Load())

	_, err = os.Stat(filepath.Join(f.dir, "Artist - Song [t1].lrc"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestDownloadTrackLyricsDisabled(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)
	f.addTrack(t, "t1", "Song", oggContent(1024), true)

	_, err := f.dl.Download(context.Background(), zerolog.Nop(), types.Link{Kind: types.ItemKindTrack, ID: "t1"}, prefs(false))
	require.NoError(t, err)
	assert.Zero(t, f.session.lyricsCalls.Load())
}

func TestDownloadTrackMissingLyricsIsNotAFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)
	f.addTrack(t, "t1", "Song", oggContent(1024), true)

	results, err := f.dl.Download(context.Background(), zerolog.Nop(), types.Link{Kind: types.ItemKindTrack, ID: "t1"}, prefs(true))
	require.NoError(t, err)
	assert.False(t, results[0].Unwrap().Lyrics)
	assert.Equal(t, int32(1), f.session.lyricsCalls.Load())
}

func TestDownloadTrackFailureWritesNothing(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)
	f.addTrack(t, "t1", "Song", oggContent(1024), true)
	f.session.lyrics["t1"] = []byte(`{"lyrics":{"kind":"LINE","lines":[]}}`)
	f.session.keyErr = session.ErrAudioKey

	results, err := f.dl.Download(context.Background(), zerolog.Nop(), types.Link{Kind: types.ItemKindTrack, ID: "t1"}, prefs(true))
	require.ErrorIs(t, err, downloader.ErrAudioKey)
	require.Len(t, results, 1)

	var trackErr *downloader.TrackError
	require.ErrorAs(t, results[0].Err(), &trackErr)
	assert.Equal(t, "t1", trackErr.TrackID)

	entries, err := os.ReadDir(f.dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDownloadTrackMalformedLyricsFailsTrack(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)
	f.addTrack(t, "t1", "Song", oggContent(1024), true)
	f.session.lyrics["t1"] = []byte(`{"lyrics":`)

	_, err := f.dl.Download(context.Background(), zerolog.Nop(), types.Link{Kind: types.ItemKindTrack, ID: "t1"}, prefs(true))
	require.ErrorIs(t, err, lyrics.ErrParse)

	entries, err := os.ReadDir(f.dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDownloadSkipsExistingTrack(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)
	f.addTrack(t, "t1", "Song", oggContent(1024), false)
	link := types.Link{Kind: types.ItemKindTrack, ID: "t1"}

	_, err := f.dl.Download(context.Background(), zerolog.Nop(), link, prefs(true))
	require.NoError(t, err)
	hits := f.cdn.hits.Load()

	results, err := f.dl.Download(context.Background(), zerolog.Nop(), link, prefs(true))
	require.NoError(t, err)
	r := results[0].Unwrap()
	assert.True(t, r.Skipped)
	assert.Equal(t, types.AudioFormatOggVorbis160, r.Format)
	assert.Equal(t, filepath.Join(f.dir, "Artist - Song [t1].ogg"), r.Path)
	assert.Equal(t, hits, f.cdn.hits.Load())
	assert.Equal(t, int32(1), f.session.keyCalls.Load())
}

func TestDownloadAlbumContinuesAfterFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)
	f.addTrack(t, "t1", "One", oggContent(1024), false)
	broken := f.addTrack(t, "t2", "Two", oggContent(1024), false)
	f.addTrack(t, "t3", "Three", oggContent(1024), false)
	delete(f.session.cdnURLs, broken)
	f.session.albums["a1"] = []string{"t1", "t2", "t3"}

	results, err := f.dl.Download(context.Background(), zerolog.Nop(), types.Link{Kind: types.ItemKindAlbum, ID: "a1"}, prefs(true))
	require.ErrorIs(t, err, downloader.ErrPartialBatch)
	require.ErrorIs(t, err, downloader.ErrCDNResolutionFailed)
	require.Len(t, results, 3)

	require.NoError(t, results[0].Err())
	require.Error(t, results[1].Err())
	require.NoError(t, results[2].Err())
	assert.Equal(t, "Three", results[2].Unwrap().Title)

	for _, name := range []string{"Artist - One [t1].ogg", "Artist - Three [t3].ogg"} {
		_, err := os.Stat(filepath.Join(f.dir, name))
		require.NoError(t, err)
	}
	_, err = os.Stat(filepath.Join(f.dir, "Artist - Two [t2].ogg"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestDownloadAlbumLimitsConcurrentTracks(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)
	f.cdn.delay.Store(int64(20 * time.Millisecond))

	ids := []string{"t1", "t2", "t3", "t4", "t5", "t6"}
	for _, id := range ids {
		f.addTrack(t, id, "Song "+id, oggContent(512), false)
	}
	f.session.albums["a1"] = ids

	results, err := f.dl.Download(context.Background(), zerolog.Nop(), types.Link{Kind: types.ItemKindAlbum, ID: "a1"}, prefs(false))
	require.NoError(t, err)
	require.Len(t, results, len(ids))
	for i, r := range results {
		tr, err := r.Get()
		require.NoError(t, err)
		assert.Equal(t, ids[i], tr.TrackID)
	}
	assert.Equal(t, int32(len(ids)), f.cdn.hits.Load())
	assert.LessOrEqual(t, f.cdn.peak.Load(), int32(2))
}

func TestDownloadAlbumTracksSharingTitleKeepSeparateFiles(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)
	first := oggContent(1024)
	second := oggContent(2048)
	f.addTrack(t, "a", "Intro", first, false)
	f.addTrack(t, "b", "Intro", second, false)
	f.session.albums["album"] = []string{"a", "b"}
	link := types.Link{Kind: types.ItemKindAlbum, ID: "album"}

	results, err := f.dl.Download(context.Background(), zerolog.Nop(), link, prefs(true))
	require.NoError(t, err)
	require.Len(t, results, 2)

	a, b := results[0].Unwrap(), results[1].Unwrap()
	assert.NotEqual(t, a.Path, b.Path)
	assert.False(t, a.Skipped)
	assert.False(t, b.Skipped)

	got, err := os.ReadFile(a.Path)
	require.NoError(t, err)
	assert.Equal(t, first, got)
	got, err = os.ReadFile(b.Path)
	require.NoError(t, err)
	assert.Equal(t, second, got)

	results, err = f.dl.Download(context.Background(), zerolog.Nop(), link, prefs(true))
	require.NoError(t, err)
	for _, r := range results {
		assert.True(t, r.Unwrap().Skipped)
	}
	assert.Equal(t, "file-b", string(results[1].Unwrap().FileID))
}

func TestDownloadDoesNotSkipAnotherTracksFiles(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)
	content := oggContent(1024)
	f.addTrack(t, "t1", "Song", content, false)

	meta := f.session.tracks["t1"]
	stale := fs.DownloadDirFrom(f.dir).Track(meta.OutputName())
	require.NoError(t, stale.InfoFile.Write(types.StoredTrack{ID: "someone-else"})) //nolint:exhaustruct

	results, err := f.dl.Download(context.Background(), zerolog.Nop(), types.Link{Kind: types.ItemKindTrack, ID: "t1"}, prefs(true))
	require.NoError(t, err)
	r := results[0].Unwrap()
	assert.False(t, r.Skipped)

	info, err := stale.InfoFile.Read()
	require.NoError(t, err)
	assert.Equal(t, "t1", info.ID)
}

func TestDownloadPlaylistSkipsNonTrackItems(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)
	f.addTrack(t, "t1", "One", oggContent(1024), false)
	f.session.playlists["p1"] = []types.Link{
		{Kind: types.ItemKindOther, ID: "episode"},
		{Kind: types.ItemKindTrack, ID: "t1"},
	}

	results, err := f.dl.Download(context.Background(), zerolog.Nop(), types.Link{Kind: types.ItemKindPlaylist, ID: "p1"}, prefs(true))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "t1", results[0].Unwrap().TrackID)
}

func TestDownloadUnsupportedKinds(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)

	_, err := f.dl.Download(context.Background(), zerolog.Nop(), types.Link{Kind: types.ItemKindArtist, ID: "x"}, prefs(true))
	require.ErrorIs(t, err, downloader.ErrUnsupportedArtistLinkKind)

	_, err = f.dl.Download(context.Background(), zerolog.Nop(), types.Link{Kind: types.ItemKindOther, ID: "x"}, prefs(true))
	require.ErrorIs(t, err, downloader.ErrUnsupportedLinkKind)
}

func TestLyrics(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)
	f.addTrack(t, "with", "With", nil, true)
	f.addTrack(t, "without", "Without", nil, false)
	f.session.lyrics["with"] = []byte(`{"lyrics":{"kind":"LINE","lines":[{"time":1500,"words":[{"string":"hi"}]}]}}`)

	lrc, err := f.dl.Lyrics(context.Background(), zerolog.Nop(), "with")
	require.NoError(t, err)
	assert.Equal(t, "[00:01]hi", lrc)

	_, err = f.dl.Lyrics(context.Background(), zerolog.Nop(), "without")
	require.ErrorIs(t, err, lyrics.ErrNotFound)
	assert.Equal(t, int32(1), f.session.lyricsCalls.Load())
}

func TestDefaultPreferences(t *testing.T) {
	t.Parallel()

	lyricsOff := false
	dl := downloader.New("", config.SpotifyDownloader{Format: "320", Lyrics: &lyricsOff}, nil, nil) //nolint:exhaustruct
	p, err := dl.DefaultPreferences()
	require.NoError(t, err)
	require.NotNil(t, p.Format)
	assert.Equal(t, types.AudioFormatOggVorbis320, *p.Format)
	assert.False(t, p.Lyrics)

	dl = downloader.New("", config.SpotifyDownloader{}, nil, nil) //nolint:exhaustruct
	p, err = dl.DefaultPreferences()
	require.NoError(t, err)
	assert.Nil(t, p.Format)
	assert.True(t, p.Lyrics)
}

func TestTrackErrorUnwraps(t *testing.T) {
	t.Parallel()

	inner := errors.New("boom")
	err := error(&downloader.TrackError{TrackID: "t", Err: inner})
	require.ErrorIs(t, err, inner)
	assert.Equal(t, "track t: boom", err.Error())
}
