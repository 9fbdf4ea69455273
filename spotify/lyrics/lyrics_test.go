package lyrics_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xeptore/beater/spotify/lyrics"
	"github.com/xeptore/beater/spotify/session"
	"github.com/xeptore/beater/spotify/types"
)

func TestToLRC(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		doc      types.LyricsDocument
		expected string
	}{
		{
			name: "words share line timestamp",
			doc: types.LyricsDocument{ //nolint:exhaustruct
				Lines: []types.LyricLine{{TimeMS: 65000, Words: []string{"hello", "world"}}},
			},
			expected: "[01:05]hello\n[01:05]world",
		},
		{
			name: "milliseconds are truncated",
			doc: types.LyricsDocument{ //nolint:exhaustruct
				Lines: []types.LyricLine{
					{TimeMS: 999, Words: []string{"a"}},
					{TimeMS: 59999, Words: []string{"b"}},
					{TimeMS: 6000000, Words: []string{"c"}},
				},
			},
			expected: "[00:00]a\n[00:59]b\n[100:00]c",
		},
		{
			name:     "empty document",
			doc:      types.LyricsDocument{}, //nolint:exhaustruct
			expected: "",
		},
		{
			name: "line without words",
			doc: types.LyricsDocument{ //nolint:exhaustruct
				Lines: []types.LyricLine{{TimeMS: 1000}, {TimeMS: 2000, Words: []string{"x"}}},
			},
			expected: "[00:02]x",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, lyrics.ToLRC(tc.doc))
		})
	}
}

func TestParse(t *testing.T) {
	t.Parallel()

	doc, err := lyrics.Parse([]byte(`{"lyrics":{"provider":"MusixMatch","kind":"LINE","trackId":"abc","lines":[{"time":65000,"words":[{"string":"hello"},{"string":"world"}]}]}}`))
	require.NoError(t, err)
	assert.Equal(t, &types.LyricsDocument{
		Provider: "MusixMatch",
		Kind:     types.LyricsKindLine,
		RawKind:  "LINE",
		TrackID:  "abc",
		Lines:    []types.LyricLine{{TimeMS: 65000, Words: []string{"hello", "world"}}},
	}, doc)
	assert.Equal(t, "[01:05]hello\n[01:05]world", lyrics.ToLRC(*doc))
}

func TestParseUnknownKind(t *testing.T) {
	t.Parallel()

	doc, err := lyrics.Parse([]byte(`{"lyrics":{"kind":"SYLLABLE","lines":[]}}`))
	require.NoError(t, err)
	assert.Equal(t, types.LyricsKindUnknown, doc.Kind)
	assert.Equal(t, "SYLLABLE", doc.RawKind)
}

func TestParseErrors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		payload  string
		expected error
	}{
		{name: "empty", payload: "", expected: lyrics.ErrNotFound},
		{name: "whitespace", payload: " \n", expected: lyrics.ErrNotFound},
		{name: "null document", payload: `null`, expected: lyrics.ErrNotFound},
		{name: "null lyrics", payload: `{"lyrics":null}`, expected: lyrics.ErrNotFound},
		{name: "empty object", payload: `{}`, expected: lyrics.ErrParse},
		{name: "unrelated object", payload: `{"foo":1}`, expected: lyrics.ErrParse},
		{name: "array", payload: `[]`, expected: lyrics.ErrParse},
		{name: "string", payload: `"lyrics"`, expected: lyrics.ErrParse},
		{name: "lyrics of wrong type", payload: `{"lyrics":"la la"}`, expected: lyrics.ErrParse},
		{name: "invalid json", payload: `{"lyrics":`, expected: lyrics.ErrParse},
		{name: "wrong types", payload: `{"lyrics":{"lines":[{"time":"soon"}]}}`, expected: lyrics.ErrParse},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := lyrics.Parse([]byte(tc.payload))
			require.ErrorIs(t, err, tc.expected)
		})
	}
}

type sourceFunc func() ([]byte, error)

func (f sourceFunc) LyricsRaw(context.Context, zerolog.Logger, string) ([]byte, error) {
	return f()
}

func TestFetch(t *testing.T) {
	t.Parallel()

	src := sourceFunc(func() ([]byte, error) {
		return []byte(`{"lyrics":{"kind":"LINE","lines":[{"time":1000,"words":[{"string":"x"}]}]}}`), nil
	})
	doc, err := lyrics.Fetch(context.Background(), zerolog.Nop(), src, "track")
	require.NoError(t, err)
	assert.Equal(t, "track", doc.TrackID)

	src = sourceFunc(func() ([]byte, error) { return nil, session.ErrNotFound })
	_, err = lyrics.Fetch(context.Background(), zerolog.Nop(), src, "track")
	require.ErrorIs(t, err, lyrics.ErrNotFound)

	src = sourceFunc(func() ([]byte, error) { return nil, nil })
	_, err = lyrics.Fetch(context.Background(), zerolog.Nop(), src, "track")
	require.ErrorIs(t, err, lyrics.ErrNotFound)

	upstream := errors.New("boom")
	src = sourceFunc(func() ([]byte, error) { return nil, upstream })
	_, err = lyrics.Fetch(context.Background(), zerolog.Nop(), src, "track")
	require.ErrorIs(t, err, upstream)
	require.NotErrorIs(t, err, lyrics.ErrNotFound)
}
