package types

import (
	"regexp"
	"strings"
)

type TrackMeta struct {
	ID        string
	Title     string
	Artists   []string
	Album     string
	Duration  int
	Files     FileVariant
	HasLyrics bool
}

func JoinArtists(artists []string) string {
	return strings.Join(artists, ", ")
}

var unsafeFilenameChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)

// OutputName is the file name, without extension, a downloaded track is
// stored under. The track id is part of it, so tracks sharing artists and
// title never share files.
func (t TrackMeta) OutputName() string {
	name := t.Title
	if len(t.Artists) > 0 {
		name = JoinArtists(t.Artists) + " - " + t.Title
	}

	name = strings.TrimSpace(unsafeFilenameChars.ReplaceAllString(name, "_"))
	id := unsafeFilenameChars.ReplaceAllString(t.ID, "_")
	if name == "" {
		return id
	}

	return name + " [" + id + "]"
}

type StoredTrack struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Artists []string `json:"artists"`
	Album   string   `json:"album"`
	Format  string   `json:"format"`
	FileID  string   `json:"file_id"`
	Ext     string   `json:"ext"`
	Lyrics  bool     `json:"lyrics"`
}
