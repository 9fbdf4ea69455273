package fs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/goccy/go-json"

	"github.com/xeptore/beater/spotify/types"
)

const DefaultAudioExt = ".ogg"

type DownloadDir string

func DownloadDirFrom(d string) DownloadDir {
	return DownloadDir(d)
}

func (dir DownloadDir) Track(name string) Track {
	base := filepath.Join(dir.path(), name)

	return Track{
		Base:     base,
		Lyrics:   LyricsFile{Path: base + ".lrc"},
		InfoFile: InfoFile[types.StoredTrack]{Path: base + ".json"},
	}
}

func (dir DownloadDir) path() string {
	return string(dir)
}

// Track is the set of files a downloaded track is stored as. The info file is
// written last and marks the download as complete.
type Track struct {
	Base     string
	Lyrics   LyricsFile
	InfoFile InfoFile[types.StoredTrack]
}

// Stored returns the info of a completed download of the track with the
// given id. It returns nil when nothing, or another track, is stored under
// these paths.
func (t Track) Stored(id string) (*types.StoredTrack, error) {
	exists, err := fileExists(t.InfoFile.Path)
	if nil != err {
		return nil, err
	}

	if !exists {
		return nil, nil //nolint:nilnil
	}

	info, err := t.InfoFile.Read()
	if nil != err {
		return nil, err
	}

	if info.ID != id {
		return nil, nil //nolint:nilnil
	}

	return info, nil
}

// WriteAudio stores the decrypted audio with an extension matching its
// container and returns the path it was written to.
func (t Track) WriteAudio(b []byte) (string, error) {
	p := t.Base + AudioExt(b)
	if err := writeFile(p, b); nil != err {
		return "", fmt.Errorf("write audio file: %w", err)
	}

	return p, nil
}

// Remove deletes every file of the track, ignoring missing ones.
func (t Track) Remove() error {
	var errs []error
	for _, ext := range []string{DefaultAudioExt, ".oga", ".mp3", ".flac"} {
		errs = append(errs, removeFile(t.Base+ext))
	}
	errs = append(errs, removeFile(t.Lyrics.Path), removeFile(t.InfoFile.Path))

	if err := errors.Join(errs...); nil != err {
		return fmt.Errorf("remove track files: %v", err)
	}

	return nil
}

// AudioExt sniffs the container of b. Unrecognized content gets the Ogg
// extension since that is what the service serves.
func AudioExt(b []byte) string {
	detected := mimetype.Detect(b)
	for m := detected; nil != m; m = m.Parent() {
		if m.Is("application/ogg") {
			return DefaultAudioExt
		}
	}

	for _, mime := range []string{"audio/mpeg", "audio/flac"} {
		if detected.Is(mime) {
			return detected.Extension()
		}
	}

	return DefaultAudioExt
}

type LyricsFile struct {
	Path string
}

func (f LyricsFile) Write(lrc string) error {
	if err := writeFile(f.Path, []byte(lrc)); nil != err {
		return fmt.Errorf("write lyrics file: %w", err)
	}

	return nil
}

type InfoFile[T any] struct {
	Path string
}

func (p InfoFile[T]) Read() (t *T, err error) {
	f, err := os.OpenFile(p.Path, os.O_RDONLY, 0o0600)
	if nil != err {
		return nil, fmt.Errorf("open info file for read: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); nil != closeErr {
			err = errors.Join(err, fmt.Errorf("close info file: %v", closeErr))
		}
	}()

	var out T
	if err := json.NewDecoder(f).Decode(&out); nil != err {
		return nil, fmt.Errorf("decode info file contents: %v", err)
	}

	return &out, nil
}

func (p InfoFile[T]) Write(v T) error {
	b, err := json.Marshal(v)
	if nil != err {
		return fmt.Errorf("encode info file contents: %v", err)
	}

	if err := writeFile(p.Path, b); nil != err {
		return fmt.Errorf("write info file: %w", err)
	}

	return nil
}

func fileExists(path string) (bool, error) {
	if _, err := os.Stat(path); nil != err {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}

		return false, fmt.Errorf("stat file: %v", err)
	}

	return true, nil
}

func removeFile(path string) error {
	if err := os.Remove(path); nil != err && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	return nil
}

// writeFile writes b next to path under a temporary name and renames it into
// place once synced. Readers never observe a partially written file.
func writeFile(path string, b []byte) (err error) {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.part")
	if nil != err {
		return fmt.Errorf("create temporary file: %v", err)
	}
	defer func() {
		if nil != err {
			if closeErr := f.Close(); nil != closeErr && !errors.Is(closeErr, os.ErrClosed) {
				err = errors.Join(err, fmt.Errorf("close temporary file: %v", closeErr))
			}
			if removeErr := removeFile(f.Name()); nil != removeErr {
				err = errors.Join(err, fmt.Errorf("remove incomplete file: %v", removeErr))
			}
		}
	}()

	if _, err := f.Write(b); nil != err {
		return fmt.Errorf("write temporary file: %v", err)
	}

	if err := f.Sync(); nil != err {
		return fmt.Errorf("sync temporary file: %v", err)
	}

	if err := f.Close(); nil != err {
		return fmt.Errorf("close temporary file: %v", err)
	}

	if err := os.Chmod(f.Name(), 0o644); nil != err {
		return fmt.Errorf("chmod temporary file: %v", err)
	}

	if err := os.Rename(f.Name(), path); nil != err {
		return fmt.Errorf("rename temporary file: %v", err)
	}

	return nil
}
