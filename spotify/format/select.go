package format

import (
	"errors"
	"fmt"

	"github.com/xeptore/beater/spotify/types"
)

var ErrNotFound = errors.New("file format not found")

type NotFoundError struct {
	// Requested is nil when the format was picked automatically.
	Requested *types.AudioFormat
	Available []types.AudioFormat
}

func (e *NotFoundError) Error() string {
	if nil == e.Requested {
		return fmt.Sprintf("no file format is available, the available file formats are %v", e.Available)
	}

	return fmt.Sprintf(
		"a file with the %s file format was not found, the available file formats are %v",
		e.Requested,
		e.Available,
	)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// Select picks the variant to download. An explicitly requested format is
// never substituted. Otherwise premium accounts get the highest bitrate and
// free accounts get 160 kbps, falling back to the lowest available.
func Select(
	available types.FileVariant,
	requested *types.AudioFormat,
	premium bool,
) (types.AudioFormat, types.FileID, error) {
	formats := available.Formats()

	if nil != requested {
		if id, ok := available[*requested]; ok {
			return *requested, id, nil
		}

		return 0, "", &NotFoundError{Requested: requested, Available: formats}
	}

	if len(formats) == 0 {
		return 0, "", &NotFoundError{Requested: nil, Available: formats}
	}

	if premium {
		f := formats[len(formats)-1]
		return f, available[f], nil
	}

	if id, ok := available[types.AudioFormatOggVorbis160]; ok {
		return types.AudioFormatOggVorbis160, id, nil
	}

	f := formats[0]

	return f, available[f], nil
}
