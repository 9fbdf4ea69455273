package types

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

// AudioFormat values are ordered by nominal bitrate.
type AudioFormat int

const (
	AudioFormatOggVorbis96 AudioFormat = iota + 1
	AudioFormatOggVorbis160
	AudioFormatOggVorbis320
)

var audioFormats = []AudioFormat{AudioFormatOggVorbis96, AudioFormatOggVorbis160, AudioFormatOggVorbis320}

func (f AudioFormat) String() string {
	switch f {
	case AudioFormatOggVorbis96:
		return "OGG_VORBIS_96"
	case AudioFormatOggVorbis160:
		return "OGG_VORBIS_160"
	case AudioFormatOggVorbis320:
		return "OGG_VORBIS_320"
	}

	return fmt.Sprintf("AudioFormat(%d)", int(f))
}

// Bitrate is the nominal bitrate in kbps, or zero for unknown formats.
func (f AudioFormat) Bitrate() int {
	switch f {
	case AudioFormatOggVorbis96:
		return 96
	case AudioFormatOggVorbis160:
		return 160
	case AudioFormatOggVorbis320:
		return 320
	}

	return 0
}

// ParseAudioFormat accepts either the bitrate ("160") or the format name
// ("OGG_VORBIS_160").
func ParseAudioFormat(s string) (AudioFormat, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	f, ok := lo.Find(audioFormats, func(f AudioFormat) bool {
		return v == f.String() || v == strconv.Itoa(f.Bitrate())
	})
	if !ok {
		return 0, fmt.Errorf("unsupported audio format %q", s)
	}

	return f, nil
}

// FileID is the hex handle of one encoded variant of one track.
type FileID string

// FileVariant holds at most one file per format. It may be empty.
type FileVariant map[AudioFormat]FileID

// Formats returns the available formats in ascending bitrate order.
func (v FileVariant) Formats() []AudioFormat {
	out := lo.Keys(v)
	slices.Sort(out)

	return out
}

const DecryptionKeyLength = 16

type DecryptionKey [DecryptionKeyLength]byte

type AccountTier int

const (
	AccountTierFree AccountTier = iota
	AccountTierPremium
)

func (t AccountTier) String() string {
	if t == AccountTierPremium {
		return "premium"
	}

	return "free"
}

func (t AccountTier) IsPremium() bool {
	return t == AccountTierPremium
}
