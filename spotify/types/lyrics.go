package types

type LyricsKind int

const (
	// LyricsKindUnknown holds any kind the service reports that is not modeled.
	LyricsKindUnknown LyricsKind = iota
	LyricsKindLine
)

type LyricsDocument struct {
	Provider string
	Kind     LyricsKind
	// RawKind is the kind as reported by the service.
	RawKind string
	TrackID string
	Lines   []LyricLine
}

type LyricLine struct {
	TimeMS uint32
	Words  []string
}
