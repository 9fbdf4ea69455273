package types

type ItemKind int

func (k ItemKind) String() string {
	switch k {
	case ItemKindTrack:
		return "track"
	case ItemKindAlbum:
		return "album"
	case ItemKindArtist:
		return "artist"
	case ItemKindPlaylist:
		return "playlist"
	}

	return "other"
}

const (
	ItemKindOther ItemKind = iota
	ItemKindTrack
	ItemKindAlbum
	ItemKindArtist
	ItemKindPlaylist
)

func ItemKindFrom(s string) ItemKind {
	switch s {
	case "track":
		return ItemKindTrack
	case "album":
		return ItemKindAlbum
	case "artist":
		return ItemKindArtist
	case "playlist":
		return ItemKindPlaylist
	default:
		return ItemKindOther
	}
}

// Link identifies one item of the service. ID is kept exactly as given,
// including its case.
type Link struct {
	Kind ItemKind
	ID   string
}

func (l Link) URI() string {
	return "spotify:" + l.Kind.String() + ":" + l.ID
}
