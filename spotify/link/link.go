package link

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/xeptore/beater/spotify/types"
)

const (
	uriScheme     = "spotify:"
	webPlayerHost = "open.spotify.com"
)

var (
	ErrMalformedURI    = errors.New("malformed uri")
	ErrInvalidArgument = errors.New("invalid argument")
)

// Parse turns a native URI (spotify:track:ID) or a web player URL
// (https://open.spotify.com/track/ID) into a link. It never touches the
// network.
func Parse(raw string) (types.Link, error) {
	if strings.HasPrefix(raw, uriScheme) {
		return parseURI(raw)
	}

	return parseURL(raw)
}

func parseURI(raw string) (types.Link, error) {
	parts := strings.Split(raw, ":")
	if len(parts) < 3 {
		return types.Link{}, fmt.Errorf("%w: expected at least 3 segments in %q", ErrMalformedURI, raw)
	}

	if len(parts[2]) == 0 {
		return types.Link{}, fmt.Errorf("%w: empty id in %q", ErrMalformedURI, raw)
	}

	return types.Link{Kind: types.ItemKindFrom(parts[1]), ID: parts[2]}, nil
}

func parseURL(raw string) (types.Link, error) {
	u, err := url.Parse(raw)
	if nil != err {
		return types.Link{}, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return types.Link{}, fmt.Errorf("%w: %q is neither a spotify uri nor an http url", ErrInvalidArgument, raw)
	}

	if u.Host != webPlayerHost {
		return types.Link{}, fmt.Errorf("%w: unexpected host %q", ErrInvalidArgument, u.Host)
	}

	parts := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })
	if len(parts) < 2 {
		return types.Link{}, fmt.Errorf("%w: expected kind and id path segments in %q", ErrInvalidArgument, raw)
	}

	return types.Link{Kind: types.ItemKindFrom(parts[0]), ID: parts[1]}, nil
}
