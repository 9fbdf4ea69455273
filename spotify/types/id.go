package types

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

const (
	base62Alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	base62IDLength = 22
	gidLength      = 16
)

var ErrInvalidID = errors.New("invalid item id")

// GIDHex converts a base62 item id to the 32 characters hex form used by
// metadata endpoints.
func GIDHex(id string) (string, error) {
	if len(id) != base62IDLength {
		return "", fmt.Errorf("%w: expected %d characters, got %d", ErrInvalidID, base62IDLength, len(id))
	}

	n := new(big.Int)
	base := big.NewInt(62)
	for _, c := range id {
		i := strings.IndexRune(base62Alphabet, c)
		if i < 0 {
			return "", fmt.Errorf("%w: unexpected character %q", ErrInvalidID, c)
		}
		n.Mul(n, base)
		n.Add(n, big.NewInt(int64(i)))
	}

	b := n.Bytes()
	if len(b) > gidLength {
		return "", fmt.Errorf("%w: value overflows 128 bits", ErrInvalidID)
	}

	out := make([]byte, gidLength)
	copy(out[gidLength-len(b):], b)

	return hex.EncodeToString(out), nil
}

// IDFromGIDHex is the inverse of GIDHex.
func IDFromGIDHex(gid string) (string, error) {
	b, err := hex.DecodeString(gid)
	if nil != err {
		return "", fmt.Errorf("%w: %v", ErrInvalidID, err)
	}
	if len(b) != gidLength {
		return "", fmt.Errorf("%w: expected %d bytes gid, got %d", ErrInvalidID, gidLength, len(b))
	}

	var (
		n    = new(big.Int).SetBytes(b)
		base = big.NewInt(62)
		mod  = new(big.Int)
		out  = make([]byte, base62IDLength)
	)
	for i := base62IDLength - 1; i >= 0; i-- {
		n.DivMod(n, base, mod)
		out[i] = base62Alphabet[mod.Int64()]
	}

	return string(out), nil
}
