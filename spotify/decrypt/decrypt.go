package decrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"

	"github.com/xeptore/beater/must"
	"github.com/xeptore/beater/spotify/types"
)

// HeaderSize is the length of the identification header that precedes the
// audio container in every decrypted file.
const HeaderSize = 0xa7

var ErrBlobTooShort = errors.New("encrypted blob is shorter than the file header")

var audioIV = [aes.BlockSize]byte{
	0x72, 0xe0, 0x67, 0xfb, 0xdd, 0xcb, 0xcf, 0x77,
	0xeb, 0xe8, 0xbc, 0x64, 0x3f, 0x63, 0x0d, 0x93,
}

// Decrypt runs AES-128-CTR over the whole blob and returns the plaintext
// without the leading header.
func Decrypt(key types.DecryptionKey, blob []byte) ([]byte, error) {
	if len(blob) < HeaderSize {
		return nil, fmt.Errorf("%w: got %d bytes, need at least %d", ErrBlobTooShort, len(blob), HeaderSize)
	}

	block, err := aes.NewCipher(key[:])
	must.NilErr(err)

	plain := make([]byte, len(blob))
	cipher.NewCTR(block, audioIV[:]).XORKeyStream(plain, blob)

	return plain[HeaderSize:], nil
}
