// pkg/crypto/secret.go

package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"io"
	"os"

	cerr "github.com/cockroachdb/errors"
)

const (
	// keyBytes yields a 128-hex-character encryption key.
	keyBytes = 64

	// MinKeyHexLength is the floor below which a key is rejected as too weak.
	MinKeyHexLength = 64
)

// GenerateEncryptionKey produces a high-entropy hex key for the application's
// security configuration. crypto/rand is the primary source; on failure it
// falls back to reading the kernel entropy device directly.
func GenerateEncryptionKey() (string, error) {
	buf := make([]byte, keyBytes)
	if _, err := rand.Read(buf); err != nil {
		if ferr := readURandom(buf); ferr != nil {
			return "", cerr.Wrap(cerr.CombineErrors(err, ferr), "no usable entropy source")
		}
	}
	return hex.EncodeToString(buf), nil
}

// ValidateKey rejects keys below the entropy floor.
func ValidateKey(key string) error {
	if len(key) < MinKeyHexLength {
		return cerr.Newf("encryption key too short: %d hex chars, need at least %d", len(key), MinKeyHexLength)
	}
	if _, err := hex.DecodeString(key); err != nil {
		return cerr.Wrap(err, "encryption key is not hex")
	}
	return nil
}

func readURandom(buf []byte) error {
	f, err := os.Open("/dev/urandom")
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.ReadFull(f, buf)
	return err
}
