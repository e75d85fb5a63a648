// Package fingerprint computes deterministic content digests and pixel
// dimensions for page images. The digest doubles as the dedup key, the
// blocked-hash key, and the page-cache address.
package fingerprint

import (
	"bytes"
	"crypto/md5"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// DigestLength is the fixed length of a page content digest.
const DigestLength = 32

// Digest returns the uppercase hex MD5 fingerprint of data. Equal byte
// sequences always produce equal digests.
func Digest(data []byte) string {
	sum := md5.Sum(data)
	return fmt.Sprintf("%X", sum)
}

// IsValidDigest reports whether value has the shape of a page digest:
// exactly 32 hex characters.
func IsValidDigest(value string) bool {
	if len(value) != DigestLength {
		return false
	}
	for _, r := range value {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

// Probe decodes the image header and returns pixel width and height.
// Probe failure is non-fatal to callers; dimensions simply stay unset.
func Probe(data []byte) (width, height int, err error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("probe image: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}
