package utils

import (
	"crypto/md5"
	"encoding/hex"
)

// ContentMD5 computes the MD5 hex digest of raw content bytes.
// Used for content-addressed staging filenames: byte-identical downloads
// from different URLs intentionally collide onto the same file.
func ContentMD5(content []byte) string {
	sum := md5.Sum(content)
	return hex.EncodeToString(sum[:])
}

// ShortContentMD5 returns the first n hex characters of the content digest
func ShortContentMD5(content []byte, n int) string {
	digest := ContentMD5(content)
	if n > 0 && n < len(digest) {
		return digest[:n]
	}
	return digest
}
