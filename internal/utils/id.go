package utils

import (
	"crypto/rand"
	"encoding/hex"
	"math/big"
	"strconv"
	"time"
)

const tagAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// TagLength is the number of characters in a disambiguator tag.
const TagLength = 4

// NewID returns a best-effort unique identifier.
func NewID() string {
	const size = 12

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err == nil {
		return hex.EncodeToString(buf)
	}

	// Fallback to timestamp if crypto/rand is unavailable.
	return strconv.FormatInt(time.Now().UnixNano(), 10)
}

// NewTag returns a random upper-case base36 disambiguator of TagLength characters.
func NewTag() string {
	out := make([]byte, TagLength)
	limit := big.NewInt(int64(len(tagAlphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			// Fallback keeps the tag well-formed; collisions are retried by the caller.
			out[i] = tagAlphabet[time.Now().UnixNano()%int64(len(tagAlphabet))]
			continue
		}
		out[i] = tagAlphabet[n.Int64()]
	}
	return string(out)
}
