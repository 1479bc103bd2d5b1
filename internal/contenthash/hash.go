// Package contenthash derives stable cache keys from file contents.
//
// A key depends only on the bytes of the file: the same audio copied to a new
// name, directory or timestamp produces the same key, so the analysis cache
// never measures identical content twice.
package contenthash

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"

	"github.com/zeebo/blake3"

	"normalizer/internal/config"
)

// Key is the lowercase hex digest of a file's content.
type Key string

func (k Key) String() string { return string(k) }

// Short returns an abbreviated key for log lines and tables.
func (k Key) Short() string {
	if len(k) <= 12 {
		return string(k)
	}
	return string(k[:12])
}

// Hasher streams files through a digest algorithm.
type Hasher struct {
	algorithm string
	newHash   func() hash.Hash
}

// New returns a Hasher for the named algorithm (blake3 or md5).
func New(algorithm string) (*Hasher, error) {
	switch algorithm {
	case config.HashBlake3, "":
		return &Hasher{algorithm: config.HashBlake3, newHash: func() hash.Hash { return blake3.New() }}, nil
	case config.HashMD5:
		return &Hasher{algorithm: config.HashMD5, newHash: md5.New}, nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm %q", algorithm)
	}
}

// Algorithm returns the digest name.
func (h *Hasher) Algorithm() string {
	return h.algorithm
}

// File hashes the full content of path.
func (h *Hasher) File(path string) (Key, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return h.Reader(f)
}

// Reader hashes everything readable from r.
func (h *Hasher) Reader(r io.Reader) (Key, error) {
	digest := h.newHash()
	if _, err := io.Copy(digest, r); err != nil {
		return "", fmt.Errorf("read content: %w", err)
	}
	return Key(hex.EncodeToString(digest.Sum(nil))), nil
}

// Bytes hashes an in-memory buffer.
func (h *Hasher) Bytes(data []byte) Key {
	if h.algorithm == config.HashBlake3 {
		sum := blake3.Sum256(data)
		return Key(hex.EncodeToString(sum[:]))
	}
	sum := md5.Sum(data)
	return Key(hex.EncodeToString(sum[:]))
}
