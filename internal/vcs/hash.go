package vcs

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// HashFile returns the lowercase hex SHA-256 of the file at path.
// It never returns a partial digest: any open or read failure is an ErrHash error.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: opening %s: %w", ErrHash, path, err)
	}
	defer f.Close()

	return HashReader(f)
}

// HashReader returns the lowercase hex SHA-256 of everything read from r.
func HashReader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("%w: reading content: %w", ErrHash, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
