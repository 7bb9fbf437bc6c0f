package document

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"time"
)

// Fingerprint hashes the document and selection files. Two equal
// fingerprints mean an export would produce identical artifacts.
func (s *FileSource) Fingerprint() (string, error) {
	h := sha256.New()
	for _, path := range []string{s.DocumentPath, s.SelectionPath} {
		if path == "" {
			continue
		}
		f, err := os.Open(path)
		if errors.Is(err, os.ErrNotExist) {
			io.WriteString(h, "absent:"+path)
			continue
		}
		if err != nil {
			return "", err
		}
		_, err = io.Copy(h, f)
		f.Close()
		if err != nil {
			return "", err
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Watch polls the fingerprint every interval and calls onChange whenever it
// differs from the previous poll. It returns when ctx is done.
func (s *FileSource) Watch(ctx context.Context, interval time.Duration, onChange func()) {
	last, _ := s.Fingerprint()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fp, err := s.Fingerprint()
			if err != nil {
				continue
			}
			if fp != last {
				last = fp
				onChange()
			}
		}
	}
}
