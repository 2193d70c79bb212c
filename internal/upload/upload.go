// Package upload stores multipart files under server-generated names and
// validates their content against the declared extension.
package upload

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// ErrExtensionNotAllowed is returned before any bytes are written.
var ErrExtensionNotAllowed = errors.New("file extension not allowed")

// ErrContentMismatch is returned when a stored file's leading bytes do not
// match its declared extension; the file has already been unlinked.
var ErrContentMismatch = errors.New("file content does not match extension")

// InvoiceExtensions is the allowlist for quote-request attachments.
var InvoiceExtensions = []string{".pdf", ".xlsx", ".xls", ".csv", ".png", ".jpg", ".jpeg", ".gif"}

// Magic-byte signatures checked against the first 8 bytes of a stored file.
var signatures = map[string][][]byte{
	".pdf":  {[]byte("%PDF")},
	".xlsx": {{0x50, 0x4B, 0x03, 0x04}},
	".xls":  {{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}}, // OLE CFBF
	".png":  {{0x89, 0x50, 0x4E, 0x47}},
	".jpg":  {{0xFF, 0xD8, 0xFF}},
	".jpeg": {{0xFF, 0xD8, 0xFF}},
	".gif":  {[]byte("GIF87a"), []byte("GIF89a")},
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// Store saves one multipart file under dir with a collision-resistant name
// of the form <unix-ms>-<16 random bytes hex>-<sanitized-original>.<ext>,
// then validates the written content. On any validation failure the file is
// removed before the error is returned.
type Store struct {
	Dir        string
	MaxBytes   int64
	Extensions []string
}

// Save writes the file and returns its path relative to the store root.
func (s *Store) Save(fh *multipart.FileHeader) (string, error) {
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !s.allowed(ext) {
		return "", ErrExtensionNotAllowed
	}
	if s.MaxBytes > 0 && fh.Size > s.MaxBytes {
		return "", fmt.Errorf("file exceeds %d bytes", s.MaxBytes)
	}

	src, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", err
	}
	name, err := SecureFilename(fh.Filename)
	if err != nil {
		return "", err
	}
	path := filepath.Join(s.Dir, name)

	dst, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", err
	}
	_, copyErr := io.Copy(dst, src)
	closeErr := dst.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(path)
		if copyErr != nil {
			return "", copyErr
		}
		return "", closeErr
	}

	if err := ValidateContent(path, ext); err != nil {
		_ = os.Remove(path)
		return "", err
	}
	return path, nil
}

func (s *Store) allowed(ext string) bool {
	for _, e := range s.Extensions {
		if e == ext {
			return true
		}
	}
	return false
}

// SecureFilename builds <unix-ms>-<16 random bytes hex>-<sanitized>.<ext>.
func SecureFilename(original string) (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	ext := strings.ToLower(filepath.Ext(original))
	base := strings.TrimSuffix(filepath.Base(original), filepath.Ext(original))
	base = unsafeChars.ReplaceAllString(base, "_")
	if len(base) > 60 {
		base = base[:60]
	}
	if base == "" {
		base = "file"
	}
	return fmt.Sprintf("%d-%s-%s%s", time.Now().UnixMilli(), hex.EncodeToString(buf), base, ext), nil
}

// ValidateContent checks the stored file's leading bytes against the
// declared extension. CSV has no signature and is validated by heuristics.
func ValidateContent(path, ext string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if ext == ".csv" {
		head := make([]byte, 1024)
		n, err := f.Read(head)
		if err != nil && err != io.EOF {
			return err
		}
		if !validCSV(head[:n]) {
			return ErrContentMismatch
		}
		return nil
	}

	sigs, ok := signatures[ext]
	if !ok {
		return ErrExtensionNotAllowed
	}
	head := make([]byte, 8)
	n, err := f.Read(head)
	if err != nil && err != io.EOF {
		return err
	}
	for _, sig := range sigs {
		if n >= len(sig) && bytes.Equal(head[:len(sig)], sig) {
			return nil
		}
	}
	return ErrContentMismatch
}

// validCSV applies content heuristics to the first KiB: a delimiter, a line
// break, and no NUL bytes.
func validCSV(head []byte) bool {
	if len(head) == 0 {
		return false
	}
	if bytes.IndexByte(head, 0) >= 0 {
		return false
	}
	hasDelimiter := bytes.IndexByte(head, ',') >= 0 || bytes.IndexByte(head, ';') >= 0 || bytes.IndexByte(head, '\t') >= 0
	hasBreak := bytes.IndexByte(head, '\n') >= 0 || bytes.IndexByte(head, '\r') >= 0
	return hasDelimiter && hasBreak
}
