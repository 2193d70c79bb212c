package upload

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSecureFilenameShape(t *testing.T) {
	name, err := SecureFilename("Q3 invoice (final).PDF")
	if err != nil {
		t.Fatal(err)
	}
	pattern := regexp.MustCompile(`^\d{13}-[0-9a-f]{32}-[a-zA-Z0-9._-]+\.pdf$`)
	if !pattern.MatchString(name) {
		t.Errorf("unexpected filename shape: %q", name)
	}
	if strings.ContainsAny(name, "() ") {
		t.Errorf("unsafe characters survived sanitization: %q", name)
	}
}

func TestSecureFilenameUnique(t *testing.T) {
	a, _ := SecureFilename("x.pdf")
	b, _ := SecureFilename("x.pdf")
	if a == b {
		t.Error("two generated names collided")
	}
}

func TestValidateContent(t *testing.T) {
	dir := t.TempDir()
	cases := []struct {
		name    string
		ext     string
		content []byte
		ok      bool
	}{
		{"valid pdf", ".pdf", []byte("%PDF-1.7 rest of file"), true},
		{"valid xlsx", ".xlsx", []byte{0x50, 0x4B, 0x03, 0x04, 1, 2, 3, 4}, true},
		{"valid xls", ".xls", []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1, 9}, true},
		{"valid png", ".png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, true},
		{"valid gif", ".gif", []byte("GIF89a......"), true},
		{"xlsx renamed to pdf", ".pdf", []byte{0x50, 0x4B, 0x03, 0x04, 1, 2, 3, 4}, false},
		{"text as png", ".png", []byte("hello world how are you"), false},
		{"valid csv", ".csv", []byte("name,price\nCanon,100\n"), true},
		{"csv with nul", ".csv", []byte("a,b\n\x00\n"), false},
		{"csv without delimiter", ".csv", []byte("just a plain sentence\n"), false},
		{"empty csv", ".csv", nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeFile(t, dir, "f"+tc.ext, tc.content)
			err := ValidateContent(path, tc.ext)
			if tc.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tc.ok && !errors.Is(err, ErrContentMismatch) {
				t.Errorf("expected ErrContentMismatch, got %v", err)
			}
		})
	}
}
