// Package blob stores uploaded files in object storage.
package blob

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"unicode"

	"github.com/gabriel-vasile/mimetype"
)

var (
	// ErrNotConfigured is returned by the disabled store.
	ErrNotConfigured = errors.New("blob: object storage not configured")
	// ErrNotFound is returned when an object key does not exist.
	ErrNotFound = errors.New("blob: object not found")
)

// SniffLen is how many leading bytes DetectType needs.
const SniffLen = 3072

// Allowed upload types.
const (
	TypePDF  = "application/pdf"
	TypePNG  = "image/png"
	TypeJPEG = "image/jpeg"
	TypeTIFF = "image/tiff"
	TypeText = "text/plain"
)

var allowedTypes = []string{TypePDF, TypePNG, TypeJPEG, TypeTIFF, TypeText}

// Object describes a stored file.
type Object struct {
	Key         string
	Size        int64
	ContentType string
}

// Store persists and retrieves file content.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, Object, error)
	Delete(ctx context.Context, key string) error
}

// DetectType sniffs content and returns the canonical MIME type when it is
// one of the accepted upload types.
func DetectType(head []byte) (string, bool) {
	if len(head) > SniffLen {
		head = head[:SniffLen]
	}
	mt := mimetype.Detect(head)
	for _, allowed := range allowedTypes {
		if mt.Is(allowed) {
			return allowed, true
		}
	}
	return mt.String(), false
}

// DocumentKey builds the object key documents/<owner>/<id>/<name>.
func DocumentKey(ownerID, documentID, filename string) string {
	return path.Join("documents", ownerID, documentID, SafeName(filename))
}

// SafeName reduces a client-supplied file name to a single path segment.
func SafeName(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), ".")
	if out == "" {
		return "upload"
	}
	return out
}

// Disabled is used when no object storage is configured.
type Disabled struct{}

func (Disabled) Put(context.Context, string, io.Reader, int64, string) error {
	return ErrNotConfigured
}

func (Disabled) Get(context.Context, string) (io.ReadCloser, Object, error) {
	return nil, Object{}, ErrNotConfigured
}

func (Disabled) Delete(context.Context, string) error {
	return ErrNotConfigured
}
