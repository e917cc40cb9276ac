// Package ocr turns uploaded files into plain text.
package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/otiai10/gosseract/v2"
	"go.uber.org/zap"
)

var (
	// ErrUnsupportedType is returned for content types that carry no text.
	ErrUnsupportedType = errors.New("ocr: unsupported content type")
	// ErrNoText is returned when a file yields no readable text.
	ErrNoText = errors.New("ocr: no text found")
)

// ImageReader recognises text in raster images.
type ImageReader interface {
	ReadImage(ctx context.Context, data []byte) (string, error)
}

// Reader dispatches on content type.
type Reader struct {
	images ImageReader
	log    *zap.Logger
}

// New returns a Reader that uses tesseract with the given languages.
func New(languages []string, log *zap.Logger) *Reader {
	return NewWithImageReader(&Tesseract{Languages: languages}, log)
}

func NewWithImageReader(images ImageReader, log *zap.Logger) *Reader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reader{images: images, log: log}
}

// Text returns the text content of data. Images go through OCR, PDFs through
// their text layer and plain text is decoded as UTF-8.
func (r *Reader) Text(ctx context.Context, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	mediaType := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))

	var (
		text string
		err  error
	)
	switch {
	case mediaType == "text/plain":
		text = plainText(data)
	case mediaType == "application/pdf":
		text, err = pdfText(data)
	case strings.HasPrefix(mediaType, "image/"):
		if r.images == nil {
			return "", fmt.Errorf("%w: %s", ErrUnsupportedType, mediaType)
		}
		text, err = r.images.ReadImage(ctx, data)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, contentType)
	}
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrNoText
	}
	r.log.Debug("text extracted", zap.String("content_type", mediaType), zap.Int("chars", utf8.RuneCountInString(text)))
	return text, nil
}

func plainText(data []byte) string {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if utf8.Valid(data) {
		return string(data)
	}
	return strings.ToValidUTF8(string(data), " ")
}

func pdfText(data []byte) (text string, err error) {
	// The pdf package panics on some malformed inputs.
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("read pdf: %v", rec)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return buf.String(), nil
}

// Tesseract reads images with a fresh gosseract client per call.
type Tesseract struct {
	Languages []string
}

func (t *Tesseract) ReadImage(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	client := gosseract.NewClient()
	defer client.Close()

	languages := t.Languages
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	if err := client.SetLanguage(languages...); err != nil {
		return "", fmt.Errorf("tesseract language: %w", err)
	}
	if err := client.SetImageFromBytes(data); err != nil {
		return "", fmt.Errorf("tesseract image: %w", err)
	}
	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("tesseract: %w", err)
	}
	return text, nil
}
