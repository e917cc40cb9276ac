package ocr

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeImages struct {
	text  string
	err   error
	calls int
}

func (f *fakeImages) ReadImage(context.Context, []byte) (string, error) {
	f.calls++
	return f.text, f.err
}

func TestPlainText(t *testing.T) {
	r := NewWithImageReader(nil, nil)
	text, err := r.Text(context.Background(), []byte("\xef\xbb\xbf  FIR No. 12/2021  \n"), "text/plain; charset=utf-8")
	require.NoError(t, err)
	assert.Equal(t, "FIR No. 12/2021", text)
}

func TestImagesUseImageReader(t *testing.T) {
	images := &fakeImages{text: "IN THE HIGH COURT OF DELHI"}
	r := NewWithImageReader(images, nil)

	text, err := r.Text(context.Background(), []byte{0x89, 'P', 'N', 'G'}, "image/png")
	require.NoError(t, err)
	assert.Equal(t, "IN THE HIGH COURT OF DELHI", text)
	assert.Equal(t, 1, images.calls)
}

func TestImageReaderError(t *testing.T) {
	r := NewWithImageReader(&fakeImages{err: errors.New("tesseract crashed")}, nil)
	_, err := r.Text(context.Background(), []byte{1}, "image/jpeg")
	assert.EqualError(t, err, "tesseract crashed")
}

func TestEmptyTextIsError(t *testing.T) {
	r := NewWithImageReader(&fakeImages{text: "   \n"}, nil)
	_, err := r.Text(context.Background(), []byte{1}, "image/tiff")
	assert.ErrorIs(t, err, ErrNoText)
}

func TestUnsupportedType(t *testing.T) {
	r := NewWithImageReader(&fakeImages{}, nil)
	_, err := r.Text(context.Background(), []byte("PK"), "application/zip")
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestMalformedPDF(t *testing.T) {
	r := NewWithImageReader(nil, nil)
	_, err := r.Text(context.Background(), []byte("%PDF-1.4 truncated"), "application/pdf")
	assert.Error(t, err)
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := NewWithImageReader(&fakeImages{text: "x"}, nil)
	_, err := r.Text(ctx, []byte("x"), "text/plain")
	assert.ErrorIs(t, err, context.Canceled)
}
