package service

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	return img
}

func TestRenderPNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testImage()))

	images, err := NewPageRenderer(zap.NewNop()).Render("receipt.png", buf.Bytes())
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, "image/png", images[0].MIMEType)
	assert.Equal(t, buf.Bytes(), images[0].Data)
}

func TestRenderJPEGWithWrongExtension(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, testImage(), nil))

	images, err := NewPageRenderer(zap.NewNop()).Render("receipt.png", buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", images[0].MIMEType)
}

func TestRenderRejectsUnknownFiles(t *testing.T) {
	r := NewPageRenderer(zap.NewNop())

	_, err := r.Render("notes.txt", []byte("hello world"))
	assert.True(t, errors.Is(err, ErrUnsupportedFile))

	_, err = r.Render("empty.png", nil)
	assert.True(t, errors.Is(err, ErrUnsupportedFile))
}
