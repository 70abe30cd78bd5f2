package imageproc

import (
	"bytes"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngFixture(t *testing.T, width, height int) *bytes.Buffer {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return &buf
}

func TestUserPhoto(t *testing.T) {
	out, err := UserPhoto(pngFixture(t, 800, 600))
	require.NoError(t, err)

	decoded, format, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, avatarSize, decoded.Bounds().Dx())
	assert.Equal(t, avatarSize, decoded.Bounds().Dy())
}

func TestTourImage(t *testing.T) {
	out, err := TourImage(pngFixture(t, 3000, 3000))
	require.NoError(t, err)

	decoded, _, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, tourWidth, decoded.Bounds().Dx())
	assert.Equal(t, tourHeight, decoded.Bounds().Dy())
}

func TestRejectsNonImage(t *testing.T) {
	_, err := UserPhoto(strings.NewReader("definitely not an image"))
	assert.Error(t, err)
}
