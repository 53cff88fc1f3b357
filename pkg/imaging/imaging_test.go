package imaging

import (
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 128, 255})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestExtensionFor(t *testing.T) {
	tests := []struct {
		contentType, url, want string
	}{
		{"image/jpeg", "https://x/a", "jpg"},
		{"image/PNG; charset=binary", "https://x/a.jpg", "png"},
		{"image/webp", "", "webp"},
		{"application/octet-stream", "https://i.redd.it/abc.jpeg", "jpg"},
		{"image/x-unknown", "https://x/photo.gif?size=large", "gif"},
		{"image/x-unknown", "https://source.unsplash.com/1920x1080/?car,1", "jpg"},
		{"", "", "jpg"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtensionFor(tt.contentType, tt.url), "%s %s", tt.contentType, tt.url)
	}
}

func TestIsImageContentType(t *testing.T) {
	assert.True(t, IsImageContentType("image/jpeg"))
	assert.True(t, IsImageContentType(" Image/PNG"))
	assert.False(t, IsImageContentType("text/html; charset=utf-8"))
	assert.False(t, IsImageContentType("application/json"))
	assert.False(t, IsImageContentType(""))
}

func TestInspect(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.png")
	writePNG(t, path, 64, 36)

	info, err := Inspect(path)
	require.NoError(t, err)
	assert.Equal(t, 64, info.Width)
	assert.Equal(t, 36, info.Height)
	assert.Equal(t, "png", info.Format)

	bad := filepath.Join(t.TempDir(), "bad.jpg")
	require.NoError(t, os.WriteFile(bad, []byte("<html>nope</html>"), 0644))
	_, err = Inspect(bad)
	assert.Error(t, err)
}

func TestReadEXIFWithoutData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.png")
	writePNG(t, path, 8, 8)
	_, err := ReadEXIF(path)
	assert.Error(t, err)
}

func TestThumbnail(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "reddit_cars_1.png")
	writePNG(t, src, 200, 100)

	dst := ThumbnailPath(src)
	assert.Equal(t, filepath.Join(dir, "thumbnails", "reddit_cars_1.jpg"), dst)

	require.NoError(t, Thumbnail(src, dst, 50))

	f, err := os.Open(dst)
	require.NoError(t, err)
	defer f.Close()
	cfg, err := jpeg.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Width)
	assert.Equal(t, 25, cfg.Height)
}

func TestThumbnailSmallImageNotUpscaled(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "small.png")
	writePNG(t, src, 20, 10)

	dst := filepath.Join(dir, "thumb.jpg")
	require.NoError(t, Thumbnail(src, dst, 320))

	info, err := Inspect(dst)
	require.NoError(t, err)
	assert.Equal(t, 20, info.Width)
}

func TestRotate(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 2))
	img.Set(0, 0, color.RGBA{255, 0, 0, 255})

	r90 := rotate(img, 90)
	assert.Equal(t, image.Rect(0, 0, 2, 4), r90.Bounds())
	assert.Equal(t, color.RGBA{255, 0, 0, 255}, r90.At(1, 0))

	r180 := rotate(img, 180)
	assert.Equal(t, color.RGBA{255, 0, 0, 255}, r180.At(3, 1))

	assert.Equal(t, img, orient(img, 1))
}
