// Package imaging inspects downloaded images: dimensions, EXIF details and
// JPEG thumbnails.
package imaging

import (
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/nfnt/resize"
	"github.com/rwcarlsen/goexif/exif"
)

var extByType = map[string]string{
	"image/jpeg":  "jpg",
	"image/jpg":   "jpg",
	"image/pjpeg": "jpg",
	"image/png":   "png",
	"image/gif":   "gif",
	"image/webp":  "webp",
	"image/bmp":   "bmp",
	"image/avif":  "avif",
	"image/tiff":  "tiff",
}

var knownExts = map[string]bool{
	"jpg": true, "jpeg": true, "png": true, "gif": true,
	"webp": true, "bmp": true, "avif": true, "tiff": true,
}

// ExtensionFor picks a file extension from the Content-Type, falling back
// to the URL path and finally to "jpg"
func ExtensionFor(contentType, rawURL string) string {
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		if ext, ok := extByType[strings.ToLower(mediaType)]; ok {
			return ext
		}
	}

	if u, err := url.Parse(rawURL); err == nil {
		ext := strings.ToLower(strings.TrimPrefix(path.Ext(u.Path), "."))
		if ext == "jpeg" {
			return "jpg"
		}
		if knownExts[ext] {
			return ext
		}
	}
	return "jpg"
}

// IsImageContentType reports whether a Content-Type header declares an
// image. Case and leading whitespace are ignored.
func IsImageContentType(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "image")
}

// Info is the decoded header of an image file
type Info struct {
	Width  int
	Height int
	Format string
}

// Inspect reads only the image header to get its dimensions
func Inspect(filePath string) (*Info, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image header: %w", err)
	}
	return &Info{Width: cfg.Width, Height: cfg.Height, Format: format}, nil
}

// EXIF holds the camera details worth keeping in a sidecar
type EXIF struct {
	Make        string    `json:"make,omitempty"`
	Model       string    `json:"model,omitempty"`
	TakenAt     time.Time `json:"taken_at,omitempty"`
	Orientation int       `json:"orientation,omitempty"`
}

// ReadEXIF extracts EXIF details from a JPEG. Files without EXIF return an error.
func ReadEXIF(filePath string) (*EXIF, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("no EXIF data: %w", err)
	}

	out := &EXIF{}
	if tag, err := x.Get(exif.Make); err == nil {
		out.Make, _ = tag.StringVal()
	}
	if tag, err := x.Get(exif.Model); err == nil {
		out.Model, _ = tag.StringVal()
	}
	if tag, err := x.Get(exif.Orientation); err == nil {
		out.Orientation, _ = tag.Int(0)
	}
	if t, err := x.DateTime(); err == nil {
		out.TakenAt = t
	}
	out.Make = strings.TrimSpace(out.Make)
	out.Model = strings.TrimSpace(out.Model)
	return out, nil
}

// ThumbnailPath returns where the thumbnail for an image is written
func ThumbnailPath(imagePath string) string {
	dir, name := filepath.Split(imagePath)
	return filepath.Join(dir, "thumbnails", strings.TrimSuffix(name, filepath.Ext(name))+".jpg")
}

// Thumbnail writes a JPEG of the given width, keeping the aspect ratio and
// applying the EXIF orientation
func Thumbnail(src, dst string, width uint) error {
	if width == 0 {
		width = 320
	}

	f, err := os.Open(src)
	if err != nil {
		return err
	}
	img, _, err := image.Decode(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("failed to decode image: %w", err)
	}

	if x, err := ReadEXIF(src); err == nil {
		img = orient(img, x.Orientation)
	}
	if uint(img.Bounds().Dx()) > width {
		img = resize.Resize(width, 0, img, resize.Lanczos3)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create thumbnail directory: %w", err)
	}
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create thumbnail: %w", err)
	}
	if err := jpeg.Encode(out, img, &jpeg.Options{Quality: 85}); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return out.Close()
}

// orient rotates img upright for EXIF orientations 3, 6 and 8; mirrored
// orientations are left alone
func orient(img image.Image, orientation int) image.Image {
	switch orientation {
	case 3:
		return rotate(img, 180)
	case 6:
		return rotate(img, 90)
	case 8:
		return rotate(img, 270)
	default:
		return img
	}
}

// rotate turns img clockwise by 90, 180 or 270 degrees
func rotate(img image.Image, degrees int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	var dst *image.RGBA
	if degrees == 180 {
		dst = image.NewRGBA(image.Rect(0, 0, w, h))
	} else {
		dst = image.NewRGBA(image.Rect(0, 0, h, w))
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := img.At(b.Min.X+x, b.Min.Y+y)
			switch degrees {
			case 90:
				dst.Set(h-1-y, x, c)
			case 180:
				dst.Set(w-1-x, h-1-y, c)
			case 270:
				dst.Set(y, w-1-x, c)
			}
		}
	}
	return dst
}
