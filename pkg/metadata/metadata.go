package metadata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"wallgrab/pkg/imaging"
)

// ImageMetadata is the sidecar written next to every saved image
type ImageMetadata struct {
	// Origin
	Source   string `json:"source"`
	Query    string `json:"query"`
	URL      string `json:"url"`
	FinalURL string `json:"final_url,omitempty"`
	ID       string `json:"id,omitempty"`
	Title    string `json:"title,omitempty"`

	// File properties
	FileName string `json:"file_name"`
	FileSize int64  `json:"file_size"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
	Format   string `json:"format,omitempty"`
	Aspect   string `json:"aspect_ratio,omitempty"`

	EXIF *imaging.EXIF `json:"exif,omitempty"`

	DownloadedAt time.Time `json:"downloaded_at"`
}

// SidecarPath returns the metadata path for an image
func SidecarPath(imagePath string) string {
	return imagePath + ".json"
}

// Save writes the metadata to a JSON file
func (m *ImageMetadata) Save(imagePath string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	if err := os.WriteFile(SidecarPath(imagePath), data, 0644); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}

	return nil
}

// Load reads metadata from a JSON file
func Load(imagePath string) (*ImageMetadata, error) {
	data, err := os.ReadFile(SidecarPath(imagePath))
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata file: %w", err)
	}

	var meta ImageMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}

	return &meta, nil
}

// GetAspectRatio returns the aspect ratio as a string
func (m *ImageMetadata) GetAspectRatio() string {
	if m.Width == 0 || m.Height == 0 {
		return "unknown"
	}

	ratio := float64(m.Width) / float64(m.Height)

	// Common wallpaper ratios
	switch {
	case ratio > 2.3 && ratio < 2.4:
		return "21:9"
	case ratio > 1.7 && ratio < 1.8:
		return "16:9"
	case ratio > 1.55 && ratio < 1.65:
		return "16:10"
	case ratio > 1.3 && ratio < 1.4:
		return "4:3"
	case ratio > 0.9 && ratio < 1.1:
		return "1:1"
	case ratio > 0.55 && ratio < 0.57:
		return "9:16"
	case ratio > 0.74 && ratio < 0.76:
		return "3:4"
	default:
		return fmt.Sprintf("%.2f:1", ratio)
	}
}

// MetadataExists checks if a sidecar exists for an image
func MetadataExists(imagePath string) bool {
	_, err := os.Stat(SidecarPath(imagePath))
	return err == nil
}

// CleanOrphanedMetadata removes sidecars whose image is gone. JSON files
// that do not sit next to an image name (e.g. "notes.json") are left alone.
func CleanOrphanedMetadata(directory string) (int, error) {
	removed := 0
	err := filepath.Walk(directory, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(path, ".json") {
			return nil
		}

		imagePath := strings.TrimSuffix(path, ".json")
		if filepath.Ext(imagePath) == "" {
			return nil
		}

		if _, err := os.Stat(imagePath); os.IsNotExist(err) {
			if err := os.Remove(path); err != nil {
				return fmt.Errorf("failed to remove orphaned metadata %s: %w", path, err)
			}
			removed++
		}
		return nil
	})
	return removed, err
}
