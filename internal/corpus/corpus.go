package corpus

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Image is one corpus member: the filename used as the image id across
// runs, plus where the bytes come from.
type Image struct {
	// Name is the bare filename, the stable image id.
	Name string
	// Path is the local file path; empty for remote images.
	Path string
	// URL is the remote location; empty for local images.
	URL string
}

// imageExtensions are the file types a scan run will upload.
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// IsImageFile reports whether a filename has a supported image extension.
func IsImageFile(name string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(name))]
}

// FromDir lists the image files directly inside dir, sorted by name so a
// run processes the corpus in a stable order. Subdirectories are not
// descended; a corpus directory is flat.
func FromDir(dir string) ([]Image, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}

	var images []Image
	for _, entry := range entries {
		if entry.IsDir() || !IsImageFile(entry.Name()) {
			continue
		}
		images = append(images, Image{
			Name: entry.Name(),
			Path: filepath.Join(dir, entry.Name()),
		})
	}
	sort.Slice(images, func(i, j int) bool { return images[i].Name < images[j].Name })
	return images, nil
}
