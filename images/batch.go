package images

import (
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// File is one decoded image from a directory batch.
type File struct {
	// Path is the path the image was loaded from.
	Path string
	// Image is the decoded raster image.
	Image image.Image
}

// LoadDirectory decodes every supported image file in a directory, in
// lexical filename order. Subdirectories and files with unsupported
// extensions are skipped; a file that fails to decode aborts the batch.
func LoadDirectory(dir string) ([]File, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read directory %s", dir)
	}

	var out []File
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".jpg", ".jpeg", ".png", ".webp":
		default:
			continue
		}

		path := filepath.Join(dir, entry.Name())
		img, err := Load(path)
		if err != nil {
			return nil, err
		}
		out = append(out, File{Path: path, Image: img})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Path < out[j].Path
	})
	return out, nil
}
