package mediaindex

import (
	"context"
	"fmt"
	"image"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

var mimeByExtension = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".heic": "image/heic",
	".webp": "image/webp",
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".mkv":  "video/x-matroska",
}

// FSSource lists media files beneath a library root on the local filesystem.
type FSSource struct {
	root       string
	extensions map[string]struct{}
}

// NewFSSource builds a filesystem source rooted at root that reports files
// whose lowercase extension appears in extensions.
func NewFSSource(root string, extensions []string) *FSSource {
	allowed := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		allowed[ext] = struct{}{}
	}
	return &FSSource{root: root, extensions: allowed}
}

// List walks the library root and returns a record per matching file.
// Unreadable subtrees abort the walk; the scan stage treats the index as
// authoritative and must not diff against a partial listing.
func (s *FSSource) List(ctx context.Context) ([]Record, error) {
	var records []Record
	err := filepath.WalkDir(s.root, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if entry.IsDir() {
			if strings.HasPrefix(entry.Name(), ".") && path != s.root {
				return filepath.SkipDir
			}
			return nil
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if _, ok := s.extensions[ext]; !ok {
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", path, err)
		}

		record := Record{
			URI:         "file://" + path,
			Path:        path,
			DisplayName: entry.Name(),
			SizeBytes:   info.Size(),
			MimeType:    mimeByExtension[ext],
			Album:       albumFor(s.root, path),
			AddedAt:     info.ModTime().UTC(),
		}
		if strings.HasPrefix(record.MimeType, "image/") {
			record.Width, record.Height = imageDimensions(path)
		}
		records = append(records, record)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk library root: %w", err)
	}
	return records, nil
}

// albumFor derives an album name from the file's directory relative to the
// library root. Files directly under the root have no album.
func albumFor(root, path string) string {
	rel, err := filepath.Rel(root, filepath.Dir(path))
	if err != nil || rel == "." {
		return ""
	}
	return filepath.ToSlash(rel)
}

// imageDimensions decodes just the image header. Dimensions are best-effort
// metadata; a corrupt or unsupported file yields zeros rather than an error.
func imageDimensions(path string) (int, int) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}
