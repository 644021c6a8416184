package raster

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"
)

// Loader provides thread-safe caching of decoded images to avoid redundant
// disk reads when the same capture is processed more than once (for example
// a detect pass followed by a manual-corner re-warp).
//
// Cached images remain in memory until explicitly removed via Evict() or
// Clear(). Long-running hosts processing many documents should evict after
// each pipeline run.
type Loader struct {
	mu     sync.RWMutex
	images map[string]*Image
}

// NewLoader creates an empty image loader cache, safe for concurrent use.
func NewLoader() *Loader {
	return &Loader{images: make(map[string]*Image)}
}

// Load retrieves an image from the cache or decodes it from disk.
//
// The image is cached using the exact path string provided; relative and
// absolute paths to the same file produce separate entries.
func (l *Loader) Load(path string) (*Image, error) {
	l.mu.RLock()
	if img, ok := l.images[path]; ok {
		l.mu.RUnlock()
		return img, nil
	}
	l.mu.RUnlock()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	decoded, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	img := FromImage(decoded)

	l.mu.Lock()
	l.images[path] = img
	l.mu.Unlock()

	return img, nil
}

// Clear removes all cached images, freeing the associated memory.
func (l *Loader) Clear() {
	l.mu.Lock()
	l.images = make(map[string]*Image)
	l.mu.Unlock()
}

// Evict removes a specific image from the cache by its path.
func (l *Loader) Evict(path string) {
	l.mu.Lock()
	delete(l.images, path)
	l.mu.Unlock()
}

// Info contains metadata about an image file on disk.
type Info struct {
	// Width is the image width in pixels.
	Width int `json:"width"`

	// Height is the image height in pixels.
	Height int `json:"height"`

	// Format is the detected image format: "png", "jpeg", "gif", or
	// "unknown". Detection is based on file extension.
	Format string `json:"format"`

	// FileSizeBytes is the size of the image file on disk.
	FileSizeBytes int64 `json:"file_size_bytes"`
}

// LoadInfo loads an image (through the cache) and returns its metadata.
func (l *Loader) LoadInfo(path string) (*Info, error) {
	img, err := l.Load(path)
	if err != nil {
		return nil, err
	}

	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	format := "unknown"
	switch filepath.Ext(path) {
	case ".png":
		format = "png"
	case ".jpg", ".jpeg":
		format = "jpeg"
	case ".gif":
		format = "gif"
	}

	return &Info{
		Width:         img.Width(),
		Height:        img.Height(),
		Format:        format,
		FileSizeBytes: stat.Size(),
	}, nil
}
