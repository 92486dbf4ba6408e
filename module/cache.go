package module

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ArtifactCache holds copies of built artifacts so a rebuild never writes
// over a file a previous generation still has open.
type ArtifactCache struct {
	dir string
	now func() time.Time
}

// NewArtifactCache uses dir, or a fresh directory under the system temp
// dir when dir is empty.
func NewArtifactCache(dir string) (*ArtifactCache, error) {
	if dir == "" {
		d, err := os.MkdirTemp("", "stagehand-modules-")
		if err != nil {
			return nil, fmt.Errorf("create module cache: %w", err)
		}
		dir = d
	} else if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create module cache: %w", err)
	}
	return &ArtifactCache{dir: dir, now: time.Now}, nil
}

// Dir returns the cache directory.
func (c *ArtifactCache) Dir() string {
	return c.dir
}

// Store copies artifact to <dir>/<module>-<unix millis>[-n]<ext> and
// returns the new path.
func (c *ArtifactCache) Store(module, artifact string) (string, error) {
	src, err := os.Open(artifact)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrArtifactMissing, artifact)
		}
		return "", err
	}
	defer src.Close()

	ext := filepath.Ext(artifact)
	base := fmt.Sprintf("%s-%d", module, c.now().UnixMilli())
	var dst *os.File
	for n := 0; ; n++ {
		name := base + ext
		if n > 0 {
			name = fmt.Sprintf("%s-%d%s", base, n, ext)
		}
		dst, err = os.OpenFile(filepath.Join(c.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o755)
		if err == nil {
			break
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("store artifact: %w", err)
		}
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return "", fmt.Errorf("store artifact: %w", err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("store artifact: %w", err)
	}
	return dst.Name(), nil
}

// Prune removes cached copies of module except keep.
func (c *ArtifactCache) Prune(module, keep string) error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return err
	}
	var errs []error
	for _, e := range entries {
		path := filepath.Join(c.dir, e.Name())
		if e.IsDir() || path == keep || !strings.HasPrefix(e.Name(), module+"-") {
			continue
		}
		if err := os.Remove(path); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
