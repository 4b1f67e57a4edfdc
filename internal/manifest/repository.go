package manifest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/drivesync/internal/fsutil"
	apperrors "github.com/Adithya-Monish-Kumar-K/drivesync/pkg/errors"
)

const fileExt = ".json"

// Repository discovers manifests written by the snapshot stage. It is the
// only way the reconcile stage learns about snapshot output.
type Repository struct {
	dir string
}

func NewRepository(dir string) *Repository {
	return &Repository{dir: dir}
}

// Latest returns the manifest with the greatest modification time. Equal
// modification times are broken by the lexicographically greatest name.
func (r *Repository) Latest(ctx context.Context) (*Manifest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.Newf(apperrors.ErrNoManifest, "directory %s does not exist", r.dir)
		}
		return nil, fmt.Errorf("reading manifest directory: %w", err)
	}

	var (
		best    os.FileInfo
		bestSet bool
	)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || fsutil.IsTemp(name) || !strings.HasSuffix(name, fileExt) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// Replaced between ReadDir and Info; the replacement is picked
			// up on the next cycle.
			continue
		}
		if !info.Mode().IsRegular() {
			continue
		}
		if !bestSet || newer(info, best) {
			best, bestSet = info, true
		}
	}
	if !bestSet {
		return nil, apperrors.Newf(apperrors.ErrNoManifest, "no %s files in %s", fileExt, r.dir)
	}
	return Load(filepath.Join(r.dir, best.Name()))
}

func newer(a, b os.FileInfo) bool {
	if !a.ModTime().Equal(b.ModTime()) {
		return a.ModTime().After(b.ModTime())
	}
	return a.Name() > b.Name()
}

// Load decodes a single manifest file.
func Load(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening manifest: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat manifest: %w", err)
	}
	var entries []Entry
	if err := json.NewDecoder(f).Decode(&entries); err != nil {
		return nil, apperrors.Newf(apperrors.ErrCorruptManifest, "%s: %v", filepath.Base(path), err)
	}
	return &Manifest{
		Name:    filepath.Base(path),
		Path:    path,
		ModTime: info.ModTime(),
		Entries: entries,
	}, nil
}
