package sink

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/drivesync/internal/fsutil"
	apperrors "github.com/Adithya-Monish-Kumar-K/drivesync/pkg/errors"
)

// DirSink mirrors objects into a local directory tree, one file per key.
type DirSink struct {
	Root string
}

func NewDir(root string) *DirSink {
	return &DirSink{Root: root}
}

func (d *DirSink) Put(ctx context.Context, key string, body []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	clean := filepath.Clean("/" + filepath.FromSlash(key))
	if clean == string(filepath.Separator) || strings.HasSuffix(key, "/") {
		return fmt.Errorf("%w: invalid key %q", apperrors.ErrUpload, key)
	}
	if err := fsutil.WriteFileAtomic(filepath.Join(d.Root, clean), body, 0o644); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrUpload, err)
	}
	return nil
}
