// Package document downloads the remote documents a manifest points at into
// a local scratch directory, keeping only those of the accepted media type.
package document

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/drivesync/internal/fsutil"
	"github.com/Adithya-Monish-Kumar-K/drivesync/internal/graph"
	"github.com/Adithya-Monish-Kumar-K/drivesync/internal/manifest"
	apperrors "github.com/Adithya-Monish-Kumar-K/drivesync/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/drivesync/pkg/logger"
)

// ContentFetcher downloads the body of a remote item.
type ContentFetcher interface {
	FetchContent(ctx context.Context, itemID string) (*graph.Content, error)
}

type Status int

const (
	StatusFetched Status = iota
	StatusFiltered
	StatusWrongType
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusFetched:
		return "fetched"
	case StatusFiltered:
		return "filtered"
	case StatusWrongType:
		return "wrong-type"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result describes what happened to one entry. Path, MediaType and Size are
// set only for StatusFetched; Err is set for StatusWrongType and StatusFailed.
type Result struct {
	Status    Status
	Path      string
	MediaType string
	Size      int64
	Err       error
}

type Fetcher struct {
	client     ContentFetcher
	scratchDir string
	mediaType  string
	extension  string
	logger     *slog.Logger
}

func NewFetcher(client ContentFetcher, scratchDir, mediaType, extension string) *Fetcher {
	return &Fetcher{
		client:     client,
		scratchDir: scratchDir,
		mediaType:  strings.ToLower(mediaType),
		extension:  strings.ToLower(extension),
		logger:     logger.WithComponent("document-fetcher"),
	}
}

// Accepts reports whether the entry's name carries the accepted extension.
// Entries without a name are never accepted.
func (f *Fetcher) Accepts(entry manifest.Entry) bool {
	if entry.Name == nil {
		return false
	}
	return strings.HasSuffix(strings.ToLower(*entry.Name), f.extension)
}

// Fetch downloads entry into the scratch directory. It never returns a raw
// error; every failure is folded into the Result.
func (f *Fetcher) Fetch(ctx context.Context, entry manifest.Entry) Result {
	if !f.Accepts(entry) {
		return Result{Status: StatusFiltered}
	}

	content, err := f.client.FetchContent(ctx, entry.ID)
	if err != nil {
		return Result{Status: StatusFailed, Err: err}
	}

	declared := content.MediaType
	mediaType, _, err := mime.ParseMediaType(declared)
	if err != nil || strings.ToLower(mediaType) != f.mediaType {
		f.logger.Warn("unexpected media type",
			"id", entry.ID,
			"name", entry.NameOrEmpty(),
			"media_type", declared,
		)
		return Result{
			Status:    StatusWrongType,
			MediaType: declared,
			Err:       apperrors.Newf(apperrors.ErrUnsupportedMediaType, "%s: got %q, want %q", entry.NameOrEmpty(), declared, f.mediaType),
		}
	}

	name, err := localName(entry)
	if err != nil {
		return Result{Status: StatusFailed, Err: err}
	}
	path := filepath.Join(f.scratchDir, name)
	if err := fsutil.WriteFileAtomic(path, content.Body, 0o644); err != nil {
		return Result{Status: StatusFailed, Err: fmt.Errorf("%w: writing %s: %v", apperrors.ErrFetch, path, err)}
	}

	f.logger.Debug("document fetched", "id", entry.ID, "path", path, "bytes", len(content.Body))
	return Result{
		Status:    StatusFetched,
		Path:      path,
		MediaType: mediaType,
		Size:      int64(len(content.Body)),
	}
}

// localName reduces the remote name to a bare file name so that a name
// containing separators cannot leave the scratch directory.
func localName(entry manifest.Entry) (string, error) {
	name := filepath.Base(filepath.FromSlash(strings.ReplaceAll(entry.NameOrEmpty(), "\\", "/")))
	if name == "." || name == string(os.PathSeparator) || name == ".." || name == "" {
		return "", apperrors.Newf(apperrors.ErrFetch, "entry %s has no usable file name", entry.ID)
	}
	return name, nil
}
