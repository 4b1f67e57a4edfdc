package manifest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/drivesync/internal/fsutil"
	"github.com/Adithya-Monish-Kumar-K/drivesync/internal/sink"
	"github.com/Adithya-Monish-Kumar-K/drivesync/pkg/logger"
)

// WriteResult describes where a manifest ended up. UploadErr is set when the
// local write succeeded but mirroring to the sink did not.
type WriteResult struct {
	Path      string
	Key       string
	Bytes     int
	UploadErr error
}

// Writer persists manifests to a local directory and mirrors them to a sink
// under Prefix.
type Writer struct {
	dir    string
	prefix string
	sink   sink.Sink
	logger *slog.Logger
}

func NewWriter(dir, prefix string, s sink.Sink) *Writer {
	return &Writer{
		dir:    dir,
		prefix: prefix,
		sink:   s,
		logger: logger.WithComponent("manifest-writer"),
	}
}

// Write stores entries as dir/filename, replacing any previous file of that
// name atomically, then uploads the same bytes to the sink. Only a local
// failure is returned as an error.
func (w *Writer) Write(ctx context.Context, entries []Entry, filename string) (WriteResult, error) {
	data, err := Encode(entries)
	if err != nil {
		return WriteResult{}, err
	}
	path := filepath.Join(w.dir, filename)
	if err := fsutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return WriteResult{}, fmt.Errorf("writing manifest %s: %w", path, err)
	}
	res := WriteResult{
		Path:  path,
		Key:   sink.JoinKey(w.prefix, filename),
		Bytes: len(data),
	}
	w.logger.Info("manifest saved locally", "path", path, "entries", len(entries))

	if w.sink == nil {
		return res, nil
	}
	if err := w.sink.Put(ctx, res.Key, data, "application/json"); err != nil {
		res.UploadErr = err
		w.logger.Warn("manifest upload failed, local copy kept",
			"key", res.Key,
			"error", err,
		)
		return res, nil
	}
	w.logger.Info("manifest uploaded", "key", res.Key)
	return res, nil
}

// Encode serializes entries as an indented UTF-8 JSON array.
func Encode(entries []Entry) ([]byte, error) {
	if entries == nil {
		entries = []Entry{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return nil, fmt.Errorf("encoding manifest: %w", err)
	}
	return buf.Bytes(), nil
}
