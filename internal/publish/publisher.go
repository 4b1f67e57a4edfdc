// Package publish writes derived text records locally and mirrors them to
// the durable sink.
package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/drivesync/internal/fsutil"
	"github.com/Adithya-Monish-Kumar-K/drivesync/internal/sink"
	"github.com/Adithya-Monish-Kumar-K/drivesync/pkg/logger"
)

// Record is the derived artifact for one source document.
type Record struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

// Result reports where a record was written. LocalWritten is true once the
// local file is in place, even if the upload that follows fails.
type Result struct {
	Path         string
	Key          string
	LocalWritten bool
}

type Publisher struct {
	outputDir string
	prefix    string
	sink      sink.Sink
	logger    *slog.Logger
}

// NewPublisher creates a Publisher. Keys are prefix concatenated with the
// derived name, so prefix should carry its own trailing slash.
func NewPublisher(outputDir, prefix string, s sink.Sink) *Publisher {
	return &Publisher{
		outputDir: outputDir,
		prefix:    prefix,
		sink:      s,
		logger:    logger.WithComponent("publisher"),
	}
}

// DerivedName replaces the extension of the base name of sourceName with
// ".json". Leading dots are part of the name, so ".pdf" becomes ".pdf.json".
func DerivedName(sourceName string) string {
	base := filepath.Base(strings.ReplaceAll(sourceName, "\\", "/"))
	stem := strings.TrimLeft(base, ".")
	return base[:len(base)-len(filepath.Ext(stem))] + ".json"
}

// Encode serializes a record as indented JSON without escaping non-ASCII
// text or HTML characters.
func Encode(rec Record) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec); err != nil {
		return nil, fmt.Errorf("encoding record: %w", err)
	}
	return buf.Bytes(), nil
}

// Publish writes the record for sourceName to the output directory and then
// uploads it. A local failure leaves Result empty; an upload failure returns
// a Result with LocalWritten set alongside the error.
func (p *Publisher) Publish(ctx context.Context, sourceName, content string) (Result, error) {
	rec := Record{
		Filename: filepath.Base(strings.ReplaceAll(sourceName, "\\", "/")),
		Content:  content,
	}
	data, err := Encode(rec)
	if err != nil {
		return Result{}, err
	}

	name := DerivedName(sourceName)
	path := filepath.Join(p.outputDir, name)
	if err := fsutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return Result{}, fmt.Errorf("writing record %s: %w", path, err)
	}
	res := Result{
		Path:         path,
		Key:          p.prefix + name,
		LocalWritten: true,
	}

	if p.sink == nil {
		return res, nil
	}
	if err := p.sink.Put(ctx, res.Key, data, "application/json"); err != nil {
		return res, fmt.Errorf("uploading record %s: %w", res.Key, err)
	}
	p.logger.Info("record published", "path", path, "key", res.Key)
	return res, nil
}
