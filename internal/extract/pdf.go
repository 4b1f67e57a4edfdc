// Package extract turns fetched documents into plain text.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"

	apperrors "github.com/Adithya-Monish-Kumar-K/drivesync/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/drivesync/pkg/logger"
)

// Extractor reads the text of a local document.
type Extractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// PDFExtractor concatenates the plain text of every page of a PDF in page
// order. Pages without a content stream contribute nothing.
type PDFExtractor struct {
	logger *slog.Logger
}

func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{
		logger: logger.WithComponent("pdf-extractor"),
	}
}

// Extract returns the trimmed text of the document at path. A document that
// opens but has no text yields "" and a nil error. Any failure to open or
// decode the document, including a panic inside the PDF reader, is returned
// wrapped in ErrExtraction.
func (e *PDFExtractor) Extract(ctx context.Context, path string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = apperrors.Newf(apperrors.ErrExtraction, "%s: %v", path, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: opening %s: %v", apperrors.ErrExtraction, path, err)
	}
	defer f.Close()

	var b strings.Builder
	pages := r.NumPage()
	for i := 1; i <= pages; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		p := r.Page(i)
		if p.V.IsNull() || p.V.Key("Contents").IsNull() {
			continue
		}
		pageText, err := p.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("%w: %s page %d: %v", apperrors.ErrExtraction, path, i, err)
		}
		b.WriteString(pageText)
	}

	text = strings.TrimSpace(b.String())
	e.logger.Debug("text extracted", "path", path, "pages", pages, "chars", len(text))
	return text, nil
}
