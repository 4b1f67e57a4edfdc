package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	apperrors "github.com/Adithya-Monish-Kumar-K/drivesync/pkg/errors"
)

// buildPDF assembles a minimal single-page PDF whose content stream is
// stream. Object offsets in the cross-reference table are exact.
func buildPDF(stream string) []byte {
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 5 0 R >> >> /Contents 4 0 R >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestPDFExtractor_ExtractsText(t *testing.T) {
	path := writeFile(t, "a.pdf", buildPDF("BT /F1 12 Tf 72 712 Td (Hello) Tj ET"))

	text, err := NewPDFExtractor().Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !strings.Contains(text, "Hello") {
		t.Fatalf("text = %q, want it to contain Hello", text)
	}
	if text != strings.TrimSpace(text) {
		t.Fatalf("text not trimmed: %q", text)
	}
}

func TestPDFExtractor_RejectsNonPDF(t *testing.T) {
	path := writeFile(t, "fake.pdf", []byte("not a pdf"))

	_, err := NewPDFExtractor().Extract(context.Background(), path)
	if !errors.Is(err, apperrors.ErrExtraction) {
		t.Fatalf("expected ErrExtraction, got %v", err)
	}
}

func TestPDFExtractor_MissingFile(t *testing.T) {
	_, err := NewPDFExtractor().Extract(context.Background(), filepath.Join(t.TempDir(), "missing.pdf"))
	if !errors.Is(err, apperrors.ErrExtraction) {
		t.Fatalf("expected ErrExtraction, got %v", err)
	}
}

func TestPDFExtractor_NoTextYieldsEmpty(t *testing.T) {
	tests := map[string]string{
		"empty stream":  "",
		"graphics only": "0 0 m 100 100 l S",
		"blank show":    "BT /F1 12 Tf 72 712 Td ( ) Tj ET",
	}
	for name, stream := range tests {
		t.Run(name, func(t *testing.T) {
			path := writeFile(t, "blank.pdf", buildPDF(stream))

			text, err := NewPDFExtractor().Extract(context.Background(), path)
			if err != nil {
				t.Fatalf("Extract: %v", err)
			}
			if text != "" {
				t.Fatalf("text = %q, want empty", text)
			}
		})
	}
}
