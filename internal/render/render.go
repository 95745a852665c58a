// Package render produces a per-page source representation suitable for a
// vision-capable model.
package render

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/unitutor/pagetutor/pkg/models"
)

// PageSource is the rendered representation of one page.
type PageSource struct {
	Data     []byte
	MIMEType string
}

// Renderer extracts a single page of a document.
type Renderer interface {
	Render(ctx context.Context, doc *models.Document, page int) (*PageSource, error)
}

// PDFRenderer extracts a page as a standalone single-page PDF using pdfcpu.
// Vision models accept PDF input directly, so no rasterization is needed.
type PDFRenderer struct{}

func NewPDFRenderer() *PDFRenderer {
	return &PDFRenderer{}
}

func (r *PDFRenderer) Render(ctx context.Context, doc *models.Document, page int) (*PageSource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if page < 1 || page > doc.TotalPages {
		return nil, fmt.Errorf("page %d out of range (1-%d)", page, doc.TotalPages)
	}

	tempDir, err := os.MkdirTemp("", "pagetutor-render-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	outPath := filepath.Join(tempDir, "page.pdf")
	if err := api.TrimFile(doc.FilePath, outPath, []string{strconv.Itoa(page)}, nil); err != nil {
		return nil, fmt.Errorf("extract page %d: %w", page, err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("read extracted page: %w", err)
	}

	return &PageSource{Data: data, MIMEType: "application/pdf"}, nil
}

// PageCount returns the number of pages in the PDF at path.
func PageCount(path string) (int, error) {
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("page count: %w", err)
	}
	return n, nil
}
