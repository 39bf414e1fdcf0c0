package source

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/gen2brain/go-fitz"

	"github.com/ironsheep/form-segment/internal/formerr"
	"github.com/ironsheep/form-segment/internal/imaging"
)

// Form identifies one scanned form: a raster file, or one page of a PDF.
type Form struct {
	ID   string `json:"id" yaml:"id"`
	Path string `json:"path" yaml:"path"`

	// Page is the 0-based PDF page, or -1 for raster files.
	Page int `json:"page" yaml:"page"`
}

// IsPDFPage reports whether the form is rendered from a PDF page.
func (f Form) IsPDFPage() bool {
	return f.Page >= 0
}

// Source enumerates forms and decodes them.
type Source interface {
	Forms(ctx context.Context) ([]Form, error)
	Load(ctx context.Context, form Form) (image.Image, error)
}

// DefaultDPI is the PDF render resolution used when none is configured.
const DefaultDPI = 200

// DirSource serves every raster file and PDF page directly inside Dir.
type DirSource struct {
	Dir string
	DPI float64
}

// NewDirSource creates a directory source rendering PDFs at dpi.
func NewDirSource(dir string, dpi float64) *DirSource {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	return &DirSource{Dir: dir, DPI: dpi}
}

// IsPDF reports whether path has a .pdf extension.
func IsPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

// Forms lists the forms in Dir in file name order. Subdirectories and files of
// other types are ignored. A PDF that cannot be opened yields a single form
// whose Load fails with formerr.ErrImageLoad.
func (s *DirSource) Forms(ctx context.Context) ([]Form, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read form directory: %w", err)
	}

	forms := make([]Form, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() {
			continue
		}

		path := filepath.Join(s.Dir, entry.Name())
		fileForms, err := FormsForFile(path)
		if err != nil {
			// An unreadable PDF still counts as one form so the run records it
			// as a load failure instead of aborting.
			base := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
			fileForms = []Form{{ID: base, Path: path, Page: 0}}
		}
		forms = append(forms, fileForms...)
	}

	return forms, nil
}

// FormsForFile returns the forms a single file contributes: one for a raster
// file, one per page for a PDF, none for anything else.
func FormsForFile(path string) ([]Form, error) {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	switch {
	case imaging.IsRaster(path):
		return []Form{{ID: base, Path: path, Page: -1}}, nil

	case IsPDF(path):
		doc, err := fitz.New(path)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to open PDF %s: %v", formerr.ErrImageLoad, filepath.Base(path), err)
		}
		defer doc.Close()

		n := doc.NumPage()
		forms := make([]Form, 0, n)
		for i := 0; i < n; i++ {
			forms = append(forms, Form{
				ID:   fmt.Sprintf("%s-p%03d", base, i+1),
				Path: path,
				Page: i,
			})
		}
		return forms, nil
	}

	return nil, nil
}

// Load decodes a form. Errors wrap formerr.ErrImageLoad.
func (s *DirSource) Load(ctx context.Context, form Form) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !form.IsPDFPage() {
		return imaging.Load(form.Path)
	}
	return renderPage(form.Path, form.Page, s.DPI)
}

// renderPage opens its own document so pages render safely from concurrent
// workers.
func renderPage(path string, page int, dpi float64) (image.Image, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open PDF %s: %v", formerr.ErrImageLoad, filepath.Base(path), err)
	}
	defer doc.Close()

	img, err := doc.ImageDPI(page, dpi)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to render page %d of %s: %v", formerr.ErrImageLoad, page+1, filepath.Base(path), err)
	}
	return img, nil
}
