package source

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/form-segment/internal/formerr"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	img.SetGray(0, 0, color.Gray{Y: 0})

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

// writePDF writes a minimal PDF with blank pages of the given size in points.
func writePDF(t *testing.T, path string, pages int, w, h int) {
	t.Helper()

	var buf bytes.Buffer
	offsets := make([]int, 0, pages+2)
	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n")
	obj("<< /Type /Catalog /Pages 2 0 R >>")

	kids := ""
	for i := 0; i < pages; i++ {
		kids += fmt.Sprintf("%d 0 R ", i+3)
	}
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids, pages))
	for i := 0; i < pages; i++ {
		obj(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %d %d] >>", w, h))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(offsets)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)

	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
}

func TestDirSource_Forms(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "b02-000.png"), 20, 30)
	writePNG(t, filepath.Join(dir, "a01-000u.png"), 20, 30)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0755))

	forms, err := NewDirSource(dir, 0).Forms(context.Background())
	require.NoError(t, err)

	require.Len(t, forms, 2)
	assert.Equal(t, "a01-000u", forms[0].ID)
	assert.Equal(t, "b02-000", forms[1].ID)
	assert.False(t, forms[0].IsPDFPage())
}

func TestDirSource_FormsBrokenPDF(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a-good.png"), 20, 30)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b-broken.pdf"), []byte("not a pdf"), 0644))

	src := NewDirSource(dir, 0)
	forms, err := src.Forms(context.Background())
	require.NoError(t, err)
	require.Len(t, forms, 2)
	assert.Equal(t, "b-broken", forms[1].ID)

	_, err = src.Load(context.Background(), forms[1])
	assert.ErrorIs(t, err, formerr.ErrImageLoad)
}

func TestDirSource_FormsMissingDir(t *testing.T) {
	_, err := NewDirSource(filepath.Join(t.TempDir(), "absent"), 0).Forms(context.Background())
	assert.Error(t, err)
}

func TestDirSource_FormsCanceled(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"), 5, 5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewDirSource(dir, 0).Forms(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDirSource_Load(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "form.png")
	writePNG(t, path, 40, 60)

	src := NewDirSource(dir, 0)
	img, err := src.Load(context.Background(), Form{ID: "form", Path: path, Page: -1})
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 40, 60), img.Bounds())

	_, err = src.Load(context.Background(), Form{ID: "gone", Path: filepath.Join(dir, "gone.png"), Page: -1})
	assert.ErrorIs(t, err, formerr.ErrImageLoad)
}

func TestDirSource_PDFPages(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scans.pdf")
	writePDF(t, path, 2, 72, 144)

	src := NewDirSource(dir, 72)
	forms, err := src.Forms(context.Background())
	require.NoError(t, err)

	require.Len(t, forms, 2)
	assert.Equal(t, Form{ID: "scans-p001", Path: path, Page: 0}, forms[0])
	assert.Equal(t, Form{ID: "scans-p002", Path: path, Page: 1}, forms[1])

	img, err := src.Load(context.Background(), forms[1])
	require.NoError(t, err)
	assert.Equal(t, 72, img.Bounds().Dx())
	assert.Equal(t, 144, img.Bounds().Dy())

	_, err = src.Load(context.Background(), Form{ID: "scans-p009", Path: path, Page: 8})
	assert.ErrorIs(t, err, formerr.ErrImageLoad)
}

func TestFormsForFile_BrokenPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.pdf")
	require.NoError(t, os.WriteFile(path, []byte("not a pdf"), 0644))

	_, err := FormsForFile(path)
	assert.ErrorIs(t, err, formerr.ErrImageLoad)
}

// flakySource fails its first n loads.
type flakySource struct {
	failures int
	calls    int
}

func (s *flakySource) Forms(ctx context.Context) ([]Form, error) {
	return []Form{{ID: "f", Page: -1}}, nil
}

func (s *flakySource) Load(ctx context.Context, form Form) (image.Image, error) {
	s.calls++
	if s.calls <= s.failures {
		return nil, fmt.Errorf("%w: truncated", formerr.ErrImageLoad)
	}
	return image.NewGray(image.Rect(0, 0, 1, 1)), nil
}

func TestLoader_RetriesUntilSuccess(t *testing.T) {
	src := &flakySource{failures: 2}
	loader := NewLoader(src, 3, time.Millisecond, nil)

	img, err := loader.Load(context.Background(), Form{ID: "f", Page: -1})
	require.NoError(t, err)
	assert.NotNil(t, img)
	assert.Equal(t, 3, src.calls)
}

func TestLoader_GivesUp(t *testing.T) {
	src := &flakySource{failures: 10}
	loader := NewLoader(src, 2, time.Millisecond, nil)

	_, err := loader.Load(context.Background(), Form{ID: "f", Page: -1})
	assert.ErrorIs(t, err, formerr.ErrImageLoad)
	assert.Equal(t, 2, src.calls)
}

func TestLoader_SingleAttemptFloor(t *testing.T) {
	src := &flakySource{failures: 10}
	loader := NewLoader(src, 0, time.Millisecond, nil)

	_, err := loader.Load(context.Background(), Form{ID: "f", Page: -1})
	assert.Error(t, err)
	assert.Equal(t, 1, src.calls)
}

func TestLoader_Forms(t *testing.T) {
	forms, err := NewLoader(&flakySource{}, 1, 0, nil).Forms(context.Background())
	require.NoError(t, err)
	assert.Len(t, forms, 1)
}
