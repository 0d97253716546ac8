package raster

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adverant/nexus/medocr-worker/internal/logging"
)

// fakeRunner writes page images the way pdftoppm names them
type fakeRunner struct {
	pages  int
	err    error
	stderr string
	args   []string
}

func (f *fakeRunner) Run(_ context.Context, _ string, _ *logging.Logger, args ...string) ([]byte, []byte, error) {
	f.args = args
	if f.err != nil {
		return nil, []byte(f.stderr), f.err
	}
	prefix := args[len(args)-1]
	for i := 1; i <= f.pages; i++ {
		name := fmt.Sprintf("%s-%02d.png", prefix, i)
		if err := os.WriteFile(name, []byte("png"), 0o644); err != nil {
			return nil, nil, err
		}
	}
	return nil, nil, nil
}

func notPDF(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scan.pdf")
	require.NoError(t, os.WriteFile(path, []byte("not really a pdf"), 0o644))
	return path
}

func TestSplitToPagesOrdersPages(t *testing.T) {
	runner := &fakeRunner{pages: 12}
	r := NewPdftoppm(Config{DPI: 150}, runner)

	outDir := t.TempDir()
	pages, err := r.SplitToPages(context.Background(), notPDF(t), outDir)
	require.NoError(t, err)
	require.Len(t, pages, 12)
	assert.Equal(t, filepath.Join(outDir, "page-01.png"), pages[0])
	assert.Equal(t, filepath.Join(outDir, "page-12.png"), pages[11])
	assert.Equal(t, []string{"-r", "150", "-png"}, runner.args[:3])
}

func TestSplitToPagesHonorsMaxPages(t *testing.T) {
	runner := &fakeRunner{pages: 5}
	r := NewPdftoppm(Config{MaxPages: 2}, runner)

	pages, err := r.SplitToPages(context.Background(), notPDF(t), t.TempDir())
	require.NoError(t, err)
	assert.Len(t, pages, 2)
	assert.Contains(t, runner.args, "-l")
}

func TestSplitToPagesFailures(t *testing.T) {
	r := NewPdftoppm(Config{}, &fakeRunner{err: errors.New("exit status 1"), stderr: "Syntax Error"})
	_, err := r.SplitToPages(context.Background(), notPDF(t), t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Syntax Error")

	r = NewPdftoppm(Config{}, &fakeRunner{pages: 0})
	_, err = r.SplitToPages(context.Background(), notPDF(t), t.TempDir())
	assert.ErrorContains(t, err, "no images")
}

func TestAvailable(t *testing.T) {
	r := NewPdftoppm(Config{}, &fakeRunner{})
	r.lookup = func(string) (string, error) { return "/usr/bin/pdftoppm", nil }
	assert.NoError(t, r.Available())

	r.lookup = func(string) (string, error) { return "", errors.New("executable file not found in $PATH") }
	assert.ErrorContains(t, r.Available(), "pdftoppm not found")
}

func TestPageCountRejectsGarbage(t *testing.T) {
	r := NewPdftoppm(Config{}, &fakeRunner{})
	_, err := r.PageCount(notPDF(t))
	assert.Error(t, err)
}

func TestPageNumber(t *testing.T) {
	assert.Equal(t, 3, pageNumber("/tmp/x/page-3.png"))
	assert.Equal(t, 10, pageNumber("/tmp/x/page-010.png"))
	assert.Equal(t, 0, pageNumber("/tmp/x/cover.png"))
}
