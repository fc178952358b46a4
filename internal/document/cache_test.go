package document

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "certledger/pkg/domain-errors"
	"certledger/pkg/platform/sentinel"
)

// countingRenderer writes its document fields as plain text and counts calls.
type countingRenderer struct {
	calls atomic.Int64
	fail  bool
}

func (r *countingRenderer) Render(w io.Writer, doc Document) error {
	r.calls.Add(1)
	if r.fail {
		return errors.New("canvas exploded")
	}
	_, err := io.WriteString(w, doc.Student+"|"+doc.Course+"|"+doc.Institution+"|"+doc.ID)
	return err
}

func newTestCache(t *testing.T) (*Cache, *countingRenderer) {
	t.Helper()
	renderer := &countingRenderer{}
	cache, err := NewCache(t.TempDir(), renderer)
	require.NoError(t, err)
	return cache, renderer
}

func testDoc(id string) Document {
	return Document{
		ID:          id,
		Student:     "Ada Lovelace",
		Course:      "Systems Design",
		Institution: "Acme University",
		IssueDate:   time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC),
	}
}

func TestEnsure_RendersOnceAndPersists(t *testing.T) {
	cache, renderer := newTestCache(t)

	path, err := cache.Ensure(context.Background(), testDoc("A1B2C3D4E5F6G7H8"))
	require.NoError(t, err)
	assert.Equal(t, cache.Path("A1B2C3D4E5F6G7H8"), path)
	assert.Equal(t, "certificate_A1B2C3D4E5F6G7H8.pdf", filepath.Base(path))
	assert.Equal(t, int64(1), renderer.calls.Load())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "Ada Lovelace")
}

func TestEnsure_Idempotent(t *testing.T) {
	cache, renderer := newTestCache(t)
	doc := testDoc("A1B2C3D4E5F6G7H8")

	first, err := cache.Ensure(context.Background(), doc)
	require.NoError(t, err)
	firstStat, err := os.Stat(first)
	require.NoError(t, err)
	firstContent, err := os.ReadFile(first)
	require.NoError(t, err)

	// Second call with different fields: first writer wins, nothing changes.
	altered := doc
	altered.Student = "Somebody Else"
	second, err := cache.Ensure(context.Background(), altered)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), renderer.calls.Load())

	secondStat, err := os.Stat(second)
	require.NoError(t, err)
	assert.Equal(t, firstStat.ModTime(), secondStat.ModTime())

	secondContent, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.Equal(t, firstContent, secondContent)
}

func TestEnsure_ConcurrentCallsSingleWrite(t *testing.T) {
	cache, renderer := newTestCache(t)
	doc := testDoc("CONCURRENT000001")

	const n = 25
	paths := make([]string, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := cache.Ensure(context.Background(), doc)
			assert.NoError(t, err)
			paths[i] = p
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), renderer.calls.Load(), "exactly one render across %d callers", n)
	for _, p := range paths {
		assert.Equal(t, paths[0], p)
	}
}

func TestEnsure_DistinctIdentifiersIndependent(t *testing.T) {
	cache, renderer := newTestCache(t)

	a, err := cache.Ensure(context.Background(), testDoc("AAAAAAAAAAAAAAAA"))
	require.NoError(t, err)
	b, err := cache.Ensure(context.Background(), testDoc("BBBBBBBBBBBBBBBB"))
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Equal(t, int64(2), renderer.calls.Load())
}

func TestEnsure_RenderFailureLeavesNoArtifact(t *testing.T) {
	renderer := &countingRenderer{fail: true}
	cache, err := NewCache(t.TempDir(), renderer)
	require.NoError(t, err)

	_, err = cache.Ensure(context.Background(), testDoc("FAILFAILFAILFAIL"))
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeDocument))
	assert.False(t, cache.Exists("FAILFAILFAILFAIL"))

	// No temp debris either.
	entries, err := os.ReadDir(filepath.Dir(cache.Path("x")))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestOpen_MissingArtifactIsNotFound(t *testing.T) {
	cache, _ := newTestCache(t)

	_, err := cache.Open("NEVERRENDERED000")
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestPDFRenderer_OutputContainsFields(t *testing.T) {
	var out []byte
	buf := &writerCapture{}
	err := NewPDFRenderer().Render(buf, testDoc("A1B2C3D4E5F6G7H8"))
	require.NoError(t, err)
	out = buf.data

	require.NotEmpty(t, out)
	assert.True(t, len(out) > 4 && string(out[:4]) == "%PDF")
	// Compression is off, so the text layer is directly searchable.
	assert.Contains(t, string(out), "Ada Lovelace")
	assert.Contains(t, string(out), "Systems Design")
	assert.Contains(t, string(out), "Acme University")
	assert.Contains(t, string(out), "A1B2C3D4E5F6G7H8")
	assert.Contains(t, string(out), "2026-03-14 09:26:53")
}

type writerCapture struct{ data []byte }

func (w *writerCapture) Write(p []byte) (int, error) {
	w.data = append(w.data, p...)
	return len(p), nil
}
